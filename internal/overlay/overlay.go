// Package overlay draws the monitoring status onto frames.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
	"github.com/saturnino-fabrica-de-software/proctor/internal/monitor"
)

// StampLayout is the snapshot timestamp format
const StampLayout = "2006-01-02 15:04:05"

const (
	jpegQuality = 85
	lineHeight  = 16
	margin      = 10
)

var (
	alertColor   = color.RGBA{R: 255, A: 255}
	neutralColor = color.RGBA{G: 255, A: 255}
	objectColor  = color.RGBA{R: 255, G: 200, A: 255}
)

// Render returns the frame as JPEG with the status lines and the face and
// object boxes of the report drawn on it
func Render(frame []byte, r monitor.Report) ([]byte, error) {
	img, err := decode(frame)
	if err != nil {
		return nil, err
	}

	c := neutralColor
	if r.Status.Alert {
		c = alertColor
	}

	for _, f := range r.Faces {
		drawBox(img, f.Box, c)
	}
	for _, o := range r.Objects {
		rect := drawBox(img, o.Box, objectColor)
		drawText(img, rect.Min.X, rect.Min.Y-3, fmt.Sprintf("%s %.2f", o.Label, o.Confidence), objectColor)
	}

	drawText(img, margin, margin+lineHeight, r.Status.Text, c)
	drawText(img, margin, margin+2*lineHeight, r.Status.FacesLine(), c)

	return encode(img)
}

// Stamp writes the capture time at the bottom-left corner in red
func Stamp(frame []byte, at time.Time) ([]byte, error) {
	img, err := decode(frame)
	if err != nil {
		return nil, err
	}
	drawText(img, margin, img.Bounds().Max.Y-margin, at.Format(StampLayout), alertColor)
	return encode(img)
}

func decode(frame []byte) (*image.RGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst, nil
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func drawText(img *image.RGBA, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawBox outlines a relative box and returns it in pixels
func drawBox(img *image.RGBA, box detector.BoundingBox, c color.Color) image.Rectangle {
	b := img.Bounds()
	rect := image.Rect(
		int(box.X*float64(b.Dx())),
		int(box.Y*float64(b.Dy())),
		int((box.X+box.Width)*float64(b.Dx())),
		int((box.Y+box.Height)*float64(b.Dy())),
	).Intersect(b)
	if rect.Empty() {
		return rect
	}

	const thickness = 2
	u := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+thickness),
		image.Rect(rect.Min.X, rect.Max.Y-thickness, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+thickness, rect.Max.Y),
		image.Rect(rect.Max.X-thickness, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(rect), u, image.Point{}, draw.Src)
	}
	return rect
}
