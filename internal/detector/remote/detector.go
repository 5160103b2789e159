package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// Detector implements the frame detectors on top of the vision sidecar.
// Gaze comes from the pose the sidecar returns with each face.
type Detector struct {
	client *Client
}

// New creates a new sidecar-backed detector
func New(config Config) *Detector {
	return &Detector{client: NewClient(config)}
}

// Set wires the detector with cosine identity matching and pose based gaze
func (d *Detector) Set(matchThreshold, gazeLimit float64) detector.Set {
	return detector.Set{
		Faces:      d,
		Encoder:    d,
		Comparator: detector.NewCosineComparator(matchThreshold),
		Gaze:       detector.NewPoseGaze(gazeLimit),
		Objects:    d,
	}
}

func (d *Detector) LocateFaces(ctx context.Context, frame []byte) ([]detector.Face, error) {
	size, err := frameBounds(frame)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Faces(ctx, base64.StdEncoding.EncodeToString(frame))
	if err != nil {
		return nil, fmt.Errorf("locate faces: %w", err)
	}

	faces := make([]detector.Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		face := detector.Face{
			Box:        relativeBox(f.Region, size),
			Confidence: f.Confidence,
		}
		if f.Pose != nil {
			face.Pose = &detector.Pose{Pitch: f.Pose.Pitch, Roll: f.Pose.Roll, Yaw: f.Pose.Yaw}
		}
		faces = append(faces, face)
	}

	return faces, nil
}

func (d *Detector) EncodeIdentity(ctx context.Context, frame []byte, face detector.Face) (detector.Identity, error) {
	size, err := frameBounds(frame)
	if err != nil {
		return detector.Identity{}, err
	}

	region := pixelRegion(face.Box, size)
	resp, err := d.client.Represent(ctx, base64.StdEncoding.EncodeToString(frame), &region)
	if err != nil {
		return detector.Identity{}, fmt.Errorf("encode identity: %w", err)
	}

	if len(resp.Embedding) == 0 {
		return detector.Identity{}, detector.ErrNoEmbedding
	}

	return detector.Identity{Vector: detector.NormalizeEmbedding(resp.Embedding)}, nil
}

func (d *Detector) ClassifyObjects(ctx context.Context, frame []byte) ([]detector.Object, error) {
	size, err := frameBounds(frame)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Objects(ctx, base64.StdEncoding.EncodeToString(frame))
	if err != nil {
		return nil, fmt.Errorf("classify objects: %w", err)
	}

	objects := make([]detector.Object, 0, len(resp.Objects))
	for _, o := range resp.Objects {
		objects = append(objects, detector.Object{
			Label:      strings.ToLower(o.Label),
			Confidence: o.Confidence,
			Box:        relativeBox(o.Region, size),
		})
	}

	return objects, nil
}

func frameBounds(frame []byte) (image.Point, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(frame))
	if err != nil {
		return image.Point{}, domain.ErrInvalidImage.WithError(err)
	}
	return image.Point{X: cfg.Width, Y: cfg.Height}, nil
}

func relativeBox(r Region, size image.Point) detector.BoundingBox {
	if size.X == 0 || size.Y == 0 {
		return detector.BoundingBox{}
	}
	return detector.BoundingBox{
		X:      float64(r.X) / float64(size.X),
		Y:      float64(r.Y) / float64(size.Y),
		Width:  float64(r.W) / float64(size.X),
		Height: float64(r.H) / float64(size.Y),
	}
}

func pixelRegion(b detector.BoundingBox, size image.Point) Region {
	return Region{
		X: int(b.X * float64(size.X)),
		Y: int(b.Y * float64(size.Y)),
		W: int(b.Width * float64(size.X)),
		H: int(b.Height * float64(size.Y)),
	}
}

var (
	_ detector.FaceLocator      = (*Detector)(nil)
	_ detector.IdentityEncoder  = (*Detector)(nil)
	_ detector.ObjectClassifier = (*Detector)(nil)
)
