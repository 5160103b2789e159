package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Frame is one image taken from a source
type Frame struct {
	At   time.Time
	Data []byte
	Name string
}

// FrameSource yields frames in acquisition order. io.EOF means exhausted.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
}

var frameExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// FileSource reads frames from a list of image files. Frames are dated
// Start + i*Interval; with Pace set it also waits Interval between them,
// replaying the files in real time.
type FileSource struct {
	paths    []string
	next     int
	start    time.Time
	interval time.Duration
	pace     bool
}

// NewDirSource lists the images of dir in name order
func NewDirSource(dir string, start time.Time, interval time.Duration, pace bool) (*FileSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	return &FileSource{paths: paths, start: start, interval: interval, pace: pace}, nil
}

// NewListSource reads one image path per line, e.g. from stdin
func NewListSource(r io.Reader, start time.Time, interval time.Duration, pace bool) (*FileSource, error) {
	var paths []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read frame list: %w", err)
	}

	return &FileSource{paths: paths, start: start, interval: interval, pace: pace}, nil
}

func (s *FileSource) Len() int {
	return len(s.paths)
}

func (s *FileSource) Next(ctx context.Context) (Frame, error) {
	if s.next >= len(s.paths) {
		return Frame{}, io.EOF
	}

	if s.pace && s.next > 0 && s.interval > 0 {
		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Frame{}, ctx.Err()
		case <-timer.C:
		}
	}

	path := s.paths[s.next]
	data, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, fmt.Errorf("read frame %s: %w", path, err)
	}

	f := Frame{
		At:   s.start.Add(time.Duration(s.next) * s.interval),
		Data: data,
		Name: filepath.Base(path),
	}
	s.next++
	return f, nil
}

// ChanSource yields frames pushed by another goroutine, e.g. a capture
// process. Closing the channel exhausts the source.
type ChanSource struct {
	frames <-chan Frame
}

func NewChanSource(frames <-chan Frame) *ChanSource {
	return &ChanSource{frames: frames}
}

func (s *ChanSource) Next(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case f, ok := <-s.frames:
		if !ok {
			return Frame{}, io.EOF
		}
		return f, nil
	}
}
