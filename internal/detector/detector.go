package detector

import (
	"context"
	"errors"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

var (
	ErrNoPose      = errors.New("face region carries no pose")
	ErrNoEmbedding = errors.New("no identity embedding extractable")
)

// FaceLocator finds face regions in a frame, in a stable order
type FaceLocator interface {
	LocateFaces(ctx context.Context, frame []byte) ([]Face, error)
}

// IdentityEncoder extracts the identity of one located face
type IdentityEncoder interface {
	EncodeIdentity(ctx context.Context, frame []byte, face Face) (Identity, error)
}

// IdentityComparator decides whether two identities are the same person
type IdentityComparator interface {
	IdentitiesMatch(ctx context.Context, baseline, candidate Identity) (bool, error)
}

// GazeEstimator classifies the head direction of one located face
type GazeEstimator interface {
	EstimateGaze(ctx context.Context, frame []byte, face Face) (domain.Gaze, error)
}

// ObjectClassifier labels objects visible in a frame
type ObjectClassifier interface {
	ClassifyObjects(ctx context.Context, frame []byte) ([]Object, error)
}

// SoundProbe reports whether ambient sound exceeded the configured level
// over one sampling window
type SoundProbe interface {
	ProbeSound(ctx context.Context) (bool, error)
}

// Set groups the per-frame detectors a session monitor consults
type Set struct {
	Faces      FaceLocator
	Encoder    IdentityEncoder
	Comparator IdentityComparator
	Gaze       GazeEstimator
	Objects    ObjectClassifier
}

// Face is a located face region
type Face struct {
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
	Pose       *Pose       `json:"pose,omitempty"`
}

// Pose represents face orientation angles in degrees
type Pose struct {
	Pitch float64 `json:"pitch"` // up/down rotation
	Roll  float64 `json:"roll"`  // tilted rotation
	Yaw   float64 `json:"yaw"`   // left/right rotation
}

// BoundingBox is relative to the frame size (0..1)
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Identity is what a baseline binds. Vector backends fill Vector; image
// comparison backends keep the reference frame in Image.
type Identity struct {
	Vector []float64
	Image  []byte
}

func (i Identity) Empty() bool {
	return len(i.Vector) == 0 && len(i.Image) == 0
}

// Object is one classified object
type Object struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}
