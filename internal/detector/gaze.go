package detector

import (
	"context"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// DefaultGazeAngleLimit is the yaw/pitch band, in degrees, still read as forward
const DefaultGazeAngleLimit = 15.0

// ClassifyPose maps head pose angles to a direction. Yaw is checked before
// pitch, so a face turned both ways reports the horizontal direction.
func ClassifyPose(p Pose, limit float64) domain.Gaze {
	switch {
	case p.Yaw < -limit:
		return domain.GazeLeft
	case p.Yaw > limit:
		return domain.GazeRight
	case p.Pitch < -limit:
		return domain.GazeUp
	case p.Pitch > limit:
		return domain.GazeDown
	default:
		return domain.GazeForward
	}
}

// PoseGaze estimates gaze from the pose the face locator already returned.
// Backends that report pose angles with each face use it instead of a
// separate gaze call.
type PoseGaze struct {
	Limit float64
}

func NewPoseGaze(limit float64) *PoseGaze {
	if limit <= 0 {
		limit = DefaultGazeAngleLimit
	}
	return &PoseGaze{Limit: limit}
}

func (g *PoseGaze) EstimateGaze(_ context.Context, _ []byte, face Face) (domain.Gaze, error) {
	if face.Pose == nil {
		return "", ErrNoPose
	}
	return ClassifyPose(*face.Pose, g.Limit), nil
}

var _ GazeEstimator = (*PoseGaze)(nil)
