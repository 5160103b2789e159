package monitor

import (
	"fmt"
	"strings"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// StatusPresent is shown when the tick raised no labelled finding
const StatusPresent = "Face Detected"

// Status is the operator-facing summary of one tick
type Status struct {
	Labels    []string `json:"labels"`
	Text      string   `json:"text"`
	Alert     bool     `json:"alert"`
	FaceCount int      `json:"face_count"`
}

// FacesLine is the second overlay line
func (s Status) FacesLine() string {
	return fmt.Sprintf("Faces: %d", s.FaceCount)
}

// ProjectStatus derives the status from the findings alone. It never touches
// session state.
func ProjectStatus(findings []domain.Finding, faceCount int) Status {
	st := Status{FaceCount: faceCount}
	seen := make(map[string]struct{}, len(findings))

	for _, f := range findings {
		if f.Kind.Alerting() {
			st.Alert = true
		}
		label := findingLabel(f)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		st.Labels = append(st.Labels, label)
	}

	if len(st.Labels) == 0 {
		st.Labels = []string{StatusPresent}
	}
	st.Text = strings.Join(st.Labels, " | ")
	return st
}

func findingLabel(f domain.Finding) string {
	switch f.Kind {
	case domain.FindingIdentityMismatch:
		return "Different Face Detected"
	case domain.FindingAbsence:
		return "No Face Detected"
	case domain.FindingMultipleFaces:
		return "Multiple Faces Detected"
	case domain.FindingLookingAway:
		return f.Direction.Label()
	case domain.FindingObjectDetected:
		if strings.EqualFold(f.Label, DefaultProhibitedLabel) {
			return "Mobile Detected"
		}
		return "Object Detected: " + f.Label
	case domain.FindingSoundDetected:
		return "Sound Detected"
	default:
		return ""
	}
}
