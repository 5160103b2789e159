package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SeverityFor ranks a finding kind. Someone else in front of the camera
// outranks the candidate looking away.
func SeverityFor(kind domain.FindingKind) Severity {
	switch kind {
	case domain.FindingIdentityMismatch, domain.FindingMultipleFaces, domain.FindingObjectDetected:
		return SeverityCritical
	case domain.FindingPeriodicCapture:
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// Request asks the alarm worker for one playback
type Request struct {
	SessionID uuid.UUID
	Kind      domain.FindingKind
	At        time.Time
}

// Event is what publishers receive for every dispatched finding
type Event struct {
	SessionID uuid.UUID          `json:"session_id"`
	Seq       int64              `json:"seq"`
	Kind      domain.FindingKind `json:"kind"`
	Event     string             `json:"event"`
	Detail    string             `json:"detail"`
	Direction domain.Gaze        `json:"direction,omitempty"`
	Label     string             `json:"label,omitempty"`
	Severity  Severity           `json:"severity"`
	Filename  string             `json:"filename,omitempty"`
	At        time.Time          `json:"at"`
}

func NewEvent(sessionID uuid.UUID, seq int64, f domain.Finding, filename string) Event {
	return Event{
		SessionID: sessionID,
		Seq:       seq,
		Kind:      f.Kind,
		Event:     f.Kind.EventName(),
		Detail:    f.Detail,
		Direction: f.Direction,
		Label:     f.Label,
		Severity:  SeverityFor(f.Kind),
		Filename:  filename,
		At:        f.At,
	}
}
