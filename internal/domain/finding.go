package domain

import (
	"fmt"
	"time"
)

// FindingKind categoriza uma detecção emitida em um tick
type FindingKind string

const (
	FindingIdentityMismatch FindingKind = "identity_mismatch"
	FindingAbsence          FindingKind = "absence"
	FindingMultipleFaces    FindingKind = "multiple_faces"
	FindingLookingAway      FindingKind = "looking_away"
	FindingObjectDetected   FindingKind = "object_detected"
	FindingSoundDetected    FindingKind = "sound_detected"
	FindingPeriodicCapture  FindingKind = "periodic_capture"
)

// Evidence log event names. They are part of the persisted log format.
const (
	EventFaceSwap         = "face_swap"
	EventNoFace           = "no_face"
	EventMultipleFaces    = "multiple_faces"
	EventLookingAway      = "looking_away"
	EventMobileDetected   = "mobile_detected"
	EventSoundDetected    = "sound_detected"
	EventPeriodic         = "periodic"
	EventPeriodicSnapshot = "periodic_snapshot"
)

// EventName returns the evidence log event for the kind
func (k FindingKind) EventName() string {
	switch k {
	case FindingIdentityMismatch:
		return EventFaceSwap
	case FindingAbsence:
		return EventNoFace
	case FindingMultipleFaces:
		return EventMultipleFaces
	case FindingLookingAway:
		return EventLookingAway
	case FindingObjectDetected:
		return EventMobileDetected
	case FindingSoundDetected:
		return EventSoundDetected
	case FindingPeriodicCapture:
		return EventPeriodic
	default:
		return string(k)
	}
}

// Alerting reports whether the kind raises an alarm and the alert colour.
// Routine periodic captures are evidence only.
func (k FindingKind) Alerting() bool {
	return k != FindingPeriodicCapture
}

// Finding is one categorized detection for a tick
type Finding struct {
	Kind       FindingKind `json:"kind"`
	Detail     string      `json:"detail"`
	Direction  Gaze        `json:"direction,omitempty"`
	Label      string      `json:"label,omitempty"`
	Confidence float64     `json:"confidence,omitempty"`
	At         time.Time   `json:"at"`

	note *Note
}

// Note is a log-only row written alongside the capture of a finding, if any
type Note struct {
	Event  string
	Detail string
}

// CaptureDetail is the Details column of the snapshot row. A finding with a
// follow-up note leaves it empty and the note row explains it.
func (f Finding) CaptureDetail() string {
	if f.note != nil {
		return ""
	}
	return f.Detail
}

// FollowUpNote returns the extra log row the finding carries
func (f Finding) FollowUpNote() (Note, bool) {
	if f.note == nil {
		return Note{}, false
	}
	return *f.note, true
}

func NewIdentityMismatch(at time.Time) Finding {
	return Finding{Kind: FindingIdentityMismatch, Detail: "Identity mismatch detected", At: at}
}

func NewAbsence(at time.Time, threshold time.Duration) Finding {
	return Finding{
		Kind:   FindingAbsence,
		Detail: fmt.Sprintf("No face detected for %d seconds", int(threshold.Seconds())),
		At:     at,
	}
}

// NewMultipleFaces is logged as a bare snapshot row plus a note with the detail
func NewMultipleFaces(at time.Time) Finding {
	const detail = "More than one face in frame"
	return Finding{
		Kind:   FindingMultipleFaces,
		Detail: detail,
		At:     at,
		note:   &Note{Event: EventMultipleFaces, Detail: detail},
	}
}

func NewLookingAway(at time.Time, direction Gaze) Finding {
	return Finding{
		Kind:      FindingLookingAway,
		Detail:    fmt.Sprintf("User looking %s", direction),
		Direction: direction,
		At:        at,
	}
}

func NewObjectDetected(at time.Time, label string, confidence float64) Finding {
	return Finding{
		Kind:       FindingObjectDetected,
		Detail:     fmt.Sprintf("Detected: %s (%.2f)", label, confidence),
		Label:      label,
		Confidence: confidence,
		At:         at,
	}
}

func NewSoundDetected(at time.Time) Finding {
	return Finding{Kind: FindingSoundDetected, Detail: "Microphone input detected", At: at}
}

func NewPeriodicCapture(at time.Time, interval time.Duration) Finding {
	detail := fmt.Sprintf("Routine snapshot every %d seconds", int(interval.Seconds()))
	return Finding{
		Kind:   FindingPeriodicCapture,
		Detail: detail,
		At:     at,
		note:   &Note{Event: EventPeriodicSnapshot, Detail: detail},
	}
}
