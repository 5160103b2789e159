package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionRecord is the audit copy of a monitoring session. It is never read
// back into a live session.
type SessionRecord struct {
	ID            uuid.UUID  `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	BaselineSetAt *time.Time `json:"baseline_set_at,omitempty"`
	Baseline      []float64  `json:"-"`
	Ticks         int64      `json:"ticks"`
	Findings      int64      `json:"findings"`
}

// EvidenceEntry is one row of the evidence log
type EvidenceEntry struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Event     string    `json:"event"`
	Timestamp string    `json:"timestamp"`
	Filename  string    `json:"filename,omitempty"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}
