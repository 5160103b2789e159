package ws

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	// EventTickReport carries the report of one evaluated tick
	EventTickReport EventType = "tick.report"
	// EventSessionClosed is the last event of a stream; the hub disconnects
	// the session's viewers after sending it
	EventSessionClosed EventType = "session.closed"
)

// Event is the JSON frame written to viewers. Seq increases per session so a
// viewer can tell a replayed report from a new one.
type Event struct {
	SessionID uuid.UUID   `json:"session_id"`
	Seq       uint64      `json:"seq"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	Replay    bool        `json:"replay,omitempty"`
}
