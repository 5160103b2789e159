package webhook

import (
	"time"

	"github.com/google/uuid"
)

// Target is the single configured receiver
type Target struct {
	URL    string `json:"url"`
	Secret string `json:"-"`
}

// Job is a delivery waiting in webhook_queue
type Job struct {
	ID          uuid.UUID  `json:"id"`
	URL         string     `json:"url"`
	EventType   string     `json:"event_type"`
	Payload     []byte     `json:"payload"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	Status      string     `json:"status"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type EventPayload struct {
	Type      string      `json:"type"`
	SessionID uuid.UUID   `json:"session_id"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
