package evidence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// TimestampLayout is the log and filename timestamp format
const TimestampLayout = "2006-01-02_15-04-05"

var (
	ErrRecorderClosed = errors.New("evidence recorder closed")
	ErrEmptyFrame     = errors.New("evidence frame is empty")
)

// Header is the fixed first row of the evidence log
var Header = []string{"Event", "Timestamp", "Filename", "Details"}

// Recorder stores evidence. Every call is one independent append.
type Recorder interface {
	// Capture writes a uniquely named snapshot of frame and appends a row for it
	Capture(ctx context.Context, sessionID uuid.UUID, frame []byte, event, detail string, at time.Time) (domain.EvidenceEntry, error)
	// Note appends a row with no snapshot
	Note(ctx context.Context, sessionID uuid.UUID, event, detail string, at time.Time) (domain.EvidenceEntry, error)
}

// Sink receives a copy of every row a Recorder appended
type Sink interface {
	Append(ctx context.Context, entry domain.EvidenceEntry) error
}

func newEntry(sessionID uuid.UUID, event, filename, detail string, at time.Time) domain.EvidenceEntry {
	return domain.EvidenceEntry{
		ID:        uuid.New(),
		SessionID: sessionID,
		Event:     event,
		Timestamp: at.Format(TimestampLayout),
		Filename:  filename,
		Details:   detail,
		CreatedAt: time.Now().UTC(),
	}
}
