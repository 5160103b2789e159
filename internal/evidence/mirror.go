package evidence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// Mirrored copies every row a Recorder appended into sinks, e.g. the
// evidence_log table. A sink failure is reported after the primary write
// succeeded, so the caller still gets the entry.
type Mirrored struct {
	Recorder
	sinks []Sink
}

func Mirror(primary Recorder, sinks ...Sink) *Mirrored {
	return &Mirrored{Recorder: primary, sinks: sinks}
}

func (m *Mirrored) Capture(ctx context.Context, sessionID uuid.UUID, frame []byte, event, detail string, at time.Time) (domain.EvidenceEntry, error) {
	entry, err := m.Recorder.Capture(ctx, sessionID, frame, event, detail, at)
	if err != nil {
		return entry, err
	}
	return entry, m.fanOut(ctx, entry)
}

func (m *Mirrored) Note(ctx context.Context, sessionID uuid.UUID, event, detail string, at time.Time) (domain.EvidenceEntry, error) {
	entry, err := m.Recorder.Note(ctx, sessionID, event, detail, at)
	if err != nil {
		return entry, err
	}
	return entry, m.fanOut(ctx, entry)
}

func (m *Mirrored) fanOut(ctx context.Context, entry domain.EvidenceEntry) error {
	for _, s := range m.sinks {
		if err := s.Append(ctx, entry); err != nil {
			return fmt.Errorf("mirror evidence row: %w", err)
		}
	}
	return nil
}

var _ Recorder = (*Mirrored)(nil)
