// Package audit records who saw what during a monitored session: baseline
// binding, detector calls and raised findings. Entries go to the structured
// log, one "audit_event" line each.
package audit

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSessionStarted    EventType = "SESSION_STARTED"
	EventSessionClosed     EventType = "SESSION_CLOSED"
	EventBaselineBound     EventType = "BASELINE_BOUND"
	EventFacesLocated      EventType = "FACES_LOCATED"
	EventIdentityCompared  EventType = "IDENTITY_COMPARED"
	EventObjectsClassified EventType = "OBJECTS_CLASSIFIED"
	EventFindingRaised     EventType = "FINDING_RAISED"
)

// Event is one audit trail entry
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	SessionID uuid.UUID         `json:"session_id,omitempty"`
	EventType EventType         `json:"event_type"`
	Finding   string            `json:"finding,omitempty"`
	Evidence  string            `json:"evidence,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type Logger interface {
	Log(ctx context.Context, event Event) error
}

// SlogLogger writes events as structured attributes. Failed operations are
// logged at warn.
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{
		logger: logger.With("component", "audit"),
	}
}

func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	event = stamp(event)

	attrs := []slog.Attr{
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.EventType)),
		slog.Time("at", event.Timestamp),
		slog.Bool("success", event.Success),
	}
	if event.SessionID != uuid.Nil {
		attrs = append(attrs, slog.String("session_id", event.SessionID.String()))
	}
	for _, a := range []struct{ key, value string }{
		{"finding", event.Finding},
		{"evidence", event.Evidence},
		{"provider", event.Provider},
		{"error", event.Error},
	} {
		if a.value != "" {
			attrs = append(attrs, slog.String(a.key, a.value))
		}
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, metadataGroup(event.Metadata))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(ctx, level, "audit_event", attrs...)

	return nil
}

func stamp(event Event) Event {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}

func metadataGroup(md map[string]string) slog.Attr {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, slog.String(k, md[k]))
	}
	return slog.Group("metadata", args...)
}

// NoOpLogger discards events
type NoOpLogger struct{}

func (l *NoOpLogger) Log(_ context.Context, _ Event) error {
	return nil
}

// MemoryLogger keeps events in memory, for the monitor CLI summary and tests
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

func (l *MemoryLogger) Log(_ context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, stamp(event))
	return nil
}

// Events returns a copy, optionally filtered by type
func (l *MemoryLogger) Events(types ...EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0, len(l.events))
	for _, e := range l.events {
		if len(types) == 0 || containsType(types, e.EventType) {
			out = append(out, e)
		}
	}
	return out
}

func containsType(types []EventType, t EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// Tee sends each event to every logger and returns the first error
func Tee(loggers ...Logger) Logger {
	return tee(loggers)
}

type tee []Logger

func (t tee) Log(ctx context.Context, event Event) error {
	event = stamp(event)
	var first error
	for _, l := range t {
		if err := l.Log(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type sessionKey struct{}

// WithSessionID tags ctx so backends can attribute their audit events
func WithSessionID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionIDFromContext returns uuid.Nil when ctx carries no session
func SessionIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(sessionKey{}).(uuid.UUID)
	return id
}
