package alert

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/evidence"
	"github.com/saturnino-fabrica-de-software/proctor/internal/metrics"
	"github.com/saturnino-fabrica-de-software/proctor/internal/monitor"
)

// AlarmQueue accepts playback requests without blocking
type AlarmQueue interface {
	Enqueue(req Request) bool
}

// EventQueue accepts finding events without blocking
type EventQueue interface {
	Enqueue(event Event)
}

// Dispatcher carries out the side effects of a tick report: evidence for
// every finding, an alarm for alerting ones, then audit and publication.
type Dispatcher struct {
	recorder evidence.Recorder
	alarms   AlarmQueue
	events   EventQueue
	audit    audit.Logger
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type DispatcherOption func(*Dispatcher)

func WithEvents(q EventQueue) DispatcherOption {
	return func(d *Dispatcher) { d.events = q }
}

func WithAuditLogger(l audit.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.audit = l }
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(recorder evidence.Recorder, alarms AlarmQueue, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		recorder: recorder,
		alarms:   alarms,
		audit:    &audit.NoOpLogger{},
		logger:   logger.With("component", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles the findings of report in order, using frame as the
// evidence snapshot. Evidence failures mark the report degraded and never
// stop the remaining findings.
func (d *Dispatcher) Dispatch(ctx context.Context, report *monitor.Report, frame []byte) {
	for _, f := range report.Findings {
		filename, ok := d.record(ctx, report.SessionID, frame, f)
		if !ok {
			report.Degraded = true
		}

		if f.Kind.Alerting() && d.alarms != nil {
			d.alarms.Enqueue(Request{SessionID: report.SessionID, Kind: f.Kind, At: f.At})
		}

		_ = d.audit.Log(ctx, audit.Event{
			SessionID: report.SessionID,
			EventType: audit.EventFindingRaised,
			Finding:   f.Kind.EventName(),
			Evidence:  filename,
			Success:   ok,
			Metadata:  map[string]string{"detail": f.Detail, "severity": string(SeverityFor(f.Kind))},
		})

		if d.events != nil {
			d.events.Enqueue(NewEvent(report.SessionID, report.Seq, f, filename))
		}
	}
}

// record captures the snapshot and writes the follow-up note, if any
func (d *Dispatcher) record(ctx context.Context, sessionID uuid.UUID, frame []byte, f domain.Finding) (string, bool) {
	ok := true

	entry, err := d.recorder.Capture(ctx, sessionID, frame, f.Kind.EventName(), f.CaptureDetail(), f.At)
	if err != nil {
		ok = false
		d.evidenceFailed(sessionID, f.Kind.EventName(), err)
	}

	if note, has := f.FollowUpNote(); has {
		if _, err := d.recorder.Note(ctx, sessionID, note.Event, note.Detail, f.At); err != nil {
			ok = false
			d.evidenceFailed(sessionID, note.Event, err)
		}
	}

	return entry.Filename, ok
}

func (d *Dispatcher) evidenceFailed(sessionID uuid.UUID, event string, err error) {
	if d.metrics != nil {
		d.metrics.EvidenceErrors.Add(1)
	}
	d.logger.Error("evidence write failed",
		"session_id", sessionID,
		"event", event,
		"error", err,
	)
}
