package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/metrics"
	"github.com/saturnino-fabrica-de-software/proctor/internal/monitor"
	"github.com/saturnino-fabrica-de-software/proctor/internal/overlay"
	"github.com/saturnino-fabrica-de-software/proctor/internal/ws"
)

type SessionRepositoryInterface interface {
	Save(ctx context.Context, rec domain.SessionRecord) error
}

type DispatcherInterface interface {
	Dispatch(ctx context.Context, report *monitor.Report, frame []byte)
}

type ReportPublisher interface {
	Publish(sessionID uuid.UUID, eventType ws.EventType, data interface{})
}

// SessionService runs ticks through the monitor and carries out what follows
// from them: evidence and alarms, metrics, the audit copy in the database,
// the annotated frame and the live report stream.
type SessionService struct {
	store      *monitor.Store
	monitor    *monitor.Monitor
	dispatcher DispatcherInterface
	sessions   SessionRepositoryInterface
	reports    ReportPublisher
	metrics    *metrics.Metrics
	audit      audit.Logger
	logger     *slog.Logger

	mu     sync.RWMutex
	frames map[uuid.UUID][]byte
}

type Option func(*SessionService)

func WithSessionRepository(r SessionRepositoryInterface) Option {
	return func(s *SessionService) { s.sessions = r }
}

func WithReportPublisher(p ReportPublisher) Option {
	return func(s *SessionService) { s.reports = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SessionService) { s.metrics = m }
}

func WithAuditLogger(l audit.Logger) Option {
	return func(s *SessionService) { s.audit = l }
}

func NewSessionService(
	store *monitor.Store,
	mon *monitor.Monitor,
	dispatcher DispatcherInterface,
	logger *slog.Logger,
	opts ...Option,
) *SessionService {
	s := &SessionService{
		store:      store,
		monitor:    mon,
		dispatcher: dispatcher,
		audit:      &audit.NoOpLogger{},
		logger:     logger.With("component", "session_service"),
		frames:     make(map[uuid.UUID][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics != nil {
		s.metrics.TrackActiveSessions(store.Len)
	}
	return s
}

// Create starts a session explicitly. A nil id gets a fresh one.
func (s *SessionService) Create(ctx context.Context, id uuid.UUID, at time.Time) (domain.SessionRecord, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}

	sess, err := s.store.Create(id, at)
	if err != nil {
		return domain.SessionRecord{}, err
	}

	rec := sess.Snapshot()
	s.started(ctx, rec)
	return rec, nil
}

// Tick evaluates one frame. Unknown sessions are created on their first tick.
func (s *SessionService) Tick(ctx context.Context, id uuid.UUID, tick monitor.Tick) (monitor.Report, error) {
	start := time.Now()

	report, created, err := s.store.Tick(ctx, s.monitor, id, tick)
	if err != nil {
		if s.metrics != nil {
			s.metrics.TicksRejected.Add(1)
		}
		return monitor.Report{}, err
	}

	if created {
		s.started(ctx, domain.SessionRecord{ID: id, StartedAt: tick.At})
	}

	s.dispatcher.Dispatch(ctx, &report, tick.Frame)

	if s.metrics != nil {
		s.metrics.ObserveReport(report, time.Since(start))
	}

	if !s.keepFrame(id, tick.Frame, report) {
		s.logger.Debug("session closed during tick", "session_id", id, "seq", report.Seq)
		return report, nil
	}

	if report.BaselineBound {
		_ = s.audit.Log(ctx, audit.Event{SessionID: id, EventType: audit.EventBaselineBound, Success: true})
		s.persist(ctx, id)
	}

	return report, nil
}

// Get returns the current audit copy of a live session
func (s *SessionService) Get(id uuid.UUID) (domain.SessionRecord, error) {
	var rec domain.SessionRecord
	err := s.store.View(id, func(sess *monitor.Session) {
		rec = sess.Record()
	})
	return rec, err
}

// Frame returns the annotated JPEG of the last tick
func (s *SessionService) Frame(id uuid.UUID) ([]byte, error) {
	s.mu.RLock()
	frame, ok := s.frames[id]
	s.mu.RUnlock()

	if ok {
		return frame, nil
	}
	if _, err := s.store.Get(id); err != nil {
		return nil, err
	}
	return nil, domain.ErrNoFrameAvailable
}

// Close ends the session. Its timers and baseline are discarded.
func (s *SessionService) Close(ctx context.Context, id uuid.UUID, at time.Time) (domain.SessionRecord, error) {
	sess, err := s.store.Close(id, at)
	if err != nil {
		return domain.SessionRecord{}, err
	}

	rec := sess.Snapshot()
	s.closed(ctx, rec)
	return rec, nil
}

// Shutdown closes every live session
func (s *SessionService) Shutdown(ctx context.Context, at time.Time) {
	for _, sess := range s.store.CloseAll(at) {
		s.closed(ctx, sess.Snapshot())
	}
}

func (s *SessionService) ActiveSessions() int {
	return s.store.Len()
}

func (s *SessionService) started(ctx context.Context, rec domain.SessionRecord) {
	s.logger.Info("session started", "session_id", rec.ID, "started_at", rec.StartedAt)
	_ = s.audit.Log(ctx, audit.Event{SessionID: rec.ID, EventType: audit.EventSessionStarted, Success: true})
	s.save(ctx, rec)
}

func (s *SessionService) closed(ctx context.Context, rec domain.SessionRecord) {
	s.mu.Lock()
	delete(s.frames, rec.ID)
	if s.reports != nil {
		s.reports.Publish(rec.ID, ws.EventSessionClosed, rec)
	}
	s.mu.Unlock()

	s.logger.Info("session closed",
		"session_id", rec.ID,
		"ticks", rec.Ticks,
		"findings", rec.Findings,
	)
	_ = s.audit.Log(ctx, audit.Event{SessionID: rec.ID, EventType: audit.EventSessionClosed, Success: true})
	s.save(ctx, rec)
}

func (s *SessionService) persist(ctx context.Context, id uuid.UUID) {
	rec, err := s.Get(id)
	if err != nil {
		return
	}
	s.save(ctx, rec)
}

// save keeps the database copy best effort; the live session never depends on it
func (s *SessionService) save(ctx context.Context, rec domain.SessionRecord) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Save(ctx, rec); err != nil {
		s.logger.Error("failed to persist session", "session_id", rec.ID, "error", err)
	}
}

// keepFrame stores the annotated frame and publishes the report. It does
// neither when the session was closed while the tick was in flight: closed
// takes s.mu after the store has dropped the session, so a frame stored here
// is always deleted and the close event is always the last one published.
func (s *SessionService) keepFrame(id uuid.UUID, frame []byte, report monitor.Report) bool {
	annotated, err := overlay.Render(frame, report)
	if err != nil {
		s.logger.Debug("frame not annotated", "session_id", id, "error", err)
		annotated = frame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(id); err != nil {
		return false
	}
	s.frames[id] = annotated
	if s.reports != nil {
		s.reports.Publish(id, ws.EventTickReport, report)
	}
	return true
}
