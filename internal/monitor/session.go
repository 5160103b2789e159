package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// Session is the per-stream monitoring state. Only the Monitor mutates it,
// one tick at a time.
type Session struct {
	mu sync.Mutex

	ID        uuid.UUID
	StartedAt time.Time

	baseline      detector.Identity
	baselineSetAt time.Time

	absence  debounce
	lookAway debounce

	lastPeriodic time.Time
	lastTickAt   time.Time

	ticks    int64
	findings int64
	closedAt time.Time
}

// NewSession starts a session at startedAt. The periodic capture clock and
// the tick clock both start there.
func NewSession(id uuid.UUID, startedAt time.Time) *Session {
	return &Session{
		ID:           id,
		StartedAt:    startedAt,
		lastPeriodic: startedAt,
		lastTickAt:   startedAt,
	}
}

// Baseline returns the bound identity, if any
func (s *Session) Baseline() (detector.Identity, bool) {
	return s.baseline, !s.baselineSetAt.IsZero()
}

// AbsenceTimer returns the tick that armed the absence timer
func (s *Session) AbsenceTimer() (time.Time, bool) {
	return s.absence.since, s.absence.armed()
}

func (s *Session) LookAwayTimer() (time.Time, bool) {
	return s.lookAway.since, s.lookAway.armed()
}

// debounce times a condition that has to hold before it is reported. since
// is the tick that first saw it; lead is the stretch before that tick
// credited to the condition. The zero value is unset.
type debounce struct {
	since time.Time
	lead  time.Duration
}

func (d debounce) armed() bool {
	return !d.since.IsZero()
}

func (d debounce) held(now time.Time) time.Duration {
	return now.Sub(d.since) + d.lead
}

func (s *Session) LastPeriodicCapture() time.Time {
	return s.lastPeriodic
}

func (s *Session) Ticks() int64 {
	return s.ticks
}

func (s *Session) Closed() bool {
	return !s.closedAt.IsZero()
}

// Record is the persisted audit copy of the session
func (s *Session) Record() domain.SessionRecord {
	r := domain.SessionRecord{
		ID:        s.ID,
		StartedAt: s.StartedAt,
		Ticks:     s.ticks,
		Findings:  s.findings,
	}
	if !s.baselineSetAt.IsZero() {
		at := s.baselineSetAt
		r.BaselineSetAt = &at
		r.Baseline = s.baseline.Vector
	}
	if !s.closedAt.IsZero() {
		at := s.closedAt
		r.EndedAt = &at
	}
	return r
}

// Snapshot is Record taken under the session lock, for sessions no longer
// reachable through the Store
func (s *Session) Snapshot() domain.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Record()
}
