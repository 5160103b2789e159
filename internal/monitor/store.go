package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// Store owns the live sessions of the process, keyed by session id.
// Sessions are created explicitly or on their first tick and removed on Close.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[uuid.UUID]*Session)}
}

// Create registers a new session. Fails with ErrSessionExists on a live id.
func (st *Store) Create(id uuid.UUID, startedAt time.Time) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; ok {
		return nil, domain.ErrSessionExists
	}
	s := NewSession(id, startedAt)
	st.sessions[id] = s
	return s, nil
}

func (st *Store) Get(id uuid.UUID) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (st *Store) getOrCreate(id uuid.UUID, at time.Time) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok {
		return s, false
	}
	s := NewSession(id, at)
	st.sessions[id] = s
	return s, true
}

// Tick evaluates one tick on the session, creating it on its first tick.
// Ticks of one session are serialized; different sessions run in parallel.
func (st *Store) Tick(ctx context.Context, m *Monitor, id uuid.UUID, tick Tick) (Report, bool, error) {
	s, created := st.getOrCreate(id, tick.At)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := m.Evaluate(ctx, s, tick)
	return r, created, err
}

// View runs fn with the session held, for consistent reads
func (st *Store) View(id uuid.UUID, fn func(*Session)) error {
	s, err := st.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
	return nil
}

// Close ends the session and drops it from the store. Timers and baseline
// are discarded with it.
func (st *Store) Close(id uuid.UUID, at time.Time) (*Session, error) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	s.mu.Lock()
	s.closedAt = at
	s.mu.Unlock()
	return s, nil
}

// CloseAll ends every live session, on shutdown
func (st *Store) CloseAll(at time.Time) []*Session {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.sessions))
	for id, s := range st.sessions {
		sessions = append(sessions, s)
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		s.closedAt = at
		s.mu.Unlock()
	}
	return sessions
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
