// Package memory implements session.Store in process memory. It mirrors
// the Redis store's semantics behind a single mutex, which makes the
// compound operations trivially atomic. State is lost on restart; use the
// Redis store for anything beyond development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/RuokeZhang/IntelliFlow/core"
	"github.com/RuokeZhang/IntelliFlow/session"
)

type sessionState struct {
	window   []core.Message
	overflow []core.Message
	deadline time.Time
}

type pendingState struct {
	action   core.PendingAction
	deadline time.Time
}

// Store is the in-process session store.
type Store struct {
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionState
	pending  map[string]pendingState

	now func() time.Time // test hook
}

// New creates a store whose sessions expire after ttl of inactivity.
func New(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		sessions: make(map[string]*sessionState),
		pending:  make(map[string]pendingState),
		now:      time.Now,
	}
}

// state returns the live session state, lazily dropping an expired one.
// Caller must hold s.mu.
func (s *Store) state(sessionID string) *sessionState {
	st, ok := s.sessions[sessionID]
	if ok && s.now().After(st.deadline) {
		delete(s.sessions, sessionID)
		ok = false
	}
	if !ok {
		st = &sessionState{}
		s.sessions[sessionID] = st
	}
	st.deadline = s.now().Add(s.ttl)
	return st
}

func (s *Store) AppendAndTrim(ctx context.Context, sessionID string, msg core.Message, max int) ([]core.Message, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(sessionID)
	st.window = append(st.window, msg)

	var evicted []core.Message
	if over := len(st.window) - max; over > 0 {
		evicted = append(evicted, st.window[:over]...)
		st.window = append(st.window[:0:0], st.window[over:]...)
		st.overflow = append(st.overflow, evicted...)
	}
	return evicted, len(st.overflow), nil
}

func (s *Store) Read(ctx context.Context, sessionID string) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(sessionID)
	out := make([]core.Message, len(st.window))
	copy(out, st.window)
	return out, nil
}

func (s *Store) PeekOverflow(ctx context.Context, sessionID string) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(sessionID)
	out := make([]core.Message, len(st.overflow))
	copy(out, st.overflow)
	return out, nil
}

func (s *Store) ConsumeOverflow(ctx context.Context, sessionID string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(sessionID)
	if n > len(st.overflow) {
		n = len(st.overflow)
	}
	st.overflow = append(st.overflow[:0:0], st.overflow[n:]...)
	return nil
}

func (s *Store) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	delete(s.pending, sessionID)
	return nil
}

func (s *Store) GetPending(ctx context.Context, sessionID string) (*core.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[sessionID]
	if !ok {
		return nil, session.ErrNoPending
	}
	// Lazy expiry: a record past its deadline is absent even though it was
	// never explicitly cleared.
	if s.now().After(p.deadline) {
		delete(s.pending, sessionID)
		return nil, session.ErrNoPending
	}
	action := p.action
	return &action, nil
}

func (s *Store) SetPending(ctx context.Context, sessionID string, action *core.PendingAction, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[sessionID] = pendingState{
		action:   *action,
		deadline: s.now().Add(ttl),
	}
	return nil
}

func (s *Store) ClearPending(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, sessionID)
	return nil
}

// SetClock overrides the time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
