package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store keeps one Session per browser.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deps     Dependencies
	onRemove []func(id string)
}

func NewStore(deps Dependencies) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		deps:     deps,
	}
}

// Get returns the session for id, creating a fresh one under a new ID when
// id is empty or unknown. created reports whether that happened.
func (s *Store) Get(id string) (sess *Session, created bool) {
	if id != "" {
		s.mu.RLock()
		sess, ok := s.sessions[id]
		if ok {
			sess.Touch()
		}
		s.mu.RUnlock()
		if ok {
			return sess, false
		}
	}

	sess = New(uuid.NewString(), s.deps)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	s.deps.Logger.Info("Session %s created. Total: %d", sess.ID, count)
	return sess, true
}

// OnRemove registers fn to run with the ID of every pruned session.
func (s *Store) OnRemove(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRemove = append(s.onRemove, fn)
}

// Lookup returns an existing session without creating one.
func (s *Store) Lookup(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// NotifyAll pushes a fresh snapshot of every session, e.g. after readiness settled.
func (s *Store) NotifyAll() {
	for _, sess := range s.list() {
		sess.Refresh()
	}
}

// Prune drops sessions idle for longer than idle and returns how many were
// removed. Get touches under the same lock, so a session it hands out is
// never pruned in between.
func (s *Store) Prune(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	var removedIDs []string

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.idleSince(cutoff) {
			delete(s.sessions, id)
			removedIDs = append(removedIDs, id)
		}
	}
	listeners := s.onRemove
	s.mu.Unlock()

	for _, id := range removedIDs {
		for _, fn := range listeners {
			fn(id)
		}
	}

	removed := len(removedIDs)
	if removed > 0 {
		s.deps.Logger.Info("Pruned %d idle sessions", removed)
	}
	return removed
}

// RunPruner prunes idle sessions every interval until ctx is done.
func (s *Store) RunPruner(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Prune(idle)
		}
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) list() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

type contextKey struct{}

// WithSession attaches sess to ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session attached by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok
}
