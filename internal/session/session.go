// Package session hosts one browse engine per client and serializes access to it.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/biblioapp/biblio/internal/browse"
)

// Session is one client's browse engine. Engine calls go through Do or Activate, never
// directly, since the engine is not safe for concurrent use.
type Session struct {
	engine *browse.Engine
	ID     string

	mu sync.Mutex

	seenMu   sync.Mutex
	lastSeen time.Time
}

// Do runs fn with exclusive access to the engine.
func (s *Session) Do(fn func(e *browse.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}

// Activate switches the engine to libraryID. The lock is released while the catalog is
// fetched, so other calls proceed meanwhile and a newer activation supersedes this one.
func (s *Session) Activate(ctx context.Context, libraryID string) (browse.Decision, error) {
	s.mu.Lock()
	t, err := s.engine.BeginActivation(libraryID)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	cat, fetchErr := s.engine.Fetch(ctx, t)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.CompleteActivation(ctx, t, cat, fetchErr)
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.seenMu.Lock()
	s.lastSeen = now
	s.seenMu.Unlock()
}
