package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/biblioapp/biblio/internal/browse"
	"github.com/biblioapp/biblio/internal/catalog"
	"github.com/biblioapp/biblio/internal/errors"
	"github.com/biblioapp/biblio/internal/id"
	"github.com/biblioapp/biblio/internal/state"
	"github.com/biblioapp/biblio/internal/watcher"
)

// DefaultIdleTimeout is how long an unused session stays in memory. Its persisted state
// outlives it and is restored when the client comes back.
const DefaultIdleTimeout = 30 * time.Minute

// minEvictInterval bounds how often Run scans for idle sessions.
const minEvictInterval = time.Second

// Recorder receives engine and session measurements.
type Recorder interface {
	browse.Recorder
	SetSessions(n int)
	Rescan()
}

// Rescanner refreshes the library list held by a record source.
type Rescanner interface {
	Rescan(ctx context.Context) ([]catalog.Library, error)
}

// Options configures a Manager.
type Options struct {
	Metrics     Recorder
	Rescanner   Rescanner
	IdleTimeout time.Duration
	PageSize    int
}

// Manager owns the live sessions.
type Manager struct {
	source  catalog.Source
	store   state.Store
	logger  *slog.Logger
	opts    Options
	now     func() time.Time
	reload  sync.Mutex
	mu      sync.RWMutex
	entries map[string]*Session
}

// NewManager creates a manager that builds engines over source and persists them in store.
func NewManager(source catalog.Source, store state.Store, logger *slog.Logger, opts Options) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Manager{
		source:  source,
		store:   store,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
		entries: make(map[string]*Session),
	}
}

// Open returns the live session for clientID, starting one if needed. An empty clientID
// gets a fresh id. A returning client's persisted view is restored by the engine's start-up.
//
// The boolean reports whether a new session was started. A start-up failure (no readable
// library list, a failed first load) is logged and left in the engine status; the session
// is still returned.
func (m *Manager) Open(ctx context.Context, clientID string) (*Session, bool, error) {
	if clientID == "" {
		generated, err := id.Generate(id.SessionPrefix)
		if err != nil {
			return nil, false, errors.Wrap(err, errors.CodeInternal, "failed to generate session id")
		}
		clientID = generated
	} else if !id.Valid(id.SessionPrefix, clientID) {
		return nil, false, errors.Validationf("malformed session id %q", clientID)
	}

	now := m.now()

	m.mu.Lock()
	if s, ok := m.entries[clientID]; ok {
		m.mu.Unlock()
		s.touch(now)
		return s, false, nil
	}

	s := &Session{
		ID:       clientID,
		lastSeen: now,
		engine: browse.New(browse.Options{
			Source:      m.source,
			Persistence: state.Bind(m.store, clientID),
			Logger:      m.logger.With("session", clientID),
			Metrics:     m.opts.Metrics,
			PageSize:    m.opts.PageSize,
		}),
	}
	// Held until Start finishes so concurrent callers wait for a started engine.
	s.mu.Lock()
	m.entries[clientID] = s
	count := len(m.entries)
	m.mu.Unlock()

	m.reportSessions(count)

	defer s.mu.Unlock()
	if err := s.engine.Start(ctx); err != nil {
		m.logger.Warn("Browse session started with errors", "session", clientID, "error", err)
	} else {
		m.logger.Debug("Browse session started", "session", clientID)
	}
	return s, true, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.ErrNoSession
	}
	s.touch(m.now())
	return s, nil
}

// Close drops a session from memory. With forget set, its persisted state is deleted too.
func (m *Manager) Close(ctx context.Context, id string, forget bool) error {
	m.mu.Lock()
	_, ok := m.entries[id]
	delete(m.entries, id)
	count := len(m.entries)
	m.mu.Unlock()

	if !ok {
		return errors.ErrNoSession
	}
	m.reportSessions(count)

	if forget {
		if err := state.Bind(m.store, id).Clear(ctx); err != nil {
			return errors.Unavailable(err, "failed to delete session state")
		}
	}
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Reload rescans the record source and refreshes the library list of every live session.
// Per-session failures are logged and joined into the returned error.
func (m *Manager) Reload(ctx context.Context) error {
	m.reload.Lock()
	defer m.reload.Unlock()

	if m.opts.Rescanner != nil {
		libraries, err := m.opts.Rescanner.Rescan(ctx)
		if err != nil {
			return errors.Unavailable(err, "failed to rescan libraries")
		}
		if m.opts.Metrics != nil {
			m.opts.Metrics.Rescan()
		}
		m.logger.Info("Libraries rescanned", "libraries", len(libraries))
	}

	var errs []error
	for _, s := range m.snapshot() {
		err := s.Do(func(e *browse.Engine) error {
			return e.RefreshLibraries(ctx)
		})
		if err != nil {
			m.logger.Warn("Failed to refresh session libraries", "session", s.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Follow reloads on every settled library change until ctx is cancelled.
func (m *Manager) Follow(ctx context.Context, events <-chan watcher.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.logger.Info("Library change detected", "type", event.Type.String(), "library", event.Library)
			if err := m.Reload(ctx); err != nil {
				m.logger.Warn("Reload after library change failed", "error", err)
			}
		}
	}
}

// Run evicts idle sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.evictInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.evictIdle(); n > 0 {
				m.logger.Debug("Evicted idle sessions", "count", n)
			}
		}
	}
}

// evictInterval is half the idle timeout, never below minEvictInterval.
func (m *Manager) evictInterval() time.Duration {
	return max(m.opts.IdleTimeout/2, minEvictInterval)
}

// evictIdle drops sessions idle longer than the timeout and returns how many went.
func (m *Manager) evictIdle() int {
	cutoff := m.now().Add(-m.opts.IdleTimeout)

	m.mu.Lock()
	removed := 0
	for key, s := range m.entries {
		if s.LastSeen().Before(cutoff) {
			delete(m.entries, key)
			removed++
		}
	}
	count := len(m.entries)
	m.mu.Unlock()

	if removed > 0 {
		m.reportSessions(count)
	}
	return removed
}

// StoredSessions counts persisted session snapshots, live or not.
func (m *Manager) StoredSessions(ctx context.Context) (int, error) {
	return m.store.Count(ctx, state.ScopeSession)
}

func (m *Manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.entries))
	for _, s := range m.entries {
		out = append(out, s)
	}
	return out
}

func (m *Manager) reportSessions(n int) {
	if m.opts.Metrics != nil {
		m.opts.Metrics.SetSessions(n)
	}
}
