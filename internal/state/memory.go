package state

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time // zero for no expiry
}

// MemoryStore is an in-process Store honoring the session TTL.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	sessionTTL time.Duration
	now        func() time.Time
}

// NewMemoryStore creates an empty store. A non-positive ttl uses DefaultSessionTTL.
func NewMemoryStore(sessionTTL time.Duration) *MemoryStore {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, scope Scope, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := storageKey(scope, key)
	if err != nil {
		return err
	}

	e := memoryEntry{data: append([]byte(nil), data...)}
	if scope == ScopeSession {
		e.expiresAt = m.now().Add(m.sessionTTL)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[string(k)] = e
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context, scope Scope, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := storageKey(scope, key)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[string(k)]
	if !ok || m.expired(e) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.data...), nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, scope Scope, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := storageKey(scope, key)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, string(k))
	return nil
}

// Count implements Store.
func (m *MemoryStore) Count(ctx context.Context, scope Scope) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prefix := scopePrefix(scope)
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for k, e := range m.entries {
		if strings.HasPrefix(k, prefix) && !m.expired(e) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)
}
