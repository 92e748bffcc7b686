// Package state persists browse view state in two independent scopes: a session scope whose
// entries expire, and a durable scope for display preferences.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Scope names a persistence area with its own lifetime.
type Scope string

// Scopes.
const (
	// ScopeSession holds filters, sort, search and selection. Entries expire after the session TTL.
	ScopeSession Scope = "session"
	// ScopeDurable holds display preferences. Entries never expire.
	ScopeDurable Scope = "durable"
)

// DefaultSessionTTL is how long a session snapshot survives without being rewritten.
const DefaultSessionTTL = 30 * 24 * time.Hour

// ErrNotFound is returned when nothing is stored under a key (or it expired).
var ErrNotFound = errors.New("state not found")

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeSession || s == ScopeDurable
}

// Store is a keyed byte store partitioned by scope.
type Store interface {
	Save(ctx context.Context, scope Scope, key string, data []byte) error
	Load(ctx context.Context, scope Scope, key string) ([]byte, error)
	Delete(ctx context.Context, scope Scope, key string) error
	Count(ctx context.Context, scope Scope) (int, error)
}

func storageKey(scope Scope, key string) ([]byte, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("unknown scope %q", scope)
	}
	if key == "" {
		return nil, errors.New("empty state key")
	}
	return []byte(scopePrefix(scope) + key), nil
}

func scopePrefix(scope Scope) string {
	return "state:" + string(scope) + ":"
}

// Bound is a Store fixed to one client key. It is the two-scope save/load surface the
// browse engine persists through.
type Bound struct {
	store Store
	key   string
}

// Bind fixes store to key.
func Bind(store Store, key string) *Bound {
	return &Bound{store: store, key: key}
}

// Key returns the client key.
func (b *Bound) Key() string {
	return b.key
}

// Save writes data to scope.
func (b *Bound) Save(ctx context.Context, scope Scope, data []byte) error {
	return b.store.Save(ctx, scope, b.key, data)
}

// Load reads scope. A missing or expired entry is reported as ok == false with no error.
func (b *Bound) Load(ctx context.Context, scope Scope) ([]byte, bool, error) {
	data, err := b.store.Load(ctx, scope, b.key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Clear deletes both scopes for the client.
func (b *Bound) Clear(ctx context.Context) error {
	return errors.Join(
		b.store.Delete(ctx, ScopeSession, b.key),
		b.store.Delete(ctx, ScopeDurable, b.key),
	)
}
