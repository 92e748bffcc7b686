package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps state in a Badger database. Session-scope entries carry a TTL so Badger
// expires them on its own.
type BadgerStore struct {
	db         *badger.DB
	logger     *slog.Logger
	sessionTTL time.Duration
}

// Options configures a BadgerStore.
type Options struct {
	SessionTTL time.Duration
	InMemory   bool // for tests; path is ignored
}

// OpenBadger opens (or creates) the state database at path.
func OpenBadger(path string, logger *slog.Logger, opts Options) (*BadgerStore, error) {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}

	bopts := badger.DefaultOptions(path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil
	bopts.SyncWrites = true
	bopts.CompactL0OnClose = true

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("State database opened", "path", path, "session_ttl", opts.SessionTTL)
	}

	return &BadgerStore{db: db, logger: logger, sessionTTL: opts.SessionTTL}, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing state database")
	}
	return s.db.Close()
}

// Save stores data under key. Session-scope writes restart the entry's TTL.
func (s *BadgerStore) Save(ctx context.Context, scope Scope, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k, err := storageKey(scope, key)
	if err != nil {
		return err
	}

	entry := badger.NewEntry(k, data)
	if scope == ScopeSession {
		entry = entry.WithTTL(s.sessionTTL)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
}

// Load returns the data under key, or ErrNotFound.
func (s *BadgerStore) Load(ctx context.Context, scope Scope, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k, err := storageKey(scope, key)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s state: %w", scope, err)
	}
	return data, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *BadgerStore) Delete(ctx context.Context, scope Scope, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k, err := storageKey(scope, key)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
}

// Count returns the number of live entries in scope.
func (s *BadgerStore) Count(ctx context.Context, scope Scope) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prefix := []byte(scopePrefix(scope))
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // We only need keys.
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count %s state: %w", scope, err)
	}
	return n, nil
}

// CollectGarbage runs Badger's value log GC until there is nothing left to reclaim.
func (s *BadgerStore) CollectGarbage() {
	for s.db.RunValueLogGC(0.5) == nil {
	}
}
