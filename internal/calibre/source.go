package calibre

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/biblioapp/biblio/internal/catalog"
	"github.com/biblioapp/biblio/internal/errors"
)

// ErrLibraryNotFound is returned for library ids that the last scan did not find.
var ErrLibraryNotFound = errors.NotFound("library not found")

// Source serves the libraries found by a Scanner. It implements catalog.Source.
// The library list is cached until Rescan; database handles are opened on first use.
type Source struct {
	scanner *Scanner
	logger  *slog.Logger

	mu        sync.RWMutex
	scanned   bool
	libraries []catalog.Library
	dbs       map[string]*DB
}

// NewSource creates a source over scanner.
func NewSource(scanner *Scanner, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		scanner: scanner,
		logger:  logger,
		dbs:     make(map[string]*DB),
	}
}

// Libraries returns the cached library list, scanning on first use.
func (s *Source) Libraries(ctx context.Context) ([]catalog.Library, error) {
	s.mu.RLock()
	if s.scanned {
		libs := slices.Clone(s.libraries)
		s.mu.RUnlock()
		return libs, nil
	}
	s.mu.RUnlock()

	return s.Rescan(ctx)
}

// Rescan rediscovers libraries. Handles of libraries that disappeared, or whose
// database may have been replaced, are closed.
func (s *Source) Rescan(ctx context.Context) ([]catalog.Library, error) {
	libs, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan libraries in %s: %w", s.scanner.Root(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, db := range s.dbs {
		if err := db.Close(); err != nil {
			s.logger.Warn("Failed to close library database", "library", id, "error", err)
		}
		delete(s.dbs, id)
	}
	s.libraries = libs
	s.scanned = true

	s.logger.Info("Libraries scanned", "root", s.scanner.Root(), "count", len(libs))
	return slices.Clone(libs), nil
}

// Library returns one library by id.
func (s *Source) Library(ctx context.Context, id string) (catalog.Library, error) {
	libs, err := s.Libraries(ctx)
	if err != nil {
		return catalog.Library{}, err
	}
	i := slices.IndexFunc(libs, func(l catalog.Library) bool { return l.ID == id })
	if i < 0 {
		return catalog.Library{}, fmt.Errorf("%w: %s", ErrLibraryNotFound, id)
	}
	return libs[i], nil
}

// DB returns the open database of a library.
func (s *Source) DB(ctx context.Context, id string) (*DB, error) {
	lib, err := s.Library(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.dbs[id]; ok {
		return db, nil
	}
	db, err := OpenDB(lib.Path, s.logger)
	if err != nil {
		return nil, err
	}
	s.dbs[id] = db
	return db, nil
}

// Records implements catalog.Source.
func (s *Source) Records(ctx context.Context, libraryID string) ([]*catalog.Record, error) {
	db, err := s.DB(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	return db.Books(ctx)
}

// Facets implements catalog.Source.
func (s *Source) Facets(ctx context.Context, libraryID string, t catalog.FacetType) ([]catalog.Facet, error) {
	db, err := s.DB(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	return db.Facets(ctx, t)
}

// Book loads one record of a library.
func (s *Source) Book(ctx context.Context, libraryID string, bookID int64) (*catalog.Record, error) {
	db, err := s.DB(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	return db.Book(ctx, bookID)
}

// CoverPath returns the cover image of a record.
func (s *Source) CoverPath(ctx context.Context, libraryID string, bookID int64) (string, error) {
	db, err := s.DB(ctx, libraryID)
	if err != nil {
		return "", err
	}
	return db.CoverPath(ctx, bookID)
}

// FormatPath returns the file holding one format of a record.
func (s *Source) FormatPath(ctx context.Context, libraryID string, bookID int64, format string) (string, error) {
	db, err := s.DB(ctx, libraryID)
	if err != nil {
		return "", err
	}
	return db.FormatPath(ctx, bookID, format)
}

// Close closes every open database.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for id, db := range s.dbs {
		errs = append(errs, db.Close())
		delete(s.dbs, id)
	}
	return errors.Join(errs...)
}
