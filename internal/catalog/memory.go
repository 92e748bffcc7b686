package catalog

import (
	"context"
	"sync"

	"github.com/biblioapp/biblio/internal/errors"
)

// MemorySource is an in-memory Source. It backs tests and fixtures.
type MemorySource struct {
	mu        sync.RWMutex
	libraries []Library
	records   map[string][]*Record
	facets    map[string]map[FacetType][]Facet
	failures  map[string]error
}

// NewMemorySource creates an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		records:  make(map[string][]*Record),
		facets:   make(map[string]map[FacetType][]Facet),
		failures: make(map[string]error),
	}
}

// Put adds or replaces a library and its content.
func (m *MemorySource) Put(lib Library, records []*Record, authors, tags, series []Facet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lib.BookCount = len(records)
	replaced := false
	for i := range m.libraries {
		if m.libraries[i].ID == lib.ID {
			m.libraries[i] = lib
			replaced = true
		}
	}
	if !replaced {
		m.libraries = append(m.libraries, lib)
	}

	m.records[lib.ID] = records
	m.facets[lib.ID] = map[FacetType][]Facet{
		FacetAuthors: authors,
		FacetTags:    tags,
		FacetSeries:  series,
	}
}

// Remove drops a library.
func (m *MemorySource) Remove(libraryID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.libraries {
		if m.libraries[i].ID == libraryID {
			m.libraries = append(m.libraries[:i], m.libraries[i+1:]...)
			break
		}
	}
	delete(m.records, libraryID)
	delete(m.facets, libraryID)
}

// Fail makes every record or facet load of libraryID return err. A nil err clears it.
func (m *MemorySource) Fail(libraryID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failures, libraryID)
		return
	}
	m.failures[libraryID] = err
}

// Libraries implements Source.
func (m *MemorySource) Libraries(_ context.Context) ([]Library, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Library, len(m.libraries))
	copy(out, m.libraries)
	return out, nil
}

// Records implements Source.
func (m *MemorySource) Records(ctx context.Context, libraryID string) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failures[libraryID]; err != nil {
		return nil, err
	}
	records, ok := m.records[libraryID]
	if !ok {
		return nil, errors.NotFoundf("library %s not found", libraryID)
	}
	return records, nil
}

// Facets implements Source.
func (m *MemorySource) Facets(ctx context.Context, libraryID string, t FacetType) ([]Facet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failures[libraryID]; err != nil {
		return nil, err
	}
	tables, ok := m.facets[libraryID]
	if !ok {
		return nil, errors.NotFoundf("library %s not found", libraryID)
	}
	return tables[t], nil
}
