package catalog

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/biblioapp/biblio/internal/errors"
)

// Source is the read-only record source a catalog is loaded from.
// Records come back most recent first.
type Source interface {
	Libraries(ctx context.Context) ([]Library, error)
	Records(ctx context.Context, libraryID string) ([]*Record, error)
	Facets(ctx context.Context, libraryID string, t FacetType) ([]Facet, error)
}

// Catalog is everything loaded for one library at one point in time.
// It is never mutated after construction; a reload builds a new one.
type Catalog struct {
	LibraryID string
	Records   []*Record
	Formats   []FormatCount
	Index     *FacetIndex

	byID map[int64]*Record
}

// New assembles a catalog and derives its format counts.
func New(libraryID string, records []*Record, authors, tags, series []Facet) *Catalog {
	c := &Catalog{
		LibraryID: libraryID,
		Records:   records,
		Formats:   CountFormats(records),
		Index:     NewFacetIndex(authors, tags, series),
		byID:      make(map[int64]*Record, len(records)),
	}
	for _, r := range records {
		c.byID[r.ID] = r
	}
	return c
}

// Record looks a record up by id.
func (c *Catalog) Record(id int64) (*Record, bool) {
	if c == nil {
		return nil, false
	}
	r, ok := c.byID[id]
	return r, ok
}

// Len returns the number of loaded records.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Records)
}

// CountFormats counts how many records offer each format, keyed by the upper-cased
// format name and ordered by plain string comparison.
func CountFormats(records []*Record) []FormatCount {
	counts := make(map[string]int)
	for _, r := range records {
		for _, f := range r.DisplayFormats() {
			counts[f]++
		}
	}

	out := make([]FormatCount, 0, len(counts))
	for _, name := range slices.Sorted(maps.Keys(counts)) {
		out = append(out, FormatCount{Name: name, Count: counts[name]})
	}
	return out
}

// Fetch loads records and every facet table of a library. Nothing is returned unless all
// loads succeed; failures come back as an Unavailable error.
func Fetch(ctx context.Context, src Source, libraryID string) (*Catalog, error) {
	records, err := src.Records(ctx, libraryID)
	if err != nil {
		return nil, fetchError(err, fmt.Sprintf("load books for library %s", libraryID))
	}

	tables := make(map[FacetType][]Facet, len(FacetTypes))
	for _, t := range FacetTypes {
		facets, err := src.Facets(ctx, libraryID, t)
		if err != nil {
			return nil, fetchError(err, fmt.Sprintf("load %s for library %s", t, libraryID))
		}
		tables[t] = facets
	}

	return New(libraryID, records, tables[FacetAuthors], tables[FacetTags], tables[FacetSeries]), nil
}

// fetchError keeps not-found errors as they are and marks everything else Unavailable.
func fetchError(err error, msg string) error {
	if errors.Is(err, errors.ErrNotFound) {
		return err
	}
	return errors.Unavailable(err, msg)
}
