package catalog

// FacetIndex maps facet ids to names for one library load. It is immutable once built.
// A nil *FacetIndex resolves nothing.
type FacetIndex struct {
	facets  map[FacetType][]Facet
	names   map[FacetType]map[int64]string
	authors map[string]string // author name -> sort key
}

// NewFacetIndex builds an index over the given facet tables.
func NewFacetIndex(authors, tags, series []Facet) *FacetIndex {
	idx := &FacetIndex{
		facets: map[FacetType][]Facet{
			FacetAuthors: authors,
			FacetTags:    tags,
			FacetSeries:  series,
		},
		names:   make(map[FacetType]map[int64]string, 3),
		authors: make(map[string]string, len(authors)),
	}

	for t, list := range idx.facets {
		m := make(map[int64]string, len(list))
		for _, f := range list {
			m[f.ID] = f.Name
		}
		idx.names[t] = m
	}

	// First entry wins when two authors share a name.
	for _, a := range authors {
		if _, ok := idx.authors[a.Name]; !ok {
			idx.authors[a.Name] = a.SortKey()
		}
	}

	return idx
}

// ResolveName returns the name of facet id within type t.
func (idx *FacetIndex) ResolveName(t FacetType, id int64) (string, bool) {
	if idx == nil {
		return "", false
	}
	name, ok := idx.names[t][id]
	return name, ok
}

// ResolveNames resolves ids, silently dropping the ones not in the index.
func (idx *FacetIndex) ResolveNames(t FacetType, ids []int64) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := idx.ResolveName(t, id); ok {
			names = append(names, name)
		}
	}
	return names
}

// Has reports whether id exists within type t.
func (idx *FacetIndex) Has(t FacetType, id int64) bool {
	_, ok := idx.ResolveName(t, id)
	return ok
}

// AuthorSortKey returns the sort key of the author facet whose name equals name exactly.
func (idx *FacetIndex) AuthorSortKey(name string) (string, bool) {
	if idx == nil {
		return "", false
	}
	key, ok := idx.authors[name]
	return key, ok
}

// Facets returns the facet table for t in source order.
func (idx *FacetIndex) Facets(t FacetType) []Facet {
	if idx == nil {
		return nil
	}
	return idx.facets[t]
}
