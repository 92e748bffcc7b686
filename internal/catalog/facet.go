package catalog

import (
	"fmt"
	"slices"
)

// FacetType names a filterable axis that has its own id table.
type FacetType string

// Facet types. Formats have no id table and are handled separately.
const (
	FacetAuthors FacetType = "authors"
	FacetTags    FacetType = "tags"
	FacetSeries  FacetType = "series"
)

// FacetTypes lists the id-bearing facet types in filter order.
var FacetTypes = []FacetType{FacetAuthors, FacetTags, FacetSeries}

// ParseFacetType validates a facet type name.
func ParseFacetType(s string) (FacetType, error) {
	t := FacetType(s)
	if !slices.Contains(FacetTypes, t) {
		return "", fmt.Errorf("unknown facet type %q", s)
	}
	return t, nil
}

// Facet is an author, tag or series with the number of records it annotates.
type Facet struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Sort  string `json:"sort,omitempty"`
	Count int    `json:"bookCount"`
}

// SortKey returns Sort when present, otherwise Name.
func (f Facet) SortKey() string {
	if f.Sort != "" {
		return f.Sort
	}
	return f.Name
}

// FormatCount is a file format with the number of records offering it.
type FormatCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Library describes one Calibre library found under the library root.
type Library struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	BookCount int    `json:"bookCount"`
}
