// Package browse implements the catalog browsing engine: faceted filtering, search, sorting,
// incremental page materialization and persisted view state that is reconciled whenever the
// active library changes.
package browse

import (
	"cmp"
	"slices"
	"strings"

	"github.com/biblioapp/biblio/internal/catalog"
)

// SortMethod selects the ordering of the filtered record list.
type SortMethod string

// Sort methods.
const (
	SortRecent SortMethod = "recent" // source load order, most recent first
	SortTitle  SortMethod = "title"
	SortAuthor SortMethod = "author"
)

// SortMethods lists the accepted sort methods.
var SortMethods = []SortMethod{SortRecent, SortTitle, SortAuthor}

// Valid reports whether m is a known sort method.
func (m SortMethod) Valid() bool {
	return slices.Contains(SortMethods, m)
}

// ParseSortMethod maps unknown or empty values to SortRecent.
func ParseSortMethod(s string) SortMethod {
	m := SortMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return SortRecent
	}
	return m
}

// Axis is one filter dimension.
type Axis string

// Filter axes in application order (search is applied before all of them).
const (
	AxisAuthors Axis = "authors"
	AxisTags    Axis = "tags"
	AxisSeries  Axis = "series"
	AxisFormats Axis = "formats"
)

// Axes lists every filter axis.
var Axes = []Axis{AxisAuthors, AxisTags, AxisSeries, AxisFormats}

// ParseAxis validates an axis name.
func ParseAxis(s string) (Axis, bool) {
	a := Axis(s)
	return a, slices.Contains(Axes, a)
}

// FacetType returns the id-bearing facet type behind an axis. Formats have none.
func (a Axis) FacetType() (catalog.FacetType, bool) {
	switch a {
	case AxisAuthors:
		return catalog.FacetAuthors, true
	case AxisTags:
		return catalog.FacetTags, true
	case AxisSeries:
		return catalog.FacetSeries, true
	default:
		return "", false
	}
}

// Selection is an insertion-ordered set. The zero value is empty and ready to use.
type Selection[T cmp.Ordered] struct {
	items []T
}

// NewSelection builds a selection, dropping duplicates.
func NewSelection[T cmp.Ordered](values ...T) Selection[T] {
	var s Selection[T]
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Has reports membership.
func (s *Selection[T]) Has(v T) bool {
	return slices.Contains(s.items, v)
}

// Add inserts v if absent.
func (s *Selection[T]) Add(v T) {
	if !s.Has(v) {
		s.items = append(s.items, v)
	}
}

// Remove deletes v if present.
func (s *Selection[T]) Remove(v T) {
	s.items = slices.DeleteFunc(s.items, func(x T) bool { return x == v })
}

// Toggle flips membership of v and reports whether v is now selected.
func (s *Selection[T]) Toggle(v T) bool {
	if s.Has(v) {
		s.Remove(v)
		return false
	}
	s.items = append(s.items, v)
	return true
}

// Clear empties the selection.
func (s *Selection[T]) Clear() {
	s.items = nil
}

// Len returns the number of selected values.
func (s *Selection[T]) Len() int {
	return len(s.items)
}

// Values returns a copy of the selected values in insertion order. Never nil.
func (s *Selection[T]) Values() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// ViewState is the mutable, persisted configuration of one browsing view.
type ViewState struct {
	ActiveLibraryID string
	Authors         Selection[int64]
	Tags            Selection[int64]
	Series          Selection[int64]
	Formats         Selection[string] // upper-cased format names
	Search          string
	Sort            SortMethod
	Displayed       int

	// SelectedRecordID and SelectedRecordLibraryID are set and cleared together.
	SelectedRecordID        *int64
	SelectedRecordLibraryID string
}

// NewViewState returns the empty state a process starts with.
func NewViewState() *ViewState {
	return &ViewState{Sort: SortRecent}
}

// Clone returns a deep copy.
func (vs *ViewState) Clone() *ViewState {
	c := *vs
	c.Authors = NewSelection(vs.Authors.Values()...)
	c.Tags = NewSelection(vs.Tags.Values()...)
	c.Series = NewSelection(vs.Series.Values()...)
	c.Formats = NewSelection(vs.Formats.Values()...)
	if vs.SelectedRecordID != nil {
		id := *vs.SelectedRecordID
		c.SelectedRecordID = &id
	}
	return &c
}

// IDs returns the id selection of a facet axis, or nil for formats.
func (vs *ViewState) IDs(a Axis) *Selection[int64] {
	switch a {
	case AxisAuthors:
		return &vs.Authors
	case AxisTags:
		return &vs.Tags
	case AxisSeries:
		return &vs.Series
	default:
		return nil
	}
}

// ClearAxis empties one axis.
func (vs *ViewState) ClearAxis(a Axis) {
	if a == AxisFormats {
		vs.Formats.Clear()
		return
	}
	if sel := vs.IDs(a); sel != nil {
		sel.Clear()
	}
}

// ResetFilters clears every selection and the search term, resets sort to recent and the
// displayed count to zero. The selected record is kept.
func (vs *ViewState) ResetFilters() {
	for _, a := range Axes {
		vs.ClearAxis(a)
	}
	vs.Search = ""
	vs.Sort = SortRecent
	vs.Displayed = 0
}

// HasFilters reports whether any axis or the search term narrows the list.
func (vs *ViewState) HasFilters() bool {
	return vs.Search != "" || vs.Authors.Len() > 0 || vs.Tags.Len() > 0 ||
		vs.Series.Len() > 0 || vs.Formats.Len() > 0
}

// Select records the selected record together with the library it belongs to.
func (vs *ViewState) Select(recordID int64, libraryID string) {
	vs.SelectedRecordID = &recordID
	vs.SelectedRecordLibraryID = libraryID
}

// ClearSelection drops the selected record.
func (vs *ViewState) ClearSelection() {
	vs.SelectedRecordID = nil
	vs.SelectedRecordLibraryID = ""
}

// HasSelection reports whether a complete selection pair is present.
func (vs *ViewState) HasSelection() bool {
	return vs.SelectedRecordID != nil && vs.SelectedRecordLibraryID != ""
}

// normalize repairs invariant violations by clamping instead of failing.
func (vs *ViewState) normalize(length int) {
	vs.Displayed = min(max(vs.Displayed, 0), max(length, 0))
	if !vs.Sort.Valid() {
		vs.Sort = SortRecent
	}
	if !vs.HasSelection() {
		vs.ClearSelection()
	}
}
