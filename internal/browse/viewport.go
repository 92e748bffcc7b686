package browse

import "github.com/biblioapp/biblio/internal/catalog"

// DefaultPageSize is how many records one page materializes.
const DefaultPageSize = 100

// ViewportState is the state of a Viewport cursor.
type ViewportState int

// Viewport states.
const (
	Idle ViewportState = iota
	Filling
	Exhausted
)

func (s ViewportState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Filling:
		return "filling"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Viewport hands out an ordered record list one page at a time.
type Viewport struct {
	pageSize  int
	ordered   []*catalog.Record
	displayed int
	state     ViewportState
}

// NewViewport creates an empty viewport. Non-positive page sizes fall back to DefaultPageSize.
func NewViewport(pageSize int) *Viewport {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Viewport{pageSize: pageSize}
}

// Reset points the viewport at a new ordered list with nothing materialized.
func (v *Viewport) Reset(ordered []*catalog.Record) {
	v.ordered = ordered
	v.displayed = 0
	v.state = Idle
}

// Rewind drops everything materialized but keeps the current list.
func (v *Viewport) Rewind() {
	v.Reset(v.ordered)
}

// MaterializeNextPage advances the cursor by up to one page and returns the newly visible
// records. It only acts in Idle; once the list is fully shown the state is Exhausted.
func (v *Viewport) MaterializeNextPage() []*catalog.Record {
	if v.state != Idle {
		return nil
	}

	v.state = Filling
	start := v.displayed
	end := min(start+v.pageSize, len(v.ordered))
	v.displayed = end

	if v.displayed >= len(v.ordered) {
		v.state = Exhausted
	} else {
		v.state = Idle
	}

	if end == start {
		return nil
	}
	return v.ordered[start:end:end]
}

// Fill materializes pages while hasRoom reports unused space and more records remain.
// It returns everything it materialized and always terminates.
func (v *Viewport) Fill(hasRoom func() bool) []*catalog.Record {
	var added []*catalog.Record
	limit := len(v.ordered)/v.pageSize + 1
	for i := 0; i < limit && v.state == Idle && hasRoom(); i++ {
		added = append(added, v.MaterializeNextPage()...)
	}
	return added
}

// Restore materializes whole pages until at least n records (capped at the list length)
// are visible. Used to return a restored view to the depth it was left at.
func (v *Viewport) Restore(n int) []*catalog.Record {
	target := min(max(n, 0), len(v.ordered))
	var added []*catalog.Record
	for v.displayed < target && v.state == Idle {
		added = append(added, v.MaterializeNextPage()...)
	}
	return added
}

// HasMore reports whether records remain to be materialized.
func (v *Viewport) HasMore() bool {
	return v.displayed < len(v.ordered)
}

// Displayed returns the number of materialized records.
func (v *Viewport) Displayed() int {
	return v.displayed
}

// Len returns the length of the current ordered list.
func (v *Viewport) Len() int {
	return len(v.ordered)
}

// State returns the cursor state.
func (v *Viewport) State() ViewportState {
	return v.state
}

// Visible returns the materialized prefix of the list.
func (v *Viewport) Visible() []*catalog.Record {
	return v.ordered[:v.displayed:v.displayed]
}

// PageSize returns the configured page size.
func (v *Viewport) PageSize() int {
	return v.pageSize
}
