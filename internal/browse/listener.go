package browse

import "github.com/biblioapp/biblio/internal/catalog"

// Listener receives engine output. Nil callbacks are skipped.
type Listener struct {
	// OnFilteredSetChanged gets the complete ordered list after every recompute.
	OnFilteredSetChanged func(ordered []*catalog.Record)
	// OnPageMaterialized gets only the records that just became visible.
	OnPageMaterialized func(page []*catalog.Record)
	// OnSelectionChanged gets the selected record, or nil when the selection was cleared.
	OnSelectionChanged func(r *catalog.Record)
}

func (l Listener) filteredSetChanged(ordered []*catalog.Record) {
	if l.OnFilteredSetChanged != nil {
		l.OnFilteredSetChanged(ordered)
	}
}

func (l Listener) pageMaterialized(page []*catalog.Record) {
	if l.OnPageMaterialized != nil && len(page) > 0 {
		l.OnPageMaterialized(page)
	}
}

func (l Listener) selectionChanged(r *catalog.Record) {
	if l.OnSelectionChanged != nil {
		l.OnSelectionChanged(r)
	}
}
