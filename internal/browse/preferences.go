package browse

import (
	"encoding/json"
	"maps"
)

// ViewMode is how records are laid out.
type ViewMode string

// View modes.
const (
	ViewGrid  ViewMode = "grid"
	ViewTable ViewMode = "table"
)

// Columns lists the table columns that can be hidden.
var Columns = []string{"title", "authors", "series", "publisher", "rating", "pubdate"}

// Sections lists the filter sidebar sections that can be collapsed.
var Sections = []string{"libraries", "authors", "series", "tags", "formats"}

// Preferences are durable display settings, independent of the session view state.
type Preferences struct {
	ViewMode          ViewMode        `json:"viewMode" validate:"required,oneof=grid table"`
	CoverSize         int             `json:"coverSize" validate:"gte=50,lte=300"`
	ColumnVisibility  map[string]bool `json:"columnVisibility"`
	CollapsedSections map[string]bool `json:"collapsedSections"`
}

// DefaultPreferences is a grid of 120px covers with every table column shown.
func DefaultPreferences() Preferences {
	p := Preferences{
		ViewMode:          ViewGrid,
		CoverSize:         120,
		ColumnVisibility:  make(map[string]bool, len(Columns)),
		CollapsedSections: make(map[string]bool, len(Sections)),
	}
	for _, c := range Columns {
		p.ColumnVisibility[c] = true
	}
	for _, s := range Sections {
		p.CollapsedSections[s] = false
	}
	return p
}

// Merge overlays the set fields of stored onto the defaults. Unknown column and section
// names are dropped.
func (p Preferences) Merge(stored Preferences) Preferences {
	out := p.Clone()
	if stored.ViewMode == ViewGrid || stored.ViewMode == ViewTable {
		out.ViewMode = stored.ViewMode
	}
	if stored.CoverSize > 0 {
		out.CoverSize = stored.CoverSize
	}
	for k, v := range stored.ColumnVisibility {
		if _, ok := out.ColumnVisibility[k]; ok {
			out.ColumnVisibility[k] = v
		}
	}
	for k, v := range stored.CollapsedSections {
		if _, ok := out.CollapsedSections[k]; ok {
			out.CollapsedSections[k] = v
		}
	}
	return out
}

// Clone returns a deep copy.
func (p Preferences) Clone() Preferences {
	p.ColumnVisibility = maps.Clone(p.ColumnVisibility)
	p.CollapsedSections = maps.Clone(p.CollapsedSections)
	return p
}

// decodePreferences parses stored preferences over the defaults. Malformed data yields defaults.
func decodePreferences(data []byte) (Preferences, bool) {
	var stored Preferences
	if err := json.Unmarshal(data, &stored); err != nil {
		return DefaultPreferences(), false
	}
	return DefaultPreferences().Merge(stored), true
}
