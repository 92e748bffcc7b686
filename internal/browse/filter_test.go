package browse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biblioapp/biblio/internal/catalog"
)

func TestFilter_DuneScenario(t *testing.T) {
	cat := duneCatalog()
	vs := NewViewState()
	vs.Authors.Add(10)

	filtered := Filter(cat.Records, vs, cat.Index)
	assert.Equal(t, []int64{1, 3}, ids(filtered))

	byTitle := Sort(filtered, SortTitle, cat.Index)
	assert.Equal(t, []string{"Dune", "Dune Messiah"}, titles(byTitle))

	vs.Search = "messiah"
	assert.Equal(t, []int64{3}, ids(Filter(cat.Records, vs, cat.Index)))
}

func TestFilter_Idempotent(t *testing.T) {
	cat := duneCatalog()
	input := append([]*catalog.Record(nil), cat.Records...)

	vs := NewViewState()
	vs.Tags.Add(20)
	vs.Search = "d"

	first := Filter(cat.Records, vs, cat.Index)
	second := Filter(cat.Records, vs, cat.Index)

	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, ids(input), ids(cat.Records), "input must not be reordered")
	assert.Len(t, cat.Records, 3)
}

func TestFilter_Axes(t *testing.T) {
	cat := duneCatalog()

	tests := []struct {
		name  string
		setup func(vs *ViewState)
		want  []int64
	}{
		{"no filters", func(*ViewState) {}, []int64{1, 2, 3}},
		{"search matches title case-insensitively", func(vs *ViewState) { vs.Search = "FOUND" }, []int64{2}},
		{"search matches author", func(vs *ViewState) { vs.Search = "asimov" }, []int64{2}},
		{"tags or within axis", func(vs *ViewState) { vs.Tags.Add(20); vs.Tags.Add(21) }, []int64{1, 2, 3}},
		{"axes and together", func(vs *ViewState) { vs.Tags.Add(20); vs.Authors.Add(10) }, []int64{1}},
		{"series requires a series", func(vs *ViewState) { vs.Series.Add(30) }, []int64{3}},
		{"formats are case-insensitive", func(vs *ViewState) { vs.Formats.Add("epub") }, []int64{1, 3}},
		{"stale id is ignored", func(vs *ViewState) { vs.Authors.Add(99); vs.Authors.Add(11) }, []int64{2}},
		{"only stale ids match nothing", func(vs *ViewState) { vs.Authors.Add(99) }, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := NewViewState()
			tt.setup(vs)
			assert.Equal(t, tt.want, ids(Filter(cat.Records, vs, cat.Index)))
		})
	}
}

func TestFilter_NameMatchIgnoresCase(t *testing.T) {
	records := []*catalog.Record{
		{ID: 1, Title: "A", Series: "the expanse"},
		{ID: 2, Title: "B", Series: ""},
	}
	idx := catalog.NewFacetIndex(nil, nil, []catalog.Facet{{ID: 5, Name: "The Expanse"}})

	vs := NewViewState()
	vs.Series.Add(5)

	assert.Equal(t, []int64{1}, ids(Filter(records, vs, idx)))
}

func TestFilter_NilInputs(t *testing.T) {
	assert.Empty(t, Filter(nil, NewViewState(), nil))

	records := numbered(3)
	out := Filter(records, nil, nil)
	require.Len(t, out, 3)
	out[0] = nil
	assert.NotNil(t, records[0], "result must be a copy")
}
