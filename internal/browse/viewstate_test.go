package browse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelection(t *testing.T) {
	s := NewSelection[int64](3, 1, 3)
	assert.Equal(t, []int64{3, 1}, s.Values())

	assert.False(t, s.Toggle(3))
	assert.True(t, s.Toggle(7))
	assert.Equal(t, []int64{1, 7}, s.Values())

	s.Clear()
	assert.Zero(t, s.Len())
	assert.NotNil(t, s.Values())

	var zero Selection[string]
	zero.Add("EPUB")
	assert.True(t, zero.Has("EPUB"))
}

func TestViewState_CloneIsDeep(t *testing.T) {
	vs := NewViewState()
	vs.Authors.Add(1)
	vs.Select(5, "lib")

	c := vs.Clone()
	c.Authors.Add(2)
	*c.SelectedRecordID = 9

	assert.Equal(t, []int64{1}, vs.Authors.Values())
	assert.Equal(t, int64(5), *vs.SelectedRecordID)
}

func TestViewState_ResetFiltersKeepsSelection(t *testing.T) {
	vs := NewViewState()
	vs.Authors.Add(1)
	vs.Tags.Add(2)
	vs.Series.Add(3)
	vs.Formats.Add("PDF")
	vs.Search = "dune"
	vs.Sort = SortTitle
	vs.Displayed = 40
	vs.Select(7, "lib")
	require.True(t, vs.HasFilters())

	vs.ResetFilters()

	assert.False(t, vs.HasFilters())
	assert.Equal(t, SortRecent, vs.Sort)
	assert.Zero(t, vs.Displayed)
	assert.True(t, vs.HasSelection())
}

func TestViewState_Normalize(t *testing.T) {
	vs := NewViewState()
	vs.Displayed = 500
	vs.Sort = "bogus"
	id := int64(4)
	vs.SelectedRecordID = &id

	vs.normalize(120)

	assert.Equal(t, 120, vs.Displayed)
	assert.Equal(t, SortRecent, vs.Sort)
	assert.Nil(t, vs.SelectedRecordID, "half a selection pair is dropped")

	vs.Displayed = -3
	vs.normalize(10)
	assert.Zero(t, vs.Displayed)
}

func TestParseSortMethod(t *testing.T) {
	assert.Equal(t, SortTitle, ParseSortMethod("Title"))
	assert.Equal(t, SortAuthor, ParseSortMethod(" author "))
	assert.Equal(t, SortRecent, ParseSortMethod("rating"))
	assert.Equal(t, SortRecent, ParseSortMethod(""))
}

func TestParseAxis(t *testing.T) {
	a, ok := ParseAxis("series")
	require.True(t, ok)
	ft, ok := a.FacetType()
	assert.True(t, ok)
	assert.Equal(t, "series", string(ft))

	_, ok = AxisFormats.FacetType()
	assert.False(t, ok)

	_, ok = ParseAxis("publishers")
	assert.False(t, ok)
}
