package browse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	vs := NewViewState()
	vs.ActiveLibraryID = "lib-l"
	vs.Authors.Add(10)
	vs.Tags.Add(20)
	vs.Tags.Add(21)
	vs.Formats.Add("EPUB")
	vs.Search = "dune"
	vs.Sort = SortAuthor
	vs.Displayed = 200
	vs.Select(3, "lib-l")

	data, err := EncodeSnapshot(vs)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"selectedTagIds":[20,21]`)
	assert.Contains(t, string(data), `"selectedRecordId":3`)

	got, ok := DecodeSnapshot(data)
	require.True(t, ok)
	assert.Equal(t, vs, got)
}

func TestSnapshot_EncodesEmptyListsAndNullSelection(t *testing.T) {
	data, err := EncodeSnapshot(NewViewState())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"activeLibraryId": "",
		"selectedAuthorIds": [],
		"selectedTagIds": [],
		"selectedSeriesIds": [],
		"selectedFormatNames": [],
		"searchTerm": "",
		"sortMethod": "recent",
		"displayedCount": 0,
		"selectedRecordId": null,
		"selectedRecordLibraryId": null
	}`, string(data))
}

func TestDecodeSnapshot_Lenient(t *testing.T) {
	vs, ok := DecodeSnapshot([]byte(`{
		"activeLibraryId": "lib-l",
		"selectedAuthorIds": ["10", 11],
		"selectedFormatNames": ["epub", " "],
		"sortMethod": "rating",
		"displayedCount": -5,
		"selectedRecordId": "7"
	}`))
	require.True(t, ok)

	assert.Equal(t, []int64{10, 11}, vs.Authors.Values())
	assert.Equal(t, []string{"EPUB"}, vs.Formats.Values())
	assert.Equal(t, SortRecent, vs.Sort)
	assert.Zero(t, vs.Displayed)
	assert.False(t, vs.HasSelection(), "a record id without its library is dropped")
}

func TestDecodeSnapshot_SkipsNullIDs(t *testing.T) {
	vs, ok := DecodeSnapshot([]byte(`{
		"activeLibraryId": "lib-l",
		"selectedAuthorIds": [1, null, "3"],
		"selectedTagIds": null,
		"selectedSeriesIds": [null],
		"selectedRecordId": null,
		"selectedRecordLibraryId": "lib-l"
	}`))
	require.True(t, ok)

	assert.Equal(t, []int64{1, 3}, vs.Authors.Values())
	assert.Empty(t, vs.Tags.Values())
	assert.Empty(t, vs.Series.Values())
	assert.False(t, vs.HasSelection())
}

func TestDecodeSnapshot_MalformedIsAbsent(t *testing.T) {
	for _, in := range []string{
		``,
		`   `,
		`not json`,
		`{"selectedAuthorIds": ["abc"]}`,
		`{"displayedCount": "many"}`,
		`[1, 2]`,
	} {
		_, ok := DecodeSnapshot([]byte(in))
		assert.False(t, ok, "input %q", in)
	}
}
