package browse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Snapshot is the session-scoped wire form of a ViewState.
type Snapshot struct {
	ActiveLibraryID         string   `json:"activeLibraryId"`
	SelectedAuthorIDs       flexIDs  `json:"selectedAuthorIds"`
	SelectedTagIDs          flexIDs  `json:"selectedTagIds"`
	SelectedSeriesIDs       flexIDs  `json:"selectedSeriesIds"`
	SelectedFormatNames     []string `json:"selectedFormatNames"`
	SearchTerm              string   `json:"searchTerm"`
	SortMethod              string   `json:"sortMethod"`
	DisplayedCount          int      `json:"displayedCount"`
	SelectedRecordID        *flexID  `json:"selectedRecordId"`
	SelectedRecordLibraryID *string  `json:"selectedRecordLibraryId"`
}

// flexID is an integer id that also decodes from a numeric string.
type flexID int64

// UnmarshalJSON accepts 42 and "42". null leaves f unchanged.
func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isNull(data) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return fmt.Errorf("id %q is not numeric", s)
		}
		*f = flexID(n)
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n)
	return nil
}

// flexIDs is an id list whose null entries are skipped rather than read as id 0.
type flexIDs []flexID

func (f *flexIDs) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(flexIDs, 0, len(raw))
	for _, r := range raw {
		if isNull(bytes.TrimSpace(r)) {
			continue
		}
		var id flexID
		if err := id.UnmarshalJSON(r); err != nil {
			return err
		}
		out = append(out, id)
	}
	*f = out
	return nil
}

func isNull(data []byte) bool {
	return string(data) == "null"
}

// EncodeSnapshot serializes vs for the session scope.
func EncodeSnapshot(vs *ViewState) ([]byte, error) {
	snap := Snapshot{
		ActiveLibraryID:     vs.ActiveLibraryID,
		SelectedAuthorIDs:   toFlex(vs.Authors.Values()),
		SelectedTagIDs:      toFlex(vs.Tags.Values()),
		SelectedSeriesIDs:   toFlex(vs.Series.Values()),
		SelectedFormatNames: vs.Formats.Values(),
		SearchTerm:          vs.Search,
		SortMethod:          string(vs.Sort),
		DisplayedCount:      vs.Displayed,
	}
	if vs.HasSelection() {
		id := flexID(*vs.SelectedRecordID)
		lib := vs.SelectedRecordLibraryID
		snap.SelectedRecordID = &id
		snap.SelectedRecordLibraryID = &lib
	}
	return json.Marshal(snap)
}

// DecodeSnapshot parses a stored snapshot. Anything malformed is reported as absent.
func DecodeSnapshot(data []byte) (*ViewState, bool) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false
	}

	vs := NewViewState()
	vs.ActiveLibraryID = snap.ActiveLibraryID
	vs.Authors = NewSelection(fromFlex(snap.SelectedAuthorIDs)...)
	vs.Tags = NewSelection(fromFlex(snap.SelectedTagIDs)...)
	vs.Series = NewSelection(fromFlex(snap.SelectedSeriesIDs)...)
	for _, name := range snap.SelectedFormatNames {
		if name = strings.ToUpper(strings.TrimSpace(name)); name != "" {
			vs.Formats.Add(name)
		}
	}
	vs.Search = snap.SearchTerm
	vs.Sort = ParseSortMethod(snap.SortMethod)
	vs.Displayed = max(snap.DisplayedCount, 0)

	if snap.SelectedRecordID != nil && snap.SelectedRecordLibraryID != nil && *snap.SelectedRecordLibraryID != "" {
		vs.Select(int64(*snap.SelectedRecordID), *snap.SelectedRecordLibraryID)
	}

	return vs, true
}

func toFlex(ids []int64) flexIDs {
	out := make(flexIDs, len(ids))
	for i, id := range ids {
		out[i] = flexID(id)
	}
	return out
}

func fromFlex(ids flexIDs) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
