package browse

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/biblioapp/biblio/internal/catalog"
)

// newCollator returns a root-locale collator. Collators are not safe for concurrent use,
// so each sort gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.Und)
}

// Sort returns a new slice ordered by method. The sort is stable: records with equal keys
// keep their input order. SortRecent returns the input order unchanged.
func Sort(records []*catalog.Record, method SortMethod, idx *catalog.FacetIndex) []*catalog.Record {
	out := make([]*catalog.Record, len(records))
	copy(out, records)

	var key func(r *catalog.Record) string
	switch method {
	case SortTitle:
		key = func(r *catalog.Record) string { return r.TitleKey() }
	case SortAuthor:
		key = func(r *catalog.Record) string { return authorKey(r, idx) }
	default:
		return out
	}

	// Keys are computed once per record rather than once per comparison.
	keyed := make([]keyedRecord, len(out))
	for i, r := range out {
		keyed[i] = keyedRecord{key: strings.ToLower(key(r)), record: r}
	}

	coll := newCollator()
	slices.SortStableFunc(keyed, func(a, b keyedRecord) int {
		return coll.CompareString(a.key, b.key)
	})

	for i, k := range keyed {
		out[i] = k.record
	}
	return out
}

type keyedRecord struct {
	key    string
	record *catalog.Record
}

// authorKey is the first author's facet sort key when the author table has an exact name
// match, otherwise the raw first-author name. Records without authors get "".
func authorKey(r *catalog.Record, idx *catalog.FacetIndex) string {
	first := r.FirstAuthor()
	if first == "" {
		return ""
	}
	if key, ok := idx.AuthorSortKey(first); ok {
		return key
	}
	return first
}
