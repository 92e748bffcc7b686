package browse

import (
	"strings"

	"github.com/biblioapp/biblio/internal/catalog"
)

type predicate func(r *catalog.Record) bool

// Filter returns the records matching vs, in input order. The input slice is never modified.
// Axes combine with AND, values within an axis with OR. Selected facet ids are resolved to
// names through idx first; ids that no longer resolve are ignored.
func Filter(records []*catalog.Record, vs *ViewState, idx *catalog.FacetIndex) []*catalog.Record {
	out := make([]*catalog.Record, len(records))
	copy(out, records)

	if vs == nil {
		return out
	}

	for _, keep := range predicates(vs, idx) {
		out = retain(out, keep)
	}
	return out
}

// predicates builds the active filters in fixed order: search, authors, tags, series, formats.
func predicates(vs *ViewState, idx *catalog.FacetIndex) []predicate {
	var preds []predicate

	if vs.Search != "" {
		term := strings.ToLower(vs.Search)
		preds = append(preds, func(r *catalog.Record) bool {
			if strings.Contains(strings.ToLower(r.Title), term) {
				return true
			}
			for _, a := range r.Authors {
				if strings.Contains(strings.ToLower(a), term) {
					return true
				}
			}
			return false
		})
	}

	if vs.Authors.Len() > 0 {
		names := lowerSet(idx.ResolveNames(catalog.FacetAuthors, vs.Authors.Values()))
		preds = append(preds, func(r *catalog.Record) bool { return anyIn(r.Authors, names) })
	}

	if vs.Tags.Len() > 0 {
		names := lowerSet(idx.ResolveNames(catalog.FacetTags, vs.Tags.Values()))
		preds = append(preds, func(r *catalog.Record) bool { return anyIn(r.Tags, names) })
	}

	if vs.Series.Len() > 0 {
		names := lowerSet(idx.ResolveNames(catalog.FacetSeries, vs.Series.Values()))
		preds = append(preds, func(r *catalog.Record) bool {
			return r.Series != "" && names[strings.ToLower(r.Series)]
		})
	}

	if vs.Formats.Len() > 0 {
		formats := make(map[string]bool, vs.Formats.Len())
		for _, f := range vs.Formats.Values() {
			formats[strings.ToUpper(f)] = true
		}
		preds = append(preds, func(r *catalog.Record) bool {
			for _, f := range r.Formats {
				if formats[strings.ToUpper(f)] {
					return true
				}
			}
			return false
		})
	}

	return preds
}

func retain(records []*catalog.Record, keep predicate) []*catalog.Record {
	out := records[:0:0]
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func lowerSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}

func anyIn(values []string, set map[string]bool) bool {
	for _, v := range values {
		if set[strings.ToLower(v)] {
			return true
		}
	}
	return false
}
