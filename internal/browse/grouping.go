package browse

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/biblioapp/biblio/internal/catalog"
)

// GroupThreshold is the largest facet list shown flat. Longer lists are bucketed.
const GroupThreshold = 100

// OtherBucket collects entries whose key does not start with an ASCII letter.
const OtherBucket = "#"

// Bucket is one alphabetic group of facets.
type Bucket struct {
	Key      string          `json:"key"`
	Facets   []catalog.Facet `json:"facets"`
	Expanded bool            `json:"expanded"`
}

// Grouping is a facet list prepared for display: either flat or bucketed by first letter.
type Grouping struct {
	Type    catalog.FacetType `json:"type"`
	Flat    []catalog.Facet   `json:"flat,omitempty"`
	Buckets []Bucket          `json:"buckets,omitempty"`
}

// Grouped reports whether the list was split into buckets.
func (g Grouping) Grouped() bool {
	return g.Buckets != nil
}

// facetKey is the key a facet sorts and groups by. Tags use their name only.
func facetKey(f catalog.Facet, t catalog.FacetType) string {
	if t == catalog.FacetTags {
		return f.Name
	}
	return f.SortKey()
}

// SortFacets returns facets ordered by their lower-cased key, stable on ties.
func SortFacets(facets []catalog.Facet, t catalog.FacetType) []catalog.Facet {
	out := slices.Clone(facets)
	coll := newCollator()
	slices.SortStableFunc(out, func(a, b catalog.Facet) int {
		return coll.CompareString(strings.ToLower(facetKey(a, t)), strings.ToLower(facetKey(b, t)))
	})
	return out
}

// BucketKey is the upper-cased first character of key, or OtherBucket when that character
// is not an ASCII letter (or key is empty).
func BucketKey(key string) string {
	r, _ := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return OtherBucket
	}
	r = unicode.ToUpper(r)
	if r < 'A' || r > 'Z' {
		return OtherBucket
	}
	return string(r)
}

// Group buckets an already sorted facet list when it has more than GroupThreshold entries.
// Bucket order is plain string order of the keys, and only the first bucket starts expanded.
func Group(sorted []catalog.Facet, t catalog.FacetType) Grouping {
	g := Grouping{Type: t}
	if len(sorted) <= GroupThreshold {
		g.Flat = sorted
		if g.Flat == nil {
			g.Flat = []catalog.Facet{}
		}
		return g
	}

	byKey := make(map[string][]catalog.Facet)
	for _, f := range sorted {
		k := BucketKey(facetKey(f, t))
		byKey[k] = append(byKey[k], f)
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	g.Buckets = make([]Bucket, len(keys))
	for i, k := range keys {
		g.Buckets[i] = Bucket{Key: k, Facets: byKey[k], Expanded: i == 0}
	}
	return g
}
