// Package catalog holds the read-only data model of a Calibre library: records, facets and the
// per-load catalog snapshot the browse engine works against.
package catalog

import (
	"strings"
	"time"
)

// Record is one book as loaded from a library.
type Record struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Sort        string     `json:"sort,omitempty"`
	Authors     []string   `json:"authors"`
	Tags        []string   `json:"tags"`
	Series      string     `json:"series,omitempty"`
	SeriesIndex *float64   `json:"seriesIndex,omitempty"`
	Publisher   string     `json:"publisher,omitempty"`
	PubDate     *time.Time `json:"pubdate,omitempty"`
	Rating      *int       `json:"rating,omitempty"` // 0-10, even values
	Comments    string     `json:"comments,omitempty"`
	HasCover    bool       `json:"hasCover"`
	Formats     []string   `json:"formats"`
}

// TitleKey is the title sort key: Sort when present, otherwise Title.
func (r *Record) TitleKey() string {
	if r.Sort != "" {
		return r.Sort
	}
	return r.Title
}

// FirstAuthor returns the primary author, or "" for records without authors.
func (r *Record) FirstAuthor() string {
	if len(r.Authors) == 0 {
		return ""
	}
	return r.Authors[0]
}

// DisplayFormats returns the formats upper-cased for presentation.
func (r *Record) DisplayFormats() []string {
	out := make([]string, len(r.Formats))
	for i, f := range r.Formats {
		out[i] = strings.ToUpper(f)
	}
	return out
}

// Stars converts the 0-10 rating to a 0-5 star count.
func (r *Record) Stars() int {
	if r.Rating == nil {
		return 0
	}
	return min(max(*r.Rating, 0), 10) / 2
}

// DisplayAuthor turns Calibre's "Last|First" author form into "First Last".
// Names without exactly one separator, or with an empty part, are returned unchanged.
func DisplayAuthor(name string) string {
	last, first, ok := strings.Cut(name, "|")
	if !ok || strings.Contains(first, "|") {
		return name
	}
	last = strings.TrimSpace(last)
	first = strings.TrimSpace(first)
	if first == "" || last == "" {
		return name
	}
	return first + " " + last
}
