package api

import (
	"time"

	"github.com/biblioapp/biblio/internal/browse"
	"github.com/biblioapp/biblio/internal/catalog"
)

// LibraryResponse contains library data in API responses.
type LibraryResponse struct {
	ID        string `json:"id" doc:"Library ID"`
	Name      string `json:"name" doc:"Library directory name"`
	BookCount int    `json:"book_count" doc:"Number of books in the library"`
}

func newLibraryResponse(lib catalog.Library) LibraryResponse {
	return LibraryResponse{ID: lib.ID, Name: lib.Name, BookCount: lib.BookCount}
}

func newLibraryResponses(libs []catalog.Library) []LibraryResponse {
	out := make([]LibraryResponse, len(libs))
	for i, lib := range libs {
		out[i] = newLibraryResponse(lib)
	}
	return out
}

// BookResponse contains one record in API responses.
type BookResponse struct {
	ID               int64      `json:"id" doc:"Book ID within its library"`
	Title            string     `json:"title" doc:"Title"`
	Sort             string     `json:"sort,omitempty" doc:"Title sort key"`
	Authors          []string   `json:"authors" doc:"Author names as stored"`
	AuthorsDisplay   []string   `json:"authors_display" doc:"Author names in First Last form"`
	Tags             []string   `json:"tags" doc:"Tag names"`
	Series           string     `json:"series,omitempty" doc:"Series name"`
	SeriesIndex      *float64   `json:"series_index,omitempty" doc:"Position within the series"`
	Publisher        string     `json:"publisher,omitempty" doc:"Publisher"`
	PubDate          *time.Time `json:"pubdate,omitempty" doc:"Publication date"`
	Rating           *int       `json:"rating,omitempty" doc:"Rating from 0 to 10"`
	Stars            int        `json:"stars" doc:"Rating as 0 to 5 stars"`
	Comments         string     `json:"comments,omitempty" doc:"Comments markup as stored"`
	CommentsMarkdown string     `json:"comments_markdown,omitempty" doc:"Comments rendered as Markdown"`
	HasCover         bool       `json:"has_cover" doc:"Whether a cover image exists"`
	Formats          []string   `json:"formats" doc:"Available formats, upper-cased"`
}

func newBookResponse(r *catalog.Record) BookResponse {
	display := make([]string, len(r.Authors))
	for i, a := range r.Authors {
		display[i] = catalog.DisplayAuthor(a)
	}
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	authors := r.Authors
	if authors == nil {
		authors = []string{}
	}

	return BookResponse{
		ID:               r.ID,
		Title:            r.Title,
		Sort:             r.Sort,
		Authors:          authors,
		AuthorsDisplay:   display,
		Tags:             tags,
		Series:           r.Series,
		SeriesIndex:      r.SeriesIndex,
		Publisher:        r.Publisher,
		PubDate:          r.PubDate,
		Rating:           r.Rating,
		Stars:            r.Stars(),
		Comments:         r.Comments,
		CommentsMarkdown: commentsMarkdown(r.Comments),
		HasCover:         r.HasCover,
		Formats:          r.DisplayFormats(),
	}
}

func newBookResponses(records []*catalog.Record) []BookResponse {
	out := make([]BookResponse, len(records))
	for i, r := range records {
		out[i] = newBookResponse(r)
	}
	return out
}

// FacetResponse is an author, tag or series with its book count.
type FacetResponse struct {
	ID    int64  `json:"id" doc:"Facet ID"`
	Name  string `json:"name" doc:"Display name"`
	Sort  string `json:"sort,omitempty" doc:"Sort key"`
	Count int    `json:"book_count" doc:"Books carrying this facet"`
}

func newFacetResponses(facets []catalog.Facet) []FacetResponse {
	out := make([]FacetResponse, len(facets))
	for i, f := range facets {
		out[i] = FacetResponse{ID: f.ID, Name: f.Name, Sort: f.Sort, Count: f.Count}
	}
	return out
}

// FormatResponse is a file format with its book count.
type FormatResponse struct {
	Name  string `json:"name" doc:"Format name, upper-cased"`
	Count int    `json:"book_count" doc:"Books offering this format"`
}

func newFormatResponses(formats []catalog.FormatCount) []FormatResponse {
	out := make([]FormatResponse, len(formats))
	for i, f := range formats {
		out[i] = FormatResponse{Name: f.Name, Count: f.Count}
	}
	return out
}

// BucketResponse is one alphabetic group of a bucketed facet list.
type BucketResponse struct {
	Key      string          `json:"key" doc:"First letter, or # for everything else"`
	Expanded bool            `json:"expanded" doc:"Whether the bucket holds a selected facet"`
	Facets   []FacetResponse `json:"facets" doc:"Facets in the bucket"`
}

// GroupingResponse is a facet list prepared for the filter sidebar.
type GroupingResponse struct {
	Type    string           `json:"type" doc:"Facet type"`
	Grouped bool             `json:"grouped" doc:"Whether the list is bucketed by first letter"`
	Flat    []FacetResponse  `json:"flat,omitempty" doc:"Facets when not grouped"`
	Buckets []BucketResponse `json:"buckets,omitempty" doc:"Buckets when grouped"`
}

func newGroupingResponse(g browse.Grouping) GroupingResponse {
	resp := GroupingResponse{Type: string(g.Type), Grouped: g.Grouped()}
	if !g.Grouped() {
		resp.Flat = newFacetResponses(g.Flat)
		return resp
	}
	resp.Buckets = make([]BucketResponse, len(g.Buckets))
	for i, b := range g.Buckets {
		resp.Buckets[i] = BucketResponse{Key: b.Key, Expanded: b.Expanded, Facets: newFacetResponses(b.Facets)}
	}
	return resp
}

// FiltersResponse lists the active filter selections.
type FiltersResponse struct {
	Authors []int64  `json:"authors" doc:"Selected author IDs"`
	Tags    []int64  `json:"tags" doc:"Selected tag IDs"`
	Series  []int64  `json:"series" doc:"Selected series IDs"`
	Formats []string `json:"formats" doc:"Selected format names"`
	Search  string   `json:"search" doc:"Search term"`
	Sort    string   `json:"sort" doc:"Sort method: recent, title or author"`
}

// StatusResponse is the status line of a browse session.
type StatusResponse struct {
	LibraryID   string `json:"library_id,omitempty" doc:"Active library ID"`
	LibraryName string `json:"library_name,omitempty" doc:"Active library name"`
	Message     string `json:"message" doc:"Status message"`
	Total       int    `json:"total" doc:"Books in the active library"`
	Filtered    int    `json:"filtered" doc:"Books matching the filters"`
	Displayed   int    `json:"displayed" doc:"Books materialized so far"`
	HasMore     bool   `json:"has_more" doc:"Whether more pages remain"`
}

// BrowseResponse is the full state of a browse session.
type BrowseResponse struct {
	SessionID        string            `json:"session_id" doc:"Browse session ID"`
	Libraries        []LibraryResponse `json:"libraries" doc:"Known libraries"`
	Status           StatusResponse    `json:"status" doc:"Status line"`
	Filters          FiltersResponse   `json:"filters" doc:"Active filters"`
	Formats          []FormatResponse  `json:"formats" doc:"Formats of the active library"`
	Books            []BookResponse    `json:"books" doc:"Materialized books in display order"`
	SelectedBook     *BookResponse     `json:"selected_book,omitempty" doc:"Selected book"`
	SelectedLibrary  string            `json:"selected_library_id,omitempty" doc:"Library of the selected book"`
	Preferences      PreferencesBody   `json:"preferences" doc:"Display preferences"`
	ActivationResult string            `json:"activation,omitempty" doc:"How the last library activation reconciled the view"`
}

// PageResponse carries records that just became visible.
type PageResponse struct {
	Books   []BookResponse `json:"books" doc:"Newly materialized books"`
	Status  StatusResponse `json:"status" doc:"Status line after paging"`
	HasMore bool           `json:"has_more" doc:"Whether more pages remain"`
}

// PreferencesBody holds durable display settings.
type PreferencesBody struct {
	ViewMode          string          `json:"view_mode" enum:"grid,table" doc:"Layout"`
	CoverSize         int             `json:"cover_size" minimum:"50" maximum:"300" doc:"Cover width in pixels"`
	ColumnVisibility  map[string]bool `json:"column_visibility,omitempty" doc:"Table column visibility"`
	CollapsedSections map[string]bool `json:"collapsed_sections,omitempty" doc:"Collapsed filter sections"`
}

func newPreferencesBody(p browse.Preferences) PreferencesBody {
	return PreferencesBody{
		ViewMode:          string(p.ViewMode),
		CoverSize:         p.CoverSize,
		ColumnVisibility:  p.ColumnVisibility,
		CollapsedSections: p.CollapsedSections,
	}
}

func (b PreferencesBody) preferences() browse.Preferences {
	return browse.Preferences{
		ViewMode:          browse.ViewMode(b.ViewMode),
		CoverSize:         b.CoverSize,
		ColumnVisibility:  b.ColumnVisibility,
		CollapsedSections: b.CollapsedSections,
	}
}

// browseResponse snapshots an engine. Call with the session lock held.
func browseResponse(sessionID string, e *browse.Engine) BrowseResponse {
	vs := e.View()
	resp := BrowseResponse{
		SessionID: sessionID,
		Libraries: newLibraryResponses(e.Libraries()),
		Status:    newStatusResponse(e.Status()),
		Filters: FiltersResponse{
			Authors: nonNil(vs.Authors.Values()),
			Tags:    nonNil(vs.Tags.Values()),
			Series:  nonNil(vs.Series.Values()),
			Formats: nonNil(vs.Formats.Values()),
			Search:  vs.Search,
			Sort:    string(vs.Sort),
		},
		Formats:     newFormatResponses(e.Formats()),
		Books:       newBookResponses(e.Visible()),
		Preferences: newPreferencesBody(e.Preferences()),
	}
	if r, ok := e.SelectedRecord(); ok {
		book := newBookResponse(r)
		resp.SelectedBook = &book
		resp.SelectedLibrary = vs.SelectedRecordLibraryID
	}
	return resp
}

func newStatusResponse(st browse.Status) StatusResponse {
	return StatusResponse{
		LibraryID:   st.LibraryID,
		LibraryName: st.LibraryName,
		Message:     st.Message,
		Total:       st.Total,
		Filtered:    st.Filtered,
		Displayed:   st.Displayed,
		HasMore:     st.HasMore,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// MessageResponse contains a simple message.
type MessageResponse struct {
	Message string `json:"message" doc:"Result message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}
