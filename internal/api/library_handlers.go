package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/biblioapp/biblio/internal/browse"
	"github.com/biblioapp/biblio/internal/catalog"
	domainerrors "github.com/biblioapp/biblio/internal/errors"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listLibraries",
		Method:      http.MethodGet,
		Path:        "/api/v1/libraries",
		Summary:     "List libraries",
		Description: "Returns every library found under the configured root",
		Tags:        []string{"Libraries"},
	}, s.handleListLibraries)

	huma.Register(s.api, huma.Operation{
		OperationID: "refreshLibraries",
		Method:      http.MethodPost,
		Path:        "/api/v1/libraries/refresh",
		Summary:     "Rescan libraries",
		Description: "Rescans the library root and refreshes the library list of every browse session",
		Tags:        []string{"Libraries"},
	}, s.handleRefreshLibraries)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLibrary",
		Method:      http.MethodGet,
		Path:        "/api/v1/libraries/{id}",
		Summary:     "Get library",
		Description: "Returns a library by ID",
		Tags:        []string{"Libraries"},
	}, s.handleGetLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID: "listLibraryBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/libraries/{id}/books",
		Summary:     "List books",
		Description: "Returns one page of a library's books, optionally searched, format-filtered and sorted",
		Tags:        []string{"Libraries"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLibraryBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/libraries/{id}/books/{bookID}",
		Summary:     "Get book",
		Description: "Returns a single book with its comments rendered as Markdown",
		Tags:        []string{"Libraries"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBookFormats",
		Method:      http.MethodGet,
		Path:        "/api/v1/libraries/{id}/books/{bookID}/formats",
		Summary:     "List book formats",
		Description: "Returns the file formats a book can be downloaded in",
		Tags:        []string{"Libraries"},
	}, s.handleListBookFormats)

	huma.Register(s.api, huma.Operation{
		OperationID: "listLibraryFacets",
		Method:      http.MethodGet,
		Path:        "/api/v1/libraries/{id}/facets/{type}",
		Summary:     "List facets",
		Description: "Returns the authors, tags or series of a library with their book counts",
		Tags:        []string{"Libraries"},
	}, s.handleListFacets)

	huma.Register(s.api, huma.Operation{
		OperationID: "listLibraryFormats",
		Method:      http.MethodGet,
		Path:        "/api/v1/libraries/{id}/formats",
		Summary:     "List formats",
		Description: "Returns the file formats present in a library with their book counts",
		Tags:        []string{"Libraries"},
	}, s.handleListFormats)
}

// === DTOs ===

// ListLibrariesResponse contains a list of libraries.
type ListLibrariesResponse struct {
	Libraries []LibraryResponse `json:"libraries" doc:"List of libraries"`
}

// ListLibrariesOutput wraps the list libraries response for Huma.
type ListLibrariesOutput struct {
	Body ListLibrariesResponse
}

// GetLibraryInput contains parameters for getting a library.
type GetLibraryInput struct {
	ID string `path:"id" doc:"Library ID"`
}

// LibraryOutput wraps the library response for Huma.
type LibraryOutput struct {
	Body LibraryResponse
}

// ListBooksInput contains parameters for listing books.
type ListBooksInput struct {
	ID      string   `path:"id" doc:"Library ID"`
	Search  string   `query:"search" doc:"Case-insensitive substring of title or author"`
	Formats []string `query:"format" doc:"Only books offering one of these formats"`
	Sort    string   `query:"sort" enum:"recent,title,author" default:"recent" doc:"Sort method"`
	Offset  int      `query:"offset" minimum:"0" default:"0" doc:"Books to skip"`
	Limit   int      `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Maximum books to return"`
}

// ListBooksResponse contains one page of books.
type ListBooksResponse struct {
	Books    []BookResponse `json:"books" doc:"Books on this page"`
	Total    int            `json:"total" doc:"Books in the library"`
	Filtered int            `json:"filtered" doc:"Books matching the query"`
	Offset   int            `json:"offset" doc:"Offset of the first book"`
	HasMore  bool           `json:"has_more" doc:"Whether more books follow"`
}

// ListBooksOutput wraps the list books response for Huma.
type ListBooksOutput struct {
	Body ListBooksResponse
}

// GetBookInput contains parameters for getting a book.
type GetBookInput struct {
	ID     string `path:"id" doc:"Library ID"`
	BookID int64  `path:"bookID" minimum:"1" doc:"Book ID"`
}

// BookOutput wraps the book response for Huma.
type BookOutput struct {
	Body BookResponse
}

// BookFormatsResponse lists the downloadable formats of one book.
type BookFormatsResponse struct {
	Formats []string `json:"formats" doc:"Upper-cased format names"`
}

// BookFormatsOutput wraps the book formats response for Huma.
type BookFormatsOutput struct {
	Body BookFormatsResponse
}

// ListFacetsInput contains parameters for listing facets.
type ListFacetsInput struct {
	ID    string `path:"id" doc:"Library ID"`
	Type  string `path:"type" enum:"authors,tags,series" doc:"Facet type"`
	Limit int    `query:"limit" minimum:"0" doc:"Maximum facets to return; 0 uses the server default"`
}

// ListFacetsResponse contains facets sorted for display.
type ListFacetsResponse struct {
	Type      string          `json:"type" doc:"Facet type"`
	Facets    []FacetResponse `json:"facets" doc:"Facets in display order"`
	Total     int             `json:"total" doc:"Facets in the library"`
	Truncated bool            `json:"truncated" doc:"Whether the list was cut at the limit"`
}

// ListFacetsOutput wraps the list facets response for Huma.
type ListFacetsOutput struct {
	Body ListFacetsResponse
}

// ListFormatsResponse contains format counts.
type ListFormatsResponse struct {
	Formats []FormatResponse `json:"formats" doc:"Formats with book counts"`
}

// ListFormatsOutput wraps the list formats response for Huma.
type ListFormatsOutput struct {
	Body ListFormatsResponse
}

// === Handlers ===

func (s *Server) handleListLibraries(ctx context.Context, _ *struct{}) (*ListLibrariesOutput, error) {
	libraries, err := s.library.Libraries(ctx)
	if err != nil {
		return nil, domainerrors.Unavailable(err, "failed to list libraries")
	}
	return &ListLibrariesOutput{Body: ListLibrariesResponse{Libraries: newLibraryResponses(libraries)}}, nil
}

func (s *Server) handleRefreshLibraries(ctx context.Context, _ *struct{}) (*ListLibrariesOutput, error) {
	if err := s.sessions.Reload(ctx); err != nil {
		return nil, err
	}
	return s.handleListLibraries(ctx, nil)
}

func (s *Server) handleGetLibrary(ctx context.Context, input *GetLibraryInput) (*LibraryOutput, error) {
	lib, err := s.library.Library(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &LibraryOutput{Body: newLibraryResponse(lib)}, nil
}

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	cat, err := catalog.Fetch(ctx, s.library, input.ID)
	if err != nil {
		return nil, err
	}

	vs := browse.NewViewState()
	vs.Search = input.Search
	for _, f := range input.Formats {
		vs.Formats.Add(f)
	}
	ordered := browse.Sort(browse.Filter(cat.Records, vs, cat.Index), browse.ParseSortMethod(input.Sort), cat.Index)

	start := min(input.Offset, len(ordered))
	end := min(start+input.Limit, len(ordered))

	return &ListBooksOutput{Body: ListBooksResponse{
		Books:    newBookResponses(ordered[start:end]),
		Total:    cat.Len(),
		Filtered: len(ordered),
		Offset:   start,
		HasMore:  end < len(ordered),
	}}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *GetBookInput) (*BookOutput, error) {
	if _, err := s.library.Library(ctx, input.ID); err != nil {
		return nil, err
	}
	r, err := s.library.Book(ctx, input.ID, input.BookID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: newBookResponse(r)}, nil
}

func (s *Server) handleListBookFormats(ctx context.Context, input *GetBookInput) (*BookFormatsOutput, error) {
	book, err := s.handleGetBook(ctx, input)
	if err != nil {
		return nil, err
	}
	return &BookFormatsOutput{Body: BookFormatsResponse{Formats: nonNil(book.Body.Formats)}}, nil
}

func (s *Server) handleListFacets(ctx context.Context, input *ListFacetsInput) (*ListFacetsOutput, error) {
	t, err := catalog.ParseFacetType(input.Type)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}
	if _, err := s.library.Library(ctx, input.ID); err != nil {
		return nil, err
	}

	facets, err := s.library.Facets(ctx, input.ID, t)
	if err != nil {
		return nil, domainerrors.Unavailable(err, "failed to load "+string(t))
	}
	sorted := browse.SortFacets(facets, t)

	limit := input.Limit
	if limit <= 0 {
		limit = defaultFacetLimit
	}
	limit = min(limit, maxFacetLimit)

	resp := ListFacetsResponse{Type: string(t), Total: len(sorted)}
	if len(sorted) > limit {
		sorted = sorted[:limit]
		resp.Truncated = true
	}
	resp.Facets = newFacetResponses(sorted)
	return &ListFacetsOutput{Body: resp}, nil
}

func (s *Server) handleListFormats(ctx context.Context, input *GetLibraryInput) (*ListFormatsOutput, error) {
	if _, err := s.library.Library(ctx, input.ID); err != nil {
		return nil, err
	}
	records, err := s.library.Records(ctx, input.ID)
	if err != nil {
		return nil, domainerrors.Unavailable(err, "failed to load books")
	}
	return &ListFormatsOutput{Body: ListFormatsResponse{Formats: newFormatResponses(catalog.CountFormats(records))}}, nil
}
