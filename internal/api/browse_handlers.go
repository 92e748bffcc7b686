package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/biblioapp/biblio/internal/browse"
	"github.com/biblioapp/biblio/internal/catalog"
	domainerrors "github.com/biblioapp/biblio/internal/errors"
)

func (s *Server) registerBrowseRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "openBrowseSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/browse/sessions",
		Summary:     "Open browse session",
		Description: "Starts a browse session, or resumes a returning client's persisted view when its session ID is given",
		Tags:        []string{"Browse"},
	}, s.handleOpenSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "closeBrowseSession",
		Method:      http.MethodDelete,
		Path:        "/api/v1/browse/sessions",
		Summary:     "Close browse session",
		Description: "Drops a browse session from memory; with forget set its persisted view is deleted too",
		Tags:        []string{"Browse"},
	}, s.handleCloseSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBrowseState",
		Method:      http.MethodGet,
		Path:        "/api/v1/browse",
		Summary:     "Get browse state",
		Description: "Returns the libraries, status line, filters and visible books of a session",
		Tags:        []string{"Browse"},
	}, s.handleGetBrowse)

	huma.Register(s.api, huma.Operation{
		OperationID: "activateLibrary",
		Method:      http.MethodPost,
		Path:        "/api/v1/browse/library",
		Summary:     "Activate library",
		Description: "Switches the session to a library and reconciles the persisted view with it",
		Tags:        []string{"Browse"},
	}, s.handleActivateLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID: "refreshBrowseLibraries",
		Method:      http.MethodPost,
		Path:        "/api/v1/browse/refresh",
		Summary:     "Refresh library list",
		Description: "Re-reads the library list for this session and falls back when the active library vanished",
		Tags:        []string{"Browse"},
	}, s.handleRefreshBrowse)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleFilter",
		Method:      http.MethodPost,
		Path:        "/api/v1/browse/filters/{axis}/toggle",
		Summary:     "Toggle filter value",
		Description: "Adds or removes one author, tag, series or format from the filter",
		Tags:        []string{"Browse"},
	}, s.handleToggleFilter)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearFilterAxis",
		Method:      http.MethodDelete,
		Path:        "/api/v1/browse/filters/{axis}",
		Summary:     "Clear filter axis",
		Description: "Empties one filter axis",
		Tags:        []string{"Browse"},
	}, s.handleClearAxis)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearFilters",
		Method:      http.MethodDelete,
		Path:        "/api/v1/browse/filters",
		Summary:     "Clear filters",
		Description: "Empties every filter axis and the search term",
		Tags:        []string{"Browse"},
	}, s.handleClearFilters)

	huma.Register(s.api, huma.Operation{
		OperationID: "setSearch",
		Method:      http.MethodPut,
		Path:        "/api/v1/browse/search",
		Summary:     "Set search term",
		Description: "Replaces the search term; an empty term matches every book",
		Tags:        []string{"Browse"},
	}, s.handleSetSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "setSort",
		Method:      http.MethodPut,
		Path:        "/api/v1/browse/sort",
		Summary:     "Set sort method",
		Description: "Orders the filtered books by recency, title or author",
		Tags:        []string{"Browse"},
	}, s.handleSetSort)

	huma.Register(s.api, huma.Operation{
		OperationID: "loadMoreBooks",
		Method:      http.MethodPost,
		Path:        "/api/v1/browse/more",
		Summary:     "Load next page",
		Description: "Materializes the next page of filtered books",
		Tags:        []string{"Browse"},
	}, s.handleLoadMore)

	huma.Register(s.api, huma.Operation{
		OperationID: "fillViewport",
		Method:      http.MethodPost,
		Path:        "/api/v1/browse/fill",
		Summary:     "Fill viewport",
		Description: "Materializes pages until at least the given number of books is visible or none remain",
		Tags:        []string{"Browse"},
	}, s.handleFill)

	huma.Register(s.api, huma.Operation{
		OperationID: "selectBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/browse/select",
		Summary:     "Select book",
		Description: "Selects a book of the active library for the detail panel",
		Tags:        []string{"Browse"},
	}, s.handleSelectBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearSelection",
		Method:      http.MethodDelete,
		Path:        "/api/v1/browse/select",
		Summary:     "Clear selection",
		Description: "Closes the detail panel",
		Tags:        []string{"Browse"},
	}, s.handleClearSelection)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBrowseFacets",
		Method:      http.MethodGet,
		Path:        "/api/v1/browse/facets/{type}",
		Summary:     "Get filter facets",
		Description: "Returns the authors, tags or series of the active library, bucketed by first letter when the list is long",
		Tags:        []string{"Browse"},
	}, s.handleGetFacets)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBrowseFormats",
		Method:      http.MethodGet,
		Path:        "/api/v1/browse/formats",
		Summary:     "Get filter formats",
		Description: "Returns the formats of the active library with book counts",
		Tags:        []string{"Browse"},
	}, s.handleGetFormats)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPreferences",
		Method:      http.MethodGet,
		Path:        "/api/v1/browse/preferences",
		Summary:     "Get preferences",
		Description: "Returns the durable display preferences",
		Tags:        []string{"Browse"},
	}, s.handleGetPreferences)

	huma.Register(s.api, huma.Operation{
		OperationID: "updatePreferences",
		Method:      http.MethodPut,
		Path:        "/api/v1/browse/preferences",
		Summary:     "Update preferences",
		Description: "Replaces the durable display preferences",
		Tags:        []string{"Browse"},
	}, s.handleUpdatePreferences)

	huma.Register(s.api, huma.Operation{
		OperationID: "setViewMode",
		Method:      http.MethodPut,
		Path:        "/api/v1/browse/view-mode",
		Summary:     "Set view mode",
		Description: "Switches between grid and table layout and starts the visible list over",
		Tags:        []string{"Browse"},
	}, s.handleSetViewMode)
}

// === DTOs ===

// SessionInput identifies the browse session of a request.
type SessionInput struct {
	Session string `header:"X-Browse-Session" doc:"Browse session ID"`
}

// OpenSessionRequest is the request body for opening a session.
type OpenSessionRequest struct {
	SessionID string `json:"session_id,omitempty" doc:"Session ID of a returning client"`
}

// OpenSessionInput wraps the open session request for Huma.
type OpenSessionInput struct {
	Body OpenSessionRequest `required:"false"`
}

// OpenSessionResponse contains a started or resumed session.
type OpenSessionResponse struct {
	Created bool           `json:"created" doc:"Whether a new in-memory session was started"`
	State   BrowseResponse `json:"state" doc:"Session state"`
}

// OpenSessionOutput wraps the open session response for Huma.
type OpenSessionOutput struct {
	Session string `header:"X-Browse-Session"`
	Body    OpenSessionResponse
}

// CloseSessionInput contains parameters for closing a session.
type CloseSessionInput struct {
	Session string `header:"X-Browse-Session" doc:"Browse session ID"`
	Forget  bool   `query:"forget" doc:"Also delete the persisted view"`
}

// BrowseOutput wraps the browse state for Huma.
type BrowseOutput struct {
	Body BrowseResponse
}

// ActivateLibraryRequest is the request body for activating a library.
type ActivateLibraryRequest struct {
	LibraryID string `json:"library_id" minLength:"1" doc:"Library to activate"`
}

// ActivateLibraryInput wraps the activate request for Huma.
type ActivateLibraryInput struct {
	Session string `header:"X-Browse-Session" doc:"Browse session ID"`
	Body    ActivateLibraryRequest
}

// ToggleFilterRequest is the request body for toggling a filter value.
type ToggleFilterRequest struct {
	ID     int64  `json:"id,omitempty" doc:"Author, tag or series ID"`
	Format string `json:"format,omitempty" doc:"Format name, for the formats axis"`
}

// ToggleFilterInput wraps the toggle request for Huma.
type ToggleFilterInput struct {
	Session string `header:"X-Browse-Session" doc:"Browse session ID"`
	Axis    string `path:"axis" enum:"authors,tags,series,formats" doc:"Filter axis"`
	Body    ToggleFilterRequest
}

// ToggleFilterResponse reports the new state of a toggled value.
type ToggleFilterResponse struct {
	Selected bool           `json:"selected" doc:"Whether the value is now selected"`
	State    BrowseResponse `json:"state" doc:"Session state"`
}

// ToggleFilterOutput wraps the toggle response for Huma.
type ToggleFilterOutput struct {
	Body ToggleFilterResponse
}

// ClearAxisInput contains parameters for clearing one axis.
type ClearAxisInput struct {
	Session string `header:"X-Browse-Session" doc:"Browse session ID"`
	Axis    string `path:"axis" enum:"authors,tags,series,formats" doc:"Filter axis"`
}

// SetSearchRequest is the request body for setting the search term.
type SetSearchRequest struct {
	Search string `json:"search" maxLength:"500" doc:"Search term"`
}

// SetSearchInput wraps the search request for Huma.
type SetSearchInput struct {
	Session string `header:"X-Browse-Session" doc:"Browse session ID"`
	Body    SetSearchRequest
}

// SetSortRequest is the request body for setting the sort method.
type SetSortRequest struct {
	Sort string `json:"sort" enum:"recent,title,author" doc:"Sort method"`
}

// SetSortInput wraps the sort request for Huma.
type SetSortInput struct {
	Session string `header:"X-Browse-Session" doc:"Browse session ID"`
	Body    SetSortRequest
}

// PageOutput wraps a page of newly visible books for Huma.
type PageOutput struct {
	Body PageResponse
}

// FillInput contains parameters for filling the viewport.
type FillInput struct {
	Session string `header:"X-Browse-Session" doc:"Browse session ID"`
	Count   int    `query:"count" minimum:"1" maximum:"5000" default:"50" doc:"Books the client has room for"`
}

// SelectBookRequest is the request body for selecting a book.
type SelectBookRequest struct {
	BookID int64 `json:"book_id" doc:"Book ID in the active library"`
}

// SelectBookInput wraps the select request for Huma.
type SelectBookInput struct {
	Session string `header:"X-Browse-Session" doc:"Browse session ID"`
	Body    SelectBookRequest
}

// GetFacetsInput contains parameters for the filter facets.
type GetFacetsInput struct {
	Session string `header:"X-Browse-Session" doc:"Browse session ID"`
	Type    string `path:"type" enum:"authors,tags,series" doc:"Facet type"`
}

// GroupingOutput wraps a facet grouping for Huma.
type GroupingOutput struct {
	Body GroupingResponse
}

// PreferencesOutput wraps the preferences for Huma.
type PreferencesOutput struct {
	Body PreferencesBody
}

// UpdatePreferencesInput wraps the preferences update for Huma.
type UpdatePreferencesInput struct {
	Session string `header:"X-Browse-Session" doc:"Browse session ID"`
	Body    PreferencesBody
}

// SetViewModeRequest is the request body for switching layout.
type SetViewModeRequest struct {
	ViewMode string `json:"view_mode" enum:"grid,table" doc:"Layout"`
}

// SetViewModeInput wraps the view mode request for Huma.
type SetViewModeInput struct {
	Session string `header:"X-Browse-Session" doc:"Browse session ID"`
	Body    SetViewModeRequest
}

// === Handlers ===

func (s *Server) handleOpenSession(ctx context.Context, input *OpenSessionInput) (*OpenSessionOutput, error) {
	if err := s.allowSessionCreate(ctx); err != nil {
		return nil, err
	}

	sess, created, err := s.sessions.Open(ctx, input.Body.SessionID)
	if err != nil {
		return nil, err
	}

	out := &OpenSessionOutput{Session: sess.ID, Body: OpenSessionResponse{Created: created}}
	err = sess.Do(func(e *browse.Engine) error {
		out.Body.State = browseResponse(sess.ID, e)
		return nil
	})
	return out, err
}

func (s *Server) handleCloseSession(ctx context.Context, input *CloseSessionInput) (*MessageOutput, error) {
	if input.Session == "" {
		return nil, domainerrors.Validationf("missing %s header", SessionHeader)
	}
	if err := s.sessions.Close(ctx, input.Session, input.Forget); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Session closed"}}, nil
}

func (s *Server) handleGetBrowse(_ context.Context, input *SessionInput) (*BrowseOutput, error) {
	return s.withState(input.Session, func(*browse.Engine) error { return nil })
}

func (s *Server) handleActivateLibrary(ctx context.Context, input *ActivateLibraryInput) (*BrowseOutput, error) {
	sess, err := s.lookupSession(input.Session)
	if err != nil {
		return nil, err
	}

	decision, err := sess.Activate(ctx, input.Body.LibraryID)
	if err != nil {
		return nil, err
	}

	out := &BrowseOutput{}
	err = sess.Do(func(e *browse.Engine) error {
		out.Body = browseResponse(sess.ID, e)
		out.Body.ActivationResult = decision.String()
		return nil
	})
	return out, err
}

func (s *Server) handleRefreshBrowse(ctx context.Context, input *SessionInput) (*BrowseOutput, error) {
	return s.withState(input.Session, func(e *browse.Engine) error {
		return e.RefreshLibraries(ctx)
	})
}

func (s *Server) handleToggleFilter(ctx context.Context, input *ToggleFilterInput) (*ToggleFilterOutput, error) {
	axis, ok := browse.ParseAxis(input.Axis)
	if !ok {
		return nil, domainerrors.Validationf("unknown filter axis %q", input.Axis)
	}

	sess, err := s.lookupSession(input.Session)
	if err != nil {
		return nil, err
	}

	out := &ToggleFilterOutput{}
	err = sess.Do(func(e *browse.Engine) error {
		var err error
		if axis == browse.AxisFormats {
			out.Body.Selected, err = e.ToggleFormat(ctx, input.Body.Format)
		} else {
			out.Body.Selected, err = e.ToggleFacet(ctx, axis, input.Body.ID)
		}
		if err != nil {
			return err
		}
		out.Body.State = browseResponse(sess.ID, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleClearAxis(ctx context.Context, input *ClearAxisInput) (*BrowseOutput, error) {
	axis, ok := browse.ParseAxis(input.Axis)
	if !ok {
		return nil, domainerrors.Validationf("unknown filter axis %q", input.Axis)
	}
	return s.withState(input.Session, func(e *browse.Engine) error {
		return e.ClearAxis(ctx, axis)
	})
}

func (s *Server) handleClearFilters(ctx context.Context, input *SessionInput) (*BrowseOutput, error) {
	return s.withState(input.Session, func(e *browse.Engine) error {
		return e.ClearFilters(ctx)
	})
}

func (s *Server) handleSetSearch(ctx context.Context, input *SetSearchInput) (*BrowseOutput, error) {
	return s.withState(input.Session, func(e *browse.Engine) error {
		return e.SetSearch(ctx, input.Body.Search)
	})
}

func (s *Server) handleSetSort(ctx context.Context, input *SetSortInput) (*BrowseOutput, error) {
	return s.withState(input.Session, func(e *browse.Engine) error {
		return e.SetSort(ctx, browse.SortMethod(input.Body.Sort))
	})
}

func (s *Server) handleLoadMore(ctx context.Context, input *SessionInput) (*PageOutput, error) {
	return s.withPage(input.Session, func(e *browse.Engine) ([]*catalog.Record, error) {
		return e.MaterializeNextPage(ctx)
	})
}

func (s *Server) handleFill(ctx context.Context, input *FillInput) (*PageOutput, error) {
	return s.withPage(input.Session, func(e *browse.Engine) ([]*catalog.Record, error) {
		return e.Fill(ctx, func() bool { return e.Status().Displayed < input.Count })
	})
}

func (s *Server) handleSelectBook(ctx context.Context, input *SelectBookInput) (*BookOutput, error) {
	sess, err := s.lookupSession(input.Session)
	if err != nil {
		return nil, err
	}

	out := &BookOutput{}
	err = sess.Do(func(e *browse.Engine) error {
		r, err := e.SelectRecord(ctx, input.Body.BookID)
		if err != nil {
			return err
		}
		out.Body = newBookResponse(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleClearSelection(ctx context.Context, input *SessionInput) (*BrowseOutput, error) {
	return s.withState(input.Session, func(e *browse.Engine) error {
		e.ClearSelection(ctx)
		return nil
	})
}

func (s *Server) handleGetFacets(_ context.Context, input *GetFacetsInput) (*GroupingOutput, error) {
	t, err := catalog.ParseFacetType(input.Type)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}

	sess, err := s.lookupSession(input.Session)
	if err != nil {
		return nil, err
	}

	out := &GroupingOutput{}
	err = sess.Do(func(e *browse.Engine) error {
		if e.Catalog() == nil {
			return domainerrors.ErrNoLibrary
		}
		out.Body = newGroupingResponse(e.Facets(t))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleGetFormats(_ context.Context, input *SessionInput) (*ListFormatsOutput, error) {
	sess, err := s.lookupSession(input.Session)
	if err != nil {
		return nil, err
	}

	out := &ListFormatsOutput{}
	err = sess.Do(func(e *browse.Engine) error {
		if e.Catalog() == nil {
			return domainerrors.ErrNoLibrary
		}
		out.Body.Formats = newFormatResponses(e.Formats())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleGetPreferences(_ context.Context, input *SessionInput) (*PreferencesOutput, error) {
	sess, err := s.lookupSession(input.Session)
	if err != nil {
		return nil, err
	}

	out := &PreferencesOutput{}
	err = sess.Do(func(e *browse.Engine) error {
		out.Body = newPreferencesBody(e.Preferences())
		return nil
	})
	return out, err
}

func (s *Server) handleUpdatePreferences(ctx context.Context, input *UpdatePreferencesInput) (*PreferencesOutput, error) {
	sess, err := s.lookupSession(input.Session)
	if err != nil {
		return nil, err
	}

	out := &PreferencesOutput{}
	err = sess.Do(func(e *browse.Engine) error {
		prefs, err := e.SetPreferences(ctx, input.Body.preferences())
		if err != nil {
			return err
		}
		out.Body = newPreferencesBody(prefs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleSetViewMode(ctx context.Context, input *SetViewModeInput) (*BrowseOutput, error) {
	return s.withState(input.Session, func(e *browse.Engine) error {
		return e.SetViewMode(ctx, browse.ViewMode(input.Body.ViewMode))
	})
}

// withState runs fn on the session's engine and answers with the resulting state.
func (s *Server) withState(sessionID string, fn func(e *browse.Engine) error) (*BrowseOutput, error) {
	sess, err := s.lookupSession(sessionID)
	if err != nil {
		return nil, err
	}

	out := &BrowseOutput{}
	err = sess.Do(func(e *browse.Engine) error {
		if err := fn(e); err != nil {
			return err
		}
		out.Body = browseResponse(sess.ID, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// withPage runs a paging call and answers with the records it made visible.
func (s *Server) withPage(sessionID string, fn func(e *browse.Engine) ([]*catalog.Record, error)) (*PageOutput, error) {
	sess, err := s.lookupSession(sessionID)
	if err != nil {
		return nil, err
	}

	out := &PageOutput{}
	err = sess.Do(func(e *browse.Engine) error {
		page, err := fn(e)
		if err != nil {
			return err
		}
		status := newStatusResponse(e.Status())
		out.Body = PageResponse{Books: newBookResponses(page), Status: status, HasMore: status.HasMore}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
