package api

import (
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biblioapp/biblio/internal/catalog"
	"github.com/biblioapp/biblio/internal/session"
	"github.com/biblioapp/biblio/internal/state"
)

func TestOpenSession_StartsOnFirstLibrary(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/browse/sessions", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	data := decodeData[OpenSessionResponse](t, resp.Body.Bytes())
	assert.True(t, data.Created)
	assert.Equal(t, resp.Header().Get(SessionHeader), data.State.SessionID)
	assert.Len(t, data.State.Libraries, 2)
	assert.Equal(t, "lib-a", data.State.Status.LibraryID)
	assert.Equal(t, 3, data.State.Status.Total)
	assert.Equal(t, 3, data.State.Status.Filtered)
	assert.True(t, data.State.Status.HasMore)
	assert.Equal(t, []string{"Dune", "Foundation"}, bookTitles(data.State.Books))
	assert.Equal(t, "recent", data.State.Filters.Sort)
	assert.Equal(t, "grid", data.State.Preferences.ViewMode)
}

func TestOpenSession_RejectsMalformedID(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/browse/sessions", map[string]any{"session_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decodeError(t, resp.Body.Bytes()).Code)
}

func TestOpenSession_RateLimited(t *testing.T) {
	ts := setupTestServerWithOptions(t, Options{SessionRate: 1, SessionBurst: 1})

	resp := ts.api.Post("/api/v1/browse/sessions", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/browse/sessions", map[string]any{})
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, resp.Body.Bytes()).Code)
}

func TestBrowse_SessionHeaderRequired(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/browse")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Get("/api/v1/browse", sessionHeader("brw-unknownunknownunknown1"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NO_SESSION", decodeError(t, resp.Body.Bytes()).Code)
}

func TestBrowse_ToggleAuthorFilter(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Post("/api/v1/browse/filters/authors/toggle", sessionHeader(id), map[string]any{"id": 10})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	data := decodeData[ToggleFilterResponse](t, resp.Body.Bytes())
	assert.True(t, data.Selected)
	assert.Equal(t, []int64{10}, data.State.Filters.Authors)
	assert.Equal(t, []string{"Dune"}, bookTitles(data.State.Books))
	assert.Equal(t, 1, data.State.Status.Filtered)

	resp = ts.api.Post("/api/v1/browse/filters/authors/toggle", sessionHeader(id), map[string]any{"id": 10})
	data = decodeData[ToggleFilterResponse](t, resp.Body.Bytes())
	assert.False(t, data.Selected)
	assert.Empty(t, data.State.Filters.Authors)
	assert.Equal(t, 3, data.State.Status.Filtered)
}

func TestBrowse_ToggleUnknownFacet(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Post("/api/v1/browse/filters/tags/toggle", sessionHeader(id), map[string]any{"id": 999})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body.Bytes()).Code)

	resp = ts.api.Post("/api/v1/browse/filters/colors/toggle", sessionHeader(id), map[string]any{"id": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestBrowse_FormatFilterAndClear(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Post("/api/v1/browse/filters/formats/toggle", sessionHeader(id), map[string]any{"format": "epub"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	data := decodeData[ToggleFilterResponse](t, resp.Body.Bytes())
	assert.Equal(t, []string{"EPUB"}, data.State.Filters.Formats)
	assert.Equal(t, []string{"Dune", "Emma"}, bookTitles(data.State.Books))

	resp = ts.api.Delete("/api/v1/browse/filters/formats", sessionHeader(id))
	require.Equal(t, http.StatusOK, resp.Code)
	state := decodeData[BrowseResponse](t, resp.Body.Bytes())
	assert.Empty(t, state.Filters.Formats)
	assert.Equal(t, 3, state.Status.Filtered)
}

func TestBrowse_SearchSortAndPaging(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Put("/api/v1/browse/search", sessionHeader(id), map[string]any{"search": "FOUND"})
	require.Equal(t, http.StatusOK, resp.Code)
	state := decodeData[BrowseResponse](t, resp.Body.Bytes())
	assert.Equal(t, []string{"Foundation"}, bookTitles(state.Books))

	resp = ts.api.Delete("/api/v1/browse/filters", sessionHeader(id))
	require.Equal(t, http.StatusOK, resp.Code)
	state = decodeData[BrowseResponse](t, resp.Body.Bytes())
	assert.Empty(t, state.Filters.Search)

	resp = ts.api.Put("/api/v1/browse/sort", sessionHeader(id), map[string]any{"sort": "title"})
	require.Equal(t, http.StatusOK, resp.Code)
	state = decodeData[BrowseResponse](t, resp.Body.Bytes())
	assert.Equal(t, "title", state.Filters.Sort)
	assert.Equal(t, []string{"Dune", "Emma"}, bookTitles(state.Books))

	resp = ts.api.Post("/api/v1/browse/more", sessionHeader(id))
	require.Equal(t, http.StatusOK, resp.Code)
	page := decodeData[PageResponse](t, resp.Body.Bytes())
	assert.Equal(t, []string{"Foundation"}, bookTitles(page.Books))
	assert.False(t, page.HasMore)
	assert.Equal(t, 3, page.Status.Displayed)

	resp = ts.api.Post("/api/v1/browse/more", sessionHeader(id))
	require.Equal(t, http.StatusOK, resp.Code)
	page = decodeData[PageResponse](t, resp.Body.Bytes())
	assert.Empty(t, page.Books)
}

func TestBrowse_SortRejectsUnknownMethod(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Put("/api/v1/browse/sort", sessionHeader(id), map[string]any{"sort": "random"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "VALIDATION", decodeError(t, resp.Body.Bytes()).Code)
}

func TestBrowse_Fill(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Post("/api/v1/browse/fill?count=3", sessionHeader(id))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	page := decodeData[PageResponse](t, resp.Body.Bytes())
	assert.Equal(t, []string{"Emma"}, bookTitles(page.Books))
	assert.False(t, page.HasMore)
}

func TestBrowse_ActivateLibrary(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Post("/api/v1/browse/filters/authors/toggle", sessionHeader(id), map[string]any{"id": 12})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/browse/library", sessionHeader(id), map[string]any{"library_id": "lib-b"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	state := decodeData[BrowseResponse](t, resp.Body.Bytes())
	assert.Equal(t, "clear", state.ActivationResult)
	assert.Equal(t, "lib-b", state.Status.LibraryID)
	assert.Equal(t, "Beta", state.Status.LibraryName)
	assert.Empty(t, state.Filters.Authors)
	assert.Equal(t, []string{"Persuasion"}, bookTitles(state.Books))

	resp = ts.api.Post("/api/v1/browse/library", sessionHeader(id), map[string]any{"library_id": "lib-b"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "refresh", decodeData[BrowseResponse](t, resp.Body.Bytes()).ActivationResult)
}

func TestBrowse_ActivateUnknownLibrary(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Post("/api/v1/browse/library", sessionHeader(id), map[string]any{"library_id": "lib-z"})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Get("/api/v1/browse", sessionHeader(id))
	assert.Equal(t, "lib-a", decodeData[BrowseResponse](t, resp.Body.Bytes()).Status.LibraryID)
}

func TestBrowse_RefreshFallsBackWhenLibraryVanishes(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	ts.source.Remove("lib-a")

	resp := ts.api.Post("/api/v1/browse/refresh", sessionHeader(id))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	state := decodeData[BrowseResponse](t, resp.Body.Bytes())
	assert.Len(t, state.Libraries, 1)
	assert.Equal(t, "lib-b", state.Status.LibraryID)
}

func TestBrowse_SelectBook(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Post("/api/v1/browse/select", sessionHeader(id), map[string]any{"book_id": 1})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	book := decodeData[BookResponse](t, resp.Body.Bytes())
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, 4, book.Stars)
	assert.Equal(t, "A **desert** planet.", book.CommentsMarkdown)

	resp = ts.api.Get("/api/v1/browse", sessionHeader(id))
	state := decodeData[BrowseResponse](t, resp.Body.Bytes())
	require.NotNil(t, state.SelectedBook)
	assert.Equal(t, int64(1), state.SelectedBook.ID)
	assert.Equal(t, "lib-a", state.SelectedLibrary)

	resp = ts.api.Delete("/api/v1/browse/select", sessionHeader(id))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, decodeData[BrowseResponse](t, resp.Body.Bytes()).SelectedBook)

	resp = ts.api.Post("/api/v1/browse/select", sessionHeader(id), map[string]any{"book_id": 99})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestBrowse_Facets(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Get("/api/v1/browse/facets/authors", sessionHeader(id))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	grouping := decodeData[GroupingResponse](t, resp.Body.Bytes())
	assert.False(t, grouping.Grouped)
	require.Len(t, grouping.Flat, 3)
	assert.Equal(t, "Isaac Asimov", grouping.Flat[0].Name)
	assert.Equal(t, "Jane Austen", grouping.Flat[1].Name)
	assert.Equal(t, "Frank Herbert", grouping.Flat[2].Name)

	resp = ts.api.Get("/api/v1/browse/formats", sessionHeader(id))
	require.Equal(t, http.StatusOK, resp.Code)
	formats := decodeData[ListFormatsResponse](t, resp.Body.Bytes())
	assert.Equal(t, []FormatResponse{{Name: "EPUB", Count: 2}, {Name: "PDF", Count: 2}}, formats.Formats)
}

func TestBrowse_FacetsWithoutLibrary(t *testing.T) {
	source := &fakeLibrary{MemorySource: catalog.NewMemorySource(), dir: t.TempDir()}
	store := state.NewMemoryStore(0)
	s := NewServer(Deps{
		Library:  source,
		Sessions: session.NewManager(source, store, nil, session.Options{}),
		Store:    store,
	}, Options{SessionRate: 1000, SessionBurst: 1000}, nil)
	t.Cleanup(s.Close)
	ts := &testServer{Server: s, api: humatest.Wrap(t, s.API()), source: source}
	id := ts.openSession(t)

	for _, path := range []string{"/api/v1/browse/formats", "/api/v1/browse/facets/authors"} {
		resp := ts.api.Get(path, sessionHeader(id))
		assert.Equal(t, http.StatusConflict, resp.Code, path)
		assert.Equal(t, "NO_LIBRARY", decodeError(t, resp.Body.Bytes()).Code, path)
	}
}

func TestBrowse_Preferences(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Get("/api/v1/browse/preferences", sessionHeader(id))
	require.Equal(t, http.StatusOK, resp.Code)
	prefs := decodeData[PreferencesBody](t, resp.Body.Bytes())
	assert.Equal(t, "grid", prefs.ViewMode)
	assert.Equal(t, 120, prefs.CoverSize)

	resp = ts.api.Put("/api/v1/browse/preferences", sessionHeader(id), map[string]any{
		"view_mode":  "table",
		"cover_size": 200,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	prefs = decodeData[PreferencesBody](t, resp.Body.Bytes())
	assert.Equal(t, "table", prefs.ViewMode)
	assert.Equal(t, 200, prefs.CoverSize)

	resp = ts.api.Put("/api/v1/browse/preferences", sessionHeader(id), map[string]any{
		"view_mode":  "grid",
		"cover_size": 10,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestBrowse_SetViewModeRewinds(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Post("/api/v1/browse/more", sessionHeader(id))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Put("/api/v1/browse/view-mode", sessionHeader(id), map[string]any{"view_mode": "table"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	state := decodeData[BrowseResponse](t, resp.Body.Bytes())
	assert.Equal(t, "table", state.Preferences.ViewMode)
	assert.Len(t, state.Books, 2)
}

func TestCloseSession_ResumeRestoresView(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Post("/api/v1/browse/filters/tags/toggle", sessionHeader(id), map[string]any{"id": 21})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/v1/browse/sessions", sessionHeader(id))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/browse", sessionHeader(id))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Post("/api/v1/browse/sessions", map[string]any{"session_id": id})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	data := decodeData[OpenSessionResponse](t, resp.Body.Bytes())
	assert.True(t, data.Created)
	assert.Equal(t, []int64{21}, data.State.Filters.Tags)
	assert.Equal(t, []string{"Emma"}, bookTitles(data.State.Books))
}

func TestCloseSession_ForgetDropsView(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.openSession(t)

	resp := ts.api.Post("/api/v1/browse/filters/tags/toggle", sessionHeader(id), map[string]any{"id": 21})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/v1/browse/sessions?forget=true", sessionHeader(id))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/browse/sessions", map[string]any{"session_id": id})
	require.Equal(t, http.StatusOK, resp.Code)
	data := decodeData[OpenSessionResponse](t, resp.Body.Bytes())
	assert.Empty(t, data.State.Filters.Tags)
	assert.Equal(t, 3, data.State.Status.Filtered)

	resp = ts.api.Delete("/api/v1/browse/sessions", sessionHeader("brw-unknownunknownunknown1"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
