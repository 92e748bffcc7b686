package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/biblioapp/biblio/internal/catalog"
	domainerrors "github.com/biblioapp/biblio/internal/errors"
	"github.com/biblioapp/biblio/internal/session"
	"github.com/biblioapp/biblio/internal/state"
)

// testEnvelope is used to decode enveloped API responses in tests.
type testEnvelope[T any] struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

// testErrorEnvelope decodes coded error responses.
type testErrorEnvelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// fakeLibrary serves a MemorySource plus cover and format files from a temp dir.
type fakeLibrary struct {
	*catalog.MemorySource
	dir string
}

func (f *fakeLibrary) Library(ctx context.Context, id string) (catalog.Library, error) {
	libs, _ := f.Libraries(ctx)
	for _, lib := range libs {
		if lib.ID == id {
			return lib, nil
		}
	}
	return catalog.Library{}, domainerrors.NotFoundf("library %s not found", id)
}

func (f *fakeLibrary) Book(ctx context.Context, libraryID string, bookID int64) (*catalog.Record, error) {
	records, err := f.Records(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID == bookID {
			return r, nil
		}
	}
	return nil, domainerrors.NotFoundf("book %d not found", bookID)
}

func (f *fakeLibrary) CoverPath(ctx context.Context, libraryID string, bookID int64) (string, error) {
	r, err := f.Book(ctx, libraryID, bookID)
	if err != nil {
		return "", err
	}
	if !r.HasCover {
		return "", domainerrors.NotFound("book not found")
	}
	return filepath.Join(f.dir, libraryID, strconv.FormatInt(bookID, 10), "cover.jpg"), nil
}

func (f *fakeLibrary) FormatPath(ctx context.Context, libraryID string, bookID int64, format string) (string, error) {
	r, err := f.Book(ctx, libraryID, bookID)
	if err != nil {
		return "", err
	}
	format = strings.ToUpper(format)
	if !slices.Contains(r.DisplayFormats(), format) {
		return "", domainerrors.NotFoundf("format %s not found for book %d", format, bookID)
	}
	name := strings.ReplaceAll(r.Title, " ", "_") + "." + strings.ToLower(format)
	return filepath.Join(f.dir, libraryID, strconv.FormatInt(bookID, 10), name), nil
}

func ptr[T any](v T) *T { return &v }

// newFakeLibrary builds two libraries. Alpha holds three books, most recent first, and
// writes the cover and EPUB of Dune to disk.
func newFakeLibrary(t *testing.T) *fakeLibrary {
	t.Helper()

	src := catalog.NewMemorySource()
	src.Put(catalog.Library{ID: "lib-a", Name: "Alpha"},
		[]*catalog.Record{
			{
				ID: 1, Title: "Dune", Authors: []string{"Frank Herbert"}, Tags: []string{"Fiction"},
				Series: "Dune", SeriesIndex: ptr(1.0), Rating: ptr(8), HasCover: true,
				Comments: "<p>A <b>desert</b> planet.</p>", Formats: []string{"epub", "pdf"},
			},
			{ID: 2, Title: "Foundation", Authors: []string{"Isaac Asimov"}, Tags: []string{"Fiction"}, Formats: []string{"pdf"}},
			{ID: 3, Title: "Emma", Authors: []string{"Jane Austen"}, Tags: []string{"Classic"}, Formats: []string{"epub"}},
		},
		[]catalog.Facet{
			{ID: 10, Name: "Frank Herbert", Sort: "Herbert, Frank", Count: 1},
			{ID: 11, Name: "Isaac Asimov", Sort: "Asimov, Isaac", Count: 1},
			{ID: 12, Name: "Jane Austen", Sort: "Austen, Jane", Count: 1},
		},
		[]catalog.Facet{{ID: 20, Name: "Fiction", Count: 2}, {ID: 21, Name: "Classic", Count: 1}},
		[]catalog.Facet{{ID: 30, Name: "Dune", Count: 1}},
	)
	src.Put(catalog.Library{ID: "lib-b", Name: "Beta"},
		[]*catalog.Record{{ID: 7, Title: "Persuasion", Authors: []string{"Jane Austen"}, Formats: []string{"mobi"}}},
		[]catalog.Facet{{ID: 40, Name: "Jane Austen", Sort: "Austen, Jane", Count: 1}},
		nil, nil,
	)

	lib := &fakeLibrary{MemorySource: src, dir: t.TempDir()}

	bookDir := filepath.Join(lib.dir, "lib-a", "1")
	require.NoError(t, os.MkdirAll(bookDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bookDir, "cover.jpg"), []byte("\xff\xd8\xff\xe0cover"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(bookDir, "Dune.epub"), []byte("epub-bytes"), 0o644))

	return lib
}

// testServer bundles a server with its humatest client.
type testServer struct {
	*Server
	api    humatest.TestAPI
	source *fakeLibrary
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithOptions(t, Options{SessionRate: 1000, SessionBurst: 1000})
}

func setupTestServerWithOptions(t *testing.T, opts Options) *testServer {
	t.Helper()

	source := newFakeLibrary(t)
	store := state.NewMemoryStore(0)
	sessions := session.NewManager(source, store, nil, session.Options{PageSize: 2})

	s := NewServer(Deps{Library: source, Sessions: sessions, Store: store}, opts, nil)
	t.Cleanup(s.Close)

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.API()),
		source: source,
	}
}

// openSession opens a fresh browse session and returns its id.
func (ts *testServer) openSession(t *testing.T) string {
	t.Helper()

	resp := ts.api.Post("/api/v1/browse/sessions", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code, "open session failed: %s", resp.Body.String())

	id := resp.Header().Get(SessionHeader)
	require.NotEmpty(t, id)
	return id
}

func sessionHeader(id string) string {
	return SessionHeader + ": " + id
}

func decodeData[T any](t *testing.T, body []byte) T {
	t.Helper()

	var envelope testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.True(t, envelope.Success, "expected success envelope: %s", body)
	return envelope.Data
}

func decodeError(t *testing.T, body []byte) testErrorEnvelope {
	t.Helper()

	var envelope testErrorEnvelope
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.False(t, envelope.Success, "expected error envelope: %s", body)
	return envelope
}

func bookTitles(books []BookResponse) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Title
	}
	return out
}
