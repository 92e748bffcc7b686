package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	domainerrors "github.com/biblioapp/biblio/internal/errors"
)

// File routes stream from disk, so they use chi directly rather than huma.
func (s *Server) registerFileRoutes() {
	s.router.Get("/api/v1/libraries/{id}/books/{bookID}/cover", s.handleServeCover)
	s.router.Get("/api/v1/libraries/{id}/books/{bookID}/formats/{format}", s.handleServeFormat)
}

func (s *Server) handleServeCover(w http.ResponseWriter, r *http.Request) {
	libraryID := chi.URLParam(r, "id")
	bookID, err := strconv.ParseInt(chi.URLParam(r, "bookID"), 10, 64)
	if err != nil {
		writeError(w, domainerrors.Validation("book id must be an integer"))
		return
	}

	path, err := s.library.CoverPath(r.Context(), libraryID, bookID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", CacheOneDay)
	http.ServeFile(w, r, path)
}

func (s *Server) handleServeFormat(w http.ResponseWriter, r *http.Request) {
	libraryID := chi.URLParam(r, "id")
	format := chi.URLParam(r, "format")
	bookID, err := strconv.ParseInt(chi.URLParam(r, "bookID"), 10, 64)
	if err != nil {
		writeError(w, domainerrors.Validation("book id must be an integer"))
		return
	}

	path, err := s.library.FormatPath(r.Context(), libraryID, bookID, format)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(path)}))
	w.Header().Set("Cache-Control", CacheNoStore)
	http.ServeFile(w, r, path)
}

// writeError renders err in the same envelope huma routes use.
func writeError(w http.ResponseWriter, err error) {
	env := APIErrorEnvelope{
		Version: EnvelopeVersion,
		Code:    string(domainerrors.CodeInternal),
		Message: "internal error",
	}
	status := http.StatusInternalServerError

	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		status = domainErr.HTTPStatus()
		env.Code = string(domainErr.Code)
		env.Message = domainErr.Message
		env.Details = domainErr.Details
	}
	env.Error = env.Message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
