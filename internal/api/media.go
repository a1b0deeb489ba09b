package api

import (
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/halvard/gebo/internal/media"
)

// MediaHandler accepts uploads into the local media backend and serves the
// stored files back under their content-addressed names.
type MediaHandler struct {
	local *media.Local
}

// NewMediaHandler creates a handler over the local backend.
func NewMediaHandler(local *media.Local) *MediaHandler {
	return &MediaHandler{local: local}
}

// ServeFile handles GET /media/{name}.
func (h *MediaHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	abs, err := h.local.Path(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/media (multipart/form-data, field "file").
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	ref, err := h.local.Upload(r.Context(), media.Attachment{Filename: header.Filename, Data: data})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to store file"))
		return
	}

	writeJSON(w, http.StatusCreated, MediaUploadResponse{
		Reference: ref,
		Size:      int64(len(data)),
	})
}
