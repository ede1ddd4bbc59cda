package handlers

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/closetly/apiserver/internal/storage"
)

// MediaHandler streams stored item images.
type MediaHandler struct {
	storage *storage.Storage
}

// NewMediaHandler constructs a handler serving objects from storage.
func NewMediaHandler(store *storage.Storage) *MediaHandler {
	return &MediaHandler{storage: store}
}

// MediaRouter registers the media route.
func MediaRouter(r chi.Router, store *storage.Storage) {
	handler := NewMediaHandler(store)
	r.Get("/*", handler.GetObject)
}

// GetObject streams a stored object. Unknown keys read as 404; object keys
// never escape the bucket, so no path validation beyond cleaning is needed.
func (h *MediaHandler) GetObject(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(path.Clean("/"+chi.URLParam(r, "*")), "/")
	if key == "" || key == "." {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	reader, err := h.storage.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	defer reader.Close()

	if contentType := mime.TypeByExtension(path.Ext(key)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}

	if _, err := io.Copy(w, reader); err != nil {
		return
	}
}
