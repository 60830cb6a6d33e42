package handlers

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/medportal/internal/storage"
)

// BlobOpener opens a stored blob by name.
type BlobOpener interface {
	Open(name string) (*os.File, fs.FileInfo, error)
}

// FileHandler serves locally stored blobs under /files/. There is no
// directory listing.
type FileHandler struct {
	blobs BlobOpener
}

func NewFileHandler(blobs BlobOpener) *FileHandler {
	return &FileHandler{blobs: blobs}
}

func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	f, info, err := h.blobs.Open(chi.URLParam(r, "*"))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Error("open blob", "error", err)
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
