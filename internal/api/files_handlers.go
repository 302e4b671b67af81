package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"veritas-media/internal/observability/logging"
)

// openMediaFile is a seam so tests can simulate storage faults.
var openMediaFile = func(path string) (*os.File, error) {
	return os.Open(path)
}

// MediaFile serves stored objects from the media directory. Only names that
// resolve to a direct child of the directory are honoured; anything that
// smells like a traversal reports not-found rather than leaking whether the
// target exists.
func (h *Handler) MediaFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeMethodNotAllowed(w, r, "GET, HEAD")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/files/")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		WriteFailure(w, http.StatusNotFound, "Media not found")
		return
	}

	fullPath := filepath.Join(h.mediaDir(), name)
	file, err := openMediaFile(fullPath)
	if err != nil {
		WriteFailure(w, http.StatusNotFound, "Media not found")
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil || stat.IsDir() {
		if err != nil {
			logging.WithContext(r.Context(), h.logger()).Error("failed to stat media file", "path", name, "error", err)
		}
		WriteFailure(w, http.StatusNotFound, "Media not found")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeContent(w, r, name, stat.ModTime(), file)
}
