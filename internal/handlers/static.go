package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Frontend serves the built client from dir. Unknown client routes get the
// index file; unknown API paths and JSON clients get a JSON 404.
type Frontend struct {
	dir       string
	indexPath string
	files     http.Handler
}

func NewFrontend(dir, indexFile string) *Frontend {
	indexPath := indexFile
	if !filepath.IsAbs(indexPath) {
		indexPath = filepath.Join(dir, indexFile)
	}
	return &Frontend{
		dir:       dir,
		indexPath: indexPath,
		files:     http.FileServer(http.Dir(dir)),
	}
}

func (f *Frontend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "API endpoint not found", r))
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeJSON(w, http.StatusMethodNotAllowed, errorResp("METHOD_NOT_ALLOWED", "Method not allowed", r))
		return
	}

	if f.isFile(r.URL.Path) {
		f.files.ServeHTTP(w, r)
		return
	}

	if strings.Contains(strings.ToLower(r.Header.Get("Accept")), "application/json") {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Not found", r))
		return
	}

	if _, err := os.Stat(f.indexPath); err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	http.ServeFile(w, r, f.indexPath)
}

func (f *Frontend) isFile(urlPath string) bool {
	clean := path.Clean("/" + urlPath)
	if clean == "/" {
		return false
	}
	info, err := os.Stat(filepath.Join(f.dir, filepath.FromSlash(clean)))
	return err == nil && !info.IsDir()
}
