package api

import (
	"net/http"
	"os"
	"path"
	"strings"
)

// spaFileSystem serves the narrative page and its assets. Unknown page routes
// fall back to index.html; missing assets and unknown API paths stay 404.
type spaFileSystem struct {
	root http.FileSystem
}

// Open opens the named file, falling back to index.html for client-side routes.
func (s *spaFileSystem) Open(name string) (http.File, error) {
	f, err := s.root.Open(name)
	if !os.IsNotExist(err) {
		return f, err
	}
	if strings.HasPrefix(name, "/api/") || strings.HasPrefix(name, "/ws/") || path.Ext(name) != "" {
		return nil, err
	}
	return s.root.Open("/index.html")
}
