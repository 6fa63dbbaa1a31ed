package http

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/3-lines-studio/toast/internal/core"
)

// SiteHandler serves a built site directory. Extensionless paths resolve
// to "<path>.html" and then "<path>/index.html".
type SiteHandler struct {
	roots []string
}

// NewSiteHandler serves files from the first root that has them; later
// roots act as fallbacks, e.g. the site directory for web_modules.
func NewSiteHandler(roots ...string) http.Handler {
	return &SiteHandler{roots: roots}
}

func (h *SiteHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	clean := path.Clean("/" + req.URL.Path)
	if strings.Contains(clean, "..") {
		http.NotFound(w, req)
		return
	}

	for _, candidate := range candidates(clean) {
		for _, root := range h.roots {
			if h.serveFile(w, req, filepath.Join(root, filepath.FromSlash(candidate))) {
				return
			}
		}
	}
	http.NotFound(w, req)
}

func candidates(clean string) []string {
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" {
		return []string{"index.html"}
	}
	if path.Ext(rel) != "" {
		return []string{rel}
	}
	return []string{rel, rel + ".html", path.Join(rel, "index.html")}
}

func (h *SiteHandler) serveFile(w http.ResponseWriter, req *http.Request, fullPath string) bool {
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		return false
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return false
	}
	defer func() { _ = file.Close() }()

	w.Header().Set("Content-Type", core.ContentType(fullPath))
	http.ServeContent(w, req, info.Name(), info.ModTime(), file)
	return true
}
