package server

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed uiassets/dist/*
var uiFS embed.FS

func uiDist() (fs.FS, error) {
	return fs.Sub(uiFS, "uiassets/dist")
}

func (s *Server) uiAssetHandler() http.Handler {
	dist, err := uiDist()
	if err != nil {
		return http.NotFoundHandler()
	}

	fileServer := http.StripPrefix("/ui/", http.FileServerFS(dist))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isReadMethod(r.Method) {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/ui/") || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}

		asset := strings.TrimPrefix(r.URL.Path, "/ui/")
		if isFingerprintAsset(asset) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}

		fileServer.ServeHTTP(w, r)
	})
}

// handleUIIndex serves index.html at the root and 404s everything else the
// mux did not claim.
func (s *Server) handleUIIndex(w http.ResponseWriter, r *http.Request) {
	if !isReadMethod(r.Method) {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}

	dist, err := uiDist()
	if err != nil {
		http.NotFound(w, r)
		return
	}

	index, err := fs.ReadFile(dist, "index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(index)
}

func isReadMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// isFingerprintAsset reports whether the name carries a hex content hash, as
// in app.3f7a9c2e.js.
func isFingerprintAsset(assetPath string) bool {
	base := path.Base(strings.TrimSpace(assetPath))
	parts := strings.Split(base, ".")
	if len(parts) < 3 {
		return false
	}

	hash := parts[len(parts)-2]
	if len(hash) < 8 {
		return false
	}
	for _, ch := range hash {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') && (ch < 'A' || ch > 'F') {
			return false
		}
	}
	return true
}
