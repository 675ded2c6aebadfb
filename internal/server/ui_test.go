package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"slices"
	"strings"
	"testing"
)

func TestUIRoutes(t *testing.T) {
	h := newTestServer(t).routes()

	t.Run("root serves index", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
		}
		if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
			t.Fatalf("expected html content type, got %q", got)
		}
		if got := w.Header().Get("Cache-Control"); got != "no-cache" {
			t.Fatalf("expected no-cache for index, got %q", got)
		}
		if !strings.Contains(strings.ToLower(w.Body.String()), "<!doctype html>") {
			t.Fatalf("expected html document, got %q", w.Body.String())
		}
	})

	t.Run("index.html alias", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("static assets referenced by index are served from /ui", func(t *testing.T) {
		indexReq := httptest.NewRequest(http.MethodGet, "/", nil)
		indexW := httptest.NewRecorder()
		h.ServeHTTP(indexW, indexReq)

		assets := extractUIAssetPaths(indexW.Body.String())
		if len(assets) == 0 {
			t.Fatal("expected at least one /ui asset reference in index.html")
		}

		for _, asset := range assets {
			req := httptest.NewRequest(http.MethodGet, asset, nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("expected 200 for %s, got %d (%s)", asset, w.Code, w.Body.String())
			}
			if body := strings.TrimSpace(w.Body.String()); body == "" {
				t.Fatalf("expected non-empty asset body for %s", asset)
			}
			cache := w.Header().Get("Cache-Control")
			if isFingerprintAsset(strings.TrimPrefix(asset, "/ui/")) {
				if cache != "public, max-age=31536000, immutable" {
					t.Fatalf("expected immutable cache for %s, got %q", asset, cache)
				}
			} else if cache != "no-cache" {
				t.Fatalf("expected no-cache for non-fingerprinted asset %s, got %q", asset, cache)
			}
		}
	})

	t.Run("unknown path returns not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})

	t.Run("non-read methods on the ui are rejected", func(t *testing.T) {
		for _, path := range []string{"/", "/ui/app.js"} {
			req := httptest.NewRequest(http.MethodPost, path, nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Fatalf("%s: expected 405, got %d", path, w.Code)
			}
			if got := w.Header().Get("Allow"); got != "GET, HEAD" {
				t.Fatalf("%s: unexpected Allow header %q", path, got)
			}
		}
	})

	t.Run("api routes still handled as api", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/info", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
		}
		if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/json") {
			t.Fatalf("expected json content type, got %q", got)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("expected json body: %v", err)
		}
	})
}

func TestIsFingerprintAsset(t *testing.T) {
	tests := []struct {
		name  string
		asset string
		want  bool
	}{
		{name: "plain", asset: "app.js", want: false},
		{name: "short hash", asset: "app.abc123.js", want: false},
		{name: "hex hash", asset: "app.ABC123de.js", want: true},
		{name: "nested path", asset: "assets/app.3f7a9c2e.css", want: true},
		{name: "word segment", asset: "jquery.minified.js", want: false},
		{name: "non-hex letters", asset: "app.DDBVD2RV.css", want: false},
		{name: "symbol in hash", asset: "app.zzzz-zzz.js", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isFingerprintAsset(tt.asset); got != tt.want {
				t.Fatalf("isFingerprintAsset(%q)=%v want %v", tt.asset, got, tt.want)
			}
		})
	}
}

func extractUIAssetPaths(index string) []string {
	re := regexp.MustCompile(`(?:src|href)=["'](/ui/[^"']+)["']`)
	assets := []string{}
	for _, m := range re.FindAllStringSubmatch(index, -1) {
		asset := strings.TrimSpace(m[1])
		if asset != "" && !slices.Contains(assets, asset) {
			assets = append(assets, asset)
		}
	}
	return assets
}
