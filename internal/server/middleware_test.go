package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestCORSHeaders(t *testing.T) {
	h := newTestServer(t).routes()

	t.Run("preflight on any path", func(t *testing.T) {
		for _, path := range []string{"/api/upload", "/api/files/a.txt", "/anything"} {
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusNoContent {
				t.Fatalf("%s: expected 204, got %d", path, w.Code)
			}
			if w.Body.Len() != 0 {
				t.Fatalf("%s: expected empty body, got %q", path, w.Body.String())
			}
			if got := w.Header().Get("Access-Control-Max-Age"); got != "86400" {
				t.Fatalf("%s: expected max-age 86400, got %q", path, got)
			}
			assertCORS(t, w)
		}
	})

	t.Run("json responses", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assertCORS(t, w)
	})

	t.Run("error responses", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/files/missing", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
		assertCORS(t, w)
	})
}

func assertCORS(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	want := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, DELETE, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Fatalf("expected %s=%q, got %q", k, v, got)
		}
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newTestServer(t).routes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	generated := w.Header().Get(requestIDHeader)
	if _, err := uuid.Parse(generated); err != nil {
		t.Fatalf("expected generated uuid request id, got %q", generated)
	}

	inbound := uuid.NewString()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, inbound)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != inbound {
		t.Fatalf("expected inbound request id to be echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got == "not-a-uuid" {
		t.Fatal("expected malformed inbound id to be replaced")
	}
}

func TestRequestLoggingLevels(t *testing.T) {
	var buf bytes.Buffer
	srv := newTestServer(t)
	srv.logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	h := srv.routes()

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if buf.Len() != 0 {
		t.Fatalf("expected reads to log below info, got %s", buf.String())
	}

	doUpload(t, h, "a.txt", "hi")
	var entry map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var candidate map[string]any
		if err := json.Unmarshal([]byte(line), &candidate); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if candidate["msg"] == "request complete" {
			entry = candidate
		}
	}
	if entry == nil {
		t.Fatalf("expected access log entry, got %s", buf.String())
	}
	if entry["route"] != "POST /api/upload" || entry["status"] != float64(http.StatusCreated) {
		t.Fatalf("unexpected access log fields: %#v", entry)
	}
	if _, err := uuid.Parse(entry["request_id"].(string)); err != nil {
		t.Fatalf("expected request id in access log, got %#v", entry["request_id"])
	}
	if entry["bytes"].(float64) <= 0 {
		t.Fatalf("expected response size in access log, got %#v", entry["bytes"])
	}
}
