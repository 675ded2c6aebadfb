package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filedrop/internal/api"
	"filedrop/internal/config"
	"filedrop/internal/format"
	"filedrop/internal/objectstore"
	"filedrop/internal/server"
)

// newCLIHarness serves a memory-backed API and points a config at it, so
// withClient finds a live server and never spawns a child process.
func newCLIHarness(t *testing.T) *config.Config {
	t.Helper()
	srv := server.New("127.0.0.1:0", objectstore.NewMemory(), config.BackendMemory, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.APIURL = ts.URL
	cfg.Storage.Backend = config.BackendMemory
	cfg.LogLevel = "error"

	prevFormatter, prevStdout, prevLogger := outputFormatter, stdout, slog.Default()
	t.Cleanup(func() {
		outputFormatter, stdout = prevFormatter, prevStdout
		slog.SetDefault(prevLogger)
	})
	t.Setenv(logLevelEnvKey, "")
	return &cfg
}

func runCLI(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	stdout = &out
	outputFormatter = format.JSONFormatter{}

	cmd := newRootCmd(cfg)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestUploadListGetRemoveFlow(t *testing.T) {
	cfg := newCLIHarness(t)
	dir := t.TempDir()
	a := writeTemp(t, dir, "a.txt", "hi")
	b := writeTemp(t, dir, "b.txt", "there")

	out, err := runCLI(t, cfg, "upload", a, b)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(out, "uploaded "+a+" -> a.txt") || !strings.Contains(out, "uploaded "+b+" -> b.txt") {
		t.Fatalf("unexpected upload output: %q", out)
	}

	dup := writeTemp(t, dir, "copy.txt", "hi")
	out, err = runCLI(t, cfg, "upload", dup)
	if err == nil || !strings.Contains(err.Error(), "1 of 1 uploads rejected") {
		t.Fatalf("expected duplicate rejection error, got %v", err)
	}
	if !strings.Contains(out, "duplicate "+dup+": already stored as a.txt") {
		t.Fatalf("unexpected duplicate output: %q", out)
	}

	out, err = runCLI(t, cfg, "ls", "--json")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	var list api.ListResponse
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode ls output: %v (%s)", err, out)
	}
	if list.Count != 2 || len(list.Files) != 2 {
		t.Fatalf("expected two files, got %#v", list)
	}

	dest := filepath.Join(dir, "downloaded.txt")
	if _, err := runCLI(t, cfg, "get", "b.txt", "-o", dest); err != nil {
		t.Fatalf("get: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "there" {
		t.Fatalf("expected downloaded content, got %q (err %v)", string(data), err)
	}

	out, err = runCLI(t, cfg, "get", "a.txt", "-o", "-")
	if err != nil || out != "hi" {
		t.Fatalf("expected stdout download, got %q (err %v)", out, err)
	}

	if _, err := runCLI(t, cfg, "rm", "a.txt"); err != nil {
		t.Fatalf("rm: %v", err)
	}
	if _, err := runCLI(t, cfg, "rm", "a.txt"); err == nil {
		t.Fatal("expected second rm to fail")
	} else if apiErr, ok := api.AsAPIError(err); !ok || apiErr.Status != 404 {
		t.Fatalf("expected 404 api error, got %v", err)
	}

	out, err = runCLI(t, cfg, "info", "--yaml")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"backend: memory\n", "file_count: 1\n", "total_bytes: 5\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in info output, got %q", want, out)
		}
	}
}

func TestUploadWithName(t *testing.T) {
	cfg := newCLIHarness(t)
	dir := t.TempDir()
	path := writeTemp(t, dir, "local.bin", "payload")

	out, err := runCLI(t, cfg, "upload", "--name", "report.pdf", path, "--json")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	var outcomes []uploadOutcome
	if err := json.Unmarshal([]byte(out), &outcomes); err != nil {
		t.Fatalf("decode: %v (%s)", err, out)
	}
	if len(outcomes) != 1 || outcomes[0].File == nil {
		t.Fatalf("unexpected outcomes %#v", outcomes)
	}
	if got := outcomes[0].File; got.Key != "report.pdf" || got.ContentType != "application/pdf" {
		t.Fatalf("expected pdf stored under report.pdf, got %#v", got)
	}

	if _, err := runCLI(t, cfg, "upload", "--name", "x", path, path); err == nil {
		t.Fatal("expected --name with several files to fail")
	}
}

func TestJSONAndYAMLAreExclusive(t *testing.T) {
	cfg := newCLIHarness(t)
	if _, err := runCLI(t, cfg, "ls", "--json", "--yaml"); err == nil {
		t.Fatal("expected flag conflict error")
	}
}

func TestConfigSetGet(t *testing.T) {
	cfg := newCLIHarness(t)
	dir := t.TempDir()
	t.Setenv("FILEDROP_CONFIG_DIR", dir)

	if _, err := runCLI(t, cfg, "config", "set", "storage.backend", "local", "--global"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, ".filedrop.toml"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), `backend = "local"`) {
		t.Fatalf("expected backend in toml, got %q", string(data))
	}

	out, err := runCLI(t, cfg, "config", "get", "api_url")
	if err != nil || strings.TrimSpace(out) != cfg.APIURL {
		t.Fatalf("expected api_url %q, got %q (err %v)", cfg.APIURL, out, err)
	}
	if _, err := runCLI(t, cfg, "config", "get", "nope"); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestConfigListAndPath(t *testing.T) {
	cfg := newCLIHarness(t)
	dir := t.TempDir()
	t.Setenv("FILEDROP_CONFIG_DIR", dir)

	out, err := runCLI(t, cfg, "config", "list")
	if err != nil {
		t.Fatalf("config list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(config.AllowedKeys()) {
		t.Fatalf("expected one line per key, got %d lines", len(lines))
	}
	if !strings.Contains(out, "storage.backend = memory\n") {
		t.Fatalf("expected effective backend, got %q", out)
	}

	out, err = runCLI(t, cfg, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	want := filepath.Join(dir, ".filedrop.toml")
	if !strings.Contains(out, "global: "+want) || !strings.Contains(out, "project: "+want) {
		t.Fatalf("expected override paths, got %q", out)
	}
}
