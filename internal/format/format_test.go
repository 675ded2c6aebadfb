package format

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	Key  string `json:"key" yaml:"key"`
	Size int64  `json:"size" yaml:"size"`
}

func TestFormatters(t *testing.T) {
	payload := []sample{{Key: "a.txt", Size: 2}}
	tests := []struct {
		name string
		f    Formatter
		want string
	}{
		{name: "json", f: JSONFormatter{}, want: `[{"key":"a.txt","size":2}]` + "\n"},
		{name: "yaml", f: YAMLFormatter{}, want: "- key: a.txt\n  size: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.f.Write(&buf, payload); err != nil {
				t.Fatalf("write: %v", err)
			}
			if buf.String() != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, buf.String())
			}
		})
	}
}

func TestYAMLFormatterMap(t *testing.T) {
	var buf bytes.Buffer
	if err := (YAMLFormatter{}).Write(&buf, map[string]any{"backend": "sqlite", "file_count": 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "backend: sqlite\n") || !strings.Contains(out, "file_count: 3\n") {
		t.Fatalf("unexpected yaml: %q", out)
	}
}
