package objectstore

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestMemoryContract(t *testing.T) {
	runStoreContract(t, NewMemory())
}

func TestLocalContract(t *testing.T) {
	st, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	runStoreContract(t, st)
}

func runStoreContract(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	empty, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty listing, got %#v", empty)
	}

	meta := Metadata{"original-name": "b.txt", "checksum": "abc"}
	put, err := st.Put(ctx, "b.txt", []byte("hello"), PutOptions{ContentType: "text/plain", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if put.Key != "b.txt" || put.Size != 5 || put.ETag == "" {
		t.Fatalf("unexpected put info: %#v", put)
	}
	if put.Uploaded.IsZero() {
		t.Fatal("expected uploaded timestamp")
	}
	meta["checksum"] = "mutated"

	if _, err := st.Put(ctx, "dir/a.bin", []byte{0, 1, 2}, PutOptions{}); err != nil {
		t.Fatalf("put nested key: %v", err)
	}

	head, err := st.Head(ctx, "b.txt")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Metadata["checksum"] != "abc" {
		t.Fatalf("expected stored metadata to be isolated from caller, got %#v", head.Metadata)
	}
	if head.ContentType != "text/plain" {
		t.Fatalf("expected content type text/plain, got %q", head.ContentType)
	}

	obj, err := st.Get(ctx, "b.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, err := io.ReadAll(obj.Body)
	_ = obj.Body.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", string(data))
	}
	if obj.Metadata["original-name"] != "b.txt" {
		t.Fatalf("expected metadata on get, got %#v", obj.Metadata)
	}

	list, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "b.txt" || list[1].Key != "dir/a.bin" {
		t.Fatalf("expected key-ordered listing [b.txt dir/a.bin], got %#v", list)
	}

	if _, err := st.Head(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found on head, got %v", err)
	}
	if _, err := st.Get(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found on get, got %v", err)
	}

	if err := st.Delete(ctx, "b.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.Delete(ctx, "b.txt"); err != nil {
		t.Fatalf("delete missing should be noop: %v", err)
	}
	if _, err := st.Head(ctx, "b.txt"); !IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}

	if _, err := st.Put(ctx, "", []byte("x"), PutOptions{}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestMemoryOverwriteReplacesPayload(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	fixed := time.Date(2026, 1, 22, 10, 30, 45, 0, time.UTC)
	st.SetClock(func() time.Time { return fixed })

	if _, err := st.Put(ctx, "k", []byte("one"), PutOptions{}); err != nil {
		t.Fatalf("put one: %v", err)
	}
	info, err := st.Put(ctx, "k", []byte("three"), PutOptions{})
	if err != nil {
		t.Fatalf("put three: %v", err)
	}
	if info.Size != 5 {
		t.Fatalf("expected size 5, got %d", info.Size)
	}
	if !info.Uploaded.Equal(fixed) {
		t.Fatalf("expected injected clock, got %v", info.Uploaded)
	}
}

func TestLocalPersistsAcrossInstances(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	first, err := NewLocal(root)
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	if _, err := first.Put(ctx, "report.pdf", []byte("%PDF"), PutOptions{ContentType: "application/pdf"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	second, err := NewLocal(root)
	if err != nil {
		t.Fatalf("reopen local: %v", err)
	}
	head, err := second.Head(ctx, "report.pdf")
	if err != nil {
		t.Fatalf("head after reopen: %v", err)
	}
	if head.Size != 4 || head.ContentType != "application/pdf" {
		t.Fatalf("unexpected head after reopen: %#v", head)
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "plain", key: "a.txt"},
		{name: "nested", key: "a/b/c.txt"},
		{name: "dots", key: "../escape"},
		{name: "empty", key: "", wantErr: true},
		{name: "nul", key: "a\x00b", wantErr: true},
		{name: "invalid utf8", key: "\xff", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCollectStatsFallsBackToList(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	for key, body := range map[string]string{"a": "12", "b": "345"} {
		if _, err := st.Put(ctx, key, []byte(body), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	stats, err := CollectStats(ctx, st)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Objects != 2 || stats.Bytes != 5 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}
