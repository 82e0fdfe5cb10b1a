package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"heredity/internal/blob/core"
)

func TestPutGetHeadListDelete(t *testing.T) {
	root := filepath.Join(t.TempDir(), "blobs")
	store, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Root() != root || store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected store %+v", store)
	}
	ctx := context.Background()
	info, err := store.Put(ctx, "reports/a/1.json", strings.NewReader("hello"), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"family": "a"}})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != 5 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "reports/a/1.json", strings.NewReader("again"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := store.Get(ctx, "reports/a/1.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "hello" || got.Metadata["family"] != "a" || got.ContentType != "application/json" {
		t.Fatalf("unexpected blob %+v %q", got, body)
	}

	if _, err := store.Put(ctx, "reports/b/2.json", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("Put second: %v", err)
	}
	list, err := store.List(ctx, "reports/a/")
	if err != nil || len(list) != 1 || list[0].Key != "reports/a/1.json" {
		t.Fatalf("unexpected list %+v %v", list, err)
	}
	all, _ := store.List(ctx, "")
	if len(all) != 2 {
		t.Fatalf("expected 2 blobs, got %d", len(all))
	}

	existed, err := store.Delete(ctx, "reports/a/1.json")
	if err != nil || !existed {
		t.Fatalf("Delete: %v %v", existed, err)
	}
	existed, err = store.Delete(ctx, "reports/a/1.json")
	if err != nil || existed {
		t.Fatalf("second delete should report absence: %v %v", existed, err)
	}
	if _, _, err := store.Get(ctx, "reports/a/1.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
	if _, err := store.Head(ctx, "reports/a/1.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Head, got %v", err)
	}
}

func TestRejectsUnsafeKeys(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range []string{"", "  ", "/etc/passwd", "../escape", "a/../../b"} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestCorruptSidecar(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := store.Put(context.Background(), "k.json", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "k.json.meta"), []byte("{"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := store.Head(context.Background(), "k.json"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := store.List(context.Background(), ""); err == nil {
		t.Fatalf("expected list to surface decode error")
	}
}
