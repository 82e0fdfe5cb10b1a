package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"heredity/internal/config"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	payload := []byte(`{"report":"r1"}`)
	info, err := store.Put(ctx, "reports/fam/r1.json", bytes.NewReader(payload), PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "reports/fam/r1.json" || info.Size != int64(len(payload)) {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "reports/fam/r1.json", bytes.NewReader(payload), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := store.Get(ctx, "reports/fam/r1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, payload) {
		t.Fatalf("unexpected body %q", got)
	}
	list, err := store.List(ctx, "reports/fam/")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one listed blob, got %v %v", list, err)
	}
	if _, err := store.Head(ctx, "reports/other.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
	ok, err := store.Delete(ctx, "reports/fam/r1.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	fsStore, err := Open(ctx, config.Blob{Driver: config.BlobFilesystem, FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if fsStore.Driver() != DriverFilesystem {
		t.Fatalf("expected fs driver, got %s", fsStore.Driver())
	}
	exerciseStore(t, fsStore)

	memStore, err := Open(ctx, config.Blob{Driver: config.BlobMemory})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	exerciseStore(t, memStore)

	if _, err := Open(ctx, config.Blob{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, config.Blob{Driver: config.BlobS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestMockS3(t *testing.T) {
	store := NewMockS3ForTests()
	if store.Driver() != DriverS3 {
		t.Fatalf("expected s3 driver, got %s", store.Driver())
	}
	exerciseStore(t, store)
}
