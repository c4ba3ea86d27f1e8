package draft

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestSQLiteStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.db")
	storage, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer storage.Close()
	ctx := context.Background()

	if err := storage.Put(ctx, "compose:post:1", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	// Second put for the same key replaces, not duplicates.
	if err := storage.Put(ctx, "compose:post:1", []byte("v2")); err != nil {
		t.Fatal(err)
	}

	payload, err := storage.Get(ctx, "compose:post:1")
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "v2" {
		t.Fatalf("payload = %s, want v2", payload)
	}

	if err := storage.Delete(ctx, "compose:post:1"); err != nil {
		t.Fatal(err)
	}
	if _, err := storage.Get(ctx, "compose:post:1"); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("get after delete = %v, want ErrNoDraft", err)
	}
}

func TestSQLiteStorageMissing(t *testing.T) {
	storage, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "drafts.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer storage.Close()

	if _, err := storage.Get(context.Background(), "nope"); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("get = %v, want ErrNoDraft", err)
	}
}

func TestSQLiteStorageSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.db")
	ctx := context.Background()

	first, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Put(ctx, "compose:post:9", []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	payload, err := second.Get(ctx, "compose:post:9")
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "persisted" {
		t.Fatalf("payload = %s", payload)
	}
}
