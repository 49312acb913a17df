package cursor

import (
	"context"
	"errors"
	"testing"

	"transferScope/internal/model"
)

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, found, err := store.Load(context.Background(), "TEST")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("missing cursor reported as found")
	}
}

func TestFileStoreCommitAndLoad(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	state := model.CursorState{
		MinIngestedBlock: 100,
		MaxIngestedBlock: 200,
		Bootstrapped:     true,
	}
	if err := store.Commit(ctx, "TEST", state); err != nil {
		t.Fatalf("commit: %v", err)
	}

	loaded, found, err := store.Load(ctx, "TEST")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatalf("cursor not found after commit")
	}
	if loaded.MinIngestedBlock != 100 || loaded.MaxIngestedBlock != 200 {
		t.Fatalf("cursor range %d..%d", loaded.MinIngestedBlock, loaded.MaxIngestedBlock)
	}
	if loaded.Version != 1 {
		t.Fatalf("version = %d, want 1", loaded.Version)
	}
	if loaded.LastUpdated == "" {
		t.Fatalf("last updated not set")
	}
}

func TestFileStoreVersionConflict(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	first := model.CursorState{MaxIngestedBlock: 10, Bootstrapped: true, MinIngestedBlock: 5}
	if err := store.Commit(ctx, "TEST", first); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Two invocations load the same version; the second commit must fail
	// instead of silently reverting the first one's progress.
	loaded, _, err := store.Load(ctx, "TEST")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	updated := loaded
	updated.MaxIngestedBlock = 20
	if err := store.Commit(ctx, "TEST", updated); err != nil {
		t.Fatalf("first concurrent commit: %v", err)
	}

	stale := loaded
	stale.MaxIngestedBlock = 15
	err = store.Commit(ctx, "TEST", stale)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	final, _, _ := store.Load(ctx, "TEST")
	if final.MaxIngestedBlock != 20 {
		t.Fatalf("lost update: max = %d", final.MaxIngestedBlock)
	}
}

func TestFileStoreRejectsInvalidCursor(t *testing.T) {
	store := NewFileStore(t.TempDir())

	bad := model.CursorState{MinIngestedBlock: 50, MaxIngestedBlock: 10, Bootstrapped: true}
	if err := store.Commit(context.Background(), "TEST", bad); err == nil {
		t.Fatalf("expected validation error for min above max")
	}
}
