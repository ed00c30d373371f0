package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/da1nerd/gossip-crdts/crdt"
	"github.com/da1nerd/gossip-crdts/crdterr"
	"github.com/da1nerd/gossip-crdts/store"
)

func TestMemStoreSaveLoad(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	snap := crdt.Snapshot{"type": "GCounter", "id": "x"}

	if err := s.Save(ctx, "x", snap); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	if got["id"] != "x" {
		t.Errorf("unexpected snapshot: %v", got)
	}
}

func TestMemStoreLoadMissingIsNotFound(t *testing.T) {
	s := store.NewMemStore()
	_, err := s.Load(context.Background(), "missing")
	if !errors.Is(err, crdterr.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestMemStoreHasListRemoveClear(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	_ = s.Save(ctx, "a", crdt.Snapshot{"id": "a"})
	_ = s.Save(ctx, "b", crdt.Snapshot{"id": "b"})

	if ok, _ := s.Has(ctx, "a"); !ok {
		t.Error("expected a to be present")
	}

	ids, err := s.ListIDs(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("want 2 ids, got %v err=%v", ids, err)
	}

	stats, _ := s.Stats(ctx)
	if stats.Count != 2 {
		t.Errorf("want count 2, got %d", stats.Count)
	}

	if err := s.Remove(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Has(ctx, "a"); ok {
		t.Error("expected a to be removed")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	stats, _ = s.Stats(ctx)
	if stats.Count != 0 {
		t.Errorf("want count 0 after clear, got %d", stats.Count)
	}
}

func TestMemStoreMethodsFailAfterClose(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "x", crdt.Snapshot{}); !errors.Is(err, crdterr.ErrAlreadyClosed) {
		t.Errorf("want ErrAlreadyClosed, got %v", err)
	}
}
