// Package store defines the state-store contract the manager persists
// CRDT snapshots through, plus two concrete implementations: an
// in-memory store for tests and demos, and a Badger-backed store for
// durable deployments.
package store

import (
	"context"

	"github.com/da1nerd/gossip-crdts/crdt"
)

// Stats summarizes a store's current contents.
type Stats struct {
	Count int
}

// Store is the thin persistence contract the manager drives. Every
// method is keyed by CRDT id and must behave atomically with respect
// to concurrent calls for the same key.
type Store interface {
	// Save persists a snapshot under its CRDT id, replacing any prior
	// snapshot for that id.
	Save(ctx context.Context, id string, snap crdt.Snapshot) error

	// Load retrieves the snapshot stored for id. Returns
	// crdterr.ErrNotFound (wrapped) if no snapshot is stored.
	Load(ctx context.Context, id string) (crdt.Snapshot, error)

	// Has reports whether a snapshot is stored for id.
	Has(ctx context.Context, id string) (bool, error)

	// ListIDs returns every id currently stored.
	ListIDs(ctx context.Context) ([]string, error)

	// Remove deletes the snapshot stored for id. Removing an id that
	// was never stored is not an error.
	Remove(ctx context.Context, id string) error

	// Clear removes every snapshot in the store.
	Clear(ctx context.Context) error

	// Stats reports the store's current size.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any resources held by the store. Calling any
	// other method after Close returns a *crdterr.StoreError: MemStore's
	// wraps crdterr.ErrAlreadyClosed, BadgerStore's wraps the error
	// Badger reports for a closed database.
	Close() error
}
