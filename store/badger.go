package store

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/da1nerd/gossip-crdts/crdt"
	"github.com/da1nerd/gossip-crdts/crdterr"
)

// snapshotKeyPrefix namespaces CRDT snapshot keys within the Badger
// keyspace, leaving room for other key families (op logs, metadata) to
// share the same database without colliding.
const snapshotKeyPrefix = "snap/"

func snapshotKey(id string) []byte {
	return []byte(snapshotKeyPrefix + id)
}

const defaultBadgerValueLogFileSize = 128 * 1024 * 1024

type badgerConfig struct {
	valueLogFileSize int64
}

// BadgerOption customizes how Badger is opened.
type BadgerOption func(*badgerConfig) error

// WithBadgerValueLogFileSize sets the max bytes per value log file.
func WithBadgerValueLogFileSize(sizeBytes int64) BadgerOption {
	return func(cfg *badgerConfig) error {
		if sizeBytes <= 0 {
			return crdterr.NewStoreError("configure", crdterr.ErrOutOfRange)
		}
		cfg.valueLogFileSize = sizeBytes
		return nil
	}
}

// BadgerStore is a Badger-backed Store. Snapshots are msgpack-encoded
// before being written; this is purely an on-disk encoding choice, and
// the wire format exchanged with other replicas stays JSON-compatible.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database at path.
func NewBadgerStore(path string, opts ...BadgerOption) (*BadgerStore, error) {
	cfg := badgerConfig{valueLogFileSize: defaultBadgerValueLogFileSize}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	options := badger.DefaultOptions(path).WithValueLogFileSize(cfg.valueLogFileSize)
	options.Logger = nil

	db, err := badger.Open(options)
	if err != nil {
		return nil, crdterr.NewStoreError("open", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Save(_ context.Context, id string, snap crdt.Snapshot) error {
	data, err := msgpack.Marshal(map[string]any(snap))
	if err != nil {
		return crdterr.NewStoreError("save", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(id), data)
	})
	if err != nil {
		return crdterr.NewStoreError("save", err)
	}
	return nil
}

func (s *BadgerStore) Load(_ context.Context, id string) (crdt.Snapshot, error) {
	var snap crdt.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return crdterr.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var raw map[string]any
			if err := msgpack.Unmarshal(val, &raw); err != nil {
				return err
			}
			snap = crdt.Snapshot(raw)
			return nil
		})
	})
	if err != nil {
		if err == crdterr.ErrNotFound {
			return nil, crdterr.ErrNotFound
		}
		return nil, crdterr.NewStoreError("load", err)
	}
	return snap, nil
}

func (s *BadgerStore) Has(_ context.Context, id string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(snapshotKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, crdterr.NewStoreError("has", err)
	}
	return found, nil
}

func (s *BadgerStore) ListIDs(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(snapshotKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, key[len(snapshotKeyPrefix):])
		}
		return nil
	})
	if err != nil {
		return nil, crdterr.NewStoreError("listIds", err)
	}
	return ids, nil
}

func (s *BadgerStore) Remove(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(id))
	})
	if err != nil {
		return crdterr.NewStoreError("remove", err)
	}
	return nil
}

func (s *BadgerStore) Clear(ctx context.Context) error {
	ids, err := s.ListIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.Remove(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) Stats(ctx context.Context) (Stats, error) {
	ids, err := s.ListIDs(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Count: len(ids)}, nil
}

func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return crdterr.NewStoreError("close", err)
	}
	return nil
}
