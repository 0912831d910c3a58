// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgerstore is the durable store.Store implementation
// backed by BadgerDB. Sessions are JSON-encoded and keyed by
// "session:<id>".
package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/aleutian-labs/stepseq/internal/model"
	"github.com/aleutian-labs/stepseq/internal/store"
)

// Config controls how the underlying badger.DB is opened.
type Config struct {
	InMemory          bool
	Path              string
	SyncWrites        bool
	NumVersionsToKeep int
	GCInterval        time.Duration
	GCDiscardRatio    float64
}

// DefaultConfig is tuned for a persistent, single-node deployment:
// synchronous writes (every Save durably lands before returning, with
// no debounce) and periodic value-log GC.
func DefaultConfig() Config {
	return Config{
		InMemory:          false,
		SyncWrites:        true,
		NumVersionsToKeep: 1,
		GCInterval:        5 * time.Minute,
		GCDiscardRatio:    0.5,
	}
}

// InMemoryConfig is for tests: an ephemeral db with GC disabled.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		GCInterval: 0,
	}
}

func keyFor(id string) []byte {
	return []byte("session:" + id)
}

// Store wraps a badger.DB and an optional background GC runner.
type Store struct {
	db *badger.DB
	gc *gcRunner
}

var _ store.Store = (*Store)(nil)

// Open opens a Store per cfg. Persistent mode requires a non-empty
// Path.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions("")
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badgerstore: path is required for persistent mode")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(nil)
	if cfg.NumVersionsToKeep > 0 {
		opts = opts.WithNumVersionsToKeep(cfg.NumVersionsToKeep)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}

	s := &Store{db: db}
	if cfg.GCInterval > 0 {
		s.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio)
		s.gc.start()
	}
	return s, nil
}

// OpenInMemory opens an ephemeral, in-memory Store. Intended for tests.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// OpenWithPath opens a persistent Store rooted at path.
func OpenWithPath(path string) (*Store, error) {
	cfg := DefaultConfig()
	cfg.Path = path
	return Open(cfg)
}

func (s *Store) Load(ctx context.Context, id string) (*model.Session, error) {
	var raw []byte
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(keyFor(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return store.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("badgerstore: decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *Store) Save(ctx context.Context, sess *model.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(keyFor(sess.ID), raw)
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		err := txn.Delete(keyFor(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (s *Store) List(ctx context.Context) ([]*model.Session, error) {
	var out []*model.Session
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("session:")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			var sess model.Session
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &sess)
			})
			if err != nil {
				return fmt.Errorf("badgerstore: decode session during list: %w", err)
			}
			out = append(out, &sess)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

func (s *Store) withTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("badgerstore: context cancelled: %w", err)
	}
	return s.db.Update(fn)
}

func (s *Store) withReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("badgerstore: context cancelled: %w", err)
	}
	return s.db.View(fn)
}
