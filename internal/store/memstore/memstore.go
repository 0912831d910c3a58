// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memstore is an in-process, map-backed store.Store used for
// tests and for running the engine without a durable backend.
package memstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aleutian-labs/stepseq/internal/model"
	"github.com/aleutian-labs/stepseq/internal/store"
)

// Store is a mutex-guarded in-memory session store. Records are
// round-tripped through JSON on Save/Load so callers can't
// accidentally share live pointers with the engine's in-memory state.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Load(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	raw, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	var sess model.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) Save(_ context.Context, sess *model.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[sess.ID] = raw
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}

func (s *Store) List(_ context.Context) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Session, 0, len(s.data))
	for _, raw := range s.data {
		var sess model.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return nil, err
		}
		out = append(out, &sess)
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
