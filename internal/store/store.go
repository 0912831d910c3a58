// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store defines the durable persistence boundary for session
// records: one record per session id, loaded on revive and
// written through on every mutation.
package store

import (
	"context"
	"errors"

	"github.com/aleutian-labs/stepseq/internal/model"
)

// ErrNotFound is returned when no record exists for a given session id.
var ErrNotFound = errors.New("store: session not found")

// Store is the durable persistence contract the session engine (C5)
// writes through on every mutation and reads from on revive.
// Implementations must be safe for concurrent use across sessions;
// the engine never holds two goroutines writing the same id
// concurrently (per-session single-writer actor), so
// implementations need not serialize writes to the same key beyond
// what the underlying storage already guarantees.
type Store interface {
	// Load fetches the session record for id. Returns ErrNotFound if
	// no record exists.
	Load(ctx context.Context, id string) (*model.Session, error)

	// Save writes through the full session record for id.
	Save(ctx context.Context, s *model.Session) error

	// Delete removes any record for id. Deleting a nonexistent id is
	// not an error.
	Delete(ctx context.Context, id string) error

	// List returns every session record, for admin listing. Order is
	// implementation-defined.
	List(ctx context.Context) ([]*model.Session, error)

	// Close releases any underlying resources.
	Close() error
}
