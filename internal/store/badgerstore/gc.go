// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badgerstore

import (
	"time"

	"github.com/dgraph-io/badger/v4"
)

// gcRunner periodically invokes badger's value-log GC on a ticker.
// Badger's RunValueLogGC returns badger.ErrNoRewrite once a cycle has
// reclaimed everything it can; that's expected steady-state, not a
// failure.
type gcRunner struct {
	db           *badger.DB
	interval     time.Duration
	discardRatio float64
	stopCh       chan struct{}
}

func newGCRunner(db *badger.DB, interval time.Duration, discardRatio float64) *gcRunner {
	return &gcRunner{db: db, interval: interval, discardRatio: discardRatio, stopCh: make(chan struct{})}
}

func (g *gcRunner) start() {
	go func() {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for {
					if err := g.db.RunValueLogGC(g.discardRatio); err != nil {
						break
					}
				}
			case <-g.stopCh:
				return
			}
		}
	}()
}

func (g *gcRunner) stop() {
	close(g.stopCh)
}
