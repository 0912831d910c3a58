// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aleutian-labs/stepseq/internal/logging"
)

// Scheduler periodically sweeps a Registry for idle sessions and
// evicts them, using the ticker + done-channel lifecycle.
type Scheduler struct {
	registry  *Registry
	interval  time.Duration
	idleAfter time.Duration
	log       *logging.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewScheduler builds a scheduler that, once started, sweeps registry
// every interval and evicts engines idle for at least idleAfter.
func NewScheduler(registry *Registry, interval, idleAfter time.Duration, log *logging.Logger) *Scheduler {
	return &Scheduler{
		registry:  registry,
		interval:  interval,
		idleAfter: idleAfter,
		log:       log,
	}
}

// Start launches the sweep loop in a background goroutine. It returns
// an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("engine: scheduler already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)
	return nil
}

func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.registry.SweepIdle(s.idleAfter); n > 0 {
				s.log.Info("evicted idle sessions", "count", n)
			}
		}
	}
}

// Stop ends the sweep loop. Safe to call if Start was never called or
// already stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.done)
	s.running = false
}
