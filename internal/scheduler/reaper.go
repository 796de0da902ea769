// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/metrics"
)

// PendingDeleter removes expired pending selections. store.Store
// implements it.
type PendingDeleter interface {
	DeleteExpiredPending(ctx context.Context, now time.Time) (int, error)
}

// DefaultReapInterval is used when the configured interval is zero.
const DefaultReapInterval = 5 * time.Minute

// Reaper periodically deletes pending selections nobody completed.
// Expired rows are already unusable; reaping only reclaims storage.
type Reaper struct {
	store    PendingDeleter
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReaper creates a Reaper. A nil now uses time.Now.
func NewReaper(store PendingDeleter, interval time.Duration, now func() time.Time) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Reaper{
		store:    store,
		interval: interval,
		now:      now,
		logger:   logging.WithComponent("pending-reaper"),
	}
}

// Start begins the reap loop.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reaper already running")
	}
	r.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	r.stopCh, r.doneCh = stopCh, doneCh
	r.mu.Unlock()

	r.logger.Info().Dur("interval", r.interval).Msg("Starting pending reaper")
	go r.run(ctx, stopCh, doneCh)
	return nil
}

// Stop ends the loop and waits for it.
func (r *Reaper) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	close(r.stopCh)
	done := r.doneCh
	r.running = false
	r.mu.Unlock()

	<-done
	r.logger.Info().Msg("Pending reaper stopped")
	return nil
}

func (r *Reaper) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.ReapOnce(ctx)
	for {
		select {
		case <-ticker.C:
			r.ReapOnce(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ReapOnce deletes expired pending rows and reports how many went.
func (r *Reaper) ReapOnce(ctx context.Context) int {
	n, err := r.store.DeleteExpiredPending(ctx, r.now().UTC())
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to delete expired pending selections")
		return 0
	}
	metrics.RecordPendingReaped(n)
	if n > 0 {
		r.logger.Info().Int("deleted", n).Msg("Expired pending selections removed")
	}
	return n
}
