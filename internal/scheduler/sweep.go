// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

// Package scheduler keeps stored connections usable without user action.
//
// The Sweeper refreshes a platform's connections that are about to expire.
// It does not schedule itself: an external trigger (the cron endpoint)
// calls Sweep, so any number of replicas can serve it without coordination.
// The Reaper runs in-process under the supervisor and removes abandoned
// pending account selections.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tomtom215/adlink/internal/config"
	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/metrics"
	"github.com/tomtom215/adlink/internal/models"
	"github.com/tomtom215/adlink/internal/oauth"
)

// Refresher renews one connection. *oauth.Service implements it.
type Refresher interface {
	Refresh(ctx context.Context, userID, connectionID string) (*oauth.RefreshResult, error)
	Policy(p models.Platform) oauth.Policy
	Now() time.Time
}

// ExpiringLister finds connections due for a refresh. store.Store
// implements it.
type ExpiringLister interface {
	ListExpiring(ctx context.Context, p models.Platform, before time.Time, includeNullExpiry bool) ([]*models.Connection, error)
}

// Config tunes a Sweeper.
type Config struct {
	// Concurrency bounds in-flight refreshes per sweep.
	Concurrency int
	// RatePerSecond bounds provider calls per sweep. Zero disables the limit.
	RatePerSecond float64
}

// ConfigFromScheduler converts the service configuration.
func ConfigFromScheduler(c config.SchedulerConfig) Config {
	return Config{Concurrency: c.Concurrency, RatePerSecond: c.RatePerSecond}
}

// SweepError is one connection that failed to refresh.
type SweepError struct {
	ConnectionID string `json:"connectionId"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

// Report summarizes a sweep.
type Report struct {
	Platform  models.Platform `json:"platform"`
	Total     int             `json:"total"`
	Refreshed int             `json:"refreshed"`
	Failed    int             `json:"failed"`
	Errors    []SweepError    `json:"errors,omitempty"`
}

// Sweeper refreshes connections nearing expiry.
type Sweeper struct {
	refresher Refresher
	store     ExpiringLister
	cfg       Config
}

// NewSweeper creates a Sweeper.
func NewSweeper(refresher Refresher, store ExpiringLister, cfg Config) *Sweeper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Sweeper{refresher: refresher, store: store, cfg: cfg}
}

// Sweep refreshes every active connection of p whose token expires within
// the platform's lookahead. A failed connection never stops the sweep; it
// is counted and reported. The returned error covers only failures to
// list candidates or a canceled context.
func (s *Sweeper) Sweep(ctx context.Context, p models.Platform) (report *Report, err error) {
	start := time.Now()
	report = &Report{Platform: p}
	defer func() {
		metrics.RecordSweep(string(p), report.Refreshed, report.Failed, err, time.Since(start))
	}()

	policy := s.refresher.Policy(p)
	before := s.refresher.Now().Add(policy.Lookahead)
	due, err := s.store.ListExpiring(ctx, p, before, policy.SweepsNullExpiry())
	if err != nil {
		return report, fmt.Errorf("list expiring %s connections: %w", p, err)
	}
	report.Total = len(due)

	logger := logging.Ctx(ctx).With().
		Str("component", "refresh-sweep").
		Str("platform", string(p)).
		Logger()
	if len(due) == 0 {
		logger.Debug().Time("before", before).Msg("No connections due for refresh")
		return report, nil
	}

	var limiter *rate.Limiter
	if s.cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RatePerSecond), 1)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, conn := range due {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			_, rerr := s.refresher.Refresh(gctx, conn.UserID, conn.ID)

			mu.Lock()
			defer mu.Unlock()
			if rerr != nil {
				report.Failed++
				report.Errors = append(report.Errors, SweepError{
					ConnectionID: conn.ID,
					Code:         oauth.CodeOf(rerr),
					Message:      oauth.UserMessage(rerr),
				})
				return nil
			}
			report.Refreshed++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("sweep %s interrupted: %w", p, err)
	}

	logger.Info().
		Int("total", report.Total).
		Int("refreshed", report.Refreshed).
		Int("failed", report.Failed).
		Dur("duration", time.Since(start)).
		Msg("Refresh sweep complete")
	return report, nil
}
