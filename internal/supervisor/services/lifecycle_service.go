// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package services

import (
	"context"
	"fmt"
)

// StartStopper is a component with a Start/Stop lifecycle, such as
// *scheduler.Reaper.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// LifecycleService adapts a StartStopper to suture's Serve pattern: Start,
// block until canceled, then Stop.
type LifecycleService struct {
	component StartStopper
	name      string
}

// NewLifecycleService wraps component under name.
//
//	reaper := scheduler.NewReaper(st, cfg.Scheduler.PendingReapInterval, nil)
//	tree.AddDataService(services.NewLifecycleService("pending-reaper", reaper))
func NewLifecycleService(name string, component StartStopper) *LifecycleService {
	return &LifecycleService{component: component, name: name}
}

// Serve implements suture.Service. A Start failure is returned at once so
// the supervisor restarts the component with backoff.
func (s *LifecycleService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()

	if err := s.component.Stop(); err != nil {
		return fmt.Errorf("%s stop failed: %w", s.name, err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (s *LifecycleService) String() string {
	return s.name
}
