// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package store

import (
	"context"
	"fmt"

	"github.com/tomtom215/adlink/internal/config"
	"github.com/tomtom215/adlink/internal/logging"
)

// Open builds the Store selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		base Store
		err  error
	)
	switch cfg.Driver {
	case "", "memory":
		base = NewMemoryStore()
	case "postgres":
		base, err = OpenPostgres(ctx, cfg.DSN, cfg.MaxOpenConns)
	case "duckdb":
		base, err = OpenDuckDB(ctx, cfg.DuckDBPath)
	case "badger":
		base, err = OpenBadger(cfg.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	logger := logging.WithComponent("store")
	if cfg.PendingDriver != "redis" {
		logger.Info().Str("driver", driverName(cfg.Driver)).Msg("Connection store ready")
		return base, nil
	}

	pending, err := OpenRedisPending(ctx, cfg.RedisURL, cfg.RedisPrefix)
	if err != nil {
		_ = base.Close() //nolint:errcheck // already returning the redis error
		return nil, err
	}
	logger.Info().
		Str("driver", driverName(cfg.Driver)).
		Str("pending_driver", "redis").
		Msg("Connection store ready")
	return Compose(base, pending), nil
}

func driverName(d string) string {
	if d == "" {
		return "memory"
	}
	return d
}
