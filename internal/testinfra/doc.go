// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

// Package testinfra starts disposable backing services for integration
// tests with testcontainers-go.
//
// # Containers
//
//   - PostgresContainer: the connection store's production database
//   - RedisContainer: the shared pending-selection store
//
// Example:
//
//	func TestPostgresStore(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg.Container)
//
//	    s, err := store.OpenPostgres(ctx, pg.DSN, 5)
//	    // ...
//	}
//
// # Running
//
// Every file carries the integration build tag:
//
//	go test -tags integration ./...
//
// Tests skip themselves when Docker is unavailable or -short is set. The
// first run pulls images; later runs use the local cache.
package testinfra
