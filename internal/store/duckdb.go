// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/duckdb/duckdb-go/v2"
)

// DuckDBDialect is the Dialect for an embedded DuckDB file.
var DuckDBDialect = Dialect{
	Name: "duckdb",
	IsUniqueViolation: func(err error) bool {
		var ddbErr *duckdb.Error
		return errors.As(err, &ddbErr) && ddbErr.Type == duckdb.ErrorTypeConstraint
	},
	IsConflict: func(err error) bool {
		var ddbErr *duckdb.Error
		return errors.As(err, &ddbErr) && ddbErr.Type == duckdb.ErrorTypeTransaction
	},
}

// duckdbSchema mirrors the goose migrations. DuckDB stores plain TIMESTAMP
// values (always UTC here) so no ICU extension is needed, and candidate
// accounts as VARCHAR JSON.
var duckdbSchema = []string{
	`CREATE TABLE IF NOT EXISTS ad_platform_connections (
		id                       VARCHAR PRIMARY KEY,
		user_id                  VARCHAR NOT NULL,
		platform                 VARCHAR NOT NULL,
		external_account_id      VARCHAR NOT NULL,
		account_display_name     VARCHAR,
		access_token_ciphertext  VARCHAR NOT NULL,
		refresh_token_ciphertext VARCHAR,
		token_expires_at         TIMESTAMP,
		status                   VARCHAR NOT NULL DEFAULT 'active',
		created_at               TIMESTAMP NOT NULL,
		updated_at               TIMESTAMP NOT NULL,
		UNIQUE (user_id, platform, external_account_id),
		CHECK (status IN ('active', 'needs_reauth'))
	)`,
	`CREATE TABLE IF NOT EXISTS pending_connections (
		id                       VARCHAR PRIMARY KEY,
		user_id                  VARCHAR NOT NULL,
		platform                 VARCHAR NOT NULL,
		access_token_ciphertext  VARCHAR NOT NULL,
		refresh_token_ciphertext VARCHAR,
		token_expires_at         TIMESTAMP,
		candidate_accounts       VARCHAR NOT NULL,
		created_at               TIMESTAMP NOT NULL,
		expires_at               TIMESTAMP NOT NULL
	)`,
}

// OpenDuckDB opens (or creates) the DuckDB file at path and ensures the
// schema exists. An empty path opens an in-memory database.
func OpenDuckDB(ctx context.Context, path string) (*SQLStore, error) {
	connStr := path + "?access_mode=read_write&autoinstall_known_extensions=false&autoload_known_extensions=false"

	db, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, stmt := range duckdbSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			closeQuietly(db)
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return NewSQLStore(db, DuckDBDialect), nil
}

func closeQuietly(db *sql.DB) {
	_ = db.Close() //nolint:errcheck // already returning the primary error
}
