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
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/adlink/internal/models"
)

// Dialect captures what differs between the SQL backends.
type Dialect struct {
	Name string
	// IsUniqueViolation reports whether err is a unique-constraint failure.
	IsUniqueViolation func(err error) bool
	// IsConflict reports whether err is a write-write conflict with a
	// concurrent transaction. Optional.
	IsConflict func(err error) bool
}

func (d Dialect) uniqueViolation(err error) bool {
	return d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}

func (d Dialect) conflict(err error) bool {
	return d.IsConflict != nil && d.IsConflict(err)
}

// SQLStore implements Store over database/sql. Postgres and DuckDB share it;
// both accept $n placeholders and DELETE ... RETURNING.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database whose schema is already in place.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// DB returns the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

const connectionColumns = `id, user_id, platform, external_account_id, account_display_name,
	access_token_ciphertext, refresh_token_ciphertext, token_expires_at, status, created_at, updated_at`

const pendingColumns = `id, user_id, platform, access_token_ciphertext, refresh_token_ciphertext,
	token_expires_at, candidate_accounts, created_at, expires_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*models.Connection, error) {
	var (
		c           models.Connection
		platform    string
		status      string
		displayName sql.NullString
		refresh     sql.NullString
		expiresAt   sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &platform, &c.ExternalAccountID, &displayName,
		&c.AccessTokenCiphertext, &refresh, &expiresAt, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Platform = models.Platform(platform)
	c.Status = models.ConnectionStatus(status)
	if displayName.Valid {
		c.AccountDisplayName = &displayName.String
	}
	if refresh.Valid {
		c.RefreshTokenCiphertext = &refresh.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		c.TokenExpiresAt = &t
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func scanPending(row rowScanner) (*models.PendingConnection, error) {
	var (
		pc         models.PendingConnection
		platform   string
		refresh    sql.NullString
		expiresAt  sql.NullTime
		candidates []byte
	)
	err := row.Scan(&pc.ID, &pc.UserID, &platform, &pc.AccessTokenCiphertext, &refresh,
		&expiresAt, &candidates, &pc.CreatedAt, &pc.ExpiresAt)
	if err != nil {
		return nil, err
	}
	pc.Platform = models.Platform(platform)
	if refresh.Valid {
		pc.RefreshTokenCiphertext = &refresh.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		pc.TokenExpiresAt = &t
	}
	if err := json.Unmarshal(candidates, &pc.CandidateAccounts); err != nil {
		return nil, fmt.Errorf("decode candidate accounts: %w", err)
	}
	pc.CreatedAt = pc.CreatedAt.UTC()
	pc.ExpiresAt = pc.ExpiresAt.UTC()
	return &pc, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// CreateConnection implements ConnectionRepository.
func (s *SQLStore) CreateConnection(ctx context.Context, c *models.Connection) error {
	query := `INSERT INTO ad_platform_connections (` + connectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.UserID, string(c.Platform), c.ExternalAccountID, nullString(c.AccountDisplayName),
		c.AccessTokenCiphertext, nullString(c.RefreshTokenCiphertext), nullTime(c.TokenExpiresAt),
		string(c.Status), c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		if s.dialect.uniqueViolation(err) || s.dialect.conflict(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

// GetConnection implements ConnectionRepository.
func (s *SQLStore) GetConnection(ctx context.Context, userID, id string) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM ad_platform_connections
		WHERE id = $1 AND user_id = $2`

	c, err := scanConnection(s.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return c, nil
}

// FindConnection implements ConnectionRepository.
func (s *SQLStore) FindConnection(ctx context.Context, userID string, p models.Platform, externalAccountID string) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM ad_platform_connections
		WHERE user_id = $1 AND platform = $2 AND external_account_id = $3`

	c, err := scanConnection(s.db.QueryRowContext(ctx, query, userID, string(p), externalAccountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find connection: %w", err)
	}
	return c, nil
}

// ListConnections implements ConnectionRepository.
func (s *SQLStore) ListConnections(ctx context.Context, userID string) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM ad_platform_connections
		WHERE user_id = $1 ORDER BY created_at, id`
	return s.queryConnections(ctx, "list connections", query, userID)
}

// ListExpiring implements ConnectionRepository.
func (s *SQLStore) ListExpiring(ctx context.Context, p models.Platform, before time.Time, includeNullExpiry bool) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM ad_platform_connections
		WHERE platform = $1 AND status = $2
		  AND (token_expires_at <= $3 OR ($4 AND token_expires_at IS NULL))
		ORDER BY token_expires_at NULLS FIRST, id`
	return s.queryConnections(ctx, "list expiring connections", query,
		string(p), string(models.StatusActive), before.UTC(), includeNullExpiry)
}

func (s *SQLStore) queryConnections(ctx context.Context, op, query string, args ...any) ([]*models.Connection, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// UpdateTokens implements ConnectionRepository.
func (s *SQLStore) UpdateTokens(ctx context.Context, userID, id string, u TokenUpdate) error {
	query := `UPDATE ad_platform_connections SET
			access_token_ciphertext = $1,
			refresh_token_ciphertext = COALESCE($2, refresh_token_ciphertext),
			token_expires_at = $3,
			account_display_name = COALESCE($4, account_display_name),
			status = COALESCE($5, status),
			updated_at = $6
		WHERE id = $7 AND user_id = $8`

	var status sql.NullString
	if u.Status != "" {
		status = sql.NullString{String: string(u.Status), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, query,
		u.AccessTokenCiphertext, nullString(u.RefreshTokenCiphertext), nullTime(u.TokenExpiresAt),
		nullString(u.AccountDisplayName), status, u.UpdatedAt.UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}
	return expectOneRow(res, "update tokens")
}

// SetStatus implements ConnectionRepository.
func (s *SQLStore) SetStatus(ctx context.Context, userID, id string, status models.ConnectionStatus, at time.Time) error {
	query := `UPDATE ad_platform_connections SET status = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4`

	res, err := s.db.ExecContext(ctx, query, string(status), at.UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return expectOneRow(res, "set status")
}

// DeleteConnection implements ConnectionRepository.
func (s *SQLStore) DeleteConnection(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ad_platform_connections WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	return expectOneRow(res, "delete connection")
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePending implements PendingRepository.
func (s *SQLStore) CreatePending(ctx context.Context, pc *models.PendingConnection) error {
	candidates, err := json.Marshal(pc.CandidateAccounts)
	if err != nil {
		return fmt.Errorf("encode candidate accounts: %w", err)
	}
	query := `INSERT INTO pending_connections (` + pendingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.db.ExecContext(ctx, query,
		pc.ID, pc.UserID, string(pc.Platform), pc.AccessTokenCiphertext,
		nullString(pc.RefreshTokenCiphertext), nullTime(pc.TokenExpiresAt),
		string(candidates), pc.CreatedAt.UTC(), pc.ExpiresAt.UTC())
	if err != nil {
		if s.dialect.uniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert pending connection: %w", err)
	}
	return nil
}

// GetPending implements PendingRepository.
func (s *SQLStore) GetPending(ctx context.Context, userID string, p models.Platform, id string) (*models.PendingConnection, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_connections
		WHERE id = $1 AND user_id = $2 AND platform = $3`

	pc, err := scanPending(s.db.QueryRowContext(ctx, query, id, userID, string(p)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get pending connection: %w", err)
	}
	return pc, nil
}

// ClaimPending implements PendingRepository with a single DELETE ... RETURNING.
// A losing concurrent claim either finds no row or, on optimistic backends,
// fails with a conflict; both are reported as ErrNotFound.
func (s *SQLStore) ClaimPending(ctx context.Context, userID string, p models.Platform, id string) (*models.PendingConnection, error) {
	query := `DELETE FROM pending_connections
		WHERE id = $1 AND user_id = $2 AND platform = $3
		RETURNING ` + pendingColumns

	pc, err := scanPending(s.db.QueryRowContext(ctx, query, id, userID, string(p)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || s.dialect.conflict(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("claim pending connection: %w", err)
	}
	return pc, nil
}

// DeletePending implements PendingRepository.
func (s *SQLStore) DeletePending(ctx context.Context, userID string, p models.Platform, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_connections WHERE id = $1 AND user_id = $2 AND platform = $3`,
		id, userID, string(p))
	if err != nil {
		return fmt.Errorf("delete pending connection: %w", err)
	}
	return expectOneRow(res, "delete pending connection")
}

// DeleteExpiredPending implements PendingRepository.
func (s *SQLStore) DeleteExpiredPending(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_connections WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired pending connections: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired pending connections: rows affected: %w", err)
	}
	return int(n), nil
}

// Ping implements Store.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
