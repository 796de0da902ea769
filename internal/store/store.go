// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

// Package store persists ad platform connections and pending account
// selections.
//
// Every read and write is scoped to the owning user: a row that exists but
// belongs to someone else is reported as ErrNotFound, never as a
// permission error, so ids cannot be probed across users.
//
// Backends:
//
//	memory    in-process maps (development, tests)
//	postgres  database/sql over pgx, goose migrations
//	duckdb    the same SQL repository over an embedded DuckDB file
//	badger    embedded key-value store with native TTL on pending rows
//	redis     pending rows only, combined with any of the above via Compose
//
// Stores do not interpret time. Expiry of pending rows is enforced by the
// caller; backends with native TTL keep rows for PendingGrace past their
// expiry so an expired read can still be told apart from an unknown id.
package store

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"github.com/tomtom215/adlink/internal/models"
)

// PendingGrace is how long TTL-based backends retain a pending row after
// its ExpiresAt.
const PendingGrace = 5 * time.Minute

var (
	// ErrNotFound means no row matched, including rows owned by another user.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate means a connection for the same (user, platform,
	// external account) already exists.
	ErrDuplicate = errors.New("duplicate connection")
)

// TokenUpdate replaces the credentials of a connection. Nil pointer fields
// keep the stored value, except TokenExpiresAt which is always written.
type TokenUpdate struct {
	AccessTokenCiphertext  string
	RefreshTokenCiphertext *string
	TokenExpiresAt         *time.Time
	AccountDisplayName     *string
	Status                 models.ConnectionStatus
	UpdatedAt              time.Time
}

// ConnectionRepository stores connections.
type ConnectionRepository interface {
	// CreateConnection inserts c. It returns ErrDuplicate when the
	// (user, platform, external account) triple is taken.
	CreateConnection(ctx context.Context, c *models.Connection) error

	GetConnection(ctx context.Context, userID, id string) (*models.Connection, error)

	// FindConnection looks a connection up by its unique triple.
	FindConnection(ctx context.Context, userID string, p models.Platform, externalAccountID string) (*models.Connection, error)

	// ListConnections returns the user's connections ordered by creation.
	ListConnections(ctx context.Context, userID string) ([]*models.Connection, error)

	UpdateTokens(ctx context.Context, userID, id string, u TokenUpdate) error
	SetStatus(ctx context.Context, userID, id string, status models.ConnectionStatus, at time.Time) error
	DeleteConnection(ctx context.Context, userID, id string) error

	// ListExpiring returns active connections of p whose token expires at or
	// before before, oldest expiry first. Connections without an expiry are
	// included only when includeNullExpiry is set.
	ListExpiring(ctx context.Context, p models.Platform, before time.Time, includeNullExpiry bool) ([]*models.Connection, error)
}

// PendingRepository stores pending account selections.
type PendingRepository interface {
	CreatePending(ctx context.Context, pc *models.PendingConnection) error
	GetPending(ctx context.Context, userID string, p models.Platform, id string) (*models.PendingConnection, error)

	// ClaimPending reads and deletes a pending row in one atomic step. Of
	// several concurrent claims exactly one gets the row; the others get
	// ErrNotFound.
	ClaimPending(ctx context.Context, userID string, p models.Platform, id string) (*models.PendingConnection, error)

	DeletePending(ctx context.Context, userID string, p models.Platform, id string) error

	// DeleteExpiredPending removes rows whose ExpiresAt is before now and
	// reports how many were removed.
	DeleteExpiredPending(ctx context.Context, now time.Time) (int, error)
}

// Store is the full persistence surface.
type Store interface {
	ConnectionRepository
	PendingRepository
	Ping(ctx context.Context) error
	Close() error
}

// composite joins a connection repository and a separate pending
// repository.
type composite struct {
	ConnectionRepository
	PendingRepository
	pingers []func(context.Context) error
	closers []io.Closer
}

// Compose builds a Store whose pending rows live in pending and everything
// else in base. Closing it closes both.
func Compose(base Store, pending PendingRepository) Store {
	c := &composite{
		ConnectionRepository: base,
		PendingRepository:    pending,
		pingers:              []func(context.Context) error{base.Ping},
		closers:              []io.Closer{base},
	}
	if p, ok := pending.(interface{ Ping(context.Context) error }); ok {
		c.pingers = append(c.pingers, p.Ping)
	}
	if cl, ok := pending.(io.Closer); ok {
		c.closers = append(c.closers, cl)
	}
	return c
}

func (c *composite) Ping(ctx context.Context) error {
	for _, ping := range c.pingers {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *composite) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// applyUpdate writes u onto c. Shared by the non-SQL backends.
func applyUpdate(c *models.Connection, u TokenUpdate) {
	c.AccessTokenCiphertext = u.AccessTokenCiphertext
	if u.RefreshTokenCiphertext != nil {
		v := *u.RefreshTokenCiphertext
		c.RefreshTokenCiphertext = &v
	}
	if u.TokenExpiresAt != nil {
		v := u.TokenExpiresAt.UTC()
		c.TokenExpiresAt = &v
	} else {
		c.TokenExpiresAt = nil
	}
	if u.AccountDisplayName != nil {
		v := *u.AccountDisplayName
		c.AccountDisplayName = &v
	}
	if u.Status != "" {
		c.Status = u.Status
	}
	c.UpdatedAt = u.UpdatedAt.UTC()
}

// expiring reports whether c belongs in a ListExpiring result.
func expiring(c *models.Connection, p models.Platform, before time.Time, includeNull bool) bool {
	if c.Platform != p || c.Status != models.StatusActive {
		return false
	}
	if c.TokenExpiresAt == nil {
		return includeNull
	}
	return !c.TokenExpiresAt.After(before)
}

// sortByCreation orders connections oldest first.
func sortByCreation(list []*models.Connection) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

// sortByExpiry orders connections null expiry first, then oldest expiry.
func sortByExpiry(list []*models.Connection) {
	less := func(a, b *models.Connection) bool {
		switch {
		case a.TokenExpiresAt == nil && b.TokenExpiresAt == nil:
			return a.ID < b.ID
		case a.TokenExpiresAt == nil:
			return true
		case b.TokenExpiresAt == nil:
			return false
		case a.TokenExpiresAt.Equal(*b.TokenExpiresAt):
			return a.ID < b.ID
		default:
			return a.TokenExpiresAt.Before(*b.TokenExpiresAt)
		}
	}
	sort.Slice(list, func(i, j int) bool { return less(list[i], list[j]) })
}
