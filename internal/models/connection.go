// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package models

import (
	"time"
)

// ConnectionStatus is the refresh state of a Connection.
type ConnectionStatus string

const (
	// StatusActive connections hold a token the sweep keeps fresh.
	StatusActive ConnectionStatus = "active"
	// StatusNeedsReauth connections cannot be refreshed automatically.
	// The user must repeat the consent flow.
	StatusNeedsReauth ConnectionStatus = "needs_reauth"
)

// Valid reports whether s is a known status.
func (s ConnectionStatus) Valid() bool {
	return s == StatusActive || s == StatusNeedsReauth
}

// Connection links a user to one ad account on one platform.
//
// Token fields hold codec ciphertext only. RefreshTokenCiphertext is nil for
// platforms without refresh tokens (Meta). TokenExpiresAt is nil when the
// provider reported no expiry; how that is treated is a per-platform policy.
type Connection struct {
	ID                     string           `json:"id"`
	UserID                 string           `json:"user_id"`
	Platform               Platform         `json:"platform"`
	ExternalAccountID      string           `json:"external_account_id"`
	AccountDisplayName     *string          `json:"account_display_name,omitempty"`
	AccessTokenCiphertext  string           `json:"-"`
	RefreshTokenCiphertext *string          `json:"-"`
	TokenExpiresAt         *time.Time       `json:"token_expires_at,omitempty"`
	Status                 ConnectionStatus `json:"status"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// IsExpired reports whether the access token expired at or before now.
// A nil expiry is never expired here; callers apply the null-expiry policy.
func (c *Connection) IsExpired(now time.Time) bool {
	return c.TokenExpiresAt != nil && !now.Before(*c.TokenExpiresAt)
}

// HasRefreshToken reports whether a refresh token ciphertext is stored.
func (c *Connection) HasRefreshToken() bool {
	return c.RefreshTokenCiphertext != nil && *c.RefreshTokenCiphertext != ""
}

// Clone returns a deep copy so stores can hand out values without aliasing.
func (c *Connection) Clone() *Connection {
	if c == nil {
		return nil
	}
	out := *c
	out.AccountDisplayName = cloneString(c.AccountDisplayName)
	out.RefreshTokenCiphertext = cloneString(c.RefreshTokenCiphertext)
	out.TokenExpiresAt = cloneTime(c.TokenExpiresAt)
	return &out
}

// ConnectionSummary is the dashboard view of a Connection. It never carries
// token material.
type ConnectionSummary struct {
	ID                 string           `json:"id"`
	Platform           Platform         `json:"platform"`
	ExternalAccountID  string           `json:"externalAccountId"`
	AccountDisplayName string           `json:"accountDisplayName,omitempty"`
	Status             ConnectionStatus `json:"status"`
	TokenExpiresAt     *time.Time       `json:"tokenExpiresAt,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// Summary converts c into its token-free view.
func (c *Connection) Summary() ConnectionSummary {
	s := ConnectionSummary{
		ID:                c.ID,
		Platform:          c.Platform,
		ExternalAccountID: c.ExternalAccountID,
		Status:            c.Status,
		TokenExpiresAt:    cloneTime(c.TokenExpiresAt),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
	if c.AccountDisplayName != nil {
		s.AccountDisplayName = *c.AccountDisplayName
	}
	return s
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// TimePtr returns a pointer to t, or nil when t is the zero time.
func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
