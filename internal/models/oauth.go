// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package models

import (
	"time"
)

// StateTTL is the lifetime of an OAuthState and its cookie.
const StateTTL = 10 * time.Minute

// OAuthState is the client-held state of an in-flight consent flow. It is
// only ever stored encrypted in a cookie, never server-side.
type OAuthState struct {
	Nonce     string    `json:"nonce"`
	UserID    string    `json:"user_id"`
	Platform  Platform  `json:"platform"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the state is no longer valid at now.
func (s *OAuthState) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TokenSet is a provider token response in plaintext. It must never be
// persisted unencrypted or written to logs.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access-token lifetime; zero means the provider did not say.
	ExpiresIn time.Duration
	// RefreshTokenExpiresIn is reported by TikTok only.
	RefreshTokenExpiresIn time.Duration
}

// ExpiresAt returns the absolute expiry relative to now, or nil when
// ExpiresIn is unknown.
func (t *TokenSet) ExpiresAt(now time.Time) *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	at := now.Add(t.ExpiresIn).UTC()
	return &at
}

// String keeps tokens out of %v formatting.
func (t TokenSet) String() string {
	return "TokenSet{redacted}"
}
