// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package models

import (
	"time"
)

// DefaultPendingTTL is the hard lifetime of a PendingConnection.
const DefaultPendingTTL = 10 * time.Minute

// CandidateAccount is one ad account the user may attach a connection to.
type CandidateAccount struct {
	ExternalAccountID string `json:"id"`
	DisplayName       string `json:"name"`
	Currency          string `json:"currency,omitempty"`
	Timezone          string `json:"timezone,omitempty"`
}

// PendingConnection holds tokens between the OAuth callback and account
// selection. It is consumed exactly once: promoted into a Connection or
// discarded.
type PendingConnection struct {
	ID                     string             `json:"id"`
	UserID                 string             `json:"user_id"`
	Platform               Platform           `json:"platform"`
	AccessTokenCiphertext  string             `json:"access_token_ciphertext"`
	RefreshTokenCiphertext *string            `json:"refresh_token_ciphertext,omitempty"`
	TokenExpiresAt         *time.Time         `json:"token_expires_at,omitempty"`
	CandidateAccounts      []CandidateAccount `json:"candidate_accounts"`
	CreatedAt              time.Time          `json:"created_at"`
	ExpiresAt              time.Time          `json:"expires_at"`
}

// IsExpired reports whether now is past ExpiresAt. A read exactly at
// ExpiresAt is still valid.
func (p *PendingConnection) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Candidate returns the candidate with the given external id.
func (p *PendingConnection) Candidate(externalAccountID string) (CandidateAccount, bool) {
	for _, a := range p.CandidateAccounts {
		if a.ExternalAccountID == externalAccountID {
			return a, true
		}
	}
	return CandidateAccount{}, false
}

// HasCandidate reports whether externalAccountID is among the candidates.
func (p *PendingConnection) HasCandidate(externalAccountID string) bool {
	_, ok := p.Candidate(externalAccountID)
	return ok
}

// Clone returns a deep copy.
func (p *PendingConnection) Clone() *PendingConnection {
	if p == nil {
		return nil
	}
	out := *p
	out.RefreshTokenCiphertext = cloneString(p.RefreshTokenCiphertext)
	out.TokenExpiresAt = cloneTime(p.TokenExpiresAt)
	out.CandidateAccounts = append([]CandidateAccount(nil), p.CandidateAccounts...)
	return &out
}
