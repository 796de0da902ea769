// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package oauth

import (
	"time"

	"github.com/tomtom215/adlink/internal/config"
	"github.com/tomtom215/adlink/internal/models"
)

// Policy is the per-platform behaviour shared logic must not hard-code.
type Policy struct {
	// ConflictPolicy decides what happens when the chosen account is
	// already connected: config.ConflictReject or config.ConflictUpdate.
	ConflictPolicy string
	// NullExpiry is config.NullExpiryNeverExpires or
	// config.NullExpiryRefreshImmediately.
	NullExpiry string
	// Lookahead is how far ahead of expiry the sweep refreshes.
	Lookahead time.Duration
	// DefaultTokenLifetime is assumed when the provider omits expires_in.
	// Zero stores a null expiry.
	DefaultTokenLifetime time.Duration
	// PendingTTL is the lifetime of a pending account selection.
	PendingTTL time.Duration
}

// RejectsConflicts reports whether reconnecting an existing account fails.
func (p Policy) RejectsConflicts() bool {
	return p.ConflictPolicy == config.ConflictReject
}

// SweepsNullExpiry reports whether connections without an expiry are due
// on every sweep.
func (p Policy) SweepsNullExpiry() bool {
	return p.NullExpiry != config.NullExpiryNeverExpires
}

func (p Policy) pendingTTL() time.Duration {
	if p.PendingTTL <= 0 {
		return models.DefaultPendingTTL
	}
	return p.PendingTTL
}

// DefaultPolicies are used for platforms missing from Deps.Policies.
var DefaultPolicies = map[models.Platform]Policy{
	models.PlatformGoogleAds: {
		ConflictPolicy:       config.ConflictReject,
		NullExpiry:           config.NullExpiryRefreshImmediately,
		Lookahead:            30 * time.Minute,
		DefaultTokenLifetime: time.Hour,
		PendingTTL:           models.DefaultPendingTTL,
	},
	models.PlatformMetaAds: {
		ConflictPolicy:       config.ConflictUpdate,
		NullExpiry:           config.NullExpiryRefreshImmediately,
		Lookahead:            7 * 24 * time.Hour,
		DefaultTokenLifetime: 60 * 24 * time.Hour,
		PendingTTL:           models.DefaultPendingTTL,
	},
	models.PlatformTikTokAds: {
		ConflictPolicy:       config.ConflictUpdate,
		NullExpiry:           config.NullExpiryRefreshImmediately,
		Lookahead:            6 * time.Hour,
		DefaultTokenLifetime: 24 * time.Hour,
		PendingTTL:           models.DefaultPendingTTL,
	},
}

// PoliciesFromConfig reads every platform's lifecycle section.
func PoliciesFromConfig(cfg *config.ProvidersConfig) map[models.Platform]Policy {
	out := make(map[models.Platform]Policy, len(models.AllPlatforms))
	for _, p := range models.AllPlatforms {
		pc, ok := cfg.Platform(string(p))
		if !ok {
			continue
		}
		l := pc.Lifecycle
		out[p] = Policy{
			ConflictPolicy:       l.ConflictPolicy,
			NullExpiry:           l.NullExpiry,
			Lookahead:            l.Lookahead,
			DefaultTokenLifetime: l.DefaultTokenLifetime,
			PendingTTL:           l.PendingTTL,
		}
	}
	return out
}
