// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package models

import (
	"fmt"
	"strings"
)

// Platform identifies an ad platform.
type Platform string

const (
	PlatformGoogleAds Platform = "google_ads"
	PlatformMetaAds   Platform = "meta_ads"
	PlatformTikTokAds Platform = "tiktok_ads"
)

// AllPlatforms lists every supported platform in display order.
var AllPlatforms = []Platform{PlatformGoogleAds, PlatformMetaAds, PlatformTikTokAds}

// ParsePlatform converts a path segment or config key into a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unsupported platform %q", s)
	}
	return p, nil
}

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformGoogleAds, PlatformMetaAds, PlatformTikTokAds:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// DisplayName is the human-readable platform name used in redirect messages.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformGoogleAds:
		return "Google Ads"
	case PlatformMetaAds:
		return "Meta Ads"
	case PlatformTikTokAds:
		return "TikTok Ads"
	}
	return string(p)
}

// StateCookieName is the name of the cookie holding the encrypted OAuth state.
func (p Platform) StateCookieName() string {
	return string(p) + "_oauth_state"
}
