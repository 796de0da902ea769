// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

// Package providers implements OAuth clients for the supported ad platforms.
//
// Each platform satisfies the same Client capability set even though their
// token semantics differ:
//
//	| Platform   | Access-token life | Refresh mechanism          | Refresh-token rotation |
//	|------------|-------------------|----------------------------|------------------------|
//	| google_ads | provider-defined  | refresh_token grant        | stable                 |
//	| meta_ads   | 60 days           | extend long-lived token    | n/a (no refresh token) |
//	| tiktok_ads | 24 hours          | refresh_token grant        | rotated every refresh  |
//
// The differences are declared by Lifecycle so the orchestrator never
// switches on platform names.
//
// Every failure is an *Error whose kind is one of ErrInvalidGrant,
// ErrTransient or ErrProviderResponse:
//
//	var perr *providers.Error
//	if errors.Is(err, providers.ErrInvalidGrant) { ... }
//	if errors.As(err, &perr) { log perr.Status, perr.Code }
//
// Clients are built once at startup from an explicit Config and are safe
// for concurrent use.
package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/adlink/internal/models"
)

// DefaultTimeout bounds each provider call when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// RefreshKind is how a platform renews access.
type RefreshKind int

const (
	// RefreshGrant exchanges a refresh token for a new access token.
	RefreshGrant RefreshKind = iota
	// ExtendToken exchanges a still-valid access token for a new one of the
	// same kind. Once the access token has expired nothing can be extended.
	ExtendToken
)

// String implements fmt.Stringer.
func (k RefreshKind) String() string {
	if k == ExtendToken {
		return "extend"
	}
	return "refresh"
}

// Lifecycle describes a platform's token semantics.
type Lifecycle struct {
	Refresh RefreshKind
	// IssuesRefreshToken is false for platforms that only hand out access tokens.
	IssuesRefreshToken bool
	// RotatesRefreshToken means every refresh returns a new refresh token and
	// the previous one stops working.
	RotatesRefreshToken bool
}

// Grant is the credential a refresh is performed with. RefreshGrant
// platforms use RefreshToken; ExtendToken platforms use AccessToken.
type Grant struct {
	AccessToken  string
	RefreshToken string
}

// Client is the capability set every ad platform implements.
type Client interface {
	Platform() models.Platform
	Lifecycle() Lifecycle

	// BuildAuthURL returns the consent-screen URL embedding state, the
	// registered redirect URI and the required scopes.
	BuildAuthURL(state string) string

	// ExchangeCode trades a one-time authorization code for tokens. A reused,
	// expired or unknown code fails with ErrInvalidGrant.
	ExchangeCode(ctx context.Context, code string) (*models.TokenSet, error)

	// RefreshToken renews access per Lifecycle().Refresh.
	RefreshToken(ctx context.Context, grant Grant) (*models.TokenSet, error)

	// ListAccounts returns the ad accounts the token can access, in provider
	// order. An empty list is not an error.
	ListAccounts(ctx context.Context, accessToken string) ([]models.CandidateAccount, error)

	// RevokeToken revokes the grant at the provider.
	RevokeToken(ctx context.Context, accessToken string) error
}

// Config is the explicit, immutable configuration of one platform client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	AuthURL    string
	TokenURL   string
	APIBaseURL string
	APIVersion string

	// RevokeURL overrides the platform's default revocation endpoint.
	RevokeURL string

	// DeveloperToken is required by the Google Ads API.
	DeveloperToken string

	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration

	// HTTPClient is used for every request. Nil uses a client without a
	// global timeout; per-call contexts carry the deadline instead.
	HTTPClient *http.Client
}

func (c *Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c *Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{}
}
