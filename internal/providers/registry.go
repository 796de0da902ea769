// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package providers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/adlink/internal/config"
	"github.com/tomtom215/adlink/internal/models"
)

// ErrPlatformDisabled is returned by Registry.Get for platforms without a
// configured client.
var ErrPlatformDisabled = errors.New("platform not enabled")

// Registry maps platforms to their clients. It is immutable after
// construction.
type Registry struct {
	clients map[models.Platform]Client
}

// NewRegistry builds a registry from already constructed clients. A later
// client for the same platform replaces an earlier one.
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[models.Platform]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Platform()] = c
	}
	return r
}

// Get returns the client for p.
func (r *Registry) Get(p models.Platform) (Client, error) {
	c, ok := r.clients[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrPlatformDisabled)
	}
	return c, nil
}

// Enabled reports whether p has a client.
func (r *Registry) Enabled(p models.Platform) bool {
	_, ok := r.clients[p]
	return ok
}

// Platforms lists the enabled platforms in display order.
func (r *Registry) Platforms() []models.Platform {
	out := make([]models.Platform, 0, len(r.clients))
	for _, p := range models.AllPlatforms {
		if _, ok := r.clients[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// FromConfig builds circuit-breaker wrapped clients for every enabled
// platform. httpClient may be nil.
func FromConfig(cfg *config.ProvidersConfig, httpClient *http.Client) (*Registry, error) {
	var clients []Client
	for _, p := range models.AllPlatforms {
		pc, ok := cfg.Platform(p.String())
		if !ok {
			return nil, fmt.Errorf("no configuration block for %s", p)
		}
		if !pc.Enabled {
			continue
		}
		c, err := NewClient(p, clientConfig(cfg, p, pc, httpClient))
		if err != nil {
			return nil, err
		}
		clients = append(clients, WithBreaker(c))
	}
	return NewRegistry(clients...), nil
}

// NewClient constructs the unwrapped client for p.
func NewClient(p models.Platform, cfg Config) (Client, error) {
	switch p {
	case models.PlatformGoogleAds:
		return NewGoogleClient(cfg), nil
	case models.PlatformMetaAds:
		return NewMetaClient(cfg), nil
	case models.PlatformTikTokAds:
		return NewTikTokClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", p)
	}
}

func clientConfig(cfg *config.ProvidersConfig, p models.Platform, pc *config.PlatformConfig, httpClient *http.Client) Config {
	return Config{
		ClientID:       pc.ClientID,
		ClientSecret:   pc.ClientSecret,
		RedirectURI:    cfg.CallbackURL(p.String()),
		Scopes:         pc.Scopes,
		AuthURL:        pc.AuthURL,
		TokenURL:       pc.TokenURL,
		APIBaseURL:     pc.APIBaseURL,
		APIVersion:     pc.APIVersion,
		DeveloperToken: pc.DeveloperToken,
		Timeout:        cfg.Timeout,
		HTTPClient:     httpClient,
	}
}
