// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/adlink/internal/config"
)

// RateLimitConfig is one request budget per client IP.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// RateLimitHealth leaves room for frequent probes.
var RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}

// MiddlewareConfig holds CORS and rate limiting settings.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int // seconds

	RateLimit         RateLimitConfig
	AuthRateLimit     RateLimitConfig
	RateLimitDisabled bool
}

// MiddlewareConfigFromSecurity builds a MiddlewareConfig from the service
// configuration.
func MiddlewareConfigFromSecurity(s *config.SecurityConfig) *MiddlewareConfig {
	return &MiddlewareConfig{
		CORSAllowedOrigins: s.CORSOrigins,
		CORSAllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimit:          RateLimitConfig{Requests: s.RateLimitReqs, Window: s.RateLimitWindow},
		AuthRateLimit:      RateLimitConfig{Requests: s.AuthRateLimitReqs, Window: s.RateLimitWindow},
		RateLimitDisabled:  s.RateLimitDisabled,
	}
}

// Limits provides the CORS and rate limit middleware of the router.
type Limits struct {
	config *MiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewLimits creates Limits. Credentials are only allowed with an explicit
// origin list.
func NewLimits(cfg *MiddlewareConfig) *Limits {
	return &Limits{
		config: cfg,
		cors: cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   cfg.CORSAllowedMethods,
			AllowedHeaders:   cfg.CORSAllowedHeaders,
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: !slices.Contains(cfg.CORSAllowedOrigins, "*"),
			MaxAge:           cfg.CORSMaxAge,
		}),
	}
}

// CORS returns the go-chi/cors middleware.
func (l *Limits) CORS() func(http.Handler) http.Handler {
	return l.cors
}

// RateLimit applies the general API budget.
func (l *Limits) RateLimit() func(http.Handler) http.Handler {
	return l.Custom(l.config.RateLimit)
}

// RateLimitAuth applies the stricter budget of the /auth routes.
func (l *Limits) RateLimitAuth() func(http.Handler) http.Handler {
	return l.Custom(l.config.AuthRateLimit)
}

// RateLimitHealth applies the probe budget.
func (l *Limits) RateLimitHealth() func(http.Handler) http.Handler {
	return l.Custom(RateLimitHealth)
}

// Custom limits requests per client IP. A disabled or empty budget is a
// no-op.
func (l *Limits) Custom(rl RateLimitConfig) func(http.Handler) http.Handler {
	if l.config.RateLimitDisabled || rl.Requests <= 0 || rl.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(rl.Requests, rl.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, http.StatusTooManyRequests, CodeRateLimited, "too many requests; please slow down")
		}),
	)
}
