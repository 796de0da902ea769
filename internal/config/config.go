// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

// Package config loads Adlink configuration with Koanf v2.
//
// Sources are layered, later layers winning:
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/adlink/config.yaml)
//  3. Environment variables from an explicit mapping table
//
// The loaded *Config is immutable and passed explicitly to constructors.
// No component reads configuration ambiently after startup.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Platform keys used in the providers section. They match models.Platform values.
const (
	PlatformGoogleAds = "google_ads"
	PlatformMetaAds   = "meta_ads"
	PlatformTikTokAds = "tiktok_ads"
)

// Conflict policies applied when a selected account is already connected.
const (
	ConflictReject = "reject"
	ConflictUpdate = "update"
)

// Null-expiry policies for connections whose provider returned no expiry.
const (
	NullExpiryNeverExpires       = "never_expires"
	NullExpiryRefreshImmediately = "refresh_immediately"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Providers ProvidersConfig `koanf:"providers"`
	Store     StoreConfig     `koanf:"store"`
	Events    EventsConfig    `koanf:"events"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Redirects RedirectConfig  `koanf:"redirects"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// Environment is "development" or "production". Production enables
	// secure cookies and mandatory secrets.
	Environment string `koanf:"environment"`
}

// SecurityConfig holds secrets and request-limiting settings.
//
// Environment Variables:
//   - SESSION_SECRET: HS256 secret used to validate dashboard session tokens
//   - TOKEN_ENCRYPTION_KEY: base64 master key for the secret codec
//   - CRON_SECRET: bearer secret required by /cron/* endpoints
type SecurityConfig struct {
	SessionSecret     string        `koanf:"session_secret"`
	SessionCookieName string        `koanf:"session_cookie_name"`
	EncryptionKey     string        `koanf:"encryption_key"`
	EncryptionContext string        `koanf:"encryption_context"`
	CronSecret        string        `koanf:"cron_secret"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	AuthRateLimitReqs int           `koanf:"auth_rate_limit_requests"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// ProvidersConfig holds the ad-platform OAuth clients.
type ProvidersConfig struct {
	// Timeout bounds every provider call. A timeout is a transient failure.
	Timeout time.Duration `koanf:"timeout"`

	// RedirectBaseURL is the public origin of this service; callbacks are
	// {RedirectBaseURL}/auth/{platform}/callback.
	RedirectBaseURL string `koanf:"redirect_base_url"`

	Google PlatformConfig `koanf:"google_ads"`
	Meta   PlatformConfig `koanf:"meta_ads"`
	TikTok PlatformConfig `koanf:"tiktok_ads"`
}

// PlatformConfig configures one ad platform. Fields that a platform does
// not use are ignored (DeveloperToken is Google only).
type PlatformConfig struct {
	Enabled        bool     `koanf:"enabled"`
	ClientID       string   `koanf:"client_id"`
	ClientSecret   string   `koanf:"client_secret"`
	DeveloperToken string   `koanf:"developer_token"`
	Scopes         []string `koanf:"scopes"`
	AuthURL        string   `koanf:"auth_url"`
	TokenURL       string   `koanf:"token_url"`
	APIBaseURL     string   `koanf:"api_base_url"`
	APIVersion     string   `koanf:"api_version"`

	Lifecycle LifecycleConfig `koanf:"lifecycle"`
}

// LifecycleConfig captures per-platform token semantics that shared logic
// must not hard-code.
type LifecycleConfig struct {
	// ConflictPolicy is reject or update.
	ConflictPolicy string `koanf:"conflict_policy"`
	// NullExpiry is never_expires or refresh_immediately.
	NullExpiry string `koanf:"null_expiry"`
	// Lookahead is how far ahead of expiry the sweep refreshes.
	Lookahead time.Duration `koanf:"lookahead"`
	// DefaultTokenLifetime applies when a provider omits expires_in.
	DefaultTokenLifetime time.Duration `koanf:"default_token_lifetime"`
	// PendingTTL is the lifetime of a pending account selection.
	PendingTTL time.Duration `koanf:"pending_ttl"`
}

// StoreConfig selects the Connection Store backend.
type StoreConfig struct {
	// Driver is memory, postgres, duckdb or badger.
	Driver string `koanf:"driver"`
	// DSN is the Postgres connection string.
	DSN          string `koanf:"dsn"`
	DuckDBPath   string `koanf:"duckdb_path"`
	BadgerPath   string `koanf:"badger_path"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	// PendingDriver overrides where pending selections live. Empty uses Driver; "redis" uses RedisURL.
	PendingDriver string `koanf:"pending_driver"`
	RedisURL      string `koanf:"redis_url"`
	RedisPrefix   string `koanf:"redis_prefix"`
}

// EventsConfig selects where connection lifecycle events are published.
type EventsConfig struct {
	// Backend is none, gochannel or nats.
	Backend     string `koanf:"backend"`
	NATSURL     string `koanf:"nats_url"`
	TopicPrefix string `koanf:"topic_prefix"`
}

// SchedulerConfig tunes the refresh sweep and pending reaper.
type SchedulerConfig struct {
	Concurrency         int           `koanf:"concurrency"`
	RatePerSecond       float64       `koanf:"rate_per_second"`
	PendingReapInterval time.Duration `koanf:"pending_reap_interval"`
}

// RedirectConfig holds the dashboard pages the callback redirects to.
type RedirectConfig struct {
	DashboardURL     string `koanf:"dashboard_url"`
	SelectAccountURL string `koanf:"select_account_url"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs with production hardening.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Platform returns the configuration block for a platform key.
func (c *ProvidersConfig) Platform(key string) (*PlatformConfig, bool) {
	switch key {
	case PlatformGoogleAds:
		return &c.Google, true
	case PlatformMetaAds:
		return &c.Meta, true
	case PlatformTikTokAds:
		return &c.TikTok, true
	default:
		return nil, false
	}
}

// CallbackURL returns the redirect URI registered with a platform.
func (c *ProvidersConfig) CallbackURL(key string) string {
	return strings.TrimRight(c.RedirectBaseURL, "/") + "/auth/" + key + "/callback"
}
