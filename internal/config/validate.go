// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"json": true, "console": true,
}

var validStoreDrivers = map[string]bool{
	"memory": true, "postgres": true, "duckdb": true, "badger": true,
}

var validEventBackends = map[string]bool{
	"none": true, "gochannel": true, "nats": true,
}

// minSecretLength applies to the session and cron secrets in production.
const minSecretLength = 32

// minEncryptionKeyBytes is the minimum decoded length of the master key.
const minEncryptionKeyBytes = 16

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := &c.Security
	if s.EncryptionKey != "" {
		if err := validateEncryptionKey(s.EncryptionKey); err != nil {
			return err
		}
	}
	if s.RateLimitReqs < 1 && !s.RateLimitDisabled {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
	}
	if s.RateLimitWindow <= 0 && !s.RateLimitDisabled {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}

	if !c.IsProduction() {
		return nil
	}

	if len(s.SessionSecret) < minSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in production", minSecretLength)
	}
	if s.EncryptionKey == "" {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY is required in production")
	}
	if len(s.CronSecret) < minSecretLength {
		return fmt.Errorf("CRON_SECRET must be at least %d characters in production", minSecretLength)
	}
	for _, origin := range s.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain * in production")
		}
	}
	return nil
}

// validateEncryptionKey accepts standard or URL-safe base64 of at least
// minEncryptionKeyBytes bytes.
func validateEncryptionKey(key string) error {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(key, "="))
	}
	if err != nil {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be base64 encoded: %w", err)
	}
	if len(raw) < minEncryptionKeyBytes {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must decode to at least %d bytes, got %d", minEncryptionKeyBytes, len(raw))
	}
	return nil
}

func (c *Config) validateProviders() error {
	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if err := validateHTTPURL("OAUTH_REDIRECT_BASE_URL", c.Providers.RedirectBaseURL); err != nil {
		return err
	}

	for _, key := range []string{PlatformGoogleAds, PlatformMetaAds, PlatformTikTokAds} {
		p, _ := c.Providers.Platform(key)
		if err := validateLifecycle(key, &p.Lifecycle); err != nil {
			return err
		}
		if !p.Enabled {
			continue
		}
		envPrefix := strings.ToUpper(key)
		if p.ClientID == "" {
			return fmt.Errorf("%s_CLIENT_ID is required when %s is enabled", envPrefix, key)
		}
		if p.ClientSecret == "" {
			return fmt.Errorf("%s_CLIENT_SECRET is required when %s is enabled", envPrefix, key)
		}
		if key == PlatformGoogleAds && p.DeveloperToken == "" {
			return fmt.Errorf("GOOGLE_ADS_DEVELOPER_TOKEN is required when google_ads is enabled")
		}
		for name, raw := range map[string]string{"auth_url": p.AuthURL, "token_url": p.TokenURL, "api_base_url": p.APIBaseURL} {
			if err := validateHTTPURL(key+"."+name, raw); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateLifecycle(key string, l *LifecycleConfig) error {
	switch l.ConflictPolicy {
	case ConflictReject, ConflictUpdate:
	default:
		return fmt.Errorf("%s conflict_policy must be %q or %q, got %q", key, ConflictReject, ConflictUpdate, l.ConflictPolicy)
	}
	switch l.NullExpiry {
	case NullExpiryNeverExpires, NullExpiryRefreshImmediately:
	default:
		return fmt.Errorf("%s null_expiry must be %q or %q, got %q", key, NullExpiryNeverExpires, NullExpiryRefreshImmediately, l.NullExpiry)
	}
	if l.Lookahead <= 0 {
		return fmt.Errorf("%s lookahead must be positive", key)
	}
	if l.DefaultTokenLifetime <= 0 {
		return fmt.Errorf("%s default_token_lifetime must be positive", key)
	}
	if l.PendingTTL <= 0 {
		return fmt.Errorf("%s pending_ttl must be positive", key)
	}
	return nil
}

func (c *Config) validateStore() error {
	s := &c.Store
	if !validStoreDrivers[s.Driver] {
		return fmt.Errorf("STORE_DRIVER must be one of memory, postgres, duckdb, badger; got %q", s.Driver)
	}
	switch s.Driver {
	case "postgres":
		if s.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case "duckdb":
		if s.DuckDBPath == "" {
			return fmt.Errorf("DUCKDB_PATH is required for the duckdb store")
		}
	case "badger":
		if s.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required for the badger store")
		}
	}
	switch s.PendingDriver {
	case "":
	case "redis":
		if s.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when PENDING_STORE_DRIVER is redis")
		}
	default:
		return fmt.Errorf("PENDING_STORE_DRIVER must be empty or redis, got %q", s.PendingDriver)
	}
	if s.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !validEventBackends[c.Events.Backend] {
		return fmt.Errorf("EVENTS_BACKEND must be one of none, gochannel, nats; got %q", c.Events.Backend)
	}
	if c.Events.Backend == "nats" && c.Events.NATSURL == "" {
		return fmt.Errorf("NATS_URL is required for the nats events backend")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.Concurrency < 1 {
		return fmt.Errorf("REFRESH_CONCURRENCY must be at least 1")
	}
	if c.Scheduler.RatePerSecond < 0 {
		return fmt.Errorf("REFRESH_RATE_PER_SECOND must not be negative")
	}
	if c.Scheduler.PendingReapInterval <= 0 {
		return fmt.Errorf("PENDING_REAP_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that raw is an absolute http(s) URL.
func validateHTTPURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
