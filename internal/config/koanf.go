// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/adlink/config.yaml",
	"/etc/adlink/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. File and environment layers
// override these.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			SessionCookieName: "session",
			EncryptionContext: "adlink-token-encryption-v1",
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			AuthRateLimitReqs: 20,
		},
		Providers: ProvidersConfig{
			Timeout:         10 * time.Second,
			RedirectBaseURL: "http://localhost:8080",
			Google: PlatformConfig{
				Scopes:     []string{"https://www.googleapis.com/auth/adwords"},
				AuthURL:    "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL:   "https://oauth2.googleapis.com/token",
				APIBaseURL: "https://googleads.googleapis.com",
				APIVersion: "v18",
				Lifecycle: LifecycleConfig{
					ConflictPolicy:       ConflictReject,
					NullExpiry:           NullExpiryRefreshImmediately,
					Lookahead:            30 * time.Minute,
					DefaultTokenLifetime: time.Hour,
					PendingTTL:           10 * time.Minute,
				},
			},
			Meta: PlatformConfig{
				Scopes:     []string{"ads_read", "ads_management", "business_management"},
				AuthURL:    "https://www.facebook.com/v21.0/dialog/oauth",
				TokenURL:   "https://graph.facebook.com/v21.0/oauth/access_token",
				APIBaseURL: "https://graph.facebook.com",
				APIVersion: "v21.0",
				Lifecycle: LifecycleConfig{
					ConflictPolicy:       ConflictUpdate,
					NullExpiry:           NullExpiryRefreshImmediately,
					Lookahead:            7 * 24 * time.Hour,
					DefaultTokenLifetime: 60 * 24 * time.Hour,
					PendingTTL:           10 * time.Minute,
				},
			},
			TikTok: PlatformConfig{
				AuthURL:    "https://business-api.tiktok.com/portal/auth",
				TokenURL:   "https://business-api.tiktok.com/open_api/v1.3/oauth2/access_token/",
				APIBaseURL: "https://business-api.tiktok.com/open_api",
				APIVersion: "v1.3",
				Lifecycle: LifecycleConfig{
					ConflictPolicy:       ConflictUpdate,
					NullExpiry:           NullExpiryRefreshImmediately,
					Lookahead:            6 * time.Hour,
					DefaultTokenLifetime: 24 * time.Hour,
					PendingTTL:           10 * time.Minute,
				},
			},
		},
		Store: StoreConfig{
			Driver:       "memory",
			DuckDBPath:   "/data/adlink.duckdb",
			BadgerPath:   "/data/adlink-badger",
			MaxOpenConns: 10,
			RedisPrefix:  "adlink",
		},
		Events: EventsConfig{
			Backend:     "none",
			NATSURL:     "nats://127.0.0.1:4222",
			TopicPrefix: "adlink",
		},
		Scheduler: SchedulerConfig{
			Concurrency:         4,
			RatePerSecond:       5,
			PendingReapInterval: 5 * time.Minute,
		},
		Redirects: RedirectConfig{
			DashboardURL:     "http://localhost:3000/dashboard",
			SelectAccountURL: "http://localhost:3000/connect/select-account",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration using a layered approach:
//  1. Defaults
//  2. Config file (optional)
//  3. Environment variables
//
// The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// GOOGLE_ADS_CLIENT_ID -> providers.google_ads.client_id
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when set from env.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"providers.google_ads.scopes",
	"providers.meta_ads.scopes",
	"providers.tiktok_ads.scopes",
}

// processSliceFields converts comma-separated strings to slices for the
// known slice paths. YAML lists are left untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":        "server.host",
	"http_port":        "server.port",
	"http_timeout":     "server.write_timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",
	"app_env":          "server.environment",

	// Security
	"session_secret":           "security.session_secret",
	"session_cookie_name":      "security.session_cookie_name",
	"token_encryption_key":     "security.encryption_key",
	"token_encryption_context": "security.encryption_context",
	"cron_secret":              "security.cron_secret",
	"cors_origins":             "security.cors_origins",
	"rate_limit_requests":      "security.rate_limit_requests",
	"rate_limit_window":        "security.rate_limit_window",
	"auth_rate_limit_requests": "security.auth_rate_limit_requests",
	"disable_rate_limit":       "security.rate_limit_disabled",

	// Providers
	"provider_timeout":        "providers.timeout",
	"oauth_redirect_base_url": "providers.redirect_base_url",

	"google_ads_enabled":           "providers.google_ads.enabled",
	"google_ads_client_id":         "providers.google_ads.client_id",
	"google_ads_client_secret":     "providers.google_ads.client_secret",
	"google_ads_developer_token":   "providers.google_ads.developer_token",
	"google_ads_scopes":            "providers.google_ads.scopes",
	"google_ads_api_version":       "providers.google_ads.api_version",
	"google_ads_conflict_policy":   "providers.google_ads.lifecycle.conflict_policy",
	"google_ads_null_expiry":       "providers.google_ads.lifecycle.null_expiry",
	"google_ads_refresh_lookahead": "providers.google_ads.lifecycle.lookahead",

	"meta_ads_enabled":           "providers.meta_ads.enabled",
	"meta_ads_client_id":         "providers.meta_ads.client_id",
	"meta_ads_client_secret":     "providers.meta_ads.client_secret",
	"meta_ads_scopes":            "providers.meta_ads.scopes",
	"meta_ads_api_version":       "providers.meta_ads.api_version",
	"meta_ads_conflict_policy":   "providers.meta_ads.lifecycle.conflict_policy",
	"meta_ads_null_expiry":       "providers.meta_ads.lifecycle.null_expiry",
	"meta_ads_refresh_lookahead": "providers.meta_ads.lifecycle.lookahead",

	"tiktok_ads_enabled":           "providers.tiktok_ads.enabled",
	"tiktok_ads_client_id":         "providers.tiktok_ads.client_id",
	"tiktok_ads_client_secret":     "providers.tiktok_ads.client_secret",
	"tiktok_ads_scopes":            "providers.tiktok_ads.scopes",
	"tiktok_ads_api_version":       "providers.tiktok_ads.api_version",
	"tiktok_ads_conflict_policy":   "providers.tiktok_ads.lifecycle.conflict_policy",
	"tiktok_ads_null_expiry":       "providers.tiktok_ads.lifecycle.null_expiry",
	"tiktok_ads_refresh_lookahead": "providers.tiktok_ads.lifecycle.lookahead",

	// Store
	"store_driver":         "store.driver",
	"database_url":         "store.dsn",
	"duckdb_path":          "store.duckdb_path",
	"badger_path":          "store.badger_path",
	"db_max_open_conns":    "store.max_open_conns",
	"pending_store_driver": "store.pending_driver",
	"redis_url":            "store.redis_url",
	"redis_prefix":         "store.redis_prefix",

	// Events
	"events_backend":      "events.backend",
	"nats_url":            "events.nats_url",
	"events_topic_prefix": "events.topic_prefix",

	// Scheduler
	"refresh_concurrency":     "scheduler.concurrency",
	"refresh_rate_per_second": "scheduler.rate_per_second",
	"pending_reap_interval":   "scheduler.pending_reap_interval",

	// Redirects
	"dashboard_url":      "redirects.dashboard_url",
	"select_account_url": "redirects.select_account_url",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped, so unrelated environment
// does not leak into configuration.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - TOKEN_ENCRYPTION_KEY -> security.encryption_key
//   - TIKTOK_ADS_CLIENT_SECRET -> providers.tiktok_ads.client_secret
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
