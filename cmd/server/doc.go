// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

/*
Command server runs adlink, the service that connects advertiser accounts on
Google Ads, Meta Ads and TikTok Ads through OAuth and keeps their tokens
fresh.

# Startup

Components are built in this order:

 1. Configuration: Koanf v2 (defaults, optional YAML file, mapped environment)
 2. Logging: zerolog, JSON or console
 3. Secret codec: AES-256-GCM with an HKDF-derived key
 4. Connection store: memory, postgres, duckdb or badger, with optional
    redis for pending selections
 5. Provider clients: one circuit-breaker wrapped client per enabled platform
 6. Events: none, gochannel or nats
 7. Orchestrator, refresh sweeper and pending reaper
 8. Router: chi with request ID, access log, CORS, rate limits, metrics
 9. Supervisor tree: suture v4

The tree is:

	RootSupervisor ("adlink")
	├── DataSupervisor ("data-layer")
	│   └── pending-reaper
	├── MessagingSupervisor ("messaging-layer")
	│   └── event-audit (EVENTS_BACKEND=gochannel)
	└── APISupervisor ("api-layer")
	    └── http-server

# Configuration

Required:

	SESSION_SECRET=<HS256 secret shared with the dashboard>
	TOKEN_ENCRYPTION_KEY=<base64, 16+ bytes; see -genkey>

Common:

	HTTP_PORT=8080
	ENVIRONMENT=production          # secure cookies, CRON_SECRET mandatory
	CRON_SECRET=<bearer secret for /cron/*>
	OAUTH_REDIRECT_BASE_URL=https://connect.example.com
	DASHBOARD_URL=https://app.example.com/integrations
	SELECT_ACCOUNT_URL=https://app.example.com/integrations/select

	GOOGLE_ADS_ENABLED=true
	GOOGLE_ADS_CLIENT_ID=...
	GOOGLE_ADS_CLIENT_SECRET=...
	GOOGLE_ADS_DEVELOPER_TOKEN=...

	STORE_DRIVER=postgres
	DATABASE_URL=postgres://adlink@db/adlink?sslmode=require
	EVENTS_BACKEND=nats
	NATS_URL=nats://nats:4222

Generate an encryption key with:

	server -genkey

# API Documentation

Swagger documentation is served at /swagger/index.html. The spec in docs/ is
generated from the handler annotations with:

	swag init -g cmd/server/docs.go -o docs

# Signal Handling

SIGINT and SIGTERM cancel the tree. The HTTP server drains for up to
SHUTDOWN_TIMEOUT, the reaper stops, then the publisher and store are
closed. Services that miss the deadline are logged by name.
*/
package main
