// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

/*
Package api serves the connection lifecycle over HTTP using the chi router.

Routes, repeated for google_ads, meta_ads and tiktok_ads:

	GET    /auth/{platform}                  start the connect flow (302 to the provider)
	GET    /auth/{platform}/callback         provider redirect target (302 to the dashboard)
	GET    /auth/{platform}/pending?id=      candidate accounts of a pending selection
	POST   /auth/{platform}/select-account   finalize a selection
	POST   /auth/{platform}/refresh          refresh one connection
	DELETE /auth/{platform}?connectionId=    disconnect
	GET    /cron/{platform}-refresh          refresh sweep, bearer cron secret

plus GET /connections, /health/live, /health/ready and /metrics.

Every route except the callback, health, metrics and cron endpoints needs a
session token (see package auth). Failures use one envelope:

	{"error": {"code": "pending_expired", "message": "...", "request_id": "..."}}

with "needsReauth": true added when the connection must be reconnected.
Orchestrator error kinds map to statuses in a single table (kindStatus).

The callback never answers with JSON: success, pending selection and every
failure are redirects to the configured dashboard pages, and the
single-use state cookie is cleared before the provider is contacted.
*/
package api
