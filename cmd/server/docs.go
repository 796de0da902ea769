// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

// Package main provides the adlink HTTP server
//
// @title Adlink API
// @version 1.0
// @description Connects Google Ads, Meta Ads and TikTok Ads accounts through OAuth and keeps their tokens fresh.
// @description
// @description ## Authentication
// @description
// @description Dashboard endpoints require an HS256 session JWT, sent as `Authorization: Bearer <token>`
// @description or in the session cookie. `/cron/*` endpoints require the cron secret as a bearer token.
// @description
// @description ## Error Responses
// @description
// @description All error responses follow this format:
// @description ```json
// @description {
// @description   "error": {
// @description     "code": "reauth_required",
// @description     "message": "Google Ads access expired; please reconnect the account",
// @description     "request_id": "6f1c2a9e-0d55-4c1b-9f43-2b8d7e1a0c44"
// @description   },
// @description   "needsReauth": true
// @description }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/adlink/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:8080
// @BasePath /
// @schemes http https
//
// @securityDefinitions.apikey SessionAuth
// @in header
// @name Authorization
// @description Dashboard session JWT as "Bearer <token>". The session cookie is accepted as well.
//
// @securityDefinitions.apikey CronAuth
// @in header
// @name Authorization
// @description Cron secret as "Bearer <secret>".
//
// @tag.name Connect
// @tag.description OAuth connect flow: consent redirect, callback and account selection
//
// @tag.name Connections
// @tag.description Listing, refreshing and disconnecting connected ad accounts
//
// @tag.name Scheduler
// @tag.description Refresh sweep trigger for an external scheduler
//
// @tag.name Health
// @tag.description Liveness and readiness probes
package main
