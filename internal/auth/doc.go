// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

// Package auth resolves the dashboard user behind an API request.
//
// Sessions are HS256 JWTs signed with the shared session secret. A token
// is read from the Authorization bearer header first and the session
// cookie second; its "sub" claim is the user ID every connection is
// scoped to. Tokens signed with any other algorithm are rejected.
package auth
