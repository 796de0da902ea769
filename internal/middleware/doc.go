// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

/*
Package middleware provides the infrastructure HTTP middleware shared by
every route.

All middleware has the chi signature func(http.Handler) http.Handler:

  - RequestID: assigns or propagates X-Request-ID and seeds the logging context
  - AccessLog: one zerolog line per request, without query strings
  - PrometheusMetrics: request count, latency and in-flight gauge keyed by route pattern
  - SecurityHeaders: nosniff, frame denial, referrer policy and HSTS on HTTPS

Typical order, outermost first:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.SecurityHeaders)

The metrics middleware reads the route pattern after the handler returns,
so it must run inside the chi router rather than wrapping it.
*/
package middleware
