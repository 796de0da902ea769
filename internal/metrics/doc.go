// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

/*
Package metrics provides Prometheus metrics for Adlink.

All collectors are registered on the default registry with promauto and
exposed at /metrics.

# Available Metrics

HTTP Metrics:
  - api_requests_total: Total HTTP requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: In-flight requests (gauge)

OAuth Flow Metrics:
  - oauth_flow_total: Flow step outcomes (counter)
    Labels: platform, step, outcome
    Steps: initiate, callback, select_account, refresh, disconnect

Provider Metrics:
  - provider_requests_total: Calls to ad platform APIs (counter)
    Labels: platform, operation, outcome (success, invalid_grant, transient, provider_response)
  - provider_request_duration_seconds: Provider call latency (histogram)
    Labels: platform, operation

Circuit Breaker Metrics:
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge)
  - circuit_breaker_requests_total: Requests by result (counter)
  - circuit_breaker_state_transitions_total: State changes (counter)

Refresh Sweep Metrics:
  - refresh_sweep_total: Sweeps run (counter), labels platform, outcome
  - refresh_sweep_connections_total: Connections handled (counter), labels platform, result
  - refresh_sweep_duration_seconds: Sweep duration (histogram), label platform

Pending Selection Metrics:
  - pending_connections_reaped_total: Expired pending rows deleted (counter)

Event Metrics:
  - lifecycle_events_published_total: Published events (counter), labels event, result

# Usage

	start := time.Now()
	tokens, err := client.RefreshToken(ctx, grant)
	metrics.RecordProviderRequest("tiktok_ads", "refresh", outcome, time.Since(start))
*/
package metrics
