// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// OAuth Flow Metrics
	OAuthFlowTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_flow_total",
			Help: "OAuth flow step outcomes by platform",
		},
		[]string{"platform", "step", "outcome"},
	)

	// Provider Metrics
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total number of ad platform API calls",
		},
		[]string{"platform", "operation", "outcome"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Ad platform API call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"platform", "operation"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Refresh Sweep Metrics
	RefreshSweepTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_sweep_total",
			Help: "Total number of refresh sweeps",
		},
		[]string{"platform", "outcome"}, // outcome: "clean", "partial", "error"
	)

	RefreshSweepConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_sweep_connections_total",
			Help: "Connections handled by refresh sweeps",
		},
		[]string{"platform", "result"}, // result: "refreshed", "failed"
	)

	RefreshSweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refresh_sweep_duration_seconds",
			Help:    "Refresh sweep duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"platform"},
	)

	// Pending Selection Metrics
	PendingReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pending_connections_reaped_total",
			Help: "Expired pending connections deleted by the reaper",
		},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_events_published_total",
			Help: "Connection lifecycle events published",
		},
		[]string{"event", "result"}, // result: "success", "error"
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_events_consumed_total",
			Help: "Connection lifecycle events handled by in-process consumers",
		},
		[]string{"event", "result"}, // result: "success", "malformed"
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordOAuthFlow records the outcome of one orchestrator step.
func RecordOAuthFlow(platform, step, outcome string) {
	OAuthFlowTotal.WithLabelValues(platform, step, outcome).Inc()
}

// RecordProviderRequest records one call to an ad platform API.
func RecordProviderRequest(platform, operation, outcome string, duration time.Duration) {
	ProviderRequestsTotal.WithLabelValues(platform, operation, outcome).Inc()
	ProviderRequestDuration.WithLabelValues(platform, operation).Observe(duration.Seconds())
}

// RecordSweep records a finished refresh sweep.
func RecordSweep(platform string, refreshed, failed int, err error, duration time.Duration) {
	outcome := "clean"
	switch {
	case err != nil:
		outcome = "error"
	case failed > 0:
		outcome = "partial"
	}
	RefreshSweepTotal.WithLabelValues(platform, outcome).Inc()
	RefreshSweepConnections.WithLabelValues(platform, "refreshed").Add(float64(refreshed))
	RefreshSweepConnections.WithLabelValues(platform, "failed").Add(float64(failed))
	RefreshSweepDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordPendingReaped records expired pending rows removed by the reaper.
func RecordPendingReaped(n int) {
	if n > 0 {
		PendingReaped.Add(float64(n))
	}
}

// RecordEventPublished records a lifecycle event publish attempt.
func RecordEventPublished(event string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	EventsPublished.WithLabelValues(event, result).Inc()
}

// RecordEventConsumed records one message handled by an event consumer.
func RecordEventConsumed(event string, err error) {
	result := "success"
	if err != nil {
		result = "malformed"
	}
	EventsConsumed.WithLabelValues(event, result).Inc()
}
