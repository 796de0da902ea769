// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package middleware

import (
	"bytes"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/metrics"
)

// ========================================
// RequestID
// ========================================

func TestRequestID_GeneratesNewID(t *testing.T) {
	var captured, correlation string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
		correlation = logging.CorrelationIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/connections", nil))

	responseID := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(responseID); err != nil {
		t.Errorf("response X-Request-ID %q is not a UUID: %v", responseID, err)
	}
	if captured != responseID {
		t.Errorf("context ID %q != response ID %q", captured, responseID)
	}
	if correlation == "" {
		t.Error("expected a correlation ID in context")
	}
}

func TestRequestID_Upstream(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"well formed", "edge-7f3a9c", true},
		{"control characters", "abc\ndef", false},
		{"spaces", "a b", false},
		{"too long", strings.Repeat("a", maxRequestIDLen+1), false},
		{"max length", strings.Repeat("a", maxRequestIDLen), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, tt.incoming)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got := captured == tt.incoming; got != tt.keep {
				t.Errorf("kept upstream ID = %v, want %v (got %q)", got, tt.keep, captured)
			}
			if captured == "" {
				t.Error("request ID missing")
			}
		})
	}
}

// ========================================
// PrometheusMetrics
// ========================================

func TestPrometheusMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/auth/{platform}/pending", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/auth/{platform}/pending", "410")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/meta_ads/pending?id=x", nil))
	if rec.Code != http.StatusGone {
		t.Fatalf("status = %d", rec.Code)
	}
	if delta := testutil.ToFloat64(counter) - before; delta != 1 {
		t.Errorf("counter delta = %v, want 1", delta)
	}
	if v := testutil.ToFloat64(metrics.APIActiveRequests); v != 0 {
		t.Errorf("active requests = %v after completion", v)
	}
}

func TestPrometheusMetrics_Unmatched(t *testing.T) {
	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "200")
	before := testutil.ToFloat64(counter)

	handler := PrometheusMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/whatever", nil))

	if delta := testutil.ToFloat64(counter) - before; delta != 1 {
		t.Errorf("counter delta = %v, want 1", delta)
	}
}

func TestStatusWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	_, _ = sw.Write([]byte("body"))
	sw.WriteHeader(http.StatusTeapot)
	if sw.status != http.StatusOK {
		t.Errorf("status = %d, want 200 after implicit header", sw.status)
	}
}

// ========================================
// AccessLog
// ========================================

func TestAccessLog_OmitsQuery(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(prev) })

	handler := RequestID(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/auth/google_ads/callback?code=secret-code&state=s", nil))

	out := buf.String()
	if !strings.Contains(out, `"status":400`) {
		t.Errorf("log missing status: %s", out)
	}
	if !strings.Contains(out, `"request_id"`) {
		t.Errorf("log missing request_id: %s", out)
	}
	if strings.Contains(out, "secret-code") {
		t.Errorf("log leaked query string: %s", out)
	}
}

// ========================================
// SecurityHeaders
// ========================================

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	t.Run("plain http", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Error("missing nosniff")
		}
		if rec.Header().Get("X-Frame-Options") != "DENY" {
			t.Error("missing frame options")
		}
		if rec.Header().Get("Strict-Transport-Security") != "" {
			t.Error("HSTS must not be sent over plain HTTP")
		}
	})

	t.Run("tls", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.TLS = &tls.ConnectionState{}
		handler.ServeHTTP(rec, req)
		if rec.Header().Get("Strict-Transport-Security") == "" {
			t.Error("missing HSTS over TLS")
		}
	})

	t.Run("forwarded https", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		handler.ServeHTTP(rec, req)
		if rec.Header().Get("Strict-Transport-Security") == "" {
			t.Error("missing HSTS behind TLS proxy")
		}
	})
}
