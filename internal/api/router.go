// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/adlink/internal/middleware"
)

// Router wires the handlers into a chi route tree.
type Router struct {
	handler *Handler
	limits  *Limits
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, limits *Limits) *Router {
	return &Router{handler: handler, limits: limits}
}

// Setup returns the root HTTP handler.
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.limits.CORS()) // global so OPTIONS preflight is answered
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.SecurityHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})

	// ========================
	// Health, Metrics and API Docs
	// ========================
	r.Route("/health", func(r chi.Router) {
		r.Use(router.limits.RateLimitHealth())
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	// ========================
	// Connect Flow
	// ========================
	r.Route("/auth/{platform}", func(r chi.Router) {
		r.Use(router.limits.RateLimitAuth())

		// The callback authenticates itself so that every failure ends
		// in a dashboard redirect instead of a JSON 401.
		r.Get("/callback", h.Callback)

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)
			r.Get("/", h.Initiate)
			r.Delete("/", h.Disconnect)
			r.Get("/pending", h.GetPending)
			r.Post("/select-account", h.SelectAccount)
			r.Post("/refresh", h.Refresh)
		})
	})

	// ========================
	// Connections
	// ========================
	r.Group(func(r chi.Router) {
		r.Use(router.limits.RateLimit())
		r.Use(h.requireSession)
		r.Get("/connections", h.ListConnections)
	})

	// ========================
	// Scheduler Trigger
	// ========================
	r.Group(func(r chi.Router) {
		r.Use(router.limits.RateLimit())
		r.Get("/cron/{platform}-refresh", h.CronRefresh)
	})

	return r
}
