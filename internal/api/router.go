// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig tunes the router middleware.
type RouterConfig struct {
	// RateLimitRequests per RateLimitWindow per client IP; 0 disables.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Router builds the HTTP routing table.
type Router struct {
	handler *Handler
	config  RouterConfig
}

// NewRouter creates a Router serving handler.
func NewRouter(handler *Handler, config RouterConfig) *Router {
	return &Router{handler: handler, config: config}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(Metrics())
	r.Use(AccessLog())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/v1/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(router.config.RateLimitRequests, router.config.RateLimitWindow))
		r.Use(APISecurityHeaders())

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", router.handler.ListBackups)
			r.Post("/", router.handler.CreateBackup)
			r.Get("/history", router.handler.History)
			r.Delete("/{id}", router.handler.DeleteBackup)
			r.Post("/{id}/export", router.handler.ExportBackup)
			r.Post("/{id}/restore", router.handler.RestoreBackup)
			r.Post("/{id}/verify", router.handler.VerifyBackup)
		})

		r.Get("/restore/auto", router.handler.AutoRestore)
		r.Get("/config", router.handler.GetConfig)

		r.Route("/schedule", func(r chi.Router) {
			r.Get("/", router.handler.ScheduleStatus)
			r.Put("/", router.handler.Schedule)
			r.Delete("/", router.handler.StopSchedule)
			r.Post("/trigger", router.handler.TriggerSchedule)
		})

		r.Route("/cloud/{provider}", func(r chi.Router) {
			r.Put("/credentials", router.handler.SaveCredentials)
			r.Delete("/credentials", router.handler.RemoveCredentials)
			r.Post("/test", router.handler.TestConnection)
			r.Get("/backups", router.handler.CloudBackups)
		})
	})

	return r
}
