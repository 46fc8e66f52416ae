// Package main provides the API router setup.
package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/docprep/cmd/docprep-api/handlers"
	"github.com/spherical/docprep/cmd/docprep-api/middleware"
	"github.com/spherical/docprep/internal/observability"
)

// AppConfig holds the settings the router needs.
type AppConfig struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg AppConfig, service handlers.Invoker) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	h := handlers.NewInvocationsHandler(logger, service, cfg.MaxBodyBytes)
	r.Get("/ping", h.Ping)
	r.Post("/invocations", h.Invoke)

	return r
}
