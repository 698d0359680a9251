// Package http is the HTTP/JSON transport of memstored.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/IvanBrykalov/memstore/internal/store"
)

// Options configures the router.
type Options struct {
	Logger *slog.Logger
	// MaxRequestBytes bounds request bodies; 0 means 1 MiB.
	MaxRequestBytes int64
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
	// Draining makes /health answer 503 while it returns true.
	Draining func() bool
}

// NewRouter wires the store endpoints, health, stats and metrics.
func NewRouter(st *store.Store, opt Options) http.Handler {
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	if opt.MaxRequestBytes <= 0 {
		opt.MaxRequestBytes = 1 << 20
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware())
	r.Use(AccessLog(opt.Logger))
	r.Use(RecoverMiddleware(opt.Logger))
	r.Use(BodyLimit(opt.MaxRequestBytes))

	r.NotFound(HandlerFunc(func(http.ResponseWriter, *http.Request) error {
		return NotFound("no such route")
	}).ServeHTTP)
	r.MethodNotAllowed(HandlerFunc(func(http.ResponseWriter, *http.Request) error {
		return NewAppError(http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed", nil)
	}).ServeHTTP)

	r.Get("/health", healthHandler(opt.Draining))
	r.Method(http.MethodGet, "/v1/stats", statsHandler(st))
	if opt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opt.Metrics)
	}
	(&kvHandler{st: st}).mount(r)
	return r
}
