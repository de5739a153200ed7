// Package api is the HTTP shell: routing, bearer-token verification, and
// JSON encoding around the civic broker.
package api

import (
	"net/http"
	"time"

	"github.com/civicmesh/civic-broker/pkg/health"
	"github.com/civicmesh/civic-broker/pkg/metrics"
	"github.com/civicmesh/civic-broker/pkg/middleware"
)

// RouterConfig carries the cross-cutting pieces the router mounts around the
// handlers.
type RouterConfig struct {
	Auth           *Auth
	Metrics        *metrics.Metrics
	Health         *health.Checker
	ImagesDir      string
	RequestTimeout time.Duration
}

// NewRouter builds the HTTP routing table.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", cfg.Health.LiveHandler())
	mux.HandleFunc("GET /health/ready", cfg.Health.ReadyHandler())
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	mux.HandleFunc("POST /api/v1/ingest", h.handleIngest)
	mux.HandleFunc("GET /api/v1/politicians/{id}", h.handlePolitician)
	mux.HandleFunc("GET /api/v1/politicians/{id}/ratings", h.handleGetRatings)
	mux.HandleFunc("POST /api/v1/politicians/{id}/ratings", h.handleRate)
	mux.HandleFunc("GET /api/v1/profile", h.handleProfileInfo)
	mux.HandleFunc("POST /api/v1/profile", h.handleProfileUpdate)
	// Legacy client route names.
	mux.HandleFunc("POST /api/v1/dinfo", h.handleProfileInfo)
	mux.HandleFunc("POST /api/v1/dprofile", h.handleProfileUpdate)
	mux.HandleFunc("GET /api/v1/search", h.handleSearch)
	mux.HandleFunc("GET /api/v1/representatives", h.handleRepresentatives)

	if cfg.ImagesDir != "" {
		mux.Handle("GET /images/", http.StripPrefix("/images/", http.FileServer(http.Dir(cfg.ImagesDir))))
	}

	var handler http.Handler = mux
	handler = cfg.Auth.Middleware(handler)
	if cfg.RequestTimeout > 0 {
		handler = middleware.Timeout(cfg.RequestTimeout)(handler)
	}
	if cfg.Metrics != nil {
		handler = middleware.Metrics(cfg.Metrics)(handler)
	}
	handler = middleware.RequestID(handler)
	return handler
}
