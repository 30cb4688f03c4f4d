// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/syncplayer/internal/auth"
	"github.com/tomtom215/syncplayer/internal/config"
	"github.com/tomtom215/syncplayer/internal/middleware"
)

// Router assembles the HTTP surface from the handler set and middleware
// factories.
type Router struct {
	cfg           *config.Config
	handler       *Handler
	chiMiddleware *ChiMiddleware
	csrf          *auth.CSRF
}

// NewRouter creates a router. A nil chiMW selects the default middleware
// configuration.
func NewRouter(cfg *config.Config, handler *Handler, csrf *auth.CSRF, chiMW *ChiMiddleware) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{
		cfg:           cfg,
		handler:       handler,
		chiMiddleware: chiMW,
		csrf:          csrf,
	}
}

// Setup configures all HTTP routes using Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	// Applied to ALL routes in order
	r.Use(middleware.RequestID)    // X-Request-ID plus logging context
	r.Use(chimiddleware.RealIP)    // Extract real IP from X-Forwarded-For
	r.Use(middleware.AccessLog)    // One structured line per request
	r.Use(chimiddleware.Recoverer) // Recover from panics
	r.Use(router.chiMiddleware.CORS())
	r.Use(router.csrf.Protect) // Sessions on safe methods, token checks on the rest

	// ========================
	// Pages
	// ========================
	r.Get("/", router.handler.Landing)
	r.Get("/admin", router.handler.AdminPage)
	r.Get("/admin/{code}", router.handler.AdminPage)
	r.Get("/watch/{code}", router.handler.WatchPage)

	// ========================
	// JSON API
	// ========================
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitAPI))

		r.Get("/rooms", router.handler.Rooms)
		r.Get("/rooms/{code}", router.handler.RoomByCode)
		r.Get("/csrf-token", router.handler.CSRFToken)
		r.Get("/server-mode", router.handler.ServerMode)
		r.Get("/vpn-check", router.handler.VPNCheck)
		r.Get("/health", router.handler.Health)

		// Subprocess-backed endpoints carry their own tighter caps.
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitFiles)).
			Get("/files", router.handler.Files)
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitTracks)).
			Get("/tracks/{filename}", router.handler.Tracks)
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitThumbnail)).
			Get("/thumbnail/{filename}", router.handler.Thumbnail)
	})

	// ========================
	// WebSocket
	// ========================
	r.With(router.chiMiddleware.RateLimitCustom(RateLimitWebSocket)).
		Get("/ws", router.handler.WebSocket)

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Media & Static Files
	// ========================
	r.Get("/media/{filename}", router.handler.MediaFile)
	if router.handler.thumbnailer != nil {
		r.Handle("/thumbnails/*", http.StripPrefix("/thumbnails/",
			noDirListing(http.FileServer(http.Dir(router.handler.thumbnailer.Dir())))))
	}

	// Must be last - catches all unmatched routes
	r.Get("/*", router.handler.Static)

	return r
}

// noDirListing turns directory requests into 404s so the thumbnail cache
// cannot be browsed.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
