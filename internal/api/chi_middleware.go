// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package api

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSExposedHeaders   []string
	CORSAllowCredentials bool
	CORSMaxAge           int // seconds

	// Rate limiting configuration
	RateLimitDisabled bool
}

// DefaultChiMiddlewareConfig returns the defaults for a LAN deployment.
// The server fronts a living-room network, not the open internet, so CORS
// allows any origin; viewers reach the server by whatever IP or hostname
// their device happens to use. Deployments exposed beyond the LAN should
// set explicit origins.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins:   []string{"*"},
		CORSAllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders:   []string{"Content-Type", "x-csrf-token"},
		CORSExposedHeaders:   []string{},
		CORSAllowCredentials: false,
		CORSMaxAge:           86400, // 24 hours

		RateLimitDisabled: false,
	}
}

// ChiMiddleware provides Chi-compatible middleware factories built on the
// production-hardened Chi ecosystem implementations.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates a new Chi middleware factory with the given
// configuration. A nil config selects the defaults.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   config.CORSAllowedMethods,
		AllowedHeaders:   config.CORSAllowedHeaders,
		ExposedHeaders:   config.CORSExposedHeaders,
		AllowCredentials: config.CORSAllowCredentials,
		MaxAge:           config.CORSMaxAge,
	})

	return &ChiMiddleware{
		config: config,
		cors:   corsHandler,
	}
}

// CORS returns a Chi-compatible CORS middleware using go-chi/cors.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitConfig defines rate limit parameters for specific endpoints.
type RateLimitConfig struct {
	// Requests is the number of requests allowed in the window
	Requests int
	// Window is the time window for rate limiting
	Window time.Duration
}

// Endpoint-specific rate limits, tuned to how the pages actually call each
// endpoint. Media probing and thumbnail extraction spawn subprocesses, so
// those caps track how fast one viewer can plausibly browse, not how fast
// a script can hammer ffprobe.
var (
	// RateLimitFiles covers the media listing (one call per browse, cached
	// server-side for 20 seconds anyway).
	RateLimitFiles = RateLimitConfig{Requests: 35, Window: time.Minute}

	// RateLimitTracks covers per-file probes while building a playlist.
	RateLimitTracks = RateLimitConfig{Requests: 60, Window: time.Minute}

	// RateLimitThumbnail covers thumbnail extraction (ffmpeg per miss).
	RateLimitThumbnail = RateLimitConfig{Requests: 50, Window: time.Minute}

	// RateLimitWebSocket caps upgrade attempts per client.
	RateLimitWebSocket = RateLimitConfig{Requests: 30, Window: time.Minute}

	// RateLimitAPI is the default for the remaining API endpoints.
	RateLimitAPI = RateLimitConfig{Requests: 100, Window: time.Minute}
)

// RateLimitCustom returns an IP-keyed rate limiter for one endpoint class.
// Loopback clients bypass the limiter entirely: the admin running the
// server on their own machine must never get throttled off it, and probe
// scripts on the host box are the operator's own business.
func (m *ChiMiddleware) RateLimitCustom(config RateLimitConfig) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limit := httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimitExceeded),
	)

	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isLoopbackRequest(r) {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

// rateLimitExceeded writes the 429 in the same JSON envelope as every other
// API error so clients parse one shape.
func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
}

// isLoopbackRequest reports whether the request originates from the host
// itself. RealIP middleware runs first, so behind a proxy this checks the
// forwarded client address, not the proxy's.
func isLoopbackRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
