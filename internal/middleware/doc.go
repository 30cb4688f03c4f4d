// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

/*
Package middleware provides the HTTP middleware this server adds on top of
chi's stock stack.

Two components:

  - RequestID: UUID request tracking. Honors an upstream X-Request-ID,
    echoes it back, and binds a request-scoped zerolog logger into the
    context so handlers can log with logging.Ctx(r.Context()).

  - PrometheusMetrics: request instrumentation (count, duration, in-flight)
    labeled by method, matched chi route pattern, and status code.

Both are func(http.Handler) http.Handler, so they compose directly with
r.Use() alongside chi's RealIP and Recoverer. CORS and rate limiting come
from the chi ecosystem (go-chi/cors, go-chi/httprate) and are configured in
the api package rather than here.
*/
package middleware
