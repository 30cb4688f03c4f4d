// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package middleware

import (
	"bufio"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/syncplayer/internal/logging"
)

// quietPrefixes are request paths logged at debug instead of info. Asset
// and scrape traffic would otherwise drown the lines an operator actually
// reads.
var quietPrefixes = []string{
	"/metrics",
	"/media/",
	"/thumbnails/",
	"/static/",
	"/favicon",
}

// AccessLog emits one structured log line per completed request. The
// request ID middleware runs first, so the line carries the same
// request_id as everything the handler logged.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &accessLogResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapper, r)

		event := logging.Info()
		if quietPath(r.URL.Path) {
			event = logging.Debug()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Str("request_id", GetRequestID(r.Context())).
			Msg("HTTP request")
	})
}

func quietPath(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

type accessLogResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *accessLogResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack passes through so WebSocket upgrades work behind this middleware.
func (rw *accessLogResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func (rw *accessLogResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
