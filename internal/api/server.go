// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package api

import (
	"net/http"
	"os"
	"time"

	"github.com/tomtom215/syncplayer/internal/config"
	"github.com/tomtom215/syncplayer/internal/logging"
)

// NewServer builds the HTTP server for the assembled router. WriteTimeout
// stays unset: WebSocket connections live for the whole viewing session and
// a write deadline on the outer server would sever them mid-movie. The
// write side of each socket enforces its own per-message deadline instead.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// TLSServer adapts an http.Server so TLS serving goes through the plain
// ListenAndServe entry point the supervisor's service wrapper calls.
type TLSServer struct {
	*http.Server
	CertFile string
	KeyFile  string
}

// ListenAndServe serves TLS with the configured certificate pair.
func (s *TLSServer) ListenAndServe() error {
	return s.Server.ListenAndServeTLS(s.CertFile, s.KeyFile)
}

// TLSUsable reports whether HTTPS is both requested and possible. When
// use_https is set but either file is missing the server must still come
// up, just without TLS; a LAN movie night beats a strict refusal to boot.
func TLSUsable(cfg *config.Config) bool {
	if !cfg.UseHTTPS {
		return false
	}
	for _, file := range []string{cfg.HTTPSCertFile, cfg.HTTPSKeyFile} {
		if _, err := os.Stat(file); err != nil {
			logging.Warn().
				Str("file", file).
				Msg("HTTPS requested but certificate file missing, falling back to HTTP")
			return false
		}
	}
	return true
}
