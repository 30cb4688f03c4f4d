// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package api

import (
	"net"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/websocket"
)

// getUpgrader builds the WebSocket upgrader with origin checking.
func (h *Handler) getUpgrader() gorillaws.Upgrader {
	return gorillaws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates the Origin header on upgrade requests.
// Requests without an Origin are allowed: scripted players Mpv and friends
// speak the same protocol as browsers but send no Origin header. Browser
// requests must match the allowed origins, where the LAN default is the
// wildcard.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().
		Str("origin", sanitizeLogValue(origin)).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket upgrade rejected: origin not allowed")
	return false
}

// WebSocket upgrades the connection and hands it to the hub. The connect
// hook runs after the client's pumps start so the greeting envelopes have a
// live write loop to land in.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "websocket unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn, remoteHost(r))
	h.hub.Register <- client
	client.Start()

	if h.onConnect != nil {
		h.onConnect.HandleConnect(client)
	}
}

// remoteHost strips the port from the request's remote address. The events
// layer keys its per-connection rate limiting on this.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
