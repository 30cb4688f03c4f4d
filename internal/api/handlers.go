// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package api

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/syncplayer/internal/auth"
	"github.com/tomtom215/syncplayer/internal/config"
	"github.com/tomtom215/syncplayer/internal/events"
	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/media"
	"github.com/tomtom215/syncplayer/internal/models"
	"github.com/tomtom215/syncplayer/internal/room"
	"github.com/tomtom215/syncplayer/internal/validation"
	"github.com/tomtom215/syncplayer/internal/vpn"
	"github.com/tomtom215/syncplayer/internal/websocket"
)

// Page files served out of the static directory. index.html doubles as the
// lobby in server mode; watch.html is the viewer page either way.
const (
	pageIndex    = "index.html"
	pageWatch    = "watch.html"
	pageAdmin    = "admin.html"
	pageNotFound = "404.html"
)

// hydrationPlaceholder is the assignment the admin page ships with. When
// data hydration is on, the server swaps the null for the real initial
// state so the page renders without waiting for the socket round-trip.
const hydrationPlaceholder = "window.__SYNC_STATE__ = null"

// ConnectHandler is notified after a WebSocket connection registers with
// the hub. The events router uses this to greet the connection and route
// it into a room.
type ConnectHandler interface {
	HandleConnect(c *websocket.Client)
}

// Deps carries everything the HTTP handlers touch. All fields except
// OnConnect and Environment are required.
type Deps struct {
	Config      *config.Config
	Registry    *room.Registry
	Hub         *websocket.Hub
	OnConnect   ConnectHandler
	Library     *media.Library
	Prober      *media.Prober
	Thumbnailer *media.Thumbnailer
	Environment *vpn.Environment
	CSRF        *auth.CSRF
}

// Handler implements the HTTP surface: pages, the JSON API, static files
// and the WebSocket upgrade.
type Handler struct {
	cfg         *config.Config
	registry    *room.Registry
	hub         *websocket.Hub
	onConnect   ConnectHandler
	library     *media.Library
	prober      *media.Prober
	thumbnailer *media.Thumbnailer
	environment *vpn.Environment
	csrf        *auth.CSRF
	startedAt   time.Time

	// allowedOrigins gates WebSocket upgrades; shared with the CORS config.
	allowedOrigins []string
}

// NewHandler creates the HTTP handler set.
func NewHandler(d Deps) *Handler {
	return &Handler{
		cfg:            d.Config,
		registry:       d.Registry,
		hub:            d.Hub,
		onConnect:      d.OnConnect,
		library:        d.Library,
		prober:         d.Prober,
		thumbnailer:    d.Thumbnailer,
		environment:    d.Environment,
		csrf:           d.CSRF,
		startedAt:      time.Now(),
		allowedOrigins: []string{"*"},
	}
}

// WithAllowedOrigins overrides the origins accepted for WebSocket upgrades.
func (h *Handler) WithAllowedOrigins(origins []string) *Handler {
	h.allowedOrigins = origins
	return h
}

// ============================================================================
// Pages
// ============================================================================

// Landing serves the entry page: the lobby in server mode, the viewer page
// in single-room mode where there is nothing to pick.
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	if h.cfg.ServerMode {
		h.servePage(w, r, pageIndex, http.StatusOK)
		return
	}
	h.servePage(w, r, pageWatch, http.StatusOK)
}

// AdminPage serves the admin console. With a room code in the path it is
// pinned to that room; bare /admin serves the legacy room in single-room
// mode and an unpinned console in server mode. When data hydration is
// enabled the page's state placeholder is replaced with the room's actual
// initial state.
func (h *Handler) AdminPage(w http.ResponseWriter, r *http.Request) {
	var rm *room.Room

	code := chi.URLParam(r, "code")
	switch {
	case code != "":
		if !validation.ValidRoomCode(code) {
			h.servePage(w, r, pageNotFound, http.StatusNotFound)
			return
		}
		var ok bool
		rm, ok = h.registry.Get(code)
		if !ok {
			h.servePage(w, r, pageNotFound, http.StatusNotFound)
			return
		}
	case !h.cfg.ServerMode:
		rm, _ = h.registry.Legacy()
	}

	page, err := h.readPage(pageAdmin)
	if err != nil {
		logging.Error().Err(err).Str("page", pageAdmin).Msg("Failed to read page")
		respondError(w, http.StatusInternalServerError, "page unavailable", err)
		return
	}

	if h.cfg.DataHydration {
		page = h.hydrate(page, rm)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(page); err != nil {
		logging.Debug().Err(err).Msg("Failed to write page")
	}
}

// WatchPage serves the viewer page for /watch/{code}. Unknown or malformed
// codes get the 404 page so a mistyped link fails visibly instead of
// presenting a player that will never sync.
func (h *Handler) WatchPage(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !validation.ValidRoomCode(code) {
		h.servePage(w, r, pageNotFound, http.StatusNotFound)
		return
	}
	if _, ok := h.registry.Get(code); !ok {
		h.servePage(w, r, pageNotFound, http.StatusNotFound)
		return
	}
	h.servePage(w, r, pageWatch, http.StatusOK)
}

// hydrate replaces the page's state placeholder with the room's current
// initial state, mirroring what the request_initial_state event would
// deliver. goccy/go-json escapes HTML metacharacters by default, so the
// embedded JSON is safe inside a script tag.
func (h *Handler) hydrate(page []byte, rm *room.Room) []byte {
	state := models.InitialStatePayload{Config: events.ClientConfigFor(h.cfg)}

	if rm != nil {
		state.Playlist = rm.Playlist()
		state.Playback = rm.Snapshot()
		state.BSL = rm.BSLStatus(h.cfg.BSLMode)
		state.Viewers = rm.Viewers()
		if !h.registry.SingleRoom() {
			state.RoomCode = rm.Code()
			state.RoomName = rm.Name()
		}
	} else {
		state.Playlist = models.NewPlaylist()
	}

	data, err := json.Marshal(state)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal hydration state")
		return page
	}

	replacement := append([]byte("window.__SYNC_STATE__ = "), data...)
	return bytes.Replace(page, []byte(hydrationPlaceholder), replacement, 1)
}

// ============================================================================
// Static files
// ============================================================================

// Static serves files from the static directory for any path no route
// claimed. Unknown paths get the 404 page rather than a bare status so a
// fat-fingered URL still lands somewhere navigable.
func (h *Handler) Static(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(filepath.Clean("/"+r.URL.Path), "/")
	if name == "" || name == "." {
		h.Landing(w, r)
		return
	}

	path := filepath.Join(h.cfg.StaticDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		h.servePage(w, r, pageNotFound, http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, path)
}

// servePage serves one of the named page files with the given status.
func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, name string, status int) {
	page, err := h.readPage(name)
	if err != nil {
		logging.Error().Err(err).Str("page", name).Msg("Failed to read page")
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(page); err != nil {
		logging.Debug().Err(err).Msg("Failed to write page")
	}
}

func (h *Handler) readPage(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(h.cfg.StaticDir, name))
}
