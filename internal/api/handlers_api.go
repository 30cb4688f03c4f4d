// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/syncplayer/internal/media"
	"github.com/tomtom215/syncplayer/internal/models"
	"github.com/tomtom215/syncplayer/internal/room"
	"github.com/tomtom215/syncplayer/internal/validation"
)

// Rooms lists public rooms for the lobby. Private rooms and the legacy
// single-room never appear; those are reachable only by code.
func (h *Handler) Rooms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.registry.ListPublic())
}

// RoomByCode returns one room's lobby summary. Private rooms 404 just like
// unknown codes so the endpoint cannot be used to sweep the code space for
// rooms that chose not to be listed.
func (h *Handler) RoomByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !validation.ValidRoomCode(code) {
		respondError(w, http.StatusNotFound, "room not found", nil)
		return
	}

	rm, ok := h.registry.Get(code)
	if !ok || rm.Private() || rm.Code() == room.LegacyCode {
		respondError(w, http.StatusNotFound, "room not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, rm.Summary())
}

// Files lists playable media files, served from the library's short-lived
// cache so playlist builders polling the picker do not rescan the directory.
func (h *Handler) Files(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.library.Files())
}

// Tracks probes one file for its embedded audio and subtitle streams. Bad
// names are rejected before anything touches the filesystem; probe failures
// degrade to empty track lists rather than an error, because the file still
// plays without a track menu.
func (h *Handler) Tracks(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid filename", err)
		return
	}

	if _, err := h.prober.Resolve(name); err != nil {
		h.respondMediaError(w, name, err)
		return
	}

	ctx := r.Context()
	tracks := h.prober.Tracks(ctx, name)
	respondJSON(w, http.StatusOK, models.TracksResponse{
		Filename:  name,
		Audio:     tracks.Audio,
		Subtitles: tracks.Subtitles,
		UsesHEVC:  h.prober.UsesHEVC(ctx, name),
		Duration:  h.prober.Duration(ctx, name),
	})
}

// Thumbnail returns the cached preview image path for one file, generating
// it on first request. Extraction failures degrade to a null thumbnail; the
// picker falls back to its placeholder tile.
func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid filename", err)
		return
	}

	publicPath, isAudio, err := h.thumbnailer.Thumbnail(r.Context(), name)
	if err != nil {
		if errors.Is(err, media.ErrInvalidFilename) || errors.Is(err, media.ErrUnknownFile) {
			h.respondMediaError(w, name, err)
			return
		}
		// Generation failed. The file exists, so answer with no preview.
		respondJSON(w, http.StatusOK, models.ThumbnailResponse{Thumbnail: nil, IsAudio: isAudio})
		return
	}

	respondJSON(w, http.StatusOK, models.ThumbnailResponse{Thumbnail: &publicPath, IsAudio: isAudio})
}

// respondMediaError maps the media package's sentinel errors onto statuses.
func (h *Handler) respondMediaError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, media.ErrInvalidFilename):
		respondError(w, http.StatusBadRequest, "invalid filename", err)
	case errors.Is(err, media.ErrUnknownFile):
		respondError(w, http.StatusNotFound, "file not found", err)
	default:
		respondError(w, http.StatusInternalServerError, "media lookup failed", err)
	}
}

// CSRFToken hands the page its session's token. The session cookie rides
// along on the response when the request arrived without one.
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token := h.csrf.Token(w, r)
	if token == "" {
		respondError(w, http.StatusInternalServerError, "could not issue token", nil)
		return
	}
	respondJSON(w, http.StatusOK, models.CSRFTokenResponse{CSRFToken: token})
}

// ServerMode tells the page which mode the server runs in before the socket
// is up, so it can route to the lobby or straight into the single room.
func (h *Handler) ServerMode(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.ServerModeResponse{
		ServerMode:    h.cfg.ServerMode,
		ChatEnabled:   h.cfg.ChatEnabled,
		DataHydration: h.cfg.DataHydration,
	})
}

// VPNCheck reports tunnel interfaces and candidate LAN URLs so the admin
// page can surface share links that other devices can actually reach.
func (h *Handler) VPNCheck(w http.ResponseWriter, r *http.Request) {
	if h.environment == nil {
		respondJSON(w, http.StatusOK, &models.VPNCheckResponse{LanURLs: []string{}})
		return
	}
	respondJSON(w, http.StatusOK, h.environment.Check())
}

// Health is the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:  "ok",
		Uptime:  int64(time.Since(h.startedAt).Seconds()),
		Rooms:   h.registry.Len(),
		Clients: h.hub.GetClientCount(),
	})
}

// MediaFile streams one media file for server-mode playback. Names pass the
// same validation as the probe endpoints, which also confines serving to
// the flat media directory. ServeFile handles Range requests, which video
// seeking depends on.
func (h *Handler) MediaFile(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid filename", err)
		return
	}

	path, err := h.prober.Resolve(name)
	if err != nil {
		h.respondMediaError(w, name, err)
		return
	}

	http.ServeFile(w, r, path)
}
