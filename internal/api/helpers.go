// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/models"
)

// sanitizeLogValue removes control characters from user-supplied values
// before they reach the log, preventing log injection via crafted filenames
// or room codes.
func sanitizeLogValue(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r < 32 || r == 127 {
			b.WriteString(fmt.Sprintf("\\x%02x", r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// respondJSON writes v as a JSON response. API payloads are live playback
// state (rooms, viewer counts, clock positions), so intermediaries must not
// cache them.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError writes the standard error envelope. The message is what the
// client sees; err, when present, is only logged.
func respondError(w http.ResponseWriter, status int, message string, err error) {
	event := logging.Warn().
		Int("status", status).
		Str("message", sanitizeLogValue(message))
	if err != nil {
		event = event.Err(err)
	}
	event.Msg("API error response")

	respondJSON(w, status, models.APIError{Error: message})
}
