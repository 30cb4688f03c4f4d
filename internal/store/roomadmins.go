// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"

	"github.com/tomtom215/syncplayer/internal/logging"
)

// RoomAdminsFileName is the per-room admin table inside data_dir.
const RoomAdminsFileName = "roomAdmins.json"

// roomAdminEntry is one row of roomAdmins.json.
type roomAdminEntry struct {
	Fingerprint string    `json:"fingerprint"`
	SavedAt     time.Time `json:"savedAt"`
}

// RoomAdmins maps room codes to their persisted admin fingerprints so an
// admin can reclaim a room after the server or the connection restarts.
// Codes are stored uppercased; lookups are case-insensitive.
type RoomAdmins struct {
	mu      sync.Mutex
	path    string
	entries map[string]roomAdminEntry
}

// OpenRoomAdmins loads (or initializes) the room admin table under dataDir.
func OpenRoomAdmins(dataDir string) (*RoomAdmins, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	ra := &RoomAdmins{
		path:    filepath.Join(dataDir, RoomAdminsFileName),
		entries: make(map[string]roomAdminEntry),
	}

	raw, err := os.ReadFile(ra.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ra, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read room admin table: %w", err)
	}

	if err := json.Unmarshal(raw, &ra.entries); err != nil {
		return nil, fmt.Errorf("failed to parse room admin table %s: %w", ra.path, err)
	}
	return ra, nil
}

// RoomAdmin returns the persisted admin fingerprint for a room code.
func (ra *RoomAdmins) RoomAdmin(code string) (string, bool) {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	entry, ok := ra.entries[strings.ToUpper(code)]
	if !ok {
		return "", false
	}
	return entry.Fingerprint, true
}

// SetRoomAdmin records fp as the admin of the room.
func (ra *RoomAdmins) SetRoomAdmin(code, fp string) {
	if code == "" || fp == "" {
		return
	}
	ra.mu.Lock()
	defer ra.mu.Unlock()
	ra.entries[strings.ToUpper(code)] = roomAdminEntry{
		Fingerprint: fp,
		SavedAt:     time.Now().UTC(),
	}
	ra.persist()
}

// DeleteRoomAdmin removes the room's entry, typically on room deletion.
func (ra *RoomAdmins) DeleteRoomAdmin(code string) {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	key := strings.ToUpper(code)
	if _, ok := ra.entries[key]; !ok {
		return
	}
	delete(ra.entries, key)
	ra.persist()
}

// persist saves the table atomically. Callers hold ra.mu.
func (ra *RoomAdmins) persist() {
	data, err := json.MarshalIndent(ra.entries, "", "  ")
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal room admin table")
		return
	}
	if err := renameio.WriteFile(ra.path, data, 0o600); err != nil {
		logging.Error().Err(err).Str("path", ra.path).Msg("room admin table write failed, keeping in-memory state")
	}
}
