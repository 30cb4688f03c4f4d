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

const (
	// MaxRoomLogEntries caps each room's activity log.
	MaxRoomLogEntries = 500

	// MaxGeneralLogEntries caps the server-wide activity log.
	MaxGeneralLogEntries = 1000

	// generalLogName is the server-wide log file inside data_dir/logs.
	generalLogName = "general.json"
)

// LogRecord is one activity log entry.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail,omitempty"`
}

// RoomLog appends activity records to per-room JSON files plus one general
// file, each capped with oldest-first eviction. Appends load a room's file
// lazily, keep an in-memory copy, and rewrite the whole file atomically.
type RoomLog struct {
	mu      sync.Mutex
	dir     string
	rooms   map[string][]LogRecord
	general []LogRecord
	loaded  map[string]bool
}

// OpenRoomLog prepares the log directory under dataDir.
func OpenRoomLog(dataDir string) (*RoomLog, error) {
	dir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	return &RoomLog{
		dir:    dir,
		rooms:  make(map[string][]LogRecord),
		loaded: make(map[string]bool),
	}, nil
}

// Append records an event for one room.
func (l *RoomLog) Append(code, event, detail string) {
	if code == "" || event == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToUpper(code)
	l.ensureLoaded(key)

	records := append(l.rooms[key], LogRecord{
		Timestamp: time.Now().UTC(),
		Event:     event,
		Detail:    detail,
	})
	if len(records) > MaxRoomLogEntries {
		records = records[len(records)-MaxRoomLogEntries:]
	}
	l.rooms[key] = records
	l.write(l.roomPath(key), records)
}

// AppendGeneral records a server-wide event.
func (l *RoomLog) AppendGeneral(event, detail string) {
	if event == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded[generalLogName] {
		l.general = l.read(filepath.Join(l.dir, generalLogName))
		l.loaded[generalLogName] = true
	}

	l.general = append(l.general, LogRecord{
		Timestamp: time.Now().UTC(),
		Event:     event,
		Detail:    detail,
	})
	if len(l.general) > MaxGeneralLogEntries {
		l.general = l.general[len(l.general)-MaxGeneralLogEntries:]
	}
	l.write(filepath.Join(l.dir, generalLogName), l.general)
}

// Records returns a copy of a room's log, oldest first.
func (l *RoomLog) Records(code string) []LogRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToUpper(code)
	l.ensureLoaded(key)

	records := l.rooms[key]
	out := make([]LogRecord, len(records))
	copy(out, records)
	return out
}

// DeleteRoom drops a room's log from memory and disk.
func (l *RoomLog) DeleteRoom(code string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToUpper(code)
	delete(l.rooms, key)
	delete(l.loaded, key)
	if err := os.Remove(l.roomPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn().Err(err).Str("room", key).Msg("failed to remove room log file")
	}
}

// ensureLoaded pulls a room's file into memory once. Callers hold l.mu.
func (l *RoomLog) ensureLoaded(key string) {
	if l.loaded[key] {
		return
	}
	l.rooms[key] = l.read(l.roomPath(key))
	l.loaded[key] = true
}

func (l *RoomLog) roomPath(key string) string {
	return filepath.Join(l.dir, "room-"+key+".json")
}

// read loads a log file, tolerating absence and corruption: a log is an
// audit convenience, never worth failing an append over.
func (l *RoomLog) read(path string) []LogRecord {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn().Err(err).Str("path", path).Msg("failed to read log file")
		}
		return nil
	}
	var records []LogRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("discarding corrupt log file")
		return nil
	}
	return records
}

func (l *RoomLog) write(path string, records []LogRecord) {
	data, err := json.Marshal(records)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal log records")
		return
	}
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		logging.Error().Err(err).Str("path", path).Msg("log write failed, keeping in-memory records")
	}
}
