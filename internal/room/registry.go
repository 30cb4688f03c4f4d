// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package room

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tomtom215/syncplayer/internal/models"
)

// CodeAlphabet is the room-code character set. I, O, 0 and 1 are excluded
// to reduce transcription error.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the number of characters in a room code.
const CodeLength = 6

// LegacyCode names the implicit room that exists when server_mode is off.
const LegacyCode = "LEGACY"

// maxCodeAttempts bounds code generation before giving up. With a 32^6
// space this only trips when the registry is absurdly full.
const maxCodeAttempts = 100

var (
	// ErrRoomExists is returned when a generated code collides beyond
	// maxCodeAttempts.
	ErrRoomExists = errors.New("could not allocate a unique room code")

	// ErrNotFound is returned for lookups of unknown room codes.
	ErrNotFound = errors.New("room not found")

	// ErrSingleRoom is returned for room lifecycle operations while the
	// server runs one implicit room.
	ErrSingleRoom = errors.New("server is in single-room mode")
)

// Registry owns every live room. In multi-room mode rooms come and go on
// request; in single-room mode exactly one implicit room exists from boot,
// is never listed and cannot be deleted.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	singleRoom bool
}

// NewRegistry creates the room table. When serverMode is false the legacy
// room is created immediately.
func NewRegistry(serverMode bool) *Registry {
	reg := &Registry{
		rooms:      make(map[string]*Room),
		singleRoom: !serverMode,
	}
	if reg.singleRoom {
		reg.rooms[LegacyCode] = New(LegacyCode, "Sync-Player", false)
	}
	return reg
}

// SingleRoom reports whether the registry runs the one implicit room.
func (reg *Registry) SingleRoom() bool {
	return reg.singleRoom
}

// Legacy returns the implicit room in single-room mode.
func (reg *Registry) Legacy() (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[LegacyCode]
	return r, ok
}

// Create allocates a room with a fresh unique code.
func (reg *Registry) Create(name string, private bool, adminFP string) (*Room, error) {
	if reg.singleRoom {
		return nil, ErrSingleRoom
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	code, err := reg.newCodeLocked()
	if err != nil {
		return nil, err
	}

	r := New(code, name, private)
	if adminFP != "" {
		r.SetAdminFingerprint(adminFP)
	}
	reg.rooms[code] = r
	return r, nil
}

// newCodeLocked rejection-samples codes until one is unused. Callers hold
// reg.mu.
func (reg *Registry) newCodeLocked() (string, error) {
	buf := make([]byte, CodeLength)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		code := make([]byte, CodeLength)
		for i, b := range buf {
			code[i] = CodeAlphabet[int(b)%len(CodeAlphabet)]
		}
		if _, taken := reg.rooms[string(code)]; !taken {
			return string(code), nil
		}
	}
	return "", ErrRoomExists
}

// Get looks a room up case-insensitively.
func (reg *Registry) Get(code string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[strings.ToUpper(code)]
	return r, ok
}

// Delete removes a room and returns it for member notification and
// persistence cleanup. The legacy room cannot be deleted.
func (reg *Registry) Delete(code string) (*Room, error) {
	if reg.singleRoom {
		return nil, ErrSingleRoom
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	key := strings.ToUpper(code)
	r, ok := reg.rooms[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(reg.rooms, key)
	return r, nil
}

// Rooms returns a snapshot of every live room.
func (reg *Registry) Rooms() []*Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	return out
}

// Len returns the number of live rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// ListPublic returns non-private rooms as lobby summaries, ordered by
// creation. The legacy room is never listed.
func (reg *Registry) ListPublic() []models.RoomSummary {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for code, r := range reg.rooms {
		if code == LegacyCode || r.Private() {
			continue
		}
		rooms = append(rooms, r)
	}
	reg.mu.RUnlock()

	summaries := make([]models.RoomSummary, len(rooms))
	for i, r := range rooms {
		summaries[i] = r.Summary()
	}
	sortSummaries(summaries)
	return summaries
}
