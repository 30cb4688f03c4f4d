// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package models

import (
	"time"
)

// Drift bounds in seconds. Values outside the range clamp, never reject.
const (
	DriftMin = -60.0
	DriftMax = 60.0
)

// ClampDrift forces a drift offset into [DriftMin, DriftMax].
func ClampDrift(seconds float64) float64 {
	if seconds < DriftMin {
		return DriftMin
	}
	if seconds > DriftMax {
		return DriftMax
	}
	return seconds
}

// FileDescriptor is one local file reported by a client during a BSL folder
// scan. Size and Type are optional; browsers omit them for some sources.
type FileDescriptor struct {
	Name string `json:"name" validate:"required,max=512"`
	Size int64  `json:"size,omitempty" validate:"min=0"`
	Type string `json:"type,omitempty" validate:"max=255"`
}

// BSLReport is a member's local-file match state.
type BSLReport struct {
	// Reported is true once the member has answered a folder scan.
	Reported bool `json:"reported"`

	// Files are the descriptors from the last report.
	Files []FileDescriptor `json:"-"`

	// Matched maps playlist index -> local filename for matched entries.
	Matched map[int]string `json:"matched"`
}

// Member is one connection's membership in a room.
type Member struct {
	// ConnectionID identifies the live connection (changes on reconnect).
	ConnectionID string `json:"connectionId"`

	// Fingerprint is the client-chosen identity that survives reconnects.
	Fingerprint string `json:"fingerprint"`

	// Name is the display name shown in chat and client lists.
	Name string `json:"name"`

	JoinedAt time.Time `json:"joinedAt"`

	BSL BSLReport `json:"bsl"`

	// Drift maps playlist index -> per-member clock offset in seconds,
	// always within [DriftMin, DriftMax].
	Drift map[int]float64 `json:"drift"`
}

// NewMember creates a Member with initialized maps.
func NewMember(connectionID, fingerprint, name string, now time.Time) *Member {
	return &Member{
		ConnectionID: connectionID,
		Fingerprint:  fingerprint,
		Name:         name,
		JoinedAt:     now,
		BSL:          BSLReport{Matched: make(map[int]string)},
		Drift:        make(map[int]float64),
	}
}
