// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package validation

import (
	"regexp"
	"strings"
)

// MaxFilenameLength bounds media filenames everywhere they cross the wire
// or reach the filesystem.
const MaxFilenameLength = 255

// filenamePattern is the whitelist for media filenames: letters, digits,
// spaces, underscore, dot, hyphen, parentheses and square brackets. Path
// separators are excluded by construction but checked again explicitly.
var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9 _.\-()\[\]]+$`)

// roomCodePattern matches 6 characters of the room-code alphabet
// (I, O, 0 and 1 excluded). Lookup is case-insensitive, so both cases pass.
var roomCodePattern = regexp.MustCompile(`^[A-HJ-NP-Za-hj-np-z2-9]{6}$`)

// ValidFilename reports whether name is a safe bare media filename: the
// whitelist pattern, length-bounded, and free of path separators or parent
// references. Every filename from a client or a playlist must pass before
// it is joined to the media directory.
func ValidFilename(name string) bool {
	if name == "" || len(name) > MaxFilenameLength {
		return false
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return false
	}
	return filenamePattern.MatchString(name)
}

// ValidRoomCode reports whether code is a well-formed room code. The
// single-room registry uses the reserved code "legacy", which joins must
// also be able to name.
func ValidRoomCode(code string) bool {
	if strings.EqualFold(code, "legacy") {
		return true
	}
	return roomCodePattern.MatchString(code)
}

// ValidFingerprint reports whether fp is acceptable as a client identity
// key. Fingerprints are client-chosen and opaque; the server only bounds
// their length and rejects whitespace and control characters.
func ValidFingerprint(fp string) bool {
	if len(fp) < 8 || len(fp) > 128 {
		return false
	}
	for _, r := range fp {
		if r <= 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
