// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

// Package bsl implements the both-side local sync stream matcher: deciding
// which of a client's local files stand in for which playlist entries, and
// aggregating those decisions across a room's members.
//
// Matching is pure. Callers pass the playlist, the client's reported file
// descriptors, the client's persisted manual matches and a size lookup for
// the server's copies; nothing here touches room state or the store.
package bsl

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/tomtom215/syncplayer/internal/models"
)

// SizeTolerance is how far a client file's byte size may deviate from the
// server copy and still count as a size match (1.5 MiB).
const SizeTolerance = 1_572_864

// DefaultThreshold is the advanced-match score needed when none is
// configured.
const DefaultThreshold = 1

// Options configure one matching pass.
type Options struct {
	// Advanced enables the four-criteria scorer between the manual-match
	// check and the exact-name fallback.
	Advanced bool

	// Threshold is the minimum advanced score that counts as a match.
	Threshold int
}

// SizeFunc resolves a playlist filename to the size of the server's copy.
// ok is false when the server has no local copy (external entries).
type SizeFunc func(filename string) (size int64, ok bool)

// Match evaluates files against the playlist and returns playlist index ->
// matched local filename. manual is the client's persisted match dictionary
// (lowercased local name -> lowercased playlist name); it wins outright.
// The first matching file claims an entry.
func Match(playlist []models.PlaylistEntry, files []models.FileDescriptor, manual map[string]string, sizeOf SizeFunc, opts Options) map[int]string {
	matched := make(map[int]string)
	if len(playlist) == 0 || len(files) == 0 {
		return matched
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	for idx, entry := range playlist {
		for _, file := range files {
			if matches(file, entry.Filename, manual, sizeOf, opts.Advanced, threshold) {
				matched[idx] = file.Name
				break
			}
		}
	}
	return matched
}

func matches(file models.FileDescriptor, playlistName string, manual map[string]string, sizeOf SizeFunc, advanced bool, threshold int) bool {
	if manual[strings.ToLower(file.Name)] == strings.ToLower(playlistName) {
		return true
	}
	if advanced {
		return Score(file, playlistName, sizeOf) >= threshold
	}
	return strings.EqualFold(file.Name, playlistName)
}

// Score computes the advanced-match score for one (client file, playlist
// entry) pair: one point each for name, extension, size and MIME agreement.
func Score(file models.FileDescriptor, playlistName string, sizeOf SizeFunc) int {
	score := 0

	if strings.EqualFold(file.Name, playlistName) {
		score++
	}
	if strings.EqualFold(filepath.Ext(file.Name), filepath.Ext(playlistName)) {
		score++
	}
	if file.Size > 0 && sizeOf != nil {
		if serverSize, ok := sizeOf(playlistName); ok {
			diff := file.Size - serverSize
			if diff < 0 {
				diff = -diff
			}
			if diff <= SizeTolerance {
				score++
			}
		}
	}
	if mimeAgrees(file.Type, playlistName) {
		score++
	}

	return score
}

// mimeAgrees reports whether the client-reported MIME type names the same
// content as the playlist entry's extension: exact canonical equality, or
// the same top-level media family.
func mimeAgrees(reported, playlistName string) bool {
	if reported == "" {
		return false
	}
	canonical := CanonicalType(filepath.Ext(playlistName))
	if canonical == "" {
		return false
	}
	// TypeByExtension may append parameters like charset.
	canonical = strings.ToLower(strings.TrimSpace(strings.SplitN(canonical, ";", 2)[0]))
	reported = strings.ToLower(strings.TrimSpace(strings.SplitN(reported, ";", 2)[0]))

	if reported == canonical {
		return true
	}
	rf, cf := family(reported), family(canonical)
	return rf != "" && rf == cf
}

// family returns "video/", "audio/" or "image/", else "".
func family(mimeType string) string {
	for _, prefix := range []string{"video/", "audio/", "image/"} {
		if strings.HasPrefix(mimeType, prefix) {
			return prefix
		}
	}
	return ""
}

// CanonicalType resolves an extension (with dot) to its MIME type. The
// system table is consulted first; common media extensions are covered by a
// fallback so matching does not depend on /etc/mime.types.
func CanonicalType(ext string) string {
	if ext == "" {
		return ""
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return fallbackContentType(strings.ToLower(ext))
}

func fallbackContentType(ext string) string {
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	case ".mov":
		return "video/quicktime"
	case ".m4v":
		return "video/x-m4v"
	case ".ts":
		return "video/mp2t"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	case ".opus":
		return "audio/opus"
	case ".wav":
		return "audio/wav"
	case ".aac":
		return "audio/aac"
	default:
		return ""
	}
}
