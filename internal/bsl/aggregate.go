// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package bsl

import "github.com/tomtom215/syncplayer/internal/models"

// Aggregation modes. Any activates an entry when at least one reporting
// member matched it; All requires every reporting member.
const (
	ModeAny = "any"
	ModeAll = "all"
)

// Aggregate folds the room members' match reports into per-playlist-index
// activity flags. Members that never answered a folder scan do not vote.
// With no reporting members every index is inactive in both modes.
func Aggregate(reports []models.BSLReport, playlistLen int, mode string) map[int]bool {
	active := make(map[int]bool, playlistLen)

	reporting := 0
	for _, r := range reports {
		if r.Reported {
			reporting++
		}
	}
	if reporting == 0 {
		return active
	}

	for idx := 0; idx < playlistLen; idx++ {
		matched := 0
		for _, r := range reports {
			if !r.Reported {
				continue
			}
			if _, ok := r.Matched[idx]; ok {
				matched++
			}
		}
		if mode == ModeAll {
			active[idx] = matched == reporting
		} else {
			active[idx] = matched > 0
		}
	}
	return active
}
