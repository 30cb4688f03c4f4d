// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package models

import (
	"time"
)

// PlaybackState is the authoritative per-room playback clock.
//
// Invariant: while IsPlaying, the real position at wall time T is
// CurrentTime + (T - LastUpdate); while paused it is CurrentTime exactly.
// Every mutation must either stamp LastUpdate to the current wall time, or
// advance CurrentTime first and then stamp.
type PlaybackState struct {
	IsPlaying   bool      `json:"isPlaying"`
	CurrentTime float64   `json:"currentTime"`
	LastUpdate  time.Time `json:"-"`

	// AudioTrack and SubtitleTrack mirror the current entry's selections.
	// Subtitle -1 means off.
	AudioTrack    int `json:"audioTrack"`
	SubtitleTrack int `json:"subtitleTrack"`
}

// NewPlaybackState returns a paused state at position zero.
func NewPlaybackState(now time.Time) PlaybackState {
	return PlaybackState{
		IsPlaying:     false,
		CurrentTime:   0,
		LastUpdate:    now,
		AudioTrack:    0,
		SubtitleTrack: -1,
	}
}

// Project returns the playback position at the given wall time.
func (p *PlaybackState) Project(now time.Time) float64 {
	if !p.IsPlaying {
		return p.CurrentTime
	}
	elapsed := now.Sub(p.LastUpdate).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return p.CurrentTime + elapsed
}

// Advance folds elapsed wall time into CurrentTime and stamps LastUpdate.
// A no-op for position while paused; the stamp still moves.
func (p *PlaybackState) Advance(now time.Time) {
	p.CurrentTime = p.Project(now)
	p.LastUpdate = now
}

// SetPlaying flips the play/pause flag, folding in elapsed time first so
// the position survives the transition.
func (p *PlaybackState) SetPlaying(playing bool, now time.Time) {
	p.Advance(now)
	p.IsPlaying = playing
}

// Seek moves the clock to the given position (clamped at zero).
func (p *PlaybackState) Seek(seconds float64, now time.Time) {
	if seconds < 0 {
		seconds = 0
	}
	p.CurrentTime = seconds
	p.LastUpdate = now
}

// Skip seeks relative to the projected position.
func (p *PlaybackState) Skip(deltaSeconds float64, now time.Time) {
	p.Seek(p.Project(now)+deltaSeconds, now)
}

// Snapshot renders the state as the sync wire payload at the given time.
func (p *PlaybackState) Snapshot(now time.Time) SyncPayload {
	return SyncPayload{
		IsPlaying:     p.IsPlaying,
		CurrentTime:   p.Project(now),
		LastUpdate:    now.UnixMilli(),
		AudioTrack:    p.AudioTrack,
		SubtitleTrack: p.SubtitleTrack,
	}
}
