// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/syncplayer/internal/config"
	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/models"
	"github.com/tomtom215/syncplayer/internal/websocket"
)

// handleSetPlaylist replaces the room's playlist wholesale. Local entries
// are probed for embedded tracks and HEVC before the swap so the installed
// playlist already carries its track menus. Probing happens outside the
// fan-out lock; only the swap and its broadcasts are serialized.
func (r *Router) handleSetPlaylist(c *websocket.Client, data json.RawMessage) string {
	var req models.SetPlaylistRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdSetPlaylist, err)
	}
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}
	if req.MainVideoIndex >= len(req.Playlist) {
		return r.rejectInvalid(c, models.CmdSetPlaylist,
			fmt.Errorf("mainVideoIndex %d out of range for %d entries", req.MainVideoIndex, len(req.Playlist)))
	}
	if !validTime(req.MainVideoStartTime) {
		return r.rejectInvalid(c, models.CmdSetPlaylist, errors.New("startTime must be a finite non-negative number"))
	}

	ctx := context.Background()
	entries := make([]models.PlaylistEntry, len(req.Playlist))
	for i, item := range req.Playlist {
		entry := models.PlaylistEntry{
			Filename:              item.Filename,
			IsExternal:            item.IsExternal,
			Tracks:                models.EmptyTrackSet(),
			SelectedAudioTrack:    0,
			SelectedSubtitleTrack: -1,
		}
		if !item.IsExternal {
			entry.Tracks = r.media.Tracks(ctx, item.Filename)
			entry.UsesHEVC = r.media.UsesHEVC(ctx, item.Filename)
		}
		entries[i] = entry
	}

	code := rm.Code()
	r.withRoomOrder(code, func() {
		pl, snap := rm.ReplacePlaylist(entries, req.MainVideoIndex, req.MainVideoStartTime,
			req.PreloadMainVideo, r.cfg.VideoAutoplay)
		r.broadcastRoom(code, models.EventPlaylistUpdate, pl)
		r.broadcastRoom(code, models.EventSync, snap)
	})

	if !r.cfg.VideoAutoplay {
		// Browsers that defeat autoplay leave players paused at a position
		// the first snapshot predates. One delayed re-broadcast converges
		// them, unless the admin pressed play in the meantime.
		r.afterFunc(autoplayDefeatDelay, func() {
			r.withRoomOrder(code, func() {
				if snap := rm.Snapshot(); !snap.IsPlaying {
					r.broadcastRoom(code, models.EventSync, snap)
				}
			})
		})
	}

	logging.Info().
		Str("room", code).
		Int("entries", len(entries)).
		Int("main_index", req.MainVideoIndex).
		Msg("Playlist replaced")
	return outcomeOK
}

// handleControl covers the shared transport commands: playpause, skip,
// seek, selectTrack, and the raw sync push clients send when the user
// scrubs the native player. Raw pushes and named actions respect the
// client-controls and client-sync switches; the admin is exempt from the
// controls switch but not the sync switch.
func (r *Router) handleControl(c *websocket.Client, data json.RawMessage) string {
	var req models.ControlRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdControl, err)
	}
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}
	code := rm.Code()
	isAdmin := rm.IsAdmin(c.ConnectionID())

	if req.Action == "" {
		if r.cfg.ClientSyncDisabled || (r.cfg.ClientControlsDisabled && !isAdmin) {
			r.reply(c, models.EventControlRejected, models.ControlRejectedPayload{Reason: "client sync is disabled"})
			return outcomeRejected
		}
		if req.IsPlaying == nil && req.CurrentTime == nil {
			return r.rejectInvalid(c, models.CmdControl, errors.New("control message carries no action or state"))
		}
		if req.CurrentTime != nil && !validTime(*req.CurrentTime) {
			return r.rejectInvalid(c, models.CmdControl, errors.New("currentTime must be a finite non-negative number"))
		}
		r.withRoomOrder(code, func() {
			r.broadcastRoom(code, models.EventSync, rm.ApplySync(req.IsPlaying, req.CurrentTime))
		})
		return outcomeOK
	}

	if r.cfg.ClientControlsDisabled && !isAdmin {
		r.reply(c, models.EventControlRejected, models.ControlRejectedPayload{Reason: "client controls are disabled"})
		return outcomeRejected
	}

	switch req.Action {
	case models.ActionPlayPause:
		if req.State == nil {
			return r.rejectInvalid(c, models.CmdControl, errors.New("playpause requires state"))
		}
		r.withRoomOrder(code, func() {
			r.broadcastRoom(code, models.EventSync, rm.SetPlaying(*req.State))
		})

	case models.ActionSeek:
		if req.Time == nil || !validTime(*req.Time) {
			return r.rejectInvalid(c, models.CmdControl, errors.New("seek requires a finite non-negative time"))
		}
		r.withRoomOrder(code, func() {
			r.broadcastRoom(code, models.EventSync, rm.Seek(*req.Time))
		})

	case models.ActionSkip:
		seconds := req.Seconds
		if seconds == 0 {
			seconds = float64(r.cfg.SkipSeconds)
		}
		if req.Direction == "backward" {
			seconds = -seconds
		}
		r.withRoomOrder(code, func() {
			r.broadcastRoom(code, models.EventSync, rm.Skip(seconds))
		})

	case models.ActionSelectTrack:
		if req.Type == "" || req.TrackIndex == nil {
			return r.rejectInvalid(c, models.CmdControl, errors.New("selectTrack requires type and trackIndex"))
		}
		r.withRoomOrder(code, func() {
			r.broadcastRoom(code, models.EventSync, rm.SelectTrack(req.Type, *req.TrackIndex))
		})
	}
	return outcomeOK
}

func (r *Router) handlePlaylistJump(c *websocket.Client, data json.RawMessage) string {
	var req models.PlaylistJumpRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdPlaylistJump, err)
	}
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}

	code := rm.Code()
	outcome := outcomeOK
	r.withRoomOrder(code, func() {
		pos, snap, jumped := rm.JumpTo(req.Index)
		if !jumped {
			outcome = r.rejectInvalid(c, models.CmdPlaylistJump, fmt.Errorf("index %d out of range", req.Index))
			return
		}
		r.broadcastRoom(code, models.EventPlaylistPos, pos)
		r.broadcastRoom(code, models.EventSync, snap)
	})
	return outcome
}

// handlePlaylistNext advances to the next entry. It is the one playback
// mutation open to every member, because each player reports its own video
// ending. A synced room produces a burst of duplicate reports for the same
// transition; every report after the first arrives with the index already
// advanced, so the debounce suppresses signals landing on the index the
// last advance produced while the window is open. At the tail the signal is
// ignored: no wrap-around, no state change.
func (r *Router) handlePlaylistNext(c *websocket.Client) string {
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}

	code := rm.Code()
	ord := r.roomOrderFor(code)
	ord.mu.Lock()
	defer ord.mu.Unlock()

	from := rm.CurrentIndex()
	if ord.lastNextTo == from && time.Since(ord.lastNextAt) < nextDebounceWindow {
		logging.Debug().
			Str("room", code).
			Int("index", from).
			Msg("Duplicate playlist-next within debounce window")
		return outcomeOK
	}

	pos, snap, advanced := rm.NextVideo()
	if !advanced {
		logging.Debug().Str("room", code).Int("index", from).Msg("Playlist at tail, next ignored")
		return outcomeOK
	}
	ord.lastNextTo = pos.CurrentIndex
	ord.lastNextAt = time.Now()

	r.broadcastRoom(code, models.EventPlaylistPos, pos)
	r.broadcastRoom(code, models.EventSync, snap)
	return outcomeOK
}

func (r *Router) handlePlaylistReorder(c *websocket.Client, data json.RawMessage) string {
	var req models.PlaylistReorderRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdPlaylistReorder, err)
	}
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}

	code := rm.Code()
	outcome := outcomeOK
	r.withRoomOrder(code, func() {
		pl, moved := rm.Reorder(req.FromIndex, req.ToIndex)
		if !moved {
			outcome = r.rejectInvalid(c, models.CmdPlaylistReorder,
				fmt.Errorf("cannot move %d to %d", req.FromIndex, req.ToIndex))
			return
		}
		r.broadcastRoom(code, models.EventPlaylistUpdate, pl)
	})
	return outcome
}

// handleTrackChange records a track selection on a playlist entry. Only
// when the entry is the one currently playing does the room hear about it;
// selections on queued entries apply silently when playback reaches them.
func (r *Router) handleTrackChange(c *websocket.Client, data json.RawMessage) string {
	var req models.TrackChangeRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdTrackChange, err)
	}
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}

	code := rm.Code()
	outcome := outcomeOK
	r.withRoomOrder(code, func() {
		snap, current, changed := rm.ChangeTrack(req.VideoIndex, req.Type, req.TrackIndex)
		if !changed {
			outcome = r.rejectInvalid(c, models.CmdTrackChange,
				fmt.Errorf("video index %d out of range", req.VideoIndex))
			return
		}
		if current {
			r.broadcastRoom(code, models.EventSync, snap)
			r.broadcastRoom(code, models.EventTrackChange, models.TrackChangePayload{
				VideoIndex: req.VideoIndex,
				Type:       req.Type,
				TrackIndex: req.TrackIndex,
			})
		}
	})
	return outcome
}

func (r *Router) handleRequestSync(c *websocket.Client) string {
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}
	r.reply(c, models.EventSync, rm.Snapshot())
	return outcomeOK
}

func (r *Router) handleGetConfig(c *websocket.Client) string {
	r.reply(c, models.EventConfig, r.clientConfig())
	return outcomeOK
}

// handleRequestInitialState hands a newly hydrated page everything it needs
// in one envelope: client config, playlist, clock snapshot, BSL status and
// the viewer count. Lobby connections get config and an empty playlist.
func (r *Router) handleRequestInitialState(c *websocket.Client) string {
	state := models.InitialStatePayload{Config: r.clientConfig()}

	if rm, ok := r.roomOf(c); ok {
		state.Playlist = rm.Playlist()
		state.Playback = rm.Snapshot()
		state.BSL = rm.BSLStatus(r.cfg.BSLMode)
		state.Viewers = rm.Viewers()
		if !r.registry.SingleRoom() {
			state.RoomCode = rm.Code()
			state.RoomName = rm.Name()
		}
	} else {
		state.Playlist = models.NewPlaylist()
	}

	r.reply(c, models.EventInitialState, state)
	return outcomeOK
}

// clientConfig projects the server configuration down to the fields
// clients act on.
func (r *Router) clientConfig() models.ClientConfig {
	return ClientConfigFor(r.cfg)
}

// ClientConfigFor projects a server configuration down to the fields clients
// act on. The admin page hydrator reuses this so the embedded state and the
// initial-state event never disagree.
func ClientConfigFor(cfg *config.Config) models.ClientConfig {
	return models.ClientConfig{
		VolumeStep:       cfg.VolumeStep,
		SkipSeconds:      cfg.SkipSeconds,
		MaxVolume:        cfg.MaxVolume,
		SkipIntroSeconds: cfg.SkipIntroSeconds,
		JoinMode:         cfg.JoinMode,
		ChatEnabled:      cfg.ChatEnabled,
		ServerMode:       cfg.ServerMode,
		ControlsDisabled: cfg.ClientControlsDisabled,
	}
}
