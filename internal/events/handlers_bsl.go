// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package events

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/tomtom215/syncplayer/internal/bsl"
	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/metrics"
	"github.com/tomtom215/syncplayer/internal/models"
	"github.com/tomtom215/syncplayer/internal/room"
	"github.com/tomtom215/syncplayer/internal/websocket"
)

// handleAdminRegister claims the room's admin seat. With the fingerprint
// lock enabled the first registered fingerprint becomes the room's admin
// identity: later claims must present it, and a mismatch gets its auth
// result flushed before the connection is closed. With the lock off any
// connection may take a vacant seat.
func (r *Router) handleAdminRegister(c *websocket.Client, data json.RawMessage) string {
	var req models.AdminRegisterRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdAdminRegister, err)
	}
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}

	if r.cfg.AdminFingerprintLock {
		stored, recorded := r.storedAdminFingerprint(rm)
		switch {
		case !recorded:
			if req.Fingerprint == "" {
				r.reply(c, models.EventAdminAuthResult, models.AdminAuthResultPayload{
					Success: false,
					Reason:  "fingerprint required",
				})
				return outcomeRejected
			}
			r.persistAdminFingerprint(rm, req.Fingerprint)

		case stored != req.Fingerprint:
			r.reply(c, models.EventAdminAuthResult, models.AdminAuthResultPayload{
				Success: false,
				Reason:  "fingerprint mismatch",
			})
			// Grace period so the rejection reaches the client before the
			// policy-violation close frame does.
			r.afterFunc(rejectionGrace, func() {
				c.Close("admin fingerprint mismatch")
			})
			logging.Warn().
				Str("room", rm.Code()).
				Str("connection_id", c.ConnectionID()).
				Msg("Admin registration rejected, scheduling close")
			return outcomeRejected
		}
	}

	rm.SeatAdmin(c.ConnectionID(), req.Fingerprint)
	if req.Fingerprint != "" {
		c.SetFingerprint(req.Fingerprint)
		rm.BindFingerprint(c.ConnectionID(), req.Fingerprint)
	}
	r.reply(c, models.EventAdminAuthResult, models.AdminAuthResultPayload{Success: true})
	logging.Info().
		Str("room", rm.Code()).
		Str("connection_id", c.ConnectionID()).
		Bool("lock", r.cfg.AdminFingerprintLock).
		Msg("Admin seat claimed")
	return outcomeOK
}

// storedAdminFingerprint resolves the authoritative admin fingerprint for a
// room: the in-room record first, then the durable slot (the encrypted
// store in single-room mode, the per-room admin table otherwise).
func (r *Router) storedAdminFingerprint(rm *room.Room) (string, bool) {
	if fp, ok := rm.AdminFingerprint(); ok {
		return fp, true
	}
	if r.registry.SingleRoom() {
		return r.store.AdminFingerprint()
	}
	return r.admins.RoomAdmin(rm.Code())
}

// persistAdminFingerprint writes fp to the room record and its durable
// slot.
func (r *Router) persistAdminFingerprint(rm *room.Room, fp string) {
	rm.SetAdminFingerprint(fp)
	if r.registry.SingleRoom() {
		r.store.SetAdminFingerprint(fp)
		return
	}
	r.admins.SetRoomAdmin(rm.Code(), fp)
}

// handleBSLCheckRequest fans the current playlist out to every member that
// has not reported a folder yet and tells the admin how many were asked.
func (r *Router) handleBSLCheckRequest(c *websocket.Client) string {
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}

	playlist := rm.Playlist()
	refs := make([]models.BSLVideoRef, len(playlist.Videos))
	for i, v := range playlist.Videos {
		refs[i] = models.BSLVideoRef{Filename: v.Filename}
	}

	env := models.NewEnvelope(models.EventBSLCheckRequest, models.BSLCheckRequestPayload{PlaylistVideos: refs})
	asked := 0
	for _, connID := range rm.UnreportedNonAdmins() {
		cl := r.clientByConnID(rm.Code(), connID)
		if cl == nil {
			continue
		}
		if cl.Send(env) {
			metrics.WSMessagesSent.Inc()
			asked++
		} else {
			metrics.WSSendDrops.Inc()
		}
	}

	r.reply(c, models.EventBSLCheckStarted, models.BSLCheckStartedPayload{ClientCount: asked})
	metrics.BSLChecksRequested.Inc()
	logging.Info().
		Str("room", rm.Code()).
		Int("asked", asked).
		Int("playlist", len(refs)).
		Msg("BSL check requested")
	return outcomeOK
}

// handleBSLFolderSelected ingests a member's local-folder listing, runs the
// matcher against the live playlist and reports the result back to the
// member and the admin. Manual match overrides persisted for the member's
// fingerprint are honored before any scoring.
func (r *Router) handleBSLFolderSelected(c *websocket.Client, data json.RawMessage) string {
	var req models.FolderSelectedRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdBSLFolderSelected, err)
	}
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}

	if req.ClientName != "" {
		if member, renamed := rm.Rename(c.ConnectionID(), req.ClientName); renamed && member.Fingerprint != "" {
			r.store.SetClientName(member.Fingerprint, req.ClientName)
		}
	}

	playlist := rm.Playlist()
	matched := bsl.Match(playlist.Videos, req.Files, r.store.Matches(c.Fingerprint()), r.media.FileSize, bsl.Options{
		Advanced:  r.cfg.BSLAdvancedMatch,
		Threshold: r.cfg.BSLAdvancedMatchThreshold,
	})
	rm.SetReport(c.ConnectionID(), models.BSLReport{
		Reported: true,
		Files:    req.Files,
		Matched:  matched,
	})

	r.reply(c, models.EventBSLMatchResult, r.matchResult(rm, matched))
	r.sendToAdmin(rm, models.EventBSLStatusUpdate, rm.BSLStatus(r.cfg.BSLMode))

	metrics.BSLReportsReceived.Inc()
	logging.Debug().
		Str("room", rm.Code()).
		Str("connection_id", c.ConnectionID()).
		Int("files", len(req.Files)).
		Int("matched", len(matched)).
		Msg("BSL folder report processed")
	return outcomeOK
}

// matchResult renders a member's match table against the live playlist,
// ordered by playlist index.
func (r *Router) matchResult(rm *room.Room, matched map[int]string) models.BSLMatchResultPayload {
	indexes := make([]int, 0, len(matched))
	for idx := range matched {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	videos := make([]models.MatchedVideo, 0, len(indexes))
	for _, idx := range indexes {
		name, _ := rm.PlaylistFilename(idx)
		videos = append(videos, models.MatchedVideo{
			PlaylistIndex: idx,
			PlaylistFile:  name,
			ClientFile:    matched[idx],
		})
	}
	return models.BSLMatchResultPayload{
		MatchedVideos: videos,
		TotalMatched:  len(videos),
		TotalPlaylist: rm.PlaylistLen(),
	}
}

func (r *Router) handleBSLGetStatus(c *websocket.Client) string {
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}
	r.reply(c, models.EventBSLStatusUpdate, rm.BSLStatus(r.cfg.BSLMode))
	return outcomeOK
}

// handleBSLManualMatch records an admin's by-hand pairing of a member file
// to a playlist entry. The pairing is written through to the member's
// persisted match table so it survives reconnects and later playlists.
func (r *Router) handleBSLManualMatch(c *websocket.Client, data json.RawMessage) string {
	var req models.ManualMatchRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdBSLManualMatch, err)
	}
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}

	member, matched := rm.SetManualMatch(req.ClientConnectionID, req.PlaylistIndex, req.ClientFileName)
	if !matched {
		return r.rejectInvalid(c, models.CmdBSLManualMatch,
			fmt.Errorf("no member %q or playlist index %d", req.ClientConnectionID, req.PlaylistIndex))
	}

	if member.Fingerprint != "" {
		if playlistFile, known := rm.PlaylistFilename(req.PlaylistIndex); known {
			r.store.SetMatch(member.Fingerprint, req.ClientFileName, playlistFile)
		}
	}

	if cl := r.clientByConnID(rm.Code(), req.ClientConnectionID); cl != nil {
		r.reply(cl, models.EventBSLMatchResult, r.matchResult(rm, member.BSL.Matched))
	}
	r.sendToAdmin(rm, models.EventBSLStatusUpdate, rm.BSLStatus(r.cfg.BSLMode))

	logging.Info().
		Str("room", rm.Code()).
		Str("member", req.ClientConnectionID).
		Int("index", req.PlaylistIndex).
		Msg("Manual match recorded")
	return outcomeOK
}

// handleBSLSetDrift stores a per-member, per-entry playback offset. The
// value is clamped to the [-60, +60] second band and echoed to every
// connection the member's fingerprint has open.
func (r *Router) handleBSLSetDrift(c *websocket.Client, data json.RawMessage) string {
	var req models.SetDriftRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdBSLSetDrift, err)
	}
	if !finite(req.DriftSeconds) {
		return r.rejectInvalid(c, models.CmdBSLSetDrift, errors.New("driftSeconds must be finite"))
	}
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}
	if req.PlaylistIndex >= rm.PlaylistLen() {
		return r.rejectInvalid(c, models.CmdBSLSetDrift, fmt.Errorf("playlist index %d out of range", req.PlaylistIndex))
	}

	clamped := rm.SetDrift(req.ClientFingerprint, req.PlaylistIndex, req.DriftSeconds)
	payload := models.BSLDriftUpdatePayload{DriftValues: rm.DriftFor(req.ClientFingerprint)}
	for _, connID := range rm.ConnIDsByFingerprint(req.ClientFingerprint) {
		if cl := r.clientByConnID(rm.Code(), connID); cl != nil {
			r.reply(cl, models.EventBSLDriftUpdate, payload)
		}
	}

	logging.Debug().
		Str("room", rm.Code()).
		Int("index", req.PlaylistIndex).
		Float64("drift", clamped).
		Msg("Drift updated")
	return outcomeOK
}

// handleClientRegister binds a fingerprint to the connection, restoring the
// member's persisted display name and any drift offsets recorded for the
// fingerprint earlier in the room's life.
func (r *Router) handleClientRegister(c *websocket.Client, data json.RawMessage) string {
	var req models.ClientRegisterRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdClientRegister, err)
	}

	c.SetFingerprint(req.Fingerprint)
	rm, ok := r.roomOf(c)
	if !ok {
		return outcomeOK
	}
	rm.BindFingerprint(c.ConnectionID(), req.Fingerprint)

	if name, known := r.store.ClientName(req.Fingerprint); known {
		if member, renamed := rm.Rename(c.ConnectionID(), name); renamed {
			r.reply(c, models.EventNameUpdated, models.NameUpdatedPayload{
				ConnectionID: member.ConnectionID,
				Name:         name,
			})
		}
	}
	if drift := rm.DriftFor(req.Fingerprint); len(drift) > 0 {
		r.reply(c, models.EventBSLDriftUpdate, models.BSLDriftUpdatePayload{DriftValues: drift})
	}
	return outcomeOK
}
