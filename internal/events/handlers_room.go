// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package events

import (
	"errors"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/syncplayer/internal/config"
	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/metrics"
	"github.com/tomtom215/syncplayer/internal/models"
	"github.com/tomtom215/syncplayer/internal/room"
	"github.com/tomtom215/syncplayer/internal/websocket"
)

// addMember installs c as a member of rm, applying the join-mode clock
// semantics and fanning out the updated counts. A non-empty fingerprint
// restores the member's persisted display name and, when it matches the
// room's recorded admin and the seat is vacant, reclaims the seat.
//
// ack, when non-nil, runs after the seat is resolved but before the
// join-mode sync goes out, so the joiner's acknowledgement is enqueued
// ahead of the snapshot it must interpret.
func (r *Router) addMember(c *websocket.Client, rm *room.Room, name, fp string, ack func(isAdmin bool, viewers int)) {
	if name == "" && fp != "" {
		if stored, ok := r.store.ClientName(fp); ok {
			name = stored
		}
	}
	member := models.NewMember(c.ConnectionID(), fp, name, time.Now())

	code := rm.Code()
	r.withRoomOrder(code, func() {
		viewers := rm.Join(member)
		r.hub.JoinRoom(c, code)

		isAdmin := false
		if fp != "" {
			c.SetFingerprint(fp)
			if adminFP, recorded := rm.AdminFingerprint(); recorded && adminFP == fp {
				if _, seated := rm.AdminConn(); !seated {
					rm.SeatAdmin(c.ConnectionID(), fp)
					isAdmin = true
					logging.Info().
						Str("room", code).
						Str("connection_id", c.ConnectionID()).
						Msg("Admin seat reclaimed by fingerprint")
				}
			}
		}

		if ack != nil {
			ack(isAdmin, viewers)
		}

		switch r.cfg.JoinMode {
		case config.JoinModeReset:
			r.broadcastRoom(code, models.EventSync, rm.ResetTime())
		default:
			r.reply(c, models.EventSync, rm.Snapshot())
		}
		r.fanoutCounts(rm)
	})
	metrics.RoomViewers.Inc()
}

// removeMember takes c out of its room, vacating the admin seat when held,
// and fans out the updated counts. Safe to call for lobby connections.
func (r *Router) removeMember(c *websocket.Client) {
	code := c.Room()
	if code == "" {
		return
	}
	if rm, ok := r.registry.Get(code); ok {
		r.withRoomOrder(code, func() {
			_, wasAdmin, remaining, left := rm.Leave(c.ConnectionID())
			if !left {
				return
			}
			metrics.RoomViewers.Dec()
			if wasAdmin {
				logging.Info().
					Str("room", code).
					Str("connection_id", c.ConnectionID()).
					Int("remaining", remaining).
					Msg("Admin left, seat vacated")
			}
			r.fanoutCounts(rm)
		})
	}
	r.hub.LeaveRoom(c)
	r.pushLobbyRooms()
}

func (r *Router) handleCreateRoom(c *websocket.Client, data json.RawMessage) string {
	var req models.CreateRoomRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdCreateRoom, err)
	}
	if r.registry.SingleRoom() {
		r.replyError(c, "SINGLE_ROOM_MODE", "this server runs a single shared room")
		return outcomeRejected
	}

	// Moving out of any previous room first keeps membership single-homed.
	r.removeMember(c)

	rm, err := r.registry.Create(req.Name, req.IsPrivate, req.Fingerprint)
	if err != nil {
		logging.Err(err).Str("connection_id", c.ConnectionID()).Msg("Room creation failed")
		r.replyError(c, "ROOM_CREATE_FAILED", "could not create room")
		return outcomeError
	}
	r.admins.SetRoomAdmin(rm.Code(), req.Fingerprint)
	r.activity.Append(rm.Code(), "room-created", req.Name)

	r.addMember(c, rm, "", req.Fingerprint, func(bool, int) {
		r.reply(c, models.EventRoomCreated, models.RoomCreatedPayload{
			RoomCode: rm.Code(),
			RoomName: rm.Name(),
		})
	})
	r.pushLobbyRooms()

	metrics.RoomsCreated.Inc()
	metrics.RoomsActive.Inc()
	logging.Info().
		Str("room", rm.Code()).
		Str("name", rm.Name()).
		Bool("private", req.IsPrivate).
		Msg("Room created")
	return outcomeOK
}

func (r *Router) handleJoinRoom(c *websocket.Client, data json.RawMessage) string {
	var req models.JoinRoomRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdJoinRoom, err)
	}
	rm, ok := r.registry.Get(req.RoomCode)
	if !ok {
		r.replyError(c, "ROOM_NOT_FOUND", "no room with that code")
		return outcomeRejected
	}

	r.removeMember(c)

	r.addMember(c, rm, req.Name, req.Fingerprint, func(isAdmin bool, viewers int) {
		r.reply(c, models.EventRoomJoined, models.RoomJoinedPayload{
			RoomCode: rm.Code(),
			RoomName: rm.Name(),
			IsAdmin:  isAdmin,
			Viewers:  viewers,
		})
	})
	r.pushLobbyRooms()

	logging.Info().
		Str("room", rm.Code()).
		Str("connection_id", c.ConnectionID()).
		Msg("Member joined room")
	return outcomeOK
}

func (r *Router) handleLeaveRoom(c *websocket.Client) string {
	if c.Room() == "" {
		r.replyError(c, "NOT_IN_ROOM", "join a room first")
		return outcomeRejected
	}
	code := c.Room()
	// removeMember clears the room index before pushing the lobby list, so
	// the leaver picks up the current rooms from that broadcast.
	r.removeMember(c)
	logging.Debug().
		Str("room", code).
		Str("connection_id", c.ConnectionID()).
		Msg("Member left room")
	return outcomeOK
}

// handleDeleteRoom tears a room down: every member receives room-deleted,
// queued events are flushed and the connections closed, and the room's
// persisted admin slot and activity log are removed. Deletion is the only
// way a room dies; rooms sitting empty keep their admin fingerprint so the
// seat survives reconnects.
func (r *Router) handleDeleteRoom(c *websocket.Client) string {
	code := c.Room()
	if code == "" {
		r.replyError(c, "NOT_IN_ROOM", "join a room first")
		return outcomeRejected
	}

	rm, err := r.registry.Delete(code)
	if err != nil {
		if errors.Is(err, room.ErrSingleRoom) {
			r.replyError(c, "SINGLE_ROOM_MODE", "the built-in room cannot be deleted")
		} else {
			r.replyError(c, "ROOM_NOT_FOUND", "no room with that code")
		}
		return outcomeRejected
	}

	members := r.hub.RoomClients(code)
	viewers := rm.Viewers()

	env := models.NewEnvelope(models.EventRoomDeleted, models.RoomDeletedPayload{RoomCode: code})
	for _, member := range members {
		if member.Send(env) {
			metrics.WSMessagesSent.Inc()
		} else {
			metrics.WSSendDrops.Inc()
		}
		member.CloseAfterFlush()
		r.hub.LeaveRoom(member)
	}
	metrics.RecordBroadcast(models.EventRoomDeleted)

	r.admins.DeleteRoomAdmin(code)
	r.activity.DeleteRoom(code)
	r.dropRoomOrder(code)
	r.pushLobbyRooms()

	metrics.RoomViewers.Sub(float64(viewers))
	metrics.RoomsActive.Dec()
	metrics.RoomsDeleted.Inc()
	logging.Info().
		Str("room", code).
		Int("members", len(members)).
		Msg("Room deleted by admin")
	return outcomeOK
}

func (r *Router) handleGetRooms(c *websocket.Client) string {
	r.reply(c, models.EventRoomsUpdated, models.RoomsUpdatedPayload{Rooms: r.registry.ListPublic()})
	return outcomeOK
}
