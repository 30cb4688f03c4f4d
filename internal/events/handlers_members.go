// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package events

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/metrics"
	"github.com/tomtom215/syncplayer/internal/models"
	"github.com/tomtom215/syncplayer/internal/websocket"
)

const maxRenameLength = 32

func (r *Router) handleSetClientName(c *websocket.Client, data json.RawMessage) string {
	var req models.SetClientNameRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdSetClientName, err)
	}
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}

	member, renamed := rm.Rename(req.ClientID, req.Name)
	if !renamed {
		return r.rejectInvalid(c, models.CmdSetClientName, fmt.Errorf("no member %q", req.ClientID))
	}
	if member.Fingerprint != "" {
		r.store.SetClientName(member.Fingerprint, req.Name)
	}

	if cl := r.clientByConnID(rm.Code(), req.ClientID); cl != nil {
		r.reply(cl, models.EventNameUpdated, models.NameUpdatedPayload{
			ConnectionID: req.ClientID,
			Name:         req.Name,
		})
	}
	r.sendToAdmin(rm, models.EventClientList, models.ClientListPayload{Clients: rm.ClientList()})
	return outcomeOK
}

// handleSetDisplayName renames by fingerprint instead of connection id, so
// it reaches every window the viewer has open and sticks even when none
// are. The name is persisted regardless of live connections.
func (r *Router) handleSetDisplayName(c *websocket.Client, data json.RawMessage) string {
	var req models.SetDisplayNameRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdSetDisplayName, err)
	}
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}

	r.store.SetClientName(req.Fingerprint, req.Name)
	for _, member := range rm.RenameByFingerprint(req.Fingerprint, req.Name) {
		if cl := r.clientByConnID(rm.Code(), member.ConnectionID); cl != nil {
			r.reply(cl, models.EventNameUpdated, models.NameUpdatedPayload{
				ConnectionID: member.ConnectionID,
				Name:         req.Name,
			})
		}
	}
	r.sendToAdmin(rm, models.EventClientList, models.ClientListPayload{Clients: rm.ClientList()})
	return outcomeOK
}

func (r *Router) handleGetClientList(c *websocket.Client) string {
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}
	r.reply(c, models.EventClientList, models.ClientListPayload{Clients: rm.ClientList()})
	return outcomeOK
}

// handleChatMessage relays a chat line to the room. The member record is
// the authority for the sender name; the payload's sender field only
// covers members that never named themselves. "/rename NewName" is handled
// here as a command instead of a message.
func (r *Router) handleChatMessage(c *websocket.Client, data json.RawMessage) string {
	var req models.ChatMessageRequest
	if err := decode(data, &req); err != nil {
		return r.rejectInvalid(c, models.CmdChatMessage, err)
	}
	rm, ok := r.requireRoom(c)
	if !ok {
		return outcomeRejected
	}
	if !r.cfg.ChatEnabled {
		logging.Debug().
			Str("room", rm.Code()).
			Str("connection_id", c.ConnectionID()).
			Msg("Chat disabled, message dropped")
		return outcomeRejected
	}
	code := rm.Code()

	if newName, isRename := parseRenameCommand(req.Message); isRename {
		if newName == "" || len(newName) > maxRenameLength {
			r.replyError(c, "VALIDATION_ERROR", "rename must be 1-32 characters")
			return outcomeInvalid
		}
		oldMember, _ := rm.Member(c.ConnectionID())
		member, renamed := rm.Rename(c.ConnectionID(), newName)
		if !renamed {
			return r.rejectInvalid(c, models.CmdChatMessage, errors.New("sender has no member record"))
		}
		if member.Fingerprint != "" {
			r.store.SetClientName(member.Fingerprint, newName)
		}
		r.reply(c, models.EventNameUpdated, models.NameUpdatedPayload{
			ConnectionID: member.ConnectionID,
			Name:         newName,
		})

		oldName := oldMember.Name
		if oldName == "" {
			oldName = "A viewer"
		}
		notice := models.ChatMessagePayload{
			Sender:    "System",
			Message:   html.EscapeString(oldName) + " is now known as " + html.EscapeString(newName),
			System:    true,
			Timestamp: time.Now().UnixMilli(),
		}
		r.withRoomOrder(code, func() {
			r.broadcastRoom(code, models.EventChatMessage, notice)
		})
		r.sendToAdmin(rm, models.EventClientList, models.ClientListPayload{Clients: rm.ClientList()})
		metrics.ChatMessages.Inc()
		return outcomeOK
	}

	sender := req.Sender
	if member, present := rm.Member(c.ConnectionID()); present && member.Name != "" {
		sender = member.Name
	}
	if sender == "" {
		sender = "Anonymous"
	}

	msg := models.ChatMessagePayload{
		Sender:    html.EscapeString(sender),
		Message:   html.EscapeString(req.Message),
		Timestamp: time.Now().UnixMilli(),
	}
	r.withRoomOrder(code, func() {
		r.broadcastRoom(code, models.EventChatMessage, msg)
	})
	metrics.ChatMessages.Inc()
	return outcomeOK
}

// parseRenameCommand recognizes "/rename NewName" chat commands. A bare
// "/rename" parses as a rename with an empty name so the sender gets a
// usage error instead of broadcasting the literal text.
func parseRenameCommand(message string) (name string, ok bool) {
	if !strings.HasPrefix(message, "/rename") {
		return "", false
	}
	rest := strings.TrimPrefix(message, "/rename")
	if rest != "" && !strings.HasPrefix(rest, " ") {
		// "/renameX" is just a message.
		return "", false
	}
	return strings.TrimSpace(rest), true
}
