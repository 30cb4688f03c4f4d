// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

// Package events routes inbound websocket commands to room state mutations
// and fans the results back out through the hub.
//
// # Pipeline
//
// Every envelope passes four stages, in order:
//
//  1. Rate limit: a token bucket per remote host (burst 100, refilled at
//     100 events per 10 s). A host that empties its bucket is gated for a
//     5 s cooldown and told when to retry. Loopback hosts bypass.
//  2. Admin gate: playlist, BSL administration and room-management commands
//     require the sender to hold the room's admin seat. create-room and
//     bsl-admin-register stay open because they are how the seat is
//     established.
//  3. Validation: payloads are decoded and checked with the validation
//     package before any handler sees them. Invalid payloads produce a
//     structured error reply and never touch room state.
//  4. Dispatch: the command handler mutates room state and broadcasts the
//     resulting snapshot. Unknown command tags are dropped with a debug
//     log. Handler panics are recovered at the router boundary so one bad
//     message cannot take the hub down.
//
// # Ordering
//
// Playback mutations and the broadcast of their snapshots happen under a
// per-room fan-out lock, so the hub queue receives sync snapshots in
// mutation order and every member converges on the latest state. Unicast
// acknowledgements are enqueued before the broadcasts they trigger, so a
// sender always sees its ack no later than the resulting sync.
//
// # Command surface
//
// Room lifecycle: create-room, join-room, leave-room, delete-room,
// get-rooms. Playback: control (playpause/skip/seek/selectTrack or a raw
// sync push), set-playlist, playlist-jump, playlist-next,
// skip-to-next-video, playlist-reorder, track-change. BSL-S²:
// bsl-admin-register, bsl-check-request, bsl-folder-selected,
// bsl-get-status, bsl-manual-match, bsl-set-drift, client-register.
// Social: chat-message (with /rename), set-client-name,
// set-client-display-name, get-client-list. Queries:
// request-initial-state, request-sync, get-config.
//
// The router implements websocket.MessageHandler; the HTTP layer calls
// HandleConnect after registering each new connection.
package events
