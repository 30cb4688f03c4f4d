// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

/*
Package websocket provides the realtime transport between the server and
playback clients.

This package implements WebSocket support for the synchronization channel:
clients send protocol commands, and the server answers with unicast replies
and room-addressed broadcasts (playback snapshots, playlist updates, counts).
It uses the gorilla/websocket library with a hub-client architecture.

Key Components:

  - Hub: Central broker that tracks connections, maintains a per-room index,
    and delivers room and lobby broadcasts
  - Client: Represents a single WebSocket connection with read/write goroutines
  - MessageHandler: Interface the event router implements to receive inbound
    envelopes and disconnect notices

Architecture:

The package implements a hub-and-spoke pattern with room addressing:

	┌──────────┐
	│   Hub    │ ← Broadcasts to a room, the lobby, or nobody
	└────┬─────┘
	     │ rooms["QXK4P2"]          lobby (no room)
	┌────┴─────┬─────────┐      ┌─────────┐
	│          │         │      │         │
	│ Client1  │ Client2 │      │ Client3 │
	│          │         │      │         │
	└──────────┴─────────┘      └─────────┘

Each client has two goroutines:
  - readPump: Reads envelopes from the socket and hands them to the handler;
    enforces the read limit and pong deadline
  - writePump: Drains the client's send queue and emits protocol pings

Delivery semantics:

Broadcasts funnel through a single buffered channel and are fanned out by
the hub goroutine in client-ID order, so every client observes broadcasts
in enqueue order. Unicast replies bypass the hub and land directly in the
client's send queue, which means a command's acknowledgment always precedes
any broadcast that same command triggered. Clients that cannot keep up
(full send queue) are dropped rather than allowed to stall the room.

Usage Example - Server:

	hub := websocket.NewHub()
	hub.SetHandler(router) // events.Router
	go hub.RunWithContext(ctx)

	// WebSocket upgrade endpoint
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
	    conn, err := upgrader.Upgrade(w, r, nil)
	    if err != nil {
	        return
	    }
	    client := websocket.NewClient(hub, conn, remoteHost(r))
	    hub.Register <- client
	    client.Start()
	})

	// Broadcast a playback snapshot to one room
	hub.BroadcastRoom("QXK4P2", models.NewEnvelope(models.EventSync, snapshot))

Connection lifecycle:

 1. HTTP handler upgrades, registers the client, starts the pumps
 2. Inbound envelopes dispatch to MessageHandler.HandleMessage
 3. On read error or disconnect the client unregisters itself;
    MessageHandler.HandleDisconnect then performs room cleanup
 4. On hub shutdown all send queues close and writePump sends a close frame

Timeouts follow the standard gorilla chat pattern: 10s write wait, 60s pong
wait, pings at 9/10 of the pong interval, 512 KB read limit.
*/
package websocket
