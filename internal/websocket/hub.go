// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
// This enables clear observability in logs and metrics.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	// This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// MessageHandler receives inbound envelopes and disconnect notices from the
// hub. The event router implements it; the indirection keeps this package
// free of protocol knowledge.
//
// HandleMessage runs on the owning client's read goroutine and may be called
// concurrently for different clients. HandleDisconnect runs on the hub
// goroutine, after the client has been removed from the hub's indexes, and
// fires exactly once per started connection.
type MessageHandler interface {
	HandleMessage(c *Client, env models.Envelope)
	HandleDisconnect(c *Client)
}

// broadcastMessage addresses one envelope at a room or at the lobby
// (connections not currently in any room).
type broadcastMessage struct {
	room     string
	lobby    bool
	envelope models.Envelope
}

// Hub maintains the set of active clients, a per-room index, and delivers
// room-addressed broadcasts in a deterministic order.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	broadcast  chan broadcastMessage
	Register   chan *Client
	Unregister chan *Client

	handler MessageHandler

	mu sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan broadcastMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
	}
}

// SetHandler installs the message handler. Call once at startup, before the
// first connection is accepted.
func (h *Hub) SetHandler(handler MessageHandler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

// Handler returns the installed message handler, or nil.
func (h *Hub) Handler() MessageHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.handler
}

// RunWithContext starts the hub with context support for graceful shutdown.
// This method is designed for use with suture supervision.
//
// When the context is canceled:
//  1. All connected clients are gracefully closed
//  2. The method returns ctx.Err()
//
// This allows the hub to be restarted by a supervisor without leaving
// orphaned connections.
//
// DETERMINISM: Uses priority-based selection to ensure predictable behavior:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Client lifecycle events (Register/Unregister)
// - Priority 3: Broadcast messages
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// DETERMINISM: Priority-based selection prevents non-deterministic
		// ordering when multiple channels are ready simultaneously.

		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
			// Context not canceled, continue
		}

		// Priority 2: Handle client lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.handleRegister(client)
			continue
		case client := <-h.Unregister:
			h.handleUnregister(client)
			continue
		default:
			// No lifecycle events pending
		}

		// Priority 3: Handle broadcast messages or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.handleRegister(client)

		case client := <-h.Unregister:
			h.handleUnregister(client)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	logging.Info().
		Str("connection_id", client.ConnectionID()).
		Int("total_clients", total).
		Msg("websocket client connected")
}

// handleUnregister removes the client from the hub's indexes and then
// notifies the handler. The client's room field is left intact so the
// handler can still resolve which room to clean up.
func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		h.removeFromRoomLocked(client)
		client.closeSend()
	}
	total := len(h.clients)
	h.mu.Unlock()

	if handler := h.Handler(); handler != nil {
		handler.HandleDisconnect(client)
	}
	logging.Info().
		Str("connection_id", client.ConnectionID()).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// logGracefulShutdown logs the shutdown with structured fields for observability.
//
// Note: ctx.Err() is NOT logged as an error because context cancellation
// is expected behavior during graceful shutdown. Logging it as .Err() would
// confuse operators monitoring error logs.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()

	h.closeAllClients()

	reason := getShutdownReason(ctx)

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
// This provides clear observability for operators monitoring logs.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		// Fallback for any future context error types
		return ShutdownReasonContextCanceled
	}
}

// deliver sends a broadcast to its target set in a deterministic order.
// DETERMINISM: Sorts clients by their monotonic ID to ensure consistent
// iteration order. This prevents non-deterministic message delivery order
// which could cause:
// - Inconsistent client behavior in tests
// - Non-reproducible race conditions
// - Unpredictable message acknowledgment sequences
func (h *Hub) deliver(msg broadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var targets []*Client
	if msg.lobby {
		for client := range h.clients {
			if client.Room() == "" {
				targets = append(targets, client)
			}
		}
	} else {
		set := h.rooms[msg.room]
		targets = make([]*Client, 0, len(set))
		for client := range set {
			targets = append(targets, client)
		}
	}

	sort.Slice(targets, func(i, j int) bool {
		return targets[i].id < targets[j].id
	})

	// Track clients to remove (can't modify maps during target iteration)
	var toRemove []*Client

	for _, client := range targets {
		if !client.Send(msg.envelope) {
			// Buffer full or closing, mark for removal
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		client.closeSend()
		delete(h.clients, client)
		h.removeFromRoomLocked(client)
	}
}

// closeAllClients gracefully closes all connected WebSocket clients.
// Called during shutdown to ensure clean termination.
// DETERMINISM: Closes clients in ID order to ensure consistent shutdown behavior.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		client.closeSend()
		delete(h.clients, client)
	}
	h.rooms = make(map[string]map[*Client]bool)
	logging.Info().Msg("closed all websocket clients during shutdown")
}

// JoinRoom moves a client into a room's broadcast set, leaving any previous
// room first.
func (h *Hub) JoinRoom(client *Client, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomLocked(client)
	set, ok := h.rooms[code]
	if !ok {
		set = make(map[*Client]bool)
		h.rooms[code] = set
	}
	set[client] = true
	client.setRoom(code)
}

// LeaveRoom returns a client to the lobby. Safe to call for clients that are
// not in a room.
func (h *Hub) LeaveRoom(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomLocked(client)
	client.setRoom("")
}

func (h *Hub) removeFromRoomLocked(client *Client) {
	code := client.Room()
	if code == "" {
		return
	}
	if set, ok := h.rooms[code]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.rooms, code)
		}
	}
}

// RoomClients returns the connections currently in a room, sorted by client
// ID for deterministic iteration.
func (h *Hub) RoomClients(code string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.rooms[code]
	clients := make([]*Client, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// BroadcastRoom queues an envelope for every connection in a room. Callers
// that need broadcast order to match mutation order must enqueue while still
// holding the room lock; the hub preserves queue order per client.
func (h *Hub) BroadcastRoom(code string, env models.Envelope) {
	select {
	case h.broadcast <- broadcastMessage{room: code, envelope: env}:
	default:
		logging.Warn().Str("room", code).Str("event", env.Event).Msg("broadcast channel full, dropping room message")
	}
}

// BroadcastLobby queues an envelope for every connection not currently in a
// room. Used for public room list updates.
func (h *Hub) BroadcastLobby(env models.Envelope) {
	select {
	case h.broadcast <- broadcastMessage{lobby: true, envelope: env}:
	default:
		logging.Warn().Str("event", env.Event).Msg("broadcast channel full, dropping lobby message")
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
