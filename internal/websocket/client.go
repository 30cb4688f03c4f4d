// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// clientIDCounter generates unique, monotonically increasing IDs for clients.
// DETERMINISM: This ensures clients can be sorted in a consistent order for
// broadcast operations, eliminating non-deterministic map iteration order.
var clientIDCounter atomic.Uint64

// Client is a middleman between the websocket connection and the hub.
// Each connection carries a stable connection ID (its protocol identity)
// and, once the client registers, a browser fingerprint.
type Client struct {
	// id is a unique identifier for this client, used for deterministic ordering.
	// DETERMINISM: Assigned from an atomic counter to ensure consistent sorting.
	id           uint64
	connectionID string
	remoteHost   string

	hub  *Hub
	conn *websocket.Conn
	send chan models.Envelope

	// sendMu guards send against enqueue-after-close. The hub closes send
	// while holding sendMu; Send acquires it in read mode.
	sendMu     sync.RWMutex
	sendClosed bool

	// mu guards the mutable session state below.
	mu          sync.RWMutex
	roomCode    string
	fingerprint string
}

// NewClient creates a new Client with a unique deterministic ID and a fresh
// connection ID. remoteHost is the host portion of the peer address, used
// for rate limiting.
func NewClient(hub *Hub, conn *websocket.Conn, remoteHost string) *Client {
	return &Client{
		id:           clientIDCounter.Add(1),
		connectionID: uuid.NewString(),
		remoteHost:   remoteHost,
		hub:          hub,
		conn:         conn,
		send:         make(chan models.Envelope, 256),
	}
}

// ID returns the client's unique identifier for deterministic ordering
func (c *Client) ID() uint64 {
	return c.id
}

// ConnectionID returns the stable identifier clients and admins use to
// address this connection.
func (c *Client) ConnectionID() string {
	return c.connectionID
}

// RemoteHost returns the peer host used for rate limiting.
func (c *Client) RemoteHost() string {
	return c.remoteHost
}

// Room returns the code of the room this connection is currently in, or ""
// when the client sits in the lobby.
func (c *Client) Room() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCode
}

func (c *Client) setRoom(code string) {
	c.mu.Lock()
	c.roomCode = code
	c.mu.Unlock()
}

// Fingerprint returns the browser fingerprint bound to this connection, or
// "" before the client registers.
func (c *Client) Fingerprint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fingerprint
}

// SetFingerprint binds a browser fingerprint to this connection.
func (c *Client) SetFingerprint(fp string) {
	c.mu.Lock()
	c.fingerprint = fp
	c.mu.Unlock()
}

// Send queues an envelope for delivery to this client without blocking.
// It reports false when the buffer is full or the connection is closing;
// the caller must not retry.
func (c *Client) Send(env models.Envelope) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound queue exactly once. Only the hub calls this.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// CloseAfterFlush closes the send queue so the write pump drains any queued
// envelopes, follows them with a close frame and drops the connection. Use
// this when the client must still receive a final event (a room-deleted
// notice) before going away; Close skips the queue entirely.
func (c *Client) CloseAfterFlush() {
	c.closeSend()
}

// Close performs a best-effort close handshake and drops the connection.
// Used to evict a connection (e.g. after a rejected admin fingerprint);
// the read pump then unregisters the client through the normal path.
// WriteControl is safe to call concurrently with the write pump.
func (c *Client) Close(reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		logging.Debug().Err(err).Str("connection_id", c.connectionID).Msg("close handshake failed")
	}
	_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
}

// readPump pumps messages from the websocket connection to the hub's handler
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env models.Envelope
		err := c.conn.ReadJSON(&env)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("connection_id", c.connectionID).Msg("unexpected websocket close error")
			}
			break
		}

		if handler := c.hub.Handler(); handler != nil {
			handler.HandleMessage(c, env)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logging.Error().Err(err).Msg("failed to write JSON message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
