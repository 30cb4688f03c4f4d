// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/syncplayer/internal/models"
)

// setupWebSocketServer starts a test HTTP server that upgrades incoming
// requests and hands the server side of each connection to the channel.
func setupWebSocketServer(t *testing.T) (*httptest.Server, chan *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool { return true },
	}
	conns := make(chan *websocket.Conn, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		conns <- conn
	}))
	t.Cleanup(server.Close)

	return server, conns
}

// dialWebSocket connects to the test server and returns the client side.
func dialWebSocket(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

// waitForConn receives the server side of a freshly dialed connection.
func waitForConn(t *testing.T, conns chan *websocket.Conn) *websocket.Conn {
	t.Helper()

	select {
	case conn := <-conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for server connection")
		return nil
	}
}

func TestNewClient(t *testing.T) {
	hub := NewHub()
	server, conns := setupWebSocketServer(t)
	clientConn := dialWebSocket(t, server)
	waitForConn(t, conns)

	client := NewClient(hub, clientConn, "192.168.1.10")

	if client.hub != hub {
		t.Error("hub not set")
	}
	if client.conn != clientConn {
		t.Error("conn not set")
	}
	if cap(client.send) != 256 {
		t.Errorf("send channel capacity = %d, want 256", cap(client.send))
	}
	if client.ConnectionID() == "" {
		t.Error("ConnectionID should not be empty")
	}
	if client.RemoteHost() != "192.168.1.10" {
		t.Errorf("RemoteHost() = %q, want 192.168.1.10", client.RemoteHost())
	}
	if client.Room() != "" {
		t.Errorf("new client Room() = %q, want empty", client.Room())
	}
	if client.Fingerprint() != "" {
		t.Errorf("new client Fingerprint() = %q, want empty", client.Fingerprint())
	}

	second := NewClient(hub, clientConn, "192.168.1.10")
	if second.ID() <= client.ID() {
		t.Errorf("client IDs should increase: first=%d second=%d", client.ID(), second.ID())
	}
	if second.ConnectionID() == client.ConnectionID() {
		t.Error("connection IDs should be unique")
	}
}

// TestClient_Constants verifies the protocol timing constants.
// These match the standard gorilla chat pattern and changing them
// affects every connected player.
func TestClient_Constants(t *testing.T) {
	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"writeWait", writeWait, 10 * time.Second},
		{"pongWait", pongWait, 60 * time.Second},
		{"pingPeriod", pingPeriod, 54 * time.Second},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if pingPeriod >= pongWait {
		t.Error("pingPeriod must be less than pongWait or connections time out between pings")
	}
	if maxMessageSize != 512*1024 {
		t.Errorf("maxMessageSize = %d, want %d", maxMessageSize, 512*1024)
	}
}

func TestClient_Accessors(t *testing.T) {
	client := NewClient(NewHub(), nil, "127.0.0.1")

	client.setRoom("QXK4P2")
	if client.Room() != "QXK4P2" {
		t.Errorf("Room() = %q, want QXK4P2", client.Room())
	}

	client.SetFingerprint("a1b2c3d4")
	if client.Fingerprint() != "a1b2c3d4" {
		t.Errorf("Fingerprint() = %q, want a1b2c3d4", client.Fingerprint())
	}

	// Concurrent reads and writes must be safe
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			client.SetFingerprint("ffffffff")
		}()
		go func() {
			defer wg.Done()
			_ = client.Fingerprint()
			_ = client.Room()
		}()
	}
	wg.Wait()
}

func TestClient_Send(t *testing.T) {
	client := NewClient(NewHub(), nil, "127.0.0.1")
	client.send = make(chan models.Envelope, 2)

	if !client.Send(models.Envelope{Event: "one"}) {
		t.Error("first Send should succeed")
	}
	if !client.Send(models.Envelope{Event: "two"}) {
		t.Error("second Send should succeed")
	}
	if client.Send(models.Envelope{Event: "three"}) {
		t.Error("Send on a full queue should report failure")
	}

	// Draining a slot makes room again
	<-client.send
	if !client.Send(models.Envelope{Event: "four"}) {
		t.Error("Send after drain should succeed")
	}

	client.closeSend()
	if client.Send(models.Envelope{Event: "five"}) {
		t.Error("Send after close should report failure")
	}

	// Second close must be a no-op
	client.closeSend()
}

// TestClient_ConcurrentSendAndClose exercises the race between Send from
// handler goroutines and the hub closing the queue during eviction.
func TestClient_ConcurrentSendAndClose(t *testing.T) {
	client := NewClient(NewHub(), nil, "127.0.0.1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				client.Send(models.Envelope{Event: "race"})
			}
		}()
	}

	time.Sleep(time.Millisecond)
	client.closeSend()
	wg.Wait()
}

func TestClient_WritePump_DeliversEnvelope(t *testing.T) {
	hub := setupHub(t)
	server, conns := setupWebSocketServer(t)
	clientConn := dialWebSocket(t, server)
	serverConn := waitForConn(t, conns)

	client := NewClient(hub, clientConn, "127.0.0.1")
	hub.Register <- client
	client.Start()

	if !client.Send(models.NewEnvelope("test_event", map[string]string{"key": "value"})) {
		t.Fatal("Send failed")
	}

	_ = serverConn.SetReadDeadline(time.Now().Add(time.Second))
	var env models.Envelope
	if err := serverConn.ReadJSON(&env); err != nil {
		t.Fatalf("server read failed: %v", err)
	}
	if env.Event != "test_event" {
		t.Errorf("Event = %q, want test_event", env.Event)
	}

	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("payload unmarshal failed: %v", err)
	}
	if data["key"] != "value" {
		t.Errorf("payload key = %q, want value", data["key"])
	}
}

func TestClient_CloseAfterFlush(t *testing.T) {
	hub := setupHub(t)
	server, conns := setupWebSocketServer(t)
	clientConn := dialWebSocket(t, server)
	serverConn := waitForConn(t, conns)

	client := NewClient(hub, clientConn, "127.0.0.1")
	hub.Register <- client
	client.Start()

	// A queued envelope must still reach the peer before the close frame
	if !client.Send(models.NewEnvelope("farewell", nil)) {
		t.Fatal("Send failed")
	}
	client.CloseAfterFlush()

	_ = serverConn.SetReadDeadline(time.Now().Add(time.Second))
	var env models.Envelope
	if err := serverConn.ReadJSON(&env); err != nil {
		t.Fatalf("queued envelope was not flushed: %v", err)
	}
	if env.Event != "farewell" {
		t.Errorf("Event = %q, want farewell", env.Event)
	}

	_, _, err := serverConn.ReadMessage()
	if err == nil {
		t.Error("expected connection to close after send queue drained")
	}
}

func TestClient_ReadPump_DispatchesToHandler(t *testing.T) {
	hub := setupHub(t)
	handler := newRecordingHandler()
	hub.SetHandler(handler)

	server, conns := setupWebSocketServer(t)
	clientConn := dialWebSocket(t, server)
	serverConn := waitForConn(t, conns)

	client := NewClient(hub, clientConn, "127.0.0.1")
	hub.Register <- client
	client.Start()

	if err := serverConn.WriteJSON(models.NewEnvelope(models.CmdRequestSync, nil)); err != nil {
		t.Fatalf("server write failed: %v", err)
	}

	select {
	case env := <-handler.messages:
		if env.Event != models.CmdRequestSync {
			t.Errorf("Event = %q, want %q", env.Event, models.CmdRequestSync)
		}
	case <-time.After(time.Second):
		t.Fatal("handler did not receive message")
	}
}

func TestClient_ReadPump_DisconnectNotifiesHandler(t *testing.T) {
	hub := setupHub(t)
	handler := newRecordingHandler()
	hub.SetHandler(handler)

	server, conns := setupWebSocketServer(t)
	clientConn := dialWebSocket(t, server)
	serverConn := waitForConn(t, conns)

	client := NewClient(hub, clientConn, "127.0.0.1")
	hub.Register <- client
	client.Start()
	hub.JoinRoom(client, "QXK4P2")

	serverConn.Close()

	select {
	case got := <-handler.disconnects:
		if got != client {
			t.Error("HandleDisconnect received a different client")
		}
		// Room assignment survives unregistration so the handler can
		// clean up the right room
		if got.Room() != "QXK4P2" {
			t.Errorf("disconnected client Room() = %q, want QXK4P2", got.Room())
		}
	case <-time.After(time.Second):
		t.Fatal("HandleDisconnect not called after connection close")
	}

	if got := len(hub.RoomClients("QXK4P2")); got != 0 {
		t.Errorf("room index should be empty after disconnect, got %d members", got)
	}
}

func TestClient_Close_SendsPolicyViolation(t *testing.T) {
	hub := NewHub() // Not running; Close writes directly on the connection
	server, conns := setupWebSocketServer(t)
	clientConn := dialWebSocket(t, server)
	serverConn := waitForConn(t, conns)

	client := NewClient(hub, clientConn, "127.0.0.1")
	client.Close("fingerprint mismatch")

	_ = serverConn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := serverConn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("expected policy violation close, got %v", err)
	}
}

// TestClient_Integration_RoomBroadcast exercises the full path: register,
// join a room, broadcast through the hub, receive over the wire.
func TestClient_Integration_RoomBroadcast(t *testing.T) {
	hub := setupHub(t)
	server, conns := setupWebSocketServer(t)
	clientConn := dialWebSocket(t, server)
	serverConn := waitForConn(t, conns)

	client := NewClient(hub, clientConn, "127.0.0.1")
	hub.Register <- client
	client.Start()
	hub.JoinRoom(client, "QXK4P2")

	hub.BroadcastRoom("QXK4P2", models.NewEnvelope(models.EventSync, models.SyncPayload{
		IsPlaying:   true,
		CurrentTime: 42.5,
	}))

	_ = serverConn.SetReadDeadline(time.Now().Add(time.Second))
	var env models.Envelope
	if err := serverConn.ReadJSON(&env); err != nil {
		t.Fatalf("server read failed: %v", err)
	}
	if env.Event != models.EventSync {
		t.Errorf("Event = %q, want %q", env.Event, models.EventSync)
	}

	var payload models.SyncPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("payload unmarshal failed: %v", err)
	}
	if !payload.IsPlaying || payload.CurrentTime != 42.5 {
		t.Errorf("payload = %+v, want isPlaying=true currentTime=42.5", payload)
	}
}

func BenchmarkClient_Send(b *testing.B) {
	client := NewClient(NewHub(), nil, "127.0.0.1")
	go func() {
		for range client.send {
		}
	}()

	env := models.NewEnvelope("bench", map[string]int{"count": 42})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client.Send(env)
	}
}
