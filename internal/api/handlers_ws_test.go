// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/syncplayer/internal/websocket"
)

func TestCheckWebSocketOrigin(t *testing.T) {
	wildcard := &Handler{allowedOrigins: []string{"*"}}
	pinned := &Handler{allowedOrigins: []string{"http://192.168.1.5:3000"}}

	request := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	// Non-browser clients send no Origin and are always welcome.
	assert.True(t, wildcard.checkWebSocketOrigin(request("")))
	assert.True(t, pinned.checkWebSocketOrigin(request("")))

	assert.True(t, wildcard.checkWebSocketOrigin(request("http://anything.example")))
	assert.True(t, pinned.checkWebSocketOrigin(request("http://192.168.1.5:3000")))
	assert.False(t, pinned.checkWebSocketOrigin(request("http://evil.example")))
}

type connectRecorder struct {
	mu      sync.Mutex
	clients []*websocket.Client
}

func (c *connectRecorder) HandleConnect(cl *websocket.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients = append(c.clients, cl)
}

func (c *connectRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

func TestWebSocketUpgradeRegistersAndConnects(t *testing.T) {
	stack := newTestStack(t, true)
	recorder := &connectRecorder{}
	stack.handler.onConnect = recorder

	srv := httptest.NewServer(stack.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	require.Eventually(t, func() bool {
		return stack.hub.GetClientCount() == 1 && recorder.count() == 1
	}, 2*time.Second, 10*time.Millisecond, "client should register and trigger the connect hook")

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return stack.hub.GetClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond, "closing the socket should unregister the client")
}

func TestWebSocketUpgradeRejectsDisallowedOrigin(t *testing.T) {
	stack := newTestStack(t, true)
	stack.handler.WithAllowedOrigins([]string{"http://192.168.1.5:3000"})

	srv := httptest.NewServer(stack.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}

	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	if conn != nil {
		_ = conn.Close()
	}
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
