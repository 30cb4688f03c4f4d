// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package events

import (
	"context"
	"crypto/rand"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/syncplayer/internal/config"
	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/models"
	"github.com/tomtom215/syncplayer/internal/room"
	"github.com/tomtom215/syncplayer/internal/store"
	"github.com/tomtom215/syncplayer/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	// Initialize logging for tests with discard output
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// Browser fingerprints used across the handler tests.
const (
	fpAdmin  = "fp-admin-714298"
	fpViewer = "fp-viewer-305512"
	fpOther  = "fp-other-881027"
)

const readWait = 2 * time.Second

// stubMedia serves track and size lookups from fixed tables and records
// which files were probed.
type stubMedia struct {
	mu     sync.Mutex
	tracks map[string]models.TrackSet
	hevc   map[string]bool
	sizes  map[string]int64
	seen   []string
}

func newStubMedia() *stubMedia {
	return &stubMedia{
		tracks: make(map[string]models.TrackSet),
		hevc:   make(map[string]bool),
		sizes:  make(map[string]int64),
	}
}

func (m *stubMedia) setTracks(filename string, ts models.TrackSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks[filename] = ts
}

func (m *stubMedia) setHEVC(filename string, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hevc[filename] = on
}

func (m *stubMedia) setSize(filename string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes[filename] = size
}

func (m *stubMedia) Tracks(_ context.Context, filename string) models.TrackSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, filename)
	if ts, ok := m.tracks[filename]; ok {
		return ts
	}
	return models.EmptyTrackSet()
}

func (m *stubMedia) UsesHEVC(_ context.Context, filename string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hevc[filename]
}

func (m *stubMedia) FileSize(filename string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	size, ok := m.sizes[filename]
	return size, ok
}

func (m *stubMedia) probed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seen...)
}

func (m *stubMedia) probeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// timerRecorder captures the router's scheduled callbacks so tests decide
// when, and whether, they fire.
type timerRecorder struct {
	mu    sync.Mutex
	calls []timerCall
}

type timerCall struct {
	delay time.Duration
	fn    func()
}

func (rec *timerRecorder) afterFunc(d time.Duration, f func()) *time.Timer {
	rec.mu.Lock()
	rec.calls = append(rec.calls, timerCall{delay: d, fn: f})
	rec.mu.Unlock()
	tm := time.NewTimer(time.Hour)
	tm.Stop()
	return tm
}

func (rec *timerRecorder) count() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.calls)
}

func (rec *timerRecorder) take(t *testing.T, i int) (time.Duration, func()) {
	t.Helper()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Less(t, i, len(rec.calls), "no scheduled call at index %d", i)
	return rec.calls[i].delay, rec.calls[i].fn
}

// testRig wires a live router behind a real WebSocket endpoint. Handlers
// reply through the hub and each connection's write pump, so these tests
// speak the actual wire protocol instead of poking handler internals.
type testRig struct {
	t        *testing.T
	cfg      *config.Config
	registry *room.Registry
	hub      *websocket.Hub
	router   *Router
	store    *store.Store
	admins   *store.RoomAdmins
	activity *store.RoomLog
	media    *stubMedia
	timers   *timerRecorder
	srv      *httptest.Server

	mu         sync.Mutex
	remoteHost string
}

func newTestRig(t *testing.T, mutate func(*config.Config)) *testRig {
	t.Helper()

	cfg := &config.Config{
		Port:                      3000,
		VolumeStep:                5,
		SkipSeconds:               5,
		JoinMode:                  config.JoinModeSync,
		BSLMode:                   config.BSLModeAny,
		BSLAdvancedMatch:          true,
		BSLAdvancedMatchThreshold: 1,
		ChatEnabled:               true,
		MaxVolume:                 100,
		SkipIntroSeconds:          87,
		MediaDir:                  t.TempDir(),
		DataDir:                   t.TempDir(),
	}
	if mutate != nil {
		mutate(cfg)
	}

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	enc, err := config.NewEncryptor(key)
	require.NoError(t, err)

	st, err := store.Open(cfg.DataDir, enc)
	require.NoError(t, err)
	admins, err := store.OpenRoomAdmins(cfg.DataDir)
	require.NoError(t, err)
	activity, err := store.OpenRoomLog(cfg.DataDir)
	require.NoError(t, err)

	registry := room.NewRegistry(cfg.ServerMode)
	hub := websocket.NewHub()
	media := newStubMedia()

	router := NewRouter(Deps{
		Config:   cfg,
		Registry: registry,
		Hub:      hub,
		Store:    st,
		Admins:   admins,
		Activity: activity,
		Media:    media,
	})
	hub.SetHandler(router)

	timers := &timerRecorder{}
	router.afterFunc = timers.afterFunc

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.RunWithContext(ctx) }()

	rig := &testRig{
		t:          t,
		cfg:        cfg,
		registry:   registry,
		hub:        hub,
		router:     router,
		store:      st,
		admins:     admins,
		activity:   activity,
		media:      media,
		timers:     timers,
		remoteHost: "127.0.0.1",
	}

	upgrader := gorillaws.Upgrader{}
	rig.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := websocket.NewClient(hub, conn, rig.host())
		hub.Register <- client
		client.Start()
		router.HandleConnect(client)
	}))
	t.Cleanup(rig.srv.Close)

	return rig
}

func (rig *testRig) host() string {
	rig.mu.Lock()
	defer rig.mu.Unlock()
	return rig.remoteHost
}

// setRemoteHost changes the host attributed to connections dialed from now
// on. The default is a loopback address, which the rate limiter ignores.
func (rig *testRig) setRemoteHost(host string) {
	rig.mu.Lock()
	defer rig.mu.Unlock()
	rig.remoteHost = host
}

func (rig *testRig) legacyRoom() *room.Room {
	rig.t.Helper()
	rm, ok := rig.registry.Legacy()
	require.True(rig.t, ok, "single-room registry must expose the built-in room")
	return rm
}

// wsSession is one connected test client with envelope helpers.
type wsSession struct {
	t    *testing.T
	conn *gorillaws.Conn
}

func (rig *testRig) dial() *wsSession {
	rig.t.Helper()

	url := "ws" + strings.TrimPrefix(rig.srv.URL, "http")
	conn, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(rig.t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	rig.t.Cleanup(func() { _ = conn.Close() })
	return &wsSession{t: rig.t, conn: conn}
}

// dialJoined connects and drains the single-room greeting: the snapshot
// plus both count broadcasts.
func (rig *testRig) dialJoined() *wsSession {
	rig.t.Helper()
	s := rig.dial()
	s.expect(models.EventSync)
	s.expect(models.EventClientCount)
	return s
}

func (s *wsSession) send(event string, payload interface{}) {
	s.t.Helper()
	require.NoError(s.t, s.conn.WriteJSON(models.NewEnvelope(event, payload)))
}

func (s *wsSession) sendRaw(event, data string) {
	s.t.Helper()
	env := models.Envelope{Event: event, Data: json.RawMessage(data)}
	require.NoError(s.t, s.conn.WriteJSON(env))
}

func (s *wsSession) next() models.Envelope {
	s.t.Helper()
	require.NoError(s.t, s.conn.SetReadDeadline(time.Now().Add(readWait)))
	var env models.Envelope
	require.NoError(s.t, s.conn.ReadJSON(&env))
	return env
}

// expectNext asserts the type of the next envelope and returns its payload.
func (s *wsSession) expectNext(event string) json.RawMessage {
	s.t.Helper()
	env := s.next()
	require.Equal(s.t, event, env.Event)
	return env.Data
}

// expect skips envelopes until one carries the wanted event.
func (s *wsSession) expect(event string) json.RawMessage {
	s.t.Helper()
	for i := 0; i < 50; i++ {
		env := s.next()
		if env.Event == event {
			return env.Data
		}
	}
	s.t.Fatalf("gave up waiting for %q", event)
	return nil
}

// expectClosed drains until the server closes the connection and returns
// the read error.
func (s *wsSession) expectClosed() error {
	s.t.Helper()
	require.NoError(s.t, s.conn.SetReadDeadline(time.Now().Add(readWait)))
	for i := 0; i < 50; i++ {
		var env models.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			return err
		}
	}
	s.t.Fatal("connection never closed")
	return nil
}

func mustDecode(t *testing.T, data json.RawMessage, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, dst))
}

// registerAdmin claims the vacant admin seat for s.
func registerAdmin(t *testing.T, s *wsSession) {
	t.Helper()
	s.send(models.CmdAdminRegister, models.AdminRegisterRequest{})
	var result models.AdminAuthResultPayload
	mustDecode(t, s.expectNext(models.EventAdminAuthResult), &result)
	require.True(t, result.Success, "seat claim failed: %s", result.Reason)
}

// installPlaylist replaces the room playlist as the admin and drains the
// two resulting broadcasts.
func installPlaylist(t *testing.T, s *wsSession, filenames ...string) {
	t.Helper()
	items := make([]models.SetPlaylistItem, len(filenames))
	for i, name := range filenames {
		items[i] = models.SetPlaylistItem{Filename: name}
	}
	s.send(models.CmdSetPlaylist, models.SetPlaylistRequest{Playlist: items})
	s.expectNext(models.EventPlaylistUpdate)
	s.expectNext(models.EventSync)
}

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestConnectSingleRoomAutoJoins(t *testing.T) {
	rig := newTestRig(t, nil)
	s := rig.dial()

	var snap models.SyncPayload
	mustDecode(t, s.expectNext(models.EventSync), &snap)
	assert.False(t, snap.IsPlaying, "a fresh room starts paused")
	assert.Zero(t, snap.CurrentTime)
	assert.Equal(t, 0, snap.AudioTrack)
	assert.Equal(t, -1, snap.SubtitleTrack)

	var count models.CountPayload
	mustDecode(t, s.expectNext(models.EventViewerCount), &count)
	assert.Equal(t, 1, count.Count)
	mustDecode(t, s.expectNext(models.EventClientCount), &count)
	assert.Equal(t, 1, count.Count)

	assert.Equal(t, 1, rig.legacyRoom().Viewers())
}

func TestConnectServerModeSendsRoomList(t *testing.T) {
	rig := newTestRig(t, func(cfg *config.Config) { cfg.ServerMode = true })
	rm, err := rig.registry.Create("Movie Night", false, "")
	require.NoError(t, err)

	s := rig.dial()

	var rooms models.RoomsUpdatedPayload
	mustDecode(t, s.expectNext(models.EventRoomsUpdated), &rooms)
	require.Len(t, rooms.Rooms, 1)
	assert.Equal(t, rm.Code(), rooms.Rooms[0].Code)
	assert.Equal(t, "Movie Night", rooms.Rooms[0].Name)
	assert.Zero(t, rooms.Rooms[0].Viewers)
}

func TestDisconnectRemovesMember(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.dialJoined()
	leaver := rig.dialJoined()

	require.Equal(t, 2, rig.legacyRoom().Viewers())
	require.NoError(t, leaver.conn.Close())

	require.Eventually(t, func() bool {
		return rig.legacyRoom().Viewers() == 1
	}, 2*time.Second, 10*time.Millisecond, "a dropped socket should leave the room")
}

func TestUnknownEventIgnored(t *testing.T) {
	rig := newTestRig(t, nil)
	s := rig.dialJoined()

	s.send("telepathy", nil)
	s.send(models.CmdRequestSync, nil)

	// The unknown event produced no reply; the next envelope answers the
	// sync request.
	s.expectNext(models.EventSync)
}

func TestMalformedPayloadRejected(t *testing.T) {
	rig := newTestRig(t, nil)
	s := rig.dialJoined()

	s.sendRaw(models.CmdPlaylistJump, `{"index":"two"}`)

	var perr models.ErrorPayload
	mustDecode(t, s.expectNext(models.EventError), &perr)
	assert.Equal(t, "VALIDATION_ERROR", perr.Code)
	assert.Contains(t, perr.Message, "malformed payload")
}

func TestAdminGateRejectsUnseatedSender(t *testing.T) {
	rig := newTestRig(t, nil)
	s := rig.dialJoined()

	s.send(models.CmdSetPlaylist, models.SetPlaylistRequest{
		Playlist: []models.SetPlaylistItem{{Filename: "alpha.mp4"}},
	})

	var aerr models.AdminErrorPayload
	mustDecode(t, s.expectNext(models.EventAdminError), &aerr)
	assert.Equal(t, models.CmdSetPlaylist, aerr.Command)
	assert.Equal(t, "admin privileges required", aerr.Message)

	// The gate fires before the handler: nothing was probed or installed.
	assert.Zero(t, rig.media.probeCount())
	assert.Zero(t, rig.legacyRoom().PlaylistLen())
}

func TestNotInRoomGuard(t *testing.T) {
	rig := newTestRig(t, func(cfg *config.Config) { cfg.ServerMode = true })
	s := rig.dial()
	s.expectNext(models.EventRoomsUpdated)

	cases := []struct {
		cmd     string
		payload interface{}
	}{
		{models.CmdRequestSync, nil},
		{models.CmdLeaveRoom, nil},
		{models.CmdChatMessage, models.ChatMessageRequest{Message: "hello"}},
		{models.CmdControl, models.ControlRequest{Action: models.ActionPlayPause, State: boolPtr(true)}},
	}
	for _, tc := range cases {
		s.send(tc.cmd, tc.payload)

		var perr models.ErrorPayload
		mustDecode(t, s.expectNext(models.EventError), &perr)
		assert.Equal(t, "NOT_IN_ROOM", perr.Code, "command %q", tc.cmd)
	}
}

func TestValidationRejectsEmptyPayload(t *testing.T) {
	rig := newTestRig(t, func(cfg *config.Config) { cfg.ServerMode = true })
	s := rig.dial()
	s.expectNext(models.EventRoomsUpdated)

	s.send(models.CmdCreateRoom, nil)

	var perr models.ErrorPayload
	mustDecode(t, s.expectNext(models.EventError), &perr)
	assert.Equal(t, "VALIDATION_ERROR", perr.Code)
}

func TestClientConfigProjection(t *testing.T) {
	cfg := &config.Config{
		VolumeStep:             7,
		SkipSeconds:            15,
		MaxVolume:              80,
		SkipIntroSeconds:       90,
		JoinMode:               config.JoinModeReset,
		ChatEnabled:            true,
		ServerMode:             true,
		ClientControlsDisabled: true,
	}

	assert.Equal(t, models.ClientConfig{
		VolumeStep:       7,
		SkipSeconds:      15,
		MaxVolume:        80,
		SkipIntroSeconds: 90,
		JoinMode:         config.JoinModeReset,
		ChatEnabled:      true,
		ServerMode:       true,
		ControlsDisabled: true,
	}, ClientConfigFor(cfg))
}

func TestRateLimitGatesRemoteHosts(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.setRemoteHost("203.0.113.9")

	// Freeze the limiter clock so tokens never refill mid-test. Reserve
	// reads now under the limiter's lock, so the swap takes it too.
	frozen := time.Now()
	rig.router.limiter.mu.Lock()
	rig.router.limiter.now = func() time.Time { return frozen }
	rig.router.limiter.mu.Unlock()

	s := rig.dialJoined()
	for i := 0; i < eventBurst; i++ {
		s.send(models.CmdRequestSync, nil)
	}
	for i := 0; i < eventBurst; i++ {
		s.expectNext(models.EventSync)
	}

	s.send(models.CmdRequestSync, nil)

	var rl models.RateLimitErrorPayload
	mustDecode(t, s.expectNext(models.EventRateLimitError), &rl)
	assert.Equal(t, cooldownPeriod.Seconds(), rl.RetryAfter)
}
