// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/syncplayer/internal/auth"
	"github.com/tomtom215/syncplayer/internal/config"
	"github.com/tomtom215/syncplayer/internal/media"
	"github.com/tomtom215/syncplayer/internal/room"
	"github.com/tomtom215/syncplayer/internal/websocket"
)

// testPages are the static pages every stack writes into its temp static
// directory. The admin page carries the hydration placeholder.
var testPages = map[string]string{
	pageIndex:    "<html><body>lobby</body></html>",
	pageWatch:    "<html><body>viewer</body></html>",
	pageAdmin:    "<html><script>window.__SYNC_STATE__ = null</script></html>",
	pageNotFound: "<html><body>nothing here</body></html>",
}

// testStack wires a full HTTP surface against temp directories and a live
// hub. No ffprobe or ffmpeg binaries are needed; probe-backed endpoints
// degrade exactly like they do on a host without them.
type testStack struct {
	cfg      *config.Config
	registry *room.Registry
	hub      *websocket.Hub
	csrf     *auth.CSRF
	handler  *Handler
	router   http.Handler
}

func newTestStack(t *testing.T, serverMode bool) *testStack {
	t.Helper()

	staticDir := t.TempDir()
	mediaDir := t.TempDir()
	cacheDir := t.TempDir()

	for name, body := range testPages {
		require.NoError(t, os.WriteFile(filepath.Join(staticDir, name), []byte(body), 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(mediaDir, "movie.mp4"), []byte("not actually video"), 0o600))

	cfg := &config.Config{
		Port:          3000,
		ServerMode:    serverMode,
		ChatEnabled:   true,
		DataHydration: true,
		JoinMode:      config.JoinModeSync,
		BSLMode:       config.BSLModeAny,
		MediaDir:      mediaDir,
		StaticDir:     staticDir,
		VolumeStep:    5,
		SkipSeconds:   10,
		MaxVolume:     100,
	}

	registry := room.NewRegistry(serverMode)

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.RunWithContext(ctx) }()

	prober := media.NewProber(mediaDir)
	thumbnailer, err := media.NewThumbnailer(prober, cacheDir)
	require.NoError(t, err)

	csrf := auth.NewCSRF(nil)

	handler := NewHandler(Deps{
		Config:      cfg,
		Registry:    registry,
		Hub:         hub,
		Library:     media.NewLibrary(mediaDir),
		Prober:      prober,
		Thumbnailer: thumbnailer,
		CSRF:        csrf,
	})

	return &testStack{
		cfg:      cfg,
		registry: registry,
		hub:      hub,
		csrf:     csrf,
		handler:  handler,
		router:   NewRouter(cfg, handler, csrf, nil).Setup(),
	}
}
