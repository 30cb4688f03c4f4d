// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/syncplayer/internal/config"
)

func TestNewServerTimeouts(t *testing.T) {
	cfg := &config.Config{Port: 3000}
	srv := NewServer(cfg, http.NewServeMux())

	assert.Equal(t, ":3000", srv.Addr)
	assert.NotZero(t, srv.ReadHeaderTimeout)
	assert.NotZero(t, srv.IdleTimeout)
	// WebSocket sessions outlive any sane write deadline.
	assert.Zero(t, srv.WriteTimeout)
}

func TestTLSUsable(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "cert.pem")
	key := filepath.Join(dir, "key.pem")

	cfg := &config.Config{UseHTTPS: false, HTTPSCertFile: cert, HTTPSKeyFile: key}
	assert.False(t, TLSUsable(cfg), "https off")

	cfg.UseHTTPS = true
	assert.False(t, TLSUsable(cfg), "files missing")

	require.NoError(t, os.WriteFile(cert, []byte("cert"), 0o600))
	assert.False(t, TLSUsable(cfg), "key still missing")

	require.NoError(t, os.WriteFile(key, []byte("key"), 0o600))
	assert.True(t, TLSUsable(cfg))
}
