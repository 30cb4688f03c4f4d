// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

/*
Package main is the entry point for the Sync-Player server application.

Sync-Player keeps a group of viewers watching the same media timeline in
lockstep. One admin drives playback (play, pause, seek, playlist edits) and
every connected viewer follows the shared clock, whether they stream the
file from this server or play a local copy (BSL-S²).

# Application Architecture

The server implements a layered architecture with Suture v4 process supervision:

	RootSupervisor ("syncplayer")
	├── PlaybackSupervisor ("playback-layer")
	│   └── Room Clock (advances playing rooms once per second)
	├── MessagingSupervisor ("messaging-layer")
	│   └── WebSocket Hub (client registry and broadcast fan-out)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (pages, JSON API, media, WebSocket upgrade)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and a config file
 2. Logging: zerolog with JSON/console output modes
 3. Encryption: AES-256-GCM key for the persisted admin fingerprint
 4. Stores: server state, per-room admin seats, room activity logs
 5. Room Registry: single shared room, or many rooms in server mode
 6. Media: library listing, ffprobe track probing, ffmpeg thumbnails
 7. Event Router: WebSocket command dispatch and reconciliation
 8. CSRF: session cookies and per-session tokens for the JSON API
 9. Supervisor Tree: Suture v4 process supervision
 10. HTTP Server: Chi router with middleware stack

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Server
	SYNC_PORT=3000               # HTTP server port
	SYNC_SERVER_MODE=false       # true enables multi-room operation
	SYNC_LOG_LEVEL=info          # trace, debug, info, warn, error
	SYNC_LOG_FORMAT=console      # json or console

	# Paths
	SYNC_MEDIA_DIR=./media       # flat directory of media files
	SYNC_DATA_DIR=./data         # persisted state, thumbnails, logs
	SYNC_STATIC_DIR=./static     # web client assets

	# Playback behavior
	SYNC_JOIN_MODE=sync          # sync snaps late joiners, reset rewinds the room
	SYNC_VOLUME_STEP=5
	SYNC_SKIP_SECONDS=5
	SYNC_SKIP_INTRO_SECONDS=87
	SYNC_MAX_VOLUME=100
	SYNC_CHAT_ENABLED=true

	# BSL-S² local-file substitution
	SYNC_BSL_S2_MODE=any         # any or all member matches activate an entry
	SYNC_BSL_ADVANCED_MATCH=true
	SYNC_BSL_ADVANCED_MATCH_THRESHOLD=1

	# Admin seat
	SYNC_ADMIN_FINGERPRINT_LOCK=false

	# HTTPS (optional)
	SYNC_USE_HTTPS=false
	SYNC_HTTPS_CERT_FILE=./certs/cert.pem
	SYNC_HTTPS_KEY_FILE=./certs/key.pem

Two variables bypass the koanf pipeline: SYNC_CONFIG_FILE points at an
alternate config file, and SYNC_ENCRYPTION_KEY supplies the fingerprint
encryption key (otherwise a key file is generated under the data dir).

# Single-Room and Server Mode

By default the server hosts one shared room and the landing page goes
straight to the viewer. Server mode (SYNC_SERVER_MODE=true) adds a lobby
where anyone can create rooms; each room gets a six-character join code
and its own admin seat.

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Closes WebSocket client connections
 3. Waits for in-flight requests (5s timeout)
 4. Stops the room clock
 5. Reports any services that failed to stop

# Usage Examples

Development:

	export SYNC_MEDIA_DIR=~/videos
	go run ./cmd/server

Multi-room server with HTTPS:

	export SYNC_SERVER_MODE=true
	export SYNC_USE_HTTPS=true
	export SYNC_HTTPS_CERT_FILE=/etc/syncplayer/cert.pem
	export SYNC_HTTPS_KEY_FILE=/etc/syncplayer/key.pem
	./syncplayer

Docker:

	docker run -d \
	  -v /srv/movies:/app/media \
	  -v syncplayer-data:/app/data \
	  -e SYNC_SERVER_MODE=true \
	  -p 3000:3000 \
	  ghcr.io/tomtom215/syncplayer

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/api: HTTP handlers and routing
  - internal/events: WebSocket command handling
  - internal/room: Room state and the shared clock
*/
package main
