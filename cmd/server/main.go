// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tomtom215/syncplayer/internal/api"
	"github.com/tomtom215/syncplayer/internal/auth"
	"github.com/tomtom215/syncplayer/internal/config"
	"github.com/tomtom215/syncplayer/internal/events"
	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/media"
	"github.com/tomtom215/syncplayer/internal/room"
	"github.com/tomtom215/syncplayer/internal/store"
	"github.com/tomtom215/syncplayer/internal/supervisor"
	"github.com/tomtom215/syncplayer/internal/supervisor/services"
	"github.com/tomtom215/syncplayer/internal/vpn"
	ws "github.com/tomtom215/syncplayer/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Timestamp: true,
	})

	logging.Info().Msg("Starting Sync-Player")

	mode := "single-room"
	if cfg.ServerMode {
		mode = "server"
	}
	logging.Info().
		Str("mode", mode).
		Int("port", cfg.Port).
		Str("media_dir", cfg.MediaDir).
		Str("data_dir", cfg.DataDir).
		Str("join_mode", cfg.JoinMode).
		Msg("Configuration loaded")

	// Encryption key for the persisted admin fingerprint. The key file is
	// created on first boot.
	key, err := config.LoadKey(cfg.DataDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load encryption key")
	}
	encryptor, err := config.NewEncryptor(key)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize encryption")
	}

	// Persistence: server state, per-room admin seats, activity logs.
	st, err := store.Open(cfg.DataDir, encryptor)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	admins, err := store.OpenRoomAdmins(cfg.DataDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open room admin store")
	}
	activity, err := store.OpenRoomLog(cfg.DataDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open room activity log")
	}

	registry := room.NewRegistry(cfg.ServerMode)

	// In single-room mode the admin seat survives restarts: seed the legacy
	// room with the persisted fingerprint so the admin reclaims it on the
	// first reconnect.
	if legacy, ok := registry.Legacy(); ok {
		if fp, recorded := st.AdminFingerprint(); recorded {
			legacy.SetAdminFingerprint(fp)
			logging.Info().Msg("Restored persisted admin fingerprint")
		}
	}

	// TLS is best effort: when requested but the certificate pair is
	// missing, the server still boots over plain HTTP.
	useTLS := api.TLSUsable(cfg)
	scheme := "http"
	if useTLS {
		scheme = "https"
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for the supervisor's event hook
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	wsHub := ws.NewHub()

	// Media services: listing, probing, thumbnails.
	prober := media.NewProber(cfg.MediaDir)
	library := media.NewLibrary(cfg.MediaDir)
	thumbnailer, err := media.NewThumbnailer(prober, filepath.Join(cfg.DataDir, "thumbnails"))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize thumbnailer")
	}

	// Event router: every inbound WebSocket envelope lands here.
	eventsRouter := events.NewRouter(events.Deps{
		Config:   cfg,
		Registry: registry,
		Hub:      wsHub,
		Store:    st,
		Admins:   admins,
		Activity: activity,
		Media:    prober,
	})
	wsHub.SetHandler(eventsRouter)

	// Environment hints for the admin page's share links.
	environment := vpn.NewEnvironment(scheme, cfg.Port)
	logReachability(environment)

	csrf := auth.NewCSRF(&auth.CSRFConfig{
		CookieSecure: useTLS,
		ExemptPaths:  []string{"/ws", "/metrics", "/media/", "/thumbnails/"},
	})
	csrfCleanup := csrf.StartCleanupRoutine(time.Hour)
	defer close(csrfCleanup)

	handler := api.NewHandler(api.Deps{
		Config:      cfg,
		Registry:    registry,
		Hub:         wsHub,
		OnConnect:   eventsRouter,
		Library:     library,
		Prober:      prober,
		Thumbnailer: thumbnailer,
		Environment: environment,
		CSRF:        csrf,
	})

	router := api.NewRouter(cfg, handler, csrf, nil)
	server := api.NewServer(cfg, router.Setup())

	var httpServer services.HTTPServer = server
	if useTLS {
		httpServer = &api.TLSServer{
			Server:   server,
			CertFile: cfg.HTTPSCertFile,
			KeyFile:  cfg.HTTPSKeyFile,
		}
		logging.Info().Str("cert", cfg.HTTPSCertFile).Msg("HTTPS enabled")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	tree.AddPlaybackService(room.NewClockService(registry))
	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, 5*time.Second))
	logging.Info().Str("addr", server.Addr).Str("scheme", scheme).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Sync-Player stopped gracefully")
}

// logReachability prints the URLs other devices can reach the server at and
// warns when only tunnel interfaces are up, which usually means viewers on
// the plain LAN cannot connect.
func logReachability(environment *vpn.Environment) {
	hints := environment.Check()
	for _, u := range hints.LanURLs {
		logging.Info().Str("url", u).Msg("Reachable at")
	}
	if hints.TunnelDetected {
		logging.Info().
			Strs("interfaces", hints.Interfaces).
			Msg("VPN tunnel interface detected; overlay network viewers can join through it")
	}
	if len(hints.LanURLs) == 0 {
		logging.Warn().Msg("No LAN addresses detected; only local connections will work")
	}
}
