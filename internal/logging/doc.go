// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

// Package logging provides centralized zerolog-based structured logging.
//
// The package exposes a global logger configured once at startup plus
// package-level event starters, so call sites stay one line:
//
//	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
//	logging.Info().Str("room", code).Msg("room created")
//	logging.Err(err).Msg("persist failed")
//
// Console output is the default because the server typically runs in a
// terminal on a LAN host; JSON output is available for service deployments.
//
// Request-scoped logging flows through context: the request-ID middleware
// stores an ID with ContextWithRequestID and handlers retrieve an annotated
// logger with Ctx(ctx).
//
// The slog adapter (NewSlogLogger) bridges zerolog to libraries that speak
// log/slog, which the suture supervision tree requires.
//
// Always terminate log chains with .Msg() or .Send(); a dangling chain is
// never emitted.
package logging
