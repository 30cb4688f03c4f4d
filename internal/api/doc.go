// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

// Package api provides the HTTP surface: pages, the JSON API, media and
// static file serving, and the WebSocket upgrade that feeds the hub.
//
// Routing uses Chi with production middleware from its ecosystem. The
// global stack tags every request with an ID, logs one structured line per
// request, recovers panics, applies CORS and enforces session-bound CSRF
// on state-changing methods. The JSON API group adds Prometheus
// instrumentation and IP-keyed rate limits; endpoints that spawn
// subprocesses (probing, thumbnailing) carry tighter caps than the rest.
// Loopback clients bypass rate limiting so the host's own admin never gets
// throttled.
//
// Pages come out of the static directory. In server mode / is the lobby
// and /watch/{code} the viewer; in single-room mode / serves the viewer
// directly. /admin (optionally pinned to a room code) serves the console
// and, when data hydration is on, replaces the page's state placeholder
// with the room's live initial state so the first paint needs no socket
// round-trip.
//
// All JSON endpoints answer with their payload directly; errors use the
// {"error": "..."} envelope. Playback state is never cacheable.
package api
