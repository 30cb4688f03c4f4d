// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

// Package models defines the shared domain types: the playback clock,
// playlists and their track metadata, room members with their BSL-S²
// state, the channel message envelope with every command and event
// payload, and the HTTP response shapes.
//
// Types here carry no behavior beyond their own bookkeeping; the room
// engine owns locking and sequencing.
package models
