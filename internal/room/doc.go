// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

// Package room holds the live session state: the registry of rooms, each
// room's members, playlist, drift tables and authoritative playback clock,
// and the clock service that keeps every room's position current.
//
// # The clock model
//
// A room's playback position is virtual: `currentTime` plus, while playing,
// the wall time elapsed since `lastUpdate`. The ClockService folds elapsed
// time in every 5 seconds so the stored position never drifts far from the
// projected one, but ticks are silent. Clients only hear position through
// `sync` snapshots emitted when a command mutates state; each snapshot
// carries the projected position and a Unix-millisecond server stamp.
//
// # Locking
//
// Each Room guards its state with one mutex; methods that mutate and report
// do both under the same acquisition so fan-out payloads are consistent.
// The registry's lock only protects the room table. No two rooms share
// mutable state, so a stuck room cannot stall another.
package room
