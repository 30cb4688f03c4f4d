// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

// Package store persists server state that must survive restarts: the
// admin fingerprint (encrypted), per-client display names, per-client
// manual file matches, the multi-room admin table, and capped room
// activity logs.
//
// # Layout
//
// Everything lives under the configured data directory:
//
//	syncdb.json       {"encrypted": "iv:tag:ct"|null, "clientNames": {...}, "bslMatches": {...}}
//	roomAdmins.json   {"CODE": {"fingerprint": "...", "savedAt": "..."}}
//	logs/room-CODE.json, logs/general.json
//	secret.key        generated AES key (written by internal/config)
//
// # Write model
//
// Each file has an authoritative in-memory copy guarded by a mutex.
// Mutations update memory first, then rewrite the whole file through
// renameio (temp file, fsync, atomic rename). A failed write is logged and
// the memory copy stands; the next successful write heals the file. Reads
// never touch disk after open.
//
// On open, legacy syncdb layouts (a bare fingerprint string, or objects
// missing the name/match maps) are migrated to the current schema and saved
// back.
package store
