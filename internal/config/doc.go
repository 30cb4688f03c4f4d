// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

// Package config loads and validates the server configuration.
//
// Configuration is layered with koanf: built-in defaults, then an optional
// key-colon-value file (config.txt or SYNC_CONFIG_FILE), then SYNC_-prefixed
// environment variables. An option that fails validation is logged and
// reverted to its default rather than failing startup; the resulting Config
// is immutable for the process lifetime.
//
// The package also owns the admin fingerprint encryption (AES-256-GCM with
// the iv:authTag:ciphertext hex wire format) because the key-sourcing policy
// is configuration: SYNC_ENCRYPTION_KEY or a generated key file in data_dir.
package config
