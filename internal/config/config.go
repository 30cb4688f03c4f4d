// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package config

import (
	"fmt"
)

// JoinMode controls what happens to the room clock when a viewer joins.
const (
	// JoinModeSync snaps the late joiner to the current playback position.
	JoinModeSync = "sync"
	// JoinModeReset rewinds the whole room to zero on every join.
	JoinModeReset = "reset"
)

// BSL aggregation modes: how per-member match reports combine into the
// room-level "BSL active" flag for a playlist entry.
const (
	// BSLModeAny marks an entry active when at least one member matched it.
	BSLModeAny = "any"
	// BSLModeAll requires every reporting member to have matched it.
	BSLModeAll = "all"
)

// Config is the validated, immutable server configuration.
// Build one with Load; never mutate it after startup.
type Config struct {
	// Port is the HTTP(S) listening port.
	Port int `koanf:"port"`

	// VolumeStep is the client volume increment in percent.
	VolumeStep int `koanf:"volume_step"`

	// SkipSeconds is the seek delta for skip controls.
	SkipSeconds int `koanf:"skip_seconds"`

	// JoinMode is "sync" or "reset" (see JoinMode constants).
	JoinMode string `koanf:"join_mode"`

	// UseHTTPS enables TLS when the cert and key files exist.
	UseHTTPS bool `koanf:"use_https"`

	// BSLMode aggregates per-member matches: "any" or "all".
	BSLMode string `koanf:"bsl_s2_mode"`

	// BSLAdvancedMatch enables the multi-criteria matcher.
	BSLAdvancedMatch bool `koanf:"bsl_advanced_match"`

	// BSLAdvancedMatchThreshold is the minimum criteria count (1-4).
	BSLAdvancedMatchThreshold int `koanf:"bsl_advanced_match_threshold"`

	// VideoAutoplay sets the initial isPlaying when a playlist is set.
	VideoAutoplay bool `koanf:"video_autoplay"`

	// AdminFingerprintLock records the first admin fingerprint and rejects
	// all others.
	AdminFingerprintLock bool `koanf:"admin_fingerprint_lock"`

	// ServerMode enables multi-room operation. When false the server runs
	// one implicit room.
	ServerMode bool `koanf:"server_mode"`

	// ClientControlsDisabled rejects playback mutations from non-admins.
	ClientControlsDisabled bool `koanf:"client_controls_disabled"`

	// ClientSyncDisabled ignores actionless sync pushes from clients.
	ClientSyncDisabled bool `koanf:"client_sync_disabled"`

	// ChatEnabled allows chat fan-out.
	ChatEnabled bool `koanf:"chat_enabled"`

	// MaxVolume is the client volume ceiling in percent (100-1000).
	MaxVolume int `koanf:"max_volume"`

	// SkipIntroSeconds is the intro-skip hint pushed to clients.
	SkipIntroSeconds int `koanf:"skip_intro_seconds"`

	// DataHydration inlines initial state into the admin page.
	DataHydration bool `koanf:"data_hydration"`

	// MediaDir holds the media files listed by /api/files.
	MediaDir string `koanf:"media_dir"`

	// DataDir holds persistent state: syncdb.json, roomAdmins.json,
	// secret.key, logs/, thumbnails/.
	DataDir string `koanf:"data_dir"`

	// StaticDir holds the web UI assets.
	StaticDir string `koanf:"static_dir"`

	// HTTPSCertFile and HTTPSKeyFile are the TLS cert material paths.
	HTTPSCertFile string `koanf:"https_cert_file"`
	HTTPSKeyFile  string `koanf:"https_key_file"`

	// LogLevel and LogFormat configure the logging package.
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

// defaultConfig returns a Config with every option at its documented default.
// Defaults are applied first, then overridden by the config file and
// environment variables.
func defaultConfig() *Config {
	return &Config{
		Port:                      3000,
		VolumeStep:                5,
		SkipSeconds:               5,
		JoinMode:                  JoinModeSync,
		UseHTTPS:                  false,
		BSLMode:                   BSLModeAny,
		BSLAdvancedMatch:          true,
		BSLAdvancedMatchThreshold: 1,
		VideoAutoplay:             false,
		AdminFingerprintLock:      false,
		ServerMode:                false,
		ClientControlsDisabled:    false,
		ClientSyncDisabled:        false,
		ChatEnabled:               true,
		MaxVolume:                 100,
		SkipIntroSeconds:          87,
		DataHydration:             true,

		MediaDir:      "./media",
		DataDir:       "./data",
		StaticDir:     "./static",
		HTTPSCertFile: "./certs/cert.pem",
		HTTPSKeyFile:  "./certs/key.pem",
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
