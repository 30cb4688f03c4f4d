// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/syncplayer/internal/logging"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.txt",
	"/etc/syncplayer/config.txt",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "SYNC_CONFIG_FILE"

// envPrefix is prepended to every option name to form its environment
// variable: port -> SYNC_PORT, join_mode -> SYNC_JOIN_MODE.
const envPrefix = "SYNC_"

// Load builds the server configuration from layered sources:
//  1. Defaults (built in)
//  2. Config file (key-colon-value, optional)
//  3. Environment variables with the SYNC_ prefix (highest priority)
//
// Individual options that fail validation are logged and reverted to their
// defaults; Load only fails when an explicitly requested config file cannot
// be read.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath, required, err := findConfigFile()
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), NewKVParser()); err != nil {
			if required {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
			logging.Warn().Err(err).Str("path", configPath).Msg("skipping unreadable config file")
		} else {
			logging.Info().Str("path", configPath).Msg("loaded config file")
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return buildConfig(k, defaults), nil
}

// findConfigFile resolves the config file path. The bool reports whether the
// path was explicitly requested (and therefore must be readable).
func findConfigFile() (string, bool, error) {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", true, fmt.Errorf("config file %s from %s: %w", envPath, ConfigPathEnvVar, err)
		}
		return envPath, true, nil
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path, false, nil
		}
	}

	return "", false, nil
}

// knownOptions maps the environment-variable stem of every recognized option
// to its koanf key. Unknown SYNC_* variables are skipped so unrelated
// environment state never pollutes the config.
var knownOptions = map[string]string{
	"port":                         "port",
	"volume_step":                  "volume_step",
	"skip_seconds":                 "skip_seconds",
	"join_mode":                    "join_mode",
	"use_https":                    "use_https",
	"bsl_s2_mode":                  "bsl_s2_mode",
	"bsl_advanced_match":           "bsl_advanced_match",
	"bsl_advanced_match_threshold": "bsl_advanced_match_threshold",
	"video_autoplay":               "video_autoplay",
	"admin_fingerprint_lock":       "admin_fingerprint_lock",
	"server_mode":                  "server_mode",
	"client_controls_disabled":     "client_controls_disabled",
	"client_sync_disabled":         "client_sync_disabled",
	"chat_enabled":                 "chat_enabled",
	"max_volume":                   "max_volume",
	"skip_intro_seconds":           "skip_intro_seconds",
	"data_hydration":               "data_hydration",
	"media_dir":                    "media_dir",
	"data_dir":                     "data_dir",
	"static_dir":                   "static_dir",
	"https_cert_file":              "https_cert_file",
	"https_key_file":               "https_key_file",
	"log_level":                    "log_level",
	"log_format":                   "log_format",
}

// envTransformFunc maps SYNC_JOIN_MODE -> join_mode and drops everything
// that is not a recognized option (SYNC_CONFIG_FILE and SYNC_ENCRYPTION_KEY
// in particular are not config keys).
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if mapped, ok := knownOptions[key]; ok {
		return mapped
	}
	return ""
}

// buildConfig reads every option with per-option validation: out-of-range or
// unparseable values warn and revert to the default.
func buildConfig(k *koanf.Koanf, def *Config) *Config {
	cfg := *def

	cfg.Port = intOption(k, "port", def.Port, 1024, 49151)
	cfg.VolumeStep = intOption(k, "volume_step", def.VolumeStep, 1, 20)
	cfg.SkipSeconds = intOption(k, "skip_seconds", def.SkipSeconds, 5, 60)
	cfg.JoinMode = enumOption(k, "join_mode", def.JoinMode, JoinModeSync, JoinModeReset)
	cfg.UseHTTPS = boolOption(k, "use_https", def.UseHTTPS)
	cfg.BSLMode = enumOption(k, "bsl_s2_mode", def.BSLMode, BSLModeAny, BSLModeAll)
	cfg.BSLAdvancedMatch = boolOption(k, "bsl_advanced_match", def.BSLAdvancedMatch)
	cfg.BSLAdvancedMatchThreshold = intOption(k, "bsl_advanced_match_threshold", def.BSLAdvancedMatchThreshold, 1, 4)
	cfg.VideoAutoplay = boolOption(k, "video_autoplay", def.VideoAutoplay)
	cfg.AdminFingerprintLock = boolOption(k, "admin_fingerprint_lock", def.AdminFingerprintLock)
	cfg.ServerMode = boolOption(k, "server_mode", def.ServerMode)
	cfg.ClientControlsDisabled = boolOption(k, "client_controls_disabled", def.ClientControlsDisabled)
	cfg.ClientSyncDisabled = boolOption(k, "client_sync_disabled", def.ClientSyncDisabled)
	cfg.ChatEnabled = boolOption(k, "chat_enabled", def.ChatEnabled)
	cfg.MaxVolume = intOption(k, "max_volume", def.MaxVolume, 100, 1000)
	cfg.SkipIntroSeconds = intOption(k, "skip_intro_seconds", def.SkipIntroSeconds, 1, 86400)
	cfg.DataHydration = boolOption(k, "data_hydration", def.DataHydration)

	cfg.MediaDir = stringOption(k, "media_dir", def.MediaDir)
	cfg.DataDir = stringOption(k, "data_dir", def.DataDir)
	cfg.StaticDir = stringOption(k, "static_dir", def.StaticDir)
	cfg.HTTPSCertFile = stringOption(k, "https_cert_file", def.HTTPSCertFile)
	cfg.HTTPSKeyFile = stringOption(k, "https_key_file", def.HTTPSKeyFile)
	cfg.LogLevel = enumOption(k, "log_level", def.LogLevel,
		"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled")
	cfg.LogFormat = enumOption(k, "log_format", def.LogFormat, "console", "json")

	return &cfg
}

// warnRevert logs the standard invalid-option warning.
func warnRevert(key string, value interface{}, def interface{}) {
	logging.Warn().
		Str("option", key).
		Interface("value", value).
		Interface("default", def).
		Msg("invalid config value, reverting to default")
}

// intOption reads an integer option, accepting int, float, and numeric
// string representations, and enforces [min, max].
func intOption(k *koanf.Koanf, key string, def, min, max int) int {
	raw := k.Get(key)
	if raw == nil {
		return def
	}

	var (
		n  int
		ok bool
	)
	switch v := raw.(type) {
	case int:
		n, ok = v, true
	case int64:
		n, ok = int(v), true
	case float64:
		// JSON-style numbers; reject fractional values.
		if v == float64(int(v)) {
			n, ok = int(v), true
		}
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			n, ok = parsed, true
		}
	}

	if !ok || n < min || n > max {
		warnRevert(key, raw, def)
		return def
	}
	return n
}

// boolOption reads a boolean option, accepting bools and the usual string
// spellings (true/false, 1/0, yes/no, on/off).
func boolOption(k *koanf.Koanf, key string, def bool) bool {
	raw := k.Get(key)
	if raw == nil {
		return def
	}

	switch v := raw.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		default:
			if parsed, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v))); err == nil {
				return parsed
			}
		}
	}

	warnRevert(key, raw, def)
	return def
}

// enumOption reads a string option constrained to the allowed set
// (case-insensitive).
func enumOption(k *koanf.Koanf, key, def string, allowed ...string) string {
	raw := k.Get(key)
	if raw == nil {
		return def
	}

	s, ok := raw.(string)
	if ok {
		s = strings.ToLower(strings.TrimSpace(s))
		for _, a := range allowed {
			if s == a {
				return s
			}
		}
	}

	warnRevert(key, raw, def)
	return def
}

// stringOption reads a free-form string option; empty reverts to default.
func stringOption(k *koanf.Koanf, key, def string) string {
	s := strings.TrimSpace(k.String(key))
	if s == "" {
		return def
	}
	return s
}
