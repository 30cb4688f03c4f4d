// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package config

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// KVParser is a koanf.Parser for the Sync-Player config file format:
// one "key: value" pair per line, "#" starts a comment, lines without a
// colon are ignored. Values are kept as strings; option readers coerce.
//
//	port: 3000
//	join_mode: reset
//	# chat off for screenings
//	chat_enabled: false
type KVParser struct{}

// NewKVParser returns a key-colon-value parser instance.
func NewKVParser() *KVParser {
	return &KVParser{}
}

// Unmarshal parses the config file bytes into a flat key map.
// It never fails: unparseable lines are simply skipped, matching the
// file format contract.
func (p *KVParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	out := make(map[string]interface{})

	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		line := scanner.Text()

		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}

		out[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan config file: %w", err)
	}

	return out, nil
}

// Marshal renders a key map back to the file format with sorted keys.
func (p *KVParser) Marshal(m map[string]interface{}) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s: %v\n", k, m[k])
	}
	return buf.Bytes(), nil
}
