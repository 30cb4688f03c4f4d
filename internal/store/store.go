// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"

	"github.com/tomtom215/syncplayer/internal/config"
	"github.com/tomtom215/syncplayer/internal/logging"
)

// FileName is the primary store file inside data_dir.
const FileName = "syncdb.json"

// fileState is the on-disk schema of syncdb.json. Encrypted holds the admin
// fingerprint as an iv:authTag:ciphertext hex triple, or null when no admin
// is registered.
type fileState struct {
	Encrypted   *string                      `json:"encrypted"`
	ClientNames map[string]string            `json:"clientNames"`
	BSLMatches  map[string]map[string]string `json:"bslMatches"`
}

// Store is the persistent server state: the encrypted admin fingerprint,
// client display names and BSL manual-match dictionaries, all keyed by
// fingerprint. The in-memory copy is authoritative; every mutation rewrites
// the whole file atomically. A failed write keeps memory intact and is
// healed by the next successful one.
type Store struct {
	mu   sync.Mutex
	path string
	enc  *config.Encryptor

	adminFP     string
	hasAdminFP  bool
	clientNames map[string]string
	matches     map[string]map[string]string
}

// Open loads (or initializes) the store under dataDir. Legacy layouts are
// migrated forward and saved back immediately.
func Open(dataDir string, enc *config.Encryptor) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	s := &Store{
		path:        filepath.Join(dataDir, FileName),
		enc:         enc,
		clientNames: make(map[string]string),
		matches:     make(map[string]map[string]string),
	}

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	migrated, loadErr := s.load(raw)
	if loadErr != nil {
		return nil, fmt.Errorf("failed to load store file %s: %w", s.path, loadErr)
	}
	if migrated {
		logging.Info().Str("path", s.path).Msg("migrated legacy store schema")
		if err := s.save(); err != nil {
			logging.Error().Err(err).Msg("failed to save migrated store")
		}
	}

	return s, nil
}

// load parses raw into memory and reports whether the on-disk schema needed
// migration.
func (s *Store) load(raw []byte) (bool, error) {
	var state fileState
	if err := json.Unmarshal(raw, &state); err != nil {
		// Oldest layout: the whole file is one bare JSON string holding
		// the admin fingerprint.
		var bare string
		if bareErr := json.Unmarshal(raw, &bare); bareErr != nil {
			return false, err
		}
		s.adoptFingerprint(bare)
		return true, nil
	}

	migrated := false
	if state.ClientNames == nil {
		state.ClientNames = make(map[string]string)
		migrated = true
	}
	if state.BSLMatches == nil {
		state.BSLMatches = make(map[string]map[string]string)
		migrated = true
	}

	s.clientNames = state.ClientNames
	s.matches = state.BSLMatches
	if state.Encrypted != nil && *state.Encrypted != "" {
		s.adoptFingerprint(*state.Encrypted)
	}

	return migrated, nil
}

// adoptFingerprint accepts either an encrypted triple or (from legacy
// layouts) a plaintext fingerprint. Undecryptable values are logged and
// treated as absent rather than destroyed.
func (s *Store) adoptFingerprint(stored string) {
	plain, err := s.enc.Decrypt(stored)
	switch {
	case err == nil:
		s.adminFP = plain
		s.hasAdminFP = true
	case errors.Is(err, config.ErrMalformedCiphertext):
		// Legacy layouts stored the fingerprint unencrypted.
		s.adminFP = stored
		s.hasAdminFP = true
	default:
		logging.Warn().Err(err).Msg("stored admin fingerprint is undecryptable, ignoring")
	}
}

// save writes the current state atomically. Callers hold s.mu.
func (s *Store) save() error {
	state := fileState{
		ClientNames: s.clientNames,
		BSLMatches:  s.matches,
	}
	if s.hasAdminFP {
		encrypted, err := s.enc.Encrypt(s.adminFP)
		if err != nil {
			return fmt.Errorf("failed to encrypt admin fingerprint: %w", err)
		}
		state.Encrypted = &encrypted
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store state: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	return nil
}

// persist saves and logs on failure. The in-memory state already carries
// the mutation so callers continue regardless.
func (s *Store) persist() {
	if err := s.save(); err != nil {
		logging.Error().Err(err).Str("path", s.path).Msg("store write failed, keeping in-memory state")
	}
}

// AdminFingerprint returns the persisted admin fingerprint, if any.
func (s *Store) AdminFingerprint() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminFP, s.hasAdminFP
}

// SetAdminFingerprint records fp as the admin identity.
func (s *Store) SetAdminFingerprint(fp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminFP = fp
	s.hasAdminFP = true
	s.persist()
}

// ClearAdminFingerprint removes the admin identity.
func (s *Store) ClearAdminFingerprint() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminFP = ""
	s.hasAdminFP = false
	s.persist()
}

// ClientName returns the stored display name for a fingerprint.
func (s *Store) ClientName(fp string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.clientNames[fp]
	return name, ok
}

// SetClientName stores a display name keyed by fingerprint.
func (s *Store) SetClientName(fp, name string) {
	if fp == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientNames[fp] = name
	s.persist()
}

// Matches returns a copy of the manual-match dictionary for a fingerprint:
// lowercased client filename to lowercased playlist filename.
func (s *Store) Matches(fp string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.matches[fp]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(stored))
	for k, v := range stored {
		out[k] = v
	}
	return out
}

// SetMatch records that clientFile on the client identified by fp plays in
// place of playlistFile. Filenames are lowercased so matching is
// case-insensitive across reconnects.
func (s *Store) SetMatch(fp, clientFile, playlistFile string) {
	if fp == "" || clientFile == "" || playlistFile == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dict, ok := s.matches[fp]
	if !ok {
		dict = make(map[string]string)
		s.matches[fp] = dict
	}
	dict[strings.ToLower(clientFile)] = strings.ToLower(playlistFile)
	s.persist()
}
