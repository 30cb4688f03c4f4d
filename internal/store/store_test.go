// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package store

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/syncplayer/internal/config"
)

func newTestEncryptor(t *testing.T) *config.Encryptor {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	enc, err := config.NewEncryptor(key)
	require.NoError(t, err)
	return enc
}

func TestOpenEmpty(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir(), newTestEncryptor(t))
	require.NoError(t, err)

	_, ok := s.AdminFingerprint()
	assert.False(t, ok)

	_, ok = s.ClientName("fp-unknown")
	assert.False(t, ok)

	assert.Nil(t, s.Matches("fp-unknown"))
}

func TestAdminFingerprintRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	enc := newTestEncryptor(t)

	s, err := Open(dir, enc)
	require.NoError(t, err)

	s.SetAdminFingerprint("fp-admin-001")

	fp, ok := s.AdminFingerprint()
	require.True(t, ok)
	assert.Equal(t, "fp-admin-001", fp)

	// The file must hold the encrypted triple, never the plaintext.
	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "fp-admin-001")

	var state fileState
	require.NoError(t, json.Unmarshal(raw, &state))
	require.NotNil(t, state.Encrypted)

	// Reopen with the same key and read it back.
	reopened, err := Open(dir, enc)
	require.NoError(t, err)

	fp, ok = reopened.AdminFingerprint()
	require.True(t, ok)
	assert.Equal(t, "fp-admin-001", fp)
}

func TestClearAdminFingerprint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	enc := newTestEncryptor(t)

	s, err := Open(dir, enc)
	require.NoError(t, err)

	s.SetAdminFingerprint("fp-admin-002")
	s.ClearAdminFingerprint()

	_, ok := s.AdminFingerprint()
	assert.False(t, ok)

	reopened, err := Open(dir, enc)
	require.NoError(t, err)
	_, ok = reopened.AdminFingerprint()
	assert.False(t, ok)
}

func TestUndecryptableFingerprintIgnored(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	s, err := Open(dir, newTestEncryptor(t))
	require.NoError(t, err)
	s.SetAdminFingerprint("fp-admin-003")

	// A different key cannot authenticate the stored value.
	reopened, err := Open(dir, newTestEncryptor(t))
	require.NoError(t, err)

	_, ok := reopened.AdminFingerprint()
	assert.False(t, ok)
}

func TestClientNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	enc := newTestEncryptor(t)

	s, err := Open(dir, enc)
	require.NoError(t, err)

	s.SetClientName("fp-viewer-1", "alice")
	s.SetClientName("fp-viewer-2", "bob")
	s.SetClientName("fp-viewer-1", "alice2")

	name, ok := s.ClientName("fp-viewer-1")
	require.True(t, ok)
	assert.Equal(t, "alice2", name)

	reopened, err := Open(dir, enc)
	require.NoError(t, err)
	name, ok = reopened.ClientName("fp-viewer-2")
	require.True(t, ok)
	assert.Equal(t, "bob", name)
}

func TestMatchesLowercasedAndCopied(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir(), newTestEncryptor(t))
	require.NoError(t, err)

	s.SetMatch("fp-viewer-1", "My-Copy.MKV", "Movie.mkv")

	matches := s.Matches("fp-viewer-1")
	require.NotNil(t, matches)
	assert.Equal(t, "movie.mkv", matches["my-copy.mkv"])

	// Mutating the returned map must not touch the store.
	matches["rogue"] = "entry"
	assert.NotContains(t, s.Matches("fp-viewer-1"), "rogue")
}

func TestMigrateBareStringSchema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	enc := newTestEncryptor(t)

	// Oldest layout: the whole file is one bare fingerprint string.
	raw, err := json.Marshal("fp-legacy-admin")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), raw, 0o600))

	s, err := Open(dir, enc)
	require.NoError(t, err)

	fp, ok := s.AdminFingerprint()
	require.True(t, ok)
	assert.Equal(t, "fp-legacy-admin", fp)

	// Migration is saved back in the current schema, now encrypted.
	saved, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	var state fileState
	require.NoError(t, json.Unmarshal(saved, &state))
	require.NotNil(t, state.Encrypted)
	assert.NotContains(t, *state.Encrypted, "fp-legacy-admin")
	assert.NotNil(t, state.ClientNames)
	assert.NotNil(t, state.BSLMatches)
}

func TestMigrateMissingMaps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	enc := newTestEncryptor(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"encrypted": null}`), 0o600))

	s, err := Open(dir, enc)
	require.NoError(t, err)

	// Maps exist after migration; mutations work immediately.
	s.SetClientName("fp-viewer-9", "carol")
	name, ok := s.ClientName("fp-viewer-9")
	require.True(t, ok)
	assert.Equal(t, "carol", name)
}

func TestMigratePlaintextFingerprint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	enc := newTestEncryptor(t)

	// Legacy layout: current schema shape but an unencrypted fingerprint.
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, FileName),
		[]byte(`{"encrypted": "fp-plain-admin", "clientNames": {}, "bslMatches": {}}`),
		0o600,
	))

	s, err := Open(dir, enc)
	require.NoError(t, err)

	fp, ok := s.AdminFingerprint()
	require.True(t, ok)
	assert.Equal(t, "fp-plain-admin", fp)
}

func TestRoomAdmins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	ra, err := OpenRoomAdmins(dir)
	require.NoError(t, err)

	_, ok := ra.RoomAdmin("ABC234")
	assert.False(t, ok)

	ra.SetRoomAdmin("ABC234", "fp-room-admin")

	// Case-insensitive lookup.
	fp, ok := ra.RoomAdmin("abc234")
	require.True(t, ok)
	assert.Equal(t, "fp-room-admin", fp)

	reopened, err := OpenRoomAdmins(dir)
	require.NoError(t, err)
	fp, ok = reopened.RoomAdmin("ABC234")
	require.True(t, ok)
	assert.Equal(t, "fp-room-admin", fp)

	reopened.DeleteRoomAdmin("abc234")
	_, ok = reopened.RoomAdmin("ABC234")
	assert.False(t, ok)
}
