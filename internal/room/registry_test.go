// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package room

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGeneratesWellFormedCodes(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(true)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		r, err := reg.Create("movie night", false, "fp-admin-0001")
		require.NoError(t, err)

		code := r.Code()
		require.Len(t, code, CodeLength)
		for _, c := range code {
			assert.Contains(t, CodeAlphabet, string(c))
		}
		assert.False(t, seen[code], "codes must be unique")
		seen[code] = true
	}
	assert.Equal(t, 50, reg.Len())
}

func TestGetCaseInsensitive(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(true)
	created, err := reg.Create("movie night", false, "")
	require.NoError(t, err)

	got, ok := reg.Get(strings.ToLower(created.Code()))
	require.True(t, ok)
	assert.Same(t, created, got)

	_, ok = reg.Get("NOSUCH")
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(true)
	created, err := reg.Create("movie night", false, "")
	require.NoError(t, err)

	deleted, err := reg.Delete(strings.ToLower(created.Code()))
	require.NoError(t, err)
	assert.Same(t, created, deleted)

	_, ok := reg.Get(created.Code())
	assert.False(t, ok)

	_, err = reg.Delete(created.Code())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPublicExcludesPrivateAndSorts(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(true)

	first, err := reg.Create("first", false, "")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = reg.Create("hidden", true, "")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := reg.Create("second", false, "")
	require.NoError(t, err)

	second.Join(testMember("conn-1", "fp-viewer-001", "guest"))

	list := reg.ListPublic()
	require.Len(t, list, 2)
	assert.Equal(t, first.Code(), list[0].Code)
	assert.Equal(t, second.Code(), list[1].Code)
	assert.Equal(t, 1, list[1].Viewers)
	for _, summary := range list {
		assert.NotEqual(t, "hidden", summary.Name)
	}
}

func TestSingleRoomMode(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(false)
	require.True(t, reg.SingleRoom())

	legacy, ok := reg.Legacy()
	require.True(t, ok)
	assert.Equal(t, LegacyCode, legacy.Code())

	// The implicit room resolves case-insensitively like any other.
	got, ok := reg.Get("legacy")
	require.True(t, ok)
	assert.Same(t, legacy, got)

	_, err := reg.Create("nope", false, "")
	assert.ErrorIs(t, err, ErrSingleRoom)

	_, err = reg.Delete(LegacyCode)
	assert.ErrorIs(t, err, ErrSingleRoom)

	// Never listed.
	assert.Empty(t, reg.ListPublic())
}

func TestCreateRecordsAdminFingerprint(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(true)
	r, err := reg.Create("movie night", false, "fp-admin-0001")
	require.NoError(t, err)

	fp, ok := r.AdminFingerprint()
	require.True(t, ok)
	assert.Equal(t, "fp-admin-0001", fp)
}
