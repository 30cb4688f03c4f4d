// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package media

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/syncplayer/internal/cache"
	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/metrics"
	"github.com/tomtom215/syncplayer/internal/models"
)

// listingTTL keeps the files API from re-scanning the media directory on
// every lobby refresh while still noticing dropped-in files quickly.
const listingTTL = 20 * time.Second

const listingKey = "files"

// playableExtensions is the allow-list for the files API. Directories and
// anything else (subtitles, artwork, partial downloads) stay invisible to
// the playlist picker.
var playableExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
	".mov":  true,
	".m4v":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".aac":  true,
}

// Library lists the media directory for the files API. Listings are cached
// for a short TTL; a missing directory degrades to an empty listing so a
// server started before its media mount appears still comes up.
type Library struct {
	mediaDir string
	listings *cache.Cache
}

// NewLibrary creates a library over mediaDir.
func NewLibrary(mediaDir string) *Library {
	return &Library{
		mediaDir: mediaDir,
		listings: cache.New(listingTTL),
	}
}

// Files returns the current media listing, sorted by name.
func (l *Library) Files() *models.FilesResponse {
	if cached, ok := l.listings.Get(listingKey); ok {
		metrics.CacheHits.WithLabelValues("files").Inc()
		return cached.(*models.FilesResponse)
	}
	metrics.CacheMisses.WithLabelValues("files").Inc()

	listing := l.scan()
	l.listings.Set(listingKey, listing)
	return listing
}

// Invalidate drops the cached listing so the next Files call re-scans.
func (l *Library) Invalidate() {
	l.listings.Delete(listingKey)
}

// Playable reports whether the extension of name is on the allow-list.
func Playable(name string) bool {
	return playableExtensions[strings.ToLower(filepath.Ext(name))]
}

func (l *Library) scan() *models.FilesResponse {
	listing := &models.FilesResponse{Files: []models.MediaFile{}}

	entries, err := os.ReadDir(l.mediaDir)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("media_dir", l.mediaDir).
			Msg("media directory not readable, serving empty listing")
		return listing
	}

	for _, entry := range entries {
		if entry.IsDir() || !Playable(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // deleted between ReadDir and Info
		}
		listing.Files = append(listing.Files, models.MediaFile{
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime().UnixMilli(),
		})
	}

	sort.Slice(listing.Files, func(i, j int) bool {
		return listing.Files[i].Name < listing.Files[j].Name
	})

	return listing
}
