// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

/*
Package cache provides the in-memory caches that keep subprocess and
filesystem work off the request path.

Two shapes live here:

  - Cache is a flat TTL map. The media package uses it to hold the files
    API listing for a short window so a lobby full of browsers refreshing
    does not re-scan the media directory per request.

  - LRUCache is a capacity-bounded least-recently-used cache with TTL.
    The prober keeps ffprobe summaries in one, so track menus and codec
    checks for a playlist of files cost one subprocess each rather than
    one per viewer.

Both are safe for concurrent use and expire lazily on access; Cache also
runs a 5-minute background sweep, and LRUCache offers CleanupExpired for
callers that want to sweep themselves.

Usage:

	c := cache.New(20 * time.Second)
	c.Set("files", listing)
	if v, ok := c.Get("files"); ok {
	    listing := v.(*models.FilesResponse)
	    _ = listing
	}

Neither cache persists anything. A restart starts cold, which is fine for
both consumers: listings rebuild on the next request and probe summaries
rebuild on the next track query.
*/
package cache
