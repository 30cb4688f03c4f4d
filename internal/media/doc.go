// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

/*
Package media wraps the ffmpeg family of subprocesses behind Go APIs the
rest of the server can treat as ordinary, failure-prone calls.

Three components:

  - Prober runs ffprobe to answer track, codec and duration questions.
    Summaries are LRU-cached per filename and the router's MediaSource
    interface is implemented here.

  - Thumbnailer runs ffmpeg to produce 720p JPEG previews for the playlist
    picker, cached on disk under the data directory.

  - Library scans the media directory for the files API, with a short TTL
    cache in front of the filesystem.

All subprocess invocations use exec.CommandContext with explicit argument
vectors (filenames are validated and never interpreted by a shell), carry
timeouts, and run through sony/gobreaker circuit breakers so a missing or
broken binary degrades to empty answers instead of a subprocess storm.
Probe and thumbnail outcomes feed the Prometheus metrics in
internal/metrics.
*/
package media
