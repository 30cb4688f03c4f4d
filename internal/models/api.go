// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package models

// RoomSummary is the public view of a room for the lobby and rooms API.
type RoomSummary struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Viewers   int    `json:"viewers"`
	HasAdmin  bool   `json:"hasAdmin"`
	IsPlaying bool   `json:"isPlaying"`
	CreatedAt int64  `json:"createdAt"`
}

// MediaFile is one server-side media file visible to the playlist picker.
type MediaFile struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"modTime"`
}

// FilesResponse lists the media directory.
type FilesResponse struct {
	Files []MediaFile `json:"files"`
}

// TracksResponse reports the probed streams of one file.
type TracksResponse struct {
	Filename  string   `json:"filename"`
	Audio     []Track  `json:"audio"`
	Subtitles []Track  `json:"subtitles"`
	UsesHEVC  bool     `json:"usesHevc"`
	Duration  float64  `json:"duration,omitempty"`
}

// ThumbnailResponse points the picker at a generated preview image. Audio
// files without extractable cover art report isAudio so the client renders
// its own placeholder.
type ThumbnailResponse struct {
	Thumbnail *string `json:"thumbnail"`
	IsAudio   bool    `json:"isAudio,omitempty"`
}

// ServerModeResponse answers the server-mode probe used by clients to pick
// their source strategy.
type ServerModeResponse struct {
	ServerMode    bool `json:"serverMode"`
	ChatEnabled   bool `json:"chatEnabled"`
	DataHydration bool `json:"dataHydration"`
}

// VPNCheckResponse reports tunnel hints and reachable LAN URLs.
type VPNCheckResponse struct {
	TunnelDetected bool     `json:"tunnelDetected"`
	Interfaces     []string `json:"interfaces,omitempty"`
	LanURLs        []string `json:"lanUrls"`
}

// HealthResponse answers the liveness probe.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  int64  `json:"uptime"`
	Rooms   int    `json:"rooms"`
	Clients int    `json:"clients"`
}

// CSRFTokenResponse delivers the session's CSRF token to the page.
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// APIError is the JSON error envelope for HTTP endpoints.
type APIError struct {
	Error string `json:"error"`
}
