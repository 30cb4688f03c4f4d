// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package models

// Track describes one audio or subtitle stream of a playlist entry, as
// probed from the media file.
type Track struct {
	Index    int    `json:"index"`
	Codec    string `json:"codec"`
	Language string `json:"language"`
	Title    string `json:"title"`
	Default  bool   `json:"default"`
}

// TrackSet groups the probed streams of one entry.
type TrackSet struct {
	Audio     []Track `json:"audio"`
	Subtitles []Track `json:"subtitles"`
}

// EmptyTrackSet is what probe failures degrade to: playable, no choices.
func EmptyTrackSet() TrackSet {
	return TrackSet{Audio: []Track{}, Subtitles: []Track{}}
}

// PlaylistEntry is one queued item.
type PlaylistEntry struct {
	// Filename is a bare basename; it never contains path separators.
	Filename string `json:"filename"`

	// IsExternal suppresses track probing (the client streams it itself).
	IsExternal bool `json:"isExternal"`

	Tracks TrackSet `json:"tracks"`

	// SelectedAudioTrack is >= 0; 0 when unset.
	SelectedAudioTrack int `json:"selectedAudioTrack"`

	// SelectedSubtitleTrack is >= -1; -1 means off.
	SelectedSubtitleTrack int `json:"selectedSubtitleTrack"`

	// UsesHEVC hints clients about codec support before they load the file.
	UsesHEVC bool `json:"usesHEVC"`
}

// Playlist is the ordered queue of a room.
type Playlist struct {
	Videos []PlaylistEntry `json:"videos"`

	// CurrentIndex is -1 iff the playlist is empty or not yet started.
	CurrentIndex int `json:"currentIndex"`

	// MainVideoIndex marks the headline entry for client preload hints,
	// -1 when unset.
	MainVideoIndex int `json:"mainVideoIndex"`

	// MainVideoStartTime is where playback begins when entering the main
	// entry, in seconds.
	MainVideoStartTime float64 `json:"mainVideoStartTime"`

	PreloadMainVideo bool `json:"preloadMainVideo"`
}

// NewPlaylist returns an empty, unstarted playlist.
func NewPlaylist() Playlist {
	return Playlist{
		Videos:         []PlaylistEntry{},
		CurrentIndex:   -1,
		MainVideoIndex: -1,
	}
}

// Len returns the number of entries.
func (p *Playlist) Len() int {
	return len(p.Videos)
}

// ValidIndex reports whether i addresses an entry.
func (p *Playlist) ValidIndex(i int) bool {
	return i >= 0 && i < len(p.Videos)
}

// Current returns the active entry, or nil when none is active.
func (p *Playlist) Current() *PlaylistEntry {
	if !p.ValidIndex(p.CurrentIndex) {
		return nil
	}
	return &p.Videos[p.CurrentIndex]
}

// Swap exchanges two entries and remaps CurrentIndex and MainVideoIndex if
// either pointed at a swapped slot.
func (p *Playlist) Swap(from, to int) {
	p.Videos[from], p.Videos[to] = p.Videos[to], p.Videos[from]

	switch p.CurrentIndex {
	case from:
		p.CurrentIndex = to
	case to:
		p.CurrentIndex = from
	}
	switch p.MainVideoIndex {
	case from:
		p.MainVideoIndex = to
	case to:
		p.MainVideoIndex = from
	}
}
