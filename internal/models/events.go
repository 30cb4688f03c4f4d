// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package models

import (
	"github.com/goccy/go-json"
)

// Envelope is the wire frame for every channel message, in both directions:
// a tag naming the event and an opaque payload decoded per tag.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope. Marshal failures are a
// programming error and surface as an error payload instead of a panic.
func NewEnvelope(event string, payload interface{}) Envelope {
	if payload == nil {
		return Envelope{Event: event}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		fallback, _ := json.Marshal(ErrorPayload{Code: "ENCODING_ERROR", Message: err.Error()})
		return Envelope{Event: EventError, Data: fallback}
	}
	return Envelope{Event: event, Data: data}
}

// Client -> server commands.
const (
	CmdCreateRoom          = "create-room"
	CmdJoinRoom            = "join-room"
	CmdLeaveRoom           = "leave-room"
	CmdSetPlaylist         = "set-playlist"
	CmdControl             = "control"
	CmdPlaylistJump        = "playlist-jump"
	CmdPlaylistNext        = "playlist-next"
	CmdSkipToNextVideo     = "skip-to-next-video"
	CmdPlaylistReorder     = "playlist-reorder"
	CmdTrackChange         = "track-change"
	CmdAdminRegister       = "bsl-admin-register"
	CmdBSLCheckRequest     = "bsl-check-request"
	CmdBSLGetStatus        = "bsl-get-status"
	CmdBSLFolderSelected   = "bsl-folder-selected"
	CmdBSLManualMatch      = "bsl-manual-match"
	CmdBSLSetDrift         = "bsl-set-drift"
	CmdSetClientName       = "set-client-name"
	CmdGetClientList       = "get-client-list"
	CmdSetDisplayName      = "set-client-display-name"
	CmdDeleteRoom          = "delete-room"
	CmdChatMessage         = "chat-message"
	CmdClientRegister      = "client-register"
	CmdRequestInitialState = "request-initial-state"
	CmdRequestSync         = "request-sync"
	CmdGetConfig           = "get-config"
	CmdGetRooms            = "get-rooms"
)

// Server -> client events.
const (
	EventConfig          = "config"
	EventSync            = "sync"
	EventPlaylistUpdate  = "playlist-update"
	EventPlaylistPos     = "playlist-position"
	EventTrackChange     = "track-change"
	EventInitialState    = "initial-state"
	EventBSLCheckRequest = "bsl-check-request"
	EventBSLMatchResult  = "bsl-match-result"
	EventBSLDriftUpdate  = "bsl-drift-update"
	EventBSLStatusUpdate = "bsl-status-update"
	EventBSLCheckStarted = "bsl-check-started"
	EventClientCount     = "client-count"
	EventChatMessage     = "chat-message"
	EventNameUpdated     = "name-updated"
	EventAdminAuthResult = "admin-auth-result"
	EventAdminError      = "admin-error"
	EventRateLimitError  = "rate-limit-error"
	EventControlRejected = "control-rejected"
	EventClientList      = "client-list"
	EventViewerCount     = "viewer-count"
	EventRoomsUpdated    = "rooms-updated"
	EventRoomDeleted     = "room-deleted"
	EventRoomCreated     = "room-created"
	EventRoomJoined      = "room-joined"
	EventError           = "error"
)

// Control actions inside CmdControl messages. An absent action marks a raw
// client sync push.
const (
	ActionPlayPause   = "playpause"
	ActionSkip        = "skip"
	ActionSeek        = "seek"
	ActionSelectTrack = "selectTrack"
)

// Track kinds for selectTrack and track-change.
const (
	TrackKindAudio    = "audio"
	TrackKindSubtitle = "subtitle"
)

// CreateRoomRequest creates a room and seats the sender as its admin.
type CreateRoomRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	IsPrivate   bool   `json:"isPrivate"`
	Fingerprint string `json:"fingerprint" validate:"required,fingerprint"`
}

// JoinRoomRequest joins an existing room.
type JoinRoomRequest struct {
	RoomCode    string `json:"roomCode" validate:"required,roomcode"`
	Name        string `json:"name" validate:"max=32"`
	Fingerprint string `json:"fingerprint" validate:"required,fingerprint"`
}

// SetPlaylistItem is one requested queue entry; tracks are probed
// server-side.
type SetPlaylistItem struct {
	Filename   string `json:"filename" validate:"required,syncfilename"`
	IsExternal bool   `json:"isExternal"`
}

// SetPlaylistRequest replaces the room playlist.
type SetPlaylistRequest struct {
	Playlist           []SetPlaylistItem `json:"playlist" validate:"required,min=1,max=500,dive"`
	MainVideoIndex     int               `json:"mainVideoIndex" validate:"min=-1"`
	MainVideoStartTime float64           `json:"startTime" validate:"min=0"`
	PreloadMainVideo   bool              `json:"preloadMainVideo"`
}

// ControlRequest carries inline playback controls. Pointer fields separate
// "absent" from zero values; an absent Action marks a raw sync push.
type ControlRequest struct {
	Action string `json:"action,omitempty" validate:"omitempty,oneof=playpause skip seek selectTrack"`

	// playpause
	State *bool `json:"state,omitempty"`

	// skip
	Direction string  `json:"direction,omitempty" validate:"omitempty,oneof=forward backward"`
	Seconds   float64 `json:"seconds,omitempty" validate:"min=0,max=3600"`

	// seek
	Time *float64 `json:"time,omitempty"`

	// selectTrack
	Type       string `json:"type,omitempty" validate:"omitempty,trackkind"`
	TrackIndex *int   `json:"trackIndex,omitempty"`

	// raw sync push
	IsPlaying   *bool    `json:"isPlaying,omitempty"`
	CurrentTime *float64 `json:"currentTime,omitempty"`
}

// PlaylistJumpRequest selects a playlist entry by index.
type PlaylistJumpRequest struct {
	Index int `json:"index" validate:"min=0"`
}

// PlaylistReorderRequest swaps two entries.
type PlaylistReorderRequest struct {
	FromIndex int `json:"fromIndex" validate:"min=0"`
	ToIndex   int `json:"toIndex" validate:"min=0"`
}

// TrackChangeRequest records a per-entry track selection.
type TrackChangeRequest struct {
	VideoIndex int    `json:"videoIndex" validate:"min=0"`
	Type       string `json:"type" validate:"required,trackkind"`
	TrackIndex int    `json:"trackIndex" validate:"min=-1"`
}

// AdminRegisterRequest claims the admin seat, optionally binding a
// fingerprint under the fingerprint lock.
type AdminRegisterRequest struct {
	Fingerprint string `json:"fingerprint,omitempty" validate:"omitempty,fingerprint"`
}

// FolderSelectedRequest reports a client's local folder contents.
type FolderSelectedRequest struct {
	ClientName string           `json:"clientName,omitempty" validate:"max=32"`
	Files      []FileDescriptor `json:"files" validate:"required,max=10000,dive"`
}

// ManualMatchRequest pins one client file to one playlist entry.
type ManualMatchRequest struct {
	ClientConnectionID string `json:"clientConnectionId" validate:"required,max=64"`
	ClientFileName     string `json:"clientFileName" validate:"required,max=512"`
	PlaylistIndex      int    `json:"playlistIndex" validate:"min=0"`
}

// SetDriftRequest stores a per-member clock offset for one entry.
type SetDriftRequest struct {
	ClientFingerprint string  `json:"clientFingerprint" validate:"required,fingerprint"`
	PlaylistIndex     int     `json:"playlistIndex" validate:"min=0"`
	DriftSeconds      float64 `json:"driftSeconds"`
}

// SetClientNameRequest renames a member by connection id.
type SetClientNameRequest struct {
	ClientID string `json:"clientId" validate:"required,max=64"`
	Name     string `json:"name" validate:"required,max=32"`
}

// SetDisplayNameRequest renames a member by fingerprint.
type SetDisplayNameRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required,fingerprint"`
	Name        string `json:"name" validate:"required,max=32"`
}

// ChatMessageRequest is an inbound chat line.
type ChatMessageRequest struct {
	Sender  string `json:"sender" validate:"max=64"`
	Message string `json:"message" validate:"required,max=500"`
}

// ClientRegisterRequest binds a fingerprint to the connection.
type ClientRegisterRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required,fingerprint"`
}

// SyncPayload is the broadcast playback snapshot. LastUpdate is Unix
// milliseconds so clients reconcile against their own wall clock.
type SyncPayload struct {
	IsPlaying     bool    `json:"isPlaying"`
	CurrentTime   float64 `json:"currentTime"`
	LastUpdate    int64   `json:"lastUpdate"`
	AudioTrack    int     `json:"audioTrack"`
	SubtitleTrack int     `json:"subtitleTrack"`
}

// PlaylistPositionPayload announces a jump within an unchanged playlist.
type PlaylistPositionPayload struct {
	CurrentIndex int    `json:"currentIndex"`
	Filename     string `json:"filename"`
}

// TrackChangePayload echoes an applied track selection.
type TrackChangePayload struct {
	VideoIndex int    `json:"videoIndex"`
	Type       string `json:"type"`
	TrackIndex int    `json:"trackIndex"`
}

// ClientConfig is the config subset pushed to clients.
type ClientConfig struct {
	VolumeStep       int    `json:"volumeStep"`
	SkipSeconds      int    `json:"skipSeconds"`
	MaxVolume        int    `json:"maxVolume"`
	SkipIntroSeconds int    `json:"skipIntroSeconds"`
	JoinMode         string `json:"joinMode"`
	ChatEnabled      bool   `json:"chatEnabled"`
	ServerMode       bool   `json:"serverMode"`
	ControlsDisabled bool   `json:"clientControlsDisabled"`
}

// InitialStatePayload hydrates a client (or the admin page) in one shot.
type InitialStatePayload struct {
	Config   ClientConfig       `json:"config"`
	Playlist Playlist           `json:"playlist"`
	Playback SyncPayload        `json:"playback"`
	BSL      BSLStatusPayload   `json:"bsl"`
	Viewers  int                `json:"viewers"`
	RoomCode string             `json:"roomCode,omitempty"`
	RoomName string             `json:"roomName,omitempty"`
}

// BSLVideoRef names one playlist entry in a folder-scan request.
type BSLVideoRef struct {
	Filename string `json:"filename"`
}

// BSLCheckRequestPayload asks a member to report its local folder.
type BSLCheckRequestPayload struct {
	PlaylistVideos []BSLVideoRef `json:"playlistVideos"`
}

// MatchedVideo is one successful pairing in a match result.
type MatchedVideo struct {
	PlaylistIndex int    `json:"playlistIndex"`
	PlaylistFile  string `json:"playlistFile"`
	ClientFile    string `json:"clientFile"`
}

// BSLMatchResultPayload answers a folder report or manual match.
type BSLMatchResultPayload struct {
	MatchedVideos []MatchedVideo `json:"matchedVideos"`
	TotalMatched  int            `json:"totalMatched"`
	TotalPlaylist int            `json:"totalPlaylist"`
}

// BSLDriftUpdatePayload pushes a member's drift table.
type BSLDriftUpdatePayload struct {
	DriftValues map[int]float64 `json:"driftValues"`
}

// BSLVideoStatus is the aggregated per-entry view for the admin.
type BSLVideoStatus struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Active   bool   `json:"active"`
	Matched  int    `json:"matched"`
	Reports  int    `json:"reports"`
}

// BSLClientStatus summarizes one member's report state for the admin.
type BSLClientStatus struct {
	ConnectionID string `json:"connectionId"`
	Fingerprint  string `json:"fingerprint"`
	Name         string `json:"name"`
	Reported     bool   `json:"reported"`
	MatchedCount int    `json:"matchedCount"`
}

// BSLStatusPayload is the admin's aggregated BSL dashboard.
type BSLStatusPayload struct {
	Mode    string            `json:"mode"`
	Videos  []BSLVideoStatus  `json:"videos"`
	Clients []BSLClientStatus `json:"clients"`
}

// BSLCheckStartedPayload acknowledges a fan-out folder scan.
type BSLCheckStartedPayload struct {
	ClientCount int `json:"clientCount"`
}

// CountPayload carries client-count and viewer-count updates.
type CountPayload struct {
	Count int `json:"count"`
}

// ChatMessagePayload is a broadcast chat line; System marks server notices.
type ChatMessagePayload struct {
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	System    bool   `json:"system,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NameUpdatedPayload confirms a display-name change to the affected client.
type NameUpdatedPayload struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
}

// AdminAuthResultPayload answers bsl-admin-register.
type AdminAuthResultPayload struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// AdminErrorPayload rejects an admin-gated command.
type AdminErrorPayload struct {
	Command string `json:"command"`
	Message string `json:"message"`
}

// RateLimitErrorPayload tells an offender when to retry.
type RateLimitErrorPayload struct {
	RetryAfter float64 `json:"retryAfter"`
}

// ControlRejectedPayload explains a refused control message.
type ControlRejectedPayload struct {
	Reason string `json:"reason"`
}

// ClientInfo is one row of the admin's client list.
type ClientInfo struct {
	ConnectionID string `json:"connectionId"`
	Fingerprint  string `json:"fingerprint"`
	Name         string `json:"name"`
	IsAdmin      bool   `json:"isAdmin"`
	JoinedAt     int64  `json:"joinedAt"`
	BSLReported  bool   `json:"bslReported"`
	MatchedCount int    `json:"matchedCount"`
}

// ClientListPayload answers get-client-list.
type ClientListPayload struct {
	Clients []ClientInfo `json:"clients"`
}

// RoomCreatedPayload acknowledges create-room.
type RoomCreatedPayload struct {
	RoomCode string `json:"roomCode"`
	RoomName string `json:"roomName"`
}

// RoomJoinedPayload acknowledges join-room.
type RoomJoinedPayload struct {
	RoomCode string `json:"roomCode"`
	RoomName string `json:"roomName"`
	IsAdmin  bool   `json:"isAdmin"`
	Viewers  int    `json:"viewers"`
}

// RoomDeletedPayload notifies members their room is gone.
type RoomDeletedPayload struct {
	RoomCode string `json:"roomCode"`
}

// RoomsUpdatedPayload pushes the public room list to the lobby.
type RoomsUpdatedPayload struct {
	Rooms []RoomSummary `json:"rooms"`
}

// ErrorPayload is the generic structured failure reply.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
