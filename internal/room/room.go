// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package room

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/syncplayer/internal/bsl"
	"github.com/tomtom215/syncplayer/internal/models"
)

// Room is one synchronized viewing session: a member set, a playlist, the
// authoritative playback clock, per-member BSL reports and drift offsets,
// and the admin seat.
//
// All state is guarded by one mutex. Methods return value copies so callers
// marshal and fan out without holding the lock; a method that both mutates
// and reports does so atomically so broadcast payloads always reflect a
// consistent state.
type Room struct {
	mu sync.Mutex

	code      string
	name      string
	private   bool
	createdAt time.Time

	// adminConn is the admin's live connection id, empty while the seat is
	// vacant. adminFP survives disconnects.
	adminConn string
	adminFP   string

	members map[string]*models.Member
	order   []string // connection ids in join order

	playlist models.Playlist
	playback models.PlaybackState

	// drift is fingerprint -> playlist index -> seconds. It outlives the
	// member entries so reconnecting viewers keep their offsets.
	drift map[string]map[int]float64
}

// New creates an empty room. The playback clock starts paused at zero.
func New(code, name string, private bool) *Room {
	now := time.Now()
	return &Room{
		code:      code,
		name:      name,
		private:   private,
		createdAt: now,
		members:   make(map[string]*models.Member),
		playlist:  models.NewPlaylist(),
		playback:  models.NewPlaybackState(now),
		drift:     make(map[string]map[int]float64),
	}
}

// Code returns the room code.
func (r *Room) Code() string { return r.code }

// Name returns the room's display name.
func (r *Room) Name() string { return r.name }

// Private reports whether the room is hidden from the public list.
func (r *Room) Private() bool { return r.private }

// CreatedAt returns the creation timestamp.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// Viewers returns the live member count.
func (r *Room) Viewers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// ---------------------------------------------------------------------------
// Membership

// Join adds a member and returns the new viewer count. A member whose
// fingerprint has drift stored in this room gets it back.
func (r *Room) Join(m *models.Member) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[m.ConnectionID]; !exists {
		r.order = append(r.order, m.ConnectionID)
	}
	if m.Fingerprint != "" {
		if stored, ok := r.drift[m.Fingerprint]; ok {
			m.Drift = copyDrift(stored)
		}
	}
	r.members[m.ConnectionID] = m
	return len(r.members)
}

// Leave removes a member. wasAdmin reports whether the departing connection
// held the admin seat; the seat is vacated but the admin fingerprint
// persists for reclaim.
func (r *Room) Leave(connID string) (member models.Member, wasAdmin bool, remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.members[connID]
	if !exists {
		return models.Member{}, false, len(r.members), false
	}
	delete(r.members, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.adminConn == connID {
		r.adminConn = ""
		wasAdmin = true
	}
	return *m, wasAdmin, len(r.members), true
}

// Member returns a copy of one member.
func (r *Room) Member(connID string) (models.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[connID]
	if !ok {
		return models.Member{}, false
	}
	return *m, true
}

// Members returns member copies in join order.
func (r *Room) Members() []models.Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Member, 0, len(r.members))
	for _, id := range r.order {
		if m, ok := r.members[id]; ok {
			out = append(out, *m)
		}
	}
	return out
}

// ConnIDs returns the live connection ids in join order.
func (r *Room) ConnIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ConnIDsByFingerprint returns every live connection bound to fp.
func (r *Room) ConnIDsByFingerprint(fp string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, id := range r.order {
		if m, ok := r.members[id]; ok && m.Fingerprint == fp {
			out = append(out, id)
		}
	}
	return out
}

// BindFingerprint attaches a fingerprint to an existing member and restores
// any drift stored for it.
func (r *Room) BindFingerprint(connID, fp string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[connID]
	if !ok {
		return false
	}
	m.Fingerprint = fp
	if stored, exists := r.drift[fp]; exists {
		m.Drift = copyDrift(stored)
	}
	return true
}

// Rename sets a member's display name and returns the updated copy.
func (r *Room) Rename(connID, name string) (models.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[connID]
	if !ok {
		return models.Member{}, false
	}
	m.Name = name
	return *m, true
}

// RenameByFingerprint renames every member bound to fp and returns the
// updated copies.
func (r *Room) RenameByFingerprint(fp, name string) []models.Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Member
	for _, id := range r.order {
		if m, ok := r.members[id]; ok && m.Fingerprint == fp {
			m.Name = name
			out = append(out, *m)
		}
	}
	return out
}

// ClientList builds the admin's member table.
func (r *Room) ClientList() []models.ClientInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.ClientInfo, 0, len(r.members))
	for _, id := range r.order {
		m, ok := r.members[id]
		if !ok {
			continue
		}
		out = append(out, models.ClientInfo{
			ConnectionID: m.ConnectionID,
			Fingerprint:  m.Fingerprint,
			Name:         m.Name,
			IsAdmin:      id == r.adminConn,
			JoinedAt:     m.JoinedAt.UnixMilli(),
			BSLReported:  m.BSL.Reported,
			MatchedCount: len(m.BSL.Matched),
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Admin seat

// AdminConn returns the admin's connection id while the seat is held.
func (r *Room) AdminConn() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adminConn, r.adminConn != ""
}

// IsAdmin reports whether connID holds the admin seat.
func (r *Room) IsAdmin(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adminConn != "" && r.adminConn == connID
}

// AdminFingerprint returns the room's recorded admin fingerprint.
func (r *Room) AdminFingerprint() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adminFP, r.adminFP != ""
}

// SeatAdmin puts connID in the admin seat; fp (when non-empty) becomes the
// recorded admin fingerprint.
func (r *Room) SeatAdmin(connID, fp string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adminConn = connID
	if fp != "" {
		r.adminFP = fp
	}
}

// SetAdminFingerprint records fp without touching the seat, used when
// loading the persisted admin of a rejoined room.
func (r *Room) SetAdminFingerprint(fp string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adminFP = fp
}

// ---------------------------------------------------------------------------
// Playback

// Snapshot projects the clock to now and renders the sync payload.
func (r *Room) Snapshot() models.SyncPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playback.Snapshot(time.Now())
}

// AdvanceClock folds elapsed wall time into the position. Called from the
// clock service tick; never broadcasts.
func (r *Room) AdvanceClock(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playback.Advance(now)
}

// SetPlaying flips play/pause and returns the resulting snapshot.
func (r *Room) SetPlaying(playing bool) models.SyncPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.playback.SetPlaying(playing, now)
	return r.playback.Snapshot(now)
}

// Seek moves the clock to an absolute position.
func (r *Room) Seek(seconds float64) models.SyncPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.playback.Seek(seconds, now)
	return r.playback.Snapshot(now)
}

// Skip seeks relative to the projected position.
func (r *Room) Skip(deltaSeconds float64) models.SyncPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.playback.Skip(deltaSeconds, now)
	return r.playback.Snapshot(now)
}

// ResetTime rewinds to zero without touching the play flag (reset join
// mode).
func (r *Room) ResetTime() models.SyncPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.playback.Seek(0, now)
	return r.playback.Snapshot(now)
}

// ApplySync applies a raw client sync push. Nil fields stay untouched.
func (r *Room) ApplySync(isPlaying *bool, currentTime *float64) models.SyncPayload {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if currentTime != nil {
		r.playback.Seek(*currentTime, now)
	}
	if isPlaying != nil {
		r.playback.SetPlaying(*isPlaying, now)
	}
	return r.playback.Snapshot(now)
}

// SelectTrack mirrors a track choice into the playback state and, when a
// playlist entry is active, into that entry's stored selection.
func (r *Room) SelectTrack(kind string, trackIndex int) models.SyncPayload {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.applyTrack(r.playlist.CurrentIndex, kind, trackIndex)
	return r.playback.Snapshot(time.Now())
}

// applyTrack records a selection on entry idx (when valid) and mirrors it
// into the live playback state when idx is current. Callers hold r.mu.
func (r *Room) applyTrack(idx int, kind string, trackIndex int) {
	if r.playlist.ValidIndex(idx) {
		entry := &r.playlist.Videos[idx]
		switch kind {
		case models.TrackKindAudio:
			entry.SelectedAudioTrack = trackIndex
		case models.TrackKindSubtitle:
			entry.SelectedSubtitleTrack = trackIndex
		}
	}
	if idx == r.playlist.CurrentIndex {
		switch kind {
		case models.TrackKindAudio:
			r.playback.AudioTrack = trackIndex
		case models.TrackKindSubtitle:
			r.playback.SubtitleTrack = trackIndex
		}
	}
}

// ---------------------------------------------------------------------------
// Playlist

// Playlist returns a copy; the Videos slice is cloned so callers never
// alias room state.
func (r *Room) Playlist() models.Playlist {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playlistCopy()
}

func (r *Room) playlistCopy() models.Playlist {
	pl := r.playlist
	pl.Videos = make([]models.PlaylistEntry, len(r.playlist.Videos))
	copy(pl.Videos, r.playlist.Videos)
	return pl
}

// PlaylistLen returns the number of queued entries.
func (r *Room) PlaylistLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playlist.Len()
}

// CurrentIndex returns the active playlist position, -1 when nothing is
// loaded.
func (r *Room) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playlist.CurrentIndex
}

// ReplacePlaylist installs a new queue: index 0 becomes current, the clock
// rewinds to zero and the play flag follows the autoplay setting. The first
// entry's stored track selections seed the playback state.
func (r *Room) ReplacePlaylist(entries []models.PlaylistEntry, mainIndex int, startTime float64, preload, autoplay bool) (models.Playlist, models.SyncPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pl := models.NewPlaylist()
	pl.Videos = entries
	if len(entries) > 0 {
		pl.CurrentIndex = 0
	}
	if mainIndex >= -1 && mainIndex < len(entries) {
		pl.MainVideoIndex = mainIndex
	}
	pl.MainVideoStartTime = startTime
	pl.PreloadMainVideo = preload
	r.playlist = pl

	now := time.Now()
	r.playback = models.NewPlaybackState(now)
	r.playback.IsPlaying = autoplay
	if current := r.playlist.Current(); current != nil {
		r.playback.AudioTrack = current.SelectedAudioTrack
		r.playback.SubtitleTrack = current.SelectedSubtitleTrack
	}

	return r.playlistCopy(), r.playback.Snapshot(now)
}

// JumpTo makes idx current, rewinds the clock and adopts the entry's track
// selections.
func (r *Room) JumpTo(idx int) (models.PlaylistPositionPayload, models.SyncPayload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jumpLocked(idx)
}

// NextVideo advances to the following entry; at the tail it reports false.
func (r *Room) NextVideo() (models.PlaylistPositionPayload, models.SyncPayload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jumpLocked(r.playlist.CurrentIndex + 1)
}

func (r *Room) jumpLocked(idx int) (models.PlaylistPositionPayload, models.SyncPayload, bool) {
	if !r.playlist.ValidIndex(idx) {
		return models.PlaylistPositionPayload{}, models.SyncPayload{}, false
	}
	r.playlist.CurrentIndex = idx
	entry := r.playlist.Videos[idx]

	now := time.Now()
	r.playback.Seek(0, now)
	r.playback.AudioTrack = entry.SelectedAudioTrack
	r.playback.SubtitleTrack = entry.SelectedSubtitleTrack

	pos := models.PlaylistPositionPayload{CurrentIndex: idx, Filename: entry.Filename}
	return pos, r.playback.Snapshot(now), true
}

// Reorder swaps two entries, remapping the current and main indexes when
// they pointed at either slot.
func (r *Room) Reorder(from, to int) (models.Playlist, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.playlist.ValidIndex(from) || !r.playlist.ValidIndex(to) {
		return models.Playlist{}, false
	}
	r.playlist.Swap(from, to)
	return r.playlistCopy(), true
}

// ChangeTrack records a per-entry selection. current reports whether the
// entry is the one playing now, in which case the returned snapshot carries
// the mirrored state.
func (r *Room) ChangeTrack(videoIndex int, kind string, trackIndex int) (snapshot models.SyncPayload, current, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.playlist.ValidIndex(videoIndex) {
		return models.SyncPayload{}, false, false
	}
	r.applyTrack(videoIndex, kind, trackIndex)
	return r.playback.Snapshot(time.Now()), videoIndex == r.playlist.CurrentIndex, true
}

// ---------------------------------------------------------------------------
// BSL reports and drift

// SetReport stores a member's folder-scan result.
func (r *Room) SetReport(connID string, report models.BSLReport) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[connID]
	if !ok {
		return false
	}
	m.BSL = report
	return true
}

// SetManualMatch overrides one match on a member's report and returns the
// member copy carrying the updated report.
func (r *Room) SetManualMatch(connID string, playlistIndex int, clientFile string) (models.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[connID]
	if !ok || !r.playlist.ValidIndex(playlistIndex) {
		return models.Member{}, false
	}
	if m.BSL.Matched == nil {
		m.BSL.Matched = make(map[int]string)
	}
	m.BSL.Matched[playlistIndex] = clientFile
	m.BSL.Reported = true
	return *m, true
}

// PlaylistFilename resolves an index to its entry filename.
func (r *Room) PlaylistFilename(idx int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.playlist.ValidIndex(idx) {
		return "", false
	}
	return r.playlist.Videos[idx].Filename, true
}

// SetDrift clamps and stores a drift offset for fp at playlist index idx,
// mirrored into every live member bound to fp. Returns the clamped value.
func (r *Room) SetDrift(fp string, idx int, seconds float64) float64 {
	clamped := models.ClampDrift(seconds)

	r.mu.Lock()
	defer r.mu.Unlock()

	table, ok := r.drift[fp]
	if !ok {
		table = make(map[int]float64)
		r.drift[fp] = table
	}
	table[idx] = clamped

	for _, m := range r.members {
		if m.Fingerprint != fp {
			continue
		}
		if m.Drift == nil {
			m.Drift = make(map[int]float64)
		}
		m.Drift[idx] = clamped
	}
	return clamped
}

// DriftFor returns a copy of fp's drift table.
func (r *Room) DriftFor(fp string) map[int]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.drift[fp]
	if !ok {
		return map[int]float64{}
	}
	return copyDrift(stored)
}

// UnreportedNonAdmins lists connections that should receive a folder-scan
// request: members that are not the admin and have not reported yet.
func (r *Room) UnreportedNonAdmins() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, id := range r.order {
		m, ok := r.members[id]
		if !ok || id == r.adminConn || m.BSL.Reported {
			continue
		}
		out = append(out, id)
	}
	return out
}

// BSLStatus aggregates all member reports into the admin dashboard payload.
func (r *Room) BSLStatus(mode string) models.BSLStatusPayload {
	r.mu.Lock()
	defer r.mu.Unlock()

	reports := make([]models.BSLReport, 0, len(r.members))
	clients := make([]models.BSLClientStatus, 0, len(r.members))
	for _, id := range r.order {
		m, ok := r.members[id]
		if !ok {
			continue
		}
		reports = append(reports, m.BSL)
		clients = append(clients, models.BSLClientStatus{
			ConnectionID: m.ConnectionID,
			Fingerprint:  m.Fingerprint,
			Name:         m.Name,
			Reported:     m.BSL.Reported,
			MatchedCount: len(m.BSL.Matched),
		})
	}

	active := bsl.Aggregate(reports, r.playlist.Len(), mode)

	videos := make([]models.BSLVideoStatus, r.playlist.Len())
	for idx := range r.playlist.Videos {
		matched := 0
		reporting := 0
		for _, rep := range reports {
			if !rep.Reported {
				continue
			}
			reporting++
			if _, ok := rep.Matched[idx]; ok {
				matched++
			}
		}
		videos[idx] = models.BSLVideoStatus{
			Index:    idx,
			Filename: r.playlist.Videos[idx].Filename,
			Active:   active[idx],
			Matched:  matched,
			Reports:  reporting,
		}
	}

	return models.BSLStatusPayload{Mode: mode, Videos: videos, Clients: clients}
}

// Summary renders the public-lobby view of the room.
func (r *Room) Summary() models.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	return models.RoomSummary{
		Code:      r.code,
		Name:      r.name,
		Viewers:   len(r.members),
		HasAdmin:  r.adminConn != "",
		IsPlaying: r.playback.IsPlaying,
		CreatedAt: r.createdAt.UnixMilli(),
	}
}

func copyDrift(in map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// sortSummaries orders room summaries by creation time for stable lobby
// listings.
func sortSummaries(summaries []models.RoomSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt == summaries[j].CreatedAt {
			return summaries[i].Code < summaries[j].Code
		}
		return summaries[i].CreatedAt < summaries[j].CreatedAt
	})
}
