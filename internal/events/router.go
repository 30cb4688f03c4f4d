// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package events

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/syncplayer/internal/config"
	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/metrics"
	"github.com/tomtom215/syncplayer/internal/models"
	"github.com/tomtom215/syncplayer/internal/room"
	"github.com/tomtom215/syncplayer/internal/store"
	"github.com/tomtom215/syncplayer/internal/validation"
	"github.com/tomtom215/syncplayer/internal/websocket"
)

const (
	// autoplayDefeatDelay is how long after a playlist install the paused
	// snapshot is re-broadcast, so players whose browser blocked autoplay
	// land on the same paused state as everyone else.
	autoplayDefeatDelay = 500 * time.Millisecond

	// rejectionGrace keeps a connection with a rejected admin fingerprint
	// open just long enough for the auth result to flush before the close
	// frame goes out.
	rejectionGrace = time.Second

	// nextDebounceWindow suppresses duplicate playlist-next signals. A room
	// full of synced players reports the same video ending at nearly the
	// same instant; only the first report should advance the index.
	nextDebounceWindow = 2 * time.Second
)

// Dispatch outcomes, recorded as the events_total outcome label.
const (
	outcomeOK          = "ok"
	outcomeInvalid     = "invalid"
	outcomeRejected    = "rejected"
	outcomeRateLimited = "rate_limited"
	outcomeUnknown     = "unknown"
	outcomeError       = "error"
)

// adminGated lists the commands only the seated admin may issue.
// playlist-next is deliberately absent: any member's player may report the
// end of a video. create-room and bsl-admin-register stay open because they
// are how the seat is established in the first place.
var adminGated = map[string]struct{}{
	models.CmdSetPlaylist:     {},
	models.CmdPlaylistReorder: {},
	models.CmdPlaylistJump:    {},
	models.CmdTrackChange:     {},
	models.CmdSkipToNextVideo: {},
	models.CmdBSLCheckRequest: {},
	models.CmdBSLGetStatus:    {},
	models.CmdBSLManualMatch:  {},
	models.CmdBSLSetDrift:     {},
	models.CmdSetClientName:   {},
	models.CmdGetClientList:   {},
	models.CmdSetDisplayName:  {},
	models.CmdDeleteRoom:      {},
}

// MediaSource supplies probe metadata and on-disk sizes for playlist
// entries. The media package implements it against ffprobe; tests install
// stubs. Implementations must degrade to empty results on failure, never
// block playlist installation: a file the prober cannot read still plays.
type MediaSource interface {
	// Tracks lists the embedded audio and subtitle streams of a file under
	// the media directory.
	Tracks(ctx context.Context, filename string) models.TrackSet

	// UsesHEVC reports whether the file's video stream is HEVC, which some
	// clients cannot decode in hardware.
	UsesHEVC(ctx context.Context, filename string) bool

	// FileSize reports the size of the server's copy of filename.
	FileSize(filename string) (int64, bool)
}

// Deps bundles the collaborators a Router needs.
type Deps struct {
	Config   *config.Config
	Registry *room.Registry
	Hub      *websocket.Hub
	Store    *store.Store
	Admins   *store.RoomAdmins
	Activity *store.RoomLog
	Media    MediaSource
}

// Router dispatches inbound envelopes to command handlers. It implements
// websocket.MessageHandler: HandleMessage runs on each connection's read
// goroutine, HandleDisconnect on the hub goroutine. All shared state it
// touches (registry, rooms, store) carries its own locking; the router adds
// only the per-room fan-out locks that keep broadcast order aligned with
// mutation order.
type Router struct {
	cfg      *config.Config
	registry *room.Registry
	hub      *websocket.Hub
	store    *store.Store
	admins   *store.RoomAdmins
	activity *store.RoomLog
	media    MediaSource
	limiter  *RateLimiter

	fanoutMu sync.Mutex
	fanout   map[string]*roomOrder

	// afterFunc schedules the autoplay-defeat and rejection-grace timers.
	// Swapped out by tests.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// roomOrder carries one room's fan-out lock and the debounce state for
// playlist-next: the index the last advance landed on and when it happened.
// Everything inside is guarded by mu.
type roomOrder struct {
	mu         sync.Mutex
	lastNextTo int
	lastNextAt time.Time
}

// NewRouter wires a router from its dependencies. Pass the result to
// hub.SetHandler before the hub starts serving.
func NewRouter(d Deps) *Router {
	return &Router{
		cfg:       d.Config,
		registry:  d.Registry,
		hub:       d.Hub,
		store:     d.Store,
		admins:    d.Admins,
		activity:  d.Activity,
		media:     d.Media,
		limiter:   NewRateLimiter(),
		fanout:    make(map[string]*roomOrder),
		afterFunc: time.AfterFunc,
	}
}

// HandleConnect runs after a connection registers with the hub. In
// single-room mode every connection lands in the built-in room immediately;
// in server mode the newcomer idles in the lobby and receives the public
// room list for hydration.
func (r *Router) HandleConnect(c *websocket.Client) {
	metrics.TrackConnection(true)

	if r.registry.SingleRoom() {
		if legacy, ok := r.registry.Legacy(); ok {
			r.addMember(c, legacy, "", "", nil)
		}
		return
	}
	r.reply(c, models.EventRoomsUpdated, models.RoomsUpdatedPayload{Rooms: r.registry.ListPublic()})
}

// HandleMessage is the entry point for every inbound envelope. It applies
// the rate limit, the admin gate and payload validation, then dispatches to
// the command handler. Outcomes are recorded whatever path the message
// takes, including panics.
func (r *Router) HandleMessage(c *websocket.Client, env models.Envelope) {
	metrics.WSMessagesReceived.Inc()
	start := time.Now()
	outcome := outcomeError

	command := env.Event
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().
				Interface("panic", rec).
				Str("command", command).
				Str("connection_id", c.ConnectionID()).
				Bytes("stack", debug.Stack()).
				Msg("Recovered panic in event handler")
			r.replyError(c, "INTERNAL_ERROR", "internal server error")
			outcome = outcomeError
		}
		label := command
		if outcome == outcomeUnknown {
			// Client-controlled tags must not become metric label values.
			label = "unknown"
		}
		metrics.RecordEvent(label, outcome, time.Since(start))
	}()

	if retryAfter, limited := r.limiter.Reserve(c.RemoteHost()); limited {
		r.reply(c, models.EventRateLimitError, models.RateLimitErrorPayload{RetryAfter: retryAfter.Seconds()})
		outcome = outcomeRateLimited
		return
	}

	if _, gated := adminGated[command]; gated && !r.isAdmin(c) {
		logging.Debug().
			Str("command", command).
			Str("connection_id", c.ConnectionID()).
			Msg("Rejected non-admin command")
		r.reply(c, models.EventAdminError, models.AdminErrorPayload{
			Command: command,
			Message: "admin privileges required",
		})
		outcome = outcomeRejected
		return
	}

	outcome = r.dispatch(c, env)

	if outcome == outcomeOK {
		if code := c.Room(); code != "" {
			r.activity.Append(code, command, c.ConnectionID())
		}
	}
}

// HandleDisconnect runs on the hub goroutine after the connection left the
// delivery indexes. The client's room assignment is still readable here, so
// membership and counts can be cleaned up.
func (r *Router) HandleDisconnect(c *websocket.Client) {
	metrics.TrackConnection(false)
	r.removeMember(c)
}

func (r *Router) dispatch(c *websocket.Client, env models.Envelope) string {
	switch env.Event {
	case models.CmdCreateRoom:
		return r.handleCreateRoom(c, env.Data)
	case models.CmdJoinRoom:
		return r.handleJoinRoom(c, env.Data)
	case models.CmdLeaveRoom:
		return r.handleLeaveRoom(c)
	case models.CmdDeleteRoom:
		return r.handleDeleteRoom(c)
	case models.CmdGetRooms:
		return r.handleGetRooms(c)
	case models.CmdSetPlaylist:
		return r.handleSetPlaylist(c, env.Data)
	case models.CmdControl:
		return r.handleControl(c, env.Data)
	case models.CmdPlaylistJump:
		return r.handlePlaylistJump(c, env.Data)
	case models.CmdPlaylistNext, models.CmdSkipToNextVideo:
		return r.handlePlaylistNext(c)
	case models.CmdPlaylistReorder:
		return r.handlePlaylistReorder(c, env.Data)
	case models.CmdTrackChange:
		return r.handleTrackChange(c, env.Data)
	case models.CmdAdminRegister:
		return r.handleAdminRegister(c, env.Data)
	case models.CmdBSLCheckRequest:
		return r.handleBSLCheckRequest(c)
	case models.CmdBSLFolderSelected:
		return r.handleBSLFolderSelected(c, env.Data)
	case models.CmdBSLGetStatus:
		return r.handleBSLGetStatus(c)
	case models.CmdBSLManualMatch:
		return r.handleBSLManualMatch(c, env.Data)
	case models.CmdBSLSetDrift:
		return r.handleBSLSetDrift(c, env.Data)
	case models.CmdSetClientName:
		return r.handleSetClientName(c, env.Data)
	case models.CmdSetDisplayName:
		return r.handleSetDisplayName(c, env.Data)
	case models.CmdGetClientList:
		return r.handleGetClientList(c)
	case models.CmdChatMessage:
		return r.handleChatMessage(c, env.Data)
	case models.CmdClientRegister:
		return r.handleClientRegister(c, env.Data)
	case models.CmdRequestInitialState:
		return r.handleRequestInitialState(c)
	case models.CmdRequestSync:
		return r.handleRequestSync(c)
	case models.CmdGetConfig:
		return r.handleGetConfig(c)
	default:
		logging.Debug().
			Str("event", env.Event).
			Str("connection_id", c.ConnectionID()).
			Msg("Dropping unknown event")
		return outcomeUnknown
	}
}

// decode unmarshals a command payload into dst and validates it. A missing
// payload decodes as an empty object so required-field validation produces
// the error, not the JSON parser.
func decode(data json.RawMessage, dst interface{}) error {
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		return verr
	}
	return nil
}

// rejectInvalid reports a validation failure back to the sender and returns
// the invalid outcome for the metrics label.
func (r *Router) rejectInvalid(c *websocket.Client, command string, err error) string {
	logging.Debug().
		Err(err).
		Str("command", command).
		Str("connection_id", c.ConnectionID()).
		Msg("Rejected invalid payload")
	r.replyError(c, "VALIDATION_ERROR", err.Error())
	return outcomeInvalid
}

// reply unicasts an event to a single connection.
func (r *Router) reply(c *websocket.Client, event string, payload interface{}) {
	if c.Send(models.NewEnvelope(event, payload)) {
		metrics.WSMessagesSent.Inc()
		return
	}
	metrics.WSSendDrops.Inc()
	logging.Warn().
		Str("event", event).
		Str("connection_id", c.ConnectionID()).
		Msg("Dropped reply to saturated connection")
}

func (r *Router) replyError(c *websocket.Client, code, message string) {
	r.reply(c, models.EventError, models.ErrorPayload{Code: code, Message: message})
}

// broadcastRoom fans an event out to every member of a room. Call inside
// withRoomOrder when the payload is a state snapshot.
func (r *Router) broadcastRoom(code, event string, payload interface{}) {
	r.hub.BroadcastRoom(code, models.NewEnvelope(event, payload))
	metrics.RecordBroadcast(event)
}

// pushLobbyRooms refreshes the public room list for lobby connections.
// No-op in single-room mode, where there is no lobby.
func (r *Router) pushLobbyRooms() {
	if r.registry.SingleRoom() {
		return
	}
	r.hub.BroadcastLobby(models.NewEnvelope(models.EventRoomsUpdated, models.RoomsUpdatedPayload{
		Rooms: r.registry.ListPublic(),
	}))
	metrics.RecordBroadcast(models.EventRoomsUpdated)
}

// fanoutCounts broadcasts the room's viewer and client counts. Call inside
// withRoomOrder so counts interleave correctly with membership changes.
func (r *Router) fanoutCounts(rm *room.Room) {
	count := models.CountPayload{Count: rm.Viewers()}
	r.broadcastRoom(rm.Code(), models.EventViewerCount, count)
	r.broadcastRoom(rm.Code(), models.EventClientCount, count)
}

// roomOf resolves the sender's current room.
func (r *Router) roomOf(c *websocket.Client) (*room.Room, bool) {
	code := c.Room()
	if code == "" {
		return nil, false
	}
	return r.registry.Get(code)
}

func (r *Router) isAdmin(c *websocket.Client) bool {
	rm, ok := r.roomOf(c)
	return ok && rm.IsAdmin(c.ConnectionID())
}

// requireRoom is the common guard for commands that only make sense inside
// a room.
func (r *Router) requireRoom(c *websocket.Client) (*room.Room, bool) {
	rm, ok := r.roomOf(c)
	if !ok {
		r.replyError(c, "NOT_IN_ROOM", "join a room first")
		return nil, false
	}
	return rm, true
}

// clientByConnID finds a live room connection by its connection id.
func (r *Router) clientByConnID(code, connID string) *websocket.Client {
	for _, cl := range r.hub.RoomClients(code) {
		if cl.ConnectionID() == connID {
			return cl
		}
	}
	return nil
}

// sendToAdmin unicasts to the seated admin connection, when there is one.
func (r *Router) sendToAdmin(rm *room.Room, event string, payload interface{}) {
	adminConn, ok := rm.AdminConn()
	if !ok {
		return
	}
	if cl := r.clientByConnID(rm.Code(), adminConn); cl != nil {
		r.reply(cl, event, payload)
	}
}

// roomOrderFor returns the fan-out lock for a room, creating it on first
// use.
func (r *Router) roomOrderFor(code string) *roomOrder {
	r.fanoutMu.Lock()
	defer r.fanoutMu.Unlock()
	ord, ok := r.fanout[code]
	if !ok {
		ord = &roomOrder{lastNextTo: -1}
		r.fanout[code] = ord
	}
	return ord
}

// withRoomOrder runs fn holding the room's fan-out lock. Mutating a room
// and enqueueing the resulting snapshot both happen inside fn, so members
// observe snapshots in mutation order. The hub enqueue never blocks, which
// keeps the lock hold time bounded.
func (r *Router) withRoomOrder(code string, fn func()) {
	ord := r.roomOrderFor(code)
	ord.mu.Lock()
	defer ord.mu.Unlock()
	fn()
}

// dropRoomOrder forgets a deleted room's lock.
func (r *Router) dropRoomOrder(code string) {
	r.fanoutMu.Lock()
	delete(r.fanout, code)
	r.fanoutMu.Unlock()
}

// finite rejects the NaN and Inf values that survive JSON decoding in
// lenient clients.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// validTime accepts finite, non-negative playback positions.
func validTime(t float64) bool {
	return finite(t) && t >= 0
}
