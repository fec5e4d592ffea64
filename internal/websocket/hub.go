package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/service"
	"github.com/tempochess/game-server/internal/store"
)

// HubConfig carries the per-room timing knobs. Zero values fall back to the
// production defaults so tests override only the pieces they exercise.
type HubConfig struct {
	ClockTick        time.Duration
	HeartbeatPeriod  time.Duration
	HeartbeatTimeout time.Duration
	AbandonTimeout   time.Duration
	MaxSpectators    int
	Now              func() time.Time

	// PublicWSBase prefixes connection URLs handed to matched players,
	// e.g. "ws://localhost:8080". Empty means path-relative URLs.
	PublicWSBase string
}

func (c HubConfig) withDefaults() HubConfig {
	if c.ClockTick <= 0 {
		c.ClockTick = 100 * time.Millisecond
	}
	if c.HeartbeatPeriod <= 0 {
		c.HeartbeatPeriod = 10 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 30 * time.Second
	}
	if c.AbandonTimeout <= 0 {
		c.AbandonTimeout = 60 * time.Second
	}
	if c.MaxSpectators <= 0 {
		c.MaxSpectators = domain.DefaultMaxSpectators
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Hub is the registry of live game rooms. Rooms are created on demand,
// rehydrated from their persisted snapshot when one exists, and released
// once finished with nobody connected.
type Hub struct {
	mu      sync.Mutex
	rooms   map[string]*GameRoom
	stopped bool

	docs      store.DocumentStore
	profiles  *service.ProfileService
	lobbyList *service.LobbyListService
	tickets   *service.TicketService
	log       *logrus.Logger
	cfg       HubConfig
}

func NewHub(docs store.DocumentStore, profiles *service.ProfileService, lobbyList *service.LobbyListService, tickets *service.TicketService, log *logrus.Logger, cfg HubConfig) *Hub {
	return &Hub{
		rooms:     make(map[string]*GameRoom),
		docs:      docs,
		profiles:  profiles,
		lobbyList: lobbyList,
		tickets:   tickets,
		log:       log,
		cfg:       cfg.withDefaults(),
	}
}

// GetOrCreate returns the live room for gameID, starting one if needed.
// A fresh room picks up its persisted snapshot when the id has history.
func (h *Hub) GetOrCreate(gameID string) (*GameRoom, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil, ErrRoomClosed
	}
	if room, ok := h.rooms[gameID]; ok {
		return room, nil
	}

	room := newGameRoom(gameID, h)
	h.rehydrate(room)
	h.rooms[gameID] = room
	go room.Run()
	return room, nil
}

// Find returns the live room for gameID, waking a persisted one if present.
// Unlike GetOrCreate it never starts a room with no history.
func (h *Hub) Find(gameID string) (*GameRoom, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil, ErrRoomClosed
	}
	if room, ok := h.rooms[gameID]; ok {
		return room, nil
	}

	room := newGameRoom(gameID, h)
	if !h.rehydrate(room) {
		return nil, domain.ErrGameNotFound
	}
	h.rooms[gameID] = room
	go room.Run()
	return room, nil
}

// rehydrate loads the snapshot for room.id into the not-yet-running room.
// Returns false when no snapshot exists. Decode failures start fresh.
func (h *Hub) rehydrate(room *GameRoom) bool {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	data, err := h.docs.GetDocument(ctx, store.GamePath(room.id))
	if err != nil {
		if err != store.ErrNotFound {
			h.log.WithError(err).WithField("game_id", room.id).Warn("reading room snapshot")
		}
		return false
	}

	var snap roomSnapshot
	if err := store.Decode(data, &snap); err != nil {
		h.log.WithError(err).WithField("game_id", room.id).Warn("decoding room snapshot")
		return false
	}

	room.status = snap.Status
	if snap.GameMode.Valid() {
		room.mode = snap.GameMode
	}
	if snap.MatchType != "" {
		room.matchType = snap.MatchType
	}
	room.initialized = snap.Initialized
	room.isLobbyMode = snap.IsLobbyMode
	room.isUnrated = snap.IsUnrated
	room.lobbyID = snap.LobbyID
	room.openingName = snap.OpeningName
	if snap.GameState != nil {
		room.gameState = snap.GameState
	}
	room.clock = snap.Clock
	room.moveHistory = snap.MoveHistory
	for id, p := range snap.Players {
		p.Connected = false
		room.players[id] = &playerSession{PlayerSession: p}
	}
	room.stateVersion = snap.StateVersion
	if snap.CreatedAt != 0 {
		room.createdAt = snap.CreatedAt
	}
	room.startedAt = snap.StartedAt
	room.endedAt = snap.EndedAt

	h.log.WithFields(logrus.Fields{
		"game_id": room.id,
		"status":  room.status,
	}).Info("rehydrated game room")
	return true
}

// release drops a room from the registry and stops its loop. Called by the
// room itself once it is finished and empty.
func (h *Hub) release(id string) {
	h.mu.Lock()
	room, ok := h.rooms[id]
	if ok {
		delete(h.rooms, id)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	room.Stop()
	room.Wait()
	h.log.WithField("game_id", id).Debug("released game room")
}

// RoomCount reports the number of live rooms.
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Stop shuts down every room and blocks until their loops exit. Rooms that
// are mid-game persist their snapshot on the way down.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	rooms := make([]*GameRoom, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.rooms = make(map[string]*GameRoom)
	h.mu.Unlock()

	for _, room := range rooms {
		room.Stop()
	}
	for _, room := range rooms {
		room.Wait()
	}
}
