package websocket

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/service"
	"github.com/tempochess/game-server/internal/store"
)

// LobbyHubConfig carries the pairing-slot knobs.
type LobbyHubConfig struct {
	Timeout time.Duration
	Now     func() time.Time
}

func (c LobbyHubConfig) withDefaults() LobbyHubConfig {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// LobbyHub is the registry of live pairing slots.
type LobbyHub struct {
	mu      sync.Mutex
	lobbies map[string]*LobbyRoom
	stopped bool

	docs      store.DocumentStore
	games     *Hub
	lobbyList *service.LobbyListService
	log       *logrus.Logger
	cfg       LobbyHubConfig
}

func NewLobbyHub(docs store.DocumentStore, games *Hub, lobbyList *service.LobbyListService, log *logrus.Logger, cfg LobbyHubConfig) *LobbyHub {
	return &LobbyHub{
		lobbies:   make(map[string]*LobbyRoom),
		docs:      docs,
		games:     games,
		lobbyList: lobbyList,
		log:       log,
		cfg:       cfg.withDefaults(),
	}
}

// Create allocates a fresh pairing slot for the creator and returns its
// initial state.
func (h *LobbyHub) Create(ctx context.Context, creator domain.PlayerSnapshot, settings domain.LobbySettings) (*LobbyStatePayload, error) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil, ErrRoomClosed
	}
	id := uuid.NewString()
	room := newLobbyRoom(id, h)
	h.lobbies[id] = room
	go room.Run()
	h.mu.Unlock()

	if err := room.Init(ctx, creator, settings); err != nil {
		h.release(id)
		return nil, err
	}
	return room.State(ctx)
}

// Find returns the live lobby for lobbyID, waking a persisted one if needed.
func (h *LobbyHub) Find(lobbyID string) (*LobbyRoom, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil, ErrRoomClosed
	}
	if room, ok := h.lobbies[lobbyID]; ok {
		return room, nil
	}

	room := newLobbyRoom(lobbyID, h)
	if !h.rehydrate(room) {
		return nil, domain.ErrLobbyNotFound
	}
	h.lobbies[lobbyID] = room
	go room.Run()
	return room, nil
}

// rehydrate loads the lobby record into a not-yet-running room. The slot's
// timeout resumes from where the previous process left it.
func (h *LobbyHub) rehydrate(room *LobbyRoom) bool {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	data, err := h.docs.GetDocument(ctx, store.LobbyPath(room.id))
	if err != nil {
		if err != store.ErrNotFound {
			h.log.WithError(err).WithField("lobby_id", room.id).Warn("reading lobby state")
		}
		return false
	}

	var state domain.LobbyState
	if err := store.Decode(data, &state); err != nil {
		h.log.WithError(err).WithField("lobby_id", room.id).Warn("decoding lobby state")
		return false
	}

	room.state = &state
	room.expiresAt = state.CreatedAt + h.cfg.Timeout.Milliseconds()

	h.log.WithFields(logrus.Fields{
		"lobby_id": room.id,
		"status":   state.Status,
	}).Info("rehydrated lobby")
	return true
}

func (h *LobbyHub) release(id string) {
	h.mu.Lock()
	room, ok := h.lobbies[id]
	if ok {
		delete(h.lobbies, id)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	room.Stop()
	room.Wait()
	h.log.WithField("lobby_id", id).Debug("released lobby")
}

// LobbyCount reports the number of live pairing slots.
func (h *LobbyHub) LobbyCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.lobbies)
}

// Stop shuts down every lobby and blocks until their loops exit.
func (h *LobbyHub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	lobbies := make([]*LobbyRoom, 0, len(h.lobbies))
	for _, room := range h.lobbies {
		lobbies = append(lobbies, room)
	}
	h.lobbies = make(map[string]*LobbyRoom)
	h.mu.Unlock()

	for _, room := range lobbies {
		room.Stop()
	}
	for _, room := range lobbies {
		room.Wait()
	}
}

// Listing maintenance is fire-and-forget: the browsable projection is a
// convenience, never a dependency of the pairing flow.

func (h *LobbyHub) addListing(entry service.LobbyListEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := h.lobbyList.Add(ctx, entry); err != nil {
		h.log.WithError(err).WithField("lobby_id", entry.LobbyID).Warn("adding lobby listing")
	}
}

func (h *LobbyHub) updateListing(lobbyID string, patch map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := h.lobbyList.Update(ctx, lobbyID, patch); err != nil {
		h.log.WithError(err).WithField("lobby_id", lobbyID).Warn("updating lobby listing")
	}
}

func (h *LobbyHub) removeListing(lobbyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := h.lobbyList.Remove(ctx, lobbyID); err != nil {
		h.log.WithError(err).WithField("lobby_id", lobbyID).Warn("removing lobby listing")
	}
}

// generatePrivateCode mints the short code private lobbies share out of band.
func generatePrivateCode() string {
	bytes := make([]byte, 3)
	rand.Read(bytes)
	return strings.ToUpper(hex.EncodeToString(bytes))
}
