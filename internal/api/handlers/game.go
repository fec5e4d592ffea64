package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/websocket"
)

// GameHandler exposes the HTTP side of game rooms: lobby pre-seeding and
// read-only state snapshots. Live play happens over the websocket.
type GameHandler struct {
	hub *websocket.Hub
}

func NewGameHandler(hub *websocket.Hub) *GameHandler {
	return &GameHandler{hub: hub}
}

// Init pre-seeds a room before any websocket connects. Lobby flows call
// this with both players known; direct flows may call it with none.
func (h *GameHandler) Init(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		http.Error(w, "Game ID is required", http.StatusBadRequest)
		return
	}

	var req websocket.InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	room, err := h.hub.GetOrCreate(gameID)
	if err != nil {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	if err := room.Init(r.Context(), req); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidGameMode):
			http.Error(w, "Invalid game mode", http.StatusBadRequest)
		case errors.Is(err, domain.ErrGameAlreadyStarted):
			http.Error(w, "Game already initialized", http.StatusConflict)
		default:
			http.Error(w, "Failed to initialize game", http.StatusInternalServerError)
		}
		return
	}

	snap, err := room.State(r.Context())
	if err != nil {
		http.Error(w, "Failed to read game state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// State returns the current snapshot of a live or persisted game.
func (h *GameHandler) State(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		http.Error(w, "Game ID is required", http.StatusBadRequest)
		return
	}

	room, err := h.hub.Find(gameID)
	if err != nil {
		if errors.Is(err, domain.ErrGameNotFound) {
			http.Error(w, "Game not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load game", http.StatusInternalServerError)
		return
	}

	snap, err := room.State(r.Context())
	if err != nil {
		http.Error(w, "Failed to read game state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}
