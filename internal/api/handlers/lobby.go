package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/websocket"
)

// LobbyHandler exposes the challenge-lobby lifecycle: create, join, cancel
// and a read-only state snapshot. The creator's live updates arrive over the
// lobby websocket instead.
type LobbyHandler struct {
	lobbies *websocket.LobbyHub
}

func NewLobbyHandler(lobbies *websocket.LobbyHub) *LobbyHandler {
	return &LobbyHandler{lobbies: lobbies}
}

type CreateLobbyRequest struct {
	Creator  domain.PlayerSnapshot `json:"creator"`
	Settings domain.LobbySettings  `json:"settings"`
}

type JoinLobbyRequest struct {
	Player domain.PlayerSnapshot `json:"player"`
}

type CancelLobbyRequest struct {
	PlayerID string `json:"playerId"`
}

func (h *LobbyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Creator.PlayerID == "" {
		http.Error(w, "Player ID is required", http.StatusBadRequest)
		return
	}

	state, err := h.lobbies.Create(r.Context(), req.Creator, req.Settings)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidGameMode):
			http.Error(w, "Invalid game mode", http.StatusBadRequest)
		case errors.Is(err, websocket.ErrRoomClosed):
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		default:
			http.Error(w, "Failed to create lobby", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(state)
}

// Join seats the second player. On success the response carries the joiner's
// room assignment; the creator learns about theirs over the lobby socket.
func (h *LobbyHandler) Join(w http.ResponseWriter, r *http.Request) {
	lobbyID := chi.URLParam(r, "lobbyID")

	var req JoinLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Player.PlayerID == "" {
		http.Error(w, "Player ID is required", http.StatusBadRequest)
		return
	}

	lobby, err := h.lobbies.Find(lobbyID)
	if err != nil {
		if errors.Is(err, domain.ErrLobbyNotFound) {
			http.Error(w, "Lobby not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load lobby", http.StatusInternalServerError)
		return
	}

	seat, err := lobby.Join(r.Context(), req.Player)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLobbyCancelled):
			http.Error(w, "Lobby was cancelled", http.StatusGone)
		case errors.Is(err, domain.ErrLobbyNotJoinable):
			http.Error(w, "Lobby is not joinable", http.StatusConflict)
		case errors.Is(err, domain.ErrSelfJoin):
			http.Error(w, "Cannot join your own lobby", http.StatusBadRequest)
		case errors.Is(err, domain.ErrLobbyNotFound):
			http.Error(w, "Lobby not found", http.StatusNotFound)
		default:
			http.Error(w, "Failed to join lobby", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(seat)
}

func (h *LobbyHandler) State(w http.ResponseWriter, r *http.Request) {
	lobbyID := chi.URLParam(r, "lobbyID")

	lobby, err := h.lobbies.Find(lobbyID)
	if err != nil {
		if errors.Is(err, domain.ErrLobbyNotFound) {
			http.Error(w, "Lobby not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load lobby", http.StatusInternalServerError)
		return
	}

	state, err := lobby.State(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrLobbyNotFound) {
			http.Error(w, "Lobby not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to read lobby state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}

// Cancel tears a waiting lobby down. Only the creator may cancel.
func (h *LobbyHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	lobbyID := chi.URLParam(r, "lobbyID")

	var req CancelLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	lobby, err := h.lobbies.Find(lobbyID)
	if err != nil {
		if errors.Is(err, domain.ErrLobbyNotFound) {
			http.Error(w, "Lobby not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load lobby", http.StatusInternalServerError)
		return
	}

	if err := lobby.Cancel(r.Context(), req.PlayerID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotLobbyCreator):
			http.Error(w, "Only the creator may cancel", http.StatusForbidden)
		case errors.Is(err, domain.ErrLobbyNotJoinable):
			http.Error(w, "Lobby already matched", http.StatusConflict)
		case errors.Is(err, domain.ErrLobbyNotFound):
			http.Error(w, "Lobby not found", http.StatusNotFound)
		default:
			http.Error(w, "Failed to cancel lobby", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": string(domain.LobbyStatusCancelled)})
}
