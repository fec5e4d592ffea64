package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/matchmaker"
	"github.com/tempochess/game-server/internal/websocket"
)

// MatchmakingHandler is the HTTP face of the rating-window queue. Clients
// poll Join/Status until they come back with a match assignment.
type MatchmakingHandler struct {
	pool *matchmaker.Matchmaker
}

func NewMatchmakingHandler(pool *matchmaker.Matchmaker) *MatchmakingHandler {
	return &MatchmakingHandler{pool: pool}
}

type leaveQueueRequest struct {
	PlayerID string `json:"playerId"`
}

// JoinQueue enqueues a player, or returns their match immediately when one
// is already waiting for them.
func (h *MatchmakingHandler) JoinQueue(w http.ResponseWriter, r *http.Request) {
	var entry domain.QueueEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if entry.PlayerID == "" {
		http.Error(w, "Player ID is required", http.StatusBadRequest)
		return
	}

	result, err := h.pool.Join(r.Context(), entry)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidGameMode):
			http.Error(w, "Invalid game mode", http.StatusBadRequest)
		case errors.Is(err, websocket.ErrRoomClosed):
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		default:
			http.Error(w, "Failed to join queue", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *MatchmakingHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "Player ID is required", http.StatusBadRequest)
		return
	}

	status, err := h.pool.Status(r.Context(), playerID)
	if err != nil {
		http.Error(w, "Failed to read queue status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *MatchmakingHandler) LeaveQueue(w http.ResponseWriter, r *http.Request) {
	var req leaveQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PlayerID == "" {
		http.Error(w, "Player ID is required", http.StatusBadRequest)
		return
	}

	if err := h.pool.Leave(r.Context(), req.PlayerID); err != nil {
		http.Error(w, "Failed to leave queue", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"left": true})
}

func (h *MatchmakingHandler) QueueInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.pool.Info(r.Context())
	if err != nil {
		http.Error(w, "Failed to read queue info", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}
