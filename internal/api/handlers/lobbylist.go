package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/service"
)

// LobbyListHandler serves the public lobby browser. Lobby rooms maintain
// these entries themselves; the write endpoints exist for external tooling
// and recovery.
type LobbyListHandler struct {
	list *service.LobbyListService
}

func NewLobbyListHandler(list *service.LobbyListService) *LobbyListHandler {
	return &LobbyListHandler{list: list}
}

type spectatorRequest struct {
	LobbyID string `json:"lobbyId"`
}

type spectatorResponse struct {
	LobbyID        string `json:"lobbyId"`
	SpectatorCount int    `json:"spectatorCount"`
}

func (h *LobbyListHandler) Add(w http.ResponseWriter, r *http.Request) {
	var entry service.LobbyListEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if entry.LobbyID == "" {
		http.Error(w, "Lobby ID is required", http.StatusBadRequest)
		return
	}

	if err := h.list.Add(r.Context(), entry); err != nil {
		http.Error(w, "Failed to add lobby entry", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

func (h *LobbyListHandler) Update(w http.ResponseWriter, r *http.Request) {
	lobbyID := chi.URLParam(r, "lobbyID")

	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.list.Update(r.Context(), lobbyID, patch); err != nil {
		if errors.Is(err, domain.ErrLobbyNotFound) {
			http.Error(w, "Lobby not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update lobby entry", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *LobbyListHandler) Remove(w http.ResponseWriter, r *http.Request) {
	lobbyID := chi.URLParam(r, "lobbyID")

	if err := h.list.Remove(r.Context(), lobbyID); err != nil {
		http.Error(w, "Failed to remove lobby entry", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List returns browsable lobbies. Private lobbies stay hidden unless
// includePrivate=true; they remain reachable by code either way.
func (h *LobbyListHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includePrivate, _ := strconv.ParseBool(q.Get("includePrivate"))

	entries, err := h.list.List(r.Context(), q.Get("status"), includePrivate)
	if err != nil {
		http.Error(w, "Failed to list lobbies", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (h *LobbyListHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	lobbyID := chi.URLParam(r, "lobbyID")

	entry, err := h.list.GetByID(r.Context(), lobbyID)
	if err != nil {
		if errors.Is(err, domain.ErrLobbyNotFound) {
			http.Error(w, "Lobby not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load lobby entry", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

func (h *LobbyListHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	entry, err := h.list.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrLobbyNotFound) {
			http.Error(w, "Lobby not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load lobby entry", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

func (h *LobbyListHandler) AddSpectator(w http.ResponseWriter, r *http.Request) {
	var req spectatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	count, err := h.list.AddSpectator(r.Context(), req.LobbyID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLobbyNotFound):
			http.Error(w, "Lobby not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrSpectatorsFull):
			http.Error(w, "Spectator limit reached", http.StatusConflict)
		default:
			http.Error(w, "Failed to add spectator", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spectatorResponse{LobbyID: req.LobbyID, SpectatorCount: count})
}

func (h *LobbyListHandler) RemoveSpectator(w http.ResponseWriter, r *http.Request) {
	var req spectatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	count, err := h.list.RemoveSpectator(r.Context(), req.LobbyID)
	if err != nil {
		if errors.Is(err, domain.ErrLobbyNotFound) {
			http.Error(w, "Lobby not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to remove spectator", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spectatorResponse{LobbyID: req.LobbyID, SpectatorCount: count})
}

// Cleanup prunes stale entries left behind by crashed rooms.
func (h *LobbyListHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	maxAge := time.Hour
	if v := r.URL.Query().Get("maxAgeMs"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms <= 0 {
			http.Error(w, "Invalid maxAgeMs", http.StatusBadRequest)
			return
		}
		maxAge = time.Duration(ms) * time.Millisecond
	}

	removed, err := h.list.Cleanup(r.Context(), maxAge)
	if err != nil {
		http.Error(w, "Failed to clean up lobby list", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"removed": removed})
}
