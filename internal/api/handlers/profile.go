package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tempochess/game-server/internal/service"
	"github.com/tempochess/game-server/internal/store"
)

// ProfileHandler serves the read side of player stats: current rating,
// match history and the ELO leaderboard. Writes happen only through game
// settlement.
type ProfileHandler struct {
	profiles *service.ProfileService
	docs     store.DocumentStore
}

func NewProfileHandler(profiles *service.ProfileService, docs store.DocumentStore) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, docs: docs}
}

func (h *ProfileHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		http.Error(w, "Player ID is required", http.StatusBadRequest)
		return
	}

	stats, err := h.profiles.GetStats(r.Context(), playerID)
	if err != nil {
		http.Error(w, "Failed to load player stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// GetHistory lists a player's settled matches, newest first.
func (h *ProfileHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		http.Error(w, "Player ID is required", http.StatusBadRequest)
		return
	}

	snaps, err := h.docs.QueryDocuments(r.Context(), store.MatchHistoryCollection(playerID), nil)
	if err != nil {
		http.Error(w, "Failed to load match history", http.StatusInternalServerError)
		return
	}

	matches := make([]map[string]interface{}, 0, len(snaps))
	for _, snap := range snaps {
		var match map[string]interface{}
		if err := store.Decode(snap.Data, &match); err != nil {
			http.Error(w, "Failed to load match history", http.StatusInternalServerError)
			return
		}
		matches = append(matches, match)
	}
	sort.Slice(matches, func(i, j int) bool {
		ti, _ := matches[i]["endedAt"].(float64)
		tj, _ := matches[j]["endedAt"].(float64)
		return ti > tj
	})

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		if limit < len(matches) {
			matches = matches[:limit]
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(matches)
}

// Leaderboard returns ranked players ordered by rating.
func (h *ProfileHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.docs.QueryDocuments(r.Context(), store.LeaderboardCollection, nil)
	if err != nil {
		http.Error(w, "Failed to load leaderboard", http.StatusInternalServerError)
		return
	}

	entries := make([]map[string]interface{}, 0, len(snaps))
	for _, snap := range snaps {
		var entry map[string]interface{}
		if err := store.Decode(snap.Data, &entry); err != nil {
			http.Error(w, "Failed to load leaderboard", http.StatusInternalServerError)
			return
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		ri, _ := entries[i]["eloRating"].(float64)
		rj, _ := entries[j]["eloRating"].(float64)
		return ri > rj
	})

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if limit < len(entries) {
		entries = entries[:limit]
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
