package service

import (
	"context"
	"errors"
	"time"

	"github.com/tempochess/game-server/internal/rating"
	"github.com/tempochess/game-server/internal/store"
)

// PlayerStats is the per-player ratings document kept under
// users/<uid>/profile/ratings and mirrored to the leaderboard.
type PlayerStats struct {
	PlayerID         string `json:"playerId"`
	DisplayName      string `json:"displayName"`
	EloRating        int    `json:"eloRating"`
	TotalGamesPlayed int    `json:"totalGamesPlayed"`
	Wins             int    `json:"wins"`
	Losses           int    `json:"losses"`
	Draws            int    `json:"draws"`
	IsProvisional    bool   `json:"isProvisional"`
	UpdatedAt        int64  `json:"updatedAt"`
}

// ProfileService owns the read-merge-write cycle for ranked results.
type ProfileService struct {
	docs store.DocumentStore
}

func NewProfileService(docs store.DocumentStore) *ProfileService {
	return &ProfileService{docs: docs}
}

// GetStats loads a player's stored stats, defaulting for first-time players.
func (s *ProfileService) GetStats(ctx context.Context, playerID string) (*PlayerStats, error) {
	stats := &PlayerStats{
		PlayerID:      playerID,
		EloRating:     rating.DefaultRating,
		IsProvisional: true,
	}

	data, err := s.docs.GetDocument(ctx, store.ProfileRatingsPath(playerID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return stats, nil
		}
		return nil, err
	}

	if err := store.Decode(data, stats); err != nil {
		return nil, err
	}
	stats.PlayerID = playerID
	return stats, nil
}

// ApplyResult merges one rated game into the player's stats and mirrors the
// result to the leaderboard. The stored rating moves by delta.Change so a
// concurrent settlement degrades to last-writer-wins instead of losing a
// whole game.
func (s *ProfileService) ApplyResult(ctx context.Context, playerID, displayName string, delta rating.Delta, score float64) (*PlayerStats, error) {
	stats, err := s.GetStats(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if stats.TotalGamesPlayed == 0 {
		stats.EloRating = delta.NewRating
	} else {
		stats.EloRating += delta.Change
	}
	stats.DisplayName = displayName
	stats.TotalGamesPlayed++
	switch score {
	case 1:
		stats.Wins++
	case 0:
		stats.Losses++
	default:
		stats.Draws++
	}
	stats.IsProvisional = rating.IsProvisional(stats.TotalGamesPlayed)
	stats.UpdatedAt = time.Now().UnixMilli()

	data, err := store.Encode(stats)
	if err != nil {
		return nil, err
	}
	if err := s.docs.SetDocument(ctx, store.ProfileRatingsPath(playerID), data, true); err != nil {
		return nil, err
	}

	entry := map[string]interface{}{
		"playerId":      playerID,
		"displayName":   displayName,
		"eloRating":     stats.EloRating,
		"gamesPlayed":   stats.TotalGamesPlayed,
		"isProvisional": stats.IsProvisional,
		"updatedAt":     stats.UpdatedAt,
	}
	if err := s.docs.SetDocument(ctx, store.LeaderboardPath(playerID), entry, true); err != nil {
		return nil, err
	}

	return stats, nil
}
