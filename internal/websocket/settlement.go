package websocket

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/rating"
	"github.com/tempochess/game-server/internal/store"
)

// settleTimeout bounds the detached post-game store writes. They never block
// the loop or client messaging.
const settleTimeout = 10 * time.Second

// roomSnapshot is the durable form of a GameRoom, written to games/<id> after
// every authoritative mutation and decoded again on rehydration.
type roomSnapshot struct {
	GameID       string                          `json:"gameId"`
	Status       domain.GameStatus               `json:"status"`
	GameMode     domain.GameMode                 `json:"gameMode"`
	MatchType    domain.MatchType                `json:"matchType"`
	Initialized  bool                            `json:"initialized"`
	IsLobbyMode  bool                            `json:"isLobbyMode"`
	IsUnrated    bool                            `json:"isUnrated"`
	LobbyID      string                          `json:"lobbyId,omitempty"`
	OpeningName  string                          `json:"openingName,omitempty"`
	GameState    *domain.GameState               `json:"gameState"`
	Clock        *domain.Clock                   `json:"clock,omitempty"`
	MoveHistory  []domain.MoveRecord             `json:"moveHistory"`
	Players      map[string]domain.PlayerSession `json:"players"`
	StateVersion int64                           `json:"stateVersion"`
	CreatedAt    int64                           `json:"createdAt"`
	StartedAt    int64                           `json:"startedAt,omitempty"`
	EndedAt      int64                           `json:"endedAt,omitempty"`
}

func (r *GameRoom) snapshotDoc() *roomSnapshot {
	players := make(map[string]domain.PlayerSession, len(r.players))
	for id, sess := range r.players {
		players[id] = sess.PlayerSession
	}
	return &roomSnapshot{
		GameID:       r.id,
		Status:       r.status,
		GameMode:     r.mode,
		MatchType:    r.matchType,
		Initialized:  r.initialized,
		IsLobbyMode:  r.isLobbyMode,
		IsUnrated:    r.isUnrated,
		LobbyID:      r.lobbyID,
		OpeningName:  r.openingName,
		GameState:    r.gameState,
		Clock:        r.clock,
		MoveHistory:  r.moveHistory,
		Players:      players,
		StateVersion: r.stateVersion,
		CreatedAt:    r.createdAt,
		StartedAt:    r.startedAt,
		EndedAt:      r.endedAt,
	}
}

// persist writes the room snapshot. Failures are logged and tolerated; the
// in-memory room stays authoritative until the next successful write.
func (r *GameRoom) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	data, err := store.Encode(r.snapshotDoc())
	if err != nil {
		r.log.WithError(err).Error("encoding room snapshot")
		return
	}
	if err := r.docs.SetDocument(ctx, store.GamePath(r.id), data, false); err != nil {
		r.log.WithError(err).Warn("persisting room snapshot")
	}
}

// endGame settles the match. Idempotent: a second invocation while already
// finished is a no-op, so a timer firing concurrently with a resignation is
// harmless. game_ended is the final frame any participant receives.
func (r *GameRoom) endGame(result domain.GameResult, reason domain.ResultReason) {
	if r.status == domain.GameStatusFinished {
		return
	}

	r.status = domain.GameStatusFinished
	r.gameState.Result = result
	r.gameState.ResultReason = reason
	r.endedAt = r.now().UnixMilli()
	r.stateVersion++

	r.stopClockTicker()
	r.cancelAbandonTimers()

	r.persist()

	log := r.log.WithFields(logrus.Fields{"result": result, "reason": reason})

	white := r.sessionByColor(domain.ColorWhite)
	black := r.sessionByColor(domain.ColorBlack)
	moveCount := len(r.gameState.Moves)

	if white == nil || black == nil {
		log.Warn("settling without both player records")
		changes := make(map[domain.PlayerColor]domain.EloRatingChange, len(r.players))
		for _, sess := range r.players {
			zero := rating.Delta{OldRating: sess.Rating, NewRating: sess.Rating}
			changes[sess.Color] = ratingChange(&sess.PlayerSession, zero, true, moveCount)
		}
		msg, _ := NewMessage(MessageTypeGameEnded, GameEndedPayload{
			Result:     result,
			Reason:     reason,
			EloChanges: changes,
		})
		r.broadcast(msg)
		return
	}

	whiteScore, blackScore := rating.Outcomes(result)

	var whiteDelta, blackDelta rating.Delta
	if r.isUnrated {
		whiteDelta = rating.Delta{OldRating: white.Rating, NewRating: white.Rating}
		blackDelta = rating.Delta{OldRating: black.Rating, NewRating: black.Rating}
	} else {
		whiteDelta, blackDelta = rating.Compute(
			rating.Side{Rating: white.Rating, Provisional: white.IsProvisional},
			rating.Side{Rating: black.Rating, Provisional: black.IsProvisional},
			result,
		)
	}

	changes := map[domain.PlayerColor]domain.EloRatingChange{
		domain.ColorWhite: ratingChange(&white.PlayerSession, whiteDelta, r.isUnrated, moveCount),
		domain.ColorBlack: ratingChange(&black.PlayerSession, blackDelta, r.isUnrated, moveCount),
	}

	history := &domain.MatchHistoryData{
		MatchID:      r.id,
		White:        white.Snapshot(),
		Black:        black.Snapshot(),
		GameMode:     r.mode,
		MatchType:    r.matchType,
		Result:       result,
		ResultReason: reason,
		MoveHistory:  r.moveHistory,
		FinalFEN:     r.gameState.FEN,
		PGN:          domain.BuildPGN(r.moveHistory),
		StartedAt:    r.startedAt,
		EndedAt:      r.endedAt,
		OpeningName:  r.openingName,
		EloChanges:   changes,
	}

	ended, _ := NewMessage(MessageTypeGameEnded, GameEndedPayload{
		Result:       result,
		Reason:       reason,
		EloChanges:   changes,
		MatchHistory: history,
	})
	legacy, _ := NewMessage(MessageTypeSystem, SystemPayload{
		Message: fmt.Sprintf("game over: %s (%s)", result, reason),
	})
	for _, sess := range r.players {
		if sess.client != nil {
			sess.client.Send(ended)
			sess.client.Send(legacy)
		}
	}
	r.sendToSpectators(ended)

	log.WithField("moves", moveCount).Info("game finished")

	rated := r.matchType == domain.MatchTypeRanked && !r.isUnrated
	lobbyID := ""
	if r.isLobbyMode {
		lobbyID = r.lobbyID
	}
	go r.settle(history, whiteDelta, blackDelta, whiteScore, blackScore, rated, lobbyID)
}

// ratingChange shapes one side's delta for the game_ended payload. The
// new-provisional flag here is a message-level proxy; the store-backed flag
// computed at ApplyResult from games played is authoritative.
func ratingChange(p *domain.PlayerSession, d rating.Delta, unrated bool, moveCount int) domain.EloRatingChange {
	newProvisional := p.IsProvisional
	if !unrated {
		newProvisional = p.IsProvisional && moveCount < rating.ProvisionalGames
	}
	return domain.EloRatingChange{
		PlayerID:       p.PlayerID,
		OldRating:      d.OldRating,
		NewRating:      d.NewRating,
		Change:         d.Change,
		OldProvisional: p.IsProvisional,
		NewProvisional: newProvisional,
	}
}

// settle runs the detached store writes: match history under both players,
// ratings and leaderboard merges for ranked games, lobby list removal for
// lobby games. Each failure is logged independently.
func (r *GameRoom) settle(history *domain.MatchHistoryData, whiteDelta, blackDelta rating.Delta, whiteScore, blackScore float64, rated bool, lobbyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	data, err := store.Encode(history)
	if err != nil {
		r.log.WithError(err).Error("encoding match history")
		return
	}
	ops := []store.WriteOp{
		{Path: store.MatchHistoryPath(history.White.PlayerID, history.MatchID), Data: data},
		{Path: store.MatchHistoryPath(history.Black.PlayerID, history.MatchID), Data: data},
	}
	if err := r.docs.BatchWrite(ctx, ops); err != nil {
		r.log.WithError(err).Warn("writing match history")
	}

	if rated {
		if _, err := r.hub.profiles.ApplyResult(ctx, history.White.PlayerID, history.White.DisplayName, whiteDelta, whiteScore); err != nil {
			r.log.WithError(err).WithField("player_id", history.White.PlayerID).Warn("applying rating result")
		}
		if _, err := r.hub.profiles.ApplyResult(ctx, history.Black.PlayerID, history.Black.DisplayName, blackDelta, blackScore); err != nil {
			r.log.WithError(err).WithField("player_id", history.Black.PlayerID).Warn("applying rating result")
		}
	}

	if lobbyID != "" {
		if err := r.hub.lobbyList.Remove(ctx, lobbyID); err != nil {
			r.log.WithError(err).WithField("lobby_id", lobbyID).Warn("removing lobby list entry")
		}
	}
}
