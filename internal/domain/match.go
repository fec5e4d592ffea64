package domain

import (
	"fmt"
	"strings"
)

type MatchType string

const (
	MatchTypeRanked   MatchType = "ranked"
	MatchTypeFriendly MatchType = "friendly"
)

// EloRatingChange records one player's rating movement at settlement.
type EloRatingChange struct {
	PlayerID       string `json:"playerId"`
	OldRating      int    `json:"oldRating"`
	NewRating      int    `json:"newRating"`
	Change         int    `json:"change"`
	OldProvisional bool   `json:"oldProvisional"`
	NewProvisional bool   `json:"newProvisional"`
}

// MatchHistoryData is the durable record written for both players when a
// game ends.
type MatchHistoryData struct {
	MatchID      string                          `json:"matchId"`
	White        PlayerSnapshot                  `json:"white"`
	Black        PlayerSnapshot                  `json:"black"`
	GameMode     GameMode                        `json:"gameMode"`
	MatchType    MatchType                       `json:"matchType"`
	Result       GameResult                      `json:"result"`
	ResultReason ResultReason                    `json:"resultReason"`
	MoveHistory  []MoveRecord                    `json:"moveHistory"`
	FinalFEN     string                          `json:"finalFen"`
	PGN          string                          `json:"pgn,omitempty"`
	StartedAt    int64                           `json:"startedAt"`
	EndedAt      int64                           `json:"endedAt"`
	OpeningName  string                          `json:"openingName,omitempty"`
	EloChanges   map[PlayerColor]EloRatingChange `json:"eloChanges"`
}

// BuildPGN assembles a minimal movetext transcript from the move history,
// preferring SAN when the client supplied it and falling back to the raw UCI
// string. No headers, no result tag; consumers that need a full PGN attach
// their own tags.
func BuildPGN(moves []MoveRecord) string {
	if len(moves) == 0 {
		return ""
	}
	var b strings.Builder
	for i, m := range moves {
		if i%2 == 0 {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%d.", i/2+1)
		}
		b.WriteByte(' ')
		if m.SAN != "" {
			b.WriteString(m.SAN)
		} else {
			b.WriteString(m.UCI)
		}
	}
	return b.String()
}
