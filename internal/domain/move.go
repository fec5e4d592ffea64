package domain

import "strings"

// Move is a single entry in the game state's move sequence.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// MoveRecord is the append-only history entry kept alongside GameState.Moves.
// Records alternate colors starting with white.
type MoveRecord struct {
	UCI       string      `json:"uci"`
	SAN       string      `json:"san,omitempty"`
	Timestamp int64       `json:"timestamp"`
	MadeBy    PlayerColor `json:"madeBy"`
}

// ParseUCI splits a UCI move string into from/to squares and an optional
// promotion piece (e.g. "e2e4", "e7e8q"). The server validates only the
// encoding, never move legality.
func ParseUCI(uci string) (Move, error) {
	if len(uci) < 4 || len(uci) > 5 {
		return Move{}, ErrInvalidMoveFormat
	}
	from := uci[0:2]
	to := uci[2:4]
	if !validSquare(from) || !validSquare(to) {
		return Move{}, ErrInvalidMoveFormat
	}
	move := Move{From: from, To: to}
	if len(uci) == 5 {
		promo := strings.ToLower(uci[4:5])
		if !strings.Contains("qrbn", promo) {
			return Move{}, ErrInvalidMoveFormat
		}
		move.Promotion = promo
	}
	return move, nil
}

func validSquare(sq string) bool {
	return len(sq) == 2 && sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}

// FlipFEN toggles the side-to-move field of a FEN string. Used when the
// client did not supply a post-move FEN; the server does not interpret the
// position, so flipping the turn indicator keeps the record consistent.
func FlipFEN(fen string) string {
	parts := strings.Fields(fen)
	if len(parts) < 2 {
		return fen
	}
	switch parts[1] {
	case "w":
		parts[1] = "b"
	case "b":
		parts[1] = "w"
	}
	return strings.Join(parts, " ")
}
