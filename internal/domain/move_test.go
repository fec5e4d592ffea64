package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempochess/game-server/internal/domain"
)

func TestParseUCI(t *testing.T) {
	tests := []struct {
		name      string
		uci       string
		from      string
		to        string
		promotion string
	}{
		{"pawn push", "e2e4", "e2", "e4", ""},
		{"knight move", "g1f3", "g1", "f3", ""},
		{"promotion to queen", "e7e8q", "e7", "e8", "q"},
		{"promotion to knight", "a2a1n", "a2", "a1", "n"},
		{"uppercase promotion normalized", "h7h8Q", "h7", "h8", "q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			move, err := domain.ParseUCI(tt.uci)
			require.NoError(t, err)
			assert.Equal(t, tt.from, move.From)
			assert.Equal(t, tt.to, move.To)
			assert.Equal(t, tt.promotion, move.Promotion)
		})
	}
}

func TestParseUCIRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		uci  string
	}{
		{"empty", ""},
		{"too short", "e2e"},
		{"too long", "e2e4e5"},
		{"file out of range", "i2i4"},
		{"rank out of range", "e0e9"},
		{"garbage", "zzzz"},
		{"invalid promotion piece", "e7e8k"},
		{"promotion to pawn", "e7e8p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.ParseUCI(tt.uci)
			assert.ErrorIs(t, err, domain.ErrInvalidMoveFormat)
		})
	}
}

func TestFlipFEN(t *testing.T) {
	whiteToMove := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	blackToMove := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 0 1"

	assert.Equal(t, blackToMove, domain.FlipFEN(whiteToMove))
	assert.Equal(t, whiteToMove, domain.FlipFEN(blackToMove))

	// Strings without a side-to-move field pass through untouched.
	assert.Equal(t, "not-a-fen", domain.FlipFEN("not-a-fen"))
	assert.Equal(t, "", domain.FlipFEN(""))
}
