package rating_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/rating"
)

func TestExpectedScore(t *testing.T) {
	assert.InDelta(t, 0.5, rating.ExpectedScore(1500, 1500), 0.0001)
	assert.InDelta(t, 0.909, rating.ExpectedScore(1800, 1400), 0.001)

	// The two sides of a pairing always sum to 1.
	a := rating.ExpectedScore(1620, 1480)
	b := rating.ExpectedScore(1480, 1620)
	assert.InDelta(t, 1.0, a+b, 0.0001)
}

func TestKFactor(t *testing.T) {
	assert.Equal(t, 40, rating.KFactor(true))
	assert.Equal(t, 20, rating.KFactor(false))
	assert.True(t, rating.IsProvisional(19))
	assert.False(t, rating.IsProvisional(20))
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		white     rating.Side
		black     rating.Side
		result    domain.GameResult
		wantWhite int
		wantBlack int
	}{
		{
			name:      "equal ratings, white wins",
			white:     rating.Side{Rating: 1500},
			black:     rating.Side{Rating: 1500},
			result:    domain.ResultWhiteWin,
			wantWhite: 10,
			wantBlack: -10,
		},
		{
			name:      "equal ratings, black wins",
			white:     rating.Side{Rating: 1500},
			black:     rating.Side{Rating: 1500},
			result:    domain.ResultBlackWin,
			wantWhite: -10,
			wantBlack: 10,
		},
		{
			name:      "provisional winner moves twice as far",
			white:     rating.Side{Rating: 1500, Provisional: true},
			black:     rating.Side{Rating: 1500},
			result:    domain.ResultWhiteWin,
			wantWhite: 20,
			wantBlack: -10,
		},
		{
			name:      "upset win by the lower-rated side",
			white:     rating.Side{Rating: 1600},
			black:     rating.Side{Rating: 1400},
			result:    domain.ResultBlackWin,
			wantWhite: -15,
			wantBlack: 15,
		},
		{
			name:      "draw still moves unequal ratings",
			white:     rating.Side{Rating: 1600},
			black:     rating.Side{Rating: 1400},
			result:    domain.ResultDraw,
			wantWhite: -5,
			wantBlack: 5,
		},
		{
			name:      "provisional newcomer upsets an established player",
			white:     rating.Side{Rating: 1200, Provisional: true},
			black:     rating.Side{Rating: 1500},
			result:    domain.ResultWhiteWin,
			wantWhite: 34,
			wantBlack: -17,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			white, black := rating.Compute(tt.white, tt.black, tt.result)
			assert.Equal(t, tt.wantWhite, white.Change)
			assert.Equal(t, tt.wantBlack, black.Change)
			assert.Equal(t, tt.white.Rating+tt.wantWhite, white.NewRating)
			assert.Equal(t, tt.black.Rating+tt.wantBlack, black.NewRating)
		})
	}
}
