// Package rating implements ELO rating math for ranked match settlement.
package rating

import (
	"math"

	"github.com/tempochess/game-server/internal/domain"
)

const (
	// DefaultRating seeds players with no stored profile.
	DefaultRating = 1500

	// ProvisionalGames is the rated-game count below which the elevated
	// K-factor applies.
	ProvisionalGames = 20

	kProvisional = 40
	kEstablished = 20
)

// Side is one player's rating inputs at settlement time.
type Side struct {
	Rating      int
	Provisional bool
}

// Delta is the rating movement computed for one side.
type Delta struct {
	OldRating int
	NewRating int
	Change    int
}

// KFactor returns the K used for a single game.
func KFactor(provisional bool) int {
	if provisional {
		return kProvisional
	}
	return kEstablished
}

// IsProvisional reports whether a games-played count still qualifies for
// the provisional K-factor.
func IsProvisional(gamesPlayed int) bool {
	return gamesPlayed < ProvisionalGames
}

// ExpectedScore returns the probability-weighted score of a player rated
// `rating` against `opponent`.
func ExpectedScore(rating, opponent int) float64 {
	return 1 / (1 + math.Pow(10, float64(opponent-rating)/400))
}

// Outcomes maps a game result to (white score, black score).
func Outcomes(result domain.GameResult) (float64, float64) {
	switch result {
	case domain.ResultWhiteWin:
		return 1, 0
	case domain.ResultBlackWin:
		return 0, 1
	default:
		return 0.5, 0.5
	}
}

// Compute settles both sides of a rated game, each with its own K-factor.
func Compute(white, black Side, result domain.GameResult) (Delta, Delta) {
	whiteScore, blackScore := Outcomes(result)

	whiteChange := change(KFactor(white.Provisional), whiteScore, ExpectedScore(white.Rating, black.Rating))
	blackChange := change(KFactor(black.Provisional), blackScore, ExpectedScore(black.Rating, white.Rating))

	return Delta{
			OldRating: white.Rating,
			NewRating: white.Rating + whiteChange,
			Change:    whiteChange,
		}, Delta{
			OldRating: black.Rating,
			NewRating: black.Rating + blackChange,
			Change:    blackChange,
		}
}

func change(k int, actual, expected float64) int {
	return int(math.Round(float64(k) * (actual - expected)))
}
