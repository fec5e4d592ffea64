package service_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/service"
	"github.com/tempochess/game-server/internal/testutil"
)

func TestTicketService_IssueAndVerify(t *testing.T) {
	tickets := service.NewTicketService(testutil.TestConfig())

	issued := service.Ticket{
		GameID:        "game-42",
		PlayerID:      "alice",
		DisplayName:   "Alice",
		Rating:        1850,
		IsProvisional: true,
		Color:         domain.ColorBlack,
	}

	token, err := tickets.Issue(issued)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	verified, err := tickets.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, issued, *verified)
}

func TestTicketService_RejectsBadTokens(t *testing.T) {
	cfg := testutil.TestConfig()
	tickets := service.NewTicketService(cfg)

	token, err := tickets.Issue(service.Ticket{
		GameID:   "game-42",
		PlayerID: "alice",
		Color:    domain.ColorWhite,
	})
	require.NoError(t, err)

	// Any edit to the payload breaks the signature check.
	dot := strings.IndexByte(token, '.')
	require.Greater(t, dot, 0)
	tampered := token[:dot+1] + flipChar(token[dot+1]) + token[dot+2:]

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"truncated signature", token[:len(token)-6]},
		{"tampered payload", tampered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tickets.Verify(tt.token)
			assert.ErrorIs(t, err, service.ErrInvalidTicket)
		})
	}
}

func TestTicketService_RejectsForeignSecret(t *testing.T) {
	tickets := service.NewTicketService(testutil.TestConfig())

	other := testutil.TestConfig()
	other.TicketSecret = "a-different-secret-entirely"
	token, err := service.NewTicketService(other).Issue(service.Ticket{
		GameID:   "game-42",
		PlayerID: "alice",
	})
	require.NoError(t, err)

	_, err = tickets.Verify(token)
	assert.ErrorIs(t, err, service.ErrInvalidTicket)
}

func TestTicketService_RejectsExpired(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.TicketExpiration = -time.Minute
	tickets := service.NewTicketService(cfg)

	token, err := tickets.Issue(service.Ticket{
		GameID:   "game-42",
		PlayerID: "alice",
	})
	require.NoError(t, err)

	_, err = tickets.Verify(token)
	assert.ErrorIs(t, err, service.ErrInvalidTicket)
}

func TestTicketService_RejectsUnsignedAlgorithm(t *testing.T) {
	tickets := service.NewTicketService(testutil.TestConfig())

	claims := jwt.MapClaims{
		"sub":  "alice",
		"game": "game-42",
		"exp":  time.Now().Add(time.Minute).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tickets.Verify(token)
	assert.ErrorIs(t, err, service.ErrInvalidTicket)
}

func TestTicketService_RequiresIdentityClaims(t *testing.T) {
	cfg := testutil.TestConfig()
	tickets := service.NewTicketService(cfg)

	// Correctly signed tokens missing the seat identity are still refused.
	tests := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{"no player", jwt.MapClaims{"game": "game-42"}},
		{"no game", jwt.MapClaims{"sub": "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.claims["exp"] = time.Now().Add(time.Minute).Unix()
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims).
				SignedString([]byte(cfg.TicketSecret))
			require.NoError(t, err)

			_, err = tickets.Verify(token)
			assert.ErrorIs(t, err, service.ErrInvalidTicket)
		})
	}
}

func flipChar(b byte) string {
	if b == 'A' {
		return "B"
	}
	return "A"
}
