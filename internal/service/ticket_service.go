package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tempochess/game-server/internal/config"
	"github.com/tempochess/game-server/internal/domain"
)

var ErrInvalidTicket = errors.New("invalid connection ticket")

// Ticket carries a player's identity and seat assignment from the pairing
// flow (matchmaker or lobby) into the websocket handshake.
type Ticket struct {
	GameID        string
	PlayerID      string
	DisplayName   string
	Rating        int
	IsProvisional bool
	Color         domain.PlayerColor
}

// TicketService signs and verifies short-lived connection tickets.
type TicketService struct {
	secret     []byte
	expiration time.Duration
}

func NewTicketService(cfg *config.Config) *TicketService {
	return &TicketService{
		secret:     []byte(cfg.TicketSecret),
		expiration: cfg.TicketExpiration,
	}
}

func (s *TicketService) Issue(t Ticket) (string, error) {
	claims := jwt.MapClaims{
		"sub":    t.PlayerID,
		"game":   t.GameID,
		"name":   t.DisplayName,
		"rating": t.Rating,
		"prov":   t.IsProvisional,
		"color":  string(t.Color),
		"exp":    time.Now().Add(s.expiration).Unix(),
		"iat":    time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *TicketService) Verify(tokenString string) (*Ticket, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidTicket
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidTicket
	}

	ticket := &Ticket{
		PlayerID:      claimString(claims, "sub"),
		GameID:        claimString(claims, "game"),
		DisplayName:   claimString(claims, "name"),
		Rating:        claimInt(claims, "rating"),
		IsProvisional: claimBool(claims, "prov"),
		Color:         domain.PlayerColor(claimString(claims, "color")),
	}
	if ticket.PlayerID == "" || ticket.GameID == "" {
		return nil, ErrInvalidTicket
	}

	return ticket, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func claimInt(claims jwt.MapClaims, key string) int {
	// JSON numbers decode as float64.
	if v, ok := claims[key].(float64); ok {
		return int(v)
	}
	return 0
}

func claimBool(claims jwt.MapClaims, key string) bool {
	if v, ok := claims[key].(bool); ok {
		return v
	}
	return false
}
