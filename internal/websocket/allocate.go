package websocket

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/service"
)

// Seat is one player's entry coordinates for an allocated game room.
type Seat struct {
	Player domain.PlayerSnapshot `json:"player"`
	Color  domain.PlayerColor    `json:"color"`
	Ticket string                `json:"ticket"`
	URL    string                `json:"url"`
}

// MatchSeats is the outcome of pairing two players into a fresh room.
type MatchSeats struct {
	GameID string
	White  Seat
	Black  Seat
}

func (m *MatchSeats) Seat(color domain.PlayerColor) Seat {
	if color == domain.ColorWhite {
		return m.White
	}
	return m.Black
}

// AllocateMatch creates a seeded game room for a resolved pairing and signs
// per-seat connection URLs. The callers (lobby join, matchmaker pairing)
// have already fixed the colors.
func (h *Hub) AllocateMatch(ctx context.Context, init InitRequest, white, black domain.PlayerSnapshot) (*MatchSeats, error) {
	gameID := uuid.NewString()

	init.Players = InitPlayers{
		White: &InitPlayer{
			PlayerID:      white.PlayerID,
			DisplayName:   white.DisplayName,
			Rating:        white.Rating,
			IsProvisional: white.IsProvisional,
		},
		Black: &InitPlayer{
			PlayerID:      black.PlayerID,
			DisplayName:   black.DisplayName,
			Rating:        black.Rating,
			IsProvisional: black.IsProvisional,
		},
	}

	room, err := h.GetOrCreate(gameID)
	if err != nil {
		return nil, err
	}
	if err := room.Init(ctx, init); err != nil {
		return nil, err
	}

	whiteSeat, err := h.seatFor(gameID, white, domain.ColorWhite)
	if err != nil {
		return nil, err
	}
	blackSeat, err := h.seatFor(gameID, black, domain.ColorBlack)
	if err != nil {
		return nil, err
	}

	return &MatchSeats{GameID: gameID, White: whiteSeat, Black: blackSeat}, nil
}

func (h *Hub) seatFor(gameID string, p domain.PlayerSnapshot, color domain.PlayerColor) (Seat, error) {
	token, err := h.tickets.Issue(service.Ticket{
		GameID:        gameID,
		PlayerID:      p.PlayerID,
		DisplayName:   p.DisplayName,
		Rating:        p.Rating,
		IsProvisional: p.IsProvisional,
		Color:         color,
	})
	if err != nil {
		return Seat{}, err
	}
	return Seat{Player: p, Color: color, Ticket: token, URL: h.ConnectURL(gameID, token)}, nil
}

// ConnectURL builds the websocket entry URL for a signed ticket.
func (h *Hub) ConnectURL(gameID, ticket string) string {
	return fmt.Sprintf("%s/api/v1/games/%s/ws?ticket=%s", h.cfg.PublicWSBase, gameID, url.QueryEscape(ticket))
}
