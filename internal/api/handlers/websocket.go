package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	ws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/service"
	"github.com/tempochess/game-server/internal/websocket"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// WebSocketHandler upgrades game and lobby connections. Identity comes from
// query parameters, or from a signed ticket when the client was seated by
// matchmaking or a lobby.
type WebSocketHandler struct {
	games   *websocket.Hub
	lobbies *websocket.LobbyHub
	tickets *service.TicketService
	log     *logrus.Logger
}

func NewWebSocketHandler(games *websocket.Hub, lobbies *websocket.LobbyHub, tickets *service.TicketService, log *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		games:   games,
		lobbies: lobbies,
		tickets: tickets,
		log:     log,
	}
}

// HandleGame admits a player or spectator connection to a game room.
//
// A connection without a playerId is still upgraded; the room then closes it
// with a protocol error so the client sees a websocket close code rather
// than an HTTP error.
func (h *WebSocketHandler) HandleGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		http.Error(w, "Game ID is required", http.StatusBadRequest)
		return
	}

	params, err := h.connectParams(r, gameID)
	if err != nil {
		http.Error(w, "Invalid ticket", http.StatusUnauthorized)
		return
	}

	room, err := h.games.GetOrCreate(gameID)
	if err != nil {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(room, conn, params.PlayerID, params.DisplayName, params.Mode == "spectator")
	room.Join(client, params)

	go client.WritePump()
	go client.ReadPump()
}

// connectParams builds the admission identity from the URL query. A signed
// ticket, when present, overrides the query identity wholesale.
func (h *WebSocketHandler) connectParams(r *http.Request, gameID string) (websocket.ConnectParams, error) {
	q := r.URL.Query()

	params := websocket.ConnectParams{
		PlayerID:    q.Get("playerId"),
		DisplayName: q.Get("displayName"),
		Color:       domain.PlayerColor(q.Get("color")),
		Mode:        q.Get("mode"),
		OpeningName: q.Get("openingName"),
		OpeningFEN:  q.Get("openingFen"),
	}
	if v := q.Get("rating"); v != "" {
		params.Rating, _ = strconv.Atoi(v)
	}
	if v := q.Get("isProvisional"); v != "" {
		params.IsProvisional, _ = strconv.ParseBool(v)
	}
	if v := q.Get("isUnrated"); v != "" {
		params.IsUnrated, _ = strconv.ParseBool(v)
	}

	token := q.Get("ticket")
	if token == "" {
		return params, nil
	}

	ticket, err := h.tickets.Verify(token)
	if err != nil {
		return params, err
	}
	if ticket.GameID != gameID {
		return params, service.ErrInvalidTicket
	}

	params.PlayerID = ticket.PlayerID
	params.DisplayName = ticket.DisplayName
	params.Rating = ticket.Rating
	params.IsProvisional = ticket.IsProvisional
	params.Color = ticket.Color
	return params, nil
}

// HandleLobby attaches the creator's live status channel to a lobby room.
// Non-creators are upgraded and then closed with a policy violation.
func (h *WebSocketHandler) HandleLobby(w http.ResponseWriter, r *http.Request) {
	lobbyID := chi.URLParam(r, "lobbyID")
	if lobbyID == "" {
		http.Error(w, "Lobby ID is required", http.StatusBadRequest)
		return
	}

	lobby, err := h.lobbies.Find(lobbyID)
	if err != nil {
		if errors.Is(err, domain.ErrLobbyNotFound) {
			http.Error(w, "Lobby not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load lobby", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := websocket.NewLobbyClient(lobby, conn, q.Get("playerId"), q.Get("displayName"))
	lobby.Attach(client)

	go client.WritePump()
	go client.ReadPump()
}
