package websocket

import "github.com/tempochess/game-server/internal/domain"

// Lobby channel frames. The lobby channel is creator-facing: the server
// pushes pairing progress, the client mostly listens.
const (
	MessageTypeLobbyState     MessageType = "lobby_state"
	MessageTypeOpponentJoined MessageType = "opponent_joined"
	MessageTypeMatchReady     MessageType = "match_ready"
	MessageTypeLobbyCancelled MessageType = "lobby_cancelled"
)

// LobbyStatePayload is the snapshot pushed when the creator's live channel
// attaches, and the GET /state response body.
type LobbyStatePayload struct {
	LobbyID    string                 `json:"lobbyId"`
	Status     domain.LobbyStatus     `json:"status"`
	Creator    domain.PlayerSnapshot  `json:"creator"`
	Opponent   *domain.PlayerSnapshot `json:"opponent,omitempty"`
	Settings   domain.LobbySettings   `json:"settings"`
	CreatedAt  int64                  `json:"createdAt"`
	ExpiresAt  int64                  `json:"expiresAt,omitempty"`
	GameRoomID string                 `json:"gameRoomId,omitempty"`
}

// OpponentJoinedPayload tells the creator a joiner claimed the slot. The
// match_ready frame with the room coordinates follows.
type OpponentJoinedPayload struct {
	Opponent domain.PlayerSnapshot `json:"opponent"`
}

// MatchReadyPayload carries one player's seat at the allocated game room.
// The creator receives it as a frame; the joiner as the POST /join response.
type MatchReadyPayload struct {
	LobbyID  string                `json:"lobbyId"`
	RoomID   string                `json:"roomId"`
	URL      string                `json:"url"`
	Color    domain.PlayerColor    `json:"color"`
	GameMode domain.GameMode       `json:"gameMode"`
	Opponent domain.PlayerSnapshot `json:"opponent"`
}

// LobbyCancelledPayload closes out the pairing slot.
type LobbyCancelledPayload struct {
	LobbyID string `json:"lobbyId"`
	Reason  string `json:"reason"`
}
