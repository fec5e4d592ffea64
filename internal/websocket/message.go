package websocket

import (
	"encoding/json"
	"time"

	"github.com/tempochess/game-server/internal/domain"
)

type MessageType string

const (
	// Bidirectional
	MessageTypePing   MessageType = "ping"
	MessageTypePong   MessageType = "pong"
	MessageTypeMove   MessageType = "move"
	MessageTypeResign MessageType = "resign"
	MessageTypeChat   MessageType = "chat"
	MessageTypeReady  MessageType = "ready"

	// Client to Server
	MessageTypeGameEnd MessageType = "game_end"

	// Server to Client
	MessageTypeWaiting        MessageType = "waiting"
	MessageTypeGameStart      MessageType = "game_start"
	MessageTypeClockUpdate    MessageType = "clock_update"
	MessageTypeOpponentStatus MessageType = "opponent_status"
	MessageTypeOpponentReady  MessageType = "opponent_ready"
	MessageTypeAck            MessageType = "ack"
	MessageTypeSpectatorCount MessageType = "spectator_count"
	MessageTypeSpectatorState MessageType = "spectator_state"
	MessageTypeGameEnded      MessageType = "game_ended"
	MessageTypeSystem         MessageType = "system"
	MessageTypeError          MessageType = "error"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Client to Server payloads

type MovePayload struct {
	UCI       string `json:"uci"`
	FEN       string `json:"fen,omitempty"`
	SAN       string `json:"san,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

type GameEndPayload struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
	FEN    string `json:"fen,omitempty"`
}

// Server to Client payloads

type PlayerInfo struct {
	PlayerID      string `json:"playerId"`
	DisplayName   string `json:"displayName"`
	Rating        int    `json:"rating"`
	IsProvisional bool   `json:"isProvisional"`
	Connected     bool   `json:"connected"`
	Ready         bool   `json:"ready"`
}

type ClockInfo struct {
	WhiteMs     int64              `json:"whiteMs"`
	BlackMs     int64              `json:"blackMs"`
	IncrementMs int64              `json:"incrementMs"`
	CurrentTurn domain.PlayerColor `json:"currentTurn"`
}

// ReadyStatePayload is the full snapshot sent on admission, on game start
// and to joining spectators.
type ReadyStatePayload struct {
	GameID         string              `json:"gameId"`
	Status         domain.GameStatus   `json:"status"`
	GameMode       domain.GameMode     `json:"gameMode"`
	IsUnrated      bool                `json:"isUnrated"`
	YourColor      domain.PlayerColor  `json:"yourColor,omitempty"`
	FEN            string              `json:"fen"`
	MoveHistory    []domain.MoveRecord `json:"moveHistory"`
	Clock          *ClockInfo          `json:"clock,omitempty"`
	Self           *PlayerInfo         `json:"self,omitempty"`
	Opponent       *PlayerInfo         `json:"opponent,omitempty"`
	White          *PlayerInfo         `json:"white,omitempty"`
	Black          *PlayerInfo         `json:"black,omitempty"`
	SpectatorCount int                 `json:"spectatorCount"`
	StateVersion   int64               `json:"stateVersion"`
	OpeningName    string              `json:"openingName,omitempty"`
}

type WaitingPayload struct {
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}

type MoveInfo struct {
	UCI   string             `json:"uci"`
	SAN   string             `json:"san,omitempty"`
	Color domain.PlayerColor `json:"color"`
	FEN   string             `json:"fen"`
}

type MoveBroadcastPayload struct {
	Move         MoveInfo         `json:"move"`
	GameState    domain.GameState `json:"gameState"`
	Clock        ClockInfo        `json:"clock"`
	StateVersion int64            `json:"stateVersion"`
}

type ClockUpdatePayload struct {
	Clock ClockInfo `json:"clock"`
}

type OpponentStatusPayload struct {
	PlayerID           string `json:"playerId"`
	Connected          bool   `json:"connected"`
	ReconnectTimeoutMs int64  `json:"reconnectTimeoutMs,omitempty"`
}

type OpponentReadyPayload struct {
	PlayerID string `json:"playerId"`
	Ready    bool   `json:"ready"`
}

type AckPayload struct {
	MessageID    string `json:"messageId"`
	StateVersion int64  `json:"stateVersion"`
}

type ResignPayload struct {
	ResignedBy domain.PlayerColor `json:"resignedBy"`
	Outcome    domain.GameResult  `json:"outcome"`
}

type ChatBroadcastPayload struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Message     string `json:"message"`
}

type SpectatorCountPayload struct {
	Count int `json:"count"`
}

type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type GameEndedPayload struct {
	Result       domain.GameResult                             `json:"result"`
	Reason       domain.ResultReason                           `json:"reason"`
	EloChanges   map[domain.PlayerColor]domain.EloRatingChange `json:"eloChanges"`
	MatchHistory *domain.MatchHistoryData                      `json:"matchHistory,omitempty"`
}

type SystemPayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
