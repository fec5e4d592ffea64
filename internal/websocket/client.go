package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	maxChatLength  = 500
)

// Client is one websocket participant attached to a game room. All game
// state lives in the room's event loop; the client only shuttles frames.
type Client struct {
	room        *GameRoom
	conn        *websocket.Conn
	send        chan []byte
	playerID    string
	displayName string
	spectator   bool
	log         *logrus.Entry
}

func NewClient(room *GameRoom, conn *websocket.Conn, playerID, displayName string, spectator bool) *Client {
	return &Client{
		room:        room,
		conn:        conn,
		send:        make(chan []byte, 256),
		playerID:    playerID,
		displayName: displayName,
		spectator:   spectator,
		log:         room.log.WithField("player_id", playerID),
	}
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.room.leave <- c:
		case <-c.room.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				c.log.WithError(err).Debug("websocket read failed")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.WithError(err).Warn("unparseable frame")
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypePing:
		c.postSeen()
		reply, _ := NewMessage(MessageTypePong, PingPayload{Timestamp: time.Now().UnixMilli()})
		c.Send(reply)

	case MessageTypePong:
		c.postSeen()

	case MessageTypeMove:
		var payload MovePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("invalid_move_format", "Invalid move payload")
			return
		}
		select {
		case c.room.move <- &moveRequest{client: c, payload: payload}:
		case <-c.room.done:
		}

	case MessageTypeResign:
		select {
		case c.room.resign <- c:
		case <-c.room.done:
		}

	case MessageTypeChat:
		var payload ChatPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		select {
		case c.room.chat <- &chatRequest{client: c, message: payload.Message}:
		case <-c.room.done:
		}

	case MessageTypeReady:
		ready := true
		if len(msg.Payload) > 0 {
			var payload struct {
				Ready *bool `json:"ready"`
			}
			if err := json.Unmarshal(msg.Payload, &payload); err == nil && payload.Ready != nil {
				ready = *payload.Ready
			}
		}
		select {
		case c.room.ready <- &readyRequest{client: c, ready: ready}:
		case <-c.room.done:
		}

	case MessageTypeGameEnd:
		var payload GameEndPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("invalid_game_end", "Invalid game end payload")
			return
		}
		select {
		case c.room.gameEnd <- &gameEndRequest{client: c, payload: payload}:
		case <-c.room.done:
		}

	default:
		c.postSeen()
	}
}

func (c *Client) postSeen() {
	select {
	case c.room.seen <- c:
	case <-c.room.done:
	}
}

func (c *Client) sendError(code, message string) {
	msg, _ := NewMessage(MessageTypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
	c.Send(msg)
}

func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.WithError(err).Error("failed to marshal message")
		return
	}
	c.trySend(data)
}

// trySend never blocks and never panics on a closed channel; a slow or
// disconnecting client just misses the frame.
func (c *Client) trySend(data []byte) {
	defer func() {
		recover()
	}()

	select {
	case c.send <- data:
	default:
	}
}

// closeWithCode writes a close control frame and tears the connection down.
// Safe to call concurrently with the write pump.
func (c *Client) closeWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.conn.Close()
}
