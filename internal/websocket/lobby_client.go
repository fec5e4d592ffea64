package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// LobbyClient is the creator's live channel into a pairing slot. The lobby
// pushes progress frames; inbound traffic is keepalive only.
type LobbyClient struct {
	lobby       *LobbyRoom
	conn        *websocket.Conn
	send        chan []byte
	playerID    string
	displayName string
	log         *logrus.Entry
}

func NewLobbyClient(lobby *LobbyRoom, conn *websocket.Conn, playerID, displayName string) *LobbyClient {
	return &LobbyClient{
		lobby:       lobby,
		conn:        conn,
		send:        make(chan []byte, 256),
		playerID:    playerID,
		displayName: displayName,
		log:         lobby.log.WithField("player_id", playerID),
	}
}

func (c *LobbyClient) ReadPump() {
	defer func() {
		select {
		case c.lobby.detach <- c:
		case <-c.lobby.done:
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
				c.log.WithError(err).Debug("lobby websocket read failed")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypePing {
			reply, _ := NewMessage(MessageTypePong, PingPayload{Timestamp: time.Now().UnixMilli()})
			c.Send(reply)
		}
	}
}

func (c *LobbyClient) WritePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
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

func (c *LobbyClient) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.WithError(err).Error("failed to marshal lobby message")
		return
	}
	c.trySend(data)
}

func (c *LobbyClient) trySend(data []byte) {
	defer func() {
		recover()
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *LobbyClient) closeWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.conn.Close()
}
