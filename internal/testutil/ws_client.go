package testutil

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	gorillaWS "github.com/gorilla/websocket"

	"github.com/tempochess/game-server/internal/websocket"
)

// WSClient is a test WebSocket client
type WSClient struct {
	t        *testing.T
	conn     *gorillaWS.Conn
	messages chan *websocket.Message
	errors   chan error
	done     chan struct{}
	mu       sync.Mutex

	closeMu   sync.Mutex
	closeCode int
}

// NewWSClient connects to a game or lobby websocket URL
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()

	dialer := gorillaWS.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect to websocket: %v", err)
	}

	client := &WSClient{
		t:         t,
		conn:      conn,
		messages:  make(chan *websocket.Message, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
		closeCode: -1,
	}
	conn.SetCloseHandler(func(code int, text string) error {
		client.closeMu.Lock()
		client.closeCode = code
		client.closeMu.Unlock()
		message := gorillaWS.FormatCloseMessage(code, "")
		conn.WriteControl(gorillaWS.CloseMessage, message, time.Now().Add(time.Second))
		return nil
	})

	go client.readPump()

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

func (c *WSClient) readPump() {
	defer close(c.messages)
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				select {
				case <-c.done:
					return
				case c.errors <- err:
				}
				return
			}

			var msg websocket.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				c.errors <- err
				continue
			}

			select {
			case c.messages <- &msg:
			case <-c.done:
				return
			}
		}
	}
}

// Close closes the WebSocket connection gracefully
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
		c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

// CloseCode returns the close code the server sent, or -1 if the connection
// is still open or dropped without a close frame.
func (c *WSClient) CloseCode() int {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeCode
}

// WaitForClose blocks until the server closes the connection and returns the
// close code it sent.
func (c *WSClient) WaitForClose(timeout time.Duration) int {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				return c.CloseCode()
			}
		case <-c.errors:
			return c.CloseCode()
		case <-deadline:
			c.t.Fatalf("connection not closed within %s", timeout)
		}
	}
}

// Send writes one message envelope to the server
func (c *WSClient) Send(msgType websocket.MessageType, payload interface{}) {
	c.t.Helper()

	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		c.t.Fatalf("failed to build %s message: %v", msgType, err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("failed to marshal message: %v", err)
	}

	c.mu.Lock()
	err = c.conn.WriteMessage(gorillaWS.TextMessage, data)
	c.mu.Unlock()

	if err != nil {
		c.t.Fatalf("failed to send %s: %v", msgType, err)
	}
}

// Move sends a move in UCI notation
func (c *WSClient) Move(uci string) {
	c.Send(websocket.MessageTypeMove, websocket.MovePayload{UCI: uci})
}

// MoveWithID sends a move carrying a client message id for the ack
func (c *WSClient) MoveWithID(uci, messageID string) {
	c.Send(websocket.MessageTypeMove, websocket.MovePayload{UCI: uci, MessageID: messageID})
}

func (c *WSClient) Resign() {
	c.Send(websocket.MessageTypeResign, nil)
}

func (c *WSClient) Chat(text string) {
	c.Send(websocket.MessageTypeChat, websocket.ChatPayload{Message: text})
}

func (c *WSClient) Ready() {
	c.Send(websocket.MessageTypeReady, nil)
}

// DeclareEnd sends a client-declared game outcome
func (c *WSClient) DeclareEnd(result, reason string) {
	c.Send(websocket.MessageTypeGameEnd, websocket.GameEndPayload{Result: result, Reason: reason})
}

func (c *WSClient) Pong() {
	c.Send(websocket.MessageTypePong, nil)
}

// ExpectMessage waits for a message of the specified type, skipping others
// (clock updates, pings and the like).
func (c *WSClient) ExpectMessage(msgType websocket.MessageType, timeout time.Duration) *websocket.Message {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				c.t.Fatalf("connection closed while waiting for %s", msgType)
			}
			if msg.Type == msgType {
				return msg
			}
		case err := <-c.errors:
			// The read error may land while the wanted message is still
			// buffered; drain what already arrived before giving up.
			for {
				select {
				case msg := <-c.messages:
					if msg == nil {
						c.t.Fatalf("error while waiting for %s: %v", msgType, err)
					}
					if msg.Type == msgType {
						return msg
					}
				default:
					c.t.Fatalf("error while waiting for %s: %v", msgType, err)
				}
			}
		case <-deadline:
			c.t.Fatalf("timeout waiting for message type %s", msgType)
		}
	}
}

// ExpectReady waits for the admission snapshot
func (c *WSClient) ExpectReady(timeout time.Duration) *websocket.ReadyStatePayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeReady, timeout)

	var payload websocket.ReadyStatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode ready payload: %v", err)
	}
	return &payload
}

// ExpectGameStart waits for the game to go live
func (c *WSClient) ExpectGameStart(timeout time.Duration) *websocket.ReadyStatePayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeGameStart, timeout)

	var payload websocket.ReadyStatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode game start payload: %v", err)
	}
	return &payload
}

// ExpectMove waits for a move broadcast
func (c *WSClient) ExpectMove(timeout time.Duration) *websocket.MoveBroadcastPayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeMove, timeout)

	var payload websocket.MoveBroadcastPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode move payload: %v", err)
	}
	return &payload
}

// ExpectGameEnded waits for the settlement frame
func (c *WSClient) ExpectGameEnded(timeout time.Duration) *websocket.GameEndedPayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeGameEnded, timeout)

	var payload websocket.GameEndedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode game ended payload: %v", err)
	}
	return &payload
}

// ExpectClockUpdate waits for the next clock broadcast
func (c *WSClient) ExpectClockUpdate(timeout time.Duration) *websocket.ClockUpdatePayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeClockUpdate, timeout)

	var payload websocket.ClockUpdatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode clock payload: %v", err)
	}
	return &payload
}

// ExpectOpponentStatus waits for a connect/disconnect notice
func (c *WSClient) ExpectOpponentStatus(timeout time.Duration) *websocket.OpponentStatusPayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeOpponentStatus, timeout)

	var payload websocket.OpponentStatusPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode opponent status payload: %v", err)
	}
	return &payload
}

// ExpectError waits for and decodes an error frame
func (c *WSClient) ExpectError(timeout time.Duration) *websocket.ErrorPayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeError, timeout)

	var payload websocket.ErrorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode error payload: %v", err)
	}
	return &payload
}

// ExpectErrorWithCode waits for an error with a specific code
func (c *WSClient) ExpectErrorWithCode(code string, timeout time.Duration) *websocket.ErrorPayload {
	c.t.Helper()

	payload := c.ExpectError(timeout)
	if payload.Code != code {
		c.t.Fatalf("expected error code %s, got %s: %s", code, payload.Code, payload.Message)
	}
	return payload
}

// ExpectNoMessage verifies nothing but clock noise arrives within timeout
func (c *WSClient) ExpectNoMessage(timeout time.Duration) {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				return
			}
			if msg.Type != websocket.MessageTypeClockUpdate && msg.Type != websocket.MessageTypePing {
				c.t.Fatalf("unexpected message received: %s", msg.Type)
			}
		case <-deadline:
			return
		}
	}
}

// DrainMessages drains buffered messages until the stream settles
func (c *WSClient) DrainMessages() {
	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				return
			}
			deadline = time.After(50 * time.Millisecond)
		case <-deadline:
			return
		case <-c.done:
			return
		}
	}
}
