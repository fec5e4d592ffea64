package main

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message mirrors the server's websocket envelope
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSPlayer is one scripted side of a match. A background goroutine drains
// inbound frames so the driver can block on the ones it cares about.
type WSPlayer struct {
	name string
	conn *websocket.Conn

	mu     sync.Mutex
	frames []Message
	closed bool

	gameEnded chan Message
	started   chan struct{}
	startOnce sync.Once
}

// Connect dials a seat's connection URL as handed out by matchmaking or a
// lobby.
func Connect(name, url string) (*WSPlayer, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	p := &WSPlayer{
		name:      name,
		conn:      conn,
		gameEnded: make(chan Message, 1),
		started:   make(chan struct{}),
	}
	go p.readLoop()
	return p, nil
}

func (p *WSPlayer) readLoop() {
	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			p.mu.Lock()
			p.closed = true
			p.mu.Unlock()
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		p.mu.Lock()
		p.frames = append(p.frames, msg)
		p.mu.Unlock()

		switch msg.Type {
		case "ping":
			p.send("pong", nil)
		case "game_start":
			p.startOnce.Do(func() { close(p.started) })
		case "game_ended":
			select {
			case p.gameEnded <- msg:
			default:
			}
		case "error":
			fmt.Printf("  [%s] server error: %s\n", p.name, string(msg.Payload))
		}
	}
}

func (p *WSPlayer) send(msgType string, payload interface{}) error {
	msg := map[string]interface{}{
		"type":      msgType,
		"timestamp": time.Now().UnixMilli(),
	}
	if payload != nil {
		msg["payload"] = payload
	}
	return p.conn.WriteJSON(msg)
}

// WaitForStart blocks until the server announces the game is live
func (p *WSPlayer) WaitForStart(timeout time.Duration) error {
	select {
	case <-p.started:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%s: game did not start within %s", p.name, timeout)
	}
}

// WaitForEnd blocks until the settlement frame arrives
func (p *WSPlayer) WaitForEnd(timeout time.Duration) (*Message, error) {
	select {
	case msg := <-p.gameEnded:
		return &msg, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%s: no game_ended within %s", p.name, timeout)
	}
}

func (p *WSPlayer) Move(uci string) error {
	return p.send("move", map[string]string{"uci": uci})
}

func (p *WSPlayer) Resign() error {
	return p.send("resign", nil)
}

func (p *WSPlayer) DeclareEnd(result, reason string) error {
	return p.send("game_end", map[string]string{"result": result, "reason": reason})
}

func (p *WSPlayer) Chat(text string) error {
	return p.send("chat", map[string]string{"message": text})
}

// FrameCount reports how many frames of the given type arrived so far
func (p *WSPlayer) FrameCount(msgType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, msg := range p.frames {
		if msg.Type == msgType {
			n++
		}
	}
	return n
}

func (p *WSPlayer) Close() {
	p.conn.Close()
}

// LobbyListener holds the creator's lobby channel open until the match_ready
// frame delivers their seat.
type LobbyListener struct {
	conn    *websocket.Conn
	seat    chan MatchReady
	timeout time.Duration
}

func ListenLobby(url string, timeout time.Duration) (*LobbyListener, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	l := &LobbyListener{conn: conn, seat: make(chan MatchReady, 1), timeout: timeout}
	go l.readLoop()
	return l, nil
}

func (l *LobbyListener) readLoop() {
	defer l.conn.Close()
	for {
		_, raw, err := l.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "ping":
			l.conn.WriteJSON(map[string]interface{}{"type": "pong", "timestamp": time.Now().UnixMilli()})
		case "match_ready":
			var seat MatchReady
			if err := json.Unmarshal(msg.Payload, &seat); err == nil {
				select {
				case l.seat <- seat:
				default:
				}
			}
			return
		}
	}
}

func (l *LobbyListener) WaitForMatch() (*MatchReady, error) {
	select {
	case seat := <-l.seat:
		return &seat, nil
	case <-time.After(l.timeout):
		return nil, fmt.Errorf("no match_ready within %s", l.timeout)
	}
}
