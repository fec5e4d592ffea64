package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tempochess/game-server/internal/domain"
)

// PlayerBuilder creates test player identities with a builder pattern
type PlayerBuilder struct {
	playerID      string
	displayName   string
	rating        int
	isProvisional bool
}

// NewPlayerBuilder creates a new PlayerBuilder with default values
func NewPlayerBuilder(displayName string) *PlayerBuilder {
	return &PlayerBuilder{
		playerID:    fmt.Sprintf("%s-%s", displayName, uuid.New().String()[:8]),
		displayName: displayName,
		rating:      1500,
	}
}

// WithID sets the player id
func (b *PlayerBuilder) WithID(id string) *PlayerBuilder {
	b.playerID = id
	return b
}

// WithRating sets the rating
func (b *PlayerBuilder) WithRating(rating int) *PlayerBuilder {
	b.rating = rating
	return b
}

// Provisional marks the player as provisionally rated
func (b *PlayerBuilder) Provisional() *PlayerBuilder {
	b.isProvisional = true
	return b
}

func (b *PlayerBuilder) Build() domain.PlayerSnapshot {
	return domain.PlayerSnapshot{
		PlayerID:      b.playerID,
		DisplayName:   b.displayName,
		Rating:        b.rating,
		IsProvisional: b.isProvisional,
	}
}

// ConnectQuery renders the snapshot as game connection URL parameters
func ConnectQuery(p domain.PlayerSnapshot, color domain.PlayerColor, extra url.Values) string {
	q := url.Values{}
	q.Set("playerId", p.PlayerID)
	q.Set("displayName", p.DisplayName)
	q.Set("rating", fmt.Sprintf("%d", p.Rating))
	if p.IsProvisional {
		q.Set("isProvisional", "true")
	}
	if color != "" {
		q.Set("color", string(color))
	}
	for key, vals := range extra {
		for _, v := range vals {
			q.Set(key, v)
		}
	}
	return q.Encode()
}

// SpectatorQuery renders spectator connection parameters
func SpectatorQuery(p domain.PlayerSnapshot) string {
	return ConnectQuery(p, "", url.Values{"mode": {"spectator"}})
}

// InitGame seeds a room over the init RPC the way a lobby would
func InitGame(t *testing.T, ts *TestServer, gameID string, body map[string]interface{}) {
	t.Helper()

	resp := PostJSON(t, ts.APIURL("/games/"+gameID+"/init"), body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("init failed with status %d", resp.StatusCode)
	}
}

// ConnectPair seeds a game, joins white and black, and waits for it to go
// live on both connections.
func ConnectPair(t *testing.T, ts *TestServer, gameID string, mode domain.GameMode, white, black domain.PlayerSnapshot) (*WSClient, *WSClient) {
	t.Helper()

	InitGame(t, ts, gameID, map[string]interface{}{"gameMode": string(mode)})

	whiteConn := NewWSClient(t, ts.GameWSURL(gameID, ConnectQuery(white, domain.ColorWhite, nil)))
	whiteConn.ExpectMessage("waiting", 2*time.Second)

	blackConn := NewWSClient(t, ts.GameWSURL(gameID, ConnectQuery(black, domain.ColorBlack, nil)))

	whiteConn.ExpectGameStart(2 * time.Second)
	blackConn.ExpectGameStart(2 * time.Second)
	return whiteConn, blackConn
}

// PostJSON posts a JSON body and returns the response
func PostJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	resp, err := http.Post(url, "application/json", reader)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// GetJSON fetches a URL and returns the response
func GetJSON(t *testing.T, url string) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}
