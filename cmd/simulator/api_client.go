package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient handles HTTP communication with the game server
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api/v1",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Response types matching the server

type Player struct {
	PlayerID      string `json:"playerId"`
	DisplayName   string `json:"displayName"`
	Rating        int    `json:"rating"`
	IsProvisional bool   `json:"isProvisional"`
}

type MatchAssignment struct {
	GameID        string `json:"gameId"`
	GameMode      string `json:"gameMode"`
	Color         string `json:"color"`
	ConnectionURL string `json:"connectionUrl"`
	Opponent      Player `json:"opponent"`
}

type QueueJoinResult struct {
	Matched       bool             `json:"matched"`
	Match         *MatchAssignment `json:"match,omitempty"`
	Position      int              `json:"position"`
	EstimatedWait int64            `json:"estimatedWaitMs"`
}

type LobbyState struct {
	LobbyID    string        `json:"lobbyId"`
	Status     string        `json:"status"`
	Creator    Player        `json:"creator"`
	Opponent   *Player       `json:"opponent,omitempty"`
	Settings   LobbySettings `json:"settings"`
	GameRoomID string        `json:"gameRoomId,omitempty"`
}

type LobbySettings struct {
	PlayerColor     string `json:"playerColor"`
	GameMode        string `json:"gameMode"`
	Private         bool   `json:"private"`
	AllowSpectators bool   `json:"allowSpectators"`
	Unrated         bool   `json:"unrated"`
}

type MatchReady struct {
	LobbyID  string `json:"lobbyId"`
	RoomID   string `json:"roomId"`
	URL      string `json:"url"`
	Color    string `json:"color"`
	GameMode string `json:"gameMode"`
	Opponent Player `json:"opponent"`
}

type GameSnapshot struct {
	GameID   string `json:"gameId"`
	Status   string `json:"status"`
	GameMode string `json:"gameMode"`
}

// JoinQueue enqueues a player; the result either carries a match or a queue
// position to poll from.
func (c *APIClient) JoinQueue(p Player, gameMode string) (*QueueJoinResult, error) {
	body := map[string]interface{}{
		"playerId":      p.PlayerID,
		"displayName":   p.DisplayName,
		"rating":        p.Rating,
		"isProvisional": p.IsProvisional,
		"gameMode":      gameMode,
	}

	resp, err := c.post("/matchmaking/queue/join", body)
	if err != nil {
		return nil, fmt.Errorf("queue join request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("queue join failed (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var result QueueJoinResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// CreateLobby opens a challenge lobby for the creator
func (c *APIClient) CreateLobby(creator Player, settings LobbySettings) (*LobbyState, error) {
	body := map[string]interface{}{
		"creator":  creator,
		"settings": settings,
	}

	resp, err := c.post("/lobbies", body)
	if err != nil {
		return nil, fmt.Errorf("lobby create request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("lobby create failed (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var state LobbyState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &state, nil
}

// JoinLobby seats the joiner and returns their game room assignment
func (c *APIClient) JoinLobby(lobbyID string, joiner Player) (*MatchReady, error) {
	resp, err := c.post("/lobbies/"+lobbyID+"/join", map[string]interface{}{"player": joiner})
	if err != nil {
		return nil, fmt.Errorf("lobby join request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("lobby join failed (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var seat MatchReady
	if err := json.NewDecoder(resp.Body).Decode(&seat); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &seat, nil
}

// GameState fetches the current snapshot of a game
func (c *APIClient) GameState(gameID string) (*GameSnapshot, error) {
	resp, err := c.get("/games/" + gameID + "/state")
	if err != nil {
		return nil, fmt.Errorf("state request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("state fetch failed (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var snap GameSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &snap, nil
}

// HTTP helpers

func (c *APIClient) get(path string) (*http.Response, error) {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

func (c *APIClient) post(path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest("POST", c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}
