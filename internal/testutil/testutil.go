package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tempochess/game-server/internal/api"
	"github.com/tempochess/game-server/internal/config"
	"github.com/tempochess/game-server/internal/matchmaker"
	"github.com/tempochess/game-server/internal/service"
	"github.com/tempochess/game-server/internal/store/memory"
	"github.com/tempochess/game-server/internal/websocket"
)

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:             "0",
		Environment:      "test",
		LogLevel:         "warn",
		TicketSecret:     "test-ticket-secret-for-testing-only",
		TicketExpiration: time.Minute,
		PublicWSScheme:   "ws",
	}
}

// Options overrides the timer knobs of a test server. Zero values keep the
// production defaults.
type Options struct {
	Hub   websocket.HubConfig
	Lobby websocket.LobbyHubConfig
	Pool  matchmaker.Config
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server   *httptest.Server
	Docs     *memory.Store
	Services *service.Services
	Games    *websocket.Hub
	Lobbies  *websocket.LobbyHub
	Pool     *matchmaker.Matchmaker
	Config   *config.Config
}

// NewTestServer wires the full stack over the in-memory document store
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	return NewTestServerWith(t, Options{})
}

func NewTestServerWith(t *testing.T, opts Options) *TestServer {
	t.Helper()

	cfg := TestConfig()
	docs := memory.New()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	services := service.NewServices(docs, cfg)

	// The listener has to exist before the hub so ticket URLs can point at
	// the real test port.
	server := httptest.NewUnstartedServer(http.NotFoundHandler())
	wsBase := "ws://" + server.Listener.Addr().String()

	hubCfg := opts.Hub
	hubCfg.PublicWSBase = wsBase
	games := websocket.NewHub(docs, services.Profiles, services.LobbyList, services.Tickets, log, hubCfg)
	lobbies := websocket.NewLobbyHub(docs, games, services.LobbyList, log, opts.Lobby)

	pool := matchmaker.New(games, matchmaker.NewMemoryStore(), log, opts.Pool)
	go pool.Run()

	server.Config.Handler = api.NewRouter(api.Deps{
		Games:     games,
		Lobbies:   lobbies,
		Pool:      pool,
		Docs:      docs,
		Profiles:  services.Profiles,
		LobbyList: services.LobbyList,
		Tickets:   services.Tickets,
		Log:       log,
	})
	server.Start()

	ts := &TestServer{
		Server:   server,
		Docs:     docs,
		Services: services,
		Games:    games,
		Lobbies:  lobbies,
		Pool:     pool,
		Config:   cfg,
	}

	t.Cleanup(func() {
		server.Close()
		pool.Stop()
		pool.Wait()
		lobbies.Stop()
		games.Stop()
	})

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/v1%s", ts.Server.URL, path)
}

// WSBase returns the websocket flavor of the base URL
func (ts *TestServer) WSBase() string {
	return "ws" + ts.Server.URL[4:]
}

// GameWSURL builds a game connection URL with raw query parameters
func (ts *TestServer) GameWSURL(gameID, query string) string {
	url := fmt.Sprintf("%s/api/v1/games/%s/ws", ts.WSBase(), gameID)
	if query != "" {
		url += "?" + query
	}
	return url
}

// LobbyWSURL builds the creator's lobby channel URL
func (ts *TestServer) LobbyWSURL(lobbyID, playerID string) string {
	return fmt.Sprintf("%s/api/v1/lobbies/%s/ws?playerId=%s", ts.WSBase(), lobbyID, playerID)
}
