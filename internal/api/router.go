package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/tempochess/game-server/internal/api/handlers"
	"github.com/tempochess/game-server/internal/api/middleware"
	"github.com/tempochess/game-server/internal/matchmaker"
	"github.com/tempochess/game-server/internal/service"
	"github.com/tempochess/game-server/internal/store"
	"github.com/tempochess/game-server/internal/websocket"
)

// Deps carries everything the HTTP surface needs. main wires these once at
// startup.
type Deps struct {
	Games     *websocket.Hub
	Lobbies   *websocket.LobbyHub
	Pool      *matchmaker.Matchmaker
	Docs      store.DocumentStore
	Profiles  *service.ProfileService
	LobbyList *service.LobbyListService
	Tickets   *service.TicketService
	Log       *logrus.Logger
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Initialize handlers
	gameHandler := handlers.NewGameHandler(deps.Games)
	lobbyHandler := handlers.NewLobbyHandler(deps.Lobbies)
	lobbyListHandler := handlers.NewLobbyListHandler(deps.LobbyList)
	matchmakingHandler := handlers.NewMatchmakingHandler(deps.Pool)
	profileHandler := handlers.NewProfileHandler(deps.Profiles, deps.Docs)
	wsHandler := handlers.NewWebSocketHandler(deps.Games, deps.Lobbies, deps.Tickets, deps.Log)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Game room routes
		r.Route("/games/{gameID}", func(r chi.Router) {
			r.Post("/init", gameHandler.Init)
			r.Get("/state", gameHandler.State)
			r.Get("/ws", wsHandler.HandleGame)
		})

		// Challenge lobby routes
		r.Route("/lobbies", func(r chi.Router) {
			r.Post("/", lobbyHandler.Create)
			r.Route("/{lobbyID}", func(r chi.Router) {
				r.Get("/state", lobbyHandler.State)
				r.Post("/join", lobbyHandler.Join)
				r.Post("/cancel", lobbyHandler.Cancel)
				r.Get("/ws", wsHandler.HandleLobby)
			})
		})

		// Lobby browser routes
		r.Route("/lobbylist", func(r chi.Router) {
			r.Post("/add", lobbyListHandler.Add)
			r.Post("/update/{lobbyID}", lobbyListHandler.Update)
			r.Delete("/remove/{lobbyID}", lobbyListHandler.Remove)
			r.Get("/list", lobbyListHandler.List)
			r.Get("/lobby/{lobbyID}", lobbyListHandler.GetByID)
			r.Get("/code/{code}", lobbyListHandler.GetByCode)
			r.Post("/spectator/add", lobbyListHandler.AddSpectator)
			r.Post("/spectator/remove", lobbyListHandler.RemoveSpectator)
			r.Post("/cleanup", lobbyListHandler.Cleanup)
		})

		// Matchmaking queue routes
		r.Route("/matchmaking/queue", func(r chi.Router) {
			r.Post("/join", matchmakingHandler.JoinQueue)
			r.Get("/status", matchmakingHandler.QueueStatus)
			r.Post("/leave", matchmakingHandler.LeaveQueue)
			r.Get("/info", matchmakingHandler.QueueInfo)
		})

		// Player stats routes
		r.Route("/players/{playerID}", func(r chi.Router) {
			r.Get("/stats", profileHandler.GetStats)
			r.Get("/history", profileHandler.GetHistory)
		})
		r.Get("/leaderboard", profileHandler.Leaderboard)
	})

	return r
}
