package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tempochess/game-server/internal/api"
	"github.com/tempochess/game-server/internal/config"
	"github.com/tempochess/game-server/internal/matchmaker"
	"github.com/tempochess/game-server/internal/service"
	"github.com/tempochess/game-server/internal/store"
	"github.com/tempochess/game-server/internal/store/memory"
	storepg "github.com/tempochess/game-server/internal/store/postgres"
	"github.com/tempochess/game-server/internal/websocket"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Document store: Postgres when configured, in-memory otherwise.
	var docs store.DocumentStore
	if cfg.DatabaseURL != "" {
		db, err := storepg.NewConnection(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to database")
		}
		docs = storepg.NewStore(db)
		log.Info("using postgres document store")
	} else {
		docs = memory.New()
		log.Warn("DATABASE_URL not set, using in-memory document store")
	}

	// Matchmaking state: Redis when configured, in-memory otherwise.
	var queueStore matchmaker.StateStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("failed to parse REDIS_URL")
		}
		queueStore = matchmaker.NewRedisStore(redis.NewClient(opts))
		log.Info("using redis matchmaking store")
	} else {
		queueStore = matchmaker.NewMemoryStore()
		log.Warn("REDIS_URL not set, using in-memory matchmaking store")
	}

	services := service.NewServices(docs, cfg)

	games := websocket.NewHub(docs, services.Profiles, services.LobbyList, services.Tickets, log, websocket.HubConfig{
		ClockTick:        cfg.ClockTick,
		HeartbeatPeriod:  cfg.HeartbeatPeriod,
		HeartbeatTimeout: cfg.HeartbeatTimeout,
		AbandonTimeout:   cfg.AbandonTimeout,
		PublicWSBase:     cfg.PublicWSBase(),
	})

	lobbies := websocket.NewLobbyHub(docs, games, services.LobbyList, log, websocket.LobbyHubConfig{
		Timeout: cfg.LobbyTimeout,
	})

	pool := matchmaker.New(games, queueStore, log, matchmaker.Config{
		QueueTTL:   cfg.QueueTTL,
		PendingTTL: cfg.PendingMatchTTL,
	})
	go pool.Run()

	router := api.NewRouter(api.Deps{
		Games:     games,
		Lobbies:   lobbies,
		Pool:      pool,
		Docs:      docs,
		Profiles:  services.Profiles,
		LobbyList: services.LobbyList,
		Tickets:   services.Tickets,
		Log:       log,
	})

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("http shutdown failed")
	}

	// Stop accepting pairing work, then let every room deliver its shutdown
	// close frame and persist.
	pool.Stop()
	pool.Wait()
	lobbies.Stop()
	games.Stop()

	log.Info("server stopped")
}
