package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Storage
	DatabaseURL string
	RedisURL    string

	// Connection tickets
	TicketSecret     string
	TicketExpiration time.Duration

	// Public URLs handed to matched players
	PublicWSScheme string
	PublicHost     string

	// Game timers
	ClockTick        time.Duration
	HeartbeatPeriod  time.Duration
	HeartbeatTimeout time.Duration
	AbandonTimeout   time.Duration

	// Lobby and matchmaking
	LobbyTimeout    time.Duration
	QueueTTL        time.Duration
	PendingMatchTTL time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		TicketSecret:     getEnv("TICKET_SECRET", ""),
		TicketExpiration: time.Duration(getEnvInt("TICKET_EXPIRATION_MINUTES", 10)) * time.Minute,
		PublicWSScheme:   getEnv("PUBLIC_WS_SCHEME", "ws"),
		PublicHost:       getEnv("PUBLIC_HOST", ""),
		ClockTick:        time.Duration(getEnvInt("CLOCK_TICK_MS", 100)) * time.Millisecond,
		HeartbeatPeriod:  time.Duration(getEnvInt("HEARTBEAT_SECONDS", 10)) * time.Second,
		HeartbeatTimeout: time.Duration(getEnvInt("HEARTBEAT_TIMEOUT_SECONDS", 30)) * time.Second,
		AbandonTimeout:   time.Duration(getEnvInt("ABANDON_TIMEOUT_MS", 60000)) * time.Millisecond,
		LobbyTimeout:     time.Duration(getEnvInt("LOBBY_TIMEOUT_MINUTES", 5)) * time.Minute,
		QueueTTL:         time.Duration(getEnvInt("QUEUE_TTL_SECONDS", 30)) * time.Second,
		PendingMatchTTL:  time.Duration(getEnvInt("PENDING_MATCH_TTL_SECONDS", 60)) * time.Second,
	}

	if cfg.TicketSecret == "" {
		return nil, fmt.Errorf("TICKET_SECRET environment variable is required")
	}
	if cfg.PublicHost == "" {
		cfg.PublicHost = "localhost:" + cfg.Port
	}

	return cfg, nil
}

// PublicWSBase is the URL prefix baked into the connection URLs handed to
// matched players, e.g. "ws://play.example.com".
func (c *Config) PublicWSBase() string {
	return c.PublicWSScheme + "://" + c.PublicHost
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}
