// Package matchmaker pairs queued players by rating proximity. One global
// actor owns the pool; its state survives restarts through a StateStore.
package matchmaker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/tempochess/game-server/internal/domain"
)

// stateKey is where the serialized pool lives in redis.
const stateKey = "matchmaking:state"

// State is the durable matchmaker state: the waiting queue in FIFO order and
// pending matches keyed by player id.
type State struct {
	Queue   []domain.QueueEntry            `json:"queue"`
	Pending map[string]domain.PendingMatch `json:"pending"`
}

func NewState() *State {
	return &State{
		Queue:   []domain.QueueEntry{},
		Pending: make(map[string]domain.PendingMatch),
	}
}

// StateStore persists the pool after every mutation and loads it lazily on
// the first operation after a restart.
type StateStore interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}

// RedisStore keeps the pool as a single JSON value.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context) (*State, error) {
	raw, err := s.client.Get(ctx, stateKey).Bytes()
	if err == redis.Nil {
		return NewState(), nil
	}
	if err != nil {
		return nil, err
	}

	state := NewState()
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, err
	}
	if state.Pending == nil {
		state.Pending = make(map[string]domain.PendingMatch)
	}
	return state, nil
}

func (s *RedisStore) Save(ctx context.Context, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, stateKey, raw, 0).Err()
}

// MemoryStore is the in-process StateStore for tests and dev mode. It keeps
// the serialized form so loads always return an independent copy.
type MemoryStore struct {
	mu  sync.Mutex
	raw []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.raw == nil {
		return NewState(), nil
	}
	state := NewState()
	if err := json.Unmarshal(s.raw, state); err != nil {
		return nil, err
	}
	if state.Pending == nil {
		state.Pending = make(map[string]domain.PendingMatch)
	}
	return state, nil
}

func (s *MemoryStore) Save(ctx context.Context, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
	return nil
}
