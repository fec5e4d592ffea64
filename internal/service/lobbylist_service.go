package service

import (
	"context"
	"errors"
	"time"

	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/store"
)

// LobbyListEntry is one row of the public lobby browser, kept under
// lobbylist/<lobbyId>.
type LobbyListEntry struct {
	LobbyID         string             `json:"lobbyId"`
	HostName        string             `json:"hostName"`
	HostRating      int                `json:"hostRating"`
	GameMode        domain.GameMode    `json:"gameMode"`
	Status          domain.LobbyStatus `json:"status"`
	Private         bool               `json:"private"`
	PrivateCode     string             `json:"privateCode,omitempty"`
	AllowSpectators bool               `json:"allowSpectators"`
	MaxSpectators   int                `json:"maxSpectators"`
	SpectatorCount  int                `json:"spectatorCount"`
	OpeningName     string             `json:"openingName,omitempty"`
	Unrated         bool               `json:"unrated"`
	CreatedAt       int64              `json:"createdAt"`
	GameRoomID      string             `json:"gameRoomId,omitempty"`
}

// LobbyListService maintains the browsable set of open lobbies.
type LobbyListService struct {
	docs store.DocumentStore
}

func NewLobbyListService(docs store.DocumentStore) *LobbyListService {
	return &LobbyListService{docs: docs}
}

func (s *LobbyListService) Add(ctx context.Context, entry LobbyListEntry) error {
	if entry.LobbyID == "" {
		return domain.ErrLobbyNotFound
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().UnixMilli()
	}
	if entry.MaxSpectators == 0 {
		entry.MaxSpectators = domain.DefaultMaxSpectators
	}

	data, err := store.Encode(entry)
	if err != nil {
		return err
	}
	return s.docs.SetDocument(ctx, store.LobbyListPath(entry.LobbyID), data, false)
}

// Update applies a partial patch to an existing entry.
func (s *LobbyListService) Update(ctx context.Context, lobbyID string, patch map[string]interface{}) error {
	err := s.docs.UpdateDocument(ctx, store.LobbyListPath(lobbyID), patch)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrLobbyNotFound
	}
	return err
}

func (s *LobbyListService) Remove(ctx context.Context, lobbyID string) error {
	return s.docs.DeleteDocument(ctx, store.LobbyListPath(lobbyID))
}

// List returns browsable entries, optionally filtered by status. Private
// lobbies are excluded unless includePrivate is set.
func (s *LobbyListService) List(ctx context.Context, status string, includePrivate bool) ([]LobbyListEntry, error) {
	var filters []store.Filter
	if status != "" {
		filters = append(filters, store.Filter{Field: "status", Op: "==", Value: status})
	}
	if !includePrivate {
		filters = append(filters, store.Filter{Field: "private", Op: "==", Value: false})
	}

	snaps, err := s.docs.QueryDocuments(ctx, store.LobbyListCollection, filters)
	if err != nil {
		return nil, err
	}

	entries := make([]LobbyListEntry, 0, len(snaps))
	for _, snap := range snaps {
		var entry LobbyListEntry
		if err := store.Decode(snap.Data, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *LobbyListService) GetByID(ctx context.Context, lobbyID string) (*LobbyListEntry, error) {
	data, err := s.docs.GetDocument(ctx, store.LobbyListPath(lobbyID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrLobbyNotFound
		}
		return nil, err
	}

	var entry LobbyListEntry
	if err := store.Decode(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetByCode resolves a private lobby by its share code.
func (s *LobbyListService) GetByCode(ctx context.Context, code string) (*LobbyListEntry, error) {
	snaps, err := s.docs.QueryDocuments(ctx, store.LobbyListCollection, []store.Filter{
		{Field: "privateCode", Op: "==", Value: code},
	})
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, domain.ErrLobbyNotFound
	}

	var entry LobbyListEntry
	if err := store.Decode(snaps[0].Data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// AddSpectator bumps the spectator count, enforcing the per-lobby cap.
func (s *LobbyListService) AddSpectator(ctx context.Context, lobbyID string) (int, error) {
	entry, err := s.GetByID(ctx, lobbyID)
	if err != nil {
		return 0, err
	}

	limit := entry.MaxSpectators
	if limit <= 0 {
		limit = domain.DefaultMaxSpectators
	}
	if !entry.AllowSpectators || entry.SpectatorCount >= limit {
		return entry.SpectatorCount, domain.ErrSpectatorsFull
	}

	count := entry.SpectatorCount + 1
	err = s.Update(ctx, lobbyID, map[string]interface{}{"spectatorCount": count})
	return count, err
}

func (s *LobbyListService) RemoveSpectator(ctx context.Context, lobbyID string) (int, error) {
	entry, err := s.GetByID(ctx, lobbyID)
	if err != nil {
		return 0, err
	}

	count := entry.SpectatorCount - 1
	if count < 0 {
		count = 0
	}
	err = s.Update(ctx, lobbyID, map[string]interface{}{"spectatorCount": count})
	return count, err
}

// Cleanup deletes entries older than maxAge and returns how many went away.
func (s *LobbyListService) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	snaps, err := s.docs.QueryDocuments(ctx, store.LobbyListCollection, nil)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge).UnixMilli()
	var ops []store.WriteOp
	for _, snap := range snaps {
		var entry LobbyListEntry
		if err := store.Decode(snap.Data, &entry); err != nil {
			return 0, err
		}
		if entry.CreatedAt < cutoff {
			ops = append(ops, store.WriteOp{Path: snap.Path, Delete: true})
		}
	}
	if len(ops) == 0 {
		return 0, nil
	}

	if err := s.docs.BatchWrite(ctx, ops); err != nil {
		return 0, err
	}
	return len(ops), nil
}
