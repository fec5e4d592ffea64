package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/service"
	"github.com/tempochess/game-server/internal/store/memory"
)

func lobbyEntry(id string) service.LobbyListEntry {
	return service.LobbyListEntry{
		LobbyID:         id,
		HostName:        "Host-" + id,
		HostRating:      1500,
		GameMode:        domain.GameModeBlitz,
		Status:          domain.LobbyStatusWaiting,
		AllowSpectators: true,
	}
}

func TestLobbyList_AddAndGet(t *testing.T) {
	list := service.NewLobbyListService(memory.New())
	ctx := context.Background()

	require.NoError(t, list.Add(ctx, lobbyEntry("l1")))

	entry, err := list.GetByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Host-l1", entry.HostName)
	assert.Positive(t, entry.CreatedAt)
	assert.Equal(t, domain.DefaultMaxSpectators, entry.MaxSpectators)

	_, err = list.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrLobbyNotFound)

	// Entries need an id to be addressable.
	err = list.Add(ctx, service.LobbyListEntry{HostName: "nameless"})
	assert.ErrorIs(t, err, domain.ErrLobbyNotFound)
}

func TestLobbyList_ListFilters(t *testing.T) {
	list := service.NewLobbyListService(memory.New())
	ctx := context.Background()

	open := lobbyEntry("open")
	require.NoError(t, list.Add(ctx, open))

	hidden := lobbyEntry("hidden")
	hidden.Private = true
	hidden.PrivateCode = "AB12CD"
	require.NoError(t, list.Add(ctx, hidden))

	matched := lobbyEntry("matched")
	matched.Status = domain.LobbyStatusMatched
	require.NoError(t, list.Add(ctx, matched))

	entries, err := list.List(ctx, string(domain.LobbyStatusWaiting), false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "open", entries[0].LobbyID)

	entries, err = list.List(ctx, string(domain.LobbyStatusWaiting), true)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = list.List(ctx, "", false)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = list.List(ctx, "", true)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestLobbyList_GetByCode(t *testing.T) {
	list := service.NewLobbyListService(memory.New())
	ctx := context.Background()

	hidden := lobbyEntry("hidden")
	hidden.Private = true
	hidden.PrivateCode = "AB12CD"
	require.NoError(t, list.Add(ctx, hidden))

	entry, err := list.GetByCode(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, "hidden", entry.LobbyID)

	_, err = list.GetByCode(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, domain.ErrLobbyNotFound)
}

func TestLobbyList_Update(t *testing.T) {
	list := service.NewLobbyListService(memory.New())
	ctx := context.Background()

	require.NoError(t, list.Add(ctx, lobbyEntry("l1")))
	require.NoError(t, list.Update(ctx, "l1", map[string]interface{}{
		"status":     string(domain.LobbyStatusMatched),
		"gameRoomId": "game-9",
	}))

	entry, err := list.GetByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.LobbyStatusMatched, entry.Status)
	assert.Equal(t, "game-9", entry.GameRoomID)
	assert.Equal(t, "Host-l1", entry.HostName)

	err = list.Update(ctx, "missing", map[string]interface{}{"status": "matched"})
	assert.ErrorIs(t, err, domain.ErrLobbyNotFound)
}

func TestLobbyList_SpectatorCounting(t *testing.T) {
	list := service.NewLobbyListService(memory.New())
	ctx := context.Background()

	entry := lobbyEntry("l1")
	entry.MaxSpectators = 2
	require.NoError(t, list.Add(ctx, entry))

	count, err := list.AddSpectator(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = list.AddSpectator(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// The cap holds and the stored count does not move.
	count, err = list.AddSpectator(ctx, "l1")
	assert.ErrorIs(t, err, domain.ErrSpectatorsFull)
	assert.Equal(t, 2, count)

	count, err = list.RemoveSpectator(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = list.RemoveSpectator(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// The count never goes negative.
	count, err = list.RemoveSpectator(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestLobbyList_SpectatorsDisallowed(t *testing.T) {
	list := service.NewLobbyListService(memory.New())
	ctx := context.Background()

	entry := lobbyEntry("l1")
	entry.AllowSpectators = false
	require.NoError(t, list.Add(ctx, entry))

	_, err := list.AddSpectator(ctx, "l1")
	assert.ErrorIs(t, err, domain.ErrSpectatorsFull)

	_, err = list.AddSpectator(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrLobbyNotFound)
}

func TestLobbyList_Cleanup(t *testing.T) {
	list := service.NewLobbyListService(memory.New())
	ctx := context.Background()

	stale := lobbyEntry("stale")
	stale.CreatedAt = time.Now().Add(-2 * time.Hour).UnixMilli()
	require.NoError(t, list.Add(ctx, stale))

	fresh := lobbyEntry("fresh")
	require.NoError(t, list.Add(ctx, fresh))

	removed, err := list.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = list.GetByID(ctx, "stale")
	assert.ErrorIs(t, err, domain.ErrLobbyNotFound)
	_, err = list.GetByID(ctx, "fresh")
	assert.NoError(t, err)

	removed, err = list.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestLobbyList_Remove(t *testing.T) {
	list := service.NewLobbyListService(memory.New())
	ctx := context.Background()

	require.NoError(t, list.Add(ctx, lobbyEntry("l1")))
	require.NoError(t, list.Remove(ctx, "l1"))

	_, err := list.GetByID(ctx, "l1")
	assert.ErrorIs(t, err, domain.ErrLobbyNotFound)

	// Removing an absent entry is not an error.
	assert.NoError(t, list.Remove(ctx, "l1"))
}
