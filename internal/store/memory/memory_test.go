package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tempochess/game-server/internal/store"
	"github.com/tempochess/game-server/internal/store/memory"
)

func TestStore_SetAndGet(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	err := s.SetDocument(ctx, "games/g1", map[string]interface{}{
		"status": "waiting",
		"mode":   "blitz",
	}, false)
	require.NoError(t, err)

	got, err := s.GetDocument(ctx, "games/g1")
	require.NoError(t, err)
	assert.Equal(t, "waiting", got["status"])
	assert.Equal(t, "blitz", got["mode"])

	_, err = s.GetDocument(ctx, "games/missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_SetMerge(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.SetDocument(ctx, "users/u1/profile/ratings", map[string]interface{}{
		"blitz": map[string]interface{}{"rating": 1500, "gamesPlayed": 4},
		"rapid": map[string]interface{}{"rating": 1450, "gamesPlayed": 20},
	}, false))

	// Merge should overlay nested fields without dropping siblings.
	require.NoError(t, s.SetDocument(ctx, "users/u1/profile/ratings", map[string]interface{}{
		"blitz": map[string]interface{}{"rating": 1520, "gamesPlayed": 5},
	}, true))

	got, err := s.GetDocument(ctx, "users/u1/profile/ratings")
	require.NoError(t, err)

	blitz := got["blitz"].(map[string]interface{})
	assert.EqualValues(t, 1520, blitz["rating"])
	assert.EqualValues(t, 5, blitz["gamesPlayed"])

	rapid := got["rapid"].(map[string]interface{})
	assert.EqualValues(t, 1450, rapid["rating"])

	// A plain set replaces the whole document.
	require.NoError(t, s.SetDocument(ctx, "users/u1/profile/ratings", map[string]interface{}{
		"bullet": map[string]interface{}{"rating": 1600},
	}, false))

	got, err = s.GetDocument(ctx, "users/u1/profile/ratings")
	require.NoError(t, err)
	assert.Nil(t, got["blitz"])
	assert.NotNil(t, got["bullet"])
}

func TestStore_UpdateDocument(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	err := s.UpdateDocument(ctx, "games/missing", map[string]interface{}{"status": "playing"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SetDocument(ctx, "games/g1", map[string]interface{}{
		"status":       "waiting",
		"stateVersion": 1,
	}, false))

	// Masked update applies only the named fields.
	require.NoError(t, s.UpdateDocument(ctx, "games/g1", map[string]interface{}{
		"status":       "playing",
		"stateVersion": 99,
	}, "status"))

	got, err := s.GetDocument(ctx, "games/g1")
	require.NoError(t, err)
	assert.Equal(t, "playing", got["status"])
	assert.EqualValues(t, 1, got["stateVersion"])
}

func TestStore_DeleteDocument(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.SetDocument(ctx, "lobbies/l1", map[string]interface{}{"status": "waiting"}, false))
	require.NoError(t, s.DeleteDocument(ctx, "lobbies/l1"))

	_, err := s.GetDocument(ctx, "lobbies/l1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Deleting a missing document is not an error.
	assert.NoError(t, s.DeleteDocument(ctx, "lobbies/l1"))
}

func TestStore_QueryDocuments(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	seed := map[string]map[string]interface{}{
		"lobbylist/a": {"gameMode": "blitz", "spectatorCount": 3, "private": false},
		"lobbylist/b": {"gameMode": "rapid", "spectatorCount": 0, "private": false},
		"lobbylist/c": {"gameMode": "blitz", "spectatorCount": 12, "private": true},
		"games/g1":    {"gameMode": "blitz"},
	}
	for path, data := range seed {
		require.NoError(t, s.SetDocument(ctx, path, data, false))
	}

	tests := []struct {
		name      string
		filters   []store.Filter
		wantPaths []string
	}{
		{
			name:      "no filters returns the collection sorted by path",
			filters:   nil,
			wantPaths: []string{"lobbylist/a", "lobbylist/b", "lobbylist/c"},
		},
		{
			name: "equality on string field",
			filters: []store.Filter{
				{Field: "gameMode", Op: "==", Value: "blitz"},
			},
			wantPaths: []string{"lobbylist/a", "lobbylist/c"},
		},
		{
			name: "numeric comparison",
			filters: []store.Filter{
				{Field: "spectatorCount", Op: ">=", Value: 3},
			},
			wantPaths: []string{"lobbylist/a", "lobbylist/c"},
		},
		{
			name: "combined filters",
			filters: []store.Filter{
				{Field: "gameMode", Op: "==", Value: "blitz"},
				{Field: "private", Op: "==", Value: false},
			},
			wantPaths: []string{"lobbylist/a"},
		},
		{
			name: "missing field matches nothing",
			filters: []store.Filter{
				{Field: "nope", Op: "==", Value: 1},
			},
			wantPaths: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps, err := s.QueryDocuments(ctx, "lobbylist", tt.filters)
			require.NoError(t, err)

			var paths []string
			for _, snap := range snaps {
				paths = append(paths, snap.Path)
			}
			assert.Equal(t, tt.wantPaths, paths)
		})
	}
}

func TestStore_BatchWrite(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.SetDocument(ctx, "lobbylist/old", map[string]interface{}{"status": "waiting"}, false))

	err := s.BatchWrite(ctx, []store.WriteOp{
		{Path: "users/u1/matchHistory/m1", Data: map[string]interface{}{"result": "white_win"}},
		{Path: "users/u2/matchHistory/m1", Data: map[string]interface{}{"result": "white_win"}},
		{Path: "lobbylist/old", Delete: true},
	})
	require.NoError(t, err)

	got, err := s.GetDocument(ctx, "users/u1/matchHistory/m1")
	require.NoError(t, err)
	assert.Equal(t, "white_win", got["result"])

	_, err = s.GetDocument(ctx, "lobbylist/old")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 2, s.Len())
}

func TestStore_CopyIsolation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	in := map[string]interface{}{"moves": []interface{}{"e2e4"}}
	require.NoError(t, s.SetDocument(ctx, "games/g1", in, false))

	// Mutating the caller's map after the write must not leak into the store.
	in["moves"] = []interface{}{"e2e4", "e7e5"}

	got, err := s.GetDocument(ctx, "games/g1")
	require.NoError(t, err)
	assert.Len(t, got["moves"], 1)

	// Mutating a read result must not leak either.
	got["status"] = "playing"
	again, err := s.GetDocument(ctx, "games/g1")
	require.NoError(t, err)
	assert.Nil(t, again["status"])
}
