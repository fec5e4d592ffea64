package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempochess/game-server/internal/rating"
	"github.com/tempochess/game-server/internal/service"
	"github.com/tempochess/game-server/internal/store"
	"github.com/tempochess/game-server/internal/testutil"
)

func TestProfileAPI_Stats(t *testing.T) {
	ts := testutil.NewTestServer(t)

	// Unknown players read as fresh profiles.
	resp := testutil.GetJSON(t, ts.APIURL("/players/ghost/stats"))
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var stats service.PlayerStats
	testutil.AssertJSONResponse(t, resp, &stats)
	assert.Equal(t, "ghost", stats.PlayerID)
	assert.Equal(t, rating.DefaultRating, stats.EloRating)
	assert.True(t, stats.IsProvisional)
	assert.Zero(t, stats.TotalGamesPlayed)

	// Settled games show up on the next read.
	_, err := ts.Services.Profiles.ApplyResult(context.Background(), "alice", "Alice", rating.Delta{
		OldRating: 1500, NewRating: 1510, Change: 10,
	}, 1)
	require.NoError(t, err)

	resp = testutil.GetJSON(t, ts.APIURL("/players/alice/stats"))
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertJSONResponse(t, resp, &stats)
	assert.Equal(t, 1510, stats.EloRating)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, "Alice", stats.DisplayName)
}

func TestProfileAPI_HistoryNewestFirst(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ctx := context.Background()

	matchesSeed := []struct {
		id      string
		endedAt int64
	}{
		{"m-old", 1_000},
		{"m-new", 3_000},
		{"m-mid", 2_000},
	}
	for _, m := range matchesSeed {
		require.NoError(t, ts.Docs.SetDocument(ctx, store.MatchHistoryPath("alice", m.id), map[string]interface{}{
			"matchId": m.id,
			"endedAt": m.endedAt,
			"result":  "white_win",
		}, false))
	}

	// Another player's history must not bleed in.
	require.NoError(t, ts.Docs.SetDocument(ctx, store.MatchHistoryPath("bob", "m-bob"), map[string]interface{}{
		"matchId": "m-bob",
		"endedAt": 9_000,
	}, false))

	resp := testutil.GetJSON(t, ts.APIURL("/players/alice/history"))
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var matches []map[string]interface{}
	testutil.AssertJSONResponse(t, resp, &matches)
	require.Len(t, matches, 3)
	assert.Equal(t, "m-new", matches[0]["matchId"])
	assert.Equal(t, "m-mid", matches[1]["matchId"])
	assert.Equal(t, "m-old", matches[2]["matchId"])

	// limit keeps the newest entries.
	resp = testutil.GetJSON(t, ts.APIURL("/players/alice/history?limit=1"))
	defer resp.Body.Close()
	testutil.AssertJSONResponse(t, resp, &matches)
	require.Len(t, matches, 1)
	assert.Equal(t, "m-new", matches[0]["matchId"])

	resp = testutil.GetJSON(t, ts.APIURL("/players/alice/history?limit=nope"))
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)
}

func TestProfileAPI_Leaderboard(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ctx := context.Background()

	seed := map[string]int{
		"p-low": 1400,
		"p-top": 1800,
		"p-mid": 1600,
	}
	for id, elo := range seed {
		require.NoError(t, ts.Docs.SetDocument(ctx, store.LeaderboardPath(id), map[string]interface{}{
			"playerId":  id,
			"eloRating": elo,
		}, false))
	}

	resp := testutil.GetJSON(t, ts.APIURL("/leaderboard"))
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var entries []map[string]interface{}
	testutil.AssertJSONResponse(t, resp, &entries)
	require.Len(t, entries, 3)
	assert.Equal(t, "p-top", entries[0]["playerId"])
	assert.Equal(t, "p-mid", entries[1]["playerId"])
	assert.Equal(t, "p-low", entries[2]["playerId"])

	resp = testutil.GetJSON(t, ts.APIURL("/leaderboard?limit=2"))
	defer resp.Body.Close()
	testutil.AssertJSONResponse(t, resp, &entries)
	assert.Len(t, entries, 2)

	resp = testutil.GetJSON(t, ts.APIURL("/leaderboard?limit=0"))
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)
}
