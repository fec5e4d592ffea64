package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempochess/game-server/internal/service"
	"github.com/tempochess/game-server/internal/testutil"
)

func addLobbyEntry(t *testing.T, ts *testutil.TestServer, entry map[string]interface{}) {
	t.Helper()

	resp := testutil.PostJSON(t, ts.APIURL("/lobbylist/add"), entry)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func deleteURL(t *testing.T, url string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestLobbyListAPI_AddAndFetch(t *testing.T) {
	ts := testutil.NewTestServer(t)

	addLobbyEntry(t, ts, map[string]interface{}{
		"lobbyId":         "l1",
		"hostName":        "Alice",
		"hostRating":      1520,
		"gameMode":        "blitz",
		"status":          "waiting",
		"allowSpectators": true,
	})

	resp := testutil.GetJSON(t, ts.APIURL("/lobbylist/lobby/l1"))
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var entry service.LobbyListEntry
	testutil.AssertJSONResponse(t, resp, &entry)
	assert.Equal(t, "Alice", entry.HostName)
	assert.Equal(t, 1520, entry.HostRating)
	assert.Positive(t, entry.CreatedAt)

	resp = testutil.GetJSON(t, ts.APIURL("/lobbylist/lobby/missing"))
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)

	// An entry without an id is refused.
	resp = testutil.PostJSON(t, ts.APIURL("/lobbylist/add"), map[string]interface{}{
		"hostName": "nameless",
	})
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)
}

func TestLobbyListAPI_PrivateVisibility(t *testing.T) {
	ts := testutil.NewTestServer(t)

	addLobbyEntry(t, ts, map[string]interface{}{
		"lobbyId":  "open",
		"hostName": "Alice",
		"gameMode": "blitz",
		"status":   "waiting",
	})
	addLobbyEntry(t, ts, map[string]interface{}{
		"lobbyId":     "hidden",
		"hostName":    "Bob",
		"gameMode":    "blitz",
		"status":      "waiting",
		"private":     true,
		"privateCode": "AB12CD",
	})

	resp := testutil.GetJSON(t, ts.APIURL("/lobbylist/list?status=waiting"))
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var entries []service.LobbyListEntry
	testutil.AssertJSONResponse(t, resp, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "open", entries[0].LobbyID)

	resp = testutil.GetJSON(t, ts.APIURL("/lobbylist/list?status=waiting&includePrivate=true"))
	defer resp.Body.Close()
	testutil.AssertJSONResponse(t, resp, &entries)
	assert.Len(t, entries, 2)

	// Private lobbies stay reachable by their share code.
	resp = testutil.GetJSON(t, ts.APIURL("/lobbylist/code/AB12CD"))
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var hidden service.LobbyListEntry
	testutil.AssertJSONResponse(t, resp, &hidden)
	assert.Equal(t, "hidden", hidden.LobbyID)

	resp = testutil.GetJSON(t, ts.APIURL("/lobbylist/code/ZZZZZZ"))
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
}

func TestLobbyListAPI_UpdateAndRemove(t *testing.T) {
	ts := testutil.NewTestServer(t)

	addLobbyEntry(t, ts, map[string]interface{}{
		"lobbyId":  "l1",
		"hostName": "Alice",
		"gameMode": "rapid",
		"status":   "waiting",
	})

	resp := testutil.PostJSON(t, ts.APIURL("/lobbylist/update/l1"), map[string]interface{}{
		"status":     "matched",
		"gameRoomId": "game-7",
	})
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusNoContent)

	resp = testutil.GetJSON(t, ts.APIURL("/lobbylist/lobby/l1"))
	defer resp.Body.Close()
	var entry service.LobbyListEntry
	testutil.AssertJSONResponse(t, resp, &entry)
	assert.Equal(t, "game-7", entry.GameRoomID)
	assert.Equal(t, "Alice", entry.HostName)

	resp = testutil.PostJSON(t, ts.APIURL("/lobbylist/update/missing"), map[string]interface{}{
		"status": "matched",
	})
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)

	resp = deleteURL(t, ts.APIURL("/lobbylist/remove/l1"))
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusNoContent)

	resp = testutil.GetJSON(t, ts.APIURL("/lobbylist/lobby/l1"))
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
}

func TestLobbyListAPI_Spectators(t *testing.T) {
	ts := testutil.NewTestServer(t)

	addLobbyEntry(t, ts, map[string]interface{}{
		"lobbyId":         "l1",
		"hostName":        "Alice",
		"gameMode":        "blitz",
		"status":          "waiting",
		"allowSpectators": true,
		"maxSpectators":   1,
	})

	resp := testutil.PostJSON(t, ts.APIURL("/lobbylist/spectator/add"), map[string]string{"lobbyId": "l1"})
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var count struct {
		LobbyID        string `json:"lobbyId"`
		SpectatorCount int    `json:"spectatorCount"`
	}
	testutil.AssertJSONResponse(t, resp, &count)
	assert.Equal(t, 1, count.SpectatorCount)

	resp = testutil.PostJSON(t, ts.APIURL("/lobbylist/spectator/add"), map[string]string{"lobbyId": "l1"})
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusConflict)

	resp = testutil.PostJSON(t, ts.APIURL("/lobbylist/spectator/remove"), map[string]string{"lobbyId": "l1"})
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertJSONResponse(t, resp, &count)
	assert.Equal(t, 0, count.SpectatorCount)

	resp = testutil.PostJSON(t, ts.APIURL("/lobbylist/spectator/add"), map[string]string{"lobbyId": "missing"})
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
}

func TestLobbyListAPI_Cleanup(t *testing.T) {
	ts := testutil.NewTestServer(t)

	// Seed one entry already past the cutoff.
	require.NoError(t, ts.Services.LobbyList.Add(context.Background(), service.LobbyListEntry{
		LobbyID:   "stale",
		HostName:  "Old",
		GameMode:  "blitz",
		Status:    "waiting",
		CreatedAt: time.Now().Add(-2 * time.Hour).UnixMilli(),
	}))
	addLobbyEntry(t, ts, map[string]interface{}{
		"lobbyId":  "fresh",
		"hostName": "New",
		"gameMode": "blitz",
		"status":   "waiting",
	})

	resp := testutil.PostJSON(t, ts.APIURL("/lobbylist/cleanup?maxAgeMs=3600000"), nil)
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var result map[string]int
	testutil.AssertJSONResponse(t, resp, &result)
	assert.Equal(t, 1, result["removed"])

	resp = testutil.GetJSON(t, ts.APIURL("/lobbylist/lobby/stale"))
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)

	resp = testutil.GetJSON(t, ts.APIURL("/lobbylist/lobby/fresh"))
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	resp = testutil.PostJSON(t, ts.APIURL("/lobbylist/cleanup?maxAgeMs=-5"), nil)
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)
}
