package matchmaker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/matchmaker"
	"github.com/tempochess/game-server/internal/service"
	"github.com/tempochess/game-server/internal/store/memory"
	"github.com/tempochess/game-server/internal/testutil"
	"github.com/tempochess/game-server/internal/websocket"
)

const defaultTimeout = 5 * time.Second

// fakeClock lets tests move queue time forward without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func joinQueue(t *testing.T, ts *testutil.TestServer, p domain.PlayerSnapshot, mode domain.GameMode) *matchmaker.JoinResult {
	t.Helper()

	resp := testutil.PostJSON(t, ts.APIURL("/matchmaking/queue/join"), domain.QueueEntry{
		PlayerID:      p.PlayerID,
		DisplayName:   p.DisplayName,
		Rating:        p.Rating,
		IsProvisional: p.IsProvisional,
		GameMode:      mode,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result matchmaker.JoinResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return &result
}

func queueStatus(t *testing.T, ts *testutil.TestServer, playerID string) *matchmaker.Status {
	t.Helper()

	resp := testutil.GetJSON(t, ts.APIURL("/matchmaking/queue/status?playerId="+playerID))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status matchmaker.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	return &status
}

func queueInfo(t *testing.T, ts *testutil.TestServer) *matchmaker.Info {
	t.Helper()

	resp := testutil.GetJSON(t, ts.APIURL("/matchmaking/queue/info"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info matchmaker.Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	return &info
}

func leaveQueue(t *testing.T, ts *testutil.TestServer, playerID string) {
	t.Helper()

	resp := testutil.PostJSON(t, ts.APIURL("/matchmaking/queue/leave"), map[string]string{
		"playerId": playerID,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body["left"])
}

func TestQueue_PairsAndDeliversBothSides(t *testing.T) {
	ts := testutil.NewTestServer(t)

	alice := testutil.NewPlayerBuilder("alice").Build()
	bob := testutil.NewPlayerBuilder("bob").Build()

	// First join waits.
	first := joinQueue(t, ts, alice, domain.GameModeBlitz)
	assert.False(t, first.Matched)
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, int64(10_000), first.EstimatedWait)

	// The second equal-rated join pairs immediately and gets its side.
	second := joinQueue(t, ts, bob, domain.GameModeBlitz)
	require.True(t, second.Matched)
	require.NotNil(t, second.Match)
	assert.NotEmpty(t, second.Match.GameID)
	assert.Equal(t, domain.GameModeBlitz, second.Match.GameMode)
	assert.True(t, second.Match.Color.Valid())
	assert.Contains(t, second.Match.ConnectionURL, "ticket=")
	assert.Equal(t, alice.PlayerID, second.Match.Opponent.PlayerID)
	assert.Equal(t, alice.Rating, second.Match.Opponent.Rating)

	// The opponent left the queue atomically; their side is parked.
	assert.False(t, queueStatus(t, ts, alice.PlayerID).InQueue)
	info := queueInfo(t, ts)
	assert.Equal(t, 0, info.TotalWaiting)
	assert.Equal(t, 1, info.PendingCount)

	// The opponent's next poll collects the parked assignment.
	collected := joinQueue(t, ts, alice, domain.GameModeBlitz)
	require.True(t, collected.Matched)
	require.NotNil(t, collected.Match)
	assert.Equal(t, second.Match.GameID, collected.Match.GameID)
	assert.Equal(t, second.Match.Color.Opposite(), collected.Match.Color)
	assert.Equal(t, bob.PlayerID, collected.Match.Opponent.PlayerID)
	assert.Equal(t, 0, queueInfo(t, ts).PendingCount)

	// Both connection URLs admit their holders into the same live game.
	aliceConn := testutil.NewWSClient(t, collected.Match.ConnectionURL)
	aliceConn.ExpectMessage(websocket.MessageTypeWaiting, defaultTimeout)
	bobConn := testutil.NewWSClient(t, second.Match.ConnectionURL)

	aliceReady := aliceConn.ExpectGameStart(defaultTimeout)
	bobReady := bobConn.ExpectGameStart(defaultTimeout)
	assert.Equal(t, collected.Match.Color, aliceReady.YourColor)
	assert.Equal(t, second.Match.Color, bobReady.YourColor)
	require.NotNil(t, aliceReady.Opponent)
	assert.Equal(t, bob.PlayerID, aliceReady.Opponent.PlayerID)

	white := aliceConn
	if bobReady.YourColor == domain.ColorWhite {
		white = bobConn
	}
	white.Move("e2e4")
	assert.Equal(t, "e2e4", aliceConn.ExpectMove(defaultTimeout).Move.UCI)
	assert.Equal(t, "e2e4", bobConn.ExpectMove(defaultTimeout).Move.UCI)
}

func TestQueue_RepeatJoinKeepsOneEntry(t *testing.T) {
	ts := testutil.NewTestServer(t)
	alice := testutil.NewPlayerBuilder("alice").Build()

	first := joinQueue(t, ts, alice, domain.GameModeBlitz)
	assert.False(t, first.Matched)
	assert.Equal(t, 1, first.Position)

	// Polling again keeps one entry and the same spot in line.
	again := joinQueue(t, ts, alice, domain.GameModeBlitz)
	assert.False(t, again.Matched)
	assert.Equal(t, 1, again.Position)

	assert.Equal(t, 1, queueInfo(t, ts).TotalWaiting)
}

func TestQueue_PairsWithinSameModeOnly(t *testing.T) {
	ts := testutil.NewTestServer(t)

	alice := testutil.NewPlayerBuilder("alice").Build()
	bob := testutil.NewPlayerBuilder("bob").Build()
	carol := testutil.NewPlayerBuilder("carol").Build()

	joinQueue(t, ts, alice, domain.GameModeBlitz)
	rapid := joinQueue(t, ts, bob, domain.GameModeRapid)
	assert.False(t, rapid.Matched)
	assert.Equal(t, 2, rapid.Position)

	info := queueInfo(t, ts)
	assert.Equal(t, 2, info.TotalWaiting)
	assert.Equal(t, 1, info.ByMode[domain.GameModeBlitz])
	assert.Equal(t, 1, info.ByMode[domain.GameModeRapid])

	// The blitz joiner pairs with the blitz entry, skipping the rapid one.
	res := joinQueue(t, ts, carol, domain.GameModeBlitz)
	require.True(t, res.Matched)
	assert.Equal(t, alice.PlayerID, res.Match.Opponent.PlayerID)

	assert.True(t, queueStatus(t, ts, bob.PlayerID).InQueue)
}

func TestQueue_FirstAcceptingEntryWins(t *testing.T) {
	ts := testutil.NewTestServer(t)

	alice := testutil.NewPlayerBuilder("alice").WithRating(1400).Build()
	bob := testutil.NewPlayerBuilder("bob").WithRating(1600).Build()
	carol := testutil.NewPlayerBuilder("carol").WithRating(1500).Build()

	// 1400 and 1600 sit 200 apart, outside each other's fresh windows.
	joinQueue(t, ts, alice, domain.GameModeBlitz)
	assert.False(t, joinQueue(t, ts, bob, domain.GameModeBlitz).Matched)

	// 1500 accepts both; queue order decides.
	res := joinQueue(t, ts, carol, domain.GameModeBlitz)
	require.True(t, res.Matched)
	assert.Equal(t, alice.PlayerID, res.Match.Opponent.PlayerID)

	status := queueStatus(t, ts, bob.PlayerID)
	assert.True(t, status.InQueue)
	assert.Equal(t, 1, status.Position)
}

func TestQueue_WindowWidensWhilePolling(t *testing.T) {
	clock := newFakeClock()
	ts := testutil.NewTestServerWith(t, testutil.Options{
		Pool: matchmaker.Config{Now: clock.Now},
	})

	alice := testutil.NewPlayerBuilder("alice").WithRating(1200).Build()
	bob := testutil.NewPlayerBuilder("bob").WithRating(1700).Build()

	// 500 apart: far outside the fresh 150 window.
	joinQueue(t, ts, alice, domain.GameModeBlitz)
	assert.False(t, joinQueue(t, ts, bob, domain.GameModeBlitz).Matched)

	// Polling keeps the original wait, so the window keeps growing.
	clock.Advance(12 * time.Second)
	res := joinQueue(t, ts, alice, domain.GameModeBlitz)
	assert.False(t, res.Matched)
	assert.Equal(t, 1, res.Position)

	status := queueStatus(t, ts, alice.PlayerID)
	assert.Equal(t, int64(12_000), status.WaitMs)
	assert.Equal(t, 170, status.RatingWindow)
	assert.Equal(t, int64(18_000), status.TTLRemaining)

	// At 24s the window is 370, still short of 500.
	clock.Advance(12 * time.Second)
	assert.False(t, joinQueue(t, ts, alice, domain.GameModeBlitz).Matched)

	// At 28s both windows reach 520 and the pair forms.
	clock.Advance(4 * time.Second)
	res = joinQueue(t, ts, alice, domain.GameModeBlitz)
	require.True(t, res.Matched)
	assert.Equal(t, bob.PlayerID, res.Match.Opponent.PlayerID)
}

func TestQueue_WindowSchedule(t *testing.T) {
	clock := newFakeClock()
	ts := testutil.NewTestServerWith(t, testutil.Options{
		Pool: matchmaker.Config{QueueTTL: 2 * time.Minute, Now: clock.Now},
	})

	alice := testutil.NewPlayerBuilder("alice").Build()
	joinQueue(t, ts, alice, domain.GameModeBlitz)

	steps := []struct {
		advance time.Duration
		ageSec  int64
		window  int
	}{
		{0, 0, 150},
		{9 * time.Second, 9, 150},
		{1 * time.Second, 10, 150},
		{5 * time.Second, 15, 200},
		{4 * time.Second, 19, 240},
		{1 * time.Second, 20, 250},
		{4 * time.Second, 24, 370},
		{1 * time.Second, 25, 400},
		{4 * time.Second, 29, 560},
		{2 * time.Second, 31, 600},
		{59 * time.Second, 90, 600},
	}
	for _, step := range steps {
		clock.Advance(step.advance)
		status := queueStatus(t, ts, alice.PlayerID)
		require.True(t, status.InQueue, "at %ds", step.ageSec)
		assert.Equal(t, step.window, status.RatingWindow, "at %ds", step.ageSec)
		assert.Equal(t, step.ageSec*1000, status.WaitMs, "at %ds", step.ageSec)
	}
}

func TestQueue_ExpiredEntryNeverPairs(t *testing.T) {
	clock := newFakeClock()
	ts := testutil.NewTestServerWith(t, testutil.Options{
		Pool: matchmaker.Config{Now: clock.Now},
	})

	alice := testutil.NewPlayerBuilder("alice").Build()
	bob := testutil.NewPlayerBuilder("bob").Build()

	joinQueue(t, ts, alice, domain.GameModeBlitz)

	// The entry lapses at exactly 30s and is pruned, not paired.
	clock.Advance(30 * time.Second)
	res := joinQueue(t, ts, bob, domain.GameModeBlitz)
	assert.False(t, res.Matched)
	assert.Equal(t, 1, res.Position)

	assert.False(t, queueStatus(t, ts, alice.PlayerID).InQueue)
	assert.Equal(t, 1, queueInfo(t, ts).TotalWaiting)
}

func TestQueue_PendingMatchExpires(t *testing.T) {
	clock := newFakeClock()
	ts := testutil.NewTestServerWith(t, testutil.Options{
		Pool: matchmaker.Config{Now: clock.Now},
	})

	alice := testutil.NewPlayerBuilder("alice").Build()
	bob := testutil.NewPlayerBuilder("bob").Build()

	joinQueue(t, ts, alice, domain.GameModeBlitz)
	require.True(t, joinQueue(t, ts, bob, domain.GameModeBlitz).Matched)
	assert.Equal(t, 1, queueInfo(t, ts).PendingCount)

	// An uncollected assignment is garbage-collected after its TTL.
	clock.Advance(61 * time.Second)
	res := joinQueue(t, ts, alice, domain.GameModeBlitz)
	assert.False(t, res.Matched)
	assert.Equal(t, 1, res.Position)
	assert.Equal(t, 0, queueInfo(t, ts).PendingCount)
}

func TestQueue_PendingMatchBelongsToItsPlayer(t *testing.T) {
	ts := testutil.NewTestServer(t)

	alice := testutil.NewPlayerBuilder("alice").Build()
	bob := testutil.NewPlayerBuilder("bob").Build()
	carol := testutil.NewPlayerBuilder("carol").Build()

	joinQueue(t, ts, alice, domain.GameModeBlitz)
	paired := joinQueue(t, ts, bob, domain.GameModeBlitz)
	require.True(t, paired.Matched)

	// A third player cannot take over the parked assignment.
	res := joinQueue(t, ts, carol, domain.GameModeBlitz)
	assert.False(t, res.Matched)
	assert.Equal(t, 1, res.Position)

	info := queueInfo(t, ts)
	assert.Equal(t, 1, info.TotalWaiting)
	assert.Equal(t, 1, info.PendingCount)

	// The owner collects it ahead of any fresh pairing attempt.
	collected := joinQueue(t, ts, alice, domain.GameModeBlitz)
	require.True(t, collected.Matched)
	assert.Equal(t, paired.Match.GameID, collected.Match.GameID)
}

func TestQueue_LeaveRemovesEntry(t *testing.T) {
	ts := testutil.NewTestServer(t)
	alice := testutil.NewPlayerBuilder("alice").Build()

	joinQueue(t, ts, alice, domain.GameModeBlitz)
	require.True(t, queueStatus(t, ts, alice.PlayerID).InQueue)

	leaveQueue(t, ts, alice.PlayerID)
	assert.False(t, queueStatus(t, ts, alice.PlayerID).InQueue)
	assert.Equal(t, 0, queueInfo(t, ts).TotalWaiting)

	// Leaving when not queued is fine.
	leaveQueue(t, ts, alice.PlayerID)
}

func TestQueue_RejectsBadRequests(t *testing.T) {
	ts := testutil.NewTestServer(t)
	alice := testutil.NewPlayerBuilder("alice").Build()

	// Missing player id.
	resp := testutil.PostJSON(t, ts.APIURL("/matchmaking/queue/join"), map[string]string{
		"gameMode": "blitz",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown game mode.
	resp = testutil.PostJSON(t, ts.APIURL("/matchmaking/queue/join"), map[string]string{
		"playerId": alice.PlayerID,
		"gameMode": "hyperbullet",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Status and leave require a player id.
	resp = testutil.GetJSON(t, ts.APIURL("/matchmaking/queue/status"))
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = testutil.PostJSON(t, ts.APIURL("/matchmaking/queue/leave"), map[string]string{})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A rejected poll must not evict the caller's live entry.
	joinQueue(t, ts, alice, domain.GameModeBlitz)
	resp = testutil.PostJSON(t, ts.APIURL("/matchmaking/queue/join"), map[string]string{
		"playerId": alice.PlayerID,
		"gameMode": "hyperbullet",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.True(t, queueStatus(t, ts, alice.PlayerID).InQueue)
}

func TestQueue_StateSurvivesRestart(t *testing.T) {
	clock := newFakeClock()
	docs := memory.New()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	services := service.NewServices(docs, testutil.TestConfig())
	games := websocket.NewHub(docs, services.Profiles, services.LobbyList, services.Tickets, log, websocket.HubConfig{
		PublicWSBase: "ws://127.0.0.1:0",
	})
	defer games.Stop()

	store := matchmaker.NewMemoryStore()
	cfg := matchmaker.Config{Now: clock.Now}

	pool := matchmaker.New(games, store, log, cfg)
	go pool.Run()

	alice := testutil.NewPlayerBuilder("alice").WithRating(1200).Build()
	ctx := context.Background()
	_, err := pool.Join(ctx, domain.QueueEntry{
		PlayerID:    alice.PlayerID,
		DisplayName: alice.DisplayName,
		Rating:      alice.Rating,
		GameMode:    domain.GameModeBlitz,
	})
	require.NoError(t, err)

	pool.Stop()
	pool.Wait()

	// A fresh pool over the same store picks the entry back up with its
	// original wait.
	clock.Advance(12 * time.Second)
	pool = matchmaker.New(games, store, log, cfg)
	go pool.Run()

	status, err := pool.Status(ctx, alice.PlayerID)
	require.NoError(t, err)
	assert.True(t, status.InQueue)
	assert.Equal(t, int64(12_000), status.WaitMs)
	assert.Equal(t, 170, status.RatingWindow)
	assert.Equal(t, domain.GameModeBlitz, status.GameMode)

	// A stopped pool turns requests away instead of hanging.
	pool.Stop()
	pool.Wait()
	_, err = pool.Join(ctx, domain.QueueEntry{PlayerID: "late", GameMode: domain.GameModeBlitz})
	assert.ErrorIs(t, err, websocket.ErrRoomClosed)
}
