package matchmaker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/websocket"
)

// opTimeout bounds the store round-trips a single operation may spend.
const opTimeout = 5 * time.Second

// Config carries the pool knobs. Zero values fall back to the production
// defaults.
type Config struct {
	QueueTTL   time.Duration
	PendingTTL time.Duration
	Now        func() time.Time
}

func (c Config) withDefaults() Config {
	if c.QueueTTL <= 0 {
		c.QueueTTL = 30 * time.Second
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = 60 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Matchmaker is the global waiting pool. A single loop owns the queue and
// the pending-match table; the HTTP handlers block on reply channels.
type Matchmaker struct {
	games *websocket.Hub
	store StateStore
	log   *logrus.Entry
	cfg   Config

	queue   []domain.QueueEntry
	pending map[string]domain.PendingMatch
	loaded  bool
	dirty   bool

	joinReq   chan *joinRequest
	statusReq chan *statusRequest
	leaveReq  chan *leaveRequest
	infoReq   chan *infoRequest
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

// JoinResult is the POST /queue/join response.
type JoinResult struct {
	Matched       bool                    `json:"matched"`
	Match         *domain.MatchAssignment `json:"match,omitempty"`
	Position      int                     `json:"position,omitempty"`
	EstimatedWait int64                   `json:"estimatedWaitMs,omitempty"`
}

// Status is the GET /queue/status response.
type Status struct {
	InQueue      bool            `json:"inQueue"`
	Position     int             `json:"position,omitempty"`
	WaitMs       int64           `json:"waitMs,omitempty"`
	RatingWindow int             `json:"ratingWindow,omitempty"`
	TTLRemaining int64           `json:"ttlRemainingMs,omitempty"`
	GameMode     domain.GameMode `json:"gameMode,omitempty"`
}

// Info is the GET /queue/info response.
type Info struct {
	TotalWaiting int                     `json:"totalWaiting"`
	ByMode       map[domain.GameMode]int `json:"byMode"`
	PendingCount int                     `json:"pendingCount"`
}

type joinRequest struct {
	entry domain.QueueEntry
	reply chan joinReply
}

type joinReply struct {
	result *JoinResult
	err    error
}

type statusRequest struct {
	playerID string
	reply    chan *Status
}

type leaveRequest struct {
	playerID string
	reply    chan error
}

type infoRequest struct {
	reply chan *Info
}

func New(games *websocket.Hub, store StateStore, log *logrus.Logger, cfg Config) *Matchmaker {
	return &Matchmaker{
		games:   games,
		store:   store,
		log:     log.WithField("component", "matchmaker"),
		cfg:     cfg.withDefaults(),
		queue:   []domain.QueueEntry{},
		pending: make(map[string]domain.PendingMatch),

		joinReq:   make(chan *joinRequest),
		statusReq: make(chan *statusRequest),
		leaveReq:  make(chan *leaveRequest),
		infoReq:   make(chan *infoRequest),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (m *Matchmaker) Run() {
	defer close(m.done)

	for {
		select {
		case req := <-m.joinReq:
			result, err := m.handleJoin(req.entry)
			req.reply <- joinReply{result: result, err: err}

		case req := <-m.statusReq:
			req.reply <- m.handleStatus(req.playerID)

		case req := <-m.leaveReq:
			req.reply <- m.handleLeave(req.playerID)

		case req := <-m.infoReq:
			req.reply <- m.handleInfo()

		case <-m.stop:
			return
		}
	}
}

// Stop asks the loop to shut down. Wait blocks until it has.
func (m *Matchmaker) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Matchmaker) Wait() {
	<-m.done
}

// Join enqueues a player or returns their match right away: either a pending
// match from an earlier pairing or a fresh pair against the current queue.
func (m *Matchmaker) Join(ctx context.Context, entry domain.QueueEntry) (*JoinResult, error) {
	reply := make(chan joinReply, 1)
	select {
	case m.joinReq <- &joinRequest{entry: entry, reply: reply}:
	case <-m.done:
		return nil, websocket.ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.result, res.err
	case <-m.done:
		return nil, websocket.ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status reports a player's queue membership without mutating the pool
// beyond routine expiry pruning.
func (m *Matchmaker) Status(ctx context.Context, playerID string) (*Status, error) {
	reply := make(chan *Status, 1)
	select {
	case m.statusReq <- &statusRequest{playerID: playerID, reply: reply}:
	case <-m.done:
		return nil, websocket.ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case status := <-reply:
		return status, nil
	case <-m.done:
		return nil, websocket.ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Leave removes a player from the queue if present.
func (m *Matchmaker) Leave(ctx context.Context, playerID string) error {
	reply := make(chan error, 1)
	select {
	case m.leaveReq <- &leaveRequest{playerID: playerID, reply: reply}:
	case <-m.done:
		return websocket.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-m.done:
		return websocket.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Info reports pool-level counts.
func (m *Matchmaker) Info(ctx context.Context) (*Info, error) {
	reply := make(chan *Info, 1)
	select {
	case m.infoReq <- &infoRequest{reply: reply}:
	case <-m.done:
		return nil, websocket.ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case info := <-reply:
		return info, nil
	case <-m.done:
		return nil, websocket.ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Matchmaker) handleJoin(entry domain.QueueEntry) (*JoinResult, error) {
	m.ensureLoaded()
	m.prune()
	defer m.persistIfDirty()

	// A pairing completed by the opponent's join is waiting for this player.
	if pm, ok := m.pending[entry.PlayerID]; ok {
		delete(m.pending, entry.PlayerID)
		m.dirty = true
		match := pm.Match
		return &JoinResult{Matched: true, Match: &match}, nil
	}

	if !entry.GameMode.Valid() {
		return nil, domain.ErrInvalidGameMode
	}

	nowMs := m.cfg.Now().UnixMilli()
	entry.JoinedAt = nowMs
	entry.ExpiresAt = nowMs + m.cfg.QueueTTL.Milliseconds()

	// A repeat join is a poll, not a new wait: the entry keeps its original
	// JoinedAt, TTL and spot in line so its rating window keeps widening.
	slot := len(m.queue)
	if i, prev, ok := m.queueIndex(entry.PlayerID); ok {
		entry.JoinedAt = prev.JoinedAt
		entry.ExpiresAt = prev.ExpiresAt
		m.queue = append(m.queue[:i], m.queue[i+1:]...)
		m.dirty = true
		slot = i
	}

	if opponent, ok := m.findOpponent(entry, nowMs); ok {
		return m.pair(entry, opponent, nowMs)
	}

	m.queue = append(m.queue, domain.QueueEntry{})
	copy(m.queue[slot+1:], m.queue[slot:])
	m.queue[slot] = entry
	m.dirty = true

	position := slot + 1
	return &JoinResult{
		Matched:       false,
		Position:      position,
		EstimatedWait: int64(position) * 10_000,
	}, nil
}

// findOpponent scans the queue in FIFO order for the first entry that
// mutually accepts the candidate.
func (m *Matchmaker) findOpponent(entry domain.QueueEntry, nowMs int64) (domain.QueueEntry, bool) {
	for _, waiting := range m.queue {
		if waiting.GameMode != entry.GameMode {
			continue
		}
		if mutuallyAccepts(entry, waiting, nowMs) {
			return waiting, true
		}
	}
	return domain.QueueEntry{}, false
}

// pair removes the opponent from the queue, allocates a seeded room, parks
// the opponent's side as a PendingMatch and returns the caller's side. The
// removal happens before any reply so no third join can steal either player.
func (m *Matchmaker) pair(entry, opponent domain.QueueEntry, nowMs int64) (*JoinResult, error) {
	m.removeFromQueue(opponent.PlayerID)
	m.dirty = true

	entryColor := domain.RandomColor()
	entrySnap := queueSnapshot(entry)
	opponentSnap := queueSnapshot(opponent)

	white, black := entrySnap, opponentSnap
	if entryColor == domain.ColorBlack {
		white, black = opponentSnap, entrySnap
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	seats, err := m.games.AllocateMatch(ctx, websocket.InitRequest{
		GameMode: entry.GameMode,
	}, white, black)
	if err != nil {
		// The opponent goes back to the head of the queue; their spot in
		// line is preserved by JoinedAt ordering on the next attempt.
		m.queue = append([]domain.QueueEntry{opponent}, m.queue...)
		m.log.WithError(err).Error("allocating matched game")
		return nil, err
	}

	entrySeat := seats.Seat(entryColor)
	opponentSeat := seats.Seat(entryColor.Opposite())

	m.pending[opponent.PlayerID] = domain.PendingMatch{
		PlayerID: opponent.PlayerID,
		Match: domain.MatchAssignment{
			GameID:        seats.GameID,
			GameMode:      entry.GameMode,
			Color:         opponentSeat.Color,
			ConnectionURL: opponentSeat.URL,
			Opponent:      entrySnap,
		},
		CreatedAt: nowMs,
		ExpiresAt: nowMs + m.cfg.PendingTTL.Milliseconds(),
	}

	m.log.WithFields(logrus.Fields{
		"game_id":   seats.GameID,
		"player":    entry.PlayerID,
		"opponent":  opponent.PlayerID,
		"game_mode": entry.GameMode,
	}).Info("queue pairing complete")

	return &JoinResult{
		Matched: true,
		Match: &domain.MatchAssignment{
			GameID:        seats.GameID,
			GameMode:      entry.GameMode,
			Color:         entrySeat.Color,
			ConnectionURL: entrySeat.URL,
			Opponent:      opponentSnap,
		},
	}, nil
}

func (m *Matchmaker) handleStatus(playerID string) *Status {
	m.ensureLoaded()
	m.prune()
	defer m.persistIfDirty()

	nowMs := m.cfg.Now().UnixMilli()
	for i, entry := range m.queue {
		if entry.PlayerID != playerID {
			continue
		}
		waited := nowMs - entry.JoinedAt
		return &Status{
			InQueue:      true,
			Position:     i + 1,
			WaitMs:       waited,
			RatingWindow: ratingWindow(waited / 1000),
			TTLRemaining: entry.ExpiresAt - nowMs,
			GameMode:     entry.GameMode,
		}
	}
	return &Status{InQueue: false}
}

func (m *Matchmaker) handleLeave(playerID string) error {
	m.ensureLoaded()
	m.prune()
	defer m.persistIfDirty()

	if m.removeFromQueue(playerID) {
		m.dirty = true
	}
	return nil
}

func (m *Matchmaker) handleInfo() *Info {
	m.ensureLoaded()
	m.prune()
	defer m.persistIfDirty()

	info := &Info{
		TotalWaiting: len(m.queue),
		ByMode:       make(map[domain.GameMode]int),
		PendingCount: len(m.pending),
	}
	for _, entry := range m.queue {
		info.ByMode[entry.GameMode]++
	}
	return info
}

// ensureLoaded pulls persisted state on the first operation. Load failures
// log and start empty rather than wedging the pool.
func (m *Matchmaker) ensureLoaded() {
	if m.loaded {
		return
	}
	m.loaded = true

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	state, err := m.store.Load(ctx)
	if err != nil {
		m.log.WithError(err).Warn("loading matchmaking state, starting empty")
		return
	}
	m.queue = state.Queue
	m.pending = state.Pending
	if len(m.queue) > 0 || len(m.pending) > 0 {
		m.log.WithFields(logrus.Fields{
			"queued":  len(m.queue),
			"pending": len(m.pending),
		}).Info("restored matchmaking state")
	}
}

// prune drops expired queue entries and pending matches.
func (m *Matchmaker) prune() {
	nowMs := m.cfg.Now().UnixMilli()

	kept := m.queue[:0]
	for _, entry := range m.queue {
		if entry.ExpiresAt > nowMs {
			kept = append(kept, entry)
		} else {
			m.dirty = true
		}
	}
	m.queue = kept

	for id, pm := range m.pending {
		if pm.ExpiresAt <= nowMs {
			delete(m.pending, id)
			m.dirty = true
		}
	}
}

func (m *Matchmaker) persistIfDirty() {
	if !m.dirty {
		return
	}
	m.dirty = false

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := m.store.Save(ctx, &State{Queue: m.queue, Pending: m.pending}); err != nil {
		m.log.WithError(err).Warn("persisting matchmaking state")
	}
}

func (m *Matchmaker) removeFromQueue(playerID string) bool {
	for i, entry := range m.queue {
		if entry.PlayerID == playerID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Matchmaker) queueIndex(playerID string) (int, domain.QueueEntry, bool) {
	for i, entry := range m.queue {
		if entry.PlayerID == playerID {
			return i, entry, true
		}
	}
	return 0, domain.QueueEntry{}, false
}

func queueSnapshot(entry domain.QueueEntry) domain.PlayerSnapshot {
	return domain.PlayerSnapshot{
		PlayerID:      entry.PlayerID,
		DisplayName:   entry.DisplayName,
		Rating:        entry.Rating,
		IsProvisional: entry.IsProvisional,
	}
}

// ratingWindow returns the accepted rating distance for an entry that has
// waited waitedSec seconds, widening in steps and capped at 600.
func ratingWindow(waitedSec int64) int {
	var window int
	switch {
	case waitedSec < 10:
		window = 150
	case waitedSec < 20:
		window = 150 + 10*int(waitedSec-10)
	case waitedSec < 25:
		window = 250 + 30*int(waitedSec-20)
	default:
		window = 400 + 40*int(waitedSec-25)
	}
	if window > 600 {
		window = 600
	}
	return window
}

// mutuallyAccepts reports whether both entries fall inside each other's
// current window.
func mutuallyAccepts(a, b domain.QueueEntry, nowMs int64) bool {
	diff := a.Rating - b.Rating
	if diff < 0 {
		diff = -diff
	}
	windowA := ratingWindow((nowMs - a.JoinedAt) / 1000)
	windowB := ratingWindow((nowMs - b.JoinedAt) / 1000)
	return diff <= windowA && diff <= windowB
}
