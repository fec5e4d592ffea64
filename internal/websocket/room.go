package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/store"
)

var ErrRoomClosed = errors.New("room closed")

// persistTimeout bounds the synchronous snapshot write inside the loop.
const persistTimeout = 5 * time.Second

// GameRoom owns one match end to end. Every field below the channel block
// is touched only by the Run loop; timers and connections funnel their
// events through the channels so the loop stays the single writer.
type GameRoom struct {
	id  string
	hub *Hub
	log *logrus.Entry

	docs store.DocumentStore

	clockTick        time.Duration
	heartbeatPeriod  time.Duration
	heartbeatTimeout time.Duration
	abandonTimeout   time.Duration
	maxSpectators    int
	now              func() time.Time

	status       domain.GameStatus
	mode         domain.GameMode
	matchType    domain.MatchType
	initialized  bool
	isLobbyMode  bool
	isUnrated    bool
	lobbyID      string
	openingName  string
	gameState    *domain.GameState
	clock        *domain.Clock
	moveHistory  []domain.MoveRecord
	players      map[string]*playerSession
	spectators   map[*Client]*domain.SpectatorSession
	stateVersion int64
	createdAt    int64
	startedAt    int64
	endedAt      int64

	clockTicker   *time.Ticker
	tickC         <-chan time.Time
	abandonTimers map[string]*time.Timer

	join      chan *joinRequest
	leave     chan *Client
	move      chan *moveRequest
	resign    chan *Client
	chat      chan *chatRequest
	ready     chan *readyRequest
	gameEnd   chan *gameEndRequest
	seen      chan *Client
	init      chan *initRequest
	stateReq  chan *stateRequest
	abandoned chan string
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

// playerSession wraps the durable player record with the loop-owned
// connection handle and heartbeat bookkeeping.
type playerSession struct {
	domain.PlayerSession
	client   *Client
	lastSeen time.Time
}

// ConnectParams is the identity a connection presents at admission, parsed
// from the URL query or a signed ticket by the HTTP handler.
type ConnectParams struct {
	PlayerID      string
	DisplayName   string
	Rating        int
	IsProvisional bool
	Color         domain.PlayerColor
	Mode          string
	IsUnrated     bool
	OpeningName   string
	OpeningFEN    string
}

// InitRequest is the lobby pre-seeding payload for POST /init.
type InitRequest struct {
	GameMode    domain.GameMode `json:"gameMode"`
	IsLobbyMode bool            `json:"isLobbyMode"`
	IsUnrated   bool            `json:"isUnrated"`
	LobbyID     string          `json:"lobbyId,omitempty"`
	OpeningName string          `json:"openingName,omitempty"`
	StartingFEN string          `json:"startingFen,omitempty"`
	Players     InitPlayers     `json:"players"`
}

type InitPlayers struct {
	White *InitPlayer `json:"white,omitempty"`
	Black *InitPlayer `json:"black,omitempty"`
}

type InitPlayer struct {
	PlayerID      string `json:"playerId"`
	DisplayName   string `json:"displayName"`
	Rating        int    `json:"rating"`
	IsProvisional bool   `json:"isProvisional"`
}

// StateSnapshot is the GET /state response.
type StateSnapshot struct {
	GameID       string              `json:"gameId"`
	Status       domain.GameStatus   `json:"status"`
	GameMode     domain.GameMode     `json:"gameMode"`
	MatchType    domain.MatchType    `json:"matchType"`
	IsUnrated    bool                `json:"isUnrated"`
	IsLobbyMode  bool                `json:"isLobbyMode"`
	LobbyID      string              `json:"lobbyId,omitempty"`
	FEN          string              `json:"fen"`
	MoveCount    int                 `json:"moveCount"`
	Clock        *ClockInfo          `json:"clock,omitempty"`
	White        *PlayerInfo         `json:"white,omitempty"`
	Black        *PlayerInfo         `json:"black,omitempty"`
	Spectators   int                 `json:"spectators"`
	StateVersion int64               `json:"stateVersion"`
	CreatedAt    int64               `json:"createdAt"`
	StartedAt    int64               `json:"startedAt,omitempty"`
	EndedAt      int64               `json:"endedAt,omitempty"`
	Result       domain.GameResult   `json:"result,omitempty"`
	ResultReason domain.ResultReason `json:"resultReason,omitempty"`
	OpeningName  string              `json:"openingName,omitempty"`
}

type joinRequest struct {
	client *Client
	params ConnectParams
}

type moveRequest struct {
	client  *Client
	payload MovePayload
}

type chatRequest struct {
	client  *Client
	message string
}

type readyRequest struct {
	client *Client
	ready  bool
}

type gameEndRequest struct {
	client  *Client
	payload GameEndPayload
}

type initRequest struct {
	req   InitRequest
	reply chan error
}

type stateRequest struct {
	reply chan *StateSnapshot
}

func newGameRoom(id string, hub *Hub) *GameRoom {
	return &GameRoom{
		id:  id,
		hub: hub,
		log: hub.log.WithField("game_id", id),

		docs: hub.docs,

		clockTick:        hub.cfg.ClockTick,
		heartbeatPeriod:  hub.cfg.HeartbeatPeriod,
		heartbeatTimeout: hub.cfg.HeartbeatTimeout,
		abandonTimeout:   hub.cfg.AbandonTimeout,
		maxSpectators:    hub.cfg.MaxSpectators,
		now:              hub.cfg.Now,

		status:     domain.GameStatusWaiting,
		mode:       domain.GameModeBlitz,
		matchType:  domain.MatchTypeRanked,
		gameState:  domain.NewGameState(domain.InitialFEN),
		players:    make(map[string]*playerSession),
		spectators: make(map[*Client]*domain.SpectatorSession),
		createdAt:  hub.cfg.Now().UnixMilli(),

		abandonTimers: make(map[string]*time.Timer),

		join:      make(chan *joinRequest),
		leave:     make(chan *Client),
		move:      make(chan *moveRequest),
		resign:    make(chan *Client),
		chat:      make(chan *chatRequest),
		ready:     make(chan *readyRequest),
		gameEnd:   make(chan *gameEndRequest),
		seen:      make(chan *Client),
		init:      make(chan *initRequest),
		stateReq:  make(chan *stateRequest),
		abandoned: make(chan string, 2),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (r *GameRoom) Run() {
	heartbeat := time.NewTicker(r.heartbeatPeriod)
	defer func() {
		heartbeat.Stop()
		r.stopClockTicker()
		r.cancelAbandonTimers()
		close(r.done)
	}()

	// A room rehydrated mid-game resumes its clock from now.
	if r.status == domain.GameStatusPlaying && r.clock != nil {
		r.clock.LastUpdate = r.now().UnixMilli()
		r.startClockTicker()
	}

	for {
		select {
		case req := <-r.init:
			req.reply <- r.handleInit(req.req)

		case req := <-r.join:
			r.handleJoin(req)

		case client := <-r.leave:
			r.handleLeave(client)

		case req := <-r.move:
			r.handleMove(req)

		case client := <-r.resign:
			r.handleResign(client)

		case req := <-r.chat:
			r.handleChat(req)

		case req := <-r.ready:
			r.handleReady(req)

		case req := <-r.gameEnd:
			r.handleGameEndRequest(req)

		case client := <-r.seen:
			r.touch(client)

		case playerID := <-r.abandoned:
			r.handleAbandonment(playerID)

		case <-r.tickC:
			r.handleClockTick()

		case <-heartbeat.C:
			r.handleHeartbeat()

		case req := <-r.stateReq:
			req.reply <- r.buildStateSnapshot()

		case <-r.stop:
			r.handleShutdown()
			return
		}
	}
}

// Stop asks the loop to shut down. Wait blocks until it has.
func (r *GameRoom) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *GameRoom) Wait() {
	<-r.done
}

// Init seeds the room from a lobby or matchmaker allocation.
func (r *GameRoom) Init(ctx context.Context, req InitRequest) error {
	reply := make(chan error, 1)
	select {
	case r.init <- &initRequest{req: req, reply: reply}:
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State answers the status query RPC.
func (r *GameRoom) State(ctx context.Context) (*StateSnapshot, error) {
	reply := make(chan *StateSnapshot, 1)
	select {
	case r.stateReq <- &stateRequest{reply: reply}:
	case <-r.done:
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-r.done:
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Join hands a freshly upgraded connection to the loop for admission.
func (r *GameRoom) Join(client *Client, params ConnectParams) {
	select {
	case r.join <- &joinRequest{client: client, params: params}:
	case <-r.done:
		client.closeWithCode(websocket.CloseGoingAway, "room closed")
	}
}

func (r *GameRoom) handleInit(req InitRequest) error {
	if r.status != domain.GameStatusWaiting || r.initialized {
		return domain.ErrGameAlreadyStarted
	}
	if req.GameMode != "" && !req.GameMode.Valid() {
		return domain.ErrInvalidGameMode
	}

	if req.GameMode != "" {
		r.mode = req.GameMode
	}
	r.initialized = true
	r.isLobbyMode = req.IsLobbyMode
	r.isUnrated = req.IsUnrated
	r.lobbyID = req.LobbyID
	r.openingName = req.OpeningName
	if req.IsLobbyMode {
		r.matchType = domain.MatchTypeFriendly
	}
	if req.StartingFEN != "" {
		r.gameState = domain.NewGameState(req.StartingFEN)
	}

	if req.Players.White != nil {
		r.preRegister(req.Players.White, domain.ColorWhite)
	}
	if req.Players.Black != nil {
		r.preRegister(req.Players.Black, domain.ColorBlack)
	}

	r.stateVersion++
	r.persist()
	r.log.WithFields(logrus.Fields{
		"game_mode": r.mode,
		"lobby_id":  r.lobbyID,
		"unrated":   r.isUnrated,
	}).Info("room initialized")
	return nil
}

func (r *GameRoom) preRegister(p *InitPlayer, color domain.PlayerColor) {
	r.players[p.PlayerID] = &playerSession{
		PlayerSession: domain.PlayerSession{
			PlayerID:      p.PlayerID,
			DisplayName:   p.DisplayName,
			Rating:        p.Rating,
			IsProvisional: p.IsProvisional,
			Color:         color,
		},
	}
}

func (r *GameRoom) handleJoin(req *joinRequest) {
	client, params := req.client, req.params

	if params.PlayerID == "" {
		client.closeWithCode(websocket.CloseProtocolError, "missing player id")
		return
	}

	if params.Mode == "spectator" {
		r.admitSpectator(client, params)
		return
	}

	sess, exists := r.players[params.PlayerID]
	switch {
	case exists:
		// Reconnection or a pre-registered lobby slot. The stored record
		// wins over anything in the URL.
		if sess.client != nil && sess.client != client {
			sess.client.closeWithCode(websocket.CloseNormalClosure, "superseded by new connection")
		}
		if timer, ok := r.abandonTimers[params.PlayerID]; ok {
			timer.Stop()
			delete(r.abandonTimers, params.PlayerID)
		}

	case len(r.players) < 2:
		if !r.initialized && len(r.players) == 0 {
			r.seedFromParams(params)
		}
		sess = &playerSession{
			PlayerSession: domain.PlayerSession{
				PlayerID:      params.PlayerID,
				DisplayName:   params.DisplayName,
				Rating:        params.Rating,
				IsProvisional: params.IsProvisional,
				Color:         r.assignColor(params.Color),
			},
		}
		r.players[params.PlayerID] = sess

	default:
		client.closeWithCode(websocket.CloseProtocolError, "room is full")
		return
	}

	sess.client = client
	sess.Connected = true
	sess.lastSeen = r.now()
	sess.LastSeen = sess.lastSeen.UnixMilli()

	r.log.WithFields(logrus.Fields{
		"player_id": params.PlayerID,
		"color":     sess.Color,
	}).Info("player connected")

	snapshot, _ := NewMessage(MessageTypeReady, r.readyPayloadFor(sess))
	client.Send(snapshot)

	if opponent := r.opponentOf(sess); opponent != nil && opponent.client != nil {
		status, _ := NewMessage(MessageTypeOpponentStatus, OpponentStatusPayload{
			PlayerID:  sess.PlayerID,
			Connected: true,
		})
		opponent.client.Send(status)
	}

	if r.bothConnected() && (r.status == domain.GameStatusWaiting || r.status == domain.GameStatusReady) {
		r.startGame()
		return
	}

	if len(r.players) < 2 {
		waiting, _ := NewMessage(MessageTypeWaiting, WaitingPayload{
			GameID:  r.id,
			Message: "waiting for opponent",
		})
		client.Send(waiting)
	}
}

// seedFromParams applies the lobby-seed URL parameters when the first
// player reaches a room that was never explicitly initialized.
func (r *GameRoom) seedFromParams(params ConnectParams) {
	r.isUnrated = params.IsUnrated
	r.openingName = params.OpeningName
	if params.OpeningFEN != "" {
		r.gameState = domain.NewGameState(params.OpeningFEN)
	}
}

func (r *GameRoom) assignColor(requested domain.PlayerColor) domain.PlayerColor {
	if requested.Valid() && !r.colorTaken(requested) {
		return requested
	}
	if r.colorTaken(domain.ColorWhite) {
		return domain.ColorBlack
	}
	return domain.ColorWhite
}

func (r *GameRoom) colorTaken(color domain.PlayerColor) bool {
	for _, sess := range r.players {
		if sess.Color == color {
			return true
		}
	}
	return false
}

func (r *GameRoom) admitSpectator(client *Client, params ConnectParams) {
	if len(r.spectators) >= r.maxSpectators {
		client.closeWithCode(websocket.ClosePolicyViolation, "spectator capacity reached")
		return
	}

	r.spectators[client] = &domain.SpectatorSession{
		ID:          params.PlayerID,
		DisplayName: params.DisplayName,
		ConnectedAt: r.now().UnixMilli(),
	}

	state, _ := NewMessage(MessageTypeSpectatorState, r.spectatorPayload())
	client.Send(state)
	r.broadcastSpectatorCount()
}

func (r *GameRoom) handleLeave(client *Client) {
	if client.spectator {
		if _, ok := r.spectators[client]; ok {
			delete(r.spectators, client)
			r.broadcastSpectatorCount()
		}
		close(client.send)
		if r.status == domain.GameStatusFinished && !r.anyConnected() {
			go r.hub.release(r.id)
		}
		return
	}

	sess := r.players[client.playerID]
	if sess == nil || sess.client != client {
		// A superseded connection going away; the session already moved on.
		close(client.send)
		return
	}

	sess.client = nil
	sess.Connected = false
	close(client.send)

	r.log.WithField("player_id", sess.PlayerID).Info("player disconnected")

	if opponent := r.opponentOf(sess); opponent != nil && opponent.client != nil {
		status, _ := NewMessage(MessageTypeOpponentStatus, OpponentStatusPayload{
			PlayerID:           sess.PlayerID,
			Connected:          false,
			ReconnectTimeoutMs: r.abandonTimeout.Milliseconds(),
		})
		opponent.client.Send(status)
	}

	if r.status == domain.GameStatusReady || r.status == domain.GameStatusPlaying {
		r.armAbandonTimer(sess.PlayerID)
	}

	if r.status == domain.GameStatusFinished && !r.anyConnected() {
		go r.hub.release(r.id)
	}
}

func (r *GameRoom) armAbandonTimer(playerID string) {
	if timer, ok := r.abandonTimers[playerID]; ok {
		timer.Stop()
	}
	r.abandonTimers[playerID] = time.AfterFunc(r.abandonTimeout, func() {
		select {
		case r.abandoned <- playerID:
		case <-r.done:
		}
	})
}

func (r *GameRoom) handleAbandonment(playerID string) {
	delete(r.abandonTimers, playerID)

	sess := r.players[playerID]
	if sess == nil || sess.Connected || r.status == domain.GameStatusFinished {
		return
	}
	if r.status != domain.GameStatusReady && r.status != domain.GameStatusPlaying {
		return
	}

	r.log.WithField("player_id", playerID).Info("player abandoned game")
	winner := sess.Color.Opposite()
	r.endGame(domain.WinnerResult(winner), domain.ReasonAbandoned)
}

func (r *GameRoom) startGame() {
	nowMs := r.now().UnixMilli()

	r.status = domain.GameStatusReady
	r.clock = domain.NewClock(r.mode, nowMs)
	r.startedAt = nowMs
	for _, sess := range r.players {
		sess.Ready = true
	}
	r.startClockTicker()

	for _, sess := range r.players {
		if sess.client == nil {
			continue
		}
		msg, _ := NewMessage(MessageTypeGameStart, r.readyPayloadFor(sess))
		sess.client.Send(msg)
	}
	spectatorMsg, _ := NewMessage(MessageTypeGameStart, r.spectatorPayload())
	r.sendToSpectators(spectatorMsg)

	r.status = domain.GameStatusPlaying
	r.stateVersion++
	r.persist()

	r.log.WithField("game_mode", r.mode).Info("game started")
}

func (r *GameRoom) startClockTicker() {
	if r.clockTicker != nil {
		return
	}
	r.clockTicker = time.NewTicker(r.clockTick)
	r.tickC = r.clockTicker.C
}

func (r *GameRoom) stopClockTicker() {
	if r.clockTicker != nil {
		r.clockTicker.Stop()
		r.clockTicker = nil
		r.tickC = nil
	}
}

func (r *GameRoom) cancelAbandonTimers() {
	for id, timer := range r.abandonTimers {
		timer.Stop()
		delete(r.abandonTimers, id)
	}
}

func (r *GameRoom) handleMove(req *moveRequest) {
	r.touch(req.client)

	if r.status != domain.GameStatusPlaying {
		req.client.sendError("game_not_playing", "Game is not in progress")
		return
	}

	move, err := domain.ParseUCI(req.payload.UCI)
	if err != nil {
		req.client.sendError("invalid_move_format", "Malformed UCI move")
		return
	}

	sess := r.sessionFor(req.client)
	if sess == nil || sess.Color != r.clock.CurrentTurn {
		req.client.sendError("not_your_turn", "It's not your turn")
		return
	}

	nowMs := r.now().UnixMilli()
	move.Timestamp = nowMs
	r.gameState.Moves = append(r.gameState.Moves, move)
	r.moveHistory = append(r.moveHistory, domain.MoveRecord{
		UCI:       req.payload.UCI,
		SAN:       req.payload.SAN,
		Timestamp: nowMs,
		MadeBy:    sess.Color,
	})
	r.stateVersion++

	if req.payload.FEN != "" {
		r.gameState.FEN = req.payload.FEN
	} else {
		r.gameState.FEN = domain.FlipFEN(r.gameState.FEN)
	}

	mover := r.clock.Side(sess.Color)
	mover.RemainingMs += mover.IncrementMs
	r.clock.CurrentTurn = sess.Color.Opposite()
	r.clock.LastUpdate = nowMs

	r.persist()

	if req.payload.MessageID != "" {
		ack, _ := NewMessage(MessageTypeAck, AckPayload{
			MessageID:    req.payload.MessageID,
			StateVersion: r.stateVersion,
		})
		req.client.Send(ack)
	}

	broadcast, _ := NewMessage(MessageTypeMove, MoveBroadcastPayload{
		Move: MoveInfo{
			UCI:   req.payload.UCI,
			SAN:   req.payload.SAN,
			Color: sess.Color,
			FEN:   r.gameState.FEN,
		},
		GameState:    *r.gameState,
		Clock:        r.clockInfo(),
		StateVersion: r.stateVersion,
	})
	r.broadcast(broadcast)
}

func (r *GameRoom) handleResign(client *Client) {
	r.touch(client)

	sess := r.sessionFor(client)
	if sess == nil {
		return
	}
	if r.status != domain.GameStatusPlaying {
		client.sendError("game_not_playing", "Game is not in progress")
		return
	}

	winner := sess.Color.Opposite()
	outcome := domain.WinnerResult(winner)

	// The opponent hears about the resignation before game_ended so its UI
	// can tell resignation apart from abandonment.
	if opponent := r.opponentOf(sess); opponent != nil && opponent.client != nil {
		msg, _ := NewMessage(MessageTypeResign, ResignPayload{
			ResignedBy: sess.Color,
			Outcome:    outcome,
		})
		opponent.client.Send(msg)
	}

	r.log.WithField("player_id", sess.PlayerID).Info("player resigned")
	r.endGame(outcome, domain.ReasonResignation)
}

func (r *GameRoom) handleChat(req *chatRequest) {
	r.touch(req.client)

	message := req.message
	if runes := []rune(message); len(runes) > maxChatLength {
		message = string(runes[:maxChatLength])
	}

	msg, _ := NewMessage(MessageTypeChat, ChatBroadcastPayload{
		PlayerID:    req.client.playerID,
		DisplayName: req.client.displayName,
		Message:     message,
	})
	r.broadcast(msg)
}

func (r *GameRoom) handleReady(req *readyRequest) {
	r.touch(req.client)

	sess := r.sessionFor(req.client)
	if sess == nil {
		return
	}

	sess.Ready = req.ready
	r.stateVersion++
	r.persist()

	if opponent := r.opponentOf(sess); opponent != nil && opponent.client != nil {
		msg, _ := NewMessage(MessageTypeOpponentReady, OpponentReadyPayload{
			PlayerID: sess.PlayerID,
			Ready:    req.ready,
		})
		opponent.client.Send(msg)
	}
}

func (r *GameRoom) handleGameEndRequest(req *gameEndRequest) {
	r.touch(req.client)

	sess := r.sessionFor(req.client)
	if sess == nil {
		return
	}
	if r.status != domain.GameStatusPlaying {
		req.client.sendError("game_not_playing", "Game is not in progress")
		return
	}

	result := domain.GameResult(req.payload.Result)
	reason := domain.ResultReason(req.payload.Reason)
	if !result.Valid() || !reason.ValidClientReason() {
		req.client.sendError("invalid_game_end", "Unknown result or reason")
		return
	}

	// The client's determination is trusted; see the admission trust
	// boundary. Log it so spurious declarations can be audited.
	r.log.WithFields(logrus.Fields{
		"player_id": sess.PlayerID,
		"result":    result,
		"reason":    reason,
	}).Info("client declared terminal state")

	if req.payload.FEN != "" {
		r.gameState.FEN = req.payload.FEN
	}
	r.endGame(result, reason)
}

func (r *GameRoom) handleClockTick() {
	if r.status != domain.GameStatusPlaying || r.clock == nil {
		return
	}

	nowMs := r.now().UnixMilli()
	elapsed := nowMs - r.clock.LastUpdate
	side := r.clock.Side(r.clock.CurrentTurn)
	side.RemainingMs -= elapsed

	if side.RemainingMs <= 0 {
		side.RemainingMs = 0
		winner := r.clock.CurrentTurn.Opposite()
		r.endGame(domain.WinnerResult(winner), domain.ReasonTimeout)
		return
	}

	r.clock.LastUpdate = nowMs
	msg, _ := NewMessage(MessageTypeClockUpdate, ClockUpdatePayload{Clock: r.clockInfo()})
	r.broadcast(msg)
}

func (r *GameRoom) handleHeartbeat() {
	if r.status == domain.GameStatusFinished {
		return
	}
	now := r.now()
	for _, sess := range r.players {
		if sess.client == nil {
			continue
		}
		if now.Sub(sess.lastSeen) > r.heartbeatTimeout {
			r.log.WithField("player_id", sess.PlayerID).Warn("heartbeat silence, force closing")
			sess.client.closeWithCode(websocket.CloseGoingAway, "heartbeat timeout")
			continue
		}
		msg, _ := NewMessage(MessageTypePing, PingPayload{Timestamp: now.UnixMilli()})
		sess.client.Send(msg)
	}
}

func (r *GameRoom) handleShutdown() {
	if r.status != domain.GameStatusFinished {
		r.persist()
	}
	for _, sess := range r.players {
		if sess.client != nil {
			sess.client.closeWithCode(websocket.CloseGoingAway, "server shutting down")
		}
	}
	for client := range r.spectators {
		client.closeWithCode(websocket.CloseGoingAway, "server shutting down")
	}
}

func (r *GameRoom) touch(client *Client) {
	if client.spectator {
		return
	}
	if sess := r.players[client.playerID]; sess != nil && sess.client == client {
		sess.lastSeen = r.now()
		sess.LastSeen = sess.lastSeen.UnixMilli()
	}
}

func (r *GameRoom) sessionFor(client *Client) *playerSession {
	if client.spectator {
		return nil
	}
	sess := r.players[client.playerID]
	if sess == nil || sess.client != client {
		return nil
	}
	return sess
}

func (r *GameRoom) opponentOf(sess *playerSession) *playerSession {
	for _, other := range r.players {
		if other.PlayerID != sess.PlayerID {
			return other
		}
	}
	return nil
}

func (r *GameRoom) sessionByColor(color domain.PlayerColor) *playerSession {
	for _, sess := range r.players {
		if sess.Color == color {
			return sess
		}
	}
	return nil
}

func (r *GameRoom) bothConnected() bool {
	if len(r.players) != 2 {
		return false
	}
	for _, sess := range r.players {
		if !sess.Connected {
			return false
		}
	}
	return true
}

func (r *GameRoom) anyConnected() bool {
	for _, sess := range r.players {
		if sess.Connected {
			return true
		}
	}
	return len(r.spectators) > 0
}

func (r *GameRoom) broadcast(msg *Message) {
	for _, sess := range r.players {
		if sess.client != nil {
			sess.client.Send(msg)
		}
	}
	r.sendToSpectators(msg)
}

func (r *GameRoom) sendToSpectators(msg *Message) {
	for client := range r.spectators {
		client.Send(msg)
	}
}

func (r *GameRoom) broadcastSpectatorCount() {
	msg, _ := NewMessage(MessageTypeSpectatorCount, SpectatorCountPayload{Count: len(r.spectators)})
	r.broadcast(msg)
}

func (r *GameRoom) clockInfo() ClockInfo {
	if r.clock == nil {
		return ClockInfo{}
	}
	return ClockInfo{
		WhiteMs:     r.clock.White.RemainingMs,
		BlackMs:     r.clock.Black.RemainingMs,
		IncrementMs: r.clock.White.IncrementMs,
		CurrentTurn: r.clock.CurrentTurn,
	}
}

func (r *GameRoom) playerInfo(sess *playerSession) *PlayerInfo {
	if sess == nil {
		return nil
	}
	return &PlayerInfo{
		PlayerID:      sess.PlayerID,
		DisplayName:   sess.DisplayName,
		Rating:        sess.Rating,
		IsProvisional: sess.IsProvisional,
		Connected:     sess.Connected,
		Ready:         sess.Ready,
	}
}

func (r *GameRoom) readyPayloadFor(sess *playerSession) ReadyStatePayload {
	payload := r.spectatorPayload()
	payload.YourColor = sess.Color
	payload.Self = r.playerInfo(sess)
	payload.Opponent = r.playerInfo(r.opponentOf(sess))
	return payload
}

func (r *GameRoom) spectatorPayload() ReadyStatePayload {
	payload := ReadyStatePayload{
		GameID:         r.id,
		Status:         r.status,
		GameMode:       r.mode,
		IsUnrated:      r.isUnrated,
		FEN:            r.gameState.FEN,
		MoveHistory:    r.moveHistory,
		White:          r.playerInfo(r.sessionByColor(domain.ColorWhite)),
		Black:          r.playerInfo(r.sessionByColor(domain.ColorBlack)),
		SpectatorCount: len(r.spectators),
		StateVersion:   r.stateVersion,
		OpeningName:    r.openingName,
	}
	if r.clock != nil {
		info := r.clockInfo()
		payload.Clock = &info
	}
	return payload
}

func (r *GameRoom) buildStateSnapshot() *StateSnapshot {
	snap := &StateSnapshot{
		GameID:       r.id,
		Status:       r.status,
		GameMode:     r.mode,
		MatchType:    r.matchType,
		IsUnrated:    r.isUnrated,
		IsLobbyMode:  r.isLobbyMode,
		LobbyID:      r.lobbyID,
		FEN:          r.gameState.FEN,
		MoveCount:    len(r.moveHistory),
		White:        r.playerInfo(r.sessionByColor(domain.ColorWhite)),
		Black:        r.playerInfo(r.sessionByColor(domain.ColorBlack)),
		Spectators:   len(r.spectators),
		StateVersion: r.stateVersion,
		CreatedAt:    r.createdAt,
		StartedAt:    r.startedAt,
		EndedAt:      r.endedAt,
		Result:       r.gameState.Result,
		ResultReason: r.gameState.ResultReason,
		OpeningName:  r.openingName,
	}
	if r.clock != nil {
		info := r.clockInfo()
		snap.Clock = &info
	}
	return snap
}
