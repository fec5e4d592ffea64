package websocket

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tempochess/game-server/internal/domain"
	"github.com/tempochess/game-server/internal/service"
	"github.com/tempochess/game-server/internal/store"
)

// LobbyRoom owns one pairing slot: a creator waiting for exactly one
// opponent. Like GameRoom it is a single-writer loop; HTTP handlers and the
// creator's live channel funnel everything through the request channels.
type LobbyRoom struct {
	id   string
	hub  *LobbyHub
	log  *logrus.Entry
	docs store.DocumentStore

	timeout time.Duration
	now     func() time.Time

	state     *domain.LobbyState
	clients   map[*LobbyClient]bool
	expiresAt int64
	timer     *time.Timer

	initReq   chan *lobbyInitRequest
	joinReq   chan *lobbyJoinRequest
	cancelReq chan *lobbyCancelRequest
	stateReq  chan *lobbyStateRequest
	attach    chan *LobbyClient
	detach    chan *LobbyClient
	expired   chan struct{}
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

type lobbyInitRequest struct {
	creator  domain.PlayerSnapshot
	settings domain.LobbySettings
	reply    chan error
}

type lobbyJoinRequest struct {
	joiner domain.PlayerSnapshot
	reply  chan lobbyJoinResult
}

type lobbyJoinResult struct {
	seat *MatchReadyPayload
	err  error
}

type lobbyCancelRequest struct {
	requestedBy string
	reply       chan error
}

type lobbyStateRequest struct {
	reply chan *LobbyStatePayload
}

func newLobbyRoom(id string, hub *LobbyHub) *LobbyRoom {
	return &LobbyRoom{
		id:  id,
		hub: hub,
		log: hub.log.WithField("lobby_id", id),

		docs: hub.docs,

		timeout: hub.cfg.Timeout,
		now:     hub.cfg.Now,

		clients: make(map[*LobbyClient]bool),

		initReq:   make(chan *lobbyInitRequest),
		joinReq:   make(chan *lobbyJoinRequest),
		cancelReq: make(chan *lobbyCancelRequest),
		stateReq:  make(chan *lobbyStateRequest),
		attach:    make(chan *LobbyClient),
		detach:    make(chan *LobbyClient),
		expired:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (l *LobbyRoom) Run() {
	defer func() {
		if l.timer != nil {
			l.timer.Stop()
		}
		close(l.done)
	}()

	// A rehydrated waiting lobby resumes the remainder of its timeout.
	if l.state != nil && l.state.Status == domain.LobbyStatusWaiting {
		l.armTimeout()
	}

	for {
		select {
		case req := <-l.initReq:
			req.reply <- l.handleInit(req)

		case req := <-l.joinReq:
			req.reply <- l.handleJoin(req)

		case req := <-l.cancelReq:
			req.reply <- l.handleCancel(req)

		case req := <-l.stateReq:
			req.reply <- l.statePayload()

		case client := <-l.attach:
			l.handleAttach(client)

		case client := <-l.detach:
			l.handleDetach(client)

		case <-l.expired:
			l.handleExpired()

		case <-l.stop:
			l.handleShutdown()
			return
		}
	}
}

// Stop asks the loop to shut down. Wait blocks until it has.
func (l *LobbyRoom) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *LobbyRoom) Wait() {
	<-l.done
}

// Init records the creator and settings, persists, and arms the timeout.
func (l *LobbyRoom) Init(ctx context.Context, creator domain.PlayerSnapshot, settings domain.LobbySettings) error {
	reply := make(chan error, 1)
	select {
	case l.initReq <- &lobbyInitRequest{creator: creator, settings: settings, reply: reply}:
	case <-l.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-l.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join claims the open slot and returns the joiner's seat at the allocated
// game room.
func (l *LobbyRoom) Join(ctx context.Context, joiner domain.PlayerSnapshot) (*MatchReadyPayload, error) {
	reply := make(chan lobbyJoinResult, 1)
	select {
	case l.joinReq <- &lobbyJoinRequest{joiner: joiner, reply: reply}:
	case <-l.done:
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.seat, res.err
	case <-l.done:
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel closes the slot on behalf of the creator.
func (l *LobbyRoom) Cancel(ctx context.Context, requestedBy string) error {
	reply := make(chan error, 1)
	select {
	case l.cancelReq <- &lobbyCancelRequest{requestedBy: requestedBy, reply: reply}:
	case <-l.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-l.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State answers the status query RPC.
func (l *LobbyRoom) State(ctx context.Context) (*LobbyStatePayload, error) {
	reply := make(chan *LobbyStatePayload, 1)
	select {
	case l.stateReq <- &lobbyStateRequest{reply: reply}:
	case <-l.done:
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case payload := <-reply:
		if payload == nil {
			return nil, domain.ErrLobbyNotFound
		}
		return payload, nil
	case <-l.done:
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Attach hands a freshly upgraded live channel to the loop.
func (l *LobbyRoom) Attach(client *LobbyClient) {
	select {
	case l.attach <- client:
	case <-l.done:
		client.closeWithCode(websocket.CloseGoingAway, "lobby closed")
	}
}

func (l *LobbyRoom) handleInit(req *lobbyInitRequest) error {
	if l.state != nil {
		return domain.ErrLobbyExists
	}

	settings := req.settings
	if settings.GameMode == "" {
		settings.GameMode = domain.GameModeBlitz
	}
	if !settings.GameMode.Valid() {
		return domain.ErrInvalidGameMode
	}
	if settings.MaxSpectators <= 0 {
		settings.MaxSpectators = domain.DefaultMaxSpectators
	}
	if settings.Private && settings.PrivateCode == "" {
		settings.PrivateCode = generatePrivateCode()
	}

	nowMs := l.now().UnixMilli()
	l.state = &domain.LobbyState{
		LobbyID:   l.id,
		Creator:   req.creator,
		Settings:  settings,
		Status:    domain.LobbyStatusWaiting,
		CreatedAt: nowMs,
	}
	l.expiresAt = nowMs + l.timeout.Milliseconds()

	l.persist()
	l.armTimeout()

	go l.hub.addListing(listEntry(l.state))

	l.log.WithFields(logrus.Fields{
		"creator":   req.creator.PlayerID,
		"game_mode": settings.GameMode,
		"private":   settings.Private,
	}).Info("lobby created")
	return nil
}

func (l *LobbyRoom) handleJoin(req *lobbyJoinRequest) lobbyJoinResult {
	if l.state == nil {
		return lobbyJoinResult{err: domain.ErrLobbyNotFound}
	}
	switch l.state.Status {
	case domain.LobbyStatusWaiting:
	case domain.LobbyStatusCancelled:
		return lobbyJoinResult{err: domain.ErrLobbyCancelled}
	default:
		return lobbyJoinResult{err: domain.ErrLobbyNotJoinable}
	}
	if req.joiner.PlayerID == l.state.Creator.PlayerID {
		return lobbyJoinResult{err: domain.ErrSelfJoin}
	}

	joiner := req.joiner
	l.state.Opponent = &joiner

	msg, _ := NewMessage(MessageTypeOpponentJoined, OpponentJoinedPayload{Opponent: joiner})
	l.sendToClients(msg)

	creatorColor := l.state.Settings.PlayerColor.CreatorColor()
	white, black := l.state.Creator, joiner
	if creatorColor == domain.ColorBlack {
		white, black = joiner, l.state.Creator
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	seats, err := l.hub.games.AllocateMatch(ctx, InitRequest{
		GameMode:    l.state.Settings.GameMode,
		IsLobbyMode: true,
		IsUnrated:   l.state.Settings.Unrated,
		LobbyID:     l.id,
		OpeningName: l.state.Settings.OpeningName,
		StartingFEN: l.state.Settings.OpeningFEN,
	}, white, black)
	if err != nil {
		l.state.Opponent = nil
		l.log.WithError(err).Error("allocating game room")
		return lobbyJoinResult{err: err}
	}

	if l.timer != nil {
		l.timer.Stop()
	}

	creatorSeat := seats.Seat(creatorColor)
	joinerSeat := seats.Seat(creatorColor.Opposite())

	l.state.Status = domain.LobbyStatusMatched
	l.state.GameRoomID = seats.GameID
	l.state.GameRoomURL = strings.SplitN(creatorSeat.URL, "?", 2)[0]
	l.persist()

	ready, _ := NewMessage(MessageTypeMatchReady, MatchReadyPayload{
		LobbyID:  l.id,
		RoomID:   seats.GameID,
		URL:      creatorSeat.URL,
		Color:    creatorColor,
		GameMode: l.state.Settings.GameMode,
		Opponent: joiner,
	})
	l.sendToClients(ready)

	go l.hub.updateListing(l.id, map[string]interface{}{
		"status":     string(domain.LobbyStatusMatched),
		"gameRoomId": seats.GameID,
	})

	l.log.WithFields(logrus.Fields{
		"joiner":  joiner.PlayerID,
		"game_id": seats.GameID,
	}).Info("lobby matched")

	if len(l.clients) == 0 {
		go l.hub.release(l.id)
	}

	return lobbyJoinResult{seat: &MatchReadyPayload{
		LobbyID:  l.id,
		RoomID:   seats.GameID,
		URL:      joinerSeat.URL,
		Color:    creatorColor.Opposite(),
		GameMode: l.state.Settings.GameMode,
		Opponent: l.state.Creator,
	}}
}

func (l *LobbyRoom) handleCancel(req *lobbyCancelRequest) error {
	if l.state == nil {
		return domain.ErrLobbyNotFound
	}
	if req.requestedBy != l.state.Creator.PlayerID {
		return domain.ErrNotLobbyCreator
	}
	switch l.state.Status {
	case domain.LobbyStatusCancelled:
		return nil
	case domain.LobbyStatusMatched:
		return domain.ErrLobbyNotJoinable
	}

	l.cancelLobby("cancelled")
	return nil
}

func (l *LobbyRoom) handleExpired() {
	if l.state == nil || l.state.Status != domain.LobbyStatusWaiting {
		return
	}
	l.log.Info("lobby timed out")
	l.cancelLobby("timeout")
}

// cancelLobby closes the slot, notifies the creator and detaches everyone.
func (l *LobbyRoom) cancelLobby(reason string) {
	if l.timer != nil {
		l.timer.Stop()
	}

	l.state.Status = domain.LobbyStatusCancelled
	l.persist()

	msg, _ := NewMessage(MessageTypeLobbyCancelled, LobbyCancelledPayload{
		LobbyID: l.id,
		Reason:  reason,
	})
	l.sendToClients(msg)

	go l.hub.removeListing(l.id)

	// Closing the send channel lets the write pump flush the cancelled frame
	// before it emits the close frame.
	for client := range l.clients {
		delete(l.clients, client)
		close(client.send)
	}
	go l.hub.release(l.id)
}

func (l *LobbyRoom) handleAttach(client *LobbyClient) {
	if l.state == nil || client.playerID != l.state.Creator.PlayerID {
		client.closeWithCode(websocket.ClosePolicyViolation, "not a lobby participant")
		return
	}

	l.clients[client] = true
	if msg, err := NewMessage(MessageTypeLobbyState, l.statePayload()); err == nil {
		client.Send(msg)
	}
}

func (l *LobbyRoom) handleDetach(client *LobbyClient) {
	if _, ok := l.clients[client]; !ok {
		return
	}
	delete(l.clients, client)
	close(client.send)

	if l.state != nil && l.state.Status != domain.LobbyStatusWaiting && len(l.clients) == 0 {
		go l.hub.release(l.id)
	}
}

func (l *LobbyRoom) handleShutdown() {
	for client := range l.clients {
		client.closeWithCode(websocket.CloseGoingAway, "server shutting down")
	}
}

func (l *LobbyRoom) armTimeout() {
	if l.timer != nil {
		l.timer.Stop()
	}
	remaining := time.Duration(l.expiresAt-l.now().UnixMilli()) * time.Millisecond
	if remaining < 0 {
		remaining = 0
	}
	l.timer = time.AfterFunc(remaining, func() {
		select {
		case l.expired <- struct{}{}:
		case <-l.done:
		}
	})
}

func (l *LobbyRoom) sendToClients(msg *Message) {
	for client := range l.clients {
		client.Send(msg)
	}
}

func (l *LobbyRoom) statePayload() *LobbyStatePayload {
	if l.state == nil {
		return nil
	}
	payload := &LobbyStatePayload{
		LobbyID:    l.state.LobbyID,
		Status:     l.state.Status,
		Creator:    l.state.Creator,
		Opponent:   l.state.Opponent,
		Settings:   l.state.Settings,
		CreatedAt:  l.state.CreatedAt,
		GameRoomID: l.state.GameRoomID,
	}
	if l.state.Status == domain.LobbyStatusWaiting {
		payload.ExpiresAt = l.expiresAt
	}
	return payload
}

// persist writes the lobby record. As with game rooms, failures are logged
// and the in-memory state stays authoritative.
func (l *LobbyRoom) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	data, err := store.Encode(l.state)
	if err != nil {
		l.log.WithError(err).Error("encoding lobby state")
		return
	}
	if err := l.docs.SetDocument(ctx, store.LobbyPath(l.id), data, false); err != nil {
		l.log.WithError(err).Warn("persisting lobby state")
	}
}

// listEntry shapes the browsable projection of this lobby.
func listEntry(state *domain.LobbyState) service.LobbyListEntry {
	return service.LobbyListEntry{
		LobbyID:         state.LobbyID,
		HostName:        state.Creator.DisplayName,
		HostRating:      state.Creator.Rating,
		GameMode:        state.Settings.GameMode,
		Status:          state.Status,
		Private:         state.Settings.Private,
		PrivateCode:     state.Settings.PrivateCode,
		AllowSpectators: state.Settings.AllowSpectators,
		MaxSpectators:   state.Settings.MaxSpectators,
		OpeningName:     state.Settings.OpeningName,
		Unrated:         state.Settings.Unrated,
		CreatedAt:       state.CreatedAt,
		GameRoomID:      state.GameRoomID,
	}
}
