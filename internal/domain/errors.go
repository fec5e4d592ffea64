package domain

import "errors"

// Move precondition errors, surfaced to the sender as error frames.
var (
	ErrInvalidMoveFormat = errors.New("invalid move format")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrGameNotPlaying    = errors.New("game is not in playing state")
	ErrInvalidGameEnd    = errors.New("invalid game end declaration")
)

// Lobby errors
var (
	ErrLobbyNotFound    = errors.New("lobby not found")
	ErrLobbyExists      = errors.New("lobby already initialized")
	ErrLobbyNotJoinable = errors.New("lobby is not accepting a joiner")
	ErrLobbyCancelled   = errors.New("lobby is cancelled")
	ErrSelfJoin         = errors.New("cannot join your own lobby")
	ErrNotLobbyCreator  = errors.New("only the creator may cancel a lobby")
)

// Game room errors
var (
	ErrGameNotFound       = errors.New("game not found")
	ErrGameFull           = errors.New("game already has two players")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrMissingPlayerID    = errors.New("player id is required")
	ErrSpectatorsFull     = errors.New("spectator capacity reached")
	ErrInvalidGameMode    = errors.New("invalid game mode")
)
