package domain

import "math/rand"

// InitialFEN is the standard chess starting position.
const InitialFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type GameMode string

const (
	GameModeBullet    GameMode = "bullet"
	GameModeBlitz     GameMode = "blitz"
	GameModeRapid     GameMode = "rapid"
	GameModeClassical GameMode = "classical"
)

// TimeControl is the fixed (initial, increment) pair for a game mode.
type TimeControl struct {
	InitialMs   int64 `json:"initialMs"`
	IncrementMs int64 `json:"incrementMs"`
}

var timeControls = map[GameMode]TimeControl{
	GameModeBullet:    {InitialMs: 60000, IncrementMs: 0},
	GameModeBlitz:     {InitialMs: 180000, IncrementMs: 1000},
	GameModeRapid:     {InitialMs: 600000, IncrementMs: 5000},
	GameModeClassical: {InitialMs: 1800000, IncrementMs: 10000},
}

func (m GameMode) Valid() bool {
	_, ok := timeControls[m]
	return ok
}

func (m GameMode) TimeControl() TimeControl {
	if tc, ok := timeControls[m]; ok {
		return tc
	}
	return timeControls[GameModeBlitz]
}

type GameStatus string

const (
	GameStatusWaiting  GameStatus = "waiting"
	GameStatusReady    GameStatus = "ready"
	GameStatusPlaying  GameStatus = "playing"
	GameStatusFinished GameStatus = "finished"
)

type PlayerColor string

const (
	ColorWhite PlayerColor = "white"
	ColorBlack PlayerColor = "black"
)

func (c PlayerColor) Valid() bool {
	return c == ColorWhite || c == ColorBlack
}

func (c PlayerColor) Opposite() PlayerColor {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// RandomColor picks white or black with equal probability.
func RandomColor() PlayerColor {
	if rand.Intn(2) == 0 {
		return ColorWhite
	}
	return ColorBlack
}

type GameResult string

const (
	ResultWhiteWin GameResult = "white_win"
	ResultBlackWin GameResult = "black_win"
	ResultDraw     GameResult = "draw"
)

func (r GameResult) Valid() bool {
	return r == ResultWhiteWin || r == ResultBlackWin || r == ResultDraw
}

// WinnerResult maps the winning color to its game result.
func WinnerResult(winner PlayerColor) GameResult {
	if winner == ColorWhite {
		return ResultWhiteWin
	}
	return ResultBlackWin
}

type ResultReason string

const (
	ReasonCheckmate            ResultReason = "checkmate"
	ReasonStalemate            ResultReason = "stalemate"
	ReasonInsufficientMaterial ResultReason = "insufficient_material"
	ReasonThreefoldRepetition  ResultReason = "threefold_repetition"
	ReasonFiftyMoveRule        ResultReason = "fifty_move_rule"
	ReasonTimeout              ResultReason = "timeout"
	ReasonResignation          ResultReason = "resignation"
	ReasonAbandoned            ResultReason = "opponent_abandoned"
)

// ValidClientReason reports whether a client may declare this reason on a
// game_end frame. Timeout, resignation and abandonment are server-decided.
func (r ResultReason) ValidClientReason() bool {
	switch r {
	case ReasonCheckmate, ReasonStalemate, ReasonInsufficientMaterial,
		ReasonThreefoldRepetition, ReasonFiftyMoveRule:
		return true
	}
	return false
}

// GameState is the authoritative per-game record. The FEN is opaque to the
// server; it is adopted from the client or minimally adjusted on each move.
type GameState struct {
	FEN          string       `json:"fen"`
	Moves        []Move       `json:"moves"`
	Result       GameResult   `json:"result,omitempty"`
	ResultReason ResultReason `json:"resultReason,omitempty"`
}

func NewGameState(startingFEN string) *GameState {
	fen := startingFEN
	if fen == "" {
		fen = InitialFEN
	}
	return &GameState{FEN: fen, Moves: []Move{}}
}

// Clock tracks both players' remaining time. LastUpdate is unix millis; while
// the game is playing, now-LastUpdate is the time the current turn has
// consumed since the last tick.
type Clock struct {
	White       ClockSide   `json:"white"`
	Black       ClockSide   `json:"black"`
	LastUpdate  int64       `json:"lastUpdate"`
	CurrentTurn PlayerColor `json:"currentTurn"`
}

type ClockSide struct {
	RemainingMs int64 `json:"remainingMs"`
	IncrementMs int64 `json:"incrementMs"`
}

func NewClock(mode GameMode, nowMs int64) *Clock {
	tc := mode.TimeControl()
	side := ClockSide{RemainingMs: tc.InitialMs, IncrementMs: tc.IncrementMs}
	return &Clock{
		White:       side,
		Black:       side,
		LastUpdate:  nowMs,
		CurrentTurn: ColorWhite,
	}
}

// Side returns a pointer to the given color's clock half.
func (c *Clock) Side(color PlayerColor) *ClockSide {
	if color == ColorWhite {
		return &c.White
	}
	return &c.Black
}
