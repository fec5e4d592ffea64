package domain

type LobbyStatus string

const (
	LobbyStatusWaiting   LobbyStatus = "waiting"
	LobbyStatusMatched   LobbyStatus = "matched"
	LobbyStatusCancelled LobbyStatus = "cancelled"
)

// ColorPreference is the creator's color choice for a lobby game.
type ColorPreference string

const (
	ColorPrefWhite  ColorPreference = "white"
	ColorPrefBlack  ColorPreference = "black"
	ColorPrefRandom ColorPreference = "random"
)

// CreatorColor resolves the preference into the creator's assigned color.
func (p ColorPreference) CreatorColor() PlayerColor {
	switch p {
	case ColorPrefWhite:
		return ColorWhite
	case ColorPrefBlack:
		return ColorBlack
	default:
		return RandomColor()
	}
}

type LobbySettings struct {
	PlayerColor     ColorPreference `json:"playerColor"`
	GameMode        GameMode        `json:"gameMode"`
	Private         bool            `json:"private"`
	AllowSpectators bool            `json:"allowSpectators"`
	MaxSpectators   int             `json:"maxSpectators"`
	Unrated         bool            `json:"unrated"`
	OpeningID       string          `json:"openingId,omitempty"`
	OpeningName     string          `json:"openingName,omitempty"`
	OpeningFEN      string          `json:"openingFen,omitempty"`
	PrivateCode     string          `json:"privateCode,omitempty"`
}

// LobbyState is the durable record for one pairing slot. Every transition is
// persisted so that a restarted process can restore the lobby and resume its
// timeout.
type LobbyState struct {
	LobbyID     string          `json:"lobbyId"`
	Creator     PlayerSnapshot  `json:"creator"`
	Opponent    *PlayerSnapshot `json:"opponent,omitempty"`
	Settings    LobbySettings   `json:"settings"`
	Status      LobbyStatus     `json:"status"`
	CreatedAt   int64           `json:"createdAt"`
	GameRoomID  string          `json:"gameRoomId,omitempty"`
	GameRoomURL string          `json:"gameRoomUrl,omitempty"`
}
