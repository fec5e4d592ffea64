package domain

// PlayerSession is the per-game record for one player. The live connection
// handle is owned by the room and kept outside this struct, keyed by player
// id, so that session snapshots serialize cleanly and drop no state when a
// connection is replaced.
type PlayerSession struct {
	PlayerID      string      `json:"playerId"`
	DisplayName   string      `json:"displayName"`
	Rating        int         `json:"rating"`
	IsProvisional bool        `json:"isProvisional"`
	Color         PlayerColor `json:"color"`
	Connected     bool        `json:"connected"`
	Ready         bool        `json:"ready"`
	LastSeen      int64       `json:"lastSeen"`
}

// Snapshot strips connection-lifecycle fields for match records.
func (p *PlayerSession) Snapshot() PlayerSnapshot {
	return PlayerSnapshot{
		PlayerID:      p.PlayerID,
		DisplayName:   p.DisplayName,
		Rating:        p.Rating,
		IsProvisional: p.IsProvisional,
	}
}

// PlayerSnapshot is the identity + rating view of a player embedded in match
// history, queue pairings and lobby payloads.
type PlayerSnapshot struct {
	PlayerID      string `json:"playerId"`
	DisplayName   string `json:"displayName"`
	Rating        int    `json:"rating"`
	IsProvisional bool   `json:"isProvisional"`
}

// SpectatorSession tracks one admitted spectator. Spectators never mutate
// game state.
type SpectatorSession struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	ConnectedAt int64  `json:"connectedAt"`
}

// DefaultMaxSpectators caps spectator admissions per game room.
const DefaultMaxSpectators = 50
