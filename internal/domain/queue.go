package domain

// QueueEntry is one player waiting in the matchmaking pool.
type QueueEntry struct {
	PlayerID      string   `json:"playerId"`
	DisplayName   string   `json:"displayName"`
	Rating        int      `json:"rating"`
	IsProvisional bool     `json:"isProvisional"`
	GameMode      GameMode `json:"gameMode"`
	JoinedAt      int64    `json:"joinedAt"`
	ExpiresAt     int64    `json:"expiresAt"`
	Origin        string   `json:"origin,omitempty"`
}

/// MatchAssignment is one side of a completed pairing: where to connect and
// who the opponent is.
type MatchAssignment struct {
	GameID        string         `json:"gameId"`
	GameMode      GameMode       `json:"gameMode"`
	Color         PlayerColor    `json:"color"`
	ConnectionURL string         `json:"connectionUrl"`
	Opponent      PlayerSnapshot `json:"opponent"`
}

// PendingMatch holds the second member's assignment until that player's next
// queue join consumes it, or it expires.
type PendingMatch struct {
	PlayerID  string          `json:"playerId"`
	Match     MatchAssignment `json:"match"`
	CreatedAt int64           `json:"createdAt"`
	ExpiresAt int64           `json:"expiresAt"`
}
