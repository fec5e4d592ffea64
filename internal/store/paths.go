package store

import "fmt"

// Well-known document paths written by the game core.

func GamePath(gameID string) string {
	return fmt.Sprintf("games/%s", gameID)
}

func LobbyPath(lobbyID string) string {
	return fmt.Sprintf("lobbies/%s", lobbyID)
}

func LobbyListPath(lobbyID string) string {
	return fmt.Sprintf("lobbylist/%s", lobbyID)
}

func MatchHistoryPath(playerID, matchID string) string {
	return fmt.Sprintf("users/%s/matchHistory/%s", playerID, matchID)
}

func MatchHistoryCollection(playerID string) string {
	return fmt.Sprintf("users/%s/matchHistory", playerID)
}

func ProfileRatingsPath(playerID string) string {
	return fmt.Sprintf("users/%s/profile/ratings", playerID)
}

func LeaderboardPath(playerID string) string {
	return fmt.Sprintf("leaderboards/elo/players/%s", playerID)
}

const (
	LobbyListCollection   = "lobbylist"
	LeaderboardCollection = "leaderboards/elo/players"
)
