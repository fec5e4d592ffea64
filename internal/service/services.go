package service

import (
	"github.com/tempochess/game-server/internal/config"
	"github.com/tempochess/game-server/internal/store"
)

type Services struct {
	Tickets   *TicketService
	Profiles  *ProfileService
	LobbyList *LobbyListService
}

func NewServices(docs store.DocumentStore, cfg *config.Config) *Services {
	return &Services{
		Tickets:   NewTicketService(cfg),
		Profiles:  NewProfileService(docs),
		LobbyList: NewLobbyListService(docs),
	}
}
