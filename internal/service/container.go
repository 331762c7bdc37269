package service

import (
	"context"

	"triad-service/internal/config"
	"triad-service/internal/service/auth"
	"triad-service/internal/service/card"
	"triad-service/internal/service/directory"
	"triad-service/internal/service/game"
	"triad-service/internal/service/ticket"
	"triad-service/internal/service/user"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Auth      *auth.Service
	User      *user.Service
	Card      *card.Service
	Directory *directory.Service
	Ticket    *ticket.Service
	Game      *game.Service
}

func NewContainer(db *gorm.DB, rdb *redis.Client, cfg config.MatchConfig) *Container {
	cards := card.NewService(db)
	dir := directory.NewService(rdb)
	return &Container{
		Auth:      auth.NewService(db, cards, cfg.StarterCards),
		User:      user.NewService(db),
		Card:      cards,
		Directory: dir,
		Ticket:    ticket.NewService(rdb, cfg.TicketTTL()),
		Game: game.NewService(game.NewGormStore(db), cards, dir, game.WithConfig(game.Config{
			TurnLimit:           cfg.TurnDuration(),
			MaxPendingIdentical: cfg.MaxPendingIdentical,
			OutboundBuffer:      cfg.OutboundBuffer,
		})),
	}
}

func (c *Container) Shutdown(ctx context.Context) error {
	return c.Game.Shutdown(ctx)
}
