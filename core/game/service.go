package game

import (
	"context"

	"github.com/shulebox/backend/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) GetByID(ctx context.Context, id string) (Game, error) {
	return svc.repo.GetGame(ctx, core.CleanString(id))
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Game, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryGames(ctx, filter, ordering)
}

// Click registers one play of the given game and returns the new count.
func (svc *Service) Click(ctx context.Context, id string) (int, error) {
	return svc.repo.IncrementClick(ctx, core.CleanString(id))
}
