package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/game"
)

type gameRepository struct {
	db *gameTable
}

var _ game.Repository = (*gameRepository)(nil)

func NewGameRepository(db *DB) *gameRepository {
	return &gameRepository{db: db.game}
}

func (repo *gameRepository) GetGame(_ context.Context, id string) (game.Game, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if g, ok := repo.db.table[id]; ok {
		return *g, nil
	}
	return game.Game{}, game.ErrNotFound
}

func (repo *gameRepository) QueryGames(_ context.Context, filter *game.QueryFilter, ordering []core.DBOrdering) ([]game.Game, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	games := make([]game.Game, 0, len(repo.db.table))
	for _, g := range repo.db.table {
		if filter != nil {
			if filter.Subject != "" && g.Subject != filter.Subject {
				continue
			}
			if filter.Difficulty != "" && g.Difficulty != filter.Difficulty {
				continue
			}
			if filter.TeacherID != "" && g.TeacherID != filter.TeacherID {
				continue
			}
			if filter.StudentID != "" && g.StudentID != filter.StudentID {
				continue
			}
		}
		games = append(games, *g)
	}

	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	for k := len(ordering) - 1; k >= 0; k-- { // apply in reverse for precedence
		ord := ordering[k]
		sort.SliceStable(games, func(i, j int) bool {
			var less bool
			switch ord.Field {
			case "accumulated_click":
				less = games[i].AccumulatedClick < games[j].AccumulatedClick
			case "game_name":
				less = games[i].Name < games[j].Name
			case "created_at":
				less = games[i].CreatedAt.Before(games[j].CreatedAt)
			default:
				less = games[i].ID < games[j].ID
			}
			if ord.Ascending {
				return less
			}
			return !less
		})
	}
	return games, nil
}

func (repo *gameRepository) PutGame(_ context.Context, g game.Game) (game.Game, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// the stored counter wins on replace; clicks landed since the
	// caller's read must not be overwritten
	if old, ok := repo.db.table[g.ID]; ok {
		g.AccumulatedClick = old.AccumulatedClick
	}
	repo.db.table[g.ID] = &g
	return g, nil
}

func (repo *gameRepository) BatchPutGames(ctx context.Context, games []game.Game) error {
	for _, g := range games {
		if _, err := repo.PutGame(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

func (repo *gameRepository) IncrementClick(_ context.Context, id string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	g, ok := repo.db.table[id]
	if !ok {
		return 0, game.ErrNotFound
	}
	g.AccumulatedClick++
	g.UpdatedAt = time.Now().UTC()
	return g.AccumulatedClick, nil
}
