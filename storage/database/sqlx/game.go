package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/game"
)

type gameRow struct {
	ID               string    `db:"game_id"`
	Name             string    `db:"game_name"`
	StudentID        string    `db:"student_id"`
	Subject          string    `db:"subject"`
	Difficulty       string    `db:"difficulty"`
	TeacherID        string    `db:"teacher_id"`
	ScratchID        string    `db:"scratch_id"`
	ScratchAPI       string    `db:"scratch_api"`
	AccumulatedClick int       `db:"accumulated_click"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func packGame(g game.Game) gameRow {
	return gameRow{
		ID:               g.ID,
		Name:             g.Name,
		StudentID:        g.StudentID,
		Subject:          g.Subject,
		Difficulty:       g.Difficulty,
		TeacherID:        g.TeacherID,
		ScratchID:        g.ScratchID,
		ScratchAPI:       g.ScratchAPI,
		AccumulatedClick: g.AccumulatedClick,
		CreatedAt:        g.CreatedAt.UTC(),
		UpdatedAt:        g.UpdatedAt.UTC(),
	}
}

func unpackGame(row gameRow) game.Game {
	return game.Game(row)
}

// Note: accumulated_click is deliberately NOT in the conflict update list;
// the stored counter only moves through IncrementClick.
const gameUpsertQuery = `
INSERT INTO game (game_id, game_name, student_id, subject, difficulty, teacher_id, scratch_id, scratch_api, accumulated_click, created_at, updated_at)
VALUES (:game_id, :game_name, :student_id, :subject, :difficulty, :teacher_id, :scratch_id, :scratch_api, :accumulated_click, :created_at, :updated_at)
ON CONFLICT (game_id) DO UPDATE SET
	game_name = EXCLUDED.game_name,
	student_id = EXCLUDED.student_id,
	subject = EXCLUDED.subject,
	difficulty = EXCLUDED.difficulty,
	teacher_id = EXCLUDED.teacher_id,
	scratch_id = EXCLUDED.scratch_id,
	scratch_api = EXCLUDED.scratch_api,
	updated_at = EXCLUDED.updated_at`

type gameRepository struct {
	db *sqlx.DB
}

var _ game.Repository = (*gameRepository)(nil)

func NewGameRepository(db *sqlx.DB) *gameRepository {
	return &gameRepository{db: db}
}

func (repo gameRepository) GetGame(ctx context.Context, id string) (game.Game, error) {
	var row gameRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM game WHERE game_id = $1`, id)
	if err != nil {
		return game.Game{}, trapNoRowsErr(err, game.ErrNotFound, "getting game")
	}
	return unpackGame(row), nil
}

var gameOrderCols = map[string]bool{
	"game_id":           true,
	"game_name":         true,
	"accumulated_click": true,
	"created_at":        true,
	"updated_at":        true,
}

func (repo gameRepository) QueryGames(ctx context.Context, filter *game.QueryFilter, ordering []core.DBOrdering) ([]game.Game, error) {
	query := `SELECT * FROM game`
	var args []interface{}
	if filter != nil {
		clauses, vals := whereEq(map[string]string{
			"subject":    filter.Subject,
			"difficulty": filter.Difficulty,
			"teacher_id": filter.TeacherID,
			"student_id": filter.StudentID,
		})
		query += clauses
		args = vals
	}

	var orderings []string
	for _, ord := range ordering {
		if gameOrderCols[ord.Field] { // whitelist; never interpolate raw input
			orderings = append(orderings, ord.String())
		}
	}
	orderings = append(orderings, "game_id ASC")
	query += fmt.Sprintf(" ORDER BY %s", strings.Join(orderings, ", "))

	var rows []gameRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying games")
	}
	games := make([]game.Game, 0, len(rows))
	for _, row := range rows {
		games = append(games, unpackGame(row))
	}
	return games, nil
}

func (repo gameRepository) PutGame(ctx context.Context, g game.Game) (game.Game, error) {
	if _, err := repo.db.NamedExecContext(ctx, gameUpsertQuery, packGame(g)); err != nil {
		return game.Game{}, errors.Wrap(err, "upserting game")
	}
	return g, nil
}

func (repo gameRepository) BatchPutGames(ctx context.Context, games []game.Game) error {
	berr := core.NewBatchError()
	for _, chunk := range chunkSize(len(games)) {
		batch := games[chunk[0]:chunk[1]]
		if err := repo.putGamesTx(ctx, batch); err != nil {
			for _, g := range batch {
				if _, ierr := repo.PutGame(ctx, g); ierr != nil {
					berr.Failed[g.ID] = ierr
				}
			}
		}
	}
	if berr.Empty() {
		return nil
	}
	return berr
}

func (repo gameRepository) putGamesTx(ctx context.Context, games []game.Game) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	for _, g := range games {
		if _, err = tx.NamedExecContext(ctx, gameUpsertQuery, packGame(g)); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "upserting game")
		}
	}
	return errors.Wrap(tx.Commit(), "committing tx")
}

// IncrementClick is a single atomic UPDATE; concurrent clicks never lose
// updates.
func (repo gameRepository) IncrementClick(ctx context.Context, id string) (int, error) {
	var count int
	err := repo.db.QueryRowContext(ctx,
		`UPDATE game SET accumulated_click = accumulated_click + 1, updated_at = $1 WHERE game_id = $2 RETURNING accumulated_click`,
		time.Now().UTC(), id,
	).Scan(&count)
	if err != nil {
		return 0, trapNoRowsErr(err, game.ErrNotFound, "incrementing click")
	}
	return count, nil
}
