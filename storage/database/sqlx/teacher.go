package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/teacher"
)

type teacherRow struct {
	ID               string         `db:"teacher_id"`
	Name             string         `db:"teacher_name"`
	Email            null.String    `db:"email"`
	PasswordHash     []byte         `db:"password_hash"`
	ResponsibleClass pq.StringArray `db:"responsible_class"`
	IsAdmin          bool           `db:"is_admin"`
	LastLogin        null.Time      `db:"last_login"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func packTeacher(t teacher.Teacher) teacherRow {
	return teacherRow{
		ID:               t.ID,
		Name:             t.Name,
		Email:            null.NewString(t.Email, t.Email != ""),
		PasswordHash:     t.PasswordHash,
		ResponsibleClass: t.ResponsibleClass,
		IsAdmin:          t.IsAdmin,
		LastLogin:        null.NewTime(t.LastLogin.UTC(), !t.LastLogin.IsZero()),
		CreatedAt:        t.CreatedAt.UTC(),
		UpdatedAt:        t.UpdatedAt.UTC(),
	}
}

func unpackTeacher(row teacherRow) teacher.Teacher {
	return teacher.Teacher{
		ID:               row.ID,
		Name:             row.Name,
		Email:            row.Email.String,
		PasswordHash:     row.PasswordHash,
		ResponsibleClass: row.ResponsibleClass,
		IsAdmin:          row.IsAdmin,
		LastLogin:        row.LastLogin.Time,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

const teacherUpsertQuery = `
INSERT INTO teacher (teacher_id, teacher_name, email, password_hash, responsible_class, is_admin, last_login, created_at, updated_at)
VALUES (:teacher_id, :teacher_name, :email, :password_hash, :responsible_class, :is_admin, :last_login, :created_at, :updated_at)
ON CONFLICT (teacher_id) DO UPDATE SET
	teacher_name = EXCLUDED.teacher_name,
	email = EXCLUDED.email,
	password_hash = EXCLUDED.password_hash,
	responsible_class = EXCLUDED.responsible_class,
	is_admin = EXCLUDED.is_admin,
	last_login = EXCLUDED.last_login,
	updated_at = EXCLUDED.updated_at`

type teacherRepository struct {
	db *sqlx.DB
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(db *sqlx.DB) *teacherRepository {
	return &teacherRepository{db: db}
}

func (repo teacherRepository) GetTeacher(ctx context.Context, id string) (teacher.Teacher, error) {
	var row teacherRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM teacher WHERE teacher_id = $1`, id)
	if err != nil {
		return teacher.Teacher{}, trapNoRowsErr(err, teacher.ErrNotFound, "getting teacher")
	}
	return unpackTeacher(row), nil
}

func (repo teacherRepository) GetTeacherByEmail(ctx context.Context, email string) (teacher.Teacher, error) {
	var row teacherRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM teacher WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		return teacher.Teacher{}, trapNoRowsErr(err, teacher.ErrNotFound, "getting teacher by email")
	}
	return unpackTeacher(row), nil
}

func (repo teacherRepository) QueryTeachers(ctx context.Context) ([]teacher.Teacher, error) {
	var rows []teacherRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM teacher ORDER BY teacher_id`); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]teacher.Teacher, 0, len(rows))
	for _, row := range rows {
		teachers = append(teachers, unpackTeacher(row))
	}
	return teachers, nil
}

func (repo teacherRepository) PutTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	if _, err := repo.db.NamedExecContext(ctx, teacherUpsertQuery, packTeacher(t)); err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "upserting teacher")
	}
	return t, nil
}

func (repo teacherRepository) BatchPutTeachers(ctx context.Context, teachers []teacher.Teacher) error {
	berr := core.NewBatchError()
	for _, chunk := range chunkSize(len(teachers)) {
		batch := teachers[chunk[0]:chunk[1]]
		if err := repo.putTeachersTx(ctx, batch); err != nil {
			for _, t := range batch {
				if _, ierr := repo.PutTeacher(ctx, t); ierr != nil {
					berr.Failed[t.ID] = ierr
				}
			}
		}
	}
	if berr.Empty() {
		return nil
	}
	return berr
}

func (repo teacherRepository) putTeachersTx(ctx context.Context, teachers []teacher.Teacher) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	for _, t := range teachers {
		if _, err = tx.NamedExecContext(ctx, teacherUpsertQuery, packTeacher(t)); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "upserting teacher")
		}
	}
	return errors.Wrap(tx.Commit(), "committing tx")
}

func (repo teacherRepository) SetTeacherLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE teacher SET last_login = $1 WHERE teacher_id = $2`, at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return teacher.ErrNotFound
	}
	return nil
}
