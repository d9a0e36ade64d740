package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/student"
)

type studentRow struct {
	ID           string    `db:"student_id"`
	Name1        string    `db:"name_1"`
	Name2        string    `db:"name_2"`
	Marks        int       `db:"marks"`
	Class        string    `db:"class"`
	ClassNo      int       `db:"class_no"`
	TeacherID    string    `db:"teacher_id"`
	PasswordHash []byte    `db:"password_hash"`
	LastLogin    null.Time `db:"last_login"`
	LastUpdate   null.Time `db:"last_update"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func packStudent(s student.Student) studentRow {
	return studentRow{
		ID:           s.ID,
		Name1:        s.Name1,
		Name2:        s.Name2,
		Marks:        s.Marks,
		Class:        s.Class,
		ClassNo:      s.ClassNo,
		TeacherID:    s.TeacherID,
		PasswordHash: s.PasswordHash,
		LastLogin:    null.NewTime(s.LastLogin.UTC(), !s.LastLogin.IsZero()),
		LastUpdate:   null.NewTime(s.LastUpdate.UTC(), !s.LastUpdate.IsZero()),
		CreatedAt:    s.CreatedAt.UTC(),
		UpdatedAt:    s.UpdatedAt.UTC(),
	}
}

func unpackStudent(row studentRow) student.Student {
	return student.Student{
		ID:           row.ID,
		Name1:        row.Name1,
		Name2:        row.Name2,
		Marks:        row.Marks,
		Class:        row.Class,
		ClassNo:      row.ClassNo,
		TeacherID:    row.TeacherID,
		PasswordHash: row.PasswordHash,
		LastLogin:    row.LastLogin.Time,
		LastUpdate:   row.LastUpdate.Time,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

const studentUpsertQuery = `
INSERT INTO student (student_id, name_1, name_2, marks, class, class_no, teacher_id, password_hash, last_login, last_update, created_at, updated_at)
VALUES (:student_id, :name_1, :name_2, :marks, :class, :class_no, :teacher_id, :password_hash, :last_login, :last_update, :created_at, :updated_at)
ON CONFLICT (student_id) DO UPDATE SET
	name_1 = EXCLUDED.name_1,
	name_2 = EXCLUDED.name_2,
	marks = EXCLUDED.marks,
	class = EXCLUDED.class,
	class_no = EXCLUDED.class_no,
	teacher_id = EXCLUDED.teacher_id,
	password_hash = EXCLUDED.password_hash,
	last_login = EXCLUDED.last_login,
	last_update = EXCLUDED.last_update,
	updated_at = EXCLUDED.updated_at`

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM student WHERE student_id = $1`, id)
	if err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "getting student")
	}
	return unpackStudent(row), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter) ([]student.Student, error) {
	query := `SELECT * FROM student`
	var args []interface{}
	if filter != nil {
		clauses, vals := whereEq(map[string]string{"class": filter.Class, "teacher_id": filter.TeacherID})
		query += clauses
		args = vals
	}
	query += ` ORDER BY student_id`

	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, unpackStudent(row))
	}
	return students, nil
}

func (repo studentRepository) PutStudent(ctx context.Context, s student.Student) (student.Student, error) {
	if _, err := repo.db.NamedExecContext(ctx, studentUpsertQuery, packStudent(s)); err != nil {
		return student.Student{}, errors.Wrap(err, "upserting student")
	}
	return s, nil
}

func (repo studentRepository) BatchPutStudents(ctx context.Context, students []student.Student) error {
	berr := core.NewBatchError()
	for _, chunk := range chunkSize(len(students)) {
		batch := students[chunk[0]:chunk[1]]
		if err := repo.putStudentsTx(ctx, batch); err != nil {
			// per-item fallback
			for _, s := range batch {
				if _, ierr := repo.PutStudent(ctx, s); ierr != nil {
					berr.Failed[s.ID] = ierr
				}
			}
		}
	}
	if berr.Empty() {
		return nil
	}
	return berr
}

func (repo studentRepository) putStudentsTx(ctx context.Context, students []student.Student) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	for _, s := range students {
		if _, err = tx.NamedExecContext(ctx, studentUpsertQuery, packStudent(s)); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "upserting student")
		}
	}
	return errors.Wrap(tx.Commit(), "committing tx")
}

func (repo studentRepository) SetStudentLastLogin(ctx context.Context, id string, t time.Time) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE student SET last_login = $1 WHERE student_id = $2`, t.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.ErrNotFound
	}
	return nil
}

// trapNoRowsErr maps psql "no rows" err to the entity's not-found error
func trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
