package student

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shulebox/backend/core"
)

// Marks are capped to this value.
const MaxMarks = 1000

var ErrNotFound = errors.New("student not found")

type Student struct {
	ID           string    `json:"student_id"`
	Name1        string    `json:"name_1"`
	Name2        string    `json:"name_2"`
	Marks        int       `json:"marks"`
	Class        string    `json:"class"`
	ClassNo      int       `json:"class_no"`
	TeacherID    string    `json:"teacher_id"`
	PasswordHash []byte    `json:"-"`
	LastLogin    time.Time `json:"last_login"`  // UTC
	LastUpdate   time.Time `json:"last_update"` // UTC
	CreatedAt    time.Time `json:"created_at"`  // UTC
	UpdatedAt    time.Time `json:"updated_at"`  // UTC
}

func (s *Student) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *Student) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

func (s Student) Role() string { return core.RoleStudent }

type QueryFilter struct {
	Class     string `query:"class"`
	TeacherID string `query:"teacher_id"`
}

func (f *QueryFilter) Clean() {
	f.Class = core.CleanString(f.Class)
	f.TeacherID = core.CleanString(f.TeacherID)
}

type Repository interface {
	GetStudent(ctx context.Context, id string) (Student, error)
	QueryStudents(ctx context.Context, filter *QueryFilter) ([]Student, error)
	// PutStudent inserts or fully replaces a student row.
	PutStudent(ctx context.Context, s Student) (Student, error)
	// BatchPutStudents persists students in chunks of core batch size,
	// falling back to individual writes on batch failure. A *core.BatchError
	// is returned when some items could not be persisted at all.
	BatchPutStudents(ctx context.Context, students []Student) error
	SetStudentLastLogin(ctx context.Context, id string, t time.Time) error
}
