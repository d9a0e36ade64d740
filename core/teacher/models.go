package teacher

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shulebox/backend/core"
)

var ErrNotFound = errors.New("teacher not found")

type Teacher struct {
	ID               string    `json:"teacher_id"`
	Name             string    `json:"name"`
	Email            string    `json:"email,omitempty"` // optional; password reset & upload reports
	PasswordHash     []byte    `json:"-"`
	ResponsibleClass []string  `json:"responsible_class"`
	IsAdmin          bool      `json:"is_admin"`
	LastLogin        time.Time `json:"last_login"` // UTC
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

func (t *Teacher) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	t.PasswordHash = hash
	return nil
}

func (t *Teacher) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(t.PasswordHash, []byte(pwd))
}

func (t Teacher) Role() string {
	if t.IsAdmin {
		return core.RoleAdmin
	}
	return core.RoleTeacher
}

// ResponsibleFor reports whether the teacher is responsible for the given class code.
func (t Teacher) ResponsibleFor(class string) bool {
	for _, c := range t.ResponsibleClass {
		if c == class {
			return true
		}
	}
	return false
}

type Repository interface {
	GetTeacher(ctx context.Context, id string) (Teacher, error)
	GetTeacherByEmail(ctx context.Context, email string) (Teacher, error)
	QueryTeachers(ctx context.Context) ([]Teacher, error)
	// PutTeacher inserts or fully replaces a teacher row.
	PutTeacher(ctx context.Context, t Teacher) (Teacher, error)
	BatchPutTeachers(ctx context.Context, teachers []Teacher) error
	SetTeacherLastLogin(ctx context.Context, id string, t time.Time) error
}
