package teacher

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/shulebox/backend/core"
)

type Service struct {
	repo    Repository
	mailSvc core.EmailService
}

func NewService(repo Repository, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, mailSvc: mailSvc}
}

func (svc *Service) GetByID(ctx context.Context, id string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, core.CleanString(id))
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Teacher, error) {
	return svc.repo.GetTeacherByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) QueryAll(ctx context.Context) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx)
}

// Save upserts a teacher, keeping CreatedAt of an existing row.
func (svc *Service) Save(ctx context.Context, t Teacher) (Teacher, error) {
	now := time.Now().UTC()
	if existing, err := svc.repo.GetTeacher(ctx, t.ID); err == nil {
		t.CreatedAt = existing.CreatedAt
	} else if err == ErrNotFound {
		t.CreatedAt = now
	} else {
		return Teacher{}, errors.Wrap(err, "finding teacher")
	}
	t.UpdatedAt = now
	return svc.repo.PutTeacher(ctx, t)
}

func (svc *Service) SetLastLogin(ctx context.Context, t Teacher) (Teacher, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetTeacherLastLogin(ctx, t.ID, now); err != nil {
		return t, err
	}
	t.LastLogin = now
	return t, nil
}

// RequestPasswordReset emails a signed one-time reset link to the teacher
// owning the given address.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	t, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if t.Email == "" {
		return ErrNotFound
	}

	token, err := MakeToken(t)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: t.Name, Address: t.Email}},
		Subject:      "Password Reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			Name  string
			UID   string
			Token string
		}{t.Name, EncodeUID(t), token},
	})
	return nil
}

// ResetPassword sets a new password on the teacher identified by the
// UID/token pair of a previously emailed reset link.
func (svc *Service) ResetPassword(ctx context.Context, data ResetTeacherPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	t, err := svc.repo.GetTeacher(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return errors.Wrap(err, "finding teacher")
	}
	if err = verifyToken(t, data.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = t.SetPassword(data.NewPassword); err != nil {
		return errors.Wrap(err, "setting password")
	}
	t.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.PutTeacher(ctx, t); err != nil {
		return errors.Wrap(err, "saving teacher")
	}
	return nil
}
