package student

import (
	"context"
	"time"

	"github.com/shulebox/backend/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, core.CleanString(id))
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Student, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryStudents(ctx, filter)
}

func (svc *Service) SetLastLogin(ctx context.Context, s Student) (Student, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetStudentLastLogin(ctx, s.ID, now); err != nil {
		return s, err
	}
	s.LastLogin = now
	return s, nil
}
