package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/teacher"
)

// addTeacher updates or creates a teacher record.
func (cli *commandLine) addTeacher(id, name, email string, classes []string, pwd string, isAdmin bool) error {
	ctx := context.Background()
	id = core.CleanString(id)
	email = core.CleanString(email, true /* lower */)

	if err := teacher.ValidatePassword(pwd, id, name, email); err != nil {
		return err
	}

	now := time.Now().UTC()
	t, err := cli.teachers.GetTeacher(ctx, id)
	if err != nil {
		if errors.Cause(err) != teacher.ErrNotFound {
			return err
		}
		t = teacher.Teacher{ID: id, CreatedAt: now}
	}
	t.Name = name
	t.Email = email
	t.IsAdmin = isAdmin
	if classes != nil {
		t.ResponsibleClass = classes
	}
	t.UpdatedAt = now
	if err = t.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.teachers.PutTeacher(ctx, t)
	return err
}
