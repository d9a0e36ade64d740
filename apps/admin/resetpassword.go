package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/teacher"
)

func (cli *commandLine) resetPassword(id, pwd string) error {
	ctx := context.Background()
	id = core.CleanString(id)

	t, err := cli.teachers.GetTeacher(ctx, id)
	if err != nil {
		if errors.Cause(err) != teacher.ErrNotFound {
			return err
		}
		// fall back to email lookup
		if t, err = cli.teachers.GetTeacherByEmail(ctx, core.CleanString(id, true /* lower */)); err != nil {
			return err
		}
	}

	if err = teacher.ValidatePassword(pwd, t.ID, t.Name, t.Email); err != nil {
		return err
	}
	if err = t.SetPassword(pwd); err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()
	_, err = cli.teachers.PutTeacher(ctx, t)
	return err
}
