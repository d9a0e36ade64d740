package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/teacher"
	inmemdb "github.com/shulebox/backend/storage/database/inmem"
	testutil "github.com/shulebox/backend/tests"
)

var teacherRepo teacher.Repository

func setup(t *testing.T) *commandLine {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed, %v", err)
	}
	teacherRepo = inmemdb.NewTeacherRepository(db)

	// start CLI; no db handle: the in-memory engine has no migrations
	return &commandLine{teachers: teacherRepo}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	t.Run("requires postgres", func(t *testing.T) {
		err := cli.run([]string{"admin", "migrate", "up"})
		if err == nil || err.Error() != "migrations require the postgres engine" {
			t.Errorf("cli.run() error = %v", err)
		}
	})

	cli.db = new(sqlx.DB) // the mocked goose runner never touches it
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s requires a VERSION argument", command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create requires a NAME argument")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to requires a VERSION argument"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to requires a VERSION argument"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create requires a NAME argument"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "game", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addTeacher(t *testing.T) {
	cli := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"addteacher"}, wantErr: errHelp},
		{name: "id but no name", args: []string{"addteacher", "-id", "T001"}, wantErr: errHelp},
		{name: "no password", args: []string{"addteacher", "-id", "T001", "-name", "Mr. Omondi"}, wantErr: errHelp},
		{
			name: "teacher created",
			args: []string{"addteacher", "-id", "T001", "-name", "Mr. Omondi", "-email", "Omondi@Test.CD", "-class", "4A, 4B", "-admin"},
			extra: extra{pwd: "G00d!Pass"},
		},
		{
			name: "existing teacher updated",
			args: []string{"addteacher", "-id", "T001", "-name", "Mr. J. Omondi"},
			extra: extra{pwd: "0ther!Pass"},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				tch, err := teacherRepo.GetTeacher(context.Background(), "T001")
				if err != nil {
					t.Fatalf("GetTeacher() failed, %v", err)
				}
				if extra, ok := tt.extra.(extra); ok {
					if err = tch.CheckPassword(extra.pwd); err != nil {
						t.Error("failed to set password")
					}
				}
			} else if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			} else if err.Error() != tt.wantErrStr {
				t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
			}
		})
	}

	// the password policy applies
	t.Run("weak password", func(t *testing.T) {
		readPasswordFunc = func(fd int) ([]byte, error) { return []byte("lol"), nil }
		err := cli.run([]string{"admin", "addteacher", "-id", "T009", "-name", "Weak"})
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("cli.run() error = %v; want a validation error", err)
		}
		if len(verr.Fields) != 1 || verr.Fields[0].Field != "password" {
			t.Errorf("cli.run() fields = %+v; want password flagged", verr.Fields)
		}
	})

	// an update keeps createdAt and the classes when -class is omitted
	tch, err := teacherRepo.GetTeacher(context.Background(), "T001")
	if err != nil {
		t.Fatalf("GetTeacher() failed, %v", err)
	}
	if tch.Name != "Mr. J. Omondi" || tch.CreatedAt.IsZero() {
		t.Errorf("update clobbered the record: %+v", tch)
	}
	if len(tch.ResponsibleClass) != 2 {
		t.Errorf("responsibleClass = %v; want the classes kept", tch.ResponsibleClass)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	tch := testutil.CreateTeacher(t, teacherRepo, "T001", "Mr. Omondi", "omondi@test.cd", "0ld!Passw0rd", nil, false)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "id but no password", args: []string{"resetpassword", "-id", "lol"}, wantErr: errHelp},
		{name: "teacher not found", args: []string{"resetpassword", "-id", "lol"}, extra: extra{pwd: "G00d!Pass"}, wantErr: teacher.ErrNotFound},
		{name: "reset with id", args: []string{"resetpassword", "-id", tch.ID}, extra: extra{pwd: "G00d!Pass"}},
		{name: "reset with email", args: []string{"resetpassword", "-id", tch.Email}, extra: extra{pwd: "0ther!Pass"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := teacherRepo.GetTeacher(context.Background(), tch.ID)
				if err != nil {
					t.Fatalf("GetTeacher() failed, %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, tch.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
