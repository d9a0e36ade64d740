package testutil

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/game"
	"github.com/shulebox/backend/core/student"
	"github.com/shulebox/backend/core/teacher"
)

// Logger is a plain stdout logger; Fatal does not kill the test binary.
type Logger struct{}

var _ core.Logger = (*Logger)(nil)

func (l Logger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l Logger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l Logger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l Logger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }
func (l Logger) Fatal(msg string, args ...interface{}) { l.print("FATAL", msg, args) }

func (l Logger) print(level, msg string, args []interface{}) {
	log.Printf("%s : %s", level, msg)
	for _, arg := range args {
		log.Printf("%+v", arg)
	}
}

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	id, name, class, teacherID, pwd string,
	createdAt ...time.Time,
) student.Student {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	s := student.Student{
		ID:        id,
		Name1:     name,
		Class:     class,
		TeacherID: teacherID,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := s.SetPassword(pwd); err != nil {
			t.Fatalf("CreateStudent() failed: %v", err)
		}
	}
	s, err := repo.PutStudent(context.Background(), s)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

func CreateTeacher(
	t *testing.T,
	repo teacher.Repository,
	id, name, email, pwd string,
	classes []string,
	isAdmin bool,
	createdAt ...time.Time,
) teacher.Teacher {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	tch := teacher.Teacher{
		ID:               id,
		Name:             name,
		Email:            email,
		ResponsibleClass: classes,
		IsAdmin:          isAdmin,
		CreatedAt:        tstamp,
		UpdatedAt:        tstamp,
	}
	if pwd != "" {
		if err := tch.SetPassword(pwd); err != nil {
			t.Fatalf("CreateTeacher() failed: %v", err)
		}
	}
	tch, err := repo.PutTeacher(context.Background(), tch)
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return tch
}

func CreateGame(
	t *testing.T,
	repo game.Repository,
	id, name, studentID, teacherID, subject, difficulty string,
	clicks int,
	createdAt ...time.Time,
) game.Game {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	g := game.Game{
		ID:               id,
		Name:             name,
		StudentID:        studentID,
		TeacherID:        teacherID,
		Subject:          subject,
		Difficulty:       difficulty,
		ScratchID:        id,
		ScratchAPI:       "https://scratch.mit.edu/projects/" + id,
		AccumulatedClick: clicks,
		CreatedAt:        tstamp,
		UpdatedAt:        tstamp,
	}
	g, err := repo.PutGame(context.Background(), g)
	if err != nil {
		t.Fatalf("CreateGame() failed: %v", err)
	}
	return g
}
