package roster

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/game"
	"github.com/shulebox/backend/core/student"
	"github.com/shulebox/backend/core/teacher"
)

// Kind names a roster entity type.
type Kind string

const (
	KindStudents Kind = "students"
	KindTeachers Kind = "teachers"
	KindGames    Kind = "games"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(core.CleanString(s, true /* lower */)); k {
	case KindStudents, KindTeachers, KindGames:
		return k, nil
	default:
		return "", core.NewValidationError(fmt.Errorf("unknown roster kind %q", s))
	}
}

// Result reports the outcome of one upload. A bad row never aborts the file:
// it lands in Errors and processing continues.
type Result struct {
	JobID     string   `json:"job_id"`
	Kind      Kind     `json:"kind"`
	Processed int      `json:"processed"`
	Inserted  int      `json:"inserted"`
	Updated   int      `json:"updated"`
	Errors    []string `json:"errors"`
}

func (r *Result) fail(rowNum int, msg string) {
	r.Errors = append(r.Errors, fmt.Sprintf("row %d: %s", rowNum, msg))
}

type Service struct {
	students student.Repository
	teachers teacher.Repository
	games    game.Repository
	mailSvc  core.EmailService
	logger   core.Logger
}

func NewService(
	students student.Repository,
	teachers teacher.Repository,
	games game.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		students: students,
		teachers: teachers,
		games:    games,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

// Upload parses a spreadsheet and upserts its rows into the target table.
// Existing rows keep their CreatedAt (and, for games, the stored
// AccumulatedClick); new rows get CreatedAt == UpdatedAt == now. Rows absent
// from the file are left untouched.
func (svc *Service) Upload(ctx context.Context, kind Kind, data []byte) (Result, error) {
	sh, err := parseSheet(data)
	if err != nil {
		return Result{}, err
	}

	res := Result{JobID: uuid.New().String(), Kind: kind}
	switch kind {
	case KindStudents:
		err = svc.uploadStudents(ctx, sh, &res)
	case KindTeachers:
		err = svc.uploadTeachers(ctx, sh, &res)
	case KindGames:
		err = svc.uploadGames(ctx, sh, &res)
	default:
		err = core.NewValidationError(fmt.Errorf("unknown roster kind %q", kind))
	}
	if err != nil {
		return Result{}, err
	}

	svc.logger.Info(fmt.Sprintf(
		"roster upload %s (%s): %d processed, %d inserted, %d updated, %d errors",
		res.JobID, res.Kind, res.Processed, res.Inserted, res.Updated, len(res.Errors)))
	return res, nil
}

func (svc *Service) uploadStudents(ctx context.Context, sh *sheet, res *Result) error {
	if err := sh.requireHeaders("student_id"); err != nil {
		return err
	}

	now := time.Now().UTC()
	var puts []student.Student
	inserts := make(map[string]bool)
	seen := make(map[string]bool)

	for i, row := range sh.rows {
		res.Processed++
		id := ToString(sh.cell(row, "student_id"), "")
		if id == "" {
			res.fail(sh.rowNum(i), "missing student_id")
			continue
		}
		if seen[id] {
			res.fail(sh.rowNum(i), "duplicate student_id "+id)
			continue
		}

		s, err := svc.students.GetStudent(ctx, id)
		isNew := err == student.ErrNotFound
		if isNew {
			s = student.Student{ID: id, CreatedAt: now}
		} else if err != nil {
			return errors.Wrap(err, "finding student")
		}

		if sh.has("name_1") {
			s.Name1 = ToString(sh.cell(row, "name_1"), s.Name1)
		}
		if sh.has("name_2") {
			s.Name2 = ToString(sh.cell(row, "name_2"), s.Name2)
		}
		if sh.has("marks") {
			s.Marks = ToInt(sh.cell(row, "marks"), s.Marks)
		}
		if s.Marks < 0 || s.Marks > student.MaxMarks {
			res.fail(sh.rowNum(i), fmt.Sprintf("marks out of range: %d", s.Marks))
			continue
		}
		if sh.has("class") {
			s.Class = ToString(sh.cell(row, "class"), s.Class)
		}
		if sh.has("class_no") {
			s.ClassNo = ToInt(sh.cell(row, "class_no"), s.ClassNo)
		}
		if sh.has("teacher_id") {
			s.TeacherID = ToString(sh.cell(row, "teacher_id"), s.TeacherID)
		}
		if s.TeacherID != "" {
			if _, err := svc.teachers.GetTeacher(ctx, s.TeacherID); err == teacher.ErrNotFound {
				res.fail(sh.rowNum(i), "unknown teacher_id "+s.TeacherID)
				continue
			} else if err != nil {
				return errors.Wrap(err, "finding teacher")
			}
		}
		// a blank password cell never resets an existing hash
		if pwd := ToString(sh.cell(row, "password"), ""); pwd != "" {
			if err := s.SetPassword(pwd); err != nil {
				return errors.Wrap(err, "hashing password")
			}
		}
		if isNew && sh.has("created_at") {
			s.CreatedAt = ToTime(sh.cell(row, "created_at"), now)
		}
		s.LastUpdate = now
		s.UpdatedAt = now

		seen[id] = true
		puts = append(puts, s)
		if isNew {
			inserts[id] = true
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	return svc.flush(res, inserts, func() error { return svc.students.BatchPutStudents(ctx, puts) })
}

func (svc *Service) uploadTeachers(ctx context.Context, sh *sheet, res *Result) error {
	if err := sh.requireHeaders("teacher_id"); err != nil {
		return err
	}

	now := time.Now().UTC()
	var puts []teacher.Teacher
	inserts := make(map[string]bool)
	seen := make(map[string]bool)

	for i, row := range sh.rows {
		res.Processed++
		id := ToString(sh.cell(row, "teacher_id"), "")
		if id == "" {
			res.fail(sh.rowNum(i), "missing teacher_id")
			continue
		}
		if seen[id] {
			res.fail(sh.rowNum(i), "duplicate teacher_id "+id)
			continue
		}

		t, err := svc.teachers.GetTeacher(ctx, id)
		isNew := err == teacher.ErrNotFound
		if isNew {
			t = teacher.Teacher{ID: id, CreatedAt: now}
		} else if err != nil {
			return errors.Wrap(err, "finding teacher")
		}

		if sh.has("name") {
			t.Name = ToString(sh.cell(row, "name"), t.Name)
		}
		if sh.has("email") {
			t.Email = strings.ToLower(ToString(sh.cell(row, "email"), t.Email))
		}
		if sh.has("responsible_class") {
			t.ResponsibleClass = ToStringSlice(sh.cell(row, "responsible_class"), t.ResponsibleClass)
		}
		if sh.has("is_admin") {
			t.IsAdmin = ToBool(sh.cell(row, "is_admin"), t.IsAdmin)
		}
		if pwd := ToString(sh.cell(row, "password"), ""); pwd != "" {
			if err := t.SetPassword(pwd); err != nil {
				return errors.Wrap(err, "hashing password")
			}
		}
		t.UpdatedAt = now

		seen[id] = true
		puts = append(puts, t)
		if isNew {
			inserts[id] = true
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	return svc.flush(res, inserts, func() error { return svc.teachers.BatchPutTeachers(ctx, puts) })
}

func (svc *Service) uploadGames(ctx context.Context, sh *sheet, res *Result) error {
	if err := sh.requireHeaders("game_id"); err != nil {
		return err
	}

	now := time.Now().UTC()
	var puts []game.Game
	inserts := make(map[string]bool)
	seen := make(map[string]bool)

	for i, row := range sh.rows {
		res.Processed++
		id := ToString(sh.cell(row, "game_id"), "")
		if id == "" {
			res.fail(sh.rowNum(i), "missing game_id")
			continue
		}
		if seen[id] {
			res.fail(sh.rowNum(i), "duplicate game_id "+id)
			continue
		}

		g, err := svc.games.GetGame(ctx, id)
		isNew := err == game.ErrNotFound
		if isNew {
			g = game.Game{ID: id, CreatedAt: now}
		} else if err != nil {
			return errors.Wrap(err, "finding game")
		}

		if sh.has("game_name") {
			g.Name = ToString(sh.cell(row, "game_name"), g.Name)
		}
		if sh.has("subject") {
			g.Subject = strings.ToLower(ToString(sh.cell(row, "subject"), g.Subject))
		}
		if g.Subject != "" && !game.ValidSubject(g.Subject) {
			res.fail(sh.rowNum(i), "unknown subject "+g.Subject)
			continue
		}
		if sh.has("difficulty") {
			g.Difficulty = ToString(sh.cell(row, "difficulty"), g.Difficulty)
		}
		if g.Difficulty != "" && !game.ValidDifficulty(g.Difficulty) {
			res.fail(sh.rowNum(i), "unknown difficulty "+g.Difficulty)
			continue
		}
		if sh.has("student_id") {
			g.StudentID = ToString(sh.cell(row, "student_id"), g.StudentID)
		}
		if g.StudentID != "" {
			if _, err := svc.students.GetStudent(ctx, g.StudentID); err == student.ErrNotFound {
				res.fail(sh.rowNum(i), "unknown student_id "+g.StudentID)
				continue
			} else if err != nil {
				return errors.Wrap(err, "finding student")
			}
		}
		if sh.has("teacher_id") {
			g.TeacherID = ToString(sh.cell(row, "teacher_id"), g.TeacherID)
		}
		if g.TeacherID != "" {
			if _, err := svc.teachers.GetTeacher(ctx, g.TeacherID); err == teacher.ErrNotFound {
				res.fail(sh.rowNum(i), "unknown teacher_id "+g.TeacherID)
				continue
			} else if err != nil {
				return errors.Wrap(err, "finding teacher")
			}
		}
		if sh.has("scratch_api") {
			g.ScratchAPI = ToString(sh.cell(row, "scratch_api"), g.ScratchAPI)
		}
		if g.ScratchAPI != "" {
			// by convention the game id is its Scratch project number
			if pid := game.ScratchProjectID(g.ScratchAPI); pid != "" && pid != id {
				res.fail(sh.rowNum(i), "game_id does not match scratch project url")
				continue
			}
		}
		if sh.has("scratch_id") {
			g.ScratchID = ToString(sh.cell(row, "scratch_id"), g.ScratchID)
		}
		if g.ScratchID == "" {
			g.ScratchID = game.ScratchProjectID(g.ScratchAPI)
		}
		// the stored counter wins on update; a fresh row may seed it
		if isNew {
			g.AccumulatedClick = ToInt(sh.cell(row, "accumulated_click"), 0)
		}
		g.UpdatedAt = now

		seen[id] = true
		puts = append(puts, g)
		if isNew {
			inserts[id] = true
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	return svc.flush(res, inserts, func() error { return svc.games.BatchPutGames(ctx, puts) })
}

// flush runs the batched writes and folds per-item failures into row errors.
func (svc *Service) flush(res *Result, inserts map[string]bool, put func() error) error {
	err := put()
	if err == nil {
		return nil
	}
	var berr *core.BatchError
	if errors.As(err, &berr) {
		for id, ierr := range berr.Failed {
			res.Errors = append(res.Errors, fmt.Sprintf("upsert %s: %v", id, ierr))
			if inserts[id] {
				res.Inserted--
			} else {
				res.Updated--
			}
		}
		return nil
	}
	return errors.Wrap(err, "persisting roster")
}

// EmailReport sends the uploader a copy of the row errors as an attachment.
func (svc *Service) EmailReport(res Result, to mail.Address) {
	if len(res.Errors) == 0 || to.Address == "" {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      fmt.Sprintf("Roster upload report (%s)", res.Kind),
		TemplateName: "upload-report",
		TemplateData: res,
	}
	report := strings.Join(res.Errors, "\n") + "\n"
	if err := msg.Attach(strings.NewReader(report), fmt.Sprintf("%s-errors.txt", res.JobID), "text/plain"); err != nil {
		svc.logger.Error(fmt.Sprintf("attaching upload report: %v", err), err)
		return
	}
	svc.mailSvc.SendMessages(msg)
}
