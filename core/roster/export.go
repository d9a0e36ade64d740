package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/shulebox/backend/core"
)

// Export writes the full table as a spreadsheet with the same header set the
// upload pipeline consumes. Password hashes are never exported.
func (svc *Service) Export(ctx context.Context, kind Kind) (*bytes.Buffer, string, error) {
	var headers []string
	var rows [][]interface{}

	switch kind {
	case KindStudents:
		students, err := svc.students.QueryStudents(ctx, nil)
		if err != nil {
			return nil, "", errors.Wrap(err, "querying students")
		}
		headers = []string{"student_id", "name_1", "name_2", "marks", "class", "class_no", "teacher_id", "last_login", "last_update", "created_at", "updated_at"}
		for _, s := range students {
			rows = append(rows, []interface{}{
				s.ID, s.Name1, s.Name2, s.Marks, s.Class, s.ClassNo, s.TeacherID,
				fmtTime(s.LastLogin), fmtTime(s.LastUpdate), fmtTime(s.CreatedAt), fmtTime(s.UpdatedAt),
			})
		}
	case KindTeachers:
		teachers, err := svc.teachers.QueryTeachers(ctx)
		if err != nil {
			return nil, "", errors.Wrap(err, "querying teachers")
		}
		headers = []string{"teacher_id", "name", "email", "responsible_class", "is_admin", "last_login", "created_at", "updated_at"}
		for _, t := range teachers {
			classes, _ := json.Marshal(t.ResponsibleClass)
			rows = append(rows, []interface{}{
				t.ID, t.Name, t.Email, string(classes), strconv.FormatBool(t.IsAdmin),
				fmtTime(t.LastLogin), fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt),
			})
		}
	case KindGames:
		games, err := svc.games.QueryGames(ctx, nil, nil)
		if err != nil {
			return nil, "", errors.Wrap(err, "querying games")
		}
		headers = []string{"game_id", "game_name", "student_id", "subject", "difficulty", "teacher_id", "scratch_id", "scratch_api", "accumulated_click", "created_at", "updated_at"}
		for _, g := range games {
			rows = append(rows, []interface{}{
				g.ID, g.Name, g.StudentID, g.Subject, g.Difficulty, g.TeacherID,
				g.ScratchID, g.ScratchAPI, g.AccumulatedClick, fmtTime(g.CreatedAt), fmtTime(g.UpdatedAt),
			})
		}
	default:
		return nil, "", core.NewValidationError(fmt.Errorf("unknown roster kind %q", kind))
	}

	f := excelize.NewFile()
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	sheetName := f.GetSheetName(0)
	hdr := make([]interface{}, len(headers))
	for i, h := range headers {
		hdr[i] = h
	}
	if err := writeRow(f, sheetName, 1, hdr); err != nil {
		return nil, "", err
	}
	for i, row := range rows {
		if err := writeRow(f, sheetName, i+2, row); err != nil {
			return nil, "", err
		}
	}

	buff, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", errors.Wrap(err, "writing spreadsheet")
	}
	return buff, fmt.Sprintf("%s-%s.xlsx", kind, time.Now().UTC().Format("20060102")), nil
}

func writeRow(f *excelize.File, sheetName string, rowNum int, vals []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return errors.Wrap(err, "resolving cell")
	}
	if err := f.SetSheetRow(sheetName, cell, &vals); err != nil {
		return errors.Wrap(err, "writing row")
	}
	return nil
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
