package tests

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	echoapi "github.com/shulebox/backend/apps/api/echo"
	"github.com/shulebox/backend/core/game"
	"github.com/shulebox/backend/core/roster"
	emailsvc "github.com/shulebox/backend/services/email"
	testutil "github.com/shulebox/backend/tests"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// makeSheet builds an in-memory workbook and returns it base64-encoded, the
// way upload clients submit files.
func makeSheet(t *testing.T, headers []string, rows ...[]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheetName := f.GetSheetName(0)
	hdr := make([]interface{}, len(headers))
	for i, h := range headers {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &hdr); err != nil {
		t.Fatalf("makeSheet(): %v", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			t.Fatalf("makeSheet(): %v", err)
		}
		if err = f.SetSheetRow(sheetName, cell, &row); err != nil {
			t.Fatalf("makeSheet(): %v", err)
		}
	}
	buff, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("makeSheet(): %v", err)
	}
	return base64.StdEncoding.EncodeToString(buff.Bytes())
}

func uploadRoster(t *testing.T, kind, token, file string) (*http.Response, roster.Result) {
	t.Helper()

	body := marchallObj(t, echoapi.UploadRequest{File: file})
	req, rec := newAuthRequest(http.MethodPost, "/v1/upload/"+kind, token, body)
	app.ServeHTTP(rec, req)

	var res roster.Result
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
	}
	return rec.Result(), res
}

func Test_rosterApi_upload_permissions(t *testing.T) {
	db.Reset()

	tch := testutil.CreateTeacher(t, teacherRepo, "T001", "Mr. Omondi", "omondi@test.cd", "s3cretPwd", nil, false)
	stud := testutil.CreateStudent(t, studentRepo, "S001", "Amina", "4A", tch.ID, "s3cretPwd")
	file := makeSheet(t, []string{"student_id"}, []interface{}{"S002"})

	teacherToken := getTeacherToken(t, tch)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/upload/students", body: marchallObj(t, echoapi.UploadRequest{File: file}), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Students cannot upload", path: "/v1/upload/students", token: getStudentToken(t, stud), body: marchallObj(t, echoapi.UploadRequest{File: file}), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "Unknown kind", path: "/v1/upload/pets", token: teacherToken, body: marchallObj(t, echoapi.UploadRequest{File: file}), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: `unknown roster kind "pets"`})},
		{name: "File required", path: "/v1/upload/students", token: teacherToken, wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"file": "this field is required"})},
		{name: "Invalid base64", path: "/v1/upload/students", token: teacherToken, body: marchallObj(t, echoapi.UploadRequest{File: "@@not-base64@@"}), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "file is not valid base64"})},
		{name: "Not a spreadsheet", path: "/v1/upload/students", token: teacherToken, body: marchallObj(t, echoapi.UploadRequest{File: base64.StdEncoding.EncodeToString([]byte("hello"))}), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid spreadsheet file"})},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_rosterApi_uploadStudents(t *testing.T) {
	db.Reset()

	tch := testutil.CreateTeacher(t, teacherRepo, "T001", "Mr. Omondi", "omondi@test.cd", "s3cretPwd", []string{"4A"}, false)
	token := getTeacherToken(t, tch)

	headers := []string{"student_id", "name_1", "class", "class_no", "teacher_id", "password"}
	file := makeSheet(t, headers,
		[]interface{}{"S001", "Amina", "4A", 12, tch.ID, "aminaPwd"},
		[]interface{}{"S002", "Baraka", "4A", 7, tch.ID, "barakaPwd"},
		[]interface{}{"S001", "Dup", "4A", 1, tch.ID, ""},   // duplicate id
		[]interface{}{"", "NoID", "4A", 2, tch.ID, ""},      // missing id
		[]interface{}{"S003", "Chiku", "4A", 3, "T999", ""}, // unknown teacher
	)

	emailsvc.SentMessages = nil
	resp, res := uploadRoster(t, "students", token, file)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("failed! code = %v; wantCode %v", resp.StatusCode, http.StatusOK)
	}
	if res.Processed != 5 || res.Inserted != 2 || res.Updated != 0 {
		t.Errorf("failed! result = %+v; want 5 processed, 2 inserted, 0 updated", res)
	}
	if len(res.Errors) != 3 {
		t.Fatalf("failed! errors = %v; want 3", res.Errors)
	}
	wantErrs := []string{"row 4: duplicate student_id S001", "row 5: missing student_id", "row 6: unknown teacher_id T999"}
	for i, want := range wantErrs {
		if res.Errors[i] != want {
			t.Errorf("failed! errors[%d] = %q; want %q", i, res.Errors[i], want)
		}
	}
	// row errors are mailed back to the uploader
	if len(emailsvc.SentMessages) != 1 {
		t.Errorf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
	}

	ctx := context.Background()
	s1, err := studentRepo.GetStudent(ctx, "S001")
	if err != nil {
		t.Fatalf("GetStudent(): %v", err)
	}
	if s1.Name1 != "Amina" || s1.Class != "4A" || s1.ClassNo != 12 || s1.TeacherID != tch.ID {
		t.Errorf("failed! student = %+v", s1)
	}
	if err = s1.CheckPassword("aminaPwd"); err != nil {
		t.Error("failed! uploaded password rejected")
	}
	firstCreatedAt := s1.CreatedAt

	// a second upload updates in place: created_at survives, a blank
	// password cell keeps the old hash
	file = makeSheet(t, headers, []interface{}{"S001", "Amina N.", "4B", 12, tch.ID, ""})
	emailsvc.SentMessages = nil
	_, res = uploadRoster(t, "students", token, file)
	if res.Processed != 1 || res.Inserted != 0 || res.Updated != 1 || len(res.Errors) != 0 {
		t.Errorf("failed! result = %+v; want 1 processed, 0 inserted, 1 updated", res)
	}
	if len(emailsvc.SentMessages) != 0 {
		t.Errorf("failed! report mailed without row errors")
	}

	s1, err = studentRepo.GetStudent(ctx, "S001")
	if err != nil {
		t.Fatalf("GetStudent(): %v", err)
	}
	if s1.Name1 != "Amina N." || s1.Class != "4B" {
		t.Errorf("failed! student = %+v", s1)
	}
	if !s1.CreatedAt.Equal(firstCreatedAt) {
		t.Errorf("failed! createdAt = %v; want %v", s1.CreatedAt, firstCreatedAt)
	}
	if err = s1.CheckPassword("aminaPwd"); err != nil {
		t.Error("failed! blank password cell reset the stored hash")
	}
}

func Test_rosterApi_uploadGames(t *testing.T) {
	db.Reset()

	tch := testutil.CreateTeacher(t, teacherRepo, "T001", "Mr. Omondi", "omondi@test.cd", "s3cretPwd", nil, false)
	stud := testutil.CreateStudent(t, studentRepo, "S001", "Amina", "4A", tch.ID, "")
	token := getTeacherToken(t, tch)

	headers := []string{"game_id", "game_name", "student_id", "subject", "difficulty", "teacher_id", "scratch_api"}
	file := makeSheet(t, headers,
		[]interface{}{"100001", "Maze Runner", stud.ID, "Math", "Beginner", tch.ID, "https://scratch.mit.edu/projects/100001/"},
		[]interface{}{"100002", "Space Words", stud.ID, "english", "Advanced", tch.ID, "https://scratch.mit.edu/projects/999999/"}, // id mismatch
		[]interface{}{"100003", "Mystery", stud.ID, "alchemy", "Beginner", tch.ID, ""},                                            // bad subject
	)

	_, res := uploadRoster(t, "games", token, file)
	if res.Processed != 3 || res.Inserted != 1 || len(res.Errors) != 2 {
		t.Fatalf("failed! result = %+v; want 3 processed, 1 inserted, 2 errors", res)
	}

	ctx := context.Background()
	g, err := gameRepo.GetGame(ctx, "100001")
	if err != nil {
		t.Fatalf("GetGame(): %v", err)
	}
	if g.Subject != game.SubjectMath || g.ScratchID != "100001" {
		t.Errorf("failed! game = %+v", g)
	}

	// clicks land, then a re-upload must not clobber the counter
	for i := 0; i < 3; i++ {
		if _, err = gameRepo.IncrementClick(ctx, g.ID); err != nil {
			t.Fatalf("IncrementClick(): %v", err)
		}
	}
	file = makeSheet(t, headers,
		[]interface{}{"100001", "Maze Runner II", stud.ID, "math", "Intermediate", tch.ID, "https://scratch.mit.edu/projects/100001/"},
	)
	_, res = uploadRoster(t, "games", token, file)
	if res.Updated != 1 {
		t.Fatalf("failed! result = %+v; want 1 updated", res)
	}

	g, err = gameRepo.GetGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGame(): %v", err)
	}
	if g.Name != "Maze Runner II" || g.Difficulty != game.DifficultyIntermediate {
		t.Errorf("failed! game = %+v", g)
	}
	if g.AccumulatedClick != 3 {
		t.Errorf("failed! accumulatedClick = %d; want 3", g.AccumulatedClick)
	}
}

func Test_rosterApi_download(t *testing.T) {
	db.Reset()

	tch := testutil.CreateTeacher(t, teacherRepo, "T001", "Mr. Omondi", "omondi@test.cd", "s3cretPwd", []string{"4A"}, false)
	admin := testutil.CreateTeacher(t, teacherRepo, "T002", "Head", "head@test.cd", "s3cretPwd", nil, true)
	stud := testutil.CreateStudent(t, studentRepo, "S001", "Amina", "4A", tch.ID, "s3cretPwd")
	testutil.CreateGame(t, gameRepo, "100001", "Maze Runner", stud.ID, tch.ID, game.SubjectMath, game.DifficultyBeginner, 5)

	teacherToken := getTeacherToken(t, tch)
	adminToken := getTeacherToken(t, admin)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/students/download", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Students cannot download", path: "/v1/students/download", token: getStudentToken(t, stud), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "Teachers roster needs admin", path: "/v1/teachers/download", token: teacherToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "Students roster", path: "/v1/students/download", token: teacherToken, wantCode: http.StatusOK, extra: []string{"student_id", "S001"}},
		{name: "Games roster", path: "/v1/games/download", token: teacherToken, wantCode: http.StatusOK, extra: []string{"game_id", "100001"}},
		{name: "Teachers roster", path: "/v1/teachers/download", token: adminToken, wantCode: http.StatusOK, extra: []string{"teacher_id", "T001", "T002"}},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)

			wantCells, ok := tt.extra.([]string)
			if !ok {
				checkCodeAndData(t, tt, rec)
				return
			}

			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
				t.Errorf("failed! contentType = %q; want %q", ct, xlsxContentType)
			}
			if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, `attachment; filename="`) {
				t.Errorf("failed! contentDisposition = %q", cd)
			}

			f, err := excelize.OpenReader(rec.Body)
			if err != nil {
				t.Fatalf("excelize.OpenReader(): %v", err)
			}
			defer f.Close()
			rows, err := f.GetRows(f.GetSheetName(0))
			if err != nil {
				t.Fatalf("GetRows(): %v", err)
			}
			var cells []string
			for _, row := range rows {
				cells = append(cells, row...)
			}
			for _, want := range wantCells {
				var found bool
				for _, c := range cells {
					if c == want {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("failed! cell %q not found in exported sheet", want)
				}
			}
		})
	}
}
