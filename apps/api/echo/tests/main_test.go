package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/shulebox/backend/apps/api/echo"
	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/game"
	"github.com/shulebox/backend/core/roster"
	"github.com/shulebox/backend/core/student"
	"github.com/shulebox/backend/core/teacher"
	emailsvc "github.com/shulebox/backend/services/email"
	inmemdb "github.com/shulebox/backend/storage/database/inmem"
	testutil "github.com/shulebox/backend/tests"
)

var (
	db          *inmemdb.DB
	app         Server
	studentRepo student.Repository
	teacherRepo teacher.Repository
	gameRepo    game.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	core.Conf.Debug = false
	core.Conf.TestMode = true

	// set up DB & repos
	db, _ = inmemdb.Open()
	studentRepo = inmemdb.NewStudentRepository(db)
	teacherRepo = inmemdb.NewTeacherRepository(db)
	gameRepo = inmemdb.NewGameRepository(db)

	// set up services
	logger := testutil.Logger{}
	mailSvc := emailsvc.NewConsoleServiceMock()
	studentSvc := student.NewService(studentRepo)
	teacherSvc := teacher.NewService(teacherRepo, mailSvc)
	gameSvc := game.NewService(gameRepo)
	rosterSvc := roster.NewService(studentRepo, teacherRepo, gameRepo, mailSvc, logger)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	teacher.RegisterValidators(validate, translator)

	// set up server
	app = NewServer(&Options{
		DisableReqLogs: true,
		StudentSvc:     studentSvc,
		TeacherSvc:     teacherSvc,
		GameSvc:        gameSvc,
		RosterSvc:      rosterSvc,
		Validate:       validate,
		Translator:     translator,
		Logger:         logger,
		SignalShutdown: func() {},
	})

	os.Exit(m.Run())
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getStudentToken(t *testing.T, s student.Student) string {
	t.Helper()
	token, err := GenerateToken(GetStudentClaims(s))
	if err != nil {
		t.Fatalf("getStudentToken(): %v", err)
	}
	return token
}

func getTeacherToken(t *testing.T, tch teacher.Teacher) string {
	t.Helper()
	token, err := GenerateToken(GetTeacherClaims(tch))
	if err != nil {
		t.Fatalf("getTeacherToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
