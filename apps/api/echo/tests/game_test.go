package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/shulebox/backend/apps/api/echo"
	"github.com/shulebox/backend/core/game"
	testutil "github.com/shulebox/backend/tests"
)

func Test_gameApi_query(t *testing.T) {
	db.Reset()

	tch := testutil.CreateTeacher(t, teacherRepo, "T001", "Mr. Omondi", "omondi@test.cd", "", []string{"4A"}, false)
	stud := testutil.CreateStudent(t, studentRepo, "S001", "Amina", "4A", tch.ID, "s3cretPwd")
	stud2 := testutil.CreateStudent(t, studentRepo, "S002", "Baraka", "4A", tch.ID, "")

	g1 := testutil.CreateGame(t, gameRepo, "100001", "Maze Runner", stud.ID, tch.ID, game.SubjectMath, game.DifficultyBeginner, 5)
	g2 := testutil.CreateGame(t, gameRepo, "100002", "Space Words", stud2.ID, tch.ID, game.SubjectEnglish, game.DifficultyAdvanced, 9)
	g3 := testutil.CreateGame(t, gameRepo, "100003", "Counting Stars", stud.ID, tch.ID, game.SubjectMath, game.DifficultyIntermediate, 1)

	token := getStudentToken(t, stud)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/games", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "All games", path: "/v1/games", token: token, wantCode: http.StatusOK, wantData: marchallList(t, g1, g2, g3)},
		{name: "Filter by subject", path: "/v1/games?subject=math", token: token, wantCode: http.StatusOK, wantData: marchallList(t, g1, g3)},
		{name: "Filter by subject and difficulty", path: "/v1/games?subject=math&difficulty=Intermediate", token: token, wantCode: http.StatusOK, wantData: marchallList(t, g3)},
		{name: "Filter by student", path: "/v1/games?student_id=S002", token: token, wantCode: http.StatusOK, wantData: marchallList(t, g2)},
		{name: "No match", path: "/v1/games?subject=science", token: token, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "Ordered by clicks desc", path: "/v1/games?ordering=-accumulated_click", token: token, wantCode: http.StatusOK, wantData: marchallList(t, g2, g1, g3)},
		{name: "Ordered by name", path: "/v1/games?ordering=game_name", token: token, wantCode: http.StatusOK, wantData: marchallList(t, g3, g1, g2)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_gameApi_click(t *testing.T) {
	db.Reset()

	tch := testutil.CreateTeacher(t, teacherRepo, "T001", "Mr. Omondi", "omondi@test.cd", "", nil, false)
	stud := testutil.CreateStudent(t, studentRepo, "S001", "Amina", "4A", tch.ID, "s3cretPwd")
	g := testutil.CreateGame(t, gameRepo, "100001", "Maze Runner", stud.ID, tch.ID, game.SubjectMath, game.DifficultyBeginner, 41)

	token := getStudentToken(t, stud)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/games/" + g.ID + "/click", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Unknown game", path: "/v1/games/999999/click", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
		{
			name: "Click counted", path: "/v1/games/" + g.ID + "/click", token: token, wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.ClickResponse{GameID: g.ID, AccumulatedClick: 42}),
		},
		{
			name: "Click counted again", path: "/v1/games/" + g.ID + "/click", token: token, wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.ClickResponse{GameID: g.ID, AccumulatedClick: 43}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// the count sticks
	var games []game.Game
	req, rec := newAuthRequest(http.MethodGet, "/v1/games?student_id="+stud.ID, token)
	app.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &games); err != nil {
		t.Fatalf("json.Unmarshal(): %v", err)
	}
	if len(games) != 1 || games[0].AccumulatedClick != 43 {
		t.Errorf("failed! games = %+v; want one game with 43 clicks", games)
	}
}
