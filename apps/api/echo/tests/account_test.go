package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	echoapi "github.com/shulebox/backend/apps/api/echo"
	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/teacher"
	emailsvc "github.com/shulebox/backend/services/email"
	testutil "github.com/shulebox/backend/tests"
)

func Test_authApi_login(t *testing.T) {
	db.Reset()

	tch := testutil.CreateTeacher(t, teacherRepo, "T001", "Mr. Omondi", "omondi@test.cd", "s3cretPwd", []string{"4A"}, false)
	admin := testutil.CreateTeacher(t, teacherRepo, "T002", "Head", "head@test.cd", "s3cretPwd", nil, true)
	stud := testutil.CreateStudent(t, studentRepo, "S001", "Amina", "4A", tch.ID, "s3cretPwd")

	failedData := marchallObj(t, httpErr{Error: "authentication failed"})

	type extraTest struct {
		role string
		id   string
	}
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"id": "this field is required", "password": "this field is required"}),
		},
		{
			name: "malformed id", body: marchallObj(t, echoapi.LoginRequest{ID: "rob';--", Password: "s3cretPwd"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"id": "only alphanumeric characters and underscores are allowed"}),
		},
		{
			name: "unknown id", body: marchallObj(t, echoapi.LoginRequest{ID: "NOPE", Password: "s3cretPwd"}),
			wantCode: http.StatusUnauthorized, wantData: failedData,
		},
		{
			name: "student with wrong password", body: marchallObj(t, echoapi.LoginRequest{ID: stud.ID, Password: "wrong"}),
			wantCode: http.StatusUnauthorized, wantData: failedData,
		},
		{
			name: "teacher with wrong password", body: marchallObj(t, echoapi.LoginRequest{ID: tch.ID, Password: "wrong"}),
			wantCode: http.StatusUnauthorized, wantData: failedData,
		},
		{
			name: "student login", body: marchallObj(t, echoapi.LoginRequest{ID: stud.ID, Password: "s3cretPwd"}),
			wantCode: http.StatusOK, extra: extraTest{role: core.RoleStudent, id: stud.ID},
		},
		{
			name: "teacher login", body: marchallObj(t, echoapi.LoginRequest{ID: tch.ID, Password: "s3cretPwd"}),
			wantCode: http.StatusOK, extra: extraTest{role: core.RoleTeacher, id: tch.ID},
		},
		{
			name: "admin login", body: marchallObj(t, echoapi.LoginRequest{ID: admin.ID, Password: "s3cretPwd"}),
			wantCode: http.StatusOK, extra: extraTest{role: core.RoleAdmin, id: admin.ID},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			extra, ok := tt.extra.(extraTest)
			if !ok {
				checkCodeAndData(t, tt, rec)
				return
			}

			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
			}
			var respData echoapi.LoginResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
				t.Fatalf("json.Unmarshal(): %v", err)
			}
			if respData.Token == "" {
				t.Error("failed! empty token")
			}
			if respData.Role != extra.role {
				t.Errorf("failed! role = %s; want %s", respData.Role, extra.role)
			}
			switch extra.role {
			case core.RoleStudent:
				if respData.Student == nil || respData.Student.ID != extra.id {
					t.Errorf("failed! student payload = %+v; want ID %s", respData.Student, extra.id)
				}
			default:
				if respData.Teacher == nil || respData.Teacher.ID != extra.id {
					t.Errorf("failed! teacher payload = %+v; want ID %s", respData.Teacher, extra.id)
				}
			}
			if body := rec.Body.String(); strings.Contains(strings.ToLower(body), "password") {
				t.Errorf("failed! response leaks password material: %s", body)
			}
		})
	}

	// lastLogin is recorded
	refreshed, err := studentRepo.GetStudent(context.Background(), stud.ID)
	if err != nil {
		t.Fatalf("GetStudent(): %v", err)
	}
	if refreshed.LastLogin.IsZero() {
		t.Error("failed! student lastLogin not set")
	}
}

func Test_authApi_refreshToken(t *testing.T) {
	db.Reset()

	stud := testutil.CreateStudent(t, studentRepo, "S001", "Amina", "4A", "", "")

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   stud.ID,
			Audience:  "ShuleBox",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * core.Conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Role:         core.RoleStudent,
		IsStudent:    true,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getStudentToken(t, stud), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.TokenResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal(): %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authApi_resetPassword(t *testing.T) {
	db.Reset()

	tch := testutil.CreateTeacher(t, teacherRepo, "T001", "Mr. Omondi", "omondi@test.cd", "s3cretPwd", nil, false)
	successData := marchallObj(t, echoapi.SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	type extraTest struct {
		emailSent bool
		to        mail.Address
	}
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required"}),
		},
		{
			name: "invalid email", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.cd"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "known email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: tch.Email}),
			wantData: successData, extra: extraTest{emailSent: true, to: mail.Address{Name: tch.Name, Address: tch.Email}},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/password-reset"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.SentMessages = nil // reset

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if extra, ok := tt.extra.(extraTest); ok {
				if extra.emailSent {
					if len(emailsvc.SentMessages) != 1 {
						t.Fatalf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
					}
					msg := emailsvc.SentMessages[0]
					if msg.To[0] != extra.to {
						t.Errorf("failed! To = %v; want %v", msg.To[0], extra.to)
					}
					if !strings.Contains(msg.TextContent, extra.to.Name) {
						t.Errorf("failed! text content does not contain recipient's name %q", extra.to.Name)
					}
					if !strings.Contains(msg.TextContent, "/password-reset/confirm") {
						t.Error("failed! text content does not contain a reset link")
					}
				} else if len(emailsvc.SentMessages) > 0 {
					t.Errorf("failed! len(SentMessages) = %d; want 0", len(emailsvc.SentMessages))
				}
			}
		})
	}
}

func Test_authApi_confirmPasswordReset(t *testing.T) {
	db.Reset()

	tch := testutil.CreateTeacher(t, teacherRepo, "T001", "Mr. Omondi", "omondi@test.cd", "0ldPassword", nil, false)
	validUID := teacher.EncodeUID(tch)
	validToken, err := teacher.MakeToken(tch)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}

	tests := []httpTest{
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body: marchallObj(t, teacher.ResetTeacherPassword{
				UID: "???", Token: validToken, NewPassword: "n3wPassword!", ReNewPassword: "n3wPassword!",
			}),
			wantData: marchallObj(t, httpErr{Error: "invalid token"}),
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body: marchallObj(t, teacher.ResetTeacherPassword{
				UID: validUID, Token: "nope-nope", NewPassword: "n3wPassword!", ReNewPassword: "n3wPassword!",
			}),
			wantData: marchallObj(t, httpErr{Error: "invalid token"}),
		},
		{
			name: "password reset", wantCode: http.StatusOK,
			body: marchallObj(t, teacher.ResetTeacherPassword{
				UID: validUID, Token: validToken, NewPassword: "n3wPassword!", ReNewPassword: "n3wPassword!",
			}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/password-reset-confirm"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// new password works; the old one no longer does
	refreshed, err := teacherRepo.GetTeacher(context.Background(), tch.ID)
	if err != nil {
		t.Fatalf("GetTeacher(): %v", err)
	}
	if err = refreshed.CheckPassword("n3wPassword!"); err != nil {
		t.Error("failed! new password rejected")
	}
	if err = refreshed.CheckPassword("0ldPassword"); err == nil {
		t.Error("failed! old password still accepted")
	}
}
