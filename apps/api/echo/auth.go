package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/student"
	"github.com/shulebox/backend/core/teacher"
)

// appJWTConfig is the default JWT auth middleware config.
var appJWTConfig = middleware.JWTConfig{
	SigningKey:    []byte(core.Conf.SecretKey),
	SigningMethod: middleware.AlgorithmHS256,
	ContextKey:    "accountToken",
	Claims:        new(Claims),
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	IsStudent    bool   `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsTeacher    bool   `json:"is_teacher,omitempty"` // -> TEACHER PORTAL
	IsAdmin      bool   `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
}

func newClaims(sub, name, email, role string, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   sub,
			Audience:  "ShuleBox",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         name,
		Email:        email,
		Role:         role,
		IsStudent:    role == core.RoleStudent,
		IsTeacher:    role == core.RoleTeacher || role == core.RoleAdmin,
		IsAdmin:      role == core.RoleAdmin,
	}
}

func GetStudentClaims(s student.Student, origIat ...int64) *Claims {
	return newClaims(s.ID, s.Name1, "", s.Role(), origIat...)
}

func GetTeacherClaims(t teacher.Teacher, origIat ...int64) *Claims {
	return newClaims(t.ID, t.Name, t.Email, t.Role(), origIat...)
}

// account is the role-resolved result of an id/password check;
// exactly one of Student/Teacher is set.
type account struct {
	claims  *Claims
	student *student.Student
	teacher *teacher.Teacher
}

// authenticate resolves an ID against the student table first, then the
// teacher table, and compares the password hash. Every failure path returns
// the same error so callers cannot tell a bad id from a bad password.
func authenticate(ctx context.Context, id, pwd string, students *student.Service, teachers *teacher.Service) (*account, error) {
	if s, err := students.GetByID(ctx, id); err == nil {
		if err = s.CheckPassword(pwd); err != nil {
			return nil, errAuthenticationFailed
		}
		if s, err = students.SetLastLogin(ctx, s); err != nil {
			return nil, errors.Wrap(err, "setting lastLogin")
		}
		return &account{claims: GetStudentClaims(s), student: &s}, nil
	} else if errors.Cause(err) != student.ErrNotFound {
		return nil, errors.Wrap(err, "finding student by ID")
	}

	t, err := teachers.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == teacher.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding teacher by ID")
	}
	if err = t.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if t, err = teachers.SetLastLogin(ctx, t); err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return &account{claims: GetTeacherClaims(t), teacher: &t}, nil
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func refreshToken(ctx echo.Context, students *student.Service, teachers *teacher.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(core.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	// re-resolve the account; role flags may have changed since issuance
	rctx := ctx.Request().Context()
	var newClaims *Claims
	if claims.IsStudent {
		s, err := students.GetByID(rctx, claims.Subject)
		if err != nil {
			return "", errors.Wrap(err, "finding student by ID")
		}
		newClaims = GetStudentClaims(s, claims.OrigIssuedAt)
	} else {
		t, err := teachers.GetByID(rctx, claims.Subject)
		if err != nil {
			return "", errors.Wrap(err, "finding teacher by ID")
		}
		newClaims = GetTeacherClaims(t, claims.OrigIssuedAt)
	}

	token, err := GenerateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
