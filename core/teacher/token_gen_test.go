package teacher

import (
	"testing"
	"time"

	"github.com/shulebox/backend/core"
)

func TestMakeVerifyToken(t *testing.T) {
	core.Conf.SecretKey = "secret"
	core.Conf.PasswordResetTimeoutDelta = 3 * 24 * time.Hour

	now := time.Now()
	tch := Teacher{
		ID:        "T001",
		Name:      "Mr. Omondi",
		Email:     "omondi@test.cd",
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = tch.SetPassword("pwd")

	validToken, err := MakeToken(tch)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}

	// generate an expired token
	dayLate := core.Conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := MakeToken(tch)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}
	NowFunc = time.Now // reset

	// using the token invalidates it: the password hash feeds the signature
	usedUp := tch
	_ = usedUp.SetPassword("newPwd")

	tests := []struct {
		name    string
		tch     Teacher
		token   string
		wantErr error
	}{
		{name: "no token", tch: tch, wantErr: errInvalidToken},
		{name: "invalid parts len", tch: tch, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", tch: tch, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", tch: tch, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", tch: tch, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", tch: tch, token: expiredToken, wantErr: errTokenExpired},
		{name: "password change invalidates", tch: usedUp, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", tch: tch, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(tt.tch, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeUID(t *testing.T) {
	tch := Teacher{ID: "T001"}
	uid := EncodeUID(tch)
	if uid == "" || uid == tch.ID {
		t.Errorf("EncodeUID() = %q; want an encoded id", uid)
	}
	id, err := decodeUID(uid)
	if err != nil {
		t.Fatalf("decodeUID(): %v", err)
	}
	if id != tch.ID {
		t.Errorf("decodeUID() = %q; want %q", id, tch.ID)
	}
}
