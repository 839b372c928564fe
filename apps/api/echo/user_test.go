package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/user"
)

func Test_authApi_signup(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{
			name:     "missing fields",
			body:     `{"email": "jane@test.cd"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "password mismatch",
			body:     `{"name": "Jane", "email": "jane@test.cd", "role": "teacher", "password": "s3cr3t", "password_confirm": "nope"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad role",
			body:     `{"name": "Jane", "email": "jane@test.cd", "role": "admin", "password": "s3cr3t", "password_confirm": "s3cr3t"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "ok",
			body:     `{"name": "Jane", "email": "jane@test.cd", "role": "teacher", "password": "s3cr3t", "password_confirm": "s3cr3t"}`,
			wantCode: http.StatusCreated,
		},
		{
			name:     "duplicate email",
			body:     `{"name": "Jane", "email": "jane@test.cd", "role": "teacher", "password": "s3cr3t", "password_confirm": "s3cr3t"}`,
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(http.MethodPost, "/auth/signup", []byte(tt.body), nil)
			checkCode(t, rec, tt.wantCode)

			env := decodeEnvelope(t, rec)
			if wantOK := tt.wantCode < 400; env.Success != wantOK {
				t.Errorf("success = %v; want %v", env.Success, wantOK)
			}
			if tt.wantCode == http.StatusCreated {
				// a session is opened right away
				if responseCookie(rec, authCookieName) == nil || responseCookie(rec, refreshCookieName) == nil {
					t.Error("signup should set both session cookies")
				}
				var usr user.User
				decodeData(t, rec, &usr)
				if usr.Email != "jane@test.cd" {
					t.Errorf("usr.Email = %s; want jane@test.cd", usr.Email)
				}
			}
		})
	}
}

func Test_authApi_login(t *testing.T) {
	srv := newTestServer(t)
	srv.createUser(t, "Jane", "jane@test.cd", user.RoleTeacher, "s3cr3t")

	rec := srv.do(http.MethodPost, "/auth/login", []byte(`{"email": "jane@test.cd", "password": "wrong"}`), nil)
	checkCode(t, rec, http.StatusBadRequest)

	rec = srv.do(http.MethodPost, "/auth/login", []byte(`{"email": "nobody@test.cd", "password": "s3cr3t"}`), nil)
	checkCode(t, rec, http.StatusBadRequest)

	rec = srv.do(http.MethodPost, "/auth/login", []byte(`{"email": "JANE@test.cd", "password": "s3cr3t"}`), nil)
	checkCode(t, rec, http.StatusOK)

	auth := responseCookie(rec, authCookieName)
	refresh := responseCookie(rec, refreshCookieName)
	if auth == nil || refresh == nil {
		t.Fatal("login should set both session cookies")
	}
	for _, c := range []*http.Cookie{auth, refresh} {
		if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteNoneMode {
			t.Errorf("cookie %s should be httpOnly, secure and SameSite=None", c.Name)
		}
	}
}

func Test_authApi_me(t *testing.T) {
	srv := newTestServer(t)
	usr := srv.createUser(t, "Jane", "jane@test.cd", user.RoleTeacher, "s3cr3t")

	// no cookies
	rec := srv.do(http.MethodGet, "/auth/me", nil, nil)
	checkCode(t, rec, http.StatusUnauthorized)

	rec = srv.do(http.MethodGet, "/auth/me", nil, srv.sessionCookies(t, usr))
	checkCode(t, rec, http.StatusOK)

	var me user.User
	decodeData(t, rec, &me)
	if me.ID != usr.ID || me.Email != usr.Email {
		t.Errorf("me = %+v; want %+v", me, usr)
	}
}

func Test_session_silentRotation(t *testing.T) {
	srv := newTestServer(t)
	usr := srv.createUser(t, "Jane", "jane@test.cd", user.RoleTeacher, "s3cr3t")

	expiredAccess, err := srv.session.generateToken(usr, srv.conf.SecretKey, -time.Minute)
	if err != nil {
		t.Fatalf("generateToken() failed, %v", err)
	}
	_, refresh, err := srv.session.tokenPair(usr)
	if err != nil {
		t.Fatalf("tokenPair() failed, %v", err)
	}

	// expired access + valid refresh: the request proceeds and a fresh pair is set
	cookies := []*http.Cookie{
		{Name: authCookieName, Value: expiredAccess},
		{Name: refreshCookieName, Value: refresh},
	}
	rec := srv.do(http.MethodGet, "/auth/me", nil, cookies)
	checkCode(t, rec, http.StatusOK)

	newAuth := responseCookie(rec, authCookieName)
	newRefresh := responseCookie(rec, refreshCookieName)
	if newAuth == nil || newRefresh == nil {
		t.Fatal("rotation should set both cookies")
	}
	if newAuth.Value == expiredAccess {
		t.Error("rotation should mint a new access token")
	}

	// expired access + expired refresh: 401
	expiredRefresh, err := srv.session.generateToken(usr, srv.conf.RefreshSecretKey, -time.Minute)
	if err != nil {
		t.Fatalf("generateToken() failed, %v", err)
	}
	cookies[1].Value = expiredRefresh
	rec = srv.do(http.MethodGet, "/auth/me", nil, cookies)
	checkCode(t, rec, http.StatusUnauthorized)

	// a single cookie is never enough
	rec = srv.do(http.MethodGet, "/auth/me", nil, cookies[1:])
	checkCode(t, rec, http.StatusUnauthorized)

	// tokens are not interchangeable across secrets
	cookies = []*http.Cookie{
		{Name: authCookieName, Value: refresh},
		{Name: refreshCookieName, Value: expiredAccess},
	}
	rec = srv.do(http.MethodGet, "/auth/me", nil, cookies)
	checkCode(t, rec, http.StatusUnauthorized)
}

func Test_authApi_logout(t *testing.T) {
	srv := newTestServer(t)
	usr := srv.createUser(t, "Jane", "jane@test.cd", user.RoleTeacher, "s3cr3t")

	rec := srv.do(http.MethodPost, "/auth/logout", nil, srv.sessionCookies(t, usr))
	checkCode(t, rec, http.StatusOK)

	for _, name := range []string{authCookieName, refreshCookieName} {
		c := responseCookie(rec, name)
		if c == nil || c.MaxAge >= 0 || c.Value != "" {
			t.Errorf("logout should expire cookie %s", name)
		}
	}
}
