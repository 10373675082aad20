// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chimailo/skippa/internal/apiclient"
	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/model"
	"github.com/chimailo/skippa/internal/session"
)

type stubBackend struct {
	login   apiclient.LoginResult
	profile *model.User
	profErr error
}

func (b *stubBackend) Login(context.Context, string, string) (*apiclient.LoginResult, error) {
	res := b.login
	return &res, nil
}

func (b *stubBackend) Profile(context.Context, string) (*model.User, error) {
	return b.profile, b.profErr
}

func newTestSessionStore(t *testing.T, b session.Backend) *session.Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE sessions (token TEXT PRIMARY KEY, data BLOB NOT NULL, expiry REAL NOT NULL)`)
	require.NoError(t, err)

	return session.NewStore(session.New(db, time.Hour, true), b)
}

// signIn performs a login through the session manager and returns the
// session cookie for follow-up requests.
func signIn(t *testing.T, store *session.Store) *http.Cookie {
	t.Helper()
	h := store.Manager().LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := store.SignIn(r.Context(), session.Credentials{Email: "ada@example.com", Password: "Secret123!"})
		require.NoError(t, err)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func protected(store *session.Store, inner http.HandlerFunc) http.Handler {
	return store.Manager().LoadAndSave(LoadSession(store)(RequireAuth(store)(inner)))
}

func jwtExpiringAt(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("backend"))
	require.NoError(t, err)
	return tok
}

func TestRequireAuth_Unauthenticated(t *testing.T) {
	store := newTestSessionStore(t, &stubBackend{})
	called := false
	h := protected(store, func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/partners?page=2", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?callbackUrl=%2Fadmin%2Fpartners%3Fpage%3D2", rec.Header().Get("Location"))
}

func TestRequireAuth_Authenticated(t *testing.T) {
	store := newTestSessionStore(t, &stubBackend{login: apiclient.LoginResult{
		Token: "tok",
		User:  model.User{ID: "u1", Type: model.UserTypeBusiness},
	}})
	cookie := signIn(t, store)

	var got *model.User
	h := protected(store, func(w http.ResponseWriter, r *http.Request) {
		got = session.UserFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	store := newTestSessionStore(t, &stubBackend{login: apiclient.LoginResult{
		Token: jwtExpiringAt(t, time.Now().Add(-time.Minute)),
		User:  model.User{ID: "u1"},
	}})
	cookie := signIn(t, store)

	called := false
	h := protected(store, func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?callbackUrl=%2Fdashboard", rec.Header().Get("Location"))
}

func TestRequireAuth_LoadingRefreshesProfile(t *testing.T) {
	b := &stubBackend{
		login:   apiclient.LoginResult{Token: "tok"},
		profile: &model.User{ID: "u1", Name: "Ada Obi", Type: model.UserTypeIndividual},
	}
	store := newTestSessionStore(t, b)
	cookie := signIn(t, store)

	var got *model.User
	h := protected(store, func(w http.ResponseWriter, r *http.Request) {
		got = session.UserFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "Ada Obi", got.Name)
}

func TestRequireAuth_LoadingWithRejectedToken(t *testing.T) {
	b := &stubBackend{
		login:   apiclient.LoginResult{Token: "tok"},
		profErr: &apperr.Error{Kind: apperr.Unauthorized, Status: http.StatusUnauthorized},
	}
	store := newTestSessionStore(t, b)
	cookie := signIn(t, store)

	called := false
	h := protected(store, func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/login?callbackUrl=")
}

func TestRedirectIfAuthenticated(t *testing.T) {
	store := newTestSessionStore(t, &stubBackend{login: apiclient.LoginResult{
		Token: "tok",
		User:  model.User{ID: "a1", Type: model.UserTypeAdmin},
	}})
	cookie := signIn(t, store)

	h := store.Manager().LoadAndSave(RedirectIfAuthenticated(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "guests see the login page")

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
}

func withUser(r *http.Request, u *model.User) *http.Request {
	return r.WithContext(session.WithSession(r.Context(), session.Session{IsLoggedIn: true, Token: "t", User: u}))
}

func TestRequireUserGuards(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	admin := &model.User{ID: "a1", Type: model.UserTypeAdmin, Role: "support", Permissions: []string{"reports:view"}}
	merchant := &model.User{ID: "m1", Type: model.UserTypeBusiness, Verified: true}

	tests := []struct {
		name    string
		handler http.Handler
		user    *model.User
		want    int
	}{
		{"admin allowed", RequireAdmin(ok), admin, http.StatusOK},
		{"merchant denied admin", RequireAdmin(ok), merchant, http.StatusForbidden},
		{"no user redirected", RequireAdmin(ok), nil, http.StatusSeeOther},
		{"merchant allowed", RequireMerchant(ok), merchant, http.StatusOK},
		{"admin denied merchant", RequireMerchant(ok), admin, http.StatusForbidden},
		{"permission held", RequirePermission("reports:view")(ok), admin, http.StatusOK},
		{"permission missing", RequirePermission("roles:edit")(ok), admin, http.StatusForbidden},
		{"superadmin holds all", RequirePermission("roles:edit")(ok), &model.User{Type: model.UserTypeAdmin, Role: model.RoleSuperAdmin}, http.StatusOK},
		{"merchant lacks permission", RequirePermission("reports:view")(ok), merchant, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/reports", nil)
			if tt.user != nil {
				req = withUser(req, tt.user)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireOnboarded(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireOnboarded(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/dashboard", nil), &model.User{Type: model.UserTypeBusiness}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/onboarding", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/dashboard", nil), &model.User{Type: model.UserTypeBusiness, VerificationCount: 1}))
	assert.Equal(t, http.StatusOK, rec.Code)
}
