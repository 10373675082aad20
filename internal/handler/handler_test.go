// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/chimailo/skippa/internal/apiclient"
	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/cache"
	"github.com/chimailo/skippa/internal/handoff"
	"github.com/chimailo/skippa/internal/middleware"
	"github.com/chimailo/skippa/internal/model"
	"github.com/chimailo/skippa/internal/render"
	"github.com/chimailo/skippa/internal/session"
)

// fakeBackend implements every backend interface the handlers use.
type fakeBackend struct {
	mu sync.Mutex

	users      map[string]model.User // by email
	passwords  map[string]string
	unverified map[string]bool
	profile    *model.User

	verifyErr   error
	resendToken string
	resendErr   error
	verified    []string // "otp/token"

	registered []apiclient.RegisterRequest
	submitted  map[string]any
	submitErr  error

	partners *model.Page[model.Partner]
	listErr  error
	params   []model.ListParams

	roles       []model.Role
	roleCalls   int
	createdRole *apiclient.RoleInput
	deletedRole string

	profileUpdate *apiclient.ProfileUpdate
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:      map[string]model.User{},
		passwords:  map[string]string{},
		unverified: map[string]bool{},
	}
}

func (b *fakeBackend) addUser(u model.User, password string) {
	b.users[u.Email] = u
	b.passwords[u.Email] = password
}

func (b *fakeBackend) Login(_ context.Context, email, password string) (*apiclient.LoginResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[email]
	if !ok || b.passwords[email] != password {
		return nil, &apperr.Error{Kind: apperr.Authentication, Name: "AuthenticationError", Message: "Invalid email or password", Status: http.StatusUnauthorized}
	}
	if b.unverified[email] {
		return nil, &apperr.Error{Kind: apperr.IncompleteSignup, Name: "IncompleteSignupError", Message: "Please verify your account", Status: http.StatusForbidden}
	}
	return &apiclient.LoginResult{Token: "token-" + u.ID, User: u}, nil
}

func (b *fakeBackend) Profile(_ context.Context, _ string) (*model.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.profile == nil {
		return nil, &apperr.Error{Kind: apperr.RequestFailed, Message: "unavailable", Status: http.StatusBadGateway}
	}
	u := *b.profile
	return &u, nil
}

func (b *fakeBackend) Register(_ context.Context, req apiclient.RegisterRequest) (*apiclient.Verification, error) {
	b.registered = append(b.registered, req)
	b.addUser(model.User{ID: "new", Email: req.Email, Name: req.Name, Type: req.Type}, req.Password)
	b.unverified[req.Email] = true
	return &apiclient.Verification{Email: req.Email, Token: "signup-token"}, nil
}

func (b *fakeBackend) ForgotPassword(context.Context, string) error       { return nil }
func (b *fakeBackend) ResetPassword(context.Context, string, string) error { return nil }

func (b *fakeBackend) ResendOTP(_ context.Context, email string) (*apiclient.Verification, error) {
	if b.resendErr != nil {
		return nil, b.resendErr
	}
	return &apiclient.Verification{Email: email, Token: b.resendToken}, nil
}

func (b *fakeBackend) VerifyOTP(_ context.Context, otp, token string) error {
	if b.verifyErr != nil {
		return b.verifyErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verified = append(b.verified, otp+"/"+token)
	for email := range b.unverified {
		delete(b.unverified, email)
	}
	return nil
}

func (b *fakeBackend) SubmitBusinessVerification(_ context.Context, _ string, payload map[string]any) error {
	b.submitted = payload
	return b.submitErr
}

func (b *fakeBackend) SubmitIndividualVerification(_ context.Context, _ string, payload map[string]any) error {
	b.submitted = payload
	return b.submitErr
}

func (b *fakeBackend) ListPartners(_ context.Context, _ string, p model.ListParams) (*model.Page[model.Partner], error) {
	b.params = append(b.params, p)
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.partners, nil
}

func (b *fakeBackend) ListTeam(context.Context, string, model.ListParams) (*model.Page[model.TeamMember], error) {
	return &model.Page[model.TeamMember]{}, b.listErr
}

func (b *fakeBackend) ListReports(context.Context, string, model.ListParams) (*model.Page[model.Report], error) {
	return &model.Page[model.Report]{}, b.listErr
}

func (b *fakeBackend) ListSettlements(context.Context, string, model.ListParams) (*model.Page[model.Settlement], error) {
	return &model.Page[model.Settlement]{}, b.listErr
}

func (b *fakeBackend) ListCustomers(context.Context, string, model.ListParams) (*model.Page[model.Customer], error) {
	return &model.Page[model.Customer]{}, b.listErr
}

func (b *fakeBackend) ListRoles(context.Context, string) ([]model.Role, error) {
	b.roleCalls++
	return b.roles, nil
}

func (b *fakeBackend) CreateRole(_ context.Context, _ string, in apiclient.RoleInput) (*model.Role, error) {
	b.createdRole = &in
	return &model.Role{ID: "r-new", Name: in.Name, Permissions: in.Permissions, IsCustom: true}, nil
}

func (b *fakeBackend) UpdateRole(_ context.Context, _ string, id string, in apiclient.RoleInput) (*model.Role, error) {
	return &model.Role{ID: id, Name: in.Name, Permissions: in.Permissions, IsCustom: true}, nil
}

func (b *fakeBackend) DeleteRole(_ context.Context, _ string, id string) error {
	b.deletedRole = id
	return nil
}

func (b *fakeBackend) UpdateProfile(_ context.Context, _ string, upd apiclient.ProfileUpdate) (*model.User, error) {
	b.profileUpdate = &upd
	return &model.User{Name: upd.Name, Phone: upd.Phone, Company: upd.Company}, nil
}

func (b *fakeBackend) ChangePassword(context.Context, string, string, string) error { return nil }

var (
	errUnauthorized = &apperr.Error{Kind: apperr.Unauthorized, Name: "UnauthorizedError", Message: "Token expired", Status: http.StatusUnauthorized}
	errUpstream     = &apperr.Error{Kind: apperr.RequestFailed, Name: "ServiceUnavailable", Message: "Backend unavailable", Status: http.StatusServiceUnavailable}
)

// Templates print just enough to assert on.
func testTemplates() fstest.MapFS {
	layout := []byte(`{{define "layout"}}{{template "content" .}}{{end}}`)
	page := func(body string) *fstest.MapFile {
		return &fstest.MapFile{Data: []byte(`{{define "content"}}` + body + `{{end}}`)}
	}
	errorsList := `{{range $k, $v := .Errors}}[{{$k}}: {{$v}}]{{end}}`

	return fstest.MapFS{
		"layouts/base.html":   {Data: []byte(`{{define "base"}}{{with .Notice}}<notice>{{.Title}}: {{.Message}}</notice>{{end}}{{template "layout" .}}{{end}}`)},
		"layouts/public.html": {Data: layout},
		"layouts/auth.html":   {Data: layout},
		"layouts/app.html":    {Data: layout},
		"layouts/admin.html":  {Data: layout},

		"public/home.html":  page(`home`),
		"public/page.html":  page(`<h1>{{.Data.Title}}</h1>{{.Data.HTML}}`),
		"errors/404.html":   page(`not found`),
		"auth/login.html":   page(`login email={{value .Form "email"}} password={{value .Form "password"}} callback={{.Data.Callback}} ` + errorsList),
		"auth/register.html": page(`register ` + errorsList),
		"auth/forgot-password.html": page(`forgot ` + errorsList),
		"auth/reset-password.html":  page(`reset token={{value .Form "token"}} ` + errorsList),
		"auth/verify-account.html":  page(`verify email={{.Data.Email}} left={{.Data.SecondsLeft}} input={{.Data.InputEnabled}} submit={{.Data.CanSubmit}} resend={{.Data.CanResend}} error={{.Data.Error}}`),

		"merchant/dashboard.html":          page(`merchant dashboard pending={{.Data.Pending}}`),
		"merchant/profile.html":            page(`merchant profile name={{value .Form "name"}} ` + errorsList),
		"merchant/onboarding-welcome.html": page(`welcome {{.Data.StartURL}}`),
		"merchant/onboarding-step.html":    page(`step={{.Data.Step}}/{{.Data.Steps}} slug={{.Data.Page.Slug}} company={{value .Form "company_name"}} ` + errorsList),

		"admin/dashboard.html":   page(`admin dashboard partners={{.Data.PartnerCount}}`),
		"admin/partners.html":    page(`{{range .Data.Items}}<row>{{.Name}}</row>{{end}} pages={{.Data.Pagination.TotalPages}} next={{.Data.Pagination.NextURL}}`),
		"admin/team.html":        page(`team`),
		"admin/reports.html":     page(`reports`),
		"admin/settlements.html": page(`settlements`),
		"admin/customers.html":   page(`customers`),
		"admin/roles.html":       page(`{{range .Data.Roles}}<role>{{.Name}}</role>{{end}}`),
		"admin/role-form.html":   page(`role-form ` + errorsList),
		"admin/profile.html":     page(`admin profile ` + errorsList),
	}
}

func testContent() fstest.MapFS {
	return fstest.MapFS{
		"about.md": {Data: []byte("# About Skippa\n\nWe move **parcels** across Lagos.\n")},
	}
}

type testEnv struct {
	t        *testing.T
	backend  *fakeBackend
	store    *session.Store
	renderer *render.Renderer
	handoff  *handoff.Channel
	cache    cache.Cache
	db       *sql.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE sessions (token TEXT PRIMARY KEY, data BLOB NOT NULL, expiry REAL NOT NULL)`)
	require.NoError(t, err)

	b := newFakeBackend()
	store := session.NewStore(session.New(db, time.Hour, true), b)

	renderer, err := render.New(render.Config{
		TemplatesFS: testTemplates(),
		ContentFS:   testContent(),
		Flash:       store,
		IsDev:       true,
	})
	require.NoError(t, err)

	c := cache.NewMemoryCache(cache.MemoryCacheOptions{})
	t.Cleanup(func() { _ = c.Close() })

	return &testEnv{
		t:        t,
		backend:  b,
		store:    store,
		renderer: renderer,
		handoff:  handoff.New(handoff.Options{Cache: c, Secret: []byte("test-handoff-secret-0123456789abcdef")}),
		cache:    c,
		db:       db,
	}
}

// wrap adds the session middleware every route runs behind.
func (e *testEnv) wrap(h http.Handler) http.Handler {
	return e.store.Manager().LoadAndSave(middleware.LoadSession(e.store)(h))
}

// browser replays cookies across requests.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, h http.Handler) *browser {
	return &browser{t: t, handler: h, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) has(name string) bool {
	_, ok := b.cookies[name]
	return ok
}
