// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/model"
	"github.com/chimailo/skippa/internal/session"
)

type stubFlash struct {
	notice *apperr.Notice
}

func (s *stubFlash) PopFlash(context.Context) (apperr.Notice, bool) {
	if s.notice == nil {
		return apperr.Notice{}, false
	}
	n := *s.notice
	s.notice = nil
	return n, true
}

func testTemplates() fstest.MapFS {
	return fstest.MapFS{
		"layouts/base.html": {Data: []byte(`{{define "base"}}<title>{{.Title}}</title>
{{with .Notice}}<div class="notice {{.Type}}" data-timeout="{{ms .Timeout}}"><b>{{.Title}}</b> {{.Message}}</div>{{end}}


{{template "layout" .}}{{end}}`)},
		"layouts/public.html": {Data: []byte(`{{define "layout"}}<main>{{template "content" .}}</main>{{end}}`)},
		"layouts/auth.html":   {Data: []byte(`{{define "layout"}}<section>{{template "content" .}}</section>{{end}}`)},
		"layouts/admin.html":  {Data: []byte(`{{define "layout"}}<nav>{{if .User}}{{.User.Name}}{{end}}</nav>{{template "content" .}}{{end}}`)},
		"partials/field.html": {Data: []byte(`{{define "field-error"}}<span class="error">{{.}}</span>{{end}}`)},
		"public/home.html":    {Data: []byte(`{{define "content"}}Welcome {{.Data}}{{end}}`)},
		"auth/login.html":     {Data: []byte(`{{define "content"}}<input name="email" value="{{value .Form "email"}}">{{with fieldError .Errors "email"}}{{template "field-error" .}}{{end}}{{end}}`)},
		"admin/dashboard.html": {Data: []byte(`{{define "content"}}{{if can .User "reports:view"}}reports{{end}} {{formatNaira 1234.5}}{{end}}`)},
	}
}

func testContent() fstest.MapFS {
	return fstest.MapFS{
		"about.md":   {Data: []byte("# About Skippa\n\nWe move **parcels**.\n\n<script>alert(1)</script>\n")},
		"shipping.md": {Data: []byte("Same-day delivery across Lagos.\n")},
	}
}

func newTestRenderer(t *testing.T, flash FlashSource) *Renderer {
	t.Helper()
	r, err := New(Config{TemplatesFS: testTemplates(), ContentFS: testContent(), Flash: flash})
	require.NoError(t, err)
	return r
}

func TestNew_ParsesTemplateSets(t *testing.T) {
	r := newTestRenderer(t, nil)
	for _, name := range []string{"public/home", "auth/login", "admin/dashboard"} {
		assert.Contains(t, r.templates, name)
	}
	assert.NotContains(t, r.templates, "merchant/dashboard", "missing directories are skipped")
}

func TestNew_ParseError(t *testing.T) {
	fsys := testTemplates()
	fsys["public/broken.html"] = &fstest.MapFile{Data: []byte(`{{define "content"}}{{.Title}`)}
	_, err := New(Config{TemplatesFS: fsys})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public/broken")
}

func TestRender(t *testing.T) {
	r := newTestRenderer(t, nil)
	r.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	err := r.Render(rec, req, http.StatusOK, "public/home", TemplateData{Title: "Home", Data: "aboard"})
	require.NoError(t, err)

	body := rec.Body.String()
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "<title>Home</title>")
	assert.Contains(t, body, "<main>Welcome aboard</main>")
	assert.NotContains(t, body, "\n\n", "blank lines are collapsed")
}

func TestRender_UnknownTemplate(t *testing.T) {
	r := newTestRenderer(t, nil)
	err := r.Render(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "public/nope", TemplateData{})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRender_FlashNotice(t *testing.T) {
	flash := &stubFlash{notice: &apperr.Notice{
		Title:   "Session Expired",
		Message: "Please <b>log in</b> again.",
		Type:    "error",
		Timeout: apperr.DismissAfter,
	}}
	r := newTestRenderer(t, flash)

	rec := httptest.NewRecorder()
	require.NoError(t, r.Render(rec, httptest.NewRequest(http.MethodGet, "/login", nil), http.StatusOK, "auth/login", TemplateData{}))

	body := rec.Body.String()
	assert.Contains(t, body, `class="notice error"`)
	assert.Contains(t, body, `data-timeout="5000"`)
	assert.Contains(t, body, "Please log in again.")
	assert.NotContains(t, body, "<b>log in</b>")

	rec = httptest.NewRecorder()
	require.NoError(t, r.Render(rec, httptest.NewRequest(http.MethodGet, "/login", nil), http.StatusOK, "auth/login", TemplateData{}))
	assert.NotContains(t, rec.Body.String(), "Session Expired", "flash is shown once")
}

func TestRender_FieldErrors(t *testing.T) {
	r := newTestRenderer(t, nil)

	rec := httptest.NewRecorder()
	err := r.Render(rec, httptest.NewRequest(http.MethodPost, "/login", nil), http.StatusUnprocessableEntity, "auth/login", TemplateData{
		Form:   map[string]string{"email": "ada@"},
		Errors: map[string]string{"email": "Enter a valid email address"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="ada@"`)
	assert.Contains(t, rec.Body.String(), `<span class="error">Enter a valid email address</span>`)
}

func TestRender_UserFromContext(t *testing.T) {
	r := newTestRenderer(t, nil)
	u := &model.User{Name: "Ada Obi", Type: model.UserTypeAdmin, Permissions: []string{"reports:view"}}
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(session.WithSession(req.Context(), session.Session{IsLoggedIn: true, Token: "t", User: u}))

	rec := httptest.NewRecorder()
	require.NoError(t, r.Render(rec, req, http.StatusOK, "admin/dashboard", TemplateData{}))

	body := rec.Body.String()
	assert.Contains(t, body, "<nav>Ada Obi</nav>")
	assert.Contains(t, body, "reports")
	assert.Contains(t, body, "₦1,234.50")
}

func TestRenderPage_FailureIs500(t *testing.T) {
	r := newTestRenderer(t, nil)
	rec := httptest.NewRecorder()
	r.RenderPage(rec, httptest.NewRequest(http.MethodGet, "/", nil), "public/missing", TemplateData{})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPage(t *testing.T) {
	r := newTestRenderer(t, nil)

	about, err := r.Page("about")
	require.NoError(t, err)
	assert.Equal(t, "About Skippa", about.Title)
	assert.Contains(t, string(about.HTML), "<strong>parcels</strong>")
	assert.NotContains(t, string(about.HTML), "<script>")
	assert.NotContains(t, string(about.HTML), "<h1")

	shipping, err := r.Page("shipping")
	require.NoError(t, err)
	assert.Equal(t, "Shipping", shipping.Title)

	for _, slug := range []string{"missing", "../etc/passwd", "About", ""} {
		_, err := r.Page(slug)
		assert.True(t, errors.Is(err, ErrNotFound), slug)
	}
}

func TestBlankLinesRegex(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"line1\nline2", "line1\nline2"},
		{"line1\n\nline2", "line1\nline2"},
		{"line1\n  \n\t\nline2", "line1\nline2"},
		{"line1\r\n\r\n\r\nline2", "line1\nline2"},
		{"", ""},
	}
	for _, tt := range tests {
		got := string(blankLinesRegex.ReplaceAll([]byte(tt.input), []byte("\n")))
		if got != tt.expected {
			t.Errorf("ReplaceAll(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSanitize(t *testing.T) {
	r := newTestRenderer(t, nil)
	assert.Equal(t, "Invalid code", r.Sanitize(` <img src=x onerror=alert(1)>Invalid code `))
	assert.False(t, strings.Contains(r.Sanitize("<script>x</script>"), "script"))
}
