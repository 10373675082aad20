// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package render turns page templates and markdown content into HTML
// responses, attaching the signed-in user and any pending notification.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/model"
	"github.com/chimailo/skippa/internal/session"
	"github.com/chimailo/skippa/internal/uikit"
)

// blankLinesRegex collapses runs of blank lines left by template actions.
var blankLinesRegex = regexp.MustCompile(`(\r?\n[ \t]*)+\r?\n`)

// ErrNotFound is returned for unknown templates and content pages.
var ErrNotFound = errors.New("render: not found")

// FlashSource supplies the pending notification for a request.
type FlashSource interface {
	PopFlash(ctx context.Context) (apperr.Notice, bool)
}

// layoutSet maps a template directory to the layouts it is parsed with.
var layoutSets = []struct {
	dir     string
	layouts []string
}{
	{"public", []string{"layouts/base.html", "layouts/public.html"}},
	{"auth", []string{"layouts/base.html", "layouts/auth.html"}},
	{"merchant", []string{"layouts/base.html", "layouts/app.html"}},
	{"admin", []string{"layouts/base.html", "layouts/admin.html"}},
	{"errors", []string{"layouts/base.html", "layouts/auth.html"}},
}

// Renderer handles template rendering with cached parsed templates.
type Renderer struct {
	templates map[string]*template.Template
	content   fs.FS
	flash     FlashSource
	markdown  goldmark.Markdown
	ugc       *bluemonday.Policy
	strict    *bluemonday.Policy
	isDev     bool
	now       func() time.Time
}

// Config holds renderer configuration.
type Config struct {
	TemplatesFS fs.FS
	// ContentFS holds the markdown pages served by Page.
	ContentFS fs.FS
	Flash     FlashSource
	IsDev     bool
}

// New parses every page template and returns a Renderer.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		content:   cfg.ContentFS,
		flash:     cfg.Flash,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		ugc:    bluemonday.UGCPolicy(),
		strict: bluemonday.StrictPolicy(),
		isDev:  cfg.IsDev,
		now:    time.Now,
	}

	if err := r.parseTemplates(cfg.TemplatesFS); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) parseTemplates(templatesFS fs.FS) error {
	partials, err := templateFiles(templatesFS, "partials")
	if err != nil {
		return fmt.Errorf("getting partials: %w", err)
	}

	for _, set := range layoutSets {
		pages, err := templateFiles(templatesFS, set.dir)
		if err != nil {
			return fmt.Errorf("getting %s templates: %w", set.dir, err)
		}

		for _, page := range pages {
			name := set.dir + "/" + strings.TrimSuffix(path.Base(page), ".html")

			files := append([]string{}, set.layouts...)
			files = append(files, partials...)
			files = append(files, page)

			tmpl, err := template.New("").Funcs(r.TemplateFuncs()).ParseFS(templatesFS, files...)
			if err != nil {
				return fmt.Errorf("parsing template %s: %w", name, err)
			}
			r.templates[name] = tmpl
		}
	}
	return nil
}

// templateFiles returns the .html files in dir; a missing dir yields none.
func templateFiles(templatesFS fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(templatesFS, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".html") {
			files = append(files, path.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// TemplateFuncs returns the uikit helpers plus application functions.
func (r *Renderer) TemplateFuncs() template.FuncMap {
	funcs := uikit.TemplateFuncs()
	funcs["humanize"] = apperr.Humanize
	funcs["can"] = func(u *model.User, perm string) bool { return u.Can(perm) }
	funcs["viewPerm"] = model.ViewPermission
	funcs["fieldError"] = func(errs map[string]string, field string) string { return errs[field] }
	funcs["value"] = func(values map[string]string, field string) string { return values[field] }
	funcs["ms"] = func(d time.Duration) int64 { return d.Milliseconds() }
	return funcs
}

// TemplateData holds data passed to templates.
type TemplateData struct {
	Title       string
	User        *model.User
	Notice      *apperr.Notice
	Errors      map[string]string // field → message
	Form        map[string]string // submitted values echoed back
	Data        any
	Breadcrumbs []uikit.Breadcrumb
	CurrentPath string
	CurrentYear int
	IsDev       bool
}

// Render writes the named template with status. The page is rendered to a
// buffer first so a template error never produces a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, name string, data TemplateData) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %s: %w", name, ErrNotFound)
	}

	ctx := req.Context()
	data.CurrentYear = r.now().Year()
	data.CurrentPath = req.URL.Path
	data.IsDev = r.isDev
	if data.User == nil {
		data.User = session.UserFromContext(ctx)
	}
	if data.Notice == nil && r.flash != nil {
		if n, ok := r.flash.PopFlash(ctx); ok {
			data.Notice = &n
		}
	}
	if data.Notice != nil {
		n := *data.Notice
		n.Message = r.Sanitize(n.Message)
		data.Notice = &n
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("executing template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(blankLinesRegex.ReplaceAll(buf.Bytes(), []byte("\n")))
	return err
}

// RenderPage renders with 200 and answers 500 when rendering fails.
func (r *Renderer) RenderPage(w http.ResponseWriter, req *http.Request, name string, data TemplateData) {
	r.RenderStatus(w, req, http.StatusOK, name, data)
}

// RenderStatus is RenderPage with an explicit status code.
func (r *Renderer) RenderStatus(w http.ResponseWriter, req *http.Request, status int, name string, data TemplateData) {
	if err := r.Render(w, req, status, name, data); err != nil {
		slog.ErrorContext(req.Context(), "render failed", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Sanitize strips all markup from a message that came from the backend.
// The result is plain text; templates escape it again on output.
func (r *Renderer) Sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(r.strict.Sanitize(s)))
}

// Content is a rendered markdown page.
type Content struct {
	Title string
	HTML  template.HTML
}

// Page renders content/<slug>.md. The first level-one heading becomes the
// title and is removed from the body.
func (r *Renderer) Page(slug string) (Content, error) {
	if r.content == nil || !validSlug(slug) {
		return Content{}, ErrNotFound
	}

	src, err := fs.ReadFile(r.content, slug+".md")
	if errors.Is(err, fs.ErrNotExist) {
		return Content{}, ErrNotFound
	}
	if err != nil {
		return Content{}, fmt.Errorf("reading %s: %w", slug, err)
	}

	title, body := splitTitle(src)
	if title == "" {
		title = slugToTitle(slug)
	}

	out, err := r.Markdown(body)
	if err != nil {
		return Content{}, err
	}
	return Content{Title: title, HTML: out}, nil
}

// Markdown converts src to sanitized HTML.
func (r *Renderer) Markdown(src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.markdown.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return template.HTML(r.ugc.SanitizeBytes(buf.Bytes())), nil //nolint:gosec // sanitized above
}

func splitTitle(src []byte) (string, []byte) {
	text := strings.TrimLeft(string(src), "\r\n\t ")
	if !strings.HasPrefix(text, "# ") {
		return "", src
	}
	line, rest, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(strings.TrimPrefix(line, "# ")), []byte(rest)
}

// validSlug accepts only [a-z0-9-], which keeps reads inside the content root.
func validSlug(slug string) bool {
	if slug == "" {
		return false
	}
	for _, c := range slug {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-') {
			return false
		}
	}
	return true
}

func slugToTitle(slug string) string {
	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
