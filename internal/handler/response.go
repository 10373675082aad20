// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the HTTP handlers for the public site, the auth
// and verification screens, merchant onboarding and the admin console.
package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/middleware"
	"github.com/chimailo/skippa/internal/render"
	"github.com/chimailo/skippa/internal/session"
)

// Notice types.
const (
	noticeError   = "error"
	noticeSuccess = "success"
	noticeInfo    = "info"
	noticeWarning = "warning"
)

func notice(typ, title, message string) apperr.Notice {
	return apperr.Notice{Title: title, Message: message, Type: typ, Timeout: apperr.DismissAfter}
}

// flashAndRedirect sets a flash notice and redirects with 303.
func flashAndRedirect(w http.ResponseWriter, r *http.Request, store *session.Store, target string, n apperr.Notice) {
	store.Flash(r.Context(), n)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// flashSuccess sets a success notice and redirects.
func flashSuccess(w http.ResponseWriter, r *http.Request, store *session.Store, target, title, message string) {
	flashAndRedirect(w, r, store, target, notice(noticeSuccess, title, message))
}

// backendError handles a failed backend call made on the user's behalf.
// A rejected bearer token ends the session; anything else is flashed and
// the user is sent back to target. Validation errors are the caller's to
// render inline and must not reach here.
func backendError(w http.ResponseWriter, r *http.Request, store *session.Store, target string, err error) {
	e := apperr.As(err)
	slog.WarnContext(r.Context(), "backend request failed",
		"name", e.Name,
		"kind", e.Kind.String(),
		"status", e.Status,
		"error", err,
	)

	if e.Kind == apperr.Unauthorized {
		middleware.Expire(w, r, store)
		return
	}

	flashAndRedirect(w, r, store, target, *failureNotice(err))
}

// failureNotice converts a backend error into a notice for a re-rendered form.
func failureNotice(err error) *apperr.Notice {
	n, ok := apperr.Notification(err)
	if !ok {
		n = notice(noticeError, "Request Failed", apperr.GenericMessage)
	}
	return &n
}

// parseFormOrRedirect parses the request form and flashes on failure.
// Returns true if parsing succeeded.
func parseFormOrRedirect(w http.ResponseWriter, r *http.Request, store *session.Store, redirectURL string) bool {
	if err := r.ParseForm(); err != nil {
		flashAndRedirect(w, r, store, redirectURL, notice(noticeError, "Invalid Form", "The form could not be read. Please try again."))
		return false
	}
	return true
}

// formValues returns the trimmed first value of each named field.
// Password fields are taken verbatim.
func formValues(r *http.Request, fields ...string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		v := r.PostFormValue(f)
		if !strings.Contains(f, "password") {
			v = strings.TrimSpace(v)
		}
		out[f] = v
	}
	return out
}

// withoutSecrets drops password fields before values are echoed into a form.
func withoutSecrets(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if !strings.Contains(k, "password") {
			out[k] = v
		}
	}
	return out
}

// withQuery appends query parameters to a path.
func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

// notFound renders the 404 page.
func notFound(w http.ResponseWriter, r *http.Request, renderer *render.Renderer) {
	renderer.RenderStatus(w, r, http.StatusNotFound, "errors/404", render.TemplateData{Title: "Page not found"})
}

// logAndInternalError logs an error and writes a 500 Internal Server Error response.
func logAndInternalError(w http.ResponseWriter, r *http.Request, logMsg string, args ...any) {
	slog.ErrorContext(r.Context(), logMsg, args...)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
