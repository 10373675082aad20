// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/model"
)

// CallbackParam carries the page to return to after login.
const CallbackParam = "callbackUrl"

// LoginURL returns /login with the current path and query as the callback.
func LoginURL(r *http.Request) string {
	return "/login?" + url.Values{CallbackParam: {r.URL.RequestURI()}}.Encode()
}

// SafeCallback returns target if it is a local path, otherwise fallback.
func SafeCallback(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}

// HomePath is the landing page for u after sign-in.
func HomePath(u *model.User) string {
	switch {
	case u == nil:
		return "/"
	case u.IsAdmin():
		return "/admin"
	case u.NeedsOnboarding():
		return "/onboarding"
	default:
		return "/dashboard"
	}
}

// ExpiredNotice is flashed when a stored session can no longer be used.
func ExpiredNotice() apperr.Notice {
	return apperr.Notice{
		Title:   "Session Expired",
		Message: "Your session has expired. Please log in again.",
		Type:    "error",
		Timeout: apperr.DismissAfter,
	}
}
