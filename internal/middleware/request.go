// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mileusna/useragent"

	"github.com/chimailo/skippa/internal/logging"
)

// Client describes the browser behind a request.
type Client struct {
	Browser string
	OS      string
	Device  string // mobile, tablet, bot or desktop
}

// ParseClient extracts browser, OS and device type from a User-Agent header.
func ParseClient(header string) Client {
	ua := useragent.Parse(header)

	c := Client{Browser: ua.Name, OS: ua.OS}
	if c.Browser == "" {
		c.Browser = "Unknown"
	}
	if c.OS == "" {
		c.OS = "Unknown"
	}

	switch {
	case ua.Mobile:
		c.Device = "mobile"
	case ua.Tablet:
		c.Device = "tablet"
	case ua.Bot:
		c.Device = "bot"
	default:
		c.Device = "desktop"
	}
	return c
}

// RequestContext adds the request path and client description to every log
// record written while serving the request.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := ParseClient(r.UserAgent())
		ctx := logging.With(r.Context(),
			slog.String("path", r.URL.Path),
			slog.String("client_ip", getClientIP(r)),
			slog.String("browser", c.Browser),
			slog.String("device", c.Device),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StripTrailingSlash redirects /path/ to /path with 301. The root is left alone.
func StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" || !strings.HasSuffix(path, "/") {
			next.ServeHTTP(w, r)
			return
		}
		// Leading slashes are collapsed so "//host/" cannot become a
		// protocol-relative redirect.
		target := "/" + strings.Trim(path, "/")
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}

// StaticCache adds a public Cache-Control header with the given max-age in seconds.
func StaticCache(maxAge int) func(http.Handler) http.Handler {
	value := "public, max-age=" + strconv.Itoa(maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore marks responses as private and uncacheable. Authenticated pages
// carry user data and must not be served back from the browser cache after
// sign-out.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
