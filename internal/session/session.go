// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session is the single server-side session store. Sessions live in
// SQLite through scs; handlers receive a *Store and middleware places the
// resolved Session in the request context.
package session

import (
	"context"
	"database/sql"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/model"
)

// CookieName is the session cookie.
const CookieName = "skippa_session"

// Session keys.
const (
	keyToken = "auth.token"
	keyUser  = "auth.user"
	keyFlash = "flash"
)

func init() {
	gob.Register(model.User{})
	gob.Register(apperr.Notice{})
}

// New creates a session manager backed by the sessions table in db.
func New(db *sql.DB, lifetime time.Duration, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.New(db)

	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	sm.Lifetime = lifetime
	sm.Cookie.Name = CookieName
	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev

	return sm
}

// Session is the signed-in state of one browser.
// Token is non-empty exactly when IsLoggedIn is true. A logged-in session
// with a nil User is still loading and must not be treated as authenticated.
type Session struct {
	IsLoggedIn bool
	User       *model.User
	Token      string
}

// Status classifies a Session.
type Status int

const (
	Unauthenticated Status = iota
	Loading
	Authenticated
	Expired
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "unauthenticated"
	}
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the Session placed by the LoadSession middleware.
func FromContext(ctx context.Context) Session {
	s, _ := ctx.Value(ctxKey{}).(Session)
	return s
}

// UserFromContext returns the signed-in user or nil.
func UserFromContext(ctx context.Context) *model.User {
	return FromContext(ctx).User
}
