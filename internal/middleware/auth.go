// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, and request context handling.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/logging"
	"github.com/chimailo/skippa/internal/model"
	"github.com/chimailo/skippa/internal/session"
)

// LoadSession reads the stored session and attaches it to the request
// context. It never writes to the session.
func LoadSession(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := store.Get(r.Context())
			ctx := session.WithSession(r.Context(), sess)
			if sess.User != nil {
				ctx = logging.With(ctx, slog.String("user_id", sess.User.ID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth sends visitors without a usable session to the login page,
// keeping the requested page as the callback. An expired session is
// destroyed and a notice is flashed. A session still missing its user
// profile is refreshed before the handler runs.
func RequireAuth(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			switch store.State(ctx) {
			case session.Unauthenticated:
				http.Redirect(w, r, session.LoginURL(r), http.StatusSeeOther)
				return

			case session.Expired:
				Expire(w, r, store)
				return

			case session.Loading:
				sess, err := store.Refresh(ctx)
				if err != nil {
					if errors.Is(err, apperr.ErrSessionExpired) {
						store.Flash(ctx, session.ExpiredNotice())
						http.Redirect(w, r, session.LoginURL(r), http.StatusSeeOther)
						return
					}
					slog.WarnContext(ctx, "profile refresh failed", "error", err)
				}
				r = r.WithContext(session.WithSession(ctx, sess))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Expire ends the session and redirects to login with a notice. Handlers
// call it when the backend rejects the bearer token.
func Expire(w http.ResponseWriter, r *http.Request, store *session.Store) {
	ctx := r.Context()
	if err := store.SignOut(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to destroy expired session", "error", err)
	}
	store.Flash(ctx, session.ExpiredNotice())
	http.Redirect(w, r, session.LoginURL(r), http.StatusSeeOther)
}

// RedirectIfAuthenticated keeps signed-in users off the guest pages
// (login, register) by sending them to their home page.
func RedirectIfAuthenticated(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store.State(r.Context()) == session.Authenticated {
				http.Redirect(w, r, session.HomePath(store.Get(r.Context()).User), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin allows only administrator accounts. Must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return requireUser(func(u *model.User) bool { return u.IsAdmin() }, "admin")(next)
}

// RequireMerchant allows only business and individual accounts.
func RequireMerchant(next http.Handler) http.Handler {
	return requireUser(func(u *model.User) bool { return u.IsMerchant() }, "merchant")(next)
}

// RequirePermission allows administrators holding perm, e.g. "reports:view".
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return requireUser(func(u *model.User) bool { return u.IsAdmin() && u.Can(perm) }, perm)
}

// RequireOnboarded sends merchants who have not submitted verification
// details to the onboarding wizard.
func RequireOnboarded(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := session.UserFromContext(r.Context()); u != nil && u.NeedsOnboarding() {
			http.Redirect(w, r, "/onboarding", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireUser(allow func(*model.User) bool, requirement string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := session.UserFromContext(r.Context())
			if user == nil {
				http.Redirect(w, r, session.LoginURL(r), http.StatusSeeOther)
				return
			}
			if !allow(user) {
				slog.WarnContext(r.Context(), "access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"user_id", user.ID,
					"user_type", user.Type,
					"required", requirement,
					"remote_addr", getClientIP(r),
				)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
