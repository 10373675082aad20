// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/chimailo/skippa/internal/apiclient"
	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/model"
)

// Backend is the part of the API client the store needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (*apiclient.LoginResult, error)
	Profile(ctx context.Context, token string) (*model.User, error)
}

// Credentials are the email and password submitted at sign-in.
type Credentials struct {
	Email    string
	Password string
}

// Patch holds the user fields a profile update may change. Nil fields are kept.
// Identity fields (ID, Email, Type) are never patched.
type Patch struct {
	Name              *string
	Phone             *string
	Image             *string
	Company           *string
	Role              *string
	Status            *string
	Verified          *bool
	VerificationCount *int
	Permissions       []string
}

// ErrNotSignedIn is returned by operations that need a signed-in session.
var ErrNotSignedIn = errors.New("session: not signed in")

// Store reads and writes the Session kept in scs.
type Store struct {
	sm      *scs.SessionManager
	backend Backend
	now     func() time.Time
}

// NewStore creates a Store.
func NewStore(sm *scs.SessionManager, backend Backend) *Store {
	return &Store{sm: sm, backend: backend, now: time.Now}
}

// Manager returns the underlying scs manager for LoadAndSave and ad-hoc values.
func (s *Store) Manager() *scs.SessionManager {
	return s.sm
}

// Get returns the stored session. It never writes.
func (s *Store) Get(ctx context.Context) Session {
	token := s.sm.GetString(ctx, keyToken)
	if token == "" {
		return Session{}
	}
	sess := Session{IsLoggedIn: true, Token: token}
	if u, ok := s.sm.Get(ctx, keyUser).(model.User); ok {
		sess.User = &u
	}
	return sess
}

// State classifies the stored session. A token whose exp claim has passed
// is Expired.
func (s *Store) State(ctx context.Context) Status {
	return s.statusOf(s.Get(ctx))
}

func (s *Store) statusOf(sess Session) Status {
	switch {
	case !sess.IsLoggedIn:
		return Unauthenticated
	case TokenExpired(sess.Token, s.now()):
		return Expired
	case sess.User == nil:
		return Loading
	default:
		return Authenticated
	}
}

// SignIn authenticates against the backend and stores the session under a
// fresh session token. Errors are *apperr.Error of kind Validation,
// Authentication, IncompleteSignup or RequestFailed.
func (s *Store) SignIn(ctx context.Context, creds Credentials) (Session, error) {
	email := strings.TrimSpace(creds.Email)
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "Email is required"
	}
	if creds.Password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		return Session{}, apperr.Invalid(fields)
	}

	res, err := s.backend.Login(ctx, email, creds.Password)
	if err != nil {
		return Session{}, err
	}

	if err := s.sm.RenewToken(ctx); err != nil {
		return Session{}, fmt.Errorf("renewing session token: %w", err)
	}
	s.sm.Put(ctx, keyToken, res.Token)
	if res.User.ID != "" {
		s.sm.Put(ctx, keyUser, res.User)
	} else {
		s.sm.Remove(ctx, keyUser)
	}

	return s.Get(ctx), nil
}

// SignOut destroys the session. Values put afterwards (a flash) land in a
// new session.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.sm.Destroy(ctx); err != nil {
		return fmt.Errorf("destroying session: %w", err)
	}
	return nil
}

// Update applies p to the stored user.
func (s *Store) Update(ctx context.Context, p Patch) (Session, error) {
	sess := s.Get(ctx)
	if !sess.IsLoggedIn || sess.User == nil {
		return sess, ErrNotSignedIn
	}

	u := *sess.User
	p.apply(&u)
	s.sm.Put(ctx, keyUser, u)
	sess.User = &u
	return sess, nil
}

// Refresh refetches the profile. Identity fields already held are kept;
// server-driven fields are replaced. A rejected token signs the user out and
// returns a SessionExpired error.
func (s *Store) Refresh(ctx context.Context) (Session, error) {
	sess := s.Get(ctx)
	if !sess.IsLoggedIn {
		return sess, ErrNotSignedIn
	}

	fresh, err := s.backend.Profile(ctx, sess.Token)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			if serr := s.SignOut(ctx); serr != nil {
				slog.Error("sign out after rejected token", "error", serr)
			}
			return Session{}, apperr.Expired("")
		}
		return sess, err
	}

	u := *fresh
	if sess.User != nil {
		u.ID = sess.User.ID
		u.Email = sess.User.Email
		u.Type = sess.User.Type
	}
	s.sm.Put(ctx, keyUser, u)
	sess.User = &u
	return sess, nil
}

// Flash stores a notification shown on the next rendered page.
func (s *Store) Flash(ctx context.Context, n apperr.Notice) {
	s.sm.Put(ctx, keyFlash, n)
}

// PopFlash returns and removes the pending notification.
func (s *Store) PopFlash(ctx context.Context) (apperr.Notice, bool) {
	n, ok := s.sm.Pop(ctx, keyFlash).(apperr.Notice)
	return n, ok
}

func (p Patch) apply(u *model.User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Image != nil {
		u.Image = *p.Image
	}
	if p.Company != nil {
		u.Company = *p.Company
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
	if p.Verified != nil {
		u.Verified = *p.Verified
	}
	if p.VerificationCount != nil {
		u.VerificationCount = *p.VerificationCount
	}
	if p.Permissions != nil {
		u.Permissions = p.Permissions
	}
}

// TokenExpired reports whether the backend token's exp claim is at or before
// now. Tokens that are not JWTs, or carry no exp, never expire locally.
func TokenExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	return ok && !now.Before(exp)
}

// TokenExpiry reads the exp claim without verifying the signature; the
// backend remains the authority on validity.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
