// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handoff carries the password typed at login or signup across to the
// OTP step, so the account can be signed in once verified without asking for
// it again.
//
// The browser only holds a signed ticket in a short-lived cookie. The
// password itself sits in the cache under the ticket id, base64 encoded.
// The encoding is obfuscation, not protection.
package handoff

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/chimailo/skippa/internal/cache"
)

// CookieName is the fixed channel name.
const CookieName = "skippa_handoff"

// DefaultTTL is how long a pending password stays retrievable.
const DefaultTTL = 120 * time.Second

const slotPrefix = "handoff:"

var (
	// ErrEmpty is returned when there is no pending password: the cookie is
	// missing, the ticket is invalid or expired, or the slot is gone.
	ErrEmpty = errors.New("handoff: no pending credential")

	// ErrNoPassword is returned when asked to hold an empty password.
	ErrNoPassword = errors.New("handoff: empty password")
)

// Options configures a Channel.
type Options struct {
	Cache  cache.Cache
	Secret []byte // signs tickets
	TTL    time.Duration
	Secure bool // Secure cookie attribute
	Now    func() time.Time
}

// Channel holds at most one pending password per browser.
type Channel struct {
	cache  cache.Cache
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// New creates a Channel.
func New(opts Options) *Channel {
	c := &Channel{
		cache:  opts.Cache,
		secret: opts.Secret,
		ttl:    opts.TTL,
		secure: opts.Secure,
		now:    opts.Now,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// TTL returns the slot lifetime.
func (c *Channel) TTL() time.Duration {
	return c.ttl
}

// Store holds password for this browser, replacing any pending one.
func (c *Channel) Store(w http.ResponseWriter, r *http.Request, password string) error {
	if password == "" {
		return ErrNoPassword
	}
	ctx := r.Context()

	if old, err := c.ticketID(r); err == nil {
		if err := c.cache.Delete(ctx, slotPrefix+old); err != nil {
			slog.Warn("dropping previous handoff slot", "error", err)
		}
	}

	id := uuid.NewString()
	encoded := base64.StdEncoding.EncodeToString([]byte(password))
	if err := c.cache.Set(ctx, slotPrefix+id, []byte(encoded), c.ttl); err != nil {
		return fmt.Errorf("storing handoff slot: %w", err)
	}

	now := c.now()
	ticket, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}).SignedString(c.secret)
	if err != nil {
		_ = c.cache.Delete(ctx, slotPrefix+id)
		return fmt.Errorf("signing handoff ticket: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    ticket,
		Path:     "/",
		MaxAge:   int(c.ttl / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Retrieve returns the pending password or ErrEmpty. It does not consume the
// slot; call Clear once sign-in succeeds.
func (c *Channel) Retrieve(r *http.Request) (string, error) {
	id, err := c.ticketID(r)
	if err != nil {
		return "", ErrEmpty
	}
	return c.load(r.Context(), id)
}

func (c *Channel) load(ctx context.Context, id string) (string, error) {
	raw, err := c.cache.Get(ctx, slotPrefix+id)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.Warn("reading handoff slot", "error", err)
		}
		return "", ErrEmpty
	}
	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil || len(decoded) == 0 {
		return "", ErrEmpty
	}
	return string(decoded), nil
}

// Clear drops the pending password and expires the cookie.
func (c *Channel) Clear(w http.ResponseWriter, r *http.Request) {
	if id, err := c.ticketID(r); err == nil {
		_ = c.cache.Delete(r.Context(), slotPrefix+id)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ticketID validates the cookie's ticket and returns its id.
func (c *Channel) ticketID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrEmpty
	}

	claims := jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || claims.ID == "" {
		return "", ErrEmpty
	}
	return claims.ID, nil
}
