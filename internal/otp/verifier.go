// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chimailo/skippa/internal/apiclient"
	"github.com/chimailo/skippa/internal/apperr"
)

// Backend is the part of the API client the verifier needs.
type Backend interface {
	VerifyOTP(ctx context.Context, otp, token string) error
	ResendOTP(ctx context.Context, email string) (*apiclient.Verification, error)
}

// SignInFunc signs the verified account in.
type SignInFunc func(ctx context.Context, email, password string) error

// PasswordSource yields the password held since login or signup.
type PasswordSource interface {
	Password(ctx context.Context) (string, error)
}

// PasswordFunc adapts a function to PasswordSource.
type PasswordFunc func(ctx context.Context) (string, error)

func (f PasswordFunc) Password(ctx context.Context) (string, error) { return f(ctx) }

// ErrCodeRejected wraps backend rejections of the entered code.
var ErrCodeRejected = errors.New("otp: code rejected")

// ExpiredMessage is shown when the held password is gone.
const ExpiredMessage = "Your verification session has expired. Please log in again to continue."

// SignInError reports that the code was accepted but the follow-up sign-in
// failed.
type SignInError struct {
	Err error
}

func (e *SignInError) Error() string {
	return "account verified but sign-in failed: " + e.Err.Error()
}

func (e *SignInError) Unwrap() error { return e.Err }

// Verifier drives Flow transitions around backend calls.
type Verifier struct {
	backend Backend
	signIn  SignInFunc
	now     func() time.Time
}

// NewVerifier creates a Verifier. now should be the clock that armed the
// flows it drives; nil means time.Now.
func NewVerifier(backend Backend, signIn SignInFunc, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{backend: backend, signIn: signIn, now: now}
}

// Submit verifies the entered code, then signs in with the held password.
//
// A rejected code returns to AwaitingInput and yields an error wrapping
// ErrCodeRejected. A missing password yields a SessionExpired error and no
// sign-in is attempted. A failed sign-in after verification yields
// *SignInError.
func (v *Verifier) Submit(ctx context.Context, f *Flow, pw PasswordSource) error {
	if err := f.BeginSubmit(v.now()); err != nil {
		return err
	}

	if err := v.backend.VerifyOTP(ctx, f.Input, f.Token); err != nil {
		e := apperr.As(err)
		if e.Status >= http.StatusBadRequest && e.Status < http.StatusInternalServerError {
			f.Reject(e.Message)
			return fmt.Errorf("%w: %w", ErrCodeRejected, err)
		}
		f.Fail(e.Message)
		return err
	}
	f.Verified()

	password, err := pw.Password(ctx)
	if err != nil || password == "" {
		slog.Info("verified account has no held password", "email", f.Email)
		return apperr.Expired(ExpiredMessage)
	}

	if err := v.signIn(ctx, f.Email, password); err != nil {
		return &SignInError{Err: err}
	}
	return nil
}

// Resend requests a new code. On success the flow's token is replaced, the
// input cleared and the countdown restarted.
func (v *Verifier) Resend(ctx context.Context, f *Flow) error {
	if err := f.BeginResend(v.now()); err != nil {
		return err
	}

	res, err := v.backend.ResendOTP(ctx, f.Email)
	if err != nil {
		f.ResendFailed(apperr.As(err).Message)
		return err
	}

	f.Resent(res.Token, v.now())
	return nil
}
