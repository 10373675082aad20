// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package apiclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/model"
)

// LoginResult is the payload of a successful merchant or admin login.
type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Verification identifies a pending OTP verification.
type Verification struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// RegisterRequest is the signup form sent to the backend.
type RegisterRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Phone    string         `json:"phone"`
	Password string         `json:"password"`
	Type     model.UserType `json:"type"`
	Company  string         `json:"company,omitempty"`
}

// Login exchanges credentials for a bearer token. Rejected credentials are
// reported as Authentication errors, never as Unauthorized.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   map[string]string{"email": email, "password": password},
	}, &out)
	if err != nil {
		var e *apperr.Error
		if errors.As(err, &e) && e.Kind == apperr.Unauthorized {
			e.Kind = apperr.Authentication
			if e.Name == "" || e.Name == "Unauthorized" {
				e.Name = "AuthenticationError"
			}
		}
		return nil, err
	}
	if out.Token == "" {
		return nil, &apperr.Error{Kind: apperr.RequestFailed, Name: "MalformedResponse", Message: apperr.GenericMessage}
	}
	return &out, nil
}

// Register creates a merchant account and returns the pending verification.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Verification, error) {
	var out Verification
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/register", Body: req}, &out); err != nil {
		return nil, err
	}
	if out.Email == "" {
		out.Email = req.Email
	}
	return &out, nil
}

// ForgotPassword asks the backend to email a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/forgot-password",
		Body:   map[string]string{"email": email},
	}, nil)
}

// ResetPassword sets a new password using the token from the reset link.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/reset-password",
		Body:   map[string]string{"token": token, "password": password},
	}, nil)
}

// ResendOTP issues a new code. The backend rotates the verification token on
// every resend; callers must use the returned one.
func (c *Client) ResendOTP(ctx context.Context, email string) (*Verification, error) {
	var out Verification
	if err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/otp/resend",
		Body:   map[string]string{"email": email},
	}, &out); err != nil {
		return nil, err
	}
	if out.Email == "" {
		out.Email = email
	}
	return &out, nil
}

// VerifyOTP confirms the code against the verification token.
func (c *Client) VerifyOTP(ctx context.Context, otp, token string) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/otp/verify",
		Body:   map[string]string{"otp": otp, "token": token},
	}, nil)
}
