// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package apiclient

import (
	"context"
	"net/http"

	"github.com/chimailo/skippa/internal/model"
)

// ProfileUpdate carries the editable profile fields. Empty fields are left unchanged.
type ProfileUpdate struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Image   string `json:"image,omitempty"`
}

// Profile fetches the signed-in user.
func (c *Client) Profile(ctx context.Context, token string) (*model.User, error) {
	var u model.User
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/merchant/profile", Token: token}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile saves profile changes and returns the updated user.
func (c *Client) UpdateProfile(ctx context.Context, token string, upd ProfileUpdate) (*model.User, error) {
	var u model.User
	if err := c.Do(ctx, Request{Method: http.MethodPatch, Path: "/merchant/profile", Token: token, Body: upd}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangePassword replaces the current password.
func (c *Client) ChangePassword(ctx context.Context, token, current, next string) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/merchant/change-password",
		Token:  token,
		Body:   map[string]string{"currentPassword": current, "newPassword": next},
	}, nil)
}

// SubmitBusinessVerification sends the business onboarding payload.
func (c *Client) SubmitBusinessVerification(ctx context.Context, token string, payload map[string]any) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/merchant/verification/business",
		Token:  token,
		Body:   payload,
	}, nil)
}

// SubmitIndividualVerification sends the individual onboarding payload,
// guarantor included.
func (c *Client) SubmitIndividualVerification(ctx context.Context, token string, payload map[string]any) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/merchant/verification/individual",
		Token:  token,
		Body:   payload,
	}, nil)
}
