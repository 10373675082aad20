// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/chimailo/skippa/internal/model"
)

// RoleInput is the body for role create and update.
type RoleInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// ListRoles returns every role visible to the token.
func (c *Client) ListRoles(ctx context.Context, token string) ([]model.Role, error) {
	var roles []model.Role
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/admin/roles", Token: token}, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// CreateRole adds a custom role.
func (c *Client) CreateRole(ctx context.Context, token string, in RoleInput) (*model.Role, error) {
	var r model.Role
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/admin/roles", Token: token, Body: in}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateRole replaces a role's name, description and permissions.
func (c *Client) UpdateRole(ctx context.Context, token, id string, in RoleInput) (*model.Role, error) {
	var r model.Role
	err := c.Do(ctx, Request{
		Method:   http.MethodPut,
		Path:     "/admin/roles/" + url.PathEscape(id),
		Token:    token,
		Body:     in,
		Endpoint: "/admin/roles/{id}",
	}, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRole removes a custom role.
func (c *Client) DeleteRole(ctx context.Context, token, id string) error {
	return c.Do(ctx, Request{
		Method:   http.MethodDelete,
		Path:     "/admin/roles/" + url.PathEscape(id),
		Token:    token,
		Endpoint: "/admin/roles/{id}",
	}, nil)
}
