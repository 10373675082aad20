// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"fmt"
	"slices"
	"strings"
)

// RoleSuperAdmin is the built-in role holding every permission.
const RoleSuperAdmin = "superadmin"

// Admin console pages. A permission's resource must be one of these.
const (
	PageDashboard   = "dashboard"
	PagePartners    = "partners"
	PageTeam        = "team"
	PageRoles       = "roles"
	PageReports     = "reports"
	PageSettlements = "settlements"
	PageCustomers   = "customers"
	PageSettings    = "settings"
)

// Permission actions.
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionExport = "export"
)

// Pages returns the recognised admin page names in menu order.
func Pages() []string {
	return []string{PageDashboard, PagePartners, PageTeam, PageRoles, PageReports, PageSettlements, PageCustomers, PageSettings}
}

// Actions returns the recognised permission actions.
func Actions() []string {
	return []string{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionExport}
}

// Role is a named permission set managed in the admin console.
type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
	IsCustom    bool     `json:"isCustom"`
}

// Permission is a parsed "resource:action" capability string.
type Permission struct {
	Resource string
	Action   string
}

func (p Permission) String() string {
	return p.Resource + ":" + p.Action
}

// ParsePermission splits and validates a capability string such as "reports:view".
func ParsePermission(s string) (Permission, error) {
	resource, action, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || resource == "" || action == "" {
		return Permission{}, fmt.Errorf("permission %q must have the form resource:action", s)
	}
	if !slices.Contains(Pages(), resource) {
		return Permission{}, fmt.Errorf("permission %q: unknown page %q", s, resource)
	}
	if !slices.Contains(Actions(), action) {
		return Permission{}, fmt.Errorf("permission %q: unknown action %q", s, action)
	}
	return Permission{Resource: resource, Action: action}, nil
}

// ValidatePermissions parses every permission, returning them normalized and de-duplicated.
func ValidatePermissions(perms []string) ([]string, error) {
	seen := make(map[string]bool, len(perms))
	out := make([]string, 0, len(perms))
	for _, s := range perms {
		p, err := ParsePermission(s)
		if err != nil {
			return nil, err
		}
		if seen[p.String()] {
			continue
		}
		seen[p.String()] = true
		out = append(out, p.String())
	}
	return out, nil
}

// ViewPermission returns the permission required to open an admin page.
func ViewPermission(page string) string {
	return page + ":" + ActionView
}
