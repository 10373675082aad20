// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the domain types exchanged with the Skippa backend:
// users, roles and permissions, and the paginated admin lists.
package model

// UserType distinguishes admin console users from merchant accounts.
type UserType string

// User types.
const (
	UserTypeAdmin      UserType = "admin"
	UserTypeBusiness   UserType = "business"
	UserTypeIndividual UserType = "individual"
)

// Account statuses reported by the backend.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusRejected = "rejected"
)

// User represents the signed-in identity. Identity fields are fixed at login;
// Status, Verified and Role change through profile refetches.
type User struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone"`
	Image             string   `json:"image,omitempty"`
	Type              UserType `json:"type"`
	Role              string   `json:"role"`
	Permissions       []string `json:"permissions,omitempty"`
	VerificationCount int      `json:"verificationCount"`
	Company           string   `json:"company"`
	Status            string   `json:"status"`
	Verified          bool     `json:"verified"`
}

// IsAdmin returns true for admin console users.
func (u *User) IsAdmin() bool {
	return u != nil && u.Type == UserTypeAdmin
}

// IsMerchant returns true for business and individual partner accounts.
func (u *User) IsMerchant() bool {
	return u != nil && (u.Type == UserTypeBusiness || u.Type == UserTypeIndividual)
}

// NeedsOnboarding reports whether a merchant still has to submit verification documents.
func (u *User) NeedsOnboarding() bool {
	return u.IsMerchant() && !u.Verified && u.VerificationCount == 0
}

// Can reports whether the user holds the permission. Admins with the
// "superadmin" role hold every permission.
func (u *User) Can(permission string) bool {
	if u == nil {
		return false
	}
	if u.Role == RoleSuperAdmin {
		return true
	}
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// FirstName returns the first word of the user's name for greetings.
func (u *User) FirstName() string {
	for i, r := range u.Name {
		if r == ' ' {
			return u.Name[:i]
		}
	}
	return u.Name
}
