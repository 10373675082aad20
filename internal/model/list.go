// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Page is a server-paginated list payload.
type Page[T any] struct {
	Items   []T `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

// ListParams are the query parameters accepted by every list endpoint.
type ListParams struct {
	Page    int
	PerPage int
	Search  string
	Status  string
}

// Partner is a merchant account seen from the admin console.
type Partner struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Type      UserType  `json:"type"`
	Status    string    `json:"status"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

// TeamMember is an admin console user.
type TeamMember struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Report is a delivery report row.
type Report struct {
	ID          string    `json:"id"`
	Reference   string    `json:"reference"`
	PartnerName string    `json:"partnerName"`
	Pickup      string    `json:"pickup"`
	Dropoff     string    `json:"dropoff"`
	Status      string    `json:"status"`
	Amount      float64   `json:"amount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Settlement is a payout to a partner.
type Settlement struct {
	ID          string    `json:"id"`
	Reference   string    `json:"reference"`
	PartnerName string    `json:"partnerName"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	SettledAt   time.Time `json:"settledAt"`
}

// Customer is an end customer of the platform.
type Customer struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Deliveries int       `json:"deliveries"`
	CreatedAt  time.Time `json:"createdAt"`
}
