// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/chimailo/skippa/internal/model"
)

// DefaultPerPage is used when ListParams leaves PerPage unset.
const DefaultPerPage = 20

func listQuery(p model.ListParams) url.Values {
	q := url.Values{}
	page := p.Page
	if page < 1 {
		page = 1
	}
	perPage := p.PerPage
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("perPage", strconv.Itoa(perPage))
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	return q
}

func list[T any](ctx context.Context, c *Client, path, token string, p model.ListParams) (*model.Page[T], error) {
	q := listQuery(p)
	var out model.Page[T]
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Token: token, Query: q}, &out); err != nil {
		return nil, err
	}
	if out.Page == 0 {
		out.Page, _ = strconv.Atoi(q.Get("page"))
	}
	if out.PerPage == 0 {
		out.PerPage, _ = strconv.Atoi(q.Get("perPage"))
	}
	if out.Items == nil {
		out.Items = []T{}
	}
	return &out, nil
}

// ListPartners returns one page of merchant accounts.
func (c *Client) ListPartners(ctx context.Context, token string, p model.ListParams) (*model.Page[model.Partner], error) {
	return list[model.Partner](ctx, c, "/admin/partners", token, p)
}

// ListTeam returns one page of admin users.
func (c *Client) ListTeam(ctx context.Context, token string, p model.ListParams) (*model.Page[model.TeamMember], error) {
	return list[model.TeamMember](ctx, c, "/admin/team", token, p)
}

// ListReports returns one page of delivery reports.
func (c *Client) ListReports(ctx context.Context, token string, p model.ListParams) (*model.Page[model.Report], error) {
	return list[model.Report](ctx, c, "/admin/reports", token, p)
}

// ListSettlements returns one page of partner payouts.
func (c *Client) ListSettlements(ctx context.Context, token string, p model.ListParams) (*model.Page[model.Settlement], error) {
	return list[model.Settlement](ctx, c, "/admin/settlements", token, p)
}

// ListCustomers returns one page of customers.
func (c *Client) ListCustomers(ctx context.Context, token string, p model.ListParams) (*model.Page[model.Customer], error) {
	return list[model.Customer](ctx, c, "/admin/customers", token, p)
}
