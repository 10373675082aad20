// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chimailo/skippa/internal/apiclient"
	"github.com/chimailo/skippa/internal/model"
	"github.com/chimailo/skippa/internal/render"
	"github.com/chimailo/skippa/internal/session"
	"github.com/chimailo/skippa/internal/uikit"
)

// Admin routes.
const (
	redirectAdmin      = "/admin"
	redirectAdminRoles = "/admin/roles"
)

// AdminBackend is the part of the API client used by the admin console.
type AdminBackend interface {
	ListPartners(ctx context.Context, token string, p model.ListParams) (*model.Page[model.Partner], error)
	ListTeam(ctx context.Context, token string, p model.ListParams) (*model.Page[model.TeamMember], error)
	ListReports(ctx context.Context, token string, p model.ListParams) (*model.Page[model.Report], error)
	ListSettlements(ctx context.Context, token string, p model.ListParams) (*model.Page[model.Settlement], error)
	ListCustomers(ctx context.Context, token string, p model.ListParams) (*model.Page[model.Customer], error)
}

// AdminHandler serves the admin dashboard and the paginated lists.
type AdminHandler struct {
	renderer *render.Renderer
	store    *session.Store
	backend  AdminBackend
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(renderer *render.Renderer, store *session.Store, backend AdminBackend) *AdminHandler {
	return &AdminHandler{renderer: renderer, store: store, backend: backend}
}

// NavItem is one admin sidebar entry.
type NavItem struct {
	Page   string
	Label  string
	URL    string
	Active bool
}

var navLabels = map[string]string{
	model.PageDashboard:   "Dashboard",
	model.PagePartners:    "Partners",
	model.PageTeam:        "Team",
	model.PageRoles:       "Roles",
	model.PageReports:     "Reports",
	model.PageSettlements: "Settlements",
	model.PageCustomers:   "Customers",
	model.PageSettings:    "Settings",
}

var navURLs = map[string]string{
	model.PageDashboard: redirectAdmin,
	model.PageSettings:  "/admin/profile",
}

// Navigation returns the sidebar entries u may open.
func Navigation(u *model.User, current string) []NavItem {
	var items []NavItem
	for _, page := range model.Pages() {
		if page != model.PageDashboard && page != model.PageSettings && !u.Can(model.ViewPermission(page)) {
			continue
		}
		link, ok := navURLs[page]
		if !ok {
			link = "/admin/" + page
		}
		items = append(items, NavItem{Page: page, Label: navLabels[page], URL: link, Active: page == current})
	}
	return items
}

type dashboardView struct {
	Nav            []NavItem
	RecentReports  []model.Report
	PartnerCount   int
	CanSeeReports  bool
	CanSeePartners bool
}

// Dashboard renders the admin home with the summaries the user may see.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	user := sess.User

	view := dashboardView{
		Nav:            Navigation(user, model.PageDashboard),
		CanSeeReports:  user.Can(model.ViewPermission(model.PageReports)),
		CanSeePartners: user.Can(model.ViewPermission(model.PagePartners)),
	}

	if view.CanSeePartners {
		partners, err := h.backend.ListPartners(ctx, sess.Token, model.ListParams{Page: 1, PerPage: 1})
		if err != nil {
			h.dashboardError(w, r, err)
			return
		}
		view.PartnerCount = partners.Total
	}
	if view.CanSeeReports {
		reports, err := h.backend.ListReports(ctx, sess.Token, model.ListParams{Page: 1, PerPage: 5})
		if err != nil {
			h.dashboardError(w, r, err)
			return
		}
		view.RecentReports = reports.Items
	}

	h.renderer.RenderPage(w, r, "admin/dashboard", render.TemplateData{
		Title: "Dashboard",
		Data:  view,
	})
}

// dashboardError expires the session on a rejected token and otherwise
// renders the dashboard without summaries.
func (h *AdminHandler) dashboardError(w http.ResponseWriter, r *http.Request, err error) {
	if apiclient.IsUnauthorized(err) {
		backendError(w, r, h.store, redirectAdmin, err)
		return
	}
	slog.WarnContext(r.Context(), "loading dashboard summaries failed", "error", err)
	user := session.UserFromContext(r.Context())
	h.renderer.RenderPage(w, r, "admin/dashboard", render.TemplateData{
		Title:  "Dashboard",
		Notice: failureNotice(err),
		Data:   dashboardView{Nav: Navigation(user, model.PageDashboard)},
	})
}

// ListView is the template data for every paginated admin list.
type ListView[T any] struct {
	Nav        []NavItem
	Page       string
	Items      []T
	Pagination uikit.Pagination
	Search     string
	Status     string
}

// serveList fetches one page of a list and renders admin/<page>. A backend
// failure other than a rejected token renders an empty list with a notice.
func serveList[T any](h *AdminHandler, w http.ResponseWriter, r *http.Request, page, title string, fetch func(context.Context, string, model.ListParams) (*model.Page[T], error)) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	q := r.URL.Query()

	params := model.ListParams{
		Page:    uikit.ParsePageParam(r),
		PerPage: apiclient.DefaultPerPage,
		Search:  strings.TrimSpace(q.Get("search")),
		Status:  strings.TrimSpace(q.Get("status")),
	}

	view := ListView[T]{
		Nav:    Navigation(sess.User, page),
		Page:   page,
		Search: params.Search,
		Status: params.Status,
	}
	data := render.TemplateData{
		Title: title,
		Breadcrumbs: []uikit.Breadcrumb{
			{Label: "Dashboard", URL: redirectAdmin},
			{Label: title, Active: true},
		},
	}

	res, err := fetch(ctx, sess.Token, params)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			backendError(w, r, h.store, redirectAdmin, err)
			return
		}
		slog.WarnContext(ctx, "loading list failed", "page", page, "error", err)
		data.Notice = failureNotice(err)
		view.Pagination = uikit.BuildPagination(1, 0, params.PerPage, "/admin/"+page, q)
		data.Data = view
		h.renderer.RenderStatus(w, r, http.StatusBadGateway, "admin/"+page, data)
		return
	}

	perPage := res.PerPage
	if perPage <= 0 {
		perPage = params.PerPage
	}
	current := res.Page
	if current <= 0 {
		current = params.Page
	}
	view.Items = res.Items
	view.Pagination = uikit.BuildPagination(current, res.Total, perPage, "/admin/"+page, q)
	data.Data = view
	h.renderer.RenderPage(w, r, "admin/"+page, data)
}

// Partners lists merchant accounts.
func (h *AdminHandler) Partners(w http.ResponseWriter, r *http.Request) {
	serveList(h, w, r, model.PagePartners, "Partners", h.backend.ListPartners)
}

// Team lists admin console users.
func (h *AdminHandler) Team(w http.ResponseWriter, r *http.Request) {
	serveList(h, w, r, model.PageTeam, "Team", h.backend.ListTeam)
}

// Reports lists delivery reports.
func (h *AdminHandler) Reports(w http.ResponseWriter, r *http.Request) {
	serveList(h, w, r, model.PageReports, "Reports", h.backend.ListReports)
}

// Settlements lists partner payouts.
func (h *AdminHandler) Settlements(w http.ResponseWriter, r *http.Request) {
	serveList(h, w, r, model.PageSettlements, "Settlements", h.backend.ListSettlements)
}

// Customers lists end customers.
func (h *AdminHandler) Customers(w http.ResponseWriter, r *http.Request) {
	serveList(h, w, r, model.PageCustomers, "Customers", h.backend.ListCustomers)
}
