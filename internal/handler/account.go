// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chimailo/skippa/internal/apiclient"
	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/model"
	"github.com/chimailo/skippa/internal/render"
	"github.com/chimailo/skippa/internal/session"
	"github.com/chimailo/skippa/internal/uikit"
	"github.com/chimailo/skippa/internal/wizard"
)

// ProfileBackend is the part of the API client used by profile pages.
type ProfileBackend interface {
	UpdateProfile(ctx context.Context, token string, upd apiclient.ProfileUpdate) (*model.User, error)
	ChangePassword(ctx context.Context, token, current, next string) error
}

// AccountHandler serves the merchant dashboard and the profile pages shared
// by merchants and admins.
type AccountHandler struct {
	renderer *render.Renderer
	store    *session.Store
	backend  ProfileBackend
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(renderer *render.Renderer, store *session.Store, backend ProfileBackend) *AccountHandler {
	return &AccountHandler{renderer: renderer, store: store, backend: backend}
}

type merchantDashboardView struct {
	Verified bool
	Pending  bool
	Status   string
}

// Dashboard renders the merchant home. Unverified accounts are refreshed
// so a completed review shows up without signing in again.
func (h *AccountHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := session.UserFromContext(ctx)

	if user != nil && !user.Verified {
		sess, err := h.store.Refresh(ctx)
		switch {
		case err == nil:
			user = sess.User
		case errors.Is(err, apperr.ErrSessionExpired):
			flashAndRedirect(w, r, h.store, session.LoginURL(r), session.ExpiredNotice())
			return
		default:
			slog.WarnContext(ctx, "refreshing merchant profile failed", "error", err)
		}
	}

	view := merchantDashboardView{}
	if user != nil {
		view.Verified = user.Verified
		view.Pending = !user.Verified && user.VerificationCount > 0
		view.Status = user.Status
	}

	h.renderer.RenderPage(w, r, "merchant/dashboard", render.TemplateData{
		Title: "Dashboard",
		User:  user,
		Data:  view,
	})
}

type profileView struct {
	Nav         []NavItem
	ActionURL   string
	PasswordURL string
}

func profilePath(u *model.User) string {
	if u.IsAdmin() {
		return "/admin/profile"
	}
	return "/profile"
}

func (h *AccountHandler) renderProfile(w http.ResponseWriter, r *http.Request, status int, form map[string]string, errs map[string]string) {
	user := session.UserFromContext(r.Context())
	base := profilePath(user)

	if form == nil && user != nil {
		form = map[string]string{"name": user.Name, "phone": user.Phone, "company": user.Company}
	}

	data := render.TemplateData{
		Title:  "Profile",
		Form:   form,
		Errors: errs,
	}
	view := profileView{ActionURL: base, PasswordURL: base + "/password"}

	name := "merchant/profile"
	if user.IsAdmin() {
		name = "admin/profile"
		view.Nav = Navigation(user, model.PageSettings)
		data.Breadcrumbs = []uikit.Breadcrumb{
			{Label: "Dashboard", URL: redirectAdmin},
			{Label: "Profile", Active: true},
		}
	}
	data.Data = view
	h.renderer.RenderStatus(w, r, status, name, data)
}

// Profile renders the profile and password forms.
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	h.renderProfile(w, r, http.StatusOK, nil, nil)
}

// UpdateProfile saves profile changes and updates the stored session user.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	base := profilePath(sess.User)
	if !parseFormOrRedirect(w, r, h.store, base) {
		return
	}

	values := readForm(r, profileForm)
	if errs := validateForm(profileForm, values); errs != nil {
		h.renderProfile(w, r, http.StatusUnprocessableEntity, values, errs)
		return
	}

	updated, err := h.backend.UpdateProfile(ctx, sess.Token, apiclient.ProfileUpdate{
		Name:    values.Get("name"),
		Phone:   wizard.NormalizePhone(values.Get("phone")),
		Company: values.Get("company"),
	})
	if err != nil {
		backendError(w, r, h.store, base, err)
		return
	}

	if _, err := h.store.Update(ctx, session.Patch{
		Name:    &updated.Name,
		Phone:   &updated.Phone,
		Company: &updated.Company,
		Image:   &updated.Image,
	}); err != nil {
		slog.WarnContext(ctx, "updating session user failed", "error", err)
	}

	flashSuccess(w, r, h.store, base, "Profile Updated", "Your profile has been saved.")
}

// ChangePassword replaces the account password.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	base := profilePath(sess.User)
	if !parseFormOrRedirect(w, r, h.store, base) {
		return
	}

	values := readForm(r, changePasswordForm)
	if errs := validateForm(changePasswordForm, values); errs != nil {
		h.renderProfile(w, r, http.StatusUnprocessableEntity, nil, errs)
		return
	}

	if err := h.backend.ChangePassword(ctx, sess.Token, values.Get("current_password"), values.Get("new_password")); err != nil {
		backendError(w, r, h.store, base, err)
		return
	}

	slog.InfoContext(ctx, "password changed")
	flashSuccess(w, r, h.store, base, "Password Changed", "Your password has been updated.")
}
