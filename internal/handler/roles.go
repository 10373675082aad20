// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chimailo/skippa/internal/apiclient"
	"github.com/chimailo/skippa/internal/cache"
	"github.com/chimailo/skippa/internal/model"
	"github.com/chimailo/skippa/internal/render"
	"github.com/chimailo/skippa/internal/session"
	"github.com/chimailo/skippa/internal/uikit"
)

// RolesCacheTTL bounds how stale a cached role list may be.
const RolesCacheTTL = time.Minute

const rolesCachePrefix = "roles:"

// RoleBackend is the part of the API client used for role management.
type RoleBackend interface {
	ListRoles(ctx context.Context, token string) ([]model.Role, error)
	CreateRole(ctx context.Context, token string, in apiclient.RoleInput) (*model.Role, error)
	UpdateRole(ctx context.Context, token, id string, in apiclient.RoleInput) (*model.Role, error)
	DeleteRole(ctx context.Context, token, id string) error
}

// RolesHandler manages admin roles.
type RolesHandler struct {
	renderer *render.Renderer
	store    *session.Store
	backend  RoleBackend
	roles    *cache.TypedCache[[]model.Role]
}

// NewRolesHandler creates a new RolesHandler. The role list is cached per
// admin in c.
func NewRolesHandler(renderer *render.Renderer, store *session.Store, backend RoleBackend, c cache.Cache) *RolesHandler {
	return &RolesHandler{
		renderer: renderer,
		store:    store,
		backend:  backend,
		roles:    cache.NewTypedCache[[]model.Role](c, RolesCacheTTL),
	}
}

func (h *RolesHandler) list(ctx context.Context, sess session.Session) ([]model.Role, error) {
	key := rolesCachePrefix
	if sess.User != nil {
		key += sess.User.ID
	}
	return h.roles.GetOrSet(ctx, key, func() ([]model.Role, error) {
		return h.backend.ListRoles(ctx, sess.Token)
	})
}

func (h *RolesHandler) invalidate(ctx context.Context) {
	if err := h.roles.DeleteByPrefix(ctx, rolesCachePrefix); err != nil {
		slog.WarnContext(ctx, "invalidating role cache failed", "error", err)
	}
}

type rolesView struct {
	Nav       []NavItem
	Roles     []model.Role
	CanCreate bool
	CanEdit   bool
	CanDelete bool
}

// List renders every role.
func (h *RolesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)

	roles, err := h.list(ctx, sess)
	if err != nil {
		backendError(w, r, h.store, redirectAdmin, err)
		return
	}

	h.renderer.RenderPage(w, r, "admin/roles", render.TemplateData{
		Title: "Roles",
		Breadcrumbs: []uikit.Breadcrumb{
			{Label: "Dashboard", URL: redirectAdmin},
			{Label: "Roles", Active: true},
		},
		Data: rolesView{
			Nav:       Navigation(sess.User, model.PageRoles),
			Roles:     roles,
			CanCreate: sess.User.Can(model.PageRoles + ":" + model.ActionCreate),
			CanEdit:   sess.User.Can(model.PageRoles + ":" + model.ActionEdit),
			CanDelete: sess.User.Can(model.PageRoles + ":" + model.ActionDelete),
		},
	})
}

type roleFormView struct {
	Nav       []NavItem
	Role      model.Role
	IsNew     bool
	ActionURL string
	Pages     []string
	Actions   []string
	Selected  map[string]bool
}

func (h *RolesHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, role model.Role, isNew bool, errs map[string]string) {
	title := "Edit role"
	action := redirectAdminRoles + "/" + role.ID
	if isNew {
		title = "New role"
		action = redirectAdminRoles
	}
	selected := make(map[string]bool, len(role.Permissions))
	for _, p := range role.Permissions {
		selected[p] = true
	}

	h.renderer.RenderStatus(w, r, status, "admin/role-form", render.TemplateData{
		Title:  title,
		Errors: errs,
		Form:   map[string]string{"name": role.Name, "description": role.Description},
		Breadcrumbs: []uikit.Breadcrumb{
			{Label: "Dashboard", URL: redirectAdmin},
			{Label: "Roles", URL: redirectAdminRoles},
			{Label: title, Active: true},
		},
		Data: roleFormView{
			Nav:       Navigation(session.UserFromContext(r.Context()), model.PageRoles),
			Role:      role,
			IsNew:     isNew,
			ActionURL: action,
			Pages:     model.Pages(),
			Actions:   model.Actions(),
			Selected:  selected,
		},
	})
}

// New renders an empty role form.
func (h *RolesHandler) New(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, model.Role{IsCustom: true}, true, nil)
}

// readRole reads the submitted role. errs is nil when it is valid.
func readRole(r *http.Request) (in apiclient.RoleInput, errs map[string]string) {
	values := readForm(r, roleForm)
	errs = validateForm(roleForm, values)

	perms, err := model.ValidatePermissions(r.PostForm["permissions"])
	if err != nil {
		if errs == nil {
			errs = map[string]string{}
		}
		errs["permissions"] = err.Error()
		perms = r.PostForm["permissions"]
	} else if len(perms) == 0 {
		if errs == nil {
			errs = map[string]string{}
		}
		errs["permissions"] = "Select at least one permission"
	}

	return apiclient.RoleInput{
		Name:        values.Get("name"),
		Description: values.Get("description"),
		Permissions: perms,
	}, errs
}

// Create adds a custom role.
func (h *RolesHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.store, redirectAdminRoles+"/new") {
		return
	}
	ctx := r.Context()

	in, errs := readRole(r)
	if errs != nil {
		h.renderForm(w, r, http.StatusUnprocessableEntity, roleFromInput("", in), true, errs)
		return
	}

	role, err := h.backend.CreateRole(ctx, session.FromContext(ctx).Token, in)
	if err != nil {
		backendError(w, r, h.store, redirectAdminRoles+"/new", err)
		return
	}
	h.invalidate(ctx)

	slog.InfoContext(ctx, "role created", "role_id", role.ID, "name", role.Name)
	flashSuccess(w, r, h.store, redirectAdminRoles, "Role Created", "The "+role.Name+" role was created.")
}

// findRole looks the role up in the cached list. It writes the response
// and returns false when the role is missing or built in.
func (h *RolesHandler) findRole(w http.ResponseWriter, r *http.Request) (model.Role, bool) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	roles, err := h.list(ctx, session.FromContext(ctx))
	if err != nil {
		backendError(w, r, h.store, redirectAdminRoles, err)
		return model.Role{}, false
	}
	for _, role := range roles {
		if role.ID != id {
			continue
		}
		if !role.IsCustom {
			flashAndRedirect(w, r, h.store, redirectAdminRoles,
				notice(noticeWarning, "Built-in Role", "Built-in roles cannot be changed."))
			return model.Role{}, false
		}
		return role, true
	}
	notFound(w, r, h.renderer)
	return model.Role{}, false
}

// Edit renders the form for a custom role.
func (h *RolesHandler) Edit(w http.ResponseWriter, r *http.Request) {
	role, ok := h.findRole(w, r)
	if !ok {
		return
	}
	h.renderForm(w, r, http.StatusOK, role, false, nil)
}

// Update saves changes to a custom role.
func (h *RolesHandler) Update(w http.ResponseWriter, r *http.Request) {
	role, ok := h.findRole(w, r)
	if !ok {
		return
	}
	editURL := redirectAdminRoles + "/" + role.ID + "/edit"
	if !parseFormOrRedirect(w, r, h.store, editURL) {
		return
	}
	ctx := r.Context()

	in, errs := readRole(r)
	if errs != nil {
		h.renderForm(w, r, http.StatusUnprocessableEntity, roleFromInput(role.ID, in), false, errs)
		return
	}

	if _, err := h.backend.UpdateRole(ctx, session.FromContext(ctx).Token, role.ID, in); err != nil {
		backendError(w, r, h.store, editURL, err)
		return
	}
	h.invalidate(ctx)

	slog.InfoContext(ctx, "role updated", "role_id", role.ID)
	flashSuccess(w, r, h.store, redirectAdminRoles, "Role Updated", "The "+in.Name+" role was saved.")
}

// Delete removes a custom role.
func (h *RolesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	role, ok := h.findRole(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if err := h.backend.DeleteRole(ctx, session.FromContext(ctx).Token, role.ID); err != nil {
		backendError(w, r, h.store, redirectAdminRoles, err)
		return
	}
	h.invalidate(ctx)

	slog.InfoContext(ctx, "role deleted", "role_id", role.ID)
	flashSuccess(w, r, h.store, redirectAdminRoles, "Role Deleted", "The "+role.Name+" role was deleted.")
}

func roleFromInput(id string, in apiclient.RoleInput) model.Role {
	return model.Role{ID: id, Name: in.Name, Description: in.Description, Permissions: in.Permissions, IsCustom: true}
}
