// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/chimailo/skippa/internal/render"
)

// PublicHandler serves the marketing pages.
type PublicHandler struct {
	renderer *render.Renderer
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(renderer *render.Renderer) *PublicHandler {
	return &PublicHandler{renderer: renderer}
}

// Home renders the landing page.
func (h *PublicHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.renderer.RenderPage(w, r, "public/home", render.TemplateData{Title: "Fast, reliable deliveries"})
}

// Page renders the markdown page named by the last path segment, so
// /privacy serves content/privacy.md.
func (h *PublicHandler) Page(w http.ResponseWriter, r *http.Request) {
	slug := strings.Trim(r.URL.Path, "/")
	content, err := h.renderer.Page(slug)
	if errors.Is(err, render.ErrNotFound) {
		notFound(w, r, h.renderer)
		return
	}
	if err != nil {
		logAndInternalError(w, r, "rendering content page", "slug", slug, "error", err)
		return
	}

	h.renderer.RenderPage(w, r, "public/page", render.TemplateData{
		Title: content.Title,
		Data:  content,
	})
}

// NotFound renders the 404 page for unmatched routes.
func (h *PublicHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	notFound(w, r, h.renderer)
}
