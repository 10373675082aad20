// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/onboarding"
	"github.com/chimailo/skippa/internal/render"
	"github.com/chimailo/skippa/internal/session"
	"github.com/chimailo/skippa/internal/uikit"
	"github.com/chimailo/skippa/internal/wizard"
)

// VerificationBackend submits merchant verification details.
type VerificationBackend interface {
	SubmitBusinessVerification(ctx context.Context, token string, payload map[string]any) error
	SubmitIndividualVerification(ctx context.Context, token string, payload map[string]any) error
}

// OnboardingHandler runs the merchant verification wizards.
type OnboardingHandler struct {
	renderer *render.Renderer
	store    *session.Store
	backend  VerificationBackend
}

// NewOnboardingHandler creates a new OnboardingHandler.
func NewOnboardingHandler(renderer *render.Renderer, store *session.Store, backend VerificationBackend) *OnboardingHandler {
	return &OnboardingHandler{renderer: renderer, store: store, backend: backend}
}

func valuesKey(v onboarding.Variant) string {
	return "wizard:" + string(v)
}

func stepURL(v onboarding.Variant, index int) string {
	return withQuery(redirectOnboarding+"/"+string(v), url.Values{"step": {strconv.Itoa(index + 1)}})
}

func (h *OnboardingHandler) loadValues(ctx context.Context, v onboarding.Variant) wizard.Values {
	if vals, ok := h.store.Manager().Get(ctx, valuesKey(v)).(wizard.Values); ok {
		return vals
	}
	return wizard.Values{}
}

// Index sends merchants that still need verification to the welcome page.
func (h *OnboardingHandler) Index(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	if !user.NeedsOnboarding() {
		http.Redirect(w, r, session.HomePath(user), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, redirectWelcome, http.StatusSeeOther)
}

type welcomeView struct {
	Variant  onboarding.Variant
	StartURL string
	Pending  bool
}

// Welcome renders the onboarding landing page.
func (h *OnboardingHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	variant := onboarding.VariantFor(user)
	h.renderer.RenderPage(w, r, "merchant/onboarding-welcome", render.TemplateData{
		Title: "Welcome to Skippa",
		Data: welcomeView{
			Variant:  variant,
			StartURL: stepURL(variant, 0),
			Pending:  !user.NeedsOnboarding(),
		},
	})
}

type stepView struct {
	Variant    onboarding.Variant
	Page       wizard.Page
	Step       int
	Steps      int
	IsFirst    bool
	IsLast     bool
	Progress   int // percent
	ActionURL  string
	Options    map[string][]string
	Breadcrumb []uikit.Breadcrumb
}

var fieldOptions = map[string][]string{
	"business_type":          onboarding.BusinessTypes,
	"id_type":                onboarding.IDTypes,
	"vehicle_type":           onboarding.VehicleTypes,
	"gender":                 onboarding.Genders,
	"guarantor_relationship": onboarding.Relationships,
}

// variant resolves the URL variant, redirecting to the one matching the
// account type. It returns false when a response was written.
func (h *OnboardingHandler) variant(w http.ResponseWriter, r *http.Request) (onboarding.Variant, bool) {
	v, err := onboarding.ParseVariant(chi.URLParam(r, "variant"))
	if err != nil {
		http.NotFound(w, r)
		return "", false
	}
	user := session.UserFromContext(r.Context())
	if want := onboarding.VariantFor(user); v != want {
		http.Redirect(w, r, stepURL(want, 0), http.StatusSeeOther)
		return "", false
	}
	if !user.NeedsOnboarding() {
		http.Redirect(w, r, session.HomePath(user), http.StatusSeeOther)
		return "", false
	}
	return v, true
}

func stepIndex(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("step"))
	if err != nil {
		return 0
	}
	return n - 1
}

func (h *OnboardingHandler) renderStep(w http.ResponseWriter, r *http.Request, status int, v onboarding.Variant, ctrl *wizard.Controller, values wizard.Values, errs map[string]string) {
	current, total := ctrl.Progress()
	page := ctrl.Page()
	h.renderer.RenderStatus(w, r, status, "merchant/onboarding-step", render.TemplateData{
		Title:  page.Title,
		Form:   values,
		Errors: errs,
		Data: stepView{
			Variant:   v,
			Page:      page,
			Step:      current,
			Steps:     total,
			IsFirst:   ctrl.IsFirst(),
			IsLast:    ctrl.IsLast(),
			Progress:  current * 100 / total,
			ActionURL: stepURL(v, ctrl.Index()),
			Options:   fieldOptions,
			Breadcrumb: []uikit.Breadcrumb{
				{Label: "Onboarding", URL: redirectWelcome},
				{Label: page.Title, Active: true},
			},
		},
	})
}

// Step renders one wizard page with the answers collected so far.
func (h *OnboardingHandler) Step(w http.ResponseWriter, r *http.Request) {
	v, ok := h.variant(w, r)
	if !ok {
		return
	}
	user := session.UserFromContext(r.Context())
	ctrl := onboarding.Definition(v, user).Seed(stepIndex(r))
	h.renderStep(w, r, http.StatusOK, v, ctrl, h.loadValues(r.Context(), v), nil)
}

// StepSubmit saves the page's answers and moves back, forward, or submits
// the whole wizard from the last page.
func (h *OnboardingHandler) StepSubmit(w http.ResponseWriter, r *http.Request) {
	v, ok := h.variant(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	user := session.UserFromContext(ctx)
	def := onboarding.Definition(v, user)
	ctrl := def.Seed(stepIndex(r))

	if !parseFormOrRedirect(w, r, h.store, stepURL(v, ctrl.Index())) {
		return
	}

	submitted := wizard.FromForm(r.PostForm)
	answers := wizard.Values{}
	for _, f := range ctrl.Page().Fields {
		answers[f] = submitted.Get(f)
	}
	values := h.loadValues(ctx, v).Merge(answers)
	h.store.Manager().Put(ctx, valuesKey(v), values)

	switch r.PostFormValue("action") {
	case "previous":
		_ = ctrl.Previous()
		http.Redirect(w, r, stepURL(v, ctrl.Index()), http.StatusSeeOther)
		return

	case "submit":
		err := ctrl.Submit(values)
		if errors.Is(err, wizard.ErrNotLastPage) {
			http.Redirect(w, r, stepURL(v, ctrl.Index()), http.StatusSeeOther)
			return
		}
		if err != nil {
			h.renderStep(w, r, http.StatusUnprocessableEntity, v, ctrl, values, apperr.As(err).Fields)
			return
		}
		h.submit(w, r, v, def, values)
		return

	default:
		if err := ctrl.Next(values); err != nil {
			h.renderStep(w, r, http.StatusUnprocessableEntity, v, ctrl, values, apperr.As(err).Fields)
			return
		}
		http.Redirect(w, r, stepURL(v, ctrl.Index()), http.StatusSeeOther)
	}
}

func (h *OnboardingHandler) submit(w http.ResponseWriter, r *http.Request, v onboarding.Variant, def *wizard.Wizard, values wizard.Values) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	payload := onboarding.ToPayload(def, values)

	var err error
	if v == onboarding.Individual {
		err = h.backend.SubmitIndividualVerification(ctx, sess.Token, payload)
	} else {
		err = h.backend.SubmitBusinessVerification(ctx, sess.Token, payload)
	}
	if err != nil {
		backendError(w, r, h.store, stepURL(v, len(def.Pages)-1), err)
		return
	}

	h.store.Manager().Remove(ctx, valuesKey(v))
	if _, err := h.store.Refresh(ctx); err != nil {
		slog.WarnContext(ctx, "profile refresh after verification submit failed", "error", err)
		count := 1
		if sess.User != nil {
			count = max(sess.User.VerificationCount+1, 1)
		}
		if _, err := h.store.Update(ctx, session.Patch{VerificationCount: &count}); err != nil {
			slog.WarnContext(ctx, "marking verification as submitted failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "verification details submitted", "variant", string(v))
	flashSuccess(w, r, h.store, "/dashboard", "Details Submitted",
		"Thanks! We are reviewing your details and will let you know once your account is verified.")
}
