// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chimailo/skippa/internal/model"
)

func onboardingRouter(e *testEnv) http.Handler {
	auth := NewAuthHandler(e.renderer, e.store, e.backend, e.handoff, nil)
	ob := NewOnboardingHandler(e.renderer, e.store, e.backend)

	r := chi.NewRouter()
	r.Post("/login", auth.Login)
	r.Get("/onboarding", ob.Index)
	r.Get("/onboarding/welcome", ob.Welcome)
	r.Get("/onboarding/{variant}", ob.Step)
	r.Post("/onboarding/{variant}", ob.StepSubmit)
	r.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("dashboard"))
	})
	return e.wrap(r)
}

func signInMerchant(t *testing.T, e *testEnv, b *browser, typ model.UserType) {
	t.Helper()
	e.backend.addUser(model.User{ID: "m1", Email: "ops@ola.ng", Phone: "+2348031234567", Type: typ}, "s3cret-pass")
	rec := b.post("/login", url.Values{"email": {"ops@ola.ng"}, "password": {"s3cret-pass"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/onboarding", rec.Header().Get("Location"))
}

var businessAnswers = []url.Values{
	{"company_name": {"Ola Express Ltd"}, "rc_number": {"RC12345"}, "business_type": {"limited_liability"}},
	{"business_email": {"hello@ola.ng"}, "business_phone": {"08031234567"}, "address": {"12 Marina Road"}, "city": {"Lagos"}, "state": {"Lagos"}},
	{"director_name": {"Ada Obi"}, "director_email": {"ada@ola.ng"}, "director_phone": {"+234 803 123 4568"}, "director_bvn": {"12345678901"}},
	{"bank_name": {"Zenith Bank"}, "account_number": {"0123456789"}, "account_name": {"Ola Express Ltd"}},
}

func TestOnboardingIndexAndWelcome(t *testing.T) {
	e := newTestEnv(t)
	b := newBrowser(t, onboardingRouter(e))
	signInMerchant(t, e, b, model.UserTypeBusiness)

	rec := b.get("/onboarding")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/onboarding/welcome", rec.Header().Get("Location"))

	rec = b.get("/onboarding/welcome")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/onboarding/business?step=1")
}

func TestOnboardingWrongVariantRedirects(t *testing.T) {
	e := newTestEnv(t)
	b := newBrowser(t, onboardingRouter(e))
	signInMerchant(t, e, b, model.UserTypeBusiness)

	rec := b.get("/onboarding/individual?step=2")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/onboarding/business?step=1", rec.Header().Get("Location"))

	assert.Equal(t, http.StatusNotFound, b.get("/onboarding/unknown").Code)
}

func TestOnboardingNextValidatesCurrentPageOnly(t *testing.T) {
	e := newTestEnv(t)
	b := newBrowser(t, onboardingRouter(e))
	signInMerchant(t, e, b, model.UserTypeBusiness)

	rec := b.post("/onboarding/business?step=1", url.Values{"company_name": {"Ola Express Ltd"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "step=1/4")
	assert.Contains(t, body, "[rc_number:")
	assert.Contains(t, body, "[business_type:")
	assert.NotContains(t, body, "[business_email:")
	assert.Contains(t, body, "company=Ola Express Ltd")

	rec = b.post("/onboarding/business?step=1", businessAnswers[0])
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/onboarding/business?step=2", rec.Header().Get("Location"))
}

func TestOnboardingPreviousKeepsAnswers(t *testing.T) {
	e := newTestEnv(t)
	b := newBrowser(t, onboardingRouter(e))
	signInMerchant(t, e, b, model.UserTypeBusiness)

	require.Equal(t, http.StatusSeeOther, b.post("/onboarding/business?step=1", businessAnswers[0]).Code)

	form := url.Values{"action": {"previous"}, "city": {"Lagos"}}
	rec := b.post("/onboarding/business?step=2", form)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/onboarding/business?step=1", rec.Header().Get("Location"))

	body := b.get("/onboarding/business?step=1").Body.String()
	assert.Contains(t, body, "slug=company")
	assert.Contains(t, body, "company=Ola Express Ltd")
}

func TestOnboardingSubmitReturnsToFirstInvalidPage(t *testing.T) {
	e := newTestEnv(t)
	b := newBrowser(t, onboardingRouter(e))
	signInMerchant(t, e, b, model.UserTypeBusiness)

	require.Equal(t, http.StatusSeeOther, b.post("/onboarding/business?step=1", businessAnswers[0]).Code)

	// Jump straight to the last page, skipping contact and director.
	form := url.Values{"action": {"submit"}}
	for k, v := range businessAnswers[3] {
		form[k] = v
	}
	rec := b.post("/onboarding/business?step=4", form)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "slug=contact")
	assert.Contains(t, body, "[business_email:")
	assert.Contains(t, body, "[director_bvn:")
	assert.Nil(t, e.backend.submitted)
}

func TestOnboardingSubmit(t *testing.T) {
	e := newTestEnv(t)
	b := newBrowser(t, onboardingRouter(e))
	signInMerchant(t, e, b, model.UserTypeBusiness)
	e.backend.profile = &model.User{Type: model.UserTypeBusiness, Status: model.StatusPending, VerificationCount: 1}

	for i, answers := range businessAnswers[:3] {
		rec := b.post("/onboarding/business?step="+strconv.Itoa(i+1), answers)
		require.Equal(t, http.StatusSeeOther, rec.Code, "step %d", i+1)
	}
	form := url.Values{"action": {"submit"}}
	for k, v := range businessAnswers[3] {
		form[k] = v
	}
	rec := b.post("/onboarding/business?step=4", form)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	require.NotNil(t, e.backend.submitted)
	company := e.backend.submitted["company"].(map[string]string)
	assert.Equal(t, "Ola Express Ltd", company["name"])
	director := e.backend.submitted["director"].(map[string]string)
	assert.Equal(t, "08031234568", director["phone"])
	settlement := e.backend.submitted["settlement"].(map[string]string)
	assert.Equal(t, "0123456789", settlement["accountNumber"])

	// The refreshed profile shows the submission, so the wizard is closed.
	rec = b.get("/onboarding/business?step=1")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestOnboardingSubmitFallsBackWhenRefreshFails(t *testing.T) {
	e := newTestEnv(t)
	b := newBrowser(t, onboardingRouter(e))
	signInMerchant(t, e, b, model.UserTypeBusiness)

	for i, answers := range businessAnswers[:3] {
		require.Equal(t, http.StatusSeeOther, b.post("/onboarding/business?step="+strconv.Itoa(i+1), answers).Code)
	}
	form := url.Values{"action": {"submit"}}
	for k, v := range businessAnswers[3] {
		form[k] = v
	}
	require.Equal(t, http.StatusSeeOther, b.post("/onboarding/business?step=4", form).Code)

	rec := b.get("/onboarding")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestOnboardingGuarantorMustDiffer(t *testing.T) {
	e := newTestEnv(t)
	b := newBrowser(t, onboardingRouter(e))
	signInMerchant(t, e, b, model.UserTypeIndividual)

	rec := b.post("/onboarding/individual?step=4", url.Values{
		"guarantor_name":         {"Chidi Obi"},
		"guarantor_email":        {"OPS@ola.ng"},
		"guarantor_phone":        {"08031234567"},
		"guarantor_relationship": {"sibling"},
		"guarantor_address":      {"3 Allen Avenue"},
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "[guarantor_email: Your guarantor must use a different email address]")
	assert.Contains(t, body, "[guarantor_phone: Your guarantor must use a different phone number]")
}
