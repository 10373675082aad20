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
	"github.com/chimailo/skippa/internal/handoff"
	"github.com/chimailo/skippa/internal/middleware"
	"github.com/chimailo/skippa/internal/model"
	"github.com/chimailo/skippa/internal/render"
	"github.com/chimailo/skippa/internal/session"
	"github.com/chimailo/skippa/internal/wizard"
)

// Redirect targets.
const (
	redirectLogin      = "/login"
	redirectWelcome    = "/onboarding/welcome"
	redirectOnboarding = "/onboarding"
)

// AccountBackend is the part of the API client used by the account screens.
type AccountBackend interface {
	Register(ctx context.Context, req apiclient.RegisterRequest) (*apiclient.Verification, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	ResendOTP(ctx context.Context, email string) (*apiclient.Verification, error)
}

// AuthHandler handles sign-in, sign-out, signup and password reset.
type AuthHandler struct {
	renderer        *render.Renderer
	store           *session.Store
	backend         AccountBackend
	handoff         *handoff.Channel
	loginProtection *middleware.LoginProtection
}

// NewAuthHandler creates a new AuthHandler. lp may be nil.
func NewAuthHandler(renderer *render.Renderer, store *session.Store, backend AccountBackend, ho *handoff.Channel, lp *middleware.LoginProtection) *AuthHandler {
	return &AuthHandler{
		renderer:        renderer,
		store:           store,
		backend:         backend,
		handoff:         ho,
		loginProtection: lp,
	}
}

type loginView struct {
	Callback string
}

// LoginForm renders the login page.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.renderLogin(w, r, http.StatusOK, wizard.Values{"email": q.Get("email")}, q.Get(session.CallbackParam), nil, nil)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, form wizard.Values, callback string, errs map[string]string, n *apperr.Notice) {
	h.renderer.RenderStatus(w, r, status, "auth/login", render.TemplateData{
		Title:  "Log in",
		Form:   withoutSecrets(form),
		Errors: errs,
		Notice: n,
		Data:   loginView{Callback: callback},
	})
}

// Login handles the login form submission. An account that has not
// finished signup is sent to OTP verification instead of failing.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.store, redirectLogin) {
		return
	}
	ctx := r.Context()
	form := readForm(r, loginForm)
	callback := r.PostFormValue(session.CallbackParam)

	if errs := validateForm(loginForm, form); errs != nil {
		h.renderLogin(w, r, http.StatusUnprocessableEntity, form, callback, errs, nil)
		return
	}
	email := form.Get("email")

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsAccountLocked(email); locked {
			slog.WarnContext(ctx, "login attempt on locked account", "email", email)
			n := notice(noticeError, "Account Locked", middleware.LockedMessage(remaining))
			h.renderLogin(w, r, http.StatusTooManyRequests, form, callback, nil, &n)
			return
		}
	}

	sess, err := h.store.SignIn(ctx, session.Credentials{Email: email, Password: form.Get("password")})
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrIncompleteSignup):
		slog.InfoContext(ctx, "login for unverified account", "email", email)
		h.continueSignup(w, r, email, form.Get("password"), apperr.As(err).DataField("token"))
		return
	case errors.Is(err, apperr.ErrAuthentication):
		slog.InfoContext(ctx, "login failed", "email", email)
		n := failureNotice(err)
		if h.loginProtection != nil {
			if locked, lockFor := h.loginProtection.RecordFailedAttempt(email); locked {
				slog.WarnContext(ctx, "account locked due to failed attempts", "email", email, "duration", lockFor.String())
				ln := notice(noticeError, "Account Locked", middleware.LockedMessage(lockFor))
				n = &ln
			}
		}
		h.renderLogin(w, r, http.StatusUnauthorized, form, callback, nil, n)
		return
	default:
		slog.WarnContext(ctx, "login request failed", "error", err)
		h.renderLogin(w, r, http.StatusBadGateway, form, callback, nil, failureNotice(err))
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(email)
	}

	if sess.User == nil {
		if refreshed, err := h.store.Refresh(ctx); err == nil {
			sess = refreshed
		} else {
			slog.WarnContext(ctx, "profile fetch after login failed", "error", err)
		}
	}

	var user model.User
	if sess.User != nil {
		user = *sess.User
	}
	client := middleware.ParseClient(r.UserAgent())
	slog.InfoContext(ctx, "user logged in",
		"user_id", user.ID,
		"user_type", user.Type,
		"browser", client.Browser,
		"os", client.OS,
		"device", client.Device,
	)

	http.Redirect(w, r, session.SafeCallback(callback, session.HomePath(sess.User)), http.StatusSeeOther)
}

// continueSignup holds the password for the sign-in that follows OTP
// verification and sends the user to the verification screen with a
// freshly issued code.
func (h *AuthHandler) continueSignup(w http.ResponseWriter, r *http.Request, email, password, token string) {
	ctx := r.Context()

	v, err := h.backend.ResendOTP(ctx, email)
	switch {
	case err == nil:
		token = v.Token
	case token == "":
		backendError(w, r, h.store, redirectLogin, err)
		return
	default:
		slog.WarnContext(ctx, "issuing fresh verification code failed, reusing token", "error", err)
	}

	if err := h.handoff.Store(w, r, password); err != nil {
		logAndInternalError(w, r, "holding password for verification", "error", err)
		return
	}

	resetVerification(ctx, h.store)
	flashAndRedirect(w, r, h.store, verifyURL(email, token),
		notice(noticeInfo, "Verify Your Account", "We sent a verification code to "+email+"."))
}

// Logout ends the session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var userID string
	if u := session.UserFromContext(ctx); u != nil {
		userID = u.ID
	}

	if err := h.store.SignOut(ctx); err != nil {
		slog.ErrorContext(ctx, "session destroy error", "error", err)
	}
	h.handoff.Clear(w, r)

	slog.InfoContext(ctx, "user logged out", "user_id", userID)
	flashAndRedirect(w, r, h.store, redirectLogin, notice(noticeInfo, "Signed Out", "You have been signed out."))
}

// RegisterForm renders the signup page.
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	form := wizard.Values{"type": string(model.UserTypeBusiness)}
	if t := r.URL.Query().Get("type"); t == string(model.UserTypeIndividual) {
		form["type"] = t
	}
	h.renderRegister(w, r, http.StatusOK, form, nil, nil)
}

func (h *AuthHandler) renderRegister(w http.ResponseWriter, r *http.Request, status int, form wizard.Values, errs map[string]string, n *apperr.Notice) {
	h.renderer.RenderStatus(w, r, status, "auth/register", render.TemplateData{
		Title:  "Create an account",
		Form:   withoutSecrets(form),
		Errors: errs,
		Notice: n,
	})
}

// Register creates the account and continues to OTP verification.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.store, "/register") {
		return
	}
	ctx := r.Context()
	form := readForm(r, registerForm)

	if errs := validateForm(registerForm, form); errs != nil {
		h.renderRegister(w, r, http.StatusUnprocessableEntity, form, errs, nil)
		return
	}

	req := apiclient.RegisterRequest{
		Name:     form.Get("name"),
		Email:    form.Get("email"),
		Phone:    wizard.NormalizePhone(form.Get("phone")),
		Password: form.Get("password"),
		Type:     model.UserType(form.Get("type")),
	}
	if req.Type == model.UserTypeBusiness {
		req.Company = form.Get("company")
	}

	v, err := h.backend.Register(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "signup failed", "email", req.Email, "error", err)
		h.renderRegister(w, r, http.StatusBadGateway, form, nil, failureNotice(err))
		return
	}

	email := v.Email
	if email == "" {
		email = req.Email
	}
	if err := h.handoff.Store(w, r, req.Password); err != nil {
		logAndInternalError(w, r, "holding password for verification", "error", err)
		return
	}

	slog.InfoContext(ctx, "account registered", "email", email, "type", req.Type)
	resetVerification(ctx, h.store)
	flashAndRedirect(w, r, h.store, verifyURL(email, v.Token),
		notice(noticeSuccess, "Account Created", "Enter the code we sent to "+email+" to verify your account."))
}

// ForgotPasswordForm renders the password reset request page.
func (h *AuthHandler) ForgotPasswordForm(w http.ResponseWriter, r *http.Request) {
	h.renderer.RenderPage(w, r, "auth/forgot-password", render.TemplateData{Title: "Forgot password"})
}

// ForgotPassword requests a reset link.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.store, "/forgot-password") {
		return
	}
	form := readForm(r, forgotPasswordForm)

	rerender := func(status int, errs map[string]string, n *apperr.Notice) {
		h.renderer.RenderStatus(w, r, status, "auth/forgot-password", render.TemplateData{
			Title:  "Forgot password",
			Form:   form,
			Errors: errs,
			Notice: n,
		})
	}

	if errs := validateForm(forgotPasswordForm, form); errs != nil {
		rerender(http.StatusUnprocessableEntity, errs, nil)
		return
	}

	if err := h.backend.ForgotPassword(r.Context(), form.Get("email")); err != nil {
		slog.WarnContext(r.Context(), "password reset request failed", "error", err)
		rerender(http.StatusBadGateway, nil, failureNotice(err))
		return
	}

	flashSuccess(w, r, h.store, redirectLogin, "Check Your Email",
		"If an account exists for "+form.Get("email")+", a password reset link is on its way.")
}

// ResetPasswordForm renders the new password page for a reset link.
func (h *AuthHandler) ResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		flashAndRedirect(w, r, h.store, "/forgot-password",
			notice(noticeError, "Invalid Link", "This reset link is incomplete. Request a new one."))
		return
	}
	h.renderer.RenderPage(w, r, "auth/reset-password", render.TemplateData{
		Title: "Reset password",
		Form:  map[string]string{"token": token},
	})
}

// ResetPassword sets the new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.store, "/forgot-password") {
		return
	}
	form := readForm(r, resetPasswordForm)

	rerender := func(status int, errs map[string]string, n *apperr.Notice) {
		h.renderer.RenderStatus(w, r, status, "auth/reset-password", render.TemplateData{
			Title:  "Reset password",
			Form:   withoutSecrets(form),
			Errors: errs,
			Notice: n,
		})
	}

	if errs := validateForm(resetPasswordForm, form); errs != nil {
		rerender(http.StatusUnprocessableEntity, errs, nil)
		return
	}

	if err := h.backend.ResetPassword(r.Context(), form.Get("token"), form.Get("password")); err != nil {
		slog.WarnContext(r.Context(), "password reset failed", "error", err)
		rerender(http.StatusBadGateway, nil, failureNotice(err))
		return
	}

	flashSuccess(w, r, h.store, redirectLogin, "Password Updated", "You can now log in with your new password.")
}
