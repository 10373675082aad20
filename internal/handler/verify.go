// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chimailo/skippa/internal/apperr"
	"github.com/chimailo/skippa/internal/handoff"
	"github.com/chimailo/skippa/internal/otp"
	"github.com/chimailo/skippa/internal/render"
	"github.com/chimailo/skippa/internal/session"
)

// flowKey holds the browser's current verification attempt in the session.
const flowKey = "otp_flow"

// VerifyPath is the account verification screen.
const VerifyPath = "/verify-account"

// VerifyHandler drives the OTP verification screen.
type VerifyHandler struct {
	renderer *render.Renderer
	store    *session.Store
	handoff  *handoff.Channel
	verifier *otp.Verifier
	length   int
	window   time.Duration
	clock    otp.Clock
}

// NewVerifyHandler creates a VerifyHandler. Zero length or window use the
// otp defaults.
func NewVerifyHandler(renderer *render.Renderer, store *session.Store, backend otp.Backend, ho *handoff.Channel, length int, window time.Duration) *VerifyHandler {
	h := &VerifyHandler{
		renderer: renderer,
		store:    store,
		handoff:  ho,
		length:   length,
		window:   window,
		clock:    otp.RealClock,
	}
	h.verifier = otp.NewVerifier(backend, h.signIn, h.now)
	return h
}

func (h *VerifyHandler) now() time.Time {
	return h.clock.Now()
}

func (h *VerifyHandler) signIn(ctx context.Context, email, password string) error {
	_, err := h.store.SignIn(ctx, session.Credentials{Email: email, Password: password})
	return err
}

func verifyURL(email, token string) string {
	return withQuery(VerifyPath, url.Values{"email": {email}, "token": {token}})
}

func (h *VerifyHandler) loadFlow(ctx context.Context) *otp.Flow {
	f, ok := h.store.Manager().Get(ctx, flowKey).(otp.Flow)
	if !ok {
		return nil
	}
	return &f
}

func (h *VerifyHandler) saveFlow(ctx context.Context, f *otp.Flow) {
	h.store.Manager().Put(ctx, flowKey, *f)
}

func (h *VerifyHandler) dropFlow(ctx context.Context) {
	resetVerification(ctx, h.store)
}

// resetVerification forgets the running flow so the next visit to the
// verification screen starts from the token in its URL.
func resetVerification(ctx context.Context, store *session.Store) {
	store.Manager().Remove(ctx, flowKey)
}

type verifyView struct {
	Email         string
	Length        int
	SecondsLeft   int
	WindowSeconds int
	InputEnabled  bool
	CanSubmit     bool
	CanResend     bool
	Error         string
	State         string
}

// Show renders the verification screen, starting a flow for the email and
// token in the URL unless a flow for that email is already running. A
// running flow keeps its token and deadline; an old or edited token in the
// URL is redirected to the current one.
func (h *VerifyHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	email := strings.TrimSpace(q.Get("email"))
	token := q.Get("token")
	if email == "" {
		http.Redirect(w, r, redirectLogin, http.StatusSeeOther)
		return
	}

	now := h.clock.Now()
	f := h.loadFlow(ctx)
	switch {
	case f == nil || f.State == otp.Success || !strings.EqualFold(f.Email, email):
		f = otp.NewFlow(email, token, h.length, h.window)
		f.Start(now)
		h.saveFlow(ctx, f)
	case token != "" && token != f.Token:
		http.Redirect(w, r, verifyURL(f.Email, f.Token), http.StatusSeeOther)
		return
	}

	h.renderer.RenderPage(w, r, "auth/verify-account", render.TemplateData{
		Title: "Verify your account",
		Data: verifyView{
			Email:         f.Email,
			Length:        f.Length,
			SecondsLeft:   f.RemainingSeconds(now),
			WindowSeconds: int(f.Window / time.Second),
			InputEnabled:  f.InputEnabled(now),
			CanSubmit:     f.CanSubmit(now),
			CanResend:     f.CanResend(now),
			Error:         f.Error,
			State:         f.State.String(),
		},
	})
}

// expiredRedirect ends verification when there is no flow to continue.
func (h *VerifyHandler) expiredRedirect(w http.ResponseWriter, r *http.Request) {
	flashAndRedirect(w, r, h.store, redirectLogin,
		notice(noticeError, "Session Expired", otp.ExpiredMessage))
}

// Submit checks the entered code and signs the account in with the password
// held since login or signup.
func (h *VerifyHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f := h.loadFlow(ctx)
	if f == nil {
		h.expiredRedirect(w, r)
		return
	}
	if !parseFormOrRedirect(w, r, h.store, verifyURL(f.Email, f.Token)) {
		return
	}
	back := verifyURL(f.Email, f.Token)
	now := h.clock.Now()

	if err := f.SetInput(now, strings.TrimSpace(r.PostFormValue("otp"))); err != nil {
		f.Error = inputMessage(err, f.Length)
		h.saveFlow(ctx, f)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if !f.CanSubmit(now) {
		f.Error = fmt.Sprintf("Enter the %d-digit code.", f.Length)
		h.saveFlow(ctx, f)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	held := otp.PasswordFunc(func(context.Context) (string, error) {
		return h.handoff.Retrieve(r)
	})
	err := h.verifier.Submit(ctx, f, held)

	var signInErr *otp.SignInError
	switch {
	case err == nil:
		h.dropFlow(ctx)
		h.handoff.Clear(w, r)
		slog.InfoContext(ctx, "account verified and signed in", "email", f.Email)
		flashSuccess(w, r, h.store, redirectWelcome, "Account Verified", "Welcome to Skippa. Let's get your account set up.")

	case errors.Is(err, otp.ErrCodeRejected):
		slog.InfoContext(ctx, "verification code rejected", "email", f.Email)
		h.saveFlow(ctx, f)
		http.Redirect(w, r, back, http.StatusSeeOther)

	case errors.Is(err, apperr.ErrSessionExpired):
		h.dropFlow(ctx)
		h.handoff.Clear(w, r)
		flashAndRedirect(w, r, h.store, loginWithEmail(f.Email), *failureNotice(err))

	case errors.As(err, &signInErr):
		slog.WarnContext(ctx, "sign-in after verification failed", "email", f.Email, "error", err)
		h.dropFlow(ctx)
		h.handoff.Clear(w, r)
		flashAndRedirect(w, r, h.store, loginWithEmail(f.Email), notice(noticeWarning, "Account Verified",
			"Your account was verified but we could not sign you in: "+apperr.As(signInErr.Err).Message+" Please log in."))

	case errors.Is(err, otp.ErrNotSubmittable):
		h.saveFlow(ctx, f)
		http.Redirect(w, r, back, http.StatusSeeOther)

	default:
		slog.WarnContext(ctx, "verification request failed", "email", f.Email, "error", err)
		h.saveFlow(ctx, f)
		flashAndRedirect(w, r, h.store, back, *failureNotice(err))
	}
}

// Resend asks the backend for a new code once the countdown has ended.
func (h *VerifyHandler) Resend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f := h.loadFlow(ctx)
	if f == nil {
		h.expiredRedirect(w, r)
		return
	}
	back := verifyURL(f.Email, f.Token)

	err := h.verifier.Resend(ctx, f)
	switch {
	case err == nil:
		h.saveFlow(ctx, f)
		slog.InfoContext(ctx, "verification code resent", "email", f.Email)
		flashSuccess(w, r, h.store, verifyURL(f.Email, f.Token), "Code Sent", "A new code was sent to "+f.Email+".")
	case errors.Is(err, otp.ErrResendDisabled):
		f.Error = "You can request a new code when the countdown ends."
		h.saveFlow(ctx, f)
		http.Redirect(w, r, back, http.StatusSeeOther)
	default:
		slog.WarnContext(ctx, "resending verification code failed", "email", f.Email, "error", err)
		h.saveFlow(ctx, f)
		flashAndRedirect(w, r, h.store, back, *failureNotice(err))
	}
}

// Countdown streams the seconds left on the current flow as server-sent
// events. The stream ends at zero with an "expired" event, or when the
// client goes away.
func (h *VerifyHandler) Countdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f := h.loadFlow(ctx)
	if f == nil {
		http.Error(w, "No verification in progress", http.StatusNotFound)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-store")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	send := func(event string, secondsLeft int) error {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %d\n\n", event, secondsLeft); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	}

	err := otp.Countdown(ctx, h.clock, f.Deadline, func(left int) error {
		return send("tick", left)
	})
	if err != nil {
		if ctx.Err() == nil {
			slog.DebugContext(ctx, "countdown stream ended", "error", err)
		}
		return
	}
	_ = send("expired", 0)
}

func inputMessage(err error, length int) string {
	switch {
	case errors.Is(err, otp.ErrInputDisabled):
		return "This code has expired. Request a new one."
	case errors.Is(err, otp.ErrInvalidInput):
		return fmt.Sprintf("The code must be %d digits.", length)
	default:
		return apperr.GenericMessage
	}
}

func loginWithEmail(email string) string {
	return withQuery(redirectLogin, url.Values{"email": {email}})
}
