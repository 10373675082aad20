// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package otp implements the account verification step: a timed window for
// entering a numeric code, resend once the window lapses, and the sign-in
// that follows a successful verification.
package otp

import (
	"encoding/gob"
	"errors"
	"math"
	"time"
)

func init() {
	gob.Register(Flow{})
}

// Defaults observed on the verification screen.
const (
	DefaultLength = 6
	DefaultWindow = 120 * time.Second
)

// State is the position of a Flow.
type State int

const (
	Idle State = iota
	AwaitingInput
	Submitting
	Success
	Failed // retryable
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting_input"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

var (
	ErrInputDisabled  = errors.New("otp: input is disabled")
	ErrInvalidInput   = errors.New("otp: code must be digits only")
	ErrNotSubmittable = errors.New("otp: code cannot be submitted")
	ErrResendDisabled = errors.New("otp: resend is not available yet")
)

// Flow is one verification attempt for an email. It holds no timers; every
// predicate takes the current time.
type Flow struct {
	Email     string
	Token     string
	State     State
	Input     string
	Deadline  time.Time
	Resending bool
	Error     string
	Length    int
	Window    time.Duration
}

// NewFlow returns an Idle flow. Zero length or window use the defaults.
func NewFlow(email, token string, length int, window time.Duration) *Flow {
	if length <= 0 {
		length = DefaultLength
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Flow{Email: email, Token: token, Length: length, Window: window}
}

// Start enters AwaitingInput and arms the countdown.
func (f *Flow) Start(now time.Time) {
	f.State = AwaitingInput
	f.Input = ""
	f.Error = ""
	f.Deadline = now.Add(f.Window)
}

// Remaining is the time left on the countdown, never negative.
func (f *Flow) Remaining(now time.Time) time.Duration {
	if f.Deadline.IsZero() {
		return 0
	}
	if d := f.Deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// RemainingSeconds rounds Remaining up to whole seconds for display.
func (f *Flow) RemainingSeconds(now time.Time) int {
	return int(math.Ceil(f.Remaining(now).Seconds()))
}

// Expired reports whether a started countdown has reached zero.
func (f *Flow) Expired(now time.Time) bool {
	return f.State != Idle && f.Remaining(now) == 0
}

// InputEnabled reports whether the code field accepts input.
func (f *Flow) InputEnabled(now time.Time) bool {
	return (f.State == AwaitingInput || f.State == Failed) && !f.Expired(now)
}

// CanSubmit requires exactly Length digits while the countdown runs and no
// request is in flight.
func (f *Flow) CanSubmit(now time.Time) bool {
	return f.InputEnabled(now) && !f.Resending && len(f.Input) == f.Length && isDigits(f.Input)
}

// CanResend is true only after the countdown reaches zero and while no
// resend is in flight.
func (f *Flow) CanResend(now time.Time) bool {
	return f.Expired(now) && !f.Resending && f.State != Submitting && f.State != Success
}

// SetInput replaces the entered code. Non-digits and codes longer than
// Length are rejected and leave the input unchanged.
func (f *Flow) SetInput(now time.Time, code string) error {
	if !f.InputEnabled(now) {
		return ErrInputDisabled
	}
	if !isDigits(code) || len(code) > f.Length {
		return ErrInvalidInput
	}
	f.Input = code
	f.Error = ""
	return nil
}

// BeginSubmit moves to Submitting. It fails when CanSubmit is false, which
// also guards against a second submit while one is in flight.
func (f *Flow) BeginSubmit(now time.Time) error {
	if !f.CanSubmit(now) {
		return ErrNotSubmittable
	}
	f.State = Submitting
	f.Error = ""
	return nil
}

// Reject returns to AwaitingInput with the input cleared. The deadline is
// kept: a failed attempt still consumes time.
func (f *Flow) Reject(msg string) {
	f.State = AwaitingInput
	f.Input = ""
	f.Error = msg
}

// Verified marks the code as accepted.
func (f *Flow) Verified() {
	f.State = Success
	f.Error = ""
}

// Fail records a retryable failure that was not a code rejection.
func (f *Flow) Fail(msg string) {
	f.State = Failed
	f.Error = msg
}

// BeginResend marks a resend as in flight.
func (f *Flow) BeginResend(now time.Time) error {
	if !f.CanResend(now) {
		return ErrResendDisabled
	}
	f.Resending = true
	f.Error = ""
	return nil
}

// Resent clears the input, restarts the countdown and replaces the token
// with the one the backend issued for the new code.
func (f *Flow) Resent(token string, now time.Time) {
	f.Resending = false
	if token != "" {
		f.Token = token
	}
	f.Start(now)
}

// ResendFailed ends an unsuccessful resend; resend stays available.
func (f *Flow) ResendFailed(msg string) {
	f.Resending = false
	f.Error = msg
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
