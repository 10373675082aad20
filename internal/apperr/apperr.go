// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package apperr defines the tagged error type shared by the API client,
// the session store and the handlers, and turns errors into user notifications.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and presentation.
type Kind int

// Error kinds.
const (
	RequestFailed Kind = iota
	Validation
	Authentication
	IncompleteSignup
	SessionExpired
	Unauthorized
)

// String returns the symbolic name of the kind.
func (k Kind) String() string {
	switch k {
	case Validation:
		return "ValidationError"
	case Authentication:
		return "AuthenticationError"
	case IncompleteSignup:
		return "IncompleteSignupError"
	case SessionExpired:
		return "SessionExpiredError"
	case Unauthorized:
		return "UnauthorizedError"
	default:
		return "RequestFailedError"
	}
}

// GenericMessage is shown when the server supplies no message.
const GenericMessage = "Sorry, something went wrong. Please try again."

// Error is the normalized error shape. Name and Message mirror the backend
// error envelope; Data holds its raw data payload.
type Error struct {
	Kind    Kind
	Name    string
	Message string
	Status  int
	Data    json.RawMessage
	Fields  map[string]string // validation errors keyed by field name
	Err     error
}

func (e *Error) Error() string {
	name := e.Name
	if name == "" {
		name = e.Kind.String()
	}
	if e.Message == "" {
		return name
	}
	return name + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, apperr.ErrUnauthorized) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Name == "" && t.Message == ""
}

// Sentinels for errors.Is checks.
var (
	ErrValidation       = &Error{Kind: Validation}
	ErrAuthentication   = &Error{Kind: Authentication}
	ErrIncompleteSignup = &Error{Kind: IncompleteSignup}
	ErrSessionExpired   = &Error{Kind: SessionExpired}
	ErrUnauthorized     = &Error{Kind: Unauthorized}
	ErrRequestFailed    = &Error{Kind: RequestFailed}
)

// New creates an error of the given kind.
func New(kind Kind, name, message string) *Error {
	return &Error{Kind: kind, Name: name, Message: message}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Invalid creates a validation error from a field → message map.
func Invalid(fields map[string]string) *Error {
	return &Error{
		Kind:    Validation,
		Name:    "ValidationError",
		Message: "Please correct the highlighted fields.",
		Fields:  fields,
	}
}

// Expired returns the error surfaced when a session or hand-off slot has lapsed.
func Expired(message string) *Error {
	if message == "" {
		message = "Your session has expired. Please log in again."
	}
	return &Error{Kind: SessionExpired, Name: "SessionExpiredError", Message: message, Status: http.StatusUnauthorized}
}

// KindOf returns the kind of err, RequestFailed for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return RequestFailed
}

// As extracts *Error from err, converting foreign errors into RequestFailed.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: RequestFailed, Message: GenericMessage, Err: err}
}

// DataField decodes a string field from the error's data payload.
func (e *Error) DataField(key string) string {
	if len(e.Data) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(e.Data, &m); err != nil {
		return ""
	}
	if v, ok := m[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}
