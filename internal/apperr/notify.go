// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package apperr

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DismissAfter is how long a notification stays on screen.
const DismissAfter = 5 * time.Second

// Notice is a dismissible, timed notification.
type Notice struct {
	Title   string
	Message string
	Type    string // error, success, info, warning
	Timeout time.Duration
}

// Humanize splits a symbolic error name into capitalised words:
// "IncompleteSignupError" → "Incomplete Signup Error", "invalid_otp" → "Invalid Otp".
func Humanize(name string) string {
	var words []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r) && len(cur) > 0:
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()

	// Casers are stateful; one per call.
	caser := cases.Title(language.English)
	for i, w := range words {
		if isAllUpper(w) && len(w) > 1 {
			continue // keep acronyms like OTP
		}
		words[i] = caser.String(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

func isAllUpper(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// Notification converts err into a notification. Validation errors are
// resolved inline on the form and produce none.
func Notification(err error) (Notice, bool) {
	if err == nil {
		return Notice{}, false
	}
	e := As(err)
	if e.Kind == Validation {
		return Notice{}, false
	}

	name := e.Name
	if name == "" {
		name = e.Kind.String()
	}
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = GenericMessage
	}

	return Notice{
		Title:   Humanize(name),
		Message: message,
		Type:    "error",
		Timeout: DismissAfter,
	}, true
}
