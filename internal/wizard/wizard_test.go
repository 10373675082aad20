// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package wizard

import (
	"errors"
	"net/url"
	"testing"

	"github.com/chimailo/skippa/internal/apperr"
)

func signupWizard() *Wizard {
	return &Wizard{
		Name: "signup",
		Pages: []Page{
			{Slug: "account", Fields: []string{"email", "password", "confirm"}},
			{Slug: "contact", Fields: []string{"phone"}},
			{Slug: "bank", Fields: []string{"account_number", "bank"}},
		},
		Rules: map[string][]Rule{
			"email":          {Required(), Email()},
			"password":       {Required(), MinLen(8)},
			"confirm":        {Required(), Match("password", "password")},
			"phone":          {Required(), Phone()},
			"account_number": {Required(), Digits(10)},
			"bank":           {Required(), OneOf("gtb", "access")},
		},
	}
}

func complete() Values {
	return Values{
		"email":          "ada@example.com",
		"password":       "Secret123!",
		"confirm":        "Secret123!",
		"phone":          "0803 123 4567",
		"account_number": "0123456789",
		"bank":           "gtb",
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind != apperr.Validation {
		t.Fatalf("error = %v, want validation error", err)
	}
	return e.Fields
}

func TestNextGatesOnCurrentPage(t *testing.T) {
	w := signupWizard()
	c := w.Seed(0)

	err := c.Next(Values{"email": "nope", "password": "short"})
	fields := fieldErrors(t, err)
	for _, f := range []string{"email", "password", "confirm"} {
		if fields[f] == "" {
			t.Errorf("missing error for %s", f)
		}
	}
	if _, ok := fields["phone"]; ok {
		t.Error("fields from later pages must not be validated")
	}
	if c.Index() != 0 {
		t.Errorf("Index = %d after failed Next, want 0", c.Index())
	}

	if err := c.Next(complete()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if c.Index() != 1 {
		t.Errorf("Index = %d, want 1", c.Index())
	}
}

func TestPrevious(t *testing.T) {
	c := signupWizard().Seed(1)
	if err := c.Previous(); err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if !c.IsFirst() {
		t.Error("expected first page")
	}
	if err := c.Previous(); !errors.Is(err, ErrNoPrevious) {
		t.Errorf("Previous on first page error = %v", err)
	}
}

func TestSeedClamps(t *testing.T) {
	w := signupWizard()
	tests := []struct{ in, want int }{{-3, 0}, {0, 0}, {2, 2}, {99, 2}}
	for _, tt := range tests {
		if got := w.Seed(tt.in).Index(); got != tt.want {
			t.Errorf("Seed(%d).Index() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSubmitRevalidatesEverything(t *testing.T) {
	c := signupWizard().Seed(2)
	if !c.IsLast() {
		t.Fatal("deep link to last page should land there")
	}

	// Only the last page was filled in.
	err := c.Submit(Values{"account_number": "0123456789", "bank": "gtb"})
	fields := fieldErrors(t, err)
	if fields["email"] == "" || fields["phone"] == "" {
		t.Errorf("earlier pages not validated: %v", fields)
	}
	if c.Index() != 0 {
		t.Errorf("Index = %d, want first invalid page 0", c.Index())
	}

	c = signupWizard().Seed(2)
	if err := c.Submit(complete()); err != nil {
		t.Errorf("Submit(complete) = %v", err)
	}
}

func TestSubmitOnlyOnLastPage(t *testing.T) {
	c := signupWizard().Seed(0)
	if err := c.Submit(complete()); !errors.Is(err, ErrNotLastPage) {
		t.Errorf("Submit on first page error = %v", err)
	}
}

func TestCrossCheckRunsWithTouchedPage(t *testing.T) {
	w := signupWizard()
	w.Checks = []CrossCheck{{
		Fields: []string{"phone"},
		Check: func(v Values) map[string]string {
			if v.Get("phone") == "08031234567" {
				return map[string]string{"phone": "Number already used"}
			}
			return nil
		},
	}}

	vals := complete()
	vals["phone"] = "08031234567"

	if err := w.Seed(0).Next(vals); err != nil {
		t.Errorf("cross check ran on unrelated page: %v", err)
	}
	fields := fieldErrors(t, w.Seed(1).Next(vals))
	if fields["phone"] != "Number already used" {
		t.Errorf("phone error = %q", fields["phone"])
	}
}

func TestProgress(t *testing.T) {
	cur, total := signupWizard().Seed(1).Progress()
	if cur != 2 || total != 3 {
		t.Errorf("Progress = %d/%d, want 2/3", cur, total)
	}
}

func TestFromFormAndMerge(t *testing.T) {
	v := FromForm(url.Values{"email": {"  ada@example.com "}, "empty": {}})
	if v.Get("email") != "ada@example.com" {
		t.Errorf("email = %q", v.Get("email"))
	}
	if _, ok := v["empty"]; ok {
		t.Error("empty form field should be skipped")
	}

	merged := Values{"a": "1", "b": "2"}.Merge(Values{"b": "3"})
	if merged.Get("a") != "1" || merged.Get("b") != "3" {
		t.Errorf("Merge = %v", merged)
	}
}
