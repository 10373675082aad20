// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package wizard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Rule checks one field and returns a message, or "" when the value passes.
// all holds every submitted value for rules that compare fields.
type Rule func(value string, all Values) string

// Every rule except Required passes an empty value; combine with Required
// for mandatory fields.

// validate is safe for concurrent use and caches parsed tags.
var validate = validator.New()

// DateLayout is the HTML date input format.
const DateLayout = "2006-01-02"

// check runs tag against v and returns the first failure as a message.
func check(v, tag string) string {
	return message(validate.Var(v, tag))
}

// message maps a validator failure to the text shown next to the field.
func message(err error) string {
	if err == nil {
		return ""
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "Enter a valid value"
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "len", "number":
		return "Must contain only digits of the required length"
	case "oneof":
		return "Select one of the available options"
	case "datetime":
		return "Enter a valid date"
	case "eqfield", "eqcsfield":
		return "Must match"
	default:
		return "Enter a valid value"
	}
}

// Required rejects empty values.
func Required() Rule {
	return func(v string, _ Values) string {
		return check(strings.TrimSpace(v), "required")
	}
}

// Email requires a bare address with a dotted domain, such as ada@example.com.
func Email() Rule {
	return func(v string, _ Values) string {
		if msg := check(v, "omitempty,email"); msg != "" {
			return msg
		}
		if v != "" && !strings.Contains(v[strings.LastIndex(v, "@"):], ".") {
			return "Enter a valid email address"
		}
		return ""
	}
}

var phoneRe = regexp.MustCompile(`^(\+?234|0)[789][01]\d{8}$`)

// Phone accepts Nigerian mobile numbers: 08031234567, 2348031234567 or
// +2348031234567. Spaces and dashes are ignored.
func Phone() Rule {
	return func(v string, _ Values) string {
		if v == "" {
			return ""
		}
		if !phoneRe.MatchString(NormalizePhone(v)) {
			return "Enter a valid phone number"
		}
		return ""
	}
}

// NormalizePhone strips spaces, dashes and brackets.
func NormalizePhone(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, v)
}

// Digits requires exactly n decimal digits, as for account or BVN numbers.
func Digits(n int) Rule {
	tag := fmt.Sprintf("omitempty,len=%d,number", n)
	return func(v string, _ Values) string {
		if check(v, tag) != "" {
			return fmt.Sprintf("Must be exactly %d digits", n)
		}
		return ""
	}
}

// MinLen requires at least n characters.
func MinLen(n int) Rule {
	tag := fmt.Sprintf("omitempty,min=%d", n)
	return func(v string, _ Values) string {
		return check(v, tag)
	}
}

// MaxLen allows at most n characters.
func MaxLen(n int) Rule {
	tag := fmt.Sprintf("max=%d", n)
	return func(v string, _ Values) string {
		return check(v, tag)
	}
}

// OneOf restricts the value to the given options. Options must not contain
// spaces or commas.
func OneOf(options ...string) Rule {
	tag := "omitempty,oneof=" + strings.Join(options, " ")
	return func(v string, _ Values) string {
		return check(v, tag)
	}
}

// Date requires a YYYY-MM-DD date.
func Date() Rule {
	return func(v string, _ Values) string {
		return check(v, "omitempty,datetime="+DateLayout)
	}
}

// Match requires the value to equal another field, as for password confirmation.
func Match(field, label string) Rule {
	return func(v string, all Values) string {
		if message(validate.VarWithValue(v, all.Get(field), "eqcsfield")) != "" {
			return "Must match " + label
		}
		return ""
	}
}
