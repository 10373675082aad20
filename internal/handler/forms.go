// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/chimailo/skippa/internal/model"
	"github.com/chimailo/skippa/internal/wizard"
)

// Single-page forms reuse the wizard rules so every screen validates the
// same way before anything is sent to the backend.

const minPasswordLen = 8

func singlePage(name string, fields []string, rules map[string][]wizard.Rule, checks ...wizard.CrossCheck) *wizard.Wizard {
	return &wizard.Wizard{
		Name:   name,
		Pages:  []wizard.Page{{Slug: name, Fields: fields}},
		Rules:  rules,
		Checks: checks,
	}
}

var loginForm = singlePage("login",
	[]string{"email", "password"},
	map[string][]wizard.Rule{
		"email":    {wizard.Required(), wizard.Email()},
		"password": {wizard.Required()},
	},
)

var registerForm = singlePage("register",
	[]string{"name", "email", "phone", "type", "company", "password", "confirm_password"},
	map[string][]wizard.Rule{
		"name":             {wizard.Required(), wizard.MinLen(2), wizard.MaxLen(120)},
		"email":            {wizard.Required(), wizard.Email()},
		"phone":            {wizard.Required(), wizard.Phone()},
		"type":             {wizard.Required(), wizard.OneOf(string(model.UserTypeBusiness), string(model.UserTypeIndividual))},
		"company":          {wizard.MaxLen(120)},
		"password":         {wizard.Required(), wizard.MinLen(minPasswordLen)},
		"confirm_password": {wizard.Required(), wizard.Match("password", "password")},
	},
	wizard.CrossCheck{
		Fields: []string{"type", "company"},
		Check: func(v wizard.Values) map[string]string {
			if v.Get("type") == string(model.UserTypeBusiness) && v.Get("company") == "" {
				return map[string]string{"company": "Business accounts need a company name"}
			}
			return nil
		},
	},
)

var forgotPasswordForm = singlePage("forgot-password",
	[]string{"email"},
	map[string][]wizard.Rule{
		"email": {wizard.Required(), wizard.Email()},
	},
)

var resetPasswordForm = singlePage("reset-password",
	[]string{"token", "password", "confirm_password"},
	map[string][]wizard.Rule{
		"token":            {wizard.Required()},
		"password":         {wizard.Required(), wizard.MinLen(minPasswordLen)},
		"confirm_password": {wizard.Required(), wizard.Match("password", "password")},
	},
)

var profileForm = singlePage("profile",
	[]string{"name", "phone", "company"},
	map[string][]wizard.Rule{
		"name":    {wizard.Required(), wizard.MinLen(2), wizard.MaxLen(120)},
		"phone":   {wizard.Phone()},
		"company": {wizard.MaxLen(120)},
	},
)

var changePasswordForm = singlePage("change-password",
	[]string{"current_password", "new_password", "confirm_password"},
	map[string][]wizard.Rule{
		"current_password": {wizard.Required()},
		"new_password":     {wizard.Required(), wizard.MinLen(minPasswordLen)},
		"confirm_password": {wizard.Required(), wizard.Match("new_password", "new password")},
	},
)

var roleForm = singlePage("role",
	[]string{"name", "description"},
	map[string][]wizard.Rule{
		"name":        {wizard.Required(), wizard.MinLen(2), wizard.MaxLen(50)},
		"description": {wizard.MaxLen(200)},
	},
)

// readForm collects a form's fields from the parsed request body.
func readForm(r *http.Request, form *wizard.Wizard) wizard.Values {
	return wizard.Values(formValues(r, form.Fields()...))
}

// validateForm returns field errors, or nil when the values pass.
func validateForm(form *wizard.Wizard, values wizard.Values) map[string]string {
	if err := form.Validate(values); err != nil {
		return err.Fields
	}
	return nil
}
