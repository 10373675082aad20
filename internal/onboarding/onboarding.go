// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package onboarding defines the merchant verification wizards: one for
// businesses and one for individual riders, the latter with a guarantor.
package onboarding

import (
	"fmt"
	"strings"

	"github.com/chimailo/skippa/internal/model"
	"github.com/chimailo/skippa/internal/wizard"
)

// Variant names a wizard.
type Variant string

const (
	Business   Variant = "business"
	Individual Variant = "individual"
)

// ParseVariant validates a URL segment.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case Business, Individual:
		return v, nil
	default:
		return "", fmt.Errorf("unknown onboarding variant %q", s)
	}
}

// VariantFor returns the wizard matching the user's account type.
func VariantFor(u *model.User) Variant {
	if u != nil && u.Type == model.UserTypeIndividual {
		return Individual
	}
	return Business
}

// Options for select fields.
var (
	BusinessTypes = []string{"sole_proprietorship", "partnership", "limited_liability", "enterprise"}
	IDTypes       = []string{"nin", "drivers_license", "voters_card", "international_passport"}
	VehicleTypes  = []string{"bike", "car", "van", "truck"}
	Genders       = []string{"male", "female"}
	Relationships = []string{"parent", "sibling", "spouse", "relative", "employer", "friend"}
)

// Definition returns the wizard for variant. applicant is the signed-in
// merchant; the guarantor check compares against their contact details.
func Definition(variant Variant, applicant *model.User) *wizard.Wizard {
	if variant == Individual {
		return individualWizard(applicant)
	}
	return businessWizard()
}

func businessWizard() *wizard.Wizard {
	return &wizard.Wizard{
		Name: string(Business),
		Pages: []wizard.Page{
			{Slug: "company", Title: "Company details", Fields: []string{"company_name", "rc_number", "business_type", "incorporation_date"}},
			{Slug: "contact", Title: "Business contact", Fields: []string{"business_email", "business_phone", "address", "city", "state"}},
			{Slug: "director", Title: "Director", Fields: []string{"director_name", "director_email", "director_phone", "director_bvn"}},
			{Slug: "settlement", Title: "Settlement account", Fields: []string{"bank_name", "account_number", "account_name"}},
		},
		Rules: map[string][]wizard.Rule{
			"company_name":       {wizard.Required(), wizard.MinLen(2), wizard.MaxLen(120)},
			"rc_number":          {wizard.Required(), wizard.MinLen(5), wizard.MaxLen(12)},
			"business_type":      {wizard.Required(), wizard.OneOf(BusinessTypes...)},
			"incorporation_date": {wizard.Date()},
			"business_email":     {wizard.Required(), wizard.Email()},
			"business_phone":     {wizard.Required(), wizard.Phone()},
			"address":            {wizard.Required(), wizard.MaxLen(200)},
			"city":               {wizard.Required()},
			"state":              {wizard.Required()},
			"director_name":      {wizard.Required(), wizard.MinLen(2)},
			"director_email":     {wizard.Required(), wizard.Email()},
			"director_phone":     {wizard.Required(), wizard.Phone()},
			"director_bvn":       {wizard.Required(), wizard.Digits(11)},
			"bank_name":          {wizard.Required()},
			"account_number":     {wizard.Required(), wizard.Digits(10)},
			"account_name":       {wizard.Required(), wizard.MinLen(2)},
		},
	}
}

func individualWizard(applicant *model.User) *wizard.Wizard {
	w := &wizard.Wizard{
		Name: string(Individual),
		Pages: []wizard.Page{
			{Slug: "personal", Title: "Personal details", Fields: []string{"first_name", "last_name", "date_of_birth", "gender"}},
			{Slug: "identity", Title: "Identity", Fields: []string{"id_type", "id_number", "bvn", "address"}},
			{Slug: "vehicle", Title: "Vehicle", Fields: []string{"vehicle_type", "plate_number", "vehicle_model"}},
			{Slug: "guarantor", Title: "Guarantor", Fields: []string{"guarantor_name", "guarantor_email", "guarantor_phone", "guarantor_relationship", "guarantor_address"}},
		},
		Rules: map[string][]wizard.Rule{
			"first_name":             {wizard.Required(), wizard.MaxLen(60)},
			"last_name":              {wizard.Required(), wizard.MaxLen(60)},
			"date_of_birth":          {wizard.Required(), wizard.Date()},
			"gender":                 {wizard.Required(), wizard.OneOf(Genders...)},
			"id_type":                {wizard.Required(), wizard.OneOf(IDTypes...)},
			"id_number":              {wizard.Required(), wizard.MinLen(6), wizard.MaxLen(20)},
			"bvn":                    {wizard.Required(), wizard.Digits(11)},
			"address":                {wizard.Required(), wizard.MaxLen(200)},
			"vehicle_type":           {wizard.Required(), wizard.OneOf(VehicleTypes...)},
			"plate_number":           {wizard.Required(), wizard.MinLen(5), wizard.MaxLen(10)},
			"vehicle_model":          {wizard.MaxLen(60)},
			"guarantor_name":         {wizard.Required(), wizard.MinLen(2)},
			"guarantor_email":        {wizard.Required(), wizard.Email()},
			"guarantor_phone":        {wizard.Required(), wizard.Phone()},
			"guarantor_relationship": {wizard.Required(), wizard.OneOf(Relationships...)},
			"guarantor_address":      {wizard.Required(), wizard.MaxLen(200)},
		},
	}
	if applicant != nil {
		w.Checks = append(w.Checks, guarantorCheck(applicant.Email, applicant.Phone))
	}
	return w
}

// guarantorCheck rejects a guarantor who shares the applicant's email or phone.
func guarantorCheck(email, phone string) wizard.CrossCheck {
	return wizard.CrossCheck{
		Fields: []string{"guarantor_email", "guarantor_phone"},
		Check: func(v wizard.Values) map[string]string {
			errs := map[string]string{}
			if email != "" && strings.EqualFold(v.Get("guarantor_email"), email) {
				errs["guarantor_email"] = "Your guarantor must use a different email address"
			}
			if phone != "" && v.Get("guarantor_phone") != "" && samePhone(v.Get("guarantor_phone"), phone) {
				errs["guarantor_phone"] = "Your guarantor must use a different phone number"
			}
			return errs
		},
	}
}

// samePhone compares numbers after reducing both to the national format.
func samePhone(a, b string) bool {
	return nationalPhone(a) == nationalPhone(b)
}

func nationalPhone(p string) string {
	p = strings.TrimPrefix(wizard.NormalizePhone(p), "+")
	if strings.HasPrefix(p, "234") {
		return "0" + p[3:]
	}
	return p
}
