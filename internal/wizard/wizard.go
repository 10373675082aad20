// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package wizard pages a large form schema. Each page validates its own
// fields before advancing; final submission validates the whole schema.
package wizard

import (
	"encoding/gob"
	"errors"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/chimailo/skippa/internal/apperr"
)

func init() {
	gob.Register(Values{})
}

// Values are the accumulated answers keyed by field name.
type Values map[string]string

// FromForm collects the first value of each field, trimmed.
func FromForm(form url.Values) Values {
	v := make(Values, len(form))
	for k, vals := range form {
		if len(vals) > 0 {
			v[k] = strings.TrimSpace(vals[0])
		}
	}
	return v
}

// Get returns a field's value or "".
func (v Values) Get(field string) string {
	return v[field]
}

// Merge returns a copy of v overlaid with other.
func (v Values) Merge(other Values) Values {
	out := make(Values, len(v)+len(other))
	maps.Copy(out, v)
	maps.Copy(out, other)
	return out
}

// Page is one screen of the wizard.
type Page struct {
	Slug   string
	Title  string
	Fields []string
}

// CrossCheck validates relations between fields. It returns messages keyed
// by the field to highlight.
type CrossCheck struct {
	Fields []string
	Check  func(Values) map[string]string
}

// Wizard is a schema split into pages.
type Wizard struct {
	Name   string
	Pages  []Page
	Rules  map[string][]Rule
	Checks []CrossCheck
}

// ErrNoPrevious is returned by Previous on the first page.
var ErrNoPrevious = errors.New("wizard: already on the first page")

// ErrNotLastPage is returned by Submit before the last page.
var ErrNotLastPage = errors.New("wizard: submit is only allowed on the last page")

// validate checks fields and the cross checks touching them.
func (w *Wizard) validate(values Values, fields []string) map[string]string {
	errs := map[string]string{}
	for _, f := range fields {
		for _, rule := range w.Rules[f] {
			if msg := rule(values.Get(f), values); msg != "" {
				errs[f] = msg
				break
			}
		}
	}
	for _, cc := range w.Checks {
		if !slices.ContainsFunc(cc.Fields, func(f string) bool { return slices.Contains(fields, f) }) {
			continue
		}
		for f, msg := range cc.Check(values) {
			if _, taken := errs[f]; !taken {
				errs[f] = msg
			}
		}
	}
	return errs
}

// Fields returns every field across all pages.
func (w *Wizard) Fields() []string {
	var all []string
	for _, p := range w.Pages {
		all = append(all, p.Fields...)
	}
	return all
}

// Validate checks the whole schema. It returns nil or a Validation error.
func (w *Wizard) Validate(values Values) *apperr.Error {
	if errs := w.validate(values, w.Fields()); len(errs) > 0 {
		return apperr.Invalid(errs)
	}
	return nil
}

// PageOf returns the index of the page holding field, or -1.
func (w *Wizard) PageOf(field string) int {
	for i, p := range w.Pages {
		if slices.Contains(p.Fields, field) {
			return i
		}
	}
	return -1
}

// Controller tracks the current page of one run through a Wizard.
type Controller struct {
	w     *Wizard
	index int
}

// Seed starts a controller at index, clamped to the valid range. Pages
// before index are not validated; Submit re-validates everything.
func (w *Wizard) Seed(index int) *Controller {
	c := &Controller{w: w}
	c.index = max(0, min(index, len(w.Pages)-1))
	return c
}

// Index is the current zero-based page.
func (c *Controller) Index() int { return c.index }

// Page returns the current page.
func (c *Controller) Page() Page { return c.w.Pages[c.index] }

// IsFirst reports whether the current page is the first.
func (c *Controller) IsFirst() bool { return c.index == 0 }

// IsLast reports whether the current page is the last.
func (c *Controller) IsLast() bool { return c.index == len(c.w.Pages)-1 }

// Progress returns the 1-based current page and the page count.
func (c *Controller) Progress() (current, total int) {
	return c.index + 1, len(c.w.Pages)
}

// Next validates the current page and advances. On the last page it only
// validates.
func (c *Controller) Next(values Values) error {
	if errs := c.w.validate(values, c.Page().Fields); len(errs) > 0 {
		return apperr.Invalid(errs)
	}
	if !c.IsLast() {
		c.index++
	}
	return nil
}

// Previous moves back one page without validating.
func (c *Controller) Previous() error {
	if c.index == 0 {
		return ErrNoPrevious
	}
	c.index--
	return nil
}

// Submit validates the whole schema regardless of which pages were visited.
// On failure the controller moves to the first page holding an invalid field.
func (c *Controller) Submit(values Values) error {
	if !c.IsLast() {
		return ErrNotLastPage
	}
	verr := c.w.Validate(values)
	if verr == nil {
		return nil
	}
	first := len(c.w.Pages) - 1
	for f := range verr.Fields {
		if i := c.w.PageOf(f); i >= 0 && i < first {
			first = i
		}
	}
	c.index = first
	return verr
}
