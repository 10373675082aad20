// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package uikit

// Breadcrumb is one step in the admin breadcrumb trail.
type Breadcrumb struct {
	Label  string
	URL    string
	Active bool
}
