// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package onboarding

import (
	"strings"

	"github.com/chimailo/skippa/internal/wizard"
)

// ToPayload groups values by page into the verification request body.
// Keys become camelCase and phone numbers are normalized; empty optional
// values are omitted.
func ToPayload(w *wizard.Wizard, values wizard.Values) map[string]any {
	payload := make(map[string]any, len(w.Pages))
	for _, p := range w.Pages {
		section := make(map[string]string, len(p.Fields))
		for _, f := range p.Fields {
			v := values.Get(f)
			if v == "" {
				continue
			}
			if strings.HasSuffix(f, "phone") {
				v = nationalPhone(v)
			}
			section[camel(strings.TrimPrefix(f, p.Slug+"_"))] = v
		}
		payload[p.Slug] = section
	}
	return payload
}

func camel(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
