// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLimiterCacheReusesLimiter(t *testing.T) {
	lc := newLimiterCache[string](1, 1)

	if lc.get("a") != lc.get("a") {
		t.Error("get() should return the same limiter for a key")
	}
	lc.get("b")
	if n := lc.size(); n != 2 {
		t.Errorf("size() = %d, want 2", n)
	}

	if lc.clearIfExceeds(5) {
		t.Error("clearIfExceeds(5) cleared a cache of 2")
	}
	if !lc.clearIfExceeds(1) || lc.size() != 0 {
		t.Error("clearIfExceeds(1) should empty the cache")
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/verify-account/resend", nil)
		req.RemoteAddr = ip + ":4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if got := post("10.0.0.1"); got != http.StatusOK {
			t.Fatalf("request %d = %d", i+1, got)
		}
	}
	if got := post("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Errorf("over burst = %d, want 429", got)
	}
	if got := post("10.0.0.2"); got != http.StatusOK {
		t.Errorf("other IP = %d, want 200", got)
	}
}
