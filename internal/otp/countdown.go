// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package otp

import (
	"context"
	"time"
)

// Clock abstracts time for the countdown.
type Clock interface {
	Now() time.Time
	// Ticker returns a tick channel and a stop function.
	Ticker(d time.Duration) (<-chan time.Time, func())
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Ticker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Countdown calls fn with the whole seconds left until deadline, once
// immediately and then every second, until zero or until ctx is done. The
// ticker is stopped on return, so a cancelled context leaves nothing running.
func Countdown(ctx context.Context, clock Clock, deadline time.Time, fn func(secondsLeft int) error) error {
	f := &Flow{State: AwaitingInput, Deadline: deadline}

	left := f.RemainingSeconds(clock.Now())
	if err := fn(left); err != nil || left == 0 {
		return err
	}

	tick, stop := clock.Ticker(time.Second)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			left = f.RemainingSeconds(clock.Now())
			if err := fn(left); err != nil {
				return err
			}
			if left == 0 {
				return nil
			}
		}
	}
}
