// go-stpv3
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-stpv3.
//
// go-stpv3 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-stpv3 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-stpv3; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package stpv3

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures bounded retry with exponential backoff. It is used
// for retryable transport failures and for reissuing a command after the
// reader answers LOOP_OFF.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts
	MaxBackoff time.Duration
	// BackoffMultiplier grows the delay after each attempt
	BackoffMultiplier float64
	// Jitter randomizes each delay by up to this fraction
	Jitter float64
	// RetryTimeout bounds the whole retry sequence, zero means no bound
	RetryTimeout time.Duration
}

// DefaultRetryConfig returns the retry policy used when none is configured
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       8,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      10 * time.Second,
	}
}

// Backoff returns the delay to wait after the given zero-based attempt
func (c *RetryConfig) Backoff(attempt int) time.Duration {
	if c == nil || c.InitialBackoff <= 0 {
		return 0
	}

	multiplier := c.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(c.InitialBackoff) * math.Pow(multiplier, float64(attempt))
	if c.MaxBackoff > 0 && delay > float64(c.MaxBackoff) {
		delay = float64(c.MaxBackoff)
	}

	if c.Jitter > 0 {
		jitter := math.Min(c.Jitter, 1.0)
		delay += delay * jitter * (rand.Float64()*2 - 1) //nolint:gosec // timing jitter only
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// attempts returns MaxAttempts clamped to at least one attempt
func (c *RetryConfig) attempts() int {
	if c == nil || c.MaxAttempts < 1 {
		return 1
	}
	return c.MaxAttempts
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryWithConfig runs fn until it succeeds, returns a non-retryable error,
// or the attempts in config are exhausted.
func RetryWithConfig(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	var lastErr error
	maxAttempts := config.attempts()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry aborted after %d attempts: %w", attempt, lastErr)
			}
			return fmt.Errorf("retry aborted: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}

		debugf("retryable error on attempt %d/%d: %v", attempt+1, maxAttempts, lastErr)
		if err := sleepContext(ctx, config.Backoff(attempt)); err != nil {
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt+1, lastErr)
		}
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", maxAttempts, lastErr)
}
