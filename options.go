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
	"fmt"
	"time"
)

// Option is a functional option for configuring a Reader
type Option func(*Reader) error

// WithRetryConfig sets the policy for reissuing commands after LOOP_OFF
func WithRetryConfig(config *RetryConfig) Option {
	return func(r *Reader) error {
		if config == nil {
			return fmt.Errorf("%w: nil retry config", ErrInvalidParameter)
		}
		r.SetRetryConfig(config)
		return nil
	}
}

// WithTimeout sets how long a command waits for its response
func WithTimeout(timeout time.Duration) Option {
	return func(r *Reader) error {
		return r.SetTimeout(timeout)
	}
}

// WithInventoryTimeout sets how long a finite inventory waits for the
// next tag before giving up
func WithInventoryTimeout(timeout time.Duration) Option {
	return func(r *Reader) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: inventory timeout must be positive", ErrInvalidParameter)
		}
		r.config.InventoryTimeout = timeout
		return nil
	}
}

// WithMaxRetries sets how many times a command is issued before the
// reader is considered unresponsive
func WithMaxRetries(maxAttempts int) Option {
	return func(r *Reader) error {
		if maxAttempts < 1 {
			return fmt.Errorf("%w: max attempts must be at least 1", ErrInvalidParameter)
		}
		r.config.RetryConfig.MaxAttempts = maxAttempts
		r.applyRetryConfig()
		return nil
	}
}

// WithRetryBackoff sets the initial backoff duration for retries
func WithRetryBackoff(initialBackoff time.Duration) Option {
	return func(r *Reader) error {
		r.config.RetryConfig.InitialBackoff = initialBackoff
		r.applyRetryConfig()
		return nil
	}
}

// WithReaderID sets the reader id requests are addressed to. Readers
// answer the broadcast id FF FF FF FF regardless of their own.
func WithReaderID(rid []byte) Option {
	return func(r *Reader) error {
		if len(rid) != 4 {
			return fmt.Errorf("%w: reader id must be 4 bytes", ErrInvalidParameter)
		}
		r.rid = append([]byte(nil), rid...)
		return nil
	}
}
