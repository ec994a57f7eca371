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

package bootload

import "time"

// Config holds the programmer configuration
type Config struct {
	ProgressCallback ProgressCallback
	Logger           Logger
	// AckTimeout is how long to wait for the ACK of one record
	AckTimeout time.Duration
	// Retries is how often a rejected record is resent
	Retries int
}

func defaultConfig() Config {
	return Config{
		AckTimeout: 2 * time.Second,
		Retries:    3,
	}
}

// Option is a functional option for configuring the Programmer
type Option func(*Config)

// WithProgressCallback sets a callback to track upload progress
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for programmer operations
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithAckTimeout sets how long to wait for each acknowledgement
func WithAckTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.AckTimeout = timeout
		}
	}
}

// WithRetries sets how often a rejected record is resent
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.Retries = retries
		}
	}
}
