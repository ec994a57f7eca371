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

package polling

import (
	"time"

	"github.com/ZaparooProject/go-stpv3"
)

// Config holds the polling parameters shared by Monitor, Scanner and
// DeviceActor
type Config struct {
	// Filter restricts each inventory to matching tags. Nil matches all.
	Filter *stpv3.Tag
	// PollInterval is the pause between two inventory passes
	PollInterval time.Duration
	// PollTimeout bounds a single inventory pass
	PollTimeout time.Duration
	// TagRemovalTimeout is how long a tag may go unseen before it is
	// reported as removed
	TagRemovalTimeout time.Duration
	// IdleAfter and IdleInterval control the slower polling rate a
	// DeviceActor drops to when no tag has been seen for a while
	IdleAfter    time.Duration
	IdleInterval time.Duration
}

// DefaultConfig returns the default polling configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:      250 * time.Millisecond,
		PollTimeout:       2 * time.Second,
		TagRemovalTimeout: time.Second,
		IdleAfter:         5 * time.Second,
		IdleInterval:      time.Second,
	}
}
