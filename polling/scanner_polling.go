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
	"context"

	"github.com/ZaparooProject/go-stpv3"
)

// startScanning runs the monitor with the scanner's callbacks attached
func (s *Scanner) startScanning(ctx context.Context) error {
	s.setupEventHandlers()
	return s.monitor.Start(ctx)
}

// setupEventHandlers routes monitor events through pending writes and
// then to the user's callbacks
func (s *Scanner) setupEventHandlers() {
	s.monitor.OnTagDetected = func(tag *stpv3.Tag) error {
		s.processPendingWrites(tag)

		if s.OnTagDetected != nil {
			return s.OnTagDetected(tag)
		}
		return nil
	}

	s.monitor.OnTagRemoved = func(tag *stpv3.Tag) {
		if s.OnTagRemoved != nil {
			s.OnTagRemoved(tag)
		}
	}
}
