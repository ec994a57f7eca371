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

import (
	"fmt"

	"github.com/pkg/errors"
)

// Bootloader errors
var (
	ErrInvalidImage = errors.New("invalid firmware image")
	ErrNoAck        = errors.New("bootloader did not acknowledge")
)

// RecordError reports a record the bootloader kept rejecting
type RecordError struct {
	Err      error
	Index    int
	Attempts int
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d failed after %d attempts: %v", e.Index, e.Attempts, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
