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
	"io"

	"github.com/ZaparooProject/go-stpv3/bootload"
)

// UploadFirmware switches the reader into its bootloader and streams a .shf
// image to it. If the reader refuses ENTER_BOOTLOAD nothing is sent and
// ErrBootloadRejected is returned. On success the reader restarts with the
// new firmware and the session should be reopened.
func (r *Reader) UploadFirmware(ctx context.Context, image io.Reader, opts ...bootload.Option) error {
	img, err := bootload.ParseImage(image)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	resp, err := r.exchange(ctx, &Command{Opcode: OpEnterBootload})
	if err != nil {
		return fmt.Errorf("enter bootloader: %w", err)
	}
	if !resp.Success() {
		debugf("enter bootloader: %s", resp.Code)
		return fmt.Errorf("%w: %s", ErrBootloadRejected, resp.Code)
	}
	r.firmware = ""

	opts = append([]bootload.Option{bootload.WithLogger(bootload.NewLogrusLogger(Logger()))}, opts...)
	prog, err := bootload.New(r.transport, opts...)
	if err != nil {
		return err
	}
	if err := prog.Program(ctx, img); err != nil {
		return fmt.Errorf("upload firmware: %w", err)
	}
	return nil
}
