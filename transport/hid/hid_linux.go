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

//go:build linux

package hid

import (
	"errors"
	"fmt"
	"time"

	stpv3 "github.com/ZaparooProject/go-stpv3"
	"golang.org/x/sys/unix"
)

// hidraw is a /dev/hidrawN node opened non-blocking
type hidraw struct {
	fd int
}

// New opens a hidraw node such as /dev/hidraw0
func New(path string) (*Transport, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, stpv3.NewTransportError("Open", path,
			fmt.Errorf("%w: %w", stpv3.ErrDeviceNotFound, err), stpv3.ErrorTypePermanent)
	}
	return newTransport(path, &hidraw{fd: fd}), nil
}

func (h *hidraw) readReport(p []byte, timeout time.Duration) (int, error) {
	fds := []unix.PollFd{{Fd: int32(h.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			return 0, nil
		}
		break
	}

	n, err := unix.Read(h.fd, p)
	if errors.Is(err, unix.EAGAIN) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	return n, nil
}

func (h *hidraw) writeReport(p []byte) error {
	// hidraw expects the report number first; the reader uses report 0
	_, err := unix.Write(h.fd, p)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (h *hidraw) close() error {
	return unix.Close(h.fd)
}
