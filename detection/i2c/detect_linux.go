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

package i2c

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/ZaparooProject/go-stpv3/detection"
	"golang.org/x/sys/unix"
)

const (
	// I2CSlave is the ioctl command to set slave address
	I2CSlave = 0x0703

	// I2CFuncs is the ioctl command to get adapter functionality
	I2CFuncs = 0x0705

	// I2CFuncI2C indicates plain I2C support
	I2CFuncI2C = 0x00000001
)

// i2cBusInfo contains information about an I2C bus
type i2cBusInfo struct {
	Path   string // Device path, e.g., "/dev/i2c-1"
	Number int    // Bus number
}

// detectLinux searches every usable bus
func (d *detector) detectLinux(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	buses, err := findI2CBuses()
	if err != nil {
		return nil, err
	}
	if len(buses) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	var devices []detection.DeviceInfo
	for _, bus := range buses {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		for _, addr := range scanI2CBus(bus.Path) {
			if dev, ok := d.candidate(ctx, bus.Path, addr, opts); ok {
				devices = append(devices, dev)
			}
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// findI2CBuses discovers available I2C buses on the system
func findI2CBuses() ([]i2cBusInfo, error) {
	matches, err := filepath.Glob("/dev/i2c-*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan for I2C devices: %w", err)
	}

	buses := make([]i2cBusInfo, 0, len(matches))
	for _, path := range matches {
		var busNum int
		if _, err := fmt.Sscanf(filepath.Base(path), "i2c-%d", &busNum); err != nil {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if !supportsI2C(path) {
			continue
		}
		buses = append(buses, i2cBusInfo{Path: path, Number: busNum})
	}
	return buses, nil
}

func supportsI2C(path string) bool {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return false
	}
	defer func() { _ = unix.Close(fd) }()

	var funcs uint32
	// #nosec G103 -- unsafe pointer required for ioctl system call
	if err := ioctl(fd, I2CFuncs, uintptr(unsafe.Pointer(&funcs))); err != nil {
		return false
	}
	return funcs&I2CFuncI2C != 0
}

// scanI2CBus returns the addresses that acknowledge a one byte read
func scanI2CBus(busPath string) []uint8 {
	var found []uint8

	fd, err := unix.Open(busPath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return found
	}
	defer func() { _ = unix.Close(fd) }()

	// Skip reserved addresses
	buf := make([]byte, 1)
	for addr := uint8(0x08); addr <= 0x77; addr++ {
		if err := ioctl(fd, I2CSlave, uintptr(addr)); err != nil {
			continue
		}
		if _, err := unix.Read(fd, buf); err == nil {
			found = append(found, addr)
		}
	}
	return found
}

// ioctl performs an ioctl system call
func ioctl(fd int, request uint, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(request), arg)
	if errno != 0 {
		return errno
	}
	return nil
}
