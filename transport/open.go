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

// Package transport opens the transport backend matching a device path or
// a detection result. It is the usual TransportFactory for
// stpv3.ConnectReader:
//
//	reader, err := stpv3.ConnectReader("tcp://192.168.1.40",
//	    stpv3.WithTransportFactory(transport.Open))
package transport

import (
	"fmt"
	"net"
	"strings"

	stpv3 "github.com/ZaparooProject/go-stpv3"
	"github.com/ZaparooProject/go-stpv3/detection"
	"github.com/ZaparooProject/go-stpv3/transport/hid"
	"github.com/ZaparooProject/go-stpv3/transport/i2c"
	"github.com/ZaparooProject/go-stpv3/transport/tcp"
	"github.com/ZaparooProject/go-stpv3/transport/uart"
)

// Kind guesses the transport of path. Explicit prefixes win: "tcp://",
// "hid://", "i2c://" and "uart://". Otherwise /dev/hidraw* is HID,
// /dev/i2c-* is I2C, host:port is TCP and anything else is a serial port.
func Kind(path string) (stpv3.TransportType, string) {
	for _, kind := range []stpv3.TransportType{
		stpv3.TransportTCP, stpv3.TransportHID, stpv3.TransportI2C, stpv3.TransportUART,
	} {
		if rest, ok := strings.CutPrefix(path, string(kind)+"://"); ok {
			return kind, rest
		}
	}

	switch {
	case strings.HasPrefix(path, "/dev/hidraw"):
		return stpv3.TransportHID, path
	case strings.HasPrefix(path, "/dev/i2c-"):
		return stpv3.TransportI2C, path
	}
	if host, _, err := net.SplitHostPort(path); err == nil && host != "" && !strings.HasPrefix(path, "/") {
		return stpv3.TransportTCP, path
	}
	return stpv3.TransportUART, path
}

// Open creates the transport for path, see Kind
func Open(path string) (stpv3.Transport, error) {
	kind, target := Kind(path)
	switch kind {
	case stpv3.TransportTCP:
		return wrap(tcp.New(target))
	case stpv3.TransportHID:
		return wrap(hid.New(target))
	case stpv3.TransportI2C:
		return openI2C(target)
	default:
		return wrap(uart.New(target))
	}
}

// FromDevice creates the transport for a detection result. Network
// readers are woken with their MAC address first.
func FromDevice(dev detection.DeviceInfo) (stpv3.Transport, error) {
	switch stpv3.TransportType(dev.Transport) {
	case stpv3.TransportTCP:
		var opts []tcp.Option
		if s := dev.Metadata["mac"]; s != "" {
			mac, err := net.ParseMAC(s)
			if err != nil {
				return nil, fmt.Errorf("invalid MAC address %q: %w", s, err)
			}
			opts = append(opts, tcp.WithWake(mac))
		}
		return wrap(tcp.New(dev.Path, opts...))
	case stpv3.TransportHID:
		return wrap(hid.New(dev.Path))
	case stpv3.TransportI2C:
		return openI2C(dev.Path)
	case stpv3.TransportUART:
		return wrap(uart.New(dev.Path))
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", stpv3.ErrInvalidParameter, dev.Transport)
	}
}

// openI2C accepts "bus" or "bus:0xADDR"
func openI2C(target string) (stpv3.Transport, error) {
	bus, addr, found := strings.Cut(target, ":")
	if !found {
		return wrap(i2c.New(bus))
	}
	var a uint16
	if _, err := fmt.Sscanf(addr, "0x%X", &a); err != nil {
		return nil, fmt.Errorf("%w: bad I2C address %q", stpv3.ErrInvalidParameter, addr)
	}
	return wrap(i2c.New(bus, i2c.WithAddress(a)))
}

// wrap keeps a failed constructor from yielding a non-nil interface
func wrap[T stpv3.Transport](t T, err error) (stpv3.Transport, error) {
	if err != nil {
		return nil, err
	}
	return t, nil
}
