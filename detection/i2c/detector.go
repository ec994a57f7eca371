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

// Package i2c detects STPv3 reader modules on I2C buses. Importing it
// registers the detector.
package i2c

import (
	"context"
	"fmt"
	"runtime"
	"time"

	stpv3 "github.com/ZaparooProject/go-stpv3"
	"github.com/ZaparooProject/go-stpv3/detection"
	stpi2c "github.com/ZaparooProject/go-stpv3/transport/i2c"
)

const probeTimeout = 300 * time.Millisecond

// prober confirms a module at addr on busPath
type prober func(ctx context.Context, busPath string, addr uint8) (*stpv3.ReaderInfo, error)

// detector implements the Detector interface for I2C devices
type detector struct {
	probe prober
}

// New creates a new I2C detector
func New() detection.Detector {
	return &detector{probe: probeModule}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return string(stpv3.TransportI2C)
}

// Detect searches for reader modules on I2C buses
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if runtime.GOOS != "linux" {
		return nil, detection.ErrUnsupportedPlatform
	}
	return d.detectLinux(ctx, opts)
}

// candidate classifies an address that acknowledged a read
func (d *detector) candidate(
	ctx context.Context, busPath string, addr uint8, opts *detection.Options,
) (detection.DeviceInfo, bool) {
	devicePath := fmt.Sprintf("%s:0x%02X", busPath, addr)
	if detection.IsPathIgnored(devicePath, opts.IgnorePaths) {
		return detection.DeviceInfo{}, false
	}

	isDefault := addr == stpi2c.DefaultAddress
	if !isDefault && opts.Mode != detection.Full {
		return detection.DeviceInfo{}, false
	}

	device := detection.DeviceInfo{
		Transport:  string(stpv3.TransportI2C),
		Path:       devicePath,
		Name:       fmt.Sprintf("I2C device at %s address 0x%02X", busPath, addr),
		Confidence: detection.Low,
		Metadata: map[string]string{
			"bus":     busPath,
			"address": fmt.Sprintf("0x%02X", addr),
		},
	}
	if isDefault {
		device.Confidence = detection.Medium
	}
	if opts.Mode == detection.Passive {
		return device, true
	}

	probeCtx, cancel := context.WithTimeout(ctx, 3*probeTimeout)
	info, err := d.probe(probeCtx, busPath, addr)
	cancel()
	if err != nil {
		// Skip low confidence devices that don't respond
		return device, device.Confidence >= detection.Medium
	}

	device.Confidence = detection.High
	for k, v := range info.Metadata() {
		device.Metadata[k] = v
	}
	return device, true
}

func probeModule(ctx context.Context, busPath string, addr uint8) (*stpv3.ReaderInfo, error) {
	t, err := stpi2c.New(busPath, stpi2c.WithAddress(uint16(addr)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = t.Close() }()
	return stpv3.Probe(ctx, t, probeTimeout)
}
