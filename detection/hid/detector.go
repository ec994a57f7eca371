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

// Package hid detects USB-HID STPv3 readers. Importing it registers the
// detector.
package hid

import (
	"context"
	"fmt"
	"runtime"

	stpv3 "github.com/ZaparooProject/go-stpv3"
	"github.com/ZaparooProject/go-stpv3/detection"
	"github.com/ZaparooProject/go-stpv3/transport/hid"
)

type detector struct {
	sysfs string
}

// New creates a HID detector
func New() detection.Detector {
	return &detector{sysfs: "/sys/class/hidraw"}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return string(stpv3.TransportHID)
}

// Detect matches hidraw nodes against the reader's USB ids. The reader
// is identified by its descriptor alone, so no probe is sent.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if runtime.GOOS != "linux" {
		return nil, detection.ErrUnsupportedPlatform
	}

	nodes, err := scanHidraw(d.sysfs)
	if err != nil {
		return nil, err
	}

	vidpid := fmt.Sprintf("%04X:%04X", hid.VendorID, hid.ProductID)
	var devices []detection.DeviceInfo
	for _, node := range nodes {
		if ctx.Err() != nil {
			return devices, detection.ErrDetectionTimeout
		}
		if node.vidpid != vidpid || detection.IsBlocked(node.vidpid, opts.Blocklist) {
			continue
		}
		if detection.IsPathIgnored(node.path, opts.IgnorePaths) {
			continue
		}
		name := node.name
		if name == "" {
			name = "SkyeTek HID reader"
		}
		devices = append(devices, detection.DeviceInfo{
			Transport:  string(stpv3.TransportHID),
			Path:       node.path,
			Name:       name,
			Confidence: detection.High,
			Metadata:   map[string]string{"vidpid": node.vidpid},
		})
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}
