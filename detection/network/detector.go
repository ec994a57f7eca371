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

package network

import (
	"context"

	stpv3 "github.com/ZaparooProject/go-stpv3"
	"github.com/ZaparooProject/go-stpv3/detection"
	"github.com/ZaparooProject/go-stpv3/transport/tcp"
)

type detector struct {
	discover func(context.Context) ([]Reader, error)
}

// New creates the network detector
func New() detection.Detector {
	return &detector{discover: Discover}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return string(stpv3.TransportTCP)
}

// Detect multicasts a discovery request. Passive runs skip it since it
// puts traffic on the network.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if opts.Mode == detection.Passive {
		return nil, detection.ErrNoDevicesFound
	}

	readers, err := d.discover(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]detection.DeviceInfo, 0, len(readers))
	for _, r := range readers {
		addr := r.Addr(tcp.DefaultPort)
		if detection.IsPathIgnored(addr, opts.IgnorePaths) {
			continue
		}
		devices = append(devices, detection.DeviceInfo{
			Transport:  string(stpv3.TransportTCP),
			Path:       addr,
			Name:       "SkyeTek reader " + r.MAC.String(),
			Confidence: detection.High,
			Metadata: map[string]string{
				"mac": r.MAC.String(),
				"ip":  r.IP.String(),
			},
		})
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}
