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

// Package uart detects STPv3 readers on serial ports. Importing it
// registers the detector.
package uart

import (
	"context"
	"fmt"
	"strings"
	"time"

	stpv3 "github.com/ZaparooProject/go-stpv3"
	"github.com/ZaparooProject/go-stpv3/detection"
	"github.com/ZaparooProject/go-stpv3/transport/uart"
	"go.bug.st/serial/enumerator"
)

// knownBridges lists USB-serial bridges fitted to reader boards
var knownBridges = map[string]string{
	"0403:6001": "FTDI FT232R",
	"0403:6015": "FTDI FT231X",
	"10C4:EA60": "Silicon Labs CP210x",
	"067B:2303": "Prolific PL2303",
}

const probeTimeout = 500 * time.Millisecond

// portLister returns the serial ports of the host
type portLister func() ([]*enumerator.PortDetails, error)

// prober confirms a reader on a port
type prober func(ctx context.Context, path string) (*stpv3.ReaderInfo, error)

type detector struct {
	list  portLister
	probe prober
}

// New creates a serial detector
func New() detection.Detector {
	return &detector{list: enumerator.GetDetailedPortsList, probe: probePort}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return string(stpv3.TransportUART)
}

// Detect lists serial ports and, outside passive mode, probes candidates
// with a firmware version request
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		if ctx.Err() != nil {
			return devices, detection.ErrDetectionTimeout
		}
		if dev, ok := d.classify(ctx, port, opts); ok {
			devices = append(devices, dev)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func (d *detector) classify(
	ctx context.Context, port *enumerator.PortDetails, opts *detection.Options,
) (detection.DeviceInfo, bool) {
	if detection.IsPathIgnored(port.Name, opts.IgnorePaths) {
		return detection.DeviceInfo{}, false
	}

	dev := detection.DeviceInfo{
		Transport:  string(stpv3.TransportUART),
		Path:       port.Name,
		Name:       port.Name,
		Metadata:   map[string]string{},
		Confidence: detection.Low,
	}

	if port.IsUSB {
		vidpid := strings.ToUpper(port.VID + ":" + port.PID)
		if detection.IsBlocked(vidpid, opts.Blocklist) {
			stpv3.Logger().WithField("port", port.Name).Debugf("skipping blocked device %s", vidpid)
			return detection.DeviceInfo{}, false
		}
		dev.Metadata["vidpid"] = vidpid
		if port.SerialNumber != "" {
			dev.Metadata["usb_serial"] = port.SerialNumber
		}
		if port.Product != "" {
			dev.Name = port.Product
		}
		if bridge, ok := knownBridges[vidpid]; ok {
			dev.Confidence = detection.Medium
			dev.Metadata["bridge"] = bridge
		}
	}

	switch opts.Mode {
	case detection.Passive:
		return dev, port.IsUSB
	case detection.Safe:
		if dev.Confidence < detection.Medium {
			return detection.DeviceInfo{}, false
		}
	case detection.Full:
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*probeTimeout)
	defer cancel()
	info, err := d.probe(probeCtx, port.Name)
	if err != nil {
		stpv3.Logger().WithField("port", port.Name).Debugf("probe failed: %v", err)
		return dev, dev.Confidence >= detection.Medium
	}

	dev.Confidence = detection.High
	for k, v := range info.Metadata() {
		dev.Metadata[k] = v
	}
	if info.Name != "" {
		dev.Name = info.Name
	}
	return dev, true
}

func probePort(ctx context.Context, path string) (*stpv3.ReaderInfo, error) {
	t, err := uart.New(path, uart.WithTimeout(probeTimeout))
	if err != nil {
		return nil, err
	}
	defer func() { _ = t.Close() }()
	return stpv3.Probe(ctx, t, probeTimeout)
}
