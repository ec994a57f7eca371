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
	"time"
)

// ReaderInfo identifies a reader. Fields the reader does not report are
// empty.
type ReaderInfo struct {
	SerialNumber    string `json:"serialNumber"`
	FirmwareVersion string `json:"firmwareVersion"`
	HardwareVersion string `json:"hardwareVersion"`
	ProductCode     string `json:"productCode"`
	Name            string `json:"name"`
}

// Info reads the identification parameters of the reader
func (r *Reader) Info(ctx context.Context) (*ReaderInfo, error) {
	var (
		info ReaderInfo
		err  error
	)
	if info.FirmwareVersion, err = r.FirmwareVersion(ctx); err != nil {
		return nil, err
	}
	if info.SerialNumber, err = r.SerialNumber(ctx); err != nil {
		return nil, err
	}
	if info.HardwareVersion, err = r.HardwareVersion(ctx); err != nil {
		return nil, err
	}
	if info.ProductCode, err = r.ProductCode(ctx); err != nil {
		return nil, err
	}
	if info.Name, err = r.ReaderName(ctx, Current); err != nil {
		return nil, err
	}
	return &info, nil
}

// Metadata flattens the non-empty fields for detection results
func (i *ReaderInfo) Metadata() map[string]string {
	m := make(map[string]string, 5)
	for k, v := range map[string]string{
		"serial":   i.SerialNumber,
		"firmware": i.FirmwareVersion,
		"hardware": i.HardwareVersion,
		"product":  i.ProductCode,
		"name":     i.Name,
	} {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

// Probe checks whether an STPv3 reader answers on t by reading its
// identification. It does not close t.
func Probe(ctx context.Context, t Transport, timeout time.Duration) (*ReaderInfo, error) {
	reader, err := New(t, WithTimeout(timeout), WithMaxRetries(1))
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	info, err := reader.Info(ctx)
	if err != nil {
		return nil, err
	}
	if info.FirmwareVersion == "" {
		return nil, fmt.Errorf("%w: no firmware version reported", ErrDeviceNotResponding)
	}
	return info, nil
}
