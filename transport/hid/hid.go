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

// Package hid provides the USB-HID transport. The reader exchanges 64-byte
// reports laid out as [report id, payload length, payload...]; the
// transport turns them back into the byte stream the frame decoder expects.
package hid

import (
	"context"
	"fmt"
	"sync"
	"time"

	stpv3 "github.com/ZaparooProject/go-stpv3"
)

const (
	// VendorID and ProductID identify SkyeTek HID readers
	VendorID  = 0xAFEF
	ProductID = 0x0F01

	// ReportSize is the fixed size of every input and output report
	ReportSize = 64

	// reportPayload is the payload capacity of one report
	reportPayload = ReportSize - 2

	// DefaultTimeout bounds a single Read when no report arrives
	DefaultTimeout = 500 * time.Millisecond

	readSlice = 50 * time.Millisecond

	// flushLimit caps a flush against a reader that keeps sending reports
	flushLimit = 100 * time.Millisecond
)

// device is a raw report pipe. readReport returns (0, nil) when no report
// arrived within timeout.
type device interface {
	readReport(p []byte, timeout time.Duration) (int, error)
	writeReport(p []byte) error
	close() error
}

// Transport implements stpv3.Transport over HID reports
type Transport struct {
	dev     device
	path    string
	pending []byte
	timeout time.Duration
	mu      sync.Mutex
}

func newTransport(path string, dev device) *Transport {
	return &Transport{dev: dev, path: path, timeout: DefaultTimeout}
}

// EncodeReports splits p into output reports
func EncodeReports(p []byte) [][]byte {
	reports := make([][]byte, 0, len(p)/reportPayload+1)
	for len(p) > 0 {
		n := min(len(p), reportPayload)
		report := make([]byte, ReportSize)
		report[1] = byte(n)
		copy(report[2:], p[:n])
		reports = append(reports, report)
		p = p[n:]
	}
	return reports
}

// DecodeReport returns the payload of an input report
func DecodeReport(report []byte) ([]byte, error) {
	if len(report) < 2 {
		return nil, fmt.Errorf("%w: report of %d bytes", stpv3.ErrMalformedFrame, len(report))
	}
	n := int(report[1])
	if n > len(report)-2 || n > reportPayload {
		return nil, fmt.Errorf("%w: report length %d exceeds report", stpv3.ErrMalformedFrame, n)
	}
	return report[2 : 2+n], nil
}

// Read reads the payload of buffered or newly arrived reports
func (t *Transport) Read(p []byte) (int, error) {
	return t.ReadContext(context.Background(), p)
}

// ReadContext reads like Read but returns early once ctx is done
func (t *Transport) ReadContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return 0, stpv3.ErrTransportClosed
	}
	if len(t.pending) > 0 {
		return t.drainPending(p), nil
	}

	deadline := time.Now().Add(t.timeout)
	report := make([]byte, ReportSize)
	for {
		n, err := t.dev.readReport(report, readSlice)
		if err != nil {
			return 0, stpv3.NewTransportError("Read", t.path,
				fmt.Errorf("%w: %w", stpv3.ErrTransportRead, err), stpv3.ErrorTypePermanent)
		}
		if n > 0 {
			payload, err := DecodeReport(report[:n])
			if err != nil {
				return 0, stpv3.NewTransportError("Read", t.path, err, stpv3.ErrorTypeTransient)
			}
			if len(payload) > 0 {
				t.pending = append(t.pending, payload...)
				return t.drainPending(p), nil
			}
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if time.Now().After(deadline) {
			return 0, stpv3.NewTimeoutError("Read", t.path)
		}
	}
}

func (t *Transport) drainPending(p []byte) int {
	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n
}

// Write sends p as one or more output reports
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return 0, stpv3.ErrTransportClosed
	}

	written := 0
	for _, report := range EncodeReports(p) {
		if err := t.dev.writeReport(report); err != nil {
			return written, stpv3.NewTransportError("Write", t.path,
				fmt.Errorf("%w: %w", stpv3.ErrTransportWrite, err), stpv3.ErrorTypeTransient)
		}
		written += int(report[1])
	}
	return written, nil
}

// Flush drops buffered payload and reports already queued by the device
func (t *Transport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return stpv3.ErrTransportClosed
	}
	t.pending = nil

	report := make([]byte, ReportSize)
	stop := time.Now().Add(flushLimit)
	for time.Now().Before(stop) {
		n, err := t.dev.readReport(report, 0)
		if err != nil {
			return fmt.Errorf("failed to flush reports: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// Buffered returns the payload bytes received but not yet read
func (t *Transport) Buffered() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending), nil
}

// Close closes the device
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev == nil {
		return nil
	}
	err := t.dev.close()
	t.dev = nil
	t.pending = nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", t.path, err)
	}
	return nil
}

// SetTimeout sets how long Read waits for a report
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", stpv3.ErrInvalidParameter)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// IsConnected returns true while the device is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev != nil
}

// Type returns the transport type
func (*Transport) Type() stpv3.TransportType {
	return stpv3.TransportHID
}

// HasCapability reports the optional behaviors of the HID transport
func (*Transport) HasCapability(capability stpv3.TransportCapability) bool {
	switch capability {
	case stpv3.CapabilityReportFramed, stpv3.CapabilityBytesAvailable:
		return true
	default:
		return false
	}
}

// Path returns the device node
func (t *Transport) Path() string {
	return t.path
}

var (
	_ stpv3.Transport         = (*Transport)(nil)
	_ stpv3.TransportContext  = (*Transport)(nil)
	_ stpv3.BufferedTransport = (*Transport)(nil)
)
