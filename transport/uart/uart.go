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

// Package uart provides the serial transport for STPv3 readers
package uart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	stpv3 "github.com/ZaparooProject/go-stpv3"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the factory setting of the reader's serial port
	DefaultBaudRate = 38400

	// DefaultTimeout bounds a single Read when no bytes arrive
	DefaultTimeout = 2 * time.Second

	// readSlice is the serial driver timeout; reads are built from slices so
	// that a context can interrupt them
	readSlice = 50 * time.Millisecond
)

// Option configures a Transport
type Option func(*Transport)

// WithBaudRate overrides the default 38400 baud
func WithBaudRate(baud int) Option {
	return func(t *Transport) {
		if baud > 0 {
			t.mode.BaudRate = baud
		}
	}
}

// WithTimeout sets the initial read timeout
func WithTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		if timeout > 0 {
			t.timeout = timeout
		}
	}
}

// Transport implements stpv3.Transport over a serial port, 8N1
type Transport struct {
	port     serial.Port
	mode     *serial.Mode
	portName string
	timeout  time.Duration
	mu       sync.Mutex
}

// New opens portName and returns a ready transport
func New(portName string, opts ...Option) (*Transport, error) {
	t := &Transport{
		portName: portName,
		timeout:  DefaultTimeout,
		mode: &serial.Mode{
			BaudRate: DefaultBaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.Open(); err != nil {
		return nil, err
	}
	return t, nil
}

// Open opens the port, closing a previously open handle first
func (t *Transport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		_ = t.port.Close()
		t.port = nil
	}

	port, err := serial.Open(t.portName, t.mode)
	if err != nil {
		return stpv3.NewTransportError("Open", t.portName,
			fmt.Errorf("%w: %w", stpv3.ErrDeviceNotFound, err), stpv3.ErrorTypePermanent)
	}
	if err := port.SetReadTimeout(readSlice); err != nil {
		_ = port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", t.portName, err)
	}
	t.port = port
	return nil
}

func (t *Transport) current() (serial.Port, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port, t.timeout
}

// Read reads whatever bytes arrive within the read timeout
func (t *Transport) Read(p []byte) (int, error) {
	return t.ReadContext(context.Background(), p)
}

// ReadContext reads like Read but returns early once ctx is done
func (t *Transport) ReadContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	port, timeout := t.current()
	if port == nil {
		return 0, stpv3.ErrTransportClosed
	}

	deadline := time.Now().Add(timeout)
	for {
		n, err := port.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil {
			var perr *serial.PortError
			if errors.As(err, &perr) && perr.Code() == serial.PortClosed {
				return 0, stpv3.ErrTransportClosed
			}
			return 0, stpv3.NewTransportError("Read", t.portName,
				fmt.Errorf("%w: %w", stpv3.ErrTransportRead, err), stpv3.ErrorTypeTransient)
		}
		// go.bug.st/serial reports a timeout as (0, nil)
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if time.Now().After(deadline) {
			return 0, stpv3.NewTimeoutError("Read", t.portName)
		}
	}
}

// Write writes all of p
func (t *Transport) Write(p []byte) (int, error) {
	port, _ := t.current()
	if port == nil {
		return 0, stpv3.ErrTransportClosed
	}

	written := 0
	for written < len(p) {
		n, err := port.Write(p[written:])
		if err != nil {
			return written, stpv3.NewTransportError("Write", t.portName,
				fmt.Errorf("%w: %w", stpv3.ErrTransportWrite, err), stpv3.ErrorTypeTransient)
		}
		written += n
	}
	return written, nil
}

// Flush discards received bytes that have not been read
func (t *Transport) Flush() error {
	port, _ := t.current()
	if port == nil {
		return stpv3.ErrTransportClosed
	}
	if err := port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to reset input buffer: %w", err)
	}
	return nil
}

// Close closes the port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", t.portName, err)
	}
	return nil
}

// SetTimeout sets how long Read waits for the first byte
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", stpv3.ErrInvalidParameter)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// IsConnected returns true while the port is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() stpv3.TransportType {
	return stpv3.TransportUART
}

// HasCapability reports the optional behaviors of the serial transport
func (*Transport) HasCapability(capability stpv3.TransportCapability) bool {
	return capability == stpv3.CapabilityReopen
}

// PortName returns the device path
func (t *Transport) PortName() string {
	return t.portName
}

var (
	_ stpv3.Transport        = (*Transport)(nil)
	_ stpv3.TransportContext = (*Transport)(nil)
	_ stpv3.Reopener         = (*Transport)(nil)
)
