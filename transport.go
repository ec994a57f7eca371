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

// Transport is the byte stream a reader is attached through. Serial,
// USB-HID, TCP and I2C backends implement it; framing is done by the
// engine, never by the transport.
//
// Read blocks until at least one byte is available or the read timeout
// expires, in which case it returns a timeout *TransportError. Transports
// are opened by their constructors.
type Transport interface {
	// Read reads available bytes into p
	Read(p []byte) (int, error)

	// Write writes all of p or returns an error
	Write(p []byte) (int, error)

	// Flush discards any bytes received but not yet read
	Flush() error

	// Close closes the transport connection
	Close() error

	// SetTimeout sets the read timeout for the transport
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// BufferedTransport is implemented by transports that can report how many
// bytes are waiting without blocking.
type BufferedTransport interface {
	Buffered() (int, error)
}

// Reopener is implemented by transports that can be reopened after Close
type Reopener interface {
	Open() error
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportHID represents a USB-HID transport.
	TransportHID TransportType = "hid"
	// TransportTCP represents a TCP/IP transport.
	TransportTCP TransportType = "tcp"
	// TransportI2C represents I2C bus transport.
	TransportI2C TransportType = "i2c"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportCapability represents specific capabilities or behaviors of a transport
type TransportCapability string

const (
	// CapabilityBytesAvailable indicates the transport implements BufferedTransport
	CapabilityBytesAvailable TransportCapability = "bytes_available"

	// CapabilityReportFramed indicates bytes arrive in fixed-size reports
	// (USB-HID), so a read may return less than one frame even when the
	// reader has sent more.
	CapabilityReportFramed TransportCapability = "report_framed"

	// CapabilityReopen indicates the transport implements Reopener
	CapabilityReopen TransportCapability = "reopen"
)

// TransportCapabilityChecker defines an interface for querying transport capabilities
type TransportCapabilityChecker interface {
	// HasCapability returns true if the transport has the specified capability
	HasCapability(capability TransportCapability) bool
}

// HasCapability reports whether t advertises the capability
func HasCapability(t Transport, capability TransportCapability) bool {
	if checker, ok := t.(TransportCapabilityChecker); ok {
		return checker.HasCapability(capability)
	}
	return false
}

// BytesAvailable returns the number of buffered bytes, or an unsupported
// error for transports that cannot tell.
func BytesAvailable(t Transport) (int, error) {
	if bt, ok := t.(BufferedTransport); ok {
		n, err := bt.Buffered()
		if err != nil {
			return 0, fmt.Errorf("failed to query buffered bytes: %w", err)
		}
		return n, nil
	}
	return 0, NewUnsupportedError("Buffered", string(t.Type()))
}

// TransportWithRetry wraps a Transport so that writes failing with a
// retryable error are attempted again.
type TransportWithRetry struct {
	transport Transport
	config    *RetryConfig
}

// NewTransportWithRetry creates a new transport wrapper with retry logic
func NewTransportWithRetry(transport Transport, config *RetryConfig) *TransportWithRetry {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &TransportWithRetry{
		transport: transport,
		config:    config,
	}
}

// Write writes p with retry logic. A frame is only ever written whole, so
// a retry resends the complete buffer.
func (t *TransportWithRetry) Write(p []byte) (int, error) {
	var n int
	err := RetryWithConfig(context.Background(), t.config, func() error {
		var err error
		n, err = t.transport.Write(p)
		if err != nil {
			return &TransportError{
				Op:        "Write",
				Port:      string(t.transport.Type()),
				Err:       err,
				Type:      GetErrorType(err),
				Retryable: IsRetryable(err),
			}
		}
		return nil
	})
	return n, err
}

// Read reads from the underlying transport. Reads are not retried since
// a timeout is a normal outcome the engine handles itself.
func (t *TransportWithRetry) Read(p []byte) (int, error) {
	return t.transport.Read(p) //nolint:wrapcheck // pass-through keeps the timeout error intact
}

// Flush discards pending input on the underlying transport
func (t *TransportWithRetry) Flush() error {
	if err := t.transport.Flush(); err != nil {
		return fmt.Errorf("failed to flush underlying transport: %w", err)
	}
	return nil
}

// Close closes the transport connection
func (t *TransportWithRetry) Close() error {
	if err := t.transport.Close(); err != nil {
		return fmt.Errorf("failed to close underlying transport: %w", err)
	}
	return nil
}

// SetTimeout sets the read timeout for the transport
func (t *TransportWithRetry) SetTimeout(timeout time.Duration) error {
	if err := t.transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set timeout on underlying transport: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *TransportWithRetry) IsConnected() bool {
	return t.transport.IsConnected()
}

// Type returns the transport type
func (t *TransportWithRetry) Type() TransportType {
	return t.transport.Type()
}

// HasCapability forwards capability checking to the underlying transport
func (t *TransportWithRetry) HasCapability(capability TransportCapability) bool {
	return HasCapability(t.transport, capability)
}

// Buffered forwards to the underlying transport when it can report buffered bytes
func (t *TransportWithRetry) Buffered() (int, error) {
	return BytesAvailable(t.transport)
}

// SetRetryConfig updates the retry configuration
func (t *TransportWithRetry) SetRetryConfig(config *RetryConfig) {
	t.config = config
}

// Unwrap returns the wrapped transport
func (t *TransportWithRetry) Unwrap() Transport {
	return t.transport
}
