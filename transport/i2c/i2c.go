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

// Package i2c provides the I2C transport for embedded STPv3 reader modules.
//
// Every read from the module starts with a count byte telling how many
// stream bytes follow; a count of zero means nothing is pending. Writes
// carry the raw request frame.
package i2c

import (
	"context"
	"fmt"
	"sync"
	"time"

	stpv3 "github.com/ZaparooProject/go-stpv3"
	"github.com/ZaparooProject/go-stpv3/internal/frame"
	"github.com/ZaparooProject/go-stpv3/internal/transport"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// DefaultAddress is the module's factory I2C address
	DefaultAddress = 0x28

	// DefaultTimeout bounds a single Read when nothing is pending
	DefaultTimeout = 500 * time.Millisecond

	// maxChunk is the largest stream chunk the module returns per read
	maxChunk = 32

	pollInterval = 2 * time.Millisecond

	// Max clock frequency (400 kHz).
	maxClockFreq = 400 * physic.KiloHertz
)

// Option configures a Transport
type Option func(*Transport)

// WithAddress overrides the module's 7-bit address
func WithAddress(addr uint16) Option {
	return func(t *Transport) {
		t.addr = addr
	}
}

// Transport implements stpv3.Transport for I2C communication
type Transport struct {
	dev     conn.Conn
	bus     i2c.BusCloser
	busName string
	pending []byte
	timeout time.Duration
	addr    uint16
	mu      sync.Mutex
}

// New opens busName (for example "/dev/i2c-1" or "1")
func New(busName string, opts ...Option) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, stpv3.NewTransportError("Open", busName,
			fmt.Errorf("%w: %w", stpv3.ErrDeviceNotFound, err), stpv3.ErrorTypePermanent)
	}

	// Ignore error, continue with default speed
	_ = bus.SetSpeed(maxClockFreq)

	t := &Transport{busName: busName, addr: DefaultAddress, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(t)
	}
	t.bus = bus
	t.dev = &i2c.Dev{Addr: t.addr, Bus: bus}
	return t, nil
}

func newWithConn(busName string, dev conn.Conn) *Transport {
	return &Transport{dev: dev, busName: busName, addr: DefaultAddress, timeout: DefaultTimeout}
}

// Read reads pending stream bytes
func (t *Transport) Read(p []byte) (int, error) {
	return t.ReadContext(context.Background(), p)
}

// ReadContext polls the module until bytes are pending, the read timeout
// elapses or ctx is done
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

	chunk, err := transport.TimeoutRetry(ctx, t.timeout, pollInterval, t.busName,
		func() ([]byte, bool, error) {
			data, err := t.readChunk()
			if err != nil {
				return nil, false, err
			}
			return data, len(data) == 0, nil
		})
	if err != nil {
		return 0, err //nolint:wrapcheck // timeout and context errors pass through
	}
	t.pending = append(t.pending, chunk...)
	return t.drainPending(p), nil
}

// readChunk performs one count-prefixed read
func (t *Transport) readChunk() ([]byte, error) {
	buf := frame.GetSmallBuffer(1 + maxChunk)
	defer frame.PutBuffer(buf)

	if err := t.dev.Tx(nil, buf[:1+maxChunk]); err != nil {
		return nil, stpv3.NewTransportError("Read", t.busName,
			fmt.Errorf("%w: %w", stpv3.ErrTransportRead, err), stpv3.ErrorTypeTransient)
	}

	n := int(buf[0])
	if n == 0 {
		return nil, nil
	}
	if n > maxChunk {
		return nil, stpv3.NewFrameCorruptedError("Read", t.busName)
	}
	return append([]byte(nil), buf[1:1+n]...), nil
}

func (t *Transport) drainPending(p []byte) int {
	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n
}

// Write sends p in one bus transaction
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return 0, stpv3.ErrTransportClosed
	}
	if err := t.dev.Tx(p, nil); err != nil {
		return 0, stpv3.NewTransportError("Write", t.busName,
			fmt.Errorf("%w: %w", stpv3.ErrTransportWrite, err), stpv3.ErrorTypeTransient)
	}
	return len(p), nil
}

// Flush drops pending bytes and anything the module has queued
func (t *Transport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return stpv3.ErrTransportClosed
	}
	t.pending = nil
	for range frame.MaxFrameSize / maxChunk {
		data, err := t.readChunk()
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
	}
	return nil
}

// Buffered returns the bytes read from the module but not yet consumed
func (t *Transport) Buffered() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending), nil
}

// SetTimeout sets how long Read polls for data
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", stpv3.ErrInvalidParameter)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close releases the bus
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dev = nil
	t.pending = nil
	if t.bus == nil {
		return nil
	}
	err := t.bus.Close()
	t.bus = nil
	if err != nil {
		return fmt.Errorf("failed to close I2C bus %s: %w", t.busName, err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev != nil
}

// Type returns the transport type
func (*Transport) Type() stpv3.TransportType {
	return stpv3.TransportI2C
}

// HasCapability reports the optional behaviors of the I2C transport
func (*Transport) HasCapability(capability stpv3.TransportCapability) bool {
	return capability == stpv3.CapabilityBytesAvailable
}

// Ensure Transport implements the stpv3 transport interfaces
var (
	_ stpv3.Transport         = (*Transport)(nil)
	_ stpv3.TransportContext  = (*Transport)(nil)
	_ stpv3.BufferedTransport = (*Transport)(nil)
)
