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

// Package tcp provides the network transport for Ethernet-attached STPv3
// readers. Readers found by detection/network are woken with a datagram
// carrying their MAC address before the stream connection is opened.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	stpv3 "github.com/ZaparooProject/go-stpv3"
	"github.com/ZaparooProject/go-stpv3/internal/transport"
)

const (
	// DefaultPort is the reader's command port
	DefaultPort = 2000

	// DefaultWakePort receives the MAC wake datagram
	DefaultWakePort = 2019

	// DefaultWakeDelay is how long the reader needs after a wake datagram
	DefaultWakeDelay = 1500 * time.Millisecond

	// DefaultTimeout bounds a single Read when no bytes arrive
	DefaultTimeout = 500 * time.Millisecond

	dialTimeout = 3 * time.Second
	readSlice   = 100 * time.Millisecond
	flushWindow = 5 * time.Millisecond
	// flushLimit caps a flush against a reader that never goes quiet
	flushLimit = 100 * time.Millisecond
)

// Option configures a Transport
type Option func(*Transport)

// WithWake makes Open send mac to the reader's wake port before dialing
func WithWake(mac net.HardwareAddr) Option {
	return func(t *Transport) {
		t.mac = mac
	}
}

// WithWakePort overrides the UDP port of the wake datagram
func WithWakePort(port int) Option {
	return func(t *Transport) {
		t.wakePort = port
	}
}

// WithWakeDelay overrides the settle time after the wake datagram
func WithWakeDelay(d time.Duration) Option {
	return func(t *Transport) {
		t.wakeDelay = d
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

// WithDialRetries sets how often a refused connection is retried
func WithDialRetries(n int) Option {
	return func(t *Transport) {
		if n >= 0 {
			t.dialRetries = n
		}
	}
}

// Transport implements stpv3.Transport over a TCP stream
type Transport struct {
	conn        net.Conn
	mac         net.HardwareAddr
	host        string
	addr        string
	wakePort    int
	wakeDelay   time.Duration
	timeout     time.Duration
	dialRetries int
	mu          sync.Mutex
}

// New connects to addr. A bare host uses DefaultPort.
func New(addr string, opts ...Option) (*Transport, error) {
	t, err := newTransport(addr, opts...)
	if err != nil {
		return nil, err
	}
	if err := t.Open(); err != nil {
		return nil, err
	}
	return t, nil
}

func newTransport(addr string, opts ...Option) (*Transport, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = addr, strconv.Itoa(DefaultPort)
	}
	if host == "" {
		return nil, fmt.Errorf("%w: empty host in %q", stpv3.ErrInvalidParameter, addr)
	}

	t := &Transport{
		host:        host,
		addr:        net.JoinHostPort(host, port),
		wakePort:    DefaultWakePort,
		wakeDelay:   DefaultWakeDelay,
		timeout:     DefaultTimeout,
		dialRetries: 2,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Open wakes the reader if a MAC address is configured and dials it,
// closing a previous connection first
func (t *Transport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}

	if len(t.mac) > 0 {
		if err := t.wake(); err != nil {
			return err
		}
	}

	ctx := context.Background()
	conn, err := transport.WithRetry(ctx, transport.RetryConfig{
		Description: "Dial",
		Port:        t.addr,
		MaxRetries:  t.dialRetries,
		RetryDelay:  200 * time.Millisecond,
	}, func() (net.Conn, bool, error) {
		conn, err := net.DialTimeout("tcp", t.addr, dialTimeout)
		if err != nil {
			var opErr *net.OpError
			if errors.As(err, &opErr) {
				return nil, true, nil
			}
			return nil, false, err
		}
		return conn, false, nil
	})
	if err != nil {
		return stpv3.NewTransportError("Open", t.addr,
			fmt.Errorf("%w: %w", stpv3.ErrDeviceNotFound, err), stpv3.ErrorTypePermanent)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	t.conn = conn
	return nil
}

func (t *Transport) wake() error {
	conn, err := net.Dial("udp", net.JoinHostPort(t.host, strconv.Itoa(t.wakePort)))
	if err != nil {
		return fmt.Errorf("failed to open wake socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write(t.mac); err != nil {
		return fmt.Errorf("failed to send wake datagram: %w", err)
	}
	time.Sleep(t.wakeDelay)
	return nil
}

func (t *Transport) current() (net.Conn, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn, t.timeout
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
	conn, timeout := t.current()
	if conn == nil {
		return 0, stpv3.ErrTransportClosed
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		slice := time.Now().Add(readSlice)
		if slice.After(deadline) {
			slice = deadline
		}
		if err := conn.SetReadDeadline(slice); err != nil {
			return 0, fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, err := conn.Read(p)
		if n > 0 {
			return n, nil
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			if errors.Is(err, net.ErrClosed) {
				return 0, stpv3.ErrTransportClosed
			}
			return 0, stpv3.NewTransportError("Read", t.addr,
				fmt.Errorf("%w: %w", stpv3.ErrTransportRead, err), stpv3.ErrorTypePermanent)
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if !time.Now().Before(deadline) {
			return 0, stpv3.NewTimeoutError("Read", t.addr)
		}
	}
}

// Write writes all of p
func (t *Transport) Write(p []byte) (int, error) {
	conn, _ := t.current()
	if conn == nil {
		return 0, stpv3.ErrTransportClosed
	}
	if err := conn.SetWriteDeadline(time.Now().Add(dialTimeout)); err != nil {
		return 0, fmt.Errorf("failed to set write deadline: %w", err)
	}
	n, err := conn.Write(p)
	if err != nil {
		return n, stpv3.NewTransportError("Write", t.addr,
			fmt.Errorf("%w: %w", stpv3.ErrTransportWrite, err), stpv3.ErrorTypeTransient)
	}
	return n, nil
}

// Flush discards bytes already received on the connection
func (t *Transport) Flush() error {
	conn, _ := t.current()
	if conn == nil {
		return stpv3.ErrTransportClosed
	}

	buf := make([]byte, 512)
	stop := time.Now().Add(flushLimit)
	for time.Now().Before(stop) {
		if err := conn.SetReadDeadline(time.Now().Add(flushWindow)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
		n, err := conn.Read(buf)
		if n == 0 || err != nil {
			if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
				return fmt.Errorf("failed to flush: %w", err)
			}
			return nil
		}
	}
	return nil
}

// Close closes the connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", t.addr, err)
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

// IsConnected returns true while the connection is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Type returns the transport type
func (*Transport) Type() stpv3.TransportType {
	return stpv3.TransportTCP
}

// HasCapability reports the optional behaviors of the TCP transport
func (*Transport) HasCapability(capability stpv3.TransportCapability) bool {
	return capability == stpv3.CapabilityReopen
}

// Addr returns host:port of the reader
func (t *Transport) Addr() string {
	return t.addr
}

var (
	_ stpv3.Transport        = (*Transport)(nil)
	_ stpv3.TransportContext = (*Transport)(nil)
	_ stpv3.Reopener         = (*Transport)(nil)
)
