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
	"sync"
	"time"

	testutil "github.com/ZaparooProject/go-stpv3/internal/testing"
)

const mockReadTimeout = 50 * time.Millisecond

// MockTransport is an in-memory byte stream for tests. Each Write is
// answered with the frames configured for its opcode (or produced by a
// responder), which then become readable.
type MockTransport struct {
	readErr    error
	writeErr   error
	ready      chan struct{}
	responses  map[Opcode][]byte
	queued     map[Opcode][][]byte
	errors     map[Opcode]error
	callCount  map[Opcode]int
	responder  func(req []byte) [][]byte
	pending    []byte
	written    [][]byte
	delay      time.Duration
	timeout    time.Duration
	chunkSize  int
	flushCount int
	mu         sync.Mutex
	closed     bool
}

// NewMockTransport creates an empty mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		ready:     make(chan struct{}, 1),
		responses: make(map[Opcode][]byte),
		queued:    make(map[Opcode][][]byte),
		errors:    make(map[Opcode]error),
		callCount: make(map[Opcode]int),
		timeout:   mockReadTimeout,
	}
}

// NewSimulatedTransport creates a mock transport answered by a simulated
// reader
func NewSimulatedTransport(vr *testutil.VirtualReader) *MockTransport {
	m := NewMockTransport()
	m.SetResponder(vr.Handle)
	return m
}

// SetResponse sets the bytes returned every time opcode is written
func (m *MockTransport) SetResponse(op Opcode, frames ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[op] = testutil.Concat(frames...)
}

// QueueResponse adds a one-shot answer for opcode. Queued answers are
// used in order before the fixed response.
func (m *MockTransport) QueueResponse(op Opcode, frames ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[op] = append(m.queued[op], testutil.Concat(frames...))
}

// SetResponder answers every write through fn
func (m *MockTransport) SetResponder(fn func(req []byte) [][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// SetError makes writes of opcode fail with err
func (m *MockTransport) SetError(op Opcode, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[op] = err
}

// SetWriteError makes every write fail with err. Nil clears it.
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// SetReadError makes the next read fail with err
func (m *MockTransport) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// SetDelay delays answers by d
func (m *MockTransport) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetChunkSize limits every read to n bytes
func (m *MockTransport) SetChunkSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunkSize = n
}

// InjectRead makes b readable without a preceding write
func (m *MockTransport) InjectRead(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliverLocked(b)
}

// GetCallCount returns how many times opcode was written
func (m *MockTransport) GetCallCount(op Opcode) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount[op]
}

// Written returns a copy of every frame written so far
func (m *MockTransport) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	for i, w := range m.written {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// FlushCount returns how many times Flush was called
func (m *MockTransport) FlushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushCount
}

// Write records p and schedules the answer for its opcode
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrTransportClosed
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}

	frm := append([]byte(nil), p...)
	m.written = append(m.written, frm)

	var op Opcode
	if req, err := testutil.ParseRequest(frm); err == nil {
		op = Opcode(req.Opcode)
	}
	m.callCount[op]++
	if err, ok := m.errors[op]; ok {
		return 0, err
	}

	var answer []byte
	switch {
	case m.responder != nil:
		answer = testutil.Concat(m.responder(frm)...)
	case len(m.queued[op]) > 0:
		answer = m.queued[op][0]
		m.queued[op] = m.queued[op][1:]
	default:
		answer = m.responses[op]
	}

	if len(answer) > 0 {
		if m.delay > 0 {
			answer = append([]byte(nil), answer...)
			time.AfterFunc(m.delay, func() {
				m.mu.Lock()
				defer m.mu.Unlock()
				m.deliverLocked(answer)
			})
		} else {
			m.deliverLocked(answer)
		}
	}
	return len(p), nil
}

func (m *MockTransport) deliverLocked(b []byte) {
	if m.closed {
		return
	}
	m.pending = append(m.pending, b...)
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Read returns pending bytes, waiting up to the read timeout for some to
// arrive
func (m *MockTransport) Read(p []byte) (int, error) {
	deadline := time.NewTimer(m.readTimeout())
	defer deadline.Stop()

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return 0, ErrTransportClosed
		}
		if m.readErr != nil {
			err := m.readErr
			m.readErr = nil
			m.mu.Unlock()
			return 0, err
		}
		if len(m.pending) > 0 {
			limit := len(p)
			if m.chunkSize > 0 && m.chunkSize < limit {
				limit = m.chunkSize
			}
			n := copy(p[:limit], m.pending)
			m.pending = m.pending[n:]
			m.mu.Unlock()
			return n, nil
		}
		ready := m.ready
		m.mu.Unlock()

		select {
		case <-ready:
		case <-deadline.C:
			return 0, NewTimeoutError("Read", "mock")
		}
	}
}

func (m *MockTransport) readTimeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// Flush drops bytes not yet read
func (m *MockTransport) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.flushCount++
	return nil
}

// Buffered returns the number of readable bytes
func (m *MockTransport) Buffered() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending), nil
}

// Close marks the transport closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.pending = nil
	return nil
}

// SetTimeout sets the read timeout
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// IsConnected reports whether Close has not been called
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// HasCapability reports the capabilities of the mock
func (*MockTransport) HasCapability(capability TransportCapability) bool {
	return capability == CapabilityBytesAvailable
}

// BlockingMockTransport is a mock transport whose reads block until
// Unblock is called. It is used to test cancellation and lock release
// while a reader is stuck waiting for an answer.
type BlockingMockTransport struct {
	blockChan chan struct{}
	Response  []byte
	written   [][]byte
	timeout   time.Duration
	mu        sync.Mutex
	closed    bool
}

// NewBlockingMockTransport creates a new blocking mock transport
func NewBlockingMockTransport() *BlockingMockTransport {
	return &BlockingMockTransport{
		blockChan: make(chan struct{}),
		timeout:   5 * time.Second,
	}
}

// NewBlockingMockTransportWithResponse creates a blocking mock that returns
// response once unblocked
func NewBlockingMockTransportWithResponse(response []byte) *BlockingMockTransport {
	mock := NewBlockingMockTransport()
	mock.SetResponse(response)
	return mock
}

// Write records p
func (m *BlockingMockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrTransportClosed
	}
	m.written = append(m.written, append([]byte(nil), p...))
	return len(p), nil
}

// Read blocks until Unblock is called, the timeout expires or the
// transport is closed
func (m *BlockingMockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	blockChan := m.blockChan
	closed := m.closed
	timeout := m.timeout
	m.mu.Unlock()

	if closed {
		return 0, ErrTransportClosed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-blockChan:
	case <-timer.C:
		return 0, NewTimeoutError("Read", "mock")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrTransportClosed
	}
	n := copy(p, m.Response)
	m.Response = m.Response[n:]
	if n == 0 {
		return 0, NewTimeoutError("Read", "mock")
	}
	return n, nil
}

// Unblock allows blocked reads to proceed
func (m *BlockingMockTransport) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		close(m.blockChan)
		m.blockChan = make(chan struct{})
	}
}

// Close unblocks all operations and marks the transport as closed
func (m *BlockingMockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.blockChan)
	}
	return nil
}

// SetResponse sets the bytes returned by the next unblocked reads
func (m *BlockingMockTransport) SetResponse(response []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Response = append([]byte(nil), response...)
}

// Written returns the number of frames written
func (m *BlockingMockTransport) Written() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.written)
}

// Flush is a no-op
func (*BlockingMockTransport) Flush() error {
	return nil
}

// SetTimeout configures how long reads block
func (m *BlockingMockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// IsConnected reports whether Close has not been called
func (m *BlockingMockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*BlockingMockTransport) Type() TransportType {
	return TransportMock
}
