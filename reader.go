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
	"sync"
	"time"

	"github.com/ZaparooProject/go-stpv3/internal/frame"
)

// ReaderConfig contains configuration options for the Reader
type ReaderConfig struct {
	// RetryConfig bounds how often a command is reissued after LOOP_OFF
	RetryConfig *RetryConfig
	// Timeout is how long a command waits for its response
	Timeout time.Duration
	// InventoryTimeout is how long a finite inventory waits for the next tag
	InventoryTimeout time.Duration
}

// DefaultReaderConfig returns default reader configuration
func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		RetryConfig:      DefaultRetryConfig(),
		Timeout:          2 * time.Second,
		InventoryTimeout: 500 * time.Millisecond,
	}
}

// Reader is a session with one STPv3 reader over a Transport.
//
// A Reader is safe for concurrent use: operations are serialized so that
// only one request is in flight on the transport at a time. The Reader
// does not own the transport; Close ends the session and the caller
// closes the transport.
type Reader struct {
	transport Transport
	config    *ReaderConfig
	engine    *engine
	rid       []byte
	firmware  string
	mu        sync.Mutex
	closed    bool
}

// New creates a Reader on transport
func New(transport Transport, opts ...Option) (*Reader, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	r := &Reader{
		transport: transport,
		config:    DefaultReaderConfig(),
		rid:       append([]byte(nil), frame.BroadcastRID[:]...),
	}
	r.engine = newEngine(transport, r.config.RetryConfig, r.config.Timeout)

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Transport returns the underlying transport
func (r *Reader) Transport() Transport {
	return r.transport
}

// Config returns a copy of the reader configuration
func (r *Reader) Config() ReaderConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg := *r.config
	retry := *r.config.RetryConfig
	cfg.RetryConfig = &retry
	return cfg
}

// SetTimeout sets how long a command waits for its response
func (r *Reader) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidParameter)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.Timeout = timeout
	r.engine.window = timeout
	return nil
}

// SetRetryConfig updates the retry configuration
func (r *Reader) SetRetryConfig(config *RetryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.RetryConfig = config
	r.applyRetryConfig()
}

func (r *Reader) applyRetryConfig() {
	r.engine.retry = r.config.RetryConfig
	if tr, ok := r.transport.(*TransportWithRetry); ok {
		tr.SetRetryConfig(r.config.RetryConfig)
	}
}

// ReaderID returns the cached reader id requests are addressed to
func (r *Reader) ReaderID() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.rid...)
}

// Close ends the session. Further operations return ErrSessionClosed.
// The transport is left open.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Issue sends a raw command and returns the reader's response. LOOP_OFF
// is handled internally. A failure response code is returned as a
// Response, not as an error.
func (r *Reader) Issue(ctx context.Context, cmd *Command) (*Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrSessionClosed
	}
	return r.engine.issue(ctx, cmd)
}

// exchange sends a command addressed to this reader. The lock must be held.
func (r *Reader) exchange(ctx context.Context, cmd *Command) (*Response, error) {
	if r.closed {
		return nil, ErrSessionClosed
	}
	cmd.RID = r.rid
	return r.engine.issue(ctx, cmd)
}

// query runs a read-style command. A failure response yields nil data
// and no error.
func (r *Reader) query(ctx context.Context, cmd *Command) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	resp, err := r.exchange(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !resp.Success() {
		debugf("%s failed: %s", cmd.Opcode, resp.Code)
		return nil, nil
	}
	if resp.Data == nil {
		return []byte{}, nil
	}
	return resp.Data, nil
}

// command runs a write-style command. A failure response yields a
// *ReaderFault.
func (r *Reader) command(ctx context.Context, op string, cmd *Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commandLocked(ctx, op, cmd)
}

func (r *Reader) commandLocked(ctx context.Context, op string, cmd *Command) error {
	resp, err := r.exchange(ctx, cmd)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return NewReaderFault(op, resp.Code)
	}
	return nil
}

// SelectTag selects one tag matching tag's type and TID. On success the
// tag's TID is filled in and, when its type was left as auto-detect, its
// type too. ok is false when no tag answered.
func (r *Reader) SelectTag(ctx context.Context, tag *Tag) (bool, error) {
	if tag == nil {
		return false, fmt.Errorf("%w: nil tag", ErrInvalidParameter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	resp, err := r.exchange(ctx, &Command{Opcode: OpSelectTag, Tag: tag})
	if err != nil {
		return false, err
	}
	if resp.Code != SelectTagPass {
		debugf("select tag: %s", resp.Code)
		return false, nil
	}
	tag.stamp(resp)
	return true, nil
}

// ReadTagData reads blocks of tag memory starting at address. It returns
// nil when the reader reports a failure.
func (r *Reader) ReadTagData(ctx context.Context, tag *Tag, address, blocks uint16) ([]byte, error) {
	return r.query(ctx, &Command{Opcode: OpReadTag, Tag: tag, Address: address, Blocks: blocks})
}

// WriteTagData writes data to tag memory starting at address
func (r *Reader) WriteTagData(ctx context.Context, tag *Tag, data []byte, address, blocks uint16) error {
	return r.command(ctx, "WriteTagData",
		&Command{Opcode: OpWriteTag, Tag: tag, Data: data, Address: address, Blocks: blocks})
}

// LockTagData issues WRITE_TAG with the lock flag. For Gen2 tags data is
// the 4-byte lock action value and address and blocks are zero.
func (r *Reader) LockTagData(ctx context.Context, tag *Tag, data []byte, address, blocks uint16) error {
	return r.command(ctx, "LockTagData",
		&Command{Opcode: OpWriteTag, Tag: tag, Data: data, Address: address, Blocks: blocks, Lock: true})
}

// SendTagPassword sends a password to the tag
func (r *Reader) SendTagPassword(ctx context.Context, tag *Tag, password []byte) error {
	return r.command(ctx, "SendTagPassword",
		&Command{Opcode: OpSendTagPassword, Tag: tag, Data: password})
}

// ReadTagConfig reads tag configuration. It returns nil when the reader
// reports a failure.
func (r *Reader) ReadTagConfig(ctx context.Context, tag *Tag, address, blocks uint16) ([]byte, error) {
	return r.query(ctx, &Command{Opcode: OpReadTagConfig, Tag: tag, Address: address, Blocks: blocks})
}

// WriteTagConfig writes tag configuration
func (r *Reader) WriteTagConfig(ctx context.Context, tag *Tag, data []byte, address, blocks uint16) error {
	return r.command(ctx, "WriteTagConfig",
		&Command{Opcode: OpWriteTagConfig, Tag: tag, Data: data, Address: address, Blocks: blocks})
}

// EnableEAS sets the electronic article surveillance bit of a tag
func (r *Reader) EnableEAS(ctx context.Context, tag *Tag) error {
	return r.command(ctx, "EnableEAS", &Command{Opcode: OpEnableEAS, Tag: tag})
}

// DisableEAS clears the electronic article surveillance bit of a tag
func (r *Reader) DisableEAS(ctx context.Context, tag *Tag) error {
	return r.command(ctx, "DisableEAS", &Command{Opcode: OpDisableEAS, Tag: tag})
}

// ScanEAS reports whether a tag with EAS set is in the field
func (r *Reader) ScanEAS(ctx context.Context, tag *Tag) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	resp, err := r.exchange(ctx, &Command{Opcode: OpScanEAS, Tag: tag})
	if err != nil {
		return false, err
	}
	return resp.Success(), nil
}

// LoadDefaults copies the stored default parameters into the volatile set
func (r *Reader) LoadDefaults(ctx context.Context) error {
	return r.command(ctx, "LoadDefaults", &Command{Opcode: OpLoadDefaults})
}

// ResetDevice restarts the reader
func (r *Reader) ResetDevice(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.commandLocked(ctx, "ResetDevice", &Command{Opcode: OpResetDevice}); err != nil {
		return err
	}
	r.firmware = ""
	return nil
}
