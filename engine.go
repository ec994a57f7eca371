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
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-stpv3/internal/frame"
)

// engine drives one command at a time over a transport: it writes the
// request frame, decodes the reply stream and reissues the request when
// the reader answers LOOP_OFF. It is not safe for concurrent use; the
// Reader serializes access.
type engine struct {
	transport TransportContext
	decoder   *Decoder
	retry     *RetryConfig
	// window is how long a non-loop command waits for its next frame
	window time.Duration
}

func newEngine(t Transport, retry *RetryConfig, window time.Duration) *engine {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &engine{
		transport: AsTransportContext(t),
		decoder:   NewDecoder(),
		retry:     retry,
		window:    window,
	}
}

// issue sends cmd and returns its response. LOOP_OFF answers are
// consumed internally; every other code, pass or fail, is returned.
func (e *engine) issue(ctx context.Context, cmd *Command) (*Response, error) {
	var resp *Response
	err := e.stream(ctx, cmd, e.window, func(r *Response) bool {
		resp = r
		return false
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, NewTimeoutError("Issue", cmd.Opcode.String())
	}
	return resp, nil
}

// stream sends cmd and passes each response to yield until yield returns
// false, an inventory terminal code arrives or the stream fails.
//
// In loop mode read timeouts are expected while the field is empty, so
// the engine keeps waiting until ctx is done. Otherwise a gap of window
// without a complete frame is a timeout. When yield stops a finite
// inventory early, the remaining frames are drained so that they are not
// mistaken for the answer to the next command.
func (e *engine) stream(
	ctx context.Context, cmd *Command, window time.Duration, yield func(*Response) bool,
) error {
	req, err := Encode(cmd)
	if err != nil {
		return err
	}

	inventory := cmd.Opcode == OpSelectTag && cmd.Inventory
	loopOffs := 0
	var reissueDeadline time.Time
	draining := false

	if err := e.send(ctx, cmd, req); err != nil {
		return err
	}

	buf := frame.GetBuffer(frame.MaxFrameSize)
	defer frame.PutBuffer(buf)

	deadline := time.Now().Add(window)
	for {
		resp, err := e.decoder.Next()
		switch {
		case err == nil:
		case errors.Is(err, ErrNeedMoreBytes):
			if readErr := e.receive(ctx, cmd, buf, deadline); readErr != nil {
				if draining && IsTimeout(readErr) {
					debugf("%s: drain stopped without terminal code", cmd.Opcode)
					return nil
				}
				return readErr
			}
			continue
		default:
			debugf("%s: dropping frame: %v", cmd.Opcode, err)
			continue
		}

		if !belongsTo(resp, cmd) {
			debugf("%s: dropping unrelated %s", cmd.Opcode, resp)
			continue
		}

		deadline = time.Now().Add(window)
		debugf("%s: received %s", cmd.Opcode, resp)

		if resp.isLoopOff() {
			loopOffs++
			if loopOffs >= e.retry.attempts() {
				return fmt.Errorf("%w: %s answered LOOP_OFF %d times",
					ErrDeviceNotResponding, cmd.Opcode, loopOffs)
			}
			if loopOffs == 1 && e.retry.RetryTimeout > 0 {
				reissueDeadline = time.Now().Add(e.retry.RetryTimeout)
			}
			backoff := e.retry.Backoff(loopOffs - 1)
			if !reissueDeadline.IsZero() && time.Now().Add(backoff).After(reissueDeadline) {
				return fmt.Errorf("%w: %s still answering LOOP_OFF after %v",
					ErrDeviceNotResponding, cmd.Opcode, e.retry.RetryTimeout)
			}
			if err := sleepContext(ctx, backoff); err != nil {
				return fmt.Errorf("%s reissue cancelled: %w", cmd.Opcode, err)
			}
			if err := e.send(ctx, cmd, req); err != nil {
				return err
			}
			deadline = time.Now().Add(window)
			continue
		}

		if inventory {
			if resp.Code == SelectTagLoopOn {
				continue
			}
			if resp.Code == SelectTagFail || (!cmd.Loop && resp.endsInventory()) {
				return nil
			}
			if resp.Code == SelectTagInventoryDone {
				continue
			}
		}

		if draining {
			continue
		}
		if !yield(resp) {
			if !inventory || cmd.Loop {
				return nil
			}
			draining = true
		}
	}
}

// belongsTo reports whether resp answers cmd. Frames left over from an
// earlier request, or sent by another reader on a shared bus, do not.
func belongsTo(resp *Response, cmd *Command) bool {
	if !resp.Code.answers(cmd.Opcode) {
		return false
	}
	if cmd.RID == nil || bytes.Equal(cmd.RID, frame.BroadcastRID[:]) {
		return true
	}
	return bytes.Equal(resp.RID, cmd.RID)
}

// send flushes stale input and writes the request frame
func (e *engine) send(ctx context.Context, cmd *Command, req []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s not sent: %w", cmd.Opcode, err)
	}
	if err := e.transport.Flush(); err != nil {
		debugf("%s: flush failed: %v", cmd.Opcode, err)
	}
	e.decoder.Reset()
	e.decoder.ExpectRID(cmd.RID != nil)

	debugf("%s: sending % X", cmd, req)
	n, err := e.transport.Write(req)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return err
		}
		return NewTransportError("Write", string(e.transport.Type()),
			fmt.Errorf("%w: %w", ErrTransportWrite, err), ErrorTypePermanent)
	}
	if n != len(req) {
		return NewTransportError("Write", string(e.transport.Type()),
			fmt.Errorf("%w: wrote %d of %d bytes", ErrTransportWrite, n, len(req)), ErrorTypePermanent)
	}
	return nil
}

// receive reads the next chunk of bytes into the decoder
func (e *engine) receive(ctx context.Context, cmd *Command, buf []byte, deadline time.Time) error {
	readCtx := ctx
	if !cmd.Loop {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s cancelled: %w", cmd.Opcode, err)
		}

		n, err := e.transport.ReadContext(readCtx, buf)
		if n > 0 {
			e.decoder.Feed(buf[:n])
			return nil
		}
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return fmt.Errorf("%s cancelled: %w", cmd.Opcode, ctx.Err())
		case readCtx.Err() != nil:
			return NewTimeoutError("Read", string(e.transport.Type()))
		case IsTimeout(err):
			if cmd.Loop {
				continue
			}
		default:
			var te *TransportError
			if errors.As(err, &te) {
				return err
			}
			return NewTransportError("Read", string(e.transport.Type()),
				fmt.Errorf("%w: %w", ErrTransportRead, err), ErrorTypePermanent)
		}

		if !cmd.Loop && time.Now().After(deadline) {
			return NewTimeoutError("Read", string(e.transport.Type()))
		}
	}
}
