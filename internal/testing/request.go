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

package testing

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-stpv3/internal/frame"
)

// ErrBadRequest is returned for frames a reader would reject
var ErrBadRequest = errors.New("bad request frame")

// Request is a request frame as seen by the reader
type Request struct {
	RID     []byte
	TID     []byte
	Data    []byte
	Flags   uint16
	Opcode  uint16
	TagType uint16
	Address uint16
	Blocks  uint16
}

// Has reports whether the request carries the flag
func (r *Request) Has(flag uint16) bool {
	return r.Flags&flag != 0
}

// ParseRequest decodes one complete request frame
func ParseRequest(frm []byte) (*Request, error) {
	if len(frm) < frame.HeaderSize+frame.FlagsFieldSize+frame.CodeFieldSize+frame.CRCSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadRequest, len(frm))
	}
	if frm[0] != frame.STX {
		return nil, fmt.Errorf("%w: missing STX", ErrBadRequest)
	}
	if int(frame.Uint16(frm[1:3])) != len(frm)-frame.HeaderSize {
		return nil, fmt.Errorf("%w: length mismatch", ErrBadRequest)
	}
	if !frame.ValidateCRC(frm) {
		return nil, fmt.Errorf("%w: crc", ErrBadRequest)
	}

	r := &reader{b: frm[frame.HeaderSize : len(frm)-frame.CRCSize]}
	req := &Request{}
	req.Flags = r.u16()
	req.Opcode = r.u16()

	if req.Has(frame.FlagRID) {
		req.RID = r.bytes(frame.RIDSize)
	}
	if frame.HasTagFields(req.Opcode) {
		req.TagType = r.u16()
		if req.Has(frame.FlagTID) {
			n := int(r.u8())
			req.TID = r.bytes(n)
		}
	}
	if frame.HasAddressFields(req.Opcode) {
		req.Address = r.u16()
		req.Blocks = r.u16()
	}
	if req.Has(frame.FlagData) {
		n := int(r.u16())
		req.Data = r.bytes(n)
	}

	if r.err != nil {
		return nil, r.err
	}
	if len(r.b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadRequest, len(r.b))
	}
	return req, nil
}

type reader struct {
	err error
	b   []byte
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b) < n {
		r.err = fmt.Errorf("%w: truncated", ErrBadRequest)
		return nil
	}
	out := append([]byte(nil), r.b[:n]...)
	r.b = r.b[n:]
	return out
}

func (r *reader) u16() uint16 {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return frame.Uint16(b)
}

func (r *reader) u8() byte {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}
