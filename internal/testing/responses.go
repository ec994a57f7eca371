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

// Package testing provides device-side STPv3 helpers for tests: a request
// parser, response frame builders and a simulated reader.
package testing

import (
	"github.com/ZaparooProject/go-stpv3/internal/frame"
)

// Response codes used by the simulated reader
const (
	CodeSelectTagPass  uint16 = 0x0101
	CodeInventoryDone  uint16 = 0x0114
	CodeLoopOn         uint16 = 0x011C
	CodeLoopOff        uint16 = 0x011D
	CodeSelectTagFail  uint16 = 0x8101
	CodeInvalidCommand uint16 = 0x8001
	CodeBadCRC         uint16 = 0x8002
	failBit            uint16 = 0x8000
)

// TestRID is the reader id test readers answer to
var TestRID = []byte{0x00, 0x00, 0x00, 0x01}

// BuildResponse creates a response frame: CODE | [RID] | [DATALEN DATA]
func BuildResponse(code uint16, rid, data []byte) []byte {
	frm := []byte{frame.STX, 0x00, 0x00}
	frm = appendUint16(frm, code)
	frm = append(frm, rid...)
	if len(data) > 0 {
		frm = appendUint16(frm, uint16(len(data)))
		frm = append(frm, data...)
	}
	return finish(frm)
}

// BuildSelectResponse creates a SELECT_TAG pass frame carrying a tag type and TID
func BuildSelectResponse(rid []byte, tagType uint16, tid []byte) []byte {
	frm := []byte{frame.STX, 0x00, 0x00}
	frm = appendUint16(frm, CodeSelectTagPass)
	frm = append(frm, rid...)
	frm = appendUint16(frm, tagType)
	frm = appendUint16(frm, uint16(len(tid)))
	frm = append(frm, tid...)
	return finish(frm)
}

// BuildPassResponse creates the pass response for an opcode
func BuildPassResponse(opcode uint16, rid, data []byte) []byte {
	return BuildResponse(opcode, rid, data)
}

// BuildFailResponse creates the fail response for an opcode
func BuildFailResponse(opcode uint16, rid []byte) []byte {
	return BuildResponse(opcode|failBit, rid, nil)
}

// BuildLoopOffResponse creates a LOOP_OFF response
func BuildLoopOffResponse(rid []byte) []byte {
	return BuildResponse(CodeLoopOff, rid, nil)
}

// BuildInventoryDoneResponse creates the response ending an inventory
func BuildInventoryDoneResponse(rid []byte) []byte {
	return BuildResponse(CodeInventoryDone, rid, nil)
}

// Chunk splits b into pieces of at most size bytes
func Chunk(b []byte, size int) [][]byte {
	if size < 1 {
		size = 1
	}
	chunks := make([][]byte, 0, len(b)/size+1)
	for len(b) > size {
		chunks = append(chunks, b[:size])
		b = b[size:]
	}
	if len(b) > 0 {
		chunks = append(chunks, b)
	}
	return chunks
}

// Concat joins frames into one byte stream
func Concat(frames ...[]byte) []byte {
	var out []byte
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

// finish fills MSGLEN and appends the CRC
func finish(frm []byte) []byte {
	frame.PutUint16(frm[1:3], uint16(len(frm)-frame.HeaderSize+frame.CRCSize))
	return frame.AppendCRC(frm)
}
