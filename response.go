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

import "fmt"

// ResponseCode is the status an STPv3 reader answers with. Pass codes
// equal the command opcode, fail codes set the high bit.
type ResponseCode uint16

const failBit ResponseCode = 0x8000

// Select tag response codes
const (
	SelectTagPass          ResponseCode = 0x0101
	SelectTagInventoryDone ResponseCode = 0x0114
	SelectTagLoopOn        ResponseCode = 0x011C
	SelectTagLoopOff       ResponseCode = 0x011D
	SelectTagFail          ResponseCode = 0x8101
)

// Generic failure codes
const (
	ResponseInvalidCommand ResponseCode = 0x8001
	ResponseBadCRC         ResponseCode = 0x8002
	ResponseInvalidFlags   ResponseCode = 0x8003
)

var responseNames = map[ResponseCode]string{
	SelectTagInventoryDone: "SELECT_TAG_INVENTORY_DONE",
	SelectTagLoopOn:        "SELECT_TAG_LOOP_ON",
	SelectTagLoopOff:       "SELECT_TAG_LOOP_OFF",
	ResponseInvalidCommand: "INVALID_COMMAND",
	ResponseBadCRC:         "BAD_CRC",
	ResponseInvalidFlags:   "INVALID_FLAGS",
}

// PassCode returns the success response code for an opcode
func PassCode(op Opcode) ResponseCode {
	return ResponseCode(op)
}

// FailCode returns the failure response code for an opcode
func FailCode(op Opcode) ResponseCode {
	return ResponseCode(op) | failBit
}

// Success reports whether the code is a pass code
func (c ResponseCode) Success() bool {
	return c&failBit == 0
}

// Opcode returns the command the code answers
func (c ResponseCode) Opcode() Opcode {
	return Opcode(c &^ failBit)
}

// String returns the protocol name of the code, e.g. READ_TAG_PASS
func (c ResponseCode) String() string {
	if name, ok := responseNames[c]; ok {
		return name
	}
	name, ok := opcodeNames[c.Opcode()]
	if !ok {
		return fmt.Sprintf("ResponseCode(0x%04X)", uint16(c))
	}
	if c.Success() {
		return name + "_PASS"
	}
	return name + "_FAIL"
}

// Response is one decoded STPv3 reply. Responses are never modified after
// they are decoded.
type Response struct {
	// RID is the reader id echoed by the reader, when the request had one
	RID []byte
	// TID is set by SELECT_TAG pass responses
	TID []byte
	// Data holds the payload of read responses
	Data    []byte
	Code    ResponseCode
	TagType TagType
}

// Success reports whether the reader accepted the request
func (r *Response) Success() bool {
	return r != nil && r.Code.Success()
}

// Tag builds a tag from a SELECT_TAG pass response
func (r *Response) Tag() *Tag {
	return NewTag(r.TagType, r.TID)
}

// String summarizes the response for logs
func (r *Response) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (0x%04X) data=%d tid=% X", r.Code, uint16(r.Code), len(r.Data), r.TID)
}

// isLoopOff reports whether the reader asks for the command to be reissued
func (r *Response) isLoopOff() bool {
	return r.Code == SelectTagLoopOff
}

// answers reports whether the code can be the reply to op. Generic
// failure codes and LOOP_OFF answer any command, the select tag status
// codes answer SELECT_TAG.
func (c ResponseCode) answers(op Opcode) bool {
	switch {
	case c.Opcode() == op:
		return true
	case c == SelectTagLoopOff:
		return true
	case c&^failBit <= 0x00FF:
		return true
	case op == OpSelectTag:
		return c == SelectTagInventoryDone || c == SelectTagLoopOn
	}
	return false
}

// endsInventory reports whether the response terminates an inventory stream
func (r *Response) endsInventory() bool {
	return r.Code == SelectTagInventoryDone || r.Code == SelectTagFail
}
