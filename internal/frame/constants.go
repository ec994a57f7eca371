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

// Package frame provides wire constants and checksum helpers for STPv3 frames
package frame

// Frame markers
const (
	STX = 0x02 // Start of every binary frame
)

// Header layout
const (
	LengthFieldSize = 2 // MSGLEN, big-endian
	FlagsFieldSize  = 2
	CodeFieldSize   = 2 // COMMAND in requests, RESPONSE CODE in responses
	RIDSize         = 4
	TagTypeSize     = 2
	AddressSize     = 2
	BlocksSize      = 2
	DataLenSize     = 2
	CRCSize         = 2

	// HeaderSize is STX plus MSGLEN, the bytes not counted by MSGLEN.
	HeaderSize = 1 + LengthFieldSize
)

// Frame size limits
const (
	MaxFrameSize   = 2048                      // Largest frame accepted on the wire
	MaxMessageLen  = MaxFrameSize - HeaderSize // Largest MSGLEN value
	MinMessageLen  = CodeFieldSize + CRCSize   // Smallest response body (code + crc)
	MaxTIDLength   = 255                       // TIDLEN is a single byte
	MaxPayloadSize = MaxMessageLen - 32        // Payload budget after the largest header
	MaxDataLength  = 1024                      // Largest tag memory read the driver asks for
)

// Request flag bits
const (
	FlagLoop       uint16 = 0x0001
	FlagInventory  uint16 = 0x0002
	FlagLock       uint16 = 0x0004
	FlagRF         uint16 = 0x0008
	FlagAFI        uint16 = 0x0010
	FlagCRC        uint16 = 0x0020
	FlagTID        uint16 = 0x0040
	FlagRID        uint16 = 0x0080
	FlagEncryption uint16 = 0x0100
	FlagHMAC       uint16 = 0x0200
	FlagSession    uint16 = 0x0400
	FlagData       uint16 = 0x0800
)

// BroadcastRID addresses every reader on a shared bus.
var BroadcastRID = [RIDSize]byte{0xFF, 0xFF, 0xFF, 0xFF}

// PutUint16 writes v big-endian into b[0:2]
func PutUint16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

// Uint16 reads a big-endian value from b[0:2]
func Uint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// Command groups. The high byte of an opcode selects the group.
const (
	GroupTag    = 0x01
	GroupSystem = 0x02
)

// Opcodes that carry ADDRESS and BLOCKS fields
var addressedOpcodes = map[uint16]struct{}{
	0x0102: {}, // read tag
	0x0103: {}, // write tag
	0x010A: {}, // send tag password
	0x010B: {}, // read tag config
	0x010C: {}, // write tag config
	0x0204: {}, // read system parameter
	0x0205: {}, // write system parameter
	0x0206: {}, // retrieve default system parameter
	0x0207: {}, // store default system parameter
}

// HasTagFields reports whether requests for op carry TAGTYPE (and TID when flagged)
func HasTagFields(op uint16) bool {
	return op>>8 == GroupTag
}

// HasAddressFields reports whether requests for op carry ADDRESS and BLOCKS
func HasAddressFields(op uint16) bool {
	_, ok := addressedOpcodes[op]
	return ok
}

// Response codes with a layout of their own
const (
	SelectTagPassCode = 0x0101 // carries TAGTYPE before the TID data
)
