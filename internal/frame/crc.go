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

package frame

import "sync"

const crcPoly = 0x8408

var (
	crcTable     [256]uint16
	crcTableOnce sync.Once
)

func initCRCTable() {
	for i := range crcTable {
		crc := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ crcPoly
			} else {
				crc >>= 1
			}
		}
		crcTable[i] = crc
	}
}

// CalculateCRC computes the CRC-16/CCITT (reflected, preset 0x0000) used
// by STPv3 over MSGLEN through the last byte before the CRC field.
func CalculateCRC(data []byte) uint16 {
	crcTableOnce.Do(initCRCTable)

	var crc uint16
	for _, b := range data {
		crc = (crc >> 8) ^ crcTable[byte(crc)^b]
	}
	return crc
}

// AppendCRC appends the big-endian CRC of frm[1:] (everything after STX).
func AppendCRC(frm []byte) []byte {
	crc := CalculateCRC(frm[1:])
	return append(frm, byte(crc>>8), byte(crc))
}

// ValidateCRC reports whether a complete frame (STX through CRC) carries
// a matching checksum.
func ValidateCRC(frm []byte) bool {
	if len(frm) < HeaderSize+CRCSize {
		return false
	}
	body := frm[1 : len(frm)-CRCSize]
	return CalculateCRC(body) == Uint16(frm[len(frm)-CRCSize:])
}
