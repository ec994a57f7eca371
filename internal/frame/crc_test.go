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

import "testing"

func TestCalculateCRC(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0x0000,
		},
		{
			name: "check string",
			data: []byte("123456789"),
			want: 0x2189,
		},
		{
			name: "select tag header",
			data: []byte{0x00, 0x05, 0x00, 0x00, 0x01, 0x01},
			want: 0x2E05,
		},
	}

	for _, tt := range tests {
		tt := tt // capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CalculateCRC(tt.data); got != tt.want {
				t.Errorf("CalculateCRC() = %04X, want %04X", got, tt.want)
			}
		})
	}
}

func TestAppendAndValidateCRC(t *testing.T) {
	t.Parallel()

	frm := AppendCRC([]byte{STX, 0x00, 0x06, 0x00, 0x00, 0x01, 0x01})
	if len(frm) != 9 {
		t.Fatalf("frame length = %d, want 9", len(frm))
	}
	if !ValidateCRC(frm) {
		t.Errorf("ValidateCRC() = false for freshly appended CRC")
	}

	frm[5] ^= 0x01
	if ValidateCRC(frm) {
		t.Errorf("ValidateCRC() = true after corrupting payload")
	}

	if ValidateCRC([]byte{STX, 0x00}) {
		t.Errorf("ValidateCRC() = true for truncated frame")
	}
}

func TestUint16RoundTrip(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 2)
	PutUint16(buf, 0xA1B2)
	if buf[0] != 0xA1 || buf[1] != 0xB2 {
		t.Fatalf("PutUint16 wrote % X, want A1 B2", buf)
	}
	if got := Uint16(buf); got != 0xA1B2 {
		t.Errorf("Uint16() = %04X, want A1B2", got)
	}
}

func TestBufferPool(t *testing.T) {
	t.Parallel()

	small := GetBuffer(10)
	if len(small) != 10 {
		t.Errorf("GetBuffer(10) len = %d", len(small))
	}
	PutBuffer(small)

	big := GetBuffer(MaxFrameSize)
	if len(big) != MaxFrameSize {
		t.Errorf("GetBuffer(MaxFrameSize) len = %d", len(big))
	}
	PutBuffer(big)

	oversize := GetBuffer(MaxFrameSize + 1)
	if len(oversize) != MaxFrameSize+1 {
		t.Errorf("GetBuffer(oversize) len = %d", len(oversize))
	}
	PutBuffer(oversize)
}
