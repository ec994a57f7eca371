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

const smallBufferSize = 64

var (
	smallPool = sync.Pool{New: func() any { b := make([]byte, smallBufferSize); return &b }}
	framePool = sync.Pool{New: func() any { b := make([]byte, MaxFrameSize); return &b }}
)

// GetBuffer returns a pooled buffer of at least size bytes, sliced to size
func GetBuffer(size int) []byte {
	if size <= smallBufferSize {
		return GetSmallBuffer(size)
	}
	if size > MaxFrameSize {
		return make([]byte, size)
	}
	bp, _ := framePool.Get().(*[]byte)
	return (*bp)[:size]
}

// GetSmallBuffer returns a pooled buffer for short reads such as HID reports
func GetSmallBuffer(size int) []byte {
	if size > smallBufferSize {
		return make([]byte, size)
	}
	bp, _ := smallPool.Get().(*[]byte)
	return (*bp)[:size]
}

// PutBuffer returns a buffer obtained from GetBuffer or GetSmallBuffer
func PutBuffer(buf []byte) {
	switch cap(buf) {
	case smallBufferSize:
		buf = buf[:smallBufferSize]
		smallPool.Put(&buf)
	case MaxFrameSize:
		buf = buf[:MaxFrameSize]
		framePool.Put(&buf)
	}
}
