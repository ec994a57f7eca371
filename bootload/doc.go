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

// Package bootload streams a firmware image to an STPv3 reader that has
// been switched into its bootloader with ENTER_BOOTLOAD.
//
// The bootloader speaks a simpler protocol than STPv3: each record of the
// image is sent as
//
//	SOH(0x01) | LEN(2) | RECORD | CRC(2)
//
// and acknowledged with a single ACK (0x06) or NAK (0x15) byte. LEN and
// CRC are big-endian; the CRC is the STPv3 CRC-16 over LEN and RECORD. A
// frame with LEN zero ends the upload and restarts the reader.
//
// Images use the .shf text format: one record per line, hex encoded.
// Blank lines and lines starting with '#' or ';' are ignored.
//
//	img, err := bootload.ParseFile("reader.shf")
//	prog, err := bootload.New(transport,
//	    bootload.WithProgressCallback(func(p bootload.Progress) {
//	        fmt.Printf("%s %.0f%%\n", p.Phase, p.Percentage)
//	    }),
//	)
//	err = prog.Program(ctx, img)
package bootload
