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

/*
Package stpv3 is a Go driver for RFID readers that speak the STPv3
binary protocol, such as the SkyeModule M-series.

The package turns reader operations into request frames, writes them to
a byte-stream Transport and decodes the reply stream. It handles the
protocol details callers should not have to: CRC checking, partial
frames, LOOP_OFF answers that ask for a request to be reissued, and
inventory streams that report one tag per frame.

Features:
  - Transports for serial ports, USB-HID, TCP and I2C (see transport/...)
  - Reader discovery over USB, hidraw, I2C and UDP multicast (see detection/...)
  - Single and looping inventories, as callbacks or range iterators
  - Tag memory, configuration, password, lock and EAS commands
  - Typed accessors for the reader's system parameters
  - Antenna multiplexer control
  - Firmware upload through the bootloader (see bootload)

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-stpv3"
	    "github.com/ZaparooProject/go-stpv3/transport/uart"
	)

	t, err := uart.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}
	defer t.Close()

	reader, err := stpv3.New(t, stpv3.WithTimeout(time.Second))
	if err != nil {
	    log.Fatal(err)
	}

	tags, err := reader.SelectTags(ctx, nil)
	if err != nil {
	    log.Fatal(err)
	}
	for _, tag := range tags {
	    fmt.Println(tag)
	}

Looping inventories run until the callback returns false or the context
ends:

	err := reader.InventoryTags(ctx, &stpv3.Tag{Type: stpv3.TagTypeGen2}, true,
	    func(tag *stpv3.Tag) bool {
	        fmt.Println(tag.TIDHex())
	        return true
	    })

Error Handling:

Transport failures are *TransportError values classified as permanent,
transient or timeout. A command the reader understood but refused is a
*ReaderFault carrying the response code:

	if code, ok := stpv3.IsDeviceFault(err); ok {
	    log.Printf("reader said %s", code)
	}
	if stpv3.IsTimeout(err) {
	    // no answer in time
	}

Read-style operations return nil data instead of an error when the reader
answers with a failure code.

Thread Safety:

A Reader serializes its operations, so it may be shared between
goroutines. Only one request is in flight on a transport at any time.
*/
package stpv3
