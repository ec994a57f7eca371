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

package tagops_test

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-stpv3"
	testutil "github.com/ZaparooProject/go-stpv3/internal/testing"
	"github.com/ZaparooProject/go-stpv3/tagops"
)

// newExampleReader stands in for a real reader opened with transport.Open
func newExampleReader() *stpv3.Reader {
	vr := testutil.NewVirtualReader()
	vr.AddTag(testutil.NewVirtualGen2Tag(testutil.TestTID1, []byte{0x30, 0x00, 0x12, 0x34}, 16))
	reader, err := stpv3.New(stpv3.NewSimulatedTransport(vr))
	if err != nil {
		panic(err)
	}
	return reader
}

func Example_readEPC() {
	ctx := context.Background()
	ops := tagops.New(newExampleReader())

	if err := ops.DetectTag(ctx, nil); err != nil {
		fmt.Println("no tag:", err)
		return
	}
	info, err := ops.GetTagInfo(ctx)
	if err != nil {
		fmt.Println("read failed:", err)
		return
	}

	fmt.Printf("TID %X\n", info.TID)
	fmt.Printf("vendor %s model 0x%03X\n", info.Vendor, info.Model)
	fmt.Printf("EPC %X\n", info.EPC)
	fmt.Printf("user memory %d bytes\n", info.UserMemory)

	// Output:
	// TID E200341201234567
	// vendor Alien model 0x412
	// EPC 30001234
	// user memory 32 bytes
}

func Example_writeUserMemory() {
	ctx := context.Background()
	ops := tagops.New(newExampleReader())

	if err := ops.DetectTag(ctx, nil); err != nil {
		fmt.Println("no tag:", err)
		return
	}
	if err := ops.WriteUserMemory(ctx, []byte("go-stpv3")); err != nil {
		fmt.Println("write failed:", err)
		return
	}
	data, err := ops.ReadUserWords(ctx, 4)
	if err != nil {
		fmt.Println("read failed:", err)
		return
	}
	fmt.Println(string(data))

	// Output:
	// go-stpv3
}
