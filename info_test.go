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

import (
	"context"
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-stpv3/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_Info(t *testing.T) {
	t.Parallel()

	reader, _ := newSimulatedReader(t, testutil.NewVirtualReader())

	info, err := reader.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &ReaderInfo{
		SerialNumber:    "10203040",
		FirmwareVersion: "0001020A",
		HardwareVersion: "00000901",
		ProductCode:     "0009",
		Name:            "SkyeModule M9",
	}, info)

	assert.Equal(t, map[string]string{
		"serial":   "10203040",
		"firmware": "0001020A",
		"hardware": "00000901",
		"product":  "0009",
		"name":     "SkyeModule M9",
	}, info.Metadata())
}

func TestReaderInfo_MetadataSkipsEmpty(t *testing.T) {
	t.Parallel()

	info := &ReaderInfo{FirmwareVersion: "0001020A"}
	assert.Equal(t, map[string]string{"firmware": "0001020A"}, info.Metadata())
}

func TestProbe(t *testing.T) {
	t.Parallel()

	t.Run("Reader_Answers", func(t *testing.T) {
		t.Parallel()

		mock := NewSimulatedTransport(testutil.NewVirtualReader())
		info, err := Probe(context.Background(), mock, 100*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, "0001020A", info.FirmwareVersion)
		assert.True(t, mock.IsConnected(), "Probe leaves the transport open")
	})

	t.Run("Silent_Port", func(t *testing.T) {
		t.Parallel()

		start := time.Now()
		_, err := Probe(context.Background(), NewMockTransport(), 30*time.Millisecond)
		require.Error(t, err)
		assert.True(t, IsTimeout(err), "got %v", err)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("No_Firmware_Version", func(t *testing.T) {
		t.Parallel()

		vr := testutil.NewVirtualReader()
		vr.FailOpcode(uint16(OpReadSystemParameter), uint16(FailCode(OpReadSystemParameter)))
		_, err := Probe(context.Background(), NewSimulatedTransport(vr), 100*time.Millisecond)
		require.ErrorIs(t, err, ErrDeviceNotResponding)
	})
}
