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
	"strings"
	"testing"
	"time"

	"github.com/ZaparooProject/go-stpv3/bootload"
	testutil "github.com/ZaparooProject/go-stpv3/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testImage = `# test firmware
0102030405
;
A0B0C0D0
`

func TestReader_UploadFirmware(t *testing.T) {
	t.Parallel()

	vr := testutil.NewVirtualReader()
	reader, _ := newSimulatedReader(t, vr)
	ctx := context.Background()

	_, err := reader.FirmwareVersion(ctx)
	require.NoError(t, err)

	var updates []bootload.Progress
	err = reader.UploadFirmware(ctx, strings.NewReader(testImage),
		bootload.WithAckTimeout(100*time.Millisecond),
		bootload.WithProgressCallback(func(p bootload.Progress) {
			updates = append(updates, p)
		}))
	require.NoError(t, err)

	assert.Equal(t, [][]byte{
		{0x01, 0x02, 0x03, 0x04, 0x05},
		{0xA0, 0xB0, 0xC0, 0xD0},
	}, vr.BootloadRecords())
	assert.False(t, vr.InBootloader(), "the end record returns the reader to its application")

	require.NotEmpty(t, updates)
	assert.Equal(t, bootload.PhaseComplete, updates[len(updates)-1].Phase)

	// The cached firmware version was dropped with the old image.
	vr.SetParam(uint16(ParamFirmwareVersion), []byte{0x00, 0x02, 0x00, 0x00})
	version, err := reader.FirmwareVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "00020000", version)
}

func TestReader_UploadFirmwareRejected(t *testing.T) {
	t.Parallel()

	vr := testutil.NewVirtualReader()
	vr.FailOpcode(uint16(OpEnterBootload), uint16(FailCode(OpEnterBootload)))
	reader, mock := newSimulatedReader(t, vr)

	err := reader.UploadFirmware(context.Background(), strings.NewReader(testImage))
	require.ErrorIs(t, err, ErrBootloadRejected)
	assert.Len(t, mock.Written(), 1, "no records are sent after a refusal")
	assert.Empty(t, vr.BootloadRecords())
}

func TestReader_UploadFirmwareBadImage(t *testing.T) {
	t.Parallel()

	reader, mock := newSimulatedReader(t, testutil.NewVirtualReader())

	err := reader.UploadFirmware(context.Background(), strings.NewReader("not hex\n"))
	require.ErrorIs(t, err, bootload.ErrInvalidImage)
	assert.Empty(t, mock.Written())
}
