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

package tagops

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ZaparooProject/go-stpv3"
	testutil "github.com/ZaparooProject/go-stpv3/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEPC = []byte{0x30, 0x00, 0x12, 0x34}

// newTagOps creates tag operations on a simulated reader holding vt and
// targets vt
func newTagOps(t *testing.T, vt *testutil.VirtualTag) *TagOperations {
	t.Helper()

	vr := testutil.NewVirtualReader()
	if vt != nil {
		vr.AddTag(vt)
	}
	mock := stpv3.NewSimulatedTransport(vr)
	reader, err := stpv3.New(mock, stpv3.WithTimeout(200*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = reader.Close()
		_ = mock.Close()
	})

	ops := New(reader)
	ops.SetValidation(&ValidationConfig{
		EnableReadVerification:  true,
		EnableWriteVerification: true,
		ReadRetries:             2,
		WriteRetries:            1,
	})
	if vt != nil {
		require.NoError(t, ops.DetectTag(context.Background(), nil))
	}
	return ops
}

func TestDetectTag(t *testing.T) {
	t.Parallel()

	t.Run("Found", func(t *testing.T) {
		t.Parallel()
		ops := newTagOps(t, testutil.NewVirtualGen2Tag(testutil.TestTID1, testEPC, 4))

		require.NotNil(t, ops.Tag())
		assert.Equal(t, testutil.TestTID1, ops.Tag().TID)
		assert.Equal(t, stpv3.TagTypeGen2, ops.Tag().Type)
	})

	t.Run("ByTID", func(t *testing.T) {
		t.Parallel()
		ops := newTagOps(t, testutil.NewVirtualGen2Tag(testutil.TestTID1, testEPC, 4))

		err := ops.DetectTag(context.Background(), stpv3.NewTag(stpv3.TagTypeGen2, testutil.TestTID2))
		require.ErrorIs(t, err, ErrNoTag)
		assert.Nil(t, ops.Tag())
	})

	t.Run("EmptyField", func(t *testing.T) {
		t.Parallel()
		ops := newTagOps(t, nil)

		require.ErrorIs(t, ops.DetectTag(context.Background(), nil), ErrNoTag)
	})
}

func TestOperationsNeedGen2Tag(t *testing.T) {
	t.Parallel()
	ops := newTagOps(t, nil)
	ctx := context.Background()

	_, err := ops.ReadEPC(ctx)
	require.ErrorIs(t, err, ErrNoTag)

	ops.SetTag(stpv3.NewTag(stpv3.TagTypeMifare1K, []byte{0x01, 0x03, 0x05, 0x07}))
	_, err = ops.ReadUserMemory(ctx)
	require.ErrorIs(t, err, ErrNotGen2)
	require.ErrorIs(t, ops.Unlock(ctx, []byte{1, 3, 5, 7}), ErrNotGen2)
	assert.False(t, ops.IsNDEFCapable(ctx))

	ops.SetTag(nil)
	assert.Nil(t, ops.Tag())
}

func TestEPC(t *testing.T) {
	t.Parallel()
	vt := testutil.NewVirtualGen2Tag(testutil.TestTID1, testEPC, 0)
	ops := newTagOps(t, vt)
	ctx := context.Background()

	epc, err := ops.ReadEPC(ctx)
	require.NoError(t, err)
	assert.Equal(t, testEPC, epc)

	newEPC := []byte{0xE2, 0x00, 0x00, 0x17, 0x22, 0x0A, 0x00, 0x44}
	require.NoError(t, ops.WriteEPC(ctx, newEPC))
	assert.Equal(t, newEPC, vt.EPC())

	epc, err = ops.ReadEPC(ctx)
	require.NoError(t, err)
	assert.Equal(t, newEPC, epc)
}

func TestWriteEPC_Invalid(t *testing.T) {
	t.Parallel()
	ops := newTagOps(t, testutil.NewVirtualGen2Tag(testutil.TestTID1, testEPC, 0))

	tests := []struct {
		name string
		epc  []byte
	}{
		{name: "Empty", epc: nil},
		{name: "Odd_Length", epc: []byte{0x01, 0x03, 0x05}},
		{name: "Too_Long", epc: make([]byte, MaxEPCBytes+2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ops.WriteEPC(context.Background(), tt.epc)
			require.ErrorIs(t, err, stpv3.ErrInvalidParameter)
		})
	}
}

func TestUserMemory(t *testing.T) {
	t.Parallel()
	ops := newTagOps(t, testutil.NewVirtualGen2Tag(testutil.TestTID1, testEPC, 8))
	ctx := context.Background()

	mem, err := ops.ReadUserMemory(ctx)
	require.NoError(t, err)
	assert.Len(t, mem, 16)

	require.NoError(t, ops.WriteUserMemory(ctx, []byte{0x0A, 0x0B, 0x0C}))
	words, err := ops.ReadUserWords(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0A, 0x0B, 0x0C, 0x00}, words)

	limited, err := ops.ReadMemory(ctx, UserBankAddr, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0A, 0x0B, 0x0C, 0x00, 0x00, 0x00}, limited)

	tid, err := ops.ReadTID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestTID1, tid)

	err = ops.WriteUserMemory(ctx, make([]byte, 18))
	require.Error(t, err, "writes past the end of the user bank fail")

	require.ErrorIs(t, ops.WriteUserMemory(ctx, nil), stpv3.ErrInvalidParameter)
}

func TestPasswordsAndLock(t *testing.T) {
	t.Parallel()
	vt := testutil.NewVirtualGen2Tag(testutil.TestTID1, testEPC, 2)
	ops := newTagOps(t, vt)
	ctx := context.Background()

	password := []byte{0x11, 0x22, 0x33, 0x44}
	require.NoError(t, ops.SetKillPassword(ctx, []byte{0x0A, 0x0B, 0x0C, 0x0D}))
	require.NoError(t, ops.SetAccessPassword(ctx, password))
	require.ErrorIs(t, ops.SetAccessPassword(ctx, []byte{0x01}), stpv3.ErrInvalidParameter)

	require.Error(t, ops.Lock(ctx, []byte{0x00, 0x00, 0x00, 0x09}, 0x000C0008))
	_, locked := vt.LockValue()
	assert.False(t, locked)

	require.NoError(t, ops.Lock(ctx, password, 0x000C0008))
	value, locked := vt.LockValue()
	assert.True(t, locked)
	assert.Equal(t, uint32(0x000C0008), value)

	require.ErrorIs(t, ops.Unlock(ctx, []byte{0x01, 0x03}), stpv3.ErrInvalidParameter)
}

func TestReadProtect(t *testing.T) {
	t.Parallel()
	vt := testutil.NewVirtualGen2Tag(testutil.TestTID1, testEPC, 2)
	ops := newTagOps(t, vt)
	ctx := context.Background()

	password := []byte{0x0A, 0x0B, 0x0C, 0x0D}
	require.NoError(t, ops.SetAccessPassword(ctx, password))

	require.Error(t, ops.SetReadProtect(ctx, []byte{0x00, 0x00, 0x00, 0x01}))
	assert.False(t, vt.ReadProtected())

	require.NoError(t, ops.SetReadProtect(ctx, password))
	assert.True(t, vt.ReadProtected())
	_, err := ops.ReadUserWords(ctx, 1)
	require.ErrorIs(t, err, ErrReadFailed)

	require.NoError(t, ops.ResetReadProtect(ctx, password))
	assert.False(t, vt.ReadProtected())
}

func TestNDEF(t *testing.T) {
	t.Parallel()

	t.Run("Text", func(t *testing.T) {
		t.Parallel()
		ops := newTagOps(t, testutil.NewVirtualGen2Tag(testutil.TestTID1, testEPC, 32))
		ctx := context.Background()

		assert.True(t, ops.IsNDEFCapable(ctx))
		require.NoError(t, ops.WriteText(ctx, "hello"))

		text, err := ops.ReadText(ctx)
		require.NoError(t, err)
		assert.Contains(t, text, "hello")
	})

	t.Run("Multiple_Records", func(t *testing.T) {
		t.Parallel()
		ops := newTagOps(t, testutil.NewVirtualGen2Tag(testutil.TestTID2, testEPC, 64))
		ctx := context.Background()

		msg := &NDEFMessage{Records: []NDEFRecord{
			NewTextRecord("launch"),
			NewURIRecord("https://zaparoo.org"),
		}}
		require.NoError(t, ops.WriteNDEF(ctx, msg))

		got, err := ops.ReadNDEF(ctx)
		require.NoError(t, err)
		require.Len(t, got.Records, 2)
		assert.Equal(t, NDEFRecordText, got.Records[0].Type)
		assert.Contains(t, got.Records[0].Text, "launch")
		assert.Equal(t, NDEFRecordURI, got.Records[1].Type)
		assert.Contains(t, got.Records[1].Text, "zaparoo.org")
	})

	t.Run("Empty_Memory", func(t *testing.T) {
		t.Parallel()
		ops := newTagOps(t, testutil.NewVirtualGen2Tag(testutil.TestTID1, testEPC, 8))

		_, err := ops.ReadNDEF(context.Background())
		require.ErrorIs(t, err, ErrNoNDEF)
	})

	t.Run("Too_Large", func(t *testing.T) {
		t.Parallel()
		ops := newTagOps(t, testutil.NewVirtualGen2Tag(testutil.TestTID1, testEPC, 4))

		err := ops.WriteText(context.Background(), strings.Repeat("x", 40))
		require.ErrorIs(t, err, ErrNDEFTooLarge)
	})

	t.Run("Invalid", func(t *testing.T) {
		t.Parallel()
		ops := newTagOps(t, testutil.NewVirtualGen2Tag(testutil.TestTID1, testEPC, 8))

		require.ErrorIs(t, ops.WriteNDEF(context.Background(), nil), stpv3.ErrInvalidParameter)
		err := ops.WriteNDEF(context.Background(), &NDEFMessage{Records: []NDEFRecord{{Type: "Sp"}}})
		require.ErrorIs(t, err, ErrUnsupportedRecord)
	})
}

func TestTLV(t *testing.T) {
	t.Parallel()

	short := wrapTLV([]byte{0xD1, 0x01})
	assert.Equal(t, []byte{0x03, 0x02, 0xD1, 0x01, 0xFE, 0x00}, short)
	offset, length, err := tlvBounds(short)
	require.NoError(t, err)
	assert.Equal(t, 2, offset)
	assert.Equal(t, 2, length)

	long := wrapTLV(make([]byte, 300))
	assert.Equal(t, []byte{0x03, 0xFF, 0x01, 0x2C}, long[:4])
	assert.Zero(t, len(long)%2)
	offset, length, err = tlvBounds(long)
	require.NoError(t, err)
	assert.Equal(t, 4, offset)
	assert.Equal(t, 300, length)

	_, _, err = tlvBounds([]byte{0x00, 0x00, 0x00, 0x00})
	require.ErrorIs(t, err, ErrNoNDEF)
}

func TestPerformValidatedRead(t *testing.T) {
	t.Parallel()

	config := &ValidationConfig{EnableReadVerification: true, ReadRetries: 3}

	sequence := func(results ...[]byte) func() ([]byte, error) {
		i := 0
		return func() ([]byte, error) {
			r := results[i%len(results)]
			i++
			return r, nil
		}
	}

	got, err := performValidatedRead(context.Background(), config, sequence([]byte{1}, []byte{1}))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got)

	_, err = performValidatedRead(context.Background(), config, sequence([]byte{1}, []byte{2}))
	require.Error(t, err)

	failing := errors.New("no answer")
	calls := 0
	_, err = performValidatedRead(context.Background(), config, func() ([]byte, error) {
		calls++
		if calls == 1 {
			return []byte{1}, nil
		}
		return nil, failing
	})
	require.ErrorIs(t, err, failing)

	got, err = performValidatedRead(context.Background(), &ValidationConfig{}, sequence([]byte{7}, []byte{8}))
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, got)
}

func TestPerformValidatedWrite(t *testing.T) {
	t.Parallel()

	config := &ValidationConfig{EnableWriteVerification: true, WriteRetries: 2}
	writes := 0
	err := performValidatedWrite(context.Background(), []byte{1, 2}, config,
		func() error { writes++; return nil },
		func() ([]byte, error) { return []byte{9, 9}, nil },
	)
	require.ErrorIs(t, err, ErrVerifyFailed)
	assert.Equal(t, 3, writes)

	err = performValidatedWrite(context.Background(), []byte{1, 2}, config,
		func() error { return nil },
		func() ([]byte, error) { return []byte{1, 2}, nil },
	)
	require.NoError(t, err)
}
