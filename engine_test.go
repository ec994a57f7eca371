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
	"errors"
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-stpv3/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

// newSimulatedReader creates a reader talking to vr with short timeouts
func newSimulatedReader(t *testing.T, vr *testutil.VirtualReader, opts ...Option) (*Reader, *MockTransport) {
	t.Helper()

	mock := NewSimulatedTransport(vr)
	base := []Option{
		WithTimeout(200 * time.Millisecond),
		WithInventoryTimeout(100 * time.Millisecond),
		WithRetryConfig(fastRetryConfig(3)),
	}
	reader, err := New(mock, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = reader.Close()
		_ = mock.Close()
	})
	return reader, mock
}

func TestEngine_LoopOffReissue(t *testing.T) {
	t.Parallel()

	vr := testutil.NewVirtualReader()
	vr.SetLoopOff(2)
	reader, mock := newSimulatedReader(t, vr)

	require.NoError(t, reader.LoadDefaults(context.Background()))

	assert.Len(t, vr.Requests(), 3)
	assert.Equal(t, 3, mock.GetCallCount(OpLoadDefaults))
	assert.Equal(t, 3, mock.FlushCount(), "every write is preceded by a flush")
}

func TestEngine_LoopOffExhausted(t *testing.T) {
	t.Parallel()

	vr := testutil.NewVirtualReader()
	vr.SetLoopOff(10)
	reader, mock := newSimulatedReader(t, vr)

	err := reader.LoadDefaults(context.Background())
	require.ErrorIs(t, err, ErrDeviceNotResponding)
	assert.Equal(t, 3, mock.GetCallCount(OpLoadDefaults))
}

func TestEngine_Timeout(t *testing.T) {
	t.Parallel()

	vr := testutil.NewVirtualReader()
	vr.SetSilent(true)
	reader, _ := newSimulatedReader(t, vr, WithTimeout(30*time.Millisecond))

	start := time.Now()
	err := reader.LoadDefaults(context.Background())
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEngine_ContextCancelled(t *testing.T) {
	t.Parallel()

	vr := testutil.NewVirtualReader()
	vr.SetSilent(true)
	reader, _ := newSimulatedReader(t, vr, WithTimeout(5*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := reader.LoadDefaults(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_AlreadyCancelled(t *testing.T) {
	t.Parallel()

	reader, mock := newSimulatedReader(t, testutil.NewVirtualReader())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := reader.LoadDefaults(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mock.Written())
}

func TestEngine_ChunkedResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		chunk int
	}{
		{name: "One_Byte", chunk: 1},
		{name: "Three_Bytes", chunk: 3},
		{name: "Whole_Frame", chunk: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reader, mock := newSimulatedReader(t, testutil.NewVirtualReader())
			mock.SetChunkSize(tt.chunk)

			serial, err := reader.SerialNumber(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "10203040", serial)
		})
	}
}

func TestEngine_StaleInputFlushed(t *testing.T) {
	t.Parallel()

	reader, mock := newSimulatedReader(t, testutil.NewVirtualReader())
	mock.InjectRead(testutil.BuildFailResponse(uint16(OpReadSystemParameter), nil))

	version, err := reader.FirmwareVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0001020A", version)
}

func TestEngine_CorruptFrameSkipped(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	corrupt := testutil.BuildPassResponse(uint16(OpScanEAS), frameRID(), nil)
	corrupt[len(corrupt)-1] ^= 0xFF
	mock.SetResponse(OpScanEAS, corrupt,
		testutil.BuildPassResponse(uint16(OpScanEAS), frameRID(), nil))

	reader, err := New(mock, WithTimeout(100*time.Millisecond))
	require.NoError(t, err)

	found, err := reader.ScanEAS(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestEngine_FailureCodeIsResponse(t *testing.T) {
	t.Parallel()

	vr := testutil.NewVirtualReader()
	vr.FailOpcode(uint16(OpLoadDefaults), uint16(FailCode(OpLoadDefaults)))
	reader, _ := newSimulatedReader(t, vr)

	resp, err := reader.Issue(context.Background(), &Command{Opcode: OpLoadDefaults})
	require.NoError(t, err)
	assert.Equal(t, FailCode(OpLoadDefaults), resp.Code)
	assert.False(t, resp.Success())

	err = reader.LoadDefaults(context.Background())
	var fault *ReaderFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, FailCode(OpLoadDefaults), fault.Code)

	code, ok := IsDeviceFault(err)
	assert.True(t, ok)
	assert.Equal(t, "LOAD_DEFAULTS_FAIL", code.String())
}

func TestEngine_WriteErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		writeErr error
		wantErr  error
		name     string
	}{
		{
			name:     "Plain_Error",
			writeErr: errors.New("cable unplugged"),
			wantErr:  ErrTransportWrite,
		},
		{
			name:     "Transport_Error",
			writeErr: NewTransportError("Write", "mock", ErrTransportClosed, ErrorTypePermanent),
			wantErr:  ErrTransportClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reader, mock := newSimulatedReader(t, testutil.NewVirtualReader())
			mock.SetWriteError(tt.writeErr)

			err := reader.LoadDefaults(context.Background())
			require.ErrorIs(t, err, tt.wantErr)

			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, "Write", te.Op)
		})
	}
}

func TestEngine_ReadError(t *testing.T) {
	t.Parallel()

	reader, mock := newSimulatedReader(t, testutil.NewVirtualReader())
	mock.SetReadError(errors.New("device gone"))

	err := reader.LoadDefaults(context.Background())
	require.ErrorIs(t, err, ErrTransportRead)
}

func TestEngine_WrongRIDIgnored(t *testing.T) {
	t.Parallel()

	vr := testutil.NewVirtualReader()
	vr.SetRID(testutil.TestRID)
	reader, _ := newSimulatedReader(t, vr,
		WithReaderID([]byte{0x00, 0x00, 0x00, 0x02}),
		WithTimeout(30*time.Millisecond))

	err := reader.LoadDefaults(context.Background())
	assert.True(t, IsTimeout(err), "got %v", err)
}

func frameRID() []byte {
	return []byte{0xFF, 0xFF, 0xFF, 0xFF}
}

func TestEngine_StaleAnswerIgnored(t *testing.T) {
	t.Parallel()

	rid := frameRID()
	tests := []struct {
		wantErr func(t *testing.T, err error)
		name    string
		frames  [][]byte
	}{
		{
			name: "Late_Read_Before_Write_Fail",
			frames: [][]byte{
				testutil.BuildPassResponse(uint16(OpReadSystemParameter), rid, []byte{0x01, 0x02, 0x03, 0x04}),
				testutil.BuildFailResponse(uint16(OpWriteSystemParameter), rid),
			},
			wantErr: func(t *testing.T, err error) {
				t.Helper()
				code, ok := IsDeviceFault(err)
				require.True(t, ok, "got %v", err)
				assert.Equal(t, FailCode(OpWriteSystemParameter), code)
			},
		},
		{
			name: "Late_Select_Before_Write_Pass",
			frames: [][]byte{
				testutil.BuildSelectResponse(rid, 0x0060, []byte{0xE2, 0x00}),
				testutil.BuildInventoryDoneResponse(rid),
				testutil.BuildPassResponse(uint16(OpWriteSystemParameter), rid, nil),
			},
			wantErr: func(t *testing.T, err error) {
				t.Helper()
				require.NoError(t, err)
			},
		},
		{
			name: "Only_Stale_Frames",
			frames: [][]byte{
				testutil.BuildPassResponse(uint16(OpReadSystemParameter), rid, []byte{0x01}),
			},
			wantErr: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, IsTimeout(err), "got %v", err)
			},
		},
		{
			name: "Generic_Failure_Accepted",
			frames: [][]byte{
				testutil.BuildResponse(uint16(ResponseInvalidCommand), rid, nil),
			},
			wantErr: func(t *testing.T, err error) {
				t.Helper()
				code, ok := IsDeviceFault(err)
				require.True(t, ok, "got %v", err)
				assert.Equal(t, ResponseInvalidCommand, code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := NewMockTransport()
			mock.SetResponse(OpWriteSystemParameter, tt.frames...)
			reader, err := New(mock, WithTimeout(50*time.Millisecond))
			require.NoError(t, err)

			tt.wantErr(t, reader.SetTxPower(context.Background(), Current, 20))
		})
	}
}

func TestEngine_OtherReaderIgnored(t *testing.T) {
	t.Parallel()

	own := []byte{0x00, 0x00, 0x00, 0x02}
	other := []byte{0x00, 0x00, 0x00, 0x03}

	mock := NewMockTransport()
	mock.SetResponse(OpLoadDefaults,
		testutil.BuildFailResponse(uint16(OpLoadDefaults), other),
		testutil.BuildPassResponse(uint16(OpLoadDefaults), own, nil))
	reader, err := New(mock, WithReaderID(own), WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, reader.LoadDefaults(context.Background()))
}

func TestEngine_LoopOffRetryTimeout(t *testing.T) {
	t.Parallel()

	vr := testutil.NewVirtualReader()
	vr.SetLoopOff(1000)
	reader, mock := newSimulatedReader(t, vr, WithRetryConfig(&RetryConfig{
		MaxAttempts:       1000,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 1.0,
		RetryTimeout:      50 * time.Millisecond,
	}))

	start := time.Now()
	err := reader.LoadDefaults(context.Background())
	require.ErrorIs(t, err, ErrDeviceNotResponding)
	assert.Less(t, time.Since(start), time.Second)
	assert.Less(t, mock.GetCallCount(OpLoadDefaults), 20)
}
