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

	testutil "github.com/ZaparooProject/go-stpv3/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxPowerConversion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dBm     float64
		raw     byte
		wantErr bool
	}{
		{name: "Minimum", dBm: 5.0, raw: 0x00},
		{name: "Typical", dBm: 30.0, raw: 0xFA},
		{name: "Maximum", dBm: 30.5, raw: 0xFF},
		{name: "Fraction", dBm: 17.3, raw: 123},
		{name: "Too_Low", dBm: 4.9, wantErr: true},
		{name: "Too_High", dBm: 31, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw, err := TxPowerToRaw(tt.dBm)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.raw, raw)
			assert.InDelta(t, tt.dBm, TxPowerFromRaw(raw), 0.001)
		})
	}
}

func TestBaudRateCode(t *testing.T) {
	t.Parallel()

	for code, baud := range []int{9600, 19200, 38400, 57600, 115200} {
		got, err := BaudRateCode(baud)
		require.NoError(t, err)
		assert.Equal(t, byte(code), got)
	}

	_, err := BaudRateCode(4800)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestReader_Identification(t *testing.T) {
	t.Parallel()

	reader, _ := newSimulatedReader(t, testutil.NewVirtualReader())
	ctx := context.Background()

	tests := []struct {
		get  func() (string, error)
		name string
		want string
	}{
		{name: "Serial", get: func() (string, error) { return reader.SerialNumber(ctx) }, want: "10203040"},
		{name: "Firmware", get: func() (string, error) { return reader.FirmwareVersion(ctx) }, want: "0001020A"},
		{name: "Hardware", get: func() (string, error) { return reader.HardwareVersion(ctx) }, want: "00000901"},
		{name: "Product", get: func() (string, error) { return reader.ProductCode(ctx) }, want: "0009"},
		{
			name: "Name",
			get:  func() (string, error) { return reader.ReaderName(ctx, Current) },
			want: "SkyeModule M9",
		},
	}

	for _, tt := range tests {
		got, err := tt.get()
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestReader_TypedParameters(t *testing.T) {
	t.Parallel()

	vr := testutil.NewVirtualReader()
	reader, _ := newSimulatedReader(t, vr)
	ctx := context.Background()

	host, ok, err := reader.HostInterface(ctx, Current)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, HostInterfaceSerial, host)
	assert.Equal(t, "serial", host.String())

	baud, ok, err := reader.BaudRate(ctx, Current)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 38400, baud)

	power, ok, err := reader.TxPower(ctx, Current)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 30.0, power, 0.001)

	freq, ok, err := reader.CurrentFrequency(ctx, Current)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(915_000_000), freq)

	spacing, ok, err := reader.HopChannelSpacing(ctx, Current)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(250_000), spacing)

	temp, ok, err := reader.BoardTemperature(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(28), temp)

	_, ok, err = reader.UserPortValue(ctx, Current)
	require.NoError(t, err)
	assert.False(t, ok, "parameters the reader does not report are not an error")
}

func TestReader_RepeatedReadsAgree(t *testing.T) {
	t.Parallel()

	reader, _ := newSimulatedReader(t, testutil.NewVirtualReader())
	ctx := context.Background()

	params := []SystemParameter{
		ParamSerialNumber, ParamFirmwareVersion, ParamBaudRate,
		ParamRetryCount, ParamTxPower, ParamCurrentFrequency,
	}
	for _, p := range params {
		first, err := reader.ReadParameter(ctx, Current, p)
		require.NoError(t, err, p.String())
		require.NotEmpty(t, first, p.String())

		second, err := reader.ReadParameter(ctx, Current, p)
		require.NoError(t, err, p.String())
		assert.Equal(t, first, second, p.String())
	}

	first, _, err := reader.TxPower(ctx, Default)
	require.NoError(t, err)
	second, _, err := reader.TxPower(ctx, Default)
	require.NoError(t, err)
	assert.InDelta(t, first, second, 0.001)
}

func TestReader_WriteParameters(t *testing.T) {
	t.Parallel()

	vr := testutil.NewVirtualReader()
	reader, _ := newSimulatedReader(t, vr)
	ctx := context.Background()

	require.NoError(t, reader.SetTxPower(ctx, Current, 20.0))
	assert.Equal(t, []byte{150}, vr.Param(uint16(ParamTxPower)))

	require.NoError(t, reader.SetBaudRate(ctx, Default, 115200))
	assert.Equal(t, []byte{0x04}, vr.DefaultParam(uint16(ParamBaudRate)))
	assert.Equal(t, []byte{0x02}, vr.Param(uint16(ParamBaudRate)))

	require.NoError(t, reader.SetStartFrequency(ctx, Current, 902_000_000))
	assert.Equal(t, []byte{0x35, 0xC3, 0x6D, 0x80}, vr.Param(uint16(ParamStartFrequency)))

	require.NoError(t, reader.SetReaderName(ctx, Current, "Dock 4"))
	name, err := reader.ReaderName(ctx, Current)
	require.NoError(t, err)
	assert.Equal(t, "Dock 4", name)
	assert.Len(t, vr.Param(uint16(ParamReaderName)), 32)

	require.NoError(t, reader.SetRetryCount(ctx, Current, 9))
	count, ok, err := reader.RetryCount(ctx, Current)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(9), count)

	require.NoError(t, reader.LoadDefaults(ctx))
	count, _, err = reader.RetryCount(ctx, Current)
	require.NoError(t, err)
	assert.Equal(t, byte(5), count, "load defaults restores stored values")
}

func TestReader_WriteParameterValidation(t *testing.T) {
	t.Parallel()

	reader, mock := newSimulatedReader(t, testutil.NewVirtualReader())
	ctx := context.Background()

	tests := []struct {
		run  func() error
		name string
	}{
		{name: "Power_Out_Of_Range", run: func() error { return reader.SetTxPower(ctx, Current, 40) }},
		{name: "Unknown_Baud", run: func() error { return reader.SetBaudRate(ctx, Current, 1234) }},
		{
			name: "Name_Too_Long",
			run: func() error {
				return reader.SetReaderName(ctx, Current, "a reader name that is far too long to fit")
			},
		},
		{name: "Name_Not_ASCII", run: func() error { return reader.SetReaderName(ctx, Current, "Lesegerät") }},
		{
			name: "Empty_Value",
			run:  func() error { return reader.WriteParameter(ctx, Current, ParamTxPower, nil) },
		},
	}

	for _, tt := range tests {
		require.ErrorIs(t, tt.run(), ErrInvalidParameter, tt.name)
	}
	assert.Empty(t, mock.Written(), "invalid values never reach the reader")
}

func TestSystemParameter_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TX_POWER", ParamTxPower.String())
	assert.Equal(t, uint16(32), ParamReaderName.Blocks())
	assert.Equal(t, "SystemParameter(0x0FFF)", SystemParameter(0x0FFF).String())
	assert.Equal(t, uint16(1), SystemParameter(0x0FFF).Blocks())
	assert.Equal(t, "default", Default.String())
	assert.Equal(t, "current", Current.String())
}
