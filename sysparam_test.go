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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSystemParameter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    SystemParameter
		wantErr bool
	}{
		{input: "TX_POWER", want: ParamTxPower},
		{input: " reader_name ", want: ParamReaderName},
		{input: "0x0011", want: ParamRetryCount},
		{input: "0X30", want: ParamCurrentFrequency},
		{input: "18", want: ParamTxPower},
		{input: "0x1FFFF", wantErr: true},
		{input: "NOT_A_PARAM", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseSystemParameter(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSystemParameterMetadata(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "READER_NAME", ParamReaderName.String())
	assert.Equal(t, uint16(32), ParamReaderName.Blocks())
	assert.Equal(t, "SystemParameter(0x00FF)", SystemParameter(0x00FF).String())
	assert.Equal(t, uint16(1), SystemParameter(0x00FF).Blocks())
	assert.Equal(t, "current", Current.String())
	assert.Equal(t, "default", Default.String())
}

func TestKnownParameters(t *testing.T) {
	t.Parallel()

	params := KnownParameters()
	require.NotEmpty(t, params)
	assert.Equal(t, ParamSerialNumber, params[0])
	assert.Contains(t, params, ParamTxPower)
	for i := 1; i < len(params); i++ {
		assert.Less(t, params[i-1], params[i])
	}
}
