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

	"github.com/ZaparooProject/go-stpv3/internal/frame"
	testutil "github.com/ZaparooProject/go-stpv3/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var broadcast = frame.BroadcastRID[:]

func TestEncode(t *testing.T) {
	t.Parallel()

	gen2 := NewTag(TagTypeGen2, []byte{0xE2, 0x00, 0x34, 0x12})
	sli := NewTag(TagTypeICodeSLI, []byte{0xE0, 0x04, 0x01, 0x02})

	tests := []struct {
		cmd  *Command
		name string
		want []byte
	}{
		{
			name: "Select_Auto_Detect",
			cmd:  &Command{Opcode: OpSelectTag},
			want: []byte{0x02, 0x00, 0x08, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00, 0x98, 0x8B},
		},
		{
			name: "Loop_Inventory_Gen2",
			cmd:  &Command{Opcode: OpSelectTag, Tag: &Tag{Type: TagTypeGen2}, Loop: true, Inventory: true},
			want: []byte{0x02, 0x00, 0x08, 0x00, 0x03, 0x01, 0x01, 0x00, 0x60, 0xE6, 0x41},
		},
		{
			name: "Read_Tag_With_TID",
			cmd: &Command{
				Opcode:  OpReadTag,
				Tag:     NewTag(TagTypeGen2, []byte{0xE2, 0x00, 0x34, 0x12}),
				Address: 2,
				Blocks:  2,
			},
			want: []byte{
				0x02, 0x00, 0x11, 0x00, 0x40, 0x01, 0x02, 0x00, 0x60, 0x04,
				0xE2, 0x00, 0x34, 0x12, 0x00, 0x02, 0x00, 0x02, 0x59, 0x58,
			},
		},
		{
			name: "Read_System_Parameter",
			cmd:  &Command{Opcode: OpReadSystemParameter, RID: broadcast, Address: 0x0001, Blocks: 1},
			want: []byte{
				0x02, 0x00, 0x0E, 0x00, 0x80, 0x02, 0x04, 0xFF, 0xFF, 0xFF,
				0xFF, 0x00, 0x01, 0x00, 0x01, 0xFA, 0x9F,
			},
		},
		{
			name: "Write_System_Parameter",
			cmd: &Command{
				Opcode: OpWriteSystemParameter, RID: broadcast,
				Address: 0x000A, Blocks: 1, Data: []byte{0x01},
			},
			want: []byte{
				0x02, 0x00, 0x11, 0x08, 0x80, 0x02, 0x05, 0xFF, 0xFF, 0xFF,
				0xFF, 0x00, 0x0A, 0x00, 0x01, 0x00, 0x01, 0x01, 0xF0, 0x9A,
			},
		},
		{
			name: "Write_Tag",
			cmd: &Command{
				Opcode: OpWriteTag, Tag: gen2, Address: 2, Blocks: 1, Data: []byte{0xAB, 0xCD},
			},
			want: []byte{
				0x02, 0x00, 0x15, 0x08, 0x40, 0x01, 0x03, 0x00, 0x60, 0x04,
				0xE2, 0x00, 0x34, 0x12, 0x00, 0x02, 0x00, 0x01, 0x00, 0x02,
				0xAB, 0xCD, 0x80, 0x8E,
			},
		},
		{
			name: "Write_Tag_Lock",
			cmd: &Command{
				Opcode: OpWriteTag, Tag: gen2, Address: 2, Blocks: 1, Data: []byte{0x00, 0x02}, Lock: true,
			},
			want: []byte{
				0x02, 0x00, 0x15, 0x08, 0x44, 0x01, 0x03, 0x00, 0x60, 0x04,
				0xE2, 0x00, 0x34, 0x12, 0x00, 0x02, 0x00, 0x01, 0x00, 0x02,
				0x00, 0x02, 0x0E, 0x8D,
			},
		},
		{
			name: "Send_Tag_Password",
			cmd: &Command{
				Opcode: OpSendTagPassword, Tag: gen2, Data: []byte{0x12, 0x34, 0x56, 0x78},
			},
			want: []byte{
				0x02, 0x00, 0x17, 0x08, 0x40, 0x01, 0x0A, 0x00, 0x60, 0x04,
				0xE2, 0x00, 0x34, 0x12, 0x00, 0x00, 0x00, 0x00, 0x00, 0x04,
				0x12, 0x34, 0x56, 0x78, 0x00, 0x5D,
			},
		},
		{
			name: "Read_Tag_Config",
			cmd: &Command{
				Opcode: OpReadTagConfig, Tag: gen2, Blocks: 1,
			},
			want: []byte{
				0x02, 0x00, 0x11, 0x00, 0x40, 0x01, 0x0B, 0x00, 0x60, 0x04,
				0xE2, 0x00, 0x34, 0x12, 0x00, 0x00, 0x00, 0x01, 0x51, 0xC2,
			},
		},
		{
			name: "Write_Tag_Config",
			cmd: &Command{
				Opcode: OpWriteTagConfig, Tag: gen2, Blocks: 1, Data: []byte{0x00, 0x01},
			},
			want: []byte{
				0x02, 0x00, 0x15, 0x08, 0x40, 0x01, 0x0C, 0x00, 0x60, 0x04,
				0xE2, 0x00, 0x34, 0x12, 0x00, 0x00, 0x00, 0x01, 0x00, 0x02,
				0x00, 0x01, 0x12, 0x85,
			},
		},
		{
			name: "Enable_EAS",
			cmd: &Command{
				Opcode: OpEnableEAS, Tag: sli,
			},
			want: []byte{
				0x02, 0x00, 0x0D, 0x00, 0x40, 0x01, 0x10, 0x00, 0x12, 0x04,
				0xE0, 0x04, 0x01, 0x02, 0x47, 0xE6,
			},
		},
		{
			name: "Disable_EAS",
			cmd: &Command{
				Opcode: OpDisableEAS, Tag: sli,
			},
			want: []byte{
				0x02, 0x00, 0x0D, 0x00, 0x40, 0x01, 0x11, 0x00, 0x12, 0x04,
				0xE0, 0x04, 0x01, 0x02, 0xC6, 0x59,
			},
		},
		{
			name: "Scan_EAS",
			cmd: &Command{
				Opcode: OpScanEAS,
			},
			want: []byte{
				0x02, 0x00, 0x08, 0x00, 0x00, 0x01, 0x12, 0x00, 0x00, 0xF2,
				0x7A,
			},
		},
		{
			name: "Load_Defaults",
			cmd: &Command{
				Opcode: OpLoadDefaults, RID: broadcast,
			},
			want: []byte{
				0x02, 0x00, 0x0A, 0x00, 0x80, 0x02, 0x01, 0xFF, 0xFF, 0xFF,
				0xFF, 0x92, 0xA6,
			},
		},
		{
			name: "Reset_Device",
			cmd: &Command{
				Opcode: OpResetDevice, RID: broadcast,
			},
			want: []byte{
				0x02, 0x00, 0x0A, 0x00, 0x80, 0x02, 0x02, 0xFF, 0xFF, 0xFF,
				0xFF, 0x8F, 0x6A,
			},
		},
		{
			name: "Enter_Bootload",
			cmd: &Command{
				Opcode: OpEnterBootload, RID: broadcast,
			},
			want: []byte{
				0x02, 0x00, 0x0A, 0x00, 0x80, 0x02, 0x03, 0xFF, 0xFF, 0xFF,
				0xFF, 0x84, 0x2E,
			},
		},
		{
			name: "Retrieve_Default_System_Parameter",
			cmd: &Command{
				Opcode: OpRetrieveDefaultSystemParameter, RID: broadcast, Address: 0x0011, Blocks: 1,
			},
			want: []byte{
				0x02, 0x00, 0x0E, 0x00, 0x80, 0x02, 0x06, 0xFF, 0xFF, 0xFF,
				0xFF, 0x00, 0x11, 0x00, 0x01, 0xE4, 0xF0,
			},
		},
		{
			name: "Store_Default_System_Parameter",
			cmd: &Command{
				Opcode: OpStoreDefaultSystemParameter, RID: broadcast, Address: 0x0012, Blocks: 1, Data: []byte{0xFA},
			},
			want: []byte{
				0x02, 0x00, 0x11, 0x08, 0x80, 0x02, 0x07, 0xFF, 0xFF, 0xFF,
				0xFF, 0x00, 0x12, 0x00, 0x01, 0x00, 0x01, 0xFA, 0xD8, 0x95,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Encode(tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, frame.ValidateCRC(got))
		})
	}
}

func TestEncode_MatchesRequestParser(t *testing.T) {
	t.Parallel()

	tag := NewTag(TagTypeUCODE, []byte{0xE2, 0x00, 0x68, 0x06})
	cmd := &Command{
		Opcode:  OpWriteTag,
		Tag:     tag,
		RID:     []byte{0x01, 0x02, 0x03, 0x04},
		Address: 0x0002,
		Blocks:  2,
		Data:    []byte{0xAA, 0xBB, 0xCC, 0xDD},
	}

	frm, err := Encode(cmd)
	require.NoError(t, err)

	req, err := testutil.ParseRequest(frm)
	require.NoError(t, err)
	assert.Equal(t, uint16(OpWriteTag), req.Opcode)
	assert.Equal(t, cmd.RID, req.RID)
	assert.Equal(t, uint16(TagTypeUCODE), req.TagType)
	assert.Equal(t, tag.TID, req.TID)
	assert.Equal(t, uint16(2), req.Address)
	assert.Equal(t, uint16(2), req.Blocks)
	assert.Equal(t, cmd.Data, req.Data)
}

func TestEncode_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cmd     *Command
		wantErr error
		name    string
	}{
		{name: "Nil", cmd: nil, wantErr: ErrInvalidParameter},
		{name: "Unknown_Opcode", cmd: &Command{Opcode: 0x0999}, wantErr: ErrInvalidParameter},
		{name: "Short_RID", cmd: &Command{Opcode: OpLoadDefaults, RID: []byte{1, 2}}, wantErr: ErrInvalidParameter},
		{
			name:    "Write_Without_Data",
			cmd:     &Command{Opcode: OpWriteSystemParameter, Address: 1, Blocks: 1},
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "Loop_On_Read",
			cmd:     &Command{Opcode: OpReadTag, Loop: true},
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "Lock_On_Config",
			cmd:     &Command{Opcode: OpWriteTagConfig, Lock: true, Data: []byte{1}},
			wantErr: ErrInvalidParameter,
		},
		{
			name: "Block_Size_Mismatch",
			cmd: &Command{
				Opcode: OpWriteTag, Tag: &Tag{Type: TagTypeGen2},
				Address: 2, Blocks: 2, Data: []byte{1, 2, 3},
			},
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "Payload_Too_Large",
			cmd:     &Command{Opcode: OpWriteTagConfig, Data: make([]byte, frame.MaxFrameSize)},
			wantErr: ErrDataTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			frm, err := Encode(tt.cmd)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, frm)
		})
	}
}

func TestDecoder(t *testing.T) {
	t.Parallel()

	readParam := []byte{
		0x02, 0x00, 0x0E, 0x02, 0x04, 0xFF, 0xFF, 0xFF, 0xFF, 0x00,
		0x04, 0x00, 0x01, 0x02, 0x0A, 0x67, 0x45,
	}
	selectPass := []byte{
		0x02, 0x00, 0x0C, 0x01, 0x01, 0x00, 0x60, 0x00, 0x04, 0xE2,
		0x00, 0x34, 0x12, 0x65, 0x1D,
	}
	readFail := []byte{0x02, 0x00, 0x04, 0x82, 0x04, 0x9A, 0x39}

	tests := []struct {
		want      *Response
		name      string
		input     []byte
		expectRID bool
	}{
		{
			name:      "Read_Parameter_Pass",
			input:     readParam,
			expectRID: true,
			want: &Response{
				Code: PassCode(OpReadSystemParameter),
				RID:  broadcast,
				Data: []byte{0x00, 0x01, 0x02, 0x0A},
			},
		},
		{
			name:  "Select_Pass",
			input: selectPass,
			want: &Response{
				Code:    SelectTagPass,
				TagType: TagTypeGen2,
				TID:     []byte{0xE2, 0x00, 0x34, 0x12},
			},
		},
		{
			name:  "Failure_Without_Data",
			input: readFail,
			want:  &Response{Code: FailCode(OpReadSystemParameter)},
		},
		{
			name:  "Leading_Garbage",
			input: append([]byte{0xFF, 0x00, 0x13}, readFail...),
			want:  &Response{Code: FailCode(OpReadSystemParameter)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewDecoder()
			d.ExpectRID(tt.expectRID)
			resp, err := d.Decode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp)
			assert.Zero(t, d.Buffered())
		})
	}
}

func TestDecoder_ByteAtATime(t *testing.T) {
	t.Parallel()

	stream := testutil.Concat(
		testutil.BuildSelectResponse(nil, uint16(TagTypeGen2), []byte{0x01, 0x02}),
		testutil.BuildSelectResponse(nil, uint16(TagTypeGen2), []byte{0x03, 0x04}),
		testutil.BuildInventoryDoneResponse(nil),
	)

	d := NewDecoder()
	var got []*Response
	for _, chunk := range testutil.Chunk(stream, 1) {
		resp, err := d.Decode(chunk)
		if err != nil {
			require.ErrorIs(t, err, ErrNeedMoreBytes)
			continue
		}
		got = append(got, resp)
	}

	require.Len(t, got, 3)
	assert.Equal(t, []byte{0x01, 0x02}, got[0].TID)
	assert.Equal(t, []byte{0x03, 0x04}, got[1].TID)
	assert.Equal(t, SelectTagInventoryDone, got[2].Code)
}

func TestDecoder_Resynchronizes(t *testing.T) {
	t.Parallel()

	good := testutil.BuildPassResponse(uint16(OpLoadDefaults), nil, nil)

	tests := []struct {
		name  string
		bad   []byte
		isErr error
	}{
		{
			name:  "Bad_CRC",
			bad:   []byte{0x02, 0x00, 0x04, 0x03, 0x01, 0x00, 0x00},
			isErr: ErrChecksumMismatch,
		},
		{
			name:  "Length_Too_Small",
			bad:   []byte{0x02, 0x00, 0x01, 0x00},
			isErr: ErrMalformedFrame,
		},
		{
			name:  "Length_Too_Large",
			bad:   []byte{0x02, 0xFF, 0xFF},
			isErr: ErrMalformedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewDecoder()
			d.Feed(tt.bad)
			d.Feed(good)

			_, err := d.Next()
			require.ErrorIs(t, err, tt.isErr)

			var resp *Response
			for resp == nil {
				resp, err = d.Next()
				if err != nil {
					require.NotErrorIs(t, err, ErrNeedMoreBytes)
				}
			}
			assert.Equal(t, PassCode(OpLoadDefaults), resp.Code)
		})
	}
}

func TestDecoder_MissingRID(t *testing.T) {
	t.Parallel()

	d := NewDecoder()
	d.ExpectRID(true)
	_, err := d.Decode([]byte{0x02, 0x00, 0x04, 0x82, 0x04, 0x9A, 0x39})
	require.ErrorIs(t, err, ErrMalformedFrame)
	assert.Zero(t, d.Buffered())
}

func TestDecoder_Reset(t *testing.T) {
	t.Parallel()

	frm := testutil.BuildPassResponse(uint16(OpLoadDefaults), nil, nil)
	d := NewDecoder()
	d.Feed(frm[:4])
	assert.Equal(t, 4, d.Buffered())

	d.Reset()
	assert.Zero(t, d.Buffered())

	resp, err := d.Decode(frm)
	require.NoError(t, err)
	assert.True(t, resp.Success())
}

func TestResponseCode_Answers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code ResponseCode
		op   Opcode
		want bool
	}{
		{name: "Pass", code: PassCode(OpReadTag), op: OpReadTag, want: true},
		{name: "Fail", code: FailCode(OpReadTag), op: OpReadTag, want: true},
		{name: "Other_Opcode", code: PassCode(OpReadSystemParameter), op: OpWriteSystemParameter},
		{name: "Other_Opcode_Fail", code: FailCode(OpWriteTag), op: OpReadTag},
		{name: "Generic_Failure", code: ResponseBadCRC, op: OpLoadDefaults, want: true},
		{name: "Loop_Off_Any_Command", code: SelectTagLoopOff, op: OpLoadDefaults, want: true},
		{name: "Inventory_Done", code: SelectTagInventoryDone, op: OpSelectTag, want: true},
		{name: "Loop_On", code: SelectTagLoopOn, op: OpSelectTag, want: true},
		{name: "Inventory_Done_Other_Command", code: SelectTagInventoryDone, op: OpReadTag},
		{name: "Select_Pass_Other_Command", code: SelectTagPass, op: OpWriteTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.code.answers(tt.op))
		})
	}
}
