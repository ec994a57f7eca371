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
	"bytes"
	"fmt"

	"github.com/ZaparooProject/go-stpv3/internal/frame"
)

// Encode serializes a command into a complete STPv3 request frame:
//
//	STX | MSGLEN | FLAGS | COMMAND | [RID] | [TAGTYPE] | [TIDLEN TID]
//	    | [ADDRESS BLOCKS] | [DATALEN DATA] | CRC
//
// MSGLEN counts FLAGS through CRC. All numeric fields are big-endian.
func Encode(cmd *Command) ([]byte, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	frm := make([]byte, frame.HeaderSize, frame.HeaderSize+32+len(cmd.Data))
	frm[0] = frame.STX

	frm = appendUint16(frm, flags)
	frm = appendUint16(frm, uint16(cmd.Opcode))

	if flags&frame.FlagRID != 0 {
		frm = append(frm, cmd.RID...)
	}

	if cmd.Opcode.IsTagCommand() {
		tagType := TagTypeAutoDetect
		if cmd.Tag != nil {
			tagType = cmd.Tag.Type
		}
		frm = appendUint16(frm, uint16(tagType))

		if flags&frame.FlagTID != 0 {
			frm = append(frm, byte(len(cmd.Tag.TID)))
			frm = append(frm, cmd.Tag.TID...)
		}
	}

	if cmd.Opcode.IsAddressed() {
		frm = appendUint16(frm, cmd.Address)
		frm = appendUint16(frm, cmd.Blocks)
	}

	if flags&frame.FlagData != 0 {
		frm = appendUint16(frm, uint16(len(cmd.Data)))
		frm = append(frm, cmd.Data...)
	}

	msgLen := len(frm) - frame.HeaderSize + frame.CRCSize
	if msgLen > frame.MaxMessageLen {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrDataTooLarge, msgLen+frame.HeaderSize)
	}
	frame.PutUint16(frm[1:3], uint16(msgLen))

	return frame.AppendCRC(frm), nil
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

// Decoder turns a byte stream into responses. It keeps partial frames
// between calls, so bytes may be fed in chunks of any size.
type Decoder struct {
	buf       []byte
	expectRID bool
}

// NewDecoder creates an empty decoder
func NewDecoder() *Decoder {
	return &Decoder{buf: make([]byte, 0, frame.MaxFrameSize)}
}

// ExpectRID sets whether responses carry the 4-byte reader id. Readers
// echo the RID only when the request carried one.
func (d *Decoder) ExpectRID(expect bool) {
	d.expectRID = expect
}

// Feed appends received bytes to the decoder
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of bytes not yet consumed
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any partial frame
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Decode feeds p and tries to decode the next response.
func (d *Decoder) Decode(p []byte) (*Response, error) {
	d.Feed(p)
	return d.Next()
}

// Next decodes the next complete response from the buffered bytes. It
// returns ErrNeedMoreBytes when the frame is incomplete and an error
// wrapping ErrMalformedFrame when a frame cannot be parsed. After a
// malformed frame the decoder resynchronizes on the next STX, so calling
// Next again is always safe.
func (d *Decoder) Next() (*Response, error) {
	d.skipToSTX()

	if len(d.buf) < frame.HeaderSize {
		return nil, ErrNeedMoreBytes
	}

	msgLen := int(frame.Uint16(d.buf[1:3]))
	if msgLen > frame.MaxMessageLen || msgLen < frame.MinMessageLen {
		d.discard(1)
		return nil, fmt.Errorf("%w: length field %d outside [%d, %d]",
			ErrMalformedFrame, msgLen, frame.MinMessageLen, frame.MaxMessageLen)
	}

	total := frame.HeaderSize + msgLen
	if len(d.buf) < total {
		return nil, ErrNeedMoreBytes
	}

	frm := d.buf[:total]
	if !frame.ValidateCRC(frm) {
		d.discard(1)
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, ErrChecksumMismatch)
	}

	resp, err := d.parseBody(frm[frame.HeaderSize : total-frame.CRCSize])
	d.discard(total)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (d *Decoder) skipToSTX() {
	idx := bytes.IndexByte(d.buf, frame.STX)
	switch {
	case idx < 0:
		if len(d.buf) > 0 {
			debugf("decoder: discarding %d bytes without STX", len(d.buf))
		}
		d.buf = d.buf[:0]
	case idx > 0:
		debugf("decoder: discarding %d bytes before STX", idx)
		d.discard(idx)
	}
}

func (d *Decoder) discard(n int) {
	remaining := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:remaining]
}

// parseBody decodes CODE | [RID] | [TAGTYPE] | [DATALEN DATA]
func (d *Decoder) parseBody(body []byte) (*Response, error) {
	resp := &Response{Code: ResponseCode(frame.Uint16(body))}
	rest := body[frame.CodeFieldSize:]

	if d.expectRID {
		if len(rest) < frame.RIDSize {
			return nil, fmt.Errorf("%w: %s missing reader id", ErrMalformedFrame, resp.Code)
		}
		resp.RID = append([]byte(nil), rest[:frame.RIDSize]...)
		rest = rest[frame.RIDSize:]
	}

	selectPass := resp.Code == SelectTagPass
	if selectPass {
		if len(rest) < frame.TagTypeSize {
			return nil, fmt.Errorf("%w: %s missing tag type", ErrMalformedFrame, resp.Code)
		}
		resp.TagType = TagType(frame.Uint16(rest))
		rest = rest[frame.TagTypeSize:]
	}

	switch {
	case len(rest) == 0:
	case len(rest) < frame.DataLenSize:
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedFrame, len(rest))
	default:
		dataLen := int(frame.Uint16(rest))
		rest = rest[frame.DataLenSize:]
		if dataLen != len(rest) {
			return nil, fmt.Errorf("%w: data length %d but %d bytes present",
				ErrMalformedFrame, dataLen, len(rest))
		}
		data := append([]byte(nil), rest...)
		if selectPass {
			resp.TID = data
		} else {
			resp.Data = data
		}
	}

	return resp, nil
}
