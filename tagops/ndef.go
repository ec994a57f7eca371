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

	"github.com/ZaparooProject/go-stpv3"
	ndef "github.com/hsanjuan/go-ndef"
	"github.com/pkg/errors"
)

// NDEF TLV layout in Gen2 user memory
const (
	ndefTLVType    = 0x03
	ndefTLVEnd     = 0xFE
	ndefLongLength = 0xFF
)

// NDEF record types
const (
	NDEFRecordText = "T"
	NDEFRecordURI  = "U"
)

var (
	// ErrNoNDEF is returned when user memory holds no NDEF message
	ErrNoNDEF = errors.New("no NDEF message found")
	// ErrNDEFTooLarge is returned when a message does not fit in user memory
	ErrNDEFTooLarge = errors.New("NDEF message too large for tag")
	// ErrUnsupportedRecord is returned for record types that cannot be built
	ErrUnsupportedRecord = errors.New("unsupported NDEF record type")
)

// NDEFRecord is one record of an NDEF message. Text holds the text of a
// text record and the full URI of a URI record.
type NDEFRecord struct {
	Type     string
	Text     string
	Language string
}

// NDEFMessage is an ordered list of records
type NDEFMessage struct {
	Records []NDEFRecord
}

// NewTextRecord returns an English text record
func NewTextRecord(text string) NDEFRecord {
	return NDEFRecord{Type: NDEFRecordText, Text: text, Language: "en"}
}

// NewURIRecord returns a URI record
func NewURIRecord(uri string) NDEFRecord {
	return NDEFRecord{Type: NDEFRecordURI, Text: uri}
}

// BuildNDEFMessage encodes records as an NDEF message
func BuildNDEFMessage(records []NDEFRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, errors.Wrap(stpv3.ErrInvalidParameter, "no NDEF records")
	}

	built := make([]*ndef.Record, 0, len(records))
	for _, rec := range records {
		switch rec.Type {
		case NDEFRecordText:
			lang := rec.Language
			if lang == "" {
				lang = "en"
			}
			built = append(built, ndef.NewTextRecord(rec.Text, lang))
		case NDEFRecordURI:
			built = append(built, ndef.NewURIRecord(rec.Text))
		default:
			return nil, errors.Wrapf(ErrUnsupportedRecord, "%q", rec.Type)
		}
	}

	data, err := ndef.NewMessageFromRecords(built...).Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode NDEF message")
	}
	return data, nil
}

// ParseNDEFMessage decodes an NDEF message. Records of other types are
// kept with an empty Text.
func ParseNDEFMessage(data []byte) (*NDEFMessage, error) {
	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(data); err != nil {
		return nil, errors.Wrap(err, "failed to decode NDEF message")
	}

	out := &NDEFMessage{Records: make([]NDEFRecord, 0, len(msg.Records))}
	for _, rec := range msg.Records {
		r := NDEFRecord{Type: rec.Type()}
		if r.Type == NDEFRecordText || r.Type == NDEFRecordURI {
			payload, err := rec.Payload()
			if err != nil {
				return nil, errors.Wrapf(err, "failed to decode %s record", r.Type)
			}
			r.Text = payload.String()
		}
		out.Records = append(out.Records, r)
	}
	return out, nil
}

// wrapTLV frames an NDEF message as it is stored in user memory, padded
// to whole words
func wrapTLV(msg []byte) []byte {
	var out []byte
	if len(msg) < ndefLongLength {
		out = append(out, ndefTLVType, byte(len(msg)))
	} else {
		out = append(out, ndefTLVType, ndefLongLength, byte(len(msg)>>8), byte(len(msg)))
	}
	out = append(out, msg...)
	out = append(out, ndefTLVEnd)
	if len(out)%2 != 0 {
		out = append(out, 0x00)
	}
	return out
}

// tlvBounds returns the offset and length of the NDEF message in a TLV
// header. header must hold at least 4 bytes.
func tlvBounds(header []byte) (offset, length int, err error) {
	if header[0] != ndefTLVType {
		return 0, 0, ErrNoNDEF
	}
	if header[1] == ndefLongLength {
		return 4, int(header[2])<<8 | int(header[3]), nil
	}
	return 2, int(header[1]), nil
}

// ReadNDEF reads the NDEF message stored at the start of user memory
func (t *TagOperations) ReadNDEF(ctx context.Context) (*NDEFMessage, error) {
	raw, err := t.ReadNDEFBytes(ctx)
	if err != nil {
		return nil, err
	}
	return ParseNDEFMessage(raw)
}

// ReadNDEFBytes reads the raw NDEF message stored in user memory
func (t *TagOperations) ReadNDEFBytes(ctx context.Context) ([]byte, error) {
	header, err := t.ReadUserWords(ctx, 2)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read NDEF header")
	}
	offset, length, err := tlvBounds(header)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, ErrNoNDEF
	}
	if offset+length > MaxMemoryBytes {
		return nil, errors.Wrapf(ErrNDEFTooLarge, "%d byte message", length)
	}

	words := uint16((offset + length + 1) / 2)
	data, err := t.ReadUserWords(ctx, words)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read NDEF message")
	}
	return data[offset : offset+length], nil
}

// WriteNDEF stores message at the start of user memory
func (t *TagOperations) WriteNDEF(ctx context.Context, message *NDEFMessage) error {
	if message == nil {
		return errors.Wrap(stpv3.ErrInvalidParameter, "nil NDEF message")
	}
	raw, err := BuildNDEFMessage(message.Records)
	if err != nil {
		return err
	}

	capacity, err := t.ReadUserMemory(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to size user memory")
	}
	tlv := wrapTLV(raw)
	if len(tlv) > len(capacity) {
		return errors.Wrapf(ErrNDEFTooLarge, "need %d bytes, tag has %d", len(tlv), len(capacity))
	}
	return t.WriteUserMemory(ctx, tlv)
}

// WriteText stores a single text record
func (t *TagOperations) WriteText(ctx context.Context, text string) error {
	return t.WriteNDEF(ctx, &NDEFMessage{Records: []NDEFRecord{NewTextRecord(text)}})
}

// ReadText returns the first text record of the stored message
func (t *TagOperations) ReadText(ctx context.Context) (string, error) {
	msg, err := t.ReadNDEF(ctx)
	if err != nil {
		return "", err
	}
	for _, rec := range msg.Records {
		if rec.Type == NDEFRecordText {
			return rec.Text, nil
		}
	}
	return "", ErrNoNDEF
}
