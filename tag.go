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
	"encoding/hex"
	"fmt"
	"strings"
)

// TagType identifies an air interface family and, in its low nibble, a
// specific chip. A zero low nibble is an auto-detect wildcard for the family.
type TagType uint16

// Tag types understood by STPv3 readers
const (
	TagTypeAutoDetect TagType = 0x0000

	TagTypeISO15693 TagType = 0x0010
	TagTypeTIHFI    TagType = 0x0011
	TagTypeICodeSLI TagType = 0x0012

	TagTypeISO14443A        TagType = 0x0020
	TagTypeMifareUltralight TagType = 0x0021
	TagTypeMifare1K         TagType = 0x0022
	TagTypeMifare4K         TagType = 0x0023
	TagTypeDESFire          TagType = 0x0024

	TagTypeISO14443B TagType = 0x0030

	TagTypeISO18000B TagType = 0x0040

	TagTypeEM TagType = 0x0050

	// TagTypeGen2 is the ISO 18000-6C (EPC Class 1 Gen 2) auto-detect type
	TagTypeGen2   TagType = 0x0060
	TagTypeUCODE  TagType = 0x0061
	TagTypeMonza  TagType = 0x0062
	TagTypeHiggs  TagType = 0x0063
	tagTypeNibble TagType = 0x000F
)

var tagTypeNames = map[TagType]string{
	TagTypeAutoDetect:       "AUTO_DETECT",
	TagTypeISO15693:         "ISO_15693_AUTO_DETECT",
	TagTypeTIHFI:            "TI_HFI",
	TagTypeICodeSLI:         "NXP_ICODE_SLI",
	TagTypeISO14443A:        "ISO_14443A_AUTO_DETECT",
	TagTypeMifareUltralight: "MIFARE_ULTRALIGHT",
	TagTypeMifare1K:         "MIFARE_1K",
	TagTypeMifare4K:         "MIFARE_4K",
	TagTypeDESFire:          "MIFARE_DESFIRE",
	TagTypeISO14443B:        "ISO_14443B_AUTO_DETECT",
	TagTypeISO18000B:        "ISO_18000_6B_AUTO_DETECT",
	TagTypeEM:               "EM_AUTO_DETECT",
	TagTypeGen2:             "ISO_18000_6C_AUTO_DETECT",
	TagTypeUCODE:            "NXP_UCODE_GEN2",
	TagTypeMonza:            "IMPINJ_MONZA",
	TagTypeHiggs:            "ALIEN_HIGGS",
}

// IsAutoDetect reports whether the type leaves the chip unspecified
func (t TagType) IsAutoDetect() bool {
	return t&tagTypeNibble == 0
}

// Family returns the auto-detect type of t's air interface family
func (t TagType) Family() TagType {
	return t &^ tagTypeNibble
}

// BlockSize returns the number of bytes per memory block for the family
func (t TagType) BlockSize() int {
	switch t.Family() {
	case TagTypeISO15693, TagTypeISO18000B:
		return 4
	case TagTypeISO14443A:
		if t == TagTypeMifare1K || t == TagTypeMifare4K {
			return 16
		}
		return 4
	default:
		return 2
	}
}

// String returns the protocol name of the tag type
func (t TagType) String() string {
	if name, ok := tagTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TagType(0x%04X)", uint16(t))
}

// ParseTagType resolves a protocol name or a hex value like "0x0060"
func ParseTagType(s string) (TagType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for tt, name := range tagTypeNames {
		if name == s {
			return tt, nil
		}
	}

	var v uint16
	if _, err := fmt.Sscanf(strings.TrimPrefix(s, "0X"), "%x", &v); err != nil {
		return 0, fmt.Errorf("%w: unknown tag type %q", ErrInvalidParameter, s)
	}
	return TagType(v), nil
}

// Tag is an RFID transponder identified by its type and TID. A Tag used as
// a command target selects a specific transponder when TID is set.
type Tag struct {
	TID  []byte
	Type TagType
}

// NewTag creates a tag of the given type with a copy of tid
func NewTag(tagType TagType, tid []byte) *Tag {
	return &Tag{Type: tagType, TID: append([]byte(nil), tid...)}
}

// TIDHex returns the TID as an upper-case hex string
func (t *Tag) TIDHex() string {
	if t == nil {
		return ""
	}
	return strings.ToUpper(hex.EncodeToString(t.TID))
}

// Equal reports whether two tags have the same type and TID
func (t *Tag) Equal(other *Tag) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Type == other.Type && bytes.Equal(t.TID, other.TID)
}

// String returns a human-readable representation of the tag
func (t *Tag) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s", t.Type, t.TIDHex())
}

// stamp copies identity from a select response. The type is only replaced
// when the caller left it as an auto-detect wildcard.
func (t *Tag) stamp(resp *Response) {
	t.TID = append([]byte(nil), resp.TID...)
	if t.Type.IsAutoDetect() {
		t.Type = resp.TagType
	}
}
