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
	"bytes"
	"context"
	"fmt"

	"github.com/ZaparooProject/go-stpv3"
)

const (
	unknownName = "Unknown"
	gen2ClassID = 0xE2
)

// Gen2 mask designer ids (9 bits, XTID/security/file flags removed)
const (
	mdidImpinj uint16 = 0x001
	mdidAlien  uint16 = 0x003
	mdidNXP    uint16 = 0x006
)

var vendorNames = map[uint16]string{
	mdidImpinj: "Impinj",
	mdidAlien:  "Alien",
	mdidNXP:    "NXP",
}

// TagInfo contains detailed information about a detected tag
type TagInfo struct {
	TypeName string
	Vendor   string
	TID      []byte
	EPC      []byte
	Type     stpv3.TagType
	MDID     uint16
	Model    uint16
	// UserMemory is the size of the user bank in bytes, 0 when the tag
	// has none
	UserMemory int
	// ExtendedTID reports the XTID flag of the TID header
	ExtendedTID bool
}

// GetTagInfo reads identification data from the current tag. The user
// bank is sized by probing it word by word.
func (t *TagOperations) GetTagInfo(ctx context.Context) (*TagInfo, error) {
	if t.tag == nil {
		return nil, ErrNoTag
	}

	info := &TagInfo{
		Type:     t.tag.Type,
		TID:      append([]byte(nil), t.tag.TID...),
		TypeName: t.tag.Type.String(),
	}
	if mdid, model, ok := ParseTID(t.tag.TID); ok {
		info.MDID = mdid
		info.Model = model
		info.Vendor = VendorName(mdid)
		info.ExtendedTID = t.tag.TID[1]&0x80 != 0
		if info.Type.IsAutoDetect() && info.Type.Family() == stpv3.TagTypeGen2 {
			info.Type = DetectTagTypeFromTID(t.tag.TID)
			info.TypeName = info.Type.String()
		}
	}

	if t.tag.Type.Family() != stpv3.TagTypeGen2 {
		return info, nil
	}

	epc, err := t.ReadEPC(ctx)
	if err != nil {
		return nil, err
	}
	info.EPC = epc

	user, err := t.ReadUserMemory(ctx)
	if err != nil {
		return nil, err
	}
	info.UserMemory = len(user)
	return info, nil
}

// String returns a one-line description of the tag
func (i *TagInfo) String() string {
	vendor := i.Vendor
	if vendor == "" {
		vendor = unknownName
	}
	return fmt.Sprintf("%s (%s model 0x%03X) TID %X EPC %X user %d bytes",
		i.TypeName, vendor, i.Model, i.TID, i.EPC, i.UserMemory)
}

// ParseTID extracts the mask designer id and model number from a Gen2
// TID. ok is false when the TID does not carry the E2 class id.
func ParseTID(tid []byte) (mdid, model uint16, ok bool) {
	if len(tid) < 4 || tid[0] != gen2ClassID {
		return 0, 0, false
	}
	mdid = (uint16(tid[1])<<4 | uint16(tid[2])>>4) & 0x1FF
	model = uint16(tid[2]&0x0F)<<8 | uint16(tid[3])
	return mdid, model, true
}

// VendorName returns the chip vendor for a mask designer id
func VendorName(mdid uint16) string {
	if name, ok := vendorNames[mdid]; ok {
		return name
	}
	return unknownName
}

// DetectTagTypeFromTID guesses the specific Gen2 tag type from the TID.
// It returns the Gen2 auto-detect type when the vendor is not known.
func DetectTagTypeFromTID(tid []byte) stpv3.TagType {
	mdid, _, ok := ParseTID(tid)
	if !ok {
		return stpv3.TagTypeAutoDetect
	}
	switch mdid {
	case mdidImpinj:
		return stpv3.TagTypeMonza
	case mdidNXP:
		return stpv3.TagTypeUCODE
	case mdidAlien:
		return stpv3.TagTypeHiggs
	default:
		return stpv3.TagTypeGen2
	}
}

// IsNDEFCapable reports whether the current tag has user memory to hold
// an NDEF message
func (t *TagOperations) IsNDEFCapable(ctx context.Context) bool {
	if _, err := t.gen2Tag(); err != nil {
		return false
	}
	_, err := t.readWords(ctx, UserBankAddr, 2)
	return err == nil
}

// CompareTID compares two TIDs for equality
func CompareTID(tid1, tid2 []byte) bool {
	return bytes.Equal(tid1, tid2)
}
