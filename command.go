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
	"fmt"

	"github.com/ZaparooProject/go-stpv3/internal/frame"
)

// Opcode is an STPv3 command code
type Opcode uint16

// Tag commands
const (
	OpSelectTag       Opcode = 0x0101
	OpReadTag         Opcode = 0x0102
	OpWriteTag        Opcode = 0x0103
	OpSendTagPassword Opcode = 0x010A
	OpReadTagConfig   Opcode = 0x010B
	OpWriteTagConfig  Opcode = 0x010C
	OpEnableEAS       Opcode = 0x0110
	OpDisableEAS      Opcode = 0x0111
	OpScanEAS         Opcode = 0x0112
)

// System commands
const (
	OpLoadDefaults                   Opcode = 0x0201
	OpResetDevice                    Opcode = 0x0202
	OpEnterBootload                  Opcode = 0x0203
	OpReadSystemParameter            Opcode = 0x0204
	OpWriteSystemParameter           Opcode = 0x0205
	OpRetrieveDefaultSystemParameter Opcode = 0x0206
	OpStoreDefaultSystemParameter    Opcode = 0x0207
)

var opcodeNames = map[Opcode]string{
	OpSelectTag:                      "SELECT_TAG",
	OpReadTag:                        "READ_TAG",
	OpWriteTag:                       "WRITE_TAG",
	OpSendTagPassword:                "SEND_TAG_PASSWORD",
	OpReadTagConfig:                  "READ_TAG_CONFIG",
	OpWriteTagConfig:                 "WRITE_TAG_CONFIG",
	OpEnableEAS:                      "ENABLE_EAS",
	OpDisableEAS:                     "DISABLE_EAS",
	OpScanEAS:                        "SCAN_EAS",
	OpLoadDefaults:                   "LOAD_DEFAULTS",
	OpResetDevice:                    "RESET_DEVICE",
	OpEnterBootload:                  "ENTER_BOOTLOAD",
	OpReadSystemParameter:            "READ_SYSTEM_PARAMETER",
	OpWriteSystemParameter:           "WRITE_SYSTEM_PARAMETER",
	OpRetrieveDefaultSystemParameter: "RETRIEVE_DEFAULT_SYSTEM_PARAMETER",
	OpStoreDefaultSystemParameter:    "STORE_DEFAULT_SYSTEM_PARAMETER",
}

// String returns the protocol name of the opcode
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%04X)", uint16(o))
}

// IsTagCommand reports whether the opcode addresses a transponder
func (o Opcode) IsTagCommand() bool {
	return frame.HasTagFields(uint16(o))
}

// IsAddressed reports whether the opcode carries address and block count
func (o Opcode) IsAddressed() bool {
	return frame.HasAddressFields(uint16(o))
}

// requiresData reports whether the opcode is meaningless without a payload
func (o Opcode) requiresData() bool {
	switch o {
	case OpWriteTag, OpSendTagPassword, OpWriteTagConfig,
		OpWriteSystemParameter, OpStoreDefaultSystemParameter:
		return true
	default:
		return false
	}
}

// Command is one STPv3 request. Commands are plain values; the engine
// never mutates a command it is given.
type Command struct {
	// Tag targets a transponder. A nil Tag on a tag command means any tag
	// of any type.
	Tag *Tag
	// Data is the payload for writes
	Data []byte
	// RID correlates the request with one reader. Nil sends no RID.
	RID     []byte
	Address uint16
	Blocks  uint16
	Opcode  Opcode
	// Inventory asks SELECT_TAG to report every tag in the field
	Inventory bool
	// Loop keeps the reader scanning until another command arrives
	Loop bool
	// Lock makes WRITE_TAG permanently lock the written blocks
	Lock bool
}

// Flags returns the FLAGS field the command encodes with
func (c *Command) Flags() uint16 {
	var flags uint16
	if c.Loop {
		flags |= frame.FlagLoop
	}
	if c.Inventory {
		flags |= frame.FlagInventory
	}
	if c.Lock {
		flags |= frame.FlagLock
	}
	if c.RID != nil {
		flags |= frame.FlagRID
	}
	if c.Opcode.IsTagCommand() && c.Tag != nil && len(c.Tag.TID) > 0 {
		flags |= frame.FlagTID
	}
	if len(c.Data) > 0 {
		flags |= frame.FlagData
	}
	return flags
}

// Validate checks the caller contract for the command. Violations are
// reported as ErrInvalidParameter and never reach the wire.
func (c *Command) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil command", ErrInvalidParameter)
	}
	if _, ok := opcodeNames[c.Opcode]; !ok {
		return fmt.Errorf("%w: unknown opcode 0x%04X", ErrInvalidParameter, uint16(c.Opcode))
	}
	if c.RID != nil && len(c.RID) != frame.RIDSize {
		return fmt.Errorf("%w: reader id must be %d bytes, got %d",
			ErrInvalidParameter, frame.RIDSize, len(c.RID))
	}
	if c.Tag != nil && len(c.Tag.TID) > frame.MaxTIDLength {
		return fmt.Errorf("%w: TID too long (%d bytes)", ErrInvalidParameter, len(c.Tag.TID))
	}
	if len(c.Data) > frame.MaxPayloadSize {
		return fmt.Errorf("%w: payload of %d bytes", ErrDataTooLarge, len(c.Data))
	}
	if c.Opcode.requiresData() && len(c.Data) == 0 {
		return fmt.Errorf("%w: %s requires data", ErrInvalidParameter, c.Opcode)
	}
	if (c.Loop || c.Inventory) && c.Opcode != OpSelectTag {
		return fmt.Errorf("%w: loop and inventory only apply to %s", ErrInvalidParameter, OpSelectTag)
	}
	if c.Lock && c.Opcode != OpWriteTag {
		return fmt.Errorf("%w: lock only applies to %s", ErrInvalidParameter, OpWriteTag)
	}

	// Memory writes carry exactly one block size of data per block. Lock
	// writes carry a lock value instead and are exempt.
	if c.Opcode == OpWriteTag && !c.Lock {
		blockSize := TagTypeAutoDetect.BlockSize()
		if c.Tag != nil {
			blockSize = c.Tag.Type.BlockSize()
		}
		if want := int(c.Blocks) * blockSize; len(c.Data) != want {
			return fmt.Errorf("%w: %d blocks need %d bytes of data, got %d",
				ErrInvalidParameter, c.Blocks, want, len(c.Data))
		}
	}
	return nil
}

// String summarizes the command for logs
func (c *Command) String() string {
	return fmt.Sprintf("%s addr=0x%04X blocks=%d flags=0x%04X data=%d",
		c.Opcode, c.Address, c.Blocks, c.Flags(), len(c.Data))
}
