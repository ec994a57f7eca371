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

// Package tagops provides tag-level operations on top of a stpv3.Reader:
// EPC and user memory access for Gen2 tags, passwords and locking, NXP
// read protection and NDEF messages stored in Gen2 user memory.
package tagops

import (
	"context"

	"github.com/ZaparooProject/go-stpv3"
	"github.com/pkg/errors"
)

var (
	// ErrNoTag is returned when an operation needs a detected tag
	ErrNoTag = errors.New("no tag detected")
	// ErrNotGen2 is returned for Gen2 operations on other tag families
	ErrNotGen2 = errors.New("tag is not an ISO 18000-6C tag")
	// ErrReadFailed is returned when the reader answers a read with a
	// failure code
	ErrReadFailed = errors.New("tag read failed")
)

// Gen2 memory map. Addresses are word addresses with the memory bank in
// the high nibble.
const (
	KillPasswordAddr   uint16 = 0x0000
	AccessPasswordAddr uint16 = 0x0002
	PCWordAddr         uint16 = 0x1001
	EPCStartAddr       uint16 = 0x1002
	TIDBankAddr        uint16 = 0x2000
	UserBankAddr       uint16 = 0x3000

	// MaxMemoryBytes caps block-by-block memory reads
	MaxMemoryBytes = 1024
	// MaxEPCBytes is the longest EPC the PC word can describe
	MaxEPCBytes = 62
)

// TagOperations runs operations against one tag. Call DetectTag or
// SetTag before anything else.
type TagOperations struct {
	reader     *stpv3.Reader
	tag        *stpv3.Tag
	validation *ValidationConfig
}

// New creates tag operations for reader
func New(reader *stpv3.Reader) *TagOperations {
	return &TagOperations{
		reader:     reader,
		validation: DefaultValidationConfig(),
	}
}

// SetValidation replaces the read/write verification settings. Nil
// disables verification.
func (t *TagOperations) SetValidation(config *ValidationConfig) {
	if config == nil {
		config = &ValidationConfig{}
	}
	t.validation = config
}

// DetectTag selects the first tag matching filter and makes it the
// target of later operations. A nil filter matches any Gen2 tag.
func (t *TagOperations) DetectTag(ctx context.Context, filter *stpv3.Tag) error {
	tag := stpv3.NewTag(stpv3.TagTypeGen2, nil)
	if filter != nil {
		tag = stpv3.NewTag(filter.Type, filter.TID)
	}

	found, err := t.reader.SelectTag(ctx, tag)
	if err != nil {
		return errors.Wrap(err, "failed to select tag")
	}
	if !found {
		t.tag = nil
		return ErrNoTag
	}
	t.tag = tag
	return nil
}

// SetTag targets a tag found elsewhere, for example by an inventory
func (t *TagOperations) SetTag(tag *stpv3.Tag) {
	if tag == nil {
		t.tag = nil
		return
	}
	t.tag = stpv3.NewTag(tag.Type, tag.TID)
}

// Tag returns the current target, or nil
func (t *TagOperations) Tag() *stpv3.Tag {
	return t.tag
}

func (t *TagOperations) gen2Tag() (*stpv3.Tag, error) {
	if t.tag == nil {
		return nil, ErrNoTag
	}
	if t.tag.Type.Family() != stpv3.TagTypeGen2 {
		return nil, errors.Wrapf(ErrNotGen2, "tag type %s", t.tag.Type)
	}
	return t.tag, nil
}

// readWords reads blocks words and treats a reader failure as an error
func (t *TagOperations) readWords(ctx context.Context, addr, blocks uint16) ([]byte, error) {
	tag, err := t.gen2Tag()
	if err != nil {
		return nil, err
	}
	data, err := t.reader.ReadTagData(ctx, tag, addr, blocks)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.Wrapf(ErrReadFailed, "address 0x%04X", addr)
	}
	return data, nil
}

func (t *TagOperations) writeWords(ctx context.Context, addr uint16, data []byte) error {
	tag, err := t.gen2Tag()
	if err != nil {
		return err
	}
	return t.reader.WriteTagData(ctx, tag, data, addr, uint16(len(data)/2))
}

// swapPassword exchanges the 16-bit halves of a 32-bit password, the
// order STPv3 readers expect on the wire
func swapPassword(password []byte) ([]byte, error) {
	if len(password) != 4 {
		return nil, errors.Wrapf(stpv3.ErrInvalidParameter, "password must be 4 bytes, got %d", len(password))
	}
	return []byte{password[2], password[3], password[0], password[1]}, nil
}
