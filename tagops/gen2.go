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
	"encoding/binary"

	"github.com/ZaparooProject/go-stpv3"
	"github.com/pkg/errors"
)

// ReadEPC reads the EPC as described by the tag's PC word
func (t *TagOperations) ReadEPC(ctx context.Context) ([]byte, error) {
	pc, err := t.readWords(ctx, PCWordAddr, 1)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read PC word")
	}
	words := uint16(pc[0] >> 3)
	if words == 0 {
		return []byte{}, nil
	}

	return performValidatedRead(ctx, t.validation, func() ([]byte, error) {
		return t.readWords(ctx, EPCStartAddr, words)
	})
}

// WriteEPC writes a new EPC and updates the PC word length. The EPC is
// written one word at a time.
func (t *TagOperations) WriteEPC(ctx context.Context, epc []byte) error {
	if len(epc) == 0 || len(epc)%2 != 0 || len(epc) > MaxEPCBytes {
		return errors.Wrapf(stpv3.ErrInvalidParameter, "EPC must be 2 to %d bytes in whole words, got %d",
			MaxEPCBytes, len(epc))
	}

	pc := []byte{byte((len(epc) / 2) << 3), 0x00}
	if err := t.writeWordsValidated(ctx, PCWordAddr, pc); err != nil {
		return errors.Wrap(err, "failed to write PC word")
	}
	for i := 0; i < len(epc); i += 2 {
		addr := EPCStartAddr + uint16(i/2)
		if err := t.writeWordsValidated(ctx, addr, epc[i:i+2]); err != nil {
			return errors.Wrapf(err, "failed to write EPC word at 0x%04X", addr)
		}
	}
	return nil
}

// ReadTID reads words words of the TID bank
func (t *TagOperations) ReadTID(ctx context.Context, words uint16) ([]byte, error) {
	return performValidatedRead(ctx, t.validation, func() ([]byte, error) {
		return t.readWords(ctx, TIDBankAddr, words)
	})
}

// ReadMemory reads memory one word at a time starting at addr until the
// tag refuses a word or maxBytes have been read
func (t *TagOperations) ReadMemory(ctx context.Context, addr uint16, maxBytes int) ([]byte, error) {
	if _, err := t.gen2Tag(); err != nil {
		return nil, err
	}
	if maxBytes <= 0 || maxBytes > MaxMemoryBytes {
		maxBytes = MaxMemoryBytes
	}

	out := make([]byte, 0, maxBytes)
	for len(out)+2 <= maxBytes {
		word, err := t.readWords(ctx, addr+uint16(len(out)/2), 1)
		if errors.Is(err, ErrReadFailed) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, word...)
	}
	return out, nil
}

// ReadUserMemory reads the whole user bank, up to MaxMemoryBytes
func (t *TagOperations) ReadUserMemory(ctx context.Context) ([]byte, error) {
	return t.ReadMemory(ctx, UserBankAddr, MaxMemoryBytes)
}

// ReadUserWords reads words words from the start of the user bank
func (t *TagOperations) ReadUserWords(ctx context.Context, words uint16) ([]byte, error) {
	return performValidatedRead(ctx, t.validation, func() ([]byte, error) {
		return t.readWords(ctx, UserBankAddr, words)
	})
}

// WriteUserMemory writes data to the start of the user bank. Data of odd
// length is padded with a zero byte.
func (t *TagOperations) WriteUserMemory(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return errors.Wrap(stpv3.ErrInvalidParameter, "no data to write")
	}
	if len(data)%2 != 0 {
		data = append(append([]byte(nil), data...), 0x00)
	}
	for i := 0; i < len(data); i += 2 {
		addr := UserBankAddr + uint16(i/2)
		if err := t.writeWordsValidated(ctx, addr, data[i:i+2]); err != nil {
			return errors.Wrapf(err, "failed to write user word at 0x%04X", addr)
		}
	}
	return nil
}

func (t *TagOperations) writeWordsValidated(ctx context.Context, addr uint16, data []byte) error {
	return performValidatedWrite(ctx, data, t.validation,
		func() error { return t.writeWords(ctx, addr, data) },
		func() ([]byte, error) { return t.readWords(ctx, addr, uint16(len(data)/2)) },
	)
}

// SetAccessPassword stores a 4-byte access password on the tag
func (t *TagOperations) SetAccessPassword(ctx context.Context, password []byte) error {
	if len(password) != 4 {
		return errors.Wrapf(stpv3.ErrInvalidParameter, "password must be 4 bytes, got %d", len(password))
	}
	return t.writeWords(ctx, AccessPasswordAddr, password)
}

// SetKillPassword stores a 4-byte kill password on the tag
func (t *TagOperations) SetKillPassword(ctx context.Context, password []byte) error {
	if len(password) != 4 {
		return errors.Wrapf(stpv3.ErrInvalidParameter, "password must be 4 bytes, got %d", len(password))
	}
	return t.writeWords(ctx, KillPasswordAddr, password)
}

// Unlock sends the access password, moving the tag to the secured state
func (t *TagOperations) Unlock(ctx context.Context, password []byte) error {
	tag, err := t.gen2Tag()
	if err != nil {
		return err
	}
	swapped, err := swapPassword(password)
	if err != nil {
		return err
	}
	return t.reader.SendTagPassword(ctx, tag, swapped)
}

// Lock unlocks the tag with password and applies a Gen2 lock action
// value (mask in the upper 10 bits of the low 20, action in the lowest 10)
func (t *TagOperations) Lock(ctx context.Context, password []byte, value uint32) error {
	if err := t.Unlock(ctx, password); err != nil {
		return errors.Wrap(err, "failed to unlock tag")
	}
	lock := make([]byte, 4)
	binary.BigEndian.PutUint32(lock, value)
	return t.reader.LockTagData(ctx, t.tag, lock, 0, 0)
}

// SetReadProtect enables NXP read protection using the access password
func (t *TagOperations) SetReadProtect(ctx context.Context, password []byte) error {
	return t.readProtect(ctx, 0x01, password)
}

// ResetReadProtect disables NXP read protection using the access password
func (t *TagOperations) ResetReadProtect(ctx context.Context, password []byte) error {
	return t.readProtect(ctx, 0x02, password)
}

func (t *TagOperations) readProtect(ctx context.Context, action byte, password []byte) error {
	tag, err := t.gen2Tag()
	if err != nil {
		return err
	}
	swapped, err := swapPassword(password)
	if err != nil {
		return err
	}
	return t.reader.WriteTagConfig(ctx, tag, append([]byte{action}, swapped...), 0, 1)
}
