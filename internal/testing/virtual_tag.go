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

package testing

import (
	"bytes"
	"sync"
)

// Gen2 memory map, word addressed
const (
	KillPasswordAddr   uint16 = 0x0000
	AccessPasswordAddr uint16 = 0x0002
	EPCBankAddr        uint16 = 0x1000
	PCWordAddr         uint16 = 0x1001
	EPCStartAddr       uint16 = 0x1002
	TIDBankAddr        uint16 = 0x2000
	UserBankAddr       uint16 = 0x3000

	// Gen2TagType is the ISO 18000-6C auto-detect type reported by default
	Gen2TagType uint16 = 0x0060

	epcCapacityWords = 16
)

// Test TIDs
var (
	TestTID1 = []byte{0xE2, 0x00, 0x34, 0x12, 0x01, 0x23, 0x45, 0x67}
	TestTID2 = []byte{0xE2, 0x00, 0x34, 0x12, 0x89, 0xAB, 0xCD, 0xEF}
	TestTID3 = []byte{0xE2, 0x80, 0x11, 0x05, 0x20, 0x00, 0x7A, 0x01}
)

// VirtualTag is a simulated Gen2 transponder with word addressed memory
type VirtualTag struct {
	memory        map[uint16][2]byte
	config        map[uint16][]byte
	TID           []byte
	lockValue     uint32
	mu            sync.Mutex
	Type          uint16
	secured       bool
	locked        bool
	EAS           bool
	readProtected bool
}

// NewVirtualGen2Tag creates a Gen2 tag with the given TID and EPC and
// userWords words of zeroed user memory.
func NewVirtualGen2Tag(tid, epc []byte, userWords int) *VirtualTag {
	tag := &VirtualTag{
		TID:    append([]byte(nil), tid...),
		Type:   Gen2TagType,
		memory: make(map[uint16][2]byte),
		config: make(map[uint16][]byte),
	}

	for addr := KillPasswordAddr; addr < AccessPasswordAddr+2; addr++ {
		tag.memory[addr] = [2]byte{}
	}
	tag.memory[EPCBankAddr] = [2]byte{0xFF, 0xFF}
	for i := uint16(0); i < epcCapacityWords; i++ {
		tag.memory[EPCStartAddr+i] = [2]byte{}
	}
	for i := 0; i+1 < len(tid); i += 2 {
		tag.memory[TIDBankAddr+uint16(i/2)] = [2]byte{tid[i], tid[i+1]}
	}
	for i := 0; i < userWords; i++ {
		tag.memory[UserBankAddr+uint16(i)] = [2]byte{}
	}

	tag.setEPC(epc)
	return tag
}

func (t *VirtualTag) setEPC(epc []byte) {
	t.memory[PCWordAddr] = [2]byte{byte((len(epc) / 2) << 3), 0x00}
	for i := 0; i+1 < len(epc); i += 2 {
		t.memory[EPCStartAddr+uint16(i/2)] = [2]byte{epc[i], epc[i+1]}
	}
}

// EPC returns the EPC as described by the PC word
func (t *VirtualTag) EPC() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	pc := t.memory[PCWordAddr]
	words := int(pc[0] >> 3)
	out := make([]byte, 0, words*2)
	for i := 0; i < words; i++ {
		w := t.memory[EPCStartAddr+uint16(i)]
		out = append(out, w[0], w[1])
	}
	return out
}

// ReadWords reads blocks words starting at addr
func (t *VirtualTag) ReadWords(addr, blocks uint16) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.readProtected || blocks == 0 {
		return nil, false
	}
	if addr < AccessPasswordAddr+2 && !t.secured && t.hasPassword() {
		return nil, false
	}

	out := make([]byte, 0, int(blocks)*2)
	for i := uint16(0); i < blocks; i++ {
		w, ok := t.memory[addr+i]
		if !ok {
			return nil, false
		}
		out = append(out, w[0], w[1])
	}
	return out, true
}

// WriteWords writes data (two bytes per word) starting at addr
func (t *VirtualTag) WriteWords(addr uint16, data []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.locked && !t.secured {
		return false
	}
	if len(data) == 0 || len(data)%2 != 0 {
		return false
	}
	for i := 0; i < len(data); i += 2 {
		if _, ok := t.memory[addr+uint16(i/2)]; !ok {
			return false
		}
	}
	for i := 0; i < len(data); i += 2 {
		t.memory[addr+uint16(i/2)] = [2]byte{data[i], data[i+1]}
	}
	return true
}

// SendPassword checks a password sent with its 16-bit words swapped
func (t *VirtualTag) SendPassword(swapped []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(swapped) != 4 {
		return false
	}
	pw := []byte{swapped[2], swapped[3], swapped[0], swapped[1]}
	if !bytes.Equal(pw, t.accessPassword()) {
		t.secured = false
		return false
	}
	t.secured = true
	return true
}

// Lock applies a Gen2 lock value. The tag must be secured first.
func (t *VirtualTag) Lock(value []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.secured || len(value) != 4 {
		return false
	}
	t.lockValue = uint32(value[0])<<24 | uint32(value[1])<<16 | uint32(value[2])<<8 | uint32(value[3])
	t.locked = true
	return true
}

// LockValue returns the last lock value applied
func (t *VirtualTag) LockValue() (uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lockValue, t.locked
}

// WriteConfig stores tag configuration. Address 0 with a leading 0x01 or
// 0x02 byte sets or clears NXP read protection after a password check.
func (t *VirtualTag) WriteConfig(addr uint16, data []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if addr == 0 && len(data) == 5 && (data[0] == 0x01 || data[0] == 0x02) {
		swapped := data[1:]
		pw := []byte{swapped[2], swapped[3], swapped[0], swapped[1]}
		if !bytes.Equal(pw, t.accessPassword()) {
			return false
		}
		t.readProtected = data[0] == 0x01
		return true
	}
	t.config[addr] = append([]byte(nil), data...)
	return true
}

// ReadConfig returns stored configuration
func (t *VirtualTag) ReadConfig(addr uint16) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	data, ok := t.config[addr]
	return data, ok
}

// ReadProtected reports whether NXP read protection is active
func (t *VirtualTag) ReadProtected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readProtected
}

func (t *VirtualTag) accessPassword() []byte {
	hi := t.memory[AccessPasswordAddr]
	lo := t.memory[AccessPasswordAddr+1]
	return []byte{hi[0], hi[1], lo[0], lo[1]}
}

func (t *VirtualTag) hasPassword() bool {
	return !bytes.Equal(t.accessPassword(), []byte{0, 0, 0, 0})
}

// matches reports whether the tag answers a select for tagType and tid
func (t *VirtualTag) matches(tagType uint16, tid []byte) bool {
	if tagType&0x000F == 0 {
		if tagType != 0 && tagType != t.Type&^0x000F {
			return false
		}
	} else if tagType != t.Type {
		return false
	}
	return len(tid) == 0 || bytes.Equal(tid, t.TID)
}
