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

	"github.com/ZaparooProject/go-stpv3/internal/frame"
)

// Request opcodes handled by the simulated reader
const (
	opSelectTag       uint16 = 0x0101
	opReadTag         uint16 = 0x0102
	opWriteTag        uint16 = 0x0103
	opSendTagPassword uint16 = 0x010A
	opReadTagConfig   uint16 = 0x010B
	opWriteTagConfig  uint16 = 0x010C
	opEnableEAS       uint16 = 0x0110
	opDisableEAS      uint16 = 0x0111
	opScanEAS         uint16 = 0x0112
	opLoadDefaults    uint16 = 0x0201
	opResetDevice     uint16 = 0x0202
	opEnterBootload   uint16 = 0x0203
	opReadParam       uint16 = 0x0204
	opWriteParam      uint16 = 0x0205
	opRetrieveDefault uint16 = 0x0206
	opStoreDefault    uint16 = 0x0207

	ridParamAddr uint16 = 0x0004

	bootloadAck byte = 0x06
	bootloadNak byte = 0x15
)

// VirtualReader simulates an STPv3 reader. Handle consumes one request
// frame and returns the frames the reader would send back.
type VirtualReader struct {
	params       map[uint16][]byte
	defaults     map[uint16][]byte
	failures     map[uint16]uint16
	rid          []byte
	tags         []*VirtualTag
	requests     []*Request
	records      [][]byte
	loopOff      int
	loopRounds   int
	mu           sync.Mutex
	inBootloader bool
	silent       bool
}

// NewVirtualReader creates a reader with typical system parameters
func NewVirtualReader() *VirtualReader {
	vr := &VirtualReader{
		params:     make(map[uint16][]byte),
		defaults:   make(map[uint16][]byte),
		failures:   make(map[uint16]uint16),
		rid:        append([]byte(nil), frame.BroadcastRID[:]...),
		loopRounds: 1,
	}

	vr.params[0x0000] = []byte{0x10, 0x20, 0x30, 0x40} // serial number
	vr.params[0x0001] = []byte{0x00, 0x01, 0x02, 0x0A} // firmware
	vr.params[0x0002] = []byte{0x00, 0x00, 0x09, 0x01} // hardware
	vr.params[0x0003] = []byte{0x00, 0x09}             // product code
	vr.params[0x0004] = append([]byte(nil), vr.rid...) // RID
	vr.params[0x0005] = append([]byte("SkyeModule M9"), make([]byte, 32-13)...)
	vr.params[0x0006] = []byte{0x01}                   // host interface: serial
	vr.params[0x0007] = []byte{0x02}                   // baud: 38400
	vr.params[0x000A] = []byte{0x00}                   // mux control
	vr.params[0x0011] = []byte{0x05}                   // retry count
	vr.params[0x0012] = []byte{0xFA}                   // tx power 30 dBm
	vr.params[0x0030] = []byte{0x36, 0x89, 0xCA, 0xC0} // 915 MHz
	vr.params[0x0031] = []byte{0x35, 0xCE, 0xDF, 0x30} // 902.75 MHz
	vr.params[0x0032] = []byte{0x37, 0x44, 0xB6, 0x50} // 927.25 MHz
	vr.params[0x0034] = []byte{0x00, 0x03, 0xD0, 0x90} // 250 kHz
	vr.params[0x0035] = []byte{0x01}
	vr.params[0x0036] = []byte{0x64}
	vr.params[0x0037] = []byte{0x00}
	vr.params[0x0039] = []byte{0x00, 0x1C}

	for addr, v := range vr.params {
		vr.defaults[addr] = append([]byte(nil), v...)
	}
	return vr
}

// AddTag places a tag in the field
func (vr *VirtualReader) AddTag(tag *VirtualTag) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	vr.tags = append(vr.tags, tag)
}

// RemoveTag takes a tag out of the field
func (vr *VirtualReader) RemoveTag(tid []byte) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	kept := vr.tags[:0]
	for _, t := range vr.tags {
		if !bytes.Equal(t.TID, tid) {
			kept = append(kept, t)
		}
	}
	vr.tags = kept
}

// SetRID sets the reader id the reader answers to
func (vr *VirtualReader) SetRID(rid []byte) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	vr.rid = append([]byte(nil), rid...)
	vr.params[ridParamAddr] = append([]byte(nil), rid...)
}

// SetParam sets the volatile value of a system parameter
func (vr *VirtualReader) SetParam(addr uint16, value []byte) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	vr.params[addr] = append([]byte(nil), value...)
}

// Param returns the volatile value of a system parameter
func (vr *VirtualReader) Param(addr uint16) []byte {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	return vr.params[addr]
}

// DefaultParam returns the stored default of a system parameter
func (vr *VirtualReader) DefaultParam(addr uint16) []byte {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	return vr.defaults[addr]
}

// FailOpcode makes every request with opcode answer with code
func (vr *VirtualReader) FailOpcode(opcode, code uint16) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	vr.failures[opcode] = code
}

// ClearFailures removes all injected failures
func (vr *VirtualReader) ClearFailures() {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	vr.failures = make(map[uint16]uint16)
}

// SetLoopOff makes the next n requests answer LOOP_OFF
func (vr *VirtualReader) SetLoopOff(n int) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	vr.loopOff = n
}

// SetLoopRounds sets how many passes over the field a looping inventory
// reports per request
func (vr *VirtualReader) SetLoopRounds(n int) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	vr.loopRounds = n
}

// SetSilent makes the reader drop every request without answering
func (vr *VirtualReader) SetSilent(silent bool) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	vr.silent = silent
}

// Requests returns every request parsed so far
func (vr *VirtualReader) Requests() []*Request {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	return append([]*Request(nil), vr.requests...)
}

// InBootloader reports whether ENTER_BOOTLOAD was accepted
func (vr *VirtualReader) InBootloader() bool {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	return vr.inBootloader
}

// BootloadRecords returns the image records received by the bootloader
func (vr *VirtualReader) BootloadRecords() [][]byte {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	return append([][]byte(nil), vr.records...)
}

// Handle processes bytes written by the host and returns the reply frames
func (vr *VirtualReader) Handle(in []byte) [][]byte {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	if vr.inBootloader {
		return vr.handleBootload(in)
	}

	req, err := ParseRequest(in)
	if err != nil {
		return [][]byte{BuildResponse(CodeBadCRC, nil, nil)}
	}
	vr.requests = append(vr.requests, req)

	if vr.silent {
		return nil
	}

	var rid []byte
	if req.Has(frame.FlagRID) {
		if !bytes.Equal(req.RID, frame.BroadcastRID[:]) && !bytes.Equal(req.RID, vr.rid) {
			return nil
		}
		rid = vr.rid
	}

	if vr.loopOff > 0 {
		vr.loopOff--
		return [][]byte{BuildLoopOffResponse(rid)}
	}

	if code, ok := vr.failures[req.Opcode]; ok {
		return [][]byte{BuildResponse(code, rid, nil)}
	}

	return vr.dispatch(req, rid)
}

func (vr *VirtualReader) dispatch(req *Request, rid []byte) [][]byte {
	pass := func(data []byte) [][]byte { return [][]byte{BuildPassResponse(req.Opcode, rid, data)} }
	fail := func() [][]byte { return [][]byte{BuildFailResponse(req.Opcode, rid)} }

	switch req.Opcode {
	case opSelectTag:
		return vr.selectTag(req, rid)

	case opReadTag:
		tag := vr.target(req)
		if tag == nil {
			return fail()
		}
		data, ok := tag.ReadWords(req.Address, req.Blocks)
		if !ok {
			return fail()
		}
		return pass(data)

	case opWriteTag:
		tag := vr.target(req)
		if tag == nil {
			return fail()
		}
		var ok bool
		if req.Has(frame.FlagLock) {
			ok = tag.Lock(req.Data)
		} else {
			ok = tag.WriteWords(req.Address, req.Data)
		}
		if !ok {
			return fail()
		}
		return pass(nil)

	case opSendTagPassword:
		tag := vr.target(req)
		if tag == nil || !tag.SendPassword(req.Data) {
			return fail()
		}
		return pass(nil)

	case opReadTagConfig:
		tag := vr.target(req)
		if tag == nil {
			return fail()
		}
		data, ok := tag.ReadConfig(req.Address)
		if !ok {
			return fail()
		}
		return pass(data)

	case opWriteTagConfig:
		tag := vr.target(req)
		if tag == nil || !tag.WriteConfig(req.Address, req.Data) {
			return fail()
		}
		return pass(nil)

	case opEnableEAS, opDisableEAS:
		tag := vr.target(req)
		if tag == nil {
			return fail()
		}
		tag.mu.Lock()
		tag.EAS = req.Opcode == opEnableEAS
		tag.mu.Unlock()
		return pass(nil)

	case opScanEAS:
		for _, tag := range vr.tags {
			tag.mu.Lock()
			eas := tag.EAS
			tag.mu.Unlock()
			if eas {
				return pass(nil)
			}
		}
		return fail()

	case opLoadDefaults:
		for addr, v := range vr.defaults {
			vr.params[addr] = append([]byte(nil), v...)
		}
		return pass(nil)

	case opResetDevice:
		return pass(nil)

	case opEnterBootload:
		vr.inBootloader = true
		return pass(nil)

	case opReadParam:
		return vr.readParam(vr.params, req, pass, fail)

	case opRetrieveDefault:
		return vr.readParam(vr.defaults, req, pass, fail)

	case opWriteParam:
		return vr.writeParam(true, req, pass, fail)

	case opStoreDefault:
		return vr.writeParam(false, req, pass, fail)

	default:
		return [][]byte{BuildResponse(CodeInvalidCommand, rid, nil)}
	}
}

func (vr *VirtualReader) readParam(
	store map[uint16][]byte, req *Request, pass func([]byte) [][]byte, fail func() [][]byte,
) [][]byte {
	v, ok := store[req.Address]
	if !ok {
		return fail()
	}
	return pass(v)
}

// writeParam stores a parameter. Writing the RID to the volatile store
// changes the id the reader answers to immediately.
func (vr *VirtualReader) writeParam(
	volatile bool, req *Request, pass func([]byte) [][]byte, fail func() [][]byte,
) [][]byte {
	if len(req.Data) == 0 {
		return fail()
	}
	store := vr.defaults
	if volatile {
		store = vr.params
	}
	store[req.Address] = append([]byte(nil), req.Data...)
	if volatile && req.Address == ridParamAddr && len(req.Data) == frame.RIDSize {
		vr.rid = append([]byte(nil), req.Data...)
	}
	return pass(nil)
}

func (vr *VirtualReader) selectTag(req *Request, rid []byte) [][]byte {
	var matching []*VirtualTag
	for _, tag := range vr.tags {
		if tag.matches(req.TagType, req.TID) {
			matching = append(matching, tag)
		}
	}

	if !req.Has(frame.FlagInventory) {
		if len(matching) == 0 {
			return [][]byte{BuildFailResponse(opSelectTag, rid)}
		}
		tag := matching[0]
		return [][]byte{BuildSelectResponse(rid, tag.Type, tag.TID)}
	}

	var out [][]byte
	if req.Has(frame.FlagLoop) {
		out = append(out, BuildResponse(CodeLoopOn, rid, nil))
		for round := 0; round < vr.loopRounds; round++ {
			for _, tag := range matching {
				out = append(out, BuildSelectResponse(rid, tag.Type, tag.TID))
			}
		}
		return out
	}

	if len(matching) == 0 {
		return [][]byte{BuildFailResponse(opSelectTag, rid)}
	}
	for _, tag := range matching {
		out = append(out, BuildSelectResponse(rid, tag.Type, tag.TID))
	}
	return append(out, BuildInventoryDoneResponse(rid))
}

// target returns the tag a tag command addresses
func (vr *VirtualReader) target(req *Request) *VirtualTag {
	for _, tag := range vr.tags {
		if tag.matches(req.TagType, req.TID) {
			return tag
		}
	}
	return nil
}

// handleBootload acknowledges bootloader records: SOH | LEN(2) | DATA | CRC(2).
// A record with no data ends the upload and returns to the application.
func (vr *VirtualReader) handleBootload(in []byte) [][]byte {
	const soh = 0x01
	if len(in) < 5 || in[0] != soh {
		return [][]byte{{bootloadNak}}
	}
	n := int(frame.Uint16(in[1:3]))
	if len(in) != 3+n+2 {
		return [][]byte{{bootloadNak}}
	}
	if frame.CalculateCRC(in[1:3+n]) != frame.Uint16(in[3+n:]) {
		return [][]byte{{bootloadNak}}
	}
	if n == 0 {
		vr.inBootloader = false
		return [][]byte{{bootloadAck}}
	}
	vr.records = append(vr.records, append([]byte(nil), in[3:3+n]...))
	return [][]byte{{bootloadAck}}
}
