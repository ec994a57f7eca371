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
	"context"
	"fmt"
	"slices"
)

// MuxType identifies the antenna multiplexer attached to a reader, as
// reported in the MUX_CONTROL parameter
type MuxType byte

// Multiplexer types
const (
	MuxFourPortHF     MuxType = 0x01
	MuxFourPortUHF    MuxType = 0x02
	MuxTwelvePortHF   MuxType = 0x03
	MuxTwelvePortUHF  MuxType = 0x04
	MuxEightPortHF    MuxType = 0x05
	MuxEightPortUHF   MuxType = 0x06
	MuxSixteenPortHF  MuxType = 0x07
	MuxSixteenPortUHF MuxType = 0x08
)

const (
	muxEnable  byte = 0x02
	muxDisable byte = 0x00
)

// MaxPort returns the highest port number of the multiplexer, or -1 for
// an unknown type
func (t MuxType) MaxPort() int {
	switch t {
	case MuxFourPortHF, MuxFourPortUHF:
		return 3
	case MuxEightPortHF, MuxEightPortUHF:
		return 7
	case MuxTwelvePortHF, MuxTwelvePortUHF:
		return 11
	case MuxSixteenPortHF, MuxSixteenPortUHF:
		return 15
	default:
		return -1
	}
}

// Ports returns the MUX_CONTROL values that select each antenna. Four
// port multiplexers are wired to channels 0, 2, 5 and 7.
func (t MuxType) Ports() []byte {
	if t == MuxFourPortHF || t == MuxFourPortUHF {
		return []byte{0, 2, 5, 7}
	}
	maxPort := t.MaxPort()
	if maxPort < 0 {
		return nil
	}
	ports := make([]byte, maxPort+1)
	for i := range ports {
		ports[i] = byte(i)
	}
	return ports
}

// String returns a readable multiplexer name
func (t MuxType) String() string {
	if t.MaxPort() < 0 {
		return fmt.Sprintf("MuxType(0x%02X)", byte(t))
	}
	band := "HF"
	if t%2 == 0 {
		band = "UHF"
	}
	return fmt.Sprintf("%d-port %s", len(t.Ports()), band)
}

// MuxControl returns the MUX_CONTROL parameter
func (r *Reader) MuxControl(ctx context.Context, store ParameterStore) (byte, bool, error) {
	return r.ByteParameter(ctx, store, ParamMuxControl)
}

// SetMuxControl writes the MUX_CONTROL parameter
func (r *Reader) SetMuxControl(ctx context.Context, store ParameterStore, v byte) error {
	return r.SetByteParameter(ctx, store, ParamMuxControl, v)
}

// EnableMux turns on multiplexer support. It is stored as a default and
// takes effect after a reset.
func (r *Reader) EnableMux(ctx context.Context) error {
	return r.SetMuxControl(ctx, Default, muxEnable)
}

// DisableMux turns off multiplexer support after the next reset
func (r *Reader) DisableMux(ctx context.Context) error {
	return r.SetMuxControl(ctx, Default, muxDisable)
}

// DetectMux reads the multiplexer type the reader reports. ok is false
// when the reader does not report one.
func (r *Reader) DetectMux(ctx context.Context) (MuxType, bool, error) {
	v, ok, err := r.MuxControl(ctx, Current)
	if !ok {
		return 0, false, err
	}
	t := MuxType(v)
	if t.MaxPort() < 0 {
		return 0, false, nil
	}
	return t, true, nil
}

// Multiplexer switches the antenna port of a reader's multiplexer
type Multiplexer struct {
	reader *Reader
	ports  []byte
	index  int
	kind   MuxType
}

// NewMultiplexer creates a multiplexer of the given type on r
func NewMultiplexer(r *Reader, kind MuxType) (*Multiplexer, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrInvalidParameter)
	}
	ports := kind.Ports()
	if ports == nil {
		return nil, fmt.Errorf("%w: unknown multiplexer type 0x%02X", ErrInvalidParameter, byte(kind))
	}
	return &Multiplexer{reader: r, kind: kind, ports: ports}, nil
}

// Type returns the multiplexer type
func (m *Multiplexer) Type() MuxType {
	return m.kind
}

// Port returns the selected port
func (m *Multiplexer) Port() byte {
	return m.ports[m.index]
}

// SelectPort switches to port, which must be one of Type().Ports()
func (m *Multiplexer) SelectPort(ctx context.Context, port byte) error {
	index := slices.Index(m.ports, port)
	if index < 0 {
		return fmt.Errorf("%w: port %d not available on %s multiplexer", ErrInvalidParameter, port, m.kind)
	}
	if err := m.reader.SetMuxControl(ctx, Current, port); err != nil {
		return err
	}
	m.index = index
	return nil
}

// NextPort switches to the next port, wrapping after the last one
func (m *Multiplexer) NextPort(ctx context.Context) error {
	next := (m.index + 1) % len(m.ports)
	if err := m.reader.SetMuxControl(ctx, Current, m.ports[next]); err != nil {
		return err
	}
	m.index = next
	return nil
}
