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
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// HostInterface is the link a reader talks to its host over
type HostInterface byte

// Host interfaces
const (
	HostInterfaceSerial HostInterface = 0x01
	HostInterfaceUSB    HostInterface = 0x06
)

// String returns the interface name
func (h HostInterface) String() string {
	switch h {
	case HostInterfaceSerial:
		return "serial"
	case HostInterfaceUSB:
		return "usb"
	default:
		return fmt.Sprintf("HostInterface(0x%02X)", byte(h))
	}
}

// baudRates maps the BAUD_RATE parameter code to bits per second
var baudRates = []int{9600, 19200, 38400, 57600, 115200}

const (
	readerNameSize = 32
	minTxPower     = 5.0
	maxTxPower     = 30.5
)

// TxPowerToRaw converts a power level in dBm to the TX_POWER byte, which
// stores (dBm * 10) - 50
func TxPowerToRaw(dBm float64) (byte, error) {
	if math.IsNaN(dBm) || dBm < minTxPower || dBm > maxTxPower {
		return 0, fmt.Errorf("%w: tx power %.1f dBm outside [%.1f, %.1f]",
			ErrInvalidParameter, dBm, minTxPower, maxTxPower)
	}
	return byte(math.Round(dBm*10 - 50)), nil
}

// TxPowerFromRaw converts the TX_POWER byte to dBm
func TxPowerFromRaw(raw byte) float64 {
	return (float64(raw) + 50) / 10
}

// BaudRateCode returns the BAUD_RATE parameter code for a bit rate
func BaudRateCode(baud int) (byte, error) {
	for code, rate := range baudRates {
		if rate == baud {
			return byte(code), nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported baud rate %d", ErrInvalidParameter, baud)
}

func hexString(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// SerialNumber returns the reader serial number as hex, or "" when the
// reader does not report it
func (r *Reader) SerialNumber(ctx context.Context) (string, error) {
	data, err := r.ReadParameter(ctx, Current, ParamSerialNumber)
	if err != nil || data == nil {
		return "", err
	}
	return hexString(data), nil
}

// FirmwareVersion returns the firmware version as hex. The value is
// cached after the first successful read.
func (r *Reader) FirmwareVersion(ctx context.Context) (string, error) {
	r.mu.Lock()
	cached := r.firmware
	r.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	data, err := r.ReadParameter(ctx, Current, ParamFirmwareVersion)
	if err != nil || data == nil {
		return "", err
	}

	version := hexString(data)
	r.mu.Lock()
	r.firmware = version
	r.mu.Unlock()
	return version, nil
}

// HardwareVersion returns the hardware version as hex
func (r *Reader) HardwareVersion(ctx context.Context) (string, error) {
	data, err := r.ReadParameter(ctx, Current, ParamHardwareVersion)
	if err != nil || data == nil {
		return "", err
	}
	return hexString(data), nil
}

// ProductCode returns the product code as hex
func (r *Reader) ProductCode(ctx context.Context) (string, error) {
	data, err := r.ReadParameter(ctx, Current, ParamProductCode)
	if err != nil || data == nil {
		return "", err
	}
	return hexString(data), nil
}

// ReadReaderID reads the reader id parameter
func (r *Reader) ReadReaderID(ctx context.Context, store ParameterStore) ([]byte, error) {
	return r.ReadParameter(ctx, store, ParamReaderID)
}

// SetReaderID writes the reader id parameter. Writing the current value
// also readdresses the session.
func (r *Reader) SetReaderID(ctx context.Context, store ParameterStore, rid []byte) error {
	if len(rid) != int(ParamReaderID.Blocks()) {
		return fmt.Errorf("%w: reader id must be 4 bytes", ErrInvalidParameter)
	}
	return r.WriteParameter(ctx, store, ParamReaderID, rid)
}

// ReaderName returns the reader name, or "" when the reader does not
// report it
func (r *Reader) ReaderName(ctx context.Context, store ParameterStore) (string, error) {
	data, err := r.ReadParameter(ctx, store, ParamReaderName)
	if err != nil || data == nil {
		return "", err
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}

// SetReaderName writes the reader name. Names are ASCII and at most 32
// characters.
func (r *Reader) SetReaderName(ctx context.Context, store ParameterStore, name string) error {
	if len(name) > readerNameSize {
		return fmt.Errorf("%w: reader name longer than %d bytes", ErrInvalidParameter, readerNameSize)
	}
	for i := 0; i < len(name); i++ {
		if name[i] > 0x7F {
			return fmt.Errorf("%w: reader name must be ASCII", ErrInvalidParameter)
		}
	}
	data := make([]byte, readerNameSize)
	copy(data, name)
	return r.WriteParameter(ctx, store, ParamReaderName, data)
}

// HostInterface returns the host interface setting
func (r *Reader) HostInterface(ctx context.Context, store ParameterStore) (HostInterface, bool, error) {
	v, ok, err := r.ByteParameter(ctx, store, ParamHostInterface)
	return HostInterface(v), ok, err
}

// SetHostInterface writes the host interface setting
func (r *Reader) SetHostInterface(ctx context.Context, store ParameterStore, h HostInterface) error {
	return r.SetByteParameter(ctx, store, ParamHostInterface, byte(h))
}

// BaudRate returns the serial bit rate
func (r *Reader) BaudRate(ctx context.Context, store ParameterStore) (int, bool, error) {
	code, ok, err := r.ByteParameter(ctx, store, ParamBaudRate)
	if !ok || int(code) >= len(baudRates) {
		return 0, false, err
	}
	return baudRates[code], true, nil
}

// SetBaudRate writes the serial bit rate. It takes effect on the next
// reset.
func (r *Reader) SetBaudRate(ctx context.Context, store ParameterStore, baud int) error {
	code, err := BaudRateCode(baud)
	if err != nil {
		return err
	}
	return r.SetByteParameter(ctx, store, ParamBaudRate, code)
}

// TxPower returns the transmit power in dBm
func (r *Reader) TxPower(ctx context.Context, store ParameterStore) (float64, bool, error) {
	raw, ok, err := r.ByteParameter(ctx, store, ParamTxPower)
	if !ok {
		return 0, false, err
	}
	return TxPowerFromRaw(raw), true, nil
}

// SetTxPower writes the transmit power in dBm
func (r *Reader) SetTxPower(ctx context.Context, store ParameterStore, dBm float64) error {
	raw, err := TxPowerToRaw(dBm)
	if err != nil {
		return err
	}
	return r.SetByteParameter(ctx, store, ParamTxPower, raw)
}

// CurrentFrequency returns the operating frequency in Hz
func (r *Reader) CurrentFrequency(ctx context.Context, store ParameterStore) (uint32, bool, error) {
	return r.Uint32Parameter(ctx, store, ParamCurrentFrequency)
}

// SetCurrentFrequency writes the operating frequency in Hz
func (r *Reader) SetCurrentFrequency(ctx context.Context, store ParameterStore, hz uint32) error {
	return r.SetUint32Parameter(ctx, store, ParamCurrentFrequency, hz)
}

// StartFrequency returns the lowest hopping frequency in Hz
func (r *Reader) StartFrequency(ctx context.Context, store ParameterStore) (uint32, bool, error) {
	return r.Uint32Parameter(ctx, store, ParamStartFrequency)
}

// SetStartFrequency writes the lowest hopping frequency in Hz
func (r *Reader) SetStartFrequency(ctx context.Context, store ParameterStore, hz uint32) error {
	return r.SetUint32Parameter(ctx, store, ParamStartFrequency, hz)
}

// StopFrequency returns the highest hopping frequency in Hz
func (r *Reader) StopFrequency(ctx context.Context, store ParameterStore) (uint32, bool, error) {
	return r.Uint32Parameter(ctx, store, ParamStopFrequency)
}

// SetStopFrequency writes the highest hopping frequency in Hz
func (r *Reader) SetStopFrequency(ctx context.Context, store ParameterStore, hz uint32) error {
	return r.SetUint32Parameter(ctx, store, ParamStopFrequency, hz)
}

// HopChannelSpacing returns the spacing between hop channels in Hz
func (r *Reader) HopChannelSpacing(ctx context.Context, store ParameterStore) (uint32, bool, error) {
	return r.Uint32Parameter(ctx, store, ParamHopChannelSpacing)
}

// SetHopChannelSpacing writes the spacing between hop channels in Hz
func (r *Reader) SetHopChannelSpacing(ctx context.Context, store ParameterStore, hz uint32) error {
	return r.SetUint32Parameter(ctx, store, ParamHopChannelSpacing, hz)
}

// FrequencyHopSequence returns the hop sequence setting
func (r *Reader) FrequencyHopSequence(ctx context.Context, store ParameterStore) (byte, bool, error) {
	return r.ByteParameter(ctx, store, ParamFrequencyHopSeq)
}

// SetFrequencyHopSequence writes the hop sequence setting
func (r *Reader) SetFrequencyHopSequence(ctx context.Context, store ParameterStore, v byte) error {
	return r.SetByteParameter(ctx, store, ParamFrequencyHopSeq, v)
}

// RetryCount returns how often the reader retries a tag operation
func (r *Reader) RetryCount(ctx context.Context, store ParameterStore) (byte, bool, error) {
	return r.ByteParameter(ctx, store, ParamRetryCount)
}

// SetRetryCount writes the tag operation retry count
func (r *Reader) SetRetryCount(ctx context.Context, store ParameterStore, v byte) error {
	return r.SetByteParameter(ctx, store, ParamRetryCount, v)
}

// ModulationDepth returns the modulation depth in percent
func (r *Reader) ModulationDepth(ctx context.Context, store ParameterStore) (byte, bool, error) {
	return r.ByteParameter(ctx, store, ParamModulationDepth)
}

// SetModulationDepth writes the modulation depth in percent
func (r *Reader) SetModulationDepth(ctx context.Context, store ParameterStore, v byte) error {
	return r.SetByteParameter(ctx, store, ParamModulationDepth, v)
}

// RegulatoryMode returns the regulatory mode
func (r *Reader) RegulatoryMode(ctx context.Context, store ParameterStore) (byte, bool, error) {
	return r.ByteParameter(ctx, store, ParamRegulatoryMode)
}

// SetRegulatoryMode writes the regulatory mode
func (r *Reader) SetRegulatoryMode(ctx context.Context, store ParameterStore, v byte) error {
	return r.SetByteParameter(ctx, store, ParamRegulatoryMode, v)
}

// OperatingMode returns the operating mode
func (r *Reader) OperatingMode(ctx context.Context, store ParameterStore) (byte, bool, error) {
	return r.ByteParameter(ctx, store, ParamOperatingMode)
}

// SetOperatingMode writes the operating mode
func (r *Reader) SetOperatingMode(ctx context.Context, store ParameterStore, v byte) error {
	return r.SetByteParameter(ctx, store, ParamOperatingMode, v)
}

// TagPopulation returns the expected number of tags in the field
func (r *Reader) TagPopulation(ctx context.Context, store ParameterStore) (byte, bool, error) {
	return r.ByteParameter(ctx, store, ParamTagPopulation)
}

// SetTagPopulation writes the expected number of tags in the field
func (r *Reader) SetTagPopulation(ctx context.Context, store ParameterStore, v byte) error {
	return r.SetByteParameter(ctx, store, ParamTagPopulation, v)
}

// UserPortDirection returns the GPIO direction mask
func (r *Reader) UserPortDirection(ctx context.Context, store ParameterStore) (byte, bool, error) {
	return r.ByteParameter(ctx, store, ParamUserPortDirection)
}

// SetUserPortDirection writes the GPIO direction mask
func (r *Reader) SetUserPortDirection(ctx context.Context, store ParameterStore, v byte) error {
	return r.SetByteParameter(ctx, store, ParamUserPortDirection, v)
}

// UserPortValue returns the GPIO levels
func (r *Reader) UserPortValue(ctx context.Context, store ParameterStore) (byte, bool, error) {
	return r.ByteParameter(ctx, store, ParamUserPortValue)
}

// SetUserPortValue writes the GPIO levels
func (r *Reader) SetUserPortValue(ctx context.Context, store ParameterStore, v byte) error {
	return r.SetByteParameter(ctx, store, ParamUserPortValue, v)
}

// BoardTemperature returns the raw board temperature reading
func (r *Reader) BoardTemperature(ctx context.Context) (uint16, bool, error) {
	data, err := r.ReadParameter(ctx, Current, ParamBoardTemperature)
	if err != nil || len(data) < 2 {
		return 0, false, err
	}
	return binary.BigEndian.Uint16(data), true, nil
}

// ByteParameter reads a one byte parameter. ok is false when the reader
// does not report it.
func (r *Reader) ByteParameter(ctx context.Context, store ParameterStore, p SystemParameter) (byte, bool, error) {
	data, err := r.ReadParameter(ctx, store, p)
	if err != nil || len(data) < 1 {
		return 0, false, err
	}
	return data[0], true, nil
}

// SetByteParameter writes a one byte parameter
func (r *Reader) SetByteParameter(ctx context.Context, store ParameterStore, p SystemParameter, v byte) error {
	return r.WriteParameter(ctx, store, p, []byte{v})
}

// Uint32Parameter reads a four byte big-endian parameter
func (r *Reader) Uint32Parameter(ctx context.Context, store ParameterStore, p SystemParameter) (uint32, bool, error) {
	data, err := r.ReadParameter(ctx, store, p)
	if err != nil || len(data) < 4 {
		return 0, false, err
	}
	return binary.BigEndian.Uint32(data), true, nil
}

// SetUint32Parameter writes a four byte big-endian parameter
func (r *Reader) SetUint32Parameter(ctx context.Context, store ParameterStore, p SystemParameter, v uint32) error {
	return r.WriteParameter(ctx, store, p, binary.BigEndian.AppendUint32(nil, v))
}
