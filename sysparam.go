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
	"strconv"
	"strings"
)

// SystemParameter is the address of a reader configuration value
type SystemParameter uint16

// System parameter addresses
const (
	ParamSerialNumber       SystemParameter = 0x0000
	ParamFirmwareVersion    SystemParameter = 0x0001
	ParamHardwareVersion    SystemParameter = 0x0002
	ParamProductCode        SystemParameter = 0x0003
	ParamReaderID           SystemParameter = 0x0004
	ParamReaderName         SystemParameter = 0x0005
	ParamHostInterface      SystemParameter = 0x0006
	ParamBaudRate           SystemParameter = 0x0007
	ParamUserPortDirection  SystemParameter = 0x0008
	ParamUserPortValue      SystemParameter = 0x0009
	ParamMuxControl         SystemParameter = 0x000A
	ParamOperatingMode      SystemParameter = 0x000C
	ParamEncryptionScheme   SystemParameter = 0x000D
	ParamHMACScheme         SystemParameter = 0x000E
	ParamTagPopulation      SystemParameter = 0x0010
	ParamRetryCount         SystemParameter = 0x0011
	ParamTxPower            SystemParameter = 0x0012
	ParamCurrentFrequency   SystemParameter = 0x0030
	ParamStartFrequency     SystemParameter = 0x0031
	ParamStopFrequency      SystemParameter = 0x0032
	ParamFeatureLock        SystemParameter = 0x0033
	ParamHopChannelSpacing  SystemParameter = 0x0034
	ParamFrequencyHopSeq    SystemParameter = 0x0035
	ParamModulationDepth    SystemParameter = 0x0036
	ParamRegulatoryMode     SystemParameter = 0x0037
	ParamLBTAdjust          SystemParameter = 0x0038
	ParamBoardTemperature   SystemParameter = 0x0039
	ParamETSISignalStrength SystemParameter = 0x003A
	ParamSynthesizerPower   SystemParameter = 0x003C
	ParamCurrentDAC         SystemParameter = 0x003F
	ParamPowerDetector      SystemParameter = 0x0040
	ParamPulseShapingMode   SystemParameter = 0x0041
	ParamPATable            SystemParameter = 0x0042
	ParamRegulatorSwitch    SystemParameter = 0x0043
	ParamSiteSurvey         SystemParameter = 0x0044
	ParamOptimalPowerGen1   SystemParameter = 0x0045
	ParamOptimalPowerGen2   SystemParameter = 0x0046
	ParamOptimalPower6B     SystemParameter = 0x0047
	ParamTestMode           SystemParameter = 0x0048
	ParamOptimalPowerEM     SystemParameter = 0x0049
)

type parameterInfo struct {
	name   string
	blocks uint16
}

var parameters = map[SystemParameter]parameterInfo{
	ParamSerialNumber:       {"SERIAL_NUMBER", 4},
	ParamFirmwareVersion:    {"FIRMWARE_VERSION", 4},
	ParamHardwareVersion:    {"HARDWARE_VERSION", 4},
	ParamProductCode:        {"PRODUCT_CODE", 2},
	ParamReaderID:           {"READER_ID", 4},
	ParamReaderName:         {"READER_NAME", 32},
	ParamHostInterface:      {"HOST_INTERFACE", 1},
	ParamBaudRate:           {"BAUD_RATE", 1},
	ParamUserPortDirection:  {"USER_PORT_DIRECTION", 1},
	ParamUserPortValue:      {"USER_PORT_VALUE", 1},
	ParamMuxControl:         {"MUX_CONTROL", 1},
	ParamOperatingMode:      {"OPERATING_MODE", 1},
	ParamEncryptionScheme:   {"ENCRYPTION_SCHEME", 1},
	ParamHMACScheme:         {"HMAC_SCHEME", 1},
	ParamTagPopulation:      {"TAG_POPULATION", 1},
	ParamRetryCount:         {"RETRY_COUNT", 1},
	ParamTxPower:            {"TX_POWER", 1},
	ParamCurrentFrequency:   {"CURRENT_FREQUENCY", 4},
	ParamStartFrequency:     {"START_FREQUENCY", 4},
	ParamStopFrequency:      {"STOP_FREQUENCY", 4},
	ParamFeatureLock:        {"FEATURE_LOCK", 1},
	ParamHopChannelSpacing:  {"HOP_CHANNEL_SPACING", 4},
	ParamFrequencyHopSeq:    {"FREQUENCY_HOP_SEQUENCE", 1},
	ParamModulationDepth:    {"MODULATION_DEPTH", 1},
	ParamRegulatoryMode:     {"REGULATORY_MODE", 1},
	ParamLBTAdjust:          {"LBT_ADJUST", 1},
	ParamBoardTemperature:   {"BOARD_TEMPERATURE", 2},
	ParamETSISignalStrength: {"ETSI_SIGNAL_STRENGTH", 1},
	ParamSynthesizerPower:   {"SYNTHESIZER_POWER_LEVEL", 1},
	ParamCurrentDAC:         {"CURRENT_DAC_VALUE", 1},
	ParamPowerDetector:      {"POWER_DETECTOR_VALUE", 1},
	ParamPulseShapingMode:   {"PULSE_SHAPING_MODE", 1},
	ParamPATable:            {"PA_TABLE", 1},
	ParamRegulatorSwitch:    {"REGULATOR_SWITCH", 1},
	ParamSiteSurvey:         {"SITE_SURVEY", 1},
	ParamOptimalPowerGen1:   {"OPTIMAL_POWER_GEN1", 1},
	ParamOptimalPowerGen2:   {"OPTIMAL_POWER_GEN2", 1},
	ParamOptimalPower6B:     {"OPTIMAL_POWER_6B", 1},
	ParamTestMode:           {"TEST_MODE", 1},
	ParamOptimalPowerEM:     {"OPTIMAL_POWER_EM", 1},
}

// String returns the parameter name
func (p SystemParameter) String() string {
	if info, ok := parameters[p]; ok {
		return info.name
	}
	return fmt.Sprintf("SystemParameter(0x%04X)", uint16(p))
}

// KnownParameters returns every named system parameter in address order
func KnownParameters() []SystemParameter {
	out := make([]SystemParameter, 0, len(parameters))
	for p := range parameters {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// ParseSystemParameter accepts a parameter name such as "TX_POWER" or a
// decimal or 0x-prefixed address
func ParseSystemParameter(s string) (SystemParameter, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for p, info := range parameters {
		if info.name == s {
			return p, nil
		}
	}

	v, err := strconv.ParseUint(strings.Replace(s, "0X", "0x", 1), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: unknown system parameter %q", ErrInvalidParameter, s)
	}
	return SystemParameter(v), nil
}

// Blocks returns the size of the parameter in bytes
func (p SystemParameter) Blocks() uint16 {
	if info, ok := parameters[p]; ok {
		return info.blocks
	}
	return 1
}

// ParameterStore selects the volatile or the stored default copy of a
// system parameter
type ParameterStore int

const (
	// Current is the volatile value the reader runs with
	Current ParameterStore = iota
	// Default is the value the reader loads at power up
	Default
)

// String returns the store name
func (s ParameterStore) String() string {
	if s == Default {
		return "default"
	}
	return "current"
}

// ReadSystemParameter reads the volatile value at address. It returns nil
// when the reader reports a failure.
func (r *Reader) ReadSystemParameter(ctx context.Context, address, blocks uint16) ([]byte, error) {
	return r.query(ctx, &Command{Opcode: OpReadSystemParameter, Address: address, Blocks: blocks})
}

// RetrieveDefaultParameter reads the stored default at address. It
// returns nil when the reader reports a failure.
func (r *Reader) RetrieveDefaultParameter(ctx context.Context, address, blocks uint16) ([]byte, error) {
	return r.query(ctx, &Command{Opcode: OpRetrieveDefaultSystemParameter, Address: address, Blocks: blocks})
}

// WriteSystemParameter writes the volatile value at address. Writing the
// reader id also changes the id later requests are addressed to.
func (r *Reader) WriteSystemParameter(ctx context.Context, data []byte, address, blocks uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.commandLocked(ctx, "WriteSystemParameter",
		&Command{Opcode: OpWriteSystemParameter, Data: data, Address: address, Blocks: blocks})
	if err != nil {
		return err
	}
	if SystemParameter(address) == ParamReaderID && len(data) == len(r.rid) {
		r.rid = append([]byte(nil), data...)
		debugf("reader id changed to % X", r.rid)
	}
	return nil
}

// StoreDefaultParameter writes the stored default at address
func (r *Reader) StoreDefaultParameter(ctx context.Context, data []byte, address, blocks uint16) error {
	return r.command(ctx, "StoreDefaultParameter",
		&Command{Opcode: OpStoreDefaultSystemParameter, Data: data, Address: address, Blocks: blocks})
}

// ReadParameter reads p from store
func (r *Reader) ReadParameter(ctx context.Context, store ParameterStore, p SystemParameter) ([]byte, error) {
	if store == Default {
		return r.RetrieveDefaultParameter(ctx, uint16(p), p.Blocks())
	}
	return r.ReadSystemParameter(ctx, uint16(p), p.Blocks())
}

// WriteParameter writes data to p in store
func (r *Reader) WriteParameter(ctx context.Context, store ParameterStore, p SystemParameter, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty value for %s", ErrInvalidParameter, p)
	}
	if store == Default {
		return r.StoreDefaultParameter(ctx, data, uint16(p), p.Blocks())
	}
	return r.WriteSystemParameter(ctx, data, uint16(p), p.Blocks())
}
