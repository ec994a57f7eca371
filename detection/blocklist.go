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

package detection

import (
	"path/filepath"
	"slices"
	"strings"
)

// USB devices that are never probed. Opening them at 38400 baud resets the
// board or drops it into a bootloader.
var defaultBlocklist = []string{
	"2341:0043", // Arduino Uno
	"2341:0042", // Arduino Mega 2560
	"2341:8036", // Arduino Leonardo
	"0483:DF11", // STM32 DFU
	"1FC9:000C", // NXP LPC ISP
}

// DefaultBlocklist returns the VID:PID pairs detection skips unless the
// caller replaces Options.Blocklist
func DefaultBlocklist() []string {
	return slices.Clone(defaultBlocklist)
}

// IsBlocked reports whether vidpid, written VVVV:PPPP in any case, is on
// blocklist
func IsBlocked(vidpid string, blocklist []string) bool {
	key := normalizeVIDPID(vidpid)
	if key == "" {
		return false
	}
	return slices.ContainsFunc(blocklist, func(b string) bool {
		return normalizeVIDPID(b) == key
	})
}

func normalizeVIDPID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsPathIgnored reports whether devicePath names one of ignorePaths. Paths
// are cleaned and compared without case, so COM3 matches com3.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	key := normalizedPath(devicePath)
	for _, p := range ignorePaths {
		if p != "" && normalizedPath(p) == key {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
