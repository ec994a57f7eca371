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

package hid

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type hidrawNode struct {
	path   string
	vidpid string
	name   string
}

// scanHidraw reads the uevent of every hidraw class entry under root
func scanHidraw(root string) ([]hidrawNode, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}

	nodes := make([]hidrawNode, 0, len(entries))
	for _, entry := range entries {
		vidpid, name, ok := readUevent(filepath.Join(root, entry.Name(), "device", "uevent"))
		if !ok {
			continue
		}
		nodes = append(nodes, hidrawNode{
			path:   filepath.Join("/dev", entry.Name()),
			vidpid: vidpid,
			name:   name,
		})
	}
	return nodes, nil
}

// readUevent extracts VID:PID from HID_ID=bus:vvvvvvvv:pppppppp
func readUevent(path string) (vidpid, name string, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", false
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), "=")
		if !found {
			continue
		}
		switch key {
		case "HID_ID":
			parts := strings.Split(value, ":")
			if len(parts) != 3 || len(parts[1]) < 4 || len(parts[2]) < 4 {
				continue
			}
			vid := parts[1][len(parts[1])-4:]
			pid := parts[2][len(parts[2])-4:]
			vidpid = strings.ToUpper(vid + ":" + pid)
		case "HID_NAME":
			name = value
		}
	}
	return vidpid, name, vidpid != ""
}
