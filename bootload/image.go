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

package bootload

import (
	"bufio"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// MaxRecordSize is the largest record the bootloader accepts
const MaxRecordSize = 1024

// Image is a parsed firmware image
type Image struct {
	Records [][]byte
}

// Size returns the total number of record bytes
func (img *Image) Size() int {
	n := 0
	for _, rec := range img.Records {
		n += len(rec)
	}
	return n
}

// ParseFile parses a .shf image from path
func ParseFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open firmware image")
	}
	defer func() { _ = f.Close() }()

	return ParseImage(f)
}

// ParseImage parses a .shf image from r
func ParseImage(r io.Reader) (*Image, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 4*MaxRecordSize)

	img := &Image{}
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		rec, err := hex.DecodeString(line)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidImage, "line %d: %v", lineNum, err)
		}
		if len(rec) > MaxRecordSize {
			return nil, errors.Wrapf(ErrInvalidImage, "line %d: record of %d bytes exceeds %d",
				lineNum, len(rec), MaxRecordSize)
		}
		img.Records = append(img.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read firmware image")
	}

	if len(img.Records) == 0 {
		return nil, errors.Wrap(ErrInvalidImage, "no records found")
	}
	return img, nil
}
