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
	"context"
	"encoding/binary"
	"io"
	"time"

	"github.com/ZaparooProject/go-stpv3/internal/frame"
	"github.com/pkg/errors"
)

// Bootloader wire bytes
const (
	SOH = 0x01
	ACK = 0x06
	NAK = 0x15
)

// flusher is implemented by ports that can discard stale input
type flusher interface {
	Flush() error
}

// Programmer uploads firmware images over a port
type Programmer struct {
	port   io.ReadWriter
	config Config
}

// New creates a Programmer on port
func New(port io.ReadWriter, opts ...Option) (*Programmer, error) {
	if port == nil {
		return nil, errors.New("bootload: port cannot be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Programmer{port: port, config: cfg}, nil
}

// EncodeRecord wraps a record in a bootloader frame
func EncodeRecord(rec []byte) []byte {
	buf := make([]byte, 0, len(rec)+5)
	buf = append(buf, SOH)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(rec)))
	buf = append(buf, rec...)
	buf = binary.BigEndian.AppendUint16(buf, frame.CalculateCRC(buf[1:]))
	return buf
}

// Program sends every record of img followed by the end record
func (p *Programmer) Program(ctx context.Context, img *Image) error {
	if img == nil || len(img.Records) == 0 {
		return errors.Wrap(ErrInvalidImage, "no records to program")
	}

	start := time.Now()
	total := len(img.Records)
	written := 0

	p.logInfo("starting firmware upload", "records", total, "bytes", img.Size())

	for i, rec := range img.Records {
		if err := p.sendRecord(ctx, i, rec); err != nil {
			p.logError("record rejected", "record", i, "error", err)
			return err
		}
		written += len(rec)
		p.reportProgress(Progress{
			Phase:        PhaseProgramming,
			Record:       i + 1,
			TotalRecords: total,
			BytesWritten: written,
			Percentage:   float64(i+1) / float64(total) * 100,
			ElapsedTime:  time.Since(start),
		})
	}

	p.reportProgress(Progress{
		Phase:        PhaseFinishing,
		Record:       total,
		TotalRecords: total,
		BytesWritten: written,
		Percentage:   100,
		ElapsedTime:  time.Since(start),
	})
	if err := p.sendRecord(ctx, total, nil); err != nil {
		return errors.Wrap(err, "finish upload")
	}

	p.reportProgress(Progress{
		Phase:        PhaseComplete,
		Record:       total,
		TotalRecords: total,
		BytesWritten: written,
		Percentage:   100,
		ElapsedTime:  time.Since(start),
	})
	p.logInfo("firmware upload complete", "elapsed", time.Since(start))
	return nil
}

func (p *Programmer) sendRecord(ctx context.Context, index int, rec []byte) error {
	data := EncodeRecord(rec)
	attempts := p.config.Retries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "upload cancelled")
		}

		if f, ok := p.port.(flusher); ok {
			_ = f.Flush()
		}
		if _, err := p.port.Write(data); err != nil {
			return errors.Wrapf(err, "write record %d", index)
		}

		lastErr = p.waitAck(ctx)
		if lastErr == nil {
			return nil
		}
		p.logDebug("record not acknowledged", "record", index, "attempt", attempt, "error", lastErr)
	}

	return &RecordError{Index: index, Attempts: attempts, Err: lastErr}
}

func (p *Programmer) waitAck(ctx context.Context) error {
	deadline := time.Now().Add(p.config.AckTimeout)
	buf := make([]byte, 1)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "upload cancelled")
		}

		n, err := p.port.Read(buf)
		if n == 1 {
			switch buf[0] {
			case ACK:
				return nil
			case NAK:
				return errors.New("record rejected (NAK)")
			default:
				// line noise between frames
				continue
			}
		}
		if err != nil && !isTimeout(err) {
			return errors.Wrap(err, "read acknowledgement")
		}
	}
	return ErrNoAck
}

// isTimeout reports whether err is a read timeout the port will recover from
func isTimeout(err error) bool {
	var nt interface{ Timeout() bool }
	if errors.As(err, &nt) {
		return nt.Timeout()
	}
	return false
}

func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

func (p *Programmer) logDebug(msg string, keysAndValues ...any) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (p *Programmer) logInfo(msg string, keysAndValues ...any) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}

func (p *Programmer) logError(msg string, keysAndValues ...any) {
	if p.config.Logger != nil {
		p.config.Logger.Error(msg, keysAndValues...)
	}
}
