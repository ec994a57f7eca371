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

package polling

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-stpv3"
)

// WriteToNextTag waits for the next newly detected tag and runs operation
// against it. It blocks until the operation completes, times out or is
// cancelled.
func (s *Scanner) WriteToNextTag(ctx context.Context, timeout time.Duration, operation WriteOperation) error {
	if !s.running.Load() {
		return ErrScannerNotRunning
	}
	if operation == nil {
		return fmt.Errorf("%w: nil write operation", stpv3.ErrInvalidParameter)
	}

	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan error, 1)
	req := &WriteRequest{
		operation: operation,
		result:    result,
		ctx:       writeCtx,
		createdAt: time.Now(),
	}

	if !s.pendingWrite.CompareAndSwap(nil, req) {
		return ErrWriteAlreadyPending
	}
	defer s.pendingWrite.CompareAndSwap(req, nil)

	select {
	case err := <-result:
		return err
	case <-writeCtx.Done():
		return writeCtx.Err()
	}
}

// WriteToCurrentTag runs operation against a tag that is already in the
// field
func (s *Scanner) WriteToCurrentTag(tag *stpv3.Tag, operation WriteOperation) error {
	if !s.running.Load() {
		return ErrScannerNotRunning
	}
	return s.monitor.WriteToTag(tag, operation)
}

// processPendingWrites runs a queued write against a newly detected tag
func (s *Scanner) processPendingWrites(tag *stpv3.Tag) {
	req := s.pendingWrite.Swap(nil)
	if req == nil {
		return
	}

	select {
	case <-req.ctx.Done():
		s.sendWriteResult(req, req.ctx.Err())
		return
	default:
	}

	stpv3.Logger().WithField("tag", tag.String()).
		WithField("waited", time.Since(req.createdAt)).
		Debug("running pending write")
	s.sendWriteResult(req, req.operation(s.reader, tag))
}

func (s *Scanner) failPendingWrite(err error) {
	if req := s.pendingWrite.Swap(nil); req != nil {
		s.sendWriteResult(req, err)
	}
}

func (*Scanner) sendWriteResult(req *WriteRequest, err error) {
	select {
	case req.result <- err:
	default:
	}
}
