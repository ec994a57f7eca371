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
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-stpv3"
)

// Scanner provides a high-level interface for continuous tag scanning
// with coordinated write operations. It wraps a Monitor and runs it in
// the background.
type Scanner struct {
	reader        *stpv3.Reader
	config        *Config
	monitor       *Monitor
	pendingWrite  atomic.Pointer[WriteRequest]
	cancelFunc    context.CancelFunc
	done          chan struct{}
	OnTagDetected func(*stpv3.Tag) error
	OnTagRemoved  func(*stpv3.Tag)
	OnError       func(error)
	stopMutex     sync.Mutex
	running       atomic.Bool
}

// WriteOperation is run against a detected tag by WriteToNextTag
type WriteOperation func(reader *stpv3.Reader, tag *stpv3.Tag) error

// WriteRequest represents a pending write operation
type WriteRequest struct {
	operation WriteOperation
	result    chan error
	ctx       context.Context
	createdAt time.Time
}

// Scanner-specific errors
var (
	ErrWriteAlreadyPending = errors.New("write operation already pending")
	ErrScannerNotRunning   = errors.New("scanner is not running")
	ErrScannerRunning      = errors.New("scanner is already running")
	ErrScannerStopped      = errors.New("scanner was stopped")
)

// NewScanner creates a new scanner for the given reader
func NewScanner(reader *stpv3.Reader, config *Config) (*Scanner, error) {
	if reader == nil {
		return nil, errors.New("reader cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}

	s := &Scanner{
		reader: reader,
		config: config,
	}
	s.monitor = NewMonitor(reader, config)
	return s, nil
}

// Start begins continuous scanning without blocking
func (s *Scanner) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrScannerRunning
	}

	scanCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.stopMutex.Lock()
	s.cancelFunc = cancel
	s.done = done
	s.stopMutex.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.failPendingWrite(ErrScannerStopped)
			s.running.Store(false)
			s.stopMutex.Lock()
			s.cancelFunc = nil
			s.stopMutex.Unlock()
		}()

		if err := s.startScanning(scanCtx); err != nil && !errors.Is(err, context.Canceled) {
			stpv3.Logger().WithError(err).Warn("scanner stopped")
			if s.OnError != nil {
				s.OnError(err)
			}
		}
	}()

	return nil
}

// Stop stops the scanner and blocks until it has fully stopped. The
// reader stays open.
func (s *Scanner) Stop() error {
	s.stopMutex.Lock()
	cancelFunc := s.cancelFunc
	done := s.done
	s.stopMutex.Unlock()

	if cancelFunc != nil {
		cancelFunc()
	}
	if done != nil {
		<-done
	}
	return nil
}

// IsRunning returns whether the scanner is currently active
func (s *Scanner) IsRunning() bool {
	return s.running.Load()
}

// HasPendingWrite returns true if a write operation is waiting
func (s *Scanner) HasPendingWrite() bool {
	return s.pendingWrite.Load() != nil
}

// Present returns the tags currently in the field
func (s *Scanner) Present() []*stpv3.Tag {
	return s.monitor.Present()
}
