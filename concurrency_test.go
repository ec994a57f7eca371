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
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestLockReleasedAfterCancellation verifies that a request abandoned
// through its context releases the session lock
func TestLockReleasedAfterCancellation(t *testing.T) {
	t.Parallel()

	mock := NewBlockingMockTransport()
	_ = mock.SetTimeout(20 * time.Millisecond)
	defer func() { _ = mock.Close() }()

	reader, err := New(mock, WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- reader.LoadDefaults(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context cancellation, got: %v", err)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("request did not respond to context cancellation")
	}

	// The next request must be able to take the lock.
	second, cancel2 := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel2()
	if err := reader.LoadDefaults(second); err == nil {
		t.Error("expected timeout from blocked transport, got nil")
	}
	if got := mock.Written(); got != 2 {
		t.Errorf("frames written = %d, want 2", got)
	}
}

// TestConcurrentRequestsComplete verifies that many goroutines sharing one
// reader neither deadlock nor leak goroutines when their contexts expire
func TestConcurrentRequestsComplete(t *testing.T) {
	t.Parallel()

	mock := NewBlockingMockTransport()
	_ = mock.SetTimeout(10 * time.Millisecond)
	defer func() { _ = mock.Close() }()

	reader, err := New(mock, WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
			defer cancel()

			err := reader.LoadDefaults(ctx)
			if err == nil {
				t.Error("expected an error from a silent transport")
				return
			}
			if !errors.Is(err, context.DeadlineExceeded) && !IsTimeout(err) {
				t.Errorf("unexpected error type: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deadlock detected during concurrent access")
	}
}

// TestCloseDuringBlockedRead verifies that closing the transport ends a
// request stuck waiting for an answer
func TestCloseDuringBlockedRead(t *testing.T) {
	t.Parallel()

	mock := NewBlockingMockTransport()
	reader, err := New(mock, WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- reader.LoadDefaults(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	_ = mock.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrTransportClosed) {
			t.Errorf("expected ErrTransportClosed, got: %v", err)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("request did not end after the transport was closed")
	}
}
