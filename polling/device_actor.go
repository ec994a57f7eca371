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

// DeviceCallbacks defines callback functions for device events
type DeviceCallbacks struct {
	// OnTagsSeen receives every non-empty inventory pass
	OnTagsSeen func(tags []*stpv3.Tag) error
	// OnPollError receives inventory errors other than timeouts
	OnPollError func(err error)
}

// DeviceMetrics tracks operational metrics for DeviceActor
type DeviceMetrics struct {
	PollCycles      int64         // Total number of polling cycles
	PollErrors      int64         // Number of polling errors
	TagsSeen        int64         // Number of tag sightings
	CallbackErrors  int64         // Number of callback errors
	LastPollLatency time.Duration // Duration of last polling operation
}

// DeviceActor polls a reader on its own goroutine with an adaptive
// interval: it slows down to Config.IdleInterval once no tag has been
// seen for Config.IdleAfter.
type DeviceActor struct {
	reader    *stpv3.Reader
	config    *Config
	callbacks DeviceCallbacks
	stopChan  chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	started   atomic.Bool
	// Atomic counters for metrics
	pollCycles      int64
	tagsSeen        int64
	pollErrors      int64
	callbackErrors  int64
	lastPollLatency int64 // in nanoseconds
	// Adaptive polling state
	currentInterval  int64 // Current polling interval in nanoseconds
	lastTagDetection int64 // Timestamp of last tag sighting
}

// NewDeviceActor creates a new device actor
func NewDeviceActor(reader *stpv3.Reader, config *Config, callbacks DeviceCallbacks) *DeviceActor {
	if config == nil {
		config = DefaultConfig()
	}
	return &DeviceActor{
		reader:           reader,
		config:           config,
		callbacks:        callbacks,
		stopChan:         make(chan struct{}),
		done:             make(chan struct{}),
		currentInterval:  config.PollInterval.Nanoseconds(),
		lastTagDetection: time.Now().UnixNano(),
	}
}

// Start launches the polling goroutine. It runs until Stop is called or
// ctx is done.
func (da *DeviceActor) Start(ctx context.Context) error {
	if !da.started.CompareAndSwap(false, true) {
		return errors.New("device actor already started")
	}
	go da.pollLoop(ctx)
	return nil
}

func (da *DeviceActor) pollLoop(ctx context.Context) {
	defer close(da.done)

	ticker := time.NewTicker(da.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			da.pollOnce(ctx)
			da.adjustPollInterval()
			ticker.Reset(time.Duration(atomic.LoadInt64(&da.currentInterval)))
		case <-da.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (da *DeviceActor) pollOnce(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, da.config.PollTimeout)
	defer cancel()

	start := time.Now()
	tags, err := da.reader.SelectTags(pollCtx, da.config.Filter)
	atomic.AddInt64(&da.pollCycles, 1)
	atomic.StoreInt64(&da.lastPollLatency, time.Since(start).Nanoseconds())

	if err != nil {
		atomic.AddInt64(&da.pollErrors, 1)
		if da.callbacks.OnPollError != nil && ctx.Err() == nil && !stpv3.IsTimeout(err) {
			da.callbacks.OnPollError(err)
		}
		return
	}
	if len(tags) == 0 {
		return
	}

	atomic.AddInt64(&da.tagsSeen, int64(len(tags)))
	atomic.StoreInt64(&da.lastTagDetection, start.UnixNano())
	if da.callbacks.OnTagsSeen != nil {
		if cbErr := da.callbacks.OnTagsSeen(tags); cbErr != nil {
			atomic.AddInt64(&da.callbackErrors, 1)
		}
	}
}

func (da *DeviceActor) adjustPollInterval() {
	lastDetection := atomic.LoadInt64(&da.lastTagDetection)
	sinceLastTag := time.Duration(time.Now().UnixNano() - lastDetection)

	interval := da.config.PollInterval
	if sinceLastTag > da.config.IdleAfter && da.config.IdleInterval > interval {
		interval = da.config.IdleInterval
	}
	atomic.StoreInt64(&da.currentInterval, interval.Nanoseconds())
}

// Stop ends the polling goroutine and waits for it to exit
func (da *DeviceActor) Stop(ctx context.Context) error {
	da.stopOnce.Do(func() { close(da.stopChan) })
	if !da.started.Load() {
		return nil
	}
	select {
	case <-da.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetMetrics returns current operational metrics
func (da *DeviceActor) GetMetrics() DeviceMetrics {
	return DeviceMetrics{
		PollCycles:      atomic.LoadInt64(&da.pollCycles),
		PollErrors:      atomic.LoadInt64(&da.pollErrors),
		TagsSeen:        atomic.LoadInt64(&da.tagsSeen),
		CallbackErrors:  atomic.LoadInt64(&da.callbackErrors),
		LastPollLatency: time.Duration(atomic.LoadInt64(&da.lastPollLatency)),
	}
}

// GetCurrentPollInterval returns the current adaptive polling interval
func (da *DeviceActor) GetCurrentPollInterval() time.Duration {
	return time.Duration(atomic.LoadInt64(&da.currentInterval))
}
