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
	"errors"
	"time"

	"github.com/ZaparooProject/go-stpv3"
)

// DetectionState is the presence state of a single tag
type DetectionState int

const (
	StateIdle DetectionState = iota
	StateTagDetected
	StateReading
	StatePostReadGrace
)

// String returns the state name
func (s DetectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTagDetected:
		return "detected"
	case StateReading:
		return "reading"
	case StatePostReadGrace:
		return "post-read grace"
	default:
		return "unknown"
	}
}

// TagState tracks one tag seen by the inventory
type TagState struct {
	LastSeenTime   time.Time
	ReadStartTime  time.Time
	RemovalTimer   *time.Timer
	Tag            *stpv3.Tag
	DetectionState DetectionState
	Present        bool
	// generation invalidates removal callbacks of timers that were
	// replaced after they had already fired
	generation uint64
}

// ErrNoTagInPoll indicates an inventory pass found nothing (not an error condition)
var ErrNoTagInPoll = errors.New("no tag detected in polling cycle")

// safeTimerStop stops a timer and drains its channel
func safeTimerStop(timer *time.Timer) {
	if timer != nil {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// TransitionToReading moves to reading state and suspends the removal timer
func (ts *TagState) TransitionToReading() {
	ts.DetectionState = StateReading
	ts.ReadStartTime = time.Now()
	ts.generation++
	safeTimerStop(ts.RemovalTimer)
	ts.RemovalTimer = nil
}

// TransitionToPostReadGrace moves to the post-read grace period, which
// uses half the normal removal timeout
func (ts *TagState) TransitionToPostReadGrace(timeout time.Duration, callback func(generation uint64)) {
	ts.DetectionState = StatePostReadGrace
	ts.arm(timeout/2, callback)
}

// TransitionToDetected moves to tag detected state with the normal removal timeout
func (ts *TagState) TransitionToDetected(timeout time.Duration, callback func(generation uint64)) {
	ts.DetectionState = StateTagDetected
	ts.LastSeenTime = time.Now()
	ts.arm(timeout, callback)
}

func (ts *TagState) arm(timeout time.Duration, callback func(generation uint64)) {
	safeTimerStop(ts.RemovalTimer)
	ts.generation++
	gen := ts.generation
	ts.RemovalTimer = time.AfterFunc(timeout, func() { callback(gen) })
}

// TransitionToIdle resets to idle state
func (ts *TagState) TransitionToIdle() {
	ts.DetectionState = StateIdle
	ts.Present = false
	ts.LastSeenTime = time.Time{}
	ts.ReadStartTime = time.Time{}
	ts.generation++
	safeTimerStop(ts.RemovalTimer)
	ts.RemovalTimer = nil
}

// CanStartRemovalTimer returns true if the state allows the removal timer to run
func (ts *TagState) CanStartRemovalTimer() bool {
	return ts.DetectionState == StateTagDetected || ts.DetectionState == StatePostReadGrace
}
