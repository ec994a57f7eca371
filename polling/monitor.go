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
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ZaparooProject/go-stpv3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrTagNotPresent is returned by WriteToTag for a tag the monitor does
// not currently see
var ErrTagNotPresent = errors.New("tag not present")

// Monitor runs repeated inventories and tracks which tags are in the
// field. A tag is reported once when it first appears and once when it
// has not been seen for Config.TagRemovalTimeout.
//
// Callbacks must be set before Start. OnTagRemoved may be called from a
// timer goroutine.
type Monitor struct {
	reader        *stpv3.Reader
	config        *Config
	OnTagDetected func(tag *stpv3.Tag) error
	OnTagRemoved  func(tag *stpv3.Tag)
	states        map[string]*TagState
	log           *logrus.Entry
	session       uuid.UUID
	mu            sync.Mutex
}

// NewMonitor creates a new tag monitor
func NewMonitor(reader *stpv3.Reader, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Monitor{
		reader: reader,
		config: config,
		states: make(map[string]*TagState),
	}
}

// Start runs the monitor until ctx is done. Each call starts a new
// session with its own id.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	m.session = uuid.New()
	m.log = stpv3.Logger().WithField("session", m.session.String())
	m.mu.Unlock()

	m.log.Debug("tag monitor started")
	err := m.continuousPolling(ctx)
	m.log.WithError(err).Debug("tag monitor stopped")
	return err
}

// Session returns the id of the current or last monitoring session
func (m *Monitor) Session() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// GetState returns a copy of the state of a tag, if it is tracked
func (m *Monitor) GetState(tag *stpv3.Tag) (TagState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[tagKey(tag)]
	if !ok {
		return TagState{}, false
	}
	return *st, true
}

// Present returns the tags currently in the field, ordered by TID
func (m *Monitor) Present() []*stpv3.Tag {
	m.mu.Lock()
	defer m.mu.Unlock()

	tags := make([]*stpv3.Tag, 0, len(m.states))
	for _, st := range m.states {
		if st.Present {
			tags = append(tags, st.Tag)
		}
	}
	sort.Slice(tags, func(i, j int) bool {
		return tags[i].TIDHex() < tags[j].TIDHex()
	})
	return tags
}

// GetReader returns the underlying reader
func (m *Monitor) GetReader() *stpv3.Reader {
	return m.reader
}

// Close stops every removal timer and closes the reader
func (m *Monitor) Close() error {
	m.mu.Lock()
	for key, st := range m.states {
		st.TransitionToIdle()
		delete(m.states, key)
	}
	m.mu.Unlock()

	if err := m.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}
	return nil
}

func (m *Monitor) continuousPolling(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tags, err := m.performSinglePoll(ctx)
		switch {
		case err == nil:
			m.processPollingResults(tags)
		case !errors.Is(err, ErrNoTagInPoll):
			m.handlePollingError(ctx, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.PollInterval):
		}
	}
}

// performSinglePoll runs one finite inventory
func (m *Monitor) performSinglePoll(ctx context.Context) ([]*stpv3.Tag, error) {
	pollCtx, cancel := context.WithTimeout(ctx, m.config.PollTimeout)
	defer cancel()

	tags, err := m.reader.SelectTags(pollCtx, m.config.Filter)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrNoTagInPoll
		}
		return nil, fmt.Errorf("inventory failed: %w", err)
	}
	if len(tags) == 0 {
		return nil, ErrNoTagInPoll
	}
	return tags, nil
}

// handlePollingError decides whether an error means the tags are gone.
// Timeouts leave removal to the timers; anything else clears the field.
func (m *Monitor) handlePollingError(ctx context.Context, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return
	}
	if stpv3.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		m.log.WithError(err).Debug("inventory timed out")
		return
	}

	m.log.WithError(err).Warn("inventory failed, clearing tag state")
	m.mu.Lock()
	var removed []*stpv3.Tag
	for key, st := range m.states {
		if st.Present {
			removed = append(removed, st.Tag)
		}
		st.TransitionToIdle()
		delete(m.states, key)
	}
	m.mu.Unlock()

	for _, tag := range removed {
		m.notifyRemoved(tag)
	}
}

func (m *Monitor) processPollingResults(tags []*stpv3.Tag) {
	for _, tag := range tags {
		if m.updateTagState(tag) {
			m.testAndRecordTag(tag)
		}
	}
}

// updateTagState records a sighting and reports whether the tag is new
func (m *Monitor) updateTagState(tag *stpv3.Tag) bool {
	key := tagKey(tag)

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[key]
	if ok && st.Present {
		if st.DetectionState != StateReading {
			st.TransitionToDetected(m.config.TagRemovalTimeout, m.removalCallback(key))
		}
		return false
	}

	st = &TagState{Tag: tag, Present: true}
	m.states[key] = st
	st.TransitionToDetected(m.config.TagRemovalTimeout, m.removalCallback(key))
	return true
}

// testAndRecordTag runs the detection callback with the removal timer
// suspended so long reads do not count as absence
func (m *Monitor) testAndRecordTag(tag *stpv3.Tag) {
	if !m.beginRead(tag) {
		return
	}
	if m.OnTagDetected != nil {
		if err := m.OnTagDetected(tag); err != nil {
			m.log.WithError(err).WithField("tag", tag.String()).Warn("tag detected callback failed")
		}
	}
	m.endRead(tag)
}

// WriteToTag runs operation against a tag the monitor currently sees.
// Removal detection is paused while the operation runs.
func (m *Monitor) WriteToTag(tag *stpv3.Tag, operation func(*stpv3.Reader, *stpv3.Tag) error) error {
	if tag == nil || operation == nil {
		return fmt.Errorf("%w: nil tag or operation", stpv3.ErrInvalidParameter)
	}
	if !m.beginRead(tag) {
		return ErrTagNotPresent
	}
	defer m.endRead(tag)

	return operation(m.reader, tag)
}

func (m *Monitor) beginRead(tag *stpv3.Tag) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[tagKey(tag)]
	if !ok || !st.Present {
		return false
	}
	st.TransitionToReading()
	return true
}

func (m *Monitor) endRead(tag *stpv3.Tag) {
	key := tagKey(tag)

	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.states[key]; ok && st.DetectionState == StateReading {
		st.TransitionToPostReadGrace(m.config.TagRemovalTimeout, m.removalCallback(key))
	}
}

// removalCallback returns the timer callback for a tag. Callbacks from
// superseded timers are ignored.
func (m *Monitor) removalCallback(key string) func(generation uint64) {
	return func(generation uint64) {
		m.mu.Lock()
		st, ok := m.states[key]
		if !ok || st.generation != generation || !st.CanStartRemovalTimer() {
			m.mu.Unlock()
			return
		}
		tag := st.Tag
		st.TransitionToIdle()
		delete(m.states, key)
		m.mu.Unlock()

		m.notifyRemoved(tag)
	}
}

func (m *Monitor) notifyRemoved(tag *stpv3.Tag) {
	if m.OnTagRemoved != nil {
		m.OnTagRemoved(tag)
	}
}

func tagKey(tag *stpv3.Tag) string {
	return tag.TIDHex()
}
