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

// Package detection finds STPv3 readers attached to the host.
//
// Transport-specific detectors register themselves from their package
// init, so importing a detector package is enough to enable it:
//
//	import (
//	    "github.com/ZaparooProject/go-stpv3/detection"
//	    _ "github.com/ZaparooProject/go-stpv3/detection/uart"
//	)
//
//	devices, err := detection.DetectAll(nil)
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Detection errors
var (
	ErrUnsupportedPlatform = errors.New("detection not supported on this platform")
	ErrNoDevicesFound      = errors.New("no devices found")
	ErrDetectionTimeout    = errors.New("detection timed out")
)

// Mode controls how intrusive detection may be
type Mode int

const (
	// Passive only inspects system metadata such as USB descriptors
	Passive Mode = iota
	// Safe may send read-only commands to confirm a candidate
	Safe
	// Full may probe every candidate, including unidentified ports
	Full
)

func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Safe:
		return "safe"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Confidence expresses how sure a detector is that it found a reader
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Confidence(%d)", int(c))
	}
}

// DeviceInfo describes a detected reader
type DeviceInfo struct {
	Metadata   map[string]string
	Transport  string
	Path       string
	Name       string
	Confidence Confidence
}

// Options configures a detection run
type Options struct {
	// Transports limits detection to the named transports; empty means all
	Transports []string
	// IgnorePaths lists device paths that must not be opened
	IgnorePaths []string
	// Blocklist lists USB VID:PID pairs that must not be probed
	Blocklist []string
	Timeout   time.Duration
	Mode      Mode
}

// DefaultOptions returns options for a passive run with a 5s timeout
func DefaultOptions() Options {
	return Options{
		Mode:      Passive,
		Timeout:   5 * time.Second,
		Blocklist: DefaultBlocklist(),
	}
}

// Detector finds readers on one kind of transport
type Detector interface {
	// Transport returns the transport name, such as "uart" or "tcp"
	Transport() string

	// Detect returns the readers it found
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Detector{}
)

// RegisterDetector adds d to the registry, replacing a detector registered
// for the same transport
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Transport()] = d
}

// Detectors returns the registered detectors sorted by transport name
func Detectors() []Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]Detector, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Transport() < out[j].Transport() })
	return out
}

// DetectAll runs every registered detector
func DetectAll(opts *Options) ([]DeviceInfo, error) {
	return DetectAllContext(context.Background(), opts)
}

// DetectAllContext runs every registered detector concurrently and returns
// the found devices ordered by confidence. Detector errors are ignored
// unless no detector found anything.
func DetectAllContext(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		def := DefaultOptions()
		opts = &def
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	detectors := selectDetectors(opts.Transports)
	if len(detectors) == 0 {
		return nil, ErrNoDevicesFound
	}

	type result struct {
		err     error
		devices []DeviceInfo
	}
	results := make(chan result, len(detectors))

	var wg sync.WaitGroup
	for _, d := range detectors {
		wg.Add(1)
		go func(d Detector) {
			defer wg.Done()
			devices, err := d.Detect(ctx, opts)
			results <- result{devices: devices, err: err}
		}(d)
	}
	wg.Wait()
	close(results)

	var (
		all  []DeviceInfo
		errs []error
	)
	for r := range results {
		if r.err != nil && !errors.Is(r.err, ErrNoDevicesFound) && !errors.Is(r.err, ErrUnsupportedPlatform) {
			errs = append(errs, r.err)
		}
		for _, dev := range r.devices {
			if IsPathIgnored(dev.Path, opts.IgnorePaths) {
				continue
			}
			all = append(all, dev)
		}
	}

	if len(all) == 0 {
		if ctx.Err() != nil {
			return nil, ErrDetectionTimeout
		}
		if len(errs) > 0 {
			return nil, fmt.Errorf("%w: %w", ErrNoDevicesFound, errors.Join(errs...))
		}
		return nil, ErrNoDevicesFound
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Confidence != all[j].Confidence {
			return all[i].Confidence > all[j].Confidence
		}
		return all[i].Path < all[j].Path
	})
	return all, nil
}

func selectDetectors(transports []string) []Detector {
	all := Detectors()
	if len(transports) == 0 {
		return all
	}
	want := make(map[string]bool, len(transports))
	for _, t := range transports {
		want[t] = true
	}
	out := all[:0:0]
	for _, d := range all {
		if want[d.Transport()] {
			out = append(out, d)
		}
	}
	return out
}
