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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-stpv3/detection"
)

// TransportFactory creates a transport for a device path
type TransportFactory func(path string) (Transport, error)

// TransportFromDeviceFactory creates a transport for a detected device
type TransportFromDeviceFactory func(device detection.DeviceInfo) (Transport, error)

// ConnectOption is a functional option for ConnectReader
type ConnectOption func(*connectConfig) error

type connectConfig struct {
	transportFactory       TransportFactory
	transportDeviceFactory TransportFromDeviceFactory
	retryConfig            *RetryConfig
	detectOptions          *detection.Options
	readerOptions          []Option
	timeout                time.Duration
	autoDetect             bool
	transportRetry         bool
}

// WithAutoDetection connects to the best detected reader instead of a
// fixed path
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithDetectionOptions overrides the options used by auto-detection
func WithDetectionOptions(opts detection.Options) ConnectOption {
	return func(c *connectConfig) error {
		c.detectOptions = &opts
		return nil
	}
}

// WithReaderOptions adds reader-level options
func WithReaderOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.readerOptions = append(c.readerOptions, opts...)
		return nil
	}
}

// WithConnectTimeout bounds how long ConnectReader waits for the reader
// to identify itself
func WithConnectTimeout(timeout time.Duration) ConnectOption {
	return func(c *connectConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: connect timeout must be positive", ErrInvalidParameter)
		}
		c.timeout = timeout
		return nil
	}
}

// WithTransportRetry wraps the transport so failed writes are retried.
// A nil config uses DefaultRetryConfig.
func WithTransportRetry(config *RetryConfig) ConnectOption {
	return func(c *connectConfig) error {
		c.transportRetry = true
		c.retryConfig = config
		return nil
	}
}

// WithTransportFactory sets the transport factory function
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithTransportFromDeviceFactory sets the transport from device factory function
func WithTransportFromDeviceFactory(factory TransportFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportDeviceFactory = factory
		return nil
	}
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{
		timeout: 10 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}

	return config, nil
}

// ConnectReader opens a transport, creates a Reader on it and checks that
// the reader answers by reading its firmware version. The transport is
// closed again when any step fails.
//
// Example usage:
//
//	// Connect to a specific port
//	reader, err := stpv3.ConnectReader(ctx, "/dev/ttyUSB0",
//	    stpv3.WithTransportFactory(transport.Open))
//
//	// Auto-detect
//	reader, err := stpv3.ConnectReader(ctx, "",
//	    stpv3.WithAutoDetection(),
//	    stpv3.WithTransportFromDeviceFactory(transport.FromDevice))
func ConnectReader(ctx context.Context, path string, opts ...ConnectOption) (*Reader, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, err
	}

	t, err := createTransport(ctx, path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	if config.transportRetry {
		rc := config.retryConfig
		if rc == nil {
			rc = DefaultRetryConfig()
		}
		t = NewTransportWithRetry(t, rc)
	}

	reader, err := setupReader(ctx, t, config)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	return reader, nil
}

func createTransport(ctx context.Context, path string, config *connectConfig) (Transport, error) {
	if config.autoDetect || path == "" {
		return createAutoDetectedTransport(ctx, config)
	}
	return createManualTransport(path, config.transportFactory)
}

func setupReader(ctx context.Context, t Transport, config *connectConfig) (*Reader, error) {
	reader, err := New(t, config.readerOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, config.timeout)
	defer cancel()

	version, err := reader.FirmwareVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to identify reader: %w", err)
	}
	if version == "" {
		return nil, fmt.Errorf("failed to identify reader: %w", ErrDeviceNotResponding)
	}
	debugf("connected to reader with firmware %s", version)
	return reader, nil
}

func createManualTransport(path string, factory TransportFactory) (Transport, error) {
	if factory == nil {
		return nil, errors.New("transport factory not provided")
	}

	t, err := factory(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for path %s: %w", path, err)
	}

	return t, nil
}

func createAutoDetectedTransport(ctx context.Context, config *connectConfig) (Transport, error) {
	if config.transportDeviceFactory == nil {
		return nil, errors.New("transport device factory not provided")
	}

	opts := detection.DefaultOptions()
	opts.Mode = detection.Safe
	if config.detectOptions != nil {
		opts = *config.detectOptions
	}

	devices, err := detection.DetectAllContext(ctx, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect devices: %w", err)
	}

	// Detection sorts by confidence, so the first entry is the best guess.
	var lastErr error
	for _, device := range devices {
		t, err := config.transportDeviceFactory(device)
		if err == nil {
			return t, nil
		}
		warnf("skipping detected %s reader %s: %v", device.Transport, device.Path, err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = detection.ErrNoDevicesFound
	}
	return nil, lastErr
}
