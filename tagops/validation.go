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

package tagops

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrVerifyFailed is returned when written data does not read back
var ErrVerifyFailed = errors.New("write verification failed")

// ValidationConfig holds configuration for data validation and reliability
type ValidationConfig struct {
	// RetryDelay specifies delay between retry attempts
	RetryDelay time.Duration

	// ReadRetries specifies max number of read retries on validation failure
	ReadRetries int

	// WriteRetries specifies max number of write retries on verification failure
	WriteRetries int

	// EnableReadVerification requires two consecutive identical reads
	EnableReadVerification bool

	// EnableWriteVerification reads back every write
	EnableWriteVerification bool
}

// DefaultValidationConfig returns default validation configuration
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		EnableReadVerification:  true,
		ReadRetries:             3,
		EnableWriteVerification: true,
		WriteRetries:            3,
		RetryDelay:              50 * time.Millisecond,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// performValidatedRead reads until two consecutive reads agree
func performValidatedRead(
	ctx context.Context, config *ValidationConfig, readFunc func() ([]byte, error),
) ([]byte, error) {
	data, err := readFunc()
	if !config.EnableReadVerification || err != nil {
		return data, err
	}

	var lastErr error
	lastData := data
	for retry := 0; retry < config.ReadRetries; retry++ {
		if retry > 0 {
			if err := sleepContext(ctx, config.RetryDelay); err != nil {
				return nil, err
			}
		}

		verifyData, err := readFunc()
		if err != nil {
			lastErr = err
			lastData = nil
			continue
		}
		if lastData != nil && bytes.Equal(lastData, verifyData) {
			return verifyData, nil
		}
		lastData = verifyData
	}

	if lastErr != nil {
		return nil, errors.Wrapf(lastErr, "read validation failed after %d retries", config.ReadRetries)
	}
	return nil, errors.Errorf("read validation failed: inconsistent data after %d retries", config.ReadRetries)
}

// performValidatedWrite writes and, when enabled, reads back until the
// data matches or the retries run out
func performValidatedWrite(
	ctx context.Context,
	data []byte,
	config *ValidationConfig,
	writeFunc func() error,
	readFunc func() ([]byte, error),
) error {
	var lastErr error

	for retry := 0; retry <= config.WriteRetries; retry++ {
		if retry > 0 {
			if err := sleepContext(ctx, config.RetryDelay); err != nil {
				return err
			}
		}

		if err := writeFunc(); err != nil {
			lastErr = err
			continue
		}
		if !config.EnableWriteVerification {
			return nil
		}

		readData, err := readFunc()
		if err != nil {
			lastErr = err
			continue
		}
		if bytes.Equal(data, readData) {
			return nil
		}
		lastErr = ErrVerifyFailed
	}

	return errors.Wrapf(lastErr, "write validation failed after %d retries", config.WriteRetries)
}
