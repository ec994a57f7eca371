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

package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	stpv3 "github.com/ZaparooProject/go-stpv3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	t.Parallel()

	permanent := errors.New("permanent")

	tests := []struct {
		name      string
		failures  int
		err       error
		max       int
		wantCalls int
		wantErr   error
	}{
		{name: "first attempt", failures: 0, max: 3, wantCalls: 1},
		{name: "succeeds after retries", failures: 2, max: 3, wantCalls: 3},
		{name: "exhausted", failures: 10, max: 2, wantCalls: 3, wantErr: stpv3.ErrCommunicationFailed},
		{name: "permanent error", err: permanent, max: 3, wantCalls: 1, wantErr: permanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			got, err := WithRetry(context.Background(), RetryConfig{MaxRetries: tt.max, Port: "test"},
				func() (int, bool, error) {
					calls++
					if tt.err != nil {
						return 0, false, tt.err
					}
					if calls <= tt.failures {
						return 0, true, nil
					}
					return 42, false, nil
				})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 42, got)
		})
	}
}

func TestWithRetryOnRetryCallback(t *testing.T) {
	t.Parallel()

	retries := 0
	_, err := WithRetry(context.Background(), RetryConfig{
		MaxRetries: 2,
		OnRetry: func() error {
			retries++
			return nil
		},
	}, func() (struct{}, bool, error) {
		return struct{}{}, true, nil
	})

	require.Error(t, err)
	assert.Equal(t, 2, retries)
}

func TestWithRetryContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithRetry(ctx, RetryConfig{MaxRetries: 3}, func() (int, bool, error) {
		return 0, true, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTimeoutRetry(t *testing.T) {
	t.Parallel()

	t.Run("ready", func(t *testing.T) {
		t.Parallel()
		calls := 0
		got, err := TimeoutRetry(context.Background(), time.Second, time.Millisecond, "test",
			func() (string, bool, error) {
				calls++
				return "ok", calls < 3, nil
			})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 3, calls)
	})

	t.Run("times out", func(t *testing.T) {
		t.Parallel()
		_, err := TimeoutRetry(context.Background(), 20*time.Millisecond, time.Millisecond, "test",
			func() (int, bool, error) { return 0, true, nil })
		require.Error(t, err)
		assert.True(t, stpv3.IsTimeout(err))
	})
}
