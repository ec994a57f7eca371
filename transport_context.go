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
	"fmt"
)

// TransportContext is a Transport whose reads can be abandoned through a
// context. Backends that can interrupt a blocking read natively (TCP)
// implement it directly; others are adapted by AsTransportContext.
type TransportContext interface {
	Transport

	// ReadContext reads like Read but returns early once ctx is done
	ReadContext(ctx context.Context, p []byte) (int, error)
}

// transportContextAdapter wraps a Transport to provide context support
type transportContextAdapter struct {
	Transport
}

// ReadContext checks ctx around a read bounded by the transport timeout.
// A read already in progress is never abandoned, since the bytes it
// returns belong to the stream and must not be lost.
func (t *transportContextAdapter) ReadContext(ctx context.Context, p []byte) (int, error) {
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("context cancelled before read: %w", ctx.Err())
	default:
	}

	n, err := t.Read(p)
	if n == 0 && err != nil && ctx.Err() != nil {
		return 0, fmt.Errorf("context cancelled during read: %w", ctx.Err())
	}
	return n, err //nolint:wrapcheck // timeout errors pass through unchanged
}

// AsTransportContext converts a Transport to TransportContext
func AsTransportContext(t Transport) TransportContext {
	if tc, ok := t.(TransportContext); ok {
		return tc
	}
	return &transportContextAdapter{Transport: t}
}
