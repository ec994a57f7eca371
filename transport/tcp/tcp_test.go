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

package tcp

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	stpv3 "github.com/ZaparooProject/go-stpv3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startReader accepts one connection and hands it to the test
func startReader(t *testing.T) (string, <-chan net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	conns := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(conns)
			return
		}
		conns <- conn
	}()
	return ln.Addr().String(), conns
}

func accept(t *testing.T, conns <-chan net.Conn) net.Conn {
	t.Helper()
	select {
	case conn, ok := <-conns:
		require.True(t, ok, "listener closed")
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func TestNewTransportAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "192.168.1.50", want: "192.168.1.50:2000"},
		{in: "192.168.1.50:4000", want: "192.168.1.50:4000"},
		{in: "reader.local", want: "reader.local:2000"},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			tr, err := newTransport(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, stpv3.ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.Addr())
			assert.False(t, tr.IsConnected())
			assert.Equal(t, stpv3.TransportTCP, tr.Type())
		})
	}
}

func TestReadWrite(t *testing.T) {
	t.Parallel()

	addr, conns := startReader(t)
	tr, err := New(addr)
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()
	server := accept(t, conns)

	n, err := tr.Write([]byte{0x02, 0x00, 0x08})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got := make([]byte, 3)
	_, err = io.ReadFull(server, got)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x00, 0x08}, got)

	_, err = server.Write([]byte{0xAA, 0xBB})
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err = tr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, buf[:n])
}

func TestReadTimeout(t *testing.T) {
	t.Parallel()

	addr, conns := startReader(t)
	tr, err := New(addr, WithTimeout(30*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()
	accept(t, conns)

	start := time.Now()
	_, err = tr.Read(make([]byte, 8))
	require.Error(t, err)
	assert.True(t, stpv3.IsTimeout(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestReadContextDeadline(t *testing.T) {
	t.Parallel()

	addr, conns := startReader(t)
	tr, err := New(addr, WithTimeout(5*time.Second))
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()
	accept(t, conns)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = tr.ReadContext(ctx, make([]byte, 8))
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFlush(t *testing.T) {
	t.Parallel()

	addr, conns := startReader(t)
	tr, err := New(addr, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()
	server := accept(t, conns)

	_, err = server.Write([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, tr.Flush())
	_, err = tr.Read(make([]byte, 8))
	assert.True(t, stpv3.IsTimeout(err))
}

func TestFlushStreamingReader(t *testing.T) {
	t.Parallel()

	addr, conns := startReader(t)
	tr, err := New(addr, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()
	server := accept(t, conns)

	done := make(chan struct{})
	defer close(done)
	go func() {
		chunk := make([]byte, 64)
		for {
			select {
			case <-done:
				return
			default:
			}
			if _, err := server.Write(chunk); err != nil {
				return
			}
		}
	}()
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	require.NoError(t, tr.Flush())
	assert.Less(t, time.Since(start), time.Second)
}

func TestWake(t *testing.T) {
	t.Parallel()

	udp, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = udp.Close() }()
	wakePort := udp.LocalAddr().(*net.UDPAddr).Port

	addr, conns := startReader(t)
	mac := net.HardwareAddr{0x00, 0x40, 0x9D, 0x12, 0x34, 0x56}

	tr, err := New(addr, WithWake(mac), WithWakePort(wakePort), WithWakeDelay(time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()
	accept(t, conns)

	require.NoError(t, udp.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 16)
	n, _, err := udp.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte(mac), buf[:n])
}

func TestClosedTransport(t *testing.T) {
	t.Parallel()

	tr, err := newTransport("127.0.0.1")
	require.NoError(t, err)

	_, err = tr.Write([]byte{0x02})
	require.ErrorIs(t, err, stpv3.ErrTransportClosed)
	_, err = tr.Read(make([]byte, 4))
	require.ErrorIs(t, err, stpv3.ErrTransportClosed)
	require.ErrorIs(t, tr.Flush(), stpv3.ErrTransportClosed)
	require.NoError(t, tr.Close())
	require.ErrorIs(t, tr.SetTimeout(0), stpv3.ErrInvalidParameter)
}

func TestDialRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = New(addr, WithDialRetries(0))
	require.ErrorIs(t, err, stpv3.ErrDeviceNotFound)
}
