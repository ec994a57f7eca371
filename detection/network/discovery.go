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

// Package network discovers Ethernet-attached STPv3 readers with the
// module's UDP multicast announcement protocol and registers a detector
// for them.
//
// The host sends the token "DOTNETMF" to 234.102.98.44; readers answer on
// 234.102.98.45, both on port 0x6591. Each answer carries the reader's
// MAC address at offset 8.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	stpv3 "github.com/ZaparooProject/go-stpv3"
	"golang.org/x/net/ipv4"
)

const (
	// Port is the discovery port for both groups
	Port = 0x6591

	// Token is the discovery request payload
	Token = "DOTNETMF"

	// FirstWait is how long to wait for the first answer
	FirstWait = 1000 * time.Millisecond

	// NextWait is how long to wait for each further answer
	NextWait = 200 * time.Millisecond

	macOffset = 8
	macLen    = 6
	ttl       = 0x40
)

var (
	// SendGroup receives discovery requests
	SendGroup = net.IPv4(234, 102, 98, 44)

	// RecvGroup carries the readers' answers
	RecvGroup = net.IPv4(234, 102, 98, 45)
)

// Reader is a reader that answered discovery
type Reader struct {
	IP   net.IP
	MAC  net.HardwareAddr
	Port int
}

// Addr returns the reader's command address, host:port
func (r Reader) Addr(commandPort int) string {
	return net.JoinHostPort(r.IP.String(), strconv.Itoa(commandPort))
}

// ParseAnswer extracts the MAC address of a discovery answer
func ParseAnswer(b []byte) (net.HardwareAddr, error) {
	if len(b) < macOffset+macLen {
		return nil, fmt.Errorf("discovery answer of %d bytes is too short", len(b))
	}
	return net.HardwareAddr(append([]byte(nil), b[macOffset:macOffset+macLen]...)), nil
}

// Discover runs discovery on every multicast-capable IPv4 interface
func Discover(ctx context.Context) ([]Reader, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	seen := map[string]bool{}
	var readers []Reader
	for i := range ifaces {
		ifi := &ifaces[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 {
			continue
		}
		local := interfaceIPv4(ifi)
		if local == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		found, err := discoverOn(ctx, ifi, local)
		if err != nil {
			stpv3.Logger().WithField("interface", ifi.Name).Debugf("discovery failed: %v", err)
			continue
		}
		for _, r := range found {
			if !seen[r.MAC.String()] {
				seen[r.MAC.String()] = true
				readers = append(readers, r)
			}
		}
	}
	return readers, nil
}

func interfaceIPv4(ifi *net.Interface) net.IP {
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4
			}
		}
	}
	return nil
}

func discoverOn(ctx context.Context, ifi *net.Interface, local net.IP) ([]Reader, error) {
	rx, err := net.ListenPacket("udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to bind discovery port: %w", err)
	}
	defer func() { _ = rx.Close() }()

	group := &net.UDPAddr{IP: RecvGroup}
	prx := ipv4.NewPacketConn(rx)
	if err := prx.JoinGroup(ifi, group); err != nil {
		return nil, fmt.Errorf("failed to join %s: %w", RecvGroup, err)
	}
	defer func() { _ = prx.LeaveGroup(ifi, group) }()

	tx, err := net.ListenPacket("udp4", net.JoinHostPort(local.String(), "0"))
	if err != nil {
		return nil, fmt.Errorf("failed to open send socket: %w", err)
	}
	defer func() { _ = tx.Close() }()

	ptx := ipv4.NewPacketConn(tx)
	_ = ptx.SetMulticastTTL(ttl)
	_ = ptx.SetMulticastLoopback(false)
	if err := ptx.SetMulticastInterface(ifi); err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", ifi.Name, err)
	}
	if _, err := ptx.WriteTo([]byte(Token), nil, &net.UDPAddr{IP: SendGroup, Port: Port}); err != nil {
		return nil, fmt.Errorf("failed to send discovery request: %w", err)
	}

	return collect(ctx, rx, FirstWait, NextWait), nil
}

// collect reads answers until a wait expires without one
func collect(ctx context.Context, conn net.PacketConn, first, next time.Duration) []Reader {
	var readers []Reader
	buf := make([]byte, 1024)
	wait := first

	for ctx.Err() == nil {
		deadline := time.Now().Add(wait)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = conn.SetReadDeadline(deadline)

		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, os.ErrDeadlineExceeded) {
				stpv3.Logger().Debugf("discovery read: %v", err)
			}
			break
		}
		wait = next

		mac, err := ParseAnswer(buf[:n])
		if err != nil {
			stpv3.Logger().Debugf("discovery: ignoring answer from %s: %v", from, err)
			continue
		}
		udp, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}
		readers = append(readers, Reader{IP: udp.IP, Port: udp.Port, MAC: mac})
	}
	return readers
}
