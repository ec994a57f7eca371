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

// Command readtag waits for a Gen2 tag, prints what it knows about it and
// optionally writes a text record to it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ZaparooProject/go-stpv3"
	_ "github.com/ZaparooProject/go-stpv3/detection/hid"
	_ "github.com/ZaparooProject/go-stpv3/detection/uart"
	"github.com/ZaparooProject/go-stpv3/polling"
	"github.com/ZaparooProject/go-stpv3/tagops"
	"github.com/ZaparooProject/go-stpv3/transport"
)

type config struct {
	devicePath   *string
	timeout      *time.Duration
	writeText    *string
	debug        *bool
	pollInterval *time.Duration
}

func parseFlags() *config {
	cfg := &config{
		devicePath: flag.String("device", "",
			"Reader device path (e.g., /dev/ttyUSB0, /dev/hidraw0 or 192.168.1.50:10001). Empty to auto-detect."),
		timeout:   flag.Duration("timeout", 30*time.Second, "How long to wait for a tag"),
		writeText: flag.String("write", "", "Text to write to the tag (if not specified, will only read)"),
		debug:     flag.Bool("debug", false, "Enable debug output"),
		pollInterval: flag.Duration("poll-interval", 250*time.Millisecond,
			"Polling interval for tag detection"),
	}
	flag.Parse()

	if *cfg.debug {
		stpv3.SetDebugEnabled(true)
	}
	return cfg
}

func buildConnectOptions(cfg *config) []stpv3.ConnectOption {
	var connectOpts []stpv3.ConnectOption
	if *cfg.devicePath == "" {
		connectOpts = append(connectOpts,
			stpv3.WithAutoDetection(),
			stpv3.WithTransportFromDeviceFactory(transport.FromDevice))
		_, _ = fmt.Println("Auto-detecting STPv3 readers...")
	} else {
		connectOpts = append(connectOpts, stpv3.WithTransportFactory(transport.Open))
		_, _ = fmt.Printf("Opening device: %s\n", *cfg.devicePath)
	}
	return append(connectOpts, stpv3.WithConnectTimeout(5*time.Second))
}

func connectToReader(ctx context.Context, cfg *config) (*stpv3.Reader, error) {
	reader, err := stpv3.ConnectReader(ctx, *cfg.devicePath, buildConnectOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to reader: %w", err)
	}
	if version, err := reader.FirmwareVersion(ctx); err == nil {
		_, _ = fmt.Printf("Reader firmware: %s\n", version)
	}
	return reader, nil
}

func printTag(ctx context.Context, reader *stpv3.Reader, tag *stpv3.Tag) error {
	ops := tagops.New(reader)
	ops.SetTag(tag)

	info, err := ops.GetTagInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to read tag: %w", err)
	}
	_, _ = fmt.Printf("\n%s\n", info)

	if text, err := ops.ReadText(ctx); err == nil {
		_, _ = fmt.Printf("Text: %q\n", text)
	}
	return nil
}

func handleWriteMode(ctx context.Context, scanner *polling.Scanner, timeout time.Duration, text string) error {
	_, _ = fmt.Println("Waiting for tag to write...")

	err := scanner.WriteToNextTag(ctx, timeout, func(reader *stpv3.Reader, tag *stpv3.Tag) error {
		ops := tagops.New(reader)
		ops.SetTag(tag)
		if err := ops.WriteText(ctx, text); err != nil {
			return fmt.Errorf("failed to write text: %w", err)
		}
		_, _ = fmt.Println("Write successful!")
		return printTag(ctx, reader, tag)
	})
	if errors.Is(err, context.DeadlineExceeded) {
		_, _ = fmt.Printf("timeout: no tag detected within %s\n", timeout)
		return nil
	}
	return err
}

func run(cfg *config) error {
	ctx, cancel := context.WithTimeout(context.Background(), *cfg.timeout)
	defer cancel()

	reader, err := connectToReader(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = reader.Close()
		_ = reader.Transport().Close()
	}()

	pollConfig := polling.DefaultConfig()
	pollConfig.PollInterval = *cfg.pollInterval
	scanner, err := polling.NewScanner(reader, pollConfig)
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	if *cfg.writeText == "" {
		scanner.OnTagDetected = func(tag *stpv3.Tag) error {
			return printTag(ctx, reader, tag)
		}
		scanner.OnTagRemoved = func(*stpv3.Tag) {
			_, _ = fmt.Println("Tag removed - ready for next tag...")
		}
	}

	if err := scanner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scanner: %w", err)
	}
	defer func() { _ = scanner.Stop() }()

	_, _ = fmt.Printf("Waiting for tag (timeout: %s, poll interval: %s)...\n", *cfg.timeout, *cfg.pollInterval)
	if *cfg.writeText != "" {
		return handleWriteMode(ctx, scanner, *cfg.timeout, *cfg.writeText)
	}

	<-ctx.Done()
	_, _ = fmt.Println("Session completed")
	return nil
}

func main() {
	if err := run(parseFlags()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
