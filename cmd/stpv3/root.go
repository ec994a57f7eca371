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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-stpv3"
	"github.com/ZaparooProject/go-stpv3/detection"
	_ "github.com/ZaparooProject/go-stpv3/detection/hid"
	_ "github.com/ZaparooProject/go-stpv3/detection/i2c"
	_ "github.com/ZaparooProject/go-stpv3/detection/network"
	_ "github.com/ZaparooProject/go-stpv3/detection/uart"
	"github.com/ZaparooProject/go-stpv3/transport"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Configuration keys shared by flags, environment and config file
const (
	keyDevice     = "device"
	keyTimeout    = "timeout"
	keyDetectMode = "detect-mode"
	keyRetries    = "retries"
	keyDebug      = "debug"
	keyLogFormat  = "log-format"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stpv3",
	Short: "Control STPv3 RFID readers",
	Long: `stpv3 talks to RFID readers that speak the STPv3 protocol over
serial, USB HID, I2C or TCP.

Every flag can also be set in a config file or with an STPV3_ prefixed
environment variable, for example STPV3_DEVICE=/dev/ttyUSB0.

Device paths:
  /dev/ttyUSB0, COM3         serial
  /dev/hidraw0               USB HID
  /dev/i2c-1                 I2C
  192.168.1.50:10001         network

Prefix a path with uart://, hid://, i2c:// or tcp:// to force the
transport.

Leave --device empty to auto-detect a reader.`,
	SilenceUsage: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return setupLogging()
	},
}

// Execute runs the root command
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $HOME/.config/stpv3/stpv3.yaml)")
	flags.StringP(keyDevice, "d", "", "reader device path, empty to auto-detect")
	flags.Duration(keyTimeout, 2*time.Second, "command timeout")
	flags.String(keyDetectMode, detection.Safe.String(), "auto-detection mode: passive, safe or full")
	flags.Int(keyRetries, 0, "retry failed transport operations this many times")
	flags.Bool(keyDebug, false, "enable protocol debug logging")
	flags.String(keyLogFormat, "text", "log format: text or json")

	cobra.CheckErr(viper.BindPFlags(flags))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(dir + "/stpv3")
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("stpv3")
	}

	viper.SetEnvPrefix("STPV3")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		stpv3.Logger().WithField("file", viper.ConfigFileUsed()).Debug("using config file")
	} else if cfgFile != "" {
		cobra.CheckErr(errors.Wrap(err, "failed to read config"))
	}
}

func setupLogging() error {
	logger := stpv3.Logger()
	switch viper.GetString(keyLogFormat) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return errors.Errorf("unknown log format %q", viper.GetString(keyLogFormat))
	}
	logger.SetOutput(os.Stderr)
	stpv3.SetDebugEnabled(viper.GetBool(keyDebug))
	return nil
}

func parseDetectMode(s string) (detection.Mode, error) {
	for _, m := range []detection.Mode{detection.Passive, detection.Safe, detection.Full} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, errors.Errorf("unknown detection mode %q", s)
}

// connect opens the configured reader, auto-detecting one when no device
// is set. The returned close function releases the reader and its
// transport.
func connect(ctx context.Context) (*stpv3.Reader, func(), error) {
	timeout := viper.GetDuration(keyTimeout)
	opts := []stpv3.ConnectOption{
		stpv3.WithConnectTimeout(timeout),
		stpv3.WithReaderOptions(stpv3.WithTimeout(timeout)),
	}

	path := viper.GetString(keyDevice)
	if path == "" {
		mode, err := parseDetectMode(viper.GetString(keyDetectMode))
		if err != nil {
			return nil, nil, err
		}
		detectOpts := detection.DefaultOptions()
		detectOpts.Mode = mode
		opts = append(opts,
			stpv3.WithAutoDetection(),
			stpv3.WithDetectionOptions(detectOpts),
			stpv3.WithTransportFromDeviceFactory(transport.FromDevice))
	} else {
		opts = append(opts, stpv3.WithTransportFactory(transport.Open))
	}

	if retries := viper.GetInt(keyRetries); retries > 0 {
		rc := stpv3.DefaultRetryConfig()
		rc.MaxAttempts = retries + 1
		opts = append(opts, stpv3.WithTransportRetry(rc))
	}

	reader, err := stpv3.ConnectReader(ctx, path, opts...)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		_ = reader.Close()
		if err := reader.Transport().Close(); err != nil {
			stpv3.Logger().WithError(err).Warn("failed to close transport")
		}
	}
	return reader, closeFn, nil
}

// withReader connects, runs fn and closes the reader again
func withReader(cmd *cobra.Command, fn func(ctx context.Context, reader *stpv3.Reader) error) error {
	ctx := cmd.Context()
	reader, closeFn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, reader)
}

func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
