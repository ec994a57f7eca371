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
	"time"

	"github.com/ZaparooProject/go-stpv3"
	"github.com/ZaparooProject/go-stpv3/polling"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	keyPollInterval  = "poll-interval"
	keyRemovalTimout = "removal-timeout"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Report tags as they arrive and leave",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, err := tagFilter(cmd)
		if err != nil {
			return err
		}
		config := pollingConfig()
		config.Filter = filter

		return withReader(cmd, func(ctx context.Context, reader *stpv3.Reader) error {
			scanner, err := polling.NewScanner(reader, config)
			if err != nil {
				return err
			}
			scanner.OnTagDetected = func(tag *stpv3.Tag) error {
				printf(cmd, "%s + %s %s\n", time.Now().Format(time.TimeOnly), tag.TIDHex(), tag.Type)
				return nil
			}
			scanner.OnTagRemoved = func(tag *stpv3.Tag) {
				printf(cmd, "%s - %s\n", time.Now().Format(time.TimeOnly), tag.TIDHex())
			}
			scanner.OnError = func(err error) {
				stpv3.Logger().WithError(err).Warn("poll failed")
			}

			if err := scanner.Start(ctx); err != nil {
				return err
			}
			printf(cmd, "Waiting for tags, press Ctrl+C to stop\n")
			<-ctx.Done()
			return scanner.Stop()
		})
	},
}

// pollingConfig reads the presence detection settings
func pollingConfig() *polling.Config {
	config := polling.DefaultConfig()
	if d := viper.GetDuration(keyPollInterval); d > 0 {
		config.PollInterval = d
	}
	if d := viper.GetDuration(keyRemovalTimout); d > 0 {
		config.TagRemovalTimeout = d
	}
	return config
}

func init() {
	def := polling.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.Duration(keyPollInterval, def.PollInterval, "time between presence inventories")
	flags.Duration(keyRemovalTimout, def.TagRemovalTimeout, "report a tag gone after missing it this long")
	cobra.CheckErr(viper.BindPFlag(keyPollInterval, flags.Lookup(keyPollInterval)))
	cobra.CheckErr(viper.BindPFlag(keyRemovalTimout, flags.Lookup(keyRemovalTimout)))

	monitorCmd.Flags().String("type", "", "only report tags of this type, by name or code")
	rootCmd.AddCommand(monitorCmd)
}
