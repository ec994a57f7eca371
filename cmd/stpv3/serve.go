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

	"github.com/ZaparooProject/go-stpv3"
	"github.com/ZaparooProject/go-stpv3/bridge"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	keyListen   = "listen"
	keyMDNSName = "mdns-name"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reader over HTTP and websocket",
	Long: `Serve the reader to the network.

Websocket clients connected to /ws receive an event whenever a tag arrives
or leaves. The JSON API under /api/v1 offers reader info, one-shot
inventories and system parameters. With --mdns-name the service is
advertised as ` + bridge.ServiceType + ` on the local network.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withReader(cmd, func(ctx context.Context, reader *stpv3.Reader) error {
			server, err := bridge.New(reader, bridge.Config{
				Addr:        viper.GetString(keyListen),
				ServiceName: viper.GetString(keyMDNSName),
				Polling:     pollingConfig(),
			})
			if err != nil {
				return err
			}
			return server.Run(ctx)
		})
	},
}

func init() {
	serveCmd.Flags().String(keyListen, bridge.DefaultAddr, "HTTP listen address")
	serveCmd.Flags().String(keyMDNSName, "", "advertise the service over mDNS with this name")
	cobra.CheckErr(viper.BindPFlag(keyListen, serveCmd.Flags().Lookup(keyListen)))
	cobra.CheckErr(viper.BindPFlag(keyMDNSName, serveCmd.Flags().Lookup(keyMDNSName)))
	rootCmd.AddCommand(serveCmd)
}
