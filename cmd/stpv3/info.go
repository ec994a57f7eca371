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
	"encoding/json"

	"github.com/ZaparooProject/go-stpv3"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show reader identification",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return withReader(cmd, func(ctx context.Context, reader *stpv3.Reader) error {
			info, err := reader.Info(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			printf(cmd, "Name:      %s\n", info.Name)
			printf(cmd, "Serial:    %s\n", info.SerialNumber)
			printf(cmd, "Firmware:  %s\n", info.FirmwareVersion)
			printf(cmd, "Hardware:  %s\n", info.HardwareVersion)
			printf(cmd, "Product:   %s\n", info.ProductCode)
			printf(cmd, "Reader ID: %X\n", reader.ReaderID())
			return nil
		})
	},
}

func init() {
	infoCmd.Flags().Bool("json", false, "print as JSON")
	rootCmd.AddCommand(infoCmd)
}
