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
	"fmt"
	"text/tabwriter"

	"github.com/ZaparooProject/go-stpv3/detection"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "List attached readers",
	Long: `List the readers auto-detection can find on this machine.

Passive detection only inspects system metadata. Safe detection also sends
read-only commands to confirm candidates, and full detection probes every
port it finds.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mode, err := parseDetectMode(viper.GetString(keyDetectMode))
		if err != nil {
			return err
		}
		opts := detection.DefaultOptions()
		opts.Mode = mode
		opts.Transports, _ = cmd.Flags().GetStringSlice("transport")

		devices, err := detection.DetectAllContext(cmd.Context(), &opts)
		if errors.Is(err, detection.ErrNoDevicesFound) || (err == nil && len(devices) == 0) {
			printf(cmd, "No readers found\n")
			return nil
		}
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "TRANSPORT\tPATH\tNAME\tCONFIDENCE")
		for _, dev := range devices {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", dev.Transport, dev.Path, dev.Name, dev.Confidence)
		}
		return w.Flush()
	},
}

func init() {
	detectCmd.Flags().StringSlice("transport", nil, "limit detection to these transports (uart, hid, i2c, tcp)")
	rootCmd.AddCommand(detectCmd)
}
