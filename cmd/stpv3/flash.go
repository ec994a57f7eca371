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
	"os"

	"github.com/ZaparooProject/go-stpv3"
	"github.com/ZaparooProject/go-stpv3/bootload"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var flashCmd = &cobra.Command{
	Use:   "flash <image.shf>",
	Short: "Upload reader firmware",
	Long: `Switch the reader into its bootloader and upload a firmware image.

The image is checked before the reader is touched. Do not disconnect the
reader while the upload runs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := bootload.ParseFile(args[0]); err != nil {
			return errors.Wrap(err, "invalid firmware image")
		}
		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "failed to open firmware image")
		}
		defer func() { _ = f.Close() }()

		return withReader(cmd, func(ctx context.Context, reader *stpv3.Reader) error {
			last := -1
			progress := bootload.WithProgressCallback(func(p bootload.Progress) {
				if pct := int(p.Percentage); pct/10 != last/10 || p.Phase == bootload.PhaseComplete {
					last = pct
					printf(cmd, "%-11s %3d%% (%d/%d records)\n", p.Phase, pct, p.Record, p.TotalRecords)
				}
			})
			if err := reader.UploadFirmware(ctx, f, progress); err != nil {
				return err
			}
			printf(cmd, "Firmware uploaded, reconnect to use the reader\n")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(flashCmd)
}
