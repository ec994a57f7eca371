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
	"github.com/spf13/cobra"
)

var inventoryCmd = &cobra.Command{
	Use:     "inventory",
	Aliases: []string{"inv"},
	Short:   "List the tags in the field",
	Long: `Run an inventory and print every tag found.

By default the field is scanned once. With --loop the reader keeps
scanning until the duration passes or the command is interrupted, and a
tag is printed every time it is reported.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, err := tagFilter(cmd)
		if err != nil {
			return err
		}
		loop, _ := cmd.Flags().GetDuration("loop")

		return withReader(cmd, func(ctx context.Context, reader *stpv3.Reader) error {
			if loop > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, loop)
				defer cancel()
			}

			count := 0
			for tag, err := range reader.Inventory(ctx, filter, loop > 0) {
				if err != nil {
					return err
				}
				count++
				printf(cmd, "%s\t%s\n", tag.TIDHex(), tag.Type)
			}
			printf(cmd, "%d tag(s)\n", count)
			return nil
		})
	},
}

// tagFilter builds an inventory filter from the --type flag
func tagFilter(cmd *cobra.Command) (*stpv3.Tag, error) {
	name, _ := cmd.Flags().GetString("type")
	if name == "" {
		return nil, nil
	}
	tagType, err := stpv3.ParseTagType(name)
	if err != nil {
		return nil, err
	}
	return stpv3.NewTag(tagType, nil), nil
}

func init() {
	inventoryCmd.Flags().String("type", "", "only report tags of this type, by name or code")
	inventoryCmd.Flags().Duration("loop", 0, "keep scanning for this long")
	rootCmd.AddCommand(inventoryCmd)
}
