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
	"encoding/hex"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ZaparooProject/go-stpv3"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var paramCmd = &cobra.Command{
	Use:   "param",
	Short: "Read and write system parameters",
	Long: `Read and write reader system parameters. Parameters are named like
TX_POWER or given by address (decimal or 0x hex). Values are hex bytes.

--default works on the value the reader loads at power up instead of the
one it currently runs with.`,
}

func paramStore(cmd *cobra.Command) stpv3.ParameterStore {
	if def, _ := cmd.Flags().GetBool("default"); def {
		return stpv3.Default
	}
	return stpv3.Current
}

var paramGetCmd = &cobra.Command{
	Use:   "get <param>",
	Short: "Read a parameter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		param, err := stpv3.ParseSystemParameter(args[0])
		if err != nil {
			return err
		}
		store := paramStore(cmd)
		return withReader(cmd, func(ctx context.Context, reader *stpv3.Reader) error {
			value, err := reader.ReadParameter(ctx, store, param)
			if err != nil {
				return err
			}
			if value == nil {
				return errors.Errorf("%s is not available on this reader", param)
			}
			printf(cmd, "%s (%s) = %X\n", param, store, value)
			return nil
		})
	},
}

var paramSetCmd = &cobra.Command{
	Use:   "set <param> <hex value>",
	Short: "Write a parameter",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		param, err := stpv3.ParseSystemParameter(args[0])
		if err != nil {
			return err
		}
		value, err := hex.DecodeString(strings.TrimPrefix(strings.ReplaceAll(args[1], " ", ""), "0x"))
		if err != nil {
			return errors.Wrap(err, "value must be hex")
		}
		store := paramStore(cmd)
		return withReader(cmd, func(ctx context.Context, reader *stpv3.Reader) error {
			if err := reader.WriteParameter(ctx, store, param, value); err != nil {
				return err
			}
			printf(cmd, "%s (%s) set to %X\n", param, store, value)
			return nil
		})
	},
}

var paramListCmd = &cobra.Command{
	Use:   "list",
	Short: "Read every known parameter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store := paramStore(cmd)
		return withReader(cmd, func(ctx context.Context, reader *stpv3.Reader) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, param := range stpv3.KnownParameters() {
				value, err := reader.ReadParameter(ctx, store, param)
				if err != nil {
					return err
				}
				shown := "-"
				if value != nil {
					shown = strings.ToUpper(hex.EncodeToString(value))
				}
				_, _ = fmt.Fprintf(w, "0x%04X\t%s\t%s\n", uint16(param), param, shown)
			}
			return w.Flush()
		})
	},
}

var paramDefaultsCmd = &cobra.Command{
	Use:   "load-defaults",
	Short: "Replace the current parameters with the stored defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withReader(cmd, func(ctx context.Context, reader *stpv3.Reader) error {
			if err := reader.LoadDefaults(ctx); err != nil {
				return err
			}
			printf(cmd, "Defaults loaded\n")
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{paramGetCmd, paramSetCmd, paramListCmd} {
		c.Flags().Bool("default", false, "use the stored default instead of the current value")
		paramCmd.AddCommand(c)
	}
	paramCmd.AddCommand(paramDefaultsCmd)
	rootCmd.AddCommand(paramCmd)
}
