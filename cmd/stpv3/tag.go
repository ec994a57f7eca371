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
	"strings"

	"github.com/ZaparooProject/go-stpv3"
	"github.com/ZaparooProject/go-stpv3/tagops"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Read and write Gen2 tags",
	Long: `Read and write ISO 18000-6C (Gen2) tags. The first tag the reader
selects is used unless --tid names a specific one. --password sends the
access password before the operation.`,
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ReplaceAll(s, " ", ""), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "bad hex %q", s)
	}
	return b, nil
}

// withTag connects, selects the target tag and runs fn with it
func withTag(cmd *cobra.Command, fn func(ctx context.Context, ops *tagops.TagOperations) error) error {
	var filter *stpv3.Tag
	if tid, _ := cmd.Flags().GetString("tid"); tid != "" {
		b, err := decodeHex(tid)
		if err != nil {
			return err
		}
		filter = stpv3.NewTag(stpv3.TagTypeGen2, b)
	}

	var password []byte
	if pw, _ := cmd.Flags().GetString("password"); pw != "" {
		b, err := decodeHex(pw)
		if err != nil {
			return err
		}
		password = b
	}

	return withReader(cmd, func(ctx context.Context, reader *stpv3.Reader) error {
		ops := tagops.New(reader)
		if err := ops.DetectTag(ctx, filter); err != nil {
			return err
		}
		if password != nil {
			if err := ops.Unlock(ctx, password); err != nil {
				return errors.Wrap(err, "failed to unlock tag")
			}
		}
		return fn(ctx, ops)
	})
}

var tagInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Identify a tag",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withTag(cmd, func(ctx context.Context, ops *tagops.TagOperations) error {
			info, err := ops.GetTagInfo(ctx)
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", info)
			if ops.IsNDEFCapable(ctx) {
				printf(cmd, "NDEF: yes\n")
			}
			return nil
		})
	},
}

var tagReadCmd = &cobra.Command{
	Use:       "read <epc|tid|user>",
	Short:     "Dump a memory bank",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"epc", "tid", "user"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTag(cmd, func(ctx context.Context, ops *tagops.TagOperations) error {
			var (
				data []byte
				err  error
			)
			switch args[0] {
			case "epc":
				data, err = ops.ReadEPC(ctx)
			case "tid":
				data, err = ops.ReadTID(ctx, 4)
			case "user":
				data, err = ops.ReadUserMemory(ctx)
			default:
				return errors.Errorf("unknown bank %q", args[0])
			}
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", hex.Dump(data))
			return nil
		})
	},
}

var tagWriteEPCCmd = &cobra.Command{
	Use:   "write-epc <hex>",
	Short: "Replace the EPC",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		epc, err := decodeHex(args[0])
		if err != nil {
			return err
		}
		return withTag(cmd, func(ctx context.Context, ops *tagops.TagOperations) error {
			if err := ops.WriteEPC(ctx, epc); err != nil {
				return err
			}
			printf(cmd, "EPC written: %X\n", epc)
			return nil
		})
	},
}

var tagReadTextCmd = &cobra.Command{
	Use:   "read-text",
	Short: "Print the NDEF text stored in user memory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withTag(cmd, func(ctx context.Context, ops *tagops.TagOperations) error {
			text, err := ops.ReadText(ctx)
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", text)
			return nil
		})
	},
}

var tagWriteTextCmd = &cobra.Command{
	Use:   "write-text <text>",
	Short: "Store an NDEF text record in user memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTag(cmd, func(ctx context.Context, ops *tagops.TagOperations) error {
			if err := ops.WriteText(ctx, args[0]); err != nil {
				return err
			}
			printf(cmd, "Text written to %s\n", ops.Tag().TIDHex())
			return nil
		})
	},
}

var tagProtectCmd = &cobra.Command{
	Use:   "protect <on|off>",
	Short: "Enable or disable read protection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, _ := cmd.Flags().GetString("password")
		if pw == "" {
			return errors.New("read protection needs --password")
		}
		password, err := decodeHex(pw)
		if err != nil {
			return err
		}
		return withTag(cmd, func(ctx context.Context, ops *tagops.TagOperations) error {
			switch args[0] {
			case "on":
				return ops.SetReadProtect(ctx, password)
			case "off":
				return ops.ResetReadProtect(ctx, password)
			default:
				return errors.Errorf("expected on or off, got %q", args[0])
			}
		})
	},
}

func init() {
	tagCmd.PersistentFlags().String("tid", "", "target the tag with this TID (hex)")
	tagCmd.PersistentFlags().String("password", "", "access password (8 hex digits)")
	tagCmd.AddCommand(tagInfoCmd, tagReadCmd, tagWriteEPCCmd, tagReadTextCmd, tagWriteTextCmd, tagProtectCmd)
	rootCmd.AddCommand(tagCmd)
}
