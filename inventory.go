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

package stpv3

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// InventoryFunc receives each tag found by an inventory. Returning false
// stops the inventory.
type InventoryFunc func(tag *Tag) bool

// InventoryTags enumerates the tags in the field that match filter. A nil
// filter matches every tag.
//
// With loop false the reader scans the field once; fn is called for each
// tag in the order the reader reports them and InventoryTags returns when
// the reader signals the end of the scan. If fn stops early the rest of
// the scan is still consumed from the transport.
//
// A read timeout before the end of the scan is returned as an error, so an
// empty field (nil error, no tags) is distinguishable from a silent reader.
//
// With loop true the reader keeps scanning and InventoryTags returns only
// when fn returns false or ctx is done. Both end the inventory cleanly
// with a nil error. The same tag is reported once per pass: no
// duplicates are removed.
//
// Tags found carry the filter's type when it was explicit and the type
// reported by the reader otherwise.
func (r *Reader) InventoryTags(ctx context.Context, filter *Tag, loop bool, fn InventoryFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: nil inventory callback", ErrInvalidParameter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrSessionClosed
	}

	cmd := &Command{Opcode: OpSelectTag, Tag: filter, Inventory: true, Loop: loop}
	window := r.config.InventoryTimeout

	err := r.engine.stream(ctx, cmd, window, func(resp *Response) bool {
		if resp.Code != SelectTagPass {
			debugf("inventory: skipping %s", resp.Code)
			return true
		}
		tag := &Tag{}
		if filter != nil {
			tag.Type = filter.Type
		}
		tag.stamp(resp)
		return fn(tag)
	})

	if loop && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		debugf("inventory loop stopped: %v", err)
		return nil
	}
	return err
}

// Inventory returns the tags in the field as an iterator. Breaking out of
// the range loop stops the inventory; see InventoryTags for how loop
// changes the lifetime of the scan.
//
//	for tag, err := range reader.Inventory(ctx, nil, false) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(tag)
//	}
func (r *Reader) Inventory(ctx context.Context, filter *Tag, loop bool) iter.Seq2[*Tag, error] {
	return func(yield func(*Tag, error) bool) {
		stopped := false
		err := r.InventoryTags(ctx, filter, loop, func(tag *Tag) bool {
			if !yield(tag, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}

// SelectTags performs a single inventory pass and collects the tags. An
// empty field returns an empty slice and no error.
func (r *Reader) SelectTags(ctx context.Context, filter *Tag) ([]*Tag, error) {
	tags := make([]*Tag, 0)
	err := r.InventoryTags(ctx, filter, false, func(tag *Tag) bool {
		tags = append(tags, tag)
		return true
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}
