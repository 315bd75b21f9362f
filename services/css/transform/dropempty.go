// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transform

import (
	"context"

	"github.com/AleutianAI/cssmodules/services/css/ast"
)

// DropEmpty removes style rules whose block has no items, at any depth.
// Rules emptied by the removal of their children are removed too.
type DropEmpty struct{}

// Name returns "drop-empty".
func (DropEmpty) Name() string { return "drop-empty" }

// Apply implements Transform.
func (DropEmpty) Apply(ctx context.Context, ss *ast.Stylesheet, _ *Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kept := ss.Rules[:0]
	for _, r := range ss.Rules {
		if keepItem(r) {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(ss.Rules); i++ {
		ss.Rules[i] = nil
	}
	ss.Rules = kept
	return nil
}

func keepItem(it ast.Item) bool {
	switch v := it.(type) {
	case *ast.QualifiedRule:
		if v.Block == nil {
			return false
		}
		v.Block.Filter(keepItem)
		return len(v.Block.Items) > 0
	case *ast.AtRule:
		if v.Block != nil {
			v.Block.Filter(keepItem)
		}
	}
	return true
}
