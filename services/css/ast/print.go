// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"io"
	"strings"
)

// Format renders a stylesheet as CSS text, one declaration per line with
// two-space indentation per nesting level.
func Format(ss *Stylesheet) string {
	var sb strings.Builder
	p := printer{sb: &sb}
	for i, r := range ss.Rules {
		if i > 0 {
			sb.WriteByte('\n')
		}
		p.item(r, 0)
	}
	return sb.String()
}

// Print writes Format(ss) to w.
func Print(w io.Writer, ss *Stylesheet) error {
	_, err := io.WriteString(w, Format(ss))
	return err
}

type printer struct {
	sb *strings.Builder
}

func (p *printer) indent(depth int) {
	for i := 0; i < depth; i++ {
		p.sb.WriteString("  ")
	}
}

func (p *printer) item(it Item, depth int) {
	switch n := it.(type) {
	case *QualifiedRule:
		p.indent(depth)
		if n.Selectors != nil {
			p.sb.WriteString(n.Selectors.String())
		} else {
			p.sb.WriteString(ValuesString(TrimWhitespace(n.Prelude)))
		}
		p.block(n.Block, depth)
	case *AtRule:
		p.indent(depth)
		p.sb.WriteByte('@')
		p.sb.WriteString(n.Name)
		if prelude := TrimWhitespace(n.Prelude); len(prelude) > 0 {
			p.sb.WriteByte(' ')
			p.sb.WriteString(ValuesString(prelude))
		}
		if n.Block == nil {
			p.sb.WriteString(";\n")
			return
		}
		p.block(n.Block, depth)
	case *Declaration:
		p.indent(depth)
		p.sb.WriteString(n.Name)
		p.sb.WriteString(": ")
		p.sb.WriteString(ValuesString(TrimWhitespace(n.Value)))
		if n.Important {
			p.sb.WriteString(" !important")
		}
		p.sb.WriteString(";\n")
	}
}

func (p *printer) block(b *Block, depth int) {
	if b == nil || len(b.Items) == 0 {
		p.sb.WriteString(" {}\n")
		return
	}
	p.sb.WriteString(" {\n")
	for _, it := range b.Items {
		p.item(it, depth+1)
	}
	p.indent(depth)
	p.sb.WriteString("}\n")
}
