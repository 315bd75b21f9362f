// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package parser

import (
	"github.com/AleutianAI/cssmodules/services/css/ast"
	"github.com/AleutianAI/cssmodules/services/css/token"
)

// ParseComposes parses the value of a "composes" declaration:
//
//	composes: a b;
//	composes: a from global;
//	composes: a b from "./other.css";
//
// The returned error is a *SyntaxError.
func ParseComposes(d *ast.Declaration) (*ast.Composes, error) {
	c := &ast.Composes{Loc: ast.SpanOf(d.Value)}
	var rest []token.Token
	for i, v := range d.Value {
		t := v.Token
		if t.Kind == token.Whitespace {
			continue
		}
		if t.Kind == token.Ident && t.Value == "from" {
			for _, r := range d.Value[i+1:] {
				if r.Token.Kind != token.Whitespace {
					rest = append(rest, r.Token)
				}
			}
			if len(rest) == 0 {
				return nil, syntaxErrorf(t.Span, "expected global or a module path after 'from'")
			}
			break
		}
		if t.Kind != token.Ident {
			return nil, syntaxErrorf(v.Loc, "expected class name in composes, found %q", v.String())
		}
		c.Names = append(c.Names, ast.Ident{Name: t.Value, Loc: t.Span})
	}

	if len(c.Names) == 0 {
		return nil, syntaxErrorf(d.Loc, "composes requires at least one class name")
	}
	if len(rest) == 0 {
		return c, nil
	}

	src := rest[0]
	switch {
	case src.Kind == token.Ident && src.Value == "global":
		c.Source = ast.ComposesGlobal
	case src.Kind == token.String:
		c.Source = ast.ComposesModule
		c.Specifier = src.Value
	default:
		return nil, syntaxErrorf(src.Span, "expected global or a module path after 'from', found %q", src.String())
	}
	if len(rest) > 1 {
		return nil, syntaxErrorf(rest[1].Span, "unexpected %q after composes source", rest[1].String())
	}
	return c, nil
}
