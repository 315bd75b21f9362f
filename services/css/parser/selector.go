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
	"fmt"
	"strings"

	"github.com/AleutianAI/cssmodules/services/css/ast"
	"github.com/AleutianAI/cssmodules/services/css/token"
)

// SyntaxError is a recoverable syntax problem at a location.
type SyntaxError struct {
	Span token.Span
	Msg  string
}

func (e *SyntaxError) Error() string {
	return e.Msg
}

func syntaxErrorf(span token.Span, format string, args ...any) *SyntaxError {
	return &SyntaxError{Span: span, Msg: fmt.Sprintf(format, args...)}
}

// selectorPseudoClasses take a selector list as their argument.
var selectorPseudoClasses = map[string]bool{
	"not":          true,
	"is":           true,
	"where":        true,
	"has":          true,
	"matches":      true,
	"any":          true,
	"-webkit-any":  true,
	"-moz-any":     true,
	"host":         true,
	"host-context": true,
}

// moduleScopePseudoClasses take a selector list in CSS Modules mode.
var moduleScopePseudoClasses = map[string]bool{
	"local":  true,
	"global": true,
}

func takesSelectorArgs(name string, cfg Config) bool {
	name = strings.ToLower(name)
	return selectorPseudoClasses[name] || (cfg.CSSModules && moduleScopePseudoClasses[name])
}

// ParseSelectorList parses a style rule prelude.
//
// Description:
//
//	values are the prelude's component values with surrounding whitespace
//	trimmed. at locates the prelude for errors when values is empty. When
//	relative is true the selectors may start with a combinator, as nested
//	rules and :has() arguments do. In CSS Modules mode a selector made only
//	of bare :local and :global is an error.
//
// Outputs:
//
//	ast.SelectorList - The parsed list, nil on error.
//	error            - A *SyntaxError describing the first problem.
func ParseSelectorList(values []ast.ComponentValue, at token.Span, cfg Config, relative bool) (ast.SelectorList, error) {
	list, err := parseSelectorList(values, at, cfg, relative)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func parseSelectorList(values []ast.ComponentValue, at token.Span, cfg Config, relative bool) (ast.SelectorList, *SyntaxError) {
	var list ast.SelectorList
	start := 0
	for i := 0; i <= len(values); i++ {
		if i < len(values) && values[i].Token.Kind != token.Comma {
			continue
		}
		group := ast.TrimWhitespace(values[start:i])
		if len(group) == 0 {
			span := at
			if i < len(values) {
				span = values[i].Loc
			}
			return nil, syntaxErrorf(span, "expected selector")
		}
		sel, err := parseComplex(group, cfg, relative)
		if err != nil {
			return nil, err
		}
		if cfg.CSSModules && scopeOnly(sel) {
			return nil, syntaxErrorf(sel.Loc, "selector %q is empty without :local and :global", sel.String())
		}
		list = append(list, sel)
		start = i + 1
	}
	return list, nil
}

// scopeOnly reports whether every compound of sel is made of bare :local
// or :global pseudo-classes, leaving nothing to select once they are removed.
func scopeOnly(sel *ast.ComplexSelector) bool {
	for _, c := range sel.Compounds {
		if c.Type != nil || len(c.Subclasses) == 0 {
			return false
		}
		for _, sub := range c.Subclasses {
			pc, ok := sub.(*ast.PseudoClassSelector)
			if !ok || pc.Functional || !(pc.Is("local") || pc.Is("global")) {
				return false
			}
		}
	}
	return len(sel.Compounds) > 0
}

func combinatorOf(t token.Token) (ast.Combinator, bool) {
	if t.Kind != token.Delim {
		return ast.CombinatorNone, false
	}
	switch {
	case t.IsDelim('>'):
		return ast.CombinatorChild, true
	case t.IsDelim('+'):
		return ast.CombinatorNextSibling, true
	case t.IsDelim('~'):
		return ast.CombinatorSubsequentSibling, true
	}
	return ast.CombinatorNone, false
}

func parseComplex(g []ast.ComponentValue, cfg Config, relative bool) (*ast.ComplexSelector, *SyntaxError) {
	sel := &ast.ComplexSelector{Loc: ast.SpanOf(g)}
	comb := ast.CombinatorNone
	explicit, sawSpace := false, false

	for i := 0; i < len(g); {
		t := g[i].Token
		if t.Kind == token.Whitespace {
			sawSpace = true
			i++
			continue
		}
		if c, ok := combinatorOf(t); ok {
			if explicit {
				return nil, syntaxErrorf(t.Span, "unexpected combinator %q", t.Value)
			}
			if len(sel.Compounds) == 0 && !relative {
				return nil, syntaxErrorf(t.Span, "selector cannot start with %q", t.Value)
			}
			comb, explicit = c, true
			i++
			continue
		}
		if len(sel.Compounds) > 0 && !explicit && sawSpace {
			comb = ast.CombinatorDescendant
		}

		compound, n, err := parseCompound(g[i:], cfg)
		if err != nil {
			return nil, err
		}
		compound.Combinator = comb
		sel.Compounds = append(sel.Compounds, compound)
		i += n
		comb, explicit, sawSpace = ast.CombinatorNone, false, false
	}

	if explicit {
		return nil, syntaxErrorf(g[len(g)-1].Loc, "expected selector after combinator")
	}
	return sel, nil
}

func parseCompound(g []ast.ComponentValue, cfg Config) (*ast.CompoundSelector, int, *SyntaxError) {
	cs := &ast.CompoundSelector{}
	i := 0
	if ts, n := parseTypeSelector(g); n > 0 {
		cs.Type = ts
		i = n
	}

loop:
	for i < len(g) {
		v := &g[i]
		t := v.Token
		if _, ok := combinatorOf(t); ok || t.Kind == token.Whitespace {
			break loop
		}

		switch {
		case t.IsDelim('.'):
			if i+1 >= len(g) || g[i+1].Token.Kind != token.Ident {
				return nil, 0, syntaxErrorf(t.Span, "expected class name after '.'")
			}
			name := g[i+1]
			cs.Subclasses = append(cs.Subclasses, &ast.ClassSelector{Name: name.Token.Value, Loc: t.Span.Join(name.Loc)})
			i += 2

		case t.Kind == token.Hash:
			if t.HashType != token.HashID {
				return nil, 0, syntaxErrorf(t.Span, "invalid id selector %q", t.String())
			}
			cs.Subclasses = append(cs.Subclasses, &ast.IDSelector{Name: t.Value, Loc: t.Span})
			i++

		case t.Kind == token.LBrack:
			attr, err := parseAttribute(v)
			if err != nil {
				return nil, 0, err
			}
			cs.Subclasses = append(cs.Subclasses, attr)
			i++

		case t.Kind == token.Colon:
			sub, n, err := parsePseudo(g[i:], cfg)
			if err != nil {
				return nil, 0, err
			}
			cs.Subclasses = append(cs.Subclasses, sub)
			i += n

		case t.IsDelim('&'):
			cs.Subclasses = append(cs.Subclasses, &ast.NestingSelector{Loc: t.Span})
			i++

		case t.Kind == token.Ident || t.IsDelim('*') || t.IsDelim('|'):
			return nil, 0, syntaxErrorf(t.Span, "type selector %q must come first in a compound selector", v.String())

		default:
			return nil, 0, syntaxErrorf(t.Span, "unexpected %q in selector", v.String())
		}
	}

	if i == 0 {
		return nil, 0, syntaxErrorf(g[0].Loc, "expected selector")
	}
	cs.Loc = ast.SpanOf(g[:i])
	return cs, i, nil
}

func isTypeName(t token.Token) bool {
	return t.Kind == token.Ident || t.IsDelim('*')
}

// parseTypeSelector reads "name", "*", "ns|name", "*|name" or "|name".
func parseTypeSelector(g []ast.ComponentValue) (*ast.TypeSelector, int) {
	at := func(i int) token.Token {
		if i < len(g) {
			return g[i].Token
		}
		return token.Token{}
	}

	switch {
	case isTypeName(at(0)) && at(1).IsDelim('|') && isTypeName(at(2)):
		return &ast.TypeSelector{
			Namespace:    at(0).Value,
			HasNamespace: true,
			Name:         at(2).Value,
			Loc:          at(0).Span.Join(at(2).Span),
		}, 3
	case at(0).IsDelim('|') && isTypeName(at(1)):
		return &ast.TypeSelector{HasNamespace: true, Name: at(1).Value, Loc: at(0).Span.Join(at(1).Span)}, 2
	case isTypeName(at(0)):
		return &ast.TypeSelector{Name: at(0).Value, Loc: at(0).Span}, 1
	}
	return nil, 0
}

func parsePseudo(g []ast.ComponentValue, cfg Config) (ast.Subclass, int, *SyntaxError) {
	colon := g[0].Token
	if len(g) > 1 && g[1].Token.Kind == token.Colon {
		if len(g) < 3 {
			return nil, 0, syntaxErrorf(g[1].Loc, "expected pseudo-element name")
		}
		v := g[2]
		switch v.Token.Kind {
		case token.Ident:
			return &ast.PseudoElementSelector{Name: v.Token.Value, Loc: colon.Span.Join(v.Loc)}, 3, nil
		case token.Function:
			return &ast.PseudoElementSelector{
				Name:       v.Token.Value,
				Functional: true,
				Args:       ast.TrimWhitespace(v.Children),
				Loc:        colon.Span.Join(v.Loc),
			}, 3, nil
		}
		return nil, 0, syntaxErrorf(v.Loc, "expected pseudo-element name, found %q", v.String())
	}

	if len(g) < 2 {
		return nil, 0, syntaxErrorf(colon.Span, "expected pseudo-class name")
	}
	v := g[1]
	switch v.Token.Kind {
	case token.Ident:
		return &ast.PseudoClassSelector{Name: v.Token.Value, Loc: colon.Span.Join(v.Loc)}, 2, nil
	case token.Function:
		pc := &ast.PseudoClassSelector{Name: v.Token.Value, Functional: true, Loc: colon.Span.Join(v.Loc)}
		args := ast.TrimWhitespace(v.Children)
		if !takesSelectorArgs(pc.Name, cfg) {
			pc.Args = args
			return pc, 2, nil
		}
		sels, err := parseSelectorList(args, v.Loc, cfg, strings.EqualFold(pc.Name, "has"))
		if err != nil {
			return nil, 0, err
		}
		pc.Selectors = sels
		return pc, 2, nil
	}
	return nil, 0, syntaxErrorf(v.Loc, "expected pseudo-class name, found %q", v.String())
}

// parseAttribute parses the contents of a [] block.
func parseAttribute(v *ast.ComponentValue) (*ast.AttributeSelector, *SyntaxError) {
	var toks []token.Token
	for _, c := range v.Children {
		if c.Token.Kind != token.Whitespace {
			toks = append(toks, c.Token)
		}
	}
	at := func(i int) token.Token {
		if i < len(toks) {
			return toks[i]
		}
		return token.Token{}
	}

	attr := &ast.AttributeSelector{Loc: v.Loc}
	i := 0
	switch {
	case isTypeName(at(0)) && at(1).IsDelim('|') && at(2).Kind == token.Ident:
		attr.Name = at(0).Value + "|" + at(2).Value
		i = 3
	case at(0).IsDelim('|') && at(1).Kind == token.Ident:
		attr.Name = "|" + at(1).Value
		i = 2
	case at(0).Kind == token.Ident:
		attr.Name = at(0).Value
		i = 1
	default:
		return nil, syntaxErrorf(v.Loc, "expected attribute name")
	}

	if i == len(toks) {
		return attr, nil
	}

	switch t := at(i); {
	case t.IsDelim('='):
		attr.Op = "="
		i++
	case t.Kind == token.Delim && strings.Contains("~|^$*", t.Value) && at(i+1).IsDelim('='):
		attr.Op = t.Value + "="
		i += 2
	default:
		return nil, syntaxErrorf(t.Span, "expected attribute operator, found %q", t.String())
	}

	switch t := at(i); t.Kind {
	case token.Ident:
		attr.Value = t.Value
	case token.String:
		attr.Value = t.Value
		attr.Quoted = true
	default:
		return nil, syntaxErrorf(v.Loc, "expected attribute value")
	}
	i++

	if i < len(toks) {
		t := at(i)
		if t.Kind != token.Ident || !(strings.EqualFold(t.Value, "i") || strings.EqualFold(t.Value, "s")) {
			return nil, syntaxErrorf(t.Span, "unexpected %q in attribute selector", t.String())
		}
		attr.Modifier = t.Value
		i++
	}
	if i < len(toks) {
		return nil, syntaxErrorf(toks[i].Span, "unexpected %q in attribute selector", toks[i].String())
	}
	return attr, nil
}
