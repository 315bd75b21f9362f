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
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/cssmodules/services/css/ast"
	"github.com/AleutianAI/cssmodules/services/css/token"
)

// NativeName is the registry name of the native parser.
const NativeName = "native"

// Native is the built-in recursive descent parser.
//
// Description:
//
//	Native follows the CSS Syntax Level 3 consumption algorithms, with
//	selector parsing for style rule preludes and optional CSS Modules
//	extensions. Malformed rules and declarations are dropped with an error
//	diagnostic while the rest of the stylesheet is still parsed.
//
// Thread Safety:
//
//	Native holds no state and is safe for concurrent use.
type Native struct{}

// NewNative returns the native parser.
func NewNative() *Native {
	return &Native{}
}

// Name returns NativeName.
func (*Native) Name() string { return NativeName }

// Parse implements Parser.
func (*Native) Parse(ctx context.Context, file *token.File, cfg Config) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file.Name(), err)
	}
	if file.Size() > cfg.maxFileSize() {
		return &Result{}, &FatalError{
			Span: token.Span{Start: file.Pos(0), End: file.Pos(0)},
			Err:  fmt.Errorf("%w: %d bytes exceeds the limit of %d", ErrFileTooLarge, file.Size(), cfg.maxFileSize()),
		}
	}

	p := newState(ctx, file, cfg, 0, file.Size())
	var ss *ast.Stylesheet
	err := p.protect(func() {
		ss = p.parseStylesheet()
	})
	if err != nil {
		return &Result{Diagnostics: p.diags}, err
	}
	return &Result{Stylesheet: ss, Diagnostics: p.diags}, nil
}

// scope describes where a run of block items lives.
type scope struct {
	// nested is false only for the top level of the stylesheet.
	nested bool

	// inStyleRule is set inside the block of a style rule, including
	// at-rules nested there.
	inStyleRule bool

	// keyframes marks the body of @keyframes, whose rule preludes are
	// keyframe selectors rather than selectors.
	keyframes bool

	// composable marks the direct body of a top-level rule whose selectors
	// are all single classes.
	composable bool
}

func (p *state) parseStylesheet() *ast.Stylesheet {
	ss := &ast.Stylesheet{Loc: token.Span{Start: p.file.Pos(0), End: p.file.Pos(p.file.Size())}}
	top := scope{}
	for {
		p.checkCancel()
		t := p.peek()
		switch t.Kind {
		case token.EOF:
			return ss
		case token.Whitespace, token.CDO, token.CDC:
			p.advance()
		case token.RBrace:
			p.errorf(t.Span, "unexpected '}'")
			p.advance()
		case token.Semicolon:
			p.warnf(t.Span, "unexpected ';'")
			p.advance()
		case token.AtKeyword:
			ss.Rules = append(ss.Rules, p.parseAtRule(top))
		default:
			if r := p.parseQualifiedRule(top); r != nil {
				ss.Rules = append(ss.Rules, r)
			}
		}
	}
}

func (p *state) parseAtRule(sc scope) *ast.AtRule {
	t := p.peek()
	p.advance()
	r := &ast.AtRule{Name: t.Value, NameLoc: t.Span, Loc: t.Span}

	prelude := p.consumeValuesUntil(func(k token.Kind) bool {
		return k == token.Semicolon || k == token.LBrace || (sc.nested && k == token.RBrace)
	})
	r.Prelude = ast.TrimWhitespace(prelude)
	r.Loc = r.Loc.Join(ast.SpanOf(prelude))

	switch end := p.peek(); end.Kind {
	case token.Semicolon:
		p.advance()
		r.Loc = r.Loc.Join(end.Span)
	case token.LBrace:
		inner := scope{nested: true, inStyleRule: sc.inStyleRule, keyframes: r.Is("keyframes")}
		r.Block = p.parseBlock(inner)
		r.Loc = r.Loc.Join(r.Block.Loc)
	}
	return r
}

// parseQualifiedRule parses a style rule, or a keyframe rule inside
// @keyframes. It returns nil when the rule is invalid; its block is still
// consumed so parsing resumes after it.
func (p *state) parseQualifiedRule(sc scope) *ast.QualifiedRule {
	first := p.peek()
	prelude := p.consumeValuesUntil(func(k token.Kind) bool {
		return k == token.LBrace || k == token.RBrace || (sc.nested && k == token.Semicolon)
	})
	if p.peek().Kind != token.LBrace {
		span := first.Span.Join(ast.SpanOf(prelude))
		p.errorf(span, "expected '{' after %q", strings.TrimSpace(ast.ValuesString(prelude)))
		if p.peek().Kind == token.Semicolon {
			p.advance()
		}
		return nil
	}

	rule := &ast.QualifiedRule{Prelude: ast.TrimWhitespace(prelude)}
	rule.Loc = first.Span.Join(ast.SpanOf(prelude))
	valid := true
	inner := scope{nested: true}

	if sc.keyframes && len(rule.Prelude) == 0 {
		p.warnf(rule.Loc, "empty keyframe selector")
	}
	if !sc.keyframes {
		sels, err := parseSelectorList(rule.Prelude, rule.Loc, p.cfg, sc.inStyleRule)
		if err != nil {
			p.reportSyntax(err)
			valid = false
		}
		rule.Selectors = sels
		if sc.inStyleRule && !p.cfg.LegacyNesting {
			p.errorf(rule.Loc, "nested style rules are not supported")
			valid = false
		}
		inner.inStyleRule = true
		inner.composable = !sc.nested && valid && allSingleClass(sels)
	}

	rule.Block = p.parseBlock(inner)
	rule.Loc = rule.Loc.Join(rule.Block.Loc)
	if !valid {
		return nil
	}
	return rule
}

func allSingleClass(list ast.SelectorList) bool {
	if len(list) == 0 {
		return false
	}
	for _, sel := range list {
		if _, ok := sel.SingleClass(); !ok {
			return false
		}
	}
	return true
}

// parseBlock parses a {}-block whose opening brace is the next token.
func (p *state) parseBlock(sc scope) *ast.Block {
	open := p.peek()
	p.advance()
	p.enter(open.Span)
	defer p.leave()

	b := &ast.Block{Loc: open.Span}
	for {
		p.checkCancel()
		t := p.peek()
		switch t.Kind {
		case token.RBrace:
			p.advance()
			b.Loc = b.Loc.Join(t.Span)
			return b
		case token.EOF:
			p.errorf(t.Span, "expected '}'")
			return b
		case token.Whitespace, token.Semicolon:
			p.advance()
		case token.AtKeyword:
			b.Items = append(b.Items, p.parseAtRule(sc))
		default:
			if p.startsDeclaration() {
				if d := p.parseDeclaration(sc); d != nil {
					b.Items = append(b.Items, d)
				}
			} else if r := p.parseQualifiedRule(sc); r != nil {
				b.Items = append(b.Items, r)
			}
		}
	}
}

// startsDeclaration decides between a declaration and a nested rule by
// looking for the first top-level '{', ';' or '}'.
func (p *state) startsDeclaration() bool {
	t := p.peek()
	if t.Kind != token.Ident {
		return false
	}
	if strings.HasPrefix(t.Value, "--") {
		return true
	}
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		switch p.toks[i].Kind {
		case token.LParen, token.LBrack, token.Function:
			depth++
		case token.RParen, token.RBrack:
			if depth > 0 {
				depth--
			}
		case token.LBrace:
			if depth == 0 {
				return false
			}
		case token.Semicolon, token.RBrace:
			if depth == 0 {
				return true
			}
		}
	}
	return true
}

func (p *state) parseDeclaration(sc scope) *ast.Declaration {
	name := p.peek()
	p.advance()
	d := &ast.Declaration{Name: name.Value, NameLoc: name.Span, Loc: name.Span}

	p.skipWhitespace()
	if p.peek().Kind != token.Colon {
		p.errorf(name.Span, "expected ':' after %q", name.Value)
		p.consumeValuesUntil(func(k token.Kind) bool { return k == token.Semicolon || k == token.RBrace })
		if p.peek().Kind == token.Semicolon {
			p.advance()
		}
		return nil
	}
	p.advance()

	value := p.consumeValuesUntil(func(k token.Kind) bool { return k == token.Semicolon || k == token.RBrace })
	d.Loc = d.Loc.Join(ast.SpanOf(value))
	d.Value, d.Important = SplitImportant(value)
	p.checkFlags(d.Value)
	if end := p.peek(); end.Kind == token.Semicolon {
		p.advance()
		d.Loc = d.Loc.Join(end.Span)
	}

	custom := strings.HasPrefix(d.Name, "--")
	if len(d.Value) == 0 && !custom {
		p.errorf(d.Loc, "expected a value for %q", d.Name)
		return nil
	}

	if p.cfg.CSSModules && d.Property() == "composes" {
		if !sc.composable {
			p.errorf(d.Loc, "composes is only allowed in a top-level rule whose selectors are single classes")
			return nil
		}
		c, err := ParseComposes(d)
		if err != nil {
			p.reportSyntax(err)
			return nil
		}
		d.Composes = c
	}
	return d
}

// checkFlags warns about "!" flags other than a trailing !important.
func (p *state) checkFlags(values []ast.ComponentValue) {
	for i, v := range values {
		if !v.Token.IsDelim('!') {
			continue
		}
		rest := ast.TrimWhitespace(values[i+1:])
		if len(rest) > 0 && rest[0].Token.Kind == token.Ident {
			p.warnf(v.Loc.Join(rest[0].Loc), "unknown flag !%s", rest[0].Token.Value)
		}
	}
}

// SplitImportant trims whitespace from a declaration value and removes a
// trailing "!important", reporting whether it was present.
func SplitImportant(values []ast.ComponentValue) ([]ast.ComponentValue, bool) {
	values = ast.TrimWhitespace(values)
	n := len(values)
	if n < 2 {
		return values, false
	}
	last := values[n-1].Token
	if last.Kind != token.Ident || !strings.EqualFold(last.Value, "important") {
		return values, false
	}
	rest := ast.TrimWhitespace(values[:n-1])
	if len(rest) == 0 || !rest[len(rest)-1].Token.IsDelim('!') {
		return values, false
	}
	return ast.TrimWhitespace(rest[:len(rest)-1]), true
}

func (p *state) reportSyntax(err error) {
	if se, ok := err.(*SyntaxError); ok {
		p.errorf(se.Span, "%s", se.Msg)
		return
	}
	p.errorf(token.Span{}, "%v", err)
}
