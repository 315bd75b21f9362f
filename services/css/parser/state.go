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

	"github.com/AleutianAI/cssmodules/services/css/ast"
	"github.com/AleutianAI/cssmodules/services/css/diag"
	"github.com/AleutianAI/cssmodules/services/css/scanner"
	"github.com/AleutianAI/cssmodules/services/css/token"
)

// cancelCheckInterval is how many parse steps pass between context checks.
const cancelCheckInterval = 64

// bailout is panicked to unwind the parser on a fatal error and recovered
// in protect.
type bailout struct {
	err error
}

// state is the cursor over a token slice shared by all parse functions.
type state struct {
	ctx   context.Context
	file  *token.File
	cfg   Config
	toks  []token.Token
	pos   int
	eof   token.Token
	depth int
	steps int
	diags []diag.Diagnostic
}

func newState(ctx context.Context, file *token.File, cfg Config, start, end int) *state {
	p := &state{ctx: ctx, file: file, cfg: cfg}
	s := scanner.NewRange(file, start, end, p.scanError)
	for {
		tok := s.Next()
		if tok.Kind == token.EOF {
			p.eof = tok
			break
		}
		p.toks = append(p.toks, tok)
	}
	return p
}

func (p *state) scanError(span token.Span, msg string) {
	p.report(diag.Errorf(span, "%s", msg))
}

func (p *state) report(d diag.Diagnostic) {
	d.Category = diag.CategoryParse
	d.Title = diag.TitleParse
	p.diags = append(p.diags, d)
}

func (p *state) errorf(span token.Span, format string, args ...any) {
	p.report(diag.Errorf(span, format, args...))
}

func (p *state) warnf(span token.Span, format string, args ...any) {
	p.report(diag.Warningf(span, format, args...))
}

// protect runs f and converts a bailout into an error.
func (p *state) protect(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			err = b.err
		}
	}()
	f()
	return nil
}

func (p *state) checkCancel() {
	p.steps++
	if p.steps%cancelCheckInterval != 0 {
		return
	}
	if err := p.ctx.Err(); err != nil {
		panic(bailout{err: fmt.Errorf("parse %s: %w", p.file.Name(), err)})
	}
}

func (p *state) enter(span token.Span) {
	p.depth++
	if p.depth > p.cfg.maxDepth() {
		panic(bailout{err: &FatalError{
			Span: span,
			Err:  fmt.Errorf("%w: more than %d levels", ErrTooDeep, p.cfg.maxDepth()),
		}})
	}
}

func (p *state) leave() {
	p.depth--
}

func (p *state) peek() token.Token {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return p.eof
}

func (p *state) advance() {
	if p.pos < len(p.toks) {
		p.pos++
	}
}

func (p *state) skipWhitespace() {
	for p.peek().Kind == token.Whitespace {
		p.advance()
	}
}

// consumeValue reads one component value. Blocks and functions are read up
// to their matching closing token.
func (p *state) consumeValue() ast.ComponentValue {
	tok := p.peek()
	p.advance()
	cv := ast.ComponentValue{Token: tok, Loc: tok.Span}
	switch tok.Kind {
	case token.LParen, token.LBrack, token.LBrace, token.Function:
	default:
		return cv
	}

	closing := tok.Kind.Closing()
	p.enter(tok.Span)
	defer p.leave()
	for {
		t := p.peek()
		switch t.Kind {
		case token.EOF:
			p.errorf(t.Span, "expected %q", token.Token{Kind: closing}.String())
			return cv
		case closing:
			p.advance()
			cv.Loc = cv.Loc.Join(t.Span)
			return cv
		}
		child := p.consumeValue()
		cv.Loc = cv.Loc.Join(child.Loc)
		cv.Children = append(cv.Children, child)
	}
}

// consumeValuesUntil reads component values until stop reports true for
// the next token kind or the input ends. The stopping token is not
// consumed.
func (p *state) consumeValuesUntil(stop func(token.Kind) bool) []ast.ComponentValue {
	var out []ast.ComponentValue
	for {
		k := p.peek().Kind
		if k == token.EOF || stop(k) {
			return out
		}
		out = append(out, p.consumeValue())
	}
}

// ParseValues tokenizes file bytes [start, end) into component values.
//
// It is used by backends that locate constructs themselves and only need
// the raw values of a prelude or a declaration. The error is non-nil only
// when a limit in cfg is exceeded.
func ParseValues(file *token.File, start, end int, cfg Config) ([]ast.ComponentValue, []diag.Diagnostic, error) {
	p := newState(context.Background(), file, cfg, start, end)
	var values []ast.ComponentValue
	err := p.protect(func() {
		values = p.consumeValuesUntil(func(token.Kind) bool { return false })
	})
	return values, p.diags, err
}
