// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package treesitter provides a parser.Parser backed by the tree-sitter CSS
// grammar.
//
// Tree-sitter locates rules, blocks and declarations. Selector lists,
// preludes and declaration values are then rescanned with the native
// component value and selector parsers, so both backends produce the same
// tree for well-formed input.
package treesitter

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"

	"github.com/AleutianAI/cssmodules/services/css/ast"
	"github.com/AleutianAI/cssmodules/services/css/diag"
	"github.com/AleutianAI/cssmodules/services/css/parser"
	"github.com/AleutianAI/cssmodules/services/css/token"
)

// Name is the registry name of this backend.
const Name = "tree-sitter"

// Node types of the tree-sitter CSS grammar.
const (
	nodeRuleSet            = "rule_set"
	nodeSelectors          = "selectors"
	nodeBlock              = "block"
	nodeDeclaration        = "declaration"
	nodePropertyName       = "property_name"
	nodeKeyframeBlockList  = "keyframe_block_list"
	nodeKeyframeBlock      = "keyframe_block"
	nodeAtRule             = "at_rule"
	nodeError              = "ERROR"
)

// Parser parses CSS with tree-sitter.
//
// Thread Safety:
//
//	Parser is safe for concurrent use. Each Parse call creates its own
//	tree-sitter parser instance.
type Parser struct{}

// New returns a tree-sitter backed parser.
func New() *Parser {
	return &Parser{}
}

// Name returns Name.
func (*Parser) Name() string { return Name }

// Parse implements parser.Parser.
//
// Description:
//
//	Builds the tree-sitter syntax tree and lowers it into an
//	ast.Stylesheet. ERROR and MISSING nodes become error diagnostics, and
//	the constructs around them are kept when they are still well formed.
//
// Inputs:
//
//	ctx  - Context for cancellation. Checked before and after tree-sitter runs.
//	file - Source file registered in a token.SourceMap.
//	cfg  - Grammar extensions and limits.
//
// Outputs:
//
//	*parser.Result - Tree and diagnostics.
//	error          - A *parser.FatalError for exceeded limits, or the wrapped
//	                 context error.
func (*Parser) Parse(ctx context.Context, file *token.File, cfg parser.Config) (*parser.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("css parse canceled before start: %w", err)
	}
	limit := cfg.MaxFileSize
	if limit <= 0 {
		limit = parser.DefaultMaxFileSize
	}
	if file.Size() > limit {
		return &parser.Result{}, &parser.FatalError{
			Span: token.Span{Start: file.Pos(0), End: file.Pos(0)},
			Err:  fmt.Errorf("%w: %d bytes exceeds the limit of %d", parser.ErrFileTooLarge, file.Size(), limit),
		}
	}

	content := []byte(file.Content())
	tsParser := sitter.NewParser()
	tsParser.SetLanguage(css.GetLanguage())

	tree, err := tsParser.ParseCtx(ctx, nil, content)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("css parse canceled: %w", ctxErr)
		}
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("css parse canceled after tree-sitter: %w", err)
	}

	l := &lowerer{file: file, content: content, cfg: cfg}
	root := tree.RootNode()
	ss, err := l.stylesheet(root)
	if err != nil {
		return &parser.Result{Diagnostics: l.diags}, err
	}
	l.reportErrors(root)
	return &parser.Result{Stylesheet: ss, Diagnostics: l.diags}, nil
}

// lowerer converts tree-sitter nodes into ast nodes.
type lowerer struct {
	file    *token.File
	content []byte
	cfg     parser.Config
	depth   int
	diags   []diag.Diagnostic
}

func (l *lowerer) span(n *sitter.Node) token.Span {
	return l.spanOf(int(n.StartByte()), int(n.EndByte()))
}

func (l *lowerer) spanOf(start, end int) token.Span {
	return token.Span{Start: l.file.Pos(start), End: l.file.Pos(end)}
}

func (l *lowerer) text(n *sitter.Node) string {
	return string(l.content[n.StartByte():n.EndByte()])
}

func (l *lowerer) report(d diag.Diagnostic) {
	d.Category = diag.CategoryParse
	d.Title = diag.TitleParse
	l.diags = append(l.diags, d)
}

func (l *lowerer) errorf(span token.Span, format string, args ...any) {
	l.report(diag.Errorf(span, format, args...))
}

func (l *lowerer) syntax(err error) {
	if se, ok := err.(*parser.SyntaxError); ok {
		l.errorf(se.Span, "%s", se.Msg)
		return
	}
	l.errorf(token.Span{}, "%v", err)
}

// values rescans bytes [start, end) into component values.
func (l *lowerer) values(start, end int) ([]ast.ComponentValue, error) {
	if end < start {
		end = start
	}
	values, diags, err := parser.ParseValues(l.file, start, end, l.cfg)
	for _, d := range diags {
		l.report(d)
	}
	return ast.TrimWhitespace(values), err
}

func (l *lowerer) enter(n *sitter.Node) error {
	l.depth++
	limit := l.cfg.MaxDepth
	if limit <= 0 {
		limit = parser.DefaultMaxDepth
	}
	if l.depth > limit {
		return &parser.FatalError{
			Span: l.span(n),
			Err:  fmt.Errorf("%w: more than %d levels", parser.ErrTooDeep, limit),
		}
	}
	return nil
}

func (l *lowerer) leave() {
	l.depth--
}

func children(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		out = append(out, n.Child(i))
	}
	return out
}

func (l *lowerer) stylesheet(root *sitter.Node) (*ast.Stylesheet, error) {
	ss := &ast.Stylesheet{Loc: l.spanOf(0, len(l.content))}
	for _, child := range children(root) {
		switch t := child.Type(); {
		case t == nodeRuleSet:
			r, err := l.ruleSet(child, scope{})
			if err != nil {
				return nil, err
			}
			if r != nil {
				ss.Rules = append(ss.Rules, r)
			}
		case isAtRule(t):
			r, err := l.atRule(child, scope{})
			if err != nil {
				return nil, err
			}
			ss.Rules = append(ss.Rules, r)
		case t == nodeDeclaration:
			l.errorf(l.span(child), "declarations are not allowed at the top level")
		}
	}
	return ss, nil
}

func isAtRule(nodeType string) bool {
	return nodeType == nodeAtRule || strings.HasSuffix(nodeType, "_statement")
}

// scope mirrors the native parser's notion of where block items live.
type scope struct {
	nested      bool
	inStyleRule bool
	composable  bool
}

func (l *lowerer) ruleSet(n *sitter.Node, sc scope) (*ast.QualifiedRule, error) {
	var selectors, block *sitter.Node
	for _, child := range children(n) {
		switch child.Type() {
		case nodeSelectors:
			selectors = child
		case nodeBlock:
			block = child
		}
	}
	if selectors == nil || block == nil {
		// The ERROR node inside is reported by reportErrors.
		return nil, nil
	}

	prelude, err := l.values(int(selectors.StartByte()), int(selectors.EndByte()))
	if err != nil {
		return nil, err
	}
	rule := &ast.QualifiedRule{Prelude: prelude, Loc: l.span(n)}
	valid := true

	sels, serr := parser.ParseSelectorList(prelude, l.span(selectors), l.cfg, sc.inStyleRule)
	if serr != nil {
		l.syntax(serr)
		valid = false
	}
	rule.Selectors = sels
	if sc.inStyleRule && !l.cfg.LegacyNesting {
		l.errorf(l.span(selectors), "nested style rules are not supported")
		valid = false
	}

	inner := scope{nested: true, inStyleRule: true}
	inner.composable = !sc.nested && valid && allSingleClass(sels)
	rule.Block, err = l.block(block, inner)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, nil
	}
	return rule, nil
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

func (l *lowerer) block(n *sitter.Node, sc scope) (*ast.Block, error) {
	if err := l.enter(n); err != nil {
		return nil, err
	}
	defer l.leave()

	b := &ast.Block{Loc: l.span(n)}
	for _, child := range children(n) {
		switch t := child.Type(); {
		case t == nodeDeclaration:
			d, err := l.declaration(child, sc)
			if err != nil {
				return nil, err
			}
			if d != nil {
				b.Items = append(b.Items, d)
			}
		case t == nodeRuleSet:
			r, err := l.ruleSet(child, sc)
			if err != nil {
				return nil, err
			}
			if r != nil {
				b.Items = append(b.Items, r)
			}
		case isAtRule(t):
			r, err := l.atRule(child, sc)
			if err != nil {
				return nil, err
			}
			b.Items = append(b.Items, r)
		}
	}
	return b, nil
}

func (l *lowerer) atRule(n *sitter.Node, sc scope) (*ast.AtRule, error) {
	kids := children(n)
	if len(kids) == 0 {
		return &ast.AtRule{Loc: l.span(n)}, nil
	}
	keyword := kids[0]
	r := &ast.AtRule{
		Name:    strings.TrimPrefix(l.text(keyword), "@"),
		NameLoc: l.span(keyword),
		Loc:     l.span(n),
	}

	preludeEnd := int(n.EndByte())
	var body *sitter.Node
	for _, child := range kids[1:] {
		switch child.Type() {
		case nodeBlock, nodeKeyframeBlockList:
			body = child
			preludeEnd = int(child.StartByte())
		case ";":
			if body == nil {
				preludeEnd = int(child.StartByte())
			}
		}
		if body != nil {
			break
		}
	}

	prelude, err := l.values(int(keyword.EndByte()), preludeEnd)
	if err != nil {
		return nil, err
	}
	r.Prelude = prelude

	if body == nil {
		return r, nil
	}
	if body.Type() == nodeKeyframeBlockList {
		r.Block, err = l.keyframes(body)
	} else {
		r.Block, err = l.block(body, scope{nested: true, inStyleRule: sc.inStyleRule})
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (l *lowerer) keyframes(n *sitter.Node) (*ast.Block, error) {
	if err := l.enter(n); err != nil {
		return nil, err
	}
	defer l.leave()

	b := &ast.Block{Loc: l.span(n)}
	for _, child := range children(n) {
		if child.Type() != nodeKeyframeBlock {
			continue
		}
		var body *sitter.Node
		for _, k := range children(child) {
			if k.Type() == nodeBlock {
				body = k
			}
		}
		if body == nil {
			continue
		}
		prelude, err := l.values(int(child.StartByte()), int(body.StartByte()))
		if err != nil {
			return nil, err
		}
		block, err := l.block(body, scope{nested: true})
		if err != nil {
			return nil, err
		}
		b.Items = append(b.Items, &ast.QualifiedRule{Prelude: prelude, Block: block, Loc: l.span(child)})
	}
	return b, nil
}

func (l *lowerer) declaration(n *sitter.Node, sc scope) (*ast.Declaration, error) {
	var name, colon *sitter.Node
	valueEnd := int(n.EndByte())
	for _, child := range children(n) {
		switch child.Type() {
		case nodePropertyName:
			name = child
		case ":":
			if colon == nil {
				colon = child
			}
		case ";":
			valueEnd = int(child.StartByte())
		}
	}
	if name == nil || colon == nil {
		return nil, nil
	}

	d := &ast.Declaration{Name: l.text(name), NameLoc: l.span(name), Loc: l.span(n)}
	values, err := l.values(int(colon.EndByte()), valueEnd)
	if err != nil {
		return nil, err
	}
	d.Value, d.Important = parser.SplitImportant(values)

	if len(d.Value) == 0 && !strings.HasPrefix(d.Name, "--") {
		l.errorf(d.Loc, "expected a value for %q", d.Name)
		return nil, nil
	}

	if l.cfg.CSSModules && d.Property() == "composes" {
		if !sc.composable {
			l.errorf(d.Loc, "composes is only allowed in a top-level rule whose selectors are single classes")
			return nil, nil
		}
		c, err := parser.ParseComposes(d)
		if err != nil {
			l.syntax(err)
			return nil, nil
		}
		d.Composes = c
	}
	return d, nil
}

// reportErrors adds a diagnostic for every ERROR and MISSING node.
func (l *lowerer) reportErrors(n *sitter.Node) {
	if !n.HasError() {
		return
	}
	switch {
	case n.Type() == nodeError:
		text := strings.TrimSpace(l.text(n))
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		l.errorf(l.span(n), "unexpected %q", text)
		return
	case n.IsMissing():
		l.errorf(l.span(n), "expected %q", n.Type())
		return
	}
	for _, child := range children(n) {
		if child.IsMissing() {
			l.errorf(l.span(child), "expected %q", child.Type())
			continue
		}
		l.reportErrors(child)
	}
}
