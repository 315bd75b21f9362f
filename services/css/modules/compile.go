// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package modules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/AleutianAI/cssmodules/services/css/ast"
	"github.com/AleutianAI/cssmodules/services/css/token"
)

// animationKeywords are values of the animation properties that are never
// keyframes names.
var animationKeywords = map[string]bool{
	"inherit":           true,
	"initial":           true,
	"revert":            true,
	"unset":             true,
	"alternate":         true,
	"alternate-reverse": true,
	"normal":            true,
	"reverse":           true,
	"backwards":         true,
	"both":              true,
	"forwards":          true,
	"none":              true,
	"paused":            true,
	"running":           true,
	"ease":              true,
	"ease-in":           true,
	"ease-in-out":       true,
	"ease-out":          true,
	"linear":            true,
	"step-start":        true,
	"step-end":          true,
	"end":               true,
	"jump-both":         true,
	"jump-end":          true,
	"jump-none":         true,
	"jump-start":        true,
	"start":             true,
	"infinite":          true,
}

func isAnimationKeyword(name string) bool {
	return animationKeywords[strings.ToLower(name)]
}

type scopeMode uint8

const (
	modeLocal scopeMode = iota
	modeGlobal
)

// Compile scopes a CSS Modules stylesheet in place.
//
// Description:
//
//	Class and id selectors in local scope are renamed with gen and
//	exported under their original name. ":global(...)" and ":local(...)"
//	are unwrapped; their bare forms switch the scope for the rest of the
//	selector. Local @keyframes names are renamed and exported, and
//	references to them in animation and animation-name follow. Each
//	composes declaration adds the composed names to the exports of the
//	rule's class and is removed from the tree.
//
//	Selectors are rewritten in QualifiedRule.Selectors. Rule preludes keep
//	their source tokens.
//
// Inputs:
//
//	ss  - Parsed (and transformed) stylesheet. Modified in place.
//	gen - Generator for local names.
//
// Outputs:
//
//	*Result - Exports sorted by local name.
//	error   - ErrInvalidComposes or ErrEmptySelector, wrapped.
func Compile(ss *ast.Stylesheet, gen NameGenerator) (*Result, error) {
	c := &compiler{
		gen:       gen,
		exports:   make(map[string][]ClassName),
		keyframes: make(map[string]bool),
	}
	c.collectKeyframes(ss.Rules)
	if err := c.rules(ss.Rules, true); err != nil {
		return nil, err
	}
	c.renameAnimations(ss)
	return &Result{Exports: c.sorted()}, nil
}

type compiler struct {
	gen     NameGenerator
	exports map[string][]ClassName

	// keyframes holds the original names of local @keyframes.
	keyframes map[string]bool
}

// local returns the generated name for name and exports it on first use.
func (c *compiler) local(name string) string {
	generated := c.gen.NewName(name)
	if _, ok := c.exports[name]; !ok {
		c.exports[name] = []ClassName{Local(generated)}
	}
	return generated
}

func (c *compiler) sorted() Exports {
	keys := make([]string, 0, len(c.exports))
	for k := range c.exports {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make(Exports, len(keys))
	for i, k := range keys {
		out[i] = Export{Local: k, Names: c.exports[k]}
	}
	return out
}

func (c *compiler) collectKeyframes(rules []ast.Rule) {
	for _, r := range rules {
		switch v := r.(type) {
		case *ast.AtRule:
			if v.Is("keyframes") {
				c.keyframesName(v)
				continue
			}
			if v.Block != nil {
				c.collectKeyframes(blockRules(v.Block))
			}
		case *ast.QualifiedRule:
			if v.Block != nil {
				c.collectKeyframes(blockRules(v.Block))
			}
		}
	}
}

// keyframesName handles "@keyframes name", "@keyframes :local(name)" and
// "@keyframes :global(name)".
func (c *compiler) keyframesName(r *ast.AtRule) {
	prelude := ast.TrimWhitespace(r.Prelude)
	switch {
	case len(prelude) == 1 && (prelude[0].Token.Kind == token.Ident || prelude[0].Token.Kind == token.String):
		name := prelude[0].Token.Value
		if isAnimationKeyword(name) {
			return
		}
		c.keyframes[name] = true
		prelude[0].Token.Value = c.local(name)
		r.Prelude = prelude

	case len(prelude) == 2 && prelude[0].Token.Kind == token.Colon &&
		(prelude[1].IsFunction("local") || prelude[1].IsFunction("global")):
		args := ast.TrimWhitespace(prelude[1].Children)
		if len(args) != 1 || args[0].Token.Kind != token.Ident {
			return
		}
		id := args[0]
		if prelude[1].IsFunction("local") && !isAnimationKeyword(id.Token.Value) {
			c.keyframes[id.Token.Value] = true
			id.Token.Value = c.local(id.Token.Value)
		}
		r.Prelude = []ast.ComponentValue{id}
	}
}

func blockRules(b *ast.Block) []ast.Rule {
	var rules []ast.Rule
	for _, it := range b.Items {
		if r, ok := it.(ast.Rule); ok {
			rules = append(rules, r)
		}
	}
	return rules
}

func (c *compiler) rules(rules []ast.Rule, top bool) error {
	for _, r := range rules {
		switch v := r.(type) {
		case *ast.QualifiedRule:
			if err := c.styleRule(v, top); err != nil {
				return err
			}
		case *ast.AtRule:
			if v.Block == nil || v.Is("keyframes") {
				continue
			}
			if err := c.rules(blockRules(v.Block), false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *compiler) styleRule(r *ast.QualifiedRule, top bool) error {
	if r.Selectors == nil {
		return nil
	}

	// Composition targets are the original class names, captured before
	// renaming.
	var classes []string
	if r.Block != nil && hasComposes(r.Block) {
		for _, sel := range r.Selectors {
			cls, ok := sel.SingleClass()
			if !top || !ok {
				return fmt.Errorf("rule %q: %w", r.Selectors.String(), ErrInvalidComposes)
			}
			classes = append(classes, cls.Name)
		}
	}

	if err := c.selectorList(r.Selectors, modeLocal); err != nil {
		return err
	}
	if r.Block == nil {
		return nil
	}

	items := r.Block.Items[:0]
	var nested []ast.Rule
	for _, it := range r.Block.Items {
		switch v := it.(type) {
		case *ast.Declaration:
			if v.Composes != nil {
				c.compose(classes, v.Composes)
				continue
			}
		case ast.Rule:
			nested = append(nested, v)
		}
		items = append(items, it)
	}
	clear(r.Block.Items[len(items):])
	r.Block.Items = items
	return c.rules(nested, false)
}

func hasComposes(b *ast.Block) bool {
	for _, d := range b.Declarations() {
		if d.Composes != nil {
			return true
		}
	}
	return false
}

func (c *compiler) compose(classes []string, cmp *ast.Composes) {
	for _, cls := range classes {
		for _, n := range cmp.Names {
			var name ClassName
			switch cmp.Source {
			case ast.ComposesGlobal:
				name = Global(n.Name)
			case ast.ComposesModule:
				name = Import(n.Name, cmp.Specifier)
			default:
				name = Local(c.gen.NewName(n.Name))
			}
			c.exports[cls] = append(c.exports[cls], name)
		}
	}
}

func (c *compiler) selectorList(list ast.SelectorList, mode scopeMode) error {
	for _, sel := range list {
		if err := c.complex(sel, mode); err != nil {
			return err
		}
	}
	return nil
}

// complex scopes one complex selector. Compounds emptied by a bare
// :local or :global are dropped; a non-descendant combinator before them
// moves to the next compound.
func (c *compiler) complex(sel *ast.ComplexSelector, mode scopeMode) error {
	src := sel.String()
	out := make([]*ast.CompoundSelector, 0, len(sel.Compounds))
	var carry ast.Combinator
	carrying := false
	for _, comp := range sel.Compounds {
		parts, err := c.compound(comp, &mode)
		if err != nil {
			return err
		}
		for _, p := range parts {
			if p.IsEmpty() {
				if !carrying {
					carry, carrying = p.Combinator, true
				}
				continue
			}
			if carrying {
				if p.Combinator == ast.CombinatorDescendant || p.Combinator == ast.CombinatorNone {
					p.Combinator = carry
				}
				carrying = false
			}
			if len(out) == 0 && p.Combinator == ast.CombinatorDescendant {
				p.Combinator = ast.CombinatorNone
			}
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fmt.Errorf("selector %q: %w", src, ErrEmptySelector)
	}
	sel.Compounds = out
	return nil
}

// compound scopes the subclasses of comp. It usually returns comp itself;
// a compound made only of ":local(a b)" or ":global(a b)" is replaced by
// the compounds of the argument.
func (c *compiler) compound(comp *ast.CompoundSelector, mode *scopeMode) ([]*ast.CompoundSelector, error) {
	subs := make([]ast.Subclass, 0, len(comp.Subclasses))
	for _, sub := range comp.Subclasses {
		switch v := sub.(type) {
		case *ast.ClassSelector:
			if *mode == modeLocal {
				v.Name = c.local(v.Name)
			}
		case *ast.IDSelector:
			if *mode == modeLocal {
				v.Name = c.local(v.Name)
			}
		case *ast.PseudoClassSelector:
			if v.Is("local") || v.Is("global") {
				inner := modeLocal
				if v.Is("global") {
					inner = modeGlobal
				}
				if !v.Functional {
					*mode = inner
					continue
				}
				if err := c.selectorList(v.Selectors, inner); err != nil {
					return nil, err
				}
				if len(v.Selectors) == 1 {
					arg := v.Selectors[0].Compounds
					if len(arg) == 1 && (comp.Type == nil || arg[0].Type == nil) {
						if arg[0].Type != nil {
							comp.Type = arg[0].Type
						}
						subs = append(subs, arg[0].Subclasses...)
						continue
					}
					if comp.Type == nil && len(comp.Subclasses) == 1 {
						arg[0].Combinator = comp.Combinator
						return arg, nil
					}
				}
				subs = append(subs, &ast.PseudoClassSelector{
					Name:       "is",
					Functional: true,
					Selectors:  v.Selectors,
					Args:       v.Args,
					Loc:        v.Loc,
				})
				continue
			}
			if v.Selectors != nil {
				if err := c.selectorList(v.Selectors, *mode); err != nil {
					return nil, err
				}
			}
		}
		subs = append(subs, sub)
	}
	comp.Subclasses = subs
	return []*ast.CompoundSelector{comp}, nil
}

// renameAnimations rewrites references to local keyframes in animation
// and animation-name values.
func (c *compiler) renameAnimations(ss *ast.Stylesheet) {
	if len(c.keyframes) == 0 {
		return
	}
	ast.Inspect(ss, func(n ast.Node) bool {
		switch v := n.(type) {
		case *ast.AtRule:
			return !v.Is("keyframes")
		case *ast.Declaration:
			switch unprefixed(v.Property()) {
			case "animation", "animation-name":
				for i := range v.Value {
					t := &v.Value[i].Token
					if t.Kind == token.Ident && c.keyframes[t.Value] && !isAnimationKeyword(t.Value) {
						t.Value = c.gen.NewName(t.Value)
					}
				}
			}
		}
		return true
	})
}

// unprefixed strips a vendor prefix such as "-webkit-" from a property.
func unprefixed(prop string) string {
	if strings.HasPrefix(prop, "-") && !strings.HasPrefix(prop, "--") {
		if i := strings.Index(prop[1:], "-"); i >= 0 {
			return prop[i+2:]
		}
	}
	return prop
}
