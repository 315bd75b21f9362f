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
	"fmt"

	"github.com/AleutianAI/cssmodules/services/css/ast"
)

// Nesting flattens style rules nested inside style rules.
//
// Description:
//
//	A nested rule's selectors are resolved against its parent: "&" is
//	replaced by the parent selector and selectors without "&" become
//	descendants of it. At-rules nested in a style rule are hoisted next to
//	the rule, with the parent selector wrapped around their declarations.
//	The output preserves source order: a rule's own declarations come
//	before the rules nested in it. Rules nested under a selector ending in
//	a pseudo-element stay nested, since no flat selector can express them.
type Nesting struct{}

// Name returns "nesting".
func (Nesting) Name() string { return "nesting" }

// Apply implements Transform.
func (Nesting) Apply(ctx context.Context, ss *ast.Stylesheet, _ *Context) error {
	rules, err := flattenRules(ctx, ss.Rules)
	if err != nil {
		return err
	}
	ss.Rules = rules
	return nil
}

func flattenRules(ctx context.Context, rules []ast.Rule) ([]ast.Rule, error) {
	out := make([]ast.Rule, 0, len(rules))
	for _, r := range rules {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("nesting: %w", err)
		}
		switch v := r.(type) {
		case *ast.QualifiedRule:
			if v.Selectors == nil || v.Block == nil {
				out = append(out, v)
				continue
			}
			out = append(out, flattenStyleRule(v, v.Selectors)...)
		case *ast.AtRule:
			if v.Block != nil && !v.Is("keyframes") {
				items, err := flattenRules(ctx, rulesOf(v.Block.Items))
				if err != nil {
					return nil, err
				}
				v.Block.Items = mergeItems(v.Block.Items, items)
			}
			out = append(out, v)
		default:
			out = append(out, r)
		}
	}
	return out, nil
}

// rulesOf returns the rule items of a block.
func rulesOf(items []ast.Item) []ast.Rule {
	var rules []ast.Rule
	for _, it := range items {
		if r, ok := it.(ast.Rule); ok {
			rules = append(rules, r)
		}
	}
	return rules
}

// mergeItems keeps the declarations of items in front and appends the
// flattened rules.
func mergeItems(items []ast.Item, rules []ast.Rule) []ast.Item {
	out := make([]ast.Item, 0, len(items)+len(rules))
	for _, it := range items {
		if d, ok := it.(*ast.Declaration); ok {
			out = append(out, d)
		}
	}
	for _, r := range rules {
		out = append(out, r)
	}
	return out
}

// flattenStyleRule returns rule, with its nested items moved out, followed
// by the flattened nested rules. selectors is the rule's resolved selector
// list.
func flattenStyleRule(rule *ast.QualifiedRule, selectors ast.SelectorList) []ast.Rule {
	rule.Selectors = selectors
	pinned := endsWithPseudoElementAny(selectors)
	var decls []ast.Item
	var nested []ast.Rule
	for _, it := range rule.Block.Items {
		switch v := it.(type) {
		case *ast.Declaration:
			decls = append(decls, v)
		case *ast.QualifiedRule:
			if v.Selectors == nil || v.Block == nil {
				continue
			}
			if pinned {
				decls = append(decls, v)
				continue
			}
			nested = append(nested, flattenStyleRule(v, resolve(selectors, v.Selectors))...)
		case *ast.AtRule:
			nested = append(nested, hoistAtRule(v, selectors))
		}
	}
	if len(nested) == 0 {
		return []ast.Rule{rule}
	}
	rule.Block.Items = decls
	return append([]ast.Rule{rule}, nested...)
}

// hoistAtRule turns an at-rule nested in a style rule with the given
// selectors into a standalone at-rule.
func hoistAtRule(at *ast.AtRule, selectors ast.SelectorList) *ast.AtRule {
	if at.Block == nil {
		return at
	}
	pinned := endsWithPseudoElementAny(selectors)
	var decls []ast.Item
	var rules []ast.Rule
	for _, it := range at.Block.Items {
		switch v := it.(type) {
		case *ast.Declaration:
			decls = append(decls, v)
		case *ast.QualifiedRule:
			if v.Selectors == nil || v.Block == nil {
				continue
			}
			if pinned {
				decls = append(decls, v)
				continue
			}
			rules = append(rules, flattenStyleRule(v, resolve(selectors, v.Selectors))...)
		case *ast.AtRule:
			rules = append(rules, hoistAtRule(v, selectors))
		}
	}

	items := make([]ast.Item, 0, 1+len(rules))
	if len(decls) > 0 {
		items = append(items, &ast.QualifiedRule{
			Selectors: selectors.Clone(),
			Block:     &ast.Block{Items: decls, Loc: at.Block.Loc},
			Loc:       at.Loc,
		})
	}
	for _, r := range rules {
		items = append(items, r)
	}
	at.Block.Items = items
	return at
}

// resolve computes the selectors of a rule nested in a rule matching
// parents.
func resolve(parents, children ast.SelectorList) ast.SelectorList {
	out := make(ast.SelectorList, 0, len(parents)*len(children))
	for _, child := range children {
		for _, parent := range parents {
			out = append(out, resolveOne(parent, child))
		}
	}
	return out
}

func resolveOne(parent, child *ast.ComplexSelector) *ast.ComplexSelector {
	out := &ast.ComplexSelector{Loc: child.Loc}
	if !child.HasNesting() {
		out.Compounds = cloneCompounds(parent.Compounds)
		for i, c := range child.Compounds {
			c = c.Clone()
			if i == 0 && c.Combinator == ast.CombinatorNone {
				c.Combinator = ast.CombinatorDescendant
			}
			out.Compounds = append(out.Compounds, c)
		}
		return out
	}

	for _, c := range child.Compounds {
		if !hasNestingSelector(c) {
			out.Compounds = append(out.Compounds, c.Clone())
			continue
		}
		out.Compounds = append(out.Compounds, substitute(parent, c)...)
	}
	return out
}

func hasNestingSelector(c *ast.CompoundSelector) bool {
	for _, sub := range c.Subclasses {
		if _, ok := sub.(*ast.NestingSelector); ok {
			return true
		}
	}
	return false
}

func cloneCompounds(in []*ast.CompoundSelector) []*ast.CompoundSelector {
	out := make([]*ast.CompoundSelector, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

// substitute replaces "&" in c with the parent selector. The parent's
// compounds are spliced in and the rest of c is merged into the last one.
// When that is not possible, "&" becomes :is(parent).
func substitute(parent *ast.ComplexSelector, c *ast.CompoundSelector) []*ast.CompoundSelector {
	c = c.Clone()
	var rest []ast.Subclass
	nesting := 0
	for _, sub := range c.Subclasses {
		if _, ok := sub.(*ast.NestingSelector); ok {
			nesting++
			continue
		}
		rest = append(rest, sub)
	}

	last := parent.Compounds[len(parent.Compounds)-1]
	spliceable := nesting == 1 && (c.Type == nil || last.Type == nil) && !endsWithPseudoElement(last)
	if !spliceable {
		for i, sub := range c.Subclasses {
			if _, ok := sub.(*ast.NestingSelector); ok {
				c.Subclasses[i] = &ast.PseudoClassSelector{
					Name:       "is",
					Functional: true,
					Selectors:  ast.SelectorList{parent.Clone()},
					Loc:        sub.Span(),
				}
			}
		}
		return []*ast.CompoundSelector{c}
	}

	spliced := cloneCompounds(parent.Compounds)
	spliced[0].Combinator = c.Combinator
	tail := spliced[len(spliced)-1]
	if c.Type != nil {
		tail.Type = c.Type
	}
	tail.Subclasses = append(tail.Subclasses, rest...)
	return spliced
}

// endsWithPseudoElementAny reports whether a selector of list ends in a
// pseudo-element, which can have neither descendants nor an :is() form.
func endsWithPseudoElementAny(list ast.SelectorList) bool {
	for _, sel := range list {
		if n := len(sel.Compounds); n > 0 && endsWithPseudoElement(sel.Compounds[n-1]) {
			return true
		}
	}
	return false
}

func endsWithPseudoElement(c *ast.CompoundSelector) bool {
	for _, sub := range c.Subclasses {
		if _, ok := sub.(*ast.PseudoElementSelector); ok {
			return true
		}
	}
	return false
}
