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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/cssmodules/services/css/token"
)

func classRule(name string, decls ...*Declaration) *QualifiedRule {
	items := make([]Item, len(decls))
	for i, d := range decls {
		items[i] = d
	}
	return &QualifiedRule{
		Selectors: SelectorList{{
			Compounds: []*CompoundSelector{{
				Subclasses: []Subclass{&ClassSelector{Name: name}},
			}},
		}},
		Block: &Block{Items: items},
	}
}

func TestInspect_DocumentOrder(t *testing.T) {
	inner := classRule("inner", &Declaration{Name: "color"})
	media := &AtRule{Name: "media", Block: &Block{Items: []Item{inner}}}
	ss := &Stylesheet{Rules: []Rule{classRule("a", &Declaration{Name: "margin"}), media}}

	var names []string
	Inspect(ss, func(n Node) bool {
		switch v := n.(type) {
		case *Declaration:
			names = append(names, v.Name)
		case *AtRule:
			names = append(names, "@"+v.Name)
		}
		return true
	})
	assert.Equal(t, []string{"margin", "@media", "color"}, names)
}

func TestInspect_SkipChildren(t *testing.T) {
	media := &AtRule{Name: "media", Block: &Block{Items: []Item{classRule("x", &Declaration{Name: "color"})}}}
	ss := &Stylesheet{Rules: []Rule{media}}

	count := 0
	Inspect(ss, func(n Node) bool {
		if _, ok := n.(*Declaration); ok {
			count++
		}
		_, isAt := n.(*AtRule)
		return !isAt
	})
	assert.Zero(t, count)
}

func TestBlock_Filter(t *testing.T) {
	b := &Block{Items: []Item{
		&Declaration{Name: "composes"},
		&Declaration{Name: "color"},
		&Declaration{Name: "composes"},
	}}
	b.Filter(func(it Item) bool {
		d, ok := it.(*Declaration)
		return !ok || d.Name != "composes"
	})
	require.Len(t, b.Items, 1)
	assert.Equal(t, "color", b.Declarations()[0].Name)
}

func TestAtRule_Is(t *testing.T) {
	assert.True(t, (&AtRule{Name: "keyframes"}).Is("keyframes"))
	assert.True(t, (&AtRule{Name: "-webkit-keyframes"}).Is("keyframes"))
	assert.True(t, (&AtRule{Name: "KEYFRAMES"}).Is("keyframes"))
	assert.False(t, (&AtRule{Name: "media"}).Is("keyframes"))
}

func TestDeclaration_Property(t *testing.T) {
	assert.Equal(t, "color", (&Declaration{Name: "COLOR"}).Property())
	assert.Equal(t, "--Brand", (&Declaration{Name: "--Brand"}).Property())
}

func TestSelectorList_String(t *testing.T) {
	list := SelectorList{
		{Compounds: []*CompoundSelector{
			{Type: &TypeSelector{Name: "a"}, Subclasses: []Subclass{&ClassSelector{Name: "x"}}},
			{Combinator: CombinatorChild, Subclasses: []Subclass{&IDSelector{Name: "y"}}},
			{Combinator: CombinatorDescendant, Subclasses: []Subclass{
				&PseudoClassSelector{Name: "not", Functional: true, Selectors: SelectorList{{
					Compounds: []*CompoundSelector{{Subclasses: []Subclass{&ClassSelector{Name: "z"}}}},
				}}},
			}},
		}},
		{Compounds: []*CompoundSelector{
			{Subclasses: []Subclass{&AttributeSelector{Name: "href", Op: "^=", Value: "http", Quoted: true}}},
		}},
	}
	assert.Equal(t, `a.x > #y :not(.z), [href^="http"]`, list.String())
}

func TestComplexSelector_SingleClass(t *testing.T) {
	rule := classRule("card")
	cls, ok := rule.Selectors[0].SingleClass()
	require.True(t, ok)
	assert.Equal(t, "card", cls.Name)

	compound := &ComplexSelector{Compounds: []*CompoundSelector{
		{Type: &TypeSelector{Name: "div"}, Subclasses: []Subclass{&ClassSelector{Name: "card"}}},
	}}
	_, ok = compound.SingleClass()
	assert.False(t, ok)
}

func TestWalkSelectors_VisitsPseudoArguments(t *testing.T) {
	list := SelectorList{{Compounds: []*CompoundSelector{{
		Subclasses: []Subclass{&PseudoClassSelector{Name: "is", Functional: true, Selectors: SelectorList{
			{Compounds: []*CompoundSelector{{Subclasses: []Subclass{&ClassSelector{Name: "a"}}}}},
		}}},
	}}}}

	n := 0
	WalkSelectors(list, func(*CompoundSelector) { n++ })
	assert.Equal(t, 2, n)
}

func TestComponentValue_String(t *testing.T) {
	v := ComponentValue{
		Token: token.Token{Kind: token.Function, Value: "rgb"},
		Children: []ComponentValue{
			{Token: token.Token{Kind: token.Number, Value: "1"}},
			{Token: token.Token{Kind: token.Comma}},
			{Token: token.Token{Kind: token.Number, Value: "2"}},
		},
	}
	assert.Equal(t, "rgb(1,2)", v.String())
	assert.True(t, v.IsFunction("RGB"))
	assert.False(t, v.IsBlock())
}

func TestTrimWhitespace(t *testing.T) {
	ws := ComponentValue{Token: token.Token{Kind: token.Whitespace}}
	id := ComponentValue{Token: token.Token{Kind: token.Ident, Value: "a"}}
	got := TrimWhitespace([]ComponentValue{ws, id, ws})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Token.Value)
}

func TestSelectorList_CloneIsDeep(t *testing.T) {
	inner := &ClassSelector{Name: "b"}
	orig := SelectorList{{Compounds: []*CompoundSelector{{
		Type: &TypeSelector{Name: "a"},
		Subclasses: []Subclass{
			&ClassSelector{Name: "x"},
			&PseudoClassSelector{Name: "not", Functional: true, Selectors: SelectorList{{
				Compounds: []*CompoundSelector{{Subclasses: []Subclass{inner}}},
			}}},
		},
	}}}}

	cp := orig.Clone()
	cp[0].Compounds[0].Type.Name = "div"
	cp[0].Compounds[0].Subclasses[0].(*ClassSelector).Name = "y"
	cp[0].Compounds[0].Subclasses[1].(*PseudoClassSelector).Selectors[0].Compounds[0].Subclasses[0].(*ClassSelector).Name = "c"

	assert.Equal(t, "a.x:not(.b)", orig.String())
	assert.Equal(t, "div.y:not(.c)", cp.String())
	assert.Equal(t, "b", inner.Name)
}

func ident(v string) ComponentValue {
	return ComponentValue{Token: token.Token{Kind: token.Ident, Value: v}}
}

func TestFormat(t *testing.T) {
	rule := classRule("a", &Declaration{Name: "color", Value: []ComponentValue{ident("red")}, Important: true})
	media := &AtRule{
		Name:    "media",
		Prelude: []ComponentValue{{Token: token.Token{Kind: token.Whitespace}}, ident("print")},
		Block:   &Block{Items: []Item{classRule("b")}},
	}
	charset := &AtRule{Name: "charset", Prelude: []ComponentValue{{Token: token.Token{Kind: token.String, Value: "utf-8"}}}}
	ss := &Stylesheet{Rules: []Rule{charset, rule, media}}

	want := "@charset \"utf-8\";\n" +
		"\n" +
		".a {\n  color: red !important;\n}\n" +
		"\n" +
		"@media print {\n  .b {}\n}\n"
	assert.Equal(t, want, Format(ss))
}
