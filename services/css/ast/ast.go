// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast declares the syntax tree produced by the CSS parsers.
//
// The tree is mutable: transforms and the module renamer rewrite it in
// place before a parse outcome is published. After publication it must be
// treated as read-only.
package ast

import (
	"strings"

	"github.com/AleutianAI/cssmodules/services/css/token"
)

// Node is implemented by every tree node.
type Node interface {
	Span() token.Span
}

// Item is a member of a Block: a *Declaration, *QualifiedRule or *AtRule.
type Item interface {
	Node
	item()
}

// Rule is a *QualifiedRule or an *AtRule.
type Rule interface {
	Item
	rule()
}

// Stylesheet is the root of a parsed file.
type Stylesheet struct {
	Rules []Rule
	Loc   token.Span
}

func (s *Stylesheet) Span() token.Span { return s.Loc }

// QualifiedRule is a prelude followed by a block, such as a style rule or a
// keyframe stop.
type QualifiedRule struct {
	// Prelude holds the raw component values before the block.
	Prelude []ComponentValue

	// Selectors is the parsed prelude for style rules. It is nil for rules
	// whose prelude is not a selector, like "from" or "50%" in @keyframes.
	Selectors SelectorList

	Block *Block
	Loc   token.Span
}

func (r *QualifiedRule) Span() token.Span { return r.Loc }
func (*QualifiedRule) item()              {}
func (*QualifiedRule) rule()              {}

// AtRule is an at-rule such as @media or @keyframes. Block is nil for
// statement at-rules terminated by a semicolon.
type AtRule struct {
	// Name is the keyword as written, without the '@'.
	Name    string
	NameLoc token.Span
	Prelude []ComponentValue
	Block   *Block
	Loc     token.Span
}

func (r *AtRule) Span() token.Span { return r.Loc }
func (*AtRule) item()              {}
func (*AtRule) rule()              {}

// Is reports whether the at-rule has the given name, ignoring case and
// vendor prefixes such as "-webkit-".
func (r *AtRule) Is(name string) bool {
	n := r.Name
	if strings.HasPrefix(n, "-") {
		if i := strings.Index(n[1:], "-"); i >= 0 {
			n = n[i+2:]
		}
	}
	return strings.EqualFold(n, name)
}

// Block is a curly-brace block of declarations and nested rules.
type Block struct {
	Items []Item
	Loc   token.Span
}

func (b *Block) Span() token.Span { return b.Loc }

// Declarations returns the declarations of the block in order.
func (b *Block) Declarations() []*Declaration {
	var out []*Declaration
	for _, it := range b.Items {
		if d, ok := it.(*Declaration); ok {
			out = append(out, d)
		}
	}
	return out
}

// Filter keeps only the items for which keep returns true.
func (b *Block) Filter(keep func(Item) bool) {
	out := b.Items[:0]
	for _, it := range b.Items {
		if keep(it) {
			out = append(out, it)
		}
	}
	for i := len(out); i < len(b.Items); i++ {
		b.Items[i] = nil
	}
	b.Items = out
}

// Declaration is a property/value pair.
type Declaration struct {
	Name      string
	NameLoc   token.Span
	Value     []ComponentValue
	Important bool

	// Composes is set for "composes" declarations parsed in CSS Modules
	// mode. Value still holds the raw tokens.
	Composes *Composes

	Loc token.Span
}

func (d *Declaration) Span() token.Span { return d.Loc }
func (*Declaration) item()              {}

// Property returns the lowercase property name. Custom properties are
// returned unchanged since they are case-sensitive.
func (d *Declaration) Property() string {
	if strings.HasPrefix(d.Name, "--") {
		return d.Name
	}
	return strings.ToLower(d.Name)
}

// ComposesSource says where composed class names come from.
type ComposesSource uint8

const (
	// ComposesLocal composes classes of the same file.
	ComposesLocal ComposesSource = iota

	// ComposesGlobal composes global class names ("from global").
	ComposesGlobal

	// ComposesModule composes classes exported by another module
	// ("from "./other.css"").
	ComposesModule
)

// Composes is the structured form of a CSS Modules "composes" value.
type Composes struct {
	Names     []Ident
	Source    ComposesSource
	Specifier string
	Loc       token.Span
}

// Ident is a name with its location.
type Ident struct {
	Name string
	Loc  token.Span
}

// ComponentValue is a preserved token, a function, or a simple block.
//
// For functions Token.Kind is token.Function and Token.Value the function
// name. For simple blocks Token.Kind is the opening bracket. Children holds
// the contents of functions and blocks.
type ComponentValue struct {
	Token    token.Token
	Children []ComponentValue
	Loc      token.Span
}

func (v *ComponentValue) Span() token.Span { return v.Loc }

// IsFunction reports whether v is a function with the given name (case
// insensitive). An empty name matches any function.
func (v *ComponentValue) IsFunction(name string) bool {
	return v.Token.Kind == token.Function && (name == "" || strings.EqualFold(v.Token.Value, name))
}

// IsBlock reports whether v is a (), [] or {} block.
func (v *ComponentValue) IsBlock() bool {
	switch v.Token.Kind {
	case token.LParen, token.LBrack, token.LBrace:
		return true
	}
	return false
}

// String renders the component value for diagnostics and debugging.
func (v *ComponentValue) String() string {
	var sb strings.Builder
	writeValue(&sb, v)
	return sb.String()
}

// ValuesString renders a component value list for diagnostics and
// debugging.
func ValuesString(values []ComponentValue) string {
	var sb strings.Builder
	for i := range values {
		writeValue(&sb, &values[i])
	}
	return sb.String()
}

func writeValue(sb *strings.Builder, v *ComponentValue) {
	switch {
	case v.Token.Kind == token.Function:
		sb.WriteString(v.Token.Value)
		sb.WriteByte('(')
		for i := range v.Children {
			writeValue(sb, &v.Children[i])
		}
		sb.WriteByte(')')
	case v.IsBlock():
		sb.WriteString(v.Token.String())
		for i := range v.Children {
			writeValue(sb, &v.Children[i])
		}
		sb.WriteString(token.Token{Kind: v.Token.Kind.Closing()}.String())
	default:
		sb.WriteString(v.Token.String())
	}
}

// TrimWhitespace returns values without leading and trailing whitespace.
func TrimWhitespace(values []ComponentValue) []ComponentValue {
	for len(values) > 0 && values[0].Token.Kind == token.Whitespace {
		values = values[1:]
	}
	for len(values) > 0 && values[len(values)-1].Token.Kind == token.Whitespace {
		values = values[:len(values)-1]
	}
	return values
}

// SpanOf returns the span covering a list of component values.
func SpanOf(values []ComponentValue) token.Span {
	var s token.Span
	for i := range values {
		s = s.Join(values[i].Loc)
	}
	return s
}
