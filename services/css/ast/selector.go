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
	"strconv"
	"strings"

	"github.com/AleutianAI/cssmodules/services/css/token"
)

// SelectorList is a comma-separated list of complex selectors.
type SelectorList []*ComplexSelector

// ComplexSelector is a sequence of compound selectors joined by
// combinators.
type ComplexSelector struct {
	Compounds []*CompoundSelector
	Loc       token.Span
}

func (s *ComplexSelector) Span() token.Span { return s.Loc }

// Combinator joins a compound selector to the one before it.
type Combinator uint8

const (
	// CombinatorNone is used for the first compound of a complex selector
	// and for relative selectors with an implicit combinator.
	CombinatorNone Combinator = iota
	CombinatorDescendant
	CombinatorChild
	CombinatorNextSibling
	CombinatorSubsequentSibling
)

// String returns the combinator as written in source.
func (c Combinator) String() string {
	switch c {
	case CombinatorDescendant:
		return " "
	case CombinatorChild:
		return ">"
	case CombinatorNextSibling:
		return "+"
	case CombinatorSubsequentSibling:
		return "~"
	default:
		return ""
	}
}

// CompoundSelector is an optional type selector followed by subclass
// selectors, all applying to the same element.
type CompoundSelector struct {
	Combinator Combinator
	Type       *TypeSelector
	Subclasses []Subclass
	Loc        token.Span
}

func (s *CompoundSelector) Span() token.Span { return s.Loc }

// IsEmpty reports whether the compound has neither a type nor subclasses.
func (s *CompoundSelector) IsEmpty() bool {
	return s.Type == nil && len(s.Subclasses) == 0
}

// TypeSelector is an element name or the universal selector "*", with an
// optional namespace prefix.
type TypeSelector struct {
	Namespace    string
	HasNamespace bool
	Name         string
	Loc          token.Span
}

func (s *TypeSelector) Span() token.Span { return s.Loc }

// Subclass is a selector that refines a compound: *ClassSelector,
// *IDSelector, *AttributeSelector, *PseudoClassSelector,
// *PseudoElementSelector or *NestingSelector.
type Subclass interface {
	Node
	subclass()
}

// ClassSelector is ".name".
type ClassSelector struct {
	Name string
	Loc  token.Span
}

// IDSelector is "#name".
type IDSelector struct {
	Name string
	Loc  token.Span
}

// AttributeSelector is "[name op value modifier]".
type AttributeSelector struct {
	Name     string
	Op       string
	Value    string
	Quoted   bool
	Modifier string
	Loc      token.Span
}

// PseudoClassSelector is ":name" or ":name(args)".
//
// Selectors is set for pseudo-classes whose argument is a selector list
// (":not", ":is", ":where", ":has", and in CSS Modules mode ":local" and
// ":global"). Args holds the raw argument tokens of every functional
// pseudo-class.
type PseudoClassSelector struct {
	Name       string
	Functional bool
	Selectors  SelectorList
	Args       []ComponentValue
	Loc        token.Span
}

// PseudoElementSelector is "::name" or "::name(args)".
type PseudoElementSelector struct {
	Name       string
	Functional bool
	Args       []ComponentValue
	Loc        token.Span
}

// NestingSelector is "&".
type NestingSelector struct {
	Loc token.Span
}

func (s *ClassSelector) Span() token.Span         { return s.Loc }
func (s *IDSelector) Span() token.Span            { return s.Loc }
func (s *AttributeSelector) Span() token.Span     { return s.Loc }
func (s *PseudoClassSelector) Span() token.Span   { return s.Loc }
func (s *PseudoElementSelector) Span() token.Span { return s.Loc }
func (s *NestingSelector) Span() token.Span       { return s.Loc }

func (*ClassSelector) subclass()         {}
func (*IDSelector) subclass()            {}
func (*AttributeSelector) subclass()     {}
func (*PseudoClassSelector) subclass()   {}
func (*PseudoElementSelector) subclass() {}
func (*NestingSelector) subclass()       {}

// Is reports whether the pseudo-class has the given name, ignoring case.
func (s *PseudoClassSelector) Is(name string) bool {
	return strings.EqualFold(s.Name, name)
}

// SingleClass returns the class name when the complex selector is exactly
// one class selector, like ".card".
func (s *ComplexSelector) SingleClass() (*ClassSelector, bool) {
	if len(s.Compounds) != 1 {
		return nil, false
	}
	c := s.Compounds[0]
	if c.Type != nil || len(c.Subclasses) != 1 {
		return nil, false
	}
	cls, ok := c.Subclasses[0].(*ClassSelector)
	return cls, ok
}

// HasNesting reports whether any compound contains "&", not counting
// selector arguments of pseudo-classes.
func (s *ComplexSelector) HasNesting() bool {
	for _, c := range s.Compounds {
		for _, sub := range c.Subclasses {
			if _, ok := sub.(*NestingSelector); ok {
				return true
			}
		}
	}
	return false
}

// String renders the selector list in a normalized form. It is used for
// debugging and tests.
func (l SelectorList) String() string {
	parts := make([]string, len(l))
	for i, s := range l {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

// String renders the complex selector in a normalized form.
func (s *ComplexSelector) String() string {
	var sb strings.Builder
	for i, c := range s.Compounds {
		if i > 0 || c.Combinator != CombinatorNone {
			switch c.Combinator {
			case CombinatorDescendant:
				sb.WriteByte(' ')
			case CombinatorNone:
			default:
				if i > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(c.Combinator.String())
				sb.WriteByte(' ')
			}
		}
		c.write(&sb)
	}
	return sb.String()
}

// String renders the compound selector without its combinator.
func (s *CompoundSelector) String() string {
	var sb strings.Builder
	s.write(&sb)
	return sb.String()
}

func (s *CompoundSelector) write(sb *strings.Builder) {
	if t := s.Type; t != nil {
		if t.HasNamespace {
			sb.WriteString(t.Namespace)
			sb.WriteByte('|')
		}
		sb.WriteString(t.Name)
	}
	for _, sub := range s.Subclasses {
		switch v := sub.(type) {
		case *ClassSelector:
			sb.WriteByte('.')
			sb.WriteString(v.Name)
		case *IDSelector:
			sb.WriteByte('#')
			sb.WriteString(v.Name)
		case *AttributeSelector:
			sb.WriteByte('[')
			sb.WriteString(v.Name)
			if v.Op != "" {
				sb.WriteString(v.Op)
				if v.Quoted {
					sb.WriteString(strconv.Quote(v.Value))
				} else {
					sb.WriteString(v.Value)
				}
			}
			if v.Modifier != "" {
				sb.WriteByte(' ')
				sb.WriteString(v.Modifier)
			}
			sb.WriteByte(']')
		case *PseudoClassSelector:
			sb.WriteByte(':')
			sb.WriteString(v.Name)
			if v.Functional {
				sb.WriteByte('(')
				if v.Selectors != nil {
					sb.WriteString(v.Selectors.String())
				} else {
					sb.WriteString(strings.TrimSpace(ValuesString(v.Args)))
				}
				sb.WriteByte(')')
			}
		case *PseudoElementSelector:
			sb.WriteString("::")
			sb.WriteString(v.Name)
			if v.Functional {
				sb.WriteByte('(')
				sb.WriteString(strings.TrimSpace(ValuesString(v.Args)))
				sb.WriteByte(')')
			}
		case *NestingSelector:
			sb.WriteByte('&')
		}
	}
}

// Clone returns a deep copy of the list.
func (l SelectorList) Clone() SelectorList {
	if l == nil {
		return nil
	}
	out := make(SelectorList, len(l))
	for i, s := range l {
		out[i] = s.Clone()
	}
	return out
}

// Clone returns a deep copy of the selector.
func (s *ComplexSelector) Clone() *ComplexSelector {
	out := &ComplexSelector{Loc: s.Loc, Compounds: make([]*CompoundSelector, len(s.Compounds))}
	for i, c := range s.Compounds {
		out.Compounds[i] = c.Clone()
	}
	return out
}

// Clone returns a deep copy of the compound selector.
func (s *CompoundSelector) Clone() *CompoundSelector {
	out := &CompoundSelector{Combinator: s.Combinator, Loc: s.Loc}
	if s.Type != nil {
		t := *s.Type
		out.Type = &t
	}
	if s.Subclasses != nil {
		out.Subclasses = make([]Subclass, len(s.Subclasses))
		for i, sub := range s.Subclasses {
			out.Subclasses[i] = cloneSubclass(sub)
		}
	}
	return out
}

func cloneSubclass(sub Subclass) Subclass {
	switch v := sub.(type) {
	case *ClassSelector:
		c := *v
		return &c
	case *IDSelector:
		c := *v
		return &c
	case *AttributeSelector:
		c := *v
		return &c
	case *PseudoClassSelector:
		c := *v
		c.Selectors = v.Selectors.Clone()
		c.Args = append([]ComponentValue(nil), v.Args...)
		return &c
	case *PseudoElementSelector:
		c := *v
		c.Args = append([]ComponentValue(nil), v.Args...)
		return &c
	case *NestingSelector:
		c := *v
		return &c
	}
	return sub
}
