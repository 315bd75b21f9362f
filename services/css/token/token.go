// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package token defines CSS lexical tokens, source positions and the
// source map that resolves positions back to file, line and column.
package token

import "fmt"

// Kind identifies the lexical class of a Token.
type Kind uint8

const (
	EOF Kind = iota
	Whitespace
	Ident
	Function
	AtKeyword
	Hash
	String
	BadString
	URL
	BadURL
	Delim
	Number
	Percentage
	Dimension
	CDO
	CDC
	Colon
	Semicolon
	Comma
	LBrack
	RBrack
	LParen
	RParen
	LBrace
	RBrace
)

var kindNames = [...]string{
	EOF:        "EOF",
	Whitespace: "whitespace",
	Ident:      "ident",
	Function:   "function",
	AtKeyword:  "at-keyword",
	Hash:       "hash",
	String:     "string",
	BadString:  "bad-string",
	URL:        "url",
	BadURL:     "bad-url",
	Delim:      "delim",
	Number:     "number",
	Percentage: "percentage",
	Dimension:  "dimension",
	CDO:        "<!--",
	CDC:        "-->",
	Colon:      "':'",
	Semicolon:  "';'",
	Comma:      "','",
	LBrack:     "'['",
	RBrack:     "']'",
	LParen:     "'('",
	RParen:     "')'",
	LBrace:     "'{'",
	RBrace:     "'}'",
}

// String returns a human-readable name used in diagnostics.
func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Closing returns the kind that closes an opening bracket kind, or EOF
// when k does not open a block.
func (k Kind) Closing() Kind {
	switch k {
	case LBrack:
		return RBrack
	case LParen, Function:
		return RParen
	case LBrace:
		return RBrace
	default:
		return EOF
	}
}

// Pos is a position in the global offset space of a SourceMap.
//
// Each file registered in a SourceMap owns the half-open range
// [File.Base(), File.Base()+File.Size()]. NoPos is never inside a file.
type Pos int

// NoPos is the zero Pos; it is not associated with any file.
const NoPos Pos = 0

// IsValid reports whether the position belongs to some file.
func (p Pos) IsValid() bool {
	return p != NoPos
}

// Span is a half-open range [Start, End) of positions.
type Span struct {
	Start Pos
	End   Pos
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return int(s.End - s.Start)
}

// Join returns the smallest span covering both s and o. Invalid spans are
// ignored.
func (s Span) Join(o Span) Span {
	if !s.Start.IsValid() {
		return o
	}
	if !o.Start.IsValid() {
		return s
	}
	out := s
	if o.Start < out.Start {
		out.Start = o.Start
	}
	if o.End > out.End {
		out.End = o.End
	}
	return out
}

// HashType distinguishes hash tokens that are valid identifiers ("id")
// from those that are not ("unrestricted"), such as "#123".
type HashType uint8

const (
	HashUnrestricted HashType = iota
	HashID
)

// Token is a single lexical token.
//
// Value holds the decoded payload: the name for Ident, Function, AtKeyword
// and Hash (without the leading '@' or '#' or trailing '('), the unquoted
// contents for String and URL, the rune for Delim, and the numeric text for
// Number, Percentage and Dimension. Unit is set for Dimension only.
type Token struct {
	Kind     Kind
	Value    string
	Unit     string
	HashType HashType
	Span     Span
}

// IsDelim reports whether the token is the delimiter r.
func (t Token) IsDelim(r byte) bool {
	return t.Kind == Delim && len(t.Value) == 1 && t.Value[0] == r
}

// String renders the token approximately as it appears in source. It is
// used for diagnostics and for debugging dumps, not for code generation.
func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "end of file"
	case Whitespace:
		return " "
	case Function:
		return t.Value + "("
	case AtKeyword:
		return "@" + t.Value
	case Hash:
		return "#" + t.Value
	case String, BadString:
		return fmt.Sprintf("%q", t.Value)
	case URL, BadURL:
		return "url(" + t.Value + ")"
	case Percentage:
		return t.Value + "%"
	case Dimension:
		return t.Value + t.Unit
	case CDO:
		return "<!--"
	case CDC:
		return "-->"
	case Colon:
		return ":"
	case Semicolon:
		return ";"
	case Comma:
		return ","
	case LBrack:
		return "["
	case RBrack:
		return "]"
	case LParen:
		return "("
	case RParen:
		return ")"
	case LBrace:
		return "{"
	case RBrace:
		return "}"
	default:
		return t.Value
	}
}
