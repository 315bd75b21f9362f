// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scanner implements a CSS Syntax Level 3 tokenizer.
//
// The scanner never fails. Malformed input (unterminated strings and
// comments, bad url() tokens, invalid escapes) is reported through an
// ErrorHandler and tokenization continues with the recovery the CSS syntax
// specification prescribes.
package scanner

import (
	"strings"
	"unicode/utf8"

	"github.com/AleutianAI/cssmodules/services/css/token"
)

// ErrorHandler receives lexical errors. It may be nil.
type ErrorHandler func(span token.Span, msg string)

// Scanner tokenizes a range of a token.File.
//
// Thread Safety:
//
//	Not safe for concurrent use. Create one Scanner per goroutine.
type Scanner struct {
	file *token.File
	src  string
	off  int
	end  int
	err  ErrorHandler

	// ErrorCount is the number of errors reported so far.
	ErrorCount int
}

// New returns a scanner over the whole file.
func New(file *token.File, err ErrorHandler) *Scanner {
	return NewRange(file, 0, file.Size(), err)
}

// NewRange returns a scanner over file bytes [start, end). Token spans are
// still expressed in the file's global positions.
func NewRange(file *token.File, start, end int, err ErrorHandler) *Scanner {
	if start < 0 {
		start = 0
	}
	if end > file.Size() {
		end = file.Size()
	}
	if end < start {
		end = start
	}
	return &Scanner{file: file, src: file.Content(), off: start, end: end, err: err}
}

// Tokenize returns every token of the file up to but excluding EOF.
func Tokenize(file *token.File, err ErrorHandler) []token.Token {
	s := New(file, err)
	var out []token.Token
	for {
		tok := s.Next()
		if tok.Kind == token.EOF {
			return out
		}
		out = append(out, tok)
	}
}

// Offset returns the current file-local byte offset.
func (s *Scanner) Offset() int {
	return s.off
}

func (s *Scanner) error(start, end int, msg string) {
	s.ErrorCount++
	if s.err != nil {
		s.err(token.Span{Start: s.file.Pos(start), End: s.file.Pos(end)}, msg)
	}
}

func (s *Scanner) make(kind token.Kind, start int, value string) token.Token {
	return token.Token{
		Kind:  kind,
		Value: value,
		Span:  token.Span{Start: s.file.Pos(start), End: s.file.Pos(s.off)},
	}
}

// at returns the byte at off+i, or 0 past the end of the range.
func (s *Scanner) at(i int) byte {
	if s.off+i >= s.end {
		return 0
	}
	return s.src[s.off+i]
}

// Next returns the next token. After the end of input it keeps returning
// EOF.
func (s *Scanner) Next() token.Token {
	for {
		if s.off >= s.end {
			return s.make(token.EOF, s.off, "")
		}
		if s.at(0) == '/' && s.at(1) == '*' {
			s.skipComment()
			continue
		}
		break
	}

	start := s.off
	c := s.at(0)

	switch {
	case isWhitespace(c):
		for s.off < s.end && isWhitespace(s.at(0)) {
			s.off++
		}
		return s.make(token.Whitespace, start, " ")

	case c == '"' || c == '\'':
		return s.scanString(c)

	case c == '#':
		if isName(s.runeAt(1)) || s.validEscapeAt(1) {
			s.off++
			typ := token.HashUnrestricted
			if s.startsIdentAt(0) {
				typ = token.HashID
			}
			name := s.scanName()
			tok := s.make(token.Hash, start, name)
			tok.HashType = typ
			return tok
		}

	case c == '(':
		s.off++
		return s.make(token.LParen, start, "(")
	case c == ')':
		s.off++
		return s.make(token.RParen, start, ")")
	case c == '[':
		s.off++
		return s.make(token.LBrack, start, "[")
	case c == ']':
		s.off++
		return s.make(token.RBrack, start, "]")
	case c == '{':
		s.off++
		return s.make(token.LBrace, start, "{")
	case c == '}':
		s.off++
		return s.make(token.RBrace, start, "}")
	case c == ',':
		s.off++
		return s.make(token.Comma, start, ",")
	case c == ':':
		s.off++
		return s.make(token.Colon, start, ":")
	case c == ';':
		s.off++
		return s.make(token.Semicolon, start, ";")

	case c == '+' || c == '.':
		if s.startsNumberAt(0) {
			return s.scanNumeric()
		}

	case c == '-':
		if s.startsNumberAt(0) {
			return s.scanNumeric()
		}
		if s.at(1) == '-' && s.at(2) == '>' {
			s.off += 3
			return s.make(token.CDC, start, "-->")
		}
		if s.startsIdentAt(0) {
			return s.scanIdentLike()
		}

	case c == '<':
		if s.at(1) == '!' && s.at(2) == '-' && s.at(3) == '-' {
			s.off += 4
			return s.make(token.CDO, start, "<!--")
		}

	case c == '@':
		if s.startsIdentAt(1) {
			s.off++
			name := s.scanName()
			return s.make(token.AtKeyword, start, name)
		}

	case c == '\\':
		if s.validEscapeAt(0) {
			return s.scanIdentLike()
		}
		s.error(start, start+1, "invalid escape sequence")

	case isDigit(c):
		return s.scanNumeric()

	case isNameStart(s.runeAt(0)):
		return s.scanIdentLike()
	}

	_, size := s.decodeRune()
	s.off += size
	return s.make(token.Delim, start, s.src[start:s.off])
}

func (s *Scanner) skipComment() {
	start := s.off
	s.off += 2
	idx := strings.Index(s.src[s.off:s.end], "*/")
	if idx < 0 {
		s.off = s.end
		s.error(start, s.end, "unterminated comment")
		return
	}
	s.off += idx + 2
}

func (s *Scanner) scanString(quote byte) token.Token {
	start := s.off
	s.off++
	var sb strings.Builder
	for {
		if s.off >= s.end {
			s.error(start, s.off, "unterminated string")
			return s.make(token.String, start, sb.String())
		}
		c := s.at(0)
		switch {
		case c == quote:
			s.off++
			return s.make(token.String, start, sb.String())
		case isNewline(c):
			s.error(start, s.off, "unterminated string")
			return s.make(token.BadString, start, sb.String())
		case c == '\\':
			next := s.at(1)
			switch {
			case s.off+1 >= s.end:
				s.off++
			case isNewline(next):
				s.off += 2
				if next == '\r' && s.at(0) == '\n' {
					s.off++
				}
			default:
				s.off++
				sb.WriteRune(s.consumeEscape())
			}
		default:
			r, size := s.decodeRune()
			sb.WriteRune(r)
			s.off += size
		}
	}
}

func (s *Scanner) scanNumeric() token.Token {
	start := s.off
	if c := s.at(0); c == '+' || c == '-' {
		s.off++
	}
	for isDigit(s.at(0)) {
		s.off++
	}
	if s.at(0) == '.' && isDigit(s.at(1)) {
		s.off += 2
		for isDigit(s.at(0)) {
			s.off++
		}
	}
	if c := s.at(0); c == 'e' || c == 'E' {
		if isDigit(s.at(1)) {
			s.off += 2
			for isDigit(s.at(0)) {
				s.off++
			}
		} else if (s.at(1) == '+' || s.at(1) == '-') && isDigit(s.at(2)) {
			s.off += 3
			for isDigit(s.at(0)) {
				s.off++
			}
		}
	}
	repr := s.src[start:s.off]

	if s.startsIdentAt(0) {
		unit := s.scanName()
		tok := s.make(token.Dimension, start, repr)
		tok.Unit = unit
		return tok
	}
	if s.at(0) == '%' {
		s.off++
		return s.make(token.Percentage, start, repr)
	}
	return s.make(token.Number, start, repr)
}

func (s *Scanner) scanIdentLike() token.Token {
	start := s.off
	name := s.scanName()

	if s.at(0) != '(' {
		return s.make(token.Ident, start, name)
	}

	if strings.EqualFold(name, "url") {
		s.off++
		// url( followed by a quote is an ordinary function call.
		i := 0
		for isWhitespace(s.at(i)) {
			i++
		}
		if q := s.at(i); q == '"' || q == '\'' {
			return s.make(token.Function, start, name)
		}
		s.off += i
		return s.scanURL(start)
	}

	s.off++
	return s.make(token.Function, start, name)
}

func (s *Scanner) scanURL(start int) token.Token {
	var sb strings.Builder
	for {
		if s.off >= s.end {
			s.error(start, s.off, "unterminated url()")
			return s.make(token.URL, start, sb.String())
		}
		c := s.at(0)
		switch {
		case c == ')':
			s.off++
			return s.make(token.URL, start, sb.String())
		case isWhitespace(c):
			for isWhitespace(s.at(0)) {
				s.off++
			}
			if s.at(0) == ')' {
				s.off++
				return s.make(token.URL, start, sb.String())
			}
			if s.off >= s.end {
				s.error(start, s.off, "unterminated url()")
				return s.make(token.URL, start, sb.String())
			}
			return s.badURL(start)
		case c == '"' || c == '\'' || c == '(' || isNonPrintable(c):
			return s.badURL(start)
		case c == '\\':
			if !s.validEscapeAt(0) {
				return s.badURL(start)
			}
			s.off++
			sb.WriteRune(s.consumeEscape())
		default:
			r, size := s.decodeRune()
			sb.WriteRune(r)
			s.off += size
		}
	}
}

// badURL consumes the remnants of a bad url() up to the closing paren.
func (s *Scanner) badURL(start int) token.Token {
	for s.off < s.end {
		c := s.at(0)
		if c == ')' {
			s.off++
			break
		}
		if s.validEscapeAt(0) {
			s.off++
			s.consumeEscape()
			continue
		}
		s.off++
	}
	s.error(start, s.off, "malformed url()")
	return s.make(token.BadURL, start, s.src[start:s.off])
}

func (s *Scanner) scanName() string {
	var sb strings.Builder
	for s.off < s.end {
		r, size := s.decodeRune()
		switch {
		case isName(r):
			sb.WriteRune(r)
			s.off += size
		case s.validEscapeAt(0):
			s.off++
			sb.WriteRune(s.consumeEscape())
		default:
			return sb.String()
		}
	}
	return sb.String()
}

// consumeEscape decodes an escape whose backslash was already consumed.
func (s *Scanner) consumeEscape() rune {
	if s.off >= s.end {
		return utf8.RuneError
	}
	if isHexDigit(s.at(0)) {
		var v rune
		n := 0
		for n < 6 && isHexDigit(s.at(0)) {
			v = v*16 + hexValue(s.at(0))
			s.off++
			n++
		}
		if isWhitespace(s.at(0)) {
			if s.at(0) == '\r' && s.at(1) == '\n' {
				s.off++
			}
			s.off++
		}
		if v == 0 || (v >= 0xD800 && v <= 0xDFFF) || v > utf8.MaxRune {
			return utf8.RuneError
		}
		return v
	}
	r, size := s.decodeRune()
	s.off += size
	return r
}

func (s *Scanner) decodeRune() (rune, int) {
	if s.off >= s.end {
		return 0, 0
	}
	c := s.src[s.off]
	if c < utf8.RuneSelf {
		return rune(c), 1
	}
	return utf8.DecodeRuneInString(s.src[s.off:s.end])
}

func (s *Scanner) runeAt(i int) rune {
	if s.off+i >= s.end {
		return 0
	}
	c := s.src[s.off+i]
	if c < utf8.RuneSelf {
		return rune(c)
	}
	r, _ := utf8.DecodeRuneInString(s.src[s.off+i : s.end])
	return r
}

func (s *Scanner) validEscapeAt(i int) bool {
	return s.at(i) == '\\' && s.off+i+1 < s.end && !isNewline(s.at(i+1))
}

func (s *Scanner) startsIdentAt(i int) bool {
	switch c := s.at(i); {
	case c == '-':
		return isNameStart(s.runeAt(i+1)) || s.at(i+1) == '-' || s.validEscapeAt(i+1)
	case c == '\\':
		return s.validEscapeAt(i)
	default:
		return isNameStart(s.runeAt(i))
	}
}

func (s *Scanner) startsNumberAt(i int) bool {
	switch c := s.at(i); {
	case c == '+' || c == '-':
		return isDigit(s.at(i+1)) || (s.at(i+1) == '.' && isDigit(s.at(i+2)))
	case c == '.':
		return isDigit(s.at(i + 1))
	default:
		return isDigit(c)
	}
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || isNewline(c)
}

func isNewline(c byte) bool {
	return c == '\n' || c == '\r' || c == '\f'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexValue(c byte) rune {
	switch {
	case c >= 'a':
		return rune(c-'a') + 10
	case c >= 'A':
		return rune(c-'A') + 10
	default:
		return rune(c - '0')
	}
}

func isNameStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r >= utf8.RuneSelf
}

func isName(r rune) bool {
	return isNameStart(r) || (r >= '0' && r <= '9') || r == '-'
}

func isNonPrintable(c byte) bool {
	return c <= 0x08 || c == 0x0B || (c >= 0x0E && c <= 0x1F) || c == 0x7F
}
