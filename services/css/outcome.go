// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package css

import (
	"fmt"

	"github.com/AleutianAI/cssmodules/services/css/ast"
	"github.com/AleutianAI/cssmodules/services/css/modules"
	"github.com/AleutianAI/cssmodules/services/css/token"
)

// OutcomeKind tags a ParseOutcome.
type OutcomeKind uint8

const (
	// OutcomeParsed carries a tree, its source map, imports and exports.
	OutcomeParsed OutcomeKind = iota

	// OutcomeUnparseable means the source exists but could not be decoded
	// or parsed, or is a redirect.
	OutcomeUnparseable

	// OutcomeNotFound means the source does not exist.
	OutcomeNotFound
)

// String returns "parsed", "unparseable" or "not_found".
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeParsed:
		return "parsed"
	case OutcomeUnparseable:
		return "unparseable"
	case OutcomeNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("outcome(%d)", k)
	}
}

// ParseOutcome is the result of parsing one stylesheet.
//
// Description:
//
//	Exactly one of three forms. Parsed holds the transformed tree and the
//	source map it was parsed into, the composition imports and the sorted
//	exports; for global stylesheets imports and exports are empty.
//	Unparseable and NotFound carry nothing.
//
// Thread Safety:
//
//	A ParseOutcome is immutable once returned. Callers must not modify the
//	tree or source map. Imports and Exports return copies.
type ParseOutcome struct {
	kind       OutcomeKind
	stylesheet *ast.Stylesheet
	sourceMap  *token.SourceMap
	imports    []string
	exports    modules.Exports
}

// NewParsed returns a Parsed outcome. The outcome takes ownership of its
// arguments.
func NewParsed(ss *ast.Stylesheet, sm *token.SourceMap, imports []string, exports modules.Exports) *ParseOutcome {
	return &ParseOutcome{
		kind:       OutcomeParsed,
		stylesheet: ss,
		sourceMap:  sm,
		imports:    imports,
		exports:    exports,
	}
}

// Unparseable returns an Unparseable outcome.
func Unparseable() *ParseOutcome {
	return &ParseOutcome{kind: OutcomeUnparseable}
}

// NotFound returns a NotFound outcome.
func NotFound() *ParseOutcome {
	return &ParseOutcome{kind: OutcomeNotFound}
}

// Kind returns the form of the outcome. A nil outcome reports
// OutcomeNotFound.
func (o *ParseOutcome) Kind() OutcomeKind {
	if o == nil {
		return OutcomeNotFound
	}
	return o.kind
}

// IsParsed reports whether the outcome is Parsed.
func (o *ParseOutcome) IsParsed() bool { return o != nil && o.kind == OutcomeParsed }

// Stylesheet returns the tree of a Parsed outcome, nil otherwise.
func (o *ParseOutcome) Stylesheet() *ast.Stylesheet {
	if o == nil {
		return nil
	}
	return o.stylesheet
}

// SourceMap returns the source map of a Parsed outcome, nil otherwise.
func (o *ParseOutcome) SourceMap() *token.SourceMap {
	if o == nil {
		return nil
	}
	return o.sourceMap
}

// Imports returns a copy of the composition imports in source order.
func (o *ParseOutcome) Imports() []string {
	if o == nil || len(o.imports) == 0 {
		return nil
	}
	return append([]string(nil), o.imports...)
}

// Exports returns a copy of the exports, sorted by local name.
func (o *ParseOutcome) Exports() modules.Exports {
	if o == nil {
		return nil
	}
	return o.exports.Clone()
}

// Equal compares outcomes by tag.
//
// Description:
//
//	Two Parsed outcomes are never equal, not even an outcome with itself,
//	so a recomputed Parsed outcome always counts as a change. Two
//	Unparseable or two NotFound outcomes are equal. A nil outcome equals
//	only nil.
func (o *ParseOutcome) Equal(other *ParseOutcome) bool {
	if o == nil || other == nil {
		return o == nil && other == nil
	}
	if o.kind != other.kind {
		return false
	}
	return o.kind != OutcomeParsed
}

// String describes the outcome for logs.
func (o *ParseOutcome) String() string {
	if o == nil {
		return "<nil>"
	}
	if o.kind != OutcomeParsed {
		return o.kind.String()
	}
	return fmt.Sprintf("parsed(rules=%d imports=%d exports=%d)", len(o.stylesheet.Rules), len(o.imports), len(o.exports))
}
