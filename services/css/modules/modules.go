// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package modules implements CSS Modules scoping: local class, id and
// keyframes names are rewritten to module-unique names and reported as
// exports, and composition references are reported as imports.
package modules

import (
	"errors"
	"fmt"
	"sort"

	"github.com/AleutianAI/cssmodules/services/css/ast"
)

// Separator joins a local name with its module path in generated names.
const Separator = "◽"

// Errors returned by Compile. The parsers reject both cases in module
// mode, so Compile only returns them for trees rewritten by transforms.
var (
	// ErrInvalidComposes indicates a composes declaration outside a rule
	// whose selectors are all single classes.
	ErrInvalidComposes = errors.New("composes is only allowed in a rule with single class selectors")

	// ErrEmptySelector indicates a selector left empty after removing
	// :local and :global.
	ErrEmptySelector = errors.New("selector is empty after scoping")
)

// NameGenerator maps a local name to its generated name. Implementations
// must be deterministic.
type NameGenerator interface {
	NewName(local string) string
}

// Suffix is a NameGenerator that appends itself to the local name.
type Suffix string

// NewName returns local followed by s.
func (s Suffix) NewName(local string) string {
	return local + string(s)
}

// ForPath returns the generator used for the module at path.
func ForPath(path string) Suffix {
	return Suffix(Separator + path)
}

// ClassKind tells how an exported name resolves.
type ClassKind uint8

const (
	// KindLocal is a generated name of this module.
	KindLocal ClassKind = iota

	// KindGlobal is a global name used verbatim.
	KindGlobal

	// KindImport is a name exported by another module.
	KindImport
)

// String returns "local", "global" or "import".
func (k ClassKind) String() string {
	switch k {
	case KindGlobal:
		return "global"
	case KindImport:
		return "import"
	default:
		return "local"
	}
}

// MarshalText encodes the kind as its String form.
func (k ClassKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes "local", "global" or "import".
func (k *ClassKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "local":
		*k = KindLocal
	case "global":
		*k = KindGlobal
	case "import":
		*k = KindImport
	default:
		return fmt.Errorf("unknown class kind %q", b)
	}
	return nil
}

// ClassName is one name an export expands to.
type ClassName struct {
	Kind ClassKind `json:"kind"`
	Name string    `json:"name"`

	// From is the module specifier for KindImport.
	From string `json:"from,omitempty"`
}

// Local returns a KindLocal name.
func Local(name string) ClassName { return ClassName{Kind: KindLocal, Name: name} }

// Global returns a KindGlobal name.
func Global(name string) ClassName { return ClassName{Kind: KindGlobal, Name: name} }

// Import returns a KindImport name.
func Import(name, from string) ClassName { return ClassName{Kind: KindImport, Name: name, From: from} }

// Export maps a local name to the names it expands to.
type Export struct {
	Local string      `json:"local"`
	Names []ClassName `json:"names"`
}

// Exports is a list of exports sorted by local name.
type Exports []Export

// Lookup returns the names exported for local.
func (e Exports) Lookup(local string) ([]ClassName, bool) {
	i := sort.Search(len(e), func(i int) bool { return e[i].Local >= local })
	if i < len(e) && e[i].Local == local {
		return e[i].Names, true
	}
	return nil, false
}

// Clone returns a deep copy.
func (e Exports) Clone() Exports {
	if e == nil {
		return nil
	}
	out := make(Exports, len(e))
	for i, ex := range e {
		out[i] = Export{Local: ex.Local, Names: append([]ClassName(nil), ex.Names...)}
	}
	return out
}

// Result is the output of Compile.
type Result struct {
	Exports Exports
}

// AnalyzeImports returns the module specifiers of every
// `composes: ... from "specifier"` declaration in document order.
// Duplicates are kept.
func AnalyzeImports(ss *ast.Stylesheet) []string {
	var imports []string
	ast.Inspect(ss, func(n ast.Node) bool {
		if d, ok := n.(*ast.Declaration); ok && d.Composes != nil && d.Composes.Source == ast.ComposesModule {
			imports = append(imports, d.Composes.Specifier)
		}
		return true
	})
	return imports
}
