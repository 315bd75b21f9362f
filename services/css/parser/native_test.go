// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/cssmodules/services/css/ast"
	"github.com/AleutianAI/cssmodules/services/css/diag"
	"github.com/AleutianAI/cssmodules/services/css/token"
)

func parse(t *testing.T, src string, cfg Config) *Result {
	t.Helper()
	sm := token.NewSourceMap()
	f := sm.AddFile("test.css", src)
	res, err := NewNative().Parse(context.Background(), f, cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Stylesheet)
	return res
}

func moduleConfig() Config {
	cfg := DefaultConfig()
	cfg.CSSModules = true
	return cfg
}

func errorMessages(diags []diag.Diagnostic) []string {
	var out []string
	for _, d := range diags {
		if d.Severity == diag.SeverityError {
			out = append(out, d.Message)
		}
	}
	return out
}

func TestNative_StyleRule(t *testing.T) {
	res := parse(t, ".a { color: red; margin : 0 auto }", DefaultConfig())

	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Stylesheet.Rules, 1)
	rule, ok := res.Stylesheet.Rules[0].(*ast.QualifiedRule)
	require.True(t, ok)
	assert.Equal(t, ".a", rule.Selectors.String())

	decls := rule.Block.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, "color", decls[0].Name)
	assert.Equal(t, "red", ast.ValuesString(decls[0].Value))
	assert.Equal(t, "margin", decls[1].Name)
	assert.Equal(t, "0 auto", ast.ValuesString(decls[1].Value))
}

func TestNative_RecoversFromMissingColon(t *testing.T) {
	res := parse(t, ".a { color: red; }\n.b { color }", DefaultConfig())

	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, diag.SeverityError, d.Severity)
	assert.Equal(t, diag.CategoryParse, d.Category)
	assert.Equal(t, diag.TitleParse, d.Title)
	assert.Contains(t, d.Message, "expected ':'")

	require.Len(t, res.Stylesheet.Rules, 2)
	second := res.Stylesheet.Rules[1].(*ast.QualifiedRule)
	assert.Empty(t, second.Block.Items)
}

func TestNative_ErrorCases(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "unclosed block", src: ".a { color: red;", want: "expected '}'"},
		{name: "stray close brace", src: ".a {} }", want: "unexpected '}'"},
		{name: "empty value", src: ".a { color: ; }", want: `expected a value for "color"`},
		{name: "missing block", src: ".a", want: "expected '{'"},
		{name: "bad selector", src: ".a, { }", want: "expected selector"},
		{name: "double dot", src: "a..b { }", want: "expected class name"},
		{name: "numeric id", src: "#123 { }", want: "invalid id selector"},
		{name: "unterminated string", src: ".a { content: \"x\n }", want: "unterminated string"},
		{name: "unclosed function", src: ".a { color: rgb(1, 2", want: `expected ")"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parse(t, tt.src, DefaultConfig())
			assert.True(t, res.HasErrors())
			msgs := strings.Join(errorMessages(res.Diagnostics), "\n")
			assert.Contains(t, msgs, tt.want)
		})
	}
}

func TestNative_StraySemicolonIsWarning(t *testing.T) {
	res := parse(t, ";.a {}", DefaultConfig())

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diag.SeverityWarning, res.Diagnostics[0].Severity)
	assert.False(t, res.HasErrors())
	assert.Len(t, res.Stylesheet.Rules, 1)
}

func TestNative_InvalidRuleIsDropped(t *testing.T) {
	res := parse(t, "a..b { color: red } .c { color: blue }", DefaultConfig())

	require.True(t, res.HasErrors())
	require.Len(t, res.Stylesheet.Rules, 1)
	assert.Equal(t, ".c", res.Stylesheet.Rules[0].(*ast.QualifiedRule).Selectors.String())
}

func TestNative_AtRules(t *testing.T) {
	src := `@charset "utf-8";
@import url("x.css") screen;
@media (min-width: 10px) { .a { color: red } }
@font-face { font-family: x; src: url(x.woff) }`
	res := parse(t, src, DefaultConfig())

	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Stylesheet.Rules, 4)

	charset := res.Stylesheet.Rules[0].(*ast.AtRule)
	assert.Equal(t, "charset", charset.Name)
	assert.Nil(t, charset.Block)

	imp := res.Stylesheet.Rules[1].(*ast.AtRule)
	assert.True(t, imp.Is("import"))
	assert.Equal(t, `url("x.css") screen`, ast.ValuesString(imp.Prelude))

	media := res.Stylesheet.Rules[2].(*ast.AtRule)
	require.NotNil(t, media.Block)
	require.Len(t, media.Block.Items, 1)
	inner := media.Block.Items[0].(*ast.QualifiedRule)
	assert.Equal(t, ".a", inner.Selectors.String())

	face := res.Stylesheet.Rules[3].(*ast.AtRule)
	assert.Len(t, face.Block.Declarations(), 2)
}

func TestNative_Keyframes(t *testing.T) {
	res := parse(t, "@-webkit-keyframes spin { from { opacity: 0 } 50%, to { opacity: 1 } }", DefaultConfig())

	assert.Empty(t, res.Diagnostics)
	kf := res.Stylesheet.Rules[0].(*ast.AtRule)
	assert.True(t, kf.Is("keyframes"))
	assert.Equal(t, "spin", ast.ValuesString(kf.Prelude))
	require.Len(t, kf.Block.Items, 2)
	for _, it := range kf.Block.Items {
		r := it.(*ast.QualifiedRule)
		assert.Nil(t, r.Selectors)
		assert.Len(t, r.Block.Declarations(), 1)
	}
}

func TestNative_Nesting(t *testing.T) {
	src := ".a { color: red; &:hover { color: blue } > .b { x: y } @media print { color: black } }"

	res := parse(t, src, DefaultConfig())
	assert.Empty(t, res.Diagnostics)
	outer := res.Stylesheet.Rules[0].(*ast.QualifiedRule)
	require.Len(t, outer.Block.Items, 4)
	hover := outer.Block.Items[1].(*ast.QualifiedRule)
	assert.True(t, hover.Selectors[0].HasNesting())
	child := outer.Block.Items[2].(*ast.QualifiedRule)
	assert.Equal(t, ast.CombinatorChild, child.Selectors[0].Compounds[0].Combinator)
	media := outer.Block.Items[3].(*ast.AtRule)
	assert.Len(t, media.Block.Declarations(), 1)

	cfg := DefaultConfig()
	cfg.LegacyNesting = false
	res = parse(t, src, cfg)
	assert.Contains(t, errorMessages(res.Diagnostics), "nested style rules are not supported")
}

func TestNative_Important(t *testing.T) {
	res := parse(t, ".a { color: red ! IMPORTANT; --x: ; }", DefaultConfig())

	assert.Empty(t, res.Diagnostics)
	decls := res.Stylesheet.Rules[0].(*ast.QualifiedRule).Block.Declarations()
	require.Len(t, decls, 2)
	assert.True(t, decls[0].Important)
	assert.Equal(t, "red", ast.ValuesString(decls[0].Value))
	assert.Equal(t, "--x", decls[1].Property())
	assert.Empty(t, decls[1].Value)
}

func TestNative_ModuleSelectors(t *testing.T) {
	res := parse(t, ":global(.x) .y, :local .z:not(.w) {}", moduleConfig())
	assert.Empty(t, res.Diagnostics)
	rule := res.Stylesheet.Rules[0].(*ast.QualifiedRule)
	require.Len(t, rule.Selectors, 2)

	global := rule.Selectors[0].Compounds[0].Subclasses[0].(*ast.PseudoClassSelector)
	assert.True(t, global.Is("global"))
	require.Len(t, global.Selectors, 1)
	assert.Equal(t, ".x", global.Selectors.String())

	// Outside module mode the argument stays raw.
	res = parse(t, ":global(.x) {}", DefaultConfig())
	global = res.Stylesheet.Rules[0].(*ast.QualifiedRule).Selectors[0].Compounds[0].Subclasses[0].(*ast.PseudoClassSelector)
	assert.Nil(t, global.Selectors)
	assert.Equal(t, ".x", ast.ValuesString(global.Args))
}

func TestNative_ScopeOnlySelectors(t *testing.T) {
	tests := []struct {
		src, sel string
	}{
		{":global {}", ":global"},
		{":local {}", ":local"},
		{":global :local {}", ":global :local"},
		{".a:is(:local) {}", ":local"},
	}
	for _, tt := range tests {
		res := parse(t, tt.src, moduleConfig())
		want := `selector "` + tt.sel + `" is empty without :local and :global`
		assert.Equal(t, []string{want}, errorMessages(res.Diagnostics), tt.src)
		assert.Empty(t, res.Stylesheet.Rules, tt.src)
	}

	res := parse(t, ":global .a, :local:hover {}", moduleConfig())
	assert.Empty(t, res.Diagnostics)

	res = parse(t, ":global {}", DefaultConfig())
	assert.Empty(t, res.Diagnostics)
}

func TestNative_Composes(t *testing.T) {
	src := `.a { composes: b c; }
.d, .e { composes: f from global; }
.g { composes: h i from "./other.css"; color: red }`
	res := parse(t, src, moduleConfig())
	require.Empty(t, res.Diagnostics)

	get := func(i int) *ast.Composes {
		decls := res.Stylesheet.Rules[i].(*ast.QualifiedRule).Block.Declarations()
		require.NotEmpty(t, decls)
		require.NotNil(t, decls[0].Composes)
		return decls[0].Composes
	}

	local := get(0)
	assert.Equal(t, ast.ComposesLocal, local.Source)
	require.Len(t, local.Names, 2)
	assert.Equal(t, "b", local.Names[0].Name)
	assert.Equal(t, "c", local.Names[1].Name)

	global := get(1)
	assert.Equal(t, ast.ComposesGlobal, global.Source)
	assert.Equal(t, "f", global.Names[0].Name)

	module := get(2)
	assert.Equal(t, ast.ComposesModule, module.Source)
	assert.Equal(t, "./other.css", module.Specifier)
	assert.Len(t, module.Names, 2)
}

func TestNative_ComposesErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "compound selector", src: ".a .b { composes: c }", want: "composes is only allowed"},
		{name: "type selector", src: "a { composes: c }", want: "composes is only allowed"},
		{name: "inside media", src: ".a { @media print { composes: c } }", want: "composes is only allowed"},
		{name: "nested rule", src: ".a { .b { composes: c } }", want: "composes is only allowed"},
		{name: "no names", src: ".a { composes: from global }", want: "at least one class name"},
		{name: "missing source", src: ".a { composes: b from }", want: "after 'from'"},
		{name: "bad source", src: ".a { composes: b from 12 }", want: "after 'from'"},
		{name: "trailing junk", src: `.a { composes: b from "./x.css" y }`, want: "after composes source"},
		{name: "non ident", src: ".a { composes: 12 }", want: "expected class name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parse(t, tt.src, moduleConfig())
			msgs := strings.Join(errorMessages(res.Diagnostics), "\n")
			assert.Contains(t, msgs, tt.want)
		})
	}
}

func TestNative_ComposesIgnoredOutsideModules(t *testing.T) {
	res := parse(t, ".a .b { composes: c }", DefaultConfig())

	assert.Empty(t, res.Diagnostics)
	decl := res.Stylesheet.Rules[0].(*ast.QualifiedRule).Block.Declarations()[0]
	assert.Nil(t, decl.Composes)
}

func TestNative_Spans(t *testing.T) {
	sm := token.NewSourceMap()
	sm.AddFile("first.css", "x")
	f := sm.AddFile("second.css", ".a {\n  color }")
	res, err := NewNative().Parse(context.Background(), f, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)

	pos, ok := sm.Lookup(res.Diagnostics[0].Span.Start)
	require.True(t, ok)
	assert.Equal(t, "second.css", pos.Filename)
	assert.Equal(t, 2, pos.Line)
	assert.Equal(t, 3, pos.Column)
}

func TestNative_Limits(t *testing.T) {
	t.Run("max depth", func(t *testing.T) {
		sm := token.NewSourceMap()
		f := sm.AddFile("deep.css", ".a { .b { .c { .d { } } } }")
		cfg := DefaultConfig()
		cfg.MaxDepth = 3

		_, err := NewNative().Parse(context.Background(), f, cfg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFatal))
		assert.True(t, errors.Is(err, ErrTooDeep))

		var fatal *FatalError
		require.True(t, errors.As(err, &fatal))
		assert.True(t, fatal.Span.Start.IsValid())
	})

	t.Run("deep parentheses", func(t *testing.T) {
		sm := token.NewSourceMap()
		f := sm.AddFile("deep.css", ".a { x: "+strings.Repeat("(", 50)+" }")
		cfg := DefaultConfig()
		cfg.MaxDepth = 10

		_, err := NewNative().Parse(context.Background(), f, cfg)
		assert.True(t, errors.Is(err, ErrTooDeep))
	})

	t.Run("max file size", func(t *testing.T) {
		sm := token.NewSourceMap()
		f := sm.AddFile("big.css", ".a { color: red }")
		cfg := DefaultConfig()
		cfg.MaxFileSize = 4

		_, err := NewNative().Parse(context.Background(), f, cfg)
		assert.True(t, errors.Is(err, ErrFatal))
		assert.True(t, errors.Is(err, ErrFileTooLarge))
	})
}

func TestNative_Canceled(t *testing.T) {
	sm := token.NewSourceMap()
	f := sm.AddFile("a.css", ".a {}")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNative().Parse(ctx, f, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrFatal))
}

func TestNative_CanceledMidParse(t *testing.T) {
	sm := token.NewSourceMap()
	f := sm.AddFile("a.css", strings.Repeat(".a { color: red }\n", 500))
	ctx, cancel := context.WithCancel(context.Background())

	p := newState(ctx, f, DefaultConfig(), 0, f.Size())
	cancel()
	err := p.protect(func() { p.parseStylesheet() })
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseValues(t *testing.T) {
	sm := token.NewSourceMap()
	f := sm.AddFile("v.css", "x: calc(1px + [a]) b")

	values, diags, err := ParseValues(f, 3, f.Size(), DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "calc(1px + [a]) b", ast.ValuesString(values))
	require.True(t, values[0].IsFunction("calc"))
	assert.Equal(t, "calc(1px + [a])", f.Text(values[0].Loc))
}

func TestSplitImportant(t *testing.T) {
	values, _, err := ParseValues(token.NewSourceMap().AddFile("v.css", " red !important "), 0, 16, DefaultConfig())
	require.NoError(t, err)

	rest, important := SplitImportant(values)
	assert.True(t, important)
	assert.Equal(t, "red", ast.ValuesString(rest))

	rest, important = SplitImportant(rest)
	assert.False(t, important)
	assert.Equal(t, "red", ast.ValuesString(rest))
}

type stubParser struct{ name string }

func (s stubParser) Name() string { return s.name }
func (s stubParser) Parse(context.Context, *token.File, Config) (*Result, error) {
	return &Result{Stylesheet: &ast.Stylesheet{}}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewNative(), stubParser{name: "stub"}, nil)

	assert.Equal(t, []string{"native", "stub"}, r.Names())

	p, err := r.Get("native")
	require.NoError(t, err)
	assert.Equal(t, NativeName, p.Name())

	_, err = r.Get("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownBackend))
	assert.Contains(t, err.Error(), "missing")
}

func TestNative_Warnings(t *testing.T) {
	res := parse(t, ".a { color: red !default } @keyframes k { { opacity: 0 } }", DefaultConfig())

	assert.False(t, res.HasErrors())
	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, "unknown flag !default", res.Diagnostics[0].Message)
	assert.Equal(t, "empty keyframe selector", res.Diagnostics[1].Message)
}
