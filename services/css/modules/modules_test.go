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
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/cssmodules/services/css/ast"
	"github.com/AleutianAI/cssmodules/services/css/parser"
	"github.com/AleutianAI/cssmodules/services/css/token"
)

const testPath = "/p.css"

func parseModule(t *testing.T, src string) *ast.Stylesheet {
	t.Helper()
	cfg := parser.DefaultConfig()
	cfg.CSSModules = true
	f := token.NewSourceMap().AddFile("test.css", src)
	res, err := parser.NewNative().Parse(context.Background(), f, cfg)
	require.NoError(t, err)
	require.False(t, res.HasErrors(), "diagnostics: %v", res.Diagnostics)
	return res.Stylesheet
}

func compile(t *testing.T, src string) (*ast.Stylesheet, *Result) {
	t.Helper()
	ss := parseModule(t, src)
	res, err := Compile(ss, ForPath(testPath))
	require.NoError(t, err)
	return ss, res
}

func styleRule(t *testing.T, ss *ast.Stylesheet, i int) *ast.QualifiedRule {
	t.Helper()
	require.Greater(t, len(ss.Rules), i)
	r, ok := ss.Rules[i].(*ast.QualifiedRule)
	require.True(t, ok, "rule %d is %T", i, ss.Rules[i])
	return r
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, "a◽/p.css", ForPath("/p.css").NewName("a"))
	assert.Equal(t, "ab", Suffix("b").NewName("a"))
}

func TestClassKind_String(t *testing.T) {
	assert.Equal(t, "local", KindLocal.String())
	assert.Equal(t, "global", KindGlobal.String())
	assert.Equal(t, "import", KindImport.String())
}

func TestCompile_RenamesLocals(t *testing.T) {
	ss, res := compile(t, ".a .b, #c { color: red }")

	assert.Equal(t, ".a◽/p.css .b◽/p.css, #c◽/p.css", styleRule(t, ss, 0).Selectors.String())
	assert.Equal(t, Exports{
		{Local: "a", Names: []ClassName{Local("a◽/p.css")}},
		{Local: "b", Names: []ClassName{Local("b◽/p.css")}},
		{Local: "c", Names: []ClassName{Local("c◽/p.css")}},
	}, res.Exports)
}

func TestCompile_ExportsSorted(t *testing.T) {
	_, res := compile(t, ".zeta {} .alpha {} .mid {} .alpha:hover {}")

	var locals []string
	for _, e := range res.Exports {
		locals = append(locals, e.Local)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, locals)
}

func TestCompile_Scopes(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    string
		exports []string
	}{
		{"global function", ":global(.a) .b {}", ".a .b◽/p.css", []string{"b"}},
		{"bare global", ":global .a .b {}", ".a .b", nil},
		{"bare switches back", ".x :global .a :local .b {}", ".x◽/p.css .a .b◽/p.css", []string{"b", "x"}},
		{"combinator carried", ".x > :global .a {}", ".x◽/p.css > .a", []string{"x"}},
		{"combinator kept", ".x :global > .a {}", ".x◽/p.css > .a", []string{"x"}},
		{"spliced", ":global(.a .b) .c {}", ".a .b .c◽/p.css", []string{"c"}},
		{"merged", "div:global(.a) {}", "div.a", nil},
		{"not spliceable", "div:global(.a .b) {}", "div:is(.a .b)", nil},
		{"list kept", ":global(.a, .b) {}", ":is(.a, .b)", nil},
		{"local function", ":local(.a):hover {}", ".a◽/p.css:hover", []string{"a"}},
		{"inside not", ".a:not(.b) {}", ".a◽/p.css:not(.b◽/p.css)", []string{"a", "b"}},
		{"global reaches arguments", ":global .a:not(.b) {}", ".a:not(.b)", nil},
		{"types untouched", "ul > li.item {}", "ul > li.item◽/p.css", []string{"item"}},
		{"ids", ":global(#app) #main {}", "#app #main◽/p.css", []string{"main"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss, res := compile(t, tt.src)
			assert.Equal(t, tt.want, styleRule(t, ss, 0).Selectors.String())

			var got []string
			for _, e := range res.Exports {
				got = append(got, e.Local)
			}
			assert.Equal(t, tt.exports, got)
		})
	}
}

func TestCompile_EmptySelector(t *testing.T) {
	// Module mode rejects this selector while parsing; transforms can
	// still produce one.
	f := token.NewSourceMap().AddFile("test.css", ":global { color: red }")
	res, err := parser.NewNative().Parse(context.Background(), f, parser.DefaultConfig())
	require.NoError(t, err)
	require.False(t, res.HasErrors())
	ss := res.Stylesheet

	_, err = Compile(ss, ForPath(testPath))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptySelector))
}

func TestCompile_Keyframes(t *testing.T) {
	ss, res := compile(t, `
@keyframes fade { from { opacity: 0 } to { opacity: 1 } }
.a { animation: fade 1s ease-in; animation-name: fade, other; -webkit-animation: fade 2s }
`)

	kf, ok := ss.Rules[0].(*ast.AtRule)
	require.True(t, ok)
	assert.Equal(t, "fade◽/p.css", ast.ValuesString(kf.Prelude))

	decls := styleRule(t, ss, 1).Block.Declarations()
	require.Len(t, decls, 3)
	assert.Equal(t, "fade◽/p.css 1s ease-in", ast.ValuesString(decls[0].Value))
	assert.Equal(t, "fade◽/p.css, other", ast.ValuesString(decls[1].Value))
	assert.Equal(t, "fade◽/p.css 2s", ast.ValuesString(decls[2].Value))

	names, ok := res.Exports.Lookup("fade")
	require.True(t, ok)
	assert.Equal(t, []ClassName{Local("fade◽/p.css")}, names)
}

func TestCompile_GlobalKeyframes(t *testing.T) {
	ss, res := compile(t, "@keyframes :global(spin) { to { opacity: 1 } }\n.a { animation: spin 1s }")

	kf, ok := ss.Rules[0].(*ast.AtRule)
	require.True(t, ok)
	assert.Equal(t, "spin", ast.ValuesString(kf.Prelude))
	assert.Equal(t, "spin 1s", ast.ValuesString(styleRule(t, ss, 1).Block.Declarations()[0].Value))

	_, ok = res.Exports.Lookup("spin")
	assert.False(t, ok)
}

func TestCompile_KeyframesInsideMedia(t *testing.T) {
	ss, res := compile(t, "@media screen { @keyframes pulse { to { opacity: 1 } } .a { animation-name: pulse } }")

	_, ok := res.Exports.Lookup("pulse")
	assert.True(t, ok)

	media, ok := ss.Rules[0].(*ast.AtRule)
	require.True(t, ok)
	rule, ok := media.Block.Items[1].(*ast.QualifiedRule)
	require.True(t, ok)
	assert.Equal(t, ".a◽/p.css", rule.Selectors.String())
	assert.Equal(t, "pulse◽/p.css", ast.ValuesString(rule.Block.Declarations()[0].Value))
}

func TestCompile_Composes(t *testing.T) {
	ss, res := compile(t, `
.a { composes: b c; color: red }
.b { color: blue }
.d { composes: e from global }
.f { composes: g h from "./x.css" }
`)

	assert.Equal(t, Exports{
		{Local: "a", Names: []ClassName{Local("a◽/p.css"), Local("b◽/p.css"), Local("c◽/p.css")}},
		{Local: "b", Names: []ClassName{Local("b◽/p.css")}},
		{Local: "d", Names: []ClassName{Local("d◽/p.css"), Global("e")}},
		{Local: "f", Names: []ClassName{Local("f◽/p.css"), Import("g", "./x.css"), Import("h", "./x.css")}},
	}, res.Exports)

	decls := styleRule(t, ss, 0).Block.Declarations()
	require.Len(t, decls, 1)
	assert.Equal(t, "color", decls[0].Name)
	assert.Empty(t, styleRule(t, ss, 2).Block.Items)
}

func TestCompile_ComposesEverySelector(t *testing.T) {
	_, res := compile(t, ".a, .b { composes: c }")

	a, _ := res.Exports.Lookup("a")
	b, _ := res.Exports.Lookup("b")
	assert.Equal(t, []ClassName{Local("a◽/p.css"), Local("c◽/p.css")}, a)
	assert.Equal(t, []ClassName{Local("b◽/p.css"), Local("c◽/p.css")}, b)
}

func TestCompile_InvalidComposes(t *testing.T) {
	ss := parseModule(t, ".a { composes: b }")
	rule := styleRule(t, ss, 0)
	compound := rule.Selectors[0].Compounds[0]
	compound.Subclasses = append(compound.Subclasses, &ast.ClassSelector{Name: "x"})

	_, err := Compile(ss, ForPath(testPath))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidComposes))
}

func TestCompile_Deterministic(t *testing.T) {
	const src = ".a { composes: b from \"./b.css\" } .c:hover #d {} @keyframes k {}"

	_, first := compile(t, src)
	_, second := compile(t, src)
	assert.Equal(t, first.Exports, second.Exports)

	other, err := Compile(parseModule(t, src), ForPath("/q.css"))
	require.NoError(t, err)
	for i := range first.Exports {
		assert.Equal(t, first.Exports[i].Local, other.Exports[i].Local)
		assert.NotEqual(t, first.Exports[i].Names[0].Name, other.Exports[i].Names[0].Name)
	}
}

func TestAnalyzeImports(t *testing.T) {
	ss := parseModule(t, `
@import "z.css";
.a { composes: b from "x.css" }
.c { composes: d from global }
.e { composes: f from "y.css" }
.g { composes: h }
`)

	assert.Equal(t, []string{"x.css", "y.css"}, AnalyzeImports(ss))
}

func TestAnalyzeImports_KeepsDuplicates(t *testing.T) {
	ss := parseModule(t, `
.a { composes: b from "x.css" }
.c { composes: d from "y.css" }
.e { composes: f from "x.css" }
`)

	assert.Equal(t, []string{"x.css", "y.css", "x.css"}, AnalyzeImports(ss))
}

func TestAnalyzeImports_None(t *testing.T) {
	assert.Nil(t, AnalyzeImports(parseModule(t, ".a { color: red }")))
}

func TestExports_LookupAndClone(t *testing.T) {
	e := Exports{
		{Local: "a", Names: []ClassName{Local("a1")}},
		{Local: "c", Names: []ClassName{Global("c")}},
	}

	names, ok := e.Lookup("c")
	require.True(t, ok)
	assert.Equal(t, []ClassName{Global("c")}, names)
	_, ok = e.Lookup("b")
	assert.False(t, ok)

	clone := e.Clone()
	clone[0].Names[0].Name = "changed"
	assert.Equal(t, "a1", e[0].Names[0].Name)
	assert.Nil(t, Exports(nil).Clone())
}

func TestClassName_JSON(t *testing.T) {
	data, err := json.Marshal([]ClassName{Local("a◽/p.css"), Import("base", "./base.css")})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"kind":"local","name":"a◽/p.css"},{"kind":"import","name":"base","from":"./base.css"}]`, string(data))

	var back []ClassName
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, KindImport, back[1].Kind)

	var k ClassKind
	assert.Error(t, k.UnmarshalText([]byte("remote")))
}
