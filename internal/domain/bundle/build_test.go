package bundle

import (
	"errors"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

func project(title string, files ...types.SourceFile) *types.Project {
	return &types.Project{ID: "prj_test", Title: title, Files: files}
}

func file(path, content string) types.SourceFile {
	return types.SourceFile{Path: path, Content: content, Language: types.LanguageFromPath(path)}
}

func TestBuildSinglePage(t *testing.T) {
	b := NewBuilder(Options{})
	res, err := b.Build(project("Landing",
		file("app/page.tsx", "'use client'\nexport default function Page() {\n  return <main className=\"p-4\">Hello</main>\n}\n"),
		file("globals.css", "main { color: teal; }"),
	))
	require.NoError(t, err)

	assert.Equal(t, "page", res.Entry)
	assert.Equal(t, "app/page.tsx", res.EntryPath)
	assert.Equal(t, EntryCanonical, res.EntryMatch)
	assert.True(t, res.Registry.Has(res.Entry))
	assert.Equal(t, "main { color: teal; }", res.Styles)
	assert.Empty(t, res.Warnings)

	root := parseDocument(t, res.Document)
	styles := htmlquery.FindOne(root, "//style[@id='preview-styles']")
	assert.Contains(t, htmlquery.InnerText(styles), "main { color: teal; }")
	assert.Equal(t, "Landing", htmlquery.InnerText(htmlquery.FindOne(root, "//title")))

	vm, err := execProgram(t, res.Program)
	require.NoError(t, err)
	assert.Equal(t, "main", mustEval(t, vm, "__mounted.tree.type").String())
	assert.Equal(t, "Hello", mustEval(t, vm, "__mounted.tree.children[0]").String())
}

func TestBuildMultiModule(t *testing.T) {
	b := NewBuilder(DefaultOptions())
	res, err := b.Build(project("Shop",
		file("src/components/Card.tsx", strings.Join([]string{
			"import React from 'react'",
			"import { cn } from '../lib/utils'",
			"export interface CardProps { title: string }",
			"export function Card({ title }: CardProps) {",
			"  return <section className={cn('card', 'shadow')}>{title}</section>",
			"}",
		}, "\n")),
		file("src/lib/utils.ts", "export const cn = (...parts: string[]): string => parts.join(' ')\n"),
		file("src/App.tsx", strings.Join([]string{
			"import { useState } from 'react'",
			"import CardModule, { Card } from '@/components/Card'",
			"export default function App() {",
			"  const [label] = useState<string>('Cart')",
			"  return <div>{CardModule.Card === Card ? <Card title={label} /> : null}</div>",
			"}",
		}, "\n")),
	))
	require.NoError(t, err)

	assert.Equal(t, "App", res.Entry)
	assert.Equal(t, EntryAppShell, res.EntryMatch)
	assert.Equal(t, []string{"Card", "lib/utils", "App"}, res.Registry.Names())
	assert.Equal(t, []string{"lib/utils"}, res.Graph["Card"])
	assert.Equal(t, []string{"Card"}, res.Graph["App"])
	assert.Empty(t, res.Warnings)

	vm, err := execProgram(t, res.Program)
	require.NoError(t, err)
	assert.Equal(t, "div", mustEval(t, vm, "__mounted.tree.type").String())
	assert.Equal(t, "section", mustEval(t, vm, "__mounted.tree.children[0].type").String())
	assert.Equal(t, "card shadow", mustEval(t, vm, "__mounted.tree.children[0].props.className").String())
	assert.Equal(t, "Cart", mustEval(t, vm, "__mounted.tree.children[0].children[0]").String())
}

func TestBuildPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		project *types.Project
		want    error
		files   int
	}{
		{
			name:    "nil project",
			project: nil,
			want:    ErrNoFiles,
		},
		{
			name:    "no files",
			project: project("Empty"),
			want:    ErrNoFiles,
		},
		{
			name: "no components",
			project: project("Styles only",
				file("app/globals.css", "body{}"),
				file("lib/utils.ts", "export const x = 1"),
				file("README.md", "# readme"),
			),
			want:  ErrNoRenderableComponent,
			files: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewBuilder(Options{}).Build(tt.project)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.want))

			pe, ok := AsPrecondition(err)
			require.True(t, ok)
			assert.Len(t, pe.Files, tt.files)
		})
	}
}

func TestBuildNoComponentReportsSizes(t *testing.T) {
	_, err := NewBuilder(Options{}).Build(project("x", file("a.css", "abc"), file("notes.txt", "hello")))
	pe, ok := AsPrecondition(err)
	require.True(t, ok)
	assert.Equal(t, []FileSummary{
		{Path: "a.css", Language: types.LanguageCSS, Size: 3},
		{Path: "notes.txt", Language: types.LanguageOther, Size: 5},
	}, pe.Files)
}

func TestBuildCollisionLastWriteWins(t *testing.T) {
	tests := []struct {
		name     string
		files    []types.SourceFile
		module   string
		winner   string
		loser    string
		names    []string
		rendered string
	}{
		{
			name: "same extension",
			files: []types.SourceFile{
				file("app/page.tsx", "import Button from './Button'\nexport default function Page() { return <Button /> }"),
				file("app/Button.tsx", "export default function Button() { return <button>first</button> }"),
				file("components/Button.tsx", "export default function Button() { return <button>second</button> }"),
			},
			module:   "Button",
			winner:   "components/Button.tsx",
			loser:    "app/Button.tsx",
			names:    []string{"page", "Button"},
			rendered: "second",
		},
		{
			name: "component after script",
			files: []types.SourceFile{
				file("app/page.tsx", "import { label } from '@/lib/util'\nexport default function Page() { return <button>{label}</button> }"),
				file("lib/util.ts", "export const label = 'script'"),
				file("lib/util.tsx", "export const label = 'component'"),
			},
			module:   "lib/util",
			winner:   "lib/util.tsx",
			loser:    "lib/util.ts",
			names:    []string{"page", "lib/util"},
			rendered: "component",
		},
		{
			name: "script after component",
			files: []types.SourceFile{
				file("app/page.tsx", "import { label } from '@/lib/util'\nexport default function Page() { return <button>{label}</button> }"),
				file("lib/util.tsx", "export const label = 'component'"),
				file("lib/util.ts", "export const label = 'script'"),
			},
			module:   "lib/util",
			winner:   "lib/util.ts",
			loser:    "lib/util.tsx",
			names:    []string{"page", "lib/util"},
			rendered: "script",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewBuilder(Options{}).Build(project("Dup", tt.files...))
			require.NoError(t, err)

			assert.Equal(t, tt.names, res.Registry.Names())
			got, ok := res.Registry.Get(tt.module)
			require.True(t, ok)
			assert.Equal(t, tt.winner, got.SourcePath)

			require.Len(t, res.Warnings, 1)
			assert.Equal(t, tt.module, res.Warnings[0].Module)
			assert.Contains(t, res.Warnings[0].Message, tt.loser)

			vm, err := execProgram(t, res.Program)
			require.NoError(t, err)
			assert.Equal(t, "button", mustEval(t, vm, "__mounted.tree.type").String())
			assert.Equal(t, tt.rendered, mustEval(t, vm, "__mounted.tree.children[0]").String())
		})
	}
}

func TestBuildBarrelImports(t *testing.T) {
	res, err := NewBuilder(Options{}).Build(project("Barrel",
		file("src/index.tsx", "export const root = 'root'"),
		file("src/components/Button.tsx", "export function Button({ label }) { return <button>{label}</button> }"),
		file("src/components/index.ts", "export { Button } from './Button'\nexport const kind = 'barrel'"),
		file("src/App.tsx", strings.Join([]string{
			"import { Button } from '@/components'",
			"import * as ui from './components'",
			"import { kind } from './components/index'",
			"import { root } from '.'",
			"export default function App() {",
			"  return <div>{ui.Button === Button ? <Button label={kind + ' ' + root} /> : null}</div>",
			"}",
		}, "\n")),
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"src", "Button", "components", "App"}, res.Registry.Names())
	barrel, ok := res.Registry.Get("components")
	require.True(t, ok)
	assert.Equal(t, "src/components/index.ts", barrel.SourcePath)
	assert.Equal(t, []string{"components", "src"}, res.Graph["App"])
	assert.Empty(t, res.Warnings)

	vm, err := execProgram(t, res.Program)
	require.NoError(t, err)
	assert.Equal(t, "button", mustEval(t, vm, "__mounted.tree.children[0].type").String())
	assert.Equal(t, "barrel root", mustEval(t, vm, "__mounted.tree.children[0].children[0]").String())
}

func TestBuildWarnings(t *testing.T) {
	res, err := NewBuilder(Options{}).Build(project("Warn",
		file("app/page.tsx", "import Missing from './Missing'\nimport clsx from 'clsx'\nexport default function Page() { return null }"),
	))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0].Message, `"Missing"`)
	assert.Contains(t, res.Warnings[1].Message, `"clsx"`)
}

func TestBuildRuntimeFailureSurfaces(t *testing.T) {
	res, err := NewBuilder(Options{}).Build(project("Broken",
		file("app/page.tsx", "export default function Page() { throw new Error('kaboom'); }"),
	))
	require.NoError(t, err)

	_, err = execProgram(t, res.Program)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestBuildCustomMountAndCDN(t *testing.T) {
	cdn := DefaultCDN()
	cdn.Tailwind = ""
	cdn.Compiler = "https://cdn.example.com/babel.js"

	res, err := NewBuilder(Options{CDN: cdn, MountID: "app"}).Build(project("Custom",
		file("Main.jsx", "export default () => <p>hi</p>"),
	))
	require.NoError(t, err)

	root := parseDocument(t, res.Document)
	assert.NotNil(t, htmlquery.FindOne(root, "//div[@id='app']"))
	assert.Len(t, htmlquery.Find(root, "//head/script[@src]"), 3)
	assert.Equal(t, cdn.Compiler, htmlquery.SelectAttr(htmlquery.FindOne(root, "//script[@id='preview-bootstrap']"), "data-compiler"))
	assert.Contains(t, res.Program, `"mount":"app"`)
}
