package bundle

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

// DefaultBuiltins maps runtime built-in specifiers to the globals the
// document pre-populates through CDN scripts
var DefaultBuiltins = map[string]string{
	"react":            "React",
	"react-dom":        "ReactDOM",
	"react-dom/client": "ReactDOM",
	"lucide-react":     "LucideReact",
}

var stylesheetExtensions = []string{".css", ".scss", ".sass", ".less"}

// Rewrites are textual and statement-shaped. Each pattern starts at a
// line start or right after a semicolon so several statements on one
// line are all rewritten. Trailing semicolons are left in place.
var (
	directiveRe        = regexp.MustCompile(`(?m)^[ \t]*['"]use (?:client|server)['"][ \t]*;?`)
	typeImportRe       = regexp.MustCompile(`(?m)(^|;)[ \t]*import\s+type\s+[\w$\s{},*]+?\s+from\s*['"][^'"]+['"]`)
	typeExportListRe   = regexp.MustCompile(`(?m)(^|;)[ \t]*export\s+type\s*\{[^}]*\}(?:\s*from\s*['"][^'"]+['"])?`)
	sideEffectImportRe = regexp.MustCompile(`(?m)(^|;)([ \t]*)import\s*['"]([^'"]+)['"]`)
	importRe           = regexp.MustCompile(`(?m)(^|;)([ \t]*)import\s+([\w$\s{},*]+?)\s*from\s*['"]([^'"]+)['"]`)
	reexportListRe     = regexp.MustCompile(`(?m)(^|;)([ \t]*)export\s*\{([^}]*)\}\s*from\s*['"]([^'"]+)['"]`)
	exportStarRe       = regexp.MustCompile(`(?m)(^|;)([ \t]*)export\s*\*\s*(?:as\s+([\w$]+)\s+)?from\s*['"]([^'"]+)['"]`)
	defaultFuncRe      = regexp.MustCompile(`(?m)(^|;)([ \t]*)export\s+default\s+((?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*))`)
	defaultClassRe     = regexp.MustCompile(`(?m)(^|;)([ \t]*)export\s+default\s+((?:abstract\s+)?class\s+([A-Za-z_$][\w$]*))`)
	defaultExprRe      = regexp.MustCompile(`(?m)(^|;)([ \t]*)export\s+default\s+`)
	typeDeclRe         = regexp.MustCompile(`(?m)(^|;)([ \t]*)export\s+((?:declare\s+)?(?:type|interface|namespace|module)\s)`)
	namedDeclRe        = regexp.MustCompile(`(?m)(^|;)([ \t]*)export\s+((declare\s+)?(?:async\s+function\s*\*?\s*|function\s*\*?\s*|abstract\s+class\s+|class\s+|const\s+enum\s+|enum\s+|const\s+|let\s+|var\s+)([A-Za-z_$][\w$]*))`)
	exportListRe       = regexp.MustCompile(`(?m)(^|;)([ \t]*)export\s*\{([^}]*)\}`)
)

// Transformed is the output of rewriting one source file
type Transformed struct {
	Body string
	// Exports lists named exports in declaration order
	Exports []string
	// HasDefault is true when the source produced its own default export
	HasDefault bool
	// SynthesizedDefault is true when exports.default was generated from
	// the named exports
	SynthesizedDefault bool
	// Dependencies are the moduleNames of local imports
	Dependencies []string
	// External are bare specifiers that are not runtime built-ins
	External []string
}

// Transformer rewrites module syntax into calls against an injected
// require/exports pair
type Transformer struct {
	resolver *Resolver
	builtins map[string]string
}

// NewTransformer creates a transformer. A nil builtins map selects
// DefaultBuiltins.
func NewTransformer(resolver *Resolver, builtins map[string]string) *Transformer {
	if resolver == nil {
		resolver = NewResolver()
	}
	if builtins == nil {
		builtins = DefaultBuiltins
	}
	return &Transformer{resolver: resolver, builtins: builtins}
}

type namedExport struct {
	name     string
	expr     string
	assigned bool
}

// transformState accumulates what a single Transform call learns
type transformState struct {
	t          *Transformer
	importer   string
	exports    []namedExport
	seen       map[string]bool
	deps       []string
	depSeen    map[string]bool
	external   []string
	hasDefault bool
	defaultFn  string
	reexports  int
}

// Transform rewrites one file. Statements that do not match a known
// import/export shape pass through unchanged.
func (t *Transformer) Transform(file types.SourceFile) Transformed {
	st := &transformState{
		t:        t,
		importer: file.Path,
		seen:     make(map[string]bool),
		depSeen:  make(map[string]bool),
	}

	src := file.Content
	src = directiveRe.ReplaceAllString(src, "")
	src = typeImportRe.ReplaceAllString(src, "$1")
	src = typeExportListRe.ReplaceAllString(src, "$1")
	src = replaceSubmatches(sideEffectImportRe, src, st.rewriteSideEffectImport)
	src = replaceSubmatches(importRe, src, st.rewriteImport)
	src = replaceSubmatches(reexportListRe, src, st.rewriteReexportList)
	src = replaceSubmatches(exportStarRe, src, st.rewriteExportStar)
	src = replaceSubmatches(defaultFuncRe, src, st.rewriteNamedDefault)
	src = replaceSubmatches(defaultClassRe, src, st.rewriteNamedDefault)
	src = replaceSubmatches(defaultExprRe, src, func(g []string) string {
		st.hasDefault = true
		return g[1] + g[2] + "exports.default = "
	})
	src = typeDeclRe.ReplaceAllString(src, "$1$2$3")
	src = replaceSubmatches(namedDeclRe, src, st.rewriteNamedDecl)
	src = replaceSubmatches(exportListRe, src, st.rewriteExportList)

	return st.finish(src)
}

func (st *transformState) finish(body string) Transformed {
	var epilogue []string
	names := make([]string, 0, len(st.exports))
	for _, e := range st.exports {
		names = append(names, e.name)
		if !e.assigned {
			epilogue = append(epilogue, fmt.Sprintf("exports.%s = %s;", e.name, e.expr))
		}
	}
	if st.defaultFn != "" {
		epilogue = append(epilogue, fmt.Sprintf("exports.default = %s;", st.defaultFn))
	}

	out := Transformed{
		Exports:      names,
		HasDefault:   st.hasDefault,
		Dependencies: st.deps,
		External:     st.external,
	}
	if !st.hasDefault && len(st.exports) > 0 {
		fields := make([]string, 0, len(st.exports))
		for _, e := range st.exports {
			value := e.expr
			if e.assigned {
				value = "exports." + e.name
			}
			if value == e.name {
				fields = append(fields, e.name)
			} else {
				fields = append(fields, e.name+": "+value)
			}
		}
		epilogue = append(epilogue, fmt.Sprintf("exports.default = { %s };", strings.Join(fields, ", ")))
		out.SynthesizedDefault = true
	}

	body = strings.TrimRight(body, " \t\r\n")
	if len(epilogue) > 0 {
		body += "\n" + strings.Join(epilogue, "\n")
	}
	out.Body = body
	return out
}

// target returns the expression that loads specifier at runtime
func (st *transformState) target(specifier string) string {
	if _, ok := st.t.builtins[specifier]; ok {
		return "__builtin(" + strconv.Quote(specifier) + ")"
	}
	if name, ok := st.t.resolver.Resolve(st.importer, specifier); ok {
		if !st.depSeen[name] {
			st.depSeen[name] = true
			st.deps = append(st.deps, name)
		}
		return "require(" + strconv.Quote(name) + ")"
	}
	st.external = append(st.external, specifier)
	return "require(" + strconv.Quote(specifier) + ")"
}

func (st *transformState) addExport(name, expr string, assigned bool) {
	if name == "default" {
		st.hasDefault = true
		return
	}
	if st.seen[name] {
		return
	}
	st.seen[name] = true
	st.exports = append(st.exports, namedExport{name: name, expr: expr, assigned: assigned})
}

// g: 1 boundary, 2 indent, 3 specifier
func (st *transformState) rewriteSideEffectImport(g []string) string {
	if isStylesheet(g[3]) {
		return g[1] + g[2]
	}
	return g[1] + g[2] + st.target(g[3])
}

// g: 1 boundary, 2 indent, 3 bindings, 4 specifier
func (st *transformState) rewriteImport(g []string) string {
	b := parseBindings(g[3])
	if b.typeOnly {
		return g[1] + g[2]
	}
	if isStylesheet(g[4]) {
		var parts []string
		for _, local := range []string{b.def, b.namespace} {
			if local != "" {
				parts = append(parts, fmt.Sprintf("const %s = {}", local))
			}
		}
		return g[1] + g[2] + strings.Join(parts, "; ")
	}

	src := st.target(g[4])
	var parts []string
	if b.def != "" {
		parts = append(parts, fmt.Sprintf("const %s = __default(%s)", b.def, src))
	}
	if b.namespace != "" {
		parts = append(parts, fmt.Sprintf("const %s = %s", b.namespace, src))
	}
	if len(b.named) > 0 {
		fields := make([]string, len(b.named))
		for i, n := range b.named {
			if n.imported == n.local {
				fields[i] = n.local
			} else {
				fields[i] = n.imported + ": " + n.local
			}
		}
		parts = append(parts, fmt.Sprintf("const { %s } = %s", strings.Join(fields, ", "), src))
	}
	if len(parts) == 0 {
		parts = append(parts, src)
	}
	return g[1] + g[2] + strings.Join(parts, "; ")
}

// g: 1 boundary, 2 indent, 3 list, 4 specifier
func (st *transformState) rewriteReexportList(g []string) string {
	st.reexports++
	tmp := fmt.Sprintf("__reexport%d", st.reexports)
	parts := []string{fmt.Sprintf("const %s = %s", tmp, st.target(g[4]))}
	for _, n := range parseNamedList(g[3]) {
		parts = append(parts, fmt.Sprintf("exports.%s = %s.%s", n.local, tmp, n.imported))
		st.addExport(n.local, "", true)
	}
	return g[1] + g[2] + strings.Join(parts, "; ")
}

// g: 1 boundary, 2 indent, 3 namespace alias, 4 specifier
func (st *transformState) rewriteExportStar(g []string) string {
	src := st.target(g[4])
	if g[3] != "" {
		st.addExport(g[3], "", true)
		return g[1] + g[2] + fmt.Sprintf("exports.%s = %s", g[3], src)
	}
	return g[1] + g[2] + fmt.Sprintf("__exportStar(exports, %s)", src)
}

// g: 1 boundary, 2 indent, 3 declaration head, 4 name
func (st *transformState) rewriteNamedDefault(g []string) string {
	st.hasDefault = true
	st.defaultFn = g[4]
	return g[1] + g[2] + g[3]
}

// g: 1 boundary, 2 indent, 3 declaration head, 4 declare, 5 name
func (st *transformState) rewriteNamedDecl(g []string) string {
	if g[4] == "" {
		st.addExport(g[5], g[5], false)
	}
	return g[1] + g[2] + g[3]
}

// g: 1 boundary, 2 indent, 3 list
func (st *transformState) rewriteExportList(g []string) string {
	for _, n := range parseNamedList(g[3]) {
		if n.local == "default" {
			st.hasDefault = true
			if st.defaultFn == "" {
				st.defaultFn = n.imported
			}
			continue
		}
		st.addExport(n.local, n.imported, false)
	}
	return g[1] + g[2]
}

type binding struct {
	imported string
	local    string
}

type bindings struct {
	def       string
	namespace string
	named     []binding
	typeOnly  bool
}

// parseBindings splits an import clause such as `React, { useState as s }`
func parseBindings(clause string) bindings {
	var b bindings
	clause = strings.TrimSpace(clause)
	if strings.HasPrefix(clause, "type ") || strings.HasPrefix(clause, "type{") {
		b.typeOnly = true
		return b
	}

	head := clause
	if open := strings.Index(clause, "{"); open >= 0 {
		end := strings.LastIndex(clause, "}")
		if end < open {
			end = len(clause)
		}
		b.named = parseNamedList(clause[open+1 : end])
		head = clause[:open]
	}
	if star := strings.Index(head, "*"); star >= 0 {
		rest := strings.TrimSpace(head[star+1:])
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "as"))
		b.namespace = strings.TrimSpace(strings.TrimSuffix(rest, ","))
		head = head[:star]
	}
	b.def = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(head), ","))
	return b
}

// parseNamedList parses `a, b as c, type T` dropping type-only entries
func parseNamedList(list string) []binding {
	var out []binding
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" || strings.HasPrefix(item, "type ") {
			continue
		}
		fields := strings.Fields(item)
		switch {
		case len(fields) == 3 && fields[1] == "as":
			out = append(out, binding{imported: fields[0], local: fields[2]})
		case len(fields) == 1:
			out = append(out, binding{imported: fields[0], local: fields[0]})
		}
	}
	return out
}

func isStylesheet(specifier string) bool {
	ext := strings.ToLower(path.Ext(specifier))
	for _, s := range stylesheetExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// replaceSubmatches is ReplaceAllStringFunc with access to submatches.
// Unmatched optional groups are passed as empty strings.
func replaceSubmatches(re *regexp.Regexp, src string, fn func(groups []string) string) string {
	matches := re.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return src
	}
	var sb strings.Builder
	sb.Grow(len(src))
	last := 0
	for _, m := range matches {
		groups := make([]string, len(m)/2)
		for i := range groups {
			if m[2*i] >= 0 {
				groups[i] = src[m[2*i]:m[2*i+1]]
			}
		}
		sb.WriteString(src[last:m[0]])
		sb.WriteString(fn(groups))
		last = m[1]
	}
	sb.WriteString(src[last:])
	return sb.String()
}
