package bundle

import (
	"path"
	"strings"
)

// DefaultRoots are the conventional leading path segments stripped from
// module names
var DefaultRoots = []string{"src", "app", "components"}

// SourceExtensions are stripped from module names, longest match first
var SourceExtensions = []string{".tsx", ".jsx", ".mts", ".cts", ".mjs", ".cjs", ".ts", ".js"}

// IndexLeaf is the file name that stands for its directory
const IndexLeaf = "index"

// AliasPrefix marks a project-root relative specifier
const AliasPrefix = "@/"

// Resolver maps source paths and import specifiers into one moduleName
// space. It holds no state beyond its configuration, so resolution is
// deterministic.
type Resolver struct {
	roots []string
}

// NewResolver creates a resolver stripping the given roots. With no
// roots the DefaultRoots are used.
func NewResolver(roots ...string) *Resolver {
	if len(roots) == 0 {
		roots = DefaultRoots
	}
	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		r = strings.Trim(strings.ReplaceAll(r, "\\", "/"), "/")
		if r != "" {
			cleaned = append(cleaned, r)
		}
	}
	return &Resolver{roots: cleaned}
}

// Roots returns the configured conventional roots
func (r *Resolver) Roots() []string {
	return append([]string(nil), r.roots...)
}

// ModuleName derives the registry key for a source path: separators are
// normalized, the extension is dropped, an index file takes its
// directory's name and conventional roots are stripped from the front
// for as long as one matches. components/index.ts and an import of
// "@/components" therefore share the key "components".
func (r *Resolver) ModuleName(p string) string {
	p = cleanPath(p)
	for _, ext := range SourceExtensions {
		if strings.HasSuffix(p, ext) && len(p) > len(ext) {
			p = strings.TrimSuffix(p, ext)
			break
		}
	}
	if dir, leaf := path.Split(p); leaf == IndexLeaf && dir != "" {
		p = strings.TrimSuffix(dir, "/")
	}
	for stripped := true; stripped; {
		stripped = false
		for _, root := range r.roots {
			if strings.HasPrefix(p, root+"/") {
				p = p[len(root)+1:]
				stripped = true
			}
		}
	}
	return p
}

// Resolve maps an import specifier written in importer to a moduleName.
// Relative (./, ../) and aliased (@/) specifiers resolve into the
// registry namespace; bare package specifiers report ok=false.
func (r *Resolver) Resolve(importer, specifier string) (string, bool) {
	switch {
	case strings.HasPrefix(specifier, AliasPrefix):
		return r.ModuleName(specifier[len(AliasPrefix):]), true
	case isRelative(specifier):
		dir := path.Dir(cleanPath(importer))
		return r.ModuleName(path.Join(dir, specifier)), true
	default:
		return "", false
	}
}

// IsLocalSpecifier reports whether a specifier targets project files
func IsLocalSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, AliasPrefix) || isRelative(specifier)
}

func isRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// cleanPath normalizes separators and collapses ./, ../ and duplicate
// slashes. The result never starts with a slash.
func cleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}
