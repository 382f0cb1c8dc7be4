package sandbox

import (
	_ "embed"

	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/bundle"
)

var (
	//go:embed js/dom.js
	domSource string
	//go:embed js/react.js
	reactSource string
	//go:embed js/react-dom.js
	reactDOMSource string
	//go:embed js/lucide.js
	lucideSource string
	//go:embed js/tailwind.js
	tailwindSource string
	//go:embed js/babel.js
	babelSource string
)

// ScriptSet maps external script URLs to local sources. A headless frame
// only "downloads" what is in its set.
type ScriptSet struct {
	sources  map[string]string
	compiler string
}

// NewScriptSet creates an empty set. compilerURL marks the script whose
// load moves a render into the compiling phase.
func NewScriptSet(compilerURL string) *ScriptSet {
	return &ScriptSet{sources: make(map[string]string), compiler: compilerURL}
}

// DefaultScripts stubs every origin of cdn
func DefaultScripts(cdn bundle.CDNConfig) *ScriptSet {
	s := NewScriptSet(cdn.Compiler)
	s.Add(cdn.React, reactSource)
	s.Add(cdn.ReactDOM, reactDOMSource)
	s.Add(cdn.Icons, lucideSource)
	s.Add(cdn.Tailwind, tailwindSource)
	s.Add(cdn.Compiler, babelSource)
	return s
}

// Add registers source under url. Empty urls are ignored.
func (s *ScriptSet) Add(url, source string) {
	if url != "" {
		s.sources[url] = source
	}
}

// Remove drops url, making it fail to load
func (s *ScriptSet) Remove(url string) {
	delete(s.sources, url)
}

// Lookup returns the source for url
func (s *ScriptSet) Lookup(url string) (string, bool) {
	src, ok := s.sources[url]
	return src, ok
}

// Clone returns an independent copy
func (s *ScriptSet) Clone() *ScriptSet {
	c := NewScriptSet(s.compiler)
	for k, v := range s.sources {
		c.sources[k] = v
	}
	return c
}

// IsCompiler reports whether url is the in-browser compiler
func (s *ScriptSet) IsCompiler(url string) bool {
	return url == s.compiler
}
