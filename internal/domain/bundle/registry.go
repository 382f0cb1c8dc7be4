package bundle

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

//go:embed templates/shim.js
var shimSource string

//go:embed templates/mount.js
var mountSource string

// ModuleDescriptor is one transformed source file keyed by moduleName
type ModuleDescriptor struct {
	Name         string   `json:"name"`
	SourcePath   string   `json:"source_path"`
	Body         string   `json:"-"`
	Exports      []string `json:"exports,omitempty"`
	HasDefault   bool     `json:"has_default"`
	Dependencies []string `json:"dependencies,omitempty"`
	External     []string `json:"external,omitempty"`
}

// Registry is an ordered moduleName -> descriptor table. Registering a
// name twice keeps the first position and the last descriptor.
type Registry struct {
	order   []string
	modules map[string]*ModuleDescriptor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*ModuleDescriptor)}
}

// Add registers a descriptor and returns the one it replaced, if any
func (r *Registry) Add(d ModuleDescriptor) *ModuleDescriptor {
	prev, exists := r.modules[d.Name]
	if !exists {
		r.order = append(r.order, d.Name)
	}
	r.modules[d.Name] = &d
	return prev
}

// Get returns the descriptor for name
func (r *Registry) Get(name string) (*ModuleDescriptor, bool) {
	d, ok := r.modules[name]
	return d, ok
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.modules[name]
	return ok
}

// Len returns the number of registered modules
func (r *Registry) Len() int {
	return len(r.order)
}

// Names returns module names in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Modules returns descriptors in registration order
func (r *Registry) Modules() []*ModuleDescriptor {
	out := make([]*ModuleDescriptor, len(r.order))
	for i, name := range r.order {
		out[i] = r.modules[name]
	}
	return out
}

// Graph returns moduleName -> local dependencies
func (r *Registry) Graph() map[string][]string {
	g := make(map[string][]string, len(r.order))
	for _, name := range r.order {
		g[name] = append([]string{}, r.modules[name].Dependencies...)
	}
	return g
}

// Fragment serializes the registry as a code fragment declaring
// __modules. Each module body becomes a thunk that is only invoked the
// first time it is required.
func (r *Registry) Fragment() string {
	var sb strings.Builder
	sb.WriteString("var __modules = {};\n")
	for _, name := range r.order {
		d := r.modules[name]
		fmt.Fprintf(&sb, "// %s\n", strings.ReplaceAll(d.SourcePath, "\n", " "))
		fmt.Fprintf(&sb, "__modules[%s] = function (module, exports, require) {\n", strconv.Quote(name))
		sb.WriteString(d.Body)
		sb.WriteString("\n};\n")
	}
	return sb.String()
}

// runtimeConfig is the data the shim and mount statement read at runtime
type runtimeConfig struct {
	Builtins   map[string]string `json:"builtins"`
	Roots      []string          `json:"roots"`
	Extensions []string          `json:"extensions"`
	Entry      string            `json:"entry"`
	Mount      string            `json:"mount"`
}

// Program links the registry, the require shim and the mount statement
// into one fragment. It is JSX/TS source: the in-sandbox compiler turns
// it into plain JavaScript in a single pass.
func Program(reg *Registry, resolver *Resolver, builtins map[string]string, entry, mountID string) (string, error) {
	if builtins == nil {
		builtins = DefaultBuiltins
	}
	cfg := runtimeConfig{
		Builtins:   builtins,
		Roots:      resolver.Roots(),
		Extensions: SourceExtensions,
		Entry:      entry,
		Mount:      mountID,
	}
	raw, err := sonic.ConfigStd.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode runtime config: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("(function () {\n")
	sb.WriteString("var __config = ")
	sb.Write(raw)
	sb.WriteString(";\n")
	sb.WriteString(shimSource)
	sb.WriteString("\n")
	sb.WriteString(reg.Fragment())
	sb.WriteString(mountSource)
	sb.WriteString("\n})();\n")
	return sb.String(), nil
}
