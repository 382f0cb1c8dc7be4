package bundle

import (
	"fmt"
	"sort"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

// DefaultMountID is the id of the element the root component mounts into
const DefaultMountID = "root"

// Options configures a Builder
type Options struct {
	Roots    []string
	Builtins map[string]string
	CDN      CDNConfig
	MountID  string
}

// DefaultOptions returns the conventional roots, built-ins and CDN
func DefaultOptions() Options {
	return Options{
		Roots:    DefaultRoots,
		Builtins: DefaultBuiltins,
		CDN:      DefaultCDN(),
		MountID:  DefaultMountID,
	}
}

// Warning is a non-fatal observation made during a build
type Warning struct {
	Module  string `json:"module,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Result is the output of one pipeline run
type Result struct {
	Title          string              `json:"title"`
	Entry          string              `json:"entry"`
	EntryPath      string              `json:"entry_path"`
	EntryMatch     EntryMatch          `json:"entry_match"`
	Modules        []*ModuleDescriptor `json:"modules"`
	Graph          map[string][]string `json:"graph"`
	Warnings       []Warning           `json:"warnings,omitempty"`
	Styles         string              `json:"-"`
	Program        string              `json:"-"`
	Document       string              `json:"-"`
	Classification Classification      `json:"-"`
	Registry       *Registry           `json:"-"`
}

// Builder runs the classify, transform, register, entry, style and
// assemble stages. It is stateless between builds and safe for
// concurrent use.
type Builder struct {
	opts        Options
	resolver    *Resolver
	transformer *Transformer
}

// NewBuilder creates a builder. Zero-valued options fall back to the
// defaults.
func NewBuilder(opts Options) *Builder {
	def := DefaultOptions()
	if len(opts.Roots) == 0 {
		opts.Roots = def.Roots
	}
	if opts.Builtins == nil {
		opts.Builtins = def.Builtins
	}
	if opts.CDN == (CDNConfig{}) {
		opts.CDN = def.CDN
	}
	if opts.MountID == "" {
		opts.MountID = def.MountID
	}
	resolver := NewResolver(opts.Roots...)
	return &Builder{
		opts:        opts,
		resolver:    resolver,
		transformer: NewTransformer(resolver, opts.Builtins),
	}
}

// Resolver returns the builder's module name resolver
func (b *Builder) Resolver() *Resolver {
	return b.resolver
}

// CDN returns the configured third-party origins
func (b *Builder) CDN() CDNConfig {
	return b.opts.CDN
}

// Build runs the whole pipeline for a project snapshot. Precondition
// failures are returned as *PreconditionError before anything is
// assembled.
func (b *Builder) Build(project *types.Project) (*Result, error) {
	if project == nil || len(project.Files) == 0 {
		var files []types.SourceFile
		if project != nil {
			files = project.Files
		}
		return nil, newPreconditionError(ErrNoFiles, files)
	}

	classes := Classify(project.Files)
	entryFile, match, ok := ResolveEntry(classes.Components)
	if !ok {
		return nil, newPreconditionError(ErrNoRenderableComponent, project.Files)
	}

	res := &Result{
		Title:          sanitizeTitle(project.Title),
		EntryPath:      entryFile.Path,
		EntryMatch:     match,
		Classification: classes,
		Registry:       NewRegistry(),
	}

	for _, f := range classes.Sources() {
		name := b.resolver.ModuleName(f.Path)
		t := b.transformer.Transform(f)
		prev := res.Registry.Add(ModuleDescriptor{
			Name:         name,
			SourcePath:   f.Path,
			Body:         t.Body,
			Exports:      t.Exports,
			HasDefault:   t.HasDefault || t.SynthesizedDefault,
			Dependencies: t.Dependencies,
			External:     t.External,
		})
		if prev != nil {
			res.Warnings = append(res.Warnings, Warning{
				Module:  name,
				Path:    f.Path,
				Message: fmt.Sprintf("module name collides with %s; the later file wins", prev.SourcePath),
			})
		}
	}
	res.Entry = b.resolver.ModuleName(entryFile.Path)
	res.Modules = res.Registry.Modules()
	res.Graph = res.Registry.Graph()
	res.Warnings = append(res.Warnings, b.unresolved(res.Registry)...)
	res.Styles = AggregateStyles(classes.Stylesheets)

	program, err := Program(res.Registry, b.resolver, b.opts.Builtins, res.Entry, b.opts.MountID)
	if err != nil {
		return nil, err
	}
	res.Program = program

	doc, err := Assemble(DocumentInput{
		Title:   project.Title,
		Entry:   res.Entry,
		Styles:  res.Styles,
		Program: program,
		MountID: b.opts.MountID,
		CDN:     b.opts.CDN,
	})
	if err != nil {
		return nil, err
	}
	res.Document = doc
	return res, nil
}

// unresolved reports local imports that point at no registered module
// and bare imports that are not runtime built-ins
func (b *Builder) unresolved(reg *Registry) []Warning {
	var warnings []Warning
	for _, d := range reg.Modules() {
		for _, dep := range d.Dependencies {
			if reg.Has(dep) {
				continue
			}
			warnings = append(warnings, Warning{
				Module:  d.Name,
				Path:    d.SourcePath,
				Message: fmt.Sprintf("import %q does not match any project file", dep),
			})
		}
		external := append([]string(nil), d.External...)
		sort.Strings(external)
		for _, spec := range external {
			warnings = append(warnings, Warning{
				Module:  d.Name,
				Path:    d.SourcePath,
				Message: fmt.Sprintf("package %q is not available in the preview runtime", spec),
			})
		}
	}
	return warnings
}
