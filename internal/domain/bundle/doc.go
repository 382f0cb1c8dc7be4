// Package bundle turns a flat list of project files into one
// self-contained HTML document that runs the project in a browser.
//
// There is no filesystem, package manager or bundler involved: module
// boundaries are rewritten textually and linked at runtime through a
// string-keyed registry of lazily evaluated module thunks.
//
// Pipeline:
//   - Classify: split files into components, scripts and stylesheets
//   - Resolver: derive a moduleName from every source path
//   - Transformer: rewrite import/export syntax into require/exports
//   - Registry: wrap bodies into memoized thunks plus the require shim
//   - ResolveEntry: pick the root component by naming convention
//   - AggregateStyles: concatenate stylesheets in input order
//   - Assemble: emit the final document with CDN tags and bootstrap
//
// Everything in this package is synchronous and free of I/O.
//
// Example:
//
//	builder := bundle.NewBuilder(bundle.DefaultOptions())
//	result, err := builder.Build(project)
//	if pe, ok := bundle.AsPrecondition(err); ok {
//	    page, _ := bundle.AssembleFailure(project.Title, pe)
//	}
package bundle
