package bundle

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"
)

// testRuntime is a minimal React/ReactDOM pair whose renderer calls
// function components and records the resulting tree on the mount point.
const testRuntime = `
var window = globalThis;
var __mounted = { id: "root", tree: null };
var document = {
  getElementById: function (id) { return id === "root" ? __mounted : null; }
};
var React = {
  Fragment: "fragment",
  createElement: function (type, props) {
    var children = Array.prototype.slice.call(arguments, 2);
    return { type: type, props: props || {}, children: children };
  },
  useState: function (initial) {
    return [typeof initial === "function" ? initial() : initial, function () {}];
  }
};
function __render(node) {
  if (node === null || node === undefined || typeof node !== "object") return node;
  if (typeof node.type === "function") {
    var props = Object.assign({}, node.props, { children: node.children });
    return __render(node.type(props));
  }
  return { type: node.type, props: node.props, children: node.children.map(__render) };
}
var ReactDOM = {
  createRoot: function (el) {
    return { render: function (node) { el.tree = __render(node); } };
  },
  flushSync: function (fn) { fn(); }
};
var LucideReact = {};
`

func compileTSX(t *testing.T, src string) string {
	t.Helper()
	result := api.Transform(src, api.TransformOptions{
		Loader:      api.LoaderTSX,
		JSX:         api.JSXTransform,
		JSXFactory:  "React.createElement",
		JSXFragment: "React.Fragment",
		Target:      api.ES2017,
	})
	if len(result.Errors) > 0 {
		t.Fatalf("compile failed: %s", result.Errors[0].Text)
	}
	return string(result.Code)
}

// execProgram compiles and evaluates a linked program. The returned
// error is whatever the program threw.
func execProgram(t *testing.T, program string) (*goja.Runtime, error) {
	t.Helper()
	vm := goja.New()
	_, err := vm.RunString(testRuntime)
	require.NoError(t, err)
	_, err = vm.RunString(compileTSX(t, program))
	return vm, err
}

func mustEval(t *testing.T, vm *goja.Runtime, expr string) goja.Value {
	t.Helper()
	v, err := vm.RunString(expr)
	require.NoError(t, err)
	return v
}
