package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func programFor(t *testing.T, entry string, modules ...ModuleDescriptor) string {
	t.Helper()
	reg := NewRegistry()
	for _, m := range modules {
		reg.Add(m)
	}
	program, err := Program(reg, NewResolver(), nil, entry, DefaultMountID)
	require.NoError(t, err)
	return program
}

func TestRegistryLastWriteWins(t *testing.T) {
	reg := NewRegistry()
	assert.Nil(t, reg.Add(ModuleDescriptor{Name: "page", SourcePath: "app/page.tsx"}))
	assert.Nil(t, reg.Add(ModuleDescriptor{Name: "Button", SourcePath: "app/Button.tsx"}))
	prev := reg.Add(ModuleDescriptor{Name: "Button", SourcePath: "components/Button.tsx"})

	require.NotNil(t, prev)
	assert.Equal(t, "app/Button.tsx", prev.SourcePath)
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"page", "Button"}, reg.Names())

	got, ok := reg.Get("Button")
	require.True(t, ok)
	assert.Equal(t, "components/Button.tsx", got.SourcePath)
}

func TestRegistryFragment(t *testing.T) {
	reg := NewRegistry()
	reg.Add(ModuleDescriptor{Name: "ui/card", SourcePath: "components/ui/card.tsx", Body: "exports.x = 1;"})

	frag := reg.Fragment()
	assert.Contains(t, frag, "var __modules = {};")
	assert.Contains(t, frag, `__modules["ui/card"] = function (module, exports, require) {`+"\nexports.x = 1;\n};")
}

func TestProgramMemoizesModules(t *testing.T) {
	program := programFor(t, "page",
		ModuleDescriptor{Name: "counter", Body: `globalThis.evaluations = (globalThis.evaluations || 0) + 1; exports.value = 42;`},
		ModuleDescriptor{Name: "page", Body: `
var a = require("counter");
var b = require("counter");
exports.default = function App() {
  return React.createElement("p", null, String(a === b) + ":" + globalThis.evaluations + ":" + a.value);
};`},
	)

	vm, err := execProgram(t, program)
	require.NoError(t, err)
	assert.Equal(t, "true:1:42", mustEval(t, vm, "__mounted.tree.children[0]").String())
}

func TestProgramDeclarationOrderIsNotEvaluationOrder(t *testing.T) {
	program := programFor(t, "page",
		ModuleDescriptor{Name: "page", Body: `
var log = require("log");
log.push("page");
exports.default = function App() { return React.createElement("p", null, log.join(",")); };`},
		ModuleDescriptor{Name: "log", Body: `module.exports = ["log"];`},
		ModuleDescriptor{Name: "unused", Body: `throw new Error("never evaluated");`},
	)

	vm, err := execProgram(t, program)
	require.NoError(t, err)
	assert.Equal(t, "log,page", mustEval(t, vm, "__mounted.tree.children[0]").String())
}

func TestProgramReentrantRequire(t *testing.T) {
	program := programFor(t, "a",
		ModuleDescriptor{Name: "a", Body: `
exports.early = 1;
var b = require("b");
exports.late = 2;
exports.default = function App() {
  return React.createElement("p", null, b.sawEarly + "/" + b.sawLate);
};`},
		ModuleDescriptor{Name: "b", Body: `
var a = require("a");
exports.sawEarly = String(a.early);
exports.sawLate = String(a.late);`},
	)

	vm, err := execProgram(t, program)
	require.NoError(t, err)
	assert.Equal(t, "1/undefined", mustEval(t, vm, "__mounted.tree.children[0]").String())
}

func TestProgramResolution(t *testing.T) {
	program := programFor(t, "page",
		ModuleDescriptor{Name: "ui", Body: `exports.label = "ui";`},
		ModuleDescriptor{Name: "lib/utils", Body: `exports.greet = function (n) { return "hi " + n; };`},
		ModuleDescriptor{Name: "page", Body: `
var ui = require("@/components/ui");
var same = require("./components/ui/index.ts") === ui;
var utils = __default(require("./lib/utils.ts"));
var R = require("react");
exports.default = function App() {
  return React.createElement("p", null, [ui.label, utils.greet("bob"), String(R === React), String(same)].join("|"));
};`},
	)

	vm, err := execProgram(t, program)
	require.NoError(t, err)
	assert.Equal(t, "ui|hi bob|true|true", mustEval(t, vm, "__mounted.tree.children[0]").String())
}

func TestProgramFailures(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		modules []ModuleDescriptor
		wantErr string
	}{
		{
			name:    "missing module",
			entry:   "page",
			modules: []ModuleDescriptor{{Name: "page", Body: `var x = require("missing");`}},
			wantErr: "Cannot find module 'missing'",
		},
		{
			name:    "missing entry",
			entry:   "page",
			modules: []ModuleDescriptor{{Name: "other", Body: `exports.default = 1;`}},
			wantErr: "Cannot find module 'page'",
		},
		{
			name:    "entry without component",
			entry:   "page",
			modules: []ModuleDescriptor{{Name: "page", Body: `exports.value = 1;`}},
			wantErr: "does not export a component",
		},
		{
			name:  "render throws",
			entry: "page",
			modules: []ModuleDescriptor{{Name: "page", Body: `
exports.default = function App() { throw new Error("boom during render"); };`}},
			wantErr: "boom during render",
		},
		{
			name:    "missing runtime global",
			entry:   "page",
			modules: []ModuleDescriptor{{Name: "page", Body: `globalThis.LucideReact = undefined; var icons = require("lucide-react");`}},
			wantErr: "Runtime dependency 'lucide-react' is not loaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execProgram(t, programFor(t, tt.entry, tt.modules...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProgramEmbedsRuntimeConfig(t *testing.T) {
	program := programFor(t, "page")
	assert.Contains(t, program, `"entry":"page"`)
	assert.Contains(t, program, `"mount":"root"`)
	assert.Contains(t, program, `"react-dom/client":"ReactDOM"`)
}
