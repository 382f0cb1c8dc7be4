package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Runtime wraps one goja VM. A runtime backs exactly one frame: its
// global scope holds the module registry and require cache of a single
// render.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex

	console   []LogEntry
	consoleMu sync.Mutex

	closed bool
}

// NewRuntime creates a runtime with browser-like globals
func NewRuntime(config Config) (*Runtime, error) {
	vm := goja.New()
	if config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(config.MaxCallStackSize)
	}

	r := &Runtime{
		vm:      vm,
		config:  config,
		console: []LogEntry{},
	}
	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	return r, nil
}

// VM exposes the underlying goja runtime
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// Guard interrupts the VM once timeout elapses or ctx is done. The
// returned stop function must be called when execution finishes.
func (r *Runtime) Guard(ctx context.Context, timeout time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		var timer <-chan time.Time
		if timeout > 0 {
			t := time.NewTimer(timeout)
			defer t.Stop()
			timer = t.C
		}
		select {
		case <-timer:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Run evaluates a script under the given name
func (r *Runtime) Run(name, script string) (goja.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("runtime is closed")
	}
	return r.vm.RunScript(name, script)
}

// Call invokes a global function path such as "__dom.dispatch"
func (r *Runtime) Call(path string, args ...interface{}) (goja.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("runtime is closed")
	}

	parts := strings.Split(path, ".")
	var this goja.Value = r.vm.GlobalObject()
	target := r.vm.Get(parts[0])
	for _, p := range parts[1:] {
		if target == nil || goja.IsUndefined(target) || goja.IsNull(target) {
			break
		}
		this = target
		target = target.ToObject(r.vm).Get(p)
	}
	fn, ok := goja.AssertFunction(target)
	if !ok {
		return nil, fmt.Errorf("%s is not a function", path)
	}

	values := make([]goja.Value, len(args))
	for i, a := range args {
		values[i] = r.vm.ToValue(a)
	}
	return fn(this, values...)
}

// Console returns captured console output
func (r *Runtime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry{}, r.console...)
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	global := r.vm.GlobalObject()

	// Node-style globals never exist in a browsing context
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := global.Delete(name); err != nil {
			return err
		}
	}

	for _, alias := range []string{"window", "self"} {
		if err := r.vm.Set(alias, global); err != nil {
			return err
		}
	}

	console := r.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
			return err
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return err
	}

	// Timers never fire: a render is judged on its synchronous result
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval", "requestAnimationFrame", "queueMicrotask"} {
		if err := r.vm.Set(name, noop); err != nil {
			return err
		}
	}
	return nil
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !r.config.EnableConsole {
			return goja.Undefined()
		}
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		return goja.Undefined()
	}
}

// Close releases the VM. A closed runtime is never reused.
func (r *Runtime) Close() error {
	r.vm.Interrupt("runtime closed")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
