package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

// GojaFrame runs a document headlessly. Inline scripts execute in
// document order in a fresh runtime; external scripts resolve against a
// ScriptSet.
type GojaFrame struct {
	runtime *Runtime
	scripts *ScriptSet
	config  Config
	logger  *zap.Logger
	release func(*Runtime) error

	mu       sync.Mutex
	written  bool
	snapshot Snapshot
}

// NewGojaFrame creates a frame on top of a fresh runtime
func NewGojaFrame(rt *Runtime, scripts *ScriptSet, config Config, logger *zap.Logger) *GojaFrame {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GojaFrame{
		runtime: rt,
		scripts: scripts,
		config:  config,
		logger:  logger,
		release: func(r *Runtime) error { return r.Close() },
	}
}

// PoolFrames returns a factory that builds each frame on a runtime taken
// from pool
func PoolFrames(pool *Pool, scripts *ScriptSet, config Config, logger *zap.Logger) FrameFactory {
	return func(ctx context.Context) (Frame, error) {
		rt, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		f := NewGojaFrame(rt, scripts, config, logger)
		f.release = pool.Release
		return f, nil
	}
}

// Write executes the document. Signals reach l through the
// window.parent.postMessage binding; Write itself only fails for errors
// outside the document's control (parse failure, interruption).
func (f *GojaFrame) Write(ctx context.Context, document string, l Listener) error {
	f.mu.Lock()
	if f.written {
		f.mu.Unlock()
		return errors.New("frame already written")
	}
	f.written = true
	f.mu.Unlock()

	l.Phase(StateLoadingDependencies)

	parsed, err := parseDocument(document)
	if err != nil {
		return err
	}

	stop := f.runtime.Guard(ctx, f.config.ExecTimeout)
	defer stop()

	if err := f.install(l); err != nil {
		return fmt.Errorf("failed to install frame globals: %w", err)
	}
	if _, err := f.runtime.Call("__dom.seed", seedValues(parsed.Elements)); err != nil {
		return fmt.Errorf("failed to seed document: %w", err)
	}

	for i, tag := range parsed.Scripts {
		if err := f.runScript(i, tag); err != nil {
			return err
		}
	}

	if _, err := f.runtime.Call("__dom.complete"); err != nil {
		return err
	}
	if err := f.dispatch("load", nil); err != nil {
		return err
	}

	f.capture()
	return nil
}

// install binds the host bridge, the parent window and the DOM
func (f *GojaFrame) install(l Listener) error {
	vm := f.runtime.VM()

	host := vm.NewObject()
	if err := host.Set("loadScript", func(src string) goja.Value {
		source, ok := f.scripts.Lookup(src)
		if !ok {
			f.logger.Debug("Script not available", zap.String("src", src))
			return goja.Null()
		}
		if f.scripts.IsCompiler(src) {
			l.Phase(StateCompiling)
		}
		return vm.ToValue(source)
	}); err != nil {
		return err
	}
	if err := host.Set("compile", func(source, filename string) (string, error) {
		code, err := Compile(source, filename)
		if err != nil {
			return "", err
		}
		l.Phase(StateExecuting)
		return code, nil
	}); err != nil {
		return err
	}
	if err := vm.Set("__host", host); err != nil {
		return err
	}

	location := vm.NewObject()
	if err := location.Set("origin", f.config.Origin); err != nil {
		return err
	}
	if err := location.Set("href", "about:srcdoc"); err != nil {
		return err
	}
	if err := vm.Set("location", location); err != nil {
		return err
	}

	parentLocation := vm.NewObject()
	if err := parentLocation.Set("origin", f.config.Origin); err != nil {
		return err
	}
	parent := vm.NewObject()
	if err := parent.Set("location", parentLocation); err != nil {
		return err
	}
	if err := parent.Set("postMessage", func(call goja.FunctionCall) goja.Value {
		l.Post(wireMessage(call.Argument(0)))
		return goja.Undefined()
	}); err != nil {
		return err
	}
	if err := vm.Set("parent", parent); err != nil {
		return err
	}

	_, err := f.runtime.Run("dom.js", domSource)
	return err
}

func (f *GojaFrame) runScript(index int, tag scriptTag) error {
	if tag.Src != "" {
		source, ok := f.scripts.Lookup(tag.Src)
		if ok {
			_, err := f.runtime.Run(tag.Src, source)
			if err == nil {
				return nil
			}
			if isInterrupt(err) {
				return err
			}
			f.logger.Debug("Dependency failed to evaluate", zap.String("src", tag.Src), zap.Error(err))
		}
		// Same as the browser: the tag's onerror attribute runs with
		// this bound to the element.
		if handler := tag.Attrs["onerror"]; handler != "" {
			code := "(function () {\n" + handler + "\n}).call({ src: " + strconv.Quote(tag.Src) + " });"
			if _, err := f.runtime.Run("onerror", code); err != nil {
				return f.uncaught(err)
			}
		}
		return nil
	}

	if !tag.Inline() {
		return nil
	}
	if _, err := f.runtime.Call("__dom.setCurrent", stringMap(tag.Attrs)); err != nil {
		return err
	}
	name := tag.Attrs["id"]
	if name == "" {
		name = "inline-" + strconv.Itoa(index)
	}
	if _, err := f.runtime.Run(name, tag.Content); err != nil {
		return f.uncaught(err)
	}
	return nil
}

// uncaught forwards a script exception to window error listeners
func (f *GojaFrame) uncaught(err error) error {
	if isInterrupt(err) {
		return err
	}
	var exc *goja.Exception
	if !errors.As(err, &exc) {
		return err
	}
	event := map[string]interface{}{
		"type":    "error",
		"message": exc.Error(),
		"error":   exc.Value(),
	}
	return f.dispatch("error", event)
}

func (f *GojaFrame) dispatch(event string, payload interface{}) error {
	var err error
	if payload == nil {
		_, err = f.runtime.Call("__dom.dispatch", event)
	} else {
		_, err = f.runtime.Call("__dom.dispatch", event, payload)
	}
	if err != nil && !isInterrupt(err) {
		// A throwing listener is not re-dispatched
		f.logger.Debug("Event listener threw", zap.String("event", event), zap.Error(err))
		return nil
	}
	return err
}

// capture records the rendered mount point, the error panel and console
func (f *GojaFrame) capture() {
	snap := Snapshot{Console: f.runtime.Console()}
	if v, err := f.runtime.Call("__dom.html", bundle.DefaultMountID); err == nil {
		snap.HTML = v.String()
	}
	if v, err := f.runtime.Call("__dom.text", "preview-error"); err == nil {
		snap.Error = v.String()
	}

	f.mu.Lock()
	f.snapshot = snap
	f.mu.Unlock()
}

// Snapshot returns what the document rendered
func (f *GojaFrame) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

// Close discards the runtime
func (f *GojaFrame) Close() error {
	return f.release(f.runtime)
}

func isInterrupt(err error) bool {
	var interrupted *goja.InterruptedError
	return errors.As(err, &interrupted)
}

func wireMessage(v goja.Value) types.WireMessage {
	var msg types.WireMessage
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return msg
	}
	if m, ok := v.Export().(map[string]interface{}); ok {
		if s, ok := m["type"].(string); ok {
			msg.Type = s
		}
		if s, ok := m["error"].(string); ok {
			msg.Error = s
		}
	}
	return msg
}

func seedValues(elements []seedElement) []interface{} {
	out := make([]interface{}, len(elements))
	for i, e := range elements {
		out[i] = map[string]interface{}{
			"tag":   e.Tag,
			"attrs": stringMap(e.Attrs),
			"text":  e.Text,
			"head":  e.Head,
		}
	}
	return out
}

func stringMap(m map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
