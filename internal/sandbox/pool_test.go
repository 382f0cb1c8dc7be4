package sandbox

import (
	"context"
	"errors"
	"testing"
)

func TestPoolAcquireRelease(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 2)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	runtime, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Failed to acquire runtime: %v", err)
	}

	if _, err := runtime.Run("marker", "var leaked = 1;"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := pool.Release(runtime); err != nil {
		t.Errorf("Failed to release runtime: %v", err)
	}

	// A released runtime is discarded, never handed out again
	for i := 0; i < 4; i++ {
		next, err := pool.Acquire(ctx)
		if err != nil {
			t.Fatalf("Iteration %d: Acquire() error = %v", i, err)
		}
		if next == runtime {
			t.Fatalf("Iteration %d: released runtime was reused", i)
		}
		v, err := next.Run("check", "typeof leaked")
		if err != nil {
			t.Fatalf("Iteration %d: Run() error = %v", i, err)
		}
		if v.String() != "undefined" {
			t.Errorf("Iteration %d: global state leaked between renders", i)
		}
		pool.Release(next)
	}

	if got := pool.Stats()["discarded"].(int64); got != 5 {
		t.Errorf("Expected 5 discarded runtimes, got %d", got)
	}
}

func TestPoolClosed(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	pool.Close()

	if _, err := pool.Acquire(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed, got %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}

func TestPoolAcquireCancelled(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestScriptSet(t *testing.T) {
	set := NewScriptSet("https://cdn.test/compiler.js")
	set.Add("https://cdn.test/a.js", "var a = 1;")
	set.Add("", "ignored")

	if _, ok := set.Lookup(""); ok {
		t.Error("Empty url should not be registered")
	}
	clone := set.Clone()
	set.Remove("https://cdn.test/a.js")

	if _, ok := set.Lookup("https://cdn.test/a.js"); ok {
		t.Error("Removed url is still present")
	}
	if src, ok := clone.Lookup("https://cdn.test/a.js"); !ok || src != "var a = 1;" {
		t.Error("Clone shares state with original")
	}
	if !clone.IsCompiler("https://cdn.test/compiler.js") {
		t.Error("Clone lost compiler url")
	}
}
