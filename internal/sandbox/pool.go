package sandbox

import (
	"context"
	"sync"
	"sync/atomic"
)

// Pool keeps fresh runtimes warm so a render does not pay VM startup.
// Runtimes are handed out once: Release discards them and a replacement
// is created in the background.
type Pool struct {
	config    Config
	runtimes  chan *Runtime
	size      int
	mu        sync.RWMutex
	closed    bool
	created   atomic.Int64
	discarded atomic.Int64
}

// NewPool creates a pool of size pre-warmed runtimes
func NewPool(config Config, size int) (*Pool, error) {
	if size <= 0 {
		size = 4
	}

	pool := &Pool{
		config:   config,
		runtimes: make(chan *Runtime, size),
		size:     size,
	}

	for i := 0; i < size; i++ {
		rt, err := pool.newRuntime()
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.runtimes <- rt
	}

	return pool, nil
}

func (p *Pool) newRuntime() (*Runtime, error) {
	rt, err := NewRuntime(p.config)
	if err == nil {
		p.created.Add(1)
	}
	return rt, err
}

// Acquire takes a warm runtime, or creates one when the pool is drained
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case rt := <-p.runtimes:
		go p.refill()
		return rt, nil
	default:
		return p.newRuntime()
	}
}

// Release discards a runtime. Runtimes are never reused across renders.
func (p *Pool) Release(rt *Runtime) error {
	if rt == nil {
		return nil
	}
	p.discarded.Add(1)
	return rt.Close()
}

func (p *Pool) refill() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	rt, err := p.newRuntime()
	if err != nil {
		return
	}
	select {
	case p.runtimes <- rt:
	default:
		rt.Close()
	}
}

// Close closes pool and all idle runtimes
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.runtimes)

	for rt := range p.runtimes {
		rt.Close()
	}
	return nil
}

// Stats returns pool statistics
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"size":      p.size,
		"available": len(p.runtimes),
		"created":   p.created.Load(),
		"discarded": p.discarded.Load(),
		"closed":    p.closed,
	}
}
