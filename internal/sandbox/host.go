package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

// Hooks observe session events. Every field is optional.
type Hooks struct {
	OnPhase   func(id.RenderID, State)
	OnSignal  func(id.RenderID, types.ExecutionSignal)
	OnTimeout func(id.RenderID)
	OnLate    func(id.RenderID, types.ExecutionSignal)
}

// Host renders documents into fresh frames and tracks each render
type Host struct {
	frames  FrameFactory
	timeout time.Duration
	logger  *zap.Logger
	hooks   Hooks
}

// NewHost creates a host. A zero SignalTimeout uses the default.
func NewHost(frames FrameFactory, config Config, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.SignalTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().SignalTimeout
	}
	return &Host{frames: frames, timeout: timeout, logger: logger}
}

// WithHooks sets observers for session events
func (h *Host) WithHooks(hooks Hooks) *Host {
	h.hooks = hooks
	return h
}

// Render writes document into a brand-new frame. The session listens
// before the document is written and the fallback timer starts with the
// write.
func (h *Host) Render(ctx context.Context, document string) (*Session, error) {
	frame, err := h.frames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame: %w", err)
	}

	s := &Session{
		ID:      id.NewRenderID(),
		frame:   frame,
		hooks:   h.hooks,
		logger:  h.logger,
		state:   StateIdle,
		loading: true,
		started: time.Now(),
		settled: make(chan struct{}),
		written: make(chan struct{}),
	}
	s.logger = h.logger.With(zap.String("render_id", s.ID.String()))

	s.mu.Lock()
	s.timer = time.AfterFunc(h.timeout, s.expire)
	s.mu.Unlock()

	go s.write(ctx, document)
	return s, nil
}

// Session is one render. It implements Listener for its frame.
type Session struct {
	ID id.RenderID

	frame  Frame
	hooks  Hooks
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	signal   *types.ExecutionSignal
	timedOut bool
	late     int
	loading  bool
	started  time.Time
	duration time.Duration
	timer    *time.Timer
	settled  chan struct{}
	written  chan struct{}
	writeErr error
}

func (s *Session) write(ctx context.Context, document string) {
	defer close(s.written)

	err := s.frame.Write(ctx, document, s)
	if err == nil {
		return
	}
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()

	s.logger.Warn("Frame write failed", zap.Error(err))
	s.Post(types.Failure(err.Error()).ToWire())
}

// Phase records forward progress. Backwards or post-terminal phases are
// ignored.
func (s *Session) Phase(state State) {
	s.mu.Lock()
	if s.state.Terminal() || stateRank[state] <= stateRank[s.state] || state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	s.logger.Debug("Render phase", zap.String("state", string(state)))
	if s.hooks.OnPhase != nil {
		s.hooks.OnPhase(s.ID, state)
	}
}

// Post receives a cross-document message from the frame
func (s *Session) Post(msg types.WireMessage) {
	sig, err := msg.Signal()
	if err != nil {
		s.logger.Warn("Ignoring message from frame", zap.Error(err))
		return
	}

	s.mu.Lock()
	switch {
	case s.signal != nil:
		s.mu.Unlock()
		s.logger.Debug("Ignoring duplicate signal", zap.String("kind", string(sig.Kind)))
		return
	case s.timedOut:
		s.late++
		s.mu.Unlock()
		s.logger.Info("Late signal ignored", zap.String("kind", string(sig.Kind)))
		if s.hooks.OnLate != nil {
			s.hooks.OnLate(s.ID, sig)
		}
		return
	}

	s.signal = &sig
	if sig.IsError() {
		s.state = StateFailed
	} else {
		s.state = StateSucceeded
	}
	s.loading = false
	s.duration = time.Since(s.started)
	s.timer.Stop()
	close(s.settled)
	s.mu.Unlock()

	if sig.IsError() {
		s.logger.Info("Render failed", zap.String("error", sig.Message))
	} else {
		s.logger.Debug("Render succeeded")
	}
	if s.hooks.OnSignal != nil {
		s.hooks.OnSignal(s.ID, sig)
	}
}

// expire fires when no terminal signal arrived in time. The frame is
// left exactly as it is.
func (s *Session) expire() {
	s.mu.Lock()
	if s.signal != nil || s.timedOut {
		s.mu.Unlock()
		return
	}
	s.timedOut = true
	s.loading = false
	s.duration = time.Since(s.started)
	close(s.settled)
	state := s.state
	s.mu.Unlock()

	s.logger.Warn("Render signal timed out", zap.String("state", string(state)))
	if s.hooks.OnTimeout != nil {
		s.hooks.OnTimeout(s.ID)
	}
}

// Done is closed once the render settled by signal or timeout
func (s *Session) Done() <-chan struct{} {
	return s.settled
}

// Wait blocks until the render settles or ctx is done
func (s *Session) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.settled:
		return s.Outcome(), nil
	case <-ctx.Done():
		return s.Outcome(), ctx.Err()
	}
}

// Outcome returns the current view of the render
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Outcome{
		RenderID: s.ID,
		State:    s.state,
		TimedOut: s.timedOut,
		Late:     s.late > 0,
		Duration: s.duration,
	}
	if s.signal != nil {
		sig := *s.signal
		out.Signal = &sig
	}
	return out
}

// Loading reports whether the host still shows a loading state
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Frame returns the frame this session writes into
func (s *Session) Frame() Frame {
	return s.frame
}

// Close waits for the write to return and releases the frame. Replacing
// a render means closing its session and rendering again.
func (s *Session) Close() error {
	s.mu.Lock()
	s.timer.Stop()
	s.mu.Unlock()

	<-s.written
	return s.frame.Close()
}
