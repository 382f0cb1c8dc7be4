package sandbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

// scriptedFrame replays a fixed sequence against its listener. Each step
// runs after the previous one, optionally gated on a channel.
type scriptedFrame struct {
	steps    []func(Listener)
	gate     chan struct{}
	writeErr error

	mu     sync.Mutex
	closed bool
}

func (f *scriptedFrame) Write(ctx context.Context, document string, l Listener) error {
	for i, step := range f.steps {
		if i == len(f.steps)-1 && f.gate != nil {
			select {
			case <-f.gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		step(l)
	}
	return f.writeErr
}

func (f *scriptedFrame) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *scriptedFrame) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func frameFactory(f Frame) FrameFactory {
	return func(context.Context) (Frame, error) { return f, nil }
}

func phase(s State) func(Listener) {
	return func(l Listener) { l.Phase(s) }
}

func post(sig types.ExecutionSignal) func(Listener) {
	return func(l Listener) { l.Post(sig.ToWire()) }
}

func testHost(f Frame, timeout time.Duration) *Host {
	cfg := DefaultConfig()
	cfg.SignalTimeout = timeout
	return NewHost(frameFactory(f), cfg, nil)
}

func waitOutcome(t *testing.T, s *Session) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := s.Wait(ctx)
	require.NoError(t, err)
	return out
}

func TestSessionSuccessBeforeTimeout(t *testing.T) {
	frame := &scriptedFrame{steps: []func(Listener){
		phase(StateLoadingDependencies),
		phase(StateCompiling),
		phase(StateExecuting),
		post(types.Success()),
	}}
	session, err := testHost(frame, time.Second).Render(context.Background(), "<html></html>")
	require.NoError(t, err)

	out := waitOutcome(t, session)
	assert.Equal(t, StateSucceeded, out.State)
	assert.True(t, out.Succeeded())
	assert.False(t, out.TimedOut)
	require.NotNil(t, out.Signal)
	assert.Equal(t, types.SignalSuccess, out.Signal.Kind)
	assert.False(t, session.Loading())
	assert.True(t, id.IsValid(out.RenderID.String()))

	require.NoError(t, session.Close())
	assert.True(t, frame.isClosed())
}

func TestSessionErrorSignal(t *testing.T) {
	frame := &scriptedFrame{steps: []func(Listener){
		phase(StateExecuting),
		post(types.Failure("Boom")),
	}}
	session, err := testHost(frame, time.Second).Render(context.Background(), "")
	require.NoError(t, err)
	defer session.Close()

	out := waitOutcome(t, session)
	assert.Equal(t, StateFailed, out.State)
	require.NotNil(t, out.Signal)
	assert.Equal(t, "Boom", out.Signal.Message)
}

func TestSessionTimeoutThenLateSignal(t *testing.T) {
	gate := make(chan struct{})
	var late []types.ExecutionSignal
	var mu sync.Mutex
	lateSeen := make(chan struct{})

	frame := &scriptedFrame{
		gate: gate,
		steps: []func(Listener){
			phase(StateCompiling),
			post(types.Success()),
		},
	}
	host := testHost(frame, 20*time.Millisecond).WithHooks(Hooks{
		OnLate: func(_ id.RenderID, sig types.ExecutionSignal) {
			mu.Lock()
			late = append(late, sig)
			mu.Unlock()
			close(lateSeen)
		},
	})
	session, err := host.Render(context.Background(), "")
	require.NoError(t, err)
	defer session.Close()

	out := waitOutcome(t, session)
	assert.True(t, out.TimedOut)
	assert.Equal(t, StateCompiling, out.State)
	assert.Nil(t, out.Signal)
	assert.False(t, session.Loading())

	close(gate)
	select {
	case <-lateSeen:
	case <-time.After(5 * time.Second):
		t.Fatal("late signal was not observed")
	}

	out = session.Outcome()
	assert.True(t, out.TimedOut)
	assert.True(t, out.Late)
	assert.Nil(t, out.Signal)
	assert.Equal(t, StateCompiling, out.State)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, late, 1)
}

func TestSessionNoSignalTimesOut(t *testing.T) {
	timedOut := make(chan id.RenderID, 1)
	frame := &scriptedFrame{steps: []func(Listener){phase(StateLoadingDependencies)}}
	host := testHost(frame, 10*time.Millisecond).WithHooks(Hooks{
		OnTimeout: func(rid id.RenderID) { timedOut <- rid },
	})
	session, err := host.Render(context.Background(), "")
	require.NoError(t, err)
	defer session.Close()

	out := waitOutcome(t, session)
	assert.True(t, out.TimedOut)
	assert.False(t, out.Late)
	assert.Equal(t, session.ID, <-timedOut)
}

func TestSessionFirstSignalWins(t *testing.T) {
	frame := &scriptedFrame{steps: []func(Listener){
		post(types.Failure("first")),
		post(types.Success()),
		post(types.Failure("third")),
	}}
	session, err := testHost(frame, time.Second).Render(context.Background(), "")
	require.NoError(t, err)
	defer session.Close()

	<-session.Done()
	require.NoError(t, session.Close())

	out := session.Outcome()
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, "first", out.Signal.Message)
	assert.False(t, out.Late)
}

func TestSessionPhasesOnlyMoveForward(t *testing.T) {
	var seen []State
	var mu sync.Mutex
	frame := &scriptedFrame{steps: []func(Listener){
		phase(StateCompiling),
		phase(StateLoadingDependencies),
		phase(StateExecuting),
		phase(StateCompiling),
		phase(StateSucceeded),
		post(types.Success()),
		phase(StateExecuting),
	}}
	host := testHost(frame, time.Second).WithHooks(Hooks{
		OnPhase: func(_ id.RenderID, s State) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		},
	})
	session, err := host.Render(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, session.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateCompiling, StateExecuting}, seen)
	assert.Equal(t, StateSucceeded, session.Outcome().State)
}

func TestSessionWriteErrorBecomesFailure(t *testing.T) {
	frame := &scriptedFrame{writeErr: errors.New("failed to parse document")}
	session, err := testHost(frame, time.Second).Render(context.Background(), "")
	require.NoError(t, err)
	defer session.Close()

	out := waitOutcome(t, session)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, "failed to parse document", out.Signal.Message)
}

func TestSessionIgnoresUnknownMessages(t *testing.T) {
	frame := &scriptedFrame{steps: []func(Listener){
		func(l Listener) { l.Post(types.WireMessage{Type: "HELLO"}) },
		post(types.Success()),
	}}
	session, err := testHost(frame, time.Second).Render(context.Background(), "")
	require.NoError(t, err)
	defer session.Close()

	out := waitOutcome(t, session)
	assert.Equal(t, StateSucceeded, out.State)
}

func TestHostFrameFactoryError(t *testing.T) {
	host := NewHost(func(context.Context) (Frame, error) {
		return nil, ErrPoolClosed
	}, DefaultConfig(), nil)

	_, err := host.Render(context.Background(), "")
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestSessionWaitHonorsContext(t *testing.T) {
	gate := make(chan struct{})
	frame := &scriptedFrame{gate: gate, steps: []func(Listener){post(types.Success())}}
	session, err := testHost(frame, time.Minute).Render(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	out, err := session.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, session.Loading())
	assert.Equal(t, StateIdle, out.State)

	close(gate)
	require.NoError(t, session.Close())
	assert.Equal(t, StateSucceeded, session.Outcome().State)
}
