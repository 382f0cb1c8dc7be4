package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

// ErrPoolClosed is returned when acquiring from a closed pool
var ErrPoolClosed = errors.New("sandbox pool is closed")

// State is a render's position in the execution lifecycle
type State string

const (
	StateIdle                State = "idle"
	StateLoadingDependencies State = "loading-dependencies"
	StateCompiling           State = "compiling"
	StateExecuting           State = "executing"
	StateSucceeded           State = "succeeded"
	StateFailed              State = "failed"
)

var stateRank = map[State]int{
	StateIdle:                0,
	StateLoadingDependencies: 1,
	StateCompiling:           2,
	StateExecuting:           3,
	StateSucceeded:           4,
	StateFailed:              4,
}

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Config defines sandbox configuration
type Config struct {
	SignalTimeout    time.Duration // Host-side fallback before giving up on a signal
	ExecTimeout      time.Duration // Headless execution budget before the VM is interrupted
	MaxCallStackSize int
	EnableConsole    bool
	Origin           string // window.location.origin inside headless frames
}

// DefaultConfig returns the default sandbox configuration
func DefaultConfig() Config {
	return Config{
		SignalTimeout:    5 * time.Second,
		ExecTimeout:      3 * time.Second,
		MaxCallStackSize: 1024,
		EnableConsole:    true,
		Origin:           "http://localhost",
	}
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Listener receives everything a frame reports. It is installed before
// the document is written so nothing can be missed.
type Listener interface {
	Phase(state State)
	Post(msg types.WireMessage)
}

// Frame is one isolated browsing context. A frame is written exactly
// once and never reused.
type Frame interface {
	Write(ctx context.Context, document string, l Listener) error
	Close() error
}

// FrameFactory creates a fresh frame per render
type FrameFactory func(ctx context.Context) (Frame, error)

// Snapshot is what a headless frame observed after running a document
type Snapshot struct {
	HTML    string     `json:"html"`
	Error   string     `json:"error,omitempty"`
	Console []LogEntry `json:"console,omitempty"`
}

// Snapshotter is implemented by frames that can report rendered output
type Snapshotter interface {
	Snapshot() Snapshot
}

// Outcome summarizes a render from the host's point of view
type Outcome struct {
	RenderID id.RenderID            `json:"render_id"`
	State    State                  `json:"state"`
	Signal   *types.ExecutionSignal `json:"signal,omitempty"`
	TimedOut bool                   `json:"timed_out"`
	Late     bool                   `json:"late"`
	Duration time.Duration          `json:"duration"`
}

// Succeeded reports whether the render produced a success signal in time
func (o Outcome) Succeeded() bool {
	return o.State == StateSucceeded
}
