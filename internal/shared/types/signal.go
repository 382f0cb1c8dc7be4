package types

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// SignalKind discriminates an ExecutionSignal
type SignalKind string

const (
	SignalSuccess SignalKind = "success"
	SignalError   SignalKind = "error"
)

// ExecutionSignal is the only data that crosses back out of a sandbox
type ExecutionSignal struct {
	Kind    SignalKind `json:"kind"`
	Message string     `json:"message,omitempty"`
}

// Success returns a success signal
func Success() ExecutionSignal {
	return ExecutionSignal{Kind: SignalSuccess}
}

// Failure returns an error signal carrying message verbatim
func Failure(message string) ExecutionSignal {
	return ExecutionSignal{Kind: SignalError, Message: message}
}

// IsError reports whether the signal is an error
func (s ExecutionSignal) IsError() bool {
	return s.Kind == SignalError
}

// Wire message types posted by the sandboxed document
const (
	MessageDeploySuccess = "DEPLOY_SUCCESS"
	MessageDeployError   = "DEPLOY_ERROR"
)

// WireMessage is the cross-document message shape
type WireMessage struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// ToWire converts a signal into its cross-document message
func (s ExecutionSignal) ToWire() WireMessage {
	if s.IsError() {
		return WireMessage{Type: MessageDeployError, Error: s.Message}
	}
	return WireMessage{Type: MessageDeploySuccess}
}

// Signal converts a wire message back into a signal
func (m WireMessage) Signal() (ExecutionSignal, error) {
	switch m.Type {
	case MessageDeploySuccess:
		return Success(), nil
	case MessageDeployError:
		return Failure(m.Error), nil
	default:
		return ExecutionSignal{}, fmt.Errorf("unknown message type %q", m.Type)
	}
}

// ParseWireMessage decodes a raw cross-document message
func ParseWireMessage(data []byte) (ExecutionSignal, error) {
	var msg WireMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return ExecutionSignal{}, fmt.Errorf("failed to decode message: %w", err)
	}
	return msg.Signal()
}
