// Package provider defines the LLM providers behind the llm pipe.
package provider

import "context"

// Provider is the interface for LLM providers.
type Provider interface {
	// Complete sends a prompt to the LLM and returns the response.
	Complete(ctx context.Context, system, user string) (string, error)
}

// Mock is a mock provider for testing.
type Mock struct {
	Response string
	Handler  func(system, user string) string
}

// NewMock creates a new mock provider with a fixed response.
func NewMock(response string) *Mock {
	return &Mock{Response: response}
}

// NewMockHandler creates a mock provider with a custom handler.
func NewMockHandler(handler func(system, user string) string) *Mock {
	return &Mock{Handler: handler}
}

// Complete returns the mock response or calls the handler.
func (m *Mock) Complete(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Handler != nil {
		return m.Handler(system, user), nil
	}
	return m.Response, nil
}
