package llm

import (
	"context"
	"sync"
)

// Call is one prompt seen by a Mock.
type Call struct {
	Model  string
	Prompt string
}

// Mock is a Client for tests. Respond decides the reply; when nil every
// prompt gets "summary of <model>".
type Mock struct {
	Respond func(ctx context.Context, model, prompt string) (string, error)

	mu    sync.Mutex
	calls []Call
}

// Complete records the call and delegates to Respond.
func (m *Mock) Complete(ctx context.Context, model, prompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Model: model, Prompt: prompt})
	m.mu.Unlock()

	if m.Respond == nil {
		return "summary of " + model, nil
	}
	return m.Respond(ctx, model, prompt)
}

// Calls returns a copy of every recorded call in arrival order.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
