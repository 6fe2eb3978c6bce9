// Package mock provides a scripted AI provider for testing and offline runs.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/DhimiMohamed/taskmanager/provider"
)

const defaultResponse = `{"user_message":"I'm running without a language model, so I can't act on that."}`

// Step is one scripted reply: either a response or an error.
type Step struct {
	Response *provider.Response
	Err      error
}

// Text is a Step answering with plain content.
func Text(s string) Step { return Step{Response: &provider.Response{Content: s}} }

// Calls is a Step answering with native tool calls.
func Calls(calls ...provider.ToolCall) Step {
	return Step{Response: &provider.Response{ToolCalls: calls}}
}

// Fail is a Step answering with err.
func Fail(err error) Step { return Step{Err: err} }

// Call records one Chat invocation.
type Call struct {
	Messages []provider.Message
	Tools    []provider.ToolDef
}

// MockProvider implements provider.Provider. Built with New it cycles
// through text replies; built with Script it plays steps once, in order,
// and fails when they run out. It is safe for concurrent use.
type MockProvider struct {
	mu    sync.Mutex
	steps []Step
	cycle bool
	idx   int
	calls []Call
}

// New creates a MockProvider that cycles through the given responses.
func New(responses ...string) *MockProvider {
	steps := make([]Step, len(responses))
	for i, r := range responses {
		steps[i] = Text(r)
	}
	return &MockProvider{steps: steps, cycle: true}
}

// Script creates a MockProvider that plays steps exactly once.
func Script(steps ...Step) *MockProvider {
	return &MockProvider{steps: steps}
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string { return "mock" }

// Chat returns the next scripted step.
func (m *MockProvider) Chat(ctx context.Context, messages []provider.Message, tools []provider.ToolDef) (*provider.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{
		Messages: append([]provider.Message(nil), messages...),
		Tools:    append([]provider.ToolDef(nil), tools...),
	})

	if len(m.steps) == 0 {
		return &provider.Response{Content: defaultResponse}, nil
	}
	var step Step
	switch {
	case m.cycle:
		step = m.steps[m.idx%len(m.steps)]
	case m.idx < len(m.steps):
		step = m.steps[m.idx]
	default:
		return nil, fmt.Errorf("mock: script exhausted after %d calls", len(m.steps))
	}
	m.idx++
	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	return &resp, nil
}

// Calls returns a copy of every Chat invocation so far.
func (m *MockProvider) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
