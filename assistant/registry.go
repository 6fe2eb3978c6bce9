package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/DhimiMohamed/taskmanager/provider"
)

// ErrUnknownTool is returned by Execute for a name not in the registry.
var ErrUnknownTool = errors.New("unknown tool")

// Result is what a tool reports back. Domain failures are results with
// Status "error" and a machine-readable Error code, never Go errors.
type Result struct {
	Status  string `json:"status"` // "success" or "error"
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Count   *int   `json:"count,omitempty"`
	TaskID  int64  `json:"task_id,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

func success(msg string) *Result { return &Result{Status: statusSuccess, Message: msg} }

func failure(code, msg string) *Result {
	return &Result{Status: statusError, Message: msg, Error: code}
}

// Tool is an action the assistant can take on behalf of a user.
type Tool interface {
	// Name returns the unique tool identifier the model refers to.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Definition returns the tool definition for the AI provider.
	Definition() provider.ToolDef

	// Execute runs the tool for userID.
	Execute(ctx context.Context, userID int64, args map[string]any) *Result
}

// Registry holds the tool catalog shared by the staged and native paths.
// Tools keep their registration order so prompts are stable.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Definitions returns the provider definitions of every tool.
func (r *Registry) Definitions() []provider.ToolDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]provider.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute runs the named tool. The error is non-nil only when the tool does
// not exist or panicked; a failing action is reported in the Result.
func (r *Registry) Execute(ctx context.Context, userID int64, name string, args map[string]any) (res *Result, err error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("tool %s failed: %v", name, p)
		}
	}()
	if args == nil {
		args = map[string]any{}
	}
	return t.Execute(ctx, userID, args), nil
}
