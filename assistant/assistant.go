// Package assistant turns a natural-language request into task operations.
//
// Requests run through a staged pipeline that works with any completion
// model: select tools, extract their arguments, execute them and summarize
// the results. Models with native function calling can instead drive the
// same tool registry directly.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/DhimiMohamed/taskmanager/provider"
	"github.com/DhimiMohamed/taskmanager/task"
)

// Stage is how far a request got through the pipeline.
type Stage string

const (
	StageSelecting   Stage = "selecting"
	StageNoTool      Stage = "no_tool_response"
	StageExtracting  Stage = "extracting"
	StageExecuting   Stage = "executing"
	StageSummarizing Stage = "summarizing"
)

// Fixed replies for malformed or empty model output.
const (
	msgNoTools          = "No tools needed, but here's the response."
	msgParseArgsFailed  = "Failed to parse tool arguments"
	msgNoToolCalls      = "No tool calls were generated"
	defaultMaxToolRound = 3
)

// Response is the assistant's answer to one request.
type Response struct {
	UserMessage string       `json:"user_message"`
	Details     []string     `json:"details"`
	Language    string       `json:"language,omitempty"`
	ToolResults []ToolResult `json:"tool_results"`
	Stage       Stage        `json:"stage,omitempty"`
}

// ToolResult records one executed tool call. Exactly one of Result and
// Error is set.
type ToolResult struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Result *Result        `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Options tune an Assistant.
type Options struct {
	// NativeTools sends the catalog as function definitions instead of
	// running the staged pipeline.
	NativeTools   bool
	MaxToolRounds int
	Logger        *slog.Logger
	Now           func() time.Time
}

// Assistant answers requests using a completion provider and a tool registry.
type Assistant struct {
	provider  provider.Provider
	registry  *Registry
	tasks     task.Store
	native    bool
	maxRounds int
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Assistant. tasks supplies the category list shown to the model.
func New(p provider.Provider, reg *Registry, tasks task.Store, opts Options) *Assistant {
	a := &Assistant{
		provider:  p,
		registry:  reg,
		tasks:     tasks,
		native:    opts.NativeTools,
		maxRounds: opts.MaxToolRounds,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if a.maxRounds <= 0 {
		a.maxRounds = defaultMaxToolRound
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Respond handles one request for userID. It never fails: provider and
// storage errors come back as an "Error: ..." message with no tool results.
func (a *Assistant) Respond(ctx context.Context, userID int64, prompt string) (resp *Response) {
	defer func() {
		if p := recover(); p != nil {
			a.logger.Error("assistant: panic", slog.Any("panic", p), slog.String("stack", string(debug.Stack())))
			resp = errorResponse(fmt.Errorf("internal error: %v", p))
		}
	}()

	var err error
	if a.native {
		var executed bool
		resp, executed, err = a.runNative(ctx, userID, prompt)
		if err != nil && !executed && ctx.Err() == nil {
			// Nothing was written yet, so the staged path can safely retry.
			a.logger.Warn("assistant: native tool calling failed, using staged pipeline",
				slog.Int64("user", userID), slog.Any("err", err))
			resp, err = a.runStaged(ctx, userID, prompt)
		}
	} else {
		resp, err = a.runStaged(ctx, userID, prompt)
	}
	if err != nil {
		a.logger.Error("assistant: request failed", slog.Int64("user", userID), slog.Any("err", err))
		return errorResponse(err)
	}
	if resp.Details == nil {
		resp.Details = []string{}
	}
	if resp.ToolResults == nil {
		resp.ToolResults = []ToolResult{}
	}
	return resp
}

func errorResponse(err error) *Response {
	return &Response{
		UserMessage: "Error: " + err.Error(),
		Details:     []string{},
		ToolResults: []ToolResult{},
	}
}

func (a *Assistant) enter(userID int64, s Stage) {
	a.logger.Debug("assistant: stage", slog.Int64("user", userID), slog.String("stage", string(s)))
}

func (a *Assistant) categories(ctx context.Context, userID int64) ([]categoryRef, error) {
	cats, err := a.tasks.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	refs := make([]categoryRef, 0, len(cats))
	for _, c := range cats {
		refs = append(refs, categoryRef{ID: c.ID, Name: c.Name})
	}
	return refs, nil
}

// execute runs one call through the registry and records the outcome.
func (a *Assistant) execute(ctx context.Context, userID int64, name string, args map[string]any) ToolResult {
	if args == nil {
		args = map[string]any{}
	}
	tr := ToolResult{Tool: name, Args: args}
	res, err := a.registry.Execute(ctx, userID, name, args)
	switch {
	case err == nil:
		tr.Result = res
		a.logger.Info("assistant: tool executed", slog.Int64("user", userID),
			slog.String("tool", name), slog.String("status", res.Status))
	case isUnknownTool(err):
		tr.Error = "Unknown tool function: " + name
		a.logger.Warn("assistant: unknown tool", slog.Int64("user", userID), slog.String("tool", name))
	default:
		tr.Error = err.Error()
		a.logger.Error("assistant: tool failed", slog.Int64("user", userID),
			slog.String("tool", name), slog.Any("err", err))
	}
	return tr
}
