package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DhimiMohamed/taskmanager/internal/lang"
	"github.com/DhimiMohamed/taskmanager/provider"
	"github.com/DhimiMohamed/taskmanager/task"
)

// runStaged drives the four prompt-only stages. Every model call is a
// single user message; the model never sees tool definitions directly.
func (a *Assistant) runStaged(ctx context.Context, userID int64, input string) (*Response, error) {
	a.enter(userID, StageSelecting)
	prompt, err := render(selectPrompt, map[string]any{"Tools": a.registry.Names(), "Input": input})
	if err != nil {
		return nil, fmt.Errorf("render selection prompt: %w", err)
	}
	reply, err := provider.Complete(ctx, a.provider, "", prompt)
	if err != nil {
		return nil, fmt.Errorf("tool selection: %w", err)
	}
	selection, ok := extractJSON(reply)
	if !ok {
		a.enter(userID, StageNoTool)
		return &Response{UserMessage: reply, Stage: StageNoTool}, nil
	}
	needed := selectedTools(selection)
	if len(needed) == 0 {
		a.enter(userID, StageNoTool)
		msg, _ := selection["user_message"].(string)
		if msg == "" {
			msg = msgNoTools
		}
		return &Response{UserMessage: msg, Stage: StageNoTool}, nil
	}

	a.enter(userID, StageExtracting)
	cats, err := a.categories(ctx, userID)
	if err != nil {
		return nil, err
	}
	prompt, err = render(extractPrompt, map[string]any{
		"Today":      a.now().Format(task.DateLayout),
		"Categories": cats,
		"Input":      input,
		"Tools":      needed,
		"Schemas":    a.registry.Definitions(),
	})
	if err != nil {
		return nil, fmt.Errorf("render extraction prompt: %w", err)
	}
	reply, err = provider.Complete(ctx, a.provider, "", prompt)
	if err != nil {
		return nil, fmt.Errorf("argument extraction: %w", err)
	}
	callsDoc, ok := extractJSON(reply)
	if !ok {
		a.logger.Warn("assistant: unparseable tool arguments",
			slog.Int64("user", userID), slog.String("reply", truncate(reply, 200)))
		return &Response{UserMessage: msgParseArgsFailed, Stage: StageExtracting}, nil
	}
	calls := toolCalls(callsDoc)
	if len(calls) == 0 {
		return &Response{UserMessage: msgNoToolCalls, Stage: StageExtracting}, nil
	}

	a.enter(userID, StageExecuting)
	var results []ToolResult
	for _, c := range calls {
		if c.Name == "" {
			continue
		}
		results = append(results, a.execute(ctx, userID, c.Name, c.Arguments))
	}

	a.enter(userID, StageSummarizing)
	prompt, err = render(summarizePrompt, map[string]any{"Results": results, "Input": input})
	if err != nil {
		return nil, fmt.Errorf("render summary prompt: %w", err)
	}
	reply, err = provider.Complete(ctx, a.provider, "", prompt)
	if err != nil {
		return nil, fmt.Errorf("summarize results: %w", err)
	}
	resp := &Response{UserMessage: reply, ToolResults: results, Stage: StageSummarizing}
	if summary, ok := extractJSON(reply); ok {
		if msg, _ := summary["user_message"].(string); msg != "" {
			resp.UserMessage = msg
		}
		resp.Details = stringList(summary["details"])
		if l, _ := summary["language"].(string); l != "" {
			resp.Language = normalizeLanguage(l)
		}
	}
	return resp, nil
}

// selectedTools reads {"tools":[{"tool":..}]} or the single-tool form
// {"tool":..}. Null and empty names are dropped.
func selectedTools(doc map[string]any) []string {
	var names []string
	if list, ok := doc["tools"].([]any); ok {
		for _, item := range list {
			switch v := item.(type) {
			case map[string]any:
				if name, _ := v["tool"].(string); name != "" {
					names = append(names, name)
				}
			case string:
				if v != "" {
					names = append(names, v)
				}
			}
		}
		return names
	}
	if name, _ := doc["tool"].(string); name != "" {
		names = append(names, name)
	}
	return names
}

// toolCalls reads {"tool_calls":[{"tool":..,"args":{..}}]}. Entries keep
// their position even when the name is missing so the executor can skip them.
func toolCalls(doc map[string]any) []provider.ToolCall {
	list, _ := doc["tool_calls"].([]any)
	calls := make([]provider.ToolCall, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["tool"].(string)
		args, _ := m["args"].(map[string]any)
		calls = append(calls, provider.ToolCall{Name: name, Arguments: args})
	}
	return calls
}

// stringList flattens the summary's details, which models sometimes send
// as objects rather than strings.
func stringList(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch s := item.(type) {
		case string:
			out = append(out, s)
		case nil:
		default:
			b, err := json.Marshal(s)
			if err == nil {
				out = append(out, string(b))
			}
		}
	}
	return out
}

// normalizeLanguage maps "Spanish" or "es-MX" to a supported tag and keeps
// anything unrecognized as the model wrote it.
func normalizeLanguage(s string) string {
	if tag, ok := lang.Normalize(s); ok {
		return tag
	}
	return s
}

func isUnknownTool(err error) bool { return errors.Is(err, ErrUnknownTool) }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
