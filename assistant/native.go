package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/DhimiMohamed/taskmanager/provider"
	"github.com/DhimiMohamed/taskmanager/task"
)

// runNative lets the model call tools directly for up to maxRounds rounds.
// executed reports whether any tool ran, after which a retry through the
// staged pipeline would repeat writes.
func (a *Assistant) runNative(ctx context.Context, userID int64, input string) (resp *Response, executed bool, err error) {
	cats, err := a.categories(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	system, err := render(nativeSystemPrompt, map[string]any{
		"Today":      a.now().Format(task.DateLayout),
		"Categories": cats,
	})
	if err != nil {
		return nil, false, fmt.Errorf("render system prompt: %w", err)
	}

	messages := []provider.Message{
		{Role: provider.RoleSystem, Content: system},
		{Role: provider.RoleUser, Content: input},
	}
	defs := a.registry.Definitions()
	guard := newRepeatGuard()
	var results []ToolResult

	a.enter(userID, StageSelecting)
	for round := 1; round <= a.maxRounds; round++ {
		out, err := a.provider.Chat(ctx, messages, defs)
		if err != nil {
			return nil, len(results) > 0, fmt.Errorf("chat round %d: %w", round, err)
		}
		if len(out.ToolCalls) == 0 {
			stage := StageSummarizing
			if len(results) == 0 {
				stage = StageNoTool
			}
			a.enter(userID, stage)
			return &Response{UserMessage: out.Content, ToolResults: results, Stage: stage}, len(results) > 0, nil
		}

		a.enter(userID, StageExecuting)
		messages = append(messages, provider.Message{
			Role:      provider.RoleAssistant,
			Content:   out.Content,
			ToolCalls: out.ToolCalls,
		})
		fresh := 0
		for _, tc := range out.ToolCalls {
			var tr ToolResult
			if guard.first(tc.Name, tc.Arguments) {
				fresh++
				tr = a.execute(ctx, userID, tc.Name, tc.Arguments)
				results = append(results, tr)
			} else {
				tr = ToolResult{Tool: tc.Name, Args: tc.Arguments, Error: errRepeatedCall}
			}
			messages = append(messages, provider.Message{
				Role:       provider.RoleTool,
				Content:    toolMessage(tr),
				ToolCallID: tc.ID,
				Name:       tc.Name,
			})
		}
		if fresh == 0 {
			a.logger.Warn("assistant: model repeated its tool calls", slog.Int64("user", userID), slog.Int("round", round))
			break
		}
	}

	// Out of rounds, or looping: ask once more without tools so the model has to answer.
	a.logger.Warn("assistant: forcing a final answer", slog.Int64("user", userID), slog.Int("max_rounds", a.maxRounds))
	a.enter(userID, StageSummarizing)
	out, err := a.provider.Chat(ctx, messages, nil)
	if err != nil {
		return nil, true, fmt.Errorf("final answer: %w", err)
	}
	return &Response{UserMessage: out.Content, ToolResults: results, Stage: StageSummarizing}, true, nil
}

func toolMessage(tr ToolResult) string {
	if tr.Error != "" {
		return "Error: " + tr.Error
	}
	b, err := json.Marshal(tr.Result)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return string(b)
}
