package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DhimiMohamed/taskmanager/comms"
	"github.com/DhimiMohamed/taskmanager/provider"
	"github.com/DhimiMohamed/taskmanager/provider/mock"
	"github.com/DhimiMohamed/taskmanager/store"
	"github.com/DhimiMohamed/taskmanager/task"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fixture struct {
	tasks *task.SQLiteStore
	bus   *comms.InMemoryBus
	reg   *Registry
	user  int64
	other int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := store.OpenTemp(t)
	insertUser := func(email string) int64 {
		res, err := db.Exec(`INSERT INTO users (email, password_hash, created_at) VALUES (?, 'x', datetime('now'))`, email)
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		return id
	}
	f := &fixture{
		tasks: task.NewSQLiteStore(db),
		bus:   comms.NewInMemoryBus(),
		user:  insertUser("owner@example.com"),
		other: insertUser("other@example.com"),
	}
	tb := &Toolbox{Tasks: f.tasks, Bus: f.bus, Logger: discardLogger()}
	f.reg = NewRegistry(tb.Tools()...)
	return f
}

func (f *fixture) assistant(p provider.Provider, opts Options) *Assistant {
	opts.Logger = discardLogger()
	opts.Now = func() time.Time { return testNow }
	return New(p, f.reg, f.tasks, opts)
}

func (f *fixture) userTasks(t *testing.T) []*task.Task {
	t.Helper()
	list, err := f.tasks.List(context.Background(), task.Filter{UserID: f.user})
	require.NoError(t, err)
	return list
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

const (
	selectCreate  = `{"tools":[{"tool":"create_task"}]}`
	argsBuyMilk   = "```json\n{\"tool_calls\":[{\"tool\":\"create_task\",\"args\":{\"title\":\"Buy milk\",\"due_date\":\"2026-10-20\"}}]}\n```"
	summaryCreate = `Sure! {"user_message":"Created 'Buy milk' for tomorrow.","details":["Created task Buy milk"],"language":"English"}`
)

func TestRespond_NoJSONReturnsRawText(t *testing.T) {
	f := newFixture(t)
	m := mock.Script(mock.Text("Hello! I can help you manage tasks."))

	resp := f.assistant(m, Options{}).Respond(context.Background(), f.user, "hi")

	assert.Equal(t, "Hello! I can help you manage tasks.", resp.UserMessage)
	assert.Empty(t, resp.ToolResults)
	assert.NotNil(t, resp.ToolResults)
	assert.Equal(t, StageNoTool, resp.Stage)
	assert.Len(t, m.Calls(), 1)
}

func TestRespond_NoToolNeeded(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"user message", `{"user_message":"You have nothing due today."}`, "You have nothing due today."},
		{"null tool", `{"tools":[{"tool":null}]}`, msgNoTools},
		{"legacy null tool", `{"tool":null,"user_message":"Nothing to do."}`, "Nothing to do."},
		{"empty list", `{"tools":[]}`, msgNoTools},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			resp := f.assistant(mock.Script(mock.Text(tt.reply)), Options{}).
				Respond(context.Background(), f.user, "what's up")
			assert.Equal(t, tt.want, resp.UserMessage)
			assert.Empty(t, resp.ToolResults)
		})
	}
}

func TestRespond_CreateTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tasks.CreateCategory(ctx, &task.Category{UserID: f.user, Name: "Errands"}))

	m := mock.Script(mock.Text(selectCreate), mock.Text(argsBuyMilk), mock.Text(summaryCreate))
	resp := f.assistant(m, Options{}).Respond(ctx, f.user, "create a task called Buy milk due tomorrow")

	require.Len(t, resp.ToolResults, 1)
	tr := resp.ToolResults[0]
	assert.Equal(t, "create_task", tr.Tool)
	require.NotNil(t, tr.Result)
	assert.Equal(t, "success", tr.Result.Status)
	assert.Equal(t, "Task 'Buy milk' created successfully.", tr.Result.Message)

	assert.Equal(t, "Created 'Buy milk' for tomorrow.", resp.UserMessage)
	assert.Equal(t, []string{"Created task Buy milk"}, resp.Details)
	assert.Equal(t, "en", resp.Language)
	assert.Equal(t, StageSummarizing, resp.Stage)

	tasks := f.userTasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.Equal(t, "2026-10-20", tasks[0].DueDate)
	assert.Equal(t, tasks[0].ID, tr.Result.TaskID)

	calls := m.Calls()
	require.Len(t, calls, 3)
	extract := calls[1].Messages[0].Content
	assert.Contains(t, extract, "Today's date: 2026-10-19")
	assert.Contains(t, extract, `"name": "Errands"`)
	assert.Contains(t, calls[2].Messages[0].Content, "created successfully")

	events, err := f.bus.History(f.user, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, comms.TaskCreated, events[0].Type)
}

func TestRespond_BatchKeepsEveryResult(t *testing.T) {
	f := newFixture(t)
	m := mock.Script(
		mock.Text(`{"tools":[{"tool":"create_task"},{"tool":"set_task_status"},{"tool":"fly"}]}`),
		mock.Text(`{"tool_calls":[
			{"tool":"create_task","args":{"title":"Report","due_date":"2026-10-21"}},
			{"tool":"set_task_status","args":{"status":7}},
			{"tool":"","args":{}},
			{"tool":"fly","args":{"to":"moon"}}
		]}`),
		mock.Text("I created the report task but could not update statuses."),
	)
	resp := f.assistant(m, Options{}).Respond(context.Background(), f.user, "add report and mark all done, then fly")

	require.Len(t, resp.ToolResults, 3, "empty tool names are skipped")
	assert.Equal(t, "success", resp.ToolResults[0].Result.Status)

	status := resp.ToolResults[1]
	require.NotNil(t, status.Result)
	assert.Equal(t, "error", status.Result.Status)
	assert.Equal(t, "invalid_status", status.Result.Error)

	unknown := resp.ToolResults[2]
	assert.Nil(t, unknown.Result)
	assert.Equal(t, "Unknown tool function: fly", unknown.Error)

	// Unparseable summary comes back verbatim.
	assert.Equal(t, "I created the report task but could not update statuses.", resp.UserMessage)
	assert.Empty(t, resp.Details)

	tasks := f.userTasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.StatusPending, tasks[0].Status)
}

func TestRespond_UnparseableArgumentsWriteNothing(t *testing.T) {
	f := newFixture(t)
	m := mock.Script(mock.Text(selectCreate), mock.Text("I think you want a task called milk?"))

	resp := f.assistant(m, Options{}).Respond(context.Background(), f.user, "create milk task")

	assert.Equal(t, msgParseArgsFailed, resp.UserMessage)
	assert.Empty(t, resp.ToolResults)
	assert.Empty(t, f.userTasks(t))
	assert.Len(t, m.Calls(), 2, "no summary call after a parse failure")
}

func TestRespond_NoToolCallsGenerated(t *testing.T) {
	f := newFixture(t)
	m := mock.Script(mock.Text(selectCreate), mock.Text(`{"tool_calls":[]}`))

	resp := f.assistant(m, Options{}).Respond(context.Background(), f.user, "create something")

	assert.Equal(t, msgNoToolCalls, resp.UserMessage)
	assert.Empty(t, resp.ToolResults)
}

func TestRespond_SamePromptTwiceCreatesTwoTasks(t *testing.T) {
	f := newFixture(t)
	m := mock.Script(
		mock.Text(selectCreate), mock.Text(argsBuyMilk), mock.Text(summaryCreate),
		mock.Text(selectCreate), mock.Text(argsBuyMilk), mock.Text(summaryCreate),
	)
	a := f.assistant(m, Options{})
	for i := 0; i < 2; i++ {
		resp := a.Respond(context.Background(), f.user, "create a task called Buy milk due tomorrow")
		require.Len(t, resp.ToolResults, 1)
	}
	assert.Len(t, f.userTasks(t), 2)
}

func TestRespond_ProviderErrorIsReported(t *testing.T) {
	f := newFixture(t)
	m := mock.Script(mock.Text(selectCreate), mock.Fail(errors.New("upstream 502")))

	resp := f.assistant(m, Options{}).Respond(context.Background(), f.user, "create milk task")

	assert.True(t, strings.HasPrefix(resp.UserMessage, "Error: "), resp.UserMessage)
	assert.Contains(t, resp.UserMessage, "upstream 502")
	assert.Empty(t, resp.ToolResults)
	assert.Empty(t, resp.Details)
	assert.Empty(t, f.userTasks(t))
}

type panickingProvider struct{}

func (panickingProvider) Name() string { return "panic" }
func (panickingProvider) Chat(context.Context, []provider.Message, []provider.ToolDef) (*provider.Response, error) {
	panic("boom")
}

func TestRespond_RecoversPanics(t *testing.T) {
	f := newFixture(t)
	resp := f.assistant(panickingProvider{}, Options{}).Respond(context.Background(), f.user, "hi")
	assert.Equal(t, "Error: internal error: boom", resp.UserMessage)
	assert.Empty(t, resp.ToolResults)
}

func TestRespond_Native(t *testing.T) {
	f := newFixture(t)
	m := mock.Script(
		mock.Calls(provider.ToolCall{ID: "c1", Name: "create_task", Arguments: map[string]any{
			"title": "Dentist", "due_date": "2026-10-22", "priority": "3",
		}}),
		mock.Text("Booked the dentist task for Thursday."),
	)
	resp := f.assistant(m, Options{NativeTools: true}).Respond(context.Background(), f.user, "dentist thursday, important")

	assert.Equal(t, "Booked the dentist task for Thursday.", resp.UserMessage)
	require.Len(t, resp.ToolResults, 1)
	assert.Equal(t, "success", resp.ToolResults[0].Result.Status)

	tasks := f.userTasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.PriorityHigh, tasks[0].Priority)

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Len(t, calls[0].Tools, 5)
	assert.Equal(t, provider.RoleSystem, calls[0].Messages[0].Role)
	last := calls[1].Messages[len(calls[1].Messages)-1]
	assert.Equal(t, provider.RoleTool, last.Role)
	assert.Equal(t, "c1", last.ToolCallID)
	assert.Contains(t, last.Content, `"status":"success"`)
}

func TestRespond_NativeFallsBackToStaged(t *testing.T) {
	f := newFixture(t)
	m := mock.Script(
		mock.Fail(errors.New("tools not supported")),
		mock.Text("Plain answer from the staged path."),
	)
	resp := f.assistant(m, Options{NativeTools: true}).Respond(context.Background(), f.user, "hello")

	assert.Equal(t, "Plain answer from the staged path.", resp.UserMessage)
	assert.Equal(t, StageNoTool, resp.Stage)
	assert.Len(t, m.Calls()[1].Tools, 0)
}

func TestRespond_NativeNoFallbackAfterWrites(t *testing.T) {
	f := newFixture(t)
	m := mock.Script(
		mock.Calls(provider.ToolCall{ID: "c1", Name: "create_task", Arguments: map[string]any{"title": "A", "due_date": "2026-10-22"}}),
		mock.Fail(errors.New("connection reset")),
	)
	resp := f.assistant(m, Options{NativeTools: true}).Respond(context.Background(), f.user, "add A")

	assert.Contains(t, resp.UserMessage, "connection reset")
	assert.Len(t, f.userTasks(t), 1, "the staged path must not repeat the write")
	assert.Len(t, m.Calls(), 2)
}

func TestRespond_NativeRoundLimit(t *testing.T) {
	f := newFixture(t)
	search := provider.ToolCall{ID: "s1", Name: "search_tasks_by_date_range", Arguments: map[string]any{
		"start_date": "2026-10-19", "end_date": "2026-10-25",
	}}
	m := mock.Script(mock.Calls(search), mock.Text("Your week is free."))
	resp := f.assistant(m, Options{NativeTools: true, MaxToolRounds: 1}).Respond(context.Background(), f.user, "my week?")

	assert.Equal(t, "Your week is free.", resp.UserMessage)
	require.Len(t, resp.ToolResults, 1)
	assert.Equal(t, "No tasks found.", resp.ToolResults[0].Result.Message)
	assert.Empty(t, m.Calls()[1].Tools, "the final round offers no tools")
}

func TestRespond_NativeRepeatedCallRunsOnce(t *testing.T) {
	f := newFixture(t)
	create := provider.ToolCall{ID: "c1", Name: "create_task", Arguments: map[string]any{"title": "Gym", "due_date": "2026-10-21"}}
	again := create
	again.ID = "c2"
	m := mock.Script(mock.Calls(create), mock.Calls(again), mock.Text("Added Gym."))
	resp := f.assistant(m, Options{NativeTools: true, MaxToolRounds: 5}).Respond(context.Background(), f.user, "gym wednesday")

	assert.Equal(t, "Added Gym.", resp.UserMessage)
	require.Len(t, resp.ToolResults, 1)
	assert.Len(t, f.userTasks(t), 1, "the repeated call must not create a second task")

	calls := m.Calls()
	require.Len(t, calls, 3)
	assert.Empty(t, calls[2].Tools, "a round of only repeats forces the final answer")
	last := calls[2].Messages[len(calls[2].Messages)-1]
	assert.Equal(t, "c2", last.ToolCallID)
	assert.Contains(t, last.Content, errRepeatedCall)
}

func TestCallKey(t *testing.T) {
	a := callKey("create_task", map[string]any{"title": "x", "priority": "3"})
	b := callKey("create_task", map[string]any{"priority": "3", "title": "x"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, callKey("create_task", map[string]any{"title": "y", "priority": "3"}))
	assert.NotEqual(t, a, callKey("update_task", map[string]any{"title": "x", "priority": "3"}))
}
