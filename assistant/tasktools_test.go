package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DhimiMohamed/taskmanager/comms"
	"github.com/DhimiMohamed/taskmanager/task"
)

func (f *fixture) seed(t *testing.T, owner int64, title, due string, p task.Priority) *task.Task {
	t.Helper()
	tk := &task.Task{UserID: owner, Title: title, DueDate: due, Priority: p}
	require.NoError(t, f.tasks.Create(context.Background(), tk))
	return tk
}

func (f *fixture) run(t *testing.T, tool string, args map[string]any) *Result {
	t.Helper()
	res, err := f.reg.Execute(context.Background(), f.user, tool, args)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestCreateTask_Validation(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]any
		wantCode string
	}{
		{"missing title", map[string]any{"due_date": "2026-10-20"}, "invalid_format"},
		{"missing due date", map[string]any{"title": "x"}, "invalid_format"},
		{"bad due date", map[string]any{"title": "x", "due_date": "20/10/2026"}, "invalid_format"},
		{"bad start time", map[string]any{"title": "x", "due_date": "2026-10-20", "start_time": "9am"}, "invalid_format"},
		{"bad status", map[string]any{"title": "x", "due_date": "2026-10-20", "status": 5}, "invalid_status"},
		{"bad priority", map[string]any{"title": "x", "due_date": "2026-10-20", "priority": 9}, "invalid_priority"},
		{"unknown category", map[string]any{"title": "x", "due_date": "2026-10-20", "category_id": 999}, "invalid_category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			res := f.run(t, "create_task", tt.args)
			assert.Equal(t, "error", res.Status)
			assert.Equal(t, tt.wantCode, res.Error)
			assert.Empty(t, f.userTasks(t))
		})
	}
}

func TestCreateTask_AllFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := &task.Category{UserID: f.user, Name: "Work"}
	require.NoError(t, f.tasks.CreateCategory(ctx, cat))

	res := f.run(t, "create_task", map[string]any{
		"title":       "Standup",
		"description": "daily sync",
		"due_date":    "2026-10-20",
		"start_time":  "09:00:00",
		"end_time":    "09:15:00",
		"category_id": float64(cat.ID),
		"status":      "1",
		"priority":    2.0,
	})
	require.Equal(t, "success", res.Status, res.Message)

	got, err := f.tasks.Get(ctx, res.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "daily sync", got.Description)
	assert.Equal(t, "09:00:00", got.StartTime)
	assert.Equal(t, "09:15:00", got.EndTime)
	assert.Equal(t, task.StatusInProgress, got.Status)
	assert.Equal(t, task.PriorityMedium, got.Priority)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, cat.ID, *got.CategoryID)
}

func TestCreateTask_OtherUsersCategoryRejected(t *testing.T) {
	f := newFixture(t)
	cat := &task.Category{UserID: f.other, Name: "Private"}
	require.NoError(t, f.tasks.CreateCategory(context.Background(), cat))

	res := f.run(t, "create_task", map[string]any{"title": "x", "due_date": "2026-10-20", "category_id": cat.ID})
	assert.Equal(t, "invalid_category", res.Error)
}

func TestSetTaskStatus(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, f.user, "A", "2026-10-20", task.PriorityHigh)
	f.seed(t, f.user, "B", "2026-10-21", task.PriorityHigh)
	theirs := f.seed(t, f.other, "C", "2026-10-20", task.PriorityHigh)

	res := f.run(t, "set_task_status", map[string]any{"status": 2, "due_date": "2026-10-20"})
	require.Equal(t, "success", res.Status)
	assert.Equal(t, "Updated 1 task(s) to status 'completed'.", res.Message)
	require.NotNil(t, res.Count)
	assert.Equal(t, 1, *res.Count)

	got, err := f.tasks.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	other, err := f.tasks.Get(context.Background(), theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, other.Status, "other users' tasks are untouched")

	events, err := f.bus.History(f.user, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, comms.TaskStatusChanged, events[0].Type)
	assert.Equal(t, "pending", events[0].FromState)
	assert.Equal(t, "completed", events[0].ToState)
}

func TestSetTaskStatus_InvalidStatusUpdatesNothing(t *testing.T) {
	for _, status := range []any{3, -1, "done", nil} {
		f := newFixture(t)
		tk := f.seed(t, f.user, "A", "2026-10-20", task.PriorityLow)

		res := f.run(t, "set_task_status", map[string]any{"status": status})
		assert.Equal(t, "error", res.Status)
		assert.Equal(t, "invalid_status", res.Error)
		assert.Contains(t, res.Message, "Valid options are: 0=pending, 1=in_progress, 2=completed")

		got, err := f.tasks.Get(context.Background(), tk.ID)
		require.NoError(t, err)
		assert.Equal(t, task.StatusPending, got.Status)
	}
}

func TestSetTaskStatus_NoMatch(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.user, "A", "2026-10-20", task.PriorityLow)

	res := f.run(t, "set_task_status", map[string]any{"status": "2", "priority": 3})
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "No tasks found matching your criteria.", res.Message)
}

func TestSearchTasksByDateRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := &task.Category{UserID: f.user, Name: "Home"}
	require.NoError(t, f.tasks.CreateCategory(ctx, cat))

	res := f.run(t, "search_tasks_by_date_range", map[string]any{"start_date": "2026-10-19", "end_date": "2026-10-25"})
	assert.Equal(t, "No tasks found.", res.Message)
	assert.Equal(t, 0, *res.Count)

	low := &task.Task{UserID: f.user, Title: "Laundry", DueDate: "2026-10-20", CategoryID: &cat.ID}
	require.NoError(t, f.tasks.Create(ctx, low))
	res = f.run(t, "search_tasks_by_date_range", map[string]any{"start_date": "2026-10-19", "end_date": "2026-10-25"})
	assert.Equal(t, "Found task: 'Laundry' (Due: 2026-10-20) (Category: Home)", res.Message)

	f.seed(t, f.user, "Taxes", "2026-10-25", task.PriorityHigh)
	f.seed(t, f.user, "Later", "2026-11-30", task.PriorityHigh)
	res = f.run(t, "search_tasks_by_date_range", map[string]any{"start_date": "2026-10-19", "end_date": "2026-10-25"})
	assert.Equal(t, "Found 2 tasks:\n1. Taxes (Due: 2026-10-25) (Category: No category)\n2. Laundry (Due: 2026-10-20) (Category: Home)", res.Message)
	assert.Equal(t, 2, *res.Count)
}

func TestSearchTasksByDateRange_Errors(t *testing.T) {
	f := newFixture(t)
	res := f.run(t, "search_tasks_by_date_range", map[string]any{"start_date": "2026-10-25", "end_date": "2026-10-19"})
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, "End date cannot be before start date.", res.Message)

	res = f.run(t, "search_tasks_by_date_range", map[string]any{"start_date": "tomorrow", "end_date": "2026-10-19"})
	assert.Equal(t, "invalid_format", res.Error)
}

func TestDeleteTaskByID(t *testing.T) {
	f := newFixture(t)
	mine := f.seed(t, f.user, "Mine", "2026-10-20", task.PriorityLow)
	theirs := f.seed(t, f.other, "Theirs", "2026-10-20", task.PriorityLow)

	res := f.run(t, "delete_task_by_id", map[string]any{"task_id": float64(theirs.ID)})
	assert.Equal(t, "not_found", res.Error)
	_, err := f.tasks.Get(context.Background(), theirs.ID)
	assert.NoError(t, err, "another user's task survives")

	res = f.run(t, "delete_task_by_id", map[string]any{"task_id": mine.ID})
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "Task 'Mine' deleted.", res.Message)
	assert.Empty(t, f.userTasks(t))

	res = f.run(t, "delete_task_by_id", map[string]any{"task_id": mine.ID})
	assert.Equal(t, "not_found", res.Error)

	res = f.run(t, "delete_task_by_id", map[string]any{})
	assert.Equal(t, "invalid_format", res.Error)
}

func TestDeleteTaskByID_CustomAccess(t *testing.T) {
	f := newFixture(t)
	theirs := f.seed(t, f.other, "Shared", "2026-10-20", task.PriorityLow)
	tb := &Toolbox{
		Tasks:  f.tasks,
		Logger: discardLogger(),
		CanDelete: func(context.Context, int64, *task.Task) error {
			return nil
		},
	}
	reg := NewRegistry(tb.Tools()...)

	res, err := reg.Execute(context.Background(), f.user, "delete_task_by_id", map[string]any{"task_id": theirs.ID})
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
}

func TestDeleteTaskWithoutID(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.user, "Buy milk", "2026-10-20", task.PriorityLow)
	f.seed(t, f.user, "Buy bread", "2026-10-21", task.PriorityLow)
	f.seed(t, f.user, "Call mom", "2026-10-20", task.PriorityLow)
	f.seed(t, f.other, "Buy eggs", "2026-10-20", task.PriorityLow)

	res := f.run(t, "delete_task_without_id", map[string]any{})
	assert.Equal(t, "missing_filter", res.Error)
	assert.Len(t, f.userTasks(t), 3)

	res = f.run(t, "delete_task_without_id", map[string]any{"title_contains": "buy"})
	require.Equal(t, "success", res.Status)
	assert.Equal(t, "Deleted 2 task(s).", res.Message)

	left := f.userTasks(t)
	require.Len(t, left, 1)
	assert.Equal(t, "Call mom", left[0].Title)

	others, err := f.tasks.List(context.Background(), task.Filter{UserID: f.other})
	require.NoError(t, err)
	assert.Len(t, others, 1)

	res = f.run(t, "delete_task_without_id", map[string]any{"due_date": "not-a-date"})
	assert.Equal(t, "invalid_format", res.Error)
	assert.Len(t, f.userTasks(t), 1, "a bad filter never widens the delete")
}

func TestRegistry(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{
		"create_task", "set_task_status", "search_tasks_by_date_range",
		"delete_task_by_id", "delete_task_without_id",
	}, f.reg.Names())

	defs := f.reg.Definitions()
	require.Len(t, defs, 5)
	assert.Equal(t, "create_task", defs[0].Name)
	assert.NotEmpty(t, defs[0].Parameters["properties"])

	_, err := f.reg.Execute(context.Background(), f.user, "nope", nil)
	assert.True(t, errors.Is(err, ErrUnknownTool))
}

func TestIntArg(t *testing.T) {
	tests := []struct {
		in      any
		want    int64
		present bool
		wantErr bool
	}{
		{float64(3), 3, true, false},
		{3.5, 0, true, true},
		{"12", 12, true, false},
		{" 7 ", 7, true, false},
		{"seven", 0, true, true},
		{"", 0, false, false},
		{nil, 0, false, false},
		{true, 0, true, true},
	}
	for _, tt := range tests {
		got, present, err := intArg(map[string]any{"n": tt.in}, "n")
		assert.Equal(t, tt.want, got, "%v", tt.in)
		assert.Equal(t, tt.present, present, "%v", tt.in)
		assert.Equal(t, tt.wantErr, err != nil, "%v", tt.in)
	}
}
