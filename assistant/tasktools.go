package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DhimiMohamed/taskmanager/comms"
	"github.com/DhimiMohamed/taskmanager/provider"
	"github.com/DhimiMohamed/taskmanager/store"
	"github.com/DhimiMohamed/taskmanager/task"
)

// Toolbox carries what the task tools need. Only Tasks is required.
type Toolbox struct {
	Tasks task.Store
	Bus   comms.Bus

	// CanDelete decides whether userID may delete t. When nil only the
	// owner may.
	CanDelete func(ctx context.Context, userID int64, t *task.Task) error

	Logger *slog.Logger
}

// Tools returns the task tools in catalog order.
func (tb *Toolbox) Tools() []Tool {
	return []Tool{
		&createTaskTool{tb},
		&setTaskStatusTool{tb},
		&searchByDateRangeTool{tb},
		&deleteTaskByIDTool{tb},
		&deleteTaskWithoutIDTool{tb},
	}
}

func (tb *Toolbox) logger() *slog.Logger {
	if tb.Logger != nil {
		return tb.Logger
	}
	return slog.Default()
}

func (tb *Toolbox) publish(ctx context.Context, typ comms.EventType, userID int64, t *task.Task, from, to string) {
	if tb.Bus == nil {
		return
	}
	ev := &comms.Event{
		Type:       typ,
		UserID:     userID,
		ObjectType: "task",
		ObjectID:   t.ID,
		ProjectID:  t.ProjectID,
		FromState:  from,
		ToState:    to,
		Detail:     t.Title,
	}
	if err := tb.Bus.Publish(ctx, ev); err != nil {
		tb.logger().Warn("assistant: publish event failed", slog.String("type", string(typ)), slog.Any("err", err))
	}
}

func (tb *Toolbox) categoryNames(ctx context.Context, userID int64) (map[int64]string, error) {
	cats, err := tb.Tasks.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}

// ---------------------------------------------------------------------------

type createTaskTool struct{ *Toolbox }

func (t *createTaskTool) Name() string { return "create_task" }
func (t *createTaskTool) Description() string {
	return "Create a new task for the user. Requires a title and due date (YYYY-MM-DD). Optional fields: description, start_time, end_time (HH:MM:SS), category_id, status (0=pending, 1=in_progress, 2=completed), priority (1=low, 2=medium, 3=high)."
}
func (t *createTaskTool) Definition() provider.ToolDef {
	return provider.ToolDef{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":       map[string]any{"type": "string", "description": "Title of the task"},
				"description": map[string]any{"type": "string", "description": "Detailed description of the task"},
				"due_date":    map[string]any{"type": "string", "format": "date", "description": "Due date in YYYY-MM-DD format"},
				"start_time":  map[string]any{"type": "string", "format": "time", "description": "Start time in HH:MM:SS format"},
				"end_time":    map[string]any{"type": "string", "format": "time", "description": "End time in HH:MM:SS format"},
				"category_id": map[string]any{"type": "integer", "description": "ID of the category this task belongs to"},
				"status":      map[string]any{"type": "integer", "enum": []int{0, 1, 2}, "description": "0=pending, 1=in_progress, 2=completed"},
				"priority":    map[string]any{"type": "integer", "enum": []int{1, 2, 3}, "description": "1=low, 2=medium, 3=high"},
			},
			"required": []string{"title", "due_date"},
		},
	}
}

func (t *createTaskTool) Execute(ctx context.Context, userID int64, args map[string]any) *Result {
	title, ok := strArg(args, "title")
	if !ok {
		return failure("invalid_format", "Title is required.")
	}
	due, ok := strArg(args, "due_date")
	if !ok {
		return failure("invalid_format", "Due date is required. Use YYYY-MM-DD.")
	}
	if task.ValidateDate(due) != nil {
		return failure("invalid_format", "Invalid date format. Use YYYY-MM-DD.")
	}

	tk := &task.Task{UserID: userID, CreatedBy: userID, Title: title, DueDate: due}
	tk.Description, _ = strArg(args, "description")
	for key, dst := range map[string]*string{"start_time": &tk.StartTime, "end_time": &tk.EndTime} {
		v, ok := strArg(args, key)
		if !ok {
			continue
		}
		if task.ValidateTime(v) != nil {
			return failure("invalid_format", fmt.Sprintf("Invalid %s format. Use HH:MM:SS.", key))
		}
		*dst = v
	}

	if st, present, valid := statusArg(args, "status"); present {
		if !valid {
			return invalidStatus(args["status"])
		}
		tk.Status = st
	}
	if p, present, err := intArg(args, "priority"); present {
		if err != nil || !task.Priority(p).Valid() {
			return failure("invalid_priority", fmt.Sprintf("Invalid priority '%v'. Valid options are: 1=low, 2=medium, 3=high", args["priority"]))
		}
		tk.Priority = task.Priority(p)
	}

	if cid, present, err := intArg(args, "category_id"); present {
		if err != nil {
			return failure("invalid_category", "Category not found or access denied.")
		}
		names, err := t.categoryNames(ctx, userID)
		if err != nil {
			return t.internal("creating the task", err)
		}
		if _, ok := names[cid]; !ok {
			return failure("invalid_category", "Category not found or access denied.")
		}
		tk.CategoryID = &cid
	}

	if err := t.Tasks.Create(ctx, tk); err != nil {
		return t.internal("creating the task", err)
	}
	t.publish(ctx, comms.TaskCreated, userID, tk, "", string(tk.Status))

	res := success(fmt.Sprintf("Task '%s' created successfully.", tk.Title))
	res.TaskID = tk.ID
	return res
}

func (tb *Toolbox) internal(doing string, err error) *Result {
	tb.logger().Error("assistant: tool failed", slog.String("while", doing), slog.Any("err", err))
	return failure(err.Error(), fmt.Sprintf("An error occurred while %s.", doing))
}

// ---------------------------------------------------------------------------

type setTaskStatusTool struct{ *Toolbox }

func (t *setTaskStatusTool) Name() string { return "set_task_status" }
func (t *setTaskStatusTool) Description() string {
	return "Update the status of the user's task(s) matching the given filters. Provide filters (due_date, category_id, or priority) to identify the task(s) and the new status (0=pending, 1=in_progress, 2=completed)."
}
func (t *setTaskStatusTool) Definition() provider.ToolDef {
	return provider.ToolDef{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"due_date":    map[string]any{"type": "string", "format": "date", "description": "Due date of the task(s) to update (YYYY-MM-DD)"},
				"category_id": map[string]any{"type": "integer", "description": "Category ID of the task(s) to update"},
				"priority":    map[string]any{"type": "integer", "description": "Priority of the task(s) to update (1-3)"},
				"status":      map[string]any{"type": "integer", "enum": []int{0, 1, 2}, "description": "New status (0=pending, 1=in_progress, 2=completed)"},
			},
			"required": []string{"status"},
		},
	}
}

func (t *setTaskStatusTool) Execute(ctx context.Context, userID int64, args map[string]any) *Result {
	st, present, valid := statusArg(args, "status")
	if !present || !valid {
		return invalidStatus(args["status"])
	}

	f := task.Filter{UserID: userID}
	if res := applyFilters(&f, args, "due_date", "category_id", "priority"); res != nil {
		return res
	}

	matching, err := t.Tasks.List(ctx, f)
	if err != nil {
		return t.internal("updating task status", err)
	}
	if len(matching) == 0 {
		return success("No tasks found matching your criteria.")
	}
	n, err := t.Tasks.UpdateStatus(ctx, f, st)
	if err != nil {
		return t.internal("updating task status", err)
	}
	for _, tk := range matching {
		if tk.Status != st {
			t.publish(ctx, comms.TaskStatusChanged, userID, tk, string(tk.Status), string(st))
		}
	}
	count := int(n)
	res := success(fmt.Sprintf("Updated %d task(s) to status '%s'.", n, st))
	res.Count = &count
	return res
}

// applyFilters copies the named filter arguments onto f. A malformed value
// is reported rather than ignored so a bad filter never widens a bulk write.
func applyFilters(f *task.Filter, args map[string]any, keys ...string) *Result {
	for _, key := range keys {
		switch key {
		case "due_date":
			if v, ok := strArg(args, key); ok {
				if task.ValidateDate(v) != nil {
					return failure("invalid_format", "Invalid date format. Use YYYY-MM-DD.")
				}
				f.DueDate = v
			}
		case "category_id":
			id, present, err := intArg(args, key)
			if err != nil {
				return failure("invalid_format", err.Error())
			}
			if present {
				f.CategoryID = &id
			}
		case "priority":
			p, present, err := intArg(args, key)
			if err != nil {
				return failure("invalid_format", err.Error())
			}
			if present {
				pr := task.Priority(p)
				if !pr.Valid() {
					return failure("invalid_priority", fmt.Sprintf("Invalid priority '%v'. Valid options are: 1=low, 2=medium, 3=high", args[key]))
				}
				f.Priority = &pr
			}
		case "status":
			st, present, valid := statusArg(args, key)
			if present && !valid {
				return invalidStatus(args[key])
			}
			if present {
				f.Status = &st
			}
		case "title_contains":
			if v, ok := strArg(args, key); ok {
				f.TitleContains = v
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------

type searchByDateRangeTool struct{ *Toolbox }

func (t *searchByDateRangeTool) Name() string { return "search_tasks_by_date_range" }
func (t *searchByDateRangeTool) Description() string {
	return "Search for tasks within a specific date range. Returns tasks due between start_date and end_date (inclusive). Use this to answer questions about the user's day, week, or specific date ranges."
}
func (t *searchByDateRangeTool) Definition() provider.ToolDef {
	return provider.ToolDef{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"start_date": map[string]any{"type": "string", "format": "date", "description": "The start date of the range in YYYY-MM-DD format"},
				"end_date":   map[string]any{"type": "string", "format": "date", "description": "The end date of the range in YYYY-MM-DD format"},
			},
			"required": []string{"start_date", "end_date"},
		},
	}
}

func (t *searchByDateRangeTool) Execute(ctx context.Context, userID int64, args map[string]any) *Result {
	start, _ := strArg(args, "start_date")
	end, _ := strArg(args, "end_date")
	from, err1 := time.Parse(task.DateLayout, start)
	to, err2 := time.Parse(task.DateLayout, end)
	if err1 != nil || err2 != nil {
		return failure("invalid_format", "Invalid date format. Use YYYY-MM-DD.")
	}
	if to.Before(from) {
		return failure("invalid_range", "End date cannot be before start date.")
	}

	tasks, err := t.Tasks.List(ctx, task.Filter{UserID: userID, StartDate: start, EndDate: end})
	if err != nil {
		return t.internal("searching tasks", err)
	}
	names, err := t.categoryNames(ctx, userID)
	if err != nil {
		return t.internal("searching tasks", err)
	}

	count := len(tasks)
	res := success(describeTasks(tasks, names))
	res.Count = &count
	return res
}

func describeTasks(tasks []*task.Task, categories map[int64]string) string {
	describe := func(tk *task.Task) (due, cat string) {
		due = tk.DueDate
		if due == "" {
			due = "No deadline"
		}
		cat = "No category"
		if tk.CategoryID != nil {
			if name, ok := categories[*tk.CategoryID]; ok {
				cat = name
			}
		}
		return due, cat
	}

	switch len(tasks) {
	case 0:
		return "No tasks found."
	case 1:
		due, cat := describe(tasks[0])
		return fmt.Sprintf("Found task: '%s' (Due: %s) (Category: %s)", tasks[0].Title, due, cat)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d tasks:", len(tasks))
	for i, tk := range tasks {
		due, cat := describe(tk)
		fmt.Fprintf(&b, "\n%d. %s (Due: %s) (Category: %s)", i+1, tk.Title, due, cat)
	}
	return b.String()
}

// ---------------------------------------------------------------------------

type deleteTaskByIDTool struct{ *Toolbox }

func (t *deleteTaskByIDTool) Name() string { return "delete_task_by_id" }
func (t *deleteTaskByIDTool) Description() string {
	return "Delete a single task by its ID."
}
func (t *deleteTaskByIDTool) Definition() provider.ToolDef {
	return provider.ToolDef{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{"type": "integer", "description": "ID of the task to delete"},
			},
			"required": []string{"task_id"},
		},
	}
}

func (t *deleteTaskByIDTool) Execute(ctx context.Context, userID int64, args map[string]any) *Result {
	id, present, err := intArg(args, "task_id")
	if !present || err != nil {
		return failure("invalid_format", "A numeric task_id is required.")
	}
	notFound := failure("not_found", fmt.Sprintf("Task %d not found.", id))

	tk, err := t.Tasks.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	if err != nil {
		return t.internal("deleting the task", err)
	}
	if err := t.canDelete(ctx, userID, tk); err != nil {
		// Tasks the user may not touch are reported as missing.
		return notFound
	}
	if err := t.Tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound
		}
		return t.internal("deleting the task", err)
	}
	t.publish(ctx, comms.TaskDeleted, userID, tk, string(tk.Status), "")

	count := 1
	res := success(fmt.Sprintf("Task '%s' deleted.", tk.Title))
	res.Count = &count
	res.TaskID = id
	return res
}

func (tb *Toolbox) canDelete(ctx context.Context, userID int64, tk *task.Task) error {
	if tb.CanDelete != nil {
		return tb.CanDelete(ctx, userID, tk)
	}
	if tk.UserID != userID {
		return errors.New("not the owner")
	}
	return nil
}

// ---------------------------------------------------------------------------

type deleteTaskWithoutIDTool struct{ *Toolbox }

func (t *deleteTaskWithoutIDTool) Name() string { return "delete_task_without_id" }
func (t *deleteTaskWithoutIDTool) Description() string {
	return "Delete the user's tasks matching the given filters when no task ID is known. At least one filter (due_date, category_id, priority, status, title_contains) is required."
}
func (t *deleteTaskWithoutIDTool) Definition() provider.ToolDef {
	return provider.ToolDef{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"due_date":       map[string]any{"type": "string", "format": "date", "description": "Due date of the task(s) to delete (YYYY-MM-DD)"},
				"category_id":    map[string]any{"type": "integer", "description": "Category ID of the task(s) to delete"},
				"priority":       map[string]any{"type": "integer", "description": "Priority of the task(s) to delete (1-3)"},
				"status":         map[string]any{"type": "integer", "enum": []int{0, 1, 2}, "description": "Status of the task(s) to delete (0=pending, 1=in_progress, 2=completed)"},
				"title_contains": map[string]any{"type": "string", "description": "Text the task title contains"},
			},
		},
	}
}

func (t *deleteTaskWithoutIDTool) Execute(ctx context.Context, userID int64, args map[string]any) *Result {
	f := task.Filter{UserID: userID}
	if res := applyFilters(&f, args, "due_date", "category_id", "priority", "status", "title_contains"); res != nil {
		return res
	}
	if f.DueDate == "" && f.CategoryID == nil && f.Priority == nil && f.Status == nil && f.TitleContains == "" {
		return failure("missing_filter", "Provide at least one filter (due_date, category_id, priority, status or title_contains).")
	}

	matching, err := t.Tasks.List(ctx, f)
	if err != nil {
		return t.internal("deleting tasks", err)
	}
	if len(matching) == 0 {
		return success("No tasks found matching your criteria.")
	}
	deleted := 0
	for _, tk := range matching {
		if err := t.Tasks.Delete(ctx, tk.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return t.internal("deleting tasks", err)
		}
		deleted++
		t.publish(ctx, comms.TaskDeleted, userID, tk, string(tk.Status), "")
	}
	res := success(fmt.Sprintf("Deleted %d task(s).", deleted))
	res.Count = &deleted
	return res
}
