package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DhimiMohamed/taskmanager/comms"
	"github.com/DhimiMohamed/taskmanager/policy"
	"github.com/DhimiMohamed/taskmanager/store"
	"github.com/DhimiMohamed/taskmanager/task"
)

// --- Task handlers ---

func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	filter, err := taskFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.ProjectID != nil {
		p, err := h.Teams.GetProject(r.Context(), *filter.ProjectID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if err := h.Access.Project(r.Context(), uid, policy.ActionRead, p); err != nil {
			h.fail(w, r, err)
			return
		}
	} else {
		filter.VisibleTo = uid
	}

	tasks, err := h.Tasks.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// taskFilter reads the list query parameters. Unknown parameters are ignored.
func taskFilter(q url.Values) (task.Filter, error) {
	var f task.Filter
	ints := map[string]**int64{
		"category_id": &f.CategoryID,
		"project_id":  &f.ProjectID,
		"assigned_to": &f.AssignedTo,
	}
	for key, dst := range ints {
		if s := q.Get(key); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return f, fmt.Errorf("invalid %s %q", key, s)
			}
			*dst = &n
		}
	}
	if s := q.Get("status"); s != "" {
		st := task.Status(s)
		if !st.Valid() {
			return f, fmt.Errorf("invalid status %q", s)
		}
		f.Status = &st
	}
	if s := q.Get("priority"); s != "" {
		n, err := strconv.Atoi(s)
		p := task.Priority(n)
		if err != nil || !p.Valid() {
			return f, fmt.Errorf("invalid priority %q", s)
		}
		f.Priority = &p
	}
	for key, dst := range map[string]*string{
		"due_date":   &f.DueDate,
		"start_date": &f.StartDate,
		"end_date":   &f.EndDate,
	} {
		if s := q.Get(key); s != "" {
			if err := task.ValidateDate(s); err != nil {
				return f, err
			}
			*dst = s
		}
	}
	f.TitleContains = q.Get("q")
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid limit %q", s)
		}
		f.Limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid offset %q", s)
		}
		f.Offset = n
	}
	return f, nil
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	var t task.Task
	if !decode(w, r, &t) {
		return
	}
	t.ID = 0
	t.UserID = uid
	t.CreatedBy = uid
	if err := t.Normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Access.CreateTask(r.Context(), uid, t.ProjectID); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.checkTaskRefs(r.Context(), uid, &t); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Tasks.Create(r.Context(), &t); err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), taskEvent(comms.TaskCreated, uid, &t))
	writeJSON(w, http.StatusCreated, t)
}

// checkTaskRefs verifies the category is visible to uid and that an assignee
// other than uid belongs to the project's team.
func (h *Handlers) checkTaskRefs(ctx context.Context, uid int64, t *task.Task) error {
	if t.CategoryID != nil {
		c, err := h.Tasks.GetCategory(ctx, *t.CategoryID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: category %d does not exist", errBadRequest, *t.CategoryID)
		}
		if err != nil {
			return err
		}
		if err := h.Access.Category(ctx, uid, policy.ActionRead, c); err != nil {
			return fmt.Errorf("%w: category %d is not available", errBadRequest, *t.CategoryID)
		}
	}
	if t.AssignedTo == nil || *t.AssignedTo == uid {
		return nil
	}
	if t.ProjectID == nil {
		return fmt.Errorf("%w: only project tasks can be assigned to someone else", errBadRequest)
	}
	role, err := h.Access.projectRole(ctx, t.ProjectID, *t.AssignedTo)
	if err != nil {
		return err
	}
	if role == "" {
		return fmt.Errorf("%w: assignee is not a member of the project team", errBadRequest)
	}
	return nil
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r, policy.ActionRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// loadTask fetches the task named by the {id} path value and authorizes action on it.
func (h *Handlers) loadTask(w http.ResponseWriter, r *http.Request, action string) (*task.Task, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	t, err := h.Tasks.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if err := h.Access.Task(r.Context(), UserID(r.Context()), action, t); err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return t, true
}

// taskPatch lists the fields a task update may change. Absent fields keep
// their value.
type taskPatch struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	DueDate     *string        `json:"due_date"`
	StartTime   *string        `json:"start_time"`
	EndTime     *string        `json:"end_time"`
	Status      *task.Status   `json:"status"`
	Priority    *task.Priority `json:"priority"`
	CategoryID  *int64         `json:"category_id"`
	AssignedTo  *int64         `json:"assigned_to"`
}

func (p *taskPatch) apply(t *task.Task) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&t.Title, p.Title)
	set(&t.Description, p.Description)
	set(&t.DueDate, p.DueDate)
	set(&t.StartTime, p.StartTime)
	set(&t.EndTime, p.EndTime)
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.CategoryID != nil {
		t.CategoryID = p.CategoryID
	}
	if p.AssignedTo != nil {
		t.AssignedTo = p.AssignedTo
	}
}

func (h *Handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	uid := UserID(r.Context())
	var patch taskPatch
	if !decode(w, r, &patch) {
		return
	}
	before := t.Status
	patch.apply(t)
	if err := t.Normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch.CategoryID != nil || patch.AssignedTo != nil {
		if err := h.checkTaskRefs(r.Context(), uid, t); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if err := h.Tasks.Update(r.Context(), t); err != nil {
		h.fail(w, r, err)
		return
	}

	h.publish(r.Context(), taskEvent(comms.TaskUpdated, uid, t))
	if t.Status != before {
		ev := taskEvent(comms.TaskStatusChanged, uid, t)
		ev.FromState, ev.ToState = string(before), string(t.Status)
		h.publish(r.Context(), ev)
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r, policy.ActionDelete)
	if !ok {
		return
	}
	if err := h.Tasks.Delete(r.Context(), t.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), taskEvent(comms.TaskDeleted, UserID(r.Context()), t))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) tasksBetweenDates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := q.Get("start_date"), q.Get("end_date")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}
	for _, d := range []string{start, end} {
		if err := task.ValidateDate(d); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if end < start {
		writeError(w, http.StatusBadRequest, "end_date cannot be before start_date")
		return
	}
	tasks, err := h.Tasks.List(r.Context(), task.Filter{
		VisibleTo: UserID(r.Context()),
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) taskStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Tasks.Stats(r.Context(), UserID(r.Context()), h.now().Format(task.DateLayout))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func taskEvent(typ comms.EventType, uid int64, t *task.Task) *comms.Event {
	return &comms.Event{
		Type:       typ,
		UserID:     uid,
		ObjectType: "task",
		ObjectID:   t.ID,
		ProjectID:  t.ProjectID,
		Detail:     t.Title,
	}
}
