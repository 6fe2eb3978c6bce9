package api

import (
	"net/http"
	"time"

	"github.com/DhimiMohamed/taskmanager/policy"
	"github.com/DhimiMohamed/taskmanager/reminder"
)

// --- Reminder handlers ---

type reminderRequest struct {
	RemindAt time.Time       `json:"remind_at" validate:"required"`
	Method   reminder.Method `json:"method" validate:"omitempty,oneof=email in_app"`
}

func (h *Handlers) listReminders(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r, policy.ActionRead)
	if !ok {
		return
	}
	if err := h.Access.Reminder(r.Context(), UserID(r.Context()), policy.ActionRead, t); err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.Reminders.List(r.Context(), t.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*reminder.Reminder{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) createReminder(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r, policy.ActionRead)
	if !ok {
		return
	}
	if err := h.Access.Reminder(r.Context(), UserID(r.Context()), policy.ActionCreate, t); err != nil {
		h.fail(w, r, err)
		return
	}
	var req reminderRequest
	if !decode(w, r, &req) {
		return
	}
	rem := &reminder.Reminder{TaskID: t.ID, RemindAt: req.RemindAt, Method: req.Method}
	if err := h.Reminders.Create(r.Context(), rem); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

// loadReminder fetches the reminder named by {id} and checks the caller owns its task.
func (h *Handlers) loadReminder(w http.ResponseWriter, r *http.Request, action string) (*reminder.Reminder, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	rem, err := h.Reminders.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	t, err := h.Tasks.Get(r.Context(), rem.TaskID)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if err := h.Access.Reminder(r.Context(), UserID(r.Context()), action, t); err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return rem, true
}

func (h *Handlers) updateReminder(w http.ResponseWriter, r *http.Request) {
	rem, ok := h.loadReminder(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	var req reminderRequest
	if !decode(w, r, &req) {
		return
	}
	rem.RemindAt = req.RemindAt
	if req.Method != "" {
		rem.Method = req.Method
	}
	if err := h.Reminders.Update(r.Context(), rem); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

func (h *Handlers) deleteReminder(w http.ResponseWriter, r *http.Request) {
	rem, ok := h.loadReminder(w, r, policy.ActionDelete)
	if !ok {
		return
	}
	if err := h.Reminders.Delete(r.Context(), rem.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
