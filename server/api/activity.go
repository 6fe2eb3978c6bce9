package api

import (
	"net/http"
	"strconv"

	"github.com/DhimiMohamed/taskmanager/account"
	"github.com/DhimiMohamed/taskmanager/activity"
	"github.com/DhimiMohamed/taskmanager/policy"
)

const defaultActivityLimit = 50

// activityLimit reads ?limit=, defaulting to 50 and capping at 500.
func activityLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultActivityLimit
	}
	return min(n, 500)
}

// --- Activity handlers ---

func (h *Handlers) myActivity(w http.ResponseWriter, r *http.Request) {
	h.writeActivity(w, r, activity.Query{UserID: UserID(r.Context()), Limit: activityLimit(r)})
}

func (h *Handlers) projectActivity(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProject(w, r, policy.ActionRead)
	if !ok {
		return
	}
	h.writeActivity(w, r, activity.Query{ProjectID: p.ID, Limit: activityLimit(r)})
}

func (h *Handlers) projectMemberActivity(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProject(w, r, policy.ActionRead)
	if !ok {
		return
	}
	member, ok := pathID(w, r, "uid")
	if !ok {
		return
	}
	h.writeActivity(w, r, activity.Query{ProjectID: p.ID, UserID: member, Limit: activityLimit(r)})
}

func (h *Handlers) writeActivity(w http.ResponseWriter, r *http.Request, q activity.Query) {
	logs, err := h.Activity.List(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// --- Notification handlers ---

func (h *Handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread") == "true"
	list, err := h.Accounts.Store.ListNotifications(r.Context(), UserID(r.Context()), unread)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*account.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) readNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Accounts.Store.MarkNotificationRead(r.Context(), UserID(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) readAllNotifications(w http.ResponseWriter, r *http.Request) {
	n, err := h.Accounts.Store.MarkAllNotificationsRead(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
