package api

import (
	"net/http"

	"github.com/DhimiMohamed/taskmanager/policy"
	"github.com/DhimiMohamed/taskmanager/task"
)

// --- Category handlers ---

func (h *Handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Tasks.ListCategories(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if cats == nil {
		cats = []*task.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *Handlers) createCategory(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	var c task.Category
	if !decode(w, r, &c) {
		return
	}
	c.ID = 0
	c.UserID = uid
	if c.ProjectID != nil {
		p, err := h.Teams.GetProject(r.Context(), *c.ProjectID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if err := h.Access.Project(r.Context(), uid, policy.ActionUpdate, p); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if err := h.Tasks.CreateCategory(r.Context(), &c); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handlers) loadCategory(w http.ResponseWriter, r *http.Request, action string) (*task.Category, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	c, err := h.Tasks.GetCategory(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if err := h.Access.Category(r.Context(), UserID(r.Context()), action, c); err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return c, true
}

func (h *Handlers) getCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCategory(w, r, policy.ActionRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCategory(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	var in struct {
		Name  string `json:"name" validate:"required,max=100"`
		Color string `json:"color" validate:"omitempty,hexcolor"`
	}
	if !decode(w, r, &in) {
		return
	}
	c.Name = in.Name
	if in.Color != "" {
		c.Color = in.Color
	}
	if err := h.Tasks.UpdateCategory(r.Context(), c); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCategory(w, r, policy.ActionDelete)
	if !ok {
		return
	}
	if err := h.Tasks.DeleteCategory(r.Context(), c.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
