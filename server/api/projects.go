package api

import (
	"net/http"

	"github.com/DhimiMohamed/taskmanager/comms"
	"github.com/DhimiMohamed/taskmanager/policy"
	"github.com/DhimiMohamed/taskmanager/team"
)

// --- Project handlers ---

func (h *Handlers) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Teams.ListProjects(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if projects == nil {
		projects = []*team.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *Handlers) createProject(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	var p team.Project
	if !decode(w, r, &p) {
		return
	}
	if p.TeamID == 0 {
		writeError(w, http.StatusBadRequest, "team_id is required")
		return
	}
	if p.Status != "" && !p.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status "+string(p.Status))
		return
	}
	if _, err := h.Teams.GetTeam(r.Context(), p.TeamID); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Access.Project(r.Context(), uid, policy.ActionCreate, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	p.ID = 0
	p.CreatedBy = uid
	if err := h.Teams.CreateProject(r.Context(), &p); err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), projectEvent(comms.ProjectCreated, uid, &p))
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) loadProject(w http.ResponseWriter, r *http.Request, action string) (*team.Project, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	p, err := h.Teams.GetProject(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if err := h.Access.Project(r.Context(), UserID(r.Context()), action, p); err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return p, true
}

func (h *Handlers) getProject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProject(w, r, policy.ActionRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) updateProject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProject(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	var in team.Project
	if !decode(w, r, &in) {
		return
	}
	before := p.Status
	p.Name, p.Description = in.Name, in.Description
	p.StartDate, p.EndDate = in.StartDate, in.EndDate
	if in.Status != "" {
		if !in.Status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status "+string(in.Status))
			return
		}
		p.Status = in.Status
	}
	if err := h.Teams.UpdateProject(r.Context(), p); err != nil {
		h.fail(w, r, err)
		return
	}
	ev := projectEvent(comms.ProjectUpdated, UserID(r.Context()), p)
	if p.Status != before {
		ev.FromState, ev.ToState = string(before), string(p.Status)
	}
	h.publish(r.Context(), ev)
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) deleteProject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProject(w, r, policy.ActionDelete)
	if !ok {
		return
	}
	if err := h.Teams.DeleteProject(r.Context(), p.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), projectEvent(comms.ProjectDeleted, UserID(r.Context()), p))
	w.WriteHeader(http.StatusNoContent)
}

func projectEvent(typ comms.EventType, uid int64, p *team.Project) *comms.Event {
	pid := p.ID
	return &comms.Event{
		Type:       typ,
		UserID:     uid,
		ObjectType: "project",
		ObjectID:   p.ID,
		ProjectID:  &pid,
		Detail:     p.Name,
	}
}
