package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/DhimiMohamed/taskmanager/comms"
	"github.com/DhimiMohamed/taskmanager/policy"
	"github.com/DhimiMohamed/taskmanager/store"
	"github.com/DhimiMohamed/taskmanager/team"
)

// --- Team handlers ---

func (h *Handlers) listTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.Teams.ListTeams(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if teams == nil {
		teams = []*team.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *Handlers) createTeam(w http.ResponseWriter, r *http.Request) {
	var t team.Team
	if !decode(w, r, &t) {
		return
	}
	t.ID = 0
	t.CreatedBy = UserID(r.Context())
	if err := h.Teams.CreateTeam(r.Context(), &t); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// teamID parses {id} and authorizes action on that team.
func (h *Handlers) teamID(w http.ResponseWriter, r *http.Request, action string) (int64, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return 0, false
	}
	if _, err := h.Teams.GetTeam(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return 0, false
	}
	if err := h.Access.Team(r.Context(), UserID(r.Context()), action, id); err != nil {
		h.fail(w, r, err)
		return 0, false
	}
	return id, true
}

func (h *Handlers) getTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := h.teamID(w, r, policy.ActionRead)
	if !ok {
		return
	}
	t, err := h.Teams.GetTeam(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) updateTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := h.teamID(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	var in team.Team
	if !decode(w, r, &in) {
		return
	}
	t, err := h.Teams.GetTeam(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t.Name = in.Name
	if err := h.Teams.UpdateTeam(r.Context(), t); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) deleteTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := h.teamID(w, r, policy.ActionDelete)
	if !ok {
		return
	}
	if err := h.Teams.DeleteTeam(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Membership handlers ---

func (h *Handlers) listMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.teamID(w, r, policy.ActionRead)
	if !ok {
		return
	}
	members, err := h.Teams.ListMembers(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if members == nil {
		members = []*team.Membership{}
	}
	writeJSON(w, http.StatusOK, members)
}

type memberRequest struct {
	Email string    `json:"email" validate:"required,email"`
	Role  team.Role `json:"role" validate:"omitempty,oneof=member admin"`
}

func (h *Handlers) addMember(w http.ResponseWriter, r *http.Request) {
	id, ok := h.teamID(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = team.RoleMember
	}
	u, err := h.Accounts.Store.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no user with that email")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Teams.AddMember(r.Context(), id, u.ID, req.Role); err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), &comms.Event{
		Type:       comms.MemberJoined,
		UserID:     UserID(r.Context()),
		ObjectType: "team",
		ObjectID:   id,
		ToState:    string(req.Role),
		Detail:     u.Email,
	})
	writeJSON(w, http.StatusCreated, team.Membership{TeamID: id, UserID: u.ID, Email: u.Email, Role: req.Role})
}

func (h *Handlers) setMemberRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.teamID(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	member, ok := pathID(w, r, "uid")
	if !ok {
		return
	}
	var req struct {
		Role team.Role `json:"role" validate:"required,oneof=member admin"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.Teams.SetRole(r.Context(), id, member, req.Role); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"team_id": id, "user_id": member, "role": req.Role})
}

func (h *Handlers) removeMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	member, ok := pathID(w, r, "uid")
	if !ok {
		return
	}
	// Members may leave on their own; removing anyone else takes an admin.
	if member != UserID(r.Context()) {
		if _, ok := h.teamID(w, r, policy.ActionUpdate); !ok {
			return
		}
	}
	if err := h.Teams.RemoveMember(r.Context(), id, member); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Invitation handlers ---

func (h *Handlers) listInvitations(w http.ResponseWriter, r *http.Request) {
	id, ok := h.teamID(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	invs, err := h.Teams.ListInvitations(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if invs == nil {
		invs = []*team.Invitation{}
	}
	writeJSON(w, http.StatusOK, invs)
}

func (h *Handlers) createInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.teamID(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	inv := &team.Invitation{TeamID: id, Email: req.Email, Role: req.Role, InvitedBy: UserID(r.Context())}
	if err := h.Teams.CreateInvitation(r.Context(), inv); err != nil {
		h.fail(w, r, err)
		return
	}
	if h.Mailer != nil {
		body := fmt.Sprintf("You have been invited to join a team. Accept with token %s before %s.",
			inv.Token, inv.ExpiresAt.Format("2006-01-02 15:04 MST"))
		if err := h.Mailer.Send(r.Context(), inv.Email, "Team invitation", body); err != nil {
			h.logger().Warn("send invitation failed", slog.Int64("invitation", inv.ID), slog.Any("err", err))
		}
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *Handlers) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	u, err := h.Accounts.Store.GetUser(r.Context(), uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.Teams.AcceptInvitation(r.Context(), r.PathValue("token"), uid, u.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), &comms.Event{
		Type:       comms.MemberJoined,
		UserID:     uid,
		ObjectType: "team",
		ObjectID:   m.TeamID,
		ToState:    string(m.Role),
		Detail:     u.Email,
	})
	writeJSON(w, http.StatusOK, m)
}
