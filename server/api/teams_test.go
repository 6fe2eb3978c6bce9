package api_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DhimiMohamed/taskmanager/activity"
	"github.com/DhimiMohamed/taskmanager/task"
	"github.com/DhimiMohamed/taskmanager/team"
)

// teamWithProject creates a team owned by admin, adds member, and opens a project.
func (e *env) teamWithProject(t *testing.T, admin, member int64, memberEmail string) (*team.Team, *team.Project) {
	t.Helper()
	var tm team.Team
	expect(t, e.call(t, admin, http.MethodPost, "/api/teams", map[string]any{"name": "Core"}), http.StatusCreated, &tm)
	if member != 0 {
		expect(t, e.call(t, admin, http.MethodPost, urlf("/api/teams/%d/members", tm.ID),
			map[string]any{"email": memberEmail}), http.StatusCreated, nil)
	}
	var p team.Project
	expect(t, e.call(t, admin, http.MethodPost, "/api/projects", map[string]any{
		"team_id": tm.ID, "name": "Launch", "status": "active",
	}), http.StatusCreated, &p)
	return &tm, &p
}

func TestTeamLifecycle(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "admin@example.com")
	member := e.user(t, "member@example.com")
	outsider := e.user(t, "outsider@example.com")
	tm, _ := e.teamWithProject(t, admin, member, "member@example.com")

	var members []*team.Membership
	expect(t, e.call(t, member, http.MethodGet, urlf("/api/teams/%d/members", tm.ID), nil), http.StatusOK, &members)
	require.Len(t, members, 2)

	expect(t, e.call(t, outsider, http.MethodGet, urlf("/api/teams/%d", tm.ID), nil), http.StatusForbidden, nil)
	expect(t, e.call(t, member, http.MethodPut, urlf("/api/teams/%d", tm.ID), map[string]any{"name": "Hijack"}),
		http.StatusForbidden, nil)

	var renamed team.Team
	expect(t, e.call(t, admin, http.MethodPut, urlf("/api/teams/%d", tm.ID), map[string]any{"name": "Platform"}),
		http.StatusOK, &renamed)
	assert.Equal(t, "Platform", renamed.Name)

	// The only admin can neither be demoted nor removed.
	resp := e.call(t, admin, http.MethodPut, urlf("/api/teams/%d/members/%d", tm.ID, admin), map[string]any{"role": "member"})
	expect(t, resp, http.StatusBadRequest, nil)
	expect(t, e.call(t, admin, http.MethodDelete, urlf("/api/teams/%d/members/%d", tm.ID, admin), nil), http.StatusBadRequest, nil)

	expect(t, e.call(t, admin, http.MethodPut, urlf("/api/teams/%d/members/%d", tm.ID, member), map[string]any{"role": "admin"}),
		http.StatusOK, nil)
	// A member may leave on their own.
	expect(t, e.call(t, member, http.MethodDelete, urlf("/api/teams/%d/members/%d", tm.ID, member), nil), http.StatusNoContent, nil)

	expect(t, e.call(t, admin, http.MethodPost, urlf("/api/teams/%d/members", tm.ID), map[string]any{"email": "ghost@example.com"}),
		http.StatusNotFound, nil)

	expect(t, e.call(t, admin, http.MethodDelete, urlf("/api/teams/%d", tm.ID), nil), http.StatusNoContent, nil)
	expect(t, e.call(t, admin, http.MethodGet, urlf("/api/teams/%d", tm.ID), nil), http.StatusNotFound, nil)
}

func TestInvitations(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "admin@example.com")
	invitee := e.user(t, "invitee@example.com")
	stranger := e.user(t, "stranger@example.com")
	tm, _ := e.teamWithProject(t, admin, 0, "")

	var inv team.Invitation
	expect(t, e.call(t, admin, http.MethodPost, urlf("/api/teams/%d/invitations", tm.ID),
		map[string]any{"email": "Invitee@example.com", "role": "member"}), http.StatusCreated, &inv)
	require.NotEmpty(t, inv.Token)
	require.Len(t, e.mailer.sent, 1)
	assert.Equal(t, "invitee@example.com", e.mailer.sent[0].to)
	assert.True(t, strings.Contains(e.mailer.sent[0].body, inv.Token))

	expect(t, e.call(t, invitee, http.MethodPost, urlf("/api/teams/%d/invitations", tm.ID),
		map[string]any{"email": "x@example.com"}), http.StatusForbidden, nil)

	expect(t, e.call(t, stranger, http.MethodPost, "/api/invitations/"+inv.Token+"/accept", nil), http.StatusBadRequest, nil)

	var m team.Membership
	expect(t, e.call(t, invitee, http.MethodPost, "/api/invitations/"+inv.Token+"/accept", nil), http.StatusOK, &m)
	assert.Equal(t, tm.ID, m.TeamID)
	assert.Equal(t, team.RoleMember, m.Role)

	expect(t, e.call(t, invitee, http.MethodPost, "/api/invitations/"+inv.Token+"/accept", nil), http.StatusBadRequest, nil)
	expect(t, e.call(t, invitee, http.MethodPost, "/api/invitations/nope/accept", nil), http.StatusNotFound, nil)

	var invs []*team.Invitation
	expect(t, e.call(t, admin, http.MethodGet, urlf("/api/teams/%d/invitations", tm.ID), nil), http.StatusOK, &invs)
	require.Len(t, invs, 1)
	assert.True(t, invs[0].Accepted)
}

func TestProjects(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "admin@example.com")
	member := e.user(t, "member@example.com")
	outsider := e.user(t, "outsider@example.com")
	tm, p := e.teamWithProject(t, admin, member, "member@example.com")

	expect(t, e.call(t, member, http.MethodPost, "/api/projects", map[string]any{"team_id": tm.ID, "name": "Mine"}),
		http.StatusForbidden, nil)
	expect(t, e.call(t, admin, http.MethodPost, "/api/projects", map[string]any{"team_id": tm.ID, "name": "Bad", "status": "paused"}),
		http.StatusBadRequest, nil)

	var list []*team.Project
	expect(t, e.call(t, member, http.MethodGet, "/api/projects", nil), http.StatusOK, &list)
	require.Len(t, list, 1)
	expect(t, e.call(t, outsider, http.MethodGet, "/api/projects", nil), http.StatusOK, &list)
	assert.Empty(t, list)

	expect(t, e.call(t, outsider, http.MethodGet, urlf("/api/projects/%d", p.ID), nil), http.StatusForbidden, nil)
	expect(t, e.call(t, member, http.MethodPut, urlf("/api/projects/%d", p.ID), map[string]any{"name": "Renamed"}),
		http.StatusForbidden, nil)

	var updated team.Project
	expect(t, e.call(t, admin, http.MethodPut, urlf("/api/projects/%d", p.ID), map[string]any{"name": "Launch v2", "status": "completed"}),
		http.StatusOK, &updated)
	assert.Equal(t, team.ProjectCompleted, updated.Status)

	var logs []*activity.Log
	expect(t, e.call(t, member, http.MethodGet, urlf("/api/projects/%d/activity", p.ID), nil), http.StatusOK, &logs)
	require.Len(t, logs, 2)
	assert.Equal(t, "project.updated", logs[0].Action)
	assert.Equal(t, "active", logs[0].FromState)
	assert.Equal(t, "completed", logs[0].ToState)

	expect(t, e.call(t, admin, http.MethodDelete, urlf("/api/projects/%d", p.ID), nil), http.StatusNoContent, nil)
	expect(t, e.call(t, admin, http.MethodGet, urlf("/api/projects/%d", p.ID), nil), http.StatusNotFound, nil)
}

func TestProjectTasks(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "admin@example.com")
	member := e.user(t, "member@example.com")
	outsider := e.user(t, "outsider@example.com")
	_, p := e.teamWithProject(t, admin, member, "member@example.com")

	// Members create project tasks and may assign teammates, not outsiders.
	created := e.createTask(t, member, map[string]any{"title": "Design", "project_id": p.ID, "assigned_to": admin})
	assert.Equal(t, admin, *created.AssignedTo)
	expect(t, e.call(t, member, http.MethodPost, "/api/tasks", map[string]any{
		"title": "Leak", "project_id": p.ID, "assigned_to": outsider,
	}), http.StatusBadRequest, nil)
	expect(t, e.call(t, outsider, http.MethodPost, "/api/tasks", map[string]any{"title": "Intrude", "project_id": p.ID}),
		http.StatusForbidden, nil)

	// The assignee may update; a plain member may read but not change others' tasks.
	adminTask := e.createTask(t, admin, map[string]any{"title": "Budget", "project_id": p.ID})
	expect(t, e.call(t, member, http.MethodGet, urlf("/api/tasks/%d", adminTask.ID), nil), http.StatusOK, nil)
	expect(t, e.call(t, member, http.MethodPatch, urlf("/api/tasks/%d", adminTask.ID), map[string]any{"title": "x"}),
		http.StatusForbidden, nil)
	expect(t, e.call(t, admin, http.MethodPatch, urlf("/api/tasks/%d", created.ID), map[string]any{"status": "in_progress"}),
		http.StatusOK, nil)
	// Admins may delete any project task.
	expect(t, e.call(t, admin, http.MethodDelete, urlf("/api/tasks/%d", created.ID), nil), http.StatusNoContent, nil)

	var list []*task.Task
	expect(t, e.call(t, member, http.MethodGet, urlf("/api/tasks?project_id=%d", p.ID), nil), http.StatusOK, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Budget", list[0].Title)
	expect(t, e.call(t, outsider, http.MethodGet, urlf("/api/tasks?project_id=%d", p.ID), nil), http.StatusForbidden, nil)

	var logs []*activity.Log
	expect(t, e.call(t, admin, http.MethodGet, urlf("/api/projects/%d/members/%d/activity", p.ID, member), nil), http.StatusOK, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "task.created", logs[0].Action)
	assert.Equal(t, "Design", logs[0].Detail)
}
