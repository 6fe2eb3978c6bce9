package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/DhimiMohamed/taskmanager/comms"
	"github.com/DhimiMohamed/taskmanager/policy"
	"github.com/DhimiMohamed/taskmanager/store"
	"github.com/DhimiMohamed/taskmanager/task"
	"github.com/DhimiMohamed/taskmanager/team"
)

// Access resolves the caller's relationship to a resource and asks the
// policy whether an action is allowed.
type Access struct {
	Policy *policy.Authorizer
	Teams  team.Store
}

// teamRole returns userID's role in teamID, or "" for non-members.
func (a *Access) teamRole(ctx context.Context, teamID, userID int64) (string, error) {
	role, err := a.Teams.Role(ctx, teamID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(role), nil
}

// projectRole returns userID's role in the team owning projectID.
func (a *Access) projectRole(ctx context.Context, projectID *int64, userID int64) (string, error) {
	if projectID == nil {
		return "", nil
	}
	p, err := a.Teams.GetProject(ctx, *projectID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return a.teamRole(ctx, p.TeamID, userID)
}

// Task authorizes action on t for userID.
func (a *Access) Task(ctx context.Context, userID int64, action string, t *task.Task) error {
	role, err := a.projectRole(ctx, t.ProjectID, userID)
	if err != nil {
		return fmt.Errorf("resolve task role: %w", err)
	}
	res := policy.Resource{Kind: policy.KindTask, OwnerID: t.UserID, TeamRole: role}
	if t.AssignedTo != nil {
		res.AssigneeID = *t.AssignedTo
	}
	return a.Policy.Authorize(ctx, policy.Input{Action: action, Subject: userID, Resource: res})
}

// Category authorizes action on c. Project categories follow the project's team.
func (a *Access) Category(ctx context.Context, userID int64, action string, c *task.Category) error {
	role, err := a.projectRole(ctx, c.ProjectID, userID)
	if err != nil {
		return fmt.Errorf("resolve category role: %w", err)
	}
	return a.Policy.Authorize(ctx, policy.Input{
		Action:   action,
		Subject:  userID,
		Resource: policy.Resource{Kind: policy.KindCategory, OwnerID: c.UserID, TeamRole: role},
	})
}

// Project authorizes action on p through the caller's team role.
func (a *Access) Project(ctx context.Context, userID int64, action string, p *team.Project) error {
	role, err := a.teamRole(ctx, p.TeamID, userID)
	if err != nil {
		return fmt.Errorf("resolve project role: %w", err)
	}
	return a.Policy.Authorize(ctx, policy.Input{
		Action:   action,
		Subject:  userID,
		Resource: policy.Resource{Kind: policy.KindProject, TeamRole: role},
	})
}

// Team authorizes action on teamID.
func (a *Access) Team(ctx context.Context, userID int64, action string, teamID int64) error {
	role, err := a.teamRole(ctx, teamID, userID)
	if err != nil {
		return fmt.Errorf("resolve team role: %w", err)
	}
	return a.Policy.Authorize(ctx, policy.Input{
		Action:   action,
		Subject:  userID,
		Resource: policy.Resource{Kind: policy.KindTeam, TeamRole: role},
	})
}

// CanDeleteTask adapts Task for the assistant's delete tools.
func (a *Access) CanDeleteTask(ctx context.Context, userID int64, t *task.Task) error {
	return a.Task(ctx, userID, policy.ActionDelete, t)
}

// CreateTask authorizes creating a task in projectID. Personal tasks are
// always allowed.
func (a *Access) CreateTask(ctx context.Context, userID int64, projectID *int64) error {
	if projectID == nil {
		return nil
	}
	role, err := a.projectRole(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("resolve task role: %w", err)
	}
	return a.Policy.Authorize(ctx, policy.Input{
		Action:   policy.ActionCreate,
		Subject:  userID,
		Resource: policy.Resource{Kind: policy.KindTask, TeamRole: role},
	})
}

// Reminder authorizes action on the reminders of t. Only the task owner
// manages reminders.
func (a *Access) Reminder(ctx context.Context, userID int64, action string, t *task.Task) error {
	return a.Policy.Authorize(ctx, policy.Input{
		Action:   action,
		Subject:  userID,
		Resource: policy.Resource{Kind: policy.KindReminder, OwnerID: t.UserID},
	})
}

// SeesEvent reports whether userID may receive ev on the event stream:
// their own events, plus project events of teams they belong to.
func (a *Access) SeesEvent(ctx context.Context, userID int64, ev *comms.Event) bool {
	if ev.UserID == userID {
		return true
	}
	role, err := a.projectRole(ctx, ev.ProjectID, userID)
	return err == nil && role != ""
}
