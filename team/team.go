// Package team defines teams, their memberships and invitations, and the
// projects they run.
package team

import (
	"context"
	"errors"
	"time"
)

// Role is a member's role within a team.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleMember || r == RoleAdmin }

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
)

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted:
		return true
	}
	return false
}

// InvitationTTL is how long an invitation can be accepted.
const InvitationTTL = 7 * 24 * time.Hour

var (
	// ErrLastAdmin is returned when a change would leave a team without an admin.
	ErrLastAdmin = errors.New("team must keep at least one admin")
	// ErrInvitationExpired is returned when accepting a stale or used invitation.
	ErrInvitationExpired = errors.New("invitation expired or already accepted")
	// ErrEmailMismatch is returned when an invitation is accepted by another account.
	ErrEmailMismatch = errors.New("invitation was sent to a different email")
)

type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name" validate:"required,max=100"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type Membership struct {
	TeamID   int64     `json:"team_id"`
	UserID   int64     `json:"user_id"`
	Email    string    `json:"email,omitempty"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type Invitation struct {
	ID        int64     `json:"id"`
	TeamID    int64     `json:"team_id"`
	Email     string    `json:"email" validate:"required,email"`
	Role      Role      `json:"role"`
	Token     string    `json:"token,omitempty"`
	InvitedBy int64     `json:"invited_by"`
	Accepted  bool      `json:"accepted"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Project struct {
	ID          int64         `json:"id"`
	TeamID      int64         `json:"team_id"`
	Name        string        `json:"name" validate:"required,max=200"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	StartDate   string        `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string        `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CreatedBy   int64         `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Store persists teams and projects.
type Store interface {
	// CreateTeam persists t and makes its creator an admin.
	CreateTeam(ctx context.Context, t *Team) error
	GetTeam(ctx context.Context, id int64) (*Team, error)
	ListTeams(ctx context.Context, userID int64) ([]*Team, error)
	UpdateTeam(ctx context.Context, t *Team) error
	DeleteTeam(ctx context.Context, id int64) error

	// Role returns the user's role in the team, or store.ErrNotFound when not a member.
	Role(ctx context.Context, teamID, userID int64) (Role, error)
	AddMember(ctx context.Context, teamID, userID int64, role Role) error
	SetRole(ctx context.Context, teamID, userID int64, role Role) error
	RemoveMember(ctx context.Context, teamID, userID int64) error
	ListMembers(ctx context.Context, teamID int64) ([]*Membership, error)

	CreateInvitation(ctx context.Context, inv *Invitation) error
	ListInvitations(ctx context.Context, teamID int64) ([]*Invitation, error)
	// AcceptInvitation consumes the invitation for userID whose email is email.
	AcceptInvitation(ctx context.Context, token string, userID int64, email string) (*Membership, error)

	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id int64) (*Project, error)
	ListProjects(ctx context.Context, userID int64) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, id int64) error
}
