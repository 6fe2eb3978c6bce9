// Package policy decides whether a user may act on a task, project, team or
// one of their children. Decisions come from an embedded Rego policy.
package policy

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// ErrForbidden is returned by Authorize when the policy denies the action.
var ErrForbidden = errors.New("forbidden")

//go:embed authz.rego
var authzModule string

// Actions.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Resource kinds.
const (
	KindTask     = "task"
	KindCategory = "category"
	KindProject  = "project"
	KindTeam     = "team"
	KindReminder = "reminder"
)

// Resource describes the object being acted on from the subject's point of view.
type Resource struct {
	Kind       string `json:"kind"`
	OwnerID    int64  `json:"owner_id"`
	AssigneeID int64  `json:"assignee_id"`
	// TeamRole is the subject's role in the team that owns the resource, if any.
	TeamRole string `json:"team_role"`
}

// Input is the document the policy is evaluated against.
type Input struct {
	Action   string   `json:"action"`
	Subject  int64    `json:"subject"`
	Resource Resource `json:"resource"`
}

// Authorizer evaluates the prepared policy query.
type Authorizer struct {
	query rego.PreparedEvalQuery
}

// New compiles the embedded policy.
func New(ctx context.Context) (*Authorizer, error) {
	return NewWithModule(ctx, authzModule)
}

// NewWithModule compiles a custom policy. It must define data.taskmanager.authz.allow.
func NewWithModule(ctx context.Context, module string) (*Authorizer, error) {
	pq, err := rego.New(
		rego.Query("data.taskmanager.authz.allow"),
		rego.Module("authz.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: prepare: %w", err)
	}
	return &Authorizer{query: pq}, nil
}

// Allowed reports whether in is permitted.
func (a *Authorizer) Allowed(ctx context.Context, in Input) (bool, error) {
	rs, err := a.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return false, fmt.Errorf("policy: eval: %w", err)
	}
	return rs.Allowed(), nil
}

// Authorize returns ErrForbidden when in is not permitted.
func (a *Authorizer) Authorize(ctx context.Context, in Input) error {
	ok, err := a.Allowed(ctx, in)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", in.Action, in.Resource.Kind, ErrForbidden)
	}
	return nil
}
