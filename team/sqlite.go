package team

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DhimiMohamed/taskmanager/store"
)

// SQLiteStore persists teams and projects in the shared SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database whose schema has been applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) CreateTeam(ctx context.Context, t *Team) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("create team: name is required")
	}
	t.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO teams (name, created_by, created_at) VALUES (?,?,?)`,
		t.Name, t.CreatedBy, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert team: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO team_memberships (team_id, user_id, role, joined_at) VALUES (?,?,?,?)`,
		t.ID, t.CreatedBy, string(RoleAdmin), t.CreatedAt); err != nil {
		return fmt.Errorf("insert creator membership: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetTeam(ctx context.Context, id int64) (*Team, error) {
	var t Team
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_by, created_at FROM teams WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.CreatedBy, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("team %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return &t, nil
}

// ListTeams returns the teams userID belongs to.
func (s *SQLiteStore) ListTeams(ctx context.Context, userID int64) ([]*Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_by, t.created_at
		FROM teams t JOIN team_memberships m ON m.team_id = t.id
		WHERE m.user_id = ? ORDER BY t.name, t.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()
	var out []*Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateTeam(ctx context.Context, t *Team) error {
	res, err := s.db.ExecContext(ctx, `UPDATE teams SET name = ? WHERE id = ?`, t.Name, t.ID)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	return expectRow(res, "team", t.ID)
}

func (s *SQLiteStore) DeleteTeam(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	return expectRow(res, "team", id)
}

func (s *SQLiteStore) Role(ctx context.Context, teamID, userID int64) (Role, error) {
	var r string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM team_memberships WHERE team_id = ? AND user_id = ?`,
		teamID, userID).Scan(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("membership: %w", store.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get role: %w", err)
	}
	return Role(r), nil
}

func (s *SQLiteStore) AddMember(ctx context.Context, teamID, userID int64, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("add member: invalid role %q", role)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_memberships (team_id, user_id, role, joined_at) VALUES (?,?,?,?)`,
		teamID, userID, string(role), time.Now().UTC())
	if store.IsUniqueViolation(err) {
		return fmt.Errorf("member %d: %w", userID, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// SetRole changes a member's role. Demoting the last admin fails with ErrLastAdmin.
func (s *SQLiteStore) SetRole(ctx context.Context, teamID, userID int64, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("set role: invalid role %q", role)
	}
	return s.withAdminGuard(ctx, teamID, userID, role != RoleAdmin, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, `UPDATE team_memberships SET role = ? WHERE team_id = ? AND user_id = ?`,
			string(role), teamID, userID)
	})
}

// RemoveMember deletes a membership. Removing the last admin fails with ErrLastAdmin.
func (s *SQLiteStore) RemoveMember(ctx context.Context, teamID, userID int64) error {
	return s.withAdminGuard(ctx, teamID, userID, true, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, `DELETE FROM team_memberships WHERE team_id = ? AND user_id = ?`, teamID, userID)
	})
}

// withAdminGuard runs change in a transaction, refusing it when it would drop
// the team's admin count to zero.
func (s *SQLiteStore) withAdminGuard(ctx context.Context, teamID, userID int64, dropsAdmin bool, change func(*sql.Tx) (sql.Result, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if dropsAdmin {
		var role string
		err := tx.QueryRowContext(ctx, `SELECT role FROM team_memberships WHERE team_id = ? AND user_id = ?`,
			teamID, userID).Scan(&role)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("membership: %w", store.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if Role(role) == RoleAdmin {
			var admins int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM team_memberships WHERE team_id = ? AND role = 'admin'`,
				teamID).Scan(&admins); err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}
	}
	res, err := change(tx)
	if err != nil {
		return fmt.Errorf("change membership: %w", err)
	}
	if err := expectRow(res, "membership", userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListMembers(ctx context.Context, teamID int64) ([]*Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.team_id, m.user_id, u.email, m.role, m.joined_at
		FROM team_memberships m JOIN users u ON u.id = m.user_id
		WHERE m.team_id = ? ORDER BY m.joined_at, m.user_id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	var out []*Membership
	for rows.Next() {
		var m Membership
		var role string
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Email, &role, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// CreateInvitation sets the token, timestamps and default role on inv and persists it.
func (s *SQLiteStore) CreateInvitation(ctx context.Context, inv *Invitation) error {
	if inv.Role == "" {
		inv.Role = RoleMember
	}
	if !inv.Role.Valid() {
		return fmt.Errorf("create invitation: invalid role %q", inv.Role)
	}
	inv.Email = strings.ToLower(strings.TrimSpace(inv.Email))
	inv.Token = uuid.NewString()
	inv.CreatedAt = time.Now().UTC()
	inv.ExpiresAt = inv.CreatedAt.Add(InvitationTTL)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO team_invitations (team_id, email, role, token, invited_by, accepted, created_at, expires_at)
		VALUES (?,?,?,?,?,0,?,?)`,
		inv.TeamID, inv.Email, string(inv.Role), inv.Token, inv.InvitedBy, inv.CreatedAt, inv.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	inv.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) ListInvitations(ctx context.Context, teamID int64) ([]*Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, email, role, token, invited_by, accepted, created_at, expires_at
		FROM team_invitations WHERE team_id = ? ORDER BY id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()
	var out []*Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AcceptInvitation(ctx context.Context, token string, userID int64, email string) (*Membership, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inv, err := scanInvitation(tx.QueryRowContext(ctx, `
		SELECT id, team_id, email, role, token, invited_by, accepted, created_at, expires_at
		FROM team_invitations WHERE token = ?`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invitation: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	now := time.Now().UTC()
	if inv.Accepted || now.After(inv.ExpiresAt) {
		return nil, ErrInvitationExpired
	}
	if !strings.EqualFold(inv.Email, strings.TrimSpace(email)) {
		return nil, ErrEmailMismatch
	}

	if _, err := tx.ExecContext(ctx, `UPDATE team_invitations SET accepted = 1 WHERE id = ?`, inv.ID); err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO team_memberships (team_id, user_id, role, joined_at) VALUES (?,?,?,?)
		ON CONFLICT(team_id, user_id) DO NOTHING`,
		inv.TeamID, userID, string(inv.Role), now)
	if err != nil {
		return nil, fmt.Errorf("insert membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Membership{TeamID: inv.TeamID, UserID: userID, Email: inv.Email, Role: inv.Role, JoinedAt: now}, nil
}

const projectColumns = `id, team_id, name, description, status, start_date, end_date, created_by, created_at`

func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project) error {
	if p.Status == "" {
		p.Status = ProjectPlanning
	}
	if !p.Status.Valid() {
		return fmt.Errorf("create project: invalid status %q", p.Status)
	}
	p.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (team_id, name, description, status, start_date, end_date, created_by, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		p.TeamID, p.Name, p.Description, string(p.Status), p.StartDate, p.EndDate, p.CreatedBy, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (*Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects returns projects of every team userID belongs to.
func (s *SQLiteStore) ListProjects(ctx context.Context, userID int64) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE team_id IN (SELECT team_id FROM team_memberships WHERE user_id = ?)
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var out []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *Project) error {
	if !p.Status.Valid() {
		return fmt.Errorf("update project: invalid status %q", p.Status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name=?, description=?, status=?, start_date=?, end_date=? WHERE id=?`,
		p.Name, p.Description, string(p.Status), p.StartDate, p.EndDate, p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return expectRow(res, "project", p.ID)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return expectRow(res, "project", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvitation(s scanner) (*Invitation, error) {
	var inv Invitation
	var role string
	if err := s.Scan(&inv.ID, &inv.TeamID, &inv.Email, &role, &inv.Token, &inv.InvitedBy,
		&inv.Accepted, &inv.CreatedAt, &inv.ExpiresAt); err != nil {
		return nil, err
	}
	inv.Role = Role(role)
	return &inv, nil
}

func scanProject(s scanner) (*Project, error) {
	var p Project
	var status string
	if err := s.Scan(&p.ID, &p.TeamID, &p.Name, &p.Description, &status, &p.StartDate, &p.EndDate,
		&p.CreatedBy, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Status = ProjectStatus(status)
	return &p, nil
}

func expectRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, store.ErrNotFound)
	}
	return nil
}
