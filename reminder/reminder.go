// Package reminder stores task reminders and delivers them when they fall due.
package reminder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DhimiMohamed/taskmanager/store"
)

// Method is how a reminder is delivered.
type Method string

const (
	MethodEmail Method = "email"
	MethodInApp Method = "in_app"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool { return m == MethodEmail || m == MethodInApp }

// Status is the delivery state of a reminder.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Reminder is a scheduled nudge about a task.
type Reminder struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	RemindAt  time.Time `json:"remind_at"`
	Method    Method    `json:"method"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Due is a pending reminder joined with what is needed to deliver it.
type Due struct {
	Reminder
	TaskTitle string
	DueDate   string
	UserID    int64
	Email     string
}

// Store persists reminders.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database whose schema has been applied.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create persists r with pending status.
func (s *Store) Create(ctx context.Context, r *Reminder) error {
	if r.Method == "" {
		r.Method = MethodEmail
	}
	if !r.Method.Valid() {
		return fmt.Errorf("reminder: invalid method %q", r.Method)
	}
	if r.RemindAt.IsZero() {
		return fmt.Errorf("reminder: remind_at is required")
	}
	r.RemindAt = r.RemindAt.UTC()
	r.Status = StatusPending
	r.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (task_id, remind_at, method, status, created_at) VALUES (?,?,?,?,?)`,
		r.TaskID, r.RemindAt, string(r.Method), string(r.Status), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("reminder: insert: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

// Get returns one reminder.
func (s *Store) Get(ctx context.Context, id int64) (*Reminder, error) {
	var r Reminder
	var method, status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, remind_at, method, status, created_at FROM reminders WHERE id = ?`, id).
		Scan(&r.ID, &r.TaskID, &r.RemindAt, &method, &status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reminder %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reminder: get: %w", err)
	}
	r.Method, r.Status = Method(method), Status(status)
	return &r, nil
}

// List returns the reminders of a task, earliest first.
func (s *Store) List(ctx context.Context, taskID int64) ([]*Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, remind_at, method, status, created_at FROM reminders
		WHERE task_id = ? ORDER BY remind_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("reminder: list: %w", err)
	}
	defer rows.Close()
	out := []*Reminder{}
	for rows.Next() {
		var r Reminder
		var method, status string
		if err := rows.Scan(&r.ID, &r.TaskID, &r.RemindAt, &method, &status, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Method, r.Status = Method(method), Status(status)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Update reschedules r and resets it to pending.
func (s *Store) Update(ctx context.Context, r *Reminder) error {
	if !r.Method.Valid() {
		return fmt.Errorf("reminder: invalid method %q", r.Method)
	}
	r.RemindAt = r.RemindAt.UTC()
	r.Status = StatusPending
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET remind_at=?, method=?, status=? WHERE id=?`,
		r.RemindAt, string(r.Method), string(r.Status), r.ID)
	if err != nil {
		return fmt.Errorf("reminder: update: %w", err)
	}
	return expectRow(res, r.ID)
}

// Delete removes a reminder.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("reminder: delete: %w", err)
	}
	return expectRow(res, id)
}

// Due returns pending reminders whose time is at or before now.
func (s *Store) Due(ctx context.Context, now time.Time, limit int) ([]*Due, error) {
	// remind_at is compared in Go: stored datetimes are text and not reliably
	// ordered as strings.
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.task_id, r.remind_at, r.method, r.status, r.created_at,
		       t.title, t.due_date, u.id, u.email
		FROM reminders r
		JOIN tasks t ON t.id = r.task_id
		JOIN users u ON u.id = t.user_id
		WHERE r.status = 'pending'
		ORDER BY r.id`)
	if err != nil {
		return nil, fmt.Errorf("reminder: due: %w", err)
	}
	defer rows.Close()
	var out []*Due
	for rows.Next() {
		var d Due
		var method, status string
		if err := rows.Scan(&d.ID, &d.TaskID, &d.RemindAt, &method, &status, &d.CreatedAt,
			&d.TaskTitle, &d.DueDate, &d.UserID, &d.Email); err != nil {
			return nil, err
		}
		if d.RemindAt.After(now) {
			continue
		}
		d.Method, d.Status = Method(method), Status(status)
		out = append(out, &d)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// MarkStatus records the delivery outcome of a reminder.
func (s *Store) MarkStatus(ctx context.Context, id int64, st Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET status=? WHERE id=?`, string(st), id)
	if err != nil {
		return fmt.Errorf("reminder: mark %s: %w", st, err)
	}
	return expectRow(res, id)
}

func expectRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reminder %d: %w", id, store.ErrNotFound)
	}
	return nil
}
