// Package activity records the history of changes to tasks and projects.
package activity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DhimiMohamed/taskmanager/comms"
	"github.com/DhimiMohamed/taskmanager/store"
)

// Log is one recorded change.
type Log struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"user_id"`
	Action     string    `json:"action"`
	ObjectType string    `json:"object_type"`
	ObjectID   int64     `json:"object_id"`
	ProjectID  *int64    `json:"project_id,omitempty"`
	FromState  string    `json:"from_state,omitempty"`
	ToState    string    `json:"to_state,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Query selects logs. Zero fields do not constrain.
type Query struct {
	UserID    int64
	ProjectID int64
	Limit     int
}

// Store persists activity logs.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database whose schema has been applied.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// FromEvent converts a bus event to a log row.
func FromEvent(ev *comms.Event) *Log {
	l := &Log{
		Action:     string(ev.Type),
		ObjectType: ev.ObjectType,
		ObjectID:   ev.ObjectID,
		ProjectID:  ev.ProjectID,
		FromState:  ev.FromState,
		ToState:    ev.ToState,
		Detail:     ev.Detail,
		CreatedAt:  ev.Timestamp,
	}
	if ev.UserID != 0 {
		uid := ev.UserID
		l.UserID = &uid
	}
	// The project row is gone, and the project's history goes with it.
	if ev.Type == comms.ProjectDeleted {
		l.ProjectID = nil
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	return l
}

// Insert writes l and sets its ID.
func (s *Store) Insert(ctx context.Context, l *Log) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (user_id, action, object_type, object_id, project_id, from_state, to_state, detail, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		store.NullInt64(l.UserID), l.Action, l.ObjectType, l.ObjectID, store.NullInt64(l.ProjectID),
		l.FromState, l.ToState, l.Detail, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("activity: insert: %w", err)
	}
	l.ID, err = res.LastInsertId()
	return err
}

// List returns matching logs, newest first.
func (s *Store) List(ctx context.Context, q Query) ([]*Log, error) {
	sqlq := `SELECT id, user_id, action, object_type, object_id, project_id, from_state, to_state, detail, created_at
		FROM activity_logs WHERE 1=1`
	var args []any
	if q.UserID != 0 {
		sqlq += ` AND user_id = ?`
		args = append(args, q.UserID)
	}
	if q.ProjectID != 0 {
		sqlq += ` AND project_id = ?`
		args = append(args, q.ProjectID)
	}
	sqlq += ` ORDER BY id DESC`
	if q.Limit > 0 {
		sqlq += fmt.Sprintf(` LIMIT %d`, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlq, args...)
	if err != nil {
		return nil, fmt.Errorf("activity: list: %w", err)
	}
	defer rows.Close()
	out := []*Log{}
	for rows.Next() {
		var l Log
		var uid, pid sql.NullInt64
		if err := rows.Scan(&l.ID, &uid, &l.Action, &l.ObjectType, &l.ObjectID, &pid,
			&l.FromState, &l.ToState, &l.Detail, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.UserID = store.Int64Ptr(uid)
		l.ProjectID = store.Int64Ptr(pid)
		out = append(out, &l)
	}
	return out, rows.Err()
}
