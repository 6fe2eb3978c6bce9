package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/DhimiMohamed/taskmanager/store"
)

const taskColumns = `id, user_id, category_id, project_id, assigned_to, created_by, title, description,
	due_date, start_time, end_time, status, priority, created_at, updated_at`

// SQLiteStore persists tasks and categories in the shared SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database whose schema has been applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Create persists a new task and sets its ID, CreatedAt, and UpdatedAt.
func (s *SQLiteStore) Create(ctx context.Context, t *Task) error {
	if err := t.Normalize(); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if t.CreatedBy == 0 {
		t.CreatedBy = t.UserID
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks
			(user_id, category_id, project_id, assigned_to, created_by, title, description,
			 due_date, start_time, end_time, status, priority, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.UserID, store.NullInt64(t.CategoryID), store.NullInt64(t.ProjectID), store.NullInt64(t.AssignedTo),
		t.CreatedBy, t.Title, t.Description,
		t.DueDate, t.StartTime, t.EndTime, string(t.Status), int(t.Priority),
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, store.ErrNotFound)
	}
	return t, err
}

// Update saves changes to an existing task, updating UpdatedAt automatically.
func (s *SQLiteStore) Update(ctx context.Context, t *Task) error {
	if err := t.Normalize(); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	t.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			category_id=?, project_id=?, assigned_to=?, title=?, description=?,
			due_date=?, start_time=?, end_time=?, status=?, priority=?, updated_at=?
		WHERE id=?`,
		store.NullInt64(t.CategoryID), store.NullInt64(t.ProjectID), store.NullInt64(t.AssignedTo),
		t.Title, t.Description, t.DueDate, t.StartTime, t.EndTime,
		string(t.Status), int(t.Priority), t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return expectRow(res, "task", t.ID)
}

// Delete removes a task by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectRow(res, "task", id)
}

// List returns tasks matching the filter, ordered by priority (high first)
// then due date.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]*Task, error) {
	where, args := f.where()
	q := strings.Builder{}
	q.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE ` + where)
	q.WriteString(` ORDER BY priority DESC, due_date ASC, id ASC`)
	if f.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", f.Limit))
		if f.Offset > 0 {
			q.WriteString(fmt.Sprintf(" OFFSET %d", f.Offset))
		}
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateStatus sets status on every task matching f.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, f Filter, status Status) (int64, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("update status: invalid status %q", status)
	}
	where, args := f.where()
	args = append([]any{string(status), time.Now().UTC()}, args...)
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET status=?, updated_at=? WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("update status: %w", err)
	}
	return res.RowsAffected()
}

// DeleteMatching removes every task matching f.
func (s *SQLiteStore) DeleteMatching(ctx context.Context, f Filter) (int64, error) {
	where, args := f.where()
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	return res.RowsAffected()
}

// Stats computes totals for tasks the user owns or is assigned.
func (s *SQLiteStore) Stats(ctx context.Context, userID int64, today string) (*Stats, error) {
	st := &Stats{ByCategory: []CategoryCount{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(status = 'completed'), 0),
			COALESCE(SUM(status = 'in_progress'), 0),
			COALESCE(SUM(status = 'pending'), 0),
			COALESCE(SUM(due_date = ?), 0),
			COALESCE(SUM(due_date <> '' AND due_date < ? AND status <> 'completed'), 0)
		FROM tasks WHERE user_id = ? OR assigned_to = ?`,
		today, today, userID, userID,
	).Scan(&st.Total, &st.Completed, &st.InProgress, &st.Pending, &st.DueToday, &st.Overdue)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	if st.Total > 0 {
		st.CompletionRate = math.Round(float64(st.Completed)/float64(st.Total)*1000) / 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.category_id, COALESCE(c.name, ''), COUNT(*)
		FROM tasks t LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? OR t.assigned_to = ?
		GROUP BY t.category_id
		ORDER BY COUNT(*) DESC, t.category_id`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("task stats by category: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cc CategoryCount
		var id sql.NullInt64
		if err := rows.Scan(&id, &cc.Name, &cc.Count); err != nil {
			return nil, err
		}
		cc.CategoryID = store.Int64Ptr(id)
		if cc.CategoryID == nil {
			cc.Name = "Uncategorized"
		}
		st.ByCategory = append(st.ByCategory, cc)
	}
	return st, rows.Err()
}

// CreateCategory persists c and sets its ID.
func (s *SQLiteStore) CreateCategory(ctx context.Context, c *Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("create category: name is required")
	}
	if c.Color == "" {
		c.Color = DefaultColor
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (user_id, project_id, name, color) VALUES (?,?,?,?)`,
		c.UserID, store.NullInt64(c.ProjectID), c.Name, c.Color,
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

// GetCategory retrieves a category by ID.
func (s *SQLiteStore) GetCategory(ctx context.Context, id int64) (*Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, user_id, project_id, name, color FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, store.ErrNotFound)
	}
	return c, err
}

// ListCategories returns the user's own categories plus those of projects in
// teams the user belongs to.
func (s *SQLiteStore) ListCategories(ctx context.Context, userID int64) ([]*Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, project_id, name, color FROM categories
		WHERE user_id = ?
		   OR project_id IN (
			SELECT p.id FROM projects p
			JOIN team_memberships m ON m.team_id = p.team_id
			WHERE m.user_id = ?)
		ORDER BY name, id`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []*Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCategory saves the name and color of c.
func (s *SQLiteStore) UpdateCategory(ctx context.Context, c *Category) error {
	if c.Color == "" {
		c.Color = DefaultColor
	}
	res, err := s.db.ExecContext(ctx, `UPDATE categories SET name=?, color=? WHERE id=?`, c.Name, c.Color, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return expectRow(res, "category", c.ID)
}

// DeleteCategory removes a category; its tasks become uncategorized.
func (s *SQLiteStore) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectRow(res, "category", id)
}

// where renders the filter as a SQL predicate. It always returns a valid
// expression so callers can append it after WHERE.
func (f Filter) where() (string, []any) {
	conds := []string{"1=1"}
	var args []any
	add := func(cond string, a ...any) {
		conds = append(conds, cond)
		args = append(args, a...)
	}
	if f.UserID != 0 {
		add("user_id = ?", f.UserID)
	}
	if f.VisibleTo != 0 {
		add("(user_id = ? OR assigned_to = ?)", f.VisibleTo, f.VisibleTo)
	}
	if f.CategoryID != nil {
		add("category_id = ?", *f.CategoryID)
	}
	if f.ProjectID != nil {
		add("project_id = ?", *f.ProjectID)
	}
	if f.AssignedTo != nil {
		add("assigned_to = ?", *f.AssignedTo)
	}
	if f.Status != nil {
		add("status = ?", string(*f.Status))
	}
	if f.Priority != nil {
		add("priority = ?", int(*f.Priority))
	}
	if f.DueDate != "" {
		add("due_date = ?", f.DueDate)
	}
	if f.StartDate != "" {
		add("due_date <> '' AND due_date >= ?", f.StartDate)
	}
	if f.EndDate != "" {
		add("due_date <> '' AND due_date <= ?", f.EndDate)
	}
	if f.TitleContains != "" {
		add("title LIKE ? ESCAPE '\\'", "%"+escapeLike(f.TitleContains)+"%")
	}
	return strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var status string
	var priority int
	var categoryID, projectID, assignedTo sql.NullInt64

	err := s.Scan(
		&t.ID, &t.UserID, &categoryID, &projectID, &assignedTo, &t.CreatedBy,
		&t.Title, &t.Description, &t.DueDate, &t.StartTime, &t.EndTime,
		&status, &priority, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.Priority = Priority(priority)
	t.CategoryID = store.Int64Ptr(categoryID)
	t.ProjectID = store.Int64Ptr(projectID)
	t.AssignedTo = store.Int64Ptr(assignedTo)
	return &t, nil
}

func scanCategory(s scanner) (*Category, error) {
	var c Category
	var projectID sql.NullInt64
	if err := s.Scan(&c.ID, &c.UserID, &projectID, &c.Name, &c.Color); err != nil {
		return nil, err
	}
	c.ProjectID = store.Int64Ptr(projectID)
	return &c, nil
}

func expectRow(res sql.Result, what string, id int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%s %d: %w", what, id, store.ErrNotFound)
	}
	return nil
}
