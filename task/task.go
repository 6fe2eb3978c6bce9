// Package task defines tasks and categories and their persistence.
package task

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Date and time layouts used for due dates and time-of-day fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists every status in index order; the index is the numeric form
// the assistant tools accept.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// StatusFromIndex maps 0, 1 and 2 to pending, in_progress and completed.
func StatusFromIndex(i int) (Status, bool) {
	if i < 0 || i >= len(Statuses) {
		return "", false
	}
	return Statuses[i], true
}

// Priority determines task ordering. Higher is more urgent.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

// Valid reports whether p is within 1..3.
func (p Priority) Valid() bool { return p >= PriorityLow && p <= PriorityHigh }

// Task is a unit of work owned by a user and optionally attached to a project.
type Task struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	CategoryID  *int64    `json:"category_id,omitempty"`
	ProjectID   *int64    `json:"project_id,omitempty"`
	AssignedTo  *int64    `json:"assigned_to,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description"`
	DueDate     string    `json:"due_date,omitempty"`
	StartTime   string    `json:"start_time,omitempty"`
	EndTime     string    `json:"end_time,omitempty"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Normalize fills defaults and checks field formats.
func (t *Task) Normalize() error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if !t.Status.Valid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if t.Priority == 0 {
		t.Priority = PriorityLow
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("invalid priority %d", t.Priority)
	}
	if t.DueDate != "" {
		if err := ValidateDate(t.DueDate); err != nil {
			return err
		}
	}
	for _, v := range []string{t.StartTime, t.EndTime} {
		if v == "" {
			continue
		}
		if err := ValidateTime(v); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDate checks s is in YYYY-MM-DD form.
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return nil
}

// ValidateTime checks s is in HH:MM:SS form.
func ValidateTime(s string) error {
	if _, err := time.Parse(TimeLayout, s); err != nil {
		return fmt.Errorf("invalid time %q, expected HH:MM:SS", s)
	}
	return nil
}

// Category groups tasks. A category with a ProjectID belongs to that project's team.
type Category struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	ProjectID *int64 `json:"project_id,omitempty"`
	Name      string `json:"name" validate:"required,max=100"`
	Color     string `json:"color" validate:"omitempty,hexcolor"`
}

// DefaultColor is assigned to categories created without one.
const DefaultColor = "#CCCCCC"

// Filter controls which tasks List, UpdateStatus and DeleteMatching touch.
// Zero fields do not constrain.
type Filter struct {
	UserID        int64     `json:"user_id,omitempty"`    // owner
	VisibleTo     int64     `json:"visible_to,omitempty"` // owner or assignee
	CategoryID    *int64    `json:"category_id,omitempty"`
	ProjectID     *int64    `json:"project_id,omitempty"`
	AssignedTo    *int64    `json:"assigned_to,omitempty"`
	Status        *Status   `json:"status,omitempty"`
	Priority      *Priority `json:"priority,omitempty"`
	DueDate       string    `json:"due_date,omitempty"`
	StartDate     string    `json:"start_date,omitempty"` // inclusive
	EndDate       string    `json:"end_date,omitempty"`   // inclusive
	TitleContains string    `json:"title_contains,omitempty"`
	Limit         int       `json:"limit,omitempty"`
	Offset        int       `json:"offset,omitempty"`
}

// Stats summarizes the tasks visible to a user.
type Stats struct {
	Total          int             `json:"total"`
	Completed      int             `json:"completed"`
	InProgress     int             `json:"in_progress"`
	Pending        int             `json:"pending"`
	DueToday       int             `json:"due_today"`
	Overdue        int             `json:"overdue"`
	CompletionRate float64         `json:"completion_rate"` // percent, one decimal
	ByCategory     []CategoryCount `json:"by_category"`
}

// CategoryCount is one row of the per-category breakdown.
type CategoryCount struct {
	CategoryID *int64 `json:"category_id"`
	Name       string `json:"name"`
	Count      int    `json:"count"`
}

// Store persists and retrieves tasks and categories.
type Store interface {
	// Create persists a new task and sets its ID and timestamps.
	Create(ctx context.Context, t *Task) error

	// Get retrieves a task by ID.
	Get(ctx context.Context, id int64) (*Task, error)

	// Update saves changes to an existing task.
	Update(ctx context.Context, t *Task) error

	// Delete removes a task by ID.
	Delete(ctx context.Context, id int64) error

	// List returns tasks matching the filter, most urgent first.
	List(ctx context.Context, f Filter) ([]*Task, error)

	// UpdateStatus sets the status of every task matching f and returns the count.
	UpdateStatus(ctx context.Context, f Filter, status Status) (int64, error)

	// DeleteMatching removes every task matching f and returns the count.
	DeleteMatching(ctx context.Context, f Filter) (int64, error)

	// Stats computes the summary for tasks visible to userID as of today.
	Stats(ctx context.Context, userID int64, today string) (*Stats, error)

	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id int64) (*Category, error)
	ListCategories(ctx context.Context, userID int64) ([]*Category, error)
	UpdateCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, id int64) error
}
