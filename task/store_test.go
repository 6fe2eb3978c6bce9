package task

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/DhimiMohamed/taskmanager/store"
)

func newTestStore(t *testing.T) (*SQLiteStore, int64) {
	t.Helper()
	db := store.OpenTemp(t)
	res, err := db.Exec(`INSERT INTO users (email, password_hash, created_at) VALUES ('t@example.com', 'x', datetime('now'))`)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	uid, _ := res.LastInsertId()
	return NewSQLiteStore(db), uid
}

func ptr[T any](v T) *T { return &v }

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s, uid := newTestStore(t)

	task := &Task{
		UserID:      uid,
		Title:       "  Write report ",
		Description: "quarterly",
		DueDate:     "2026-03-01",
		StartTime:   "09:00:00",
		Priority:    PriorityHigh,
	}
	if err := s.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.ID == 0 {
		t.Fatal("Create did not set ID")
	}
	if task.CreatedBy != uid {
		t.Errorf("CreatedBy = %d, want %d", task.CreatedBy, uid)
	}

	got, err := s.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Write report" {
		t.Errorf("Title = %q, want %q", got.Title, "Write report")
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, StatusPending)
	}
	if diff := cmp.Diff(task, got, cmpopts.IgnoreFields(Task{}, "CreatedAt", "UpdatedAt")); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteStore_CreateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s, uid := newTestStore(t)

	cases := []*Task{
		{UserID: uid, Title: ""},
		{UserID: uid, Title: "x", DueDate: "03/01/2026"},
		{UserID: uid, Title: "x", StartTime: "9am"},
		{UserID: uid, Title: "x", Priority: 7},
		{UserID: uid, Title: "x", Status: "done"},
	}
	for _, c := range cases {
		if err := s.Create(ctx, c); err == nil {
			t.Errorf("Create(%+v) succeeded, want error", c)
		}
	}
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get(context.Background(), 999)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s, uid := newTestStore(t)

	task := &Task{UserID: uid, Title: "Original"}
	if err := s.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	task.Title = "Updated"
	task.Status = StatusInProgress
	if err := s.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := s.Get(ctx, task.ID)
	if got.Title != "Updated" || got.Status != StatusInProgress {
		t.Errorf("after Update got (%q, %q)", got.Title, got.Status)
	}

	if err := s.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, task.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	s, uid := newTestStore(t)

	cat := &Category{UserID: uid, Name: "Work"}
	if err := s.CreateCategory(ctx, cat); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	seed := []*Task{
		{UserID: uid, Title: "low early", DueDate: "2026-01-01", Priority: PriorityLow},
		{UserID: uid, Title: "high late", DueDate: "2026-01-05", Priority: PriorityHigh, CategoryID: &cat.ID},
		{UserID: uid, Title: "high early", DueDate: "2026-01-02", Priority: PriorityHigh},
		{UserID: uid, Title: "undated", Priority: PriorityMedium, Status: StatusCompleted},
		{UserID: uid, Title: "100% done_ish", DueDate: "2026-02-01"},
	}
	for _, task := range seed {
		if err := s.Create(ctx, task); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	titles := func(ts []*Task) []string {
		out := []string{}
		for _, t := range ts {
			out = append(out, t.Title)
		}
		return out
	}

	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"range ordered by priority then date", Filter{UserID: uid, StartDate: "2026-01-01", EndDate: "2026-01-05"},
			[]string{"high early", "high late", "low early"}},
		{"category", Filter{UserID: uid, CategoryID: &cat.ID}, []string{"high late"}},
		{"status", Filter{UserID: uid, Status: ptr(StatusCompleted)}, []string{"undated"}},
		{"priority", Filter{UserID: uid, Priority: ptr(PriorityHigh)}, []string{"high early", "high late"}},
		{"due date", Filter{UserID: uid, DueDate: "2026-01-01"}, []string{"low early"}},
		{"title contains escapes wildcards", Filter{UserID: uid, TitleContains: "0% d"}, []string{"100% done_ish"}},
		{"other user", Filter{UserID: uid + 100}, []string{}},
		{"limit", Filter{UserID: uid, Limit: 1}, []string{"high early"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.f)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if diff := cmp.Diff(tt.want, titles(got)); diff != "" {
				t.Errorf("List mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSQLiteStore_UpdateStatusAndDeleteMatching(t *testing.T) {
	ctx := context.Background()
	s, uid := newTestStore(t)

	for _, d := range []string{"2026-05-01", "2026-05-01", "2026-05-02"} {
		if err := s.Create(ctx, &Task{UserID: uid, Title: "t " + d, DueDate: d}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	n, err := s.UpdateStatus(ctx, Filter{UserID: uid, DueDate: "2026-05-01"}, StatusCompleted)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if n != 2 {
		t.Errorf("UpdateStatus affected %d, want 2", n)
	}
	if _, err := s.UpdateStatus(ctx, Filter{UserID: uid}, "bogus"); err == nil {
		t.Error("UpdateStatus with bogus status succeeded")
	}

	n, err = s.DeleteMatching(ctx, Filter{UserID: uid, Status: ptr(StatusCompleted)})
	if err != nil {
		t.Fatalf("DeleteMatching: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteMatching affected %d, want 2", n)
	}
	left, _ := s.List(ctx, Filter{UserID: uid})
	if len(left) != 1 {
		t.Errorf("remaining tasks = %d, want 1", len(left))
	}
}

func TestSQLiteStore_Stats(t *testing.T) {
	ctx := context.Background()
	s, uid := newTestStore(t)

	cat := &Category{UserID: uid, Name: "Home", Color: "#00FF00"}
	if err := s.CreateCategory(ctx, cat); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	seed := []*Task{
		{UserID: uid, Title: "a", DueDate: "2026-06-10", Status: StatusCompleted, CategoryID: &cat.ID},
		{UserID: uid, Title: "b", DueDate: "2026-06-10"},
		{UserID: uid, Title: "c", DueDate: "2026-06-01", Status: StatusInProgress, CategoryID: &cat.ID},
		{UserID: uid, Title: "d"},
	}
	for _, task := range seed {
		if err := s.Create(ctx, task); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := s.Stats(ctx, uid, "2026-06-10")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := &Stats{
		Total: 4, Completed: 1, InProgress: 1, Pending: 2, DueToday: 2, Overdue: 1,
		CompletionRate: 25,
		ByCategory: []CategoryCount{
			{CategoryID: &cat.ID, Name: "Home", Count: 2},
			{CategoryID: nil, Name: "Uncategorized", Count: 2},
		},
	}
	// Equal counts sort by category id; NULL sorts first in SQLite.
	want.ByCategory[0], want.ByCategory[1] = want.ByCategory[1], want.ByCategory[0]
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteStore_Categories(t *testing.T) {
	ctx := context.Background()
	s, uid := newTestStore(t)

	c := &Category{UserID: uid, Name: "Errands"}
	if err := s.CreateCategory(ctx, c); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if c.Color != DefaultColor {
		t.Errorf("Color = %q, want %q", c.Color, DefaultColor)
	}
	task := &Task{UserID: uid, Title: "buy milk", CategoryID: &c.ID}
	if err := s.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}

	c.Name = "Chores"
	if err := s.UpdateCategory(ctx, c); err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	list, err := s.ListCategories(ctx, uid)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Chores" {
		t.Errorf("ListCategories = %+v", list)
	}

	if err := s.DeleteCategory(ctx, c.ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	got, _ := s.Get(ctx, task.ID)
	if got.CategoryID != nil {
		t.Errorf("CategoryID = %v after category delete, want nil", *got.CategoryID)
	}
}
