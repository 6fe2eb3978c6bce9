package reminder

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/DhimiMohamed/taskmanager/account"
	"github.com/DhimiMohamed/taskmanager/comms"
	"github.com/DhimiMohamed/taskmanager/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingNotifier struct {
	mu   sync.Mutex
	got  []*Due
	fail map[string]bool // by task title
}

func (n *recordingNotifier) Notify(_ context.Context, d *Due) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, d)
	if n.fail[d.TaskTitle] {
		return errors.New("mailbox full")
	}
	return nil
}

func seed(t *testing.T, db *sql.DB, titles ...string) (int64, []int64) {
	t.Helper()
	res, err := db.Exec(`INSERT INTO users (email, password_hash, created_at) VALUES ('r@example.com', 'x', datetime('now'))`)
	require.NoError(t, err)
	uid, _ := res.LastInsertId()
	var ids []int64
	for _, title := range titles {
		res, err := db.Exec(`INSERT INTO tasks (user_id, created_by, title, due_date, created_at, updated_at)
			VALUES (?, ?, ?, '2026-07-01', datetime('now'), datetime('now'))`, uid, uid, title)
		require.NoError(t, err)
		id, _ := res.LastInsertId()
		ids = append(ids, id)
	}
	return uid, ids
}

func TestSweepMarksEachReminder(t *testing.T) {
	ctx := context.Background()
	db := store.OpenTemp(t)
	s := NewStore(db)
	_, tasks := seed(t, db, "ok", "broken", "later")

	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	due1 := &Reminder{TaskID: tasks[0], RemindAt: now.Add(-time.Minute)}
	due2 := &Reminder{TaskID: tasks[1], RemindAt: now.Add(-time.Hour), Method: MethodInApp}
	future := &Reminder{TaskID: tasks[2], RemindAt: now.Add(time.Hour)}
	for _, r := range []*Reminder{due1, due2, future} {
		require.NoError(t, s.Create(ctx, r))
	}

	n := &recordingNotifier{fail: map[string]bool{"broken": true}}
	bus := comms.NewInMemoryBus()
	d := NewDispatcher(s, n, bus, discard, time.Minute)
	d.now = func() time.Time { return now }

	sent, err := d.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Len(t, n.got, 2)

	for id, want := range map[int64]Status{due1.ID: StatusSent, due2.ID: StatusFailed, future.ID: StatusPending} {
		r, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, r.Status, "reminder %d", id)
	}

	// Nothing left to do on the next tick.
	sent, err = d.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	hist, _ := bus.History(n.got[0].UserID, 0)
	require.Len(t, hist, 1)
	assert.Equal(t, comms.ReminderSent, hist[0].Type)
}

func TestRunStopsOnCancel(t *testing.T) {
	db := store.OpenTemp(t)
	d := NewDispatcher(NewStore(db), &recordingNotifier{}, nil, discard, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestInAppNotifierCreatesNotification(t *testing.T) {
	ctx := context.Background()
	db := store.OpenTemp(t)
	uid, _ := seed(t, db)
	accounts := account.NewSQLiteStore(db)

	n := Router{MethodInApp: &InAppNotifier{Accounts: accounts}}
	require.NoError(t, n.Notify(ctx, &Due{Reminder: Reminder{Method: MethodInApp}, TaskTitle: "Pay rent", DueDate: "2026-07-01", UserID: uid}))
	assert.Error(t, n.Notify(ctx, &Due{Reminder: Reminder{Method: MethodEmail}}))

	list, err := accounts.ListNotifications(ctx, uid, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Reminder: task 'Pay rent' is due on 2026-07-01.", list[0].Message)
}

func TestEmailNotifier(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	n := NewEmailNotifier(SMTPConfig{Host: "mail.local", Port: 2525, From: "noreply@example.com"}, discard)
	n.send = func(addr string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		return nil
	}
	err := n.Notify(context.Background(), &Due{TaskTitle: "Ship", Email: "u@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.True(t, strings.Contains(string(gotMsg), "Subject: Task reminder: Ship"))

	// No host: logged, not sent.
	quiet := NewEmailNotifier(SMTPConfig{}, discard)
	quiet.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send called with smtp disabled")
		return nil
	}
	assert.NoError(t, quiet.Notify(context.Background(), &Due{TaskTitle: "x"}))
}
