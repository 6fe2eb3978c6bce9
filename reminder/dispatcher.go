package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/DhimiMohamed/taskmanager/comms"
)

const sweepBatch = 100

// Dispatcher periodically delivers due reminders.
type Dispatcher struct {
	store    *Store
	notifier Notifier
	bus      comms.Bus
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewDispatcher returns a Dispatcher sweeping every interval. bus may be nil.
func NewDispatcher(s *Store, n Notifier, bus comms.Bus, logger *slog.Logger, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Dispatcher{store: s, notifier: n, bus: bus, logger: logger, interval: interval, now: time.Now}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		if _, err := d.Sweep(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("reminder sweep", slog.Any("err", err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep delivers every reminder due now and returns how many were sent.
// Each reminder is marked sent or failed on its own.
func (d *Dispatcher) Sweep(ctx context.Context) (int, error) {
	due, err := d.store.Due(ctx, d.now(), sweepBatch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, r := range due {
		status := StatusSent
		if err := d.notifier.Notify(ctx, r); err != nil {
			status = StatusFailed
			d.logger.Warn("reminder delivery failed",
				slog.Int64("reminder_id", r.ID), slog.String("method", string(r.Method)), slog.Any("err", err))
		}
		if err := d.store.MarkStatus(ctx, r.ID, status); err != nil {
			return sent, err
		}
		if status != StatusSent {
			continue
		}
		sent++
		if d.bus != nil {
			_ = d.bus.Publish(ctx, &comms.Event{
				Type: comms.ReminderSent, UserID: r.UserID, ObjectType: "task", ObjectID: r.TaskID,
				Detail: string(r.Method),
			})
		}
	}
	if len(due) > 0 {
		d.logger.Debug("reminder sweep", slog.Int("due", len(due)), slog.Int("sent", sent))
	}
	return sent, nil
}
