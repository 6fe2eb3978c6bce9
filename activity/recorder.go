package activity

import (
	"context"
	"log/slog"

	"github.com/DhimiMohamed/taskmanager/comms"
)

// Recorder persists bus events as activity logs. Events are queued by the bus
// handler and written by Run so that publishers never wait on the database.
type Recorder struct {
	store  *Store
	logger *slog.Logger
	queue  chan *comms.Event
}

// NewRecorder returns a Recorder with a queue of the given capacity.
func NewRecorder(s *Store, logger *slog.Logger, capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 256
	}
	return &Recorder{store: s, logger: logger, queue: make(chan *comms.Event, capacity)}
}

// Attach subscribes the recorder to every event on bus.
func (r *Recorder) Attach(bus comms.Bus) (unsubscribe func()) {
	return bus.Subscribe(comms.AllTopics, r.enqueue)
}

func (r *Recorder) enqueue(_ context.Context, ev *comms.Event) error {
	select {
	case r.queue <- ev:
	default:
		r.logger.Warn("activity queue full, dropping event",
			slog.String("type", string(ev.Type)), slog.Int64("object_id", ev.ObjectID))
	}
	return nil
}

// Run writes queued events until ctx is done, then drains what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-r.queue:
			r.write(context.WithoutCancel(ctx), ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-r.queue:
					r.write(context.WithoutCancel(ctx), ev)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Recorder) write(ctx context.Context, ev *comms.Event) {
	if err := r.store.Insert(ctx, FromEvent(ev)); err != nil {
		r.logger.Error("record activity", slog.String("type", string(ev.Type)), slog.Any("err", err))
	}
}
