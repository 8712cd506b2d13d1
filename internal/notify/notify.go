// Package notify delivers fire-and-forget events to patients and
// centers. Delivery failure must never roll back the ledger transition
// that produced the event, so dispatch runs on the worker pool and
// errors are only logged.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/screenfund/backend/internal/worker"
)

type Kind string

const (
	WaitlistMatched      Kind = "waitlist_matched"
	AppointmentCompleted Kind = "appointment_completed"
	PayoutSucceeded      Kind = "payout_succeeded"
	PayoutFailed         Kind = "payout_failed"
)

type Event struct {
	Kind        Kind
	RecipientID string
	Data        map[string]any
}

type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// LogSink is the default sink; real channels (email, WhatsApp) plug in
// behind the same interface.
type LogSink struct{}

func (LogSink) Notify(_ context.Context, ev Event) error {
	slog.Info("notify", "kind", ev.Kind, "recipient", ev.RecipientID, "data", ev.Data)
	return nil
}

type Dispatcher struct {
	sink Sink
	wp   *worker.Pool
}

func NewDispatcher(sink Sink, wp *worker.Pool) *Dispatcher {
	return &Dispatcher{sink: sink, wp: wp}
}

// Dispatch queues the event and returns immediately.
func (d *Dispatcher) Dispatch(ev Event) {
	d.wp.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.sink.Notify(ctx, ev); err != nil {
			slog.Warn("notify failed", "kind", ev.Kind, "recipient", ev.RecipientID, "err", err)
		}
	})
}
