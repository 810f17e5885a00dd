package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/jamesainslie/flightlog/pkg/flightlog/link"
)

// Driver runs an Engine against a live transport. It never blocks on a
// single response: every wait is bounded by the engine's deadline.
type Driver struct {
	eng    *Engine
	events <-chan link.Response
	wake   chan struct{}
	now    func() time.Time
}

// NewDriver binds an engine to the events of a transport.
func NewDriver(eng *Engine, events <-chan link.Response) *Driver {
	return &Driver{
		eng:    eng,
		events: events,
		wake:   make(chan struct{}, 1),
		now:    time.Now,
	}
}

// Cancel stops the session at the next step. Safe to call from any
// goroutine, before or during Run.
func (d *Driver) Cancel() {
	d.eng.Cancel()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run starts the engine and feeds it until the session is done. Cancelling
// ctx cancels the session; the partial result is still returned.
func (d *Driver) Run(ctx context.Context, target Target) (Result, error) {
	if err := d.eng.Start(target, d.now()); err != nil {
		return Result{}, err
	}

	for d.eng.State() != Done {
		deadline, _ := d.eng.Deadline()
		timer := time.NewTimer(time.Until(deadline))

		select {
		case <-ctx.Done():
			d.eng.Cancel()
			d.eng.Step(d.now())
		case <-d.wake:
			d.eng.Step(d.now())
		case <-timer.C:
			d.eng.Expire(d.now())
		case resp, ok := <-d.events:
			if !ok {
				d.eng.Abort(fmt.Errorf("retrieving %s: %w", target, link.ErrClosed), d.now())
				break
			}
			d.eng.HandleResponse(resp, d.now())
		}
		timer.Stop()
	}

	res := d.eng.Result()
	return res, res.Err
}
