package playback

import (
	"context"
	"time"
)

type iChangeSource interface {
	Changes() (<-chan struct{}, func())
}

// Runner drives an Engine from room changes, player events and a periodic
// tick. Events are handled in the order they arrive.
type Runner struct {
	engine   *Engine
	changes  iChangeSource
	events   <-chan Event
	interval time.Duration
}

func NewRunner(engine *Engine, changes iChangeSource, events <-chan Event) *Runner {
	return &Runner{
		engine:   engine,
		changes:  changes,
		events:   events,
		interval: engine.cfg.TickInterval,
	}
}

// Run blocks until ctx is done or the event channel is closed.
func (r *Runner) Run(ctx context.Context) error {
	changes, release := r.changes.Changes()
	defer release()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.engine.Reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
			r.engine.Reconcile(ctx)
		case ev, ok := <-r.events:
			if !ok {
				return nil
			}
			r.engine.HandleEvent(ctx, ev)
		case <-ticker.C:
			r.engine.Reconcile(ctx)
		}
	}
}
