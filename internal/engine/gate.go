package engine

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Gate runs at most one sequence at a time and holds the slot for a cooldown
// after each body returns. Run does not queue fairly: callers that must not
// block check IsBusy first.
type Gate struct {
	clock clockwork.Clock
	slot  chan struct{}

	mu        sync.Mutex
	busy      bool
	busyUntil time.Time
}

// NewGate returns an idle gate measuring cooldowns on clock.
func NewGate(clock clockwork.Clock) *Gate {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Gate{clock: clock, slot: make(chan struct{}, 1)}
}

// IsBusy reports whether a sequence or its cooldown holds the gate.
func (g *Gate) IsBusy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// BusyUntil returns the end of the running cooldown, if one is in progress.
func (g *Gate) BusyUntil() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.busy || g.busyUntil.IsZero() {
		return time.Time{}, false
	}
	return g.busyUntil, true
}

// Run waits for the slot, executes sequence and then keeps the gate busy for
// cooldown. A cancelled ctx aborts the wait, the body or the cooldown and
// returns ctx.Err(). The slot is released on every exit path.
func (g *Gate) Run(ctx context.Context, sequence func(ctx context.Context) error, cooldown time.Duration) error {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.setBusy(true, time.Time{})
	defer func() {
		g.setBusy(false, time.Time{})
		<-g.slot
	}()

	if err := sequence(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if cooldown <= 0 {
		return nil
	}
	g.setBusy(true, g.clock.Now().Add(cooldown))
	return sleep(ctx, g.clock, cooldown)
}

func (g *Gate) setBusy(busy bool, until time.Time) {
	g.mu.Lock()
	g.busy = busy
	g.busyUntil = until
	g.mu.Unlock()
}

// sleep waits for d on clock, returning early with ctx.Err() on cancellation.
func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
