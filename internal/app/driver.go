package app

import (
	"context"
	"time"
)

// Driver runs the scheduler at a fixed tick rate independent of how often
// frames are presented. A slow frame is caught up with several ticks.
type Driver struct {
	sched *Scheduler
	tick  time.Duration
	acc   time.Duration
	// maxCatchUp bounds the ticks run for a single frame so a long stall
	// cannot spiral; leftover time is discarded.
	maxCatchUp int
}

// NewDriver starts with one tick already accumulated so the simulation
// advances once before the first render.
func NewDriver(sched *Scheduler, tick time.Duration) *Driver {
	if tick <= 0 {
		tick = time.Second / 60
	}
	return &Driver{
		sched:      sched,
		tick:       tick,
		acc:        tick,
		maxCatchUp: 240,
	}
}

// Advance adds elapsed wall-clock time to the accumulator.
func (d *Driver) Advance(dt time.Duration) {
	if dt > 0 {
		d.acc += dt
	}
}

// Frame runs every tick owed by the accumulator, then renders once. It
// returns the number of ticks run.
func (d *Driver) Frame() int {
	n := 0
	for d.acc >= d.tick && d.sched.Running() {
		if n == d.maxCatchUp {
			d.acc %= d.tick
			break
		}
		d.sched.Tick()
		d.acc -= d.tick
		n++
	}
	d.sched.Render()
	return n
}

// Run loops until the scheduler quits or ctx is done. present is called
// after each frame's render, typically to flush the screen.
func (d *Driver) Run(ctx context.Context, present func()) error {
	t := time.NewTicker(d.tick)
	defer t.Stop()

	last := time.Now()
	for d.sched.Running() {
		d.Frame()
		if present != nil {
			present()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			d.Advance(now.Sub(last))
			last = now
		}
	}
	return nil
}
