package system

import (
	"cmp"
	"slices"
	"time"
)

// Runner executes registered systems in phase order. Systems sharing a phase
// keep their registration order.
type Runner struct {
	systems []System
	dirty   bool
	ticks   uint64
}

func NewRunner() *Runner {
	return &Runner{systems: make([]System, 0, 8)}
}

// Register adds s; it runs from the next Tick on.
func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.dirty = true
}

// Tick runs every system once with dt and returns the wall time it took.
func (r *Runner) Tick(dt time.Duration) time.Duration {
	start := time.Now()
	if r.dirty {
		slices.SortStableFunc(r.systems, func(a, b System) int {
			return cmp.Compare(a.Phase(), b.Phase())
		})
		r.dirty = false
	}
	for _, s := range r.systems {
		s.Update(dt)
	}
	r.ticks++
	return time.Since(start)
}

// Ticks returns how many ticks have completed.
func (r *Runner) Ticks() uint64 { return r.ticks }

// Len returns the number of registered systems.
func (r *Runner) Len() int { return len(r.systems) }
