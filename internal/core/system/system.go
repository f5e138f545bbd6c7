// Package system runs the server's per-tick work in a fixed phase order.
package system

import "time"

// Phase orders systems within one tick.
type Phase int

const (
	PhaseInput      Phase = iota // drain transport events, route messages
	PhasePreUpdate               // deliver last tick's bus events
	PhaseUpdate                  // resolve deferred requests
	PhaseOutput                  // transport maintenance: resends, heartbeats, timeouts
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhaseOutput:
		return "output"
	default:
		return "unknown"
	}
}

type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
