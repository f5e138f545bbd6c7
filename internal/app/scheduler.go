// Package app drives the client as a small state machine. Each top-level
// State owns three step lists: enter runs once on every transition into the
// state, tick runs at the fixed simulation rate and render runs once per
// presented frame.
package app

import (
	"fmt"

	"go.uber.org/zap"
)

type State int

const (
	Startup State = iota
	MainMenu
	Overworld
	Quit
)

func (s State) String() string {
	switch s {
	case Startup:
		return "startup"
	case MainMenu:
		return "main-menu"
	case Overworld:
		return "overworld"
	case Quit:
		return "quit"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Step is one named operation inside a step list.
type Step struct {
	Name string
	Run  func()
}

// PhaseList runs its steps in declaration order. Later steps see the
// mutations made by earlier ones in the same call.
type PhaseList []Step

func (p PhaseList) run() {
	for _, s := range p {
		s.Run()
	}
}

type Schedules struct {
	Enter  PhaseList
	Tick   PhaseList
	Render PhaseList
}

// NextState is the pending-transition slot shared between the scheduler and
// the steps that request transitions.
type NextState struct {
	pending State
	set     bool
}

// Set requests a transition, replacing any earlier request.
func (n *NextState) Set(s State) {
	n.pending = s
	n.set = true
}

// Take returns and clears the pending state.
func (n *NextState) Take() (State, bool) {
	s, ok := n.pending, n.set
	n.pending, n.set = 0, false
	return s, ok
}

func (n *NextState) Peek() (State, bool) {
	return n.pending, n.set
}

type Scheduler struct {
	current State
	next    *NextState
	states  map[State]Schedules
	running bool
	log     *zap.Logger
}

// NewScheduler starts in initial. Every state other than Quit that a step
// can move to must have schedules, and so must initial.
func NewScheduler(initial State, next *NextState, states map[State]Schedules, log *zap.Logger) (*Scheduler, error) {
	if next == nil {
		return nil, fmt.Errorf("app: nil next-state slot")
	}
	if initial == Quit {
		return nil, fmt.Errorf("app: cannot start in %s", Quit)
	}
	if _, ok := states[initial]; !ok && initial != Startup {
		return nil, fmt.Errorf("app: missing schedules for initial state %s", initial)
	}
	if _, ok := states[Quit]; ok {
		return nil, fmt.Errorf("app: %s cannot own schedules", Quit)
	}
	return &Scheduler{
		current: initial,
		next:    next,
		states:  states,
		running: true,
		log:     log,
	}, nil
}

// Tick commits a pending transition, running the new state's enter list,
// then runs the current state's tick list once. A Quit request stops the
// scheduler before anything else runs.
func (s *Scheduler) Tick() {
	if !s.running {
		return
	}
	if want, ok := s.next.Take(); ok {
		switch {
		case want == Quit:
			s.running = false
			s.log.Info("quit requested", zap.Stringer("from", s.current))
			return
		case want == s.current:
		default:
			sched, ok := s.states[want]
			if !ok {
				s.log.Error("transition to state without schedules ignored",
					zap.Stringer("from", s.current), zap.Stringer("to", want))
				break
			}
			s.log.Debug("state transition", zap.Stringer("from", s.current), zap.Stringer("to", want))
			s.current = want
			sched.Enter.run()
		}
	}
	s.states[s.current].Tick.run()
}

// Render runs the current state's render list. It never commits a
// transition.
func (s *Scheduler) Render() {
	if !s.running {
		return
	}
	s.states[s.current].Render.run()
}

func (s *Scheduler) Running() bool  { return s.running }
func (s *Scheduler) Current() State { return s.current }
