package server

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/linchutchinson/shackle-mmo/internal/protocol"
	"go.uber.org/zap"
)

// SessionState is where an address stands with the registry.
type SessionState int

const (
	StateGuest   SessionState = iota // no successful Connect yet
	StatePlaying                     // authenticated
)

func (s SessionState) String() string {
	switch s {
	case StateGuest:
		return "Guest"
	case StatePlaying:
		return "Playing"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

var ErrNotAllowed = errors.New("message not allowed in session state")

// HandlerFunc handles one decoded client message.
type HandlerFunc func(from netip.AddrPort, msg protocol.ClientMessage)

type route struct {
	fn      HandlerFunc
	allowed map[SessionState]bool
}

// Router maps message kinds to handlers, gated by the sender's session state.
type Router struct {
	routes  map[protocol.ClientKind]*route
	state   func(netip.AddrPort) SessionState
	metrics *Metrics
	log     *zap.Logger
}

func NewRouter(state func(netip.AddrPort) SessionState, metrics *Metrics, log *zap.Logger) *Router {
	return &Router{
		routes:  make(map[protocol.ClientKind]*route),
		state:   state,
		metrics: metrics,
		log:     log,
	}
}

// Register maps kind to fn for senders in one of states.
func (rt *Router) Register(kind protocol.ClientKind, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	rt.routes[kind] = &route{fn: fn, allowed: allowed}
}

// Dispatch runs the handler for msg. A handler panic is recovered and
// returned as an error so one bad message cannot stop the tick.
func (rt *Router) Dispatch(from netip.AddrPort, msg protocol.ClientMessage) error {
	kind := msg.Kind()
	state := rt.state(from)
	rt.log.Debug("routing message",
		zap.Stringer("addr", from),
		zap.Stringer("kind", kind),
		zap.Stringer("state", state))

	r, ok := rt.routes[kind]
	if !ok {
		rt.log.Debug("no handler for message", zap.Stringer("kind", kind))
		return nil
	}
	if !r.allowed[state] {
		if state == StateGuest {
			rt.metrics.Unauthenticated.Add(1)
		}
		rt.log.Warn("message not allowed in this session state",
			zap.Stringer("addr", from),
			zap.Stringer("kind", kind),
			zap.Stringer("state", state))
		return fmt.Errorf("%w: %s in %s", ErrNotAllowed, kind, state)
	}
	rt.metrics.Packets.Add(1)
	return rt.safeCall(r.fn, from, msg)
}

func (rt *Router) safeCall(fn HandlerFunc, from netip.AddrPort, msg protocol.ClientMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			rt.log.Error("handler panic recovered",
				zap.Stringer("addr", from),
				zap.Stringer("kind", msg.Kind()),
				zap.Any("panic", rec))
			err = fmt.Errorf("handler panic for %s: %v", msg.Kind(), rec)
		}
	}()
	fn(from, msg)
	return nil
}

// RegistryRouter wires every client message kind to reg.
func RegistryRouter(reg *Registry, metrics *Metrics, log *zap.Logger) *Router {
	rt := NewRouter(func(addr netip.AddrPort) SessionState {
		if reg.Connected(addr) {
			return StatePlaying
		}
		return StateGuest
	}, metrics, log)

	guest := []SessionState{StateGuest}
	playing := []SessionState{StatePlaying}
	both := []SessionState{StateGuest, StatePlaying}

	rt.Register(protocol.KindConnect, guest, func(from netip.AddrPort, m protocol.ClientMessage) {
		reg.HandleConnect(from, m.(protocol.Connect).Username)
	})
	rt.Register(protocol.KindDisconnect, both, func(from netip.AddrPort, _ protocol.ClientMessage) {
		reg.HandleDisconnect(from)
	})
	rt.Register(protocol.KindMoveTo, playing, func(from netip.AddrPort, m protocol.ClientMessage) {
		reg.HandleMove(from, m.(protocol.MoveTo).Position)
	})
	rt.Register(protocol.KindRequestArchetype, playing, func(from netip.AddrPort, m protocol.ClientMessage) {
		reg.HandleRequestArchetype(from, m.(protocol.RequestArchetype).ID)
	})
	rt.Register(protocol.KindRequestEntityInfo, playing, func(from netip.AddrPort, m protocol.ClientMessage) {
		req := m.(protocol.RequestEntityInfo)
		reg.HandleRequestEntityInfo(from, req.ID, req.Info)
	})
	rt.Register(protocol.KindSendMessage, playing, func(from netip.AddrPort, m protocol.ClientMessage) {
		reg.HandleChat(from, m.(protocol.SendMessage).Text)
	})
	rt.Register(protocol.KindIssueChallenge, playing, func(from netip.AddrPort, m protocol.ClientMessage) {
		reg.HandleIssueChallenge(from, m.(protocol.IssueChallenge).Target)
	})
	rt.Register(protocol.KindRespondToChallenge, playing, func(from netip.AddrPort, m protocol.ClientMessage) {
		resp := m.(protocol.RespondToChallenge)
		reg.HandleRespondToChallenge(from, resp.Challenger, resp.Accepted)
	})
	return rt
}
