package server

import (
	"net/netip"
	"time"

	"github.com/linchutchinson/shackle-mmo/internal/config"
	"github.com/linchutchinson/shackle-mmo/internal/core/event"
	"github.com/linchutchinson/shackle-mmo/internal/core/system"
	"github.com/linchutchinson/shackle-mmo/internal/protocol"
	"github.com/linchutchinson/shackle-mmo/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// EventSource is the part of transport.Socket the input system consumes.
type EventSource interface {
	Recv() (transport.Event, bool)
	Forget(addr netip.AddrPort)
}

// InputSystem drains transport events into the registry at the start of
// each tick.
type InputSystem struct {
	src        EventSource
	router     *Router
	reg        *Registry
	maxPerTick int

	limit    config.RateLimitConfig
	limiters map[netip.AddrPort]*rate.Limiter

	metrics *Metrics
	log     *zap.Logger
}

func NewInputSystem(src EventSource, router *Router, reg *Registry, maxPerTick int,
	limit config.RateLimitConfig, metrics *Metrics, log *zap.Logger) *InputSystem {
	if maxPerTick <= 0 {
		maxPerTick = config.Default().Network.MaxEventsPerTick
	}
	return &InputSystem{
		src:        src,
		router:     router,
		reg:        reg,
		maxPerTick: maxPerTick,
		limit:      limit,
		limiters:   make(map[netip.AddrPort]*rate.Limiter),
		metrics:    metrics,
		log:        log,
	}
}

func (s *InputSystem) Phase() system.Phase { return system.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	for i := 0; i < s.maxPerTick; i++ {
		ev, ok := s.src.Recv()
		if !ok {
			return
		}
		s.handle(ev)
	}
}

func (s *InputSystem) handle(ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnect:
		s.log.Debug("new peer", zap.Stringer("addr", ev.Addr))
	case transport.EventTimeout:
		s.metrics.Timeouts.Add(1)
		delete(s.limiters, ev.Addr)
		s.reg.HandleDisconnect(ev.Addr)
	case transport.EventPacket:
		msg, err := protocol.DecodeClient(ev.Payload)
		if err != nil {
			s.metrics.DecodeFailures.Add(1)
			s.log.Warn("received an invalid message, possibly malicious",
				zap.Stringer("addr", ev.Addr), zap.Error(err))
			return
		}
		// Reliable messages are already acked; only best-effort ones are shed.
		if protocol.ClientReliability(msg) == protocol.Unreliable && !s.allow(ev.Addr) {
			s.metrics.RateLimited.Add(1)
			s.log.Debug("rate limited", zap.Stringer("addr", ev.Addr), zap.Stringer("kind", msg.Kind()))
			return
		}
		_ = s.router.Dispatch(ev.Addr, msg)
		if _, bye := msg.(protocol.Disconnect); bye {
			delete(s.limiters, ev.Addr)
			s.src.Forget(ev.Addr)
		}
	}
}

func (s *InputSystem) allow(addr netip.AddrPort) bool {
	if !s.limit.Enabled {
		return true
	}
	l, ok := s.limiters[addr]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.limit.PacketsPerSecond), s.limit.Burst)
		s.limiters[addr] = l
	}
	return l.Allow()
}

// EventDispatchSystem delivers the previous tick's bus events.
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() system.Phase { return system.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.bus.Swap()
	s.bus.Dispatch()
}

// InfoRequestSystem answers the entity info requests queued during input.
type InfoRequestSystem struct {
	reg *Registry
}

func NewInfoRequestSystem(reg *Registry) *InfoRequestSystem {
	return &InfoRequestSystem{reg: reg}
}

func (s *InfoRequestSystem) Phase() system.Phase { return system.PhaseUpdate }

func (s *InfoRequestSystem) Update(_ time.Duration) {
	s.reg.ResolveInfoRequests()
}

// Poller is the transport maintenance hook.
type Poller interface {
	Poll(now time.Time)
}

// PollSystem runs transport maintenance once per tick.
type PollSystem struct {
	p Poller
}

func NewPollSystem(p Poller) *PollSystem { return &PollSystem{p: p} }

func (s *PollSystem) Phase() system.Phase { return system.PhaseOutput }

func (s *PollSystem) Update(_ time.Duration) {
	s.p.Poll(time.Now())
}
