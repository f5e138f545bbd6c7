// Package server is the authoritative side of a Shackle session: who is
// connected from which address, which network ids map to which entities,
// and what every client is told when that changes.
package server

import (
	"net/netip"

	"github.com/linchutchinson/shackle-mmo/internal/core/ecs"
	"github.com/linchutchinson/shackle-mmo/internal/core/event"
	"github.com/linchutchinson/shackle-mmo/internal/protocol"
	"github.com/linchutchinson/shackle-mmo/internal/validation"
	"go.uber.org/zap"
)

// ClientInfo is one authenticated address.
type ClientInfo struct {
	Username string
	ID       protocol.NetworkID
}

// EntityRecord maps a network id onto the registry's world.
type EntityRecord struct {
	Entity    ecs.Entity
	Archetype protocol.Archetype
}

// PlayerName is the display name attached to player entities.
type PlayerName struct {
	Value string
}

// UsernameValidator decides whether a requested name may join.
type UsernameValidator interface {
	Validate(name string) error
}

type infoRequest struct {
	to   netip.AddrPort
	id   protocol.NetworkID
	kind protocol.InfoKind
}

// Deps are the registry's collaborators. Only Outbox is required.
type Deps struct {
	Outbox    Outbox
	Validator UsernameValidator
	Announcer Announcer
	Bus       *event.Bus
	Metrics   *Metrics
	Log       *zap.Logger
}

// Registry is owned by the server tick goroutine and is not safe for
// concurrent use.
type Registry struct {
	clients  map[netip.AddrPort]*ClientInfo
	entities map[protocol.NetworkID]EntityRecord
	lastID   protocol.NetworkID

	world     *ecs.World
	names     *ecs.Components[PlayerName]
	positions *ecs.Components[protocol.Vec2]

	pending []infoRequest

	out       Outbox
	validator UsernameValidator
	announcer Announcer
	bus       *event.Bus
	metrics   *Metrics
	log       *zap.Logger
}

func NewRegistry(d Deps) *Registry {
	if d.Validator == nil {
		d.Validator = validation.Default()
	}
	if d.Announcer == nil {
		d.Announcer = DefaultAnnouncer()
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics()
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	w := ecs.NewWorld()
	return &Registry{
		clients:   make(map[netip.AddrPort]*ClientInfo),
		entities:  make(map[protocol.NetworkID]EntityRecord),
		world:     w,
		names:     ecs.NewComponents[PlayerName](w),
		positions: ecs.NewComponents[protocol.Vec2](w),
		out:       d.Outbox,
		validator: d.Validator,
		announcer: d.Announcer,
		bus:       d.Bus,
		metrics:   d.Metrics,
		log:       d.Log,
	}
}

// HandleConnect authenticates from as username. A rejected name gets
// DisconnectClient(InvalidUsername) and changes nothing.
func (r *Registry) HandleConnect(from netip.AddrPort, username string) {
	log := r.log.With(zap.Stringer("addr", from), zap.String("username", username))
	log.Info("connect attempt")

	if existing, ok := r.clients[from]; ok {
		log.Warn("ignoring connect from an address that is already connected",
			zap.String("current", existing.Username))
		return
	}
	if err := r.validator.Validate(username); err != nil {
		log.Info("rejecting invalid username", zap.Error(err))
		r.metrics.Rejects.Add(1)
		r.send(from, protocol.DisconnectClient{Reason: protocol.InvalidUsername})
		return
	}

	r.lastID++
	id := r.lastID
	e := r.world.Spawn()
	r.names.Set(e, PlayerName{Value: username})
	r.positions.Set(e, protocol.PlayArea.Center())
	r.entities[id] = EntityRecord{Entity: e, Archetype: protocol.ArchetypePlayer}
	r.clients[from] = &ClientInfo{Username: username, ID: id}

	log.Info("connection accepted", zap.Uint64("network_id", uint64(id)))
	r.metrics.Connects.Add(1)
	r.metrics.Players.Store(int64(len(r.clients)))

	r.send(from, protocol.ConnectionAccepted{})
	for addr := range r.clients {
		r.send(addr, protocol.SpawnEntity{ID: id, Archetype: protocol.ArchetypePlayer, Owned: addr == from})
	}
	// Existing players, so the newcomer's view starts complete.
	for addr, info := range r.clients {
		if addr == from {
			continue
		}
		rec := r.entities[info.ID]
		r.send(from, protocol.SpawnEntity{ID: info.ID, Archetype: rec.Archetype})
		if pos, ok := r.positions.Get(rec.Entity); ok {
			r.send(from, protocol.SendEntityInfo{ID: info.ID, Info: protocol.PositionInfo(*pos)})
		}
	}
	r.broadcast(protocol.ChatMessage{Author: protocol.SystemAuthor, Text: r.announcer.JoinMessage(username)})

	if r.bus != nil {
		event.Emit(r.bus, event.PlayerJoined{ID: id, Name: username, Addr: from})
	}
}

// HandleDisconnect forgets from, whether it left or timed out. Unknown
// addresses are ignored, so calling it twice is harmless.
func (r *Registry) HandleDisconnect(from netip.AddrPort) {
	info, ok := r.clients[from]
	if !ok {
		return
	}
	delete(r.clients, from)
	if rec, ok := r.entities[info.ID]; ok {
		r.world.Despawn(rec.Entity)
		delete(r.entities, info.ID)
	}

	r.log.Info("player disconnected",
		zap.Stringer("addr", from),
		zap.String("username", info.Username),
		zap.Uint64("network_id", uint64(info.ID)))
	r.metrics.Disconnects.Add(1)
	r.metrics.Players.Store(int64(len(r.clients)))

	r.broadcast(protocol.ChatMessage{Author: protocol.SystemAuthor, Text: r.announcer.LeaveMessage(info.Username)})
	r.broadcast(protocol.DespawnEntity{ID: info.ID})

	if r.bus != nil {
		event.Emit(r.bus, event.PlayerLeft{ID: info.ID, Name: info.Username, Addr: from})
	}
}

// HandleMove clamps pos into the play area and relays it. The mover only
// hears back when clamping changed the position.
func (r *Registry) HandleMove(from netip.AddrPort, pos protocol.Vec2) {
	info, ok := r.authenticated(from, protocol.KindMoveTo)
	if !ok {
		return
	}
	clamped := protocol.PlayArea.Clamp(pos)
	if rec, ok := r.entities[info.ID]; ok {
		if p, ok := r.positions.Get(rec.Entity); ok {
			*p = clamped
		}
	}

	msg := protocol.SendEntityInfo{ID: info.ID, Info: protocol.PositionInfo(clamped)}
	for addr := range r.clients {
		if addr != from {
			r.send(addr, msg)
		}
	}
	if !clamped.Equal(pos) {
		r.log.Debug("clamped move",
			zap.Uint64("network_id", uint64(info.ID)),
			zap.Stringer("requested", pos),
			zap.Stringer("clamped", clamped))
		r.send(from, msg)
	}
}

// HandleRequestArchetype answers with a spawn for a known id. Unknown ids
// are expected when the requester lags behind a despawn.
func (r *Registry) HandleRequestArchetype(from netip.AddrPort, id protocol.NetworkID) {
	info, ok := r.authenticated(from, protocol.KindRequestArchetype)
	if !ok {
		return
	}
	rec, ok := r.entities[id]
	if !ok {
		r.log.Info("archetype requested for unknown entity",
			zap.Stringer("addr", from), zap.Uint64("network_id", uint64(id)))
		return
	}
	r.send(from, protocol.SpawnEntity{ID: id, Archetype: rec.Archetype, Owned: id == info.ID})
}

// HandleRequestEntityInfo queues the request; ResolveInfoRequests answers
// it on a later phase of the tick.
func (r *Registry) HandleRequestEntityInfo(from netip.AddrPort, id protocol.NetworkID, kind protocol.InfoKind) {
	if _, ok := r.authenticated(from, protocol.KindRequestEntityInfo); !ok {
		return
	}
	if _, ok := r.entities[id]; !ok {
		r.log.Info("info requested for unknown entity",
			zap.Stringer("addr", from), zap.Uint64("network_id", uint64(id)))
		return
	}
	r.pending = append(r.pending, infoRequest{to: from, id: id, kind: kind})
}

// ResolveInfoRequests answers every queued info request whose target still
// exists and carries the requested data. Every request is consumed.
func (r *Registry) ResolveInfoRequests() int {
	sent := 0
	for _, req := range r.pending {
		if _, ok := r.clients[req.to]; !ok {
			continue
		}
		rec, ok := r.entities[req.id]
		if !ok || !r.world.Alive(rec.Entity) {
			continue
		}
		var info protocol.EntityInfo
		switch req.kind {
		case protocol.InfoIdentity:
			name, ok := r.names.Get(rec.Entity)
			if !ok {
				continue
			}
			info = protocol.IdentityInfo(name.Value)
		case protocol.InfoPosition:
			pos, ok := r.positions.Get(rec.Entity)
			if !ok {
				continue
			}
			info = protocol.PositionInfo(*pos)
		default:
			continue
		}
		r.send(req.to, protocol.SendEntityInfo{ID: req.id, Info: info})
		sent++
	}
	clear(r.pending)
	r.pending = r.pending[:0]
	return sent
}

// HandleChat relays text from an authenticated player to everyone,
// including the sender.
func (r *Registry) HandleChat(from netip.AddrPort, text string) {
	info, ok := r.authenticated(from, protocol.KindSendMessage)
	if !ok {
		return
	}
	r.log.Info("chat", zap.String("author", info.Username), zap.String("text", text))
	r.broadcast(protocol.ChatMessage{Author: info.Username, Text: text})
	if r.bus != nil {
		event.Emit(r.bus, event.ChatPosted{ID: info.ID, Author: info.Username, Text: text})
	}
}

// HandleIssueChallenge passes a duel challenge on to the target player.
func (r *Registry) HandleIssueChallenge(from netip.AddrPort, target protocol.NetworkID) {
	info, ok := r.authenticated(from, protocol.KindIssueChallenge)
	if !ok {
		return
	}
	if target == info.ID {
		r.log.Info("ignoring self challenge", zap.Uint64("network_id", uint64(target)))
		return
	}
	to, ok := r.addrOf(target)
	if !ok {
		r.log.Info("challenge for unknown player",
			zap.Stringer("addr", from), zap.Uint64("target", uint64(target)))
		return
	}
	r.log.Info("challenge issued",
		zap.Uint64("challenger", uint64(info.ID)), zap.Uint64("target", uint64(target)))
	r.send(to, protocol.PassAlongChallenge{From: info.ID})
}

// HandleRespondToChallenge records a duel response. Resolving duels is not
// implemented; the response is only logged.
func (r *Registry) HandleRespondToChallenge(from netip.AddrPort, challenger protocol.NetworkID, accepted bool) {
	info, ok := r.authenticated(from, protocol.KindRespondToChallenge)
	if !ok {
		return
	}
	r.log.Info("challenge response",
		zap.Uint64("responder", uint64(info.ID)),
		zap.Uint64("challenger", uint64(challenger)),
		zap.Bool("accepted", accepted))
}

// Client returns the session bound to addr.
func (r *Registry) Client(addr netip.AddrPort) (ClientInfo, bool) {
	info, ok := r.clients[addr]
	if !ok {
		return ClientInfo{}, false
	}
	return *info, true
}

func (r *Registry) Connected(addr netip.AddrPort) bool {
	_, ok := r.clients[addr]
	return ok
}

// Entity returns the record for id.
func (r *Registry) Entity(id protocol.NetworkID) (EntityRecord, bool) {
	rec, ok := r.entities[id]
	return rec, ok
}

// EntityAlive reports whether id maps to a live entity in the registry's world.
func (r *Registry) EntityAlive(id protocol.NetworkID) bool {
	rec, ok := r.entities[id]
	return ok && r.world.Alive(rec.Entity)
}

func (r *Registry) ClientCount() int         { return len(r.clients) }
func (r *Registry) EntityCount() int         { return len(r.entities) }
func (r *Registry) PendingInfoRequests() int { return len(r.pending) }

func (r *Registry) authenticated(from netip.AddrPort, kind protocol.ClientKind) (*ClientInfo, bool) {
	info, ok := r.clients[from]
	if !ok {
		r.metrics.Unauthenticated.Add(1)
		r.log.Warn("message from an address that has not connected",
			zap.Stringer("addr", from), zap.Stringer("kind", kind))
	}
	return info, ok
}

func (r *Registry) addrOf(id protocol.NetworkID) (netip.AddrPort, bool) {
	for addr, info := range r.clients {
		if info.ID == id {
			return addr, true
		}
	}
	return netip.AddrPort{}, false
}

func (r *Registry) send(to netip.AddrPort, msg protocol.ServerMessage) {
	if err := r.out.Send(to, msg); err != nil {
		r.log.Warn("send failed", zap.Stringer("addr", to), zap.Stringer("kind", msg.Kind()), zap.Error(err))
	}
}

// broadcast sends msg to every connected address in map order.
func (r *Registry) broadcast(msg protocol.ServerMessage) {
	for addr := range r.clients {
		r.send(addr, msg)
	}
}
