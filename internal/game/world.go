// Package game is the client-side simulation: the local mirror of
// networked entities and the tick steps that feed it from the server and
// from the player's input.
package game

import (
	"sort"

	"github.com/linchutchinson/shackle-mmo/internal/core/ecs"
	"github.com/linchutchinson/shackle-mmo/internal/protocol"
)

// Glyph is how an entity is drawn.
type Glyph struct {
	Rune  rune
	Local bool
}

// HoverName is shown near an entity when the player's avatar is within
// Radius.
type HoverName struct {
	Name   string
	Radius float32
}

// NeedsName marks a remote entity whose name has not arrived yet.
type NeedsName struct {
	Requested bool
}

// Controlled marks the entity driven by local input.
type Controlled struct{}

const (
	playerGlyph     = '@'
	hoverNameRadius = 120
)

// World is the client's entity store.
type World struct {
	ecs *ecs.World

	IDs        *ecs.Components[protocol.NetworkID]
	Positions  *ecs.Components[protocol.Vec2]
	Glyphs     *ecs.Components[Glyph]
	Names      *ecs.Components[HoverName]
	NeedsName  *ecs.Components[NeedsName]
	Controlled *ecs.Components[Controlled]
}

func NewWorld() *World {
	w := ecs.NewWorld()
	return &World{
		ecs:        w,
		IDs:        ecs.NewComponents[protocol.NetworkID](w),
		Positions:  ecs.NewComponents[protocol.Vec2](w),
		Glyphs:     ecs.NewComponents[Glyph](w),
		Names:      ecs.NewComponents[HoverName](w),
		NeedsName:  ecs.NewComponents[NeedsName](w),
		Controlled: ecs.NewComponents[Controlled](w),
	}
}

func (w *World) Len() int                  { return w.ecs.Len() }
func (w *World) Alive(e ecs.Entity) bool   { return w.ecs.Alive(e) }
func (w *World) despawn(e ecs.Entity) bool { return w.ecs.Despawn(e) }

func (w *World) spawnLocalPlayer(id protocol.NetworkID) ecs.Entity {
	e := w.ecs.Spawn()
	w.IDs.Set(e, id)
	w.Positions.Set(e, protocol.PlayArea.Center())
	w.Glyphs.Set(e, Glyph{Rune: playerGlyph, Local: true})
	w.Names.Set(e, HoverName{Name: "Me", Radius: hoverNameRadius})
	w.Controlled.Set(e, Controlled{})
	return e
}

func (w *World) spawnRemotePlayer(id protocol.NetworkID) ecs.Entity {
	e := w.ecs.Spawn()
	w.IDs.Set(e, id)
	w.Positions.Set(e, protocol.PlayArea.Center())
	w.Glyphs.Set(e, Glyph{Rune: playerGlyph})
	w.NeedsName.Set(e, NeedsName{})
	return e
}

// Player returns the locally controlled entity, if one has been spawned.
func (w *World) Player() (ecs.Entity, protocol.Vec2, bool) {
	e, _, ok := ecs.First(w.Controlled)
	if !ok {
		return 0, protocol.Vec2{}, false
	}
	pos, ok := w.Positions.Get(e)
	if !ok {
		return e, protocol.Vec2{}, true
	}
	return e, *pos, true
}

// NetworkedEntities maps server identities to local entities. Each identity
// maps to at most one live entity.
type NetworkedEntities struct {
	byID map[protocol.NetworkID]ecs.Entity
}

func NewNetworkedEntities() *NetworkedEntities {
	return &NetworkedEntities{byID: make(map[protocol.NetworkID]ecs.Entity)}
}

func (n *NetworkedEntities) Get(id protocol.NetworkID) (ecs.Entity, bool) {
	e, ok := n.byID[id]
	return e, ok
}

func (n *NetworkedEntities) Len() int { return len(n.byID) }

// IDs returns the known identities in ascending order.
func (n *NetworkedEntities) IDs() []protocol.NetworkID {
	out := make([]protocol.NetworkID, 0, len(n.byID))
	for id := range n.byID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (n *NetworkedEntities) set(id protocol.NetworkID, e ecs.Entity) { n.byID[id] = e }

func (n *NetworkedEntities) remove(id protocol.NetworkID) (ecs.Entity, bool) {
	e, ok := n.byID[id]
	delete(n.byID, id)
	return e, ok
}
