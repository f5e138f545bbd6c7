package ecs

import "fmt"

// Entity is a generational handle. The low 32 bits hold the slot index and
// the high 32 bits its generation; despawning a slot bumps the generation so
// every handle still pointing at it stops resolving. Slot 0 is never handed
// out, so the zero Entity is always invalid.
type Entity uint64

func makeEntity(index, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(index))
}

func (e Entity) Index() uint32      { return uint32(e) }
func (e Entity) Generation() uint32 { return uint32(e >> 32) }
func (e Entity) IsZero() bool       { return e == 0 }

func (e Entity) String() string {
	return fmt.Sprintf("e%dv%d", e.Index(), e.Generation())
}

// pool hands out entity slots and recycles them through a free list.
type pool struct {
	generations []uint32 // indexed by slot; generations[0] is unused
	free        []uint32
}

func newPool() *pool {
	return &pool{
		generations: make([]uint32, 1, 64),
	}
}

func (p *pool) create() Entity {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		return makeEntity(idx, p.generations[idx])
	}
	idx := uint32(len(p.generations))
	p.generations = append(p.generations, 0)
	return makeEntity(idx, 0)
}

func (p *pool) alive(e Entity) bool {
	idx := e.Index()
	if idx == 0 || int(idx) >= len(p.generations) {
		return false
	}
	return p.generations[idx] == e.Generation()
}

// destroy reports whether e was live.
func (p *pool) destroy(e Entity) bool {
	if !p.alive(e) {
		return false
	}
	idx := e.Index()
	p.generations[idx]++
	p.free = append(p.free, idx)
	return true
}
