// Package ecs is the small entity store shared by the server registry and
// the client simulation: generational handles plus typed component maps.
package ecs

// World owns entity allocation and the set of component stores. Despawn is
// immediate, so a handle is invalid the moment Despawn returns.
type World struct {
	pool   *pool
	stores []Store
	live   int
}

func NewWorld() *World {
	return &World{pool: newPool()}
}

func (w *World) register(s Store) {
	w.stores = append(w.stores, s)
}

func (w *World) Spawn() Entity {
	w.live++
	return w.pool.create()
}

func (w *World) Alive(e Entity) bool {
	return w.pool.alive(e)
}

// Despawn removes e and all its components. It reports false for a stale or
// already despawned handle.
func (w *World) Despawn(e Entity) bool {
	if !w.pool.destroy(e) {
		return false
	}
	for _, s := range w.stores {
		s.Remove(e)
	}
	w.live--
	return true
}

// Len returns the number of live entities.
func (w *World) Len() int { return w.live }
