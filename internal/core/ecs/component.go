package ecs

// Store is implemented by every component store so the World can strip a
// despawned entity from all of them.
type Store interface {
	Remove(e Entity)
}

// Components is a typed map store. Values are held by pointer so systems
// can mutate them in place.
type Components[T any] struct {
	data map[Entity]*T
}

// NewComponents creates a store and registers it with w.
func NewComponents[T any](w *World) *Components[T] {
	s := &Components[T]{data: make(map[Entity]*T)}
	w.register(s)
	return s
}

func (s *Components[T]) Set(e Entity, c T) *T {
	p := &c
	s.data[e] = p
	return p
}

func (s *Components[T]) Get(e Entity) (*T, bool) {
	c, ok := s.data[e]
	return c, ok
}

func (s *Components[T]) Has(e Entity) bool {
	_, ok := s.data[e]
	return ok
}

func (s *Components[T]) Remove(e Entity) {
	delete(s.data, e)
}

func (s *Components[T]) Len() int { return len(s.data) }

// Each visits every entry in unspecified order. fn must not add to or remove
// from s.
func (s *Components[T]) Each(fn func(Entity, *T)) {
	for e, c := range s.data {
		fn(e, c)
	}
}
