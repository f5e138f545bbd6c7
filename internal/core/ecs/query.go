package ecs

// Join2 visits entities present in both stores, walking the smaller one.
func Join2[A, B any](sa *Components[A], sb *Components[B], fn func(Entity, *A, *B)) {
	if sa.Len() <= sb.Len() {
		for e, a := range sa.data {
			if b, ok := sb.data[e]; ok {
				fn(e, a, b)
			}
		}
		return
	}
	for e, b := range sb.data {
		if a, ok := sa.data[e]; ok {
			fn(e, a, b)
		}
	}
}

// First returns any entity in s, for single-instance markers such as the
// locally controlled player.
func First[T any](s *Components[T]) (Entity, *T, bool) {
	for e, c := range s.data {
		return e, c, true
	}
	return 0, nil, false
}
