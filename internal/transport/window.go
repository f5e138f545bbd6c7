package transport

const windowSize = 1024

// seqWindow remembers which reliable sequence numbers were already delivered
// so resent frames are acked again but not handed up twice. Anything older
// than windowSize behind the newest seen sequence counts as delivered.
type seqWindow struct {
	started bool
	newest  uint32
	bits    [windowSize / 64]uint64
}

// mark records seq and reports whether it is new.
func (w *seqWindow) mark(seq uint32) bool {
	if !w.started {
		w.started = true
		w.newest = seq
		w.set(seq)
		return true
	}
	if d := int32(seq - w.newest); d > 0 {
		if d >= windowSize {
			w.bits = [windowSize / 64]uint64{}
		} else {
			for s := w.newest + 1; s != seq; s++ {
				w.unset(s)
			}
		}
		w.newest = seq
		w.set(seq)
		return true
	} else if -d >= windowSize {
		return false
	}
	if w.has(seq) {
		return false
	}
	w.set(seq)
	return true
}

func (w *seqWindow) set(seq uint32)   { w.bits[(seq%windowSize)/64] |= 1 << (seq % 64) }
func (w *seqWindow) unset(seq uint32) { w.bits[(seq%windowSize)/64] &^= 1 << (seq % 64) }
func (w *seqWindow) has(seq uint32) bool {
	return w.bits[(seq%windowSize)/64]&(1<<(seq%64)) != 0
}
