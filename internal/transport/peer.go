package transport

import (
	"net/netip"
	"time"
)

type pending struct {
	data     []byte
	lastSent time.Time
	attempts int
}

// peer is the per-address state. All fields are guarded by Socket.mu.
type peer struct {
	addr     netip.AddrPort
	nextSeq  uint32
	unacked  map[uint32]*pending
	received seqWindow
	lastRecv time.Time
	lastSend time.Time
}

func newPeer(addr netip.AddrPort, now time.Time) *peer {
	return &peer{
		addr:     addr,
		nextSeq:  1,
		unacked:  make(map[uint32]*pending),
		lastRecv: now,
		lastSend: now,
	}
}
