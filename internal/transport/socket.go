// Package transport is the UDP layer under the game protocol. It offers
// reliable-unordered and unreliable delivery, heartbeats and idle timeouts,
// and hands everything it receives to the game loop through one bounded
// event channel that the network goroutines never block on.
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linchutchinson/shackle-mmo/internal/config"
	"github.com/linchutchinson/shackle-mmo/internal/protocol"
	"go.uber.org/zap"
)

var (
	ErrClosed   = errors.New("transport: socket closed")
	ErrTooLarge = errors.New("transport: payload exceeds datagram size")
)

type EventKind uint8

const (
	// EventConnect is raised for the first valid datagram from an unknown
	// address, ahead of that datagram's EventPacket.
	EventConnect EventKind = iota + 1
	EventPacket
	// EventTimeout is raised once when a peer has been silent for longer
	// than IdleTimeout. The peer is forgotten.
	EventTimeout
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventPacket:
		return "packet"
	case EventTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind    EventKind
	Addr    netip.AddrPort
	Payload []byte // EventPacket only
}

type Packet struct {
	Addr        netip.AddrPort
	Payload     []byte
	Reliability protocol.Reliability
}

type Config struct {
	EventQueueSize    int
	ResendInterval    time.Duration
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
	MaxDatagramSize   int
	Key               []byte
}

// ConfigFrom maps the [network] section onto a transport Config.
func ConfigFrom(c config.NetworkConfig) Config {
	return Config{
		EventQueueSize:    c.EventQueueSize,
		ResendInterval:    c.ResendInterval,
		HeartbeatInterval: c.HeartbeatInterval,
		IdleTimeout:       c.IdleTimeout,
		MaxDatagramSize:   c.MaxDatagramSize,
		Key:               []byte(c.ProtocolKey),
	}
}

func (c Config) normalize() Config {
	d := ConfigFrom(config.Default().Network)
	if c.EventQueueSize <= 0 {
		c.EventQueueSize = d.EventQueueSize
	}
	if c.ResendInterval <= 0 {
		c.ResendInterval = d.ResendInterval
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.MaxDatagramSize <= headerLen {
		c.MaxDatagramSize = d.MaxDatagramSize
	}
	if len(c.Key) > 64 {
		c.Key = c.Key[:64]
	}
	return c
}

// Stats are cumulative counters, safe to read from any goroutine.
type Stats struct {
	Sent      uint64
	Received  uint64
	Resent    uint64
	BadFrames uint64
	Dropped   uint64 // events refused because the queue was full; reliable ones are resent
}

// Socket is one bound UDP endpoint. The server uses a single Socket for all
// clients; a client uses one to talk to the server.
type Socket struct {
	conn *net.UDPConn
	cfg  Config
	log  *zap.Logger

	events chan Event

	mu    sync.Mutex
	peers map[netip.AddrPort]*peer
	tx    *sealer // guarded by mu

	sent, received, resent, badFrames, dropped atomic.Uint64

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Bind opens a UDP socket on addr ("host:port", port 0 for ephemeral).
func Bind(addr string, cfg Config, log *zap.Logger) (*Socket, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", ua)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	cfg = cfg.normalize()
	s := &Socket{
		conn:    conn,
		cfg:     cfg,
		log:     log.With(zap.String("local", conn.LocalAddr().String())),
		events:  make(chan Event, cfg.EventQueueSize),
		peers:   make(map[netip.AddrPort]*peer),
		tx:      newSealer(cfg.Key),
		closeCh: make(chan struct{}),
	}
	return s, nil
}

// Start launches the receive loop and the maintenance loop.
func (s *Socket) Start() {
	s.wg.Add(2)
	go s.readLoop()
	go s.maintainLoop()
}

// LocalAddr returns the bound address.
func (s *Socket) LocalAddr() netip.AddrPort {
	return normalizeAddr(s.conn.LocalAddr().(*net.UDPAddr).AddrPort())
}

// Events exposes the inbound queue for select-based consumers.
func (s *Socket) Events() <-chan Event { return s.events }

// Recv pops one event without blocking.
func (s *Socket) Recv() (Event, bool) {
	select {
	case ev := <-s.events:
		return ev, true
	default:
		return Event{}, false
	}
}

// Send queues payload for p.Addr. Reliable payloads are retransmitted every
// ResendInterval until acknowledged or the peer times out.
func (s *Socket) Send(p Packet) error {
	if s.isClosed() {
		return ErrClosed
	}
	if headerLen+len(p.Payload) > s.cfg.MaxDatagramSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(p.Payload))
	}
	addr := normalizeAddr(p.Addr)
	now := time.Now()

	s.mu.Lock()
	pr := s.peerLocked(addr, now)
	var data []byte
	if p.Reliability == protocol.Unreliable {
		data = s.tx.encode(frame{kind: frameUnreliable, payload: p.Payload})
	} else {
		seq := pr.nextSeq
		pr.nextSeq++
		data = s.tx.encode(frame{kind: frameReliable, seq: seq, payload: p.Payload})
		pr.unacked[seq] = &pending{data: data, lastSent: now, attempts: 1}
	}
	pr.lastSend = now
	s.mu.Unlock()

	return s.write(data, addr)
}

// Poll runs one non-blocking maintenance pass: retransmits overdue reliable
// frames, heartbeats quiet peers and times out silent ones.
func (s *Socket) Poll(now time.Time) {
	if s.isClosed() {
		return
	}
	type out struct {
		data []byte
		addr netip.AddrPort
	}
	var writes []out
	var timedOut []netip.AddrPort

	s.mu.Lock()
	for addr, pr := range s.peers {
		if now.Sub(pr.lastRecv) >= s.cfg.IdleTimeout {
			delete(s.peers, addr)
			timedOut = append(timedOut, addr)
			continue
		}
		for _, pd := range pr.unacked {
			if now.Sub(pd.lastSent) >= s.cfg.ResendInterval {
				pd.lastSent = now
				pd.attempts++
				pr.lastSend = now
				writes = append(writes, out{pd.data, addr})
				s.resent.Add(1)
			}
		}
		if now.Sub(pr.lastSend) >= s.cfg.HeartbeatInterval {
			pr.lastSend = now
			writes = append(writes, out{s.tx.encode(frame{kind: frameHeartbeat}), addr})
		}
	}
	s.mu.Unlock()

	for _, w := range writes {
		if err := s.write(w.data, w.addr); err != nil {
			s.log.Debug("maintenance write failed", zap.Stringer("addr", w.addr), zap.Error(err))
		}
	}
	for _, addr := range timedOut {
		s.log.Info("peer timed out", zap.Stringer("addr", addr))
		s.push(Event{Kind: EventTimeout, Addr: addr})
	}
}

// Forget drops all state for addr, including unacknowledged frames. No
// timeout event is raised for it afterwards.
func (s *Socket) Forget(addr netip.AddrPort) {
	s.mu.Lock()
	delete(s.peers, normalizeAddr(addr))
	s.mu.Unlock()
}

// Peers returns the number of tracked remote addresses.
func (s *Socket) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Socket) Stats() Stats {
	return Stats{
		Sent:      s.sent.Load(),
		Received:  s.received.Load(),
		Resent:    s.resent.Load(),
		BadFrames: s.badFrames.Load(),
		Dropped:   s.dropped.Load(),
	}
}

// Close stops both loops and releases the socket. Queued events stay
// readable.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.conn.Close()
		s.wg.Wait()
	})
	return err
}

func (s *Socket) isClosed() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}

// peerLocked returns the state for addr, creating it if needed. Caller holds mu.
func (s *Socket) peerLocked(addr netip.AddrPort, now time.Time) *peer {
	pr, ok := s.peers[addr]
	if !ok {
		pr = newPeer(addr, now)
		s.peers[addr] = pr
	}
	return pr
}

func (s *Socket) write(data []byte, addr netip.AddrPort) error {
	if _, err := s.conn.WriteToUDPAddrPort(data, addr); err != nil {
		return fmt.Errorf("write to %s: %w", addr, err)
	}
	s.sent.Add(1)
	return nil
}

// push hands ev to the game loop without ever blocking the caller and
// reports whether it was queued.
func (s *Socket) push(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	default:
		s.dropped.Add(1)
		s.log.Warn("event queue full, dropping event",
			zap.Stringer("kind", ev.Kind), zap.Stringer("addr", ev.Addr))
		return false
	}
}

func (s *Socket) readLoop() {
	defer s.wg.Done()
	rx := newSealer(s.cfg.Key)
	buf := make([]byte, s.cfg.MaxDatagramSize)
	for {
		n, from, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			// ICMP port-unreachable surfaces here on some platforms.
			s.log.Debug("read failed", zap.Error(err))
			continue
		}
		from = normalizeAddr(from)
		f, err := rx.decode(buf[:n])
		if err != nil {
			s.badFrames.Add(1)
			s.log.Warn("dropping malformed datagram", zap.Stringer("addr", from), zap.Error(err))
			continue
		}
		s.received.Add(1)
		s.handleFrame(rx, from, f)
	}
}

func (s *Socket) handleFrame(rx *sealer, from netip.AddrPort, f frame) {
	now := time.Now()

	s.mu.Lock()
	pr, known := s.peers[from]
	if !known {
		if f.kind == frameAck {
			s.mu.Unlock()
			return
		}
		pr = newPeer(from, now)
		s.peers[from] = pr
	}
	pr.lastRecv = now

	deliver := false
	switch f.kind {
	case frameUnreliable:
		deliver = true
	case frameReliable:
		deliver = pr.received.mark(f.seq)
	case frameAck:
		delete(pr.unacked, f.seq)
	}
	s.mu.Unlock()

	if !known {
		s.push(Event{Kind: EventConnect, Addr: from})
	}
	if deliver && !s.push(Event{Kind: EventPacket, Addr: from, Payload: f.payload}) && f.kind == frameReliable {
		// Not acked, so the sender's resend delivers it once the queue drains.
		s.mu.Lock()
		if cur, ok := s.peers[from]; ok && cur == pr {
			pr.received.unset(f.seq)
		}
		s.mu.Unlock()
		return
	}
	if f.kind == frameReliable {
		ack := rx.encode(frame{kind: frameAck, seq: f.seq})
		if err := s.write(ack, from); err != nil {
			s.log.Debug("ack write failed", zap.Stringer("addr", from), zap.Error(err))
		}
	}
}

func (s *Socket) maintainLoop() {
	defer s.wg.Done()
	interval := min(s.cfg.ResendInterval, s.cfg.HeartbeatInterval) / 2
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closeCh:
			return
		case now := <-ticker.C:
			s.Poll(now)
		}
	}
}

// normalizeAddr strips the IPv4-in-IPv6 mapping dual-stack sockets report so
// the same client always maps to the same key.
func normalizeAddr(a netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(a.Addr().Unmap(), a.Port())
}
