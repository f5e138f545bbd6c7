package client

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/linchutchinson/shackle-mmo/internal/config"
	"github.com/linchutchinson/shackle-mmo/internal/protocol"
	"github.com/linchutchinson/shackle-mmo/internal/transport"
	"go.uber.org/zap"
)

// Connection is the client's single channel to the server.
type Connection interface {
	// Send encodes msg with the reliability class of its variant.
	Send(msg protocol.ClientMessage) error
	// Drain returns every server message received since the last call
	// without blocking. Undecodable packets are logged and skipped.
	Drain() []protocol.ServerMessage
	Close() error
}

// Dialer opens a new Connection. Client calls it once per Connect.
type Dialer func() (Connection, error)

// UDPConnection is the live Connection over the UDP transport.
type UDPConnection struct {
	sock   *transport.Socket
	server netip.AddrPort
	log    *zap.Logger
}

// OpenUDP resolves the server address and binds a local socket.
func OpenUDP(cfg config.ClientConfig, netCfg transport.Config, log *zap.Logger) (*UDPConnection, error) {
	host := cfg.ResolvedHost()
	target := net.JoinHostPort(host, strconv.Itoa(cfg.ServerPort))
	ua, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("resolve server %s: %w", target, err)
	}
	ap := ua.AddrPort()
	if !ap.IsValid() || ap.Port() == 0 {
		return nil, fmt.Errorf("resolve server %s: invalid address", target)
	}
	server := netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())

	sock, err := transport.Bind(cfg.BindAddress, netCfg, log)
	if err != nil {
		return nil, err
	}
	sock.Start()

	log.Info("opened connection", zap.Stringer("server", server), zap.Stringer("local", sock.LocalAddr()))
	return &UDPConnection{
		sock:   sock,
		server: server,
		log:    log.With(zap.Stringer("server", server)),
	}, nil
}

// UDPDialer returns a Dialer that opens UDP connections with the given
// settings.
func UDPDialer(cfg config.ClientConfig, netCfg transport.Config, log *zap.Logger) Dialer {
	return func() (Connection, error) {
		return OpenUDP(cfg, netCfg, log)
	}
}

func (c *UDPConnection) Send(msg protocol.ClientMessage) error {
	payload, err := protocol.EncodeClient(msg)
	if err != nil {
		return err
	}
	err = c.sock.Send(transport.Packet{
		Addr:        c.server,
		Payload:     payload,
		Reliability: protocol.ClientReliability(msg),
	})
	c.sock.Poll(time.Now())
	if err != nil {
		return err
	}
	c.log.Debug("sent", zap.Stringer("kind", msg.Kind()))
	return nil
}

func (c *UDPConnection) Drain() []protocol.ServerMessage {
	c.sock.Poll(time.Now())

	var out []protocol.ServerMessage
	for {
		ev, ok := c.sock.Recv()
		if !ok {
			return out
		}
		if ev.Addr != c.server {
			c.log.Warn("ignoring datagram from unexpected address", zap.Stringer("addr", ev.Addr))
			continue
		}
		switch ev.Kind {
		case transport.EventTimeout:
			c.log.Warn("server timed out")
			out = append(out, protocol.DisconnectClient{Reason: protocol.ConnectionLost})
		case transport.EventPacket:
			msg, err := protocol.DecodeServer(ev.Payload)
			if err != nil {
				c.log.Warn("received an invalid packet from the server", zap.Error(err))
				continue
			}
			c.log.Debug("received", zap.Stringer("kind", msg.Kind()))
			out = append(out, msg)
		}
	}
}

func (c *UDPConnection) Close() error {
	return c.sock.Close()
}

// LocalAddr returns the bound local address.
func (c *UDPConnection) LocalAddr() netip.AddrPort { return c.sock.LocalAddr() }
