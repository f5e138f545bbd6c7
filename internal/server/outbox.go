package server

import (
	"fmt"
	"net/netip"

	"github.com/linchutchinson/shackle-mmo/internal/protocol"
	"github.com/linchutchinson/shackle-mmo/internal/transport"
)

// Outbox delivers server messages to client addresses.
type Outbox interface {
	Send(to netip.AddrPort, msg protocol.ServerMessage) error
}

// PacketSender is the part of transport.Socket the outbox needs.
type PacketSender interface {
	Send(p transport.Packet) error
}

// TransportOutbox encodes messages and hands them to the UDP transport with
// the reliability class of their variant.
type TransportOutbox struct {
	sock PacketSender
}

func NewTransportOutbox(sock PacketSender) *TransportOutbox {
	return &TransportOutbox{sock: sock}
}

func (o *TransportOutbox) Send(to netip.AddrPort, msg protocol.ServerMessage) error {
	payload, err := protocol.EncodeServer(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	return o.sock.Send(transport.Packet{
		Addr:        to,
		Payload:     payload,
		Reliability: protocol.ServerReliability(msg),
	})
}
