package event

import (
	"net/netip"

	"github.com/linchutchinson/shackle-mmo/internal/protocol"
)

type PlayerJoined struct {
	ID   protocol.NetworkID
	Name string
	Addr netip.AddrPort
}

type PlayerLeft struct {
	ID   protocol.NetworkID
	Name string
	Addr netip.AddrPort
}

type ChatPosted struct {
	ID     protocol.NetworkID
	Author string
	Text   string
}
