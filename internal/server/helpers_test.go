package server

import (
	"net/netip"
	"testing"

	"github.com/linchutchinson/shackle-mmo/internal/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var (
	addrA = netip.MustParseAddrPort("10.0.0.1:5000")
	addrB = netip.MustParseAddrPort("10.0.0.2:5000")
	addrC = netip.MustParseAddrPort("10.0.0.3:5000")
)

type delivery struct {
	to  netip.AddrPort
	msg protocol.ServerMessage
}

type recordingOutbox struct {
	sent []delivery
	err  error
}

func (o *recordingOutbox) Send(to netip.AddrPort, msg protocol.ServerMessage) error {
	o.sent = append(o.sent, delivery{to, msg})
	return o.err
}

// to returns what addr received, in order.
func (o *recordingOutbox) to(addr netip.AddrPort) []protocol.ServerMessage {
	var out []protocol.ServerMessage
	for _, d := range o.sent {
		if d.to == addr {
			out = append(out, d.msg)
		}
	}
	return out
}

func (o *recordingOutbox) reset() { o.sent = nil }

type fixture struct {
	reg  *Registry
	out  *recordingOutbox
	logs *observer.ObservedLogs
	log  *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)
	out := &recordingOutbox{}
	return &fixture{
		reg:  NewRegistry(Deps{Outbox: out, Log: log}),
		out:  out,
		logs: logs,
		log:  log,
	}
}

// connect logs username in from addr and clears the outbox.
func (f *fixture) connect(t *testing.T, addr netip.AddrPort, username string) protocol.NetworkID {
	t.Helper()
	f.reg.HandleConnect(addr, username)
	info, ok := f.reg.Client(addr)
	if !ok {
		t.Fatalf("%s was not accepted", username)
	}
	f.out.reset()
	return info.ID
}

func (f *fixture) warnings() int {
	return f.logs.FilterLevelExact(zap.WarnLevel).Len()
}
