package client

import "github.com/linchutchinson/shackle-mmo/internal/protocol"

// Event is one entity, chat or challenge notification from the server,
// queued by PollServer for the simulation to consume.
type Event interface {
	event()
}

type SpawnEvent struct {
	ID        protocol.NetworkID
	Archetype protocol.Archetype
	Owned     bool
}

type DespawnEvent struct {
	ID protocol.NetworkID
}

type EntityInfoEvent struct {
	ID   protocol.NetworkID
	Info protocol.EntityInfo
}

type MessageEvent struct {
	Author string
	Text   string
}

type ChallengeEvent struct {
	From protocol.NetworkID
}

func (SpawnEvent) event()      {}
func (DespawnEvent) event()    {}
func (EntityInfoEvent) event() {}
func (MessageEvent) event()    {}
func (ChallengeEvent) event()  {}
