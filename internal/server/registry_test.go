package server

import (
	"errors"
	"reflect"
	"testing"

	"github.com/linchutchinson/shackle-mmo/internal/core/event"
	"github.com/linchutchinson/shackle-mmo/internal/protocol"
)

func TestConnectAcceptsAndSpawns(t *testing.T) {
	f := newFixture(t)
	f.reg.HandleConnect(addrA, "Alaric")

	want := []protocol.ServerMessage{
		protocol.ConnectionAccepted{},
		protocol.SpawnEntity{ID: 1, Archetype: protocol.ArchetypePlayer, Owned: true},
		protocol.ChatMessage{Author: protocol.SystemAuthor, Text: "Alaric has connected"},
	}
	if got := f.out.to(addrA); !reflect.DeepEqual(got, want) {
		t.Fatalf("Alaric got %v\nwant %v", got, want)
	}
	f.out.reset()

	f.reg.HandleConnect(addrB, "Yslith")
	wantB := []protocol.ServerMessage{
		protocol.ConnectionAccepted{},
		protocol.SpawnEntity{ID: 2, Archetype: protocol.ArchetypePlayer, Owned: true},
		protocol.SpawnEntity{ID: 1, Archetype: protocol.ArchetypePlayer, Owned: false},
		protocol.SendEntityInfo{ID: 1, Info: protocol.PositionInfo(protocol.PlayArea.Center())},
		protocol.ChatMessage{Author: protocol.SystemAuthor, Text: "Yslith has connected"},
	}
	if got := f.out.to(addrB); !reflect.DeepEqual(got, wantB) {
		t.Fatalf("Yslith got %v\nwant %v", got, wantB)
	}
	wantA := []protocol.ServerMessage{
		protocol.SpawnEntity{ID: 2, Archetype: protocol.ArchetypePlayer, Owned: false},
		protocol.ChatMessage{Author: protocol.SystemAuthor, Text: "Yslith has connected"},
	}
	if got := f.out.to(addrA); !reflect.DeepEqual(got, wantA) {
		t.Fatalf("Alaric got %v\nwant %v", got, wantA)
	}
}

func TestEveryAcceptedNameGetsOneAcceptAndOneOwnedSpawn(t *testing.T) {
	for _, name := range []string{"Alaric", "Yslith", "Tyrlia", "Captain Jaeger", "ÆØÅ"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.connect(t, addrB, "Bystander")
			f.connect(t, addrC, "Onlooker")

			f.reg.HandleConnect(addrA, name)
			info, ok := f.reg.Client(addrA)
			if !ok {
				t.Fatalf("%q rejected", name)
			}

			accepts, owned := 0, 0
			for _, m := range f.out.to(addrA) {
				switch m := m.(type) {
				case protocol.ConnectionAccepted:
					accepts++
				case protocol.SpawnEntity:
					if m.Owned {
						owned++
						if m.ID != info.ID {
							t.Fatalf("owned spawn for %s, want %s", m.ID, info.ID)
						}
					}
				}
			}
			if accepts != 1 || owned != 1 {
				t.Fatalf("accepts=%d owned=%d", accepts, owned)
			}

			for _, other := range []struct {
				name string
				msgs []protocol.ServerMessage
			}{{"Bystander", f.out.to(addrB)}, {"Onlooker", f.out.to(addrC)}} {
				var spawns []protocol.SpawnEntity
				for _, m := range other.msgs {
					if sp, ok := m.(protocol.SpawnEntity); ok {
						spawns = append(spawns, sp)
					}
				}
				want := []protocol.SpawnEntity{{ID: info.ID, Archetype: protocol.ArchetypePlayer}}
				if !reflect.DeepEqual(spawns, want) {
					t.Fatalf("%s got spawns %v, want %v", other.name, spawns, want)
				}
			}
		})
	}
}

func TestRejectedUsernameChangesNothing(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"Al", "AlaricAlaricAlaricAlaric", "xXshitXx"} {
		f.reg.HandleConnect(addrA, name)
		want := []protocol.ServerMessage{protocol.DisconnectClient{Reason: protocol.InvalidUsername}}
		if got := f.out.to(addrA); !reflect.DeepEqual(got, want) {
			t.Fatalf("%q: got %v", name, got)
		}
		if f.reg.ClientCount() != 0 || f.reg.EntityCount() != 0 {
			t.Fatalf("%q: registry mutated", name)
		}
		f.out.reset()
	}
	// No id was consumed by the rejections.
	if id := f.connect(t, addrA, "Alaric"); id != 1 {
		t.Fatalf("first accepted id = %s, want net#1", id)
	}
}

func TestIDsIncreaseAndAreNeverReused(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, addrA, "Alaric")
	b := f.connect(t, addrB, "Yslith")
	if b <= a {
		t.Fatalf("ids not increasing: %s then %s", a, b)
	}
	f.reg.HandleDisconnect(addrA)
	c := f.connect(t, addrA, "Alaric")
	if c <= b {
		t.Fatalf("id reused or decreased: %s after %s", c, b)
	}
}

func TestDuplicateConnectIgnored(t *testing.T) {
	f := newFixture(t)
	id := f.connect(t, addrA, "Alaric")
	f.reg.HandleConnect(addrA, "Alaric")
	if len(f.out.sent) != 0 {
		t.Fatalf("duplicate connect sent %v", f.out.sent)
	}
	if info, _ := f.reg.Client(addrA); info.ID != id || f.reg.EntityCount() != 1 {
		t.Fatalf("duplicate connect mutated registry: %+v", info)
	}
	if f.warnings() == 0 {
		t.Fatal("duplicate connect not logged as a warning")
	}
}

func TestMoveIsClampedAndRelayed(t *testing.T) {
	f := newFixture(t)
	idA := f.connect(t, addrA, "Alaric")
	f.connect(t, addrB, "Yslith")
	f.out.reset()

	outside := []protocol.Vec2{
		protocol.V2(900, -5),
		protocol.V2(-1, 300),
		protocol.V2(400, 601),
		protocol.V2(1e9, 1e9),
	}
	for _, p := range outside {
		f.reg.HandleMove(addrA, p)
		clamped := protocol.PlayArea.Clamp(p)
		want := []protocol.ServerMessage{protocol.SendEntityInfo{ID: idA, Info: protocol.PositionInfo(clamped)}}
		if got := f.out.to(addrB); !reflect.DeepEqual(got, want) {
			t.Fatalf("move %v: other got %v, want %v", p, got, want)
		}
		if got := f.out.to(addrA); !reflect.DeepEqual(got, want) {
			t.Fatalf("move %v: mover got %v, want clamped echo", p, got)
		}
		f.out.reset()
	}

	f.reg.HandleMove(addrA, protocol.V2(10, 20))
	if got := f.out.to(addrA); len(got) != 0 {
		t.Fatalf("in-bounds move echoed: %v", got)
	}
	want := []protocol.ServerMessage{protocol.SendEntityInfo{ID: idA, Info: protocol.PositionInfo(protocol.V2(10, 20))}}
	if got := f.out.to(addrB); !reflect.DeepEqual(got, want) {
		t.Fatalf("other got %v", got)
	}
}

func TestMoveFromUnauthenticatedAddress(t *testing.T) {
	f := newFixture(t)
	f.connect(t, addrB, "Yslith")
	f.reg.HandleMove(addrA, protocol.V2(1, 1))
	if len(f.out.sent) != 0 {
		t.Fatalf("unauthenticated move broadcast %v", f.out.sent)
	}
	if f.warnings() != 1 {
		t.Fatalf("warnings = %d, want 1", f.warnings())
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	f := newFixture(t)
	idA := f.connect(t, addrA, "Alaric")
	f.connect(t, addrB, "Yslith")
	f.out.reset()

	f.reg.HandleDisconnect(addrA)
	want := []protocol.ServerMessage{
		protocol.ChatMessage{Author: protocol.SystemAuthor, Text: "Alaric has disconnected"},
		protocol.DespawnEntity{ID: idA},
	}
	if got := f.out.to(addrB); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v\nwant %v", got, want)
	}
	if len(f.out.to(addrA)) != 0 {
		t.Fatal("departing client was sent messages")
	}
	if f.reg.EntityAlive(idA) {
		t.Fatal("entity still alive after disconnect")
	}
	if _, ok := f.reg.Entity(idA); ok {
		t.Fatal("entity record kept after disconnect")
	}

	f.out.reset()
	f.reg.HandleDisconnect(addrA)
	f.reg.HandleDisconnect(addrC)
	if len(f.out.sent) != 0 {
		t.Fatalf("second disconnect broadcast %v", f.out.sent)
	}
	if f.reg.ClientCount() != 1 {
		t.Fatalf("clients = %d, want 1", f.reg.ClientCount())
	}
}

func TestRequestArchetype(t *testing.T) {
	f := newFixture(t)
	idA := f.connect(t, addrA, "Alaric")
	idB := f.connect(t, addrB, "Yslith")
	f.out.reset()

	f.reg.HandleRequestArchetype(addrA, 99)
	if len(f.out.sent) != 0 {
		t.Fatalf("unknown archetype answered: %v", f.out.sent)
	}

	f.reg.HandleRequestArchetype(addrA, idB)
	f.reg.HandleRequestArchetype(addrA, idA)
	want := []protocol.ServerMessage{
		protocol.SpawnEntity{ID: idB, Archetype: protocol.ArchetypePlayer, Owned: false},
		protocol.SpawnEntity{ID: idA, Archetype: protocol.ArchetypePlayer, Owned: true},
	}
	if got := f.out.to(addrA); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v\nwant %v", got, want)
	}

	f.out.reset()
	f.reg.HandleRequestArchetype(addrC, idA)
	if len(f.out.sent) != 0 {
		t.Fatal("unauthenticated archetype request answered")
	}
}

func TestEntityInfoIsAnsweredOnResolve(t *testing.T) {
	f := newFixture(t)
	f.connect(t, addrA, "Alaric")
	idB := f.connect(t, addrB, "Yslith")
	f.out.reset()

	f.reg.HandleRequestEntityInfo(addrA, idB, protocol.InfoIdentity)
	f.reg.HandleRequestEntityInfo(addrA, idB, protocol.InfoPosition)
	f.reg.HandleRequestEntityInfo(addrA, 42, protocol.InfoIdentity)
	if len(f.out.sent) != 0 {
		t.Fatal("info answered before resolve")
	}
	if f.reg.PendingInfoRequests() != 2 {
		t.Fatalf("pending = %d, want 2", f.reg.PendingInfoRequests())
	}

	if n := f.reg.ResolveInfoRequests(); n != 2 {
		t.Fatalf("resolved %d, want 2", n)
	}
	want := []protocol.ServerMessage{
		protocol.SendEntityInfo{ID: idB, Info: protocol.IdentityInfo("Yslith")},
		protocol.SendEntityInfo{ID: idB, Info: protocol.PositionInfo(protocol.PlayArea.Center())},
	}
	if got := f.out.to(addrA); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v\nwant %v", got, want)
	}
	if f.reg.PendingInfoRequests() != 0 {
		t.Fatal("requests not consumed")
	}
	f.out.reset()
	if n := f.reg.ResolveInfoRequests(); n != 0 || len(f.out.sent) != 0 {
		t.Fatal("request answered twice")
	}
}

func TestEntityInfoForDespawnedTargetIsDropped(t *testing.T) {
	f := newFixture(t)
	f.connect(t, addrA, "Alaric")
	idB := f.connect(t, addrB, "Yslith")

	f.reg.HandleRequestEntityInfo(addrA, idB, protocol.InfoIdentity)
	f.reg.HandleDisconnect(addrB)
	f.out.reset()

	if n := f.reg.ResolveInfoRequests(); n != 0 {
		t.Fatalf("resolved %d for a despawned target", n)
	}
	if len(f.out.sent) != 0 || f.reg.PendingInfoRequests() != 0 {
		t.Fatalf("sent %v pending %d", f.out.sent, f.reg.PendingInfoRequests())
	}
}

func TestChatBroadcastIncludesSender(t *testing.T) {
	bus := event.NewBus()
	var posted []event.ChatPosted
	event.Subscribe(bus, func(e event.ChatPosted) { posted = append(posted, e) })

	out := &recordingOutbox{}
	reg := NewRegistry(Deps{Outbox: out, Bus: bus})
	reg.HandleConnect(addrA, "Alaric")
	reg.HandleConnect(addrB, "Yslith")
	out.reset()

	reg.HandleChat(addrA, "well met")
	want := []protocol.ServerMessage{protocol.ChatMessage{Author: "Alaric", Text: "well met"}}
	if got := out.to(addrA); !reflect.DeepEqual(got, want) {
		t.Fatalf("sender got %v", got)
	}
	if got := out.to(addrB); !reflect.DeepEqual(got, want) {
		t.Fatalf("other got %v", got)
	}

	out.reset()
	reg.HandleChat(addrC, "spoof")
	if len(out.sent) != 0 {
		t.Fatal("unauthenticated chat relayed")
	}

	bus.Swap()
	bus.Dispatch()
	if len(posted) != 1 || posted[0].Author != "Alaric" || posted[0].Text != "well met" {
		t.Fatalf("bus got %v", posted)
	}
}

func TestChallengeIsPassedToTarget(t *testing.T) {
	f := newFixture(t)
	idA := f.connect(t, addrA, "Alaric")
	idB := f.connect(t, addrB, "Yslith")
	f.out.reset()

	f.reg.HandleIssueChallenge(addrA, idB)
	want := []protocol.ServerMessage{protocol.PassAlongChallenge{From: idA}}
	if got := f.out.to(addrB); !reflect.DeepEqual(got, want) {
		t.Fatalf("target got %v", got)
	}
	if len(f.out.to(addrA)) != 0 {
		t.Fatal("challenger was sent messages")
	}

	f.out.reset()
	f.reg.HandleIssueChallenge(addrA, 77)
	f.reg.HandleIssueChallenge(addrA, idA)
	f.reg.HandleRespondToChallenge(addrB, idA, true)
	if len(f.out.sent) != 0 {
		t.Fatalf("unexpected traffic %v", f.out.sent)
	}
}

func TestSendFailuresAreLoggedNotFatal(t *testing.T) {
	f := newFixture(t)
	f.out.err = errors.New("network down")
	f.reg.HandleConnect(addrA, "Alaric")
	if !f.reg.Connected(addrA) {
		t.Fatal("send failure aborted the connect")
	}
	if f.logs.FilterMessage("send failed").Len() == 0 {
		t.Fatal("send failure not logged")
	}
}

func TestBusEventsForJoinAndLeave(t *testing.T) {
	bus := event.NewBus()
	var got []string
	event.Subscribe(bus, func(e event.PlayerJoined) { got = append(got, "join "+e.Name) })
	event.Subscribe(bus, func(e event.PlayerLeft) { got = append(got, "leave "+e.Name) })

	reg := NewRegistry(Deps{Outbox: &recordingOutbox{}, Bus: bus})
	reg.HandleConnect(addrA, "Alaric")
	reg.HandleDisconnect(addrA)
	reg.HandleDisconnect(addrA)

	bus.Swap()
	bus.Dispatch()
	if !reflect.DeepEqual(got, []string{"join Alaric", "leave Alaric"}) {
		t.Fatalf("got %v", got)
	}
}
