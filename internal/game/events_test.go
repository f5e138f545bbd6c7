package game

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/linchutchinson/shackle-mmo/internal/client"
	"github.com/linchutchinson/shackle-mmo/internal/client/clienttest"
	"github.com/linchutchinson/shackle-mmo/internal/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func connectedSession(t *testing.T) (*Session, *clienttest.Connection, *observer.ObservedLogs) {
	t.Helper()
	c, conn := clienttest.Connected("Alaric")
	core, logs := observer.New(zap.DebugLevel)
	return NewSession(c, zap.New(core)), conn, logs
}

func pump(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Client.PollServer(); err != nil {
		t.Fatalf("poll: %v", err)
	}
	s.HandleClientEvents()
}

func TestSpawnOwnedAndRemote(t *testing.T) {
	s, conn, _ := connectedSession(t)
	conn.Push(
		protocol.SpawnEntity{ID: 1, Archetype: protocol.ArchetypePlayer, Owned: true},
		protocol.SpawnEntity{ID: 2, Archetype: protocol.ArchetypePlayer},
	)
	pump(t, s)

	if s.Entities.Len() != 2 || s.World.Len() != 2 {
		t.Fatalf("entities=%d world=%d", s.Entities.Len(), s.World.Len())
	}
	local, _ := s.Entities.Get(1)
	remote, _ := s.Entities.Get(2)
	if !s.World.Controlled.Has(local) || s.World.Controlled.Has(remote) {
		t.Fatal("only the owned spawn should be controlled")
	}
	if s.World.NeedsName.Has(local) || !s.World.NeedsName.Has(remote) {
		t.Fatal("only the remote player should need a name")
	}
	if pos, _ := s.World.Positions.Get(local); !pos.Equal(protocol.PlayArea.Center()) {
		t.Fatalf("local player at %v", *pos)
	}
	if !reflect.DeepEqual(s.Entities.IDs(), []protocol.NetworkID{1, 2}) {
		t.Fatalf("ids %v", s.Entities.IDs())
	}
}

func TestRespawnReplacesExistingEntity(t *testing.T) {
	s, conn, _ := connectedSession(t)
	conn.Push(protocol.SpawnEntity{ID: 4, Archetype: protocol.ArchetypePlayer})
	pump(t, s)
	first, _ := s.Entities.Get(4)

	conn.Push(protocol.SpawnEntity{ID: 4, Archetype: protocol.ArchetypePlayer, Owned: true})
	pump(t, s)
	second, _ := s.Entities.Get(4)

	if s.World.Alive(first) {
		t.Fatal("old entity should be gone")
	}
	if s.World.Len() != 1 || s.Entities.Len() != 1 {
		t.Fatalf("world=%d entities=%d", s.World.Len(), s.Entities.Len())
	}
	if !s.World.Controlled.Has(second) {
		t.Fatal("replacement should be controlled")
	}
}

func TestDespawnUnknownIsSilent(t *testing.T) {
	s, conn, logs := connectedSession(t)
	conn.Push(
		protocol.SpawnEntity{ID: 1, Archetype: protocol.ArchetypePlayer},
		protocol.DespawnEntity{ID: 1},
		protocol.DespawnEntity{ID: 99},
	)
	pump(t, s)
	if s.Entities.Len() != 0 || s.World.Len() != 0 {
		t.Fatalf("entities=%d world=%d", s.Entities.Len(), s.World.Len())
	}
	if logs.FilterLevelExact(zap.WarnLevel).Len() != 0 {
		t.Fatal("despawning an unknown id should not warn")
	}
}

func TestEntityInfoUpdates(t *testing.T) {
	s, conn, _ := connectedSession(t)
	conn.Push(
		protocol.SpawnEntity{ID: 2, Archetype: protocol.ArchetypePlayer},
		protocol.SendEntityInfo{ID: 2, Info: protocol.PositionInfo(protocol.V2(10, 20))},
		protocol.SendEntityInfo{ID: 2, Info: protocol.IdentityInfo("Yslith")},
	)
	pump(t, s)

	e, _ := s.Entities.Get(2)
	if pos, _ := s.World.Positions.Get(e); !pos.Equal(protocol.V2(10, 20)) {
		t.Fatalf("position %v", *pos)
	}
	name, ok := s.World.Names.Get(e)
	if !ok || name.Name != "Yslith" {
		t.Fatalf("name %+v", name)
	}
	if s.World.NeedsName.Has(e) {
		t.Fatal("NeedsName should be cleared")
	}
}

func TestInfoForUnknownEntityRequestsArchetype(t *testing.T) {
	s, conn, logs := connectedSession(t)
	conn.Push(protocol.SendEntityInfo{ID: 7, Info: protocol.PositionInfo(protocol.V2(1, 1))})
	pump(t, s)

	want := []protocol.ClientMessage{protocol.RequestArchetype{ID: 7}}
	if got := conn.TakeSent(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	if logs.FilterMessage("info for an unknown entity, requesting its archetype").Len() != 1 {
		t.Fatal("expected an info log for the desync")
	}

	conn.FailSends(errors.New("boom"))
	conn.Push(protocol.SendEntityInfo{ID: 8, Info: protocol.IdentityInfo("x")})
	pump(t, s)
	if logs.FilterLevelExact(zap.ErrorLevel).Len() != 1 {
		t.Fatal("a failed repair request should be logged")
	}
}

func TestChatAndChallengeEvents(t *testing.T) {
	s, conn, _ := connectedSession(t)
	for i := 0; i < MaxChatLines+2; i++ {
		conn.Push(protocol.ChatMessage{Author: "Yslith", Text: fmt.Sprintf("line %d", i)})
	}
	conn.Push(protocol.PassAlongChallenge{From: 3})
	pump(t, s)

	lines := s.Chat.Lines()
	if len(lines) != MaxChatLines {
		t.Fatalf("chat kept %d lines", len(lines))
	}
	if lines[0] != "Yslith: line 2" || lines[MaxChatLines-1] != "Yslith: line 6" {
		t.Fatalf("lines %v", lines)
	}
	note, ok := s.Notes.Latest()
	if !ok || note.Kind != NoticeChallenge || note.From != 3 {
		t.Fatalf("notification %+v", note)
	}
}

func TestRequestNamesOncePerEntity(t *testing.T) {
	s, conn, _ := connectedSession(t)
	conn.Push(
		protocol.SpawnEntity{ID: 1, Archetype: protocol.ArchetypePlayer, Owned: true},
		protocol.SpawnEntity{ID: 2, Archetype: protocol.ArchetypePlayer},
	)
	pump(t, s)

	if n := s.RequestNames(); n != 1 {
		t.Fatalf("sent %d requests", n)
	}
	if n := s.RequestNames(); n != 0 {
		t.Fatalf("second pass sent %d requests", n)
	}
	want := []protocol.ClientMessage{protocol.RequestEntityInfo{ID: 2, Info: protocol.InfoIdentity}}
	if got := conn.TakeSent(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sent %v", got)
	}
}

func TestRequestNamesRetriesAfterFailure(t *testing.T) {
	s, conn, _ := connectedSession(t)
	conn.Push(protocol.SpawnEntity{ID: 2, Archetype: protocol.ArchetypePlayer})
	pump(t, s)

	conn.FailSends(errors.New("down"))
	if n := s.RequestNames(); n != 0 {
		t.Fatalf("sent %d", n)
	}
	conn.FailSends(nil)
	if n := s.RequestNames(); n != 1 {
		t.Fatalf("retry sent %d", n)
	}
}

func TestMovePlayer(t *testing.T) {
	s, conn, _ := connectedSession(t)
	if s.MovePlayer(protocol.V2(1, 0)) {
		t.Fatal("moved without a player")
	}
	conn.Push(protocol.SpawnEntity{ID: 1, Archetype: protocol.ArchetypePlayer, Owned: true})
	pump(t, s)

	if s.MovePlayer(protocol.Vec2{}) {
		t.Fatal("zero direction should not move")
	}
	if !s.MovePlayer(protocol.V2(1, -1)) {
		t.Fatal("expected a move")
	}
	center := protocol.PlayArea.Center()
	want := protocol.V2(center.X+PlayerSpeed, center.Y-PlayerSpeed)
	_, pos, _ := s.World.Player()
	if !pos.Equal(want) {
		t.Fatalf("position %v, want %v", pos, want)
	}
	if got := conn.TakeSent(); !reflect.DeepEqual(got, []protocol.ClientMessage{protocol.MoveTo{Position: want}}) {
		t.Fatalf("sent %v", got)
	}
}

func TestMovePlayerClampsToPlayArea(t *testing.T) {
	s, conn, _ := connectedSession(t)
	conn.Push(
		protocol.SpawnEntity{ID: 1, Archetype: protocol.ArchetypePlayer, Owned: true},
		protocol.SendEntityInfo{ID: 1, Info: protocol.PositionInfo(protocol.V2(2, 599))},
	)
	pump(t, s)

	s.MovePlayer(protocol.V2(-1, 1))
	_, pos, _ := s.World.Player()
	if !pos.Equal(protocol.V2(0, 600)) {
		t.Fatalf("position %v", pos)
	}
	conn.TakeSent()
	if s.MovePlayer(protocol.V2(-1, 1)) {
		t.Fatal("pressing into the corner should not move")
	}
	if len(conn.TakeSent()) != 0 {
		t.Fatal("no MoveTo expected at the boundary")
	}
}

func TestNearest(t *testing.T) {
	s, conn, _ := connectedSession(t)
	if _, ok := s.Nearest(); ok {
		t.Fatal("no player yet")
	}
	conn.Push(
		protocol.SpawnEntity{ID: 1, Archetype: protocol.ArchetypePlayer, Owned: true},
		protocol.SendEntityInfo{ID: 1, Info: protocol.PositionInfo(protocol.V2(100, 100))},
		protocol.SpawnEntity{ID: 2, Archetype: protocol.ArchetypePlayer},
		protocol.SendEntityInfo{ID: 2, Info: protocol.PositionInfo(protocol.V2(500, 500))},
		protocol.SpawnEntity{ID: 3, Archetype: protocol.ArchetypePlayer},
		protocol.SendEntityInfo{ID: 3, Info: protocol.PositionInfo(protocol.V2(120, 90))},
	)
	pump(t, s)
	if id, ok := s.Nearest(); !ok || id != 3 {
		t.Fatalf("nearest %v %v", id, ok)
	}
}

func TestHandleClientEventsWithoutConnection(t *testing.T) {
	c := client.New(clienttest.New().Dialer(), zap.NewNop())
	s := NewSession(c, zap.NewNop())
	if n := s.HandleClientEvents(); n != 0 {
		t.Fatalf("applied %d", n)
	}
}
