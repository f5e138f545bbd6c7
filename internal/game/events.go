package game

import (
	"fmt"

	"github.com/linchutchinson/shackle-mmo/internal/client"
	"github.com/linchutchinson/shackle-mmo/internal/core/ecs"
	"github.com/linchutchinson/shackle-mmo/internal/protocol"
	"go.uber.org/zap"
)

// PlayerSpeed is how far the controlled player moves per tick.
const PlayerSpeed = 4

// Session is the state shared by the client's tick steps.
type Session struct {
	Client   *client.Client
	World    *World
	Entities *NetworkedEntities
	Chat     *ChatLog
	Notes    *Notifications
	Log      *zap.Logger
}

func NewSession(c *client.Client, log *zap.Logger) *Session {
	return &Session{
		Client:   c,
		World:    NewWorld(),
		Entities: NewNetworkedEntities(),
		Chat:     &ChatLog{},
		Notes:    &Notifications{},
		Log:      log,
	}
}

// ResetWorld drops every mirrored entity and the chat history.
func (s *Session) ResetWorld() {
	s.World = NewWorld()
	s.Entities = NewNetworkedEntities()
	s.Chat.Reset()
}

// HandleClientEvents applies every event the client has queued to the local
// mirror. It returns the number of events applied.
func (s *Session) HandleClientEvents() int {
	events := s.Client.DrainEvents()
	for _, ev := range events {
		switch e := ev.(type) {
		case client.SpawnEvent:
			s.spawn(e)
		case client.DespawnEvent:
			if ent, ok := s.Entities.remove(e.ID); ok {
				s.World.despawn(ent)
			}
		case client.EntityInfoEvent:
			s.applyInfo(e)
		case client.MessageEvent:
			s.Log.Debug("chat received", zap.String("author", e.Author), zap.String("text", e.Text))
			s.Chat.Add(e.Author, e.Text)
		case client.ChallengeEvent:
			s.Notes.Push(Notification{
				Kind: NoticeChallenge,
				Text: fmt.Sprintf("%s challenges you! (y/n)", s.displayName(e.From)),
				From: e.From,
			})
		}
	}
	return len(events)
}

func (s *Session) spawn(e client.SpawnEvent) {
	if old, ok := s.Entities.remove(e.ID); ok {
		s.World.despawn(old)
	}
	switch e.Archetype {
	case protocol.ArchetypePlayer:
		if e.Owned {
			s.Entities.set(e.ID, s.World.spawnLocalPlayer(e.ID))
		} else {
			s.Entities.set(e.ID, s.World.spawnRemotePlayer(e.ID))
		}
	default:
		s.Log.Warn("spawn with unknown archetype", zap.Stringer("id", e.ID), zap.Stringer("archetype", e.Archetype))
	}
}

func (s *Session) applyInfo(e client.EntityInfoEvent) {
	ent, ok := s.Entities.Get(e.ID)
	if !ok {
		s.Log.Info("info for an unknown entity, requesting its archetype", zap.Stringer("id", e.ID))
		if err := s.Client.RequestArchetype(e.ID); err != nil {
			s.Log.Error("request archetype", zap.Stringer("id", e.ID), zap.Error(err))
		}
		return
	}
	switch e.Info.Kind {
	case protocol.InfoPosition:
		s.World.Positions.Set(ent, protocol.PlayArea.Clamp(e.Info.Position))
	case protocol.InfoIdentity:
		s.World.Names.Set(ent, HoverName{Name: e.Info.Name, Radius: hoverNameRadius})
		s.World.NeedsName.Remove(ent)
	default:
		s.Log.Warn("unhandled entity info", zap.Stringer("id", e.ID), zap.Stringer("kind", e.Info.Kind))
	}
}

// RequestNames asks the server once for the name of every entity still
// waiting for one.
func (s *Session) RequestNames() int {
	sent := 0
	s.World.NeedsName.Each(func(ent ecs.Entity, need *NeedsName) {
		if need.Requested {
			return
		}
		id, ok := s.World.IDs.Get(ent)
		if !ok {
			return
		}
		if err := s.Client.RequestEntityInfo(*id, protocol.InfoIdentity); err != nil {
			s.Log.Error("request entity name", zap.Stringer("id", *id), zap.Error(err))
			return
		}
		need.Requested = true
		sent++
	})
	return sent
}

// MovePlayer moves the controlled player one step in dir, keeps it inside
// the play area and tells the server.
func (s *Session) MovePlayer(dir protocol.Vec2) bool {
	if dir.IsZero() {
		return false
	}
	ent, _, ok := s.World.Player()
	if !ok {
		return false
	}
	pos, ok := s.World.Positions.Get(ent)
	if !ok {
		return false
	}
	next := protocol.PlayArea.Clamp(pos.Add(dir.Scale(PlayerSpeed)))
	if next.Equal(*pos) {
		return false
	}
	*pos = next
	if err := s.Client.MovePlayer(next); err != nil {
		s.Log.Error("send move", zap.Error(err))
	}
	return true
}

// Nearest returns the remote entity closest to the player.
func (s *Session) Nearest() (protocol.NetworkID, bool) {
	_, me, ok := s.World.Player()
	if !ok {
		return 0, false
	}
	var (
		best  protocol.NetworkID
		bestD float32
		found bool
	)
	for _, id := range s.Entities.IDs() {
		ent, _ := s.Entities.Get(id)
		if s.World.Controlled.Has(ent) {
			continue
		}
		pos, ok := s.World.Positions.Get(ent)
		if !ok {
			continue
		}
		if d := me.DistSq(*pos); !found || d < bestD {
			best, bestD, found = id, d, true
		}
	}
	return best, found
}

func (s *Session) displayName(id protocol.NetworkID) string {
	if ent, ok := s.Entities.Get(id); ok {
		if n, ok := s.World.Names.Get(ent); ok {
			return n.Name
		}
	}
	return id.String()
}
