// Package client holds the player's side of a Shackle session: the
// connection to the server, its lifecycle state and the queue of events
// the simulation consumes each tick.
package client

import (
	"github.com/linchutchinson/shackle-mmo/internal/protocol"
	"go.uber.org/zap"
)

// Client is owned by the client tick loop and is not safe for concurrent use.
type Client struct {
	dial     Dialer
	conn     Connection
	status   Status
	username string
	events   []Event
	log      *zap.Logger
}

func New(dial Dialer, log *zap.Logger) *Client {
	return &Client{
		dial: dial,
		log:  log,
	}
}

// Connect opens a connection and sends the login request. Status moves to
// Connecting; the server's reply arrives through PollServer.
func (c *Client) Connect(username string) error {
	if c.conn != nil {
		return ErrDuplicateConnection
	}
	conn, err := c.dial()
	if err != nil {
		return &NetworkError{Op: "open", Err: err}
	}
	c.conn = conn
	c.status = Status{State: Connecting}

	if err := conn.Send(protocol.Connect{Username: username}); err != nil {
		c.dropConnection()
		c.status = Status{}
		return &NetworkError{Op: "connect", Err: err}
	}
	c.username = username
	c.log.Info("connecting", zap.String("username", username))
	return nil
}

// Disconnect tells the server the player is leaving and tears the
// connection down. Queued events are kept.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return ErrNotConnected
	}
	err := c.conn.Send(protocol.Disconnect{})
	c.dropConnection()
	c.status = Status{}
	c.username = ""
	if err != nil {
		return &NetworkError{Op: "disconnect", Err: err}
	}
	return nil
}

func (c *Client) Status() Status {
	if c.conn == nil && c.status.State != Failed {
		return Status{State: NotConnected}
	}
	return c.status
}

// Username returns the name sent with the current login, if any.
func (c *Client) Username() (string, bool) {
	return c.username, c.username != ""
}

// PollServer drains the connection and applies each message in arrival
// order. Lifecycle messages update Status; everything else becomes exactly
// one queued Event.
func (c *Client) PollServer() error {
	if c.conn == nil {
		return ErrNotConnected
	}
	failed := false
	for _, msg := range c.conn.Drain() {
		switch m := msg.(type) {
		case protocol.ConnectionAccepted:
			c.status = Status{State: Connected}
			c.log.Info("connection accepted")
		case protocol.DisconnectClient:
			c.username = ""
			c.status = Status{State: Failed, Reason: m.Reason}
			failed = true
			c.log.Info("disconnected by server", zap.Stringer("reason", m.Reason))
		case protocol.SpawnEntity:
			c.events = append(c.events, SpawnEvent{ID: m.ID, Archetype: m.Archetype, Owned: m.Owned})
		case protocol.DespawnEntity:
			c.events = append(c.events, DespawnEvent{ID: m.ID})
		case protocol.SendEntityInfo:
			c.events = append(c.events, EntityInfoEvent{ID: m.ID, Info: m.Info})
		case protocol.ChatMessage:
			c.events = append(c.events, MessageEvent{Author: m.Author, Text: m.Text})
		case protocol.PassAlongChallenge:
			c.events = append(c.events, ChallengeEvent{From: m.From})
		default:
			c.log.Warn("unhandled server message", zap.Stringer("kind", msg.Kind()))
		}
	}
	if failed {
		// The server has already forgotten us; keep the Failed status so the
		// UI can show why, but free the socket so a new Connect is allowed.
		c.dropConnection()
	}
	return nil
}

// NextEvent pops the oldest queued event.
func (c *Client) NextEvent() (Event, bool) {
	if len(c.events) == 0 {
		return nil, false
	}
	ev := c.events[0]
	c.events[0] = nil
	c.events = c.events[1:]
	return ev, true
}

// DrainEvents returns and clears every queued event.
func (c *Client) DrainEvents() []Event {
	out := c.events
	c.events = nil
	return out
}

func (c *Client) PendingEvents() int { return len(c.events) }

func (c *Client) MovePlayer(pos protocol.Vec2) error {
	return c.send("move", protocol.MoveTo{Position: pos})
}

func (c *Client) RequestArchetype(id protocol.NetworkID) error {
	return c.send("request archetype", protocol.RequestArchetype{ID: id})
}

func (c *Client) RequestEntityInfo(id protocol.NetworkID, kind protocol.InfoKind) error {
	return c.send("request entity info", protocol.RequestEntityInfo{ID: id, Info: kind})
}

func (c *Client) SendChatMessage(text string) error {
	return c.send("chat", protocol.SendMessage{Text: text})
}

func (c *Client) SendChallenge(target protocol.NetworkID) error {
	return c.send("challenge", protocol.IssueChallenge{Target: target})
}

func (c *Client) RespondToChallenge(challenger protocol.NetworkID, accepted bool) error {
	return c.send("challenge response", protocol.RespondToChallenge{Challenger: challenger, Accepted: accepted})
}

func (c *Client) send(op string, msg protocol.ClientMessage) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.Send(msg); err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) dropConnection() {
	if err := c.conn.Close(); err != nil {
		c.log.Debug("closing connection", zap.Error(err))
	}
	c.conn = nil
}
