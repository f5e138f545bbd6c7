// Package clienttest provides an in-memory client.Connection.
package clienttest

import (
	"sync"

	"github.com/linchutchinson/shackle-mmo/internal/client"
	"github.com/linchutchinson/shackle-mmo/internal/protocol"
	"go.uber.org/zap"
)

// Connection records what the client sends and replays whatever the test
// pushes as server traffic. It is safe for concurrent use so a test can act
// as the server from another goroutine.
type Connection struct {
	mu      sync.Mutex
	sent    []protocol.ClientMessage
	inbound []protocol.ServerMessage
	sendErr error
	closed  bool
}

func New() *Connection {
	return &Connection{}
}

// Dialer returns a client.Dialer that always hands out c.
func (c *Connection) Dialer() client.Dialer {
	return func() (client.Connection, error) {
		c.mu.Lock()
		c.closed = false
		c.mu.Unlock()
		return c, nil
	}
}

// Connected builds a client that has already sent Connect for username and
// had it accepted.
func Connected(username string) (*client.Client, *Connection) {
	conn := New()
	c := client.New(conn.Dialer(), zap.NewNop())
	if err := c.Connect(username); err != nil {
		panic(err)
	}
	conn.Push(protocol.ConnectionAccepted{})
	if err := c.PollServer(); err != nil {
		panic(err)
	}
	conn.TakeSent()
	return c, conn
}

func (c *Connection) Send(msg protocol.ClientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *Connection) Drain() []protocol.ServerMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.inbound
	c.inbound = nil
	return out
}

func (c *Connection) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Push queues server messages for the next Drain.
func (c *Connection) Push(msgs ...protocol.ServerMessage) {
	c.mu.Lock()
	c.inbound = append(c.inbound, msgs...)
	c.mu.Unlock()
}

// FailSends makes every following Send return err; nil restores success.
func (c *Connection) FailSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// Sent returns a copy of everything sent so far.
func (c *Connection) Sent() []protocol.ClientMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.ClientMessage(nil), c.sent...)
}

// TakeSent returns and clears the sent log.
func (c *Connection) TakeSent() []protocol.ClientMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.sent
	c.sent = nil
	return out
}

func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
