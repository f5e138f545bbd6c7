package game

import (
	"fmt"

	"github.com/linchutchinson/shackle-mmo/internal/protocol"
)

// MaxChatLines is how many chat lines the log keeps.
const MaxChatLines = 5

// ChatLog keeps the most recent chat lines, oldest first.
type ChatLog struct {
	lines []string
}

func (c *ChatLog) Add(author, text string) {
	c.lines = append(c.lines, fmt.Sprintf("%s: %s", author, text))
	if over := len(c.lines) - MaxChatLines; over > 0 {
		c.lines = append(c.lines[:0], c.lines[over:]...)
	}
}

func (c *ChatLog) Lines() []string {
	return append([]string(nil), c.lines...)
}

func (c *ChatLog) Reset() { c.lines = nil }

// NotificationKind separates plain messages from challenges the player can
// answer.
type NotificationKind int

const (
	NoticeError NotificationKind = iota
	NoticeInfo
	NoticeChallenge
)

type Notification struct {
	Kind NotificationKind
	Text string
	From protocol.NetworkID // set for NoticeChallenge
}

const maxNotifications = 8

// Notifications is a bounded queue of user-facing messages. When full, the
// oldest entry is dropped.
type Notifications struct {
	items []Notification
}

func (n *Notifications) Push(note Notification) {
	n.items = append(n.items, note)
	if over := len(n.items) - maxNotifications; over > 0 {
		n.items = append(n.items[:0], n.items[over:]...)
	}
}

func (n *Notifications) Error(text string) {
	n.Push(Notification{Kind: NoticeError, Text: text})
}

func (n *Notifications) Info(text string) {
	n.Push(Notification{Kind: NoticeInfo, Text: text})
}

// Latest returns the newest notification without removing it.
func (n *Notifications) Latest() (Notification, bool) {
	if len(n.items) == 0 {
		return Notification{}, false
	}
	return n.items[len(n.items)-1], true
}

// TakeChallenge removes and returns the newest pending challenge.
func (n *Notifications) TakeChallenge() (Notification, bool) {
	for i := len(n.items) - 1; i >= 0; i-- {
		if n.items[i].Kind == NoticeChallenge {
			note := n.items[i]
			n.items = append(n.items[:i], n.items[i+1:]...)
			return note, true
		}
	}
	return Notification{}, false
}

func (n *Notifications) All() []Notification {
	return append([]Notification(nil), n.items...)
}

func (n *Notifications) Len() int { return len(n.items) }
func (n *Notifications) Reset()   { n.items = nil }
