package client

import (
	"fmt"

	"github.com/linchutchinson/shackle-mmo/internal/protocol"
)

type State int

const (
	NotConnected State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "not connected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is the session's connection state. Reason is meaningful only when
// State is Failed.
type Status struct {
	State  State
	Reason protocol.DisconnectReason
}

func (s Status) String() string {
	if s.State == Failed {
		return fmt.Sprintf("failed: %s", s.Reason)
	}
	return s.State.String()
}
