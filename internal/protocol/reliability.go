package protocol

// Reliability is the delivery class a message travels with.
type Reliability uint8

const (
	// ReliableUnordered messages must eventually arrive; ordering across
	// messages is not guaranteed.
	ReliableUnordered Reliability = iota
	// Unreliable messages may be dropped; the next update supersedes them.
	Unreliable
)

func (r Reliability) String() string {
	if r == Unreliable {
		return "unreliable"
	}
	return "reliable-unordered"
}

// ClientReliability classifies a client message. Only position updates are
// best-effort.
func ClientReliability(m ClientMessage) Reliability {
	switch m.(type) {
	case MoveTo:
		return Unreliable
	default:
		return ReliableUnordered
	}
}

// ServerReliability classifies a server message. Position echoes are
// superseded by the next one and chat is best-effort fan-out.
func ServerReliability(m ServerMessage) Reliability {
	switch v := m.(type) {
	case SendEntityInfo:
		if v.Info.Kind == InfoPosition {
			return Unreliable
		}
	case ChatMessage:
		return Unreliable
	}
	return ReliableUnordered
}
