package protocol

import "fmt"

// ClientKind tags each client→server variant on the wire.
type ClientKind uint8

const (
	KindConnect ClientKind = iota + 1
	KindMoveTo
	KindRequestArchetype
	KindRequestEntityInfo
	KindSendMessage
	KindIssueChallenge
	KindRespondToChallenge
	KindDisconnect
)

func (k ClientKind) String() string {
	switch k {
	case KindConnect:
		return "Connect"
	case KindMoveTo:
		return "MoveTo"
	case KindRequestArchetype:
		return "RequestArchetype"
	case KindRequestEntityInfo:
		return "RequestEntityInfo"
	case KindSendMessage:
		return "SendMessage"
	case KindIssueChallenge:
		return "IssueChallenge"
	case KindRespondToChallenge:
		return "RespondToChallenge"
	case KindDisconnect:
		return "Disconnect"
	default:
		return fmt.Sprintf("ClientKind(%d)", uint8(k))
	}
}

// ServerKind tags each server→client variant on the wire.
type ServerKind uint8

const (
	KindConnectionAccepted ServerKind = iota + 1
	KindDisconnectClient
	KindSpawnEntity
	KindDespawnEntity
	KindSendEntityInfo
	KindChatMessage
	KindPassAlongChallenge
)

func (k ServerKind) String() string {
	switch k {
	case KindConnectionAccepted:
		return "ConnectionAccepted"
	case KindDisconnectClient:
		return "DisconnectClient"
	case KindSpawnEntity:
		return "SpawnEntity"
	case KindDespawnEntity:
		return "DespawnEntity"
	case KindSendEntityInfo:
		return "SendEntityInfo"
	case KindChatMessage:
		return "SendMessage"
	case KindPassAlongChallenge:
		return "PassAlongChallenge"
	default:
		return fmt.Sprintf("ServerKind(%d)", uint8(k))
	}
}

// ClientMessage is the closed set of messages a client sends.
type ClientMessage interface {
	Kind() ClientKind
	clientMessage()
}

// ServerMessage is the closed set of messages the server sends.
type ServerMessage interface {
	Kind() ServerKind
	serverMessage()
}

// InfoKind selects which piece of entity data a client asks for.
type InfoKind uint8

const (
	InfoIdentity InfoKind = iota + 1
	InfoPosition
)

func (k InfoKind) String() string {
	switch k {
	case InfoIdentity:
		return "Identity"
	case InfoPosition:
		return "Position"
	default:
		return fmt.Sprintf("InfoKind(%d)", uint8(k))
	}
}

// EntityInfo carries one piece of entity data. Only the field matching
// Kind is meaningful.
type EntityInfo struct {
	_msgpack struct{} `msgpack:",as_array"`
	Kind     InfoKind
	Name     string
	Position Vec2
}

func IdentityInfo(name string) EntityInfo {
	return EntityInfo{Kind: InfoIdentity, Name: name}
}

func PositionInfo(pos Vec2) EntityInfo {
	return EntityInfo{Kind: InfoPosition, Position: pos}
}

// DisconnectReason explains why a client was dropped.
type DisconnectReason uint8

const (
	InvalidUsername DisconnectReason = iota + 1
	// ConnectionLost never travels on the wire; the client synthesises it
	// when the transport times out the server.
	ConnectionLost
)

func (r DisconnectReason) String() string {
	switch r {
	case InvalidUsername:
		return "invalid username"
	case ConnectionLost:
		return "connection lost"
	default:
		return fmt.Sprintf("DisconnectReason(%d)", uint8(r))
	}
}

// ── Client → Server ──

type Connect struct {
	_msgpack struct{} `msgpack:",as_array"`
	Username string
}

type MoveTo struct {
	_msgpack struct{} `msgpack:",as_array"`
	Position Vec2
}

type RequestArchetype struct {
	_msgpack struct{} `msgpack:",as_array"`
	ID       NetworkID
}

type RequestEntityInfo struct {
	_msgpack struct{} `msgpack:",as_array"`
	ID       NetworkID
	Info     InfoKind
}

type SendMessage struct {
	_msgpack struct{} `msgpack:",as_array"`
	Text     string
}

type IssueChallenge struct {
	_msgpack struct{} `msgpack:",as_array"`
	Target   NetworkID
}

type RespondToChallenge struct {
	_msgpack   struct{} `msgpack:",as_array"`
	Challenger NetworkID
	Accepted   bool
}

type Disconnect struct {
	_msgpack struct{} `msgpack:",as_array"`
}

func (Connect) Kind() ClientKind            { return KindConnect }
func (MoveTo) Kind() ClientKind             { return KindMoveTo }
func (RequestArchetype) Kind() ClientKind   { return KindRequestArchetype }
func (RequestEntityInfo) Kind() ClientKind  { return KindRequestEntityInfo }
func (SendMessage) Kind() ClientKind        { return KindSendMessage }
func (IssueChallenge) Kind() ClientKind     { return KindIssueChallenge }
func (RespondToChallenge) Kind() ClientKind { return KindRespondToChallenge }
func (Disconnect) Kind() ClientKind         { return KindDisconnect }

func (Connect) clientMessage()            {}
func (MoveTo) clientMessage()             {}
func (RequestArchetype) clientMessage()   {}
func (RequestEntityInfo) clientMessage()  {}
func (SendMessage) clientMessage()        {}
func (IssueChallenge) clientMessage()     {}
func (RespondToChallenge) clientMessage() {}
func (Disconnect) clientMessage()         {}

// ── Server → Client ──

type ConnectionAccepted struct {
	_msgpack struct{} `msgpack:",as_array"`
}

type DisconnectClient struct {
	_msgpack struct{} `msgpack:",as_array"`
	Reason   DisconnectReason
}

type SpawnEntity struct {
	_msgpack  struct{} `msgpack:",as_array"`
	ID        NetworkID
	Archetype Archetype
	Owned     bool
}

type DespawnEntity struct {
	_msgpack struct{} `msgpack:",as_array"`
	ID       NetworkID
}

type SendEntityInfo struct {
	_msgpack struct{} `msgpack:",as_array"`
	ID       NetworkID
	Info     EntityInfo
}

// ChatMessage is the server's SendMessage variant: one chat line with its
// author.
type ChatMessage struct {
	_msgpack struct{} `msgpack:",as_array"`
	Author   string
	Text     string
}

type PassAlongChallenge struct {
	_msgpack struct{} `msgpack:",as_array"`
	From     NetworkID
}

func (ConnectionAccepted) Kind() ServerKind { return KindConnectionAccepted }
func (DisconnectClient) Kind() ServerKind   { return KindDisconnectClient }
func (SpawnEntity) Kind() ServerKind        { return KindSpawnEntity }
func (DespawnEntity) Kind() ServerKind      { return KindDespawnEntity }
func (SendEntityInfo) Kind() ServerKind     { return KindSendEntityInfo }
func (ChatMessage) Kind() ServerKind        { return KindChatMessage }
func (PassAlongChallenge) Kind() ServerKind { return KindPassAlongChallenge }

func (ConnectionAccepted) serverMessage() {}
func (DisconnectClient) serverMessage()   {}
func (SpawnEntity) serverMessage()        {}
func (DespawnEntity) serverMessage()      {}
func (SendEntityInfo) serverMessage()     {}
func (ChatMessage) serverMessage()        {}
func (PassAlongChallenge) serverMessage() {}
