package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrDecode is wrapped by every decoding failure so callers can tell a
// malformed packet from a valid message the server chose to reject.
var ErrDecode = errors.New("protocol: malformed message")

// DecodeError describes why a payload could not be decoded.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrDecode, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrDecode, e.Reason)
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

// Wire layout: msgpack uint8 kind, followed by the variant body encoded as
// a msgpack array. Nothing may follow the body.

func EncodeClient(m ClientMessage) ([]byte, error) {
	if m == nil {
		return nil, errors.New("encode: nil client message")
	}
	return encode(uint8(m.Kind()), m)
}

func EncodeServer(m ServerMessage) ([]byte, error) {
	if m == nil {
		return nil, errors.New("encode: nil server message")
	}
	return encode(uint8(m.Kind()), m)
}

func encode(kind uint8, body any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.EncodeUint8(kind); err != nil {
		return nil, fmt.Errorf("encode kind %d: %w", kind, err)
	}
	if err := enc.Encode(body); err != nil {
		return nil, fmt.Errorf("encode kind %d body: %w", kind, err)
	}
	return buf.Bytes(), nil
}

// DecodeClient parses a client→server payload.
func DecodeClient(data []byte) (msg ClientMessage, err error) {
	defer recoverDecode(&err)

	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	kind, err := dec.DecodeUint8()
	if err != nil {
		return nil, &DecodeError{Reason: "read kind", Err: err}
	}

	switch ClientKind(kind) {
	case KindConnect:
		msg, err = decodeBody[Connect](dec)
	case KindMoveTo:
		msg, err = decodeBody[MoveTo](dec)
	case KindRequestArchetype:
		msg, err = decodeBody[RequestArchetype](dec)
	case KindRequestEntityInfo:
		msg, err = decodeBody[RequestEntityInfo](dec)
	case KindSendMessage:
		msg, err = decodeBody[SendMessage](dec)
	case KindIssueChallenge:
		msg, err = decodeBody[IssueChallenge](dec)
	case KindRespondToChallenge:
		msg, err = decodeBody[RespondToChallenge](dec)
	case KindDisconnect:
		msg, err = decodeBody[Disconnect](dec)
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown client kind %d", kind)}
	}
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("%d trailing bytes after %s", r.Len(), ClientKind(kind))}
	}
	return msg, nil
}

// DecodeServer parses a server→client payload.
func DecodeServer(data []byte) (msg ServerMessage, err error) {
	defer recoverDecode(&err)

	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	kind, err := dec.DecodeUint8()
	if err != nil {
		return nil, &DecodeError{Reason: "read kind", Err: err}
	}

	switch ServerKind(kind) {
	case KindConnectionAccepted:
		msg, err = decodeBody[ConnectionAccepted](dec)
	case KindDisconnectClient:
		msg, err = decodeBody[DisconnectClient](dec)
	case KindSpawnEntity:
		msg, err = decodeBody[SpawnEntity](dec)
	case KindDespawnEntity:
		msg, err = decodeBody[DespawnEntity](dec)
	case KindSendEntityInfo:
		msg, err = decodeBody[SendEntityInfo](dec)
	case KindChatMessage:
		msg, err = decodeBody[ChatMessage](dec)
	case KindPassAlongChallenge:
		msg, err = decodeBody[PassAlongChallenge](dec)
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown server kind %d", kind)}
	}
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("%d trailing bytes after %s", r.Len(), ServerKind(kind))}
	}
	return msg, nil
}

func decodeBody[T any](dec *msgpack.Decoder) (T, error) {
	var body T
	if err := dec.Decode(&body); err != nil {
		return body, &DecodeError{Reason: fmt.Sprintf("read %T body", body), Err: err}
	}
	return body, nil
}

// recoverDecode turns a panic inside the msgpack decoder into a DecodeError
// so a hostile packet can never take down the receiving loop.
func recoverDecode(err *error) {
	if rec := recover(); rec != nil {
		*err = &DecodeError{Reason: fmt.Sprintf("decoder panic: %v", rec)}
	}
}
