package transport

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"hash"

	"golang.org/x/crypto/blake2b"
)

/*
Datagram layout, big endian:

	magic   uint32
	kind    uint8
	seq     uint32   // reliable and ack frames only, zero otherwise
	tag     [8]byte  // keyed BLAKE2b over magic|kind|seq|payload
	payload ...
*/

const (
	magic     uint32 = 0x53484b4c // "SHKL"
	tagSize          = 8
	headerLen        = 4 + 1 + 4 + tagSize
)

type frameKind uint8

const (
	frameUnreliable frameKind = iota + 1
	frameReliable
	frameAck
	frameHeartbeat
)

var be = binary.BigEndian

var (
	errShortFrame = errors.New("short frame")
	errBadMagic   = errors.New("bad magic")
	errBadKind    = errors.New("bad frame kind")
	errBadTag     = errors.New("bad frame tag")
)

type frame struct {
	kind    frameKind
	seq     uint32
	payload []byte
}

// sealer writes and checks frame tags. It is not safe for concurrent use;
// each goroutine that builds or parses frames owns one.
type sealer struct {
	h hash.Hash
}

func newSealer(key []byte) *sealer {
	h, err := blake2b.New(tagSize, key)
	if err != nil {
		// Only fails for keys over 64 bytes, which Config.normalize prevents.
		panic(err)
	}
	return &sealer{h: h}
}

func (s *sealer) tag(dst, header, payload []byte) {
	s.h.Reset()
	s.h.Write(header)
	s.h.Write(payload)
	s.h.Sum(dst[:0])
}

func (s *sealer) encode(f frame) []byte {
	buf := make([]byte, headerLen+len(f.payload))
	be.PutUint32(buf[0:4], magic)
	buf[4] = byte(f.kind)
	be.PutUint32(buf[5:9], f.seq)
	copy(buf[headerLen:], f.payload)
	s.tag(buf[9:headerLen], buf[:9], f.payload)
	return buf
}

// decode validates b and returns a frame whose payload is a copy.
func (s *sealer) decode(b []byte) (frame, error) {
	if len(b) < headerLen {
		return frame{}, errShortFrame
	}
	if be.Uint32(b[0:4]) != magic {
		return frame{}, errBadMagic
	}
	kind := frameKind(b[4])
	if kind < frameUnreliable || kind > frameHeartbeat {
		return frame{}, errBadKind
	}
	var want [tagSize]byte
	s.tag(want[:], b[:9], b[headerLen:])
	if subtle.ConstantTimeCompare(want[:], b[9:headerLen]) != 1 {
		return frame{}, errBadTag
	}
	return frame{
		kind:    kind,
		seq:     be.Uint32(b[5:9]),
		payload: append([]byte(nil), b[headerLen:]...),
	}, nil
}
