package game

import (
	"unicode"

	"github.com/linchutchinson/shackle-mmo/internal/protocol"
)

type KeyKind int

const (
	KeyRune KeyKind = iota
	KeyEnter
	KeyBackspace
	KeyEscape
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyTab
)

// Key is one key press, decoupled from the terminal library.
type Key struct {
	Kind KeyKind
	Rune rune // set for KeyRune
}

func RuneKey(r rune) Key { return Key{Kind: KeyRune, Rune: r} }

// KeySource hands over the key presses received since the last call. It
// must not block.
type KeySource interface {
	Keys() []Key
}

// Sample is the input gathered for one tick.
type Sample struct {
	Keys []Key
}

// Direction folds movement keys into a unit-axis vector. Opposite keys in
// the same tick cancel out.
func (s Sample) Direction() protocol.Vec2 {
	var left, right, up, down bool
	for _, k := range s.Keys {
		switch k.Kind {
		case KeyLeft:
			left = true
		case KeyRight:
			right = true
		case KeyUp:
			up = true
		case KeyDown:
			down = true
		case KeyRune:
			switch unicode.ToLower(k.Rune) {
			case 'a':
				left = true
			case 'd':
				right = true
			case 'w':
				up = true
			case 's':
				down = true
			}
		}
	}
	return protocol.V2(axis(left, right), axis(up, down))
}

func axis(neg, pos bool) float32 {
	switch {
	case neg && !pos:
		return -1
	case pos && !neg:
		return 1
	default:
		return 0
	}
}

// Prompt is a single-line text editor.
type Prompt struct {
	buf    []rune
	limit  int
	Active bool
}

func NewPrompt(limit int) *Prompt {
	return &Prompt{limit: limit}
}

// Apply edits the buffer with k. It reports true when k was Enter.
func (p *Prompt) Apply(k Key) (submitted bool) {
	switch k.Kind {
	case KeyRune:
		if unicode.IsPrint(k.Rune) && (p.limit <= 0 || len(p.buf) < p.limit) {
			p.buf = append(p.buf, k.Rune)
		}
	case KeyBackspace:
		if n := len(p.buf); n > 0 {
			p.buf = p.buf[:n-1]
		}
	case KeyEnter:
		return true
	}
	return false
}

func (p *Prompt) String() string { return string(p.buf) }

// Take returns the text and clears the buffer.
func (p *Prompt) Take() string {
	s := string(p.buf)
	p.buf = p.buf[:0]
	return s
}

func (p *Prompt) Reset() {
	p.buf = p.buf[:0]
	p.Active = false
}
