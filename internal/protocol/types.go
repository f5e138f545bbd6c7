package protocol

import "fmt"

// NetworkID identifies a networked object for its whole connected lifetime.
// Allocated by the server; never reused while the object is live.
type NetworkID uint64

func (id NetworkID) String() string {
	return fmt.Sprintf("net#%d", uint64(id))
}

// Archetype is the kind of networked object being spawned.
type Archetype uint8

const (
	ArchetypePlayer Archetype = iota + 1
)

func (a Archetype) String() string {
	switch a {
	case ArchetypePlayer:
		return "Player"
	default:
		return fmt.Sprintf("Archetype(%d)", uint8(a))
	}
}

// Vec2 is a position or offset in play-area units.
type Vec2 struct {
	_msgpack struct{} `msgpack:",as_array"`
	X        float32
	Y        float32
}

func V2(x, y float32) Vec2 {
	return Vec2{X: x, Y: y}
}

func (v Vec2) Add(o Vec2) Vec2       { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2       { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vec2) Scale(s float32) Vec2  { return Vec2{X: v.X * s, Y: v.Y * s} }
func (v Vec2) IsZero() bool          { return v.X == 0 && v.Y == 0 }
func (v Vec2) Equal(o Vec2) bool     { return v.X == o.X && v.Y == o.Y }
func (v Vec2) String() string        { return fmt.Sprintf("(%.1f, %.1f)", v.X, v.Y) }
func (v Vec2) DistSq(o Vec2) float32 { d := v.Sub(o); return d.X*d.X + d.Y*d.Y }

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	Position Vec2
	Size     Vec2
}

func NewRect(x, y, w, h float32) Rect {
	return Rect{Position: V2(x, y), Size: V2(w, h)}
}

func (r Rect) Left() float32   { return r.Position.X }
func (r Rect) Right() float32  { return r.Position.X + r.Size.X }
func (r Rect) Top() float32    { return r.Position.Y }
func (r Rect) Bottom() float32 { return r.Position.Y + r.Size.Y }

func (r Rect) Center() Vec2 {
	return r.Position.Add(r.Size.Scale(0.5))
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Left() && p.X <= r.Right() && p.Y >= r.Top() && p.Y <= r.Bottom()
}

// Clamp returns p moved onto the nearest point inside r.
func (r Rect) Clamp(p Vec2) Vec2 {
	return Vec2{
		X: clamp(p.X, r.Left(), r.Right()),
		Y: clamp(p.Y, r.Top(), r.Bottom()),
	}
}

func clamp(v, lo, hi float32) float32 {
	// NaN compares false against everything and would slip through.
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PlayArea is the fixed region the server keeps every player inside.
var PlayArea = NewRect(0, 0, 800, 600)

// ServerPort is the well-known port the server listens on.
const ServerPort = 27008

// SystemAuthor is the chat author used for server announcements.
const SystemAuthor = "SERVER"
