package render

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/linchutchinson/shackle-mmo/internal/core/ecs"
	"github.com/linchutchinson/shackle-mmo/internal/game"
	"github.com/linchutchinson/shackle-mmo/internal/protocol"
	"github.com/mattn/go-runewidth"
)

// Rows reserved below the play area: chat log, prompt, notification and
// key hints.
const footerRows = game.MaxChatLines + 3

var (
	styleBase      = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
	styleTitle     = styleBase.Foreground(tcell.ColorYellow).Bold(true)
	styleBorder    = styleBase.Foreground(tcell.ColorDimGray)
	styleLocal     = styleBase.Foreground(tcell.ColorWhite).Bold(true)
	styleRemote    = styleBase.Foreground(tcell.ColorGreen)
	styleName      = styleBase.Foreground(tcell.ColorSilver)
	styleHint      = styleBase.Foreground(tcell.ColorGray)
	styleError     = styleBase.Foreground(tcell.ColorRed)
	styleChallenge = styleBase.Foreground(tcell.ColorOrange).Bold(true)
	styleInfo      = styleBase.Foreground(tcell.ColorAqua)
)

// DrawMenu renders the login screen.
func (s *Screen) DrawMenu(g *game.Game) {
	s.screen.Clear()
	w, h := s.screen.Size()
	s.fill(w, h)

	top := h/2 - 4
	s.centered(w, top, "Shackle MMO", styleTitle)
	s.centered(w, top+2, "Enter a username to log in", styleHint)

	field := fmt.Sprintf("Username: %s_", g.Login.String())
	s.centered(w, top+4, field, styleBase)
	s.centered(w, top+6, g.Client.Status().String(), styleHint)
	if note, ok := g.Notes.Latest(); ok {
		s.centered(w, top+8, note.Text, noteStyle(note))
	}
	s.text(0, h-1, w, "Enter: log in   Esc: quit", styleHint)
}

// DrawOverworld renders the play area, entities, chat and prompt.
func (s *Screen) DrawOverworld(g *game.Game) {
	s.screen.Clear()
	w, h := s.screen.Size()
	s.fill(w, h)

	name, _ := g.Client.Username()
	header := fmt.Sprintf("Shackle | %s | %s | players: %d", name, g.Client.Status(), g.Entities.Len())
	s.text(0, 0, w, header, styleTitle)

	area := playRect(w, h)
	s.border(area)
	s.entities(g, area)

	y := area.y + area.h + 1
	for _, line := range g.Chat.Lines() {
		s.text(1, y, w-1, line, styleBase)
		y++
	}
	y = h - 3
	if g.ChatIn.Active {
		s.text(0, y, w, "> "+g.ChatIn.String()+"_", styleBase)
	}
	if note, ok := g.Notes.Latest(); ok {
		s.text(0, h-2, w, note.Text, noteStyle(note))
	}
	s.text(0, h-1, w, "WASD/arrows: move  Enter: chat  c: challenge  y/n: answer  q: log out", styleHint)
}

type cellRect struct {
	x, y, w, h int
}

// playRect is the interior of the play-area box: below the header, above
// the footer.
func playRect(w, h int) cellRect {
	r := cellRect{x: 1, y: 2, w: w - 2, h: h - 3 - footerRows}
	if r.w < 1 {
		r.w = 1
	}
	if r.h < 1 {
		r.h = 1
	}
	return r
}

// toCell maps a play-area position onto the interior of r.
func toCell(p protocol.Vec2, r cellRect) (int, int) {
	p = protocol.PlayArea.Clamp(p)
	fx := (p.X - protocol.PlayArea.Left()) / protocol.PlayArea.Size.X
	fy := (p.Y - protocol.PlayArea.Top()) / protocol.PlayArea.Size.Y
	return r.x + int(fx*float32(r.w-1)+0.5), r.y + int(fy*float32(r.h-1)+0.5)
}

func (s *Screen) entities(g *game.Game, area cellRect) {
	_, me, hasPlayer := g.World.Player()
	g.World.Glyphs.Each(func(e ecs.Entity, glyph *game.Glyph) {
		pos, ok := g.World.Positions.Get(e)
		if !ok {
			return
		}
		x, y := toCell(*pos, area)
		style := styleRemote
		if glyph.Local {
			style = styleLocal
		}
		s.screen.SetContent(x, y, glyph.Rune, nil, style)

		name, ok := g.World.Names.Get(e)
		if !ok {
			return
		}
		if !glyph.Local && (!hasPlayer || me.DistSq(*pos) > name.Radius*name.Radius) {
			return
		}
		label := runewidth.Truncate(name.Name, area.w, "…")
		lx := x - runewidth.StringWidth(label)/2
		if lx < area.x {
			lx = area.x
		}
		ly := y - 1
		if ly < area.y {
			ly = y + 1
		}
		s.text(lx, ly, area.x+area.w-lx, label, styleName)
	})
}

func (s *Screen) border(r cellRect) {
	left, right := r.x-1, r.x+r.w
	top, bottom := r.y-1, r.y+r.h
	for x := left + 1; x < right; x++ {
		s.screen.SetContent(x, top, '─', nil, styleBorder)
		s.screen.SetContent(x, bottom, '─', nil, styleBorder)
	}
	for y := top + 1; y < bottom; y++ {
		s.screen.SetContent(left, y, '│', nil, styleBorder)
		s.screen.SetContent(right, y, '│', nil, styleBorder)
	}
	s.screen.SetContent(left, top, '┌', nil, styleBorder)
	s.screen.SetContent(right, top, '┐', nil, styleBorder)
	s.screen.SetContent(left, bottom, '└', nil, styleBorder)
	s.screen.SetContent(right, bottom, '┘', nil, styleBorder)
}

func (s *Screen) fill(w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s.screen.SetContent(x, y, ' ', nil, styleBase)
		}
	}
}

// text draws str from (x, y), cut to width columns. Wide runes take two
// cells.
func (s *Screen) text(x, y, width int, str string, style tcell.Style) {
	if width <= 0 {
		return
	}
	str = runewidth.Truncate(str, width, "…")
	for _, r := range str {
		s.screen.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
}

func (s *Screen) centered(w, y int, str string, style tcell.Style) {
	str = runewidth.Truncate(str, w, "…")
	x := (w - runewidth.StringWidth(str)) / 2
	if x < 0 {
		x = 0
	}
	s.text(x, y, w-x, str, style)
}

func noteStyle(n game.Notification) tcell.Style {
	switch n.Kind {
	case game.NoticeError:
		return styleError
	case game.NoticeChallenge:
		return styleChallenge
	default:
		return styleInfo
	}
}
