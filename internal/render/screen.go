// Package render draws the client onto a terminal and turns terminal key
// events into game.Key values.
package render

import (
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/linchutchinson/shackle-mmo/internal/game"
	"go.uber.org/zap"
)

// Screen owns the terminal. Drawing happens on the tick goroutine; key
// events are read on a separate goroutine and handed over through a bounded
// channel.
type Screen struct {
	screen tcell.Screen
	keys   chan game.Key
	drops  atomic.Uint64
	log    *zap.Logger

	once sync.Once
	done chan struct{}
}

// New wraps an initialised tcell screen. queue bounds the number of key
// presses buffered between ticks.
func New(screen tcell.Screen, queue int, log *zap.Logger) *Screen {
	if queue <= 0 {
		queue = 64
	}
	return &Screen{
		screen: screen,
		keys:   make(chan game.Key, queue),
		log:    log,
		done:   make(chan struct{}),
	}
}

// Start launches the input reader. It exits when the screen is finalised.
func (s *Screen) Start() {
	go s.readInput()
}

func (s *Screen) readInput() {
	defer close(s.done)
	for {
		ev := s.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventResize:
			s.screen.Sync()
		case *tcell.EventKey:
			if k, ok := translateKey(ev); ok {
				s.push(k)
			}
		}
	}
}

// push never blocks; a full queue drops the key.
func (s *Screen) push(k game.Key) {
	select {
	case s.keys <- k:
	default:
		if s.drops.Add(1)%64 == 1 {
			s.log.Warn("key queue full, dropping input", zap.Uint64("dropped", s.drops.Load()))
		}
	}
}

// Keys drains the key presses received since the last call.
func (s *Screen) Keys() []game.Key {
	var out []game.Key
	for {
		select {
		case k := <-s.keys:
			out = append(out, k)
		default:
			return out
		}
	}
}

// Dropped reports how many key presses were lost to a full queue.
func (s *Screen) Dropped() uint64 { return s.drops.Load() }

func (s *Screen) Show() { s.screen.Show() }

// Close restores the terminal. The input reader exits once PollEvent
// returns nil; Done reports when it has.
func (s *Screen) Close() {
	s.once.Do(func() {
		s.screen.Fini()
	})
}

// Done is closed once the input reader has exited.
func (s *Screen) Done() <-chan struct{} { return s.done }

func translateKey(ev *tcell.EventKey) (game.Key, bool) {
	switch ev.Key() {
	case tcell.KeyRune:
		return game.RuneKey(ev.Rune()), true
	case tcell.KeyEnter:
		return game.Key{Kind: game.KeyEnter}, true
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return game.Key{Kind: game.KeyBackspace}, true
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return game.Key{Kind: game.KeyEscape}, true
	case tcell.KeyUp:
		return game.Key{Kind: game.KeyUp}, true
	case tcell.KeyDown:
		return game.Key{Kind: game.KeyDown}, true
	case tcell.KeyLeft:
		return game.Key{Kind: game.KeyLeft}, true
	case tcell.KeyRight:
		return game.Key{Kind: game.KeyRight}, true
	case tcell.KeyTab:
		return game.Key{Kind: game.KeyTab}, true
	}
	return game.Key{}, false
}
