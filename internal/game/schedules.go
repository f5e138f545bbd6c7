package game

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/linchutchinson/shackle-mmo/internal/app"
	"github.com/linchutchinson/shackle-mmo/internal/client"
	"github.com/linchutchinson/shackle-mmo/internal/validation"
	"go.uber.org/zap"
)

const (
	maxChatInput  = 120
	maxLoginInput = 32
)

// View draws one frame of a state. Implementations only read from Game.
type View interface {
	DrawMenu(g *Game)
	DrawOverworld(g *Game)
}

// Game holds everything the client's step lists share.
type Game struct {
	*Session
	Next  *app.NextState
	Keys  KeySource
	Input Sample

	Login  *Prompt
	ChatIn *Prompt

	// Validate is the advisory username check run before connecting. The
	// server repeats it authoritatively.
	Validate func(string) error
}

func NewGame(s *Session, next *app.NextState, keys KeySource) *Game {
	return &Game{
		Session:  s,
		Next:     next,
		Keys:     keys,
		Login:    NewPrompt(maxLoginInput),
		ChatIn:   NewPrompt(maxChatInput),
		Validate: validation.ValidateUsername,
	}
}

// Schedules builds the step lists for every client state.
func (g *Game) Schedules(view View) map[app.State]app.Schedules {
	return map[app.State]app.Schedules{
		app.MainMenu: {
			Enter: app.PhaseList{
				{Name: "menu.init", Run: g.enterMenu},
			},
			Tick: app.PhaseList{
				{Name: "menu.sample-input", Run: g.sampleInput},
				{Name: "menu.handle-input", Run: g.handleMenuInput},
				{Name: "menu.poll-server", Run: g.pollLogin},
			},
			Render: app.PhaseList{
				{Name: "menu.draw", Run: func() { view.DrawMenu(g) }},
			},
		},
		app.Overworld: {
			Enter: app.PhaseList{
				{Name: "overworld.init", Run: g.enterOverworld},
			},
			Tick: app.PhaseList{
				{Name: "overworld.sample-input", Run: g.sampleInput},
				{Name: "overworld.poll-server", Run: g.pollOverworld},
				{Name: "overworld.client-events", Run: func() { g.HandleClientEvents() }},
				{Name: "overworld.handle-input", Run: g.handleOverworldInput},
				{Name: "overworld.move-player", Run: g.movePlayer},
				{Name: "overworld.request-names", Run: g.requestNames},
			},
			Render: app.PhaseList{
				{Name: "overworld.draw", Run: func() { view.DrawOverworld(g) }},
			},
		},
	}
}

func (g *Game) sampleInput() {
	if g.Keys == nil {
		g.Input = Sample{}
		return
	}
	g.Input = Sample{Keys: g.Keys.Keys()}
}

func (g *Game) enterMenu() {
	g.Login.Reset()
	g.Login.Active = true
	g.ChatIn.Reset()
}

func (g *Game) handleMenuInput() {
	for _, k := range g.Input.Keys {
		if k.Kind == KeyEscape {
			g.Log.Info("quit requested from main menu")
			g.Next.Set(app.Quit)
			return
		}
		if g.Login.Apply(k) {
			g.login(g.Login.String())
		}
	}
}

func (g *Game) login(name string) {
	if err := g.Validate(name); err != nil {
		g.Log.Info("username rejected locally", zap.String("username", name), zap.Error(err))
		g.Notes.Error(err.Error())
		return
	}
	if err := g.Client.Connect(name); err != nil {
		g.Log.Error("connect failed", zap.String("username", name), zap.Error(err))
		g.Notes.Error(describeError(err))
		return
	}
	g.Login.Take()
	g.Log.Info("logging in", zap.String("username", name))
	g.Notes.Info(fmt.Sprintf("Connecting as %s...", name))
}

// pollLogin waits for the server's answer to a pending login.
func (g *Game) pollLogin() {
	if g.Client.Status().State != client.Connecting {
		return
	}
	if err := g.Client.PollServer(); err != nil {
		g.Log.Debug("poll server", zap.Error(err))
		return
	}
	switch st := g.Client.Status(); st.State {
	case client.Connected:
		g.Next.Set(app.Overworld)
	case client.Failed:
		g.Notes.Error(fmt.Sprintf("Disconnected: %s", st.Reason))
	}
}

func (g *Game) enterOverworld() {
	g.ResetWorld()
	g.ChatIn.Reset()
	g.Login.Reset()
	if name, ok := g.Client.Username(); ok {
		g.Notes.Info(fmt.Sprintf("Welcome to Shackle, %s", name))
	}
}

func (g *Game) pollOverworld() {
	if err := g.Client.PollServer(); err != nil {
		g.Log.Warn("lost the connection", zap.Error(err))
		g.Notes.Error(describeError(err))
		g.Next.Set(app.MainMenu)
		return
	}
	if st := g.Client.Status(); st.State == client.Failed {
		g.Notes.Error(fmt.Sprintf("Disconnected: %s", st.Reason))
		g.Next.Set(app.MainMenu)
	}
}

func (g *Game) handleOverworldInput() {
	for _, k := range g.Input.Keys {
		if g.ChatIn.Active {
			g.chatKey(k)
			continue
		}
		switch {
		case k.Kind == KeyEnter || isRune(k, 't'):
			g.ChatIn.Active = true
		case k.Kind == KeyEscape || isRune(k, 'q'):
			g.logout()
			return
		case isRune(k, 'c'):
			g.challengeNearest()
		case isRune(k, 'y'):
			g.answerChallenge(true)
		case isRune(k, 'n'):
			g.answerChallenge(false)
		}
	}
}

func (g *Game) chatKey(k Key) {
	if k.Kind == KeyEscape {
		g.ChatIn.Reset()
		return
	}
	if !g.ChatIn.Apply(k) {
		return
	}
	text := g.ChatIn.Take()
	g.ChatIn.Active = false
	if text == "" {
		return
	}
	if err := g.Client.SendChatMessage(text); err != nil {
		g.Log.Error("send chat", zap.Error(err))
		g.Notes.Error(describeError(err))
	}
}

func (g *Game) logout() {
	if err := g.Client.Disconnect(); err != nil {
		g.Log.Warn("logout", zap.Error(err))
	}
	g.Log.Info("logged out")
	g.Next.Set(app.MainMenu)
}

func (g *Game) challengeNearest() {
	target, ok := g.Nearest()
	if !ok {
		g.Notes.Info("Nobody nearby to challenge.")
		return
	}
	if err := g.Client.SendChallenge(target); err != nil {
		g.Log.Error("send challenge", zap.Stringer("target", target), zap.Error(err))
		g.Notes.Error(describeError(err))
		return
	}
	g.Notes.Info(fmt.Sprintf("You challenged %s.", g.displayName(target)))
}

func (g *Game) answerChallenge(accept bool) {
	note, ok := g.Notes.TakeChallenge()
	if !ok {
		return
	}
	if err := g.Client.RespondToChallenge(note.From, accept); err != nil {
		g.Log.Error("answer challenge", zap.Stringer("challenger", note.From), zap.Error(err))
		g.Notes.Error(describeError(err))
	}
}

func (g *Game) movePlayer() {
	if g.ChatIn.Active || !g.online() {
		return
	}
	g.MovePlayer(g.Input.Direction())
}

func (g *Game) requestNames() {
	if g.online() {
		g.RequestNames()
	}
}

// online is false once this tick has logged out or lost the server.
func (g *Game) online() bool {
	return g.Client.Status().State == client.Connected
}

func isRune(k Key, r rune) bool {
	return k.Kind == KeyRune && unicode.ToLower(k.Rune) == r
}

// describeError turns a session error into text for the notification line.
func describeError(err error) string {
	var netErr *client.NetworkError
	switch {
	case errors.Is(err, client.ErrDuplicateConnection):
		return "Already connected."
	case errors.Is(err, client.ErrNotConnected):
		return "Not connected to the server."
	case errors.As(err, &netErr):
		return fmt.Sprintf("Network error during %s.", netErr.Op)
	default:
		return err.Error()
	}
}
