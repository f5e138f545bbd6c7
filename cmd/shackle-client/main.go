package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/linchutchinson/shackle-mmo/internal/app"
	"github.com/linchutchinson/shackle-mmo/internal/client"
	"github.com/linchutchinson/shackle-mmo/internal/config"
	"github.com/linchutchinson/shackle-mmo/internal/game"
	"github.com/linchutchinson/shackle-mmo/internal/logging"
	"github.com/linchutchinson/shackle-mmo/internal/render"
	"github.com/linchutchinson/shackle-mmo/internal/transport"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/client.toml"
	if p := os.Getenv("SHACKLE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The terminal belongs to the UI; logs go to the file only.
	log := logging.NewFileOnly(cfg.Logging)
	defer log.Sync()

	ts, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := ts.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	screen := render.New(ts, 0, log)
	defer screen.Close()
	screen.Start()

	conn := client.New(client.UDPDialer(cfg.Client, transport.ConfigFrom(cfg.Network), log), log)
	session := game.NewSession(conn, log)

	next := &app.NextState{}
	next.Set(app.MainMenu)
	g := game.NewGame(session, next, screen)
	sched, err := app.NewScheduler(app.Startup, next, g.Schedules(screen), log)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("client started",
		zap.String("server", cfg.Client.ResolvedHost()),
		zap.Int("port", cfg.Client.ServerPort),
		zap.Duration("tick", cfg.Client.TickRate))

	err = app.NewDriver(sched, cfg.Client.TickRate).Run(ctx, screen.Show)

	if st := conn.Status().State; st == client.Connected || st == client.Connecting {
		if derr := conn.Disconnect(); derr != nil {
			log.Warn("disconnect on exit", zap.Error(derr))
		}
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("client stopped", zap.Stringer("state", sched.Current()))
	return nil
}
