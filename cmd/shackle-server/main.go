package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/linchutchinson/shackle-mmo/internal/config"
	"github.com/linchutchinson/shackle-mmo/internal/core/event"
	coresys "github.com/linchutchinson/shackle-mmo/internal/core/system"
	"github.com/linchutchinson/shackle-mmo/internal/logging"
	"github.com/linchutchinson/shackle-mmo/internal/persist"
	"github.com/linchutchinson/shackle-mmo/internal/scripting"
	"github.com/linchutchinson/shackle-mmo/internal/server"
	"github.com/linchutchinson/shackle-mmo/internal/transport"
	"github.com/linchutchinson/shackle-mmo/internal/validation"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              Shackle  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", name)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printSkip(msg string) {
	fmt.Printf("  \033[90m-\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("SHACKLE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Username rules and announcement scripts
	printSection("content")
	validator := validation.Default()
	if cfg.Validation.ProfanityFile != "" {
		validator, err = validation.LoadFile(cfg.Validation.ProfanityFile)
		if err != nil {
			return fmt.Errorf("load profanity list: %w", err)
		}
	}
	printOK(fmt.Sprintf("username filter (%d words)", len(validator.Words())))

	scripts, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer scripts.Close()
	printOK(fmt.Sprintf("scripts from %s (on_join: %t, on_leave: %t)",
		cfg.Scripting.Dir, scripts.HasHook("on_join"), scripts.HasHook("on_leave")))
	fmt.Println()

	// 4. Optional session journal
	printSection("journal")
	bus := event.NewBus()
	var journal *persist.Journal
	dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	db, err := persist.Open(dbCtx, cfg.Database, log)
	cancel()
	switch {
	case errors.Is(err, persist.ErrDisabled):
		printSkip("database disabled")
	case err != nil:
		return fmt.Errorf("database: %w", err)
	default:
		defer db.Close()
		journal = persist.NewJournal(persist.NewJournalRepo(db), cfg.Database, log)
		defer journal.Close()
		journal.Attach(bus)
		printOK(fmt.Sprintf("journal run %s", journal.RunID()))
	}
	fmt.Println()

	// 5. Transport
	sock, err := transport.Bind(cfg.Server.BindAddress, transport.ConfigFrom(cfg.Network), log)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	defer sock.Close()
	sock.Start()

	// 6. Registry, router and systems
	metrics := server.NewMetrics()
	reg := server.NewRegistry(server.Deps{
		Outbox:    server.NewTransportOutbox(sock),
		Validator: validator,
		Announcer: scripts,
		Bus:       bus,
		Metrics:   metrics,
		Log:       log,
	})
	router := server.RegistryRouter(reg, metrics, log)

	runner := coresys.NewRunner()
	runner.Register(server.NewInputSystem(sock, router, reg, cfg.Network.MaxEventsPerTick, cfg.RateLimit, metrics, log))
	runner.Register(server.NewEventDispatchSystem(bus))
	runner.Register(server.NewInfoRequestSystem(reg))
	runner.Register(server.NewPollSystem(sock))

	// 7. Status endpoint
	var status *http.Server
	if cfg.Server.StatusAddress != "" {
		status = &http.Server{
			Addr: cfg.Server.StatusAddress,
			Handler: server.StatusHandler(metrics, func() map[string]any {
				st := sock.Stats()
				extra := map[string]any{
					"datagrams_sent":     st.Sent,
					"datagrams_received": st.Received,
					"resent":             st.Resent,
					"bad_frames":         st.BadFrames,
					"events_dropped":     st.Dropped,
					"uptime_s":           time.Now().Unix() - cfg.Server.StartTime,
				}
				if journal != nil {
					written, dropped := journal.Stats()
					extra["journal_written"] = written
					extra["journal_dropped"] = dropped
				}
				return extra
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := status.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("status server", zap.Error(err))
			}
		}()
	}

	// 8. Game loop
	ticker := time.NewTicker(cfg.Server.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", sock.LocalAddr()))
	printReady(fmt.Sprintf("tick %s, %d systems", cfg.Server.TickRate, runner.Len()))
	if status != nil {
		printReady(fmt.Sprintf("status on http://%s/metrics", cfg.Server.StatusAddress))
	}
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			metrics.AddTick(runner.Tick(cfg.Server.TickRate))
		case <-ctx.Done():
			log.Info("shutting down", zap.Int("players", reg.ClientCount()))
			if status != nil {
				stopStatus(status, 5*time.Second, log)
			}
			log.Info("server stopped")
			return nil
		}
	}
}

// stopStatus drains in-flight status requests for up to timeout.
func stopStatus(srv *http.Server, timeout time.Duration, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("status server shutdown", zap.Error(err))
	}
}
