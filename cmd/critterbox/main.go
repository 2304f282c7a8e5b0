// Command critterbox runs the terminal virtual pet.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/talgya/critterbox/internal/config"
	"github.com/talgya/critterbox/internal/creature"
	"github.com/talgya/critterbox/internal/engine"
	"github.com/talgya/critterbox/internal/persistence"
	"github.com/talgya/critterbox/internal/timeconv"
	"github.com/talgya/critterbox/internal/ui"
)

// saveEvery is how often the snapshot is written while running; a
// final save also happens on clean shutdown.
const saveEvery = 5 * time.Minute

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := os.Getenv("CRITTERBOX_CONFIG")
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	dbPath := os.Getenv("CRITTERBOX_DB")
	if dbPath == "" {
		dbPath = "data/critterbox.db"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	zone, err := cfg.ZoneRule()
	if err != nil {
		slog.Error("invalid zone rule", "error", err)
		os.Exit(1)
	}
	sched, err := cfg.Schedule()
	if err != nil {
		slog.Error("invalid schedule", "error", err)
		os.Exit(1)
	}

	clock := timeconv.SystemClock{}
	eng := engine.New(zone, sched, cfg.Channels(), clock.Now())

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		slog.Error("failed to create data directory", "path", filepath.Dir(dbPath), "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if snap, ok, err := db.LoadSnapshot(); err != nil {
		slog.Error("failed to load snapshot", "error", err)
		os.Exit(1)
	} else if ok {
		eng.Restore(snap)
		slog.Info("state restored",
			"last_update", int64(snap.LastUpdate),
			"needs", len(snap.Levels))
	} else {
		slog.Info("no saved state, starting fresh", "needs", len(cfg.Needs))
	}

	// Catch up on time spent closed, then render from there.
	eng.Advance(clock.Now())

	// Action names typed on stdin are funneled into the tick loop so
	// every engine call happens on one goroutine.
	actions := make(chan string, 8)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			name := strings.TrimSpace(strings.ToLower(scanner.Text()))
			if name != "" {
				actions <- name
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	renderer := ui.New(os.Stdout, cfg.Character)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	lastSave := time.Now()

	fmt.Printf("critterbox: type a need name (e.g. %q) and press enter when you've done it.\n", cfg.Needs[0].Name)
	slog.Info("starting", "character", cfg.Character, "zone", zone.Name, "db", dbPath)

	for {
		select {
		case <-ticker.C:
			now := clock.Now()
			eng.Advance(now)
			state := creature.Derive(eng.Needs())
			renderer.Render(state, eng.Needs(), now, zone, sched)

			if time.Since(lastSave) >= saveEvery {
				save(db, eng)
				lastSave = time.Now()
			}

		case name := <-actions:
			result, err := eng.RecordAction(name, clock.Now())
			switch {
			case err != nil:
				slog.Warn("action rejected", "need", name, "error", err)
			case result == engine.ActionIgnored:
				slog.Info("action outside schedule window", "need", name)
			default:
				slog.Info("action accepted", "need", name)
			}

		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig)
			eng.Advance(clock.Now())
			save(db, eng)
			fmt.Println("\nBye! Your critter will be waiting.")
			return
		}
	}
}

func save(db *persistence.DB, eng *engine.Engine) {
	if err := db.SaveSnapshot(eng.Snapshot()); err != nil {
		slog.Error("snapshot save failed", "error", err)
		return
	}
	if err := db.AppendJournal(eng.DrainEvents()); err != nil {
		slog.Error("journal save failed", "error", err)
	}
}
