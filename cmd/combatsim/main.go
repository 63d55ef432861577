package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/castcore/internal/ai"
	"github.com/udisondev/castcore/internal/config"
	"github.com/udisondev/castcore/internal/data"
	"github.com/udisondev/castcore/internal/db"
	"github.com/udisondev/castcore/internal/journal"
	"github.com/udisondev/castcore/internal/model"
	"github.com/udisondev/castcore/internal/sim"
	"github.com/udisondev/castcore/internal/telemetry"
)

const ConfigPath = "config/combatsim.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv(config.EnvConfigPath); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadSimulation(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("castcore combat simulation starting",
		"log_level", cfg.LogLevel,
		"tick_rate", cfg.TickRate,
		"authority", cfg.Authority)

	catalog, err := data.LoadCatalog(cfg.CatalogPath, slog.Default())
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	slog.Info("catalog loaded",
		"path", cfg.CatalogPath,
		"abilities", len(catalog.AbilityIDs()),
		"effects", len(catalog.EffectIDs()),
		"fingerprint", catalog.Fingerprint())

	tracer, shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			slog.Error("telemetry shutdown", "error", err)
		}
	}()

	store, err := openJournal(ctx, cfg.Journal)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("closing journal store", "error", err)
		}
	}()
	writer := journal.NewWriter(store,
		journal.WithQueueSize(cfg.Journal.QueueSize),
		journal.WithBatchSize(cfg.Journal.BatchSize),
		journal.WithFlushInterval(cfg.Journal.FlushInterval),
	)

	aiMgr := ai.NewTickManager(slog.Default())
	simulation := sim.New(catalog,
		sim.WithAuthority(cfg.Authority),
		sim.WithJournal(writer),
		sim.WithTracer(tracer),
		sim.WithBeforeStep(aiMgr.TickAll),
	)
	if !simulation.IsAuthority() {
		return fmt.Errorf("combatsim runs the authoritative simulation: %w", sim.ErrNotAuthority)
	}

	for _, entry := range cfg.Actors {
		a, err := simulation.Spawn(actorConfig(entry))
		if err != nil {
			return fmt.Errorf("spawning scenario: %w", err)
		}
		if len(entry.Rotation) > 0 {
			id := a.ObjectID()
			aiMgr.Register(id, ai.NewRotationAI(id, entry.Rotation, simulation, slog.Default()))
		}
	}
	slog.Info("scenario spawned", "actors", len(cfg.Actors), "ai_controllers", aiMgr.Count())

	if cfg.RunFor > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, cfg.RunFor)
		defer stop()
	}

	// The writer outlives the simulation loop so the last tick's events are drained.
	writerCtx, stopWriter := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWriter()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting journal writer", "driver", cfg.Journal.Driver)
		if err := writer.Run(writerCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("journal writer: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		defer stopWriter()
		slog.Info("starting simulation loop", "interval", cfg.TickRate)
		if err := simulation.Run(gctx, cfg.TickRate); err != nil && !isShutdown(err) {
			return fmt.Errorf("simulation: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logSummary(simulation, writer)
	return nil
}

type journalStore interface {
	journal.Store
	Close() error
}

type discardStore struct{}

func (discardStore) InsertEvents(context.Context, []journal.Event) error { return nil }
func (discardStore) Close() error                                        { return nil }

func openJournal(ctx context.Context, cfg config.JournalConfig) (journalStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return db.OpenPostgres(ctx, cfg.Database.DSN())
	case config.DriverSQLite:
		return db.OpenSQLite(ctx, cfg.SQLitePath)
	case config.DriverNone:
		return discardStore{}, nil
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
}

func actorConfig(e config.ActorEntry) model.ActorConfig {
	return model.ActorConfig{
		ID:             e.ID,
		Name:           e.Name,
		Team:           e.Team,
		Level:          e.Level,
		MaxHP:          e.MaxHP,
		MaxEnergy:      e.MaxEnergy,
		Position:       model.Pt(e.X, e.Y),
		Radius:         e.Radius,
		Abilities:      e.Abilities,
		DefaultAbility: e.Default,
	}
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func logSummary(s *sim.Simulation, w *journal.Writer) {
	for _, a := range s.Actors() {
		slog.Info("actor final state",
			"actor", a.ObjectID(),
			"name", a.Name(),
			"alive", a.IsAlive(),
			"hp", a.HP(),
			"energy", a.Energy())
	}
	slog.Info("simulation finished",
		"ticks", s.Tick(),
		"journal_written", w.Written(),
		"journal_dropped", w.Dropped())
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
