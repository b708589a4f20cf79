// attrd hosts attribute containers seeded from an attribute table, ticks
// their expiration queues on a fixed step and persists snapshots.
//
// Usage:
//
//	ATTRPOOL_CONFIG=config/attrd.yaml go run ./cmd/attrd
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

	"github.com/udisondev/attrpool/internal/attribute"
	"github.com/udisondev/attrpool/internal/config"
	"github.com/udisondev/attrpool/internal/data"
	"github.com/udisondev/attrpool/internal/db"
	"github.com/udisondev/attrpool/internal/simulation"
)

const ConfigPath = "config/attrd.yaml"

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
	if p := os.Getenv("ATTRPOOL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("attrd starting",
		"log_level", cfg.LogLevel,
		"tick_interval", cfg.TickInterval,
		"storage", cfg.Storage.Driver)

	table, err := data.LoadTable(cfg.TablePath)
	if err != nil {
		return fmt.Errorf("loading attribute table: %w", err)
	}

	effects := data.NewEffectTable()
	if cfg.EffectsPath != "" {
		if effects, err = data.LoadEffects(cfg.EffectsPath); err != nil {
			return fmt.Errorf("loading effects: %w", err)
		}
	}

	var store db.SnapshotStore
	if cfg.Storage.Driver != config.DriverNone {
		store, err = db.Open(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("opening snapshot store: %w", err)
		}
		defer store.Close()
		slog.Info("snapshot store ready", "driver", cfg.Storage.Driver)
	}

	loop, err := buildLoop(ctx, cfg, table, effects, store)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := loop.Start(gctx); err != nil {
			return fmt.Errorf("simulation loop: %w", err)
		}
		return nil
	})

	if store != nil {
		saver := simulation.NewAutosaver(loop, store, cfg.AutosaveInterval, cfg.SnapshotKeep)
		g.Go(func() error {
			if err := saver.Start(gctx); err != nil {
				return fmt.Errorf("autosaver: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// buildLoop creates one container per table record. A container restores its
// latest snapshot when one exists; otherwise it starts from the seed values
// with the initial effects applied.
func buildLoop(
	ctx context.Context,
	cfg config.Server,
	table *data.AttributeTable,
	effects *data.EffectTable,
	store db.SnapshotStore,
) (*simulation.Loop, error) {
	initial := make([]attribute.Effect, 0, len(cfg.InitialEffects))
	for _, name := range cfg.InitialEffects {
		e, err := effects.Effect(name)
		if err != nil {
			return nil, fmt.Errorf("resolving initial effects: %w", err)
		}
		initial = append(initial, e)
	}

	opts := attribute.Options{
		ServerAuthoritative: cfg.ServerAuthoritative,
		Authority:           attribute.StaticAuthority(cfg.Authority),
	}

	loop := simulation.NewLoop(cfg.TickInterval)
	restored := 0
	for _, rec := range table.Records {
		c := attribute.NewContainer(opts)
		rec.Seed(c)

		ok, err := restore(ctx, store, rec.Name, c)
		if err != nil {
			return nil, err
		}
		if ok {
			restored++
		} else {
			for _, e := range initial {
				c.ApplyEffect(e)
			}
		}

		c.Subscribe(logEvent(rec.Name))
		loop.Register(rec.Name, c)
	}

	slog.Info("containers ready",
		"count", loop.Count(),
		"restored", restored,
		"initial_effects", len(initial))
	return loop, nil
}

func restore(ctx context.Context, store db.SnapshotStore, owner string, c *attribute.Container) (bool, error) {
	if store == nil {
		return false, nil
	}
	snap, err := store.Load(ctx, owner)
	if errors.Is(err, db.ErrSnapshotNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restoring %q: %w", owner, err)
	}
	c.FromDictionary(snap)
	return true, nil
}

func logEvent(owner string) attribute.Listener {
	return func(ev attribute.Event) {
		switch ev.Kind {
		case attribute.EventAttributeChanged:
			slog.Debug("attribute changed",
				"owner", owner,
				"attribute", ev.Attribute,
				"previous", ev.Previous,
				"current", ev.Current)
		case attribute.EventBuffDequeued:
			slog.Debug("buff dequeued", "owner", owner, "buff", ev.Buff.String())
		}
	}
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
