package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/udisondev/attrpool/internal/attribute"
)

// finalSaveTimeout bounds the save that runs after shutdown begins.
const finalSaveTimeout = 10 * time.Second

// SnapshotSaver is the part of a snapshot store the autosaver needs.
type SnapshotSaver interface {
	SaveAll(ctx context.Context, snaps map[string]attribute.Snapshot) error
	Prune(ctx context.Context, owner string, keep int) (int64, error)
}

// Autosaver periodically persists the loop's snapshots.
type Autosaver struct {
	loop     *Loop
	store    SnapshotSaver
	interval time.Duration
	keep     int
}

// NewAutosaver saves every interval and prunes each owner down to keep
// snapshots. interval <= 0 saves only on shutdown; keep <= 0 never prunes.
func NewAutosaver(loop *Loop, store SnapshotSaver, interval time.Duration, keep int) *Autosaver {
	return &Autosaver{
		loop:     loop,
		store:    store,
		interval: interval,
		keep:     keep,
	}
}

// SaveNow persists one snapshot per owner, then prunes old ones.
func (a *Autosaver) SaveNow(ctx context.Context) error {
	snaps := a.loop.Snapshots()
	if len(snaps) == 0 {
		return nil
	}
	if err := a.store.SaveAll(ctx, snaps); err != nil {
		return fmt.Errorf("saving snapshots: %w", err)
	}

	pruned := int64(0)
	if a.keep > 0 {
		for owner := range snaps {
			n, err := a.store.Prune(ctx, owner, a.keep)
			if err != nil {
				return fmt.Errorf("pruning snapshots: %w", err)
			}
			pruned += n
		}
	}

	slog.Debug("snapshots saved", "owners", len(snaps), "pruned", pruned)
	return nil
}

// Start saves on every interval until ctx is canceled, then saves once more.
// Interval save failures are logged and retried on the next interval.
func (a *Autosaver) Start(ctx context.Context) error {
	var tick <-chan time.Time
	if a.interval > 0 {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	slog.Info("autosaver started", "interval", a.interval, "keep", a.keep)

	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSaveTimeout)
			defer cancel()
			if err := a.SaveNow(saveCtx); err != nil {
				return fmt.Errorf("final save: %w", err)
			}
			slog.Info("autosaver stopped, final snapshots saved")
			return nil

		case <-tick:
			if err := a.SaveNow(ctx); err != nil {
				slog.Error("autosave failed", "error", err)
			}
		}
	}
}
