package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/attrpool/internal/attribute"
	"github.com/udisondev/attrpool/internal/config"
)

// ErrSnapshotNotFound is returned when an owner has no stored snapshot.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotMeta describes one stored snapshot without its payload.
type SnapshotMeta struct {
	ID        uuid.UUID
	Owner     string
	CreatedAt time.Time
}

// SnapshotStore persists container snapshots per owner. Every save appends a
// new row; Load returns the most recent one.
type SnapshotStore interface {
	Save(ctx context.Context, owner string, snap attribute.Snapshot) (uuid.UUID, error)
	SaveAll(ctx context.Context, snaps map[string]attribute.Snapshot) error
	Load(ctx context.Context, owner string) (attribute.Snapshot, error)
	List(ctx context.Context, owner string) ([]SnapshotMeta, error)
	Prune(ctx context.Context, owner string, keep int) (int64, error)
	Close() error
}

// Open migrates and opens the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (SnapshotStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		dsn := cfg.Database.DSN()
		if err := RunMigrations(ctx, dsn); err != nil {
			return nil, err
		}
		return New(ctx, dsn)
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("opening snapshot store: unsupported driver %q", cfg.Driver)
	}
}

// decodePayload reads a stored snapshot leniently so rows written by older
// versions still load.
func decodePayload(owner string, payload []byte) (attribute.Snapshot, error) {
	snap, err := attribute.DecodeSnapshot(payload, attribute.DecodeLenient)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot of %q: %w", owner, err)
	}
	return snap, nil
}
