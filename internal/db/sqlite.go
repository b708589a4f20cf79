package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/udisondev/attrpool/internal/attribute"
	"github.com/udisondev/attrpool/internal/db/migrations"
)

// SQLiteStore keeps attribute snapshots in a local SQLite file.
type SQLiteStore struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens the database at path and applies embedded migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if err := migrate(ctx, sqlDB, "sqlite3", migrations.SQLiteDir); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	slog.Info("opened sqlite snapshot store", "path", path)
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	return s.sqlDB.Close()
}

// Save appends a snapshot for owner and returns its id.
func (s *SQLiteStore) Save(ctx context.Context, owner string, snap attribute.Snapshot) (uuid.UUID, error) {
	payload, err := attribute.EncodeSnapshot(snap)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encoding snapshot of %q: %w", owner, err)
	}

	id := uuid.New()
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO attribute_snapshots (id, owner, payload, created_at) VALUES (?, ?, ?, ?)`,
		id.String(), owner, string(payload), toMillis(time.Now()),
	); err != nil {
		return uuid.Nil, fmt.Errorf("inserting snapshot of %q: %w", owner, err)
	}
	return id, nil
}

// SaveAll appends one snapshot per owner in a single transaction.
func (s *SQLiteStore) SaveAll(ctx context.Context, snaps map[string]attribute.Snapshot) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("rollback failed", "error", err)
		}
	}()

	now := toMillis(time.Now())
	for _, owner := range slices.Sorted(maps.Keys(snaps)) {
		payload, err := attribute.EncodeSnapshot(snaps[owner])
		if err != nil {
			return fmt.Errorf("encoding snapshot of %q: %w", owner, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attribute_snapshots (id, owner, payload, created_at) VALUES (?, ?, ?, ?)`,
			uuid.NewString(), owner, string(payload), now,
		); err != nil {
			return fmt.Errorf("inserting snapshot of %q: %w", owner, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshots: %w", err)
	}
	return nil
}

// Load returns the latest snapshot of owner.
func (s *SQLiteStore) Load(ctx context.Context, owner string) (attribute.Snapshot, error) {
	var payload string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT payload FROM attribute_snapshots WHERE owner = ? ORDER BY seq DESC LIMIT 1`,
		owner,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("owner %q: %w", owner, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot of %q: %w", owner, err)
	}
	return decodePayload(owner, []byte(payload))
}

// List returns the stored snapshots of owner, newest first.
func (s *SQLiteStore) List(ctx context.Context, owner string) ([]SnapshotMeta, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, created_at FROM attribute_snapshots WHERE owner = ? ORDER BY seq DESC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots of %q: %w", owner, err)
	}
	defer rows.Close()

	metas := make([]SnapshotMeta, 0, 8)
	for rows.Next() {
		var (
			id        string
			createdAt int64
		)
		if err := rows.Scan(&id, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parsing snapshot id %q: %w", id, err)
		}
		metas = append(metas, SnapshotMeta{ID: parsed, Owner: owner, CreatedAt: fromMillis(createdAt)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}
	return metas, nil
}

// Prune deletes all but the keep newest snapshots of owner. keep <= 0 keeps everything.
func (s *SQLiteStore) Prune(ctx context.Context, owner string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM attribute_snapshots
		 WHERE owner = ? AND seq NOT IN (
		     SELECT seq FROM attribute_snapshots WHERE owner = ? ORDER BY seq DESC LIMIT ?
		 )`,
		owner, owner, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots of %q: %w", owner, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned snapshots: %w", err)
	}
	return n, nil
}
