package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/attrpool/internal/attribute"
)

// PostgresStore keeps attribute snapshots in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and returns a store. Migrations are not applied;
// see RunMigrations.
func New(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Pool returns the underlying pgx pool.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Save appends a snapshot for owner and returns its id.
func (s *PostgresStore) Save(ctx context.Context, owner string, snap attribute.Snapshot) (uuid.UUID, error) {
	payload, err := attribute.EncodeSnapshot(snap)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encoding snapshot of %q: %w", owner, err)
	}

	id := uuid.New()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO attribute_snapshots (id, owner, payload) VALUES ($1, $2, $3)`,
		id.String(), owner, string(payload),
	); err != nil {
		return uuid.Nil, fmt.Errorf("inserting snapshot of %q: %w", owner, err)
	}
	return id, nil
}

// SaveAll appends one snapshot per owner in a single transaction.
func (s *PostgresStore) SaveAll(ctx context.Context, snaps map[string]attribute.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("rollback failed", "error", err)
		}
	}()

	for _, owner := range slices.Sorted(maps.Keys(snaps)) {
		payload, err := attribute.EncodeSnapshot(snaps[owner])
		if err != nil {
			return fmt.Errorf("encoding snapshot of %q: %w", owner, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO attribute_snapshots (id, owner, payload) VALUES ($1, $2, $3)`,
			uuid.NewString(), owner, string(payload),
		); err != nil {
			return fmt.Errorf("inserting snapshot of %q: %w", owner, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing snapshots: %w", err)
	}
	return nil
}

// Load returns the latest snapshot of owner.
func (s *PostgresStore) Load(ctx context.Context, owner string) (attribute.Snapshot, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM attribute_snapshots WHERE owner = $1 ORDER BY seq DESC LIMIT 1`,
		owner,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("owner %q: %w", owner, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot of %q: %w", owner, err)
	}
	return decodePayload(owner, payload)
}

// List returns the stored snapshots of owner, newest first.
func (s *PostgresStore) List(ctx context.Context, owner string) ([]SnapshotMeta, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at FROM attribute_snapshots WHERE owner = $1 ORDER BY seq DESC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots of %q: %w", owner, err)
	}
	defer rows.Close()

	metas := make([]SnapshotMeta, 0, 8)
	for rows.Next() {
		var id string
		meta := SnapshotMeta{Owner: owner}
		if err := rows.Scan(&id, &meta.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if meta.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing snapshot id %q: %w", id, err)
		}
		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}
	return metas, nil
}

// Prune deletes all but the keep newest snapshots of owner. keep <= 0 keeps everything.
func (s *PostgresStore) Prune(ctx context.Context, owner string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM attribute_snapshots
		 WHERE owner = $1 AND seq NOT IN (
		     SELECT seq FROM attribute_snapshots WHERE owner = $1 ORDER BY seq DESC LIMIT $2
		 )`,
		owner, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots of %q: %w", owner, err)
	}
	return tag.RowsAffected(), nil
}
