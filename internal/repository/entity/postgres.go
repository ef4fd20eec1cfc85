package entity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redwatch/redwatch/internal/domain/watch"
)

// SQL statements for the Postgres-backed store.
const (
	queryCreateSchema = `
CREATE TABLE IF NOT EXISTS entities (
	entity_id       text PRIMARY KEY,
	fields          jsonb NOT NULL,
	active          boolean NOT NULL,
	alarm_active    boolean NOT NULL,
	first_seen_at   timestamptz NOT NULL,
	last_seen_at    timestamptz NOT NULL,
	last_changed_at timestamptz NOT NULL,
	fetched_at      timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS entities_last_seen_at_idx ON entities (last_seen_at DESC)`

	// queryLockEntity claims the row for the duration of the transaction,
	// which is what makes the read-modify-write atomic per entity. Rows of
	// other entities stay untouched.
	queryLockEntity = `
SELECT entity_id, fields, active, alarm_active, first_seen_at, last_seen_at, last_changed_at, fetched_at
FROM entities WHERE entity_id = $1 FOR UPDATE`

	queryInsertEntity = `
INSERT INTO entities (entity_id, fields, active, alarm_active, first_seen_at, last_seen_at, last_changed_at, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	queryUpdateEntity = `
UPDATE entities
SET fields = $2, active = $3, alarm_active = $4, last_seen_at = $5, last_changed_at = $6, fetched_at = $7
WHERE entity_id = $1`

	queryGetEntity = `
SELECT entity_id, fields, active, alarm_active, first_seen_at, last_seen_at, last_changed_at, fetched_at
FROM entities WHERE entity_id = $1`

	queryListEntities = `
SELECT entity_id, fields, active, alarm_active, first_seen_at, last_seen_at, last_changed_at, fetched_at
FROM entities ORDER BY last_seen_at DESC LIMIT $1`
)

// PostgresRepository stores entities in Postgres. Per-entity atomicity comes
// from a row lock inside a short transaction; the transition itself is the
// same pure function the in-memory store runs.
type PostgresRepository struct {
	// pool is the shared connection pool.
	pool *pgxpool.Pool
	// policy tunes the apply semantics.
	policy watch.Policy
}

// NewPostgresRepository connects to Postgres and bootstraps the schema.
func NewPostgresRepository(ctx context.Context, dsn string, policy watch.Policy) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to store: %w", err)
	}

	if _, err = pool.Exec(ctx, queryCreateSchema); err != nil {
		pool.Close()

		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &PostgresRepository{
		pool:   pool,
		policy: policy,
	}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// Get returns one entity or ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, entityID string) (*watch.StoredEntity, error) {
	ent, err := scanEntity(r.pool.QueryRow(ctx, queryGetEntity, entityID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("get entity %s: %w", entityID, err)
	}

	return ent, nil
}

// List returns up to limit entities ordered by LastSeenAt descending.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*watch.StoredEntity, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.pool.Query(ctx, queryListEntities, limit)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}

	defer rows.Close()

	var entities []*watch.StoredEntity

	for rows.Next() {
		ent, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}

		entities = append(entities, ent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}

	return entities, nil
}

// Apply runs the upsert-with-diff transition inside a row-locking transaction.
func (r *PostgresRepository) Apply(ctx context.Context, record watch.CanonicalRecord) (watch.ChangeKind, error) {
	var kind watch.ChangeKind

	err := r.withEntityLock(ctx, record.EntityID, func(tx pgx.Tx, existing *watch.StoredEntity) error {
		var next *watch.StoredEntity
		next, kind = watch.Apply(existing, record, r.policy)

		return r.write(ctx, tx, existing, next, kind)
	})
	if err != nil {
		return "", fmt.Errorf("apply %s: %w", record.EntityID, err)
	}

	return kind, nil
}

// Retire runs the tombstone transition inside a row-locking transaction.
func (r *PostgresRepository) Retire(ctx context.Context, entityID string, now time.Time) (watch.ChangeKind, error) {
	var kind watch.ChangeKind

	err := r.withEntityLock(ctx, entityID, func(tx pgx.Tx, existing *watch.StoredEntity) error {
		var next *watch.StoredEntity
		next, kind = watch.Retire(existing, now, r.policy)

		return r.write(ctx, tx, existing, next, kind)
	})
	if err != nil {
		return "", fmt.Errorf("retire %s: %w", entityID, err)
	}

	return kind, nil
}

// withEntityLock runs fn with the entity's row locked, committing on success.
func (r *PostgresRepository) withEntityLock(
	ctx context.Context,
	entityID string,
	fn func(tx pgx.Tx, existing *watch.StoredEntity) error,
) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	existing, err := scanEntity(tx.QueryRow(ctx, queryLockEntity, entityID))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lock entity: %w", err)
	}

	if err := fn(tx, existing); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// write persists the transition outcome. Stale applies and no-op retires
// leave the row alone.
func (r *PostgresRepository) write(
	ctx context.Context,
	tx pgx.Tx,
	existing, next *watch.StoredEntity,
	kind watch.ChangeKind,
) error {
	if next == nil || kind == watch.ChangeStale {
		return nil
	}

	if existing == nil {
		_, err := tx.Exec(ctx, queryInsertEntity,
			next.EntityID, next.Fields, next.Active, next.AlarmActive,
			next.FirstSeenAt, next.LastSeenAt, next.LastChangedAt, next.FetchedAt)
		if err != nil {
			return fmt.Errorf("insert: %w", err)
		}

		return nil
	}

	_, err := tx.Exec(ctx, queryUpdateEntity,
		next.EntityID, next.Fields, next.Active, next.AlarmActive,
		next.LastSeenAt, next.LastChangedAt, next.FetchedAt)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	return nil
}

// pgxRow is the subset of pgx row types scanEntity needs.
type pgxRow interface {
	Scan(dest ...any) error
}

// scanEntity maps one row onto the domain model.
func scanEntity(row pgxRow) (*watch.StoredEntity, error) {
	var ent watch.StoredEntity

	err := row.Scan(
		&ent.EntityID, &ent.Fields, &ent.Active, &ent.AlarmActive,
		&ent.FirstSeenAt, &ent.LastSeenAt, &ent.LastChangedAt, &ent.FetchedAt)
	if err != nil {
		return nil, err
	}

	return &ent, nil
}
