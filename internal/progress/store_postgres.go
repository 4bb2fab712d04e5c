package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store. Each (user_id, module_id) pair
// maps to one row holding the full record as a jsonb document; Save is an
// atomic whole-document upsert. Legacy-shaped documents are repaired on read
// by DecodeRecord, so callers only ever see canonical records.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed progress store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the tables the store and event logger need.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS progress_records (
			user_id    TEXT        NOT NULL,
			module_id  TEXT        NOT NULL,
			doc        JSONB       NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, module_id)
		);

		CREATE TABLE IF NOT EXISTS progress_events (
			id         UUID        PRIMARY KEY,
			user_id    TEXT        NOT NULL,
			module_id  TEXT        NOT NULL,
			event_type TEXT        NOT NULL,
			data       JSONB       NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_progress_events_user
			ON progress_events (user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate progress schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, userID, moduleID string) (*ProgressRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM progress_records WHERE user_id = $1 AND module_id = $2`,
		userID, moduleID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load progress record: %w", err)
	}

	return DecodeRecord(userID, moduleID, raw)
}

func (s *PostgresStore) Save(ctx context.Context, userID, moduleID string, rec *ProgressRecord) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	doc, err := EncodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO progress_records (user_id, module_id, doc, updated_at)
		 VALUES ($1, $2, $3::jsonb, NOW())
		 ON CONFLICT (user_id, module_id)
		 DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		userID, moduleID, doc,
	)
	if err != nil {
		return fmt.Errorf("save progress record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, userID, moduleID string, patch CompletionUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	fields := map[string]any{
		"completed":  patch.Completed,
		"percentage": patch.Percentage,
	}
	if !patch.CompletedAt.IsZero() {
		fields["completedAt"] = patch.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	if !patch.LastUpdated.IsZero() {
		fields["lastUpdated"] = patch.LastUpdated.UTC().Format(time.RFC3339Nano)
	}
	if patch.Score != nil {
		fields["score"] = *patch.Score
	}
	merge, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode completion patch: %w", err)
	}

	cmd, err := s.pool.Exec(ctx,
		`UPDATE progress_records
		 SET doc = doc || $3::jsonb, updated_at = NOW()
		 WHERE user_id = $1 AND module_id = $2`,
		userID, moduleID, merge,
	)
	if err != nil {
		return fmt.Errorf("update progress record: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) LoadMany(ctx context.Context, userID string, moduleIDs []string) (map[string]*ProgressRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT module_id, doc FROM progress_records
		 WHERE user_id = $1 AND module_id = ANY($2)`,
		userID, moduleIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("load progress records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*ProgressRecord)
	for rows.Next() {
		var moduleID string
		var raw []byte
		if err := rows.Scan(&moduleID, &raw); err != nil {
			return nil, fmt.Errorf("scan progress record: %w", err)
		}
		rec, err := DecodeRecord(userID, moduleID, raw)
		if err != nil {
			return nil, err
		}
		out[moduleID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress records: %w", err)
	}
	return out, nil
}
