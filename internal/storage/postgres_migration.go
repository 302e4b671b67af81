package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

func (r *postgresRepository) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS media_items (
	id SERIAL PRIMARY KEY,
	title VARCHAR(255) NOT NULL,
	category VARCHAR(50) NOT NULL,
	file_path VARCHAR(500) NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS media_items_file_path_key ON media_items (file_path)`,
		`CREATE INDEX IF NOT EXISTS media_items_category_idx ON media_items (category)`,
	}
	for _, statement := range statements {
		if _, err := r.pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("ensure media_items schema: %w", err)
		}
	}
	return nil
}

// ImportSnapshotToPostgres replays a JSON catalog snapshot into the Postgres
// repository, preserving item IDs and advancing the ID sequence past the
// highest imported value.
func ImportSnapshotToPostgres(ctx context.Context, repo Repository, snapshot *Snapshot) error {
	pg, ok := repo.(*postgresRepository)
	if !ok {
		return fmt.Errorf("snapshot import requires a postgres repository")
	}
	if snapshot == nil {
		return fmt.Errorf("snapshot is nil")
	}
	return pg.importSnapshot(ctx, snapshot)
}

func (r *postgresRepository) importSnapshot(ctx context.Context, snapshot *Snapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer rollbackTx(ctx, tx)

	ids := make([]int, 0, len(snapshot.Items))
	for id := range snapshot.Items {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	maxID := 0
	for _, key := range ids {
		item := snapshot.Items[key]
		id := item.ID
		if id <= 0 {
			id = key
		}
		if id > maxID {
			maxID = id
		}
		_, err := tx.Exec(ctx, `
INSERT INTO media_items (id, title, category, file_path, uploaded_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING
`, id, item.Title, item.Category, item.FilePath, item.UploadedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert media item %d: %w", id, err)
		}
	}

	next := snapshot.NextID
	if next <= maxID {
		next = maxID + 1
	}
	if next > 1 {
		if _, err := tx.Exec(ctx, `SELECT setval(pg_get_serial_sequence('media_items', 'id'), $1, false)`, next); err != nil {
			return fmt.Errorf("advance media_items sequence: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot import: %w", err)
	}
	return nil
}

// rollbackTx discards the transaction. Rollback after a successful commit
// reports ErrTxClosed, so the result is not worth inspecting.
func rollbackTx(ctx context.Context, tx pgx.Tx) {
	_ = tx.Rollback(ctx)
}
