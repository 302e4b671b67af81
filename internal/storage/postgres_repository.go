package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"veritas-media/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepository struct {
	pool *pgxpool.Pool
	cfg  PostgresConfig
	now  func() time.Time
}

// NewPostgresRepository opens a Postgres-backed catalog repository. The
// media_items schema is ensured on startup, so a fresh database works without
// separate migration steps.
func NewPostgresRepository(dsn string, opts ...Option) (Repository, error) {
	cfg := newPostgresConfig(dsn, opts...)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections >= 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	repo := &postgresRepository{pool: pool, cfg: cfg, now: cfg.Clock}
	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// Close releases the connection pool, honouring the context deadline while the
// pool drains.
func (r *postgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("postgres pool not configured")
	}
	return r.pool.Ping(ctx)
}

func (r *postgresRepository) CreateMediaItem(params CreateMediaItemParams) (models.MediaItem, error) {
	title := strings.TrimSpace(params.Title)
	category := strings.TrimSpace(params.Category)
	storedPath := strings.TrimSpace(params.FilePath)
	if title == "" {
		return models.MediaItem{}, fmt.Errorf("title is required")
	}
	if category == "" {
		return models.MediaItem{}, fmt.Errorf("category is required")
	}
	if storedPath == "" {
		return models.MediaItem{}, fmt.Errorf("file path is required")
	}

	row := r.pool.QueryRow(context.Background(), `
INSERT INTO media_items (title, category, file_path, uploaded_at)
VALUES ($1, $2, $3, $4)
RETURNING id, uploaded_at
`, title, category, storedPath, r.now())

	item := models.MediaItem{Title: title, Category: category, FilePath: storedPath}
	if err := row.Scan(&item.ID, &item.UploadedAt); err != nil {
		if isUniqueViolation(err) {
			return models.MediaItem{}, fmt.Errorf("%w: %s", ErrDuplicatePath, storedPath)
		}
		return models.MediaItem{}, fmt.Errorf("insert media item: %w", err)
	}
	return item, nil
}

func (r *postgresRepository) ListMediaItems(filter ListFilter) ([]models.MediaItem, error) {
	query := `SELECT id, title, category, file_path, uploaded_at FROM media_items`
	var (
		clauses []string
		args    []any
	)
	category := strings.TrimSpace(filter.Category)
	if category != "" && !strings.EqualFold(category, CategoryAll) {
		args = append(args, category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.TitleQuery); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		clauses = append(clauses, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.pool.Query(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list media items: %w", err)
	}
	defer rows.Close()

	items := make([]models.MediaItem, 0)
	for rows.Next() {
		var item models.MediaItem
		if err := rows.Scan(&item.ID, &item.Title, &item.Category, &item.FilePath, &item.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan media item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media items: %w", err)
	}
	return items, nil
}

func (r *postgresRepository) GetMediaItem(id int) (models.MediaItem, error) {
	row := r.pool.QueryRow(context.Background(), `
SELECT id, title, category, file_path, uploaded_at
FROM media_items
WHERE id = $1
`, id)

	var item models.MediaItem
	if err := row.Scan(&item.ID, &item.Title, &item.Category, &item.FilePath, &item.UploadedAt); err != nil {
		if isNoRows(err) {
			return models.MediaItem{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return models.MediaItem{}, fmt.Errorf("get media item %d: %w", id, err)
	}
	return item, nil
}

func (r *postgresRepository) UpdateMediaItem(id int, update MediaItemUpdate) (models.MediaItem, error) {
	var (
		sets []string
		args []any
	)
	if update.Title != nil {
		trimmed := strings.TrimSpace(*update.Title)
		if trimmed == "" {
			return models.MediaItem{}, fmt.Errorf("title cannot be empty")
		}
		args = append(args, trimmed)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if update.Category != nil {
		trimmed := strings.TrimSpace(*update.Category)
		if trimmed == "" {
			return models.MediaItem{}, fmt.Errorf("category cannot be empty")
		}
		args = append(args, trimmed)
		sets = append(sets, fmt.Sprintf("category = $%d", len(args)))
	}
	if len(sets) == 0 {
		return r.GetMediaItem(id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`
UPDATE media_items
SET %s
WHERE id = $%d
RETURNING id, title, category, file_path, uploaded_at
`, strings.Join(sets, ", "), len(args))

	row := r.pool.QueryRow(context.Background(), query, args...)
	var item models.MediaItem
	if err := row.Scan(&item.ID, &item.Title, &item.Category, &item.FilePath, &item.UploadedAt); err != nil {
		if isNoRows(err) {
			return models.MediaItem{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return models.MediaItem{}, fmt.Errorf("update media item %d: %w", id, err)
	}
	return item, nil
}

func (r *postgresRepository) DeleteMediaItem(id int) error {
	tag, err := r.pool.Exec(context.Background(), `DELETE FROM media_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete media item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

func isNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// escapeLike neutralises LIKE metacharacters so title searches stay literal
// substring matches.
func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
