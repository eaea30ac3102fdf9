package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simpleasset.Repository using PostgreSQL
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository over an existing connection or
// transaction. WithTx runs its function directly in that case.
func New(db DBTX) simpleasset.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool,
// enabling real transactions through WithTx.
func NewWithPool(pool *pgxpool.Pool) simpleasset.Repository {
	return &Repository{db: pool, pool: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("asset already exists")
		case "23514": // check_violation
			if strings.Contains(pgErr.ConstraintName, "counter") {
				return fmt.Errorf("asset counter cannot go negative")
			}
			return fmt.Errorf("constraint violated: %s", pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return simpleasset.ErrAssetNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) CreateAsset(ctx context.Context, asset *simpleasset.Asset) error {
	query := `
		INSERT INTO asset (
			id, path, mime, size, data, storage_key, owner_id, counter, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		asset.ID, asset.Path, asset.Mime, asset.Size, asset.Data,
		asset.StorageKey, asset.OwnerID, asset.Counter, asset.CreatedAt)

	if err != nil {
		return r.handlePostgresError("create asset", err)
	}

	return nil
}

func (r *Repository) GetAsset(ctx context.Context, id uuid.UUID) (*simpleasset.Asset, error) {
	query := `
		SELECT id, path, mime, size, data, storage_key, owner_id, counter, created_at
		FROM asset WHERE id = $1`

	var asset simpleasset.Asset
	err := r.db.QueryRow(ctx, query, id).Scan(
		&asset.ID, &asset.Path, &asset.Mime, &asset.Size, &asset.Data,
		&asset.StorageKey, &asset.OwnerID, &asset.Counter, &asset.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleasset.ErrAssetNotFound
		}
		return nil, r.handlePostgresError("get asset", err)
	}

	return &asset, nil
}

func (r *Repository) GetAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]*simpleasset.Asset, error) {
	if len(ids) == 0 {
		return []*simpleasset.Asset{}, nil
	}

	query := `
		SELECT id, path, mime, size, data, storage_key, owner_id, counter, created_at
		FROM asset WHERE id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, r.handlePostgresError("get assets", err)
	}
	defer rows.Close()

	var assets []*simpleasset.Asset
	for rows.Next() {
		var asset simpleasset.Asset
		if err := rows.Scan(
			&asset.ID, &asset.Path, &asset.Mime, &asset.Size, &asset.Data,
			&asset.StorageKey, &asset.OwnerID, &asset.Counter, &asset.CreatedAt); err != nil {
			return nil, r.handlePostgresError("scan asset", err)
		}
		assets = append(assets, &asset)
	}

	return assets, rows.Err()
}

func (r *Repository) UpdateAsset(ctx context.Context, asset *simpleasset.Asset) error {
	query := `
		UPDATE asset SET
			path = $2, mime = $3, size = $4, data = $5,
			storage_key = $6, owner_id = $7, counter = $8
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		asset.ID, asset.Path, asset.Mime, asset.Size, asset.Data,
		asset.StorageKey, asset.OwnerID, asset.Counter)

	if err != nil {
		return r.handlePostgresError("update asset", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleasset.ErrAssetNotFound
	}

	return nil
}

func (r *Repository) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM asset WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete asset", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleasset.ErrAssetNotFound
	}

	return nil
}

// IncrementAssetCounter adds one reference atomically at row level, so
// concurrent commits dereferencing the same asset never lose updates.
func (r *Repository) IncrementAssetCounter(ctx context.Context, id uuid.UUID) (int, error) {
	var counter int
	err := r.db.QueryRow(ctx,
		`UPDATE asset SET counter = counter + 1 WHERE id = $1 RETURNING counter`, id).Scan(&counter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, simpleasset.ErrAssetNotFound
		}
		return 0, r.handlePostgresError("increment counter", err)
	}

	return counter, nil
}

// DecrementAssetCounter removes one reference atomically; the guard keeps
// the counter from ever going negative.
func (r *Repository) DecrementAssetCounter(ctx context.Context, id uuid.UUID) (int, error) {
	var counter int
	err := r.db.QueryRow(ctx,
		`UPDATE asset SET counter = counter - 1 WHERE id = $1 AND counter > 0 RETURNING counter`, id).Scan(&counter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the asset is gone or its counter was already zero;
			// distinguish so callers can detect corruption.
			var exists bool
			if scanErr := r.db.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM asset WHERE id = $1)`, id).Scan(&exists); scanErr != nil {
				return 0, r.handlePostgresError("decrement counter", scanErr)
			}
			if !exists {
				return 0, simpleasset.ErrAssetNotFound
			}
			return 0, nil
		}
		return 0, r.handlePostgresError("decrement counter", err)
	}

	return counter, nil
}

func (r *Repository) AssetStats(ctx context.Context) (*simpleasset.AssetStats, error) {
	var stats simpleasset.AssetStats
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(id), COALESCE(SUM(size), 0) FROM asset`).Scan(&stats.TotalCount, &stats.TotalSize)
	if err != nil {
		return nil, r.handlePostgresError("asset stats", err)
	}

	return &stats, nil
}

// WithTx runs fn inside a database transaction when the repository owns a
// pool. A repository constructed over an existing DBTX (typically already a
// transaction) runs fn directly.
func (r *Repository) WithTx(ctx context.Context, fn func(simpleasset.Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Repository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
