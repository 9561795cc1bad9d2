// Package sqlite stores datasets, reports and session bindings in a local
// SQLite file. JSON columns are plain TEXT.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"epistat/domain/core"
	"epistat/domain/dataset"
	"epistat/ports"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Open connects to the SQLite file at path with foreign keys enforced
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	return db, nil
}

type datasetRepository struct {
	db *sqlx.DB
}

// NewDatasetRepository creates a new dataset repository
func NewDatasetRepository(db *sqlx.DB) ports.DatasetRepository {
	return &datasetRepository{db: db}
}

const datasetColumns = `id, original_filename, source, status, headers, cells, content_hash, created_at`

func (r *datasetRepository) Create(ctx context.Context, ds *dataset.Dataset) error {
	headersJSON, err := json.Marshal(ds.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}
	cellsJSON, err := json.Marshal(ds.Matrix())
	if err != nil {
		return fmt.Errorf("failed to marshal cells: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO datasets (
		id, original_filename, source, status, headers, cells, content_hash,
		record_count, field_count, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ds.ID, ds.OriginalFilename, ds.Source, ds.Status, string(headersJSON), string(cellsJSON), ds.ContentHash,
		ds.Len(), len(ds.Headers), ds.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	return nil
}

func (r *datasetRepository) GetByID(ctx context.Context, id core.DatasetID) (*dataset.Dataset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = ?`, id)
	return scanDataset(row, id.String())
}

// GetCurrent returns the most recently inserted dataset
func (r *datasetRepository) GetCurrent(ctx context.Context) (*dataset.Dataset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets ORDER BY rowid DESC LIMIT 1`)
	return scanDataset(row, "current")
}

func scanDataset(row *sql.Row, ref string) (*dataset.Dataset, error) {
	var (
		ds          dataset.Dataset
		headersJSON string
		cellsJSON   string
	)
	err := row.Scan(
		&ds.ID, &ds.OriginalFilename, &ds.Source, &ds.Status,
		&headersJSON, &cellsJSON, &ds.ContentHash, &ds.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("dataset", ref)
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	if err := json.Unmarshal([]byte(headersJSON), &ds.Headers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
	}
	var cells [][]string
	if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cells: %w", err)
	}
	if ds.Rows, err = dataset.FromMatrix(ds.Headers, cells); err != nil {
		return nil, err
	}
	ds.CreatedAt = ds.CreatedAt.UTC()
	return &ds, nil
}

// List returns dataset summaries newest first
func (r *datasetRepository) List(ctx context.Context, limit, offset int) ([]dataset.Summary, error) {
	if limit <= 0 {
		limit = 100
	}
	var summaries []dataset.Summary
	err := r.db.SelectContext(ctx, &summaries, `
		SELECT id, original_filename, source, record_count, field_count, content_hash, created_at
		FROM datasets
		ORDER BY rowid DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return summaries, nil
}

func (r *datasetRepository) Delete(ctx context.Context, id core.DatasetID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return core.NewNotFoundError("dataset", id.String())
	}
	return nil
}
