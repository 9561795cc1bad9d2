package postgres

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
)

// datasetRepository implements the DatasetRepository interface.
// Headers and cells are stored as JSONB; cells in header order.
type datasetRepository struct {
	db *sqlx.DB
}

// NewDatasetRepository creates a new dataset repository
func NewDatasetRepository(db *sqlx.DB) ports.DatasetRepository {
	return &datasetRepository{db: db}
}

const datasetColumns = `id, original_filename, source, status, headers, cells, content_hash, created_at`

// Create inserts a new dataset into the database
func (r *datasetRepository) Create(ctx context.Context, ds *dataset.Dataset) error {
	headersJSON, err := json.Marshal(ds.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}
	cellsJSON, err := json.Marshal(ds.Matrix())
	if err != nil {
		return fmt.Errorf("failed to marshal cells: %w", err)
	}

	query := `INSERT INTO datasets (
		id, original_filename, source, status, headers, cells, content_hash,
		record_count, field_count, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.ExecContext(ctx, query,
		ds.ID, ds.OriginalFilename, ds.Source, ds.Status, headersJSON, cellsJSON, ds.ContentHash,
		ds.Len(), len(ds.Headers), ds.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	return nil
}

// GetByID retrieves a dataset by its ID
func (r *datasetRepository) GetByID(ctx context.Context, id core.DatasetID) (*dataset.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), id.String())
}

// GetCurrent returns the most recently created dataset
func (r *datasetRepository) GetCurrent(ctx context.Context) (*dataset.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query), "current")
}

func (r *datasetRepository) scanOne(row *sql.Row, ref string) (*dataset.Dataset, error) {
	var (
		ds          dataset.Dataset
		headersJSON []byte
		cellsJSON   []byte
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

	if err := json.Unmarshal(headersJSON, &ds.Headers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
	}
	var cells [][]string
	if err := json.Unmarshal(cellsJSON, &cells); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cells: %w", err)
	}
	if ds.Rows, err = dataset.FromMatrix(ds.Headers, cells); err != nil {
		return nil, err
	}

	return &ds, nil
}

// List returns dataset summaries newest first
func (r *datasetRepository) List(ctx context.Context, limit, offset int) ([]dataset.Summary, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, original_filename, source, record_count, field_count, content_hash, created_at
	FROM datasets
	ORDER BY created_at DESC
	LIMIT $1 OFFSET $2`

	var summaries []dataset.Summary
	if err := r.db.SelectContext(ctx, &summaries, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return summaries, nil
}

// Delete removes a dataset and, through the foreign key, its reports
func (r *datasetRepository) Delete(ctx context.Context, id core.DatasetID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return core.NewNotFoundError("dataset", id.String())
	}

	return nil
}
