package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"epistat/domain/association"
	"epistat/domain/core"
	"epistat/ports"

	"github.com/jmoiron/sqlx"
)

// reportRepository stores association reports with their results as JSONB
type reportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sqlx.DB) ports.ReportRepository {
	return &reportRepository{db: db}
}

type reportRow struct {
	ID            core.ReportID  `db:"id"`
	DatasetID     core.DatasetID `db:"dataset_id"`
	OutcomeColumn string         `db:"outcome_column"`
	Exposures     []byte         `db:"exposures"`
	Results       []byte         `db:"results"`
	RuntimeMs     int64          `db:"runtime_ms"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (row reportRow) toReport() (*association.Report, error) {
	report := &association.Report{
		ID:            row.ID,
		DatasetID:     row.DatasetID,
		OutcomeColumn: row.OutcomeColumn,
		RuntimeMs:     row.RuntimeMs,
		CreatedAt:     row.CreatedAt,
	}
	if err := json.Unmarshal(row.Exposures, &report.Exposures); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exposures: %w", err)
	}
	if err := json.Unmarshal(row.Results, &report.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	return report, nil
}

const reportColumns = `id, dataset_id, outcome_column, exposures, results, runtime_ms, created_at`

// Save inserts or replaces a report
func (r *reportRepository) Save(ctx context.Context, report *association.Report) error {
	exposuresJSON, err := json.Marshal(report.Exposures)
	if err != nil {
		return fmt.Errorf("failed to marshal exposures: %w", err)
	}
	resultsJSON, err := json.Marshal(report.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO association_reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			results = EXCLUDED.results,
			runtime_ms = EXCLUDED.runtime_ms
	`, report.ID, report.DatasetID, report.OutcomeColumn, exposuresJSON, resultsJSON, report.RuntimeMs, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetByID retrieves a report by its ID
func (r *reportRepository) GetByID(ctx context.Context, id core.ReportID) (*association.Report, error) {
	var row reportRow
	err := r.db.GetContext(ctx, &row, `SELECT `+reportColumns+` FROM association_reports WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("report", id.String())
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return row.toReport()
}

// LatestForDataset returns the newest report for a dataset
func (r *reportRepository) LatestForDataset(ctx context.Context, datasetID core.DatasetID) (*association.Report, error) {
	reports, err := r.ListByDataset(ctx, datasetID, 1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, core.ErrReportNotFound
	}
	return reports[0], nil
}

// ListByDataset returns reports newest first
func (r *reportRepository) ListByDataset(ctx context.Context, datasetID core.DatasetID, limit int) ([]*association.Report, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []reportRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+reportColumns+`
		FROM association_reports
		WHERE dataset_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, datasetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]*association.Report, 0, len(rows))
	for _, row := range rows {
		report, err := row.toReport()
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
