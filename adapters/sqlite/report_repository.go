package sqlite

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
	Exposures     string         `db:"exposures"`
	Results       string         `db:"results"`
	RuntimeMs     int64          `db:"runtime_ms"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (row reportRow) toReport() (*association.Report, error) {
	report := &association.Report{
		ID:            row.ID,
		DatasetID:     row.DatasetID,
		OutcomeColumn: row.OutcomeColumn,
		RuntimeMs:     row.RuntimeMs,
		CreatedAt:     row.CreatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.Exposures), &report.Exposures); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exposures: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Results), &report.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	return report, nil
}

const reportColumns = `id, dataset_id, outcome_column, exposures, results, runtime_ms, created_at`

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
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			results = excluded.results,
			runtime_ms = excluded.runtime_ms
	`, report.ID, report.DatasetID, report.OutcomeColumn, string(exposuresJSON), string(resultsJSON), report.RuntimeMs, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func (r *reportRepository) GetByID(ctx context.Context, id core.ReportID) (*association.Report, error) {
	var row reportRow
	err := r.db.GetContext(ctx, &row, `SELECT `+reportColumns+` FROM association_reports WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("report", id.String())
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return row.toReport()
}

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
		WHERE dataset_id = ?
		ORDER BY rowid DESC
		LIMIT ?
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
