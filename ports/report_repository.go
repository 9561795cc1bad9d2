package ports

import (
	"context"

	"epistat/domain/association"
	"epistat/domain/core"
)

// ReportRepository stores generated association reports
type ReportRepository interface {
	Save(ctx context.Context, report *association.Report) error
	GetByID(ctx context.Context, id core.ReportID) (*association.Report, error)

	// LatestForDataset returns the newest report built from the dataset
	LatestForDataset(ctx context.Context, datasetID core.DatasetID) (*association.Report, error)
	ListByDataset(ctx context.Context, datasetID core.DatasetID, limit int) ([]*association.Report, error)
}
