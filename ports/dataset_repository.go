package ports

import (
	"context"

	"epistat/domain/core"
	"epistat/domain/dataset"
)

// DatasetRepository defines the interface for dataset storage operations.
// Stored datasets are read-only; there is no Update.
type DatasetRepository interface {
	Create(ctx context.Context, ds *dataset.Dataset) error
	GetByID(ctx context.Context, id core.DatasetID) (*dataset.Dataset, error)
	List(ctx context.Context, limit, offset int) ([]dataset.Summary, error)
	Delete(ctx context.Context, id core.DatasetID) error

	// GetCurrent returns the most recently stored dataset
	GetCurrent(ctx context.Context) (*dataset.Dataset, error)
}
