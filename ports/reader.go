package ports

import (
	"context"
	"io"

	"epistat/domain/dataset"
)

// DatasetReader parses tabular input into a dataset
type DatasetReader interface {
	ReadFile(ctx context.Context, path string) (*dataset.Dataset, error)
	ReadUpload(ctx context.Context, src io.Reader, filename string) (*dataset.Dataset, error)
}
