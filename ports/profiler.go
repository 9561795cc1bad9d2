package ports

import (
	"epistat/domain/dataset"
	"epistat/internal/profiling"
)

// Profiler produces the descriptive-statistics artifact of a dataset
type Profiler interface {
	Profile(ds *dataset.Dataset) (*profiling.Report, error)
}
