// Package memory holds process-local repositories used when no database is configured.
package memory

import (
	"context"
	"sync"

	"epistat/domain/core"
	"epistat/domain/dataset"
	"epistat/ports"
)

// DatasetRepository keeps datasets in a map guarded by an RWMutex
type DatasetRepository struct {
	mu       sync.RWMutex
	datasets map[core.DatasetID]*dataset.Dataset
	order    []core.DatasetID // insertion order, oldest first
}

var _ ports.DatasetRepository = (*DatasetRepository)(nil)

// NewDatasetRepository creates an empty repository
func NewDatasetRepository() *DatasetRepository {
	return &DatasetRepository{datasets: make(map[core.DatasetID]*dataset.Dataset)}
}

func (r *DatasetRepository) Create(ctx context.Context, ds *dataset.Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.datasets[ds.ID]; !exists {
		r.order = append(r.order, ds.ID)
	}
	r.datasets[ds.ID] = ds
	return nil
}

func (r *DatasetRepository) GetByID(ctx context.Context, id core.DatasetID) (*dataset.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, ok := r.datasets[id]
	if !ok {
		return nil, core.NewNotFoundError("dataset", id.String())
	}
	return ds, nil
}

// List returns summaries newest first
func (r *DatasetRepository) List(ctx context.Context, limit, offset int) ([]dataset.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]dataset.Summary, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.datasets[r.order[i]].Summarize())
	}
	return paginate(out, limit, offset), nil
}

func (r *DatasetRepository) Delete(ctx context.Context, id core.DatasetID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.datasets[id]; !ok {
		return core.NewNotFoundError("dataset", id.String())
	}
	delete(r.datasets, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *DatasetRepository) GetCurrent(ctx context.Context) (*dataset.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return nil, core.ErrDatasetNotFound
	}
	return r.datasets[r.order[len(r.order)-1]], nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
