package memory

import (
	"context"
	"sync"

	"epistat/domain/association"
	"epistat/domain/core"
	"epistat/ports"
)

// ReportRepository keeps generated reports in memory
type ReportRepository struct {
	mu        sync.RWMutex
	reports   map[core.ReportID]*association.Report
	byDataset map[core.DatasetID][]core.ReportID // oldest first
}

var _ ports.ReportRepository = (*ReportRepository)(nil)

// NewReportRepository creates an empty repository
func NewReportRepository() *ReportRepository {
	return &ReportRepository{
		reports:   make(map[core.ReportID]*association.Report),
		byDataset: make(map[core.DatasetID][]core.ReportID),
	}
}

func (r *ReportRepository) Save(ctx context.Context, report *association.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reports[report.ID]; !exists {
		r.byDataset[report.DatasetID] = append(r.byDataset[report.DatasetID], report.ID)
	}
	r.reports[report.ID] = report
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id core.ReportID) (*association.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, core.NewNotFoundError("report", id.String())
	}
	return report, nil
}

func (r *ReportRepository) LatestForDataset(ctx context.Context, datasetID core.DatasetID) (*association.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byDataset[datasetID]
	if len(ids) == 0 {
		return nil, core.ErrReportNotFound
	}
	return r.reports[ids[len(ids)-1]], nil
}

// ListByDataset returns reports newest first
func (r *ReportRepository) ListByDataset(ctx context.Context, datasetID core.DatasetID, limit int) ([]*association.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byDataset[datasetID]
	out := make([]*association.Report, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, r.reports[ids[i]])
	}
	return paginate(out, limit, 0), nil
}
