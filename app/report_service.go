package app

import (
	"context"
	"fmt"
	"time"

	"epistat/adapters/stats/casecontrol"
	"epistat/domain/association"
	"epistat/domain/core"
	"epistat/domain/dataset"
	"epistat/internal"
	"epistat/internal/errors"
	"epistat/ports"

	"golang.org/x/sync/errgroup"
)

// ReportConfig names the columns a batch report covers
type ReportConfig struct {
	OutcomeColumn   string
	ExposureColumns []string
	MaxWorkers      int
}

// ReportService builds the overall result: one association record per exposure
type ReportService struct {
	analyzer *casecontrol.Analyzer
	reports  ports.ReportRepository // optional
	config   ReportConfig
	logger   *internal.Logger
}

// NewReportService creates a report service. reports may be nil, in which case
// built reports are not persisted.
func NewReportService(analyzer *casecontrol.Analyzer, reports ports.ReportRepository, config ReportConfig) *ReportService {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 1
	}
	return &ReportService{
		analyzer: analyzer,
		reports:  reports,
		config:   config,
		logger:   internal.DefaultLogger,
	}
}

// Config returns the service's column configuration
func (s *ReportService) Config() ReportConfig {
	return s.config
}

// AnalyzeExposure analyses one exposure against the configured outcome column.
// Missing columns are returned as MISSING_COLUMN errors.
func (s *ReportService) AnalyzeExposure(ctx context.Context, ds *dataset.Dataset, exposure string) (association.Result, error) {
	if err := ctx.Err(); err != nil {
		return association.Result{}, err
	}
	if ds == nil {
		return association.Result{}, errors.InvalidInput(core.ErrEmptyDataset.Error())
	}

	result, err := s.analyzer.Analyze(ds, s.config.OutcomeColumn, exposure)
	if err != nil {
		if core.IsMissingColumnError(err) {
			return association.Result{}, errors.MissingColumn(err)
		}
		return association.Result{}, errors.Wrapf(err, "analyze %s", exposure)
	}
	return result, nil
}

// BuildReport analyses every exposure and returns the results in the order
// given. An empty exposure list falls back to the configured columns.
//
// A missing outcome column fails the whole batch. Any other failure is confined
// to its exposure: that record has every measure undefined and Error set.
func (s *ReportService) BuildReport(ctx context.Context, ds *dataset.Dataset, exposures []string) (*association.Report, error) {
	start := time.Now()

	if ds == nil {
		return nil, errors.InvalidInput(core.ErrEmptyDataset.Error())
	}
	if len(exposures) == 0 {
		exposures = s.config.ExposureColumns
	}
	if err := ds.RequireColumns(s.config.OutcomeColumn); err != nil {
		return nil, errors.MissingColumn(err)
	}

	results := make([]association.Result, len(exposures))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxWorkers)
	for i, exposure := range exposures {
		i, exposure := i, exposure
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := s.analyzer.Analyze(ds, s.config.OutcomeColumn, exposure)
			if err != nil {
				s.logger.Warn("[ReportService] exposure %s failed: %v", exposure, err)
				result = failedResult(s.config.OutcomeColumn, exposure, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &association.Report{
		ID:            core.NewReportID(),
		DatasetID:     ds.ID,
		OutcomeColumn: s.config.OutcomeColumn,
		Exposures:     append([]string(nil), exposures...),
		Results:       results,
		CreatedAt:     time.Now().UTC(),
		RuntimeMs:     time.Since(start).Milliseconds(),
	}

	if s.reports != nil {
		if err := s.reports.Save(ctx, report); err != nil {
			return nil, errors.DatabaseError("failed to store report", err)
		}
	}

	s.logger.Info("[ReportService] report %s: %d exposures over %d rows in %dms",
		report.ID, len(results), ds.Len(), report.RuntimeMs)
	return report, nil
}

// ReportFor returns the overall result over the configured exposures. The newest
// stored report is reused when it covers the same outcome and exposures, since a
// dataset never changes after it is loaded; otherwise a new one is built.
func (s *ReportService) ReportFor(ctx context.Context, ds *dataset.Dataset) (*association.Report, error) {
	if ds == nil {
		return nil, errors.InvalidInput(core.ErrEmptyDataset.Error())
	}
	if s.reports != nil {
		stored, err := s.reports.LatestForDataset(ctx, ds.ID)
		switch {
		case err == nil && s.covers(stored):
			return stored, nil
		case err != nil && !core.IsNotFoundError(err):
			return nil, errors.DatabaseError("failed to load report", err)
		}
	}
	return s.BuildReport(ctx, ds, nil)
}

func (s *ReportService) covers(report *association.Report) bool {
	if report.OutcomeColumn != s.config.OutcomeColumn || len(report.Exposures) != len(s.config.ExposureColumns) {
		return false
	}
	for i, exposure := range s.config.ExposureColumns {
		if report.Exposures[i] != exposure {
			return false
		}
	}
	return true
}

// LatestReport returns the newest stored report for a dataset
func (s *ReportService) LatestReport(ctx context.Context, datasetID core.DatasetID) (*association.Report, error) {
	if s.reports == nil {
		return nil, errors.NotFound("report")
	}
	report, err := s.reports.LatestForDataset(ctx, datasetID)
	if err != nil {
		if core.IsNotFoundError(err) {
			return nil, errors.WithCode(errors.CodeNotFound, err)
		}
		return nil, errors.DatabaseError("failed to load report", err)
	}
	return report, nil
}

// GetReport returns a stored report by ID
func (s *ReportService) GetReport(ctx context.Context, id core.ReportID) (*association.Report, error) {
	if s.reports == nil {
		return nil, errors.NotFound("report")
	}
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFoundError(err) {
			return nil, errors.WithCode(errors.CodeNotFound, err)
		}
		return nil, errors.DatabaseError("failed to load report", err)
	}
	return report, nil
}

// ListReports returns up to limit stored reports for a dataset, newest first
func (s *ReportService) ListReports(ctx context.Context, datasetID core.DatasetID, limit int) ([]*association.Report, error) {
	if s.reports == nil {
		return nil, nil
	}
	reports, err := s.reports.ListByDataset(ctx, datasetID, limit)
	if err != nil {
		return nil, errors.DatabaseError("failed to list reports", err)
	}
	return reports, nil
}

func failedResult(outcomeColumn, exposure string, err error) association.Result {
	return association.Result{
		Exposure:      exposure,
		OutcomeColumn: outcomeColumn,
		Error:         fmt.Sprint(err),
	}
}
