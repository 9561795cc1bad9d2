package app

import (
	"context"
	"io"

	"epistat/domain/core"
	"epistat/domain/dataset"
	"epistat/internal"
	"epistat/internal/errors"
	"epistat/internal/profiling"
	"epistat/ports"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"
)

const (
	// maxConcurrentProfiles bounds how many datasets are profiled at once
	maxConcurrentProfiles = 2
	// maxCachedProfiles bounds the profile cache; least recently used go first
	maxCachedProfiles = 32
	// maxSharedScan is how many recent datasets Shared looks through
	maxSharedScan = 200
)

// DatasetService loads datasets, binds uploads to sessions and profiles them
type DatasetService struct {
	datasets ports.DatasetRepository
	sessions ports.SessionRepository
	reader   ports.DatasetReader
	profiler ports.Profiler
	logger   *internal.Logger

	profiles   *lru.Cache[core.DatasetID, *profiling.Report]
	profileSem *semaphore.Weighted
}

// NewDatasetService creates a dataset service
func NewDatasetService(datasets ports.DatasetRepository, sessions ports.SessionRepository, reader ports.DatasetReader, profiler ports.Profiler) *DatasetService {
	// New only fails for a non-positive size
	profiles, _ := lru.New[core.DatasetID, *profiling.Report](maxCachedProfiles)
	return &DatasetService{
		datasets:   datasets,
		sessions:   sessions,
		reader:     reader,
		profiler:   profiler,
		logger:     internal.DefaultLogger,
		profiles:   profiles,
		profileSem: semaphore.NewWeighted(maxConcurrentProfiles),
	}
}

// LoadFile reads a dataset from disk and stores it
func (s *DatasetService) LoadFile(ctx context.Context, path string) (*dataset.Dataset, error) {
	ds, err := s.reader.ReadFile(ctx, path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	if err := s.datasets.Create(ctx, ds); err != nil {
		return nil, errors.DatabaseError("failed to store dataset", err)
	}
	s.logger.Info("[DatasetService] loaded %s as %s (%d rows)", path, ds.ID, ds.Len())
	return ds, nil
}

// Import parses an uploaded file and stores it without binding a session
func (s *DatasetService) Import(ctx context.Context, src io.Reader, filename string) (*dataset.Dataset, error) {
	ds, err := s.reader.ReadUpload(ctx, src, filename)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	if err := s.datasets.Create(ctx, ds); err != nil {
		return nil, errors.DatabaseError("failed to store dataset", err)
	}
	return ds, nil
}

// Upload parses an uploaded file, stores it and binds it to the session
func (s *DatasetService) Upload(ctx context.Context, sessionID core.SessionID, src io.Reader, filename string) (*dataset.Dataset, error) {
	ds, err := s.Import(ctx, src, filename)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Bind(ctx, sessionID, ds.ID); err != nil {
		return nil, errors.DatabaseError("failed to bind session", err)
	}
	s.logger.Info("[DatasetService] session %s uploaded %s as %s (%d rows)", sessionID, filename, ds.ID, ds.Len())
	return ds, nil
}

// Get returns a stored dataset
func (s *DatasetService) Get(ctx context.Context, id core.DatasetID) (*dataset.Dataset, error) {
	ds, err := s.datasets.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, "dataset")
	}
	return ds, nil
}

// ForSession returns the dataset bound to the session
func (s *DatasetService) ForSession(ctx context.Context, sessionID core.SessionID) (*dataset.Dataset, error) {
	id, err := s.sessions.DatasetFor(ctx, sessionID)
	if err != nil {
		return nil, s.lookupError(err, "session")
	}
	return s.Get(ctx, id)
}

// Visible returns a dataset the session may open: the one bound to it, or a
// shared server-loaded file. Any other dataset is reported as not found.
func (s *DatasetService) Visible(ctx context.Context, sessionID core.SessionID, id core.DatasetID) (*dataset.Dataset, error) {
	ds, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ds.Source == dataset.SourceFile {
		return ds, nil
	}

	bound, err := s.sessions.DatasetFor(ctx, sessionID)
	if err != nil && !core.IsNotFoundError(err) {
		return nil, errors.DatabaseError("failed to load session", err)
	}
	if err == nil && bound == id {
		return ds, nil
	}
	s.logger.Debug("[DatasetService] session %s denied dataset %s", sessionID, id)
	return nil, errors.NotFound("dataset")
}

// Shared lists server-loaded datasets, newest first
func (s *DatasetService) Shared(ctx context.Context, limit int) ([]dataset.Summary, error) {
	summaries, err := s.List(ctx, maxSharedScan, 0)
	if err != nil {
		return nil, err
	}
	var shared []dataset.Summary
	for _, sum := range summaries {
		if sum.Source == dataset.SourceFile && len(shared) < limit {
			shared = append(shared, sum)
		}
	}
	return shared, nil
}

// Current returns the most recently stored dataset
func (s *DatasetService) Current(ctx context.Context) (*dataset.Dataset, error) {
	ds, err := s.datasets.GetCurrent(ctx)
	if err != nil {
		return nil, s.lookupError(err, "dataset")
	}
	return ds, nil
}

// List returns stored dataset summaries, newest first
func (s *DatasetService) List(ctx context.Context, limit, offset int) ([]dataset.Summary, error) {
	summaries, err := s.datasets.List(ctx, limit, offset)
	if err != nil {
		return nil, errors.DatabaseError("failed to list datasets", err)
	}
	return summaries, nil
}

// Profile returns the descriptive-statistics report. Reports are cached for the
// most recently profiled datasets.
func (s *DatasetService) Profile(ctx context.Context, ds *dataset.Dataset) (*profiling.Report, error) {
	if cached, ok := s.profiles.Get(ds.ID); ok {
		return cached, nil
	}

	if err := s.profileSem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrapf(err, "profile dataset %s", ds.ID)
	}
	defer s.profileSem.Release(1)

	// Another request may have finished the same profile while this one waited.
	if cached, ok := s.profiles.Get(ds.ID); ok {
		return cached, nil
	}

	report, err := s.profiler.Profile(ds)
	if err != nil {
		return nil, errors.Wrapf(err, "profile dataset %s", ds.ID)
	}

	s.profiles.Add(ds.ID, report)
	return report, nil
}

func (s *DatasetService) lookupError(err error, resource string) error {
	if core.IsNotFoundError(err) {
		return errors.WithCode(errors.CodeNotFound, err)
	}
	return errors.DatabaseError("failed to load "+resource, err)
}
