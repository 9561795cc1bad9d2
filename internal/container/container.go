package container

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"epistat/adapters/excel"
	"epistat/adapters/memory"
	"epistat/adapters/postgres"
	"epistat/adapters/sqlite"
	"epistat/adapters/stats/casecontrol"
	"epistat/app"
	"epistat/domain/dataset"
	"epistat/internal/config"
	"epistat/internal/migration"
	"epistat/internal/profiling"
	"epistat/internal/session"
	"epistat/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Repositories (data access layer)
	DatasetRepo ports.DatasetRepository
	ReportRepo  ports.ReportRepository
	SessionRepo ports.SessionRepository

	// Analysis components
	Analyzer *casecontrol.Analyzer
	Profiler ports.Profiler
	Reader   ports.DatasetReader

	// Application services
	Datasets *app.DatasetService
	Reports  *app.ReportService

	sessionStore *session.Store
	stopSweeper  context.CancelFunc
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config:   cfg,
		Analyzer: casecontrol.NewAnalyzer(casecontrol.Options{YatesCorrection: cfg.Study.Yates()}),
		Profiler: profiling.NewDataProfiler(profiling.DefaultConfig()),
		Reader:   excel.Reader{},
	}

	return c, nil
}

// OpenDatabase connects to the database named by url and applies the schema.
// A "sqlite:" prefix selects a local SQLite file; anything else is a postgres DSN.
func OpenDatabase(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := Connect(ctx, url)
	if err != nil {
		return nil, err
	}

	migrator := migration.NewRunnerFor(db.DriverName())
	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	log.Printf("Database schema at version %s (%s)", migrator.Version(), migrator.Dialect())
	return db, nil
}

// Connect opens the database named by url without touching the schema
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	if path, ok := SQLitePath(url); ok {
		db, err = sqlite.Open(ctx, path)
	} else {
		db, err = sqlx.ConnectContext(ctx, "postgres", url)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// SQLitePath extracts the file path from a sqlite: or sqlite:// URL
func SQLitePath(url string) (string, bool) {
	for _, prefix := range []string{"sqlite://", "sqlite:"} {
		if strings.HasPrefix(url, prefix) {
			path := strings.TrimPrefix(url, prefix)
			return path, path != ""
		}
	}
	return "", false
}

// InitWithDatabase wires the repositories matching the connection's driver
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db

	// Test database connection
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	c.DatasetRepo, c.ReportRepo, c.SessionRepo = Repositories(db)
	c.initServices()

	log.Printf("Container initialized successfully with database connection")
	return nil
}

// Repositories returns the repository implementations for the connection's driver
func Repositories(db *sqlx.DB) (ports.DatasetRepository, ports.ReportRepository, ports.SessionRepository) {
	if db.DriverName() == migration.DialectSQLite {
		return sqlite.NewDatasetRepository(db), sqlite.NewReportRepository(db), sqlite.NewSessionRepository(db)
	}
	return postgres.NewDatasetRepository(db), postgres.NewReportRepository(db), postgres.NewSessionRepository(db)
}

// InitInMemory wires the in-memory repositories. Nothing survives a restart.
func (c *Container) InitInMemory() {
	c.DatasetRepo = memory.NewDatasetRepository()
	c.ReportRepo = memory.NewReportRepository()
	c.sessionStore = session.NewStore(c.sessionTTL())
	c.SessionRepo = c.sessionStore
	c.initServices()

	log.Printf("Container initialized with in-memory storage")
}

func (c *Container) initServices() {
	c.Datasets = app.NewDatasetService(c.DatasetRepo, c.SessionRepo, c.Reader, c.Profiler)
	c.Reports = app.NewReportService(c.Analyzer, c.ReportRepo, app.ReportConfig{
		OutcomeColumn:   c.Config.Study.OutcomeColumn,
		ExposureColumns: c.Config.Study.ExposureColumns,
		MaxWorkers:      c.Config.Study.MaxWorkers,
	})
}

func (c *Container) sessionTTL() time.Duration {
	return time.Duration(c.Config.Server.SessionTTLHr) * time.Hour
}

// PreloadDataFile loads DATA_FILE, if configured, so it is available before
// anyone uploads.
func (c *Container) PreloadDataFile(ctx context.Context) (*dataset.Dataset, error) {
	if c.Datasets == nil {
		return nil, fmt.Errorf("container not initialized")
	}
	if c.Config.Data.DataFile == "" {
		return nil, nil
	}
	return c.Datasets.LoadFile(ctx, c.Config.Data.DataFile)
}

// StartSessionSweeper periodically drops expired in-memory session bindings.
// It is a no-op with database storage.
func (c *Container) StartSessionSweeper(interval time.Duration) {
	if c.sessionStore == nil || interval <= 0 || c.stopSweeper != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.stopSweeper = cancel
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.sessionStore.Sweep(); n > 0 {
					log.Printf("[SessionSweeper] Dropped %d expired sessions", n)
				}
			}
		}
	}()
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.stopSweeper != nil {
		c.stopSweeper()
		c.stopSweeper = nil
	}

	// Close database connection
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
