package migration

import (
	"context"

	"epistat/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// Dialects the runner has DDL for, named after their database/sql drivers
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
	dialect string
}

// NewRunner creates a migration runner for postgres
func NewRunner() *MigrationRunner {
	return NewRunnerFor(DialectPostgres)
}

// NewRunnerFor creates a migration runner for the given driver name. Unknown
// drivers get the postgres DDL.
func NewRunnerFor(dialect string) *MigrationRunner {
	if dialect != DialectSQLite {
		dialect = DialectPostgres
	}
	return &MigrationRunner{
		version: "1.0.0",
		dialect: dialect,
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Dialect returns the driver name the DDL targets
func (r *MigrationRunner) Dialect() string {
	return r.dialect
}

// Statements returns the DDL in execution order
func (r *MigrationRunner) Statements() []Step {
	if r.dialect == DialectSQLite {
		return []Step{
			{Name: "datasets table", SQL: sqliteDatasetsTable},
			{Name: "association_reports table", SQL: sqliteReportsTable},
			{Name: "upload_sessions table", SQL: sqliteSessionsTable},
			{Name: "reports index", SQL: `CREATE INDEX IF NOT EXISTS idx_reports_dataset ON association_reports(dataset_id)`},
		}
	}
	return []Step{
		{Name: "datasets table", SQL: createDatasetsTable},
		{Name: "association_reports table", SQL: createReportsTable},
		{Name: "upload_sessions table", SQL: createSessionsTable},
		{Name: "indexes", SQL: createIndexes},
	}
}

// Step is one named migration statement
type Step struct {
	Name string
	SQL  string
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, step := range r.Statements() {
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			return errors.DatabaseError("failed to create "+step.Name, err)
		}
	}
	return nil
}

const createDatasetsTable = `
	CREATE TABLE IF NOT EXISTS datasets (
		id UUID PRIMARY KEY,
		original_filename VARCHAR(255) NOT NULL DEFAULT '',
		source VARCHAR(50) NOT NULL DEFAULT 'upload',
		status VARCHAR(50) NOT NULL DEFAULT 'ready',
		headers JSONB NOT NULL,
		cells JSONB NOT NULL,
		content_hash VARCHAR(64) NOT NULL DEFAULT '',
		record_count INTEGER NOT NULL DEFAULT 0,
		field_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)
`

const createReportsTable = `
	CREATE TABLE IF NOT EXISTS association_reports (
		id UUID PRIMARY KEY,
		dataset_id UUID NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		outcome_column VARCHAR(255) NOT NULL,
		exposures JSONB NOT NULL,
		results JSONB NOT NULL,
		runtime_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)
`

const createSessionsTable = `
	CREATE TABLE IF NOT EXISTS upload_sessions (
		id UUID PRIMARY KEY,
		dataset_id UUID NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)
`

const createIndexes = `
	CREATE INDEX IF NOT EXISTS idx_datasets_created_at ON datasets(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_reports_dataset_created ON association_reports(dataset_id, created_at DESC);
`

const sqliteDatasetsTable = `
	CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		original_filename TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT 'upload',
		status TEXT NOT NULL DEFAULT 'ready',
		headers TEXT NOT NULL,
		cells TEXT NOT NULL,
		content_hash TEXT NOT NULL DEFAULT '',
		record_count INTEGER NOT NULL DEFAULT 0,
		field_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)
`

const sqliteReportsTable = `
	CREATE TABLE IF NOT EXISTS association_reports (
		id TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		outcome_column TEXT NOT NULL,
		exposures TEXT NOT NULL,
		results TEXT NOT NULL,
		runtime_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)
`

const sqliteSessionsTable = `
	CREATE TABLE IF NOT EXISTS upload_sessions (
		id TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		updated_at TIMESTAMP NOT NULL
	)
`
