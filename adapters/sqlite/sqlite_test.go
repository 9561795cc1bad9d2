package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epistat/domain/association"
	"epistat/domain/core"
	"epistat/domain/dataset"
	"epistat/internal/migration"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "epistat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migration.NewRunnerFor(db.DriverName()).Run(ctx, db))
	return db
}

func newDataset(t *testing.T, name string) *dataset.Dataset {
	t.Helper()
	headers := []string{"case_or_control", "foodA", "note"}
	rows, err := dataset.FromMatrix(headers, [][]string{
		{"Case", "eat", " spaced "},
		{"Control", "not eat", ""},
		{"Control", "Eat"},
	})
	require.NoError(t, err)
	return dataset.New(name, "upload", headers, rows)
}

func TestMigrationIsRepeatable(t *testing.T) {
	db := openTestDB(t)
	assert.Equal(t, migration.DialectSQLite, db.DriverName())
	require.NoError(t, migration.NewRunnerFor(db.DriverName()).Run(context.Background(), db))
}

func TestDatasetRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDatasetRepository(openTestDB(t))

	_, err := repo.GetCurrent(ctx)
	assert.True(t, core.IsNotFoundError(err))

	first, second := newDataset(t, "a.csv"), newDataset(t, "b.csv")
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Headers, got.Headers)
	assert.Equal(t, first.ContentHash, got.ContentHash)
	if diff := cmp.Diff(first.Matrix(), got.Matrix()); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
	assert.WithinDuration(t, first.CreatedAt, got.CreatedAt, time.Millisecond)

	current, err := repo.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	list, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b.csv", list[0].OriginalFilename)
	assert.Equal(t, 3, list[0].RecordCount)
	assert.Equal(t, 3, list[0].FieldCount)

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a.csv", page[0].OriginalFilename)

	require.NoError(t, repo.Delete(ctx, second.ID))
	_, err = repo.GetByID(ctx, second.ID)
	assert.True(t, core.IsNotFoundError(err))
	assert.True(t, core.IsNotFoundError(repo.Delete(ctx, second.ID)))
}

func TestReportRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	datasets := NewDatasetRepository(db)
	reports := NewReportRepository(db)

	ds := newDataset(t, "outbreak.csv")
	require.NoError(t, datasets.Create(ctx, ds))

	_, err := reports.LatestForDataset(ctx, ds.ID)
	assert.ErrorIs(t, err, core.ErrReportNotFound)

	table, err := association.Tabulate([]string{"Case", "Control", "Control"}, []string{"eat", "not eat", "Eat"})
	require.NoError(t, err)
	older := &association.Report{
		ID:            core.NewReportID(),
		DatasetID:     ds.ID,
		OutcomeColumn: "case_or_control",
		Exposures:     []string{"foodA"},
		Results: []association.Result{{
			Exposure:      "foodA",
			OutcomeColumn: "case_or_control",
			OddsRatio:     association.Undefined,
			ChiSquare:     association.Defined(1.5),
			PValue:        association.Defined(0.22),
			Table:         table,
			OddsRatioNote: "division by zero",
		}},
		CreatedAt: time.Now().UTC(),
		RuntimeMs: 3,
	}
	newer := &association.Report{
		ID:            core.NewReportID(),
		DatasetID:     ds.ID,
		OutcomeColumn: "case_or_control",
		Exposures:     []string{"foodZ"},
		Results:       []association.Result{{Exposure: "foodZ", Error: "expected column is absent: foodZ"}},
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, reports.Save(ctx, older))
	require.NoError(t, reports.Save(ctx, newer))

	got, err := reports.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, older.Exposures, got.Exposures)
	require.Len(t, got.Results, 1)
	assert.False(t, got.Results[0].OddsRatio.Defined)
	assert.Equal(t, 1.5, got.Results[0].ChiSquare.Value)
	assert.Equal(t, "division by zero", got.Results[0].OddsRatioNote)
	if diff := cmp.Diff(table.Matrix(), got.Results[0].Table.Matrix()); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}

	latest, err := reports.LatestForDataset(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	older.RuntimeMs = 9
	require.NoError(t, reports.Save(ctx, older))
	list, err := reports.ListByDataset(ctx, ds.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(9), list[1].RuntimeMs)

	_, err = reports.GetByID(ctx, core.NewReportID())
	assert.True(t, core.IsNotFoundError(err))

	require.NoError(t, datasets.Delete(ctx, ds.ID))
	list, err = reports.ListByDataset(ctx, ds.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	datasets := NewDatasetRepository(db)
	sessions := NewSessionRepository(db)

	first, second := newDataset(t, "a.csv"), newDataset(t, "b.csv")
	require.NoError(t, datasets.Create(ctx, first))
	require.NoError(t, datasets.Create(ctx, second))

	sid := core.NewSessionID()
	_, err := sessions.DatasetFor(ctx, sid)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	require.NoError(t, sessions.Bind(ctx, sid, first.ID))
	require.NoError(t, sessions.Bind(ctx, sid, second.ID))
	got, err := sessions.DatasetFor(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got)

	assert.Error(t, sessions.Bind(ctx, core.NewSessionID(), core.NewDatasetID()), "foreign key is enforced")

	require.NoError(t, sessions.Clear(ctx, sid))
	_, err = sessions.DatasetFor(ctx, sid)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}
