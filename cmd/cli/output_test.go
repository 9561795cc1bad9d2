package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"epistat/adapters/excel"
	"epistat/adapters/stats/casecontrol"
	"epistat/app"
	"epistat/domain/dataset"
)

func writeOutbreak(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("case_or_control,foodA,foodB\n")
	for i := 0; i < 10; i++ {
		b.WriteString("Control,eat,eat\n")
	}
	for i := 0; i < 5; i++ {
		b.WriteString("Control,not eat,eat\n")
	}
	for i := 0; i < 3; i++ {
		b.WriteString("Case,eat,\n")
	}
	for i := 0; i < 8; i++ {
		b.WriteString("Case,not eat,eat\n")
	}
	path := filepath.Join(t.TempDir(), "outbreak.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func newService(exposures ...string) *app.ReportService {
	return app.NewReportService(
		casecontrol.NewAnalyzer(casecontrol.DefaultOptions()),
		nil,
		app.ReportConfig{OutcomeColumn: "case_or_control", ExposureColumns: exposures, MaxWorkers: 2},
	)
}

func readOutbreak(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := excel.NewDataReader(writeOutbreak(t)).ReadDataset()
	require.NoError(t, err)
	return ds
}

func TestRunAnalyze(t *testing.T) {
	ds := readOutbreak(t)
	var out bytes.Buffer

	require.NoError(t, runAnalyze(context.Background(), &out, newService("foodA"), ds, "foodA", false))
	s := out.String()
	assert.Contains(t, s, "Not Eat")
	assert.Contains(t, s, "5.3333")
	assert.NotContains(t, s, "Observed exposure values")

	out.Reset()
	require.NoError(t, runAnalyze(context.Background(), &out, newService("foodB"), ds, "foodB", true))
	assert.Contains(t, out.String(), "| Odds ratio | undefined |")
	assert.NotContains(t, out.String(), "Observed exposure values")

	err := runAnalyze(context.Background(), &out, newService("foodZ"), ds, "foodZ", false)
	assert.Error(t, err)
}

func TestRunReportWritesWorkbook(t *testing.T) {
	ds := readOutbreak(t)
	xlsxPath := filepath.Join(t.TempDir(), "report.xlsx")
	var out bytes.Buffer

	err := runReport(context.Background(), &out, newService("foodA", "foodZ"), ds, reportOutput{xlsxPath: xlsxPath})
	require.NoError(t, err)

	s := out.String()
	assert.Less(t, strings.Index(s, "foodA"), strings.Index(s, "foodZ"))
	assert.Contains(t, s, "expected column is absent")

	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Overall")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRunReportJSON(t *testing.T) {
	ds := readOutbreak(t)
	var out bytes.Buffer

	require.NoError(t, runReport(context.Background(), &out, newService("foodA"), ds, reportOutput{json: true}))
	assert.Contains(t, out.String(), `"exposure": "foodA"`)
	assert.Contains(t, out.String(), `"odds_ratio": 5.333`)
}

func TestSetupAppliesOverrides(t *testing.T) {
	t.Setenv("STUDY_FILE", "")
	t.Setenv("OUTCOME_COLUMN", "")
	t.Setenv("EXPOSURE_COLUMNS", "")
	t.Setenv("MAX_WORKERS", "")
	t.Setenv("YATES_CORRECTION", "")

	_, svc, err := setup(&studyFlags{exposures: []string{"foodB"}, workers: 3}, writeOutbreak(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"foodB"}, svc.Config().ExposureColumns)
	assert.Equal(t, 3, svc.Config().MaxWorkers)

	_, _, err = setup(&studyFlags{outcome: "foodA", exposures: []string{"foodA"}}, writeOutbreak(t))
	assert.Error(t, err)
}
