package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"

	"epistat/adapters/excel"
	"epistat/adapters/memory"
	"epistat/adapters/stats/casecontrol"
	"epistat/app"
	"epistat/domain/association"
	"epistat/domain/dataset"
	"epistat/internal/profiling"
	"epistat/internal/session"
)

const outbreak = `case_or_control,foodA,foodB
Control,eat,eat
Control,eat,not eat
Control,not eat,eat
Case,eat,not eat
Case,not eat,eat
Case,not eat,not eat
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	datasets := app.NewDatasetService(
		memory.NewDatasetRepository(),
		session.NewStore(0),
		excel.Reader{},
		profiling.NewDataProfiler(profiling.DefaultConfig()),
	)
	reports := app.NewReportService(
		casecontrol.NewAnalyzer(casecontrol.DefaultOptions()),
		memory.NewReportRepository(),
		app.ReportConfig{
			OutcomeColumn:   "case_or_control",
			ExposureColumns: []string{"foodA", "foodB"},
			MaxWorkers:      2,
		},
	)
	return NewServer(datasets, reports, 1)
}

func do(s *Server, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func uploadBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("dataset", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func createDataset(t *testing.T, s *Server) dataset.Summary {
	t.Helper()
	body, ct := uploadBody(t, "outbreak.csv", outbreak)
	rec := do(s, http.MethodPost, "/api/datasets", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var summary dataset.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "/api/datasets/"+summary.ID.String(), rec.Header().Get("Location"))
	return summary
}

func errorCode(rec *httptest.ResponseRecorder) string {
	return gjson.GetBytes(rec.Body.Bytes(), "error.code").String()
}

func TestCreateAndListDatasets(t *testing.T) {
	s := newTestServer(t)
	summary := createDataset(t, s)
	assert.Equal(t, 6, summary.RecordCount)
	assert.Equal(t, 3, summary.FieldCount)

	rec := do(s, http.MethodGet, "/api/datasets", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []dataset.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, summary.ID, list[0].ID)

	rec = do(s, http.MethodGet, "/api/datasets/"+summary.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	headers := gjson.GetBytes(rec.Body.Bytes(), "headers.#")
	assert.Equal(t, int64(3), headers.Int())
	assert.Equal(t, "foodB", gjson.GetBytes(rec.Body.Bytes(), "headers.2").String())
	assert.Equal(t, int64(6), gjson.GetBytes(rec.Body.Bytes(), "record_count").Int())
	assert.False(t, gjson.GetBytes(rec.Body.Bytes(), "rows").Exists())
}

func TestCreateDatasetRejections(t *testing.T) {
	s := newTestServer(t)

	body, ct := uploadBody(t, "notes.pdf", "x")
	rec := do(s, http.MethodPost, "/api/datasets", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(rec))

	rec = do(s, http.MethodPost, "/api/datasets", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = uploadBody(t, "big.csv", "a\n"+strings.Repeat("x\n", 600_000))
	rec = do(s, http.MethodPost, "/api/datasets", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", errorCode(rec))
}

func TestDatasetRows(t *testing.T) {
	s := newTestServer(t)
	summary := createDataset(t, s)

	rec := do(s, http.MethodGet, "/api/datasets/"+summary.ID.String()+"/rows?offset=4&limit=10", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page rowsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 6, page.Total)
	want := []dataset.Row{
		{"case_or_control": "Case", "foodA": "not eat", "foodB": "eat"},
		{"case_or_control": "Case", "foodA": "not eat", "foodB": "not eat"},
	}
	if diff := cmp.Diff(want, page.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalysis(t *testing.T) {
	s := newTestServer(t)
	summary := createDataset(t, s)
	base := "/api/datasets/" + summary.ID.String()

	rec := do(s, http.MethodGet, base+"/analysis?exposure=foodA", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		Exposure  string                   `json:"exposure"`
		OddsRatio association.Measure      `json:"odds_ratio"`
		PValue    association.Measure      `json:"p_value"`
		Display   association.DisplayTable `json:"display_table"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "foodA", got.Exposure)
	// (Control∩eat 2 × Case∩not eat 2) / (Control∩not eat 1 × Case∩eat 1)
	require.True(t, got.OddsRatio.Defined)
	assert.InDelta(t, 4.0, got.OddsRatio.Value, 1e-12)
	assert.Equal(t, [2][2]int{{1, 2}, {2, 1}}, got.Display.Counts)

	rec = do(s, http.MethodGet, base+"/analysis", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodGet, base+"/analysis?exposure=foodZ", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_COLUMN", errorCode(rec))
}

func TestReports(t *testing.T) {
	s := newTestServer(t)
	summary := createDataset(t, s)
	base := "/api/datasets/" + summary.ID.String()

	rec := do(s, http.MethodGet, base+"/reports/latest", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, http.MethodPost, base+"/reports", bytes.NewBufferString(`{"exposures":["foodB","foodX","foodA"]}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var report association.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	var order []string
	for _, r := range report.Results {
		order = append(order, r.Exposure)
	}
	assert.Equal(t, []string{"foodB", "foodX", "foodA"}, order)
	assert.True(t, report.Results[1].Failed())
	assert.False(t, report.Results[0].Failed())

	failed := gjson.GetBytes(rec.Body.Bytes(), "results.1")
	assert.Equal(t, gjson.Null, failed.Get("odds_ratio").Type)
	assert.Equal(t, gjson.Null, failed.Get("p_value").Type)
	assert.Contains(t, failed.Get("error").String(), "expected column is absent")

	// Empty body falls back to the configured exposures
	rec = do(s, http.MethodPost, base+"/reports", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var latest association.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, []string{"foodA", "foodB"}, latest.Exposures)

	rec = do(s, http.MethodGet, base+"/reports/latest", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), latest.ID.String())

	rec = do(s, http.MethodGet, base+"/reports", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []association.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, latest.ID, list[0].ID)

	rec = do(s, http.MethodGet, "/api/reports/"+report.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/api/reports/"+report.ID.String()+"/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	wb, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	overall, err := wb.GetRows("Overall")
	require.NoError(t, err)
	require.Len(t, overall, 4)
	assert.Equal(t, "foodX", overall[2][0])

	rec = do(s, http.MethodPost, base+"/reports", bytes.NewBufferString(`{"exposures":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportDataset(t *testing.T) {
	s := newTestServer(t)
	summary := createDataset(t, s)

	rec := do(s, http.MethodGet, "/api/datasets/"+summary.ID.String()+"/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="outbreak.xlsx"`)

	// The export reads back as the same dataset
	ds, err := excel.ReadFrom(rec.Body, "outbreak.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"case_or_control", "foodA", "foodB"}, ds.Headers)
	assert.Equal(t, 6, ds.Len())
	assert.Equal(t, summary.ContentHash, ds.ContentHash)
}

func TestProfile(t *testing.T) {
	s := newTestServer(t)
	summary := createDataset(t, s)
	base := "/api/datasets/" + summary.ID.String()

	rec := do(s, http.MethodGet, base+"/profile", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report profiling.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 6, report.Overview.Rows)
	col, ok := report.Column("foodA")
	require.True(t, ok)
	assert.Equal(t, profiling.KindCategorical, col.Kind)

	rec = do(s, http.MethodGet, base+"/profile?format=markdown", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# Descriptive statistics"))
}

func TestLookupErrors(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodGet, "/api/datasets/nope", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodGet, "/api/datasets/0190c3a2-7b1e-7c3d-9e4f-1a2b3c4d5e6f", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(rec))

	rec = do(s, http.MethodGet, "/api/reports/0190c3a2-7b1e-7c3d-9e4f-1a2b3c4d5e6f", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
