package ui

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"epistat/adapters/excel"
	"epistat/adapters/memory"
	"epistat/adapters/stats/casecontrol"
	"epistat/app"
	"epistat/domain/core"
	"epistat/internal/profiling"
	"epistat/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func outbreakCSV() string {
	var b strings.Builder
	b.WriteString("case_or_control,foodA,foodB\n")
	write := func(n int, line string) {
		for i := 0; i < n; i++ {
			b.WriteString(line + "\n")
		}
	}
	write(10, "Control,eat,eat")
	write(5, "Control,not eat,not eat")
	write(3, "Case,eat,not eat")
	write(8, "Case,not eat,eat")
	return b.String()
}

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
			ExposureColumns: []string{"foodA", "foodB", "foodE"},
			MaxWorkers:      2,
		},
	)
	s, err := NewServer(datasets, reports, Options{MaxUploadMB: 1, PageSize: 10})
	require.NoError(t, err)
	return s
}

func upload(t *testing.T, s *Server, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("dataset", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/datasets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func get(s *Server, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// uploadOutbreak uploads the reference dataset and returns its page URL and session cookie
func uploadOutbreak(t *testing.T, s *Server) (string, *http.Cookie) {
	t.Helper()
	rec := upload(t, s, "outbreak.csv", outbreakCSV())
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/datasets/"), location)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return location, cookies[0]
}

func TestIndexIssuesSessionCookie(t *testing.T) {
	s := newTestServer(t)

	rec := get(s, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Upload a case-control dataset")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestUploadBindsDatasetToSession(t *testing.T) {
	s := newTestServer(t)
	location, cookie := uploadOutbreak(t, s)

	rec := get(s, "/session/dataset", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, location, rec.Header().Get("Location"))

	rec = get(s, "/", cookie)
	assert.Contains(t, rec.Body.String(), "Your dataset")

	// A fresh browser has nothing bound
	rec = get(s, "/session/dataset")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestUploadRejections(t *testing.T) {
	s := newTestServer(t)

	rec := upload(t, s, "notes.pdf", "whatever")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Only CSV")

	rec = upload(t, s, "empty.csv", "case_or_control,foodA\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, s, "big.csv", "a\n"+strings.Repeat("x\n", 600_000))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/datasets/upload", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRawDataPagination(t *testing.T) {
	s := newTestServer(t)
	location, cookie := uploadOutbreak(t, s)

	rec := get(s, location, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<th>case_or_control</th>")
	assert.Contains(t, body, "Page 1 of 3")

	rec = get(s, location+"?page=99", cookie)
	assert.Contains(t, rec.Body.String(), "Page 3 of 3")
}

func TestExposureAnalysisPage(t *testing.T) {
	s := newTestServer(t)
	location, cookie := uploadOutbreak(t, s)

	rec := get(s, location+"/analysis?exposure=foodA", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<th>Eat</th>")
	assert.Contains(t, body, "<th>Not Eat</th>")
	assert.Contains(t, body, "5.3333")

	// Defaults to the first configured exposure
	rec = get(s, location+"/analysis", cookie)
	assert.Contains(t, rec.Body.String(), "<h2>foodA</h2>")

	rec = get(s, location+"/analysis?exposure=foodZ", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "foodZ")
}

func TestOverallReportPage(t *testing.T) {
	s := newTestServer(t)
	location, cookie := uploadOutbreak(t, s)

	rec := get(s, location+"/report", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	a, b, e := strings.Index(body, "<td>foodA</td>"), strings.Index(body, "<td>foodB</td>"), strings.Index(body, "<td>foodE</td>")
	require.True(t, a >= 0 && b >= 0 && e >= 0)
	assert.True(t, a < b && b < e, "rows follow the configured exposure order")
	assert.Contains(t, body, "expected column is absent")
}

func TestReportExport(t *testing.T) {
	s := newTestServer(t)
	location, cookie := uploadOutbreak(t, s)

	rec := get(s, location+"/report.xlsx", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "outbreak-report.xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Overall")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "foodA", rows[1][0])
}

func TestProfilePage(t *testing.T) {
	s := newTestServer(t)
	location, cookie := uploadOutbreak(t, s)

	rec := get(s, location+"/profile", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Descriptive statistics")
	assert.Contains(t, body, "<table>")
}

func TestDatasetPagesAreScopedToSession(t *testing.T) {
	s := newTestServer(t)
	location, _ := uploadOutbreak(t, s)

	for _, suffix := range []string{"", "/profile", "/analysis", "/report", "/report.xlsx"} {
		rec := get(s, location+suffix)
		assert.Equal(t, http.StatusNotFound, rec.Code, suffix)
	}

	rec := get(s, "/")
	assert.NotContains(t, rec.Body.String(), location, "another session's upload is not listed")
}

func TestSharedDatasetIsVisibleToEverySession(t *testing.T) {
	s := newTestServer(t)

	path := filepath.Join(t.TempDir(), "church-supper.csv")
	require.NoError(t, os.WriteFile(path, []byte(outbreakCSV()), 0o600))
	ds, err := s.datasets.LoadFile(context.Background(), path)
	require.NoError(t, err)

	rec := get(s, "/")
	assert.Contains(t, rec.Body.String(), "Shared datasets")
	assert.Contains(t, rec.Body.String(), "/datasets/"+ds.ID.String())

	rec = get(s, "/datasets/"+ds.ID.String()+"/report")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReportPagesReuseStoredReport(t *testing.T) {
	s := newTestServer(t)
	location, cookie := uploadOutbreak(t, s)
	id, err := core.ParseDatasetID(strings.TrimPrefix(location, "/datasets/"))
	require.NoError(t, err)

	for _, path := range []string{"/report", "/report", "/report.xlsx"} {
		rec := get(s, location+path, cookie)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	stored, err := s.reports.ListReports(context.Background(), id, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestDatasetLookupErrors(t *testing.T) {
	s := newTestServer(t)

	rec := get(s, "/datasets/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(s, "/datasets/0190c3a2-7b1e-7c3d-9e4f-1a2b3c4d5e6f/report")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := get(s, "/static/css/epistat.css")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
