package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"epistat/adapters/excel"
	"epistat/domain/association"
	"epistat/domain/core"
	"epistat/domain/dataset"
	apperrors "epistat/internal/errors"
)

const (
	maxPageSize     = 500
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type rowsResponse struct {
	DatasetID core.DatasetID `json:"dataset_id"`
	Headers   []string       `json:"headers"`
	Offset    int            `json:"offset"`
	Limit     int            `json:"limit"`
	Total     int            `json:"total"`
	Rows      []dataset.Row  `json:"rows"`
}

type analysisResponse struct {
	association.Result
	Display association.DisplayTable `json:"display_table"`
}

type reportRequest struct {
	Exposures []string `json:"exposures"`
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	summaries, err := s.datasets.List(r.Context(), limit, queryInt(r, "offset", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []dataset.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleCreateDataset accepts a multipart upload in the "dataset" field
func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.maxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))

	file, header, err := r.FormFile("dataset")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, apperrors.PayloadTooLarge(fmt.Sprintf("upload exceeds the %dMB limit", s.maxUploadMB)))
			return
		}
		writeError(w, r, apperrors.InvalidInput("multipart field \"dataset\" is required"))
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		writeError(w, r, apperrors.PayloadTooLarge(fmt.Sprintf("upload exceeds the %dMB limit", s.maxUploadMB)))
		return
	}
	if _, err := excel.DetectFileType(header.Filename); err != nil {
		writeError(w, r, apperrors.InvalidInput(err.Error()))
		return
	}

	ds, err := s.datasets.Import(r.Context(), file, header.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/datasets/"+ds.ID.String())
	writeJSON(w, http.StatusCreated, ds.Summarize())
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		dataset.Summary
		Headers []string `json:"headers"`
	}{ds.Summarize(), ds.Headers})
}

func (s *Server) handleDatasetRows(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	rows := ds.Page(offset, limit)
	if rows == nil {
		rows = []dataset.Row{}
	}
	writeJSON(w, http.StatusOK, rowsResponse{
		DatasetID: ds.ID,
		Headers:   ds.Headers,
		Offset:    offset,
		Limit:     limit,
		Total:     ds.Len(),
		Rows:      rows,
	})
}

// handleExportDataset returns the dataset as a single-sheet workbook
func (s *Server) handleExportDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	name := strings.TrimSuffix(ds.OriginalFilename, filepath.Ext(ds.OriginalFilename))
	if name == "" {
		name = ds.ID.String()
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xlsx"))
	if err := excel.WriteDataset(w, ds); err != nil {
		log.Printf("[API] Failed to export dataset %s: %v", ds.ID, err)
	}
}

// handleDatasetProfile returns the profile as JSON, or Markdown with ?format=markdown
func (s *Server) handleDatasetProfile(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	report, err := s.datasets.Profile(r.Context(), ds)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "markdown") {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = io.WriteString(w, report.Markdown())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	exposure := strings.TrimSpace(r.URL.Query().Get("exposure"))
	if exposure == "" {
		writeError(w, r, apperrors.InvalidInput("query parameter \"exposure\" is required"))
		return
	}

	result, err := s.reports.AnalyzeExposure(r.Context(), ds, exposure)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysisResponse{Result: result, Display: result.Table.Display()})
}

// handleCreateReport builds a batch report. An empty body or exposure list
// uses the configured exposures.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, apperrors.InvalidInput("invalid JSON body: "+err.Error()))
		return
	}

	report, err := s.reports.BuildReport(r.Context(), ds, req.Exposures)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	reports, err := s.reports.ListReports(r.Context(), ds.ID, queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reports == nil {
		reports = []*association.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	report, err := s.reports.LatestReport(r.Context(), ds.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		writeError(w, r, apperrors.InvalidInput(err.Error()))
		return
	}
	report, err := s.reports.GetReport(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		writeError(w, r, apperrors.InvalidInput(err.Error()))
		return
	}
	report, err := s.reports.GetReport(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "report-"+report.ID.String()+".xlsx"))
	if err := excel.WriteReport(w, report); err != nil {
		log.Printf("[API] Failed to export report %s: %v", report.ID, err)
	}
}
