package ui

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"epistat/adapters/excel"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleProfile renders the descriptive-statistics report
func (s *Server) handleProfile(c *gin.Context) {
	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}

	report, err := s.datasets.Profile(c.Request.Context(), ds)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.renderTemplate(c, http.StatusOK, "profile.html", gin.H{
		"Title":       "Descriptive statistics",
		"Dataset":     ds.Summarize(),
		"Profile":     report,
		"ProfileHTML": report.HTML(),
	})
}

// handleExposureAnalysis shows one exposure's table, chi-square test and odds ratio
func (s *Server) handleExposureAnalysis(c *gin.Context) {
	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}

	options := s.exposureOptions(ds)
	exposure := strings.TrimSpace(c.Query("exposure"))
	if exposure == "" && len(options) > 0 {
		exposure = options[0]
	}

	data := gin.H{
		"Title":    "Food type analysis",
		"Dataset":  ds.Summarize(),
		"Options":  options,
		"Exposure": exposure,
		"Outcome":  s.reports.Config().OutcomeColumn,
	}
	if exposure == "" {
		s.renderTemplate(c, http.StatusOK, "analysis.html", data)
		return
	}

	result, err := s.reports.AnalyzeExposure(c.Request.Context(), ds, exposure)
	if err != nil {
		s.respondError(c, err)
		return
	}
	data["Result"] = result
	data["Display"] = result.Table.Display()

	s.renderTemplate(c, http.StatusOK, "analysis.html", data)
}

// handleOverallReport shows the batch report over the configured exposures
func (s *Server) handleOverallReport(c *gin.Context) {
	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}

	report, err := s.reports.ReportFor(c.Request.Context(), ds)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.renderTemplate(c, http.StatusOK, "report.html", gin.H{
		"Title":   "Overall result",
		"Dataset": ds.Summarize(),
		"Report":  report,
	})
}

// handleReportExport downloads the overall result as a workbook
func (s *Server) handleReportExport(c *gin.Context) {
	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}

	report, err := s.reports.ReportFor(c.Request.Context(), ds)
	if err != nil {
		s.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := excel.WriteReport(&buf, report); err != nil {
		s.respondError(c, err)
		return
	}

	name := strings.TrimSuffix(ds.OriginalFilename, ".csv")
	name = strings.ReplaceAll(strings.TrimSuffix(name, ".xlsx"), `"`, "")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-report.xlsx"`, name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
