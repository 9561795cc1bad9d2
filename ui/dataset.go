package ui

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"epistat/adapters/excel"
	apperrors "epistat/internal/errors"
	"epistat/ui/middleware"

	"github.com/gin-gonic/gin"
)

// handleFileUpload handles dataset file uploads and binds the result to the session
func (s *Server) handleFileUpload(c *gin.Context) {
	log.Printf("[handleFileUpload] Starting file upload process")

	maxFileSize := int64(s.opts.MaxUploadMB) << 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFileSize+(1<<20))

	file, header, err := c.Request.FormFile("dataset")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Printf("[handleFileUpload] FAILED - Request body over %d bytes", tooLarge.Limit)
			s.respondError(c, apperrors.PayloadTooLarge(fmt.Sprintf("Upload exceeds the %dMB limit", s.opts.MaxUploadMB)))
			return
		}
		log.Printf("[handleFileUpload] FAILED - No file uploaded: %v", err)
		s.renderIndex(c, http.StatusBadRequest, "Please choose a CSV or Excel file to upload.")
		return
	}
	defer file.Close()

	if header.Size > maxFileSize {
		log.Printf("[handleFileUpload] FAILED - File too large: %d bytes", header.Size)
		s.respondError(c, apperrors.PayloadTooLarge(fmt.Sprintf(
			"File size (%.1f MB) exceeds the %dMB limit", float64(header.Size)/(1024*1024), s.opts.MaxUploadMB)))
		return
	}

	if _, err := excel.DetectFileType(header.Filename); err != nil {
		log.Printf("[handleFileUpload] FAILED - Invalid file extension: %s", header.Filename)
		s.renderIndex(c, http.StatusBadRequest, "Only CSV (.csv) and Excel (.xlsx) files are allowed.")
		return
	}

	ds, err := s.datasets.Upload(c.Request.Context(), middleware.SessionID(c), file, header.Filename)
	if err != nil {
		log.Printf("[handleFileUpload] FAILED - Dataset processing failed: %v", err)
		if apperrors.GetCode(err) == apperrors.CodeInvalidInput {
			s.renderIndex(c, http.StatusBadRequest, err.Error())
			return
		}
		s.respondError(c, err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/datasets/"+ds.ID.String())
}

// handleSessionDataset redirects to the dataset this browser uploaded last
func (s *Server) handleSessionDataset(c *gin.Context) {
	ds, err := s.datasets.ForSession(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		if apperrors.GetCode(err) == apperrors.CodeNotFound {
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		s.respondError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/datasets/"+ds.ID.String())
}

// handleRawData shows the uploaded table a page at a time
func (s *Server) handleRawData(c *gin.Context) {
	ds, ok := s.loadDataset(c)
	if !ok {
		return
	}

	pageSize := s.opts.PageSize
	totalPages := (ds.Len() + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	page := queryInt(c, "page", 1)
	if page > totalPages {
		page = totalPages
	}

	rows := ds.Page((page-1)*pageSize, pageSize)
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(ds.Headers))
		for j, h := range ds.Headers {
			cells[i][j] = row[h]
		}
	}

	s.renderTemplate(c, http.StatusOK, "dataset.html", gin.H{
		"Title":      ds.OriginalFilename,
		"Dataset":    ds.Summarize(),
		"Headers":    ds.Headers,
		"Rows":       cells,
		"Page":       page,
		"TotalPages": totalPages,
		"FirstRow":   (page-1)*pageSize + 1,
	})
}
