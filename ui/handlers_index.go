package ui

import (
	"log"
	"net/http"

	"epistat/ui/middleware"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleIndex(c *gin.Context) {
	s.renderIndex(c, http.StatusOK, "")
}

// renderIndex shows the upload form, the session's dataset and shared datasets
func (s *Server) renderIndex(c *gin.Context, status int, uploadError string) {
	ctx := c.Request.Context()
	data := gin.H{
		"Title":       "Case-control analysis",
		"UploadError": uploadError,
		"MaxUploadMB": s.opts.MaxUploadMB,
		"Outcome":     s.reports.Config().OutcomeColumn,
		"Exposures":   s.reports.Config().ExposureColumns,
	}

	if ds, err := s.datasets.ForSession(ctx, middleware.SessionID(c)); err == nil {
		data["Current"] = ds.Summarize()
	}

	shared, err := s.datasets.Shared(ctx, 10)
	if err != nil {
		log.Printf("[handleIndex] Failed to list shared datasets: %v", err)
	}
	data["Shared"] = shared

	s.renderTemplate(c, status, "index.html", data)
}
