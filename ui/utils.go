package ui

import (
	"log"
	"strconv"

	"epistat/domain/core"
	"epistat/domain/dataset"
	apperrors "epistat/internal/errors"
	"epistat/ui/middleware"

	"github.com/gin-gonic/gin"
)

// respondError renders the error page with the status mapped from the error code
func (s *Server) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	log.Printf("[Server] %s %s -> %d: %v", c.Request.Method, c.Request.URL.Path, status, err)
	s.renderTemplate(c, status, "error.html", gin.H{
		"Title":  "Error",
		"Status": status,
		"Error":  err.Error(),
	})
}

// loadDataset resolves the :id path parameter to a dataset the session may open
func (s *Server) loadDataset(c *gin.Context) (*dataset.Dataset, bool) {
	id, err := core.ParseDatasetID(c.Param("id"))
	if err != nil {
		s.respondError(c, apperrors.InvalidInput(err.Error()))
		return nil, false
	}
	ds, err := s.datasets.Visible(c.Request.Context(), middleware.SessionID(c), id)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return ds, true
}

// exposureOptions lists the configured exposures present in the dataset first,
// then every other non-outcome column.
func (s *Server) exposureOptions(ds *dataset.Dataset) []string {
	cfg := s.reports.Config()
	seen := map[string]bool{cfg.OutcomeColumn: true}

	var options []string
	for _, col := range cfg.ExposureColumns {
		if ds.HasColumn(col) && !seen[col] {
			options = append(options, col)
			seen[col] = true
		}
	}
	for _, col := range ds.Headers {
		if !seen[col] {
			options = append(options, col)
			seen[col] = true
		}
	}
	return options
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}
