// Package api serves the dataset, profiling and association endpoints as JSON.
package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"epistat/app"
)

// Server is the JSON API
type Server struct {
	router      *chi.Mux
	datasets    *app.DatasetService
	reports     *app.ReportService
	maxUploadMB int
}

// NewServer creates the API router
func NewServer(datasets *app.DatasetService, reports *app.ReportService, maxUploadMB int) *Server {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	s := &Server{
		router:      chi.NewRouter(),
		datasets:    datasets,
		reports:     reports,
		maxUploadMB: maxUploadMB,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/datasets", s.handleListDatasets)
		r.Post("/datasets", s.handleCreateDataset)

		r.Route("/datasets/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetDataset)
			r.Get("/rows", s.handleDatasetRows)
			r.Get("/export", s.handleExportDataset)
			r.Get("/profile", s.handleDatasetProfile)
			r.Get("/analysis", s.handleAnalysis)
			r.Get("/reports", s.handleListReports)
			r.Post("/reports", s.handleCreateReport)
			r.Get("/reports/latest", s.handleLatestReport)
		})

		r.Get("/reports/{reportID}", s.handleGetReport)
		r.Get("/reports/{reportID}/export", s.handleExportReport)
	})
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the API on addr
func (s *Server) Start(addr string) error {
	log.Printf("Starting epistat API on http://%s", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
