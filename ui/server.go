package ui

import (
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"time"

	"epistat/app"
	"epistat/internal/session"
	"epistat/ui/middleware"

	"github.com/gin-gonic/gin"
)

// Options configures the web server
type Options struct {
	MaxUploadMB int
	PageSize    int
	SessionTTL  time.Duration
}

// Server represents the web server for the epistat UI
type Server struct {
	router        *gin.Engine
	templates     *template.Template
	embeddedFiles fs.FS
	datasets      *app.DatasetService
	reports       *app.ReportService
	opts          Options
}

// NewServer creates a new web server instance with parsed templates and routes
func NewServer(datasets *app.DatasetService, reports *app.ReportService, opts Options) (*Server, error) {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 50
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}

	tmpl, err := parseTemplates(embeddedFiles)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:        gin.New(),
		templates:     tmpl,
		embeddedFiles: embeddedFiles,
		datasets:      datasets,
		reports:       reports,
		opts:          opts,
	}
	s.router.MaxMultipartMemory = int64(opts.MaxUploadMB) << 20

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Logger(), gin.Recovery())
	s.router.Use(middleware.EnsureSession(session.CookieName, s.opts.SessionTTL))

	staticFS, err := fs.Sub(s.embeddedFiles, "static")
	if err != nil {
		log.Printf("[setupMiddleware] Error creating static filesystem: %v", err)
		return
	}
	s.router.StaticFS("/static", http.FS(staticFS))
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/session/dataset", s.handleSessionDataset)

	datasets := s.router.Group("/datasets")
	datasets.POST("/upload", s.handleFileUpload)
	datasets.GET("/:id", s.handleRawData)
	datasets.GET("/:id/profile", s.handleProfile)
	datasets.GET("/:id/analysis", s.handleExposureAnalysis)
	datasets.GET("/:id/report", s.handleOverallReport)
	datasets.GET("/:id/report.xlsx", s.handleReportExport)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the web server
func (s *Server) Start(addr string) error {
	log.Printf("Starting epistat UI on http://%s", addr)
	return s.router.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
