package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rowan/backstop/internal/api/handler"
	"github.com/rowan/backstop/internal/api/middleware"
	"github.com/rowan/backstop/internal/core/repository"
	"github.com/rowan/backstop/internal/core/service"
	"github.com/rowan/backstop/pkg/config"
)

type Server struct {
	router *gin.Engine
	srv    *http.Server
	config *config.Config
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	jobService *service.JobService,
	engine *service.ExecutionEngine,
	testService *service.TestService,
	restoreService *service.RestoreService,
	monitoringService *service.MonitoringService,
	runRepo repository.RunRepository,
) *Server {
	if !cfg.IsDevMode() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandlerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobService, engine)
	runHandler := handler.NewRunHandler(runRepo)
	testHandler := handler.NewTestHandler(testService)
	restoreHandler := handler.NewRestoreHandler(restoreService)
	monitoringHandler := handler.NewMonitoringHandler(monitoringService)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecretKey)

	// Jobs
	jobs := router.Group("/jobs")
	jobs.Use(authMiddleware)
	{
		jobs.POST("", jobHandler.CreateJob)
		jobs.GET("", jobHandler.ListJobs)
		jobs.GET("/:id", jobHandler.GetJob)
		jobs.POST("/:id/pause", jobHandler.PauseJob)
		jobs.POST("/:id/resume", jobHandler.ResumeJob)
		jobs.POST("/:id/disable", jobHandler.DisableJob)
		jobs.POST("/:id/execute", jobHandler.ExecuteJob)
	}

	// Runs and run-scoped tests. The static /failed and /integrity-issues
	// routes must be registered before the :id wildcard.
	runs := router.Group("/runs")
	runs.Use(authMiddleware)
	{
		runs.GET("", runHandler.ListRuns)
		runs.GET("/failed", runHandler.ListFailedRuns)
		runs.GET("/integrity-issues", runHandler.ListIntegrityIssues)
		runs.GET("/:id", runHandler.GetRun)
		runs.POST("/:id/tests/integrity", testHandler.RunIntegrityTest)
		runs.POST("/:id/tests/restore", testHandler.RunRestoreTest)
	}

	// Tests
	tests := router.Group("/tests")
	tests.Use(authMiddleware)
	{
		tests.GET("", testHandler.ListTests)
		tests.GET("/:id", testHandler.GetTest)
	}

	// Restores
	restores := router.Group("/restores")
	restores.Use(authMiddleware)
	{
		restores.POST("", restoreHandler.CreateRestore)
		restores.GET("", restoreHandler.ListRestores)
		restores.GET("/:id", restoreHandler.GetRestore)
	}

	// Monitoring
	router.GET("/monitoring", authMiddleware, monitoringHandler.GetMonitoring)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return &Server{
		router: router,
		config: cfg,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)

	s.srv = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	if s.config.SSLCert != "" && s.config.SSLKey != "" {
		fmt.Printf("Starting HTTPS server on %s\n", addr)
		return s.srv.ListenAndServeTLS(s.config.SSLCert, s.config.SSLKey)
	}

	fmt.Printf("Starting HTTP server on %s\n", addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
