package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/powers-protocol/powers/internal/application/layout"
	"github.com/powers-protocol/powers/internal/application/orchestrator"
	"github.com/powers-protocol/powers/internal/application/session"
	"github.com/powers-protocol/powers/internal/application/workers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP API server
type Server struct {
	router  *gin.Engine
	server  *http.Server
	manager *orchestrator.Manager
	layouts  *layout.Service
	sessions *session.Registry
	health   *workers.HealthMonitor
	logger   *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port    int
	Manager *orchestrator.Manager
	Layouts *layout.Service
	// Sessions holds console drafts. Nil starts an empty registry without
	// idle expiry.
	Sessions *session.Registry
	// Health is optional; without it /health reports only the API itself.
	Health *workers.HealthMonitor
	// Gatherer serves /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	if cfg.Sessions == nil {
		cfg.Sessions = session.NewRegistry(0, cfg.Logger)
	}

	s := &Server{
		router:   router,
		manager:  cfg.Manager,
		layouts:  cfg.Layouts,
		sessions: cfg.Sessions,
		health:   cfg.Health,
		logger:   cfg.Logger,
	}

	s.setupRoutes(cfg.Gatherer)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.router.GET("/health", s.handleHealth)

	if gatherer == nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	} else {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/organizations", s.handleListOrganizations)
		v1.GET("/organizations/:id", s.handleGetOrganization)

		v1.POST("/deployments", s.handleSubmitDeployment)
		v1.GET("/deployments", s.handleListDeployments)
		v1.GET("/deployments/:id", s.handleGetDeployment)

		v1.POST("/graph/layout", s.handleComputeLayout)
		v1.POST("/graph/mermaid", s.handleMermaid)

		v1.GET("/layouts/:address", s.handleGetLayout)
		v1.PUT("/layouts/:address/nodes", s.handleSaveNodes)
		v1.PUT("/layouts/:address/viewport", s.handleSaveViewport)
		v1.DELETE("/layouts/:address", s.handleResetLayout)

		v1.POST("/sessions", s.handleOpenSession)
		v1.GET("/sessions/:id", s.handleGetSession)
		v1.PUT("/sessions/:id/contract", s.handleRebindSession)
		v1.POST("/sessions/:id/events", s.handleSessionEvent)
		v1.POST("/sessions/:id/decode", s.handleDecodeSession)
		v1.POST("/sessions/:id/prepare", s.handlePrepareSession)
		v1.DELETE("/sessions/:id", s.handleCloseSession)

		v1.POST("/calldata/encode", s.handleEncode)
		v1.POST("/calldata/decode", s.handleDecode)
		v1.POST("/actions/hash", s.handleHashAction)
	}
}

// SetupWebSocket adds the deployment progress stream to the server
func (s *Server) SetupWebSocket(handler interface{}) {
	if wsHandler, ok := handler.(interface {
		HandleDeploymentStream(*gin.Context)
	}); ok {
		s.router.GET("/api/v1/deployments/:id/ws", wsHandler.HandleDeploymentStream)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

// requestLogger is a middleware for request logging
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
