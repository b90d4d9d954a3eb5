package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arbsim/internal/config"
	"arbsim/internal/model"
	"arbsim/internal/session"
)

// Controller is the session surface the server exposes.
type Controller interface {
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
	ExecuteOpportunity(id string) (*model.TradeRecord, error)
	SetAutonomous(enabled bool)
	RunBacktest(scenario session.Scenario) (<-chan session.BacktestReport, error)
	CancelBacktest() error
	ResetSession()
}

// Server is the HTTP command and state surface of a session.
type Server struct {
	logger     *slog.Logger
	cfg        config.ServerConfig
	ctrl       Controller
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates a server and registers its routes.
func NewServer(logger *slog.Logger, cfg config.ServerConfig, ctrl Controller) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Disposition"}
	if len(cfg.AllowedOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	s := &Server{
		logger: logger,
		cfg:    cfg,
		ctrl:   ctrl,
		router: router,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	{
		api.GET("/state", s.handleState)
		api.GET("/opportunities", s.handleOpportunities)
		api.POST("/opportunities/:id/execute", s.handleExecute)
		api.GET("/trades", s.handleTrades)
		api.GET("/trades/export", s.handleExport)
		api.GET("/stats", s.handleStats)
		api.PUT("/autonomous", s.handleAutonomous)
		api.POST("/backtests", s.handleStartBacktest)
		api.DELETE("/backtests", s.handleCancelBacktest)
		api.POST("/session/reset", s.handleReset)
	}
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("Server: listening", "addr", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Server: shutting down")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Server: request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

func successResponse(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}
