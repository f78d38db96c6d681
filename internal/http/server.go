// Package http provides HTTP server implementation and request handlers.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	articleHTTP "github.com/memorylib/integrator/internal/article/http"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *gin.Engine
	db     *sql.DB
	logger *slog.Logger
}

// NewServer creates a new HTTP server.
// The router is empty until SetupRouter is called; db may be nil, in which
// case the readiness endpoint always reports not ready.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// RouterConfig holds the optional middleware configuration for SetupRouter.
type RouterConfig struct {
	CORSEnabled            bool
	CORSAllowOrigins       string
	StatusRateLimitEnabled bool
	StatusRateLimitRPS     float64
	StatusRateLimitBurst   int
	MetricsMiddleware      gin.HandlerFunc
}

// SetupRouter configures the router with middleware and application routes.
//
// Prometheus metrics are intentionally NOT exposed here: they are served by
// the dedicated MetricsServer on its own port.
func (s *Server) SetupRouter(
	cfg RouterConfig,
	pushHandler *articleHTTP.PushHandler,
	statusHandler *articleHTTP.StatusHandler,
) {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if cfg.MetricsMiddleware != nil {
		router.Use(cfg.MetricsMiddleware)
	}

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	// Health endpoints
	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	// Push delivery endpoint. The subscription pushes to the root path.
	router.POST("/", pushHandler.HandlePush)

	// Status endpoint, optionally rate limited per source IP.
	statusChain := make([]gin.HandlerFunc, 0, 2)
	if cfg.StatusRateLimitEnabled {
		statusChain = append(
			statusChain,
			StatusRateLimitMiddleware(cfg.StatusRateLimitRPS, cfg.StatusRateLimitBurst, s.logger),
		)
	}
	statusChain = append(statusChain, statusHandler.HandleStatus)
	router.GET("/status", statusChain...)

	s.router = router
}

// GetHandler returns the configured router as an http.Handler.
// Returns nil until SetupRouter has been called.
func (s *Server) GetHandler() http.Handler {
	if s.router == nil {
		return nil
	}
	return s.router
}

// healthHandler reports process liveness. It never touches dependencies.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can serve traffic, with a
// per-component breakdown.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{}
	ready := true

	if s.db == nil {
		components["database"] = "error"
		ready = false
	} else {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.db.PingContext(pingCtx); err != nil {
			s.logger.Error("readiness check failed",
				slog.String("component", "database"),
				slog.String("error", err.Error()),
			)
			components["database"] = "error"
			ready = false
		} else {
			components["database"] = "ok"
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
