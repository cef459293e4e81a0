// Package api exposes the deliberation engine over HTTP: query submission,
// status lookup, cancellation, health, and the WebSocket event stream.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/conclave-ai/conclave/pkg/config"
	"github.com/conclave-ai/conclave/pkg/events"
	"github.com/conclave-ai/conclave/pkg/session"
	"github.com/conclave-ai/conclave/pkg/version"
	"github.com/conclave-ai/conclave/pkg/workflow"
)

// Server is the HTTP/WebSocket front end. One instance per process.
type Server struct {
	cfg         *config.Config
	pipeline    *workflow.Pipeline
	sessions    *session.Manager
	connManager *events.ConnectionManager

	httpServer *http.Server
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, pipeline *workflow.Pipeline,
	sessions *session.Manager, connManager *events.ConnectionManager) *Server {
	return &Server{
		cfg:         cfg,
		pipeline:    pipeline,
		sessions:    sessions,
		connManager: connManager,
	}
}

// Routes builds the gin engine with all routes registered.
func (s *Server) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", s.health)
	r.GET("/ws", s.wsHandler)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/queries", s.createQuery)
		v1.GET("/queries", s.listQueries)
		v1.GET("/queries/:id", s.getQuery)
		v1.POST("/queries/:id/cancel", s.cancelQuery)
	}
	return r
}

// Start runs the HTTP server; blocks until Shutdown or failure.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// health reports process liveness plus basic gauges.
func (s *Server) health(c *gin.Context) {
	stats := s.cfg.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"version":            version.Full(),
		"active_connections": s.connManager.ActiveConnections(),
		"sessions":           len(s.sessions.List()),
		"sources":            stats.Sources,
		"debate_profiles":    stats.DebateProfiles,
	})
}

// requestLogger is a minimal slog access-log middleware.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}
