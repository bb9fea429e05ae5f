// Package httpapi exposes the read-only status API for orchd.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/audit"
	"github.com/fyrsmithlabs/orchd/internal/blueprint"
	"github.com/fyrsmithlabs/orchd/internal/config"
	"github.com/fyrsmithlabs/orchd/internal/registry"
)

// Server serves run history, agent and blueprint listings, and
// Prometheus metrics.
type Server struct {
	echo       *echo.Echo
	trail      *audit.Trail
	registry   *registry.Registry
	blueprints *blueprint.Store
	logger     *zap.Logger
	config     config.HTTPConfig
}

// NewServer creates the status API server.
func NewServer(trail *audit.Trail, reg *registry.Registry, blueprints *blueprint.Store, logger *zap.Logger, cfg config.HTTPConfig) (*Server, error) {
	if trail == nil {
		return nil, fmt.Errorf("audit trail is required for status API")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is required for status API")
	}
	if blueprints == nil {
		return nil, fmt.Errorf("blueprint store is required for status API")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:       e,
		trail:      trail,
		registry:   reg,
		blueprints: blueprints,
		logger:     logger.Named("httpapi"),
		config:     cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/runs", s.handleRuns)
	v1.GET("/agents", s.handleAgents)
	v1.GET("/blueprints", s.handleBlueprints)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// AgentsResponse is the response body for GET /api/v1/agents.
type AgentsResponse struct {
	Agents []string `json:"agents"`
}

// BlueprintsResponse is the response body for GET /api/v1/blueprints.
type BlueprintsResponse struct {
	Categories []string `json:"categories"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleRuns(c echo.Context) error {
	records, err := s.trail.List(c.Request().Context(), audit.KindRun)
	if err != nil {
		s.logger.Warn("failed to list runs", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list runs")
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleAgents(c echo.Context) error {
	names, err := s.registry.Names(c.Request().Context())
	if err != nil {
		s.logger.Warn("failed to list agents", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list agents")
	}
	return c.JSON(http.StatusOK, AgentsResponse{Agents: names})
}

func (s *Server) handleBlueprints(c echo.Context) error {
	categories, err := s.blueprints.Categories(c.Request().Context())
	if err != nil {
		s.logger.Warn("failed to list blueprints", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list blueprints")
	}
	return c.JSON(http.StatusOK, BlueprintsResponse{Categories: categories})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
