// Package status serves the state of a running documentation job over
// HTTP: liveness, progress, per-model usage and Prometheus metrics.
package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/treedoc/internal/logging"
	"github.com/fyrsmithlabs/treedoc/internal/models"
	"github.com/fyrsmithlabs/treedoc/internal/report"
	"github.com/fyrsmithlabs/treedoc/internal/telemetry"
)

// ProgressSource reports the latest run state.
type ProgressSource interface {
	Snapshot() report.Snapshot
}

// UsageSource reports per-model counters.
type UsageSource interface {
	Snapshot() ([]models.Line, models.Line)
}

// HealthSource reports exporter health.
type HealthSource interface {
	Health() telemetry.HealthStatus
}

// CallSource reports the state of the completion call gate.
type CallSource interface {
	Limit() int
	InFlight() int
	Queued() int
}

// Config holds status server configuration.
type Config struct {
	Addr string

	Progress ProgressSource
	Usage    UsageSource
	Health   HealthSource        // optional
	Calls    CallSource          // optional
	Gatherer prometheus.Gatherer // default: prometheus.DefaultGatherer
	Meter    metric.Meter        // optional, for request metrics
}

// Server provides the HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	logger   *logging.Logger
	config   Config
	listener net.Listener
}

// NewServer creates a status server.
func NewServer(cfg Config, logger *logging.Logger) (*Server, error) {
	if cfg.Progress == nil {
		return nil, fmt.Errorf("progress source cannot be nil")
	}
	if cfg.Usage == nil {
		return nil, fmt.Errorf("usage source cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if cfg.Meter != nil {
		e.Use(NewHTTPMetrics(cfg.Meter, logger).MetricsMiddleware())
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Debug(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{echo: e, logger: logger, config: cfg}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/progress", s.handleProgress)
	s.echo.GET("/usage", s.handleUsage)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
}

// CallStats is a point-in-time view of the call gate.
type CallStats struct {
	Limit    int `json:"limit"`
	InFlight int `json:"in_flight"`
	Queued   int `json:"queued"`
}

// UsageResponse is the response body for GET /usage.
type UsageResponse struct {
	Models []models.Line `json:"models"`
	Total  models.Line   `json:"total"`
	Calls  *CallStats    `json:"calls,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if s.config.Health != nil {
		h := s.config.Health.Health()
		resp.Telemetry = &h
		if !h.Healthy {
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleProgress(c echo.Context) error {
	return c.JSON(http.StatusOK, s.config.Progress.Snapshot())
}

func (s *Server) handleUsage(c echo.Context) error {
	lines, total := s.config.Usage.Snapshot()
	resp := UsageResponse{Models: lines, Total: total}
	if calls := s.config.Calls; calls != nil {
		resp.Calls = &CallStats{Limit: calls.Limit(), InFlight: calls.InFlight(), Queued: calls.Queued()}
	}
	return c.JSON(http.StatusOK, resp)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on the configured address and serves in the background.
// It returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("status server listen: %w", err)
	}
	s.listener = ln
	s.echo.Listener = ln
	s.logger.Info(ctx, "starting status server", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "status server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down status server")
	return s.echo.Shutdown(ctx)
}
