// Package http serves the motorqc REST API: record capture, analytics,
// exports, the upload relay and Prometheus metrics.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/motorqc/internal/audio"
	"github.com/fyrsmithlabs/motorqc/internal/export"
	"github.com/fyrsmithlabs/motorqc/internal/logging"
	"github.com/fyrsmithlabs/motorqc/internal/record"
	"github.com/fyrsmithlabs/motorqc/internal/relay"
)

const (
	// HeaderStationID names the inspection station sending a request.
	HeaderStationID = "X-Station-ID"
	// HeaderOperatorID names the operator at the station.
	HeaderOperatorID = "X-Operator-ID"
)

// RecordStore is the record sequence the API serves.
type RecordStore interface {
	Add(ctx context.Context, rec record.Record) error
	Records() []record.Record
	Clear(ctx context.Context) error
}

// Deps are the components behind the API. Relay and Audio are optional.
type Deps struct {
	Store   RecordStore
	Exports *export.Registry
	Audio   *audio.Store
	Relay   *relay.Relay
	Logger  *logging.Logger
	Metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
	// Now stamps new records. Defaults to time.Now.
	Now func() time.Time
}

// Server provides HTTP endpoints for motorqc.
type Server struct {
	echo    *echo.Echo
	store   RecordStore
	exports *export.Registry
	audio   *audio.Store
	logger  *logging.Logger
	config  *Config
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, cfg *Config) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if deps.Exports == nil {
		return nil, fmt.Errorf("export registry cannot be nil")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9090}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = NewHTTPMetrics(deps.Logger.Underlying())
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestContext(deps.Logger))
	e.Use(requestLogger(deps.Logger))
	e.Use(deps.Metrics.MetricsMiddleware())

	s := &Server{
		echo:    e,
		store:   deps.Store,
		exports: deps.Exports,
		audio:   deps.Audio,
		logger:  deps.Logger,
		config:  cfg,
	}
	s.registerRoutes()

	if deps.Relay != nil {
		deps.Relay.Register(e)
	}

	return s, nil
}

// requestContext carries the request id and station headers into the
// request context so every log line can be correlated.
func requestContext(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			if station := req.Header.Get(HeaderStationID); station != "" {
				ctx = logging.WithStation(ctx, &logging.Station{
					ID:       station,
					Operator: req.Header.Get(HeaderOperatorID),
				})
			}
			ctx = logging.WithLogger(ctx, logger)
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)

			return err
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/records", s.handleListRecords)
	v1.POST("/records", s.handleAddRecord)
	v1.DELETE("/records", s.handleClearRecords)
	v1.GET("/analytics", s.handleAnalytics)
	v1.GET("/export/preview", s.handleExportPreview)
	v1.POST("/export/:target", s.handleExport)
	if s.audio != nil {
		v1.GET("/audio/:bucket/:file", s.handleAudio)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
