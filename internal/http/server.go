// Package http exposes the FAQ bot over a JSON HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/history"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/logging"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/rag"
)

// Pipeline is the question answering service behind the API.
type Pipeline interface {
	IngestRequest(ctx context.Context, req rag.IngestRequest) (rag.IngestResult, error)
	Ask(ctx context.Context, question string) (rag.Answer, error)
	Status() rag.Status
	History(n int) []history.Entry
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// MaxUploadBytes caps the size of an uploaded file.
	MaxUploadBytes int64
	// HistoryLimit is the number of entries GET /history returns by default.
	HistoryLimit int
}

const (
	defaultMaxUploadBytes = 20 << 20
	defaultHistoryLimit   = 10
)

// Server provides the HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	pipeline Pipeline
	logger   *logging.Logger
	config   *Config
	metrics  *HTTPMetrics
	checks   map[string]func() any
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics replaces the OTEL request metrics.
func WithMetrics(m *HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealthCheck adds a component to the GET /health body. fn is called
// on every request and its result is rendered as JSON under name.
func WithHealthCheck(name string, fn func() any) Option {
	return func(s *Server) {
		if s.checks == nil {
			s.checks = make(map[string]func() any)
		}
		s.checks[name] = fn
	}
}

// NewServer creates a new HTTP server.
func NewServer(pipeline Pipeline, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "0.0.0.0", Port: 5000}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}

	s := &Server{
		pipeline: pipeline,
		logger:   logger,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewHTTPMetrics(logger.Underlying())
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(s.requestLogger)
	e.Use(s.metrics.Middleware())
	e.Use(middleware.Recover())

	s.echo = e
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/status", s.handleStatus)
	s.echo.POST("/ingest", s.handleIngest)
	s.echo.POST("/ask", s.handleAsk)
	s.echo.GET("/history", s.handleHistory)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// requestLogger attaches the request id to the request context and logs
// every request once it has completed.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		c.SetRequest(req.WithContext(ctx))

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info(ctx, "http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

// handleError writes every error as {"error": message}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
		if he.Internal != nil {
			err = he.Internal
		}
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed", zap.Int("status", code), zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if werr := c.JSON(code, ErrorResponse{Error: msg}); werr != nil {
		s.logger.Warn(c.Request().Context(), "writing error response", zap.Error(werr))
	}
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
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
