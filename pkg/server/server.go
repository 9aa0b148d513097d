// Package server exposes patch sessions over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/walteh/docpatch/pkg/config"
	"github.com/walteh/docpatch/pkg/operation"
	"github.com/walteh/docpatch/pkg/store"
	"gitlab.com/tozd/go/errors"
)

// Server provides HTTP endpoints for docpatch.
type Server struct {
	echo   *echo.Echo
	op     operation.Operator
	logger zerolog.Logger
	config config.Server
}

// NewServer creates a new HTTP server. Request logs go to the logger in ctx.
func NewServer(ctx context.Context, op operation.Operator, cfg config.Server) (*Server, error) {
	if op == nil {
		return nil, errors.Errorf("operator is required")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}

	logger := *zerolog.Ctx(ctx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqLogger := logger.With().
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Logger()
			c.SetRequest(c.Request().WithContext(reqLogger.WithContext(c.Request().Context())))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			reqLogger.Info().
				Str("method", c.Request().Method).
				Str("uri", c.Request().RequestURI).
				Int("status", c.Response().Status).
				Dur("duration", time.Since(start)).
				Msg("http request")

			return nil
		}
	})

	s := &Server{
		echo:   e,
		op:     op,
		logger: logger,
		config: cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check
	s.echo.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/sessions/:session/apply", s.handleApply)
	v1.POST("/sessions/:session/preview", s.handlePreview)
}

// Handler returns the http.Handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ApplyRequest is the request body for the apply and preview endpoints.
type ApplyRequest struct {
	FixIDs []string `json:"fixIds"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusCode maps a session error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, operation.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, operation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders every error as {"error": "..."}.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := StatusCode(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		msg = fmt.Sprint(he.Message)
	}

	if err := c.JSON(status, operation.Response{Error: msg}); err != nil {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("writing error response")
	}
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) bindRequest(c echo.Context) (operation.Request, error) {
	var body ApplyRequest
	if err := c.Bind(&body); err != nil {
		return operation.Request{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return operation.Request{SessionID: c.Param("session"), FixIDs: body.FixIDs}, nil
}

// handleApply runs a patch session.
func (s *Server) handleApply(c echo.Context) error {
	req, err := s.bindRequest(c)
	if err != nil {
		return err
	}

	resp := s.op.Handle(c.Request().Context(), req)
	if resp.Err != nil {
		return c.JSON(StatusCode(resp.Err), resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// handlePreview returns the diff a session would produce without writing it.
func (s *Server) handlePreview(c echo.Context) error {
	req, err := s.bindRequest(c)
	if err != nil {
		return err
	}

	req.DryRun = true
	plan, err := s.op.Plan(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, operation.NewPreview(plan))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info().Str("addr", addr).Msg("starting http server")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Errorf("serving http: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down http server")
	return s.echo.Shutdown(ctx)
}
