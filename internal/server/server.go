// Package server exposes the summarizer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kevinmichaelchen/project-summary/internal/logging"
	"github.com/kevinmichaelchen/project-summary/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Form field names used by the submission form.
const (
	FieldRepoURL = "githubLink"
	FieldArchive = "zipFile"
)

// Runner is satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, sub models.Submission) models.Result
}

type Options struct {
	// MaxUploadSize is an echo body limit such as "32M". Empty disables it.
	MaxUploadSize string
}

type Server struct {
	echo    *echo.Echo
	runner  Runner
	logger  logging.Logger
	metrics *Metrics
}

type submitResponse struct {
	Summary  string          `json:"summary"`
	Error    *models.Error   `json:"error,omitempty"`
	Warnings []*models.Error `json:"warnings,omitempty"`
}

func New(runner Runner, logger logging.Logger, metrics *Metrics, opts Options) *Server {
	s := &Server{
		echo:    echo.New(),
		runner:  runner,
		logger:  logger,
		metrics: metrics,
	}
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info(c.Request().Context(), "request",
				"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "request_id", v.RequestID)
			return nil
		},
	}))
	// The submission form is served from a different origin.
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	submit := []echo.MiddlewareFunc{}
	if opts.MaxUploadSize != "" {
		submit = append(submit, middleware.BodyLimit(opts.MaxUploadSize))
	}
	e.POST("/submit", s.handleSubmit, submit...)

	return s
}

func (s *Server) Handler() http.Handler { return s.echo }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "listening", "addr", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info(shutdownCtx, "shutting down")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleSubmit(c echo.Context) error {
	req := c.Request()
	sub := models.Submission{RepoURL: strings.TrimSpace(c.FormValue(FieldRepoURL))}

	fh, err := c.FormFile(FieldArchive)
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "could not read uploaded file").SetInternal(err)
		}
		defer func() { _ = f.Close() }()
		sub.Archive = &models.Upload{Name: fh.Filename, Body: f}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form").SetInternal(err)
	}

	res := s.runner.Run(req.Context(), sub)
	s.metrics.submission(res)

	return c.JSON(StatusFor(res), submitResponse{
		Summary:  res.Text(),
		Error:    res.Err,
		Warnings: res.Warnings,
	})
}

// StatusFor maps a result to an HTTP status code.
func StatusFor(res models.Result) int {
	if res.Err == nil {
		return http.StatusOK
	}
	switch res.Err.Kind {
	case models.KindInvalidURL:
		return http.StatusBadRequest
	case models.KindInvalidArchive:
		return http.StatusUnprocessableEntity
	case models.KindMissingCredential:
		return http.StatusServiceUnavailable
	case models.KindUpstream, models.KindSummarizer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	s.logger.Error(req.Context(), "request failed", "status", code,
		"method", req.Method, "path", req.URL.Path, "remote", c.RealIP(), "error", err)
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}
