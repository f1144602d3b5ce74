// Package stubserver is the development stand-in for the Care Plus backend.
// It mounts the five endpoints the wizard consumes and serves canned
// aggregator data, so the full flow runs locally with zero infrastructure.
// Never deployed; production talks to the real backend.
package stubserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/careplus/careplus-go/internal/platform/backend"
)

// Server is the stub backend. Registered users live in memory for the
// lifetime of the process.
type Server struct {
	echo   *echo.Echo
	secret []byte
	logger zerolog.Logger

	mu    sync.Mutex
	users map[string]backend.User // keyed by phone number
}

// New creates a stub server signing session tokens with secret.
func New(secret string, logger zerolog.Logger) *Server {
	s := &Server{
		echo:   echo.New(),
		secret: []byte(secret),
		logger: logger,
		users:  make(map[string]backend.User),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger)

	s.echo.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	s.echo.POST("/auth/login", s.handleLogin)
	s.echo.POST("/auth/request", s.handleAuthRequest)
	s.echo.POST("/auth/register/complete", s.handleRegisterComplete)
	s.echo.POST("/integrated/health-data", s.handleHealthData)
	s.echo.POST("/integrated/analyze-diseases", s.handleAnalyzeDiseases)

	return s
}

// Handler exposes the server for httptest mounting.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("stub backend listening")
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.Info().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("status", c.Response().Status).
			Dur("duration", time.Since(start)).
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Msg("request")
		return err
	}
}
