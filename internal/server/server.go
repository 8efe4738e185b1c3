package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// Config controls the HTTP listener serving quotes, routes and swap
// submission.
type Config struct {
	Addr    string
	DevMode bool
	// APIKey, when set, is required in the X-API-Key header of every request.
	APIKey string
	// ShutdownGrace bounds how long Shutdown waits for in-flight requests.
	// Zero means 10 seconds.
	ShutdownGrace time.Duration
}

// Server is the echo front end over the swap engine. It owns no domain
// state; everything it serves comes from the Handlers' dependencies.
type Server struct {
	e      *echo.Echo
	cfg    Config
	logger *logrus.Logger
	closed chan struct{}
}

// New wires the handlers into an echo instance.
func New(h *Handlers, cfg Config) (*Server, error) {
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	logger := h.Logger
	if logger == nil {
		logger = logrus.New()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.HTTPErrorHandler = h.errorEnvelope

	// Quote handlers answer from an in-memory snapshot; the generous write
	// timeout covers swap submission, which waits on the chain node.
	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 75 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	registerRoutes(e, h, cfg)

	return &Server{e: e, cfg: cfg, logger: logger, closed: make(chan struct{})}, nil
}

// Start serves requests until Shutdown.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.cfg.Addr).Info("swap API listening")
	return s.e.Start(s.cfg.Addr)
}

// Shutdown stops the listener, waiting up to ShutdownGrace for in-flight
// requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	defer close(s.closed)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownGrace)
	defer cancel()
	return s.e.Shutdown(ctx)
}

// WaitClosed blocks until Shutdown has finished or the context ends.
func (s *Server) WaitClosed(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return nil
	}
}

// freshJSON stamps every response as JSON and uncacheable. Quotes price a
// moving snapshot; a cached quote is worse than no quote.
func freshJSON(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		hdr := c.Response().Header()
		hdr.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		hdr.Set("Cache-Control", "no-store")
		return next(c)
	}
}
