// Package server exposes the ops surface: health, metrics, and a guarded
// manual trigger, plus the daily schedule when one is configured.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amachado/gaceta/internal/pipeline"
)

type Server struct {
	Pipeline *pipeline.Pipeline
	// Schedule is a cron expression; empty disables the scheduler.
	Schedule  string
	JWTSecret []byte
	Logger    *log.Logger

	stop chan struct{}
}

func New(p *pipeline.Pipeline, schedule string, jwtSecret []byte, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	return &Server{Pipeline: p, Schedule: schedule, JWTSecret: jwtSecret, Logger: logger, stop: make(chan struct{})}
}

// Run blocks serving HTTP on addr. The scheduler goroutine stops when the
// server shuts down.
func (s *Server) Run(addr string) error {
	e := s.router()

	if s.Schedule != "" {
		expr, err := cronexpr.Parse(s.Schedule)
		if err != nil {
			return fmt.Errorf("parse schedule %q: %w", s.Schedule, err)
		}
		go s.scheduleLoop(expr)
	}

	defer close(s.stop)
	return e.Start(addr)
}

func (s *Server) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.Logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/run", withAuth(s.triggerRun, s.JWTSecret))
	return e
}

func (s *Server) triggerRun(c echo.Context) error {
	res, err := s.Pipeline.Run(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id":    res.RunID,
		"stage":     res.Stage,
		"articles":  len(res.Articles),
		"persisted": res.Persisted,
		"delivered": res.Delivered,
	})
}

func (s *Server) scheduleLoop(expr *cronexpr.Expression) {
	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			s.Logger.Printf("schedule has no future fire time, scheduler stopped")
			return
		}
		s.Logger.Printf("next scheduled run at %s", next.Format(time.RFC3339))
		select {
		case <-time.After(time.Until(next)):
			if _, err := s.Pipeline.Run(context.Background()); err != nil {
				s.Logger.Printf("scheduled run failed: %v", err)
			}
		case <-s.stop:
			return
		}
	}
}
