package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/lampd/internal/observability"
	"github.com/danmuck/lampd/internal/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// StatusSource reads the authoritative lamp status.
type StatusSource interface {
	Status() bool
}

// HistorySource reads the mirrored transition history.
type HistorySource interface {
	Len() int
	Page(offset, limit int) []store.Record
}

// NotificationSource reads and dismisses the active banner message.
type NotificationSource interface {
	Current() (string, bool)
	Dismiss()
}

type Config struct {
	ListenAddr  string
	CorsOrigins []string
}

// Server exposes the view-layer boundary over HTTP: current status,
// paged history, the active notification, plus health and metrics. It is
// a read-only observer of the reconciler's state; dismiss is the only
// mutation it forwards.
type Server struct {
	cfg      Config
	router   *gin.Engine
	status   StatusSource
	history  HistorySource
	banner   NotificationSource
	appeared time.Time
}

func New(cfg Config, status StatusSource, history HistorySource, banner NotificationSource, logger zerolog.Logger) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:      cfg,
		router:   r,
		status:   status,
		history:  history,
		banner:   banner,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": "lampd",
			"version": "0.1.0",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/lamp/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": s.status.Status(),
		})
	})

	s.router.GET("/lamp/history", func(c *gin.Context) {
		offset := parsePositive(c.Query("offset"), 0)
		limit := parsePositive(c.Query("limit"), defaultPageLimit)
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
		c.JSON(http.StatusOK, gin.H{
			"total":   s.history.Len(),
			"records": s.history.Page(offset, limit),
		})
	})

	s.router.GET("/lamp/notification", func(c *gin.Context) {
		message, active := s.banner.Current()
		if !active {
			c.JSON(http.StatusOK, gin.H{"message": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": message})
	})

	s.router.POST("/lamp/notification/dismiss", func(c *gin.Context) {
		s.banner.Dismiss()
		c.Status(http.StatusNoContent)
	})
}

// Serve runs the boundary API until the context is canceled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func parsePositive(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
