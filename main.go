package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sitepulse/ai"
	"sitepulse/config"
	"sitepulse/crawler"
	"sitepulse/linkcheck"
	"sitepulse/logger"
	"sitepulse/middleware"
	"sitepulse/monitoring"
)

type Server struct {
	router   *gin.Engine
	config   *config.Settings
	logger   *zap.Logger
	fetcher  crawler.Fetcher
	verifier *linkcheck.Verifier
	analyzer ai.Provider
	monitor  *monitoring.Monitor
	registry *prometheus.Registry
}

func main() {
	cfg := config.Load()

	appLogger, err := logger.New(cfg.Server.LogLevel, cfg.Server.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	if !cfg.Server.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := NewServer(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create server", zap.Error(err))
	}
	server.SetupRoutes()

	appLogger.Info("Starting SitePulse server",
		zap.String("port", cfg.Server.Port),
		zap.String("fetch_backend", cfg.Crawler.Backend))
	if err := server.Run(); err != nil {
		appLogger.Fatal("Failed to start server", zap.Error(err))
	}
}

// NewServer wires the configured fetch backend, verifier and analyzer.
func NewServer(cfg *config.Settings, logger *zap.Logger) (*Server, error) {
	fetcher, err := crawler.NewFetcherWithBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	return newServer(cfg, logger, fetcher, ai.NewProvider(cfg.AI, logger)), nil
}

func newServer(cfg *config.Settings, logger *zap.Logger, fetcher crawler.Fetcher, analyzer ai.Provider) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", middleware.GetRequestID(c)))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal server error",
		})
	}))
	r.Use(middleware.CORS())
	if cfg.Monitoring.MetricsEnabled {
		r.Use(middleware.Metrics(metrics))
	}

	return &Server{
		router:   r,
		config:   cfg,
		logger:   logger,
		fetcher:  fetcher,
		verifier: linkcheck.NewVerifier(cfg.LinkCheck, metrics, logger),
		analyzer: analyzer,
		monitor:  monitoring.NewMonitor(metrics),
		registry: registry,
	}
}

func (s *Server) SetupRoutes() {
	api := s.router.Group("/api")
	if s.config.RateLimit.Enabled {
		limiter := middleware.NewIPRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst)
		api.Use(middleware.RateLimit(limiter))
	}
	api.GET("/health", s.healthHandler)
	api.GET("/extract-links", s.extractLinksHandler)
	api.GET("/check-broken-links", s.checkBrokenLinksHandler)
	api.GET("/analyze-content", s.analyzeContentHandler)

	s.router.GET("/monitoring/stats", s.monitoringStatsHandler)

	if s.config.Monitoring.MetricsEnabled {
		s.router.GET(s.config.Monitoring.MetricsPath,
			gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server", zap.Duration("timeout", s.config.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
