package main

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/outcomes/internal/config"
	"github.com/ehr/outcomes/internal/domain/assessment"
	"github.com/ehr/outcomes/internal/domain/trends"
	"github.com/ehr/outcomes/internal/platform/auth"
	"github.com/ehr/outcomes/internal/platform/metrics"
	"github.com/ehr/outcomes/internal/platform/middleware"
)

const version = "0.1.0"

// serverDeps are the pieces newServer wires together. dbHealth is optional.
type serverDeps struct {
	cfg         *config.Config
	logger      zerolog.Logger
	catalog     *assessment.Catalog
	registry    *trends.Registry
	responses   assessment.ResponseRepository
	assignments assessment.AssignmentRepository
	samples     trends.SampleRepository
	dbHealth    echo.HandlerFunc
}

func newServer(d serverDeps) *echo.Echo {
	cfg := d.cfg
	logger := d.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Services
	assessmentSvc := assessment.NewService(d.catalog, d.responses, d.assignments, logger)
	trendSvc := trends.NewService(d.registry, d.samples, d.responses, cfg.TrendWindowDays, logger)

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.NewCollector("outcomes")
		assessmentSvc.SetRecorder(collector)
		trendSvc.SetRecorder(collector)
	} else {
		assessmentSvc.SetRecorder(metrics.Nop{})
		trendSvc.SetRecorder(metrics.Nop{})
	}

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	if collector != nil {
		e.Use(collector.Middleware())
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if d.dbHealth != nil {
		e.GET("/health/db", d.dbHealth)
	}
	if collector != nil {
		e.GET("/metrics", echo.WrapHandler(collector.Handler()))
	}

	// API
	apiV1 := e.Group("/api/v1")
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	assessment.NewHandler(assessmentSvc).RegisterRoutes(apiV1)
	trends.NewHandler(trendSvc).RegisterRoutes(apiV1)

	return e
}
