// Package server wires the HTTP application shared by the standalone server and the
// serverless entry point.
package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	config "market-pulse-api/configs"
	"market-pulse-api/pkg/handlers"
	"market-pulse-api/pkg/services"
	"market-pulse-api/pkg/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// OpenRepository returns the configured artifact store and its close function.
func OpenRepository(cfg *config.Config, log zerolog.Logger) (store.Repository, func() error, error) {
	switch cfg.ModelStore {
	case "badger":
		db, err := store.OpenBadger(cfg.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		repo := store.NewBadgerRepository(db, log)
		return repo, repo.Close, nil
	default:
		repo, err := store.NewFileRepository(cfg.ModelDir, log)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() error { return nil }, nil
	}
}

// ForecastConfig maps the environment configuration onto the service settings.
func ForecastConfig(cfg *config.Config) services.ForecastConfig {
	return services.ForecastConfig{
		MinTrainingDays:    cfg.MinTrainingDays,
		MaxForecastDays:    cfg.MaxForecastDays,
		MaxSalesDataPoints: cfg.MaxSalesDataPoints,
		ChunkSize:          cfg.ChunkSize,
		ReportConcurrency:  cfg.ReportConcurrency,
	}
}

// New wires the store, services and handlers into a router. Metrics go to reg.
func New(cfg *config.Config, log zerolog.Logger, reg *prometheus.Registry) (*gin.Engine, func() error, error) {
	repo, closeStore, err := OpenRepository(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("モデルストアを開けませんでした: %w", err)
	}
	cache := store.NewMemoryCache(cfg.CacheMaxEntries, cfg.CacheTTL)
	cached := store.NewCachedRepository(repo, cache, log)

	// サービスの初期化
	monitoringService := services.NewMonitoringService(reg, log)
	forecastService := services.NewForecastService(cached, cache, ForecastConfig(cfg), log, monitoringService)

	// ハンドラーの初期化
	forecastHandler := handlers.NewForecastHandler(forecastService, log)
	adminHandler := handlers.NewAdminHandler(cfg, forecastService, log)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(monitoringService.LoggingMiddleware())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	r.Use(adminHandler.MaintenanceGuard())

	// ヘルスチェックとメトリクス
	r.GET("/health", adminHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(apiKeyAuth(cfg.APIKey))
	{
		forecastHandler.RegisterRoutes(v1.Group("/ml"))
		adminHandler.RegisterRoutes(v1.Group("/admin"))
		v1.GET("/monitoring/logs", monitoringHandler.GetLogs)
	}
	return r, closeStore, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowHeaders = append(c.AllowHeaders, "X-API-KEY", "Authorization")
	return c
}

// apiKeyAuth 認証ミドルウェア。キー未設定時は認証を行わない
func apiKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		providedKey := c.GetHeader("X-API-KEY")
		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
