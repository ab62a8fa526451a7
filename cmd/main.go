package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"multi-model-summarizer/internal/ai"
	"multi-model-summarizer/internal/config"
	"multi-model-summarizer/internal/extractor"
	"multi-model-summarizer/internal/logger"
	"multi-model-summarizer/internal/telemetry"
	"multi-model-summarizer/middleware"
	"multi-model-summarizer/routes"
	"multi-model-summarizer/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	appLog := logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(context.Background(), cfg.OTLPEndpoint, cfg.OTELSampleRate, appLog)
	if err != nil {
		log.Fatal("Failed to initialize tracer:", err)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Redis is optional: it backs the shared summary cache and rate limiting
	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, using in-memory cache without rate limiting", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	var cache services.SummaryCache
	if rdb != nil {
		cache = services.NewRedisSummaryCache(rdb, cfg.SummaryCacheTTL, appLog)
	} else if mem := services.NewMemorySummaryCache(cfg.SummaryCacheSize, cfg.SummaryCacheTTL); mem != nil {
		cache = mem
	}

	backend := ai.NewInferenceClient(ai.InferenceConfig{
		BaseURL:  cfg.InferenceURL,
		APIToken: cfg.InferenceAPIToken,
		Device:   cfg.Device,
		Timeout:  cfg.InferenceTimeout,
		RPS:      cfg.InferenceRPS,
		Burst:    cfg.InferenceBurst,
	}, appLog, metrics)

	registry := services.NewModelRegistry(backend, services.DefaultModels(cfg), appLog)
	if cfg.PreloadModels {
		go func() {
			if err := registry.Preload(context.Background()); err != nil {
				logger.Error("Model preload failed", "error", err)
			}
		}()
	}

	ext := extractor.New(appLog, metrics)
	summarizer := services.NewSummarizationService(registry, backend, ext, cache,
		services.SummarizationOptions{
			BatchSize:   cfg.InferenceBatchSize,
			Concurrency: cfg.InferenceConcurrency,
		}, metrics, appLog)

	uploads, err := services.NewUploadStore(cfg.UploadDir, cfg.MaxFileSize, appLog)
	if err != nil {
		log.Fatal("Failed to prepare upload directory:", err)
	}
	janitor, err := services.NewJanitor(uploads, cfg.JanitorInterval, cfg.UploadRetention, appLog)
	if err != nil {
		log.Fatal("Failed to schedule upload janitor:", err)
	}
	janitor.Start()
	defer janitor.Stop()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize))
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg, appLog))
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	routes.SetupSummarizeRoutes(router, routes.NewSummarizeHandler(summarizer, ext, registry, uploads, appLog))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "inference_url", cfg.InferenceURL, "device", cfg.Device)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
