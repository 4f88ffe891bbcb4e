package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"story-client/internal/config"
	"story-client/internal/connectivity"
	"story-client/internal/gemini"
	"story-client/internal/handler"
	"story-client/internal/logger"
	"story-client/internal/middleware"
	"story-client/internal/ratelimit"
	"story-client/internal/repository"
	"story-client/internal/service"
)

const connectivityInterval = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	stateRepo, cleanup := setupStateRepository(cfg, zapLogger)
	defer cleanup()

	geminiClient := gemini.NewClient(gemini.Config{
		EndpointURL: cfg.GenerateURL(),
		ModelName:   cfg.GeminiModel,
		Timeout:     cfg.RequestTimeout,
		MaxRetries:  cfg.MaxRetries,
		BaseDelay:   cfg.RetryBaseDelay,
	}, zapLogger)

	checker := connectivity.NewChecker(cfg.HealthCheckURL, nil, zapLogger)
	limiter := ratelimit.NewLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)

	storyService := service.NewStoryService(
		geminiClient,
		checker,
		limiter,
		stateRepo,
		cfg.GeminiAPIKey != "",
		zapLogger,
	)

	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), 5*time.Second)
	if err := storyService.Restore(restoreCtx); err != nil {
		zapLogger.Warn("Could not restore persisted session", zap.Error(err))
	}
	cancelRestore()

	if cfg.GeminiAPIKey == "" {
		zapLogger.Warn("Gemini API key is not configured, story requests will fail until it is set")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ZapLogger(zapLogger))
	router.Use(cors.Default())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handler.NewStoryHandler(storyService, zapLogger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Keep the offline flag fresh so the UI can show connectivity state
	// between requests.
	go func() {
		ticker := time.NewTicker(connectivityInterval)
		defer ticker.Stop()
		storyService.RefreshConnectivity(rootCtx)
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				storyService.RefreshConnectivity(rootCtx)
			}
		}
	}()

	go func() {
		zapLogger.Info("Starting story client server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Error("HTTP server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	zapLogger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	zapLogger.Info("Server stopped")
}

// setupStateRepository connects the durable store. Without a Redis address
// the session lives only as long as the process.
func setupStateRepository(cfg *config.Config, zapLogger *zap.Logger) (repository.StateRepository, func()) {
	if cfg.RedisAddr == "" {
		zapLogger.Warn("REDIS_ADDR not set, session state will not survive restarts")
		return repository.NewMemoryStateRepository(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zapLogger.Warn("Redis is unreachable, falling back to in-memory session state", zap.Error(err))
		client.Close()
		return repository.NewMemoryStateRepository(), func() {}
	}

	zapLogger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	return repository.NewRedisStateRepository(client, zapLogger), func() { client.Close() }
}
