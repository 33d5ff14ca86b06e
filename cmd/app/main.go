package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Raivel16/gestor-tareas/internal/cache"
	"github.com/Raivel16/gestor-tareas/internal/config"
	"github.com/Raivel16/gestor-tareas/internal/db"
	httpServer "github.com/Raivel16/gestor-tareas/internal/http"
	"github.com/Raivel16/gestor-tareas/internal/http/handlers"
	"github.com/Raivel16/gestor-tareas/internal/http/middleware"
	"github.com/Raivel16/gestor-tareas/internal/llm"
	"github.com/Raivel16/gestor-tareas/internal/logger"
	"github.com/Raivel16/gestor-tareas/internal/repository"
	"github.com/Raivel16/gestor-tareas/internal/service"
	"github.com/Raivel16/gestor-tareas/internal/storage"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, File: cfg.Log.File})
	defer logger.Sync()

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	rdb := connectRedis(cfg)
	if rdb != nil {
		defer rdb.Close()
	}

	images := newImageStore(cfg)

	var completer llm.Completer
	if cfg.LLM.Configured() {
		client, err := llm.NewClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
		if err != nil {
			logger.Fatal("failed to create llm client", "error", err)
		}
		completer = client
		logger.Info("ai suggestions enabled", "model", cfg.LLM.Model, "base_url", cfg.LLM.BaseURL)
	} else {
		logger.Warn("LLM_API_KEY not set, suggestions use the local ranking")
	}

	taskRepo := repository.NewTaskRepository(dbPool)
	userRepo := repository.NewUserRepository(dbPool)
	auditRepo := repository.NewAuditRepository(dbPool)

	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	audit := service.NewAuditService(auditRepo)
	board := cache.NewBoardCache(rdb, cfg.BoardCacheTTL)

	h := handlers.NewHandler(
		service.NewTaskService(taskRepo, images, board, audit),
		service.NewSuggestionService(taskRepo, completer, audit),
		service.NewAuthService(userRepo, tokens, audit),
		audit,
		cfg.Storage.MaxBytes,
	)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = cfg.Storage.MaxBytes + 1<<20
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.Metrics(),
		middleware.CORS(cfg.CORSOrigins),
	)

	httpServer.RegisterRoutes(r, cfg, httpServer.Deps{
		Handler: h,
		Health:  handlers.NewHealthHandler(dbPool, rdb, version),
		Tokens:  tokens,
		Limiter: middleware.NewRateLimiter(rdb),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

// connectRedis returns nil when REDIS_ADDR is unset or unreachable; rate
// limiting and the board cache are then skipped.
func connectRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, rate limiting and board cache disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, rate limiting and board cache disabled", "addr", cfg.RedisAddr, "error", err)
		_ = rdb.Close()
		return nil
	}

	logger.Info("redis connected", "addr", cfg.RedisAddr)
	return rdb
}

func newImageStore(cfg *config.Config) storage.Store {
	if !cfg.Storage.S3Enabled() {
		logger.Info("storing images on disk", "dir", cfg.Storage.UploadDir)
		return storage.NewLocalStore(cfg.Storage.UploadDir, cfg.AppURL, cfg.Storage.MaxBytes)
	}

	s3, err := storage.NewS3Store(storage.S3Config{
		Endpoint:  cfg.Storage.S3Endpoint,
		AccessKey: cfg.Storage.S3AccessKey,
		SecretKey: cfg.Storage.S3SecretKey,
		Bucket:    cfg.Storage.S3Bucket,
		UseSSL:    cfg.Storage.S3UseSSL,
		Region:    cfg.Storage.S3Region,
		PublicURL: cfg.Storage.S3PublicURL,
		MaxBytes:  cfg.Storage.MaxBytes,
	})
	if err != nil {
		logger.Fatal("failed to init object storage", "error", err)
	}
	return s3
}
