package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inspeaker/smartlink/internal/config"
	"github.com/inspeaker/smartlink/internal/handler"
	"github.com/inspeaker/smartlink/internal/middleware"
	"github.com/inspeaker/smartlink/internal/repository"
	"github.com/inspeaker/smartlink/internal/service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера (с ротацией файла, если задан LOG_FILE)
	logger := newLogger(cfg.Log)
	defer logger.Sync()

	// Часовой пояс продукта
	loc, err := cfg.App.Location()
	if err != nil {
		logger.Fatal("Failed to load display timezone", zap.Error(err))
	}

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Подключение к Redis
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Инициализация репозиториев
	groupRepo := repository.NewGroupRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	cacheRepo := repository.NewCacheRepository(redis)
	auditRepo := repository.NewAuditRepository(db)
	errorRepo := repository.NewErrorLogRepository(db)

	// Журнал аудита (Worker Pool)
	auditSink := service.NewAuditSink(auditRepo, logger, cfg.Audit.Workers, cfg.Audit.BufferSize)
	auditSink.Start()
	defer auditSink.Stop()

	// Инициализация сервисов
	campaignService := service.NewCampaignService(groupRepo, linkRepo, cacheRepo, auditSink, logger)
	resolver := service.NewResolver(linkRepo, cacheRepo, auditSink, logger, loc)
	reporter := service.NewErrorReporter(errorRepo, logger)

	// Инициализация middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})

	// Настройка роутера
	router := handler.NewRouter(campaignService, resolver, reporter, rateLimiter, cfg.App.BaseURL, logger)

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newLogger собирает production-логгер; при заданном LOG_FILE вывод
// дублируется в ротируемый файл через lumberjack
func newLogger(cfg config.LogConfig) *zap.Logger {
	if cfg.File == "" {
		logger, _ := zap.NewProduction()
		return logger
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	fileSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), zap.InfoLevel),
		zapcore.NewCore(encoder, fileSink, zap.InfoLevel),
	)

	return zap.New(core)
}
