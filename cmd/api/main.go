package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/printhub-backend/internal/drive"
	"github.com/xela07ax/printhub-backend/internal/handler"
	"github.com/xela07ax/printhub-backend/internal/infra"
	"github.com/xela07ax/printhub-backend/internal/infra/auth"
	"github.com/xela07ax/printhub-backend/internal/infra/ratelimit"
	"github.com/xela07ax/printhub-backend/internal/repository/postgres"
	"github.com/xela07ax/printhub-backend/internal/server"
	"github.com/xela07ax/printhub-backend/internal/service"
	"go.uber.org/zap"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Database.URL == "" {
		logger.Fatal("database.url (or DATABASE_URL) is required")
	}

	// 2. RSA-ключи для выпуска и проверки токенов
	privateKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("failed to load private key", zap.Error(err))
	}
	publicKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("failed to load public key", zap.Error(err))
	}
	validator := auth.NewBaseValidator(publicKey)

	// 3. Инфраструктура: Postgres (миграции + пул), Redis
	if err := postgres.Migrate(cfg.Database.URL, logger); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := postgres.Connect(ctx, cfg.Database, logger)
	cancel()
	if err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// 4. Метрики
	reg := prometheus.NewRegistry()
	metrics := infra.NewMetrics(reg)

	// 5. Credential Store (единственный на процесс) и клиент диска
	store, err := drive.NewStore(cfg.Google, logger)
	if err != nil {
		logger.Fatal("drive store init failed", zap.Error(err))
	}
	driveClient := drive.NewClient(store, metrics, logger)
	if store.Authorized() {
		logger.Info("drive credential found, uploads enabled")
	} else {
		logger.Warn("no drive credential saved, visit /auth/google/login to connect")
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logger.Info("metrics listener started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics listener failed", zap.Error(err))
		}
	}()

	// 6. Слои приложения (Dependency Injection)
	userRepo := postgres.NewUserRepo(pool)
	orderRepo := postgres.NewOrderRepo(pool)

	authService := service.NewAuthService(userRepo, privateKey,
		cfg.Auth.TokenTTL, cfg.Auth.RememberTTL, cfg.Auth.BcryptCost)
	orderService := service.NewOrderService(orderRepo, driveClient, cfg.Drive.FolderID, logger)
	staffService := service.NewStaffService(userRepo, cfg.Auth.BcryptCost)

	throttle := ratelimit.New(rdb, cfg.Throttle.LoginLimit, cfg.Throttle.LoginWindow, logger)

	srv := server.NewServer(
		logger,
		validator,
		metrics,
		handler.NewAuthHandler(authService, throttle, logger),
		handler.NewOAuthHandler(store, logger),
		handler.NewProfileHandler(authService),
		handler.NewOrderHandler(orderService, logger),
		handler.NewStaffHandler(staffService),
	)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("printhub API started", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("printhub API stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server shutdown failed", zap.Error(err))
	}
	logger.Info("printhub API exited properly")
}
